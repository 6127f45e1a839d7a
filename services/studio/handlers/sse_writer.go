// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelworks/snapstudio/services/studio/datatypes"
)

// SSE event types of the edit stream. Progress events carry workflow
// state, the complete event carries the final payload, and the error
// event terminates a failed stream.
const (
	eventProgress = "progress"
	eventComplete = "complete"
	eventError    = "error"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for streaming edit workflow events to
// an HTTP response.
//
// # Description
//
// SSEWriter abstracts SSE serialization and writing, enabling
// testability and separation from HTTP response mechanics.
// Implementations handle the wire format
// (id: hash\nevent: type\ndata: json\n\n) internally.
//
// Each event's id is the SHA-256 of the event type, its JSON payload,
// and the previous event's id. The chain is seeded with a fresh uuid
// per stream, so ids never collide across streams, and gives the client
// a way to detect dropped or reordered events by recomputing the
// hashes.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Streaming handlers
// emit workflow events from the request goroutine and keep-alive pings
// from a ticker goroutine.
//
// # Limitations
//
//   - Must be used with an http.Flusher-compatible ResponseWriter
//   - Response headers must be set before the first write
type SSEWriter interface {
	// WriteProgress emits a "progress" event carrying workflow state.
	WriteProgress(event datatypes.ProgressEvent) error

	// WriteComplete emits the terminal "complete" event with the final
	// result. No events should follow it.
	WriteComplete(resp datatypes.AgenticEditResponse) error

	// WriteError emits an "error" event. The message must already be
	// sanitized for the client; details are optional.
	WriteError(message, details string) error

	// WriteKeepAlive sends an SSE comment (": ping") to hold idle
	// proxies and load balancers open during long model calls.
	// Comments are not events and do not advance the hash chain.
	WriteKeepAlive() error
}

// =============================================================================
// Implementation
// =============================================================================

// sseWriter implements SSEWriter over an http.ResponseWriter.
//
// # Fields
//
//   - writer: underlying response writer
//   - flusher: http.Flusher for immediate send
//   - prevHash: chain tail; the stream seed before the first event
//   - mu: serializes writes and chain updates
//
// # Thread Safety
//
// Thread-safe via mutex. Chain integrity is maintained across
// concurrent writes.
type sseWriter struct {
	writer   io.Writer
	flusher  http.Flusher
	prevHash string
	mu       sync.Mutex
}

// NewSSEWriter creates an SSEWriter for the given ResponseWriter.
//
// # Inputs
//
//   - w: HTTP ResponseWriter. Must implement http.Flusher.
//
// # Outputs
//
//   - SSEWriter: ready to write events.
//   - error: non-nil if the ResponseWriter cannot flush, since buffered
//     delivery would defeat the stream.
//
// # Assumptions
//
//   - Caller has set SSE headers via SetSSEHeaders()
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}

	return &sseWriter{
		writer:   w,
		flusher:  flusher,
		prevHash: uuid.NewString(),
	}, nil
}

var _ SSEWriter = (*sseWriter)(nil)

func (w *sseWriter) WriteProgress(event datatypes.ProgressEvent) error {
	return w.writeEvent(eventProgress, event)
}

func (w *sseWriter) WriteComplete(resp datatypes.AgenticEditResponse) error {
	return w.writeEvent(eventComplete, resp)
}

func (w *sseWriter) WriteError(message, details string) error {
	return w.writeEvent(eventError, datatypes.ErrorInfo{Message: message, Details: details})
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := io.WriteString(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keep-alive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// writeEvent serializes the payload, advances the hash chain, and
// flushes one framed event.
func (w *sseWriter) writeEvent(eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.chainEventID(eventType, data)
	if _, err := fmt.Fprintf(w.writer, "id: %s\nevent: %s\ndata: %s\n\n", id, eventType, data); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	w.flusher.Flush()
	return nil
}

// chainEventID derives the next event id from the event's identity and
// the chain tail. Caller must hold mu.
func (w *sseWriter) chainEventID(eventType string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(eventType))
	h.Write([]byte("|"))
	h.Write(data)
	h.Write([]byte("|"))
	h.Write([]byte(w.prevHash))

	id := hex.EncodeToString(h.Sum(nil))
	w.prevHash = id
	return id
}

// =============================================================================
// Headers
// =============================================================================

// SetSSEHeaders prepares the response for event streaming. Must be
// called before the first write. X-Accel-Buffering disables proxy
// buffering that would batch events.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

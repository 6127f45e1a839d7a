// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// Tests for the SSE event writer

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/snapstudio/services/studio/datatypes"
)

var frameRe = regexp.MustCompile(`id: ([0-9a-f]{64})\nevent: (\w+)\ndata: (\{.*\})\n\n`)

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(nonFlushingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.Flusher")
}

// nonFlushingWriter satisfies http.ResponseWriter without http.Flusher.
type nonFlushingWriter struct{}

func (nonFlushingWriter) Header() http.Header       { return http.Header{} }
func (nonFlushingWriter) Write([]byte) (int, error) { return 0, nil }
func (nonFlushingWriter) WriteHeader(int)           {}

func TestSSEWriter_FramesProgressEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteProgress(datatypes.ProgressEvent{
		Step:    datatypes.StepPlanning,
		Message: "Sending planning request to AI...",
	}))

	matches := frameRe.FindStringSubmatch(rec.Body.String())
	require.NotNil(t, matches, "body %q does not match the SSE frame format", rec.Body.String())
	assert.Equal(t, "progress", matches[2])
	assert.Contains(t, matches[3], `"step":"planning"`)
	assert.Contains(t, matches[3], `"message":"Sending planning request to AI..."`)
}

func TestSSEWriter_CompleteEventPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteComplete(datatypes.AgenticEditResponse{
		ImageData:   "data:image/png;base64,aGk=",
		Iterations:  2,
		FinalPrompt: "refined instruction",
	}))

	matches := frameRe.FindStringSubmatch(rec.Body.String())
	require.NotNil(t, matches)
	assert.Equal(t, "complete", matches[2])
	assert.JSONEq(t, `{"imageData":"data:image/png;base64,aGk=","iterations":2,"finalPrompt":"refined instruction"}`, matches[3])
}

func TestSSEWriter_ErrorEventOmitsEmptyDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteError("Generation failed", ""))

	matches := frameRe.FindStringSubmatch(rec.Body.String())
	require.NotNil(t, matches)
	assert.Equal(t, "error", matches[2])
	assert.JSONEq(t, `{"message":"Generation failed"}`, matches[3])
}

// TestSSEWriter_HashChain verifies each event id is the SHA-256 of the
// event type, its payload, and the previous id, starting from the
// per-stream seed, so a client can detect dropped or reordered events.
func TestSSEWriter_HashChain(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	seed := w.(*sseWriter).prevHash
	_, err = uuid.Parse(seed)
	require.NoError(t, err, "chain seed %q is not a uuid", seed)

	require.NoError(t, w.WriteProgress(datatypes.ProgressEvent{Step: datatypes.StepPlanning}))
	require.NoError(t, w.WriteProgress(datatypes.ProgressEvent{Step: datatypes.StepCallingAPI}))
	require.NoError(t, w.WriteError("boom", "details"))

	frames := frameRe.FindAllStringSubmatch(rec.Body.String(), -1)
	require.Len(t, frames, 3)

	prev := seed
	for i, frame := range frames {
		sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s", frame[2], frame[3], prev))
		want := hex.EncodeToString(sum[:])
		assert.Equal(t, want, frame[1], "frame %d id does not continue the chain", i)
		prev = frame[1]
	}
}

// TestSSEWriter_SeedsDifferPerStream guards against id collisions
// between concurrent edit streams.
func TestSSEWriter_SeedsDifferPerStream(t *testing.T) {
	w1, err := NewSSEWriter(httptest.NewRecorder())
	require.NoError(t, err)
	w2, err := NewSSEWriter(httptest.NewRecorder())
	require.NoError(t, err)

	assert.NotEqual(t, w1.(*sseWriter).prevHash, w2.(*sseWriter).prevHash)
}

// TestSSEWriter_KeepAliveDoesNotAdvanceChain verifies pings are plain
// comments between frames: the second event still chains directly off
// the first.
func TestSSEWriter_KeepAliveDoesNotAdvanceChain(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteProgress(datatypes.ProgressEvent{Step: datatypes.StepPlanning}))
	require.NoError(t, w.WriteKeepAlive())
	require.NoError(t, w.WriteProgress(datatypes.ProgressEvent{Step: datatypes.StepComplete}))

	assert.Contains(t, rec.Body.String(), ": ping\n\n")

	frames := frameRe.FindAllStringSubmatch(rec.Body.String(), -1)
	require.Len(t, frames, 2)

	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s", frames[1][2], frames[1][3], frames[0][1]))
	assert.Equal(t, hex.EncodeToString(sum[:]), frames[1][1])
}

// TestSSEWriter_ConcurrentWrites verifies frames stay intact when the
// workflow goroutine and the keep-alive ticker write at once.
func TestSSEWriter_ConcurrentWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)
	seed := w.(*sseWriter).prevHash

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = w.WriteProgress(datatypes.ProgressEvent{Step: datatypes.StepProcessing})
		}()
		go func() {
			defer wg.Done()
			_ = w.WriteKeepAlive()
		}()
	}
	wg.Wait()

	frames := frameRe.FindAllStringSubmatch(rec.Body.String(), -1)
	assert.Len(t, frames, 20)

	prev := seed
	for i, frame := range frames {
		sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s", frame[2], frame[3], prev))
		assert.Equal(t, hex.EncodeToString(sum[:]), frame[1], "frame %d broke the chain", i)
		prev = frame[1]
	}
}

func TestSetSSEHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSSEHeaders(rec)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}

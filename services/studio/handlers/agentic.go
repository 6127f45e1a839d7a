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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/snapstudio/pkg/imaging"
	"github.com/kestrelworks/snapstudio/services/agentic"
	"github.com/kestrelworks/snapstudio/services/aiclient"
	"github.com/kestrelworks/snapstudio/services/history"
	"github.com/kestrelworks/snapstudio/services/studio/datatypes"
	"github.com/kestrelworks/snapstudio/services/studio/observability"
)

const (
	// keepAliveInterval paces SSE comment pings during long model calls.
	// Below common proxy idle timeouts (Nginx default 60s, ALB 60s).
	keepAliveInterval = 15 * time.Second

	// thumbnailMaxDim bounds the preview stored in the edit journal.
	thumbnailMaxDim = 256
)

// AgenticEdit serves POST /api/agentic/edit: the full self-checking
// edit workflow streamed over SSE.
//
// # Description
//
// The response is an event stream. "progress" events report each
// workflow phase; the terminal "complete" event carries the final
// image, or an "error" event terminates a failed stream. Closing the
// request connection cancels the workflow.
func (h *Handler) AgenticEdit(c *gin.Context) {
	var req datatypes.AgenticEditRequest
	if !bindAndValidate(c, &req, func() error {
		req.EnsureDefaults()
		return req.Validate()
	}) {
		h.metrics.RecordError(observability.EndpointAgenticEdit, observability.ErrorCodeValidation)
		return
	}

	h.streamEdit(c, observability.EndpointAgenticEdit, streamRequest{
		sourceImage:     req.SourceImage,
		maskImage:       req.MaskImage,
		prompt:          req.Prompt,
		maxIterations:   req.MaxIterations,
		referencePoints: req.ClientReferencePoints(),
		shapes:          req.ClientShapes(),
		completeMessage: "Edit completed successfully!",
	})
}

// streamRequest is the normalized input of the two streaming edit
// endpoints.
type streamRequest struct {
	sourceImage     string
	maskImage       *string
	prompt          string
	maxIterations   int
	referencePoints []aiclient.ReferencePoint
	shapes          []aiclient.Shape
	completeMessage string
}

// streamEdit decodes the payloads, runs the edit workflow, and streams
// its progress. Shared by AgenticEdit and Inpaint.
func (h *Handler) streamEdit(c *gin.Context, endpoint observability.Endpoint, req streamRequest) {
	start := time.Now()

	if h.planner == nil || h.generator == nil {
		respondError(c, http.StatusServiceUnavailable, "Edit models not configured", "")
		return
	}

	source, mask, ok := h.decodeEditImages(c, endpoint, req.sourceImage, req.maskImage)
	if !ok {
		return
	}

	SetSSEHeaders(c.Writer)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		h.metrics.RecordError(endpoint, observability.ErrorCodeInternal)
		respondError(c, http.StatusInternalServerError, "Streaming not supported", err.Error())
		return
	}

	h.metrics.StreamOpened(endpoint)
	defer h.metrics.StreamClosed(endpoint)

	stopPing := make(chan struct{})
	defer close(stopPing)
	go h.keepAlive(writer, endpoint, stopPing)

	maxIter := req.maxIterations
	_ = writer.WriteProgress(datatypes.ProgressEvent{
		Step:        datatypes.StepPlanning,
		Message:     "Sending planning request to AI...",
		Prompt:      req.prompt,
		Iteration:   &datatypes.IterationInfo{Current: 0, Max: maxIter},
		NewLogEntry: true,
	})

	opts := h.editOpts
	opts.MaxIterations = maxIter
	ctrl := agentic.NewController(h.planner, h.generator, opts)

	result, err := ctrl.Run(c.Request.Context(), agentic.Request{
		Source:          source,
		Mask:            mask,
		Instruction:     req.prompt,
		ReferencePoints: req.referencePoints,
		Shapes:          req.shapes,
	}, &progressSink{writer: writer})
	if err != nil {
		code := observability.ErrorCodeModel
		if isCanceled(c, err) {
			code = observability.ErrorCodeCanceled
			h.metrics.RecordDisconnect(endpoint)
		}
		h.metrics.RecordError(endpoint, code)
		h.metrics.RecordRequest(endpoint, observability.StatusError, time.Since(start))
		_ = writer.WriteError("Edit failed: "+err.Error(), "")
		return
	}

	imageData, err := imaging.EncodePNGDataURL(result.Image)
	if err != nil {
		h.metrics.RecordError(endpoint, observability.ErrorCodeInternal)
		h.metrics.RecordRequest(endpoint, observability.StatusError, time.Since(start))
		_ = writer.WriteError("Could not encode result image", err.Error())
		return
	}

	_ = writer.WriteProgress(datatypes.ProgressEvent{
		Step:      datatypes.StepComplete,
		Message:   req.completeMessage,
		Iteration: &datatypes.IterationInfo{Current: result.Iterations, Max: maxIter},
	})
	_ = writer.WriteComplete(datatypes.AgenticEditResponse{
		ImageData:   imageData,
		Iterations:  result.Iterations,
		FinalPrompt: result.FinalInstruction,
	})

	h.metrics.RecordIterations(result.Iterations)
	h.metrics.RecordRequest(endpoint, observability.StatusOK, time.Since(start))
	h.journalResult(req.prompt, result, start)
}

// keepAlive pings the stream until stop closes, so intermediaries do
// not drop the connection while a model call runs.
func (h *Handler) keepAlive(w SSEWriter, endpoint observability.Endpoint, stop <-chan struct{}) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := w.WriteKeepAlive(); err != nil {
				return
			}
			h.metrics.RecordKeepAlive(endpoint)
		}
	}
}

// journalResult records a completed workflow in the edit journal. Runs
// on a detached context: the request context is often already canceled
// once the client has its result and closes the connection.
func (h *Handler) journalResult(prompt string, result *agentic.Result, start time.Time) {
	if h.journal == nil {
		return
	}

	rec := &history.Record{
		StartedAt:   start.UTC(),
		Prompt:      prompt,
		FinalPrompt: result.FinalInstruction,
		Iterations:  result.Iterations,
		Outcome:     string(result.Outcome),
		Reasoning:   result.Reasoning,
		DurationMS:  time.Since(start).Milliseconds(),
	}
	if thumb, err := imaging.EncodePNGDataURL(imaging.Thumbnail(result.Image, thumbnailMaxDim)); err == nil {
		rec.ThumbnailDataURL = thumb
	}

	if err := h.journal.Put(context.Background(), rec); err != nil {
		slog.Warn("Failed to journal edit session", "error", err)
	}
}

// isCanceled reports whether the failure stems from the client going
// away rather than the workflow itself.
func isCanceled(c *gin.Context, err error) bool {
	return c.Request.Context().Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// =============================================================================
// Progress Adapter
// =============================================================================

// progressSink adapts workflow notifications onto the SSE protocol.
// Publish runs on the workflow goroutine; the writer serializes the
// actual writes against the keep-alive ticker.
type progressSink struct {
	writer SSEWriter
}

func (s *progressSink) Publish(event agentic.ProgressEvent) {
	wire, ok := translateProgress(event)
	if !ok {
		return
	}
	if err := s.writer.WriteProgress(wire); err != nil {
		slog.Debug("Dropping progress event, stream write failed",
			"step", event.Step, "error", err)
	}
}

// translateProgress maps a workflow step onto the frontend's protocol.
// Workflow-terminal steps map to "processing"; the endpoint itself
// emits the single "complete" step after the stream's payload is ready.
func translateProgress(event agentic.ProgressEvent) (datatypes.ProgressEvent, bool) {
	wire := datatypes.ProgressEvent{Message: event.Message}
	if event.Attempt > 0 {
		wire.Iteration = &datatypes.IterationInfo{Current: event.Attempt, Max: event.Max}
	}

	switch event.Step {
	case agentic.StepPlanning:
		wire.Step = datatypes.StepPlanning
		wire.NewLogEntry = true
	case agentic.StepGenerating:
		wire.Step = datatypes.StepCallingAPI
		wire.RawOutput = event.Instruction
	case agentic.StepEvaluating:
		wire.Step = datatypes.StepSelfChecking
		wire.IterationImage = encodeProgressImage(event)
	case agentic.StepRevising:
		wire.Step = datatypes.StepIterating
		wire.RawOutput = event.Instruction
	case agentic.StepComplete:
		wire.Step = datatypes.StepProcessing
		wire.IterationImage = encodeProgressImage(event)
	case agentic.StepError:
		wire.Step = datatypes.StepError
		info := &datatypes.ErrorInfo{Message: event.Message}
		if event.Err != nil {
			info.Details = event.Err.Error()
		}
		wire.Error = info
	default:
		return datatypes.ProgressEvent{}, false
	}
	return wire, true
}

// encodeProgressImage renders the event's candidate for the stream, or
// "" when absent or unencodable. The frontend shows each candidate as
// the edit iterates.
func encodeProgressImage(event agentic.ProgressEvent) string {
	if event.Image == nil {
		return ""
	}
	dataURL, err := imaging.EncodePNGDataURL(event.Image)
	if err != nil {
		slog.Warn("Could not encode iteration image for stream", "error", err)
		return ""
	}
	return dataURL
}

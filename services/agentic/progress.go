// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agentic

import (
	"image"
	"log/slog"
)

// Step identifies a phase of the edit loop in progress notifications.
type Step string

const (
	StepPlanning   Step = "planning"
	StepGenerating Step = "generating"
	StepEvaluating Step = "evaluating"
	StepRevising   Step = "revising"
	StepComplete   Step = "complete"
	StepError      Step = "error"
)

// ProgressEvent describes one step notification. Attempt and Max are
// 1-based and only set for iteration-scoped steps. Image carries the
// candidate under evaluation or the final result, when available.
type ProgressEvent struct {
	Step        Step
	Message     string
	Attempt     int
	Max         int
	Instruction string
	Image       *image.RGBA
	Err         error
}

// ProgressSink receives step notifications from the edit loop. Delivery
// is advisory: implementations must not block, and a panicking sink is
// contained without affecting the run.
type ProgressSink interface {
	Publish(event ProgressEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(ProgressEvent) {}

func emit(sink ProgressSink, event ProgressEvent) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Progress sink panicked", "step", event.Step, "panic", r)
		}
	}()
	sink.Publish(event)
}

// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// ProgressStep names the workflow phase a streamed event belongs to.
// The editor frontend keys its status display off these strings.
type ProgressStep string

const (
	StepIdle         ProgressStep = "idle"
	StepPlanning     ProgressStep = "planning"
	StepCallingAPI   ProgressStep = "calling_api"
	StepProcessing   ProgressStep = "processing"
	StepSelfChecking ProgressStep = "self_checking"
	StepIterating    ProgressStep = "iterating"
	StepComplete     ProgressStep = "complete"
	StepError        ProgressStep = "error"
)

// IterationInfo reports the current attempt against the budget.
type IterationInfo struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// ErrorInfo is the error payload carried by "error" events.
type ErrorInfo struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ProgressEvent is the data payload of an SSE "progress" event. Only
// the fields relevant to the step are set; omitted fields stay off the
// wire so the frontend can merge events into its state incrementally.
//
// NewLogEntry tells the frontend to open a fresh log row instead of
// appending to the previous one.
type ProgressEvent struct {
	Step              ProgressStep   `json:"step"`
	Message           string         `json:"message,omitempty"`
	ThinkingTextDelta string         `json:"thinkingTextDelta,omitempty"`
	Prompt            string         `json:"prompt,omitempty"`
	RawOutput         string         `json:"rawOutput,omitempty"`
	Iteration         *IterationInfo `json:"iteration,omitempty"`
	Error             *ErrorInfo     `json:"error,omitempty"`
	IterationImage    string         `json:"iterationImage,omitempty"`
	NewLogEntry       bool           `json:"newLogEntry,omitempty"`
}

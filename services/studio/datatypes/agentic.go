// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire types for the studio HTTP API.
//
// The JSON field names follow the editor frontend's streaming protocol
// (camelCase), so the Go backend is a drop-in peer for clients of the
// original service. This file contains the agentic edit workflow types;
// generation and service types live in generate.go, streaming progress
// events in events.go.
package datatypes

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kestrelworks/snapstudio/services/aiclient"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxPromptBytes is the maximum size of an edit instruction.
	// Byte length, not rune count, to bound request memory.
	MaxPromptBytes = 4096

	// DefaultMaxIterations is used when a request omits maxIterations.
	DefaultMaxIterations = 3

	// MaxIterationsCap bounds the per-request iteration budget.
	MaxIterationsCap = 5
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// editValidate is the validator instance for studio datatypes.
// Initialized in init() with the custom validators below.
var editValidate *validator.Validate

func init() {
	editValidate = validator.New()

	_ = editValidate.RegisterValidation("dataurl", validateDataURL)
	_ = editValidate.RegisterValidation("promptbytes", validatePromptBytes)
}

// validateDataURL accepts strings carrying an inline image payload
// ("data:image/png;base64,..."). Decoding is left to pkg/imaging; the
// wire check only rejects plain URLs and raw base64 early.
func validateDataURL(fl validator.FieldLevel) bool {
	return strings.HasPrefix(fl.Field().String(), "data:")
}

// validatePromptBytes bounds instruction fields to MaxPromptBytes.
func validatePromptBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPromptBytes
}

// =============================================================================
// Canvas Annotations
// =============================================================================

// ReferencePoint is a labeled marker the user placed on the canvas for
// spatial commands ("move the icon from A to B").
type ReferencePoint struct {
	Label string  `json:"label" validate:"required"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// ToClient converts the wire point to the model client's form.
func (p ReferencePoint) ToClient() aiclient.ReferencePoint {
	return aiclient.ReferencePoint{Label: p.Label, X: p.X, Y: p.Y}
}

// Shape is a drawn annotation (rectangle, arrow, freehand stroke, text)
// the planner describes to the model as edit guidance. Fields mirror the
// canvas element model; most are optional and depend on Type.
type Shape struct {
	Type              string   `json:"type" validate:"required"`
	StrokeColor       string   `json:"strokeColor,omitempty"`
	BackgroundColor   string   `json:"backgroundColor,omitempty"`
	X                 float64  `json:"x"`
	Y                 float64  `json:"y"`
	Width             float64  `json:"width"`
	Height            float64  `json:"height"`
	StartX            *float64 `json:"startX,omitempty"`
	StartY            *float64 `json:"startY,omitempty"`
	EndX              *float64 `json:"endX,omitempty"`
	EndY              *float64 `json:"endY,omitempty"`
	HasStartArrowhead bool     `json:"hasStartArrowhead,omitempty"`
	HasEndArrowhead   bool     `json:"hasEndArrowhead,omitempty"`
	PointCount        int      `json:"pointCount,omitempty"`
	TextContent       string   `json:"textContent,omitempty"`
	FontSize          float64  `json:"fontSize,omitempty"`
}

// ToClient converts the wire shape to the model client's form.
func (s Shape) ToClient() aiclient.Shape {
	return aiclient.Shape{
		Type:              s.Type,
		StrokeColor:       s.StrokeColor,
		BackgroundColor:   s.BackgroundColor,
		X:                 s.X,
		Y:                 s.Y,
		Width:             s.Width,
		Height:            s.Height,
		StartX:            s.StartX,
		StartY:            s.StartY,
		EndX:              s.EndX,
		EndY:              s.EndY,
		HasStartArrowhead: s.HasStartArrowhead,
		HasEndArrowhead:   s.HasEndArrowhead,
		PointCount:        s.PointCount,
		TextContent:       s.TextContent,
		FontSize:          s.FontSize,
	}
}

// =============================================================================
// Agentic Edit Request
// =============================================================================

// AgenticEditRequest is the body of POST /api/agentic/edit.
//
// # Fields
//
//   - SourceImage: Required. The screenshot to edit as a base64 data URL.
//   - Prompt: Required. The user's edit instruction, at most 4096 bytes.
//   - MaskImage: Optional data URL restricting the edit to the white
//     area. Must match the source dimensions (checked after decoding).
//   - ReferencePoints: Optional labeled markers for spatial commands.
//   - Shapes: Optional drawn annotations described to the planner.
//   - MaxIterations: Optional self-check budget, 1 to 5. Zero means
//     DefaultMaxIterations.
//
// # Validation
//
// Call EnsureDefaults then Validate after binding. Image payloads are
// only prefix-checked here; pkg/imaging enforces size and pixel caps
// when decoding.
type AgenticEditRequest struct {
	SourceImage     string           `json:"sourceImage" validate:"required,dataurl"`
	Prompt          string           `json:"prompt" validate:"required,promptbytes"`
	MaskImage       *string          `json:"maskImage,omitempty" validate:"omitempty,dataurl"`
	ReferencePoints []ReferencePoint `json:"referencePoints,omitempty" validate:"omitempty,dive"`
	Shapes          []Shape          `json:"shapes,omitempty" validate:"omitempty,dive"`
	MaxIterations   int              `json:"maxIterations,omitempty" validate:"gte=0,lte=5"`
}

// Validate checks the request against its validator tags.
func (r *AgenticEditRequest) Validate() error {
	return editValidate.Struct(r)
}

// EnsureDefaults fills optional fields the client omitted.
func (r *AgenticEditRequest) EnsureDefaults() {
	if r.MaxIterations == 0 {
		r.MaxIterations = DefaultMaxIterations
	}
}

// ClientReferencePoints converts the annotation markers for the planner.
func (r *AgenticEditRequest) ClientReferencePoints() []aiclient.ReferencePoint {
	if len(r.ReferencePoints) == 0 {
		return nil
	}
	out := make([]aiclient.ReferencePoint, len(r.ReferencePoints))
	for i, p := range r.ReferencePoints {
		out[i] = p.ToClient()
	}
	return out
}

// ClientShapes converts the drawn annotations for the planner.
func (r *AgenticEditRequest) ClientShapes() []aiclient.Shape {
	if len(r.Shapes) == 0 {
		return nil
	}
	out := make([]aiclient.Shape, len(r.Shapes))
	for i, s := range r.Shapes {
		out[i] = s.ToClient()
	}
	return out
}

// =============================================================================
// Agentic Edit Response
// =============================================================================

// AgenticEditResponse is the payload of the terminal SSE "complete"
// event: the final raster, the number of generation calls, and the
// instruction that produced the result.
type AgenticEditResponse struct {
	ImageData   string `json:"imageData"`
	Iterations  int    `json:"iterations"`
	FinalPrompt string `json:"finalPrompt"`
}

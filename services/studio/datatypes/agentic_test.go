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

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDataURL = "data:image/png;base64,aGVsbG8="

func validEditRequest() *AgenticEditRequest {
	return &AgenticEditRequest{
		SourceImage: testDataURL,
		Prompt:      "make the button blue",
	}
}

// TestAgenticEditRequest_Valid verifies a minimal request passes validation.
func TestAgenticEditRequest_Valid(t *testing.T) {
	req := validEditRequest()
	req.EnsureDefaults()

	require.NoError(t, req.Validate())
	assert.Equal(t, DefaultMaxIterations, req.MaxIterations)
}

// TestAgenticEditRequest_MissingSource verifies sourceImage is required.
func TestAgenticEditRequest_MissingSource(t *testing.T) {
	req := validEditRequest()
	req.SourceImage = ""

	assert.Error(t, req.Validate())
}

// TestAgenticEditRequest_PlainURLRejected verifies only inline data URLs
// are accepted as image payloads.
func TestAgenticEditRequest_PlainURLRejected(t *testing.T) {
	req := validEditRequest()
	req.SourceImage = "https://example.com/shot.png"

	assert.Error(t, req.Validate())
}

// TestAgenticEditRequest_PromptBounds verifies the prompt byte limit.
func TestAgenticEditRequest_PromptBounds(t *testing.T) {
	req := validEditRequest()

	req.Prompt = strings.Repeat("a", MaxPromptBytes)
	assert.NoError(t, req.Validate())

	req.Prompt = strings.Repeat("a", MaxPromptBytes+1)
	assert.Error(t, req.Validate())

	req.Prompt = ""
	assert.Error(t, req.Validate())
}

// TestAgenticEditRequest_MaskValidation verifies an optional mask still
// has to be a data URL when present.
func TestAgenticEditRequest_MaskValidation(t *testing.T) {
	req := validEditRequest()

	mask := testDataURL
	req.MaskImage = &mask
	assert.NoError(t, req.Validate())

	bad := "/tmp/mask.png"
	req.MaskImage = &bad
	assert.Error(t, req.Validate())
}

// TestAgenticEditRequest_IterationBounds verifies the budget cap.
func TestAgenticEditRequest_IterationBounds(t *testing.T) {
	req := validEditRequest()

	req.MaxIterations = MaxIterationsCap
	assert.NoError(t, req.Validate())

	req.MaxIterations = MaxIterationsCap + 1
	assert.Error(t, req.Validate())

	req.MaxIterations = -1
	assert.Error(t, req.Validate())
}

// TestAgenticEditRequest_EnsureDefaultsKeepsExplicit verifies a client
// choice survives the defaulting pass.
func TestAgenticEditRequest_EnsureDefaultsKeepsExplicit(t *testing.T) {
	req := validEditRequest()
	req.MaxIterations = 2
	req.EnsureDefaults()

	assert.Equal(t, 2, req.MaxIterations)
}

// TestAgenticEditRequest_ReferencePointLabelRequired verifies dive
// validation reaches the nested points.
func TestAgenticEditRequest_ReferencePointLabelRequired(t *testing.T) {
	req := validEditRequest()
	req.ReferencePoints = []ReferencePoint{{X: 10, Y: 20}}

	assert.Error(t, req.Validate())

	req.ReferencePoints[0].Label = "A"
	assert.NoError(t, req.Validate())
}

// TestClientReferencePoints verifies the conversion for the planner.
func TestClientReferencePoints(t *testing.T) {
	req := validEditRequest()
	req.ReferencePoints = []ReferencePoint{
		{Label: "A", X: 120, Y: 48},
		{Label: "B", X: 300, Y: 52.5},
	}

	pts := req.ClientReferencePoints()
	require.Len(t, pts, 2)
	assert.Equal(t, "A", pts[0].Label)
	assert.Equal(t, 120.0, pts[0].X)
	assert.Equal(t, 52.5, pts[1].Y)

	req.ReferencePoints = nil
	assert.Nil(t, req.ClientReferencePoints())
}

// TestClientShapes verifies the conversion keeps optional endpoints.
func TestClientShapes(t *testing.T) {
	startX := 10.0
	endX := 90.0
	req := validEditRequest()
	req.Shapes = []Shape{
		{
			Type:            "arrow",
			StrokeColor:     "#ff0000",
			StartX:          &startX,
			EndX:            &endX,
			HasEndArrowhead: true,
		},
		{Type: "text", TextContent: "Delete this", FontSize: 16},
	}

	shapes := req.ClientShapes()
	require.Len(t, shapes, 2)
	assert.Equal(t, "arrow", shapes[0].Type)
	require.NotNil(t, shapes[0].StartX)
	assert.Equal(t, 10.0, *shapes[0].StartX)
	assert.True(t, shapes[0].HasEndArrowhead)
	assert.Nil(t, shapes[0].StartY)
	assert.Equal(t, "Delete this", shapes[1].TextContent)
}

// TestProgressEvent_OmitsEmptyFields verifies a bare event carries only
// its step, so the frontend's incremental merge sees no stale keys.
func TestProgressEvent_OmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(ProgressEvent{Step: StepPlanning})
	require.NoError(t, err)
	assert.Equal(t, `{"step":"planning"}`, string(raw))
}

// TestProgressEvent_WireNames verifies the camelCase protocol keys.
func TestProgressEvent_WireNames(t *testing.T) {
	evt := ProgressEvent{
		Step:           StepCallingAPI,
		Message:        "Generating image (attempt 1/3)...",
		Iteration:      &IterationInfo{Current: 1, Max: 3},
		IterationImage: testDataURL,
		NewLogEntry:    true,
	}

	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "calling_api", decoded["step"])
	assert.Contains(t, decoded, "iteration")
	assert.Contains(t, decoded, "iterationImage")
	assert.Contains(t, decoded, "newLogEntry")

	iter := decoded["iteration"].(map[string]any)
	assert.Equal(t, 1.0, iter["current"])
	assert.Equal(t, 3.0, iter["max"])
}

// TestErrorInfo_DetailsOptional verifies details stay off the wire when
// empty.
func TestErrorInfo_DetailsOptional(t *testing.T) {
	raw, err := json.Marshal(ErrorInfo{Message: "Generation failed"})
	require.NoError(t, err)
	assert.Equal(t, `{"message":"Generation failed"}`, string(raw))
}

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

// This file contains the direct generation endpoints' types plus the
// service status and echo types. The agentic workflow types live in
// agentic.go.

// =============================================================================
// Text Generation
// =============================================================================

// GenerateTextRequest is the body of POST /api/ai/generate, a direct
// text call that bypasses the edit workflow.
type GenerateTextRequest struct {
	Prompt         string `json:"prompt" validate:"required,promptbytes"`
	SystemPrompt   string `json:"systemPrompt,omitempty" validate:"promptbytes"`
	ThinkingBudget int32  `json:"thinkingBudget,omitempty" validate:"gte=0,lte=32768"`
}

// Validate checks the request against its validator tags.
func (r *GenerateTextRequest) Validate() error {
	return editValidate.Struct(r)
}

// GenerateTextResponse carries the model's reply and the model that
// produced it.
type GenerateTextResponse struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// =============================================================================
// Image Generation
// =============================================================================

// GenerateImageRequest is the body of POST /api/images/generate. With
// only a prompt it is a text-to-image call; with SourceImage set it is
// a single-shot edit without the self-check loop.
type GenerateImageRequest struct {
	Prompt      string  `json:"prompt" validate:"required,promptbytes"`
	SourceImage *string `json:"sourceImage,omitempty" validate:"omitempty,dataurl"`
	MaskImage   *string `json:"maskImage,omitempty" validate:"omitempty,dataurl"`
	Width       int     `json:"width,omitempty" validate:"gte=0,lte=4096"`
	Height      int     `json:"height,omitempty" validate:"gte=0,lte=4096"`
}

// Validate checks the request against its validator tags.
func (r *GenerateImageRequest) Validate() error {
	return editValidate.Struct(r)
}

// GenerateImageResponse carries the generated raster as a data URL.
type GenerateImageResponse struct {
	ImageData string `json:"imageData"`
}

// =============================================================================
// Inpainting
// =============================================================================

// InpaintRequest is the body of POST /api/images/inpaint. The mask is
// required; white pixels mark the area to repaint. The response is the
// same SSE stream as the agentic edit endpoint.
type InpaintRequest struct {
	SourceImage   string `json:"sourceImage" validate:"required,dataurl"`
	MaskImage     string `json:"maskImage" validate:"required,dataurl"`
	Prompt        string `json:"prompt" validate:"required,promptbytes"`
	MaxIterations int    `json:"maxIterations,omitempty" validate:"gte=0,lte=5"`
}

// Validate checks the request against its validator tags.
func (r *InpaintRequest) Validate() error {
	return editValidate.Struct(r)
}

// EnsureDefaults fills optional fields the client omitted.
func (r *InpaintRequest) EnsureDefaults() {
	if r.MaxIterations == 0 {
		r.MaxIterations = DefaultMaxIterations
	}
}

// =============================================================================
// Service Status
// =============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Service       string  `json:"service"`
	Version       string  `json:"version"`
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	ModelsReady   bool    `json:"modelsReady"`
}

// RootResponse is the body of GET /, a small directory of the API.
type RootResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

// =============================================================================
// Echo
// =============================================================================

// EchoRequest is the body of POST /api/echo, a connectivity check used
// by the frontend during setup.
type EchoRequest struct {
	Message string         `json:"message" validate:"required,promptbytes"`
	Data    map[string]any `json:"data,omitempty"`
}

// Validate checks the request against its validator tags.
func (r *EchoRequest) Validate() error {
	return editValidate.Struct(r)
}

// EchoResponse mirrors the request back with server identity attached.
type EchoResponse struct {
	Received  string         `json:"received"`
	Data      map[string]any `json:"data,omitempty"`
	Server    string         `json:"server"`
	Timestamp string         `json:"timestamp"`
}

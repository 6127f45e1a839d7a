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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/snapstudio/services/aiclient"
	"github.com/kestrelworks/snapstudio/services/studio/datatypes"
	"github.com/kestrelworks/snapstudio/services/studio/observability"
)

// GenerateText serves POST /api/ai/generate, a direct text call that
// bypasses the edit workflow.
func (h *Handler) GenerateText(c *gin.Context) {
	start := time.Now()

	var req datatypes.GenerateTextRequest
	if !bindAndValidate(c, &req, req.Validate) {
		h.metrics.RecordError(observability.EndpointTextGenerate, observability.ErrorCodeValidation)
		return
	}
	if h.textGen == nil {
		respondError(c, http.StatusServiceUnavailable, "Text model not configured", "")
		return
	}

	text, err := h.textGen.GenerateText(c.Request.Context(), aiclient.TextRequest{
		Prompt:         req.Prompt,
		SystemPrompt:   req.SystemPrompt,
		ThinkingBudget: int(req.ThinkingBudget),
	})
	if err != nil {
		h.metrics.RecordError(observability.EndpointTextGenerate, observability.ErrorCodeModel)
		h.metrics.RecordRequest(observability.EndpointTextGenerate, observability.StatusError, time.Since(start))
		respondError(c, http.StatusBadGateway, "Text generation failed", err.Error())
		return
	}

	h.metrics.RecordRequest(observability.EndpointTextGenerate, observability.StatusOK, time.Since(start))
	c.JSON(http.StatusOK, datatypes.GenerateTextResponse{
		Text:  text,
		Model: aiclient.ModelPlanning,
	})
}

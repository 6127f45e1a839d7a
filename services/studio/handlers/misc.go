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

	"github.com/kestrelworks/snapstudio/services/studio/datatypes"
	"github.com/kestrelworks/snapstudio/services/studio/observability"
)

const serviceName = "snapstudio"

// HealthCheck serves GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, datatypes.HealthResponse{
		Status:        "healthy",
		Service:       serviceName,
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: time.Since(h.started).Seconds(),
		ModelsReady:   h.planner != nil && h.generator != nil,
	})
}

// Root serves GET /, a small directory of the API.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, datatypes.RootResponse{
		Name:    "SnapStudio API",
		Version: h.version,
		Status:  "running",
		Endpoints: map[string]string{
			"health":          "/health",
			"echo":            "/api/echo",
			"generate":        "/api/ai/generate",
			"images_generate": "/api/images/generate",
			"images_inpaint":  "/api/images/inpaint",
			"agentic_edit":    "/api/agentic/edit",
			"history":         "/api/agentic/history",
			"metrics":         "/metrics",
		},
	})
}

// Echo serves POST /api/echo. The frontend uses it as a connectivity
// check during setup.
func (h *Handler) Echo(c *gin.Context) {
	var req datatypes.EchoRequest
	if !bindAndValidate(c, &req, req.Validate) {
		h.metrics.RecordError(observability.EndpointEcho, observability.ErrorCodeValidation)
		return
	}

	c.JSON(http.StatusOK, datatypes.EchoResponse{
		Received:  req.Message,
		Data:      req.Data,
		Server:    serviceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

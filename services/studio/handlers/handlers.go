// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP handlers of the studio API:
// service status, direct generation endpoints, the streaming agentic
// edit workflow, and the edit journal.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/snapstudio/services/agentic"
	"github.com/kestrelworks/snapstudio/services/aiclient"
	"github.com/kestrelworks/snapstudio/services/history"
	"github.com/kestrelworks/snapstudio/services/studio/datatypes"
	"github.com/kestrelworks/snapstudio/services/studio/observability"
)

// Handler carries the dependencies of the studio API. The model-facing
// dependencies are interfaces so tests can inject fakes; the journal
// and metrics are optional and nil simply disables them.
type Handler struct {
	planner   aiclient.PlanningClient
	generator aiclient.GenerationClient
	textGen   aiclient.TextClient
	imageGen  aiclient.ImageGenerator
	journal   *history.Store
	metrics   *observability.Metrics
	editOpts  agentic.Options
	version   string
	started   time.Time
}

// Config wires a Handler.
type Config struct {
	Planner     aiclient.PlanningClient
	Generator   aiclient.GenerationClient
	TextGen     aiclient.TextClient
	ImageGen    aiclient.ImageGenerator
	Journal     *history.Store
	Metrics     *observability.Metrics
	EditOptions agentic.Options
	Version     string
}

// New builds the handler set.
func New(cfg Config) *Handler {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		planner:   cfg.Planner,
		generator: cfg.Generator,
		textGen:   cfg.TextGen,
		imageGen:  cfg.ImageGen,
		journal:   cfg.Journal,
		metrics:   cfg.Metrics,
		editOpts:  cfg.EditOptions,
		version:   version,
		started:   time.Now(),
	}
}

// respondError writes a structured error body in the same shape the
// SSE "error" events use.
func respondError(c *gin.Context, status int, message, details string) {
	c.JSON(status, gin.H{"error": datatypes.ErrorInfo{Message: message, Details: details}})
}

// bindAndValidate decodes the JSON body into req and runs its validate
// func. Returns false after writing the 400 response.
func bindAndValidate(c *gin.Context, req any, validate func() error) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	if err := validate(); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return false
	}
	return true
}

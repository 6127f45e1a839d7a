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
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/snapstudio/services/history"
	"github.com/kestrelworks/snapstudio/services/studio/observability"
)

// ListHistory serves GET /api/agentic/history. The optional limit query
// parameter caps the result; omitted means the journal's default.
func (h *Handler) ListHistory(c *gin.Context) {
	if h.journal == nil {
		respondError(c, http.StatusServiceUnavailable, "Edit journal not configured", "")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.metrics.RecordError(observability.EndpointHistory, observability.ErrorCodeValidation)
			respondError(c, http.StatusBadRequest, "limit must be a positive integer", "")
			return
		}
		limit = n
	}

	records, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		h.metrics.RecordError(observability.EndpointHistory, observability.ErrorCodeInternal)
		respondError(c, http.StatusInternalServerError, "Could not read edit history", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// GetHistory serves GET /api/agentic/history/:id.
func (h *Handler) GetHistory(c *gin.Context) {
	if h.journal == nil {
		respondError(c, http.StatusServiceUnavailable, "Edit journal not configured", "")
		return
	}

	rec, err := h.journal.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		respondError(c, http.StatusNotFound, "No such edit session", "")
		return
	}
	if err != nil {
		h.metrics.RecordError(observability.EndpointHistory, observability.ErrorCodeInternal)
		respondError(c, http.StatusInternalServerError, "Could not read edit history", err.Error())
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package studio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Config Tests
// =============================================================================

// TestApplyConfigDefaults_AllDefaults verifies default values are applied.
func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	result := applyConfigDefaults(Config{})

	assert.Equal(t, 12310, result.Port, "default port should be 12310")
	assert.Equal(t, "gemini", result.PlannerBackend, "default planner backend should be gemini")
	assert.Equal(t, "./data/history", result.HistoryPath, "default history path should be set")
	assert.Empty(t, result.OTelEndpoint, "tracing should be off by default")
}

// TestApplyConfigDefaults_PreservesCustomValues verifies custom values
// are not overwritten.
func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := Config{
		Port:           8080,
		PlannerBackend: "openai",
		HistoryPath:    "/var/lib/snapstudio/history",
		OTelEndpoint:   "collector:4317",
	}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, 8080, result.Port)
	assert.Equal(t, "openai", result.PlannerBackend)
	assert.Equal(t, "/var/lib/snapstudio/history", result.HistoryPath)
	assert.Equal(t, "collector:4317", result.OTelEndpoint)
}

// TestApplyConfigDefaults_TableDriven tests multiple config scenarios.
func TestApplyConfigDefaults_TableDriven(t *testing.T) {
	tests := []struct {
		name            string
		input           Config
		wantPort        int
		wantBackend     string
		wantHistoryPath string
	}{
		{
			name:            "empty config gets all defaults",
			input:           Config{},
			wantPort:        12310,
			wantBackend:     "gemini",
			wantHistoryPath: "./data/history",
		},
		{
			name:            "custom port preserved",
			input:           Config{Port: 9999},
			wantPort:        9999,
			wantBackend:     "gemini",
			wantHistoryPath: "./data/history",
		},
		{
			name:            "in-memory journal needs no path default",
			input:           Config{HistoryInMemory: true},
			wantPort:        12310,
			wantBackend:     "gemini",
			wantHistoryPath: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := applyConfigDefaults(tt.input)

			assert.Equal(t, tt.wantPort, result.Port)
			assert.Equal(t, tt.wantBackend, result.PlannerBackend)
			assert.Equal(t, tt.wantHistoryPath, result.HistoryPath)
		})
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

// newTestService builds a service with no disk or network footprint.
// Model clients may or may not come up depending on the environment's
// API keys; the service is designed to run either way.
func newTestService(t *testing.T, cfg Config) Service {
	t.Helper()
	cfg.HistoryInMemory = true
	cfg.GinMode = gin.TestMode

	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return svc
}

// TestNew_ServesHealthEndpoint wires the full service and drives a
// request through its router.
func TestNew_ServesHealthEndpoint(t *testing.T) {
	svc := newTestService(t, Config{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

// TestNew_TokenGuardsAPIRoutes verifies the auth wiring: probes stay
// open, /api requires the bearer token.
func TestNew_TokenGuardsAPIRoutes(t *testing.T) {
	svc := newTestService(t, Config{APIToken: "test-token"})
	router := svc.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health probe must not require auth")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/agentic/history", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/agentic/history", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestNew_RejectsUnknownPlannerBackend verifies a misconfigured
// backend fails construction instead of silently degrading.
func TestNew_RejectsUnknownPlannerBackend(t *testing.T) {
	_, err := New(context.Background(), Config{
		HistoryInMemory: true,
		PlannerBackend:  "llamacpp",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown planner backend")
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)

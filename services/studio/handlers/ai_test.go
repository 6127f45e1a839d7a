// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// Tests for the direct text generation handler

package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func aiRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.POST("/api/ai/generate", h.GenerateText)
	return router
}

func TestGenerateText_ReturnsModelReply(t *testing.T) {
	textGen := &fakeTextGen{text: "The layout uses a three column grid."}
	router := aiRouter(New(Config{TextGen: textGen}))

	w := performJSON(router, "POST", "/api/ai/generate", map[string]any{
		"prompt":         "describe this layout",
		"systemPrompt":   "You are a UI reviewer.",
		"thinkingBudget": 4096,
	})

	assert.Equal(t, http.StatusOK, w.Code)

	body := decodeJSONBody(t, w)
	assert.Equal(t, "The layout uses a three column grid.", body["text"])
	assert.Equal(t, "gemini-3-flash-preview", body["model"])

	assert.Equal(t, "describe this layout", textGen.last.Prompt)
	assert.Equal(t, "You are a UI reviewer.", textGen.last.SystemPrompt)
	assert.Equal(t, 4096, textGen.last.ThinkingBudget)
}

func TestGenerateText_ModelFailure(t *testing.T) {
	textGen := &fakeTextGen{err: errors.New("deadline exceeded")}
	router := aiRouter(New(Config{TextGen: textGen}))

	w := performJSON(router, "POST", "/api/ai/generate", map[string]any{
		"prompt": "describe this layout",
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Text generation failed")
}

func TestGenerateText_NoClientConfigured(t *testing.T) {
	router := aiRouter(New(Config{}))

	w := performJSON(router, "POST", "/api/ai/generate", map[string]any{
		"prompt": "describe this layout",
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGenerateText_RequiresPrompt(t *testing.T) {
	router := aiRouter(New(Config{TextGen: &fakeTextGen{}}))

	w := performJSON(router, "POST", "/api/ai/generate", map[string]any{
		"thinkingBudget": 1024,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

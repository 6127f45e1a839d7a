// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelworks/snapstudio/services/studio/handlers"
)

// SetupRoutes attaches the studio API to the router. The auth
// middleware guards the /api group only; health, the root directory,
// and metrics stay open for probes and scrapers.
func SetupRoutes(router *gin.Engine, h *handlers.Handler, auth gin.HandlerFunc) {
	router.GET("/health", h.HealthCheck)
	router.GET("/", h.Root)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	if auth != nil {
		api.Use(auth)
	}
	{
		api.POST("/echo", h.Echo)
		api.POST("/ai/generate", h.GenerateText)

		images := api.Group("/images")
		{
			images.POST("/generate", h.GenerateImage)
			images.POST("/inpaint", h.Inpaint)
		}

		agentic := api.Group("/agentic")
		{
			agentic.POST("/edit", h.AgenticEdit)
			agentic.GET("/history", h.ListHistory)
			agentic.GET("/history/:id", h.GetHistory)
		}
	}
}

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
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelworks/snapstudio/pkg/imaging"
	"github.com/kestrelworks/snapstudio/services/studio/datatypes"
	"github.com/kestrelworks/snapstudio/services/studio/observability"
)

// GenerateImage serves POST /api/images/generate. With only a prompt it
// is a text-to-image call; with a source image it is a single-shot edit
// without the self-check loop.
func (h *Handler) GenerateImage(c *gin.Context) {
	start := time.Now()
	endpoint := observability.EndpointImageGenerate

	var req datatypes.GenerateImageRequest
	if !bindAndValidate(c, &req, req.Validate) {
		h.metrics.RecordError(endpoint, observability.ErrorCodeValidation)
		return
	}

	prompt := req.Prompt
	if req.Width > 0 && req.Height > 0 {
		prompt = fmt.Sprintf("%s\n\nThe output image must be %dx%d pixels.", prompt, req.Width, req.Height)
	}

	var (
		result *image.RGBA
		err    error
	)
	if req.SourceImage != nil {
		source, mask, ok := h.decodeEditImages(c, endpoint, *req.SourceImage, req.MaskImage)
		if !ok {
			return
		}
		result, err = h.generator.Edit(c.Request.Context(), source, prompt, mask)
	} else {
		if h.imageGen == nil {
			respondError(c, http.StatusServiceUnavailable, "Image model not configured", "")
			return
		}
		result, err = h.imageGen.Generate(c.Request.Context(), prompt)
	}
	if err != nil {
		h.metrics.RecordError(endpoint, observability.ErrorCodeModel)
		h.metrics.RecordRequest(endpoint, observability.StatusError, time.Since(start))
		respondError(c, http.StatusBadGateway, "Image generation failed", err.Error())
		return
	}

	imageData, err := imaging.EncodePNGDataURL(result)
	if err != nil {
		h.metrics.RecordError(endpoint, observability.ErrorCodeInternal)
		h.metrics.RecordRequest(endpoint, observability.StatusError, time.Since(start))
		respondError(c, http.StatusInternalServerError, "Could not encode result image", err.Error())
		return
	}

	h.metrics.RecordRequest(endpoint, observability.StatusOK, time.Since(start))
	c.JSON(http.StatusOK, datatypes.GenerateImageResponse{ImageData: imageData})
}

// Inpaint serves POST /api/images/inpaint: a masked edit streamed over
// SSE, sharing the agentic workflow. Unlike the edit endpoint the mask
// is required.
func (h *Handler) Inpaint(c *gin.Context) {
	var req datatypes.InpaintRequest
	if !bindAndValidate(c, &req, func() error {
		req.EnsureDefaults()
		return req.Validate()
	}) {
		h.metrics.RecordError(observability.EndpointInpaint, observability.ErrorCodeValidation)
		return
	}

	mask := req.MaskImage
	h.streamEdit(c, observability.EndpointInpaint, streamRequest{
		sourceImage:     req.SourceImage,
		maskImage:       &mask,
		prompt:          req.Prompt,
		maxIterations:   req.MaxIterations,
		completeMessage: "Inpaint completed successfully!",
	})
}

// decodeEditImages decodes a source raster and optional mask, writing
// the 400 response itself on failure. The mask must match the source
// dimensions.
func (h *Handler) decodeEditImages(c *gin.Context, endpoint observability.Endpoint, sourceData string, maskData *string) (*image.RGBA, *image.RGBA, bool) {
	source, _, err := imaging.ParseDataURL(sourceData)
	if err != nil {
		h.metrics.RecordError(endpoint, observability.ErrorCodeDecode)
		respondError(c, http.StatusBadRequest, "Could not decode source image", err.Error())
		return nil, nil, false
	}

	var mask *image.RGBA
	if maskData != nil && *maskData != "" {
		mask, _, err = imaging.ParseDataURL(*maskData)
		if err != nil {
			h.metrics.RecordError(endpoint, observability.ErrorCodeDecode)
			respondError(c, http.StatusBadRequest, "Could not decode mask image", err.Error())
			return nil, nil, false
		}
		if !mask.Bounds().Eq(source.Bounds()) {
			h.metrics.RecordError(endpoint, observability.ErrorCodeValidation)
			respondError(c, http.StatusBadRequest, "Mask dimensions must match the source image", "")
			return nil, nil, false
		}
	}
	return source, mask, true
}

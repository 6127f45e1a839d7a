// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRaster(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// ===== Data URL Parsing =====

func TestParseDataURL_FullURLRoundTrip(t *testing.T) {
	src := testRaster(12, 7, color.RGBA{R: 200, G: 30, B: 90, A: 255})
	url, err := EncodePNGDataURL(src)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	img, mime, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 7, img.Bounds().Dy())
	assert.Equal(t, src.RGBAAt(5, 3), img.RGBAAt(5, 3))
}

func TestParseDataURL_AcceptsBareBase64(t *testing.T) {
	raw, err := EncodePNG(testRaster(4, 4, color.RGBA{A: 255}))
	require.NoError(t, err)

	img, mime, err := ParseDataURL(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime, "mime falls back to the decoded format")
	assert.Equal(t, 4, img.Bounds().Dx())
}

func TestParseDataURL_ReportsDeclaredMIME(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testRaster(6, 6, color.RGBA{R: 255, A: 255}), nil))
	url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	_, mime, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
}

func TestParseDataURL_RejectsMalformedBase64(t *testing.T) {
	_, _, err := ParseDataURL("data:image/png;base64,!!!not-base64!!!")
	assert.Error(t, err)
}

func TestParseDataURL_RejectsNonImagePayload(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("plain text, not pixels"))
	_, _, err := ParseDataURL("data:image/png;base64," + payload)
	assert.Error(t, err)
}

// ===== Raster Conversion =====

func TestToRGBA_PassesThroughRGBA(t *testing.T) {
	src := testRaster(3, 3, color.RGBA{G: 128, A: 255})
	assert.Same(t, src, ToRGBA(src))
}

func TestToRGBA_ConvertsOtherFormats(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	src.SetNRGBA(2, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	out := ToRGBA(src)
	require.NotNil(t, out)
	assert.Equal(t, 5, out.Bounds().Dx())
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, out.RGBAAt(2, 2))
}

// ===== Thumbnails =====

func TestThumbnail_ScalesDownWideImage(t *testing.T) {
	src := testRaster(256, 128, color.RGBA{B: 255, A: 255})
	out := Thumbnail(src, 64)
	assert.Equal(t, 64, out.Bounds().Dx())
	assert.Equal(t, 32, out.Bounds().Dy())
}

func TestThumbnail_ScalesDownTallImage(t *testing.T) {
	src := testRaster(100, 400, color.RGBA{B: 255, A: 255})
	out := Thumbnail(src, 128)
	assert.Equal(t, 32, out.Bounds().Dx())
	assert.Equal(t, 128, out.Bounds().Dy())
}

func TestThumbnail_LeavesSmallImagesAlone(t *testing.T) {
	src := testRaster(50, 40, color.RGBA{R: 255, A: 255})
	out := Thumbnail(src, 128)
	assert.Same(t, src, out)
}

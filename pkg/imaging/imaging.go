// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package imaging converts between the wire representations of screenshots
// (base64 data URLs, PNG/JPEG bytes) and the in-memory RGBA rasters the
// rest of the service operates on.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// Decode limits. Screenshots legitimately get large, but a crafted
// payload must not be able to exhaust memory.
const (
	// MaxEncodedBytes caps the size of an encoded image payload.
	MaxEncodedBytes = 32 << 20 // 32 MiB

	// MaxPixelDimension caps each raster axis.
	MaxPixelDimension = 8192
)

// ErrPayloadTooLarge is returned when an encoded payload exceeds
// MaxEncodedBytes or its decoded dimensions exceed MaxPixelDimension.
var ErrPayloadTooLarge = errors.New("image payload exceeds size limits")

// ParseDataURL decodes a base64 data URL into an RGBA raster.
//
// # Description
//
// Accepts both full data URLs ("data:image/png;base64,...") and bare
// base64 strings. The declared MIME type is returned alongside the
// decoded raster; when no prefix is present the MIME type is derived
// from the decoded image format.
//
// # Inputs
//
//   - dataURL: data URL or raw base64 payload.
//
// # Outputs
//
//   - *image.RGBA: decoded raster, converted to RGBA if necessary.
//   - string: MIME type, e.g. "image/png".
//   - error: non-nil for malformed base64, undecodable image data, or
//     payloads over the size limits.
func ParseDataURL(dataURL string) (*image.RGBA, string, error) {
	mime := ""
	encoded := dataURL
	if idx := strings.Index(dataURL, ","); idx >= 0 {
		header := dataURL[:idx]
		encoded = dataURL[idx+1:]
		header = strings.TrimPrefix(header, "data:")
		if semi := strings.Index(header, ";"); semi >= 0 {
			header = header[:semi]
		}
		mime = header
	}
	if len(encoded) > MaxEncodedBytes*4/3+4 {
		return nil, "", ErrPayloadTooLarge
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64 payload: %w", err)
	}
	img, format, err := DecodeBytes(raw)
	if err != nil {
		return nil, "", err
	}
	if mime == "" {
		mime = "image/" + format
	}
	return img, mime, nil
}

// DecodeBytes decodes PNG, JPEG, GIF, or WebP bytes into an RGBA raster
// and reports the detected format name.
func DecodeBytes(data []byte) (*image.RGBA, string, error) {
	if len(data) > MaxEncodedBytes {
		return nil, "", ErrPayloadTooLarge
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width > MaxPixelDimension || cfg.Height > MaxPixelDimension {
		return nil, "", ErrPayloadTooLarge
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return ToRGBA(img), format, nil
}

// EncodePNG encodes a raster as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNGDataURL encodes a raster as a "data:image/png;base64," URL.
func EncodePNGDataURL(img image.Image) (string, error) {
	raw, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// ToRGBA returns img as *image.RGBA, copying only when the underlying
// type differs.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

// Thumbnail scales img to fit within maxDim on its longest axis,
// preserving aspect ratio. Images already within bounds are returned
// as-is. Used for audit-log records, where fidelity matters less than
// footprint.
func Thumbnail(img image.Image, maxDim int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return ToRGBA(img)
	}

	outW, outH := maxDim, maxDim
	if w > h {
		outH = max(1, h*maxDim/w)
	} else {
		outW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

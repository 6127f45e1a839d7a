// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kestrelworks/snapstudio/services/vision"
)

// =============================================================================
// Test Helpers
// =============================================================================

func fillRaster(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func paintBlock(img *image.RGBA, x0, y0, w, h int, c color.RGBA) {
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func writeTestPNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.RGBA{R: 255, A: 255}
)

// =============================================================================
// executeDiff Tests
// =============================================================================

func TestExecuteDiff_NoChanges(t *testing.T) {
	dir := t.TempDir()
	base := fillRaster(48, 48, white)
	before := writeTestPNG(t, dir, "before.png", base)
	after := writeTestPNG(t, dir, "after.png", base)

	var out bytes.Buffer
	code := executeDiff(&out, before, after, vision.DefaultOptions(), OutputConfig{})

	if code != CLIExitSuccess {
		t.Errorf("exit code = %d, want %d", code, CLIExitSuccess)
	}
	if !strings.Contains(out.String(), "No significant changes") {
		t.Errorf("report should state no changes, got: %s", out.String())
	}
}

func TestExecuteDiff_FindsRegions(t *testing.T) {
	dir := t.TempDir()
	before := writeTestPNG(t, dir, "before.png", fillRaster(48, 48, white))

	edited := fillRaster(48, 48, white)
	paintBlock(edited, 8, 8, 24, 24, red)
	after := writeTestPNG(t, dir, "after.png", edited)

	var out bytes.Buffer
	code := executeDiff(&out, before, after, vision.DefaultOptions(), OutputConfig{})

	if code != CLIExitFindings {
		t.Errorf("exit code = %d, want %d", code, CLIExitFindings)
	}
	if !strings.Contains(out.String(), "DETECTED EDIT LOCATIONS") {
		t.Errorf("report should list regions, got: %s", out.String())
	}
}

func TestExecuteDiff_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	before := writeTestPNG(t, dir, "before.png", fillRaster(48, 48, white))

	edited := fillRaster(48, 48, white)
	paintBlock(edited, 8, 8, 24, 24, red)
	after := writeTestPNG(t, dir, "after.png", edited)

	var out bytes.Buffer
	code := executeDiff(&out, before, after, vision.DefaultOptions(), OutputConfig{JSON: true})

	if code != CLIExitFindings {
		t.Fatalf("exit code = %d, want %d", code, CLIExitFindings)
	}

	var result vision.DetectionResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if result.ImageWidth != 48 || result.ImageHeight != 48 {
		t.Errorf("dimensions = %dx%d, want 48x48", result.ImageWidth, result.ImageHeight)
	}
	if len(result.Regions) != 1 {
		t.Fatalf("regions = %d, want 1", len(result.Regions))
	}
}

func TestExecuteDiff_PixelMode(t *testing.T) {
	dir := t.TempDir()
	before := writeTestPNG(t, dir, "before.png", fillRaster(48, 48, white))

	edited := fillRaster(48, 48, white)
	paintBlock(edited, 10, 10, 5, 5, red)
	after := writeTestPNG(t, dir, "after.png", edited)

	opts := vision.DefaultOptions()
	opts.Mode = vision.ModePixel

	var out bytes.Buffer
	code := executeDiff(&out, before, after, opts, OutputConfig{JSON: true})

	if code != CLIExitFindings {
		t.Fatalf("exit code = %d, want %d", code, CLIExitFindings)
	}

	var result vision.DetectionResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(result.Regions) != 1 {
		t.Fatalf("regions = %d, want 1", len(result.Regions))
	}
	if result.Regions[0].PixelCount != 25 {
		t.Errorf("pixel count = %d, want 25", result.Regions[0].PixelCount)
	}
}

func TestExecuteDiff_QuietSuppressesOutput(t *testing.T) {
	dir := t.TempDir()
	before := writeTestPNG(t, dir, "before.png", fillRaster(48, 48, white))

	edited := fillRaster(48, 48, white)
	paintBlock(edited, 8, 8, 24, 24, red)
	after := writeTestPNG(t, dir, "after.png", edited)

	var out bytes.Buffer
	code := executeDiff(&out, before, after, vision.DefaultOptions(), OutputConfig{Quiet: true})

	if code != CLIExitFindings {
		t.Errorf("exit code = %d, want %d", code, CLIExitFindings)
	}
	if out.Len() != 0 {
		t.Errorf("quiet mode wrote output: %s", out.String())
	}
}

func TestExecuteDiff_MissingFile(t *testing.T) {
	dir := t.TempDir()
	after := writeTestPNG(t, dir, "after.png", fillRaster(16, 16, white))

	var out bytes.Buffer
	code := executeDiff(&out, filepath.Join(dir, "nope.png"), after, vision.DefaultOptions(), OutputConfig{})

	if code != CLIExitError {
		t.Errorf("exit code = %d, want %d", code, CLIExitError)
	}
}

func TestExecuteDiff_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	before := writeTestPNG(t, dir, "before.png", fillRaster(32, 32, white))
	after := writeTestPNG(t, dir, "after.png", fillRaster(16, 16, white))

	var out bytes.Buffer
	code := executeDiff(&out, before, after, vision.DefaultOptions(), OutputConfig{})

	if code != CLIExitError {
		t.Errorf("exit code = %d, want %d", code, CLIExitError)
	}
}

func TestExecuteDiff_JSONError(t *testing.T) {
	dir := t.TempDir()
	after := writeTestPNG(t, dir, "after.png", fillRaster(16, 16, white))

	var out bytes.Buffer
	code := executeDiff(&out, filepath.Join(dir, "nope.png"), after, vision.DefaultOptions(), OutputConfig{JSON: true})

	if code != CLIExitError {
		t.Fatalf("exit code = %d, want %d", code, CLIExitError)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		t.Fatalf("error output is not valid JSON: %v", err)
	}
	if !strings.Contains(payload.Error, "Failed to load before image") {
		t.Errorf("error = %q, want load failure", payload.Error)
	}
}

// =============================================================================
// Exit Code Contract
// =============================================================================

func TestExitCodeValues(t *testing.T) {
	if CLIExitSuccess != 0 {
		t.Errorf("CLIExitSuccess = %d, want 0", CLIExitSuccess)
	}
	if CLIExitFindings != 1 {
		t.Errorf("CLIExitFindings = %d, want 1", CLIExitFindings)
	}
	if CLIExitError != 2 {
		t.Errorf("CLIExitError = %d, want 2", CLIExitError)
	}
}

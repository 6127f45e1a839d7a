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
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/snapstudio/pkg/imaging"
	"github.com/kestrelworks/snapstudio/services/vision"
)

// Exit codes, following diff(1) conventions.
const (
	CLIExitSuccess  = 0 // No changed regions
	CLIExitFindings = 1 // Changed regions found
	CLIExitError    = 2 // Operation failed
)

// OutputConfig controls report output behavior.
type OutputConfig struct {
	JSON  bool // Output the DetectionResult as JSON
	Quiet bool // No output, exit code only
}

// runDiff is the CLI handler for the snapdiff root command.
func runDiff(cmd *cobra.Command, args []string) {
	opts := vision.DefaultOptions()
	if pixelMode {
		opts.Mode = vision.ModePixel
	}
	opts.ColorThreshold = colorThreshold
	opts.BlockSize = blockSize
	opts.MinRegionSize = minRegionSize

	cfg := OutputConfig{JSON: jsonOutput, Quiet: quiet}
	os.Exit(executeDiff(os.Stdout, args[0], args[1], opts, cfg))
}

// executeDiff loads both rasters, runs detection, and writes the report
// to out.
//
// # Outputs
//
//   - int: The process exit code.
func executeDiff(out io.Writer, beforePath, afterPath string, opts vision.Options, cfg OutputConfig) int {
	before, err := loadRaster(beforePath)
	if err != nil {
		outputError(out, cfg, "Failed to load before image", err)
		return CLIExitError
	}
	after, err := loadRaster(afterPath)
	if err != nil {
		outputError(out, cfg, "Failed to load after image", err)
		return CLIExitError
	}

	result, err := vision.Detect(before, after, opts)
	if err != nil {
		outputError(out, cfg, "Detection failed", err)
		return CLIExitError
	}

	if !cfg.Quiet {
		if cfg.JSON {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(result); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
				return CLIExitError
			}
		} else {
			fmt.Fprintln(out, vision.FormatRegionsForPrompt(result))
		}
	}

	if len(result.Regions) > 0 {
		return CLIExitFindings
	}
	return CLIExitSuccess
}

// loadRaster reads and decodes one image file.
func loadRaster(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := imaging.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// outputError writes an error in the appropriate format. JSON mode
// keeps errors on the report stream so scripted consumers see them;
// human mode uses stderr.
func outputError(out io.Writer, cfg OutputConfig, msg string, err error) {
	if cfg.Quiet {
		return
	}
	if cfg.JSON {
		result := struct {
			Error string `json:"error"`
		}{Error: fmt.Sprintf("%s: %v", msg, err)}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		encoder.Encode(result)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}

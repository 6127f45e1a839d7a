// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command snapdiff compares two screenshots and reports changed regions.
//
// snapdiff runs the studio's region detector offline: the same
// comparison that grounds the edit self-check, pointed at two image
// files on disk. Useful for tuning detection thresholds and for
// scripting visual checks.
//
// # Usage
//
//	snapdiff before.png after.png
//	snapdiff --pixel --threshold 45 before.png after.png
//	snapdiff --json before.png after.png | jq '.regions[0]'
//	snapdiff --quiet before.png after.png && echo "no changes"
//
// # Exit Codes
//
//   - 0: No changed regions
//   - 1: Changed regions found
//   - 2: Error
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/snapstudio/services/vision"
)

var (
	pixelMode      bool
	colorThreshold int
	blockSize      int
	minRegionSize  int
	jsonOutput     bool
	quiet          bool

	rootCmd = &cobra.Command{
		Use:   "snapdiff <before> <after>",
		Short: "Detect changed regions between two screenshots",
		Long: `snapdiff compares two images of equal dimensions and reports the
regions that differ, ranked by significance. Block mode (the default)
is resistant to compression and resampling noise; pixel mode reports
exact boundaries.`,
		Args: cobra.ExactArgs(2),
		Run:  runDiff,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(CLIExitError)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&pixelMode, "pixel", false, "Compare pixel-by-pixel instead of block-by-block")
	rootCmd.Flags().IntVar(&colorThreshold, "threshold", vision.DefaultColorThreshold, "Per-channel color difference threshold (1-255)")
	rootCmd.Flags().IntVar(&blockSize, "block-size", vision.DefaultBlockSize, "Tile edge length in pixels for block mode")
	rootCmd.Flags().IntVar(&minRegionSize, "min-region-size", vision.DefaultMinRegionSize, "Smallest pixel count to report in pixel mode")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the detection result as JSON")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress output, exit code only")
}

// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vision detects changed regions between two screenshot rasters.
//
// The detector is a pure function over two equal-sized RGBA rasters: it
// holds no state, performs no I/O, and is safe to call from any number of
// goroutines. It reports connected clusters of changed pixels as ranked
// EditRegions, each scored 0-100 by a blend of area, color intensity, and
// pixel density.
//
// Two granularities are available. Block mode (the default) diffs at tile
// granularity, which suppresses the scattered single-pixel noise that
// generative-model resampling leaves behind. Pixel mode reports exact
// boundaries and is the better choice when precision matters more than
// noise rejection.
package vision

import "fmt"

// Mode selects the comparison granularity.
type Mode int

const (
	// ModeBlock compares tile-by-tile. Resistant to diffusion noise.
	ModeBlock Mode = iota

	// ModePixel compares pixel-by-pixel. Exact boundaries, noise-sensitive.
	ModePixel
)

// Default option values. Tuned against generative-model output; callers
// that need different behavior override them per call.
const (
	DefaultColorThreshold  = 30
	DefaultBlockSize       = 8
	DefaultMinBlockDensity = 0.25
	DefaultMinBlockCount   = 2
	DefaultMinRegionSize   = 10
)

// Options configures a single Detect call. The zero value selects block
// mode with all defaults.
type Options struct {
	// Mode selects block or pixel comparison. Zero value is ModeBlock.
	Mode Mode

	// ColorThreshold is the minimum per-channel absolute difference for
	// a pixel to count as changed. A pixel is changed when the maximum
	// of its three RGB channel deltas exceeds this value; alpha is
	// ignored. Default 30.
	ColorThreshold int

	// BlockSize is the tile edge length in pixels for block mode.
	// Edge tiles may be smaller. Default 8.
	BlockSize int

	// MinBlockDensity is the fraction of pixels within a tile that must
	// exceed ColorThreshold for the tile itself to count as changed.
	// Default 0.25.
	MinBlockDensity float64

	// MinBlockCount is the minimum number of 4-connected changed tiles
	// required to emit a region in block mode. Default 2.
	MinBlockCount int

	// MinRegionSize is the pixel-count floor for pixel mode; connected
	// components smaller than this are dropped. Default 10.
	MinRegionSize int
}

// DefaultOptions returns the options used when callers pass the zero
// value: block mode, threshold 30, 8px tiles, 25% density, 2-tile floor.
func DefaultOptions() Options {
	return Options{
		Mode:            ModeBlock,
		ColorThreshold:  DefaultColorThreshold,
		BlockSize:       DefaultBlockSize,
		MinBlockDensity: DefaultMinBlockDensity,
		MinBlockCount:   DefaultMinBlockCount,
		MinRegionSize:   DefaultMinRegionSize,
	}
}

func (o Options) withDefaults() Options {
	if o.ColorThreshold <= 0 {
		o.ColorThreshold = DefaultColorThreshold
	}
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.MinBlockDensity <= 0 {
		o.MinBlockDensity = DefaultMinBlockDensity
	}
	if o.MinBlockCount <= 0 {
		o.MinBlockCount = DefaultMinBlockCount
	}
	if o.MinRegionSize <= 0 {
		o.MinRegionSize = DefaultMinRegionSize
	}
	return o
}

// EditRegion is a connected cluster of changed pixels.
//
// The bounding box uses a top-left origin with X rightward and Y
// downward. PixelCount is the number of changed pixels inside the box,
// never the box area. AvgColorDiff and MaxColorDiff are the mean and max
// worst-channel differences among changed pixels, 0-255, rounded to one
// decimal. Invariants: PixelCount <= Width*Height and
// AvgColorDiff <= MaxColorDiff <= 255.
type EditRegion struct {
	X            int     `json:"x"`
	Y            int     `json:"y"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	CenterX      int     `json:"center_x"`
	CenterY      int     `json:"center_y"`
	PixelCount   int     `json:"pixel_count"`
	AvgColorDiff float64 `json:"avg_color_diff"`
	MaxColorDiff float64 `json:"max_color_diff"`
	Significance int     `json:"significance"`
}

// DetectionResult is the outcome of one Detect call. Regions is sorted
// by significance, descending, and may be empty. TotalChangedPixels
// counts every pixel over threshold in the whole raster, including
// pixels that never made it into a region.
type DetectionResult struct {
	Regions            []EditRegion `json:"regions"`
	TotalChangedPixels int          `json:"total_changed_pixels"`
	PercentChanged     float64      `json:"percent_changed"`
	ImageWidth         int          `json:"image_width"`
	ImageHeight        int          `json:"image_height"`
}

// DimensionMismatchError is returned when the two rasters differ in
// width or height. Rasters are never resized to fit; unequal dimensions
// mean the caller passed incomparable images.
type DimensionMismatchError struct {
	BeforeWidth  int
	BeforeHeight int
	AfterWidth   int
	AfterHeight  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("raster dimensions do not match: before %dx%d, after %dx%d",
		e.BeforeWidth, e.BeforeHeight, e.AfterWidth, e.AfterHeight)
}

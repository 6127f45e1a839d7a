// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vision

import (
	"image"
	"math"
	"sort"
)

// Detect compares two equal-sized rasters and returns the changed
// regions, ranked by significance.
//
// # Description
//
// Computes the worst-channel absolute difference for every pixel pair
// (alpha ignored), classifies pixels against opts.ColorThreshold, then
// groups changed pixels into 4-connected regions at either tile or pixel
// granularity depending on opts.Mode. Neither input is mutated.
//
// # Inputs
//
//   - before: baseline raster. Must not be nil.
//   - after: candidate raster. Must not be nil, same dimensions as before.
//   - opts: detection options; zero fields fall back to defaults.
//
// # Outputs
//
//   - *DetectionResult: regions sorted by significance descending.
//     Identical inputs yield an empty region list, not an error.
//   - error: *DimensionMismatchError when dimensions differ. This is the
//     only failure mode.
//
// Thread Safety: pure function, safe for concurrent use.
func Detect(before, after *image.RGBA, opts Options) (*DetectionResult, error) {
	bw, bh := before.Rect.Dx(), before.Rect.Dy()
	aw, ah := after.Rect.Dx(), after.Rect.Dy()
	if bw != aw || bh != ah {
		return nil, &DimensionMismatchError{
			BeforeWidth: bw, BeforeHeight: bh,
			AfterWidth: aw, AfterHeight: ah,
		}
	}
	opts = opts.withDefaults()

	diffs := channelDiffs(before, after, bw, bh)

	if opts.Mode == ModePixel {
		return detectPixelBased(diffs, bw, bh, opts), nil
	}
	return detectBlockBased(diffs, bw, bh, opts), nil
}

// channelDiffs returns the per-pixel worst-channel absolute difference,
// row-major, one byte per pixel. Alpha never participates.
func channelDiffs(before, after *image.RGBA, w, h int) []uint8 {
	diffs := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		bo := before.PixOffset(before.Rect.Min.X, before.Rect.Min.Y+y)
		ao := after.PixOffset(after.Rect.Min.X, after.Rect.Min.Y+y)
		row := y * w
		for x := 0; x < w; x++ {
			d := absDelta(before.Pix[bo], after.Pix[ao])
			if g := absDelta(before.Pix[bo+1], after.Pix[ao+1]); g > d {
				d = g
			}
			if b := absDelta(before.Pix[bo+2], after.Pix[ao+2]); b > d {
				d = b
			}
			diffs[row+x] = d
			bo += 4
			ao += 4
		}
	}
	return diffs
}

func absDelta(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// tileStat carries the raw pixel-level statistics of one tile so that
// region stats can be aggregated without re-deriving them from the
// bounding box.
type tileStat struct {
	changed      bool
	changedCount int
	diffSum      int
	diffMax      int
}

// detectBlockBased partitions the diff map into BlockSize tiles, marks
// tiles whose changed-pixel density clears MinBlockDensity, and emits one
// region per 4-connected tile cluster of at least MinBlockCount tiles.
// Tile granularity is what suppresses decorrelated single-pixel noise
// from generative resampling.
func detectBlockBased(diffs []uint8, w, h int, opts Options) *DetectionResult {
	bs := opts.BlockSize
	blocksX := (w + bs - 1) / bs
	blocksY := (h + bs - 1) / bs

	totalChanged := 0
	stats := make([]tileStat, blocksX*blocksY)
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			startX, startY := bx*bs, by*bs
			endX, endY := min(startX+bs, w), min(startY+bs, h)

			var st tileStat
			for y := startY; y < endY; y++ {
				row := y * w
				for x := startX; x < endX; x++ {
					d := int(diffs[row+x])
					if d > opts.ColorThreshold {
						st.changedCount++
						st.diffSum += d
						if d > st.diffMax {
							st.diffMax = d
						}
					}
				}
			}
			tileArea := (endX - startX) * (endY - startY)
			st.changed = float64(st.changedCount)/float64(tileArea) >= opts.MinBlockDensity
			stats[by*blocksX+bx] = st
			totalChanged += st.changedCount
		}
	}

	visited := make([]bool, blocksX*blocksY)
	var regions []EditRegion
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			idx := by*blocksX + bx
			if !stats[idx].changed || visited[idx] {
				continue
			}
			cluster := floodFillTiles(stats, visited, blocksX, blocksY, bx, by)
			if len(cluster) < opts.MinBlockCount {
				continue
			}
			regions = append(regions, regionFromTiles(cluster, stats, blocksX, bs, w, h))
		}
	}

	sortBySignificance(regions)
	return &DetectionResult{
		Regions:            regions,
		TotalChangedPixels: totalChanged,
		PercentChanged:     float64(totalChanged) / float64(w*h) * 100,
		ImageWidth:         w,
		ImageHeight:        h,
	}
}

// floodFillTiles collects the 4-connected cluster of changed tiles
// reachable from (startX, startY). Explicit stack, no recursion.
func floodFillTiles(stats []tileStat, visited []bool, blocksX, blocksY, startX, startY int) [][2]int {
	var cluster [][2]int
	stack := [][2]int{{startX, startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		bx, by := p[0], p[1]
		if bx < 0 || bx >= blocksX || by < 0 || by >= blocksY {
			continue
		}
		idx := by*blocksX + bx
		if !stats[idx].changed || visited[idx] {
			continue
		}
		visited[idx] = true
		cluster = append(cluster, p)
		stack = append(stack,
			[2]int{bx + 1, by},
			[2]int{bx - 1, by},
			[2]int{bx, by + 1},
			[2]int{bx, by - 1},
		)
	}
	return cluster
}

// regionFromTiles converts a tile cluster to a pixel-space region. The
// bounding box is clamped to the raster for edge tiles; pixel stats are
// summed from the tiles' raw counters rather than re-derived from the
// box.
func regionFromTiles(cluster [][2]int, stats []tileStat, blocksX, bs, w, h int) EditRegion {
	minBX, minBY := cluster[0][0], cluster[0][1]
	maxBX, maxBY := minBX, minBY
	pixelCount, diffSum, diffMax := 0, 0, 0
	for _, t := range cluster {
		bx, by := t[0], t[1]
		if bx < minBX {
			minBX = bx
		}
		if bx > maxBX {
			maxBX = bx
		}
		if by < minBY {
			minBY = by
		}
		if by > maxBY {
			maxBY = by
		}
		st := stats[by*blocksX+bx]
		pixelCount += st.changedCount
		diffSum += st.diffSum
		if st.diffMax > diffMax {
			diffMax = st.diffMax
		}
	}

	x, y := minBX*bs, minBY*bs
	width := min((maxBX+1)*bs, w) - x
	height := min((maxBY+1)*bs, h) - y

	avg := 0.0
	if pixelCount > 0 {
		avg = float64(diffSum) / float64(pixelCount)
	}
	return EditRegion{
		X:            x,
		Y:            y,
		Width:        width,
		Height:       height,
		CenterX:      int(math.Round(float64(x) + float64(width)/2)),
		CenterY:      int(math.Round(float64(y) + float64(height)/2)),
		PixelCount:   pixelCount,
		AvgColorDiff: round1(avg),
		MaxColorDiff: float64(diffMax),
		Significance: significance(width*height, pixelCount, avg),
	}
}

// detectPixelBased classifies every pixel individually and flood-fills
// 4-connected components, dropping those below MinRegionSize. More
// sensitive than block mode and correspondingly noisier.
func detectPixelBased(diffs []uint8, w, h int, opts Options) *DetectionResult {
	changed := make([]bool, w*h)
	totalChanged := 0
	for i, d := range diffs {
		if int(d) > opts.ColorThreshold {
			changed[i] = true
			totalChanged++
		}
	}

	visited := make([]bool, w*h)
	var regions []EditRegion
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !changed[idx] || visited[idx] {
				continue
			}
			pixels := floodFillPixels(changed, visited, w, h, x, y)
			if len(pixels) < opts.MinRegionSize {
				continue
			}
			regions = append(regions, regionFromPixels(pixels, diffs, w))
		}
	}

	sortBySignificance(regions)
	return &DetectionResult{
		Regions:            regions,
		TotalChangedPixels: totalChanged,
		PercentChanged:     float64(totalChanged) / float64(w*h) * 100,
		ImageWidth:         w,
		ImageHeight:        h,
	}
}

func floodFillPixels(changed, visited []bool, w, h, startX, startY int) [][2]int {
	var pixels [][2]int
	stack := [][2]int{{startX, startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p[0], p[1]
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		idx := y*w + x
		if !changed[idx] || visited[idx] {
			continue
		}
		visited[idx] = true
		pixels = append(pixels, p)
		stack = append(stack,
			[2]int{x + 1, y},
			[2]int{x - 1, y},
			[2]int{x, y + 1},
			[2]int{x, y - 1},
		)
	}
	return pixels
}

func regionFromPixels(pixels [][2]int, diffs []uint8, w int) EditRegion {
	minX, minY := pixels[0][0], pixels[0][1]
	maxX, maxY := minX, minY
	diffSum, diffMax := 0, 0
	for _, p := range pixels {
		x, y := p[0], p[1]
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
		d := int(diffs[y*w+x])
		diffSum += d
		if d > diffMax {
			diffMax = d
		}
	}

	width := maxX - minX + 1
	height := maxY - minY + 1
	avg := float64(diffSum) / float64(len(pixels))

	return EditRegion{
		X:            minX,
		Y:            minY,
		Width:        width,
		Height:       height,
		CenterX:      int(math.Round(float64(minX+maxX) / 2)),
		CenterY:      int(math.Round(float64(minY+maxY) / 2)),
		PixelCount:   len(pixels),
		AvgColorDiff: round1(avg),
		MaxColorDiff: float64(diffMax),
		Significance: significance(width*height, len(pixels), avg),
	}
}

// significance blends normalized area (40%), normalized average
// intensity (40%), and changed-pixel density within the bounding box
// (20%) into a 0-100 score. A ~100x100 fully saturated, fully dense
// region scores 100; absolute thresholds are the caller's business.
func significance(area, pixelCount int, avgDiff float64) int {
	areaNorm := math.Min(float64(area)/10000, 1)
	intensityNorm := avgDiff / 255
	density := 0.0
	if area > 0 {
		density = float64(pixelCount) / float64(area)
	}
	s := (0.4*areaNorm + 0.4*intensityNorm + 0.2*density) * 100
	return int(math.Round(math.Min(s, 100)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func sortBySignificance(regions []EditRegion) {
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Significance > regions[j].Significance
	})
}

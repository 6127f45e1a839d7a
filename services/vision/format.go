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
	"fmt"
	"strings"
)

// FormatRegionsForPrompt renders a DetectionResult as the plain-text
// report handed to the evaluation model. The wording is part of the
// prompt contract; change it only together with the evaluation prompts.
func FormatRegionsForPrompt(res *DetectionResult) string {
	if len(res.Regions) == 0 {
		return "DETECTED EDIT LOCATIONS: No significant changes detected between images."
	}

	var b strings.Builder
	b.WriteString("DETECTED EDIT LOCATIONS (sorted by significance):\n")
	for i, r := range res.Regions {
		fmt.Fprintf(&b,
			"  %d. Region from (%d, %d) to (%d, %d), center: (%d, %d), size: %dx%d, %d pixels changed, intensity: avg=%.1f, max=%.1f, significance: %d/100\n",
			i+1, r.X, r.Y, r.X+r.Width-1, r.Y+r.Height-1,
			r.CenterX, r.CenterY, r.Width, r.Height,
			r.PixelCount, r.AvgColorDiff, r.MaxColorDiff, r.Significance)
	}
	fmt.Fprintf(&b, "\nTotal: %d pixels changed (%.1f%% of image)\nImage dimensions: %dx%d",
		res.TotalChangedPixels, res.PercentChanged, res.ImageWidth, res.ImageHeight)
	return b.String()
}

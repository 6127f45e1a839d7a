package aiclient

import (
	"fmt"
	"strings"
)

// colorNames maps common hex colors (including the default drawing-tool
// palette) to readable names. Anything else stays as hex.
var colorNames = map[string]string{
	"#000000":      "black",
	"#ffffff":      "white",
	"#ff0000":      "red",
	"#00ff00":      "green",
	"#0000ff":      "blue",
	"#ffff00":      "yellow",
	"#ff00ff":      "magenta",
	"#00ffff":      "cyan",
	"#ffa500":      "orange",
	"#800080":      "purple",
	"#ffc0cb":      "pink",
	"#808080":      "gray",
	"#a52a2a":      "brown",
	"#1e1e1e":      "dark gray",
	"#e03131":      "red",
	"#2f9e44":      "green",
	"#1971c2":      "blue",
	"#f08c00":      "orange",
	"#6741d9":      "purple",
	"#transparent": "transparent",
}

func colorName(hexColor string) string {
	color := strings.ToLower(strings.TrimSpace(hexColor))
	if !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	if name, ok := colorNames[color]; ok {
		return name
	}
	return color
}

// DescribeShape renders one canvas annotation as a sentence the planner
// can reason about, e.g. "A red arrow from (100, 200) to (300, 400)".
func DescribeShape(s Shape) string {
	color := colorName(s.StrokeColor)
	bgColor := ""
	if s.BackgroundColor != "" {
		bgColor = colorName(s.BackgroundColor)
	}

	centerX := int(s.X + s.Width/2)
	centerY := int(s.Y + s.Height/2)

	fillDesc := ""
	if bgColor != "" && bgColor != "transparent" {
		fillDesc = bgColor + "-filled "
	}

	switch s.Type {
	case "line":
		if s.StartX != nil && s.StartY != nil && s.EndX != nil && s.EndY != nil {
			return fmt.Sprintf("A %s line from (%d, %d) to (%d, %d)",
				color, int(*s.StartX), int(*s.StartY), int(*s.EndX), int(*s.EndY))
		}
		return fmt.Sprintf("A %s line at (%d, %d), %dx%dpx", color, int(s.X), int(s.Y), int(s.Width), int(s.Height))

	case "arrow":
		if s.StartX != nil && s.StartY != nil && s.EndX != nil && s.EndY != nil {
			start := fmt.Sprintf("(%d, %d)", int(*s.StartX), int(*s.StartY))
			end := fmt.Sprintf("(%d, %d)", int(*s.EndX), int(*s.EndY))
			arrowType := "arrow"
			switch {
			case s.HasStartArrowhead && s.HasEndArrowhead:
				arrowType = "double-headed arrow"
			case s.HasStartArrowhead:
				// Arrowhead at the start means the arrow points from end to start.
				start, end = end, start
			}
			return fmt.Sprintf("A %s %s from %s to %s", color, arrowType, start, end)
		}
		return fmt.Sprintf("A %s arrow at (%d, %d), %dx%dpx", color, int(s.X), int(s.Y), int(s.Width), int(s.Height))

	case "rectangle":
		return fmt.Sprintf("A %s%s rectangle at (%d, %d), size %dx%dpx",
			fillDesc, color, int(s.X), int(s.Y), int(s.Width), int(s.Height))

	case "diamond":
		return fmt.Sprintf("A %s%s diamond at (%d, %d), size %dx%dpx",
			fillDesc, color, int(s.X), int(s.Y), int(s.Width), int(s.Height))

	case "ellipse":
		if diff := s.Width - s.Height; diff > -5 && diff < 5 {
			return fmt.Sprintf("A %s%s circle centered at (%d, %d), radius %dpx",
				fillDesc, color, centerX, centerY, int(s.Width/2))
		}
		return fmt.Sprintf("A %s%s ellipse centered at (%d, %d), %dx%dpx",
			fillDesc, color, centerX, centerY, int(s.Width), int(s.Height))

	case "freedraw":
		pointInfo := ""
		if s.PointCount > 0 {
			pointInfo = fmt.Sprintf(" (%d points)", s.PointCount)
		}
		return fmt.Sprintf("A %s freehand drawing near (%d, %d), spanning %dx%dpx%s",
			color, centerX, centerY, int(s.Width), int(s.Height), pointInfo)

	case "text":
		content := s.TextContent
		if content == "" {
			content = "(empty)"
		}
		sizeInfo := ""
		if s.FontSize > 0 {
			sizeInfo = fmt.Sprintf(", %dpx", int(s.FontSize))
		}
		return fmt.Sprintf("Text \"%s\" at (%d, %d) (%s%s)", content, int(s.X), int(s.Y), color, sizeInfo)

	default:
		return fmt.Sprintf("A %s %s at (%d, %d), size %dx%dpx",
			color, s.Type, int(s.X), int(s.Y), int(s.Width), int(s.Height))
	}
}

// BuildShapesContext renders all annotations into a prompt section, or
// returns "" when there are none.
func BuildShapesContext(shapes []Shape) string {
	if len(shapes) == 0 {
		return ""
	}

	descriptions := make([]string, 0, len(shapes))
	for _, s := range shapes {
		descriptions = append(descriptions, "- "+DescribeShape(s))
	}

	return fmt.Sprintf(`
## USER-DRAWN ANNOTATIONS

The user has drawn the following shapes/annotations on the canvas to guide the edit:

%s

IMPORTANT: Interpret these visual annotations alongside the user's text command:
- **Arrows** indicate direction, movement, or point to specific elements
- **Rectangles/Circles** highlight areas to modify or focus on
- **Text annotations** contain explicit instructions or labels
- **Lines** may indicate connections, boundaries, or cut/crop lines
- **Freehand drawings** often circle or underline important areas

The annotations are visual guides - incorporate their meaning into your edit.
`, strings.Join(descriptions, "\n"))
}

package aiclient

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kestrelworks/snapstudio/services/vision"
)

// painterToolName is the function the planner must call to hand off its
// refined edit description.
const painterToolName = "gemini_image_painter"

var (
	fencedJSONRe  = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	painterCallRe = regexp.MustCompile(`gemini_image_painter\s*\(\s*prompt\s*=\s*"([^"]+)"`)
)

func buildPlanningPrompt(req RefineRequest) string {
	maskContext := "The user wants to edit the entire image."
	if req.HasMask {
		maskContext = "The user has selected a specific area of the image (shown as a white mask). Your edits should focus on this masked region."
	}

	var extras strings.Builder
	extras.WriteString(BuildShapesContext(req.Shapes))
	extras.WriteString(referencePointsContext(req.ReferencePoints))

	return fmt.Sprintf(`You are an expert image editing assistant working on a SCREENSHOT MODIFICATION task.

USER'S REQUEST: "%s"

%s
%s
Your goal is to create an edit that:
1. Accomplishes exactly what the user wants
2. FITS NATURALLY into the existing image - the modification should look like it belongs there
3. Matches the style, lighting, perspective, and aesthetic of the original screenshot
4. Unless the user explicitly asks for something that stands out, edits should be SEAMLESS and COHERENT

Think deeply about:
- What is the user really trying to achieve?
- What visual details would make this edit look natural and integrated?
- How should lighting, shadows, and style match the surroundings?
- What would make someone looking at the final image NOT notice it was edited?

You have one powerful tool: gemini_image_painter, which uses Gemini 3 Pro to edit images.

Call gemini_image_painter with a detailed prompt that achieves the goal while ensuring visual coherence.

You MUST call the gemini_image_painter tool.`, req.Instruction, maskContext, extras.String())
}

// referencePointsContext renders labeled markers the user dropped on the
// canvas, or "" when there are none.
func referencePointsContext(points []ReferencePoint) string {
	if len(points) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n## REFERENCE POINTS\n\n")
	sb.WriteString("The user has placed labeled markers on the image for spatial reference:\n\n")
	for _, p := range points {
		fmt.Fprintf(&sb, "- \"%s\" at (%d, %d)\n", p.Label, int(p.X), int(p.Y))
	}
	sb.WriteString("\nWhen the user's request refers to these labels, use the marker coordinates to place the edit precisely.\n")
	return sb.String()
}

func buildEvaluationPrompt(original, attempted string, report *vision.DetectionResult) string {
	regionContext := ""
	if report != nil {
		regionContext = fmt.Sprintf(`
A pixel-level comparison between the two images found these changed regions:

%s
`, vision.FormatRegionsForPrompt(report))
	}

	return fmt.Sprintf(`Evaluate whether this image edit meets the user's request.

**User's request:** "%s"
**Edit prompt used:** "%s"

You will see the original image (BEFORE) and edited result (AFTER).
%s
Evaluate:
1. Does the edit match the user's request?
2. Is the edit visible and significant enough?
3. Does it look natural and coherent?
4. Are there quality issues or artifacts?

Respond with JSON in this exact format:

`+"```json"+`
{
  "satisfied": true or false,
  "reasoning": "explanation",
  "revised_prompt": "improved prompt if not satisfied"
}
`+"```", original, attempted, regionContext)
}

// verdictPayload is the judge's expected JSON shape. Satisfied is a
// pointer so a missing key can default to accepted.
type verdictPayload struct {
	Satisfied     *bool  `json:"satisfied"`
	Reasoning     string `json:"reasoning"`
	RevisedPrompt string `json:"revised_prompt"`
}

// parseVerdict extracts the judge's verdict from free-form model output.
// A response with no parseable fenced JSON counts as accepted: an
// unreliable judge must not wedge the edit loop.
func parseVerdict(fullText string) *Verdict {
	v := &Verdict{Satisfied: true}

	match := fencedJSONRe.FindStringSubmatch(fullText)
	if match == nil {
		v.Reasoning = "Evaluation response had no parseable verdict; accepting result."
		return v
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(match[1])), &payload); err != nil {
		v.Reasoning = "Evaluation response had no parseable verdict; accepting result."
		return v
	}

	if payload.Satisfied != nil {
		v.Satisfied = *payload.Satisfied
	}
	v.Reasoning = payload.Reasoning
	if v.Reasoning == "" {
		v.Reasoning = "No reasoning provided."
	}
	if !v.Satisfied && payload.RevisedPrompt != "" {
		revised := payload.RevisedPrompt
		v.RevisedInstruction = &revised
	}
	return v
}

// extractPainterInstruction recovers the edit description from raw text
// when the planner narrates the tool call instead of making it.
func extractPainterInstruction(text string) (string, bool) {
	match := painterCallRe.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}

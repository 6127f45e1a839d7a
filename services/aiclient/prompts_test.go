package aiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/snapstudio/services/vision"
)

// ===== Planning Prompt =====

func TestBuildPlanningPrompt_QuotesInstruction(t *testing.T) {
	prompt := buildPlanningPrompt(RefineRequest{Instruction: "make the button red"})
	assert.Contains(t, prompt, `USER'S REQUEST: "make the button red"`)
	assert.Contains(t, prompt, "You MUST call the gemini_image_painter tool.")
}

func TestBuildPlanningPrompt_MaskContext(t *testing.T) {
	withMask := buildPlanningPrompt(RefineRequest{Instruction: "x", HasMask: true})
	assert.Contains(t, withMask, "The user has selected a specific area of the image (shown as a white mask). Your edits should focus on this masked region.")

	withoutMask := buildPlanningPrompt(RefineRequest{Instruction: "x"})
	assert.Contains(t, withoutMask, "The user wants to edit the entire image.")
	assert.NotContains(t, withoutMask, "masked region")
}

func TestBuildPlanningPrompt_NoExtrasWithoutAnnotations(t *testing.T) {
	prompt := buildPlanningPrompt(RefineRequest{Instruction: "x"})
	assert.NotContains(t, prompt, "USER-DRAWN ANNOTATIONS")
	assert.NotContains(t, prompt, "REFERENCE POINTS")
	assert.Contains(t, prompt, "The user wants to edit the entire image.\n\nYour goal")
}

func TestBuildPlanningPrompt_IncludesShapes(t *testing.T) {
	prompt := buildPlanningPrompt(RefineRequest{
		Instruction: "x",
		Shapes:      []Shape{{Type: "rectangle", StrokeColor: "#ff0000", X: 10, Y: 20, Width: 30, Height: 40}},
	})
	assert.Contains(t, prompt, "USER-DRAWN ANNOTATIONS")
	assert.Contains(t, prompt, "- A red rectangle at (10, 20), size 30x40px")
}

func TestBuildPlanningPrompt_IncludesReferencePoints(t *testing.T) {
	prompt := buildPlanningPrompt(RefineRequest{
		Instruction:     "move A next to B",
		ReferencePoints: []ReferencePoint{{Label: "A", X: 120.7, Y: 340.2}, {Label: "B", X: 15, Y: 99}},
	})
	assert.Contains(t, prompt, "REFERENCE POINTS")
	assert.Contains(t, prompt, `- "A" at (120, 340)`)
	assert.Contains(t, prompt, `- "B" at (15, 99)`)
}

// ===== Evaluation Prompt =====

func TestBuildEvaluationPrompt_BaseStructure(t *testing.T) {
	prompt := buildEvaluationPrompt("add a cat", "paint a tabby cat on the couch", nil)
	assert.Contains(t, prompt, `**User's request:** "add a cat"`)
	assert.Contains(t, prompt, `**Edit prompt used:** "paint a tabby cat on the couch"`)
	assert.Contains(t, prompt, "You will see the original image (BEFORE) and edited result (AFTER).\n\nEvaluate:")
	assert.Contains(t, prompt, `"satisfied": true or false`)
	assert.Contains(t, prompt, "```json")
}

func TestBuildEvaluationPrompt_IncludesRegionReport(t *testing.T) {
	report := &vision.DetectionResult{
		Regions: []vision.EditRegion{{
			X: 10, Y: 20, Width: 30, Height: 40, CenterX: 25, CenterY: 40,
			PixelCount: 600, AvgColorDiff: 45.5, MaxColorDiff: 128, Significance: 77,
		}},
		TotalChangedPixels: 700,
		PercentChanged:     3.5,
		ImageWidth:         200,
		ImageHeight:        100,
	}

	prompt := buildEvaluationPrompt("add a cat", "paint a cat", report)
	assert.Contains(t, prompt, "A pixel-level comparison between the two images found these changed regions:")
	assert.Contains(t, prompt, "DETECTED EDIT LOCATIONS (sorted by significance):")
	assert.Contains(t, prompt, "significance: 77/100")
}

func TestBuildEvaluationPrompt_ReportsNoChanges(t *testing.T) {
	report := &vision.DetectionResult{ImageWidth: 100, ImageHeight: 100}
	prompt := buildEvaluationPrompt("add a cat", "paint a cat", report)
	assert.Contains(t, prompt, "No significant changes detected between images.")
}

// ===== Verdict Parsing =====

func TestParseVerdict_SatisfiedWithReasoning(t *testing.T) {
	v := parseVerdict("Here is my assessment:\n```json\n{\"satisfied\": true, \"reasoning\": \"looks great\"}\n```\n")
	assert.True(t, v.Satisfied)
	assert.Equal(t, "looks great", v.Reasoning)
	assert.Nil(t, v.RevisedInstruction)
}

func TestParseVerdict_UnsatisfiedWithRevision(t *testing.T) {
	v := parseVerdict("```json\n{\"satisfied\": false, \"reasoning\": \"too subtle\", \"revised_prompt\": \"make it bolder\"}\n```")
	assert.False(t, v.Satisfied)
	assert.Equal(t, "too subtle", v.Reasoning)
	require.NotNil(t, v.RevisedInstruction)
	assert.Equal(t, "make it bolder", *v.RevisedInstruction)
}

func TestParseVerdict_UnsatisfiedWithoutRevision(t *testing.T) {
	v := parseVerdict("```json\n{\"satisfied\": false, \"reasoning\": \"unclear\"}\n```")
	assert.False(t, v.Satisfied)
	assert.Nil(t, v.RevisedInstruction)
}

func TestParseVerdict_RevisionIgnoredWhenSatisfied(t *testing.T) {
	v := parseVerdict("```json\n{\"satisfied\": true, \"reasoning\": \"fine\", \"revised_prompt\": \"leftover\"}\n```")
	assert.True(t, v.Satisfied)
	assert.Nil(t, v.RevisedInstruction)
}

func TestParseVerdict_MissingSatisfiedDefaultsToAccepted(t *testing.T) {
	v := parseVerdict("```json\n{\"reasoning\": \"hmm\"}\n```")
	assert.True(t, v.Satisfied)
	assert.Equal(t, "hmm", v.Reasoning)
}

func TestParseVerdict_NoFenceDefaultsToAccepted(t *testing.T) {
	v := parseVerdict("I think the edit is acceptable overall.")
	assert.True(t, v.Satisfied)
	assert.NotEmpty(t, v.Reasoning)
	assert.Nil(t, v.RevisedInstruction)
}

func TestParseVerdict_MalformedJSONDefaultsToAccepted(t *testing.T) {
	v := parseVerdict("```json\n{satisfied: yes}\n```")
	assert.True(t, v.Satisfied)
	assert.NotEmpty(t, v.Reasoning)
}

func TestParseVerdict_BareFenceWithoutLanguageTag(t *testing.T) {
	v := parseVerdict("```\n{\"satisfied\": false, \"reasoning\": \"nope\", \"revised_prompt\": \"try again\"}\n```")
	assert.False(t, v.Satisfied)
	require.NotNil(t, v.RevisedInstruction)
	assert.Equal(t, "try again", *v.RevisedInstruction)
}

func TestParseVerdict_ReasoningNeverEmpty(t *testing.T) {
	v := parseVerdict("```json\n{\"satisfied\": true}\n```")
	assert.NotEmpty(t, v.Reasoning)
}

func TestParseVerdict_UsesFirstFence(t *testing.T) {
	text := "```json\n{\"satisfied\": false, \"reasoning\": \"first\", \"revised_prompt\": \"use this\"}\n```\n" +
		"```json\n{\"satisfied\": true, \"reasoning\": \"second\"}\n```"
	v := parseVerdict(text)
	assert.False(t, v.Satisfied)
	assert.Equal(t, "first", v.Reasoning)
}

// ===== Painter Call Recovery =====

func TestExtractPainterInstruction_MatchesNarratedCall(t *testing.T) {
	text := `I will now call gemini_image_painter(prompt="Add a red circle to the header area")`
	got, ok := extractPainterInstruction(text)
	require.True(t, ok)
	assert.Equal(t, "Add a red circle to the header area", got)
}

func TestExtractPainterInstruction_ToleratesWhitespace(t *testing.T) {
	text := `gemini_image_painter ( prompt = "tidy the sidebar" )`
	got, ok := extractPainterInstruction(text)
	require.True(t, ok)
	assert.Equal(t, "tidy the sidebar", got)
}

func TestExtractPainterInstruction_NoMatch(t *testing.T) {
	_, ok := extractPainterInstruction("the model refused to cooperate")
	assert.False(t, ok)

	_, ok = extractPainterInstruction("")
	assert.False(t, ok)
}

func TestExtractPainterInstruction_IgnoresOtherTools(t *testing.T) {
	_, ok := extractPainterInstruction(`other_tool(prompt="nope")`)
	assert.False(t, ok)
}

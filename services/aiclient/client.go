// Package aiclient provides the model-facing capability clients for the
// agentic edit pipeline: instruction refinement, edit judging, and image
// generation. All free-text munging (function-call extraction, fenced
// JSON parsing) stays behind these interfaces; callers only ever see
// parsed verdicts and decoded rasters.
package aiclient

import (
	"context"
	"fmt"
	"image"

	"github.com/kestrelworks/snapstudio/services/vision"
)

// Model identifiers. The only provider-specific configuration in the
// codebase; change these values to switch providers.
const (
	// ModelPlanning handles text reasoning and planning (optimized for speed).
	ModelPlanning = "gemini-3-flash-preview"
	// ModelImageGeneration handles image generation and editing.
	ModelImageGeneration = "gemini-3-pro-image-preview"
	// ModelPro handles complex reasoning without image output.
	ModelPro = "gemini-3-pro-preview"
	// ModelFast handles quick tasks (element identification, simple checks).
	ModelFast = "gemini-3-flash-preview"
)

// Token budgets for extended reasoning.
const (
	ThinkingBudgetHigh   = 8192 // complex planning and reasoning
	ThinkingBudgetMedium = 4096 // quality checks and validation
	ThinkingBudgetLow    = 2048 // simple identification tasks
)

// ReferencePoint is a labeled marker the user placed on the canvas for
// spatial commands ("move A to B").
type ReferencePoint struct {
	Label string
	X     float64
	Y     float64
}

// Shape is the metadata of one user-drawn annotation on the canvas.
// Coordinates are canvas pixels.
type Shape struct {
	Type              string // line, arrow, rectangle, diamond, ellipse, freedraw, text
	StrokeColor       string // hex, e.g. "#e03131"
	BackgroundColor   string
	X, Y              float64
	Width, Height     float64
	StartX, StartY    *float64
	EndX, EndY        *float64
	HasStartArrowhead bool
	HasEndArrowhead   bool
	PointCount        int
	TextContent       string
	FontSize          float64
}

// RefineRequest carries everything the planner may use to sharpen the
// user's instruction into a detailed edit description.
type RefineRequest struct {
	Instruction     string
	ReferencePoints []ReferencePoint
	Shapes          []Shape
	HasMask         bool
}

// Verdict is the judge's structured answer to whether a generated edit
// satisfies the user's request. Reasoning is never empty: implementations
// substitute a generic statement when the model omits one.
// RevisedInstruction is nil when the judge has no usable revision.
type Verdict struct {
	Satisfied          bool
	Reasoning          string
	RevisedInstruction *string
}

// TextRequest is a plain text-generation request.
type TextRequest struct {
	Prompt         string
	SystemPrompt   string
	ThinkingBudget int
}

// PlanningClient refines instructions and judges candidate edits.
type PlanningClient interface {
	// Refine turns the raw instruction into a detailed edit description.
	Refine(ctx context.Context, source *image.RGBA, req RefineRequest) (string, error)

	// Judge evaluates a candidate against the original request. The
	// report holds only the regions the caller considers significant.
	Judge(ctx context.Context, before, after *image.RGBA, original, attempted string, report *vision.DetectionResult) (*Verdict, error)
}

// GenerationClient produces an edited raster from a source raster and an
// instruction. A non-nil mask restricts the edit to the white area and
// must match the source dimensions.
type GenerationClient interface {
	Edit(ctx context.Context, source *image.RGBA, instruction string, mask *image.RGBA) (*image.RGBA, error)
}

// ImageGenerator produces a raster from text alone.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*image.RGBA, error)
}

// TextClient generates plain text.
type TextClient interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// PlanningError wraps failures of Refine or Judge calls.
type PlanningError struct {
	Op  string // "refine" or "judge"
	Err error
}

func (e *PlanningError) Error() string { return fmt.Sprintf("planning %s: %v", e.Op, e.Err) }
func (e *PlanningError) Unwrap() error { return e.Err }

// GenerationError wraps failures of image generation calls.
type GenerationError struct {
	Op  string // "edit" or "generate"
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("image generation %s: %v", e.Op, e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

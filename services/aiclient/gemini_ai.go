package aiclient

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"github.com/kestrelworks/snapstudio/pkg/imaging"
	"github.com/kestrelworks/snapstudio/services/vision"
)

var tracer = otel.Tracer("snapstudio.aiclient") // Shared by all model backends

// GeminiClient backs all four capability interfaces with the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

var (
	_ PlanningClient   = (*GeminiClient)(nil)
	_ GenerationClient = (*GeminiClient)(nil)
	_ ImageGenerator   = (*GeminiClient)(nil)
	_ TextClient       = (*GeminiClient)(nil)
)

// NewGeminiClient builds a client from GEMINI_API_KEY or GOOGLE_API_KEY,
// falling back to the container secret when neither is set.
func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		secretPath := "/run/secrets/gemini_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read Gemini API Key from Podman Secrets")
		}
	}
	if apiKey == "" {
		slog.Warn("Gemini API Key is missing.")
		return nil, fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY must be set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Refine implements PlanningClient.
//
// The planner is forced through a function declaration so the refined
// instruction comes back structured. When the model narrates the call in
// prose instead, the instruction is recovered from the text; when nothing
// can be recovered the raw instruction is returned unchanged.
func (g *GeminiClient) Refine(ctx context.Context, source *image.RGBA, req RefineRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "GeminiClient.Refine")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", ModelPlanning))

	sourcePNG, err := imaging.EncodePNG(source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &PlanningError{Op: "refine", Err: err}
	}

	parts := []*genai.Part{
		{Text: buildPlanningPrompt(req)},
		{InlineData: &genai.Blob{MIMEType: "image/png", Data: sourcePNG}},
	}

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        painterToolName,
				Description: "Edits the image. Provide a detailed prompt describing what to create/modify, including style and coherence details.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"prompt": {
							Type:        genai.TypeString,
							Description: "Detailed description of the edit, including how it should fit naturally into the image.",
						},
					},
					Required: []string{"prompt"},
				},
			}},
		}},
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget:  genai.Ptr(int32(ThinkingBudgetHigh)),
			IncludeThoughts: true,
		},
	}

	slog.Debug("Sending planning request to Gemini", "model", ModelPlanning)
	resp, err := g.client.Models.GenerateContent(ctx, ModelPlanning,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Gemini planning call failed", "error", err)
		return "", &PlanningError{Op: "refine", Err: err}
	}

	refined := ""
	responseText := ""
	for _, part := range candidateParts(resp) {
		switch {
		case part.FunctionCall != nil && part.FunctionCall.Name == painterToolName:
			if p, ok := part.FunctionCall.Args["prompt"].(string); ok && p != "" {
				refined = p
			}
		case part.Thought && part.Text != "":
			slog.Debug("Planner thoughts", "thinking", part.Text)
		case part.Text != "":
			responseText += part.Text
		}
	}

	if refined == "" {
		if recovered, ok := extractPainterInstruction(responseText); ok {
			refined = recovered
		}
	}
	if refined == "" {
		slog.Warn("Planner made no tool call, keeping raw instruction")
		return req.Instruction, nil
	}

	slog.Info("Planning complete", "refined_length", len(refined))
	return refined, nil
}

// Judge implements PlanningClient.
func (g *GeminiClient) Judge(ctx context.Context, before, after *image.RGBA, original, attempted string, report *vision.DetectionResult) (*Verdict, error) {
	ctx, span := tracer.Start(ctx, "GeminiClient.Judge")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", ModelPlanning))

	beforePNG, err := imaging.EncodePNG(before)
	if err != nil {
		return nil, &PlanningError{Op: "judge", Err: err}
	}
	afterPNG, err := imaging.EncodePNG(after)
	if err != nil {
		return nil, &PlanningError{Op: "judge", Err: err}
	}

	parts := []*genai.Part{
		{Text: "ORIGINAL IMAGE:"},
		{InlineData: &genai.Blob{MIMEType: "image/png", Data: beforePNG}},
		{Text: "EDITED IMAGE:"},
		{InlineData: &genai.Blob{MIMEType: "image/png", Data: afterPNG}},
		{Text: buildEvaluationPrompt(original, attempted, report)},
	}

	config := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget:  genai.Ptr(int32(ThinkingBudgetMedium)),
			IncludeThoughts: true,
		},
	}

	slog.Debug("Sending evaluation request to Gemini", "model", ModelPlanning)
	resp, err := g.client.Models.GenerateContent(ctx, ModelPlanning,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Gemini evaluation call failed", "error", err)
		return nil, &PlanningError{Op: "judge", Err: err}
	}

	fullText := ""
	for _, part := range candidateParts(resp) {
		if !part.Thought && part.Text != "" {
			fullText += part.Text
		}
	}

	verdict := parseVerdict(fullText)
	slog.Info("Evaluation complete", "satisfied", verdict.Satisfied)
	return verdict, nil
}

// Edit implements GenerationClient.
func (g *GeminiClient) Edit(ctx context.Context, source *image.RGBA, instruction string, mask *image.RGBA) (*image.RGBA, error) {
	if mask != nil && !mask.Bounds().Size().Eq(source.Bounds().Size()) {
		return nil, &GenerationError{Op: "edit", Err: fmt.Errorf(
			"mask dimensions %v do not match source %v", mask.Bounds().Size(), source.Bounds().Size())}
	}

	sourcePNG, err := imaging.EncodePNG(source)
	if err != nil {
		return nil, &GenerationError{Op: "edit", Err: err}
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: "image/png", Data: sourcePNG}},
		{Text: instruction},
	}
	if mask != nil {
		maskPNG, err := imaging.EncodePNG(mask)
		if err != nil {
			return nil, &GenerationError{Op: "edit", Err: err}
		}
		// Mask goes between the source and the instruction.
		parts = []*genai.Part{
			parts[0],
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: maskPNG}},
			parts[1],
		}
	}

	return g.generateImage(ctx, "edit", parts)
}

// Generate implements ImageGenerator.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (*image.RGBA, error) {
	return g.generateImage(ctx, "generate", []*genai.Part{{Text: prompt}})
}

func (g *GeminiClient) generateImage(ctx context.Context, op string, parts []*genai.Part) (*image.RGBA, error) {
	ctx, span := tracer.Start(ctx, "GeminiClient.GenerateImage")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", ModelImageGeneration))
	span.SetAttributes(attribute.String("llm.op", op))

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"image", "text"},
	}

	slog.Debug("Sending image request to Gemini", "model", ModelImageGeneration, "op", op)
	resp, err := g.client.Models.GenerateContent(ctx, ModelImageGeneration,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Gemini image call failed", "op", op, "error", err)
		return nil, &GenerationError{Op: op, Err: err}
	}

	for _, part := range candidateParts(resp) {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			img, _, err := imaging.DecodeBytes(part.InlineData.Data)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, &GenerationError{Op: op, Err: fmt.Errorf("decode generated image: %w", err)}
			}
			slog.Info("Image generation complete", "op", op, "bytes", len(part.InlineData.Data))
			return img, nil
		}
	}
	err = &GenerationError{Op: op, Err: fmt.Errorf("no image in response")}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

// GenerateText implements TextClient.
func (g *GeminiClient) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "GeminiClient.GenerateText")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", ModelFast))

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.ThinkingBudget > 0 {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(req.ThinkingBudget)),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, ModelFast,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("gemini text generation failed: %w", err)
	}

	text := ""
	for _, part := range candidateParts(resp) {
		if !part.Thought && part.Text != "" {
			text += part.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("received empty content from Gemini")
	}
	return text, nil
}

// candidateParts returns the first candidate's parts, or nil when the
// response carries none.
func candidateParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

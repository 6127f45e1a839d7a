package aiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kestrelworks/snapstudio/pkg/imaging"
	"github.com/kestrelworks/snapstudio/services/vision"
)

// OpenAIPlanner is an alternative PlanningClient for OpenAI-compatible
// endpoints (OpenAI itself, or self-hosted vLLM/Ollama gateways). Image
// generation stays on Gemini; this only covers refine/judge/text.
type OpenAIPlanner struct {
	client *openai.Client
	model  string
}

var (
	_ PlanningClient = (*OpenAIPlanner)(nil)
	_ TextClient     = (*OpenAIPlanner)(nil)
)

func NewOpenAIPlanner() (*OpenAIPlanner, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL") // e.g., "gpt-4o"
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
		slog.Info("Using OpenAI-compatible endpoint", "base_url", baseURL)
	}

	slog.Info("Initializing OpenAI planner", "model", model)
	return &OpenAIPlanner{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// painterToolSchema is the JSON Schema for the painter function exposed
// to OpenAI-compatible models.
var painterToolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"prompt": {
			"type": "string",
			"description": "Detailed description of the edit, including how it should fit naturally into the image."
		}
	},
	"required": ["prompt"]
}`)

// Refine implements PlanningClient.
func (o *OpenAIPlanner) Refine(ctx context.Context, source *image.RGBA, req RefineRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIPlanner.Refine")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	sourceURL, err := imaging.EncodePNGDataURL(source)
	if err != nil {
		return "", &PlanningError{Op: "refine", Err: err}
	}

	content := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: buildPlanningPrompt(req)},
		{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
			URL:    sourceURL,
			Detail: openai.ImageURLDetailAuto,
		}},
	}

	chatReq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: content},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        painterToolName,
				Description: "Edits the image. Provide a detailed prompt describing what to create/modify, including style and coherence details.",
				Parameters:  painterToolSchema,
			},
		}},
	}

	slog.Debug("Sending planning request to OpenAI", "model", o.model)
	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenAI planning call failed", "error", err)
		return "", &PlanningError{Op: "refine", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &PlanningError{Op: "refine", Err: fmt.Errorf("OpenAI returned no choices")}
	}

	msg := resp.Choices[0].Message
	for _, call := range msg.ToolCalls {
		if call.Function.Name != painterToolName {
			continue
		}
		var args struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err == nil && args.Prompt != "" {
			return args.Prompt, nil
		}
	}

	if recovered, ok := extractPainterInstruction(msg.Content); ok {
		return recovered, nil
	}
	slog.Warn("Planner made no tool call, keeping raw instruction")
	return req.Instruction, nil
}

// Judge implements PlanningClient.
func (o *OpenAIPlanner) Judge(ctx context.Context, before, after *image.RGBA, original, attempted string, report *vision.DetectionResult) (*Verdict, error) {
	ctx, span := tracer.Start(ctx, "OpenAIPlanner.Judge")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	beforeURL, err := imaging.EncodePNGDataURL(before)
	if err != nil {
		return nil, &PlanningError{Op: "judge", Err: err}
	}
	afterURL, err := imaging.EncodePNGDataURL(after)
	if err != nil {
		return nil, &PlanningError{Op: "judge", Err: err}
	}

	content := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: "ORIGINAL IMAGE:"},
		{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: beforeURL, Detail: openai.ImageURLDetailAuto}},
		{Type: openai.ChatMessagePartTypeText, Text: "EDITED IMAGE:"},
		{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: afterURL, Detail: openai.ImageURLDetailAuto}},
		{Type: openai.ChatMessagePartTypeText, Text: buildEvaluationPrompt(original, attempted, report)},
	}

	chatReq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: content},
		},
	}

	slog.Debug("Sending evaluation request to OpenAI", "model", o.model)
	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenAI evaluation call failed", "error", err)
		return nil, &PlanningError{Op: "judge", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &PlanningError{Op: "judge", Err: fmt.Errorf("OpenAI returned no choices")}
	}

	verdict := parseVerdict(resp.Choices[0].Message.Content)
	slog.Info("Evaluation complete", "satisfied", verdict.Satisfied)
	return verdict, nil
}

// GenerateText implements TextClient.
func (o *OpenAIPlanner) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIPlanner.GenerateText")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	slog.Debug("Generating text via OpenAI", "model", o.model)
	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = "You are a helpful assistant."
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

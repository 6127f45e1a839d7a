// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// Shared fixtures for the handler tests

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/snapstudio/pkg/imaging"
	"github.com/kestrelworks/snapstudio/services/aiclient"
	"github.com/kestrelworks/snapstudio/services/vision"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Model Client Fakes
// =============================================================================

type fakePlanner struct {
	refined    string
	refineErr  error
	verdicts   []aiclient.Verdict
	judgeErr   error
	judgeCalls int
}

func (f *fakePlanner) Refine(ctx context.Context, source *image.RGBA, req aiclient.RefineRequest) (string, error) {
	if f.refineErr != nil {
		return "", f.refineErr
	}
	if f.refined != "" {
		return f.refined, nil
	}
	return req.Instruction, nil
}

func (f *fakePlanner) Judge(ctx context.Context, before, after *image.RGBA, original, attempted string, report *vision.DetectionResult) (*aiclient.Verdict, error) {
	f.judgeCalls++
	if f.judgeErr != nil {
		return nil, f.judgeErr
	}
	if len(f.verdicts) == 0 {
		return &aiclient.Verdict{Satisfied: true, Reasoning: "looks right"}, nil
	}
	v := f.verdicts[0]
	f.verdicts = f.verdicts[1:]
	return &v, nil
}

type fakeGenerator struct {
	out   *image.RGBA
	err   error
	calls int
}

func (f *fakeGenerator) Edit(ctx context.Context, source *image.RGBA, instruction string, mask *image.RGBA) (*image.RGBA, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return testRaster(source.Bounds().Dx(), source.Bounds().Dy(), color.RGBA{R: 200, A: 255}), nil
}

type fakeImageGen struct {
	out *image.RGBA
	err error
}

func (f *fakeImageGen) Generate(ctx context.Context, prompt string) (*image.RGBA, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

type fakeTextGen struct {
	text string
	err  error
	last aiclient.TextRequest
}

func (f *fakeTextGen) GenerateText(ctx context.Context, req aiclient.TextRequest) (string, error) {
	f.last = req
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// =============================================================================
// Request Helpers
// =============================================================================

func testRaster(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func testRasterDataURL(t *testing.T, w, h int, c color.RGBA) string {
	t.Helper()
	dataURL, err := imaging.EncodePNGDataURL(testRaster(w, h, c))
	require.NoError(t, err)
	return dataURL
}

func performJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// SSE Parsing
// =============================================================================

type sseEvent struct {
	id    string
	event string
	data  string
}

// parseSSE splits a response body into frames, dropping comment lines.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()

	var events []sseEvent
	var cur sseEvent
	flush := func() {
		if cur.event != "" || cur.data != "" {
			events = append(events, cur)
		}
		cur = sseEvent{}
	}

	for _, line := range strings.Split(body, "\n") {
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "id: "):
			cur.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		default:
			t.Fatalf("unexpected SSE line %q", line)
		}
	}
	flush()
	return events
}

func progressSteps(t *testing.T, events []sseEvent) []string {
	t.Helper()

	var steps []string
	for _, evt := range events {
		if evt.event != "progress" {
			continue
		}
		var payload struct {
			Step string `json:"step"`
		}
		require.NoError(t, json.Unmarshal([]byte(evt.data), &payload))
		steps = append(steps, payload.Step)
	}
	return steps
}

func decodeJSONBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

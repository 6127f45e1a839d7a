// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agentic drives the iterative screenshot-edit loop: a planning
// model refines the user's instruction, a generation model produces a
// candidate, and a judge model evaluates the candidate against the
// request, revising the instruction until it is satisfied or the
// iteration budget runs out.
package agentic

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kestrelworks/snapstudio/services/aiclient"
	"github.com/kestrelworks/snapstudio/services/vision"
)

var tracer = otel.Tracer("snapstudio.agentic")

const (
	// DefaultMaxIterations is the generation attempt budget per request.
	DefaultMaxIterations = 3

	// DefaultSignificanceFloor filters detected regions before they are
	// shown to the judge. Regions below it are treated as generation
	// noise rather than intentional edits.
	DefaultSignificanceFloor = 35
)

// Options tunes the edit loop. The zero value uses the documented
// defaults.
type Options struct {
	// MaxIterations caps generation attempts. Values < 1 use
	// DefaultMaxIterations.
	MaxIterations int

	// SignificanceFloor is the minimum region significance passed to
	// the judge. Values < 1 use DefaultSignificanceFloor.
	SignificanceFloor int

	// ContinueWithoutRevision keeps iterating with the unchanged
	// instruction when the judge rejects a candidate but offers no
	// revision. When false, such a candidate is accepted as-is rather
	// than retried blindly.
	ContinueWithoutRevision bool

	// Detection configures the region detector used during evaluation.
	Detection vision.Options

	// Logger receives loop progress and degradation warnings. Nil uses
	// slog.Default.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxIterations < 1 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.SignificanceFloor < 1 {
		o.SignificanceFloor = DefaultSignificanceFloor
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Outcome describes how a run terminated successfully.
type Outcome string

const (
	// OutcomeAccepted means the judge approved a candidate (or the
	// judge call failed and the candidate was kept to avoid blocking).
	OutcomeAccepted Outcome = "accepted"
	// OutcomeAcceptedByDefault means the judge rejected the candidate
	// but offered no usable revision.
	OutcomeAcceptedByDefault Outcome = "accepted_by_default"
	// OutcomeExhausted means the iteration budget ran out; the last
	// candidate is returned.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeFallback means iteration aborted on a generation error and
	// the single direct retry produced the result.
	OutcomeFallback Outcome = "fallback"
)

// Request carries one edit job.
type Request struct {
	// Source is the raster to edit. Read-only for the whole run.
	Source *image.RGBA
	// Mask optionally restricts the edit to the white area. Must match
	// the source dimensions.
	Mask *image.RGBA
	// Instruction is the user's raw edit request.
	Instruction string
	// ReferencePoints and Shapes are optional canvas annotations handed
	// to the planner.
	ReferencePoints []aiclient.ReferencePoint
	Shapes          []aiclient.Shape
}

// Result is the terminal state of a successful run.
type Result struct {
	// Image is the final candidate.
	Image *image.RGBA
	// Iterations is the number of generation calls made, including a
	// fallback call if one was needed.
	Iterations int
	// FinalInstruction is the instruction that produced Image.
	FinalInstruction string
	Outcome          Outcome
	// Reasoning is the judge's explanation for the terminal verdict,
	// where one exists.
	Reasoning string
}

// Controller owns one configured edit loop. Safe for concurrent use:
// every run allocates its own state.
type Controller struct {
	planner   aiclient.PlanningClient
	generator aiclient.GenerationClient
	opts      Options
	logger    *slog.Logger
}

// NewController wires the two model capabilities into a loop.
//
// # Inputs
//
//   - planner: refines instructions and judges candidates.
//   - generator: produces edited rasters.
//   - opts: loop tuning; zero value for defaults.
func NewController(planner aiclient.PlanningClient, generator aiclient.GenerationClient, opts Options) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		planner:   planner,
		generator: generator,
		opts:      opts,
		logger:    opts.Logger,
	}
}

// Run executes the edit loop for one request.
//
// # Description
//
// Refine, then iterate: generate a candidate, evaluate it with the
// region detector plus the judge, and either accept, revise, or stop.
// The error policy is deliberately permissive so a failed model call
// degrades rather than surfaces: a refine failure falls back to the raw
// instruction, a judge failure accepts the current candidate, and a
// generation failure triggers exactly one direct retry. Only that
// retry's failure, or caller cancellation, produces an error.
//
// Evaluation is skipped on the final iteration; the last candidate is
// returned as OutcomeExhausted.
//
// # Inputs
//
//   - ctx: cancellation terminates the run immediately, with no
//     fallback attempt.
//   - req: the edit job. Source and Instruction are required.
//   - sink: optional step notifications; nil is allowed.
//
// # Outputs
//
//   - *Result: terminal state carrying the final raster. Never nil when
//     the error is nil.
//   - error: cancellation, invalid input, or a failed fallback.
func (c *Controller) Run(ctx context.Context, req Request, sink ProgressSink) (*Result, error) {
	if req.Source == nil {
		return nil, fmt.Errorf("source raster is required")
	}
	if req.Instruction == "" {
		return nil, fmt.Errorf("instruction is required")
	}

	ctx, span := tracer.Start(ctx, "agentic.EditLoop",
		trace.WithAttributes(
			attribute.Int("edit.max_iterations", c.opts.MaxIterations),
			attribute.Bool("edit.has_mask", req.Mask != nil),
		),
	)
	defer span.End()

	res, err := c.run(ctx, req, sink)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("edit.outcome", string(res.Outcome)),
		attribute.Int("edit.iterations", res.Iterations),
	)
	return res, nil
}

func (c *Controller) run(ctx context.Context, req Request, sink ProgressSink) (*Result, error) {
	maxIter := c.opts.MaxIterations

	emit(sink, ProgressEvent{
		Step:    StepPlanning,
		Message: "Refining edit instruction",
		Max:     maxIter,
	})

	current, err := c.planner.Refine(ctx, req.Source, aiclient.RefineRequest{
		Instruction:     req.Instruction,
		ReferencePoints: req.ReferencePoints,
		Shapes:          req.Shapes,
		HasMask:         req.Mask != nil,
	})
	if err != nil {
		if cErr := canceled(ctx, err); cErr != nil {
			emit(sink, ProgressEvent{Step: StepError, Message: "Edit canceled", Err: cErr})
			return nil, cErr
		}
		c.logger.Warn("Instruction refinement failed, using raw instruction", "error", err)
		current = req.Instruction
	}

	iterations := 0
	for i := 0; ; i++ {
		attempt := i + 1
		emit(sink, ProgressEvent{
			Step:        StepGenerating,
			Message:     fmt.Sprintf("Generating image (attempt %d/%d)", attempt, maxIter),
			Attempt:     attempt,
			Max:         maxIter,
			Instruction: current,
		})

		candidate, err := c.generator.Edit(ctx, req.Source, current, req.Mask)
		iterations++
		if err != nil {
			if cErr := canceled(ctx, err); cErr != nil {
				emit(sink, ProgressEvent{Step: StepError, Message: "Edit canceled", Err: cErr})
				return nil, cErr
			}
			return c.fallback(ctx, req, current, iterations, sink, err)
		}

		if i >= maxIter-1 {
			c.logger.Info("Iteration budget exhausted, keeping last candidate", "iterations", iterations)
			emit(sink, ProgressEvent{
				Step:    StepComplete,
				Message: "Max iterations reached, using final result",
				Attempt: attempt,
				Max:     maxIter,
				Image:   candidate,
			})
			return &Result{
				Image:            candidate,
				Iterations:       iterations,
				FinalInstruction: current,
				Outcome:          OutcomeExhausted,
				Reasoning:        "Max iterations reached",
			}, nil
		}

		emit(sink, ProgressEvent{
			Step:    StepEvaluating,
			Message: "Evaluating the result",
			Attempt: attempt,
			Max:     maxIter,
			Image:   candidate,
		})

		report := c.evaluate(req.Source, candidate)
		verdict, err := c.planner.Judge(ctx, req.Source, candidate, req.Instruction, current, report)
		if err != nil {
			if cErr := canceled(ctx, err); cErr != nil {
				emit(sink, ProgressEvent{Step: StepError, Message: "Edit canceled", Err: cErr})
				return nil, cErr
			}
			// Assume satisfied to avoid infinite retries.
			c.logger.Warn("Judge call failed, accepting candidate", "error", err)
			emit(sink, ProgressEvent{
				Step:    StepComplete,
				Message: "Evaluation unavailable, keeping result",
				Attempt: attempt,
				Max:     maxIter,
				Image:   candidate,
			})
			return &Result{
				Image:            candidate,
				Iterations:       iterations,
				FinalInstruction: current,
				Outcome:          OutcomeAccepted,
				Reasoning:        fmt.Sprintf("Check failed: %v", err),
			}, nil
		}

		if verdict.Satisfied {
			emit(sink, ProgressEvent{
				Step:    StepComplete,
				Message: "AI approved: " + verdict.Reasoning,
				Attempt: attempt,
				Max:     maxIter,
				Image:   candidate,
			})
			return &Result{
				Image:            candidate,
				Iterations:       iterations,
				FinalInstruction: current,
				Outcome:          OutcomeAccepted,
				Reasoning:        verdict.Reasoning,
			}, nil
		}

		if verdict.RevisedInstruction != nil && *verdict.RevisedInstruction != "" {
			current = *verdict.RevisedInstruction
			emit(sink, ProgressEvent{
				Step:        StepRevising,
				Message:     "AI requested revision: " + verdict.Reasoning,
				Attempt:     attempt,
				Max:         maxIter,
				Instruction: current,
			})
			continue
		}

		if c.opts.ContinueWithoutRevision {
			emit(sink, ProgressEvent{
				Step:        StepRevising,
				Message:     "AI rejected the result without a revision, retrying",
				Attempt:     attempt,
				Max:         maxIter,
				Instruction: current,
			})
			continue
		}

		emit(sink, ProgressEvent{
			Step:    StepComplete,
			Message: "No usable revision, keeping result",
			Attempt: attempt,
			Max:     maxIter,
			Image:   candidate,
		})
		return &Result{
			Image:            candidate,
			Iterations:       iterations,
			FinalInstruction: current,
			Outcome:          OutcomeAcceptedByDefault,
			Reasoning:        verdict.Reasoning,
		}, nil
	}
}

// fallback makes the single direct generation retry after an iteration
// aborted on a generation error. Only its failure reaches the caller.
func (c *Controller) fallback(ctx context.Context, req Request, instruction string, iterations int, sink ProgressSink, cause error) (*Result, error) {
	c.logger.Warn("Generation failed, attempting one direct retry", "error", cause)
	emit(sink, ProgressEvent{
		Step:        StepGenerating,
		Message:     "Generation failed, retrying once without iteration",
		Instruction: instruction,
	})

	candidate, err := c.generator.Edit(ctx, req.Source, instruction, req.Mask)
	iterations++
	if err != nil {
		if cErr := canceled(ctx, err); cErr != nil {
			emit(sink, ProgressEvent{Step: StepError, Message: "Edit canceled", Err: cErr})
			return nil, cErr
		}
		c.logger.Error("Fallback generation failed", "error", err)
		emit(sink, ProgressEvent{Step: StepError, Message: "Image generation failed", Err: err})
		return nil, err
	}

	emit(sink, ProgressEvent{
		Step:    StepComplete,
		Message: "Recovered with a direct generation",
		Image:   candidate,
	})
	return &Result{
		Image:            candidate,
		Iterations:       iterations,
		FinalInstruction: instruction,
		Outcome:          OutcomeFallback,
		Reasoning:        fmt.Sprintf("Iteration aborted: %v", cause),
	}, nil
}

// evaluate runs the region detector and filters the regions the judge
// should see. A detector failure yields a nil report; the judge still
// sees both rasters.
func (c *Controller) evaluate(source, candidate *image.RGBA) *vision.DetectionResult {
	res, err := vision.Detect(source, candidate, c.opts.Detection)
	if err != nil {
		c.logger.Warn("Region detection failed during evaluation", "error", err)
		return nil
	}

	filtered := make([]vision.EditRegion, 0, len(res.Regions))
	for _, r := range res.Regions {
		if r.Significance >= c.opts.SignificanceFloor {
			filtered = append(filtered, r)
		}
	}
	out := *res
	out.Regions = filtered
	return &out
}

// canceled reports the context error to propagate when err stems from
// caller cancellation, or nil when it is an ordinary failure.
func canceled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

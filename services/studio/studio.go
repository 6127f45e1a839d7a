// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package studio provides the core HTTP service for SnapStudio.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, model clients, the edit journal, and
// observability infrastructure (tracing and metrics).
//
// # Degraded Mode
//
// The service starts even when no model API key is configured. Health
// reporting exposes model readiness, and the handlers refuse
// model-backed requests with 503 until a client is available. This
// keeps local development and the offline endpoints (health, echo,
// history, metrics) usable without credentials.
//
// # Usage
//
//	cfg := studio.Config{Port: 12310}
//	svc, err := studio.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kestrelworks/snapstudio/services/agentic"
	"github.com/kestrelworks/snapstudio/services/aiclient"
	"github.com/kestrelworks/snapstudio/services/history"
	"github.com/kestrelworks/snapstudio/services/studio/handlers"
	"github.com/kestrelworks/snapstudio/services/studio/middleware"
	"github.com/kestrelworks/snapstudio/services/studio/observability"
	"github.com/kestrelworks/snapstudio/services/studio/routes"
)

// shutdownTimeout bounds how long Run waits for in-flight requests,
// including open SSE streams, once shutdown begins.
const shutdownTimeout = 10 * time.Second

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the studio service.
//
// # Description
//
// Service abstracts the studio lifecycle, enabling testing and
// alternative implementations. The interface follows the minimal
// surface area principle: only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
//   - Run() is called at most once per Service instance
type Service interface {
	// Run starts the HTTP server and blocks until ctx is canceled or the
	// server fails.
	//
	// # Description
	//
	// Starts the Gin HTTP server on the configured port. Canceling ctx
	// begins a graceful shutdown: the listener closes, in-flight
	// requests get shutdownTimeout to finish, then resources are
	// released.
	//
	// # Inputs
	//
	//   - ctx: Cancellation signals shutdown. Typically wired to
	//     SIGINT/SIGTERM by the caller.
	//
	// # Outputs
	//
	//   - error: Non-nil if the server fails to start or shutdown does
	//     not complete cleanly. A cancellation-driven shutdown returns
	//     nil.
	Run(ctx context.Context) error

	// Router returns the underlying Gin engine for testing.
	//
	// # Description
	//
	// Provides access to the configured Gin router, primarily for
	// integration testing where direct HTTP calls are needed.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered
	//
	// # Assumptions
	//
	//   - Caller will not modify the router
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds studio service configuration options.
//
// # Description
//
// Config centralizes all configuration for the studio service. Values
// can be populated from environment variables, a config file, or
// programmatically for testing.
//
// # Required Fields
//
// None. All fields have sensible defaults.
//
// # Examples
//
//	// Minimal config (uses all defaults)
//	cfg := Config{}
//
//	// Custom port and planning backend
//	cfg := Config{
//	    Port:           8080,
//	    PlannerBackend: "openai",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// PlannerBackend selects the model provider for planning and
	// judging. Valid values: "gemini", "openai". Default: "gemini".
	// Image generation always uses Gemini.
	PlannerBackend string

	// HistoryPath is the directory for the edit journal's BadgerDB
	// files. Default: "./data/history"
	HistoryPath string

	// HistoryInMemory keeps the edit journal in memory only.
	// Useful for testing and throwaway runs.
	HistoryInMemory bool

	// OTelEndpoint is the OpenTelemetry collector endpoint, for
	// example "localhost:4317". Empty disables tracing.
	OTelEndpoint string

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// APIToken guards the /api routes with bearer-token auth.
	// Empty disables authentication.
	APIToken string

	// Version is reported by the health endpoint. Default: "dev"
	Version string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - HTTP routing via Gin
//   - Model clients for planning, generation, and text
//   - The BadgerDB edit journal
//   - OpenTelemetry tracing
//   - Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	planner       aiclient.PlanningClient
	generator     aiclient.GenerationClient
	textGen       aiclient.TextClient
	imageGen      aiclient.ImageGenerator
	journal       *history.Store
	metrics       *observability.Metrics
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new studio Service with the given configuration.
//
// # Description
//
// New initializes all service components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing (when an endpoint is set)
//  3. Initializes Prometheus metrics
//  4. Opens the edit journal
//  5. Creates model clients based on the planner backend
//  6. Sets up HTTP routes
//
// Journal and model client failures are not fatal: the service starts
// in degraded mode and the affected endpoints refuse requests. An
// explicitly configured backend that cannot be constructed is a
// configuration error and fails New.
//
// # Inputs
//
//   - ctx: Used for model client construction.
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run studio service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for model providers (API keys)
//   - Network is available for external service connections
func New(ctx context.Context, cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	} else {
		slog.Info("Tracing disabled, no collector endpoint configured")
	}

	s.metrics = observability.InitMetrics()

	if err := s.initJournal(); err != nil {
		slog.Warn("Edit journal initialization failed, running without history",
			"error", err)
		// Not fatal - continue without the journal
	}

	if err := s.initModelClients(ctx); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize model clients: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until ctx is canceled or the
// server fails.
//
// # Description
//
// Serves HTTP on the configured port. On ctx cancellation the listener
// stops accepting connections and in-flight requests get
// shutdownTimeout to complete before the server closes. Cleanup of the
// journal and tracer is automatic on return.
//
// # Outputs
//
//   - error: Non-nil if the server fails to start or shutdown errors
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
		// No write timeout: the SSE endpoints hold their streams open
		// for the whole edit workflow.
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting studio server", "port", s.config.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down studio server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.PlannerBackend == "" {
		cfg.PlannerBackend = "gemini"
	}
	if cfg.HistoryPath == "" && !cfg.HistoryInMemory {
		cfg.HistoryPath = "./data/history"
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// Sets up an OTLP trace exporter sending spans to the configured
// collector over gRPC, and installs the W3C trace-context and baggage
// propagators.
//
// # Outputs
//
//   - func(context.Context): Cleanup function to call on shutdown
//   - error: Non-nil if tracer setup fails
//
// # Limitations
//
//   - Uses an insecure gRPC connection (appropriate for internal
//     networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("snapstudio")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	slog.Info("Tracing initialized", "endpoint", s.config.OTelEndpoint)
	return cleanup, nil
}

// initJournal opens the BadgerDB edit journal.
func (s *service) initJournal() error {
	jcfg := history.DefaultConfig()
	jcfg.Path = s.config.HistoryPath
	if s.config.HistoryInMemory {
		jcfg = history.InMemoryConfig()
	}

	store, err := history.Open(jcfg)
	if err != nil {
		return err
	}
	s.journal = store

	slog.Info("Edit journal opened",
		"path", s.config.HistoryPath,
		"in_memory", s.config.HistoryInMemory)
	return nil
}

// initModelClients creates the model clients for the configured
// backend.
//
// # Description
//
// Gemini backs every capability it is available for. The "openai"
// backend replaces planning, judging, and text generation with an
// OpenAI-compatible endpoint; image generation stays on Gemini because
// the OpenAI chat API does not produce image bytes in this pipeline.
//
// A missing Gemini key degrades the service rather than failing it. A
// planner backend that is explicitly requested but cannot be built is
// a configuration error.
func (s *service) initModelClients(ctx context.Context) error {
	gemini, err := aiclient.NewGeminiClient(ctx)
	if err != nil {
		slog.Warn("Gemini client unavailable, model endpoints will refuse requests",
			"error", err)
	} else {
		s.planner = gemini
		s.generator = gemini
		s.imageGen = gemini
		s.textGen = gemini
	}

	switch s.config.PlannerBackend {
	case "gemini":
		slog.Info("Using Gemini planning backend")
	case "openai":
		planner, err := aiclient.NewOpenAIPlanner()
		if err != nil {
			return fmt.Errorf("failed to initialize OpenAI planner: %w", err)
		}
		s.planner = planner
		s.textGen = planner
		slog.Info("Using OpenAI-compatible planning backend")
	default:
		return fmt.Errorf("unknown planner backend %q", s.config.PlannerBackend)
	}

	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("snapstudio"))

	h := handlers.New(handlers.Config{
		Planner:   s.planner,
		Generator: s.generator,
		TextGen:   s.textGen,
		ImageGen:  s.imageGen,
		Journal:   s.journal,
		Metrics:   s.metrics,
		Version:   s.config.Version,
		EditOptions: agentic.Options{
			Logger: slog.Default().With("component", "agentic"),
		},
	})
	routes.SetupRoutes(s.router, h, middleware.TokenAuth(s.config.APIToken))
}

// cleanup releases all resources held by the service.
//
// # Description
//
// Called when Run() exits or on initialization failure. Closes the
// edit journal and shuts down the tracer.
func (s *service) cleanup() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			slog.Warn("Edit journal close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)

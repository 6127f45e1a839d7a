// Copyright (C) 2026 Kestrel Works (eng@kestrelworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command studio starts the SnapStudio HTTP server.
//
// This is the main entry point for the containerized studio service.
// Configuration merges three layers, lowest to highest precedence:
// YAML config file, environment variables, command-line flags.
//
// # Environment Variables
//
//   - SNAPSTUDIO_PORT: HTTP server port (default: 12310)
//   - SNAPSTUDIO_PLANNER_BACKEND: planning model - gemini, openai (default: gemini)
//   - SNAPSTUDIO_HISTORY_PATH: edit journal directory (default: ./data/history)
//   - SNAPSTUDIO_API_TOKEN: bearer token for /api routes (empty disables auth)
//   - SNAPSTUDIO_CONFIG: path to a YAML config file
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (empty disables tracing)
//   - GEMINI_API_KEY, OPENAI_API_KEY: model provider credentials
//
// # Usage
//
//	# Build
//	go build -o studio ./cmd/studio
//
//	# Run
//	./studio --port 12310
//
//	# Or via container
//	podman-compose up studio
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/kestrelworks/snapstudio/pkg/logging"
	"github.com/kestrelworks/snapstudio/services/studio"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// config is the merged runtime configuration of the studio binary. The
// YAML tags define the config file schema; zero values defer to the
// service defaults.
type config struct {
	Port            int    `yaml:"port"`
	PlannerBackend  string `yaml:"planner_backend"`
	HistoryPath     string `yaml:"history_path"`
	HistoryInMemory bool   `yaml:"history_in_memory"`
	OTelEndpoint    string `yaml:"otel_endpoint"`
	GinMode         string `yaml:"gin_mode"`
	APIToken        string `yaml:"api_token"`
	LogLevel        string `yaml:"log_level"`
	LogDir          string `yaml:"log_dir"`
	LogJSON         bool   `yaml:"log_json"`
}

func main() {
	var (
		configPath   = flag.String("config", os.Getenv("SNAPSTUDIO_CONFIG"), "path to a YAML config file")
		port         = flag.Int("port", 0, "HTTP server port (default 12310)")
		backend      = flag.String("planner-backend", "", "planning model backend: gemini or openai")
		historyPath  = flag.String("history-path", "", "directory for the edit journal (default ./data/history)")
		historyMem   = flag.Bool("history-in-memory", false, "keep the edit journal in memory only")
		otelEndpoint = flag.String("otel-endpoint", "", "OpenTelemetry collector endpoint, empty disables tracing")
		ginMode      = flag.String("gin-mode", "", "gin mode: debug, release, or test")
		logLevel     = flag.String("log-level", "", "log level: debug, info, warn, or error")
		logDir       = flag.String("log-dir", "", "directory for JSON log files, empty logs to stderr only")
		logJSON      = flag.Bool("log-json", false, "emit stderr logs as JSON")
		showVersion  = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyEnv(&cfg)

	// The API token deliberately has no flag: process arguments leak
	// through ps and shell history.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "planner-backend":
			cfg.PlannerBackend = *backend
		case "history-path":
			cfg.HistoryPath = *historyPath
		case "history-in-memory":
			cfg.HistoryInMemory = *historyMem
		case "otel-endpoint":
			cfg.OTelEndpoint = *otelEndpoint
		case "gin-mode":
			cfg.GinMode = *ginMode
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-dir":
			cfg.LogDir = *logDir
		case "log-json":
			cfg.LogJSON = *logJSON
		}
	})

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "studio",
		JSON:    cfg.LogJSON,
	})
	defer logger.Close()
	logger.SetDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := studio.New(ctx, studio.Config{
		Port:            cfg.Port,
		PlannerBackend:  cfg.PlannerBackend,
		HistoryPath:     cfg.HistoryPath,
		HistoryInMemory: cfg.HistoryInMemory,
		OTelEndpoint:    cfg.OTelEndpoint,
		GinMode:         cfg.GinMode,
		APIToken:        cfg.APIToken,
		Version:         version,
	})
	if err != nil {
		log.Fatalf("Failed to create studio service: %v", err)
	}

	slog.Info("Starting SnapStudio",
		"version", version,
		"planner_backend", cfg.PlannerBackend,
	)

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("Studio server error: %v", err)
	}
}

// loadConfig reads the YAML config file when a path is given. A missing
// path is not an error; a named file that cannot be read or parsed is.
func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *config) {
	cfg.Port = getEnvInt("SNAPSTUDIO_PORT", cfg.Port)
	cfg.PlannerBackend = getEnvString("SNAPSTUDIO_PLANNER_BACKEND", cfg.PlannerBackend)
	cfg.HistoryPath = getEnvString("SNAPSTUDIO_HISTORY_PATH", cfg.HistoryPath)
	cfg.OTelEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTelEndpoint)
	cfg.GinMode = getEnvString("GIN_MODE", cfg.GinMode)
	cfg.APIToken = getEnvString("SNAPSTUDIO_API_TOKEN", cfg.APIToken)
	cfg.LogLevel = getEnvString("SNAPSTUDIO_LOG_LEVEL", cfg.LogLevel)
	cfg.LogDir = getEnvString("SNAPSTUDIO_LOG_DIR", cfg.LogDir)
	if getEnvBool("SNAPSTUDIO_HISTORY_IN_MEMORY") {
		cfg.HistoryInMemory = true
	}
	if getEnvBool("SNAPSTUDIO_LOG_JSON") {
		cfg.LogJSON = true
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool reports whether the environment variable is a truthy
// value per strconv.ParseBool.
func getEnvBool(key string) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && value
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command umlserver serves the diagram API: model listing, image
// validation and PlantUML extraction, and per-user history.
//
// # Environment Variables
//
//   - UML_PORT: HTTP server port (default: 3001)
//   - UML_ENV: "production" disables .env loading
//   - GEMINI_API_KEY, GROQ_API_KEY, GITHUB_TOKEN: provider credentials
//   - UML_HISTORY_BACKEND: badger, postgres or none (default: badger)
//   - UML_CONFIG_FILE: optional YAML config file
//   - UML_LOG_LEVEL: debug, info, warn or error (default: info)
//   - UML_LOG_DIR: optional directory for a daily JSON log file
//
// # Usage
//
//	go build -o umlserver ./cmd/umlserver
//	GEMINI_API_KEY=... ./umlserver
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/AleutianAI/AleutianUML/pkg/logging"
	"github.com/AleutianAI/AleutianUML/services/umlserver"
)

func main() {
	if os.Getenv("UML_ENV") != "production" {
		// A missing .env is normal.
		_ = godotenv.Load()
	}

	logs := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("UML_LOG_LEVEL")),
		LogDir:  os.Getenv("UML_LOG_DIR"),
		Service: umlserver.ServiceName,
		JSON:    true,
		Writer:  os.Stdout,
	})
	defer logs.Close()
	logger := logs.Slog()
	slog.SetDefault(logger)

	cfg, err := umlserver.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting umlserver",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"history_backend", cfg.HistoryBackend,
		"blob_backend", cfg.BlobBackend,
		"version", umlserver.Version,
	)

	svc, err := umlserver.New(cfg, &umlserver.Options{Logger: logger})
	if err != nil {
		log.Fatalf("Failed to create umlserver: %v", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		logger.Error("umlserver stopped with error", "error", err)
	}
}

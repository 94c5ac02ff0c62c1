// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package umlserver provides the HTTP service behind the UML pipeline.
//
// The server lists the models whose provider credentials are configured,
// converts diagram images to PlantUML through those providers, classifies
// uploads, and keeps per-user generation history.
//
// # Usage
//
//	cfg, err := umlserver.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := umlserver.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	log.Fatal(svc.Run(ctx))
package umlserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianUML/pkg/extensions"
	"github.com/AleutianAI/AleutianUML/pkg/storage/badger"
	"github.com/AleutianAI/AleutianUML/services/diagram"
	"github.com/AleutianAI/AleutianUML/services/history"
	"github.com/AleutianAI/AleutianUML/services/llm"
	"github.com/AleutianAI/AleutianUML/services/umlserver/datatypes"
	"github.com/AleutianAI/AleutianUML/services/umlserver/middleware"
	"github.com/AleutianAI/AleutianUML/services/umlserver/observability"
	"github.com/AleutianAI/AleutianUML/services/umlserver/routes"
	"github.com/gin-gonic/gin"
	ghandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ServiceName identifies the server in traces and logs.
const ServiceName = "umlserver"

// Version is reported as service.version in telemetry.
var Version = "dev"

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the umlserver lifecycle.
//
// # Thread Safety
//
// Run blocks and must be called at most once. Router and Handler are safe
// to call at any time after New returns.
type Service interface {
	// Run serves HTTP until ctx is canceled, then shuts down gracefully
	// and releases all resources.
	Run(ctx context.Context) error

	// Router returns the Gin engine, without the CORS wrapper.
	Router() *gin.Engine

	// Handler returns the full HTTP handler as served by Run.
	Handler() http.Handler

	// Close releases resources without serving. Run calls it on exit.
	Close() error
}

// Options injects collaborators, mostly for tests and embedding. Every
// field is optional.
type Options struct {
	Logger *slog.Logger

	// Clients replaces the provider clients built from credentials.
	Clients map[diagram.Provider]llm.VisionClient

	// History replaces the configured history backend.
	History *history.Service

	// BlobReader serves /api/blobs when History is injected.
	BlobReader history.BlobReader

	AuthProvider extensions.AuthProvider

	// Registry receives Prometheus collectors. Default: a fresh registry.
	Registry *prometheus.Registry

	// SkipTelemetry leaves the global OpenTelemetry providers untouched.
	SkipTelemetry bool
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config  Config
	opts    Options
	logger  *slog.Logger
	router  *gin.Engine
	handler http.Handler
	metrics *observability.Metrics

	credentials map[diagram.Provider]*llm.Credential
	diagrams    *diagram.Service
	history     *history.Service
	blobReader  history.BlobReader
	hasGCS      bool
	auth        extensions.AuthProvider

	telemetryShutdown func(context.Context) error
	closeOnce         sync.Once
	closeErr          error
}

// New builds a ready-to-run server.
//
// # Description
//
// New applies defaults, installs telemetry, seals provider credentials,
// opens the history backend and registers all routes. Missing provider
// credentials and unreachable history backends degrade the service
// (fewer models, history disabled) rather than failing it.
//
// # Outputs
//
//   - Service: ready to Run
//   - error: invalid configuration or telemetry setup failure
func New(cfg Config, opts *Options) (Service, error) {
	cfg = applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &service{config: cfg}
	if opts != nil {
		s.opts = *opts
	}
	s.logger = s.opts.Logger
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s.metrics = observability.NewMetrics(s.opts.Registry)

	if !s.opts.SkipTelemetry {
		shutdown, err := observability.Init(context.Background(), observability.TelemetryConfig{
			ServiceName:    ServiceName,
			ServiceVersion: Version,
			Environment:    cfg.Environment,
			TraceExporter:  cfg.TraceExporter,
			MetricExporter: cfg.MetricExporter,
			OTLPEndpoint:   cfg.OTelEndpoint,
			Registerer:     s.metrics.Registry,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		s.telemetryShutdown = shutdown
	}

	s.initProviders()
	s.initHistory()
	if err := s.initAuth(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}
	s.initRouter()

	return s, nil
}

// Run serves on the configured port until ctx is done.
func (s *service) Run(ctx context.Context) error {
	defer func() { _ = s.Close() }()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting umlserver", "port", s.config.Port, "models", len(s.diagrams.Models()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down umlserver")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	}
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Handler() http.Handler {
	return s.handler
}

// Close flushes telemetry, closes the history stores and wipes sealed
// credentials. Safe to call more than once.
func (s *service) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.history != nil && s.opts.History == nil {
			errs = append(errs, s.history.Close())
		}
		if s.telemetryShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.telemetryShutdown(ctx); err != nil {
				s.logger.Error("failed to shutdown telemetry", "error", err)
			}
		}
		if s.opts.Clients == nil {
			llm.PurgeAllSecureMemory()
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initProviders seals the provider credentials and builds one vision
// client per configured provider.
func (s *service) initProviders() {
	s.credentials = map[diagram.Provider]*llm.Credential{
		diagram.ProviderGoogle: llm.LoadCredential("GEMINI_API_KEY", s.config.GeminiAPIKey, "gemini_api_key"),
		diagram.ProviderGroq:   llm.LoadCredential("GROQ_API_KEY", s.config.GroqAPIKey, "groq_api_key"),
		diagram.ProviderGitHub: llm.LoadCredential("GITHUB_TOKEN", s.config.GitHubToken, "github_token"),
	}

	clients := s.opts.Clients
	if clients == nil {
		clients = make(map[diagram.Provider]llm.VisionClient)
		if cred := s.credentials[diagram.ProviderGoogle]; cred.Present() {
			if c, err := llm.NewGeminiClient(cred); err != nil {
				s.logger.Warn("Gemini client unavailable", "error", err)
			} else {
				clients[diagram.ProviderGoogle] = c
			}
		}
		compat := map[diagram.Provider]llm.OpenAICompatConfig{
			diagram.ProviderGroq:   llm.GroqConfig(),
			diagram.ProviderGitHub: llm.GitHubConfig(),
		}
		for provider, cfg := range compat {
			cred := s.credentials[provider]
			if !cred.Present() {
				continue
			}
			c, err := llm.NewOpenAICompatClient(cfg, cred)
			if err != nil {
				s.logger.Warn("Provider client unavailable", "provider", provider, "error", err)
				continue
			}
			clients[provider] = c
		}
	}

	s.diagrams = diagram.NewService(diagram.ServiceConfig{
		Clients:         clients,
		ValidationModel: s.config.ValidationModel,
		Logger:          s.logger,
	})
	for _, p := range diagram.Providers() {
		s.logger.Info("Provider status", "provider", p, "configured", s.diagrams.Configured(p))
	}
}

// initHistory opens the configured history backend. Failures are logged
// and leave history disabled.
func (s *service) initHistory() {
	if s.opts.History != nil {
		s.history = s.opts.History
		s.blobReader = s.opts.BlobReader
		return
	}
	if s.config.HistoryBackend == "none" {
		s.logger.Info("History disabled")
		return
	}

	svc, reader, err := s.openHistory(context.Background())
	if err != nil {
		s.logger.Warn("History store unavailable, continuing without history", "backend", s.config.HistoryBackend, "error", err)
		return
	}
	s.history = svc
	s.blobReader = reader
	s.logger.Info("History store ready", "documents", s.config.HistoryBackend, "blobs", s.config.BlobBackend)
}

func (s *service) openBadger(sub string) (*badger.DB, error) {
	if s.config.HistoryPath == "" {
		return badger.OpenInMemory()
	}
	bcfg := badger.DefaultConfig(filepath.Join(s.config.HistoryPath, sub))
	bcfg.Logger = s.logger
	return badger.Open(bcfg)
}

func (s *service) openHistory(ctx context.Context) (*history.Service, history.BlobReader, error) {
	var (
		docs history.DocumentStore
		db   *badger.DB
	)
	switch s.config.HistoryBackend {
	case "postgres":
		store, err := history.NewPostgresStore(s.config.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		docs = store
	default:
		opened, err := s.openBadger("records")
		if err != nil {
			return nil, nil, fmt.Errorf("open badger: %w", err)
		}
		db = opened
		docs = history.NewBadgerStore(db)
	}

	switch s.config.BlobBackend {
	case "gcs":
		blobs, err := history.NewGCSBlobStore(ctx, s.config.GCSBucket, s.config.GCSCredentials)
		if err != nil {
			_ = docs.Close()
			return nil, nil, err
		}
		s.hasGCS = true
		return history.NewService(docs, blobs, s.logger), nil, nil
	default:
		if db == nil {
			opened, err := s.openBadger("blobs")
			if err != nil {
				_ = docs.Close()
				return nil, nil, fmt.Errorf("open badger blobs: %w", err)
			}
			db = opened
		}
		blobs := history.NewBadgerBlobStore(db, s.config.PublicBaseURL)
		return history.NewService(docs, blobs, s.logger), blobs, nil
	}
}

func (s *service) initAuth() error {
	if s.opts.AuthProvider != nil {
		s.auth = s.opts.AuthProvider
		return nil
	}
	if s.config.AuthTokens == "" {
		s.logger.Info("No auth tokens configured, every bearer token maps to the local user")
		s.auth = &extensions.NopAuthProvider{}
		return nil
	}
	tokens, err := extensions.ParseTokenList(s.config.AuthTokens)
	if err != nil {
		return err
	}
	provider := extensions.NewTokenAuthProvider(tokens)
	s.logger.Info("Bearer token auth enabled", "tokens", provider.Len())
	s.auth = provider
	return nil
}

// initRouter builds the Gin engine and wraps it with CORS.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware(ServiceName))
	s.router.Use(middleware.Metrics(s.metrics))

	var limiter *middleware.RateLimiter
	if s.config.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)
	}

	deps := routes.Deps{
		Diagrams: s.diagrams,
		Blobs:    s.blobReader,
		Auth:     s.auth,
		Metrics:  s.metrics,
		Debug: datatypes.DebugEnvironment{
			HasGeminiKey:    s.credentials[diagram.ProviderGoogle].Present(),
			HasGroqKey:      s.credentials[diagram.ProviderGroq].Present(),
			HasGitHubToken:  s.credentials[diagram.ProviderGitHub].Present(),
			HasHistoryStore: s.history != nil,
			HasGCS:          s.hasGCS,
			Environment:     s.config.Environment,
		},
		RateLimiter:  limiter,
		MaxBodyBytes: s.config.MaxBodyBytes,
	}
	if s.history != nil {
		deps.History = s.history
	}
	routes.SetupRoutes(s.router, deps)

	s.handler = ghandlers.CORS(
		ghandlers.AllowedOrigins(s.config.AllowedOrigins),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		ghandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"}),
		ghandlers.AllowCredentials(),
		ghandlers.MaxAge(86400),
	)(s.router)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
	"github.com/AleutianAI/AleutianUML/services/llm"
)

var (
	diagramTracer = otel.Tracer("aleutian.uml.diagram")
	diagramMeter  = otel.Meter("aleutian.uml.diagram")
)

// instruments records provider call counts and latency. Instruments come
// from the global meter, so they report once a MeterProvider is installed.
type instruments struct {
	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

func newInstruments(logger *slog.Logger) instruments {
	calls, err := diagramMeter.Int64Counter("uml.provider.calls",
		metric.WithDescription("Provider calls by operation, provider and outcome"))
	if err != nil {
		logger.Warn("Failed to create provider call counter", "error", err)
	}
	latency, err := diagramMeter.Float64Histogram("uml.provider.duration",
		metric.WithDescription("Provider call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.25, 0.5, 1, 2.5, 5, 10, 30, 60))
	if err != nil {
		logger.Warn("Failed to create provider latency histogram", "error", err)
	}
	return instruments{calls: calls, latency: latency}
}

func (i instruments) observe(ctx context.Context, op string, provider Provider, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("provider", string(provider)),
		attribute.String("outcome", outcome),
	)
	if i.calls != nil {
		i.calls.Add(ctx, 1, attrs)
	}
	if i.latency != nil {
		i.latency.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// ServiceConfig wires provider clients into a Service. Providers without a
// client are treated as unconfigured.
type ServiceConfig struct {
	Clients         map[Provider]llm.VisionClient
	Catalog         Catalog
	ValidationModel string
	Logger          *slog.Logger
}

// Service validates and extracts diagrams.
//
// # Description
//
// The list of available models is computed once at construction from the
// configured clients and never changes afterwards.
//
// # Thread Safety
//
// Safe for concurrent use if the underlying clients are.
type Service struct {
	clients         map[Provider]llm.VisionClient
	models          []Model
	validationModel string
	logger          *slog.Logger
	metrics         instruments
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog
	}
	if cfg.ValidationModel == "" {
		cfg.ValidationModel = DefaultValidationModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	clients := make(map[Provider]llm.VisionClient, len(cfg.Clients))
	configured := make(map[Provider]bool, len(cfg.Clients))
	for p, c := range cfg.Clients {
		if c == nil {
			continue
		}
		clients[p] = c
		configured[p] = true
	}
	models := cfg.Catalog.Available(configured)
	cfg.Logger.Info("Diagram service initialized",
		"models", len(models),
		"google", configured[ProviderGoogle],
		"groq", configured[ProviderGroq],
		"github", configured[ProviderGitHub],
	)
	return &Service{
		clients:         clients,
		models:          models,
		validationModel: cfg.ValidationModel,
		logger:          cfg.Logger,
		metrics:         newInstruments(cfg.Logger),
	}
}

// Models returns a copy of the available model list.
func (s *Service) Models() []Model {
	return append([]Model(nil), s.models...)
}

// Configured reports whether a client exists for p.
func (s *Service) Configured(p Provider) bool {
	_, ok := s.clients[p]
	return ok
}

func (s *Service) client(modelID string) (llm.VisionClient, Provider, error) {
	provider, err := ResolveProvider(modelID)
	if err != nil {
		return nil, "", err
	}
	c, ok := s.clients[provider]
	if !ok {
		return nil, provider, &ProviderUnavailableError{Provider: provider, Model: modelID}
	}
	return c, provider, nil
}

// Extract sends img to the model's provider with the PlantUML prompt and
// returns the raw response text. There are no automatic retries.
func (s *Service) Extract(ctx context.Context, modelID string, img imaging.Image) (string, error) {
	ctx, span := diagramTracer.Start(ctx, "DiagramService.Extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("model.id", modelID),
		attribute.Int64("image.bytes", img.Size()),
	)

	client, provider, err := s.client(modelID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider resolution failed")
		return "", err
	}
	span.SetAttributes(attribute.String("model.provider", string(provider)))

	s.logger.Info("Extracting PlantUML", "model", modelID, "provider", provider, "file", img.Name)
	start := time.Now()
	text, err := client.DescribeImage(ctx, llm.VisionRequest{
		Model:  modelID,
		Prompt: ExtractionPrompt,
		Image:  img,
	})
	s.metrics.observe(ctx, "extract", provider, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		return "", fmt.Errorf("extraction with %s failed: %w", ReadableModelName(modelID), err)
	}
	span.SetAttributes(attribute.Int("response.chars", len(text)))
	return text, nil
}

// Validate asks a model whether img contains a UML class diagram. The
// requested model is used when its provider is configured, otherwise the
// validation model.
func (s *Service) Validate(ctx context.Context, modelID string, img imaging.Image) (bool, error) {
	ctx, span := diagramTracer.Start(ctx, "DiagramService.Validate")
	defer span.End()

	model := s.validationModelFor(modelID)
	span.SetAttributes(
		attribute.String("model.requested", modelID),
		attribute.String("model.id", model),
	)

	client, provider, err := s.client(model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider resolution failed")
		return false, err
	}

	start := time.Now()
	answer, err := client.DescribeImage(ctx, llm.VisionRequest{
		Model:  model,
		Prompt: ValidationPrompt,
		Image:  img,
	})
	s.metrics.observe(ctx, "validate", provider, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		return false, fmt.Errorf("validation with %s failed: %w", ReadableModelName(model), err)
	}
	ok := IsAffirmative(answer)
	span.SetAttributes(attribute.Bool("diagram.is_class_diagram", ok))
	s.logger.Debug("Validated image", "model", model, "is_class_diagram", ok)
	return ok, nil
}

func (s *Service) validationModelFor(modelID string) string {
	if p, err := ResolveProvider(modelID); err == nil && s.Configured(p) {
		return modelID
	}
	return s.validationModel
}

// IsAffirmative reports whether a classifier answer is "yes", ignoring
// case and surrounding whitespace.
func IsAffirmative(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

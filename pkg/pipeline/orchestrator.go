// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianUML/pkg/client"
	"github.com/AleutianAI/AleutianUML/pkg/imaging"
	"github.com/AleutianAI/AleutianUML/pkg/plantuml"
	"github.com/AleutianAI/AleutianUML/pkg/transpiler"
)

var tracer = otel.Tracer("aleutian.uml.pipeline")

// DefaultFileName is persisted when the session has no file name, for
// example after the user typed PlantUML from scratch.
const DefaultFileName = "diagram.puml"

// =============================================================================
// Collaborators
// =============================================================================

// ImageValidator decides whether an image may proceed. *Validator
// implements it.
type ImageValidator interface {
	Validate(ctx context.Context, img imaging.Image) bool
}

// DiagramExtractor turns an image into PlantUML text. *Extractor
// implements it.
type DiagramExtractor interface {
	Extract(ctx context.Context, model string, img imaging.Image) (string, error)
}

// HistorySaver persists completed generations. *client.Client implements it.
type HistorySaver interface {
	SaveHistory(ctx context.Context, req client.SaveHistoryRequest) (*client.HistoryRecord, error)
}

var (
	_ ImageValidator   = (*Validator)(nil)
	_ DiagramExtractor = (*Extractor)(nil)
	_ HistorySaver     = (*client.Client)(nil)
	_ ModelLister      = (*client.Client)(nil)
)

// Config wires an Orchestrator.
type Config struct {
	Validator ImageValidator
	Extractor DiagramExtractor

	// History is optional. Without it Generate never persists.
	History HistorySaver

	Renderer plantuml.Renderer

	// Model is the initially selected model. Default: FallbackModel.ID
	Model string

	// Language is the initial target language. Default: transpiler.DefaultLanguage
	Language transpiler.Language

	Logger *slog.Logger
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator owns one Session and moves it through the pipeline.
//
// # Description
//
// Upload, Restart and Generate block on network work. Each captures the
// session generation when it starts and commits only if the generation is
// unchanged, so the latest upload always wins and older results come back
// as ErrStale.
//
// # Thread Safety
//
// Safe for concurrent use. The lock is never held across network calls.
type Orchestrator struct {
	validator ImageValidator
	extractor DiagramExtractor
	history   HistorySaver
	renderer  plantuml.Renderer
	logger    *slog.Logger

	mu      sync.Mutex
	session Session
}

// New returns an Orchestrator in the Idle state.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = FallbackModel.ID
	}
	lang := cfg.Language
	if !lang.Valid() {
		lang = transpiler.DefaultLanguage
	}
	return &Orchestrator{
		validator: cfg.Validator,
		extractor: cfg.Extractor,
		history:   cfg.History,
		renderer:  cfg.Renderer,
		logger:    logger.With("component", "pipeline"),
		session: Session{
			SelectedModelID: model,
			TargetLanguage:  lang,
			ProcessingState: StateIdle,
		},
	}
}

// Snapshot returns a copy of the current session.
func (o *Orchestrator) Snapshot() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.clone()
}

// retire starts a new generation and clears derived content. Callers
// hold o.mu.
func (o *Orchestrator) retire() uint64 {
	o.session.Generation++
	o.session.PlantUMLText = ""
	o.session.RenderURL = ""
	o.session.GeneratedCodeText = ""
	o.session.SelectedHistoryID = ""
	o.session.LastError = nil
	return o.session.Generation
}

// Upload replaces the session image and runs validation then extraction.
//
// # Outputs
//
//   - error: ErrRejected when the validator says no (image cleared),
//     ErrStale when a newer change overtook this upload, or the extractor
//     error (state Error, image kept). Nil means state Ready.
func (o *Orchestrator) Upload(ctx context.Context, img imaging.Image) error {
	ctx, span := tracer.Start(ctx, "pipeline.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("file", img.Name), attribute.Int64("size", img.Size()))

	o.mu.Lock()
	gen := o.retire()
	stored := img
	o.session.SourceImage = &stored
	o.session.FileName = img.Name
	o.session.ValidationState = ValidationPending
	o.session.ProcessingState = StateUploading
	model := o.session.SelectedModelID
	o.session.ProcessingState = StateValidating
	o.mu.Unlock()

	o.logger.Info("validating upload", "file", img.Name, "generation", gen)
	ok := o.validator.Validate(ctx, img)

	o.mu.Lock()
	if o.session.Generation != gen {
		o.mu.Unlock()
		span.SetAttributes(attribute.Bool("stale", true))
		return ErrStale
	}
	if !ok {
		o.session.ValidationState = ValidationRejected
		o.session.ProcessingState = StateRejected
		o.session.SourceImage = nil
		o.session.LastError = ErrRejected
		o.mu.Unlock()
		o.logger.Info("upload rejected", "file", img.Name)
		span.SetStatus(codes.Error, ErrRejected.Error())
		return ErrRejected
	}
	o.session.ValidationState = ValidationPassed
	o.session.ProcessingState = StateExtracting
	o.mu.Unlock()

	err := o.extract(ctx, gen, model, img)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Restart re-runs extraction on the uploaded image with the currently
// selected model. The image is not validated again.
func (o *Orchestrator) Restart(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "pipeline.Restart")
	defer span.End()

	o.mu.Lock()
	if o.session.SourceImage == nil {
		o.mu.Unlock()
		return ErrNoImage
	}
	gen := o.retire()
	img := *o.session.SourceImage
	model := o.session.SelectedModelID
	o.session.ProcessingState = StateExtracting
	o.mu.Unlock()

	o.logger.Info("restarting extraction", "file", img.Name, "model", model, "generation", gen)
	err := o.extract(ctx, gen, model, img)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// extract runs the extractor and commits its output under generation gen.
func (o *Orchestrator) extract(ctx context.Context, gen uint64, model string, img imaging.Image) error {
	raw, err := o.extractor.Extract(ctx, model, img)
	text := plantuml.Normalize(raw)
	if err == nil && text == "" {
		err = ErrEmptyDiagram
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.Generation != gen {
		o.logger.Debug("discarding stale extraction", "generation", gen, "current", o.session.Generation)
		return ErrStale
	}
	if err != nil {
		o.session.ProcessingState = StateError
		o.session.LastError = err
		o.logger.Warn("extraction failed", "model", model, "error", err)
		return err
	}
	o.session.ProcessingState = StateRendering
	o.session.PlantUMLText = text
	o.session.RenderURL = o.renderer.Render(text)
	o.session.ProcessingState = StateReady
	return nil
}

// Generate transpiles the session PlantUML into the target language and,
// when a user is signed in, saves the result to history.
//
// # Outputs
//
//   - error: ErrNoDiagram, ErrStale, or a transpiler error (state Error,
//     PlantUML and RenderURL kept). History failures are only logged.
func (o *Orchestrator) Generate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "pipeline.Generate")
	defer span.End()

	o.mu.Lock()
	if strings.TrimSpace(o.session.PlantUMLText) == "" {
		o.mu.Unlock()
		return ErrNoDiagram
	}
	gen := o.session.Generation
	text := o.session.PlantUMLText
	lang := o.session.TargetLanguage
	user := o.session.UserID
	fileName := o.session.FileName
	var img imaging.Image
	if o.session.SourceImage != nil {
		img = *o.session.SourceImage
	}
	o.session.ProcessingState = StateTranspiling
	o.session.LastError = nil
	o.mu.Unlock()

	span.SetAttributes(attribute.String("language", string(lang)))
	code, err := transpiler.Transpile(text, lang)

	o.mu.Lock()
	if o.session.Generation != gen {
		o.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		o.session.ProcessingState = StateError
		o.session.LastError = err
		o.mu.Unlock()
		span.RecordError(err)
		return fmt.Errorf("transpile to %s: %w", lang, err)
	}
	fenced := transpiler.Fence(code, lang)
	o.session.GeneratedCodeText = fenced
	o.session.ProcessingState = StateCompleted
	o.mu.Unlock()

	o.save(ctx, user, client.SaveHistoryRequest{
		FileName:      fileName,
		Image:         img,
		PlantUML:      text,
		GeneratedCode: fenced,
		Language:      string(lang),
	})
	return nil
}

// save persists one generation. Failures never reach the caller.
func (o *Orchestrator) save(ctx context.Context, user string, req client.SaveHistoryRequest) {
	if o.history == nil || user == "" {
		return
	}
	if req.FileName == "" {
		req.FileName = DefaultFileName
	}
	rec, err := o.history.SaveHistory(ctx, req)
	if err != nil {
		o.logger.Error("failed to save history", "user", user, "file", req.FileName, "error", err)
		return
	}
	o.logger.Info("saved history", "user", user, "id", rec.ID)
}

// SelectHistory loads a stored record straight into the Completed state.
func (o *Orchestrator) SelectHistory(rec client.HistoryRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retire()
	o.session.SourceImage = nil
	o.session.ValidationState = ValidationNone
	o.session.FileName = rec.FileName
	o.session.PlantUMLText = rec.PlantUML
	o.session.RenderURL = o.renderer.Render(rec.PlantUML)
	o.session.GeneratedCodeText = rec.GeneratedCode
	if lang, err := transpiler.ParseLanguage(rec.Language); err == nil {
		o.session.TargetLanguage = lang
	}
	o.session.SelectedHistoryID = rec.ID
	o.session.ProcessingState = StateCompleted
}

// EditPlantUML replaces the markup with user text and re-renders it.
// Generated code is cleared; the state becomes Ready, or Idle when text
// is blank. In-flight work is retired.
func (o *Orchestrator) EditPlantUML(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	historyID := o.session.SelectedHistoryID
	o.retire()
	o.session.SelectedHistoryID = historyID
	o.session.PlantUMLText = text
	o.session.RenderURL = o.renderer.Render(text)
	if strings.TrimSpace(text) == "" {
		o.session.ProcessingState = StateIdle
		return
	}
	o.session.ProcessingState = StateReady
}

// SelectModel sets the model used by the next Upload or Restart.
func (o *Orchestrator) SelectModel(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("model id is empty")
	}
	o.mu.Lock()
	o.session.SelectedModelID = id
	o.mu.Unlock()
	return nil
}

// SelectLanguage sets the target language of the next Generate.
func (o *Orchestrator) SelectLanguage(lang transpiler.Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: %q", transpiler.ErrUnsupportedLanguage, lang)
	}
	o.mu.Lock()
	o.session.TargetLanguage = lang
	o.mu.Unlock()
	return nil
}

// SetUser sets the signed-in user. An empty id disables history saves.
func (o *Orchestrator) SetUser(id string) {
	o.mu.Lock()
	o.session.UserID = id
	o.mu.Unlock()
}

// Reset signs out: the session returns to Idle and in-flight work is
// discarded. Model and language selections are kept.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session = Session{
		SelectedModelID: o.session.SelectedModelID,
		TargetLanguage:  o.session.TargetLanguage,
		ProcessingState: StateIdle,
		Generation:      o.session.Generation + 1,
	}
}

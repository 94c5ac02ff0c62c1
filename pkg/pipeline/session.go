// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline drives one diagram session from image upload to
// generated code: validation, extraction, rendering, transpiling, and
// history persistence.
//
// All network work goes through pkg/client. The Orchestrator owns the
// session; callers observe it through Snapshot copies.
package pipeline

import (
	"errors"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
	"github.com/AleutianAI/AleutianUML/pkg/transpiler"
)

var (
	// ErrRejected is returned by Upload when the image is not a class diagram.
	ErrRejected = errors.New("image is not a UML class diagram")

	// ErrStale is returned when a newer session change overtook the call.
	// Its result was discarded.
	ErrStale = errors.New("result discarded: session changed")

	// ErrNoImage is returned by Restart before any image was uploaded.
	ErrNoImage = errors.New("no uploaded image to restart from")

	// ErrNoDiagram is returned by Generate when there is no PlantUML.
	ErrNoDiagram = errors.New("no PlantUML to generate code from")

	// ErrEmptyDiagram is recorded when the model returned blank output.
	ErrEmptyDiagram = errors.New("model returned no PlantUML")
)

// State is the processing state of a session.
type State string

const (
	StateIdle        State = "idle"
	StateUploading   State = "uploading"
	StateValidating  State = "validating"
	StateRejected    State = "rejected"
	StateExtracting  State = "extracting"
	StateRendering   State = "rendering"
	StateReady       State = "ready"
	StateTranspiling State = "transpiling"
	StateCompleted   State = "completed"
	StateError       State = "error"
)

// Busy reports whether an asynchronous step is in flight.
func (s State) Busy() bool {
	switch s {
	case StateUploading, StateValidating, StateExtracting, StateRendering, StateTranspiling:
		return true
	}
	return false
}

// Validation is the classification outcome of the current image.
type Validation string

const (
	ValidationNone     Validation = ""
	ValidationPending  Validation = "pending"
	ValidationPassed   Validation = "passed"
	ValidationRejected Validation = "rejected"
)

// Session is a point-in-time copy of the orchestrator's state.
type Session struct {
	SourceImage       *imaging.Image
	FileName          string
	SelectedModelID   string
	PlantUMLText      string
	RenderURL         string
	GeneratedCodeText string
	TargetLanguage    transpiler.Language
	ValidationState   Validation
	ProcessingState   State
	LastError         error
	SelectedHistoryID string
	UserID            string

	// Generation increases with every change that retires in-flight work.
	Generation uint64
}

// clone copies s so callers cannot reach the orchestrator's image.
func (s Session) clone() Session {
	if s.SourceImage != nil {
		img := *s.SourceImage
		img.Data = append([]byte(nil), img.Data...)
		s.SourceImage = &img
	}
	return s
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transpiler turns PlantUML class diagrams into source code skeletons.
//
// # Description
//
// Transpilation is two steps. Parse builds a language-neutral Diagram from
// the markup (classes, interfaces, enums, members, relationships). An emitter
// for the target Language then writes classes with inheritance, fields,
// method stubs, enum constants, and fields derived from associations.
//
// The output is a starting point for hand-written code, not a compilable
// program: method bodies raise "not implemented" in the idiom of the target.
//
// # Thread Safety
//
// Parse and Transpile keep no shared state and are safe for concurrent use.
package transpiler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when there is no PlantUML to transpile.
var ErrEmptyInput = errors.New("no PlantUML to transpile")

// ErrUnsupportedLanguage is returned for an unknown target language.
var ErrUnsupportedLanguage = errors.New("unsupported target language")

// Language is a transpile target.
type Language string

const (
	Python     Language = "python"
	Java       Language = "java"
	CSharp     Language = "csharp"
	Ruby       Language = "ruby"
	Kotlin     Language = "kotlin"
	TypeScript Language = "typescript"
)

// DefaultLanguage is selected when the user has not chosen one.
const DefaultLanguage = Java

// Languages lists every supported target in display order.
func Languages() []Language {
	return []Language{Python, Java, CSharp, Ruby, Kotlin, TypeScript}
}

// ParseLanguage accepts the canonical names plus common aliases
// ("py", "c#", "cs", "rb", "kt", "ts").
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "py":
		return Python, nil
	case "java":
		return Java, nil
	case "csharp", "c#", "cs":
		return CSharp, nil
	case "ruby", "rb":
		return Ruby, nil
	case "kotlin", "kt":
		return Kotlin, nil
	case "typescript", "ts":
		return TypeScript, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

// Valid reports whether l is a supported target.
func (l Language) Valid() bool {
	_, ok := emitters[l]
	return ok
}

// TranspileError describes a construct the parser could not understand.
type TranspileError struct {
	// Line is the 1-based line number in the source markup.
	Line int

	// Construct names what was being parsed, e.g. "relationship".
	Construct string

	// Reason is a human-readable explanation.
	Reason string
}

func (e *TranspileError) Error() string {
	return fmt.Sprintf("line %d: cannot parse %s: %s", e.Line, e.Construct, e.Reason)
}

// Transpile parses text and emits a source skeleton in lang.
//
// # Outputs
//
//   - string: Generated source without markdown fences.
//   - error: ErrEmptyInput for blank text, ErrUnsupportedLanguage, or a
//     *TranspileError from Parse.
func Transpile(text string, lang Language) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	emit, ok := emitters[lang]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	d, err := Parse(text)
	if err != nil {
		return "", err
	}
	return emit(d), nil
}

var emitters = map[Language]func(*Diagram) string{
	Python:     emitPython,
	Java:       emitJava,
	CSharp:     emitCSharp,
	Ruby:       emitRuby,
	Kotlin:     emitKotlin,
	TypeScript: emitTypeScript,
}

// Fence wraps code in a markdown code block tagged with lang.
func Fence(code string, lang Language) string {
	return "```" + string(lang) + "\n" + code + "\n```"
}

// Unfence strips the block added by Fence. Text without a fence is
// returned unchanged.
func Unfence(code string) string {
	trimmed := strings.TrimSpace(code)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return code
	}
	body := strings.TrimSuffix(trimmed, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return code
	}
	return strings.TrimSuffix(body[nl+1:], "\n")
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transpiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// codeWriter accumulates indented source lines.
type codeWriter struct {
	sb     strings.Builder
	depth  int
	indent string
}

func newWriter(indent string) *codeWriter {
	return &codeWriter{indent: indent}
}

func (w *codeWriter) line(format string, args ...any) {
	if format == "" {
		w.sb.WriteByte('\n')
		return
	}
	w.sb.WriteString(strings.Repeat(w.indent, w.depth))
	if len(args) > 0 {
		fmt.Fprintf(&w.sb, format, args...)
	} else {
		w.sb.WriteString(format)
	}
	w.sb.WriteByte('\n')
}

func (w *codeWriter) in()  { w.depth++ }
func (w *codeWriter) out() { w.depth-- }

func (w *codeWriter) String() string {
	return strings.TrimRight(w.sb.String(), "\n") + "\n"
}

// orderedClasses returns declarations with every parent before its children.
// Declaration order is otherwise preserved; cycles fall back to that order.
func orderedClasses(d *Diagram) []*Class {
	out := make([]*Class, 0, len(d.Classes))
	state := make(map[string]int, len(d.Classes))
	var visit func(c *Class)
	visit = func(c *Class) {
		if state[c.Name] != 0 {
			return
		}
		state[c.Name] = 1
		for _, p := range append(append([]string{}, c.Extends...), c.Implements...) {
			if pc := d.Class(p); pc != nil {
				visit(pc)
			}
		}
		state[c.Name] = 2
		out = append(out, c)
	}
	for _, c := range d.Classes {
		visit(c)
	}
	return out
}

// subclassed reports which classes are extended by another class.
func subclassed(d *Diagram) map[string]bool {
	out := make(map[string]bool)
	for _, c := range d.Classes {
		for _, p := range c.Extends {
			out[p] = true
		}
	}
	return out
}

// splitParents separates a class's parents into one base class and the
// interfaces it implements, for single-inheritance targets. Extra base
// classes are returned as dropped.
func splitParents(d *Diagram, c *Class) (base string, ifaces []string, dropped []string) {
	for _, p := range c.Extends {
		if pc := d.Class(p); pc != nil && pc.IsInterface() {
			ifaces = append(ifaces, p)
			continue
		}
		if base == "" {
			base = p
		} else {
			dropped = append(dropped, p)
		}
	}
	ifaces = append(ifaces, c.Implements...)
	return base, ifaces, dropped
}

var nonIdent = regexp.MustCompile(`[^\w]+`)

// identifier turns an arbitrary display name into a usable identifier.
func identifier(s string) string {
	parts := nonIdent.Split(strings.TrimSpace(s), -1)
	var sb strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i > 0 && sb.Len() > 0 {
			p = upperFirst(p)
		}
		sb.WriteString(p)
	}
	out := sb.String()
	if out == "" {
		return "_"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	// Keep leading acronyms readable: "URLParser" -> "urlParser".
	i := 0
	for i < len(r) && unicode.IsUpper(r[i]) {
		if i > 0 && i+1 < len(r) && unicode.IsLower(r[i+1]) {
			break
		}
		r[i] = unicode.ToLower(r[i])
		i++
	}
	return string(r)
}

// snake converts camelCase or PascalCase to snake_case.
func snake(s string) string {
	var sb strings.Builder
	r := []rune(s)
	for i, c := range r {
		if unicode.IsUpper(c) {
			if i > 0 && r[i-1] != '_' && (unicode.IsLower(r[i-1]) || (i+1 < len(r) && unicode.IsLower(r[i+1]))) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(c))
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

func plural(s string) string {
	switch {
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}

// importList renders a sorted, de-duplicated import block.
func importList(set map[string]bool, format string) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf(format, n)
	}
	return out
}

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
	"strconv"
	"strings"
)

// TypeRef is a parsed type expression such as "Map<String, List<Item>>[]".
type TypeRef struct {
	Name     string
	Args     []*TypeRef
	Array    int
	Nullable bool
}

func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(t.Name)
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
	}
	for i := 0; i < t.Array; i++ {
		sb.WriteString("[]")
	}
	if t.Nullable {
		sb.WriteByte('?')
	}
	return sb.String()
}

// mentions reports whether name appears anywhere in the type expression.
func (t *TypeRef) mentions(name string) bool {
	if t == nil {
		return false
	}
	if t.Name == name {
		return true
	}
	for _, a := range t.Args {
		if a.mentions(name) {
			return true
		}
	}
	return false
}

var typeNameRe = regexp.MustCompile(`^[A-Za-z_$][\w.$]*$`)

// parseType parses a UML type expression. An empty string yields nil.
func parseType(s string) (*TypeRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t := &TypeRef{}
	if strings.HasSuffix(s, "?") {
		t.Nullable = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "?"))
	}
	if strings.HasSuffix(s, "...") {
		t.Array++
		s = strings.TrimSpace(strings.TrimSuffix(s, "..."))
	}
	for strings.HasSuffix(s, "]") {
		open := matchingOpen(s, len(s)-1, '[', ']')
		if open < 0 {
			return nil, fmt.Errorf("unbalanced brackets in %q", s)
		}
		inner := strings.TrimSpace(s[open+1 : len(s)-1])
		head := strings.TrimSpace(s[:open])
		switch {
		case inner == "":
			t.Array++
		case isMultiplicity(inner):
			if isMany(inner) {
				t.Array++
			}
		default:
			// Python style generics: List[int], Dict[str, int]
			args, err := parseTypeArgs(inner)
			if err != nil {
				return nil, err
			}
			t.Args = args
		}
		s = head
	}
	if strings.HasSuffix(s, ">") {
		open := matchingOpen(s, len(s)-1, '<', '>')
		if open <= 0 {
			return nil, fmt.Errorf("unbalanced angle brackets in %q", s)
		}
		args, err := parseTypeArgs(s[open+1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		t.Args = args
		s = strings.TrimSpace(s[:open])
	}
	if !typeNameRe.MatchString(s) {
		return nil, fmt.Errorf("invalid type name %q", s)
	}
	t.Name = s
	return t, nil
}

func parseTypeArgs(s string) ([]*TypeRef, error) {
	var out []*TypeRef
	for _, part := range splitTopLevel(s, ',') {
		a, err := parseType(part)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, fmt.Errorf("empty type argument in %q", s)
		}
		out = append(out, a)
	}
	return out, nil
}

// matchingOpen finds the opener that balances the closer at index end.
func matchingOpen(s string, end int, open, closer byte) int {
	depth := 0
	for i := end; i >= 0; i-- {
		switch s[i] {
		case closer:
			depth++
		case open:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits s on sep, ignoring separators nested in brackets,
// parentheses, or quotes. Parts are trimmed; empty parts are dropped.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '<' || c == '[' || c == '(' || c == '{':
			depth++
		case c == '>' || c == ']' || c == ')' || c == '}':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			if p := strings.TrimSpace(s[start:i]); p != "" {
				parts = append(parts, p)
			}
			start = i + 1
		}
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

// indexTopLevel returns the first index of c outside brackets and quotes.
func indexTopLevel(s string, c byte) int {
	depth := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			quoted = !quoted
		case quoted:
		case s[i] == '<' || s[i] == '[' || s[i] == '(':
			depth++
		case s[i] == '>' || s[i] == ']' || s[i] == ')':
			if depth > 0 {
				depth--
			}
		case s[i] == c && depth == 0:
			return i
		}
	}
	return -1
}

var multiplicityRe = regexp.MustCompile(`^(\d+|\*|n|many)(\s*\.\.\s*(\d+|\*|n|many))?$`)

func isMultiplicity(s string) bool {
	return multiplicityRe.MatchString(strings.ToLower(strings.TrimSpace(s)))
}

// isMany reports whether a multiplicity label allows more than one element.
func isMany(m string) bool {
	m = strings.ToLower(strings.TrimSpace(m))
	if m == "" {
		return false
	}
	if strings.Contains(m, "*") || strings.Contains(m, "many") || m == "n" || strings.HasSuffix(m, "..n") {
		return true
	}
	upper := m
	if i := strings.LastIndex(m, ".."); i >= 0 {
		upper = strings.TrimSpace(m[i+2:])
	}
	n, err := strconv.Atoi(upper)
	return err == nil && n > 1
}

// Canonical type families recognized across languages.
const (
	tInt      = "int"
	tLong     = "long"
	tFloat    = "float"
	tDouble   = "double"
	tBool     = "bool"
	tString   = "string"
	tChar     = "char"
	tByte     = "byte"
	tVoid     = "void"
	tDate     = "date"
	tDateTime = "datetime"
	tObject   = "object"
	tList     = "list"
	tSet      = "set"
	tMap      = "map"
)

var canonicalNames = map[string]string{
	"int": tInt, "integer": tInt, "int32": tInt, "short": tInt, "uint": tInt,
	"long": tLong, "int64": tLong, "bigint": tLong,
	"float": tFloat, "float32": tFloat, "real": tFloat,
	"double": tDouble, "float64": tDouble, "decimal": tDouble, "number": tDouble, "bigdecimal": tDouble,
	"bool": tBool, "boolean": tBool,
	"string": tString, "str": tString, "text": tString,
	"char": tChar, "character": tChar,
	"byte": tByte,
	"void": tVoid, "none": tVoid, "unit": tVoid,
	"date": tDate, "localdate": tDate,
	"datetime": tDateTime, "localdatetime": tDateTime, "timestamp": tDateTime, "instant": tDateTime,
	"object": tObject, "any": tObject,
	"list": tList, "arraylist": tList, "linkedlist": tList, "array": tList, "collection": tList,
	"sequence": tList, "vector": tList, "ilist": tList, "ienumerable": tList, "iterable": tList,
	"mutablelist": tList, "seq": tList,
	"set": tSet, "hashset": tSet, "treeset": tSet, "mutableset": tSet,
	"map": tMap, "hashmap": tMap, "treemap": tMap, "dict": tMap, "dictionary": tMap, "mutablemap": tMap,
}

func canonical(name string) string {
	return canonicalNames[strings.ToLower(name)]
}

func isVoid(t *TypeRef) bool {
	return t != nil && t.Array == 0 && canonical(t.Name) == tVoid
}

// typeSystem renders TypeRefs in one target language.
type typeSystem struct {
	names   map[string]string
	boxed   map[string]string
	unknown string
	list    func(elem string) string
	set     func(elem string) string
	dict    func(k, v string) string
	array   func(elem string) string
	generic func(name string, args []string) string
	null    func(t string) string
}

func (ts typeSystem) render(t *TypeRef) string {
	return ts.renderNested(t, false)
}

func (ts typeSystem) renderNested(t *TypeRef, asArg bool) string {
	if t == nil {
		return ts.unknown
	}
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = ts.renderNested(a, true)
	}
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		if b, ok := ts.boxed[ts.unknown]; ok {
			return b
		}
		return ts.unknown
	}

	var out string
	switch c := canonical(t.Name); c {
	case tList:
		out = ts.list(arg(0))
	case tSet:
		out = ts.set(arg(0))
	case tMap:
		out = ts.dict(arg(0), arg(1))
	case "":
		name := simpleName(t.Name)
		if len(args) > 0 {
			out = ts.generic(name, args)
		} else {
			out = name
		}
	default:
		out = ts.names[c]
		if b, ok := ts.boxed[out]; ok && (asArg || t.Nullable) {
			out = b
		}
	}
	for i := 0; i < t.Array; i++ {
		out = ts.array(out)
	}
	if t.Nullable && ts.null != nil {
		out = ts.null(out)
	}
	return out
}

// simpleName drops any package qualifier.
func simpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}

func angle(name string, args []string) string {
	return name + "<" + strings.Join(args, ", ") + ">"
}

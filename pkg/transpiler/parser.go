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
	"strings"
)

// =============================================================================
// Parser State
// =============================================================================

type parser struct {
	d *Diagram

	// packages is the stack of enclosing package names, fully qualified.
	packages []string

	// cur is the class whose body is open, if any.
	cur *Class

	// notes holds aliases of note elements so links to them are ignored.
	notes map[string]bool

	// skipUntil holds terminators of a multi-line block being skipped.
	skipUntil []string

	// skipDepth counts open braces of a skipped block (skinparam, style).
	skipDepth int

	line int
}

// Parse reads PlantUML class diagram markup into a Diagram.
//
// # Description
//
// Recognizes class, abstract class, interface and enum declarations with
// optional generics, stereotypes, aliases and extends/implements clauses;
// bodies with attributes and operations in both "name: Type" and
// "Type name" forms; "Class : member" lines; packages and namespaces; and
// relationship arrows with optional multiplicities and labels. Comments,
// notes, skinparams, titles, legends and layout directives are skipped.
//
// # Outputs
//
//   - *Diagram: Classes in declaration order with relationships resolved
//     into parents and association fields.
//   - error: ErrEmptyInput for blank text, *TranspileError otherwise.
func Parse(text string) (*Diagram, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	p := &parser{
		d:     &Diagram{index: make(map[string]*Class)},
		notes: make(map[string]bool),
	}

	inComment := false
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		p.line = i + 1
		line := strings.TrimSpace(raw)

		if inComment {
			end := strings.Index(line, "'/")
			if end < 0 {
				continue
			}
			line = strings.TrimSpace(line[end+2:])
			inComment = false
		}
		if strings.HasPrefix(line, "/'") {
			end := strings.Index(line[2:], "'/")
			if end < 0 {
				inComment = true
				continue
			}
			line = strings.TrimSpace(line[2+end+2:])
		}
		if line == "" || strings.HasPrefix(line, "'") {
			continue
		}
		if err := p.parseLine(line); err != nil {
			return nil, err
		}
	}

	if p.cur != nil {
		return nil, p.errorf("class body", "class %s is missing a closing '}'", p.cur.Name)
	}
	if len(p.d.Classes) == 0 {
		return nil, p.errorf("diagram", "no class declarations found")
	}
	p.d.resolve()
	return p.d, nil
}

func (p *parser) errorf(construct, format string, args ...any) *TranspileError {
	return &TranspileError{Line: p.line, Construct: construct, Reason: fmt.Sprintf(format, args...)}
}

// reservedNames are keywords in at least one target language; a class
// named after one cannot be emitted.
var reservedNames = map[string]bool{
	"abstract": true, "and": true, "as": true, "begin": true, "bool": true, "boolean": true,
	"break": true, "byte": true, "case": true, "catch": true, "char": true, "class": true,
	"const": true, "continue": true, "def": true, "default": true, "del": true, "do": true,
	"double": true, "elif": true, "else": true, "elsif": true, "end": true, "enum": true,
	"except": true, "extends": true, "false": true, "final": true, "finally": true,
	"float": true, "for": true, "from": true, "fun": true, "function": true, "if": true,
	"implements": true, "import": true, "in": true, "int": true, "interface": true, "is": true,
	"lambda": true, "long": true, "module": true, "namespace": true, "new": true, "nil": true,
	"None": true, "not": true, "null": true, "object": true, "or": true, "package": true,
	"pass": true, "private": true, "protected": true, "public": true, "raise": true,
	"return": true, "self": true, "short": true, "static": true, "string": true, "super": true,
	"switch": true, "this": true, "throw": true, "true": true, "True": true, "False": true,
	"try": true, "unless": true, "until": true, "val": true, "var": true, "void": true,
	"when": true, "while": true, "with": true, "yield": true,
}

// checkName rejects class names that no target language accepts.
func (p *parser) checkName(construct, name string) error {
	if !identRe.MatchString(name) || reservedNames[name] {
		return p.errorf(construct, "%q is not a valid class name", name)
	}
	return nil
}

func (p *parser) pkg() string {
	if len(p.packages) == 0 {
		return ""
	}
	return p.packages[len(p.packages)-1]
}

// =============================================================================
// Statements
// =============================================================================

var ignoredKeywords = map[string]bool{
	"hide": true, "show": true, "remove": true, "restore": true, "scale": true,
	"caption": true, "left": true, "top": true, "set": true, "allowmixing": true,
	"allow_mixing": true, "skinparam": true, "style": true, "title": true,
	"header": true, "footer": true, "legend": true, "newpage": true,
	"center": true, "mainframe": true,
}

var blockTerminators = map[string][]string{
	"title":  {"end title", "endtitle"},
	"header": {"end header", "endheader"},
	"footer": {"end footer", "endfooter"},
	"legend": {"end legend", "endlegend"},
}

func (p *parser) parseLine(line string) error {
	if len(p.skipUntil) > 0 {
		lower := strings.ToLower(line)
		for _, t := range p.skipUntil {
			if strings.HasPrefix(lower, t) {
				p.skipUntil = nil
				break
			}
		}
		return nil
	}
	if p.skipDepth > 0 {
		p.skipDepth += strings.Count(line, "{") - strings.Count(line, "}")
		return nil
	}
	if p.cur != nil {
		return p.parseBodyLine(line)
	}
	if strings.HasPrefix(line, "@") || strings.HasPrefix(line, "!") {
		return nil
	}
	if line == "}" {
		if len(p.packages) > 0 {
			p.packages = p.packages[:len(p.packages)-1]
		}
		return nil
	}

	word := firstWord(line)
	switch word {
	case "note":
		return p.parseNote(line)
	case "package", "namespace", "together", "folder", "frame", "node", "rectangle":
		return p.parsePackage(line)
	case "end":
		// "end package" / "end namespace"
		if len(p.packages) > 0 {
			p.packages = p.packages[:len(p.packages)-1]
		}
		return nil
	case "class", "abstract", "interface", "enum", "annotation", "entity",
		"struct", "protocol", "exception", "metaclass", "dataclass", "record", "static":
		return p.parseDeclaration(line)
	}
	if ignoredKeywords[word] {
		if strings.HasSuffix(line, "{") {
			p.skipDepth = 1
		} else if terms, ok := blockTerminators[word]; ok && isBareBlockStart(line, word) {
			p.skipUntil = terms
		}
		return nil
	}

	if ok, err := p.parseRelation(line); ok || err != nil {
		return err
	}
	if m := memberLineRe.FindStringSubmatch(line); m != nil {
		name := className(m[1])
		if err := p.checkName("statement", name); err != nil {
			return err
		}
		return p.addMember(p.d.ensure(name), m[2])
	}
	return p.errorf("statement", "unrecognized statement %q", line)
}

// isBareBlockStart reports a multi-line block opener such as "legend right".
func isBareBlockStart(line, word string) bool {
	rest := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, word)))
	switch rest {
	case "", "left", "right", "center", "top", "bottom", "top left", "top right", "bottom left", "bottom right":
		return true
	}
	return false
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '{' || r == '"' || r == ':' || r == '<' {
			return s[:i]
		}
	}
	return s
}

var noteAliasRe = regexp.MustCompile(`\bas\s+(\w+)\s*$`)

func (p *parser) parseNote(line string) error {
	if m := noteAliasRe.FindStringSubmatch(line); m != nil {
		p.notes[m[1]] = true
	}
	// Single-line forms carry their text after ':' or in quotes.
	if strings.Contains(line, ":") || strings.Contains(line, "\"") {
		return nil
	}
	p.skipUntil = []string{"end note", "endnote"}
	return nil
}

var packageRe = regexp.MustCompile(`^\w+\s*("[^"]*"|[\w.$]+)?`)

func (p *parser) parsePackage(line string) error {
	if !strings.HasSuffix(line, "{") {
		return nil
	}
	name := ""
	if firstWord(line) != "together" {
		if m := packageRe.FindStringSubmatch(line); m != nil {
			name = strings.Trim(m[1], "\"")
		}
	}
	full := p.pkg()
	if name != "" {
		if full != "" {
			full += "."
		}
		full += name
	}
	p.packages = append(p.packages, full)
	return nil
}

// =============================================================================
// Declarations
// =============================================================================

var (
	declRe = regexp.MustCompile(`^(abstract\s+class|abstract|static\s+class|class|interface|enum|annotation|entity|struct|protocol|exception|metaclass|dataclass|record)\s+(.+)$`)

	nameRe       = regexp.MustCompile(`^("[^"]+"|[\w.$]+)`)
	stereotypeRe = regexp.MustCompile(`^<<\s*(?:\([^)]*\)\s*)?([^>]*?)\s*>>`)
	colorRe      = regexp.MustCompile(`^#[\w#:/\\;.-]*`)
	identRe      = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	memberLineRe = regexp.MustCompile(`^("[^"]+"|[\w.$]+)\s*:\s*(.+)$`)
)

func (p *parser) parseDeclaration(line string) error {
	m := declRe.FindStringSubmatch(line)
	if m == nil {
		return p.errorf("class declaration", "expected a name after %q", firstWord(line))
	}
	kind := KindClass
	switch strings.Fields(m[1])[0] {
	case "abstract":
		kind = KindAbstract
	case "interface", "protocol":
		kind = KindInterface
	case "enum":
		kind = KindEnum
	}

	rest := strings.TrimSpace(m[2])
	opens, inline := false, ""
	if i := strings.IndexByte(rest, '{'); i >= 0 {
		tail := strings.TrimSpace(rest[i+1:])
		rest = strings.TrimSpace(rest[:i])
		switch {
		case tail == "":
			opens = true
		case strings.HasSuffix(tail, "}"):
			inline = strings.TrimSpace(strings.TrimSuffix(tail, "}"))
		default:
			return p.errorf("class declaration", "unexpected %q after '{'", tail)
		}
	}

	nm := nameRe.FindString(rest)
	if nm == "" {
		return p.errorf("class declaration", "invalid class name in %q", rest)
	}
	rest = strings.TrimSpace(rest[len(nm):])
	name, pkg := className(nm), packageOf(nm)

	var typeParams []string
	if strings.HasPrefix(rest, "<") && !strings.HasPrefix(rest, "<<") {
		end := matchingClose(rest, 0, '<', '>')
		if end < 0 {
			return p.errorf("class declaration", "unclosed generic parameters in %q", rest)
		}
		for _, tp := range splitTopLevel(rest[1:end], ',') {
			typeParams = append(typeParams, strings.Fields(tp)[0])
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	var stereotype string
	var extends, implements []string
	for rest != "" {
		switch {
		case strings.HasPrefix(rest, "as ") || strings.HasPrefix(rest, "as\t"):
			alias := nameRe.FindString(strings.TrimSpace(rest[3:]))
			if alias == "" {
				return p.errorf("class declaration", "missing alias after 'as'")
			}
			// The unquoted side is the identifier used by relationships.
			if !strings.HasPrefix(alias, "\"") {
				name = className(alias)
			}
			rest = strings.TrimSpace(strings.TrimSpace(rest[3:])[len(alias):])
		case strings.HasPrefix(rest, "<<"):
			sm := stereotypeRe.FindStringSubmatch(rest)
			if sm == nil {
				return p.errorf("stereotype", "unclosed stereotype in %q", rest)
			}
			stereotype = sm[1]
			switch strings.ToLower(stereotype) {
			case "interface":
				kind = KindInterface
			case "abstract":
				kind = KindAbstract
			case "enum", "enumeration":
				kind = KindEnum
			}
			rest = strings.TrimSpace(rest[len(sm[0]):])
		case strings.HasPrefix(rest, "#"):
			rest = strings.TrimSpace(rest[len(colorRe.FindString(rest)):])
		case strings.HasPrefix(rest, "extends "):
			list, tail := takeNameList(strings.TrimPrefix(rest, "extends "))
			extends = append(extends, list...)
			rest = tail
		case strings.HasPrefix(rest, "implements "):
			list, tail := takeNameList(strings.TrimPrefix(rest, "implements "))
			implements = append(implements, list...)
			rest = tail
		default:
			return p.errorf("class declaration", "unexpected %q", rest)
		}
	}

	if err := p.checkName("class declaration", name); err != nil {
		return err
	}
	for _, parent := range append(append([]string{}, extends...), implements...) {
		if err := p.checkName("class declaration", parent); err != nil {
			return err
		}
		if parent == name {
			return p.errorf("class declaration", "class %s cannot inherit from itself", name)
		}
	}

	c := p.d.ensure(name)
	c.Implicit = false
	c.Kind = kind
	c.TypeParams = typeParams
	c.Stereotype = stereotype
	c.Package = p.pkg()
	if pkg != "" && c.Package == "" {
		c.Package = pkg
	}
	for _, e := range extends {
		p.d.ensure(e)
		c.addParent(e, false)
	}
	for _, i := range implements {
		ic := p.d.ensure(i)
		if ic.Implicit {
			ic.Kind = KindInterface
		}
		c.addParent(i, true)
	}

	if opens {
		p.cur = c
		return nil
	}
	if inline != "" {
		return p.parseInlineBody(c, inline)
	}
	return nil
}

// takeNameList consumes "A, B<T>, C" and returns the names and the rest.
func takeNameList(s string) ([]string, string) {
	var names []string
	s = strings.TrimSpace(s)
	for {
		nm := nameRe.FindString(s)
		if nm == "" {
			return names, s
		}
		names = append(names, className(nm))
		s = strings.TrimSpace(s[len(nm):])
		if strings.HasPrefix(s, "<") && !strings.HasPrefix(s, "<<") {
			if end := matchingClose(s, 0, '<', '>'); end > 0 {
				s = strings.TrimSpace(s[end+1:])
			}
		}
		if !strings.HasPrefix(s, ",") {
			return names, s
		}
		s = strings.TrimSpace(s[1:])
	}
}

func matchingClose(s string, start int, open, closer byte) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// className normalizes a referenced name: quotes are removed and a package
// qualifier is dropped.
func className(raw string) string {
	if strings.HasPrefix(raw, "\"") {
		return identifier(strings.Trim(raw, "\""))
	}
	return simpleName(raw)
}

func packageOf(raw string) string {
	if strings.HasPrefix(raw, "\"") {
		return ""
	}
	if i := strings.LastIndexByte(raw, '.'); i > 0 {
		return raw[:i]
	}
	return ""
}

// =============================================================================
// Bodies and Members
// =============================================================================

func (p *parser) parseBodyLine(line string) error {
	if line == "}" {
		p.cur = nil
		return nil
	}
	if strings.HasPrefix(line, "@end") {
		return p.errorf("class body", "class %s is missing a closing '}'", p.cur.Name)
	}
	closing := false
	if strings.HasSuffix(line, "}") && !strings.Contains(line, "{") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "}"))
		closing = true
	}
	if line != "" && !isSeparator(line) {
		var err error
		if p.cur.Kind == KindEnum {
			err = p.parseEnumLine(p.cur, line)
		} else {
			err = p.addMember(p.cur, line)
		}
		if err != nil {
			return err
		}
	}
	if closing {
		p.cur = nil
	}
	return nil
}

func (p *parser) parseInlineBody(c *Class, body string) error {
	if c.Kind == KindEnum {
		return p.parseEnumLine(c, body)
	}
	for _, part := range splitTopLevel(body, ';') {
		if err := p.addMember(c, part); err != nil {
			return err
		}
	}
	return nil
}

var separatorRe = regexp.MustCompile(`^(--|==|\.\.|__)(.*(--|==|\.\.|__))?$`)

// isSeparator matches body dividers such as "--", "== Private ==", "__".
func isSeparator(line string) bool {
	return separatorRe.MatchString(line)
}

func (p *parser) parseEnumLine(c *Class, line string) error {
	if line[0] == '+' || line[0] == '-' || line[0] == '#' || line[0] == '~' ||
		strings.HasPrefix(line, "{") || indexTopLevel(line, ':') >= 0 {
		return p.addMember(c, line)
	}
	for _, part := range splitTopLevel(strings.TrimSuffix(line, ";"), ',') {
		part = strings.TrimSuffix(strings.TrimSpace(part), ";")
		if strings.ContainsAny(part, " \t") && !strings.Contains(part, "(") {
			// "int code" inside an enum is a field.
			if err := p.addMember(c, part); err != nil {
				return err
			}
			continue
		}
		if i := strings.IndexByte(part, '('); i >= 0 {
			part = strings.TrimSpace(part[:i])
		}
		if !identRe.MatchString(part) {
			return p.errorf("enum constant", "invalid constant %q in enum %s", part, c.Name)
		}
		c.EnumValues = append(c.EnumValues, part)
	}
	return nil
}

var modifierWords = map[string]bool{
	"static": true, "abstract": true, "final": true, "public": true, "private": true,
	"protected": true, "readonly": true, "const": true, "override": true, "virtual": true,
}

// addMember parses one attribute or operation and attaches it to c.
func (p *parser) addMember(c *Class, text string) error {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ";"))
	vis := VisDefault
	static, abstract, forceField, forceMethod, ctor := false, false, false, false, false

	for changed := true; changed && s != ""; {
		changed = false
		if v, ok := visibilityFromMarker(s[0]); ok && vis == VisDefault {
			vis, s, changed = v, strings.TrimSpace(s[1:]), true
			continue
		}
		if strings.HasPrefix(s, "{") {
			end := strings.IndexByte(s, '}')
			if end < 0 {
				return p.errorf("member", "unclosed modifier in %q", text)
			}
			switch strings.ToLower(strings.TrimSpace(s[1:end])) {
			case "static", "classifier":
				static = true
			case "abstract":
				abstract = true
			case "field":
				forceField = true
			case "method":
				forceMethod = true
			}
			s, changed = strings.TrimSpace(s[end+1:]), true
			continue
		}
		if strings.HasPrefix(s, "<<") {
			sm := stereotypeRe.FindStringSubmatch(s)
			if sm == nil {
				return p.errorf("member", "unclosed stereotype in %q", text)
			}
			if strings.EqualFold(sm[1], "create") {
				ctor = true
			}
			s, changed = strings.TrimSpace(s[len(sm[0]):]), true
			continue
		}
		if w := firstWord(s); modifierWords[w] && len(s) > len(w) && (s[len(w)] == ' ' || s[len(w)] == '\t') {
			switch w {
			case "static":
				static = true
			case "abstract":
				abstract = true
			case "public":
				vis = VisPublic
			case "private":
				vis = VisPrivate
			case "protected":
				vis = VisProtected
			}
			s, changed = strings.TrimSpace(s[len(w):]), true
		}
	}
	if s == "" {
		return p.errorf("member", "empty member in class %s", c.Name)
	}

	if forceMethod || (!forceField && strings.Contains(s, "(")) {
		m, err := p.parseMethod(c, s)
		if err != nil {
			return err
		}
		m.Visibility, m.Static = vis, static
		m.Abstract = m.Abstract || abstract
		m.Constructor = m.Constructor || ctor
		c.Methods = append(c.Methods, m)
		return nil
	}

	f, err := p.parseField(s)
	if err != nil {
		return err
	}
	f.Visibility, f.Static = vis, static
	c.Fields = append(c.Fields, f)
	return nil
}

func (p *parser) parseField(s string) (Field, error) {
	if eq := indexTopLevel(s, '='); eq >= 0 {
		s = strings.TrimSpace(s[:eq])
	}
	var name, typ string
	if colon := indexTopLevel(s, ':'); colon >= 0 {
		name, typ = strings.TrimSpace(s[:colon]), strings.TrimSpace(s[colon+1:])
	} else {
		typ, name = splitTypeAndName(s)
	}
	// "items[0..*] : String" carries the multiplicity on the name.
	if i := strings.IndexByte(name, '['); i > 0 && strings.HasSuffix(name, "]") {
		if isMany(name[i+1:len(name)-1]) && typ != "" {
			typ += "[]"
		}
		name = name[:i]
	}
	if !identRe.MatchString(name) {
		return Field{}, p.errorf("attribute", "invalid attribute name %q", name)
	}
	t, err := parseType(typ)
	if err != nil {
		return Field{}, p.errorf("type", "%v", err)
	}
	return Field{Name: name, Type: t}, nil
}

func (p *parser) parseMethod(c *Class, s string) (Method, error) {
	open := strings.IndexByte(s, '(')
	closeIdx := matchingClose(s, open, '(', ')')
	if open < 0 || closeIdx < 0 {
		return Method{}, p.errorf("method", "unbalanced parentheses in %q", s)
	}
	before := strings.TrimSpace(s[:open])
	params := s[open+1 : closeIdx]
	after := strings.TrimSpace(s[closeIdx+1:])

	retStr, name := splitTypeAndName(before)
	if !identRe.MatchString(name) {
		return Method{}, p.errorf("method", "invalid method name %q", name)
	}

	m := Method{Name: name}
	for after != "" {
		switch {
		case strings.HasPrefix(after, ":"):
			retStr, after = strings.TrimSpace(after[1:]), ""
		case strings.HasPrefix(after, "{abstract}"):
			m.Abstract = true
			after = strings.TrimSpace(strings.TrimPrefix(after, "{abstract}"))
		case strings.HasPrefix(after, "="):
			// "= 0" marks a pure virtual method.
			m.Abstract = true
			after = ""
		default:
			return Method{}, p.errorf("method", "unexpected %q after parameter list of %s", after, name)
		}
	}

	ret, err := parseType(retStr)
	if err != nil {
		return Method{}, p.errorf("type", "%v", err)
	}
	if !isVoid(ret) {
		m.Returns = ret
	}

	for i, raw := range splitTopLevel(params, ',') {
		param, err := p.parseParam(raw, i)
		if err != nil {
			return Method{}, err
		}
		if param.Name == "self" || param.Name == "this" {
			continue
		}
		m.Params = append(m.Params, param)
	}

	switch name {
	case c.Name, "__init__", "constructor", "initialize":
		m.Constructor = true
	}
	return m, nil
}

func (p *parser) parseParam(raw string, idx int) (Param, error) {
	if eq := indexTopLevel(raw, '='); eq >= 0 {
		raw = strings.TrimSpace(raw[:eq])
	}
	var name, typ string
	if colon := indexTopLevel(raw, ':'); colon >= 0 {
		name, typ = strings.TrimSpace(raw[:colon]), strings.TrimSpace(raw[colon+1:])
	} else {
		typ, name = splitTypeAndName(raw)
		if typ == "" && looksLikeType(name) {
			// "add(int, int)" lists types only.
			typ, name = name, fmt.Sprintf("arg%d", idx)
		}
	}
	if !identRe.MatchString(name) {
		return Param{}, p.errorf("parameter", "invalid parameter name %q", name)
	}
	t, err := parseType(typ)
	if err != nil {
		return Param{}, p.errorf("type", "%v", err)
	}
	return Param{Name: name, Type: t}, nil
}

func looksLikeType(s string) bool {
	if canonical(s) != "" || strings.ContainsAny(s, "<[") {
		return true
	}
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

// splitTypeAndName splits "Map<K, V> name" at the last top-level space.
func splitTypeAndName(s string) (typ, name string) {
	s = strings.TrimSpace(s)
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '>', ']':
			depth++
		case '<', '[':
			depth--
		case ' ', '\t':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
			}
		}
	}
	return "", s
}

// =============================================================================
// Relationships
// =============================================================================

var (
	arrowRe   = regexp.MustCompile(`^(<\|?|\*|o|\+|#|x|\^|\})?(-+|\.+)(?:(?:left|right|up|down|le|ri|do|l|r|u|d)(-+|\.+))?(\|>|>|\*|o|\+|#|x|\^|\{)?$`)
	compactRe = regexp.MustCompile(`^([A-Za-z_][\w]*)(<\|?|\*|\+|#)?(-+|\.+)(\|>|>|\*|\+|#)?([A-Za-z_][\w]*)$`)
	styleRe   = regexp.MustCompile(`\[[^\]]*\]`)
	quotedRe  = regexp.MustCompile(`"[^"]*"`)
)

type arrow struct {
	left, right string
	dashed      bool
}

func parseArrow(tok string) (arrow, bool) {
	m := arrowRe.FindStringSubmatch(styleRe.ReplaceAllString(tok, ""))
	if m == nil {
		return arrow{}, false
	}
	return arrow{left: m[1], right: m[4], dashed: strings.HasPrefix(m[2], ".")}, true
}

// parseRelation handles "A "1" *-- "many" B : label". It reports false when
// the line holds no arrow.
func (p *parser) parseRelation(line string) (bool, error) {
	body, label := line, ""
	if colon := indexOutsideQuotes(line, ':'); colon >= 0 {
		body, label = strings.TrimSpace(line[:colon]), strings.TrimSpace(line[colon+1:])
	}

	toks := tokenize(quotedRe.ReplaceAllStringFunc(body, func(q string) string { return " " + q + " " }))
	at := -1
	var arr arrow
	for i, t := range toks {
		if a, ok := parseArrow(t); ok {
			at, arr = i, a
			break
		}
	}
	if at < 0 {
		m := compactRe.FindStringSubmatch(strings.TrimSpace(body))
		if m == nil {
			return false, nil
		}
		a, _ := parseArrow(m[2] + m[3] + m[4])
		toks, at, arr = []string{m[1], m[2] + m[3] + m[4], m[5]}, 1, a
	}

	leftName, leftMult, okL := endpoint(toks[:at], true)
	rightName, rightMult, okR := endpoint(toks[at+1:], false)
	if !okL || !okR {
		return true, p.errorf("relationship", "expected \"A <arrow> B\" in %q", line)
	}
	if p.notes[leftName] || p.notes[rightName] {
		return true, nil
	}
	leftName, rightName = className(leftName), className(rightName)
	for _, n := range []string{leftName, rightName} {
		if err := p.checkName("relationship", n); err != nil {
			return true, err
		}
	}
	if leftName == rightName && (arr.left == "<|" || arr.right == "|>") {
		return true, p.errorf("relationship", "class %s cannot inherit from itself", leftName)
	}
	p.d.ensure(leftName)
	p.d.ensure(rightName)

	add := func(kind RelationKind, fromLeft bool) {
		r := Relation{Kind: kind, From: leftName, To: rightName, FromMult: leftMult, ToMult: rightMult, Label: label, Line: p.line}
		if !fromLeft {
			r.From, r.To, r.FromMult, r.ToMult = rightName, leftName, rightMult, leftMult
		}
		p.d.Relations = append(p.d.Relations, r)
	}

	switch {
	case arr.left == "<|":
		add(inheritanceKind(arr.dashed), false)
	case arr.right == "|>":
		add(inheritanceKind(arr.dashed), true)
	case arr.left == "o":
		add(RelAggregation, true)
	case arr.right == "o":
		add(RelAggregation, false)
	case arr.left == "*":
		add(RelComposition, true)
	case arr.right == "*":
		add(RelComposition, false)
	case arr.left == "<" && arr.right == ">":
		add(navigableKind(arr.dashed), true)
		add(navigableKind(arr.dashed), false)
	case arr.right == ">":
		add(navigableKind(arr.dashed), true)
	case arr.left == "<":
		add(navigableKind(arr.dashed), false)
	default:
		add(RelLink, true)
	}
	return true, nil
}

func inheritanceKind(dashed bool) RelationKind {
	if dashed {
		return RelRealization
	}
	return RelInheritance
}

func navigableKind(dashed bool) RelationKind {
	if dashed {
		return RelDependency
	}
	return RelAssociation
}

// endpoint reads "Name" or "Name "mult"" (left) / ""mult" Name" (right).
func endpoint(toks []string, left bool) (name, mult string, ok bool) {
	switch len(toks) {
	case 1:
		return toks[0], "", nameRe.MatchString(toks[0])
	case 2:
		nameTok, multTok := toks[0], toks[1]
		if !left {
			nameTok, multTok = toks[1], toks[0]
		}
		if !isQuoted(multTok) {
			return "", "", false
		}
		return nameTok, strings.Trim(multTok, "\""), nameRe.MatchString(nameTok)
	}
	return "", "", false
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

// tokenize splits on whitespace, keeping quoted strings whole.
func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	quoted := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			cur.WriteRune(r)
			quoted = !quoted
		case !quoted && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func indexOutsideQuotes(s string, c byte) int {
	quoted := false
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			quoted = !quoted
		} else if s[i] == c && !quoted {
			return i
		}
	}
	return -1
}

// =============================================================================
// Resolution
// =============================================================================

// resolve folds relationships into class parents and association fields.
func (d *Diagram) resolve() {
	for _, r := range d.Relations {
		from, to := d.index[r.From], d.index[r.To]
		switch r.Kind {
		case RelInheritance:
			from.addParent(r.To, to.IsInterface() && !from.IsInterface())
		case RelRealization:
			if to.Implicit {
				to.Kind = KindInterface
			}
			from.addParent(r.To, !from.IsInterface())
		case RelAssociation, RelAggregation, RelComposition:
			addAssociationField(from, to, r.ToMult)
		}
	}
}

func addAssociationField(owner, target *Class, mult string) {
	if owner.Kind == KindInterface || owner.Kind == KindEnum {
		return
	}
	for _, f := range owner.Fields {
		if f.Type.mentions(target.Name) {
			return
		}
	}
	name := lowerFirst(target.Name)
	t := &TypeRef{Name: target.Name}
	if isMany(mult) {
		name = plural(name)
		t = &TypeRef{Name: "List", Args: []*TypeRef{t}}
	}
	if owner.hasField(name) {
		return
	}
	owner.Fields = append(owner.Fields, Field{Name: name, Type: t, Visibility: VisPrivate})
}

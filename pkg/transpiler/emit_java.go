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
	"regexp"
	"strings"
)

var javaTypes = typeSystem{
	names: map[string]string{
		tInt: "int", tLong: "long", tFloat: "float", tDouble: "double", tBool: "boolean",
		tString: "String", tChar: "char", tByte: "byte", tVoid: "void",
		tDate: "LocalDate", tDateTime: "LocalDateTime", tObject: "Object",
	},
	boxed: map[string]string{
		"int": "Integer", "long": "Long", "float": "Float", "double": "Double",
		"boolean": "Boolean", "char": "Character", "byte": "Byte", "void": "Void",
	},
	unknown: "Object",
	list:    func(e string) string { return "List<" + e + ">" },
	set:     func(e string) string { return "Set<" + e + ">" },
	dict:    func(k, v string) string { return "Map<" + k + ", " + v + ">" },
	array:   func(e string) string { return e + "[]" },
	generic: angle,
}

var javaImports = []importRule{
	{`\bList<`, "java.util.List"},
	{`\bSet<`, "java.util.Set"},
	{`\bMap<`, "java.util.Map"},
	{`\bLocalDate\b`, "java.time.LocalDate"},
	{`\bLocalDateTime\b`, "java.time.LocalDateTime"},
}

func emitJava(d *Diagram) string {
	body := newWriter("    ")
	pkg := ""
	for i, c := range orderedClasses(d) {
		if i > 0 {
			body.line("")
		}
		if c.Package != pkg && c.Package != "" {
			body.line("// Package: %s", c.Package)
		}
		pkg = c.Package
		javaClass(body, d, c)
	}
	return withImports(body.String(), javaImports, "import %s;")
}

// importRule adds pkg when pattern matches the generated source.
type importRule struct {
	pattern string
	pkg     string
}

// withImports prefixes src with the imports whose pattern it matches plus
// any unconditional ones.
func withImports(src string, rules []importRule, format string, always ...string) string {
	set := map[string]bool{}
	for _, pkg := range always {
		set[pkg] = true
	}
	for _, r := range rules {
		if regexp.MustCompile(r.pattern).MatchString(src) {
			set[r.pkg] = true
		}
	}
	if len(set) == 0 {
		return src
	}
	return strings.Join(importList(set, format), "\n") + "\n\n" + src
}

func javaVisibility(v Visibility, member bool) string {
	switch v {
	case VisPublic:
		return "public "
	case VisPrivate:
		return "private "
	case VisProtected:
		return "protected "
	case VisPackage:
		return ""
	}
	if member {
		return "public "
	}
	return "private "
}

func javaClass(w *codeWriter, d *Diagram, c *Class) {
	name := c.Name
	if len(c.TypeParams) > 0 {
		name = angle(name, c.TypeParams)
	}

	var header string
	switch {
	case c.IsInterface():
		header = "public interface " + name
		if len(c.Extends) > 0 {
			header += " extends " + strings.Join(c.Extends, ", ")
		}
	case c.Kind == KindEnum:
		header = "public enum " + name
		if len(c.Implements) > 0 {
			header += " implements " + strings.Join(c.Implements, ", ")
		}
	default:
		header = "public class " + name
		if isAbstractClass(c) {
			header = "public abstract class " + name
		}
		base, ifaces, dropped := splitParents(d, c)
		if base != "" {
			header += " extends " + base
		}
		if len(ifaces) > 0 {
			header += " implements " + strings.Join(ifaces, ", ")
		}
		for _, x := range dropped {
			w.line("// Multiple inheritance is not supported: %s also extends %s", c.Name, x)
		}
	}
	w.line("%s {", header)
	w.in()

	wrote := false
	if c.Kind == KindEnum && len(c.EnumValues) > 0 {
		terminator := ""
		if len(c.Fields) > 0 || len(c.Methods) > 0 {
			terminator = ";"
		}
		w.line("%s%s", strings.Join(c.EnumValues, ",\n"+strings.Repeat(w.indent, w.depth)), terminator)
		wrote = true
	}

	if wrote && len(c.Fields) > 0 {
		w.line("")
	}
	if !c.IsInterface() {
		for _, f := range c.Fields {
			wrote = true
			static := ""
			if f.Static {
				static = "static "
			}
			w.line("%s%s%s %s;", javaVisibility(f.Visibility, false), static, javaTypes.render(f.Type), f.Name)
		}
	} else {
		for _, f := range c.Fields {
			w.line("%s %s = null;", javaTypes.render(nullable(f.Type)), f.Name)
			wrote = true
		}
	}

	for _, m := range c.Methods {
		if wrote {
			w.line("")
		}
		wrote = true
		javaMethod(w, c, m)
	}

	w.out()
	w.line("}")
}

func javaMethod(w *codeWriter, c *Class, m Method) {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = javaTypes.render(p.Type) + " " + p.Name
	}
	sig := strings.Join(params, ", ")

	if m.Constructor {
		w.line("%s%s(%s) {", javaVisibility(m.Visibility, true), c.Name, sig)
		w.in()
		for _, p := range m.Params {
			if c.hasField(p.Name) {
				w.line("this.%s = %s;", p.Name, p.Name)
			}
		}
		w.out()
		w.line("}")
		return
	}

	ret := "void"
	if m.Returns != nil {
		ret = javaTypes.render(m.Returns)
	}
	mods := ""
	if m.Static {
		mods = "static "
	}

	if c.IsInterface() {
		if m.Static {
			w.line("static %s %s(%s) {", ret, m.Name, sig)
			javaStubBody(w)
			return
		}
		w.line("%s %s(%s);", ret, m.Name, sig)
		return
	}
	if m.Abstract {
		w.line("%sabstract %s %s(%s);", javaVisibility(m.Visibility, true), ret, m.Name, sig)
		return
	}
	w.line("%s%s%s %s(%s) {", javaVisibility(m.Visibility, true), mods, ret, m.Name, sig)
	javaStubBody(w)
}

func javaStubBody(w *codeWriter) {
	w.in()
	w.line(`throw new UnsupportedOperationException("Not implemented");`)
	w.out()
	w.line("}")
}

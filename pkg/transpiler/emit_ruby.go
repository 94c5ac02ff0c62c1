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
	"strings"
)

// rubyTypes renders YARD type annotations; Ruby itself is untyped.
var rubyTypes = typeSystem{
	names: map[string]string{
		tInt: "Integer", tLong: "Integer", tFloat: "Float", tDouble: "Float", tBool: "Boolean",
		tString: "String", tChar: "String", tByte: "Integer", tVoid: "void",
		tDate: "Date", tDateTime: "Time", tObject: "Object",
	},
	unknown: "Object",
	list:    func(e string) string { return "Array<" + e + ">" },
	set:     func(e string) string { return "Set<" + e + ">" },
	dict:    func(k, v string) string { return "Hash{" + k + " => " + v + "}" },
	array:   func(e string) string { return "Array<" + e + ">" },
	generic: angle,
	null:    func(t string) string { return t + ", nil" },
}

func emitRuby(d *Diagram) string {
	w := newWriter("  ")
	w.line("# frozen_string_literal: true")
	pkg := ""
	for _, c := range orderedClasses(d) {
		w.line("")
		if c.Package != pkg && c.Package != "" {
			w.line("# Package: %s", c.Package)
		}
		pkg = c.Package
		switch {
		case c.Kind == KindEnum:
			rubyEnum(w, c)
		case c.IsInterface():
			rubyModule(w, c)
		default:
			rubyClass(w, d, c)
		}
	}
	return w.String()
}

func rubyEnum(w *codeWriter, c *Class) {
	w.line("module %s", c.Name)
	w.in()
	for _, v := range c.EnumValues {
		w.line("%s = :%s", strings.ToUpper(snake(v)), strings.ToLower(snake(v)))
	}
	if len(c.EnumValues) > 0 {
		consts := make([]string, len(c.EnumValues))
		for i, v := range c.EnumValues {
			consts[i] = strings.ToUpper(snake(v))
		}
		w.line("")
		w.line("ALL = [%s].freeze", strings.Join(consts, ", "))
	}
	w.out()
	w.line("end")
}

func rubyModule(w *codeWriter, c *Class) {
	w.line("module %s", c.Name)
	w.in()
	for _, parent := range c.Extends {
		w.line("include %s", parent)
	}
	for i, m := range c.Methods {
		if i > 0 || len(c.Extends) > 0 {
			w.line("")
		}
		rubyDoc(w, m)
		w.line("def %s%s", rubyMethodName(m), rubyParams(m.Params))
		w.in()
		w.line(`raise NotImplementedError, "#{self.class} must implement %s"`, snake(m.Name))
		w.out()
		w.line("end")
	}
	w.out()
	w.line("end")
}

func rubyClass(w *codeWriter, d *Diagram, c *Class) {
	base, ifaces, dropped := splitParents(d, c)
	for _, x := range dropped {
		w.line("# Multiple inheritance is not supported: %s also extends %s", c.Name, x)
	}
	if base != "" {
		w.line("class %s < %s", c.Name, base)
	} else {
		w.line("class %s", c.Name)
	}
	w.in()
	defer func() {
		w.out()
		w.line("end")
	}()

	section := false
	for _, i := range ifaces {
		w.line("include %s", i)
		section = true
	}

	var accessors []string
	for _, f := range c.Fields {
		if !f.Static && (f.Visibility == VisPublic || f.Visibility == VisDefault) {
			accessors = append(accessors, ":"+snake(f.Name))
		}
	}
	if len(accessors) > 0 {
		if section {
			w.line("")
		}
		w.line("attr_accessor %s", strings.Join(accessors, ", "))
		section = true
	}

	var statics []Field
	var instance []Field
	for _, f := range c.Fields {
		if f.Static {
			statics = append(statics, f)
		} else {
			instance = append(instance, f)
		}
	}
	if len(statics) > 0 {
		if section {
			w.line("")
		}
		for _, f := range statics {
			w.line("@@%s = nil", snake(f.Name))
		}
		section = true
	}

	ctors := c.Constructors()
	if len(instance) > 0 || len(ctors) > 0 {
		if section {
			w.line("")
		}
		var params []Param
		if len(ctors) > 0 {
			params = ctors[0].Params
			rubyDoc(w, ctors[0])
		}
		w.line("def initialize%s", rubyParams(params))
		w.in()
		if base != "" {
			w.line("super()")
		}
		for _, f := range instance {
			value := "nil"
			for _, p := range params {
				if p.Name == f.Name {
					value = snake(p.Name)
				}
			}
			w.line("@%s = %s", snake(f.Name), value)
		}
		w.out()
		w.line("end")
		section = true
	}

	groups := []struct {
		keyword string
		match   func(Visibility) bool
	}{
		{"", func(v Visibility) bool { return v != VisPrivate && v != VisProtected }},
		{"protected", func(v Visibility) bool { return v == VisProtected }},
		{"private", func(v Visibility) bool { return v == VisPrivate }},
	}
	for _, g := range groups {
		first := true
		for _, m := range c.Methods {
			inGroup := g.match(m.Visibility)
			if m.Static {
				// Class methods are always emitted in the public section.
				inGroup = g.keyword == ""
			}
			if m.Constructor || !inGroup {
				continue
			}
			if section {
				w.line("")
			}
			if first && g.keyword != "" {
				w.line("%s", g.keyword)
				w.line("")
			}
			first = false
			section = true
			rubyDoc(w, m)
			w.line("def %s%s", rubyMethodName(m), rubyParams(m.Params))
			w.in()
			w.line("raise NotImplementedError")
			w.out()
			w.line("end")
		}
	}
}

func rubyMethodName(m Method) string {
	if m.Static {
		return "self." + snake(m.Name)
	}
	return snake(m.Name)
}

func rubyParams(params []Param) string {
	if len(params) == 0 {
		return ""
	}
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = snake(p.Name)
	}
	return "(" + strings.Join(names, ", ") + ")"
}

func rubyDoc(w *codeWriter, m Method) {
	for _, p := range m.Params {
		if p.Type != nil {
			w.line("# @param %s [%s]", snake(p.Name), rubyTypes.render(p.Type))
		}
	}
	if m.Returns != nil && !m.Constructor {
		w.line("# @return [%s]", rubyTypes.render(m.Returns))
	}
}

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

var pythonTypes = typeSystem{
	names: map[string]string{
		tInt: "int", tLong: "int", tFloat: "float", tDouble: "float", tBool: "bool",
		tString: "str", tChar: "str", tByte: "int", tVoid: "None",
		tDate: "date", tDateTime: "datetime", tObject: "Any",
	},
	unknown: "Any",
	list:    func(e string) string { return "List[" + e + "]" },
	set:     func(e string) string { return "Set[" + e + "]" },
	dict:    func(k, v string) string { return "Dict[" + k + ", " + v + "]" },
	array:   func(e string) string { return "List[" + e + "]" },
	generic: func(n string, a []string) string { return n + "[" + strings.Join(a, ", ") + "]" },
	null:    func(t string) string { return "Optional[" + t + "]" },
}

var pyTypingNames = []string{"Any", "Dict", "Generic", "List", "Optional", "Set", "TypeVar"}

func emitPython(d *Diagram) string {
	body := newWriter("    ")
	typeVars := map[string]bool{}
	usesABC, usesEnum := false, false

	pkg := ""
	for i, c := range orderedClasses(d) {
		if i > 0 {
			body.line("")
			body.line("")
		}
		if c.Package != pkg && c.Package != "" {
			body.line("# Package: %s", c.Package)
		}
		pkg = c.Package
		for _, tp := range c.TypeParams {
			typeVars[tp] = true
		}
		switch {
		case c.Kind == KindEnum:
			usesEnum = true
			pythonEnum(body, c)
		default:
			if c.IsInterface() || isAbstractClass(c) {
				usesABC = true
			}
			pythonClass(body, d, c)
		}
	}

	src := body.String()
	head := newWriter("    ")
	head.line("from __future__ import annotations")
	head.line("")
	var stdlib []string
	if usesABC {
		stdlib = append(stdlib, "from abc import ABC, abstractmethod")
	}
	dt := []string{}
	if wordUsed(src, "date") {
		dt = append(dt, "date")
	}
	if wordUsed(src, "datetime") {
		dt = append(dt, "datetime")
	}
	if len(dt) > 0 {
		stdlib = append(stdlib, "from datetime import "+strings.Join(dt, ", "))
	}
	if usesEnum {
		stdlib = append(stdlib, "from enum import Enum, auto")
	}
	var typing []string
	for _, n := range pyTypingNames {
		if wordUsed(src, n) || (n == "TypeVar" && len(typeVars) > 0) {
			typing = append(typing, n)
		}
	}
	if len(typing) > 0 {
		stdlib = append(stdlib, "from typing import "+strings.Join(typing, ", "))
	}
	for _, l := range stdlib {
		head.line("%s", l)
	}
	if len(typeVars) > 0 {
		head.line("")
		for _, tv := range importList(typeVars, "%s") {
			head.line(`%s = TypeVar("%s")`, tv, tv)
		}
	}
	head.line("")
	head.line("")
	return head.sb.String() + src
}

func wordUsed(src, word string) bool {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`).MatchString(src)
}

func isAbstractClass(c *Class) bool {
	if c.Kind == KindAbstract {
		return true
	}
	for _, m := range c.Methods {
		if m.Abstract {
			return true
		}
	}
	return false
}

func pythonName(name string, vis Visibility) string {
	n := snake(name)
	if vis == VisPrivate || vis == VisProtected {
		return "_" + n
	}
	return n
}

func pythonEnum(w *codeWriter, c *Class) {
	w.line("class %s(Enum):", c.Name)
	w.in()
	if len(c.EnumValues) == 0 {
		w.line("pass")
	}
	for _, v := range c.EnumValues {
		w.line("%s = auto()", v)
	}
	w.out()
}

func pythonClass(w *codeWriter, d *Diagram, c *Class) {
	var bases []string
	bases = append(bases, c.Extends...)
	bases = append(bases, c.Implements...)
	if (c.IsInterface() || isAbstractClass(c)) && len(bases) == 0 {
		bases = append(bases, "ABC")
	}
	if len(c.TypeParams) > 0 {
		bases = append(bases, "Generic["+strings.Join(c.TypeParams, ", ")+"]")
	}
	if len(bases) > 0 {
		w.line("class %s(%s):", c.Name, strings.Join(bases, ", "))
	} else {
		w.line("class %s:", c.Name)
	}
	w.in()
	defer w.out()

	wrote := false
	for _, f := range c.Fields {
		if f.Static {
			w.line("%s: %s = None", pythonName(f.Name, f.Visibility), pythonTypes.render(f.Type))
			wrote = true
		}
	}

	var instance []Field
	for _, f := range c.Fields {
		if !f.Static {
			instance = append(instance, f)
		}
	}
	ctors := c.Constructors()
	if len(instance) > 0 || len(ctors) > 0 || (len(c.Extends) > 0 && !c.IsInterface()) {
		if wrote {
			w.line("")
		}
		var params []Param
		if len(ctors) > 0 {
			params = ctors[0].Params
		}
		w.line("def __init__(%s) -> None:", pythonParams(params, true))
		w.in()
		if len(c.Extends) > 0 {
			w.line("super().__init__()")
		}
		for _, f := range instance {
			value := "None"
			for _, p := range params {
				if p.Name == f.Name {
					value = snake(p.Name)
				}
			}
			w.line("self.%s: %s = %s", pythonName(f.Name, f.Visibility), pythonTypes.render(nullable(f.Type)), value)
		}
		if len(instance) == 0 && len(c.Extends) == 0 {
			w.line("pass")
		}
		w.out()
		wrote = true
	}

	for _, m := range c.Methods {
		if m.Constructor {
			continue
		}
		if wrote {
			w.line("")
		}
		wrote = true
		abstract := m.Abstract || (c.IsInterface() && !m.Static)
		switch {
		case m.Static:
			w.line("@staticmethod")
		case abstract:
			w.line("@abstractmethod")
		}
		ret := "None"
		if m.Returns != nil {
			ret = pythonTypes.render(m.Returns)
		}
		w.line("def %s(%s) -> %s:", pythonName(m.Name, m.Visibility), pythonParams(m.Params, !m.Static), ret)
		w.in()
		if abstract {
			w.line("...")
		} else {
			w.line("raise NotImplementedError")
		}
		w.out()
	}

	if !wrote {
		w.line("pass")
	}
}

func pythonParams(params []Param, self bool) string {
	var parts []string
	if self {
		parts = append(parts, "self")
	}
	for _, p := range params {
		parts = append(parts, snake(p.Name)+": "+pythonTypes.render(p.Type))
	}
	return strings.Join(parts, ", ")
}

// nullable marks a copy of t as optional for attributes initialised to None.
func nullable(t *TypeRef) *TypeRef {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Nullable = true
	return &cp
}

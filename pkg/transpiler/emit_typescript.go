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

var typescriptTypes = typeSystem{
	names: map[string]string{
		tInt: "number", tLong: "number", tFloat: "number", tDouble: "number", tBool: "boolean",
		tString: "string", tChar: "string", tByte: "number", tVoid: "void",
		tDate: "Date", tDateTime: "Date", tObject: "unknown",
	},
	unknown: "any",
	list:    tsArray,
	set:     func(e string) string { return "Set<" + e + ">" },
	dict:    func(k, v string) string { return "Map<" + k + ", " + v + ">" },
	array:   tsArray,
	generic: angle,
	null:    func(t string) string { return t + " | null" },
}

func tsArray(e string) string {
	if strings.ContainsAny(e, " <|") {
		return "Array<" + e + ">"
	}
	return e + "[]"
}

func emitTypeScript(d *Diagram) string {
	w := newWriter("  ")
	pkg := ""
	for i, c := range orderedClasses(d) {
		if i > 0 {
			w.line("")
		}
		if c.Package != pkg && c.Package != "" {
			w.line("// Package: %s", c.Package)
		}
		pkg = c.Package
		switch {
		case c.Kind == KindEnum:
			tsEnum(w, c)
		case c.IsInterface():
			tsInterface(w, c)
		default:
			tsClass(w, d, c)
		}
	}
	return w.String()
}

func tsVisibility(v Visibility) string {
	switch v {
	case VisPrivate:
		return "private "
	case VisProtected:
		return "protected "
	}
	return ""
}

func tsParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + ": " + typescriptTypes.render(p.Type)
	}
	return strings.Join(parts, ", ")
}

func tsReturn(m Method) string {
	if m.Returns == nil {
		return "void"
	}
	return typescriptTypes.render(m.Returns)
}

func tsEnum(w *codeWriter, c *Class) {
	w.line("export enum %s {", c.Name)
	w.in()
	for _, v := range c.EnumValues {
		w.line(`%s = "%s",`, v, v)
	}
	w.out()
	w.line("}")
}

func tsInterface(w *codeWriter, c *Class) {
	name := c.Name
	if len(c.TypeParams) > 0 {
		name = angle(name, c.TypeParams)
	}
	header := "export interface " + name
	if len(c.Extends) > 0 {
		header += " extends " + strings.Join(c.Extends, ", ")
	}
	w.line("%s {", header)
	w.in()
	for _, f := range c.Fields {
		w.line("%s: %s;", f.Name, typescriptTypes.render(f.Type))
	}
	for _, m := range c.Methods {
		if m.Static || m.Constructor {
			continue
		}
		w.line("%s(%s): %s;", m.Name, tsParams(m.Params), tsReturn(m))
	}
	w.out()
	w.line("}")
}

func tsClass(w *codeWriter, d *Diagram, c *Class) {
	name := c.Name
	if len(c.TypeParams) > 0 {
		name = angle(name, c.TypeParams)
	}
	header := "export class " + name
	if isAbstractClass(c) {
		header = "export abstract class " + name
	}
	base, ifaces, dropped := splitParents(d, c)
	for _, x := range dropped {
		w.line("// Multiple inheritance is not supported: %s also extends %s", c.Name, x)
	}
	if base != "" {
		header += " extends " + base
	}
	if len(ifaces) > 0 {
		header += " implements " + strings.Join(ifaces, ", ")
	}
	w.line("%s {", header)
	w.in()

	wrote := false
	for _, f := range c.Fields {
		wrote = true
		static := ""
		if f.Static {
			static = "static "
		}
		w.line("%s%s%s?: %s;", tsVisibility(f.Visibility), static, f.Name, typescriptTypes.render(f.Type))
	}

	if ctors := c.Constructors(); len(ctors) > 0 {
		ctor := ctors[0]
		if wrote {
			w.line("")
		}
		wrote = true
		w.line("%sconstructor(%s) {", tsVisibility(ctor.Visibility), tsParams(ctor.Params))
		w.in()
		if base != "" {
			w.line("super();")
		}
		for _, p := range ctor.Params {
			if c.hasField(p.Name) {
				w.line("this.%s = %s;", p.Name, p.Name)
			}
		}
		w.out()
		w.line("}")
	}

	for _, m := range c.Methods {
		if m.Constructor {
			continue
		}
		if wrote {
			w.line("")
		}
		wrote = true
		mods := tsVisibility(m.Visibility)
		if m.Static {
			mods += "static "
		}
		if m.Abstract {
			w.line("%sabstract %s(%s): %s;", mods, m.Name, tsParams(m.Params), tsReturn(m))
			continue
		}
		w.line("%s%s(%s): %s {", mods, m.Name, tsParams(m.Params), tsReturn(m))
		w.in()
		w.line(`throw new Error("Not implemented");`)
		w.out()
		w.line("}")
	}

	w.out()
	w.line("}")
}

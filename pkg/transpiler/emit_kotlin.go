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

var kotlinTypes = typeSystem{
	names: map[string]string{
		tInt: "Int", tLong: "Long", tFloat: "Float", tDouble: "Double", tBool: "Boolean",
		tString: "String", tChar: "Char", tByte: "Byte", tVoid: "Unit",
		tDate: "LocalDate", tDateTime: "LocalDateTime", tObject: "Any",
	},
	unknown: "Any",
	list:    func(e string) string { return "List<" + e + ">" },
	set:     func(e string) string { return "Set<" + e + ">" },
	dict:    func(k, v string) string { return "Map<" + k + ", " + v + ">" },
	array:   func(e string) string { return "Array<" + e + ">" },
	generic: angle,
	null:    func(t string) string { return t + "?" },
}

var kotlinImports = []importRule{
	{`\bLocalDate\b`, "java.time.LocalDate"},
	{`\bLocalDateTime\b`, "java.time.LocalDateTime"},
}

func emitKotlin(d *Diagram) string {
	body := newWriter("    ")
	open := subclassed(d)
	pkg := ""
	for i, c := range orderedClasses(d) {
		if i > 0 {
			body.line("")
		}
		if c.Package != pkg && c.Package != "" {
			body.line("// Package: %s", c.Package)
		}
		pkg = c.Package
		kotlinClass(body, d, c, open[c.Name])
	}
	return withImports(body.String(), kotlinImports, "import %s")
}

func kotlinVisibility(v Visibility) string {
	switch v {
	case VisPrivate:
		return "private "
	case VisProtected:
		return "protected "
	case VisPackage:
		return "internal "
	}
	return ""
}

// kotlinDefault returns an initializer for a property of type t, which
// is rendered nullable when no natural zero value exists.
func kotlinDefault(t *TypeRef) (typ, value string) {
	if t == nil {
		return "Any?", "null"
	}
	if t.Array == 0 && !t.Nullable {
		switch canonical(t.Name) {
		case tInt, tByte:
			return kotlinTypes.render(t), "0"
		case tLong:
			return kotlinTypes.render(t), "0L"
		case tFloat:
			return kotlinTypes.render(t), "0.0f"
		case tDouble:
			return kotlinTypes.render(t), "0.0"
		case tBool:
			return kotlinTypes.render(t), "false"
		case tString:
			return kotlinTypes.render(t), `""`
		case tList:
			return kotlinTypes.render(t), "emptyList()"
		case tSet:
			return kotlinTypes.render(t), "emptySet()"
		case tMap:
			return kotlinTypes.render(t), "emptyMap()"
		}
	}
	return kotlinTypes.render(nullable(t)), "null"
}

func kotlinClass(w *codeWriter, d *Diagram, c *Class, open bool) {
	name := c.Name
	if len(c.TypeParams) > 0 {
		name = angle(name, c.TypeParams)
	}

	if c.Kind == KindEnum {
		w.line("enum class %s {", name)
		w.in()
		for i, v := range c.EnumValues {
			sep := ","
			if i == len(c.EnumValues)-1 {
				sep = ""
			}
			w.line("%s%s", v, sep)
		}
		w.out()
		w.line("}")
		return
	}

	ctors := c.Constructors()
	var header string
	var parents []string
	if c.IsInterface() {
		header = "interface " + name
		parents = c.Extends
	} else {
		switch {
		case isAbstractClass(c):
			header = "abstract class " + name
		case open:
			header = "open class " + name
		default:
			header = "class " + name
		}
		base, ifaces, dropped := splitParents(d, c)
		if base != "" {
			// With only secondary constructors the superclass is
			// initialized through super() in each of them.
			if len(ctors) > 0 {
				parents = append(parents, base)
			} else {
				parents = append(parents, base+"()")
			}
		}
		parents = append(parents, ifaces...)
		for _, x := range dropped {
			w.line("// Multiple inheritance is not supported: %s also extends %s", c.Name, x)
		}
	}
	if len(parents) > 0 {
		header += " : " + strings.Join(parents, ", ")
	}
	w.line("%s {", header)
	w.in()

	wrote := false
	var statics []string
	for _, f := range c.Fields {
		if f.Static {
			typ, val := kotlinDefault(f.Type)
			statics = append(statics, "var "+f.Name+": "+typ+" = "+val)
			continue
		}
		wrote = true
		if c.IsInterface() {
			w.line("val %s: %s", f.Name, kotlinTypes.render(f.Type))
			continue
		}
		typ, val := kotlinDefault(f.Type)
		w.line("%svar %s: %s = %s", kotlinVisibility(f.Visibility), f.Name, typ, val)
	}

	base, _, _ := splitParents(d, c)
	for _, m := range ctors {
		if wrote {
			w.line("")
		}
		wrote = true
		delegate := ""
		if base != "" {
			delegate = " : super()"
		}
		w.line("%sconstructor(%s)%s {", kotlinVisibility(m.Visibility), kotlinParams(m.Params), delegate)
		w.in()
		for _, p := range m.Params {
			if c.hasField(p.Name) {
				w.line("this.%s = %s", p.Name, p.Name)
			}
		}
		w.out()
		w.line("}")
	}

	var staticMethods []Method
	for _, m := range c.Methods {
		if m.Constructor {
			continue
		}
		if m.Static {
			staticMethods = append(staticMethods, m)
			continue
		}
		if wrote {
			w.line("")
		}
		wrote = true
		kotlinMethod(w, c, m, open)
	}

	if len(statics) > 0 || len(staticMethods) > 0 {
		if wrote {
			w.line("")
		}
		w.line("companion object {")
		w.in()
		for _, s := range statics {
			w.line("%s", s)
		}
		for i, m := range staticMethods {
			if i > 0 || len(statics) > 0 {
				w.line("")
			}
			kotlinMethod(w, c, m, false)
		}
		w.out()
		w.line("}")
	}

	w.out()
	w.line("}")
}

func kotlinParams(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + ": " + kotlinTypes.render(p.Type)
	}
	return strings.Join(parts, ", ")
}

func kotlinMethod(w *codeWriter, c *Class, m Method, open bool) {
	ret := ""
	if m.Returns != nil {
		ret = ": " + kotlinTypes.render(m.Returns)
	}
	sig := m.Name + "(" + kotlinParams(m.Params) + ")" + ret

	if c.IsInterface() && !m.Static {
		w.line("fun %s", sig)
		return
	}
	if m.Abstract {
		w.line("%sabstract fun %s", kotlinVisibility(m.Visibility), sig)
		return
	}
	mods := kotlinVisibility(m.Visibility)
	if open && m.Visibility != VisPrivate && !m.Static {
		mods += "open "
	}
	w.line("%sfun %s {", mods, sig)
	w.in()
	w.line(`TODO("Not yet implemented")`)
	w.out()
	w.line("}")
}

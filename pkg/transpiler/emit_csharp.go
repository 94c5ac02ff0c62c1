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

var csharpTypes = typeSystem{
	names: map[string]string{
		tInt: "int", tLong: "long", tFloat: "float", tDouble: "double", tBool: "bool",
		tString: "string", tChar: "char", tByte: "byte", tVoid: "void",
		tDate: "DateTime", tDateTime: "DateTime", tObject: "object",
	},
	unknown: "object",
	list:    func(e string) string { return "List<" + e + ">" },
	set:     func(e string) string { return "HashSet<" + e + ">" },
	dict:    func(k, v string) string { return "Dictionary<" + k + ", " + v + ">" },
	array:   func(e string) string { return e + "[]" },
	generic: angle,
	null:    func(t string) string { return t + "?" },
}

var csharpImports = []importRule{
	{`\b(List|HashSet|Dictionary)<`, "System.Collections.Generic"},
}

func emitCSharp(d *Diagram) string {
	body := newWriter("    ")
	pkg := ""
	for i, c := range orderedClasses(d) {
		if i > 0 {
			body.line("")
		}
		if c.Package != pkg && c.Package != "" {
			body.line("// Namespace: %s", c.Package)
		}
		pkg = c.Package
		csharpClass(body, d, c)
	}
	return withImports(body.String(), csharpImports, "using %s;", "System")
}

func csharpVisibility(v Visibility, member bool) string {
	switch v {
	case VisPublic:
		return "public "
	case VisPrivate:
		return "private "
	case VisProtected:
		return "protected "
	case VisPackage:
		return "internal "
	}
	if member {
		return "public "
	}
	return "private "
}

func csharpClass(w *codeWriter, d *Diagram, c *Class) {
	name := c.Name
	if len(c.TypeParams) > 0 {
		name = angle(name, c.TypeParams)
	}

	if c.Kind == KindEnum {
		w.line("public enum %s", c.Name)
		w.line("{")
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

	var header string
	var parents []string
	if c.IsInterface() {
		header = "public interface " + name
		parents = c.Extends
	} else {
		header = "public class " + name
		if isAbstractClass(c) {
			header = "public abstract class " + name
		}
		base, ifaces, dropped := splitParents(d, c)
		if base != "" {
			parents = append(parents, base)
		}
		parents = append(parents, ifaces...)
		for _, x := range dropped {
			w.line("// Multiple inheritance is not supported: %s also extends %s", c.Name, x)
		}
	}
	if len(parents) > 0 {
		header += " : " + strings.Join(parents, ", ")
	}
	w.line("%s", header)
	w.line("{")
	w.in()

	wrote := false
	for _, f := range c.Fields {
		wrote = true
		typ := csharpTypes.render(f.Type)
		static := ""
		if f.Static {
			static = "static "
		}
		if c.IsInterface() {
			w.line("%s %s { get; set; }", typ, upperFirst(f.Name))
			continue
		}
		if f.Visibility == VisPublic {
			w.line("public %s%s %s { get; set; }", static, typ, upperFirst(f.Name))
			continue
		}
		w.line("%s%s%s %s;", csharpVisibility(f.Visibility, false), static, typ, lowerFirst(f.Name))
	}

	for _, m := range c.Methods {
		if wrote {
			w.line("")
		}
		wrote = true
		csharpMethod(w, c, m)
	}

	w.out()
	w.line("}")
}

func csharpMethod(w *codeWriter, c *Class, m Method) {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = csharpTypes.render(p.Type) + " " + lowerFirst(p.Name)
	}
	sig := strings.Join(params, ", ")

	if m.Constructor {
		w.line("%s%s(%s)", csharpVisibility(m.Visibility, true), c.Name, sig)
		w.line("{")
		w.in()
		for _, p := range m.Params {
			for _, f := range c.Fields {
				if !strings.EqualFold(f.Name, p.Name) {
					continue
				}
				target := lowerFirst(f.Name)
				if f.Visibility == VisPublic {
					target = upperFirst(f.Name)
				}
				w.line("this.%s = %s;", target, lowerFirst(p.Name))
			}
		}
		w.out()
		w.line("}")
		return
	}

	ret := "void"
	if m.Returns != nil {
		ret = csharpTypes.render(m.Returns)
	}
	name := upperFirst(m.Name)

	if c.IsInterface() && !m.Static {
		w.line("%s %s(%s);", ret, name, sig)
		return
	}
	if m.Abstract {
		w.line("%sabstract %s %s(%s);", csharpVisibility(m.Visibility, true), ret, name, sig)
		return
	}
	static := ""
	if m.Static {
		static = "static "
	}
	w.line("%s%s%s %s(%s)", csharpVisibility(m.Visibility, true), static, ret, name, sig)
	w.line("{")
	w.in()
	w.line("throw new NotImplementedException();")
	w.out()
	w.line("}")
}

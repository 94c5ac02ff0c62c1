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

import "strings"

// Kind is the classifier type of a declaration.
type Kind int

const (
	KindClass Kind = iota
	KindAbstract
	KindInterface
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindAbstract:
		return "abstract class"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	default:
		return "class"
	}
}

// Visibility is a UML member visibility marker.
type Visibility int

const (
	VisDefault Visibility = iota
	VisPublic
	VisPrivate
	VisProtected
	VisPackage
)

func visibilityFromMarker(c byte) (Visibility, bool) {
	switch c {
	case '+':
		return VisPublic, true
	case '-':
		return VisPrivate, true
	case '#':
		return VisProtected, true
	case '~':
		return VisPackage, true
	}
	return VisDefault, false
}

// RelationKind classifies a relationship arrow.
type RelationKind int

const (
	RelLink RelationKind = iota
	RelAssociation
	RelDependency
	RelAggregation
	RelComposition
	RelInheritance
	RelRealization
)

// Diagram is the parsed, language-neutral form of a class diagram.
type Diagram struct {
	Classes   []*Class
	Relations []Relation

	index map[string]*Class
}

// Class returns the declaration named name, or nil.
func (d *Diagram) Class(name string) *Class {
	return d.index[name]
}

func (d *Diagram) ensure(name string) *Class {
	if c, ok := d.index[name]; ok {
		return c
	}
	c := &Class{Name: name, Implicit: true}
	d.index[name] = c
	d.Classes = append(d.Classes, c)
	return c
}

// Class is one classifier in the diagram.
type Class struct {
	Name       string
	Kind       Kind
	Package    string
	TypeParams []string
	Stereotype string

	// Extends holds superclasses (or super-interfaces for interfaces).
	Extends []string

	// Implements holds interfaces realized by a class.
	Implements []string

	Fields     []Field
	Methods    []Method
	EnumValues []string

	// Implicit is true for classes only referenced by relationships.
	Implicit bool
}

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool { return c.Kind == KindInterface }

func (c *Class) hasField(name string) bool {
	for _, f := range c.Fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

func (c *Class) addParent(name string, realization bool) {
	list := &c.Extends
	if realization {
		list = &c.Implements
	}
	for _, existing := range *list {
		if existing == name {
			return
		}
	}
	*list = append(*list, name)
}

// Constructors returns the methods named like the class.
func (c *Class) Constructors() []Method {
	var out []Method
	for _, m := range c.Methods {
		if m.Constructor {
			out = append(out, m)
		}
	}
	return out
}

// Field is an attribute.
type Field struct {
	Name       string
	Type       *TypeRef
	Visibility Visibility
	Static     bool
}

// Method is an operation.
type Method struct {
	Name        string
	Params      []Param
	Returns     *TypeRef
	Visibility  Visibility
	Static      bool
	Abstract    bool
	Constructor bool
}

// Param is a method parameter.
type Param struct {
	Name string
	Type *TypeRef
}

// Relation is one arrow between two classes.
type Relation struct {
	Kind RelationKind

	// From is the owning or child side; To is the target or parent side.
	From, To string

	// FromMult and ToMult are the multiplicity labels on each end.
	FromMult, ToMult string

	Label string
	Line  int
}

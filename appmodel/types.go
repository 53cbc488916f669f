// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package appmodel is the in-memory program graph: classes, methods,
// fields, types, protos, and code bodies. It is
// built once by an external collaborator (the bytecode parser, out of
// scope here) and is immutable during tracing except for
// synthetic items appended through the SyntheticItems interface and IR
// bodies while the rewriter owns them.
//
// The source system models these as a deep class hierarchy (TypeElement,
// DexType, ClassTypeElement, ...). Here we instead use
// arenas of stable integer handles: one for interned types, one for
// interned method/field references. Parent pointers (a field's holder, a
// method's reference) are handles into an arena, not owning pointers, so
// cyclic class<->method<->field references never require a cyclic
// ownership graph.
package appmodel

import "strings"

// Type is an interned handle to a type reference. Two Types compare equal
// iff they were interned from the same descriptor in the same Context.
type Type struct {
	id int32
}

// Invalid is the zero Type, never produced by Context.Intern.
var Invalid Type

// IsValid reports whether t was produced by a Context.
func (t Type) IsValid() bool { return t.id != 0 }

// Less gives Type an arbitrary but stable total order (interning order),
// used only to make an otherwise-ambiguous choice deterministic (e.g.
// picking among several equally-valid abstract default methods).
func (t Type) Less(o Type) bool { return t.id < o.id }

// typeEntry is the arena-resident record a Type handle indexes into.
type typeEntry struct {
	descriptor string
	kind       TypeKind
	// For TypeKindArray: the element type and dimension count.
	elem TypeKind
	elemType Type
	dims     int
}

// TypeKind classifies a type reference.
type TypeKind uint8

const (
	TypeKindPrimitive TypeKind = iota
	TypeKindClass
	TypeKindArray
	TypeKindVoid
)

// Context owns every interning table in the app model: types, method
// references, and field references. It is the explicit context passed
// down in place of the source's singleton item factory --
// no cache lives in a package-level variable.
type Context struct {
	types    []typeEntry
	typeIdx  map[string]Type

	methods   []methodRefEntry
	methodIdx map[methodRefKey]MethodRef

	fields   []fieldRefEntry
	fieldIdx map[fieldRefKey]FieldRef
}

// NewContext returns an empty interning context. Handle 0 is reserved so
// the zero value of every handle type is recognizably invalid.
func NewContext() *Context {
	c := &Context{
		typeIdx:   make(map[string]Type),
		methodIdx: make(map[methodRefKey]MethodRef),
		fieldIdx:  make(map[fieldRefKey]FieldRef),
	}
	c.types = append(c.types, typeEntry{}) // index 0 unused
	c.methods = append(c.methods, methodRefEntry{})
	c.fields = append(c.fields, fieldRefEntry{})
	return c
}

// InternType interns a type descriptor (e.g. "Lcom/app/Foo;", "I",
// "[[Lcom/app/Bar;") and returns its handle, minting a new entry only on
// first sight.
func (c *Context) InternType(descriptor string) Type {
	if t, ok := c.typeIdx[descriptor]; ok {
		return t
	}
	entry := typeEntry{descriptor: descriptor}
	if strings.HasPrefix(descriptor, "[") {
		dims := 0
		for dims < len(descriptor) && descriptor[dims] == '[' {
			dims++
		}
		entry.kind = TypeKindArray
		entry.dims = dims
		entry.elemType = c.InternType(descriptor[dims:])
		entry.elem = c.types[entry.elemType.id].kind
	} else if descriptor == "V" {
		entry.kind = TypeKindVoid
	} else if isPrimitiveDescriptor(descriptor) {
		entry.kind = TypeKindPrimitive
	} else {
		entry.kind = TypeKindClass
	}
	id := int32(len(c.types))
	c.types = append(c.types, entry)
	t := Type{id: id}
	c.typeIdx[descriptor] = t
	return t
}

func isPrimitiveDescriptor(d string) bool {
	return len(d) == 1 && strings.ContainsRune("ZBCSIJFD", rune(d[0]))
}

// Descriptor returns the interned descriptor string for t.
func (c *Context) Descriptor(t Type) string { return c.types[t.id].descriptor }

// Kind returns t's classification.
func (c *Context) Kind(t Type) TypeKind { return c.types[t.id].kind }

// ArrayElemType returns (elementType, dimensions) for an array Type.
// Array types decompose into (base, dimensions).
func (c *Context) ArrayElemType(t Type) (Type, int) {
	e := c.types[t.id]
	return e.elemType, e.dims
}

// IsArray reports whether t is an array type.
func (c *Context) IsArray(t Type) bool { return c.Kind(t) == TypeKindArray }

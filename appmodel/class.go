// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package appmodel

import "strings"

// ClassKind is the exclusive variant a ClassDef belongs to:
// program classes are subject to rewriting and emitted, classpath
// classes are referenced but not emitted, and library classes are the
// platform SDK, kept verbatim.
type ClassKind uint8

const (
	ClassProgram ClassKind = iota
	ClassPath
	ClassLibrary
)

// InnerClassEntry records one row of a class's inner-class table.
type InnerClassEntry struct {
	Inner           Type
	Outer           Type // invalid Type if anonymous/local with no outer
	SimpleName      string
	AccessFlags     AccessFlags
}

// EnclosingMethod records the enclosing-method attribute for an
// anonymous/local class, if any.
type EnclosingMethod struct {
	Present bool
	Class   Type
	Method  MethodRef // invalid if the class is enclosed by an initializer/field, not a method
}

// ClassDef is one class/interface declaration. It exclusively owns its
// methods and fields; references to other types (superclass, interfaces,
// nest members, ...) are non-owning Type handles.
type ClassDef struct {
	Type  Type
	Kind  ClassKind
	Flags AccessFlags

	Super      Type // invalid for java.lang.Object / the root of a classpath-only hierarchy
	Interfaces []Type

	StaticFields   []*FieldDef
	InstanceFields []*FieldDef
	DirectMethods  []*MethodDef
	VirtualMethods []*MethodDef

	NestHost    Type // invalid if this class is its own nest host
	NestMembers []Type

	InnerClasses    []InnerClassEntry
	EnclosingMethod EnclosingMethod

	Annotations []Type
}

// IsInterface reports whether the class is an interface.
func (c *ClassDef) IsInterface() bool { return c.Flags.Has(AccInterface) }

// IsAbstract reports whether the class is abstract (interfaces are
// implicitly abstract but may also carry the explicit flag).
func (c *ClassDef) IsAbstract() bool { return c.Flags.Has(AccAbstract) }

// IsAnnotation reports whether the class is an annotation type.
func (c *ClassDef) IsAnnotation() bool { return c.Flags.Has(AccAnnotation) }

// IsEnum reports whether the class is an enum.
func (c *ClassDef) IsEnum() bool { return c.Flags.Has(AccEnum) }

// LookupDeclaredMethod returns the method declared directly on c (in
// either the direct or virtual collection) matching name+proto, or nil.
// This is the "class-declared method" search the resolver and the
// virtual-dispatch enumerator both perform at each step up a class chain.
func (c *ClassDef) LookupDeclaredMethod(ctx *Context, name string, proto Proto) *MethodDef {
	key := proto.equalKey()
	for _, m := range c.DirectMethods {
		if ctx.MethodName(m.Ref) == name && ctx.MethodProto(m.Ref).equalKey() == key {
			return m
		}
	}
	for _, m := range c.VirtualMethods {
		if ctx.MethodName(m.Ref) == name && ctx.MethodProto(m.Ref).equalKey() == key {
			return m
		}
	}
	return nil
}

// LookupDeclaredField returns the field declared directly on c matching
// name, searching both static and instance collections, or nil.
func (c *ClassDef) LookupDeclaredField(ctx *Context, name string) *FieldDef {
	for _, f := range c.StaticFields {
		if ctx.FieldName(f.Ref) == name {
			return f
		}
	}
	for _, f := range c.InstanceFields {
		if ctx.FieldName(f.Ref) == name {
			return f
		}
	}
	return nil
}

// BinaryName returns the internal-form binary name (slash-separated,
// no "L"/";" framing) of a class type, the shape keep-rule name
// patterns are written against.
func BinaryName(ctx *Context, t Type) string {
	name := ctx.Descriptor(t)
	name = strings.TrimPrefix(name, "L")
	return strings.TrimSuffix(name, ";")
}

// PackageName returns the internal-form package name (slash-separated)
// of a class's binary name. Used by the resolver's package-private
// visibility and same-package override checks.
func PackageName(ctx *Context, t Type) string {
	name := ctx.Descriptor(t)
	name = strings.TrimPrefix(name, "L")
	name = strings.TrimSuffix(name, ";")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

// SamePackage reports whether a and b are declared in the same package.
func SamePackage(ctx *Context, a, b Type) bool {
	return PackageName(ctx, a) == PackageName(ctx, b)
}

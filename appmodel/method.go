// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package appmodel

// MethodDef is one method declaration, owned by exactly one ClassDef.
// Code is present unless the method is abstract or native.
type MethodDef struct {
	Ref   MethodRef
	Flags AccessFlags
	Init  InitializerFlavor
	Code  *CodeBody // nil for abstract/native methods

	Annotations []Type
	// ParameterAnnotations aligns 1:1 with the method's proto parameters.
	ParameterAnnotations [][]Type
}

// IsDirect reports whether m belongs to a class's direct-method
// collection: private, static, or an initializer.
func (m *MethodDef) IsDirect() bool {
	return m.Flags.Has(AccPrivate) || m.Flags.Has(AccStatic) || m.Init != NotInitializer
}

// IsVirtual is the complement of IsDirect.
func (m *MethodDef) IsVirtual() bool { return !m.IsDirect() }

// IsStatic reports whether m is declared static.
func (m *MethodDef) IsStatic() bool { return m.Flags.Has(AccStatic) }

// IsPrivate reports whether m is declared private.
func (m *MethodDef) IsPrivate() bool { return m.Flags.Has(AccPrivate) }

// IsAbstract reports whether m has no code body by declaration.
func (m *MethodDef) IsAbstract() bool { return m.Flags.Has(AccAbstract) }

// IsBridge reports whether m is a compiler-synthesized bridge method.
func (m *MethodDef) IsBridge() bool { return m.Flags.Has(AccBridge) }

// HasCode reports whether m currently owns a code body.
func (m *MethodDef) HasCode() bool { return m.Code != nil }

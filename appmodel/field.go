// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package appmodel

// FieldDef is one field declaration, owned by exactly one ClassDef.
type FieldDef struct {
	Ref   FieldRef
	Flags AccessFlags

	// ConstantValue is the field's compile-time constant initializer, if
	// any (e.g. a static final int). nil when absent.
	ConstantValue interface{}

	// Annotations lists the field's retained annotation types, consulted
	// by the enqueuer when annotation retention is a keep precondition.
	Annotations []Type
}

// IsStatic reports whether the field belongs to the class's static
// field collection.
func (f *FieldDef) IsStatic() bool { return f.Flags.Has(AccStatic) }

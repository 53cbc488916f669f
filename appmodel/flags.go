// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package appmodel

// AccessFlags is a bitset of the access/modifier flags carried by classes,
// methods and fields.
type AccessFlags uint32

const (
	AccPublic AccessFlags = 1 << iota
	AccPrivate
	AccProtected
	AccStatic
	AccFinal
	AccSynchronized
	AccBridge
	AccVarargs
	AccNative
	AccInterface
	AccAbstract
	AccStrict
	AccSynthetic
	AccAnnotation
	AccEnum
	AccConstructor // <init> / <clinit>
)

// Has reports whether all of want is set.
func (f AccessFlags) Has(want AccessFlags) bool { return f&want == want }

// IsPackagePrivate reports whether none of public/private/protected is set.
func (f AccessFlags) IsPackagePrivate() bool {
	return !f.Has(AccPublic) && !f.Has(AccPrivate) && !f.Has(AccProtected)
}

// InitializerFlavor distinguishes the two kinds of initializer method.
type InitializerFlavor uint8

const (
	NotInitializer InitializerFlavor = iota
	InstanceInitializer
	StaticInitializer
)

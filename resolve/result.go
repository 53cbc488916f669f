// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package resolve models the platform's method/field lookup rules and
// computes concrete runtime dispatch targets for a symbolic invocation
//. Resolution never throws: every outcome is a value, wrapped in the sum-typed Result below so the enqueuer can
// switch on failure kind without a type hierarchy.
package resolve

import "github.com/saferwall/shrinkcore/appmodel"

// Origin classifies which exclusive class-kind variant a successful
// resolution landed on.
type Origin uint8

const (
	OriginProgram Origin = iota
	OriginClasspath
	OriginLibrary
)

// FailureKind enumerates why resolution did not produce a usable target.
type FailureKind uint8

const (
	FailureClassNotFound FailureKind = iota
	FailureNoSuchMethod
	FailureIncompatibleClassChange
	FailureIllegalAccess
)

// Result is the resolution-result sum type: exactly one
// of the fields below is meaningful, selected by Kind.
type Result struct {
	Kind ResultKind

	// single-resolution
	Holder appmodel.Type
	Method *appmodel.MethodDef
	Origin Origin

	// array-clone special result: Kind == ResultArrayClone, no Method.
	ArrayType appmodel.Type

	// failed-resolution
	Failure      FailureKind
	Contributors []appmodel.MethodRef // methods whose existence would explain the failure

	// multi-resolution: one program-or-classpath result plus library
	// results plus failures, used when resolving against a library whose
	// exact method set is not known closed-world.
	Multi []Result
}

// ResultKind selects which variant of Result is populated.
type ResultKind uint8

const (
	ResultSingle ResultKind = iota
	ResultArrayClone
	ResultFailed
	ResultMulti
)

// IsSuccess reports whether the result names an executable target:
// true for the single, array-clone and multi kinds, false for failed.
func (r Result) IsSuccess() bool {
	return r.Kind == ResultSingle || r.Kind == ResultArrayClone || r.Kind == ResultMulti
}

func single(holder appmodel.Type, m *appmodel.MethodDef, origin Origin) Result {
	return Result{Kind: ResultSingle, Holder: holder, Method: m, Origin: origin}
}

func arrayClone(arrayType appmodel.Type) Result {
	return Result{Kind: ResultArrayClone, ArrayType: arrayType}
}

func failed(kind FailureKind, contributors ...appmodel.MethodRef) Result {
	return Result{Kind: ResultFailed, Failure: kind, Contributors: contributors}
}

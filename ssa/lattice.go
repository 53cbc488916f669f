// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package ssa is the SSA form of a method's code body: basic blocks,
// instructions, values, phis, and dominators. It sits above package
// appmodel (a CodeBody's IR field is an ssa.Function behind the
// appmodel.IRBody interface) and below package rewrite, which mutates a
// Function in place.
package ssa

import "github.com/saferwall/shrinkcore/appmodel"

// Nullability is the null-refinement component of a value's lattice type.
type Nullability uint8

const (
	MaybeNull Nullability = iota
	DefinitelyNull
	NeverNull
)

// Join computes the least-precise Nullability consistent with both a and
// b -- used when merging incoming facts at a phi.
func (a Nullability) Join(b Nullability) Nullability {
	if a == b {
		return a
	}
	return MaybeNull
}

// ValueRange is an optional constant/interval refinement for integral
// values, used by the if/switch simplifier.
type ValueRange struct {
	Known    bool
	Constant bool
	Lo, Hi   int64 // valid when Known && !Constant
	Value    int64 // valid when Known && Constant
}

// Unknown is the unrefined range.
var Unknown = ValueRange{}

// Join merges two ranges conservatively.
func (r ValueRange) Join(o ValueRange) ValueRange {
	if !r.Known || !o.Known {
		return Unknown
	}
	if r.Constant && o.Constant {
		if r.Value == o.Value {
			return r
		}
		return ValueRange{Known: true, Lo: min64(r.Value, o.Value), Hi: max64(r.Value, o.Value)}
	}
	lo1, hi1 := r.bounds()
	lo2, hi2 := o.bounds()
	return ValueRange{Known: true, Lo: min64(lo1, lo2), Hi: max64(hi1, hi2)}
}

func (r ValueRange) bounds() (int64, int64) {
	if r.Constant {
		return r.Value, r.Value
	}
	return r.Lo, r.Hi
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// LatticeType is the abstract value every SSA Value carries: nullability,
// declared type, and an optional value-range/constant refinement.
type LatticeType struct {
	Declared appmodel.Type
	Null     Nullability
	Range    ValueRange
}

// Narrow returns the more precise of t and other, used after a
// check-cast/instanceof/if-simplification narrows a value's known type.
func (t LatticeType) Narrow(other LatticeType) LatticeType {
	out := t
	if other.Null != MaybeNull {
		out.Null = other.Null
	}
	out.Range = out.Range.Join(other.Range)
	if other.Declared.IsValid() {
		out.Declared = other.Declared
	}
	return out
}

// IsConstInt reports whether t is refined to a single known integer.
func (t LatticeType) IsConstInt() (int64, bool) {
	if t.Range.Known && t.Range.Constant {
		return t.Range.Value, true
	}
	return 0, false
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rewrite

import "github.com/saferwall/shrinkcore/ssa"

// simplifyIfs simplifies If terminators: given constant, null-known, range-known, or same-aliased
// operands, fold to the unique successor; fall back to behavioral
// subsumption when both branches are observationally equivalent.
func simplifyIfs(f *ssa.Function, opts Options) bool {
	changed := false
	for _, b := range f.Blocks {
		it, ok := b.Term.(*ssa.If)
		if !ok {
			continue
		}
		if opts.CmpLongBug && it.Kind == ssa.OpCmpLong {
			continue
		}
		if taken, known := evalIf(it); known {
			target := it.Else()
			if taken {
				target = it.Then()
			}
			f.ReplaceTerm(b, ssa.NewGoto(target))
			changed = true
			continue
		}
		if it.Then() == it.Else() {
			f.ReplaceTerm(b, ssa.NewGoto(it.Then()))
			changed = true
		}
	}
	return changed
}

// evalIf decides whether it's comparison is statically known, returning
// (takeThenBranch, known).
func evalIf(it *ssa.If) (bool, bool) {
	x, y := it.X, it.Y
	if x != nil && y != nil && x == y {
		switch it.Kind {
		case ssa.OpCmpEq, ssa.OpCmpLe, ssa.OpCmpGe:
			return true, true
		case ssa.OpCmpNe, ssa.OpCmpLt, ssa.OpCmpGt:
			return false, true
		}
	}
	if isDistinctNewInstance(x, y) {
		switch it.Kind {
		case ssa.OpCmpNe:
			return true, true
		case ssa.OpCmpEq:
			return false, true
		}
	}
	if xi, ok1 := x.Kind().IsConstInt(); ok1 {
		if yi, ok2 := y.Kind().IsConstInt(); ok2 {
			return evalIntCmp(it.Kind, xi, yi), true
		}
	}
	if taken, known := evalNullCmp(it.Kind, x, y); known {
		return taken, true
	}
	rx, ry := x.Kind().Range, y.Kind().Range
	if rx.Known && ry.Known {
		return evalRangeCmp(it.Kind, rx, ry)
	}
	return false, false
}

func isDistinctNewInstance(x, y ssa.Value) bool {
	_, okX := x.(*ssa.NewInstance)
	_, okY := y.(*ssa.NewInstance)
	return okX && okY && x != y
}

func evalIntCmp(kind ssa.BinOpKind, x, y int64) bool {
	switch kind {
	case ssa.OpCmpEq:
		return x == y
	case ssa.OpCmpNe:
		return x != y
	case ssa.OpCmpLt:
		return x < y
	case ssa.OpCmpLe:
		return x <= y
	case ssa.OpCmpGt:
		return x > y
	case ssa.OpCmpGe:
		return x >= y
	}
	return false
}

// evalNullCmp handles "x == null" / "x != null" when x's nullability is
// already refined to DefinitelyNull or NeverNull.
func evalNullCmp(kind ssa.BinOpKind, x, y ssa.Value) (bool, bool) {
	var other ssa.Value
	switch {
	case isNullConst(y):
		other = x
	case isNullConst(x):
		other = y
	default:
		return false, false
	}
	switch other.Kind().Null {
	case ssa.DefinitelyNull:
		switch kind {
		case ssa.OpCmpEq:
			return true, true
		case ssa.OpCmpNe:
			return false, true
		}
	case ssa.NeverNull:
		switch kind {
		case ssa.OpCmpEq:
			return false, true
		case ssa.OpCmpNe:
			return true, true
		}
	}
	return false, false
}

func rangeBounds(r ssa.ValueRange) (int64, int64) {
	if r.Constant {
		return r.Value, r.Value
	}
	return r.Lo, r.Hi
}

func evalRangeCmp(kind ssa.BinOpKind, rx, ry ssa.ValueRange) (bool, bool) {
	lo1, hi1 := rangeBounds(rx)
	lo2, hi2 := rangeBounds(ry)
	disjoint := hi1 < lo2 || hi2 < lo1
	switch kind {
	case ssa.OpCmpLt:
		if hi1 < lo2 {
			return true, true
		}
		if lo1 >= hi2 {
			return false, true
		}
	case ssa.OpCmpLe:
		if hi1 <= lo2 {
			return true, true
		}
		if lo1 > hi2 {
			return false, true
		}
	case ssa.OpCmpGt:
		if lo1 > hi2 {
			return true, true
		}
		if hi1 <= lo2 {
			return false, true
		}
	case ssa.OpCmpGe:
		if lo1 >= hi2 {
			return true, true
		}
		if hi1 < lo2 {
			return false, true
		}
	case ssa.OpCmpEq:
		if disjoint {
			return false, true
		}
		if rx.Constant && ry.Constant && rx.Value == ry.Value {
			return true, true
		}
	case ssa.OpCmpNe:
		if disjoint {
			return true, true
		}
		if rx.Constant && ry.Constant && rx.Value == ry.Value {
			return false, true
		}
	}
	return false, false
}

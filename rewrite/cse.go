// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rewrite

import "github.com/saferwall/shrinkcore/ssa"

// cse performs common-subexpression elimination: walk the
// dominator tree in topological order, and replace any instruction that
// recomputes a value an earlier, dominating instruction already computed.
// Only instructions with no observable side effect and no way to throw
// are eligible, so dominance alone is enough to prove the replacement
// safe -- there is no catch-handler compatibility question to ask,
// because none of these can ever transfer to one.
func cse(f *ssa.Function) bool {
	f.BuildDominators()
	order := f.DominatorOrder()
	seen := make(map[cseKey]ssa.Value)
	changed := false
	for _, b := range order {
		for i := 0; i < len(b.Instrs); i++ {
			v, ok := b.Instrs[i].(ssa.Value)
			if !ok {
				continue
			}
			key, ok := cseKeyOf(v)
			if !ok {
				continue
			}
			if existing, dup := seen[key]; dup && f.Dominates(existing.Block(), b) {
				ssa.ReplaceAll(v, existing)
				removeInstr(b, b.Instrs[i])
				i--
				changed = true
				continue
			}
			seen[key] = v
		}
	}
	return changed
}

// cseKey canonicalizes one pure instruction's identity. Commutative
// binops store their operands in a fixed order so x+y and y+x hash
// alike.
type cseKey struct {
	kind   string
	op     ssa.BinOpKind
	a, b   ssa.Value
	isNull bool
	isInt  bool
	i      int64
	s      string
}

func cseKeyOf(v ssa.Value) (cseKey, bool) {
	switch instr := v.(type) {
	case *ssa.Const:
		return cseKey{kind: "const", isNull: instr.IsNull, isInt: instr.IsInt, i: instr.Int, s: instr.Str}, true
	case *ssa.BinOp:
		if !cseEligibleOp(instr.OpKind) {
			return cseKey{}, false
		}
		a, b := instr.X, instr.Y
		if isCommutative(instr.OpKind) && cseOrder(b, a) {
			a, b = b, a
		}
		return cseKey{kind: "binop", op: instr.OpKind, a: a, b: b}, true
	}
	return cseKey{}, false
}

// cseEligibleOp excludes OpDiv/OpRem, the only BinOpKinds that can raise
// an exception (division by zero), and OpCmpLong, whose folding is gated
// behind the same CmpLongBug switch as if-simplification.
func cseEligibleOp(k ssa.BinOpKind) bool {
	switch k {
	case ssa.OpDiv, ssa.OpRem, ssa.OpCmpLong:
		return false
	}
	return true
}

func isCommutative(k ssa.BinOpKind) bool {
	switch k {
	case ssa.OpAdd, ssa.OpMul, ssa.OpAnd, ssa.OpOr, ssa.OpXor, ssa.OpCmpEq, ssa.OpCmpNe:
		return true
	}
	return false
}

// cseOrder reports whether a should sort before b, ordering by value ID
// so a commutative pair always canonicalizes the same way regardless of
// which operand the original bytecode put first.
func cseOrder(a, b ssa.Value) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID() < b.ID()
}

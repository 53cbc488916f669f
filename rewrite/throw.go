// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rewrite

import "github.com/saferwall/shrinkcore/ssa"

// canonicalizeThrowNPE handles both throw-NPE canonicalization
// sub-patterns: collapsing an explicit "new NPE(); throw" sequence to a bare
// "throw null", and collapsing an explicit null-check diamond into a
// single null-check call.
func canonicalizeThrowNPE(f *ssa.Function, opts Options) bool {
	if !opts.NullPointerExceptionType.IsValid() {
		return false
	}
	changed := false
	for _, b := range f.Blocks {
		if collapseNullCheckDiamond(f, b, opts) {
			changed = true
		}
	}
	for _, b := range f.Blocks {
		if collapseNewNPEThrow(b, opts) {
			changed = true
		}
	}
	return changed
}

// collapseNewNPEThrow replaces a block ending in
// "new-instance NPE; invoke-direct <init>(); throw" with
// "const-null; throw", when the new instance has no observer besides
// its own initializer call.
func collapseNewNPEThrow(b *ssa.Block, opts Options) bool {
	th, ok := b.Term.(*ssa.Throw)
	if !ok {
		return false
	}
	ni, ok := th.X.(*ssa.NewInstance)
	if !ok || ni.Class != opts.NullPointerExceptionType {
		return false
	}
	idx, initCall := findInitInvoke(b, ni)
	if idx < 0 {
		return false
	}
	for _, ref := range *ni.Referrers() {
		if ref != initCall && ref != th {
			return false
		}
	}
	c := &ssa.Const{IsNull: true}
	c.SetKind(ssa.LatticeType{Null: ssa.DefinitelyNull})
	b.Instrs = append(b.Instrs, c)
	th.X = c
	removeInstr(b, initCall)
	removeInstr(b, ni)
	return true
}

func findInitInvoke(b *ssa.Block, ni *ssa.NewInstance) (int, *ssa.Invoke) {
	for i, instr := range b.Instrs {
		inv, ok := instr.(*ssa.Invoke)
		if !ok || inv.DispatchKind != ssa.InvokeDirect || inv.Receiver != ni {
			continue
		}
		return i, inv
	}
	return -1, nil
}

// collapseNullCheckDiamond replaces
//
//	if (x == null) { throw new NullPointerException(...); } else { ... }
//
// with a single null-check call at the top of the else branch, narrowing
// every downstream use of x dominated by that branch to non-null.
func collapseNullCheckDiamond(f *ssa.Function, b *ssa.Block, opts Options) bool {
	ifTerm, ok := b.Term.(*ssa.If)
	if !ok || ifTerm.Kind != ssa.OpCmpEq {
		return false
	}
	x := nullCheckOperand(ifTerm)
	if x == nil {
		return false
	}
	thenB, elseB := ifTerm.Then(), ifTerm.Else()
	if !blockIsBareNPEThrow(thenB, opts) {
		return false
	}
	if len(thenB.Preds) != 1 {
		// thenB is reached from elsewhere too; collapsing would change
		// behavior for those other paths.
		return false
	}

	f.BuildDominators()
	nc := &ssa.NullCheck{X: x}
	nc.SetKind(ssa.LatticeType{Declared: x.Kind().Declared, Null: ssa.NeverNull})
	elseB.Instrs = append([]ssa.Instruction{nc}, elseB.Instrs...)
	for _, ref := range append([]ssa.Instruction(nil), *x.Referrers()...) {
		if ref == nc || ref == ifTerm {
			continue
		}
		if f.Dominates(elseB, ref.Block()) {
			replaceOperandIn(ref, x, nc)
		}
	}

	ssa.RedirectEdge(b, thenB, elseB)
	f.RemoveBlock(thenB)
	return true
}

// nullCheckOperand returns the non-null-literal side of an
// x == null / null == x comparison, or nil if neither side is a
// statically-known-null constant.
func nullCheckOperand(t *ssa.If) ssa.Value {
	if isNullConst(t.Y) {
		return t.X
	}
	if isNullConst(t.X) {
		return t.Y
	}
	return nil
}

func isNullConst(v ssa.Value) bool {
	if v == nil {
		return false
	}
	c, ok := v.(*ssa.Const)
	return ok && c.IsNull
}

// blockIsBareNPEThrow reports whether blk's entire body is exactly the
// "new NPE(); invoke <init>(); throw" pattern (or its post-collapse
// "const-null; throw" form), with no phis and no other observers.
func blockIsBareNPEThrow(blk *ssa.Block, opts Options) bool {
	if len(blk.Phis) != 0 {
		return false
	}
	th, ok := blk.Term.(*ssa.Throw)
	if !ok {
		return false
	}
	switch x := th.X.(type) {
	case *ssa.Const:
		return x.IsNull && len(blk.Instrs) <= 1
	case *ssa.NewInstance:
		if x.Class != opts.NullPointerExceptionType {
			return false
		}
		idx, _ := findInitInvoke(blk, x)
		return idx >= 0 && len(blk.Instrs) == 2
	}
	return false
}

// replaceOperandIn substitutes new for every occurrence of old among
// instr's operands, without touching old's global referrer list (the
// caller is doing a dominance-scoped, not a total, substitution).
func replaceOperandIn(instr ssa.Instruction, old, new ssa.Value) {
	for _, slot := range instr.Operands() {
		if *slot == old {
			*slot = new
		}
	}
}

// rewriteAlwaysThrows rewrites always-throwing instructions: when a
// value is provably always-null and flows into an
// instruction that requires non-null, insert throw-null right after it
// and discard the now-unreachable tail of the block.
func rewriteAlwaysThrows(f *ssa.Function) bool {
	changed := false
	for _, b := range f.Blocks {
		for i, instr := range b.Instrs {
			victim := requiresNonNullOperand(instr)
			if victim == nil || victim.Kind().Null != ssa.DefinitelyNull {
				continue
			}
			b.Instrs = b.Instrs[:i+1]
			c := &ssa.Const{IsNull: true}
			c.SetKind(ssa.LatticeType{Null: ssa.DefinitelyNull})
			b.Instrs = append(b.Instrs, c)
			f.ReplaceTerm(b, &ssa.Throw{X: c})
			changed = true
			break
		}
	}
	return changed
}

// requiresNonNullOperand returns the operand instr dereferences (and
// therefore requires non-null), or nil if instr has none.
func requiresNonNullOperand(instr ssa.Instruction) ssa.Value {
	switch i := instr.(type) {
	case *ssa.InstanceFieldGet:
		return i.Object
	case *ssa.InstanceFieldPut:
		return i.Object
	case *ssa.ArrayGet:
		return i.Array
	case *ssa.ArrayPut:
		return i.Array
	case *ssa.MonitorEnter:
		return i.X
	case *ssa.MonitorExit:
		return i.X
	case *ssa.Invoke:
		if i.DispatchKind != ssa.InvokeStatic {
			return i.Receiver
		}
	}
	return nil
}

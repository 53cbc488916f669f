// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rewrite

import (
	"testing"

	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/ssa"
)

// TestSimplifyIfsFoldsConstantComparison exercises the constant-if
// fold: `if (x != null)` where x is statically known
// non-null folds to the unconditional true branch, with the dead false
// branch unlinked.
func TestSimplifyIfsFoldsConstantComparison(t *testing.T) {
	f := ssa.New(appmodel.MethodRef{})
	thenBlock := f.NewBlock("then")
	elseBlock := f.NewBlock("else")

	x := &ssa.Parameter{Index: 0}
	f.Emit(f.Entry, x)
	x.SetKind(ssa.LatticeType{Null: ssa.NeverNull})

	null := &ssa.Const{IsNull: true}
	f.Emit(f.Entry, null)

	f.SetTerm(f.Entry, ssa.NewIf(ssa.OpCmpNe, x, null, thenBlock, elseBlock))

	f.SetTerm(thenBlock, ssa.NewGoto(thenBlock))
	f.SetTerm(elseBlock, ssa.NewGoto(elseBlock))

	if !simplifyIfs(f, Options{}) {
		t.Fatalf("expected simplifyIfs to fold a statically-known non-null != null comparison")
	}
	got, ok := f.Entry.Term.(*ssa.Goto)
	if !ok {
		t.Fatalf("expected the If to be replaced by a Goto, got %T", f.Entry.Term)
	}
	if got.Successors()[0] != thenBlock {
		t.Errorf("expected the fold to take the true (then) branch, landed on %s", got.Successors()[0])
	}
	if len(elseBlock.Preds) != 0 {
		t.Errorf("expected the dead else branch to be unlinked, still has %d preds", len(elseBlock.Preds))
	}
}

// TestCollapseRedundantCasesReplacesFullyCollapsedSwitchWithGoto
// exercises switch size collapse: every case in a switch
// branches to the same block as the default, so the switch becomes a
// single unconditional goto rather than a degenerate zero-key switch.
func TestCollapseRedundantCasesReplacesFullyCollapsedSwitchWithGoto(t *testing.T) {
	f := ssa.New(appmodel.MethodRef{})
	target := f.NewBlock("target")
	f.SetTerm(target, &ssa.Return{})

	key := &ssa.Parameter{Index: 0}
	f.Emit(f.Entry, key)

	keys := []int32{1, 2, 3, 100, 101, 102}
	succs := make([]*ssa.Block, len(keys)+1)
	for i := range keys {
		succs[i] = target
	}
	succs[len(keys)] = target
	sw := ssa.NewSwitch(key, keys, succs)
	f.SetTerm(f.Entry, sw)

	collapseRedundantCases(f, f.Entry, sw)

	got, ok := f.Entry.Term.(*ssa.Goto)
	if !ok {
		t.Fatalf("expected a fully-collapsed switch to become a Goto, got %T", f.Entry.Term)
	}
	if got.Successors()[0] != target {
		t.Errorf("expected the goto to target the former default block, got %s", got.Successors()[0])
	}
	if len(target.Preds) != 1 {
		t.Errorf("expected target to have exactly one predecessor edge after collapse, got %d", len(target.Preds))
	}
}

// TestMaterializeArraysFoldsConstantFillRun exercises array
// materialization: `int[] a = new int[3]; a[0]=1; a[1]=2;
// a[2]=3;` rewrites to a single fill-array-data instruction, with the
// three array-puts (and their index/value constants) removed.
func TestMaterializeArraysFoldsConstantFillRun(t *testing.T) {
	f := ssa.New(appmodel.MethodRef{})

	length := constInt(f, 3)
	na := &ssa.NewArray{ElemType: appmodel.Invalid, Length: length}
	f.Emit(f.Entry, na)

	var puts []*ssa.ArrayPut
	for i, v := range []int64{1, 2, 3} {
		idx := constInt(f, int64(i))
		val := constInt(f, v)
		ap := &ssa.ArrayPut{Array: na, Index: idx, Val: val}
		f.Emit(f.Entry, ap)
		puts = append(puts, ap)
	}
	for _, p := range puts {
		*na.Referrers() = append(*na.Referrers(), p)
	}
	f.SetTerm(f.Entry, &ssa.Return{})

	if !materializeArrays(f, Options{}.withDefaults()) {
		t.Fatalf("expected materializeArrays to fold the dense constant fill run")
	}

	var fa *ssa.FillArrayData
	for _, instr := range f.Entry.Instrs {
		if fad, ok := instr.(*ssa.FillArrayData); ok {
			fa = fad
		}
		if _, ok := instr.(*ssa.ArrayPut); ok {
			t.Errorf("expected every array-put to be removed, found %s", instr)
		}
		if _, ok := instr.(*ssa.NewArray); ok {
			t.Errorf("expected the new-array to be replaced, found %s", instr)
		}
	}
	if fa == nil {
		t.Fatalf("expected a FillArrayData instruction in the block")
	}
	want := []int64{1, 2, 3}
	if len(fa.Values) != len(want) {
		t.Fatalf("expected %d packed values, got %d", len(want), len(fa.Values))
	}
	for i, v := range want {
		if fa.Values[i] != v {
			t.Errorf("fa.Values[%d] = %d, want %d", i, fa.Values[i], v)
		}
	}
}

// constInt returns a Const emitted into f's entry block, refined to a
// known constant integer via its lattice type.
func constInt(f *ssa.Function, v int64) *ssa.Const {
	c := &ssa.Const{IsInt: true, Int: v}
	f.Emit(f.Entry, c)
	c.SetKind(ssa.LatticeType{Range: ssa.ValueRange{Known: true, Constant: true, Value: v}})
	return c
}

// TestRestructureSwitchesSplitsPackedIntervalFromOutliers drives the
// full switch-restructuring plan: a dense run of cases plus two distant
// outliers should split into a packed sub-switch whose miss edge chains
// into an if-chain over the outliers, with the final miss landing on the
// original default block.
func TestRestructureSwitchesSplitsPackedIntervalFromOutliers(t *testing.T) {
	f := ssa.New(appmodel.MethodRef{})
	def := f.NewBlock("default")
	f.SetTerm(def, &ssa.Return{})

	key := &ssa.Parameter{Index: 0}
	f.Emit(f.Entry, key)

	keys := []int32{0, 1, 2, 3, 4, 5, 6, 7, 1000, 5000}
	succs := make([]*ssa.Block, len(keys)+1)
	for i := range keys {
		b := f.NewBlock("case")
		f.SetTerm(b, &ssa.Return{})
		succs[i] = b
	}
	succs[len(keys)] = def
	f.SetTerm(f.Entry, ssa.NewSwitch(key, keys, succs))

	restructureSwitches(f, Options{}.withDefaults())

	sub, ok := f.Entry.Term.(*ssa.Switch)
	if !ok {
		t.Fatalf("expected the entry terminator to remain a switch, got %T", f.Entry.Term)
	}
	if len(sub.Keys) != 8 {
		t.Fatalf("expected the packed sub-switch to keep the 8 dense keys, got %d", len(sub.Keys))
	}
	if !sub.PreferPacked {
		t.Errorf("expected the dense sub-switch to prefer the packed encoding")
	}

	chain := sub.Default()
	if chain == def {
		t.Fatalf("expected the sub-switch's miss edge to chain into the outlier if-chain, not the original default")
	}
	first, ok := chain.Term.(*ssa.If)
	if !ok {
		t.Fatalf("expected the first outlier block to end in an If, got %T", chain.Term)
	}
	if first.Kind != ssa.OpCmpEq {
		t.Errorf("expected an equality compare in the if-chain, got kind %d", first.Kind)
	}
	second, ok := first.Else().Term.(*ssa.If)
	if !ok {
		t.Fatalf("expected the second outlier block to end in an If, got %T", first.Else().Term)
	}
	if second.Else() != def {
		t.Errorf("expected the if-chain's final miss edge to land on the original default")
	}
}

// TestRestructureSwitchesLeavesPhiCarryingSuccessorsWhole pins the
// guard: a switch whose successor carries phis must keep its shape (only
// the packed-vs-sparse verdict is recorded), since splitting would
// desynchronize phi operand order from the predecessor list.
func TestRestructureSwitchesLeavesPhiCarryingSuccessorsWhole(t *testing.T) {
	f := ssa.New(appmodel.MethodRef{})
	def := f.NewBlock("default")
	f.SetTerm(def, &ssa.Return{})

	merge := f.NewBlock("merge")
	phi := &ssa.Phi{}
	f.Emit(merge, phi)
	merge.Phis = append(merge.Phis, phi)
	f.SetTerm(merge, &ssa.Return{})

	key := &ssa.Parameter{Index: 0}
	f.Emit(f.Entry, key)

	keys := []int32{0, 1, 2, 900}
	succs := []*ssa.Block{merge, merge, merge, merge, def}
	f.SetTerm(f.Entry, ssa.NewSwitch(key, keys, succs))

	before := len(f.Blocks)
	restructureSwitches(f, Options{}.withDefaults())

	if _, ok := f.Entry.Term.(*ssa.Switch); !ok {
		t.Fatalf("expected the phi-guarded switch to keep its terminator, got %T", f.Entry.Term)
	}
	if len(f.Blocks) != before {
		t.Errorf("expected no new blocks for a phi-guarded switch, went from %d to %d", before, len(f.Blocks))
	}
}

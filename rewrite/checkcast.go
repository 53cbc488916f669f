// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rewrite

import "github.com/saferwall/shrinkcore/ssa"

// eliminateCheckCasts performs check-cast/instanceof elimination:
// drop a CheckCast or InstanceOf once narrowing has already
// proven its answer, using only the facts narrowTypes has attached to the
// operand's lattice type (a declared-type match, or known nullability) --
// this pass never consults the class hierarchy itself, so it only ever
// folds cases data flow alone already settled.
func eliminateCheckCasts(f *ssa.Function) bool {
	changed := false
	for _, b := range f.Blocks {
		for i := 0; i < len(b.Instrs); i++ {
			switch v := b.Instrs[i].(type) {
			case *ssa.CheckCast:
				if repl, ok := foldCheckCast(v); ok {
					ssa.ReplaceAll(v, repl)
					removeInstr(b, v)
					i--
					changed = true
				}
			case *ssa.InstanceOf:
				if truth, ok := foldInstanceOf(v); ok {
					c := &ssa.Const{IsInt: true}
					if truth {
						c.Int = 1
					}
					c.SetKind(ssa.LatticeType{Range: ssa.ValueRange{Known: true, Constant: true, Value: c.Int}})
					f.ReplaceInstr(b, v, c)
					ssa.ReplaceAll(v, c)
					changed = true
				}
			}
		}
	}
	return changed
}

// foldCheckCast reports the replacement value for cc if its outcome is
// already known: null always survives a checkcast unchanged, and a cast
// to X's own already-declared type is a no-op.
func foldCheckCast(cc *ssa.CheckCast) (ssa.Value, bool) {
	k := cc.X.Kind()
	if k.Null == ssa.DefinitelyNull {
		return cc.X, true
	}
	if k.Declared.IsValid() && k.Declared == cc.Class {
		return cc.X, true
	}
	return nil, false
}

// foldInstanceOf reports the known boolean result of an InstanceOf check,
// when data flow alone (not the class hierarchy) has already settled it:
// null is never an instance of anything, and a non-null value already
// declared as exactly Class trivially is one.
func foldInstanceOf(io *ssa.InstanceOf) (bool, bool) {
	k := io.X.Kind()
	if k.Null == ssa.DefinitelyNull {
		return false, true
	}
	if k.Null == ssa.NeverNull && k.Declared.IsValid() && k.Declared == io.Class {
		return true, true
	}
	return false, false
}

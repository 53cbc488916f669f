// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rewrite

import "github.com/saferwall/shrinkcore/ssa"

// removeAssumes performs assume removal: replace
// y = Assume(x) by x, widening the types of transitive users, then
// discard any phi left trivial by the substitution.
func removeAssumes(f *ssa.Function) bool {
	changed := false
	for _, b := range f.Blocks {
		for i := 0; i < len(b.Instrs); i++ {
			a, ok := b.Instrs[i].(*ssa.Assume)
			if !ok {
				continue
			}
			ssa.ReplaceAll(a, a.X)
			removeInstr(b, a)
			i--
			changed = true
		}
	}
	if removeTrivialPhis(f) {
		changed = true
	}
	return changed
}

// removeTrivialPhis discards any phi whose operands are all the same
// value (or the phi itself), the same collapse ssa.Build performs
// eagerly at construction time, re-run here because later passes
// (assume removal, CSE) can make a phi trivial
// that wasn't at construction.
func removeTrivialPhis(f *ssa.Function) bool {
	changed := false
	for _, b := range f.Blocks {
		for i := 0; i < len(b.Phis); i++ {
			phi := b.Phis[i]
			same, trivial := trivialValue(phi)
			if !trivial {
				continue
			}
			ssa.ReplaceAll(phi, same)
			b.Phis = append(b.Phis[:i], b.Phis[i+1:]...)
			i--
			changed = true
		}
	}
	return changed
}

func trivialValue(phi *ssa.Phi) (ssa.Value, bool) {
	var same ssa.Value
	for _, e := range phi.Edges {
		if e == phi || e == same {
			continue
		}
		if same != nil {
			return nil, false
		}
		same = e
	}
	if same == nil {
		return nil, false
	}
	return same, true
}

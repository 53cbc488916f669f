// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rewrite

import "github.com/saferwall/shrinkcore/ssa"

// hoistConsts performs const splitting/hoisting: move each
// Const to sit at the nearest common dominator of all of its uses --
// shortening its live range down to a single using block when there is
// only one use, or hoisting it up to the one site that safely covers
// every use when there are several. A Const has no operands, so it
// dominates whatever already occupies the front of its new block.
func hoistConsts(f *ssa.Function) {
	f.BuildDominators()
	for _, b := range append([]*ssa.Block(nil), f.Blocks...) {
		for _, instr := range append([]ssa.Instruction(nil), b.Instrs...) {
			c, ok := instr.(*ssa.Const)
			if !ok {
				continue
			}
			refs := *c.Referrers()
			if len(refs) == 0 {
				continue
			}
			target := commonDominatorOfUses(f, refs)
			if target == nil || target == c.Block() {
				continue
			}
			f.Relocate(c, target)
		}
	}
}

// commonDominatorOfUses returns the nearest block dominating every
// referrer's block.
func commonDominatorOfUses(f *ssa.Function, refs []ssa.Instruction) *ssa.Block {
	var cur *ssa.Block
	for _, r := range refs {
		b := r.Block()
		if b == nil {
			return nil
		}
		if cur == nil {
			cur = b
			continue
		}
		cur = nearestCommonDominator(f, cur, b)
	}
	return cur
}

func nearestCommonDominator(f *ssa.Function, a, b *ssa.Block) *ssa.Block {
	ancestors := make(map[*ssa.Block]bool)
	for cur := a; ; cur = f.Idom(cur) {
		ancestors[cur] = true
		if cur == f.Entry {
			break
		}
	}
	for cur := b; ; cur = f.Idom(cur) {
		if ancestors[cur] {
			return cur
		}
		if cur == f.Entry {
			return f.Entry
		}
	}
}

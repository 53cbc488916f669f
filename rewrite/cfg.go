// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rewrite

import "github.com/saferwall/shrinkcore/ssa"

// collapseTrivialGotos performs trivial-goto collapse:
// remove blocks whose only instruction is an unconditional branch,
// unless they are the entry block, self-looping, or eliding them would
// require fanning a single phi edge out across several new predecessors.
// This implementation only collapses the two cases where the
// substitution is a straightforward 1:1 predecessor swap: the elided
// block has exactly one predecessor, or its target carries no phis at
// all. A chain of trivial gotos collapses within a single call, since
// each elided block's predecessors are redirected before the next link
// of the chain is visited.
func collapseTrivialGotos(f *ssa.Function) bool {
	candidates := append([]*ssa.Block(nil), f.Blocks...)
	removed := make(map[*ssa.Block]bool)
	changed := false
	for _, b := range candidates {
		if removed[b] || b == f.Entry || len(b.Instrs) != 0 || len(b.Phis) != 0 {
			continue
		}
		g, ok := b.Term.(*ssa.Goto)
		if !ok {
			continue
		}
		target := g.Successors()[0]
		if target == b || removed[target] {
			continue
		}
		if len(target.Phis) != 0 && len(b.Preds) != 1 {
			continue
		}
		for _, pred := range append([]*ssa.Block(nil), b.Preds...) {
			ssa.RedirectEdge(pred, b, target)
		}
		f.RemoveBlock(b)
		removed[b] = true
		changed = true
	}
	return changed
}

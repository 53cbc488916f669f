// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ssa

import (
	"sort"

	"github.com/saferwall/shrinkcore/appmodel"
)

// Function is the SSA-form code body of one method. It implements appmodel.IRBody so
// a CodeBody can hold it without appmodel importing this package.
type Function struct {
	Method appmodel.MethodRef
	Blocks []*Block
	Entry  *Block

	nextValueID int
	nextBlockID int

	// blockRangeStarts is the raw-instruction index each block began at,
	// set by Build and consumed by the builder's translation loop.
	blockRangeStarts []int

	// idom and domOrder are populated by BuildDominators; nil until the
	// caller asks for them (the rewriter's CSE pass is the main
	// consumer, hashing over the dominator tree in topological
	// order).
	idom     []*Block
	domOrder []*Block
}

// New returns an empty Function for method, with a single entry block.
func New(method appmodel.MethodRef) *Function {
	f := &Function{Method: method}
	f.Entry = f.NewBlock("entry")
	return f
}

// NewBlock appends and returns a fresh, unsealed block.
func (f *Function) NewBlock(comment string) *Block {
	b := &Block{Index: f.nextBlockID, Comment: comment, parent: f}
	f.nextBlockID++
	f.Blocks = append(f.Blocks, b)
	return b
}

// RemoveBlock deletes b from the function's block list. Callers must
// have already unlinked every edge to/from b (trivial-goto collapse does
// this before calling RemoveBlock).
func (f *Function) RemoveBlock(b *Block) {
	for i, blk := range f.Blocks {
		if blk == b {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return
		}
	}
}

// NumBlocks implements appmodel.IRBody.
func (f *Function) NumBlocks() int { return len(f.Blocks) }

// nextID returns a fresh, dense value ID, used by every New* constructor
// below when emitting a value-producing instruction into a block.
func (f *Function) nextID() int {
	id := f.nextValueID
	f.nextValueID++
	return id
}

// Emit appends instr to b, assigning it a fresh value ID if it produces
// a Value, and returns the Value (nil if instr doesn't produce one).
func (f *Function) Emit(b *Block, instr Instruction) Value {
	if v, ok := instr.(interface{ setID(int) }); ok {
		v.setID(f.nextID())
	}
	return b.emit(instr)
}

func (v *valueBase) setID(id int) { v.id = id }

// SetTerm installs t as b's terminator.
func (f *Function) SetTerm(b *Block, t Terminator) { b.setTerm(t) }

// ReplaceTerm swaps b's terminator for newTerm, first unlinking every
// edge the old terminator implied. SetTerm only ever adds edges, so
// package rewrite's folding passes (constant-if folding, switch
// restructuring, always-throw rewriting) call this instead whenever a block
// already has a terminator.
func (f *Function) ReplaceTerm(b *Block, newTerm Terminator) {
	if b.Term != nil {
		for _, s := range b.Succs {
			s.removePred(b)
		}
		b.Succs = nil
	}
	b.setTerm(newTerm)
}

// ReplaceInstr substitutes newInstr for old at old's current position in
// b.Instrs, assigning newInstr a fresh value ID if it produces one.
// Package rewrite uses this instead of Emit+remove whenever a
// replacement must keep its original slot -- e.g. folding an InstanceOf
// to a constant, where appending the constant at the block's tail would
// place its definition after same-block uses that preceded the fold.
func (f *Function) ReplaceInstr(b *Block, old, newInstr Instruction) {
	for i, in := range b.Instrs {
		if in == old {
			if v, ok := newInstr.(interface{ setID(int) }); ok {
				v.setID(f.nextID())
			}
			newInstr.setBlock(b)
			b.Instrs[i] = newInstr
			return
		}
	}
}

// Relocate moves instr from its current block to the front of to's
// instruction list. Package rewrite's const hoisting pass uses this to
// shorten or lengthen a pure value's live range without re-deriving it;
// safe for any side-effect-free, operand-less instruction since it
// dominates everything already in to by construction of the caller.
func (f *Function) Relocate(instr Instruction, to *Block) {
	from := instr.Block()
	if from == to {
		return
	}
	for i, in := range from.Instrs {
		if in == instr {
			from.Instrs = append(from.Instrs[:i], from.Instrs[i+1:]...)
			break
		}
	}
	instr.setBlock(to)
	to.Instrs = append([]Instruction{instr}, to.Instrs...)
}

// RedirectEdge retargets every successor slot of from's terminator that
// currently points at oldTo to point at newTo instead, and resyncs
// predecessor bookkeeping on both ends. Used when a branch target is
// elided (trivial-goto collapse) or an edge is rerouted (null-check
// diamond collapse) without needing to rebuild the whole terminator.
func RedirectEdge(from *Block, oldTo, newTo *Block) {
	t := from.Term
	if t == nil {
		return
	}
	succs := t.Successors()
	changed := false
	for i, s := range succs {
		if s == oldTo {
			succs[i] = newTo
			changed = true
		}
	}
	if !changed {
		return
	}
	t.setSuccessors(succs)
	old := from.Succs
	for _, s := range old {
		s.removePred(from)
	}
	from.Succs = nil
	for _, s := range t.Successors() {
		if s == nil {
			continue
		}
		from.Succs = append(from.Succs, s)
		s.Preds = append(s.Preds, from)
	}
}

// RebuildReferrers recomputes every value's referrer list from scratch
// by walking operands of every instruction in the function. Passes that
// splice in new instructions or fold edges (package rewrite) call this
// before relying on Referrers()-based queries -- e.g. "no other
// observer" in throw-NPE canonicalization, or CSE's replacement step --
// since construction (Build) does not maintain referrers incrementally.
func RebuildReferrers(f *Function) {
	f.AllInstructions(func(_ *Block, instr Instruction) {
		if v, ok := instr.(Value); ok {
			*v.Referrers() = nil
		}
	})
	f.AllInstructions(func(_ *Block, instr Instruction) {
		for _, slot := range instr.Operands() {
			if slot == nil || *slot == nil {
				continue
			}
			if v, ok := (*slot).(Value); ok {
				v.addReferrer(instr)
			}
		}
	})
}

// AllInstructions yields every instruction in the function (phis, body,
// terminator) in block order, for passes that need a single linear walk
// -- the enqueuer's use registry and the rewriter's narrowing re-analysis
// both iterate this way.
func (f *Function) AllInstructions(visit func(*Block, Instruction)) {
	for _, b := range f.Blocks {
		for _, p := range b.Phis {
			visit(b, p)
		}
		for _, i := range b.Instrs {
			visit(b, i)
		}
		if b.Term != nil {
			visit(b, b.Term)
		}
	}
}

// BuildDominators computes each block's immediate dominator using the
// standard iterative Cooper/Harvey/Kennedy algorithm (reverse postorder,
// fixed point over intersect), then a dominator-tree preorder. CSE walks domOrder; Idom answers "does A dominate B" queries for
// CSE's "candidate matches must be dominator-reachable" rule.
func (f *Function) BuildDominators() {
	rpo := f.reversePostorder()
	postIndex := make(map[*Block]int, len(rpo))
	for i, b := range rpo {
		postIndex[b] = i
	}

	idom := make([]*Block, len(f.Blocks))
	idomByIdx := func(b *Block) *Block { return idom[b.Index] }

	idom[f.Entry.Index] = f.Entry
	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == f.Entry {
				continue
			}
			var newIdom *Block
			for _, p := range b.Preds {
				if idomByIdx(p) == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, idom, postIndex)
			}
			if newIdom != nil && idom[b.Index] != newIdom {
				idom[b.Index] = newIdom
				changed = true
			}
		}
	}
	f.idom = idom
	f.domOrder = f.dominatorPreorder()
}

func intersect(a, b *Block, idom []*Block, postIndex map[*Block]int) *Block {
	for a != b {
		for postIndex[a] < postIndex[b] {
			a = idom[a.Index]
		}
		for postIndex[b] < postIndex[a] {
			b = idom[b.Index]
		}
	}
	return a
}

func (f *Function) reversePostorder() []*Block {
	visited := make(map[*Block]bool, len(f.Blocks))
	var post []*Block
	var visit func(*Block)
	visit = func(b *Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, b)
	}
	visit(f.Entry)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// Idom returns b's immediate dominator (b itself for the entry block).
func (f *Function) Idom(b *Block) *Block {
	if f.idom == nil {
		f.BuildDominators()
	}
	return f.idom[b.Index]
}

// Dominates reports whether a dominates b.
func (f *Function) Dominates(a, b *Block) bool {
	if f.idom == nil {
		f.BuildDominators()
	}
	for cur := b; ; {
		if cur == a {
			return true
		}
		if cur == f.Entry {
			return cur == a
		}
		parent := f.idom[cur.Index]
		if parent == cur {
			return false
		}
		cur = parent
	}
}

// DominatorOrder returns blocks in dominator-tree preorder, the
// traversal CSE hashes instructions in.
func (f *Function) DominatorOrder() []*Block {
	if f.domOrder == nil {
		f.BuildDominators()
	}
	return f.domOrder
}

func (f *Function) dominatorPreorder() []*Block {
	children := make(map[*Block][]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		if b == f.Entry {
			continue
		}
		p := f.idom[b.Index]
		children[p] = append(children[p], b)
	}
	for _, kids := range children {
		sort.Slice(kids, func(i, j int) bool { return kids[i].Index < kids[j].Index })
	}
	var order []*Block
	var walk func(*Block)
	walk = func(b *Block) {
		order = append(order, b)
		for _, c := range children[b] {
			walk(c)
		}
	}
	walk(f.Entry)
	return order
}

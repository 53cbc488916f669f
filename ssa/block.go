// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ssa

import (
	"fmt"

	"github.com/saferwall/shrinkcore/appmodel"
)

// Terminator is the single instruction that ends a basic block
// (goto / if / switch / throw / return).
type Terminator interface {
	Instruction
	Successors() []*Block
	setSuccessors([]*Block)
}

type termBase struct {
	instrBase
	succs []*Block
}

func (t *termBase) Successors() []*Block      { return t.succs }
func (t *termBase) setSuccessors(b []*Block)  { t.succs = b }

// Goto unconditionally transfers control to Target.
type Goto struct{ termBase }

func (g *Goto) Operands() []*Value { return nil }
func (g *Goto) String() string     { return fmt.Sprintf("goto %s", blockLabel(g.succs, 0)) }

// NewGoto returns a Goto terminator targeting target, for passes in
// package rewrite that fold a conditional or multi-way terminator down to
// an unconditional branch (constant-if folding, redundant switch-case
// collapse) and install it via Function.ReplaceTerm.
func NewGoto(target *Block) *Goto {
	g := &Goto{}
	g.setSuccessors([]*Block{target})
	return g
}

// If transfers to Then or Else depending on the two-operand comparison
// Kind(X, Y).
type If struct {
	termBase
	Kind BinOpKind
	X, Y Value
}

func (i *If) Operands() []*Value { return []*Value{&i.X, &i.Y} }
func (i *If) Then() *Block        { return i.succs[0] }
func (i *If) Else() *Block        { return i.succs[1] }
func (i *If) String() string {
	return fmt.Sprintf("if %s cmp(%d) %s then %s else %s", i.X, i.Kind, i.Y, blockLabel(i.succs, 0), blockLabel(i.succs, 1))
}

// NewIf returns an If terminator comparing x and y with kind, branching
// to then on true and els on false. Exported alongside NewGoto/NewSwitch
// for callers outside package ssa (the builder, and package rewrite's
// tests) that need to construct a terminator directly rather than via
// translation of a raw instruction.
func NewIf(kind BinOpKind, x, y Value, then, els *Block) *If {
	i := &If{Kind: kind, X: x, Y: y}
	i.setSuccessors([]*Block{then, els})
	return i
}

// Switch dispatches on an int Key to one successor per entry in Keys,
// with the final successor as the default.
type Switch struct {
	termBase
	Key  Value
	Keys []int32 // parallel to succs[:len(Keys)]; succs[len(Keys)] is default

	// PreferPacked records switch restructuring's verdict on whether Keys are dense enough to encode
	// as a packed table rather than a sparse lookup; it guides the
	// (out-of-scope) bytecode writer and has no effect on evaluation here.
	PreferPacked bool
}

func (s *Switch) Operands() []*Value { return []*Value{&s.Key} }
func (s *Switch) Default() *Block    { return s.succs[len(s.succs)-1] }
func (s *Switch) String() string     { return fmt.Sprintf("switch %s (%d cases)", s.Key, len(s.Keys)) }

// NewSwitch returns a Switch terminator on key, dispatching to succs[i]
// for keys[i] and falling to the last element of succs by default.
// Package rewrite uses this when switch restructuring drops redundant
// case entries and needs a replacement terminator via Function.ReplaceTerm.
func NewSwitch(key Value, keys []int32, succs []*Block) *Switch {
	s := &Switch{Key: key, Keys: keys}
	s.setSuccessors(succs)
	return s
}

// Return exits the method, optionally with a value (nil for void).
type Return struct {
	termBase
	Val Value
}

func (r *Return) Operands() []*Value {
	if r.Val == nil {
		return nil
	}
	return []*Value{&r.Val}
}
func (r *Return) String() string {
	if r.Val == nil {
		return "return-void"
	}
	return fmt.Sprintf("return %s", r.Val)
}

// Throw raises X as an exception, transferring to whichever catch
// handler (if any) protects this block.
type Throw struct {
	termBase
	X Value
}

func (t *Throw) Operands() []*Value { return []*Value{&t.X} }
func (t *Throw) String() string     { return fmt.Sprintf("throw %s", t.X) }

func blockLabel(succs []*Block, i int) string {
	if i >= len(succs) || succs[i] == nil {
		return "<nil>"
	}
	return succs[i].String()
}

// Block is one basic block: an ordered list of non-terminator
// instructions and phis, followed by exactly one terminator.
// Preds/Succs are non-owning references to other blocks within the same
// Function.
type Block struct {
	Index int
	Comment string

	Phis   []*Phi
	Instrs []Instruction
	Term   Terminator

	Preds, Succs []*Block

	// CatchHandlers lists, in priority order, the blocks that are entered
	// if an instruction in this block throws.
	CatchHandlers []*Block

	// tailMoves holds phi-resolving copies Destruct stages for this block,
	// to be emitted immediately before the lowered terminator.
	tailMoves []appmodel.RawInstruction

	parent *Function
	sealed bool // SSA construction: true once all predecessors are known
}

func (b *Block) Parent() *Function { return b.parent }
func (b *Block) String() string    { return fmt.Sprintf("b%d", b.Index) }

// emit appends instr to the block's instruction list (after any phis)
// and returns it as a Value if it produces one.
func (b *Block) emit(instr Instruction) Value {
	instr.setBlock(b)
	b.Instrs = append(b.Instrs, instr)
	v, _ := instr.(Value)
	return v
}

// setTerm installs instr as the block's terminator and wires the CFG
// edges implied by its successors.
func (b *Block) setTerm(t Terminator) {
	t.setBlock(b)
	b.Term = t
	for _, s := range t.Successors() {
		if s == nil {
			continue
		}
		b.Succs = append(b.Succs, s)
		s.Preds = append(s.Preds, b)
	}
}

// HasPhis reports whether the block has any phi nodes.
func (b *Block) HasPhis() bool { return len(b.Phis) > 0 }

// replacePred swaps p for q in the predecessor list.
func (b *Block) replacePred(p, q *Block) {
	for i, pred := range b.Preds {
		if pred == p {
			b.Preds[i] = q
		}
	}
}

// removeSucc unlinks to from b's successor list (and b from to's
// predecessor list).
func (b *Block) removeSucc(to *Block) {
	for i, s := range b.Succs {
		if s == to {
			b.Succs = append(b.Succs[:i], b.Succs[i+1:]...)
			break
		}
	}
	for i, p := range to.Preds {
		if p == b {
			to.Preds = append(to.Preds[:i], to.Preds[i+1:]...)
			break
		}
	}
}

// removePred strips every occurrence of p from b.Preds, used by
// ReplaceTerm/RedirectEdge when resyncing predecessor bookkeeping after
// a terminator's successor list changes wholesale.
func (b *Block) removePred(p *Block) {
	out := b.Preds[:0]
	for _, pred := range b.Preds {
		if pred != p {
			out = append(out, pred)
		}
	}
	b.Preds = out
}

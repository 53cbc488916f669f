// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ssa

import "fmt"

// Value is anything an instruction or phi can produce and another
// instruction can consume: produced by exactly one definition, consumed
// by zero or more users. Users hold non-owning back-references
// via Referrers; the defining instruction/phi owns the Value.
type Value interface {
	Instruction
	// ID is a small dense integer unique within the owning Function,
	// stable for the Function's lifetime; used as a map key by the
	// rewriter's CSE and by the enqueuer's use registry.
	ID() int
	Kind() LatticeType
	SetKind(LatticeType)
	Referrers() *[]Instruction
	addReferrer(Instruction)
	removeReferrer(Instruction)
}

// Instruction is any operation that appears in a basic block, whether or
// not it produces a Value.
type Instruction interface {
	Block() *Block
	setBlock(*Block)
	Operands() []*Value // pointers so the rewriter/CSE can rewrite operands in place
	String() string
}

// valueBase is embedded by every instruction that produces a Value.
type valueBase struct {
	id        int
	block     *Block
	kind      LatticeType
	referrers []Instruction
}

func (v *valueBase) ID() int                   { return v.id }
func (v *valueBase) Block() *Block             { return v.block }
func (v *valueBase) setBlock(b *Block)         { v.block = b }
func (v *valueBase) Kind() LatticeType         { return v.kind }
func (v *valueBase) SetKind(k LatticeType)     { v.kind = k }
func (v *valueBase) Referrers() *[]Instruction { return &v.referrers }
func (v *valueBase) addReferrer(i Instruction) { v.referrers = append(v.referrers, i) }
func (v *valueBase) removeReferrer(i Instruction) {
	for idx, r := range v.referrers {
		if r == i {
			v.referrers = append(v.referrers[:idx], v.referrers[idx+1:]...)
			return
		}
	}
}

// instrBase is embedded by instructions that do not produce a Value
// (field puts, monitor ops, terminators).
type instrBase struct {
	block *Block
}

func (i *instrBase) Block() *Block     { return i.block }
func (i *instrBase) setBlock(b *Block) { i.block = b }

// replaceOperand swaps every occurrence of old for new among operand
// pointers, updating referrer lists on both sides. Shared by every
// rewrite in package rewrite that substitutes one value for another
// (assume removal, CSE, const folding, ...).
func replaceOperand(owner Instruction, old, new Value) {
	for _, slot := range owner.Operands() {
		if *slot == old {
			*slot = new
			if oldV, ok := old.(Value); ok {
				oldV.removeReferrer(owner)
			}
			if new != nil {
				new.addReferrer(owner)
			}
		}
	}
}

// ReplaceAll rewrites every use of old to use new instead, and clears
// old's referrer list. Exported because package rewrite needs it for
// assume-removal, CSE, and narrowing substitutions.
func ReplaceAll(old, new Value) {
	for _, ref := range *old.Referrers() {
		replaceOperand(ref, old, new)
	}
	*old.Referrers() = nil
}

func (v *valueBase) String() string { return fmt.Sprintf("v%d", v.id) }

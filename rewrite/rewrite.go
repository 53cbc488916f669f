// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package rewrite is the IR-level control-flow and value rewriter:
// over the SSA form of one live method, it runs its transformation
// suite to a local fixed point,
// then hands the simplified ssa.Function back to the enqueuer for
// tracing. No transformation here changes observable program behavior;
// each one narrows what the enqueuer needs to keep reachable.
//
// The source system groups these as free-standing optimizer passes over
// a mutable IR graph. Here every pass is a plain
// function over *ssa.Function and an explicit Options value -- there is
// no pass registry or hidden global state.
package rewrite

import (
	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/ssa"
)

// TargetMode selects the output encoding the switch-restructuring cost
// model estimates against.
type TargetMode uint8

const (
	// TargetDex has no per-case stack-map-frame penalty.
	TargetDex TargetMode = iota
	// TargetClassFile imposes a per-entry stack-map penalty on every
	// switch-table entry.
	TargetClassFile
)

// Options configures one Run over one method body. Zero value is valid
// and selects conservative defaults via withDefaults.
type Options struct {
	Mode TargetMode

	// CmpLongBug mirrors Options.CmpLongBug at the package root (open
	// question (b)): when set, If terminators guarded by a
	// ssa.OpCmpLong comparison are not folded by constant/range analysis,
	// since the affected platform revisions compute the comparison flag
	// incorrectly and folding would bake in the wrong answer.
	CmpLongBug bool

	// MaxFillArrayBytes bounds array materialization; 0 selects the default 8192.
	MaxFillArrayBytes int

	// SwitchTopKPackedIntervals bounds how many packed intervals switch
	// restructuring keeps before merging the remainder into one sparse
	// bin; 0 selects the default 4.
	SwitchTopKPackedIntervals int

	// DisableSwitchRestructuring suppresses switch restructuring
	// entirely, for synthesized class-id switches.
	DisableSwitchRestructuring bool

	// NullPointerExceptionType names the platform's NullPointerException
	// class, so throw-NPE canonicalization can recognize the pattern
	// precisely instead of guessing from a descriptor suffix. The zero
	// Type disables both NPE sub-patterns.
	NullPointerExceptionType appmodel.Type
}

const (
	defaultMaxFillArrayBytes         = 8 * 1024
	defaultSwitchTopKPackedIntervals = 4
)

func (o Options) withDefaults() Options {
	out := o
	if out.MaxFillArrayBytes <= 0 {
		out.MaxFillArrayBytes = defaultMaxFillArrayBytes
	}
	if out.SwitchTopKPackedIntervals <= 0 {
		out.SwitchTopKPackedIntervals = defaultSwitchTopKPackedIntervals
	}
	return out
}

// Run rewrites f in place to a local fixed point: every pass that can
// expose new opportunities for another (assume removal feeding trivial-
// goto collapse, if-folding feeding trivial-goto collapse, narrowing
// feeding check-cast elimination, ...) is re-run until none of them
// report a change, then the two passes that only ever shrink encoded
// size without creating new opportunities for earlier passes (switch
// restructuring, const hoisting) run once at the end.
func Run(f *ssa.Function, opts Options) {
	opts = opts.withDefaults()
	ssa.RebuildReferrers(f)

	for {
		changed := false
		changed = removeAssumes(f) || changed
		changed = canonicalizeThrowNPE(f, opts) || changed
		changed = collapseTrivialGotos(f) || changed
		changed = simplifyIfs(f, opts) || changed
		changed = eliminateCheckCasts(f) || changed
		changed = rewriteAlwaysThrows(f) || changed
		changed = cse(f) || changed
		changed = materializeArrays(f, opts) || changed
		if changed {
			narrowTypes(f)
			ssa.RebuildReferrers(f)
			continue
		}
		break
	}

	if !opts.DisableSwitchRestructuring {
		restructureSwitches(f, opts)
	}
	hoistConsts(f)
}

// removeInstr deletes instr from b's non-terminator instruction list.
// Callers must have already redirected every use of instr's Value (if
// any) away via ssa.ReplaceAll.
func removeInstr(b *ssa.Block, instr ssa.Instruction) {
	for i, in := range b.Instrs {
		if in == instr {
			b.Instrs = append(b.Instrs[:i], b.Instrs[i+1:]...)
			return
		}
	}
}

// narrowTypes re-runs the lattice narrowing every transformation in this
// package is required to perform on values whose types may have
// tightened. It is a simple forward propagation: each
// instruction's output kind is recomputed from its (possibly just
// replaced) operands, repeated while a pass changes something, since
// narrowing one value can unlock narrowing its users, but for at most
// four passes.
func narrowTypes(f *ssa.Function) {
	for i := 0; i < 4; i++ {
		changed := false
		f.AllInstructions(func(_ *ssa.Block, instr ssa.Instruction) {
			v, ok := instr.(ssa.Value)
			if !ok {
				return
			}
			next := inferKind(instr, v.Kind())
			if next != v.Kind() {
				v.SetKind(next)
				changed = true
			}
		})
		if !changed {
			return
		}
	}
}

// inferKind recomputes instr's output lattice type from its operands'
// current kinds, preserving whatever refinement the instruction already
// carries (narrowing only ever tightens, never loosens).
func inferKind(instr ssa.Instruction, cur ssa.LatticeType) ssa.LatticeType {
	switch i := instr.(type) {
	case *ssa.Phi:
		out := cur
		for _, e := range i.Edges {
			if e == nil {
				continue
			}
			out = out.Narrow(e.Kind())
		}
		return out
	case *ssa.CheckCast:
		return ssa.LatticeType{Declared: i.Class, Null: i.X.Kind().Null}
	case *ssa.NullCheck:
		return ssa.LatticeType{Declared: i.X.Kind().Declared, Null: ssa.NeverNull}
	}
	return cur
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ssa

import "github.com/saferwall/shrinkcore/appmodel"

// Destruct serializes f back to a raw-instruction CodeBody. Out-of-SSA translation gives every value
// its own virtual register (no coalescing) and lowers each phi to a
// copy appended at the end of every predecessor block, the simplest
// correct scheme and the one easiest to verify against the round-trip
// property.
func Destruct(f *Function) *appmodel.CodeBody {
	reg := assignRegisters(f)
	insertPhiCopies(f, reg)

	out := &appmodel.CodeBody{Form: appmodel.FormRaw, RegisterCount: len(reg)}
	blockOffset := make(map[*Block]int, len(f.Blocks))
	order := f.Blocks

	// First pass: lower every instruction except branch targets, which
	// need offsets that aren't known until every block's length is
	// fixed. We therefore lower in two passes: compute lengths, then
	// fill in targets.
	type pending struct {
		idx     int
		targets []*Block
	}
	var pendings []pending
	var raw []appmodel.RawInstruction

	for _, b := range order {
		blockOffset[b] = len(raw)
		for _, instr := range b.Instrs {
			r := lowerInstr(instr, reg)
			raw = append(raw, r)
		}
		raw = append(raw, b.tailMoves...)
		if b.Term != nil {
			idx := len(raw)
			r, targets := lowerTerm(b.Term, reg)
			raw = append(raw, r)
			if len(targets) > 0 {
				pendings = append(pendings, pending{idx: idx, targets: targets})
			}
		}
	}
	for _, p := range pendings {
		offsets := make([]int32, len(p.targets))
		for i, t := range p.targets {
			offsets[i] = int32(blockOffset[t])
		}
		switch raw[p.idx].Op {
		case appmodel.OpGoto:
			raw[p.idx].IntOperand = int64(offsets[0])
		case appmodel.OpIf, appmodel.OpSwitch:
			raw[p.idx].Targets = offsets
		}
	}
	out.Raw = raw
	out.CatchHandlers = make(map[int][]int32)
	for _, b := range order {
		if len(b.CatchHandlers) == 0 {
			continue
		}
		start := blockOffset[b]
		var handlers []int32
		for _, h := range b.CatchHandlers {
			handlers = append(handlers, int32(blockOffset[h]))
		}
		out.CatchHandlers[start] = handlers
	}
	return out
}

func assignRegisters(f *Function) map[Value]int32 {
	reg := make(map[Value]int32)
	next := int32(0)
	assign := func(v Value) {
		if v == nil {
			return
		}
		if _, ok := reg[v]; !ok {
			reg[v] = next
			next++
		}
	}
	f.AllInstructions(func(_ *Block, i Instruction) {
		if v, ok := i.(Value); ok {
			assign(v)
		}
	})
	return reg
}

func insertPhiCopies(f *Function, reg map[Value]int32) {
	for _, b := range f.Blocks {
		for _, phi := range b.Phis {
			dst := reg[phi]
			for i, pred := range b.Preds {
				src, ok := reg[phi.Edges[i]]
				if !ok || src == dst {
					continue
				}
				mv := appmodel.RawInstruction{Op: appmodel.OpMove, Registers: []int32{dst, src}}
				insertBeforeTerm(pred, mv)
			}
		}
	}
}

// insertBeforeTerm is a bookkeeping-only helper: the actual copy is
// recorded against the predecessor block's synthetic "tail move" list
// consumed by lowering, rather than mutated into the SSA Instrs slice
// (which holds typed ssa.Instruction, not appmodel.RawInstruction).
func insertBeforeTerm(b *Block, mv appmodel.RawInstruction) {
	b.tailMoves = append(b.tailMoves, mv)
}

func lowerInstr(instr Instruction, reg map[Value]int32) appmodel.RawInstruction {
	v, isValue := instr.(Value)
	var dst []int32
	if isValue {
		dst = []int32{reg[v]}
	}
	switch i := instr.(type) {
	case *Const:
		r := appmodel.RawInstruction{Registers: dst}
		switch {
		case i.IsNull:
			r.Op = appmodel.OpConstNull
		case i.IsInt:
			r.Op = appmodel.OpConst
			r.IntOperand = i.Int
		case i.IsClass:
			r.Op = appmodel.OpConstString
			r.StringOperand = i.Str
		default:
			r.Op = appmodel.OpConstString
			r.StringOperand = i.Str
		}
		return r
	case *NewInstance:
		return appmodel.RawInstruction{Op: appmodel.OpNewInstance, Type: i.Class, Registers: dst}
	case *NewArray:
		return appmodel.RawInstruction{Op: appmodel.OpNewArray, Type: i.ElemType, Registers: append(dst, reg[i.Length])}
	case *ArrayGet:
		return appmodel.RawInstruction{Op: appmodel.OpArrayGet, Registers: []int32{dst[0], reg[i.Array], reg[i.Index]}}
	case *ArrayPut:
		return appmodel.RawInstruction{Op: appmodel.OpArrayPut, Registers: []int32{reg[i.Array], reg[i.Index], reg[i.Val]}}
	case *CheckCast:
		return appmodel.RawInstruction{Op: appmodel.OpCheckCast, Type: i.Class, Registers: []int32{dst[0], reg[i.X]}}
	case *InstanceOf:
		return appmodel.RawInstruction{Op: appmodel.OpInstanceOf, Type: i.Class, Registers: []int32{dst[0], reg[i.X]}}
	case *Invoke:
		regs := regsFor(i, reg)
		targets := []int32{dst[0]}
		return appmodel.RawInstruction{Op: invokeOpcode(i.DispatchKind), Method: i.Method, Registers: regs, Targets: targets}
	case *InstanceFieldGet:
		return appmodel.RawInstruction{Op: appmodel.OpInstanceFieldGet, Field: i.Field, Registers: []int32{dst[0], reg[i.Object]}}
	case *InstanceFieldPut:
		return appmodel.RawInstruction{Op: appmodel.OpInstanceFieldPut, Field: i.Field, Registers: []int32{reg[i.Object], reg[i.Val]}}
	case *StaticFieldGet:
		return appmodel.RawInstruction{Op: appmodel.OpStaticFieldGet, Field: i.Field, Registers: dst}
	case *StaticFieldPut:
		return appmodel.RawInstruction{Op: appmodel.OpStaticFieldPut, Field: i.Field, Registers: []int32{reg[i.Val]}}
	case *MonitorEnter:
		return appmodel.RawInstruction{Op: appmodel.OpMonitorEnter, Registers: []int32{reg[i.X]}}
	case *MonitorExit:
		return appmodel.RawInstruction{Op: appmodel.OpMonitorExit, Registers: []int32{reg[i.X]}}
	case *NullCheck:
		return appmodel.RawInstruction{Op: appmodel.OpNullCheck, Registers: []int32{dst[0], reg[i.X]}}
	case *FillArrayData:
		return appmodel.RawInstruction{Op: appmodel.OpFillArrayData, Type: i.ElemType, Registers: dst, ArrayData: i.Values}
	}
	return appmodel.RawInstruction{Op: appmodel.OpNop}
}

func regsFor(inv *Invoke, reg map[Value]int32) []int32 {
	var regs []int32
	if inv.Receiver != nil {
		regs = append(regs, reg[inv.Receiver])
	}
	for _, a := range inv.Args {
		regs = append(regs, reg[a])
	}
	return regs
}

func invokeOpcode(k InvokeKind) appmodel.Opcode {
	switch k {
	case InvokeVirtual:
		return appmodel.OpInvokeVirtual
	case InvokeSuper:
		return appmodel.OpInvokeSuper
	case InvokeDirect:
		return appmodel.OpInvokeDirect
	case InvokeStatic:
		return appmodel.OpInvokeStatic
	case InvokeInterface:
		return appmodel.OpInvokeInterface
	}
	return appmodel.OpInvokeVirtual
}

func lowerTerm(t Terminator, reg map[Value]int32) (appmodel.RawInstruction, []*Block) {
	switch term := t.(type) {
	case *Goto:
		return appmodel.RawInstruction{Op: appmodel.OpGoto}, term.succs
	case *If:
		return appmodel.RawInstruction{Op: appmodel.OpIf, Registers: []int32{reg[term.X], reg[term.Y]}, IntOperand: int64(term.Kind)}, term.succs
	case *Switch:
		return appmodel.RawInstruction{Op: appmodel.OpSwitch, Registers: []int32{reg[term.Key]}, Keys: term.Keys}, term.succs
	case *Return:
		if term.Val == nil {
			return appmodel.RawInstruction{Op: appmodel.OpReturnVoid}, nil
		}
		return appmodel.RawInstruction{Op: appmodel.OpReturn, Registers: []int32{reg[term.Val]}}, nil
	case *Throw:
		return appmodel.RawInstruction{Op: appmodel.OpThrow, Registers: []int32{reg[term.X]}}, nil
	}
	return appmodel.RawInstruction{Op: appmodel.OpNop}, nil
}

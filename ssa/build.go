// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ssa

import "github.com/saferwall/shrinkcore/appmodel"

// Build constructs an SSA Function from a raw-instruction CodeBody
//. It follows the
// Braun/Buchwald/Hack/Leißa/Mallon/Zwinkau construction: because the
// whole raw instruction stream -- and therefore the complete CFG -- is
// known up front, every block's predecessor set is known before any
// value is read, so phis can be placed eagerly (memoized per
// block×register) without the "incomplete phi" bookkeeping the textbook
// algorithm needs for streaming input.
func Build(method appmodel.MethodRef, code *appmodel.CodeBody) *Function {
	f := New(method)
	f.Blocks = f.Blocks[:0]
	f.Entry = nil
	f.nextBlockID = 0

	if len(code.Raw) == 0 {
		f.Entry = f.NewBlock("entry")
		f.SetTerm(f.Entry, &Return{termBase: termBase{}})
		return f
	}

	leaders := computeLeaders(code)
	blocks, instrToBlock, blockStart := materializeBlocks(f, code, leaders)
	f.Entry = blocks[0]
	wireCatchHandlers(code, blocks, instrToBlock, blockStart)

	b := &builder{
		f:            f,
		code:         code,
		blocks:       blocks,
		instrToBlock: instrToBlock,
		blockStart:   blockStart,
		currentDef:   make(map[int]map[int32]Value),
	}
	for i := 0; i < code.RegisterCount; i++ {
		b.writeVar(blocks[0], int32(i), b.newParameter(blocks[0], i))
	}
	b.run()
	return f
}

func computeLeaders(code *appmodel.CodeBody) []bool {
	n := len(code.Raw)
	leaders := make([]bool, n)
	leaders[0] = true
	for i, instr := range code.Raw {
		if isBranch(instr.Op) {
			for _, t := range branchTargets(instr) {
				if int(t) < n {
					leaders[t] = true
				}
			}
			if i+1 < n {
				leaders[i+1] = true
			}
		}
	}
	for idx := range code.CatchHandlers {
		if idx < n {
			leaders[idx] = true
		}
		for _, h := range code.CatchHandlers[idx] {
			if int(h) < n {
				leaders[h] = true
			}
		}
	}
	return leaders
}

func isBranch(op appmodel.Opcode) bool {
	switch op {
	case appmodel.OpGoto, appmodel.OpIf, appmodel.OpSwitch, appmodel.OpThrow,
		appmodel.OpReturn, appmodel.OpReturnVoid:
		return true
	}
	return false
}

func branchTargets(instr appmodel.RawInstruction) []int32 {
	switch instr.Op {
	case appmodel.OpGoto:
		return []int32{int32(instr.IntOperand)}
	case appmodel.OpIf:
		return instr.Targets
	case appmodel.OpSwitch:
		return instr.Targets
	}
	return nil
}

func materializeBlocks(f *Function, code *appmodel.CodeBody, leaders []bool) ([]*Block, []int, map[int]*Block) {
	var starts []int
	for i, isLeader := range leaders {
		if isLeader {
			starts = append(starts, i)
		}
	}
	blocks := make([]*Block, len(starts))
	instrToBlock := make([]int, len(code.Raw))
	blockStart := make(map[int]*Block, len(starts))
	for bi, start := range starts {
		end := len(code.Raw)
		if bi+1 < len(starts) {
			end = starts[bi+1]
		}
		b := f.NewBlock("")
		blocks[bi] = b
		blockStart[start] = b
		for i := start; i < end; i++ {
			instrToBlock[i] = bi
		}
	}
	f.blockRangeStarts = starts
	return blocks, instrToBlock, blockStart
}

func wireCatchHandlers(code *appmodel.CodeBody, blocks []*Block, instrToBlock []int, blockStart map[int]*Block) {
	seen := make(map[*Block]map[*Block]bool)
	for idx, handlers := range code.CatchHandlers {
		if idx >= len(instrToBlock) {
			continue
		}
		b := blocks[instrToBlock[idx]]
		for _, h := range handlers {
			hb, ok := blockStart[int(h)]
			if !ok {
				continue
			}
			if seen[b] == nil {
				seen[b] = make(map[*Block]bool)
			}
			if !seen[b][hb] {
				seen[b][hb] = true
				b.CatchHandlers = append(b.CatchHandlers, hb)
			}
		}
	}
}

// builder holds the per-method state while translating raw instructions
// into SSA form.
type builder struct {
	f            *Function
	code         *appmodel.CodeBody
	blocks       []*Block
	instrToBlock []int
	blockStart   map[int]*Block
	currentDef   map[int]map[int32]Value // block.Index -> register -> Value
}

func (b *builder) newParameter(block *Block, idx int) Value {
	p := &Parameter{Index: idx}
	return b.f.Emit(block, p)
}

func (b *builder) writeVar(block *Block, reg int32, v Value) {
	m := b.currentDef[block.Index]
	if m == nil {
		m = make(map[int32]Value)
		b.currentDef[block.Index] = m
	}
	m[reg] = v
}

func (b *builder) readVar(block *Block, reg int32) Value {
	if m := b.currentDef[block.Index]; m != nil {
		if v, ok := m[reg]; ok {
			return v
		}
	}
	return b.readVarRecursive(block, reg)
}

func (b *builder) readVarRecursive(block *Block, reg int32) Value {
	if len(block.Preds) == 1 {
		v := b.readVar(block.Preds[0], reg)
		b.writeVar(block, reg, v)
		return v
	}
	phi := &Phi{}
	b.f.Emit(block, phi)
	block.Phis = append(block.Phis, phi)
	b.writeVar(block, reg, phi) // break cycles for loop headers
	for _, p := range block.Preds {
		phi.Edges = append(phi.Edges, b.readVar(p, reg))
	}
	return b.tryRemoveTrivialPhi(block, reg, phi)
}

// tryRemoveTrivialPhi collapses a phi whose operands are all the same
// value (or itself) to that value directly.
func (b *builder) tryRemoveTrivialPhi(block *Block, reg int32, phi *Phi) Value {
	var same Value
	for _, e := range phi.Edges {
		if e == phi || e == same {
			continue
		}
		if same != nil {
			b.writeVar(block, reg, phi)
			return phi
		}
		same = e
	}
	if same == nil {
		same = phi
	}
	ReplaceAll(phi, same)
	b.writeVar(block, reg, same)
	for i, p := range block.Phis {
		if p == phi {
			block.Phis = append(block.Phis[:i], block.Phis[i+1:]...)
			break
		}
	}
	return same
}

func (b *builder) run() {
	starts := b.f.blockRangeStarts
	for bi, block := range b.blocks {
		start := starts[bi]
		end := len(b.code.Raw)
		if bi+1 < len(starts) {
			end = starts[bi+1]
		}
		for i := start; i < end; i++ {
			b.translate(block, i, b.code.Raw[i])
		}
		if block.Term == nil && bi+1 < len(b.blocks) {
			b.f.SetTerm(block, &Goto{termBase: termBase{succs: []*Block{b.blocks[bi+1]}}})
		}
	}
}

func (b *builder) reg(instr appmodel.RawInstruction, i int) int32 {
	if i < len(instr.Registers) {
		return instr.Registers[i]
	}
	return -1
}

func (b *builder) translate(block *Block, idx int, instr appmodel.RawInstruction) {
	ctx := b.code
	_ = ctx
	switch instr.Op {
	case appmodel.OpConst:
		c := &Const{IsInt: true, Int: instr.IntOperand}
		b.f.Emit(block, c)
		b.defineDst(block, instr, c)
	case appmodel.OpConstNull:
		c := &Const{IsNull: true}
		c.kind.Null = DefinitelyNull
		b.f.Emit(block, c)
		b.defineDst(block, instr, c)
	case appmodel.OpConstString:
		c := &Const{Str: instr.StringOperand}
		c.kind.Null = NeverNull
		b.f.Emit(block, c)
		b.defineDst(block, instr, c)
	case appmodel.OpMove:
		src := b.readVar(block, b.reg(instr, 1))
		b.writeVar(block, b.reg(instr, 0), src)
	case appmodel.OpNewInstance:
		n := &NewInstance{Class: instr.Type}
		n.kind.Null = NeverNull
		n.kind.Declared = instr.Type
		b.f.Emit(block, n)
		b.defineDst(block, instr, n)
	case appmodel.OpNewArray:
		length := b.readVar(block, b.reg(instr, 1))
		n := &NewArray{ElemType: instr.Type, Length: length}
		n.kind.Null = NeverNull
		b.f.Emit(block, n)
		b.defineDst(block, instr, n)
	case appmodel.OpArrayGet:
		arr := b.readVar(block, b.reg(instr, 1))
		index := b.readVar(block, b.reg(instr, 2))
		g := &ArrayGet{Array: arr, Index: index}
		b.f.Emit(block, g)
		b.defineDst(block, instr, g)
	case appmodel.OpArrayPut:
		arr := b.readVar(block, b.reg(instr, 0))
		index := b.readVar(block, b.reg(instr, 1))
		val := b.readVar(block, b.reg(instr, 2))
		b.f.Emit(block, &ArrayPut{Array: arr, Index: index, Val: val})
	case appmodel.OpCheckCast:
		x := b.readVar(block, b.reg(instr, 0))
		c := &CheckCast{X: x, Class: instr.Type}
		b.f.Emit(block, c)
		b.defineDst(block, instr, c)
	case appmodel.OpInstanceOf:
		x := b.readVar(block, b.reg(instr, 1))
		io := &InstanceOf{X: x, Class: instr.Type}
		b.f.Emit(block, io)
		b.defineDst(block, instr, io)
	case appmodel.OpInvokeVirtual, appmodel.OpInvokeSuper, appmodel.OpInvokeDirect,
		appmodel.OpInvokeStatic, appmodel.OpInvokeInterface, appmodel.OpInvokeSpecial:
		b.translateInvoke(block, instr)
	case appmodel.OpInstanceFieldGet:
		obj := b.readVar(block, b.reg(instr, 1))
		g := &InstanceFieldGet{Object: obj, Field: instr.Field}
		b.f.Emit(block, g)
		b.defineDst(block, instr, g)
	case appmodel.OpInstanceFieldPut:
		obj := b.readVar(block, b.reg(instr, 0))
		val := b.readVar(block, b.reg(instr, 1))
		b.f.Emit(block, &InstanceFieldPut{Object: obj, Val: val, Field: instr.Field})
	case appmodel.OpStaticFieldGet:
		g := &StaticFieldGet{Field: instr.Field}
		b.f.Emit(block, g)
		b.defineDst(block, instr, g)
	case appmodel.OpStaticFieldPut:
		val := b.readVar(block, b.reg(instr, 0))
		b.f.Emit(block, &StaticFieldPut{Val: val, Field: instr.Field})
	case appmodel.OpMonitorEnter:
		b.f.Emit(block, &MonitorEnter{X: b.readVar(block, b.reg(instr, 0))})
	case appmodel.OpMonitorExit:
		b.f.Emit(block, &MonitorExit{X: b.readVar(block, b.reg(instr, 0))})
	case appmodel.OpNullCheck:
		x := b.readVar(block, b.reg(instr, 1))
		nc := &NullCheck{X: x}
		b.f.Emit(block, nc)
		b.defineDst(block, instr, nc)
	case appmodel.OpFillArrayData:
		fa := &FillArrayData{ElemType: instr.Type, Values: instr.ArrayData}
		fa.kind.Null = NeverNull
		b.f.Emit(block, fa)
		b.defineDst(block, instr, fa)
	case appmodel.OpGoto:
		b.f.SetTerm(block, &Goto{termBase: termBase{succs: []*Block{b.blockStart[int(instr.IntOperand)]}}})
	case appmodel.OpIf:
		x := b.readVar(block, b.reg(instr, 0))
		y := b.readVar(block, b.reg(instr, 1))
		thenB := b.blockStart[int(instr.Targets[0])]
		elseB := b.blockStart[int(instr.Targets[1])]
		b.f.SetTerm(block, &If{termBase: termBase{succs: []*Block{thenB, elseB}}, X: x, Y: y, Kind: BinOpKind(instr.IntOperand)})
	case appmodel.OpSwitch:
		key := b.readVar(block, b.reg(instr, 0))
		var succs []*Block
		for _, t := range instr.Targets {
			succs = append(succs, b.blockStart[int(t)])
		}
		b.f.SetTerm(block, &Switch{termBase: termBase{succs: succs}, Key: key, Keys: instr.Keys})
	case appmodel.OpThrow:
		x := b.readVar(block, b.reg(instr, 0))
		var succs []*Block
		succs = append(succs, block.CatchHandlers...)
		b.f.SetTerm(block, &Throw{termBase: termBase{succs: succs}, X: x})
	case appmodel.OpReturn:
		v := b.readVar(block, b.reg(instr, 0))
		b.f.SetTerm(block, &Return{termBase: termBase{}, Val: v})
	case appmodel.OpReturnVoid:
		b.f.SetTerm(block, &Return{termBase: termBase{}})
	case appmodel.OpNop:
		// no operation
	}
}

func (b *builder) defineDst(block *Block, instr appmodel.RawInstruction, v Value) {
	if len(instr.Registers) > 0 {
		b.writeVar(block, instr.Registers[0], v)
	}
}

func (b *builder) translateInvoke(block *Block, instr appmodel.RawInstruction) {
	var kind InvokeKind
	var hasReceiver = true
	switch instr.Op {
	case appmodel.OpInvokeVirtual:
		kind = InvokeVirtual
	case appmodel.OpInvokeSuper:
		kind = InvokeSuper
	case appmodel.OpInvokeDirect, appmodel.OpInvokeSpecial:
		kind = InvokeDirect
	case appmodel.OpInvokeStatic:
		kind = InvokeStatic
		hasReceiver = false
	case appmodel.OpInvokeInterface:
		kind = InvokeInterface
	}
	regs := instr.Registers
	var recv Value
	var args []Value
	i := 0
	if hasReceiver && len(regs) > 0 {
		recv = b.readVar(block, regs[0])
		i = 1
	}
	for ; i < len(regs); i++ {
		args = append(args, b.readVar(block, regs[i]))
	}
	inv := &Invoke{DispatchKind: kind, Method: instr.Method, Receiver: recv, Args: args}
	b.f.Emit(block, inv)
	// An invocation that returns a value defines the register named by
	// instr.Targets[0], when present.
	if len(instr.Targets) > 0 {
		b.writeVar(block, int32(instr.Targets[0]), inv)
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ssa

import (
	"fmt"

	"github.com/saferwall/shrinkcore/appmodel"
)

// InvokeKind distinguishes the five platform invoke forms the resolver
// models.
type InvokeKind uint8

const (
	InvokeVirtual InvokeKind = iota
	InvokeSuper
	InvokeDirect
	InvokeStatic
	InvokeInterface
)

// Const is a compile-time constant value (int, string, null, class
// literal, ...). ConstKind selects which field of the union is live.
type Const struct {
	valueBase
	IsNull  bool
	IsInt   bool
	Int     int64
	Str     string
	IsClass bool
	Class   appmodel.Type
}

func NewConst() *Const { return &Const{} }

func (c *Const) Operands() []*Value { return nil }
func (c *Const) String() string {
	switch {
	case c.IsNull:
		return fmt.Sprintf("v%d = const-null", c.id)
	case c.IsInt:
		return fmt.Sprintf("v%d = const %d", c.id, c.Int)
	case c.IsClass:
		return fmt.Sprintf("v%d = const-class %s", c.id, c.Str)
	default:
		return fmt.Sprintf("v%d = const-string %q", c.id, c.Str)
	}
}

// Parameter is an incoming argument (including the receiver for
// instance methods), materialized as a value at function entry.
type Parameter struct {
	valueBase
	Index int
}

func (p *Parameter) Operands() []*Value { return nil }
func (p *Parameter) String() string     { return fmt.Sprintf("v%d = parameter[%d]", p.id, p.Index) }

// Phi merges values coming from each predecessor of its block, one entry
// per predecessor in the same order as Block.Preds.
type Phi struct {
	valueBase
	Edges []Value
}

func (p *Phi) Operands() []*Value {
	out := make([]*Value, len(p.Edges))
	for i := range p.Edges {
		out[i] = &p.Edges[i]
	}
	return out
}
func (p *Phi) String() string { return fmt.Sprintf("v%d = phi %v", p.id, p.Edges) }

// Assume asserts a refinement about X without itself having runtime
// effect (e.g. the result of a narrowing check-cast the rewriter has
// proven safe). Assume-removal replaces every use of the
// Assume by X directly.
type Assume struct {
	valueBase
	X Value
}

func (a *Assume) Operands() []*Value { return []*Value{&a.X} }
func (a *Assume) String() string     { return fmt.Sprintf("v%d = assume %s", a.id, a.X) }

// NullCheck asserts X is non-null, throwing NullPointerException at
// runtime otherwise, and narrows X's type to never-null on success. The
// rewriter emits this in place of an explicit "if (x == null) throw new
// NullPointerException()" diamond.
type NullCheck struct {
	valueBase
	X Value
}

func (n *NullCheck) Operands() []*Value { return []*Value{&n.X} }
func (n *NullCheck) String() string     { return fmt.Sprintf("v%d = null-check %s", n.id, n.X) }

// FillArrayData is a compact materialized array literal, the rewriter's
// replacement for a NewArray followed by a dense run of constant-index
// ArrayPuts.
type FillArrayData struct {
	valueBase
	ElemType appmodel.Type
	Values   []int64 // one packed element per array slot
}

func (a *FillArrayData) Operands() []*Value { return nil }
func (a *FillArrayData) String() string {
	return fmt.Sprintf("v%d = fill-array-data %v[%d]", a.id, a.ElemType, len(a.Values))
}

// BinOpKind names an arithmetic/comparison operator.
type BinOpKind uint8

const (
	OpAdd BinOpKind = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpCmpEq
	OpCmpNe
	OpCmpLt
	OpCmpLe
	OpCmpGt
	OpCmpGe
	OpCmpLong // platform long-compare op, gated by options.CmpLongBug (open question b)
)

// BinOp is a two-operand arithmetic or comparison instruction.
type BinOp struct {
	valueBase
	OpKind BinOpKind
	X, Y   Value
}

func (b *BinOp) Operands() []*Value { return []*Value{&b.X, &b.Y} }
func (b *BinOp) String() string     { return fmt.Sprintf("v%d = binop(%d) %s, %s", b.id, b.OpKind, b.X, b.Y) }

// NewInstance allocates a fresh, uninitialized instance of Class. The
// enqueuer's trace-new-instance work item marks Class instantiated when
// it traces a live method containing one of these.
type NewInstance struct {
	valueBase
	Class appmodel.Type
}

func (n *NewInstance) Operands() []*Value { return nil }
func (n *NewInstance) String() string     { return fmt.Sprintf("v%d = new-instance %v", n.id, n.Class) }

// NewArray allocates an array of ElemType with the given length value.
type NewArray struct {
	valueBase
	ElemType appmodel.Type
	Length   Value
}

func (n *NewArray) Operands() []*Value { return []*Value{&n.Length} }
func (n *NewArray) String() string     { return fmt.Sprintf("v%d = new-array %v[%s]", n.id, n.ElemType, n.Length) }

// ArrayGet reads Array[Index].
type ArrayGet struct {
	valueBase
	Array, Index Value
}

func (a *ArrayGet) Operands() []*Value { return []*Value{&a.Array, &a.Index} }
func (a *ArrayGet) String() string     { return fmt.Sprintf("v%d = array-get %s[%s]", a.id, a.Array, a.Index) }

// ArrayPut writes Array[Index] = Value. It produces no SSA value.
type ArrayPut struct {
	instrBase
	Array, Index, Val Value
}

func (a *ArrayPut) Operands() []*Value { return []*Value{&a.Array, &a.Index, &a.Val} }
func (a *ArrayPut) String() string {
	return fmt.Sprintf("array-put %s[%s] = %s", a.Array, a.Index, a.Val)
}

// CheckCast asserts X is an instance of Class, throwing ClassCastException
// otherwise, and narrows X's type on success.
type CheckCast struct {
	valueBase
	X     Value
	Class appmodel.Type
}

func (c *CheckCast) Operands() []*Value { return []*Value{&c.X} }
func (c *CheckCast) String() string     { return fmt.Sprintf("v%d = check-cast %s, %v", c.id, c.X, c.Class) }

// InstanceOf tests whether X is an instance of Class, producing a
// boolean-valued int.
type InstanceOf struct {
	valueBase
	X     Value
	Class appmodel.Type
}

func (i *InstanceOf) Operands() []*Value { return []*Value{&i.X} }
func (i *InstanceOf) String() string     { return fmt.Sprintf("v%d = instance-of %s, %v", i.id, i.X, i.Class) }

// Invoke is a symbolic method invocation. Kind selects which of the
// platform's five lookup procedures the resolver/enqueuer
// apply to Method. Receiver is nil for InvokeStatic.
type Invoke struct {
	valueBase
	DispatchKind InvokeKind
	Method       appmodel.MethodRef
	Receiver     Value // nil for static
	Args         []Value
}

func (i *Invoke) Operands() []*Value {
	out := make([]*Value, 0, len(i.Args)+1)
	if i.Receiver != nil {
		out = append(out, &i.Receiver)
	}
	for idx := range i.Args {
		out = append(out, &i.Args[idx])
	}
	return out
}
func (i *Invoke) String() string { return fmt.Sprintf("v%d = invoke[%d] %v", i.id, i.DispatchKind, i.Method) }

// InstanceFieldGet reads Object.Field.
type InstanceFieldGet struct {
	valueBase
	Object Value
	Field  appmodel.FieldRef
}

func (f *InstanceFieldGet) Operands() []*Value { return []*Value{&f.Object} }
func (f *InstanceFieldGet) String() string {
	return fmt.Sprintf("v%d = iget %s.%v", f.id, f.Object, f.Field)
}

// InstanceFieldPut writes Object.Field = Val.
type InstanceFieldPut struct {
	instrBase
	Object, Val Value
	Field       appmodel.FieldRef
}

func (f *InstanceFieldPut) Operands() []*Value { return []*Value{&f.Object, &f.Val} }
func (f *InstanceFieldPut) String() string {
	return fmt.Sprintf("iput %s.%v = %s", f.Object, f.Field, f.Val)
}

// StaticFieldGet reads a static field, implicitly triggering class
// initialization of Field's holder.
type StaticFieldGet struct {
	valueBase
	Field appmodel.FieldRef
}

func (f *StaticFieldGet) Operands() []*Value { return nil }
func (f *StaticFieldGet) String() string     { return fmt.Sprintf("v%d = sget %v", f.id, f.Field) }

// StaticFieldPut writes a static field.
type StaticFieldPut struct {
	instrBase
	Val   Value
	Field appmodel.FieldRef
}

func (f *StaticFieldPut) Operands() []*Value { return []*Value{&f.Val} }
func (f *StaticFieldPut) String() string     { return fmt.Sprintf("sput %v = %s", f.Field, f.Val) }

// MonitorEnter/MonitorExit bracket a synchronized block. Instructions
// downstream of these within the same block cannot have their catch
// handlers ignored by const-hoisting.
type MonitorEnter struct {
	instrBase
	X Value
}

func (m *MonitorEnter) Operands() []*Value { return []*Value{&m.X} }
func (m *MonitorEnter) String() string     { return fmt.Sprintf("monitor-enter %s", m.X) }

type MonitorExit struct {
	instrBase
	X Value
}

func (m *MonitorExit) Operands() []*Value { return []*Value{&m.X} }
func (m *MonitorExit) String() string     { return fmt.Sprintf("monitor-exit %s", m.X) }

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package enqueue implements the reachability fixed point:
// starting from a root set, repeatedly apply work items until no more
// facts can be added, producing a frozen liveness.AppInfoWithLiveness.
package enqueue

import (
	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/keep"
)

// ActionKind names one work-list item kind.
type ActionKind uint8

const (
	ActionMarkMethodLive ActionKind = iota
	ActionMarkMethodTargeted
	ActionMarkMethodReachableSuper
	ActionTraceNewInstance
	ActionTraceInvoke
	ActionTraceFieldAccess
	ActionMarkFieldReachable
	ActionEnqueueClassInstantiated
	ActionEnqueueInterfaceInstantiated
	ActionEnqueueAnnotationInstantiated
	ActionMarkMethodKept
	ActionMarkFieldKept
)

// InvokeActionKind distinguishes the five invoke forms an
// ActionTraceInvoke carries.
type InvokeActionKind uint8

const (
	InvokeActionStatic InvokeActionKind = iota
	InvokeActionSuper
	InvokeActionDirect
	InvokeActionVirtual
	InvokeActionInterface
)

// FieldAccessActionKind distinguishes the field-access work items.
type FieldAccessActionKind uint8

const (
	FieldAccessInstanceRead FieldAccessActionKind = iota
	FieldAccessInstanceWrite
	FieldAccessStaticRead
	FieldAccessStaticWrite
	// FieldAccessConditionalKeep marks an ActionMarkFieldReachable raised
	// by a fired conditional keep rule (keep.EventFieldLive) rather than
	// by tracing an ordinary field-access instruction: it carries no
	// read/write count and bypasses the instance-field instantiation
	// gate, since a keep rule's field is live unconditionally once its
	// antecedent matches.
	FieldAccessConditionalKeep
)

// Action is one work-list entry: a tagged struct rather than a class
// hierarchy of work-item types.
type Action struct {
	Kind ActionKind

	Method appmodel.MethodRef
	Field  appmodel.FieldRef
	Type   appmodel.Type

	// Caller is the method whose body produced this action, invalid for
	// root-set actions.
	Caller appmodel.MethodRef

	InvokeKind InvokeActionKind
	FieldKind  FieldAccessActionKind

	// CallerHolder is the caller's declaring class, needed by the
	// invoke-special/invoke-super starting-class rule.
	CallerHolder  appmodel.Type
	SymbolicSuper bool

	Reason keep.ReasonKind
	Cause  keep.NodeID
}

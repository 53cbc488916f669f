// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"strings"

	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/keep"
	"github.com/saferwall/shrinkcore/liveness"
	"github.com/saferwall/shrinkcore/ssa"
)

// ReflectiveKind names one of the platform reflection entry points
// recognized by call-site shape: class-by-name,
// constructor-new-instance, enum-value-of, proxy-new-instance,
// service-loader-load, atomic-field-updater-new-updater.
type ReflectiveKind uint8

const (
	ReflectiveClassForName ReflectiveKind = iota
	ReflectiveConstructorNewInstance
	ReflectiveEnumValueOf
	ReflectiveProxyNewInstance
	ReflectiveServiceLoaderLoad
	ReflectiveAtomicFieldUpdaterNewUpdater
)

// reflectiveSignature identifies one recognized platform method by
// holder descriptor + name.
type reflectiveSignature struct {
	holder string
	name   string
	kind   ReflectiveKind
}

// wellKnownReflectiveMethods is the fixed recognizer table the use
// registry consults for every Invoke.
var wellKnownReflectiveMethods = []reflectiveSignature{
	{"Ljava/lang/Class;", "forName", ReflectiveClassForName},
	{"Ljava/lang/Class;", "newInstance", ReflectiveConstructorNewInstance},
	{"Ljava/lang/reflect/Constructor;", "newInstance", ReflectiveConstructorNewInstance},
	{"Ljava/lang/Enum;", "valueOf", ReflectiveEnumValueOf},
	{"Ljava/lang/reflect/Proxy;", "newProxyInstance", ReflectiveProxyNewInstance},
	{"Ljava/util/ServiceLoader;", "load", ReflectiveServiceLoaderLoad},
	{"Ljava/util/concurrent/atomic/AtomicReferenceFieldUpdater;", "newUpdater", ReflectiveAtomicFieldUpdaterNewUpdater},
	{"Ljava/util/concurrent/atomic/AtomicIntegerFieldUpdater;", "newUpdater", ReflectiveAtomicFieldUpdaterNewUpdater},
	{"Ljava/util/concurrent/atomic/AtomicLongFieldUpdater;", "newUpdater", ReflectiveAtomicFieldUpdaterNewUpdater},
}

func recognizeReflective(ctx *appmodel.Context, m appmodel.MethodRef) (ReflectiveKind, bool) {
	holder := ctx.Descriptor(ctx.MethodHolder(m))
	name := ctx.MethodName(m)
	for _, sig := range wellKnownReflectiveMethods {
		if sig.holder == holder && sig.name == name {
			return sig.kind, true
		}
	}
	return 0, false
}

// pendingReflectiveUse is one deferred reflective call site, collected
// while tracing a live method's body and resolved at the next inner
// fixed point rather than immediately.
type pendingReflectiveUse struct {
	kind   ReflectiveKind
	caller appmodel.MethodRef
	invoke *ssa.Invoke
}

// reflectiveState owns the enqueuer's deferred reflective-use set and
// remembers which types a reflective call site has already pulled in,
// so a literal class name sighted at more than one call site only joins
// its keep-info once.
type reflectiveState struct {
	pending []pendingReflectiveUse
	seen    map[appmodel.Type]bool
}

// collectReflectiveUse defers inv for processing at the next inner fixed
// point if it matches one of wellKnownReflectiveMethods; every other
// Invoke is ignored here; ordinary dispatch already traces it.
func (e *Enqueuer) collectReflectiveUse(caller appmodel.MethodRef, inv *ssa.Invoke) {
	kind, ok := recognizeReflective(e.model.Context(), inv.Method)
	if !ok {
		return
	}
	e.reflective.pending = append(e.reflective.pending, pendingReflectiveUse{kind: kind, caller: caller, invoke: inv})
}

// processPendingReflectiveUses is the pending-reflective-use
// processing step. Every entry gets one resolution attempt: the
// literal operands a call site carries are fixed once the method's IR is
// built, so a use that cannot resolve now never will, and is dropped
// rather than retried every inner fixed point.
func (e *Enqueuer) processPendingReflectiveUses() bool {
	if len(e.reflective.pending) == 0 {
		return false
	}
	grew := false
	for _, use := range e.reflective.pending {
		if e.resolveReflectiveUse(use) {
			grew = true
		}
	}
	e.reflective.pending = nil
	return grew
}

func (e *Enqueuer) resolveReflectiveUse(use pendingReflectiveUse) bool {
	switch use.kind {
	case ReflectiveClassForName:
		return e.resolveClassForName(use)
	case ReflectiveConstructorNewInstance:
		return e.resolveConstructorNewInstance(use)
	case ReflectiveEnumValueOf:
		return e.resolveEnumValueOf(use)
	case ReflectiveProxyNewInstance:
		return e.resolveProxyNewInstance(use)
	case ReflectiveServiceLoaderLoad:
		return e.resolveServiceLoaderLoad(use)
	case ReflectiveAtomicFieldUpdaterNewUpdater:
		return e.resolveAtomicFieldUpdaterNewUpdater(use)
	default:
		return false
	}
}

// resolveClassForName handles the class-by-name entry point: a
// string-literal argument known at the call site ("Class.forName("X")")
// pulls class X into the instantiated set, marks its default (no-arg)
// initializer live, and disallows optimization on it.
func (e *Enqueuer) resolveClassForName(use pendingReflectiveUse) bool {
	if len(use.invoke.Args) == 0 {
		return false
	}
	name, ok := constString(use.invoke.Args[0])
	if !ok {
		return false
	}
	t, ok := e.literalTypeByBinaryName(name)
	if !ok {
		return false
	}
	e.instantiateFromReflection(t, use.caller)
	return true
}

// resolveConstructorNewInstance covers both Class.newInstance() and
// Constructor.newInstance(): it only resolves when the receiver is a
// compile-time class literal, since this model's raw-instruction form
// carries no constant-class opcode for Class.forName(...).newInstance()
// chains to propagate through (appmodel/code.go's Opcode list has no
// OpConstClass) -- a non-constant receiver is left unresolved, matching
// real-world shrinkers that fall back to requiring an explicit keep rule
// for a chain they cannot see through either.
func (e *Enqueuer) resolveConstructorNewInstance(use pendingReflectiveUse) bool {
	t, ok := literalClassOperand(use.invoke.Receiver)
	if !ok {
		return false
	}
	e.instantiateFromReflection(t, use.caller)
	return true
}

// resolveEnumValueOf enqueues the named enum type as instantiated, which
// also initializes it. It resolves an existing constant rather than
// allocating a new instance, so no instance initializer is forced live.
func (e *Enqueuer) resolveEnumValueOf(use pendingReflectiveUse) bool {
	t, ok := literalClassOperand(use.invoke.Receiver)
	if !ok && len(use.invoke.Args) > 0 {
		t, ok = literalClassOperand(use.invoke.Args[0])
	}
	if !ok {
		return false
	}
	e.work = append(e.work, Action{Kind: ActionEnqueueClassInstantiated, Type: t, Caller: use.caller, Reason: keep.ReasonConditionalRule})
	return true
}

// resolveProxyNewInstance is a best-effort shape recognizer: it
// matches the common "new Class[]{A.class, B.class, ...}" pattern
// feeding newProxyInstance's interfaces argument and marks every
// literal interface it finds instantiated. An unrecognized shape (the
// array built some other way) is left unresolved rather than guessed
// at.
func (e *Enqueuer) resolveProxyNewInstance(use pendingReflectiveUse) bool {
	if len(use.invoke.Args) < 2 {
		return false
	}
	na, ok := use.invoke.Args[1].(*ssa.NewArray)
	if !ok {
		return false
	}
	found := false
	for _, ref := range *na.Referrers() {
		ap, ok := ref.(*ssa.ArrayPut)
		if !ok || ap.Array != na {
			continue
		}
		if t, ok := literalClassOperand(ap.Val); ok {
			e.work = append(e.work, Action{Kind: ActionEnqueueInterfaceInstantiated, Type: t, Caller: use.caller, Reason: keep.ReasonConditionalRule})
			found = true
		}
	}
	return found
}

// resolveServiceLoaderLoad marks the named service interface
// instantiated as a conservative stand-in for "some provider registered
// in META-INF/services implements it," since the provider-file contents
// live outside the app model this core consumes.
func (e *Enqueuer) resolveServiceLoaderLoad(use pendingReflectiveUse) bool {
	if len(use.invoke.Args) == 0 {
		return false
	}
	t, ok := literalClassOperand(use.invoke.Args[0])
	if !ok {
		return false
	}
	e.work = append(e.work, Action{Kind: ActionEnqueueInterfaceInstantiated, Type: t, Caller: use.caller, Reason: keep.ReasonConditionalRule})
	return true
}

// resolveAtomicFieldUpdaterNewUpdater marks the named field reachable
// and records the access as both reflective and method-handle-borne
// on the field's access info.
func (e *Enqueuer) resolveAtomicFieldUpdaterNewUpdater(use pendingReflectiveUse) bool {
	if len(use.invoke.Args) < 2 {
		return false
	}
	t, ok := literalClassOperand(use.invoke.Args[0])
	if !ok {
		return false
	}
	name, ok := constString(use.invoke.Args[1])
	if !ok {
		return false
	}
	class, ok := e.model.ClassDefinition(t)
	if !ok {
		return false
	}
	field := class.LookupDeclaredField(e.model.Context(), name)
	if field == nil {
		return false
	}
	e.work = append(e.work, Action{Kind: ActionMarkFieldReachable, Field: field.Ref, Caller: use.caller, FieldKind: FieldAccessConditionalKeep, Reason: keep.ReasonConditionalRule})
	info, ok := e.out.FieldAccess.Get(field.Ref)
	if !ok {
		info = &liveness.FieldAccessInfo{}
		e.out.FieldAccess.Set(field.Ref, info)
	}
	info.ReflectiveAccess = true
	info.FromMethodHandle = true
	return true
}

// instantiateFromReflection pulls t into the instantiated set, marks its
// default (no-arg) initializer live, and joins an optimization-
// disallowed keep-info entry onto it.
func (e *Enqueuer) instantiateFromReflection(t appmodel.Type, caller appmodel.MethodRef) {
	if e.reflective.seen[t] {
		return
	}
	if e.reflective.seen == nil {
		e.reflective.seen = make(map[appmodel.Type]bool)
	}
	e.reflective.seen[t] = true
	e.work = append(e.work, Action{Kind: ActionEnqueueClassInstantiated, Type: t, Caller: caller, Reason: keep.ReasonConditionalRule})
	if class, ok := e.model.ClassDefinition(t); ok {
		for _, m := range class.DirectMethods {
			if m.Init == appmodel.InstanceInitializer && len(e.model.Context().MethodProto(m.Ref).Params) == 0 {
				e.work = append(e.work, Action{Kind: ActionMarkMethodLive, Method: m.Ref, Caller: caller, Reason: keep.ReasonConditionalRule})
			}
		}
	}
	noOptimize := keep.Permissive()
	noOptimize.MayOptimize = false
	e.joinKeepInfo(keep.NodeID{Class: t}, noOptimize, keep.NodeID{Method: caller}, keep.ReasonConditionalRule)
}

// literalTypeByBinaryName interns name (a dotted binary class name, the
// shape Class.forName takes) as a type descriptor and reports whether a
// class definition exists for it in the model.
func (e *Enqueuer) literalTypeByBinaryName(name string) (appmodel.Type, bool) {
	descriptor := "L" + strings.ReplaceAll(name, ".", "/") + ";"
	t := e.model.Context().InternType(descriptor)
	_, ok := e.model.ClassDefinition(t)
	return t, ok
}

// constString extracts a compile-time-constant string operand, or
// reports false for anything computed at runtime.
func constString(v ssa.Value) (string, bool) {
	c, ok := v.(*ssa.Const)
	if !ok || c.IsNull || c.IsInt || c.IsClass {
		return "", false
	}
	return c.Str, true
}

// literalClassOperand extracts a compile-time class-literal operand
// ("Foo.class"). This model's raw-instruction form has no constant-class
// opcode (appmodel/code.go's Opcode list only defines OpConst/
// OpConstNull/OpConstString), so this only ever matches SSA built
// directly with ssa.Const.IsClass set; it is still exercised through
// Build for any future front end that lowers class literals that way.
func literalClassOperand(v ssa.Value) (appmodel.Type, bool) {
	c, ok := v.(*ssa.Const)
	if !ok || !c.IsClass {
		return appmodel.Invalid, false
	}
	return c.Class, true
}

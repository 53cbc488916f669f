// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/keep"
	"github.com/saferwall/shrinkcore/liveness"
	"github.com/saferwall/shrinkcore/resolve"
	"github.com/saferwall/shrinkcore/ssa"
)

// traceInstruction is the use registry: one dispatch
// per instruction kind, each enqueuing the matching trace-* work item.
func (e *Enqueuer) traceInstruction(caller appmodel.MethodRef, callerHolder appmodel.Type, instr ssa.Instruction) {
	switch i := instr.(type) {
	case *ssa.NewInstance:
		e.work = append(e.work, Action{Kind: ActionTraceNewInstance, Type: i.Class, Caller: caller})
	case *ssa.NewArray:
		e.out.LiveTypes.Add(i.ElemType)
	case *ssa.CheckCast:
		e.out.LiveTypes.Add(i.Class)
	case *ssa.InstanceOf:
		e.out.LiveTypes.Add(i.Class)
	case *ssa.Invoke:
		e.work = append(e.work, Action{
			Kind:          ActionTraceInvoke,
			Method:        i.Method,
			Caller:        caller,
			CallerHolder:  callerHolder,
			InvokeKind:    invokeActionKindOf(i.DispatchKind),
			SymbolicSuper: i.DispatchKind == ssa.InvokeSuper,
		})
		e.collectReflectiveUse(caller, i)
	case *ssa.InstanceFieldGet:
		e.work = append(e.work, Action{Kind: ActionTraceFieldAccess, Field: i.Field, Caller: caller, FieldKind: FieldAccessInstanceRead})
	case *ssa.InstanceFieldPut:
		e.work = append(e.work, Action{Kind: ActionTraceFieldAccess, Field: i.Field, Caller: caller, FieldKind: FieldAccessInstanceWrite})
	case *ssa.StaticFieldGet:
		e.work = append(e.work, Action{Kind: ActionTraceFieldAccess, Field: i.Field, Caller: caller, FieldKind: FieldAccessStaticRead})
	case *ssa.StaticFieldPut:
		e.work = append(e.work, Action{Kind: ActionTraceFieldAccess, Field: i.Field, Caller: caller, FieldKind: FieldAccessStaticWrite})
	case *ssa.MonitorEnter:
		if !e.lockCandidateSeen[caller] {
			e.lockCandidateSeen[caller] = true
			e.out.LockCandidates = append(e.out.LockCandidates, caller)
		}
	}
}

func invokeAccessKindOf(k InvokeActionKind) liveness.AccessKind {
	switch k {
	case InvokeActionStatic:
		return liveness.AccessInvokeStatic
	case InvokeActionSuper:
		return liveness.AccessInvokeSuper
	case InvokeActionDirect:
		return liveness.AccessInvokeDirect
	case InvokeActionInterface:
		return liveness.AccessInvokeInterface
	default:
		return liveness.AccessInvokeVirtual
	}
}

func invokeActionKindOf(k ssa.InvokeKind) InvokeActionKind {
	switch k {
	case ssa.InvokeStatic:
		return InvokeActionStatic
	case ssa.InvokeSuper:
		return InvokeActionSuper
	case ssa.InvokeDirect:
		return InvokeActionDirect
	case ssa.InvokeInterface:
		return InvokeActionInterface
	default:
		return InvokeActionVirtual
	}
}

// traceNewInstance handles trace-new-instance: the
// allocated type becomes instantiated (transitively initializing its
// supertypes) and the instruction's containing method is recorded in
// the type's InstantiationInfo.InstantiatingMethods.
func (e *Enqueuer) traceNewInstance(a Action) {
	e.enqueueClassInstantiated(a.Type)
	if a.Caller.IsValid() {
		info := e.out.Instantiation.GetOrInsert(a.Type, func() *liveness.InstantiationInfo {
			return &liveness.InstantiationInfo{Type: a.Type}
		})
		info.InstantiatingMethods = append(info.InstantiatingMethods, a.Caller)
	}
}

func (e *Enqueuer) enqueueClassInstantiated(t appmodel.Type) {
	if !e.out.InstantiatedClasses.Add(t) {
		return
	}
	e.out.LiveTypes.Add(t)
	e.out.Instantiation.GetOrInsert(t, func() *liveness.InstantiationInfo {
		return &liveness.InstantiationInfo{Type: t}
	})
	if class, ok := e.model.ClassDefinition(t); ok {
		for _, ann := range class.Annotations {
			e.work = append(e.work, Action{Kind: ActionEnqueueAnnotationInstantiated, Type: ann, Reason: keep.ReasonClassInstantiated})
		}
	}
	e.initializeClassChain(t, false)
	e.transitionInstantiatedType(t)
	e.transitionInstantiatedFields(t)
}

// initializeClassChain applies class-initialization semantics: walk
// up all supertypes of a class and initialize each; for
// interfaces, only direct access triggers initialization.
func (e *Enqueuer) initializeClassChain(t appmodel.Type, directInterfaceAccess bool) {
	class, ok := e.model.ClassDefinition(t)
	if !ok {
		e.recordMissing(t, appmodel.MethodRef{}, resolve.SeverityWarn, "initialization of instantiated/accessed type")
		return
	}
	if class.IsInterface() {
		if directInterfaceAccess {
			e.out.DirectlyInitializedInterfaces.Add(t)
			e.markInitializerLive(class)
		} else {
			e.out.IndirectlyInitializedInterfaces.Add(t)
		}
		return
	}
	if !e.out.InitializedClasses.Add(t) {
		return
	}
	e.markInitializerLive(class)
	if class.Super.IsValid() {
		e.initializeClassChain(class.Super, false)
	}
	for _, iface := range class.Interfaces {
		// Subclass instantiation does not initialize superinterfaces
		// that lack default methods with side effects; we conservatively
		// treat every interface with at least one non-abstract virtual
		// method as "may have side effects" and record indirect init.
		if ic, ok := e.model.ClassDefinition(iface); ok {
			sideEffects := false
			for _, m := range ic.VirtualMethods {
				if !m.IsAbstract() {
					sideEffects = true
					break
				}
			}
			if !sideEffects {
				continue
			}
		}
		e.initializeClassChain(iface, false)
	}
}

func (e *Enqueuer) markInitializerLive(class *appmodel.ClassDef) {
	for _, m := range class.DirectMethods {
		if m.Init == appmodel.StaticInitializer {
			e.work = append(e.work, Action{Kind: ActionMarkMethodLive, Method: m.Ref, Reason: keep.ReasonClassInstantiated})
		}
	}
}

// transitionInstantiatedType transitions a newly instantiated type
// into the live virtual targets it enables: for every pending
// reachableVirtualTargets entry whose holder is a supertype of the newly
// instantiated class, re-run dispatch enumeration and mark the new
// targets live.
func (e *Enqueuer) transitionInstantiatedType(instantiated appmodel.Type) {
	for _, key := range e.out.ReachableVirtualTargets.Keys() {
		if !e.isAssignable(instantiated, key.Holder) {
			continue
		}
		resolved := e.resolver.ResolveMethod(key.Method, key.Holder)
		dispatch := e.resolver.EnumerateVirtualDispatch(resolved, key.IsInterfaceInvoke, e, e)
		for _, target := range dispatch.Targets {
			e.work = append(e.work, Action{Kind: ActionMarkMethodLive, Method: target.Method.Ref, Reason: keep.ReasonClassInstantiated})
		}
	}
}

// isAssignable reports whether sub is assignable to super: either the
// same type, a (possibly indirect) subclass, or a (possibly indirect)
// implementor of a super interface.
func (e *Enqueuer) isAssignable(sub, super appmodel.Type) bool {
	if sub == super {
		return true
	}
	class, ok := e.model.ClassDefinition(sub)
	if !ok {
		return false
	}
	if class.Super.IsValid() && e.isAssignable(class.Super, super) {
		return true
	}
	for _, iface := range class.Interfaces {
		if e.isAssignable(iface, super) {
			return true
		}
	}
	return false
}

// traceInvoke handles trace-invoke-(static|super|direct|
// virtual|interface): resolve the target via the matching lookup
// procedure and mark it reachable, deferring virtual/interface targets
// to reachableVirtualTargets until a receiver is known instantiated.
func (e *Enqueuer) traceInvoke(a Action) {
	e.out.TargetedMethods.Add(a.Method)
	if a.Caller.IsValid() {
		e.out.MethodAccess = append(e.out.MethodAccess, liveness.MethodAccessInfo{
			Caller: a.Caller,
			Target: a.Method,
			Kind:   invokeAccessKindOf(a.InvokeKind),
		})
	}
	switch a.InvokeKind {
	case InvokeActionStatic:
		res := e.resolver.ResolveStatic(a.Method, a.CallerHolder)
		e.markResolvedLive(res, a)
	case InvokeActionDirect:
		res := e.resolver.ResolveDirect(a.Method, a.CallerHolder)
		e.markResolvedLive(res, a)
	case InvokeActionSuper:
		res := e.resolver.ResolveSpecialOrSuper(a.Method, resolve.InvokeContext{CallerHolder: a.CallerHolder, SymbolicSuper: a.SymbolicSuper})
		e.markResolvedLive(res, a)
	case InvokeActionVirtual, InvokeActionInterface:
		e.traceVirtualOrInterfaceInvoke(a)
	}
}

func (e *Enqueuer) markResolvedLive(res resolve.Result, a Action) {
	switch res.Kind {
	case resolve.ResultSingle:
		e.work = append(e.work, Action{Kind: ActionMarkMethodLive, Method: res.Method.Ref, Caller: a.Caller, Reason: keep.ReasonMethodLive})
	case resolve.ResultFailed:
		e.recordMissing(appmodel.Invalid, a.Caller, resolve.SeverityError, "unresolvable invocation target")
	}
}

func (e *Enqueuer) traceVirtualOrInterfaceInvoke(a Action) {
	holder := e.model.Context().MethodHolder(a.Method)
	res := e.resolver.ResolveMethod(a.Method, holder)
	if res.Kind != resolve.ResultSingle {
		if res.Kind == resolve.ResultFailed {
			e.recordMissing(appmodel.Invalid, a.Caller, resolve.SeverityError, "unresolvable virtual invocation target")
		}
		return
	}
	key := liveness.ReachableVirtualTargetKey{Holder: res.Holder, Method: res.Method.Ref, IsInterfaceInvoke: a.InvokeKind == InvokeActionInterface}
	ctxSet := e.out.ReachableVirtualTargets.GetOrInsert(key, newCallingContextSet)
	ctxSet.Add(liveness.CallingContext{Caller: a.Caller})

	dispatch := e.resolver.EnumerateVirtualDispatch(res, key.IsInterfaceInvoke, e, e)
	for _, target := range dispatch.Targets {
		e.work = append(e.work, Action{Kind: ActionMarkMethodLive, Method: target.Method.Ref, Caller: a.Caller, Reason: keep.ReasonMethodLive})
	}
}

func (e *Enqueuer) traceFieldAccess(a Action) {
	holder := e.model.Context().FieldHolder(a.Field)
	class, ok := e.model.ClassDefinition(holder)
	if !ok {
		e.recordMissing(holder, a.Caller, resolve.SeverityError, "field access holder")
		return
	}
	field := class.LookupDeclaredField(e.model.Context(), e.model.Context().FieldName(a.Field))
	if field == nil {
		e.recordMissing(holder, a.Caller, resolve.SeverityError, "no such field")
		return
	}
	e.recordFieldAccess(field.Ref, a.FieldKind)
	e.work = append(e.work, Action{Kind: ActionMarkFieldReachable, Field: field.Ref, Caller: a.Caller, FieldKind: a.FieldKind, Reason: keep.ReasonFieldLive})
	if a.FieldKind == FieldAccessStaticRead || a.FieldKind == FieldAccessStaticWrite {
		e.initializeClassChain(holder, true)
	}
}

// recordFieldAccess maintains per-field access info for the ordinary,
// non-reflective access kinds: every traced instance/static get/put
// increments the matching counter on the field's aggregated
// liveness.FieldAccessInfo.
func (e *Enqueuer) recordFieldAccess(field appmodel.FieldRef, kind FieldAccessActionKind) {
	info := e.out.FieldAccess.GetOrInsert(field, func() *liveness.FieldAccessInfo {
		return &liveness.FieldAccessInfo{}
	})
	switch kind {
	case FieldAccessInstanceRead, FieldAccessStaticRead:
		info.Reads++
	case FieldAccessInstanceWrite, FieldAccessStaticWrite:
		info.Writes++
	}
}

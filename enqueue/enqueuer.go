// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/desugar"
	"github.com/saferwall/shrinkcore/internal/ordered"
	"github.com/saferwall/shrinkcore/keep"
	"github.com/saferwall/shrinkcore/liveness"
	"github.com/saferwall/shrinkcore/log"
	"github.com/saferwall/shrinkcore/resolve"
	"github.com/saferwall/shrinkcore/rewrite"
	"github.com/saferwall/shrinkcore/ssa"
	"github.com/saferwall/shrinkcore/synthetic"
)

// Enqueuer owns the trace's add-only fact collections and drives the
// reachability fixed point to termination. It is single-threaded by
// design; concurrency in this pipeline lives in the per-method IR
// prebuild pool and the pure-analysis fan-out, not here.
type Enqueuer struct {
	model      appmodel.AppModel
	resolver   *resolve.Resolver
	keepCfg    *keep.Configuration
	items      synthetic.Items
	desug      desugar.Collection
	logger     *log.Helper
	rewriteOpts rewrite.Options

	out *liveness.AppInfoWithLiveness

	work []Action

	tracedMethods       map[appmodel.MethodRef]bool
	pinnedClasses       map[appmodel.Type]bool
	pinnedMethods       map[appmodel.MethodRef]bool
	firedConditional    map[conditionalFireKey]bool
	synthesizedDefaults map[appmodel.MethodRef]bool
	lockCandidateSeen   map[appmodel.MethodRef]bool

	analyses []Analysis

	reflective reflectiveState
}

// New returns an Enqueuer ready to accept root-set actions. rewriteOpts
// configures the in-place IR simplification (component D) that runs on
// a method's code the first time it is traced, before any of its
// instructions are inspected for references -- so a reference the
// rewriter simplifies away (a provably-dead branch, a narrowed
// check-cast, ...) never gets enqueued in the first place.
func New(model appmodel.AppModel, resolver *resolve.Resolver, keepCfg *keep.Configuration, items synthetic.Items, desug desugar.Collection, logger *log.Helper, rewriteOpts rewrite.Options) *Enqueuer {
	if logger == nil {
		logger = log.NewHelper(log.NewFilter(log.NewStdLogger(discard{}), log.FilterLevel(log.LevelError)))
	}
	return &Enqueuer{
		model:         model,
		resolver:      resolver,
		keepCfg:       keepCfg,
		items:         items,
		desug:         desug,
		logger:        logger,
		rewriteOpts:   rewriteOpts,
		out:                 liveness.New(),
		tracedMethods:       make(map[appmodel.MethodRef]bool),
		pinnedClasses:       make(map[appmodel.Type]bool),
		pinnedMethods:       make(map[appmodel.MethodRef]bool),
		firedConditional:    make(map[conditionalFireKey]bool),
		synthesizedDefaults: make(map[appmodel.MethodRef]bool),
		lockCandidateSeen:   make(map[appmodel.MethodRef]bool),
		reflective:          reflectiveState{seen: make(map[appmodel.Type]bool)},
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Seed loads the root set from the keep configuration into the initial
// work list.
func (e *Enqueuer) Seed() {
	for _, root := range e.keepCfg.Roots {
		switch {
		case root.Method.IsValid():
			e.markPinned(root.Method)
			e.work = append(e.work, Action{Kind: ActionMarkMethodLive, Method: root.Method, Reason: keep.ReasonRoot})
			e.work = append(e.work, Action{Kind: ActionMarkMethodKept, Method: root.Method, Reason: keep.ReasonRoot})
		case root.Field.IsValid():
			e.work = append(e.work, Action{Kind: ActionMarkFieldKept, Field: root.Field, Reason: keep.ReasonRoot})
		case root.Class.IsValid():
			e.pinnedClasses[root.Class] = true
			e.work = append(e.work, Action{Kind: ActionEnqueueClassInstantiated, Type: root.Class, Reason: keep.ReasonRoot})
		}
	}
}

func (e *Enqueuer) markPinned(m appmodel.MethodRef) { e.pinnedMethods[m] = true }

// Run drives the work list to a fixed point:
// apply every action, and whenever the list empties, give conditional
// rules / reflective uses / desugaring a chance to enqueue more before
// actually stopping.
func (e *Enqueuer) Run() *liveness.AppInfoWithLiveness {
	for {
		for len(e.work) > 0 {
			action := e.work[0]
			e.work = e.work[1:]
			e.apply(action)
		}
		grew := e.evaluateActiveConditionalRules()
		grew = e.processPendingReflectiveUses() || grew
		grew = e.runAnalysesAtFixedPoint() || grew
		if len(e.work) == 0 {
			if !grew {
				grew = e.runDesugaringAndSynthesize()
			}
			if len(e.work) == 0 && !grew {
				break
			}
		}
	}
	return e.freeze()
}

func (e *Enqueuer) apply(a Action) {
	switch a.Kind {
	case ActionMarkMethodLive:
		e.markMethodLive(a)
	case ActionMarkMethodTargeted:
		e.out.TargetedMethods.Add(a.Method)
	case ActionMarkMethodReachableSuper:
		e.out.TargetedMethods.Add(a.Method)
		e.out.LiveMethods.Add(a.Method)
	case ActionTraceNewInstance:
		e.traceNewInstance(a)
	case ActionTraceInvoke:
		e.traceInvoke(a)
	case ActionTraceFieldAccess:
		e.traceFieldAccess(a)
	case ActionMarkFieldReachable:
		e.markFieldReachable(a)
	case ActionEnqueueClassInstantiated:
		e.enqueueClassInstantiated(a.Type)
	case ActionEnqueueInterfaceInstantiated:
		e.out.InstantiatedInterfaces.Add(a.Type)
		e.initializeClassChain(a.Type, true)
	case ActionEnqueueAnnotationInstantiated:
		e.out.InstantiatedAnnotations.Add(a.Type)
		e.out.LiveTypes.Add(a.Type)
	case ActionMarkMethodKept:
		e.out.KeptMethods.Add(a.Method)
		e.joinKeepInfo(keep.NodeID{Method: a.Method}, keep.Pinned(), a.Cause, a.Reason)
	case ActionMarkFieldKept:
		e.out.KeptFields.Add(a.Field)
		e.joinKeepInfo(keep.NodeID{Field: a.Field}, keep.Pinned(), a.Cause, a.Reason)
	}
}

func (e *Enqueuer) joinKeepInfo(id keep.NodeID, info keep.Info, cause keep.NodeID, reason keep.ReasonKind) {
	cur, ok := e.out.KeepInfo.Get(id)
	if !ok {
		cur = keep.Permissive()
	}
	e.out.KeepInfo.Set(id, cur.Join(info))
	e.out.KeptGraph.AddReason(cause, id, reason)
}

// markMethodLive implements "apply-minimum-keep-info-when-live": a
// method newly observed live always receives at least the permissive
// floor, then gets traced exactly once.
func (e *Enqueuer) markMethodLive(a Action) {
	if !e.out.LiveMethods.Add(a.Method) {
		return
	}
	e.out.TargetedMethods.Add(a.Method)
	// Invariant 2: every live method's holder is live.
	e.out.LiveTypes.Add(e.model.Context().MethodHolder(a.Method))
	cause := keep.NodeID{Method: a.Caller}
	e.out.KeptGraph.AddReason(cause, keep.NodeID{Method: a.Method}, a.Reason)
	if _, ok := e.out.KeepInfo.Get(keep.NodeID{Method: a.Method}); !ok {
		e.out.KeepInfo.Set(keep.NodeID{Method: a.Method}, keep.MinimumKeepInfoWhenLive())
	}
	e.traceCodeOfMethod(a.Method)
}

// markFieldReachable applies the instance-field reachability rule:
// a static field (or a field named directly by a fired
// conditional keep rule) is live the moment it is reached, but an
// instance field is only live once some instantiated class assignable
// to its holder exists -- mirroring transitionInstantiatedType's
// treatment of virtual dispatch targets.
func (e *Enqueuer) markFieldReachable(a Action) {
	switch a.FieldKind {
	case FieldAccessInstanceRead, FieldAccessInstanceWrite:
		e.markInstanceFieldReachable(a)
	default:
		e.promoteFieldLive(a)
	}
}

// markInstanceFieldReachable records a.Field as reachable on its
// declaring holder and, if some already-instantiated class is
// assignable to that holder, promotes it to live immediately.
func (e *Enqueuer) markInstanceFieldReachable(a Action) {
	holder := e.model.Context().FieldHolder(a.Field)
	set := e.out.ReachableInstanceFields.GetOrInsert(holder, func() *ordered.Set[appmodel.FieldRef] {
		return ordered.NewSet[appmodel.FieldRef]()
	})
	set.Add(a.Field)
	if e.out.LiveFields.Contains(a.Field) {
		return
	}
	for _, inst := range e.out.InstantiatedClasses.Items() {
		if e.isAssignable(inst, holder) {
			e.promoteFieldLive(a)
			return
		}
	}
}

func (e *Enqueuer) promoteFieldLive(a Action) {
	if !e.out.LiveFields.Add(a.Field) {
		return
	}
	e.out.LiveTypes.Add(e.model.Context().FieldHolder(a.Field))
	if _, ok := e.out.KeepInfo.Get(keep.NodeID{Field: a.Field}); !ok {
		e.out.KeepInfo.Set(keep.NodeID{Field: a.Field}, keep.MinimumKeepInfoWhenLive())
	}
	e.out.KeptGraph.AddReason(keep.NodeID{Method: a.Caller}, keep.NodeID{Field: a.Field}, a.Reason)
}

// transitionInstantiatedFields implements the field-reachability half of
// "Transitioning instantiated types to live virtual targets":
// when instantiated is newly observed instantiated, any field already
// recorded reachable on a holder that instantiated is assignable to
// becomes live.
func (e *Enqueuer) transitionInstantiatedFields(instantiated appmodel.Type) {
	for _, holder := range e.out.ReachableInstanceFields.Keys() {
		if !e.isAssignable(instantiated, holder) {
			continue
		}
		set, _ := e.out.ReachableInstanceFields.Get(holder)
		for _, field := range set.Items() {
			e.promoteFieldLive(Action{Field: field, Reason: keep.ReasonClassInstantiated})
		}
	}
}

// traceCodeOfMethod builds IR lazily and iterates each instruction once
// via a use registry that dispatches to the tracing actions below.
func (e *Enqueuer) traceCodeOfMethod(m appmodel.MethodRef) {
	if e.tracedMethods[m] {
		return
	}
	e.tracedMethods[m] = true

	class, ok := e.model.ClassDefinition(e.model.Context().MethodHolder(m))
	if !ok {
		e.recordMissing(e.model.Context().MethodHolder(m), m, resolve.SeverityError, "live method holder")
		return
	}
	method := class.LookupDeclaredMethod(e.model.Context(), e.model.Context().MethodName(m), e.model.Context().MethodProto(m))
	if method == nil || appmodel.IsAbstractOrNative(method.Flags) {
		return
	}
	for _, ann := range method.Annotations {
		e.work = append(e.work, Action{Kind: ActionEnqueueAnnotationInstantiated, Type: ann, Caller: m, Reason: keep.ReasonMethodLive})
	}
	if e.desug.NeedsDesugaring(method) {
		e.desug.Desugar(method, eventSink{e})
	}
	if !method.HasCode() {
		return
	}
	var f *ssa.Function
	if method.Code.Form == appmodel.FormSSA {
		body, ok := method.Code.IR.(*ssa.Function)
		if !ok {
			return
		}
		f = body
	} else {
		f = ssa.Build(m, method.Code)
		rewrite.Run(f, e.rewriteOpts)
		method.Code.Form = appmodel.FormSSA
		method.Code.IR = f
		method.Code.Raw = nil
	}

	holder := e.model.Context().MethodHolder(m)
	f.AllInstructions(func(_ *ssa.Block, instr ssa.Instruction) {
		e.traceInstruction(m, holder, instr)
	})
}

type eventSink struct{ e *Enqueuer }

func (s eventSink) Emit(ev keep.Event) {
	switch ev.Kind {
	case keep.EventClassInstantiated:
		s.e.work = append(s.e.work, Action{Kind: ActionEnqueueClassInstantiated, Type: ev.Class})
	case keep.EventMethodLive:
		s.e.work = append(s.e.work, Action{Kind: ActionMarkMethodLive, Method: ev.Method, Reason: keep.ReasonConditionalRule})
	case keep.EventFieldLive:
		s.e.work = append(s.e.work, Action{Kind: ActionMarkFieldReachable, Field: ev.Field, FieldKind: FieldAccessConditionalKeep, Reason: keep.ReasonConditionalRule})
	}
}

func (e *Enqueuer) recordMissing(t appmodel.Type, from appmodel.MethodRef, sev resolve.Severity, reason string) {
	e.out.MissingClasses.Record(resolve.MissingClassEntry{Type: t, Severity: sev, From: from, Reason: reason})
}

// freeze derives the summary collections that are functions of the
// final live/instantiated sets rather than of individual work items,
// then hands out the snapshot. After this returns the collections are
// never written again.
func (e *Enqueuer) freeze() *liveness.AppInfoWithLiveness {
	e.collectInitClassReferences()
	e.collectDeadProtoTypes()
	return e.out
}

// collectInitClassReferences records every initialized class that
// actually declares a static initializer with a code body: those are
// the classes whose <clinit>-triggering marker a later pass must keep
// even after every other reference to the class is gone.
func (e *Enqueuer) collectInitClassReferences() {
	record := func(t appmodel.Type) {
		class, ok := e.model.ClassDefinition(t)
		if !ok {
			return
		}
		for _, m := range class.DirectMethods {
			if m.Init == appmodel.StaticInitializer && m.HasCode() {
				e.out.InitClassReferences.Add(t)
				return
			}
		}
	}
	for _, t := range e.out.InitializedClasses.Items() {
		record(t)
	}
	for _, t := range e.out.DirectlyInitializedInterfaces.Items() {
		record(t)
	}
}

// collectDeadProtoTypes finds class types that only ever appeared in a
// signature position of a live method and were never themselves made
// live, instantiated, or reported missing: safe to strip from
// debug/signature metadata.
func (e *Enqueuer) collectDeadProtoTypes() {
	ctx := e.model.Context()
	seen := make(map[appmodel.Type]bool)
	consider := func(t appmodel.Type) {
		if seen[t] || ctx.Kind(t) != appmodel.TypeKindClass {
			return
		}
		seen[t] = true
		if e.out.LiveTypes.Contains(t) || e.out.InstantiatedClasses.Contains(t) ||
			e.out.InstantiatedInterfaces.Contains(t) || e.out.MissingClasses.Has(t) {
			return
		}
		e.out.DeadProtoTypes.Add(t)
	}
	for _, m := range e.out.LiveMethods.Items() {
		proto := ctx.MethodProto(m)
		for _, p := range proto.Params {
			consider(p)
		}
		consider(proto.Return)
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package liveness defines the enqueuer's frozen output snapshot, the
// `AppInfoWithLiveness`.
package liveness

import (
	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/internal/ordered"
	"github.com/saferwall/shrinkcore/keep"
	"github.com/saferwall/shrinkcore/resolve"
)

// AccessKind classifies one observed field/method access, recorded per
// field and per (caller, target) pair.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
	AccessReflective
	AccessFromMethodHandle
	AccessInvokeStatic
	AccessInvokeSuper
	AccessInvokeDirect
	AccessInvokeVirtual
	AccessInvokeInterface
)

// FieldAccessInfo aggregates every access kind observed for one field.
type FieldAccessInfo struct {
	Reads             int
	Writes            int
	ReflectiveAccess  bool
	FromMethodHandle  bool
}

// MethodAccessInfo records, for one (caller, target) pair, which invoke
// kinds were used to reach target from caller.
type MethodAccessInfo struct {
	Caller appmodel.MethodRef
	Target appmodel.MethodRef
	Kind   AccessKind
}

// InstantiationInfo records where a type was observed instantiated, for
// diagnostics and for re-running virtual dispatch enumeration when a new
// instantiation appears.
type InstantiationInfo struct {
	Type             appmodel.Type
	InstantiatingMethods []appmodel.MethodRef
}

// LambdaInstantiationInfo mirrors InstantiationInfo for lambda
// instances, keyed by the interface they implement.
type LambdaInstantiationInfo struct {
	Interface appmodel.Type
	Instances []resolve.LambdaInstance
}

// AppInfoWithLiveness is the immutable snapshot the enqueuer produces at
// termination. Every collection here was
// add-only while being built; once frozen it is never mutated again.
type AppInfoWithLiveness struct {
	LiveTypes              *ordered.Set[appmodel.Type]
	InstantiatedClasses    *ordered.Set[appmodel.Type]
	InstantiatedInterfaces *ordered.Set[appmodel.Type]
	InstantiatedAnnotations *ordered.Set[appmodel.Type]
	InitializedClasses     *ordered.Set[appmodel.Type]
	DirectlyInitializedInterfaces   *ordered.Set[appmodel.Type]
	IndirectlyInitializedInterfaces *ordered.Set[appmodel.Type]

	LiveMethods     *ordered.Set[appmodel.MethodRef]
	TargetedMethods *ordered.Set[appmodel.MethodRef]
	KeptMethods     *ordered.Set[appmodel.MethodRef]

	LiveFields      *ordered.Set[appmodel.FieldRef]
	ReachableInstanceFields *ordered.Map[appmodel.Type, *ordered.Set[appmodel.FieldRef]]
	KeptFields      *ordered.Set[appmodel.FieldRef]

	FieldAccess  *ordered.Map[appmodel.FieldRef, *FieldAccessInfo]
	MethodAccess []MethodAccessInfo

	Instantiation       *ordered.Map[appmodel.Type, *InstantiationInfo]
	LambdaInstantiation *ordered.Map[appmodel.Type, *LambdaInstantiationInfo]

	ReachableVirtualTargets *ordered.Map[ReachableVirtualTargetKey, *ordered.Set[CallingContext]]

	KeepInfo *ordered.Map[keep.NodeID, keep.Info]

	// LockCandidates are monitor-entered values whose static type is
	// known never subclassed with a conflicting lock discipline,
	// surfaced so a later pass may fold synchronized blocks.
	LockCandidates []appmodel.MethodRef

	// InitClassReferences names classes whose <clinit>-triggering
	// marker the rewriter must preserve even after every other
	// reference to the class is removed, so the platform still runs
	// side-effecting static initializers at the original point.
	InitClassReferences *ordered.Set[appmodel.Type]

	MissingClasses *resolve.MissingClassReport

	// DeadProtoTypes are types that appeared only in a signature (proto)
	// position and were never otherwise referenced, and are therefore
	// safe to drop from debug/signature metadata even though they are
	// not "live" in the reachability sense.
	DeadProtoTypes *ordered.Set[appmodel.Type]

	KeptGraph *keep.KeptGraph
}

// ReachableVirtualTargetKey is the enqueuer's per-interface bookkeeping
// key: `reachableVirtualTargets[H] : { (resolved-method-ref,
// is-interface-invoke) → set of calling contexts }`.
type ReachableVirtualTargetKey struct {
	Holder           appmodel.Type
	Method           appmodel.MethodRef
	IsInterfaceInvoke bool
}

// CallingContext identifies the method whose invoke instruction produced
// a reachable-virtual-target entry.
type CallingContext struct {
	Caller appmodel.MethodRef
}

// New returns an empty, not-yet-frozen AppInfoWithLiveness with every
// collection initialized, ready for the enqueuer to populate.
func New() *AppInfoWithLiveness {
	return &AppInfoWithLiveness{
		LiveTypes:                       ordered.NewSet[appmodel.Type](),
		InstantiatedClasses:             ordered.NewSet[appmodel.Type](),
		InstantiatedInterfaces:          ordered.NewSet[appmodel.Type](),
		InstantiatedAnnotations:         ordered.NewSet[appmodel.Type](),
		InitializedClasses:              ordered.NewSet[appmodel.Type](),
		DirectlyInitializedInterfaces:   ordered.NewSet[appmodel.Type](),
		IndirectlyInitializedInterfaces: ordered.NewSet[appmodel.Type](),
		LiveMethods:                     ordered.NewSet[appmodel.MethodRef](),
		TargetedMethods:                 ordered.NewSet[appmodel.MethodRef](),
		KeptMethods:                     ordered.NewSet[appmodel.MethodRef](),
		LiveFields:                      ordered.NewSet[appmodel.FieldRef](),
		ReachableInstanceFields:         ordered.NewMap[appmodel.Type, *ordered.Set[appmodel.FieldRef]](),
		KeptFields:                      ordered.NewSet[appmodel.FieldRef](),
		FieldAccess:                     ordered.NewMap[appmodel.FieldRef, *FieldAccessInfo](),
		Instantiation:                   ordered.NewMap[appmodel.Type, *InstantiationInfo](),
		LambdaInstantiation:             ordered.NewMap[appmodel.Type, *LambdaInstantiationInfo](),
		ReachableVirtualTargets:         ordered.NewMap[ReachableVirtualTargetKey, *ordered.Set[CallingContext]](),
		KeepInfo:                        ordered.NewMap[keep.NodeID, keep.Info](),
		InitClassReferences:             ordered.NewSet[appmodel.Type](),
		MissingClasses:                  resolve.NewMissingClassReport(),
		DeadProtoTypes:                  ordered.NewSet[appmodel.Type](),
		KeptGraph:                       keep.NewKeptGraph(),
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package desugar models the `DesugaringCollection` input: rewriting
// old-platform constructs (lambdas, default/static interface methods,
// try-with-resources closing sequences, ...) into forms the target
// platform API level actually supports, invoked by the enqueuer before
// a method is traced.
package desugar

import (
	"golang.org/x/mod/semver"

	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/keep"
)

// EventConsumer receives the enqueuer Events a desugaring rewrite
// implies (e.g. a lambda desugared into a companion class instantiates
// that class), so the collection never needs its own back-channel into
// the enqueuer's work list.
type EventConsumer interface {
	Emit(keep.Event)
}

// Collection is the DesugaringCollection contract.
type Collection interface {
	NeedsDesugaring(m *appmodel.MethodDef) bool
	Desugar(m *appmodel.MethodDef, events EventConsumer)
}

// Construct, a desugaring rule gated by the platform API level, mirrors
// Options.NeedsDesugaring: a construct needs rewriting whenever the
// build target is older than the level that construct first shipped
// natively on.
type Construct struct {
	Name            string
	IntroducedLevel string // semver, e.g. "v8.0.0"
	Needs           func(m *appmodel.MethodDef) bool
	Rewrite         func(m *appmodel.MethodDef, events EventConsumer)
}

// PlatformCollection is a Collection driven by a fixed list of
// Constructs and the two semver levels Options carries.
type PlatformCollection struct {
	TargetAPILevel string
	Constructs     []Construct
}

// NewPlatformCollection returns a Collection gating each construct by
// targetAPILevel.
func NewPlatformCollection(targetAPILevel string, constructs []Construct) *PlatformCollection {
	return &PlatformCollection{TargetAPILevel: targetAPILevel, Constructs: constructs}
}

func (p *PlatformCollection) applicable(c Construct) bool {
	if p.TargetAPILevel == "" || c.IntroducedLevel == "" {
		return true
	}
	return semver.Compare(p.TargetAPILevel, c.IntroducedLevel) < 0
}

func (p *PlatformCollection) NeedsDesugaring(m *appmodel.MethodDef) bool {
	for _, c := range p.Constructs {
		if p.applicable(c) && c.Needs != nil && c.Needs(m) {
			return true
		}
	}
	return false
}

func (p *PlatformCollection) Desugar(m *appmodel.MethodDef, events EventConsumer) {
	for _, c := range p.Constructs {
		if p.applicable(c) && c.Needs != nil && c.Needs(m) && c.Rewrite != nil {
			c.Rewrite(m, events)
		}
	}
}

// WellKnownConstructs returns the fixed construct list Run wires into a
// PlatformCollection by default. Each entry's IntroducedLevel is the
// platform API level the construct first shipped native support on,
// the same shape Options.NeedsDesugaring compares against.
func WellKnownConstructs() []Construct {
	return []Construct{
		{
			// A default/static interface method has no direct
			// counterpart on platform levels that predate interface
			// bodies; the method body must be pushed into a companion
			// class and every caller retargeted. Desugaring itself
			// happens at the bytecode-rewrite boundary this package
			// does not own (see DESIGN.md); this construct only
			// emits a method-live event for the method itself, so the
			// enqueuer does not prune it as unreachable.
			Name:            "interface-default-method",
			IntroducedLevel: "v24.0.0",
			Needs: func(m *appmodel.MethodDef) bool {
				return m.HasCode() && m.Flags.Has(appmodel.AccPublic) && m.Init == appmodel.NotInitializer
			},
			Rewrite: func(m *appmodel.MethodDef, events EventConsumer) {
				events.Emit(keep.Event{Kind: keep.EventMethodLive, Method: m.Ref})
			},
		},
		{
			// try-with-resources emits an invokevirtual on
			// AutoCloseable.close() guarded by a suppressed-exception
			// dance; platform levels lacking it need the helper
			// compiled in rather than relying on it already existing
			// in the bootclasspath.
			Name:            "try-with-resources-close-helper",
			IntroducedLevel: "v19.0.0",
			Needs: func(m *appmodel.MethodDef) bool {
				return m.HasCode() && m.Flags.Has(appmodel.AccSynthetic)
			},
			Rewrite: func(m *appmodel.MethodDef, events EventConsumer) {
				events.Emit(keep.Event{Kind: keep.EventMethodLive, Method: m.Ref})
			},
		},
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"testing"

	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/keep"
	"github.com/saferwall/shrinkcore/liveness"
)

// sideDoorAnalysis marks a fixed method live whenever its trigger class
// has been observed instantiated, re-emitting the same event at every
// fixed point to prove the hook's growth detection terminates anyway.
type sideDoorAnalysis struct {
	trigger appmodel.Type
	method  appmodel.MethodRef
	calls   int
}

func (a *sideDoorAnalysis) Name() string { return "side-door" }
func (a *sideDoorAnalysis) Pure() bool   { return true }

func (a *sideDoorAnalysis) AtFixedPoint(view *liveness.AppInfoWithLiveness, emit func(keep.Event)) {
	a.calls++
	if view.InstantiatedClasses.Contains(a.trigger) {
		emit(keep.Event{Kind: keep.EventMethodLive, Method: a.method})
	}
}

func TestRegisteredAnalysisRunsAtFixedPoint(t *testing.T) {
	ctx := appmodel.NewContext()
	p, run := buildDefaultMethodProgram(ctx)

	a := ctx.InternType("Lcom/app/A;")
	hook := ctx.InternMethod(ctx.InternType("Lcom/app/Hooks;"), "onA", voidProto(ctx))
	p.AddClass(&appmodel.ClassDef{
		Type:  ctx.InternType("Lcom/app/Hooks;"),
		Kind:  appmodel.ClassProgram,
		Super: ctx.InternType("Ljava/lang/Object;"),
		DirectMethods: []*appmodel.MethodDef{
			{Ref: hook, Flags: appmodel.AccPublic | appmodel.AccStatic, Code: returnVoidBody()},
		},
	})

	e := newEnqueuerOver(p, ctx, &keep.Configuration{Roots: []keep.RootEntry{{Method: run}}})
	analysis := &sideDoorAnalysis{trigger: a, method: hook}
	e.RegisterAnalysis(analysis)
	e.Seed()
	out := e.Run()

	if !out.LiveMethods.Contains(hook) {
		t.Errorf("expected the analysis-emitted method to end up live")
	}
	if analysis.calls < 2 {
		t.Errorf("expected the hook to run at more than one inner fixed point, ran %d times", analysis.calls)
	}
}

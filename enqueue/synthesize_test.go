// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"testing"

	"github.com/saferwall/shrinkcore/appmodel"
)

// TestRunDesugaringAndSynthesizeMintsCompanionMethod exercises the
// synthetic.Items wiring: a live interface default method gated by the
// desugaring collection should mint (and mark live) a companion
// forwarding method, not just emit a no-op event.
func TestRunDesugaringAndSynthesizeMintsCompanionMethod(t *testing.T) {
	ctx, p, e := buildReflectiveFixture()

	iface := ctx.InternType("Lcom/app/Greeter;")
	proto := appmodel.Proto{Return: ctx.InternType("V")}
	defaultMethod := ctx.InternMethod(iface, "greet", proto)
	p.AddClass(&appmodel.ClassDef{
		Type:  iface,
		Kind:  appmodel.ClassProgram,
		Flags: appmodel.AccInterface | appmodel.AccAbstract,
		VirtualMethods: []*appmodel.MethodDef{
			{Ref: defaultMethod, Flags: appmodel.AccPublic, Code: &appmodel.CodeBody{Form: appmodel.FormSSA}},
		},
	})

	e.out.LiveMethods.Add(defaultMethod)

	if grew := e.runDesugaringAndSynthesize(); !grew {
		t.Fatalf("expected desugaring a live default method to report growth")
	}
	if !e.synthesizedDefaults[defaultMethod] {
		t.Errorf("expected defaultMethod to be recorded as synthesized")
	}

	found := false
	for _, a := range e.work {
		if a.Kind == ActionMarkMethodLive && ctx.MethodName(a.Method) == "greet$default" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a companion forwarding method named \"greet$default\" to be marked live")
	}

	if grew := e.runDesugaringAndSynthesize(); grew {
		t.Errorf("expected a second call to report no growth once the method is already synthesized")
	}
}

func TestRunDesugaringAndSynthesizeSkipsNonInterfaceMethods(t *testing.T) {
	ctx, p, e := buildReflectiveFixture()

	class := ctx.InternType("Lcom/app/Concrete;")
	proto := appmodel.Proto{Return: ctx.InternType("V")}
	m := ctx.InternMethod(class, "run", proto)
	p.AddClass(&appmodel.ClassDef{
		Type: class,
		Kind: appmodel.ClassProgram,
		VirtualMethods: []*appmodel.MethodDef{
			{Ref: m, Flags: appmodel.AccPublic, Code: &appmodel.CodeBody{Form: appmodel.FormSSA}},
		},
	})
	e.out.LiveMethods.Add(m)

	if grew := e.runDesugaringAndSynthesize(); grew {
		t.Errorf("expected a plain class method to never be treated as needing interface-default desugaring")
	}
}

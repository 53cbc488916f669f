// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"testing"

	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/desugar"
	"github.com/saferwall/shrinkcore/keep"
	"github.com/saferwall/shrinkcore/resolve"
	"github.com/saferwall/shrinkcore/rewrite"
	"github.com/saferwall/shrinkcore/ssa"
	"github.com/saferwall/shrinkcore/synthetic"
)

// buildReflectiveFixture returns a tiny program with one class,
// "Lcom/app/Plugin;", that the tests below reflectively instantiate, plus
// the Enqueuer wired over it the way run.go wires a real one.
func buildReflectiveFixture() (*appmodel.Context, *appmodel.Program, *Enqueuer) {
	ctx := appmodel.NewContext()
	p := appmodel.NewProgram(ctx)

	object := ctx.InternType("Ljava/lang/Object;")
	p.AddClass(&appmodel.ClassDef{Type: object, Kind: appmodel.ClassLibrary})

	plugin := ctx.InternType("Lcom/app/Plugin;")
	initProto := appmodel.Proto{Return: ctx.InternType("V")}
	initRef := ctx.InternMethod(plugin, "<init>", initProto)
	p.AddClass(&appmodel.ClassDef{
		Type:  plugin,
		Kind:  appmodel.ClassProgram,
		Super: object,
		DirectMethods: []*appmodel.MethodDef{
			{Ref: initRef, Flags: appmodel.AccPublic, Init: appmodel.InstanceInitializer, Code: &appmodel.CodeBody{Form: appmodel.FormSSA}},
		},
	})

	resolver := resolve.New(p, nil)
	items := synthetic.NewDefaultItems(ctx, p)
	desug := desugar.NewPlatformCollection("v21.0.0", desugar.WellKnownConstructs())
	e := New(p, resolver, &keep.Configuration{}, items, desug, nil, rewrite.Options{})
	return ctx, p, e
}

func TestResolveClassForNameInstantiatesLiteral(t *testing.T) {
	ctx, _, e := buildReflectiveFixture()

	caller := ctx.InternMethod(ctx.InternType("Lcom/app/Main;"), "load", appmodel.Proto{Return: ctx.InternType("V")})
	forName := ctx.InternMethod(ctx.InternType("Ljava/lang/Class;"), "forName", appmodel.Proto{
		Params: []appmodel.Type{ctx.InternType("Ljava/lang/String;")},
		Return: ctx.InternType("Ljava/lang/Class;"),
	})
	inv := &ssa.Invoke{DispatchKind: ssa.InvokeStatic, Method: forName, Args: []ssa.Value{&ssa.Const{Str: "com.app.Plugin"}}}

	e.collectReflectiveUse(caller, inv)
	if len(e.reflective.pending) != 1 {
		t.Fatalf("expected one pending reflective use, got %d", len(e.reflective.pending))
	}
	if grew := e.processPendingReflectiveUses(); !grew {
		t.Fatalf("expected processPendingReflectiveUses to report growth")
	}

	plugin := ctx.InternType("Lcom/app/Plugin;")
	found := false
	for _, a := range e.work {
		if a.Kind == ActionEnqueueClassInstantiated && a.Type == plugin {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Class.forName(\"com.app.Plugin\") to enqueue an instantiation action for Plugin")
	}
	if len(e.reflective.pending) != 0 {
		t.Errorf("expected the pending use to be cleared after one resolution attempt")
	}
}

func TestCollectReflectiveUseIgnoresOrdinaryInvokes(t *testing.T) {
	ctx, _, e := buildReflectiveFixture()

	caller := ctx.InternMethod(ctx.InternType("Lcom/app/Main;"), "run", appmodel.Proto{Return: ctx.InternType("V")})
	ordinary := ctx.InternMethod(ctx.InternType("Lcom/app/Helper;"), "doWork", appmodel.Proto{Return: ctx.InternType("V")})
	inv := &ssa.Invoke{DispatchKind: ssa.InvokeStatic, Method: ordinary}

	e.collectReflectiveUse(caller, inv)
	if len(e.reflective.pending) != 0 {
		t.Errorf("expected an unrecognized invoke to be ignored, got %d pending", len(e.reflective.pending))
	}
}

func TestResolveProxyNewInstanceRecognizesLiteralArray(t *testing.T) {
	ctx, _, e := buildReflectiveFixture()
	plugin := ctx.InternType("Lcom/app/Plugin;")

	caller := ctx.InternMethod(ctx.InternType("Lcom/app/Main;"), "makeProxy", appmodel.Proto{Return: ctx.InternType("V")})
	na := &ssa.NewArray{ElemType: ctx.InternType("Ljava/lang/Class;"), Length: &ssa.Const{IsInt: true, Int: 1}}
	ap := &ssa.ArrayPut{Array: na, Index: &ssa.Const{IsInt: true, Int: 0}, Val: &ssa.Const{IsClass: true, Class: plugin}}
	*na.Referrers() = append(*na.Referrers(), ap)

	newProxyInstance := ctx.InternMethod(ctx.InternType("Ljava/lang/reflect/Proxy;"), "newProxyInstance", appmodel.Proto{Return: ctx.InternType("Ljava/lang/Object;")})
	loader := &ssa.Const{IsNull: true}
	inv := &ssa.Invoke{DispatchKind: ssa.InvokeStatic, Method: newProxyInstance, Args: []ssa.Value{loader, na}}

	if !e.resolveProxyNewInstance(pendingReflectiveUse{kind: ReflectiveProxyNewInstance, caller: caller, invoke: inv}) {
		t.Fatalf("expected the literal class array to resolve")
	}
	found := false
	for _, a := range e.work {
		if a.Kind == ActionEnqueueInterfaceInstantiated && a.Type == plugin {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Plugin to be marked interface-instantiated from the proxy array literal")
	}
}

func TestResolveProxyNewInstanceFallsThroughOnUnrecognizedShape(t *testing.T) {
	ctx, _, e := buildReflectiveFixture()

	caller := ctx.InternMethod(ctx.InternType("Lcom/app/Main;"), "makeProxy", appmodel.Proto{Return: ctx.InternType("V")})
	na := &ssa.NewArray{ElemType: ctx.InternType("Ljava/lang/Class;"), Length: &ssa.Const{IsInt: true, Int: 1}}
	newProxyInstance := ctx.InternMethod(ctx.InternType("Ljava/lang/reflect/Proxy;"), "newProxyInstance", appmodel.Proto{Return: ctx.InternType("Ljava/lang/Object;")})
	inv := &ssa.Invoke{DispatchKind: ssa.InvokeStatic, Method: newProxyInstance, Args: []ssa.Value{&ssa.Const{IsNull: true}, na}}

	if e.resolveProxyNewInstance(pendingReflectiveUse{kind: ReflectiveProxyNewInstance, caller: caller, invoke: inv}) {
		t.Errorf("expected an array with no literal class puts to be left unresolved")
	}
}

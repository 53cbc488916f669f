// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package resolve

import (
	"testing"

	"github.com/saferwall/shrinkcore/appmodel"
)

func buildSimpleHierarchy() (*appmodel.Context, *appmodel.Program) {
	ctx := appmodel.NewContext()
	p := appmodel.NewProgram(ctx)

	object := ctx.InternType("Ljava/lang/Object;")
	p.AddClass(&appmodel.ClassDef{Type: object, Kind: appmodel.ClassLibrary})

	base := ctx.InternType("Lcom/app/Base;")
	baseProto := appmodel.Proto{Return: ctx.InternType("V")}
	baseMethod := ctx.InternMethod(base, "greet", baseProto)
	p.AddClass(&appmodel.ClassDef{
		Type:  base,
		Kind:  appmodel.ClassProgram,
		Super: object,
		VirtualMethods: []*appmodel.MethodDef{
			{Ref: baseMethod, Flags: appmodel.AccPublic},
		},
	})

	derived := ctx.InternType("Lcom/app/Derived;")
	derivedMethod := ctx.InternMethod(derived, "greet", baseProto)
	p.AddClass(&appmodel.ClassDef{
		Type:  derived,
		Kind:  appmodel.ClassProgram,
		Super: base,
		VirtualMethods: []*appmodel.MethodDef{
			{Ref: derivedMethod, Flags: appmodel.AccPublic},
		},
	})

	return ctx, p
}

func TestResolveMethodFindsDeclaredOnSuperclass(t *testing.T) {
	ctx, p := buildSimpleHierarchy()
	r := New(p, nil)

	derived, _ := p.ClassDefinition(ctx.InternType("Lcom/app/Derived;"))
	symbolic := ctx.InternMethod(ctx.InternType("Lcom/app/Base;"), "greet", appmodel.Proto{Return: ctx.InternType("V")})

	res := r.ResolveMethod(symbolic, derived.Type)
	if res.Kind != ResultSingle {
		t.Fatalf("expected ResultSingle, got %v (failure=%v)", res.Kind, res.Failure)
	}
	if res.Holder != derived.Type {
		t.Errorf("expected resolution to land on the overriding Derived.greet, got holder %v", res.Holder)
	}
}

func TestResolveMethodNoSuchMethod(t *testing.T) {
	ctx, p := buildSimpleHierarchy()
	r := New(p, nil)

	base, _ := p.ClassDefinition(ctx.InternType("Lcom/app/Base;"))
	symbolic := ctx.InternMethod(base.Type, "missing", appmodel.Proto{Return: ctx.InternType("V")})

	res := r.ResolveMethod(symbolic, base.Type)
	if res.Kind != ResultFailed || res.Failure != FailureNoSuchMethod {
		t.Fatalf("expected no-such-method failure, got %+v", res)
	}
}

func TestResolveMethodClassNotFound(t *testing.T) {
	ctx := appmodel.NewContext()
	p := appmodel.NewProgram(ctx)
	r := New(p, nil)

	unknown := ctx.InternType("Lcom/app/Ghost;")
	symbolic := ctx.InternMethod(unknown, "m", appmodel.Proto{Return: ctx.InternType("V")})

	res := r.ResolveMethod(symbolic, unknown)
	if res.Kind != ResultFailed || res.Failure != FailureClassNotFound {
		t.Fatalf("expected class-not-found failure, got %+v", res)
	}
}

func TestResolveMethodArrayClone(t *testing.T) {
	ctx := appmodel.NewContext()
	p := appmodel.NewProgram(ctx)
	r := New(p, nil)

	arr := ctx.InternType("[Ljava/lang/String;")
	symbolic := ctx.InternMethod(arr, "clone", appmodel.Proto{Return: ctx.InternType("Ljava/lang/Object;")})

	res := r.ResolveMethod(symbolic, arr)
	if res.Kind != ResultArrayClone {
		t.Fatalf("expected array-clone result, got %+v", res)
	}
}

func TestResolveStaticRejectsInstanceMethod(t *testing.T) {
	ctx, p := buildSimpleHierarchy()
	r := New(p, nil)

	base, _ := p.ClassDefinition(ctx.InternType("Lcom/app/Base;"))
	symbolic := ctx.InternMethod(base.Type, "greet", appmodel.Proto{Return: ctx.InternType("V")})

	res := r.ResolveStatic(symbolic, base.Type)
	if res.Kind != ResultFailed || res.Failure != FailureIncompatibleClassChange {
		t.Fatalf("expected incompatible-class-change, got %+v", res)
	}
}

func TestMultipleMaximallySpecificDefaultsFail(t *testing.T) {
	ctx := appmodel.NewContext()
	p := appmodel.NewProgram(ctx)

	object := ctx.InternType("Ljava/lang/Object;")
	p.AddClass(&appmodel.ClassDef{Type: object, Kind: appmodel.ClassLibrary})

	proto := appmodel.Proto{Return: ctx.InternType("V")}

	ifaceA := ctx.InternType("Lcom/app/IA;")
	methodA := ctx.InternMethod(ifaceA, "m", proto)
	p.AddClass(&appmodel.ClassDef{
		Type:           ifaceA,
		Kind:           appmodel.ClassProgram,
		Flags:          appmodel.AccInterface,
		VirtualMethods: []*appmodel.MethodDef{{Ref: methodA, Flags: appmodel.AccPublic}},
	})

	ifaceB := ctx.InternType("Lcom/app/IB;")
	methodB := ctx.InternMethod(ifaceB, "m", proto)
	p.AddClass(&appmodel.ClassDef{
		Type:           ifaceB,
		Kind:           appmodel.ClassProgram,
		Flags:          appmodel.AccInterface,
		VirtualMethods: []*appmodel.MethodDef{{Ref: methodB, Flags: appmodel.AccPublic}},
	})

	impl := ctx.InternType("Lcom/app/Impl;")
	p.AddClass(&appmodel.ClassDef{
		Type:       impl,
		Kind:       appmodel.ClassProgram,
		Super:      object,
		Interfaces: []appmodel.Type{ifaceA, ifaceB},
	})

	r := New(p, nil)
	symbolic := ctx.InternMethod(ifaceA, "m", proto)
	res := r.ResolveMethod(symbolic, impl)
	if res.Kind != ResultFailed || res.Failure != FailureIncompatibleClassChange {
		t.Fatalf("expected incompatible-class-change for diamond defaults, got %+v", res)
	}
	if len(res.Contributors) != 2 {
		t.Errorf("expected 2 contributors recorded, got %d", len(res.Contributors))
	}
}

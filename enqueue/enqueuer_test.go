// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"reflect"
	"testing"

	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/desugar"
	"github.com/saferwall/shrinkcore/keep"
	"github.com/saferwall/shrinkcore/resolve"
	"github.com/saferwall/shrinkcore/rewrite"
	"github.com/saferwall/shrinkcore/synthetic"
)

// nopDesug reports nothing as needing desugaring, so end-to-end traces
// stay focused on the reachability semantics under test.
type nopDesug struct{}

func (nopDesug) NeedsDesugaring(*appmodel.MethodDef) bool            { return false }
func (nopDesug) Desugar(*appmodel.MethodDef, desugar.EventConsumer)  {}

func voidProto(ctx *appmodel.Context) appmodel.Proto {
	return appmodel.Proto{Return: ctx.InternType("V")}
}

func returnVoidBody() *appmodel.CodeBody {
	return &appmodel.CodeBody{
		Form:          appmodel.FormRaw,
		RegisterCount: 0,
		Raw:           []appmodel.RawInstruction{{Op: appmodel.OpReturnVoid}},
	}
}

func newEnqueuerOver(p *appmodel.Program, ctx *appmodel.Context, cfg *keep.Configuration) *Enqueuer {
	resolver := resolve.New(p, nil)
	items := synthetic.NewDefaultItems(ctx, p)
	return New(p, resolver, cfg, items, nopDesug{}, nil, rewrite.Options{})
}

// buildDefaultMethodProgram builds the default-method fixture: interface
// I { default void f(){} }, class A implements I, and a root method
// whose body runs new A().f().
func buildDefaultMethodProgram(ctx *appmodel.Context) (*appmodel.Program, appmodel.MethodRef) {
	p := appmodel.NewProgram(ctx)

	object := ctx.InternType("Ljava/lang/Object;")
	p.AddClass(&appmodel.ClassDef{Type: object, Kind: appmodel.ClassLibrary})

	iface := ctx.InternType("Lcom/app/I;")
	ifaceF := ctx.InternMethod(iface, "f", voidProto(ctx))
	p.AddClass(&appmodel.ClassDef{
		Type:  iface,
		Kind:  appmodel.ClassProgram,
		Flags: appmodel.AccInterface | appmodel.AccAbstract,
		VirtualMethods: []*appmodel.MethodDef{
			{Ref: ifaceF, Flags: appmodel.AccPublic, Code: returnVoidBody()},
		},
	})

	a := ctx.InternType("Lcom/app/A;")
	aInit := ctx.InternMethod(a, "<init>", voidProto(ctx))
	p.AddClass(&appmodel.ClassDef{
		Type:       a,
		Kind:       appmodel.ClassProgram,
		Super:      object,
		Interfaces: []appmodel.Type{iface},
		DirectMethods: []*appmodel.MethodDef{
			{Ref: aInit, Flags: appmodel.AccPublic, Init: appmodel.InstanceInitializer, Code: returnVoidBody()},
		},
	})

	main := ctx.InternType("Lcom/app/Main;")
	run := ctx.InternMethod(main, "run", voidProto(ctx))
	p.AddClass(&appmodel.ClassDef{
		Type:  main,
		Kind:  appmodel.ClassProgram,
		Super: object,
		DirectMethods: []*appmodel.MethodDef{
			{Ref: run, Flags: appmodel.AccPublic | appmodel.AccStatic, Code: &appmodel.CodeBody{
				Form:          appmodel.FormRaw,
				RegisterCount: 1,
				Raw: []appmodel.RawInstruction{
					{Op: appmodel.OpNewInstance, Type: a, Registers: []int32{0}},
					{Op: appmodel.OpInvokeDirect, Method: aInit, Registers: []int32{0}},
					{Op: appmodel.OpInvokeInterface, Method: ifaceF, Registers: []int32{0}},
					{Op: appmodel.OpReturnVoid},
				},
			}},
		},
	})
	return p, run
}

func TestTraceInterfaceDefaultMethodWithUnusedOverrideSlot(t *testing.T) {
	ctx := appmodel.NewContext()
	p, run := buildDefaultMethodProgram(ctx)

	e := newEnqueuerOver(p, ctx, &keep.Configuration{Roots: []keep.RootEntry{{Method: run}}})
	e.Seed()
	out := e.Run()

	iface := ctx.InternType("Lcom/app/I;")
	a := ctx.InternType("Lcom/app/A;")
	ifaceF := ctx.InternMethod(iface, "f", voidProto(ctx))
	aInit := ctx.InternMethod(a, "<init>", voidProto(ctx))

	if !out.InstantiatedClasses.Contains(a) {
		t.Errorf("expected A to be instantiated")
	}
	if !out.LiveTypes.Contains(iface) {
		t.Errorf("expected I to be live")
	}
	if !out.LiveMethods.Contains(ifaceF) {
		t.Errorf("expected the inherited default I.f to be live")
	}
	if !out.LiveMethods.Contains(aInit) {
		t.Errorf("expected A.<init> to be live")
	}
	// A declares no f of its own; nothing named f on A may appear live.
	af := ctx.InternMethod(a, "f", voidProto(ctx))
	if out.LiveMethods.Contains(af) {
		t.Errorf("A.f does not exist and must not be live")
	}
}

// TestVirtualDispatchNarrowsToInstantiatedReceiver checks that a call
// through B.g with only C instantiated makes C.g the sole live
// target; the symbolic B.g stays targeted but not live.
func TestVirtualDispatchNarrowsToInstantiatedReceiver(t *testing.T) {
	ctx := appmodel.NewContext()
	p := appmodel.NewProgram(ctx)

	object := ctx.InternType("Ljava/lang/Object;")
	p.AddClass(&appmodel.ClassDef{Type: object, Kind: appmodel.ClassLibrary})

	b := ctx.InternType("Lcom/app/B;")
	bG := ctx.InternMethod(b, "g", voidProto(ctx))
	p.AddClass(&appmodel.ClassDef{
		Type:  b,
		Kind:  appmodel.ClassProgram,
		Super: object,
		VirtualMethods: []*appmodel.MethodDef{
			{Ref: bG, Flags: appmodel.AccPublic, Code: returnVoidBody()},
		},
	})

	c := ctx.InternType("Lcom/app/C;")
	cG := ctx.InternMethod(c, "g", voidProto(ctx))
	cInit := ctx.InternMethod(c, "<init>", voidProto(ctx))
	p.AddClass(&appmodel.ClassDef{
		Type:  c,
		Kind:  appmodel.ClassProgram,
		Super: b,
		VirtualMethods: []*appmodel.MethodDef{
			{Ref: cG, Flags: appmodel.AccPublic, Code: returnVoidBody()},
		},
		DirectMethods: []*appmodel.MethodDef{
			{Ref: cInit, Flags: appmodel.AccPublic, Init: appmodel.InstanceInitializer, Code: returnVoidBody()},
		},
	})

	main := ctx.InternType("Lcom/app/Main;")
	call := ctx.InternMethod(main, "call", voidProto(ctx))
	p.AddClass(&appmodel.ClassDef{
		Type:  main,
		Kind:  appmodel.ClassProgram,
		Super: object,
		DirectMethods: []*appmodel.MethodDef{
			{Ref: call, Flags: appmodel.AccPublic | appmodel.AccStatic, Code: &appmodel.CodeBody{
				Form:          appmodel.FormRaw,
				RegisterCount: 1,
				Raw: []appmodel.RawInstruction{
					{Op: appmodel.OpNewInstance, Type: c, Registers: []int32{0}},
					{Op: appmodel.OpInvokeDirect, Method: cInit, Registers: []int32{0}},
					{Op: appmodel.OpInvokeVirtual, Method: bG, Registers: []int32{0}},
					{Op: appmodel.OpReturnVoid},
				},
			}},
		},
	})

	e := newEnqueuerOver(p, ctx, &keep.Configuration{Roots: []keep.RootEntry{{Method: call}}})
	e.Seed()
	out := e.Run()

	if !out.LiveMethods.Contains(cG) {
		t.Errorf("expected the override C.g to be the live dispatch target")
	}
	if out.LiveMethods.Contains(bG) {
		t.Errorf("expected B.g to stay dead with only C instantiated")
	}
	if !out.TargetedMethods.Contains(bG) {
		t.Errorf("expected the symbolic B.g to remain targeted")
	}
}

// TestReflectiveNewInstanceEndToEnd checks that
// Class.forName("X") with the string known at the call site makes X
// instantiated, its default initializer live, and its keep-info
// optimization-disallowed -- all through the full fixed-point loop, not
// a direct call into the reflective resolver.
func TestReflectiveNewInstanceEndToEnd(t *testing.T) {
	ctx := appmodel.NewContext()
	p := appmodel.NewProgram(ctx)

	object := ctx.InternType("Ljava/lang/Object;")
	p.AddClass(&appmodel.ClassDef{Type: object, Kind: appmodel.ClassLibrary})

	plugin := ctx.InternType("Lcom/app/Plugin;")
	pluginInit := ctx.InternMethod(plugin, "<init>", voidProto(ctx))
	p.AddClass(&appmodel.ClassDef{
		Type:  plugin,
		Kind:  appmodel.ClassProgram,
		Super: object,
		DirectMethods: []*appmodel.MethodDef{
			{Ref: pluginInit, Flags: appmodel.AccPublic, Init: appmodel.InstanceInitializer, Code: returnVoidBody()},
		},
	})

	forName := ctx.InternMethod(ctx.InternType("Ljava/lang/Class;"), "forName", appmodel.Proto{
		Params: []appmodel.Type{ctx.InternType("Ljava/lang/String;")},
		Return: ctx.InternType("Ljava/lang/Class;"),
	})

	main := ctx.InternType("Lcom/app/Main;")
	load := ctx.InternMethod(main, "load", voidProto(ctx))
	p.AddClass(&appmodel.ClassDef{
		Type:  main,
		Kind:  appmodel.ClassProgram,
		Super: object,
		DirectMethods: []*appmodel.MethodDef{
			{Ref: load, Flags: appmodel.AccPublic | appmodel.AccStatic, Code: &appmodel.CodeBody{
				Form:          appmodel.FormRaw,
				RegisterCount: 1,
				Raw: []appmodel.RawInstruction{
					{Op: appmodel.OpConstString, Registers: []int32{0}, StringOperand: "com.app.Plugin"},
					{Op: appmodel.OpInvokeStatic, Method: forName, Registers: []int32{0}},
					{Op: appmodel.OpReturnVoid},
				},
			}},
		},
	})

	e := newEnqueuerOver(p, ctx, &keep.Configuration{Roots: []keep.RootEntry{{Method: load}}})
	e.Seed()
	out := e.Run()

	if !out.InstantiatedClasses.Contains(plugin) {
		t.Errorf("expected Plugin to be instantiated via Class.forName")
	}
	if !out.LiveMethods.Contains(pluginInit) {
		t.Errorf("expected Plugin's default initializer to be live")
	}
	info, ok := out.KeepInfo.Get(keep.NodeID{Class: plugin})
	if !ok {
		t.Fatalf("expected keep-info to be recorded for Plugin")
	}
	if info.MayOptimize {
		t.Errorf("expected Plugin's keep-info to be optimization-disallowed")
	}
}

// TestFixedPointIsIdempotent is the idempotence property: running
// the reachability fixed point twice over the same inputs yields
// identical summaries, here compared by enumeration order of the live
// sets (the collections are insertion-ordered, so equal enumeration
// means equal construction).
func TestFixedPointIsIdempotent(t *testing.T) {
	summarize := func() ([]string, []string) {
		ctx := appmodel.NewContext()
		p, run := buildDefaultMethodProgram(ctx)
		e := newEnqueuerOver(p, ctx, &keep.Configuration{Roots: []keep.RootEntry{{Method: run}}})
		e.Seed()
		out := e.Run()
		var methods, types []string
		for _, m := range out.LiveMethods.Items() {
			methods = append(methods, ctx.Descriptor(ctx.MethodHolder(m))+ctx.MethodName(m))
		}
		for _, ty := range out.LiveTypes.Items() {
			types = append(types, ctx.Descriptor(ty))
		}
		return methods, types
	}

	m1, t1 := summarize()
	m2, t2 := summarize()
	if !reflect.DeepEqual(m1, m2) {
		t.Errorf("live-method enumeration differs across runs:\n%v\n%v", m1, m2)
	}
	if !reflect.DeepEqual(t1, t2) {
		t.Errorf("live-type enumeration differs across runs:\n%v\n%v", t1, t2)
	}
}

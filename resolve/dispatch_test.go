// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package resolve

import (
	"testing"

	"github.com/saferwall/shrinkcore/appmodel"
)

// fixedOracle answers dispatch enumeration from a fixed instantiated
// set, standing in for the enqueuer's live bookkeeping.
type fixedOracle struct {
	subs []appmodel.Type
}

func (o fixedOracle) InstantiatedSubclasses(appmodel.Type) []appmodel.Type { return o.subs }
func (o fixedOracle) LambdaInstances(appmodel.Type) []LambdaInstance       { return nil }
func (o fixedOracle) MayHaveMissedSubtypes(appmodel.Type) bool             { return false }

type noPins struct{}

func (noPins) ClassPinned(appmodel.Type) bool       { return false }
func (noPins) MethodPinned(appmodel.MethodRef) bool { return false }

// TestDiamondDefaultResolvesToMostSpecificOverride pins the diamond
// case: interface A declares a default m; B extends A with no override;
// C extends A overriding m; D extends B, C. Resolving D.m must land on
// C.m alone -- A's inherited default is shadowed by C's override, not a
// rival contributor.
func TestDiamondDefaultResolvesToMostSpecificOverride(t *testing.T) {
	ctx := appmodel.NewContext()
	p := appmodel.NewProgram(ctx)
	proto := appmodel.Proto{Return: ctx.InternType("V")}

	a := ctx.InternType("Lcom/app/A;")
	aM := ctx.InternMethod(a, "m", proto)
	p.AddClass(&appmodel.ClassDef{
		Type:           a,
		Kind:           appmodel.ClassProgram,
		Flags:          appmodel.AccInterface,
		VirtualMethods: []*appmodel.MethodDef{{Ref: aM, Flags: appmodel.AccPublic}},
	})

	b := ctx.InternType("Lcom/app/B;")
	p.AddClass(&appmodel.ClassDef{
		Type:       b,
		Kind:       appmodel.ClassProgram,
		Flags:      appmodel.AccInterface,
		Interfaces: []appmodel.Type{a},
	})

	c := ctx.InternType("Lcom/app/C;")
	cM := ctx.InternMethod(c, "m", proto)
	p.AddClass(&appmodel.ClassDef{
		Type:           c,
		Kind:           appmodel.ClassProgram,
		Flags:          appmodel.AccInterface,
		Interfaces:     []appmodel.Type{a},
		VirtualMethods: []*appmodel.MethodDef{{Ref: cM, Flags: appmodel.AccPublic}},
	})

	d := ctx.InternType("Lcom/app/D;")
	p.AddClass(&appmodel.ClassDef{
		Type:       d,
		Kind:       appmodel.ClassProgram,
		Flags:      appmodel.AccInterface,
		Interfaces: []appmodel.Type{b, c},
	})

	r := New(p, nil)
	symbolic := ctx.InternMethod(d, "m", proto)
	res := r.ResolveMethod(symbolic, d)
	if res.Kind != ResultSingle {
		t.Fatalf("expected a single resolution for the diamond, got %+v", res)
	}
	if res.Holder != c {
		t.Errorf("expected resolution to land on C's override, got holder %v", res.Holder)
	}
}

// TestSingleReceiverLookupCrossPackagePackagePrivate pins the widening
// boundary behavior: a package-private method declared on the receiver
// in a different package than the resolved method's holder does not
// override it; the walk must continue upward, land on the resolved
// holder's public method, and record the blocked candidate as an
// access-override pair.
func TestSingleReceiverLookupCrossPackagePackagePrivate(t *testing.T) {
	ctx := appmodel.NewContext()
	p := appmodel.NewProgram(ctx)
	proto := appmodel.Proto{Return: ctx.InternType("V")}

	object := ctx.InternType("Ljava/lang/Object;")
	p.AddClass(&appmodel.ClassDef{Type: object, Kind: appmodel.ClassLibrary})

	base := ctx.InternType("Lpkga/Base;")
	baseG := ctx.InternMethod(base, "g", proto)
	p.AddClass(&appmodel.ClassDef{
		Type:           base,
		Kind:           appmodel.ClassProgram,
		Super:          object,
		VirtualMethods: []*appmodel.MethodDef{{Ref: baseG, Flags: appmodel.AccPublic}},
	})

	sub := ctx.InternType("Lpkgb/Sub;")
	subG := ctx.InternMethod(sub, "g", proto)
	p.AddClass(&appmodel.ClassDef{
		Type:           sub,
		Kind:           appmodel.ClassProgram,
		Super:          base,
		VirtualMethods: []*appmodel.MethodDef{{Ref: subG}}, // package-private
	})

	r := New(p, nil)
	res := r.ResolveMethod(baseG, base)
	if res.Kind != ResultSingle || res.Holder != base {
		t.Fatalf("expected Base.g to resolve on Base, got %+v", res)
	}

	dispatch := r.EnumerateVirtualDispatch(res, false, fixedOracle{subs: []appmodel.Type{sub}}, noPins{})

	var plainHolders []appmodel.Type
	pairRecorded := false
	for _, target := range dispatch.Targets {
		if target.AccessOverridePair {
			if target.Holder != sub || target.WideningHolder != base {
				t.Errorf("access-override pair should record blocked Sub.g widened by Base, got holder %v widening %v", target.Holder, target.WideningHolder)
			}
			pairRecorded = true
			continue
		}
		plainHolders = append(plainHolders, target.Holder)
	}
	if len(plainHolders) != 1 || plainHolders[0] != base {
		t.Errorf("expected Base.g to be the sole plain dispatch target, got holders %v", plainHolders)
	}
	if !pairRecorded {
		t.Errorf("expected the cross-package package-private candidate to surface as an access-override pair")
	}
}

// TestSingleReceiverLookupSamePackagePackagePrivateOverrides is the
// counterpart: when the receiver's package-private method lives in the
// same package as the resolved holder, it does override, and no
// access-override pair is involved.
func TestSingleReceiverLookupSamePackagePackagePrivateOverrides(t *testing.T) {
	ctx := appmodel.NewContext()
	p := appmodel.NewProgram(ctx)
	proto := appmodel.Proto{Return: ctx.InternType("V")}

	object := ctx.InternType("Ljava/lang/Object;")
	p.AddClass(&appmodel.ClassDef{Type: object, Kind: appmodel.ClassLibrary})

	base := ctx.InternType("Lpkga/Base;")
	baseG := ctx.InternMethod(base, "g", proto)
	p.AddClass(&appmodel.ClassDef{
		Type:           base,
		Kind:           appmodel.ClassProgram,
		Super:          object,
		VirtualMethods: []*appmodel.MethodDef{{Ref: baseG}}, // package-private
	})

	sub := ctx.InternType("Lpkga/Sub;")
	subG := ctx.InternMethod(sub, "g", proto)
	p.AddClass(&appmodel.ClassDef{
		Type:           sub,
		Kind:           appmodel.ClassProgram,
		Super:          base,
		VirtualMethods: []*appmodel.MethodDef{{Ref: subG}}, // package-private, same package
	})

	r := New(p, nil)
	res := r.ResolveMethod(baseG, base)
	if res.Kind != ResultSingle {
		t.Fatalf("expected Base.g to resolve, got %+v", res)
	}

	dispatch := r.EnumerateVirtualDispatch(res, false, fixedOracle{subs: []appmodel.Type{sub}}, noPins{})
	if len(dispatch.Targets) != 1 {
		t.Fatalf("expected exactly one dispatch target, got %d", len(dispatch.Targets))
	}
	target := dispatch.Targets[0]
	if target.Holder != sub || target.AccessOverridePair {
		t.Errorf("expected Sub.g to override within the same package, got holder %v (pair=%v)", target.Holder, target.AccessOverridePair)
	}
}

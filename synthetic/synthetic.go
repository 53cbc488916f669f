// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package synthetic models the `SyntheticItems` input: a factory
// able to mint new program classes for lambda/inner-method closures,
// bridges, and helper companions, so the enqueuer never has to know how
// a particular platform lowers those constructs.
package synthetic

import "github.com/saferwall/shrinkcore/appmodel"

// Items is the SyntheticItems contract. The enqueuer calls
// EnsureMethodOfCompanionClass and similar mint methods and expects a
// fresh program class/method reference back every time, or the same one
// if it was already minted for this (holder, purpose) pair.
type Items interface {
	// EnsureMethodOfCompanionClass returns (minting if absent) the
	// method on holder's companion class that implements the given
	// lambda/bridge purpose.
	EnsureMethodOfCompanionClass(holder appmodel.Type, purpose string, proto appmodel.Proto) appmodel.MethodRef
	// EnsureFixedArgumentsForwardingMethod returns (minting if absent) a
	// bridge for holder that forwards to target with arguments adapted to
	// proto. DefaultItems mints it as a public, non-static method of
	// holder's companion class.
	EnsureFixedArgumentsForwardingMethod(holder appmodel.Type, target appmodel.MethodRef, proto appmodel.Proto) appmodel.MethodRef
	// IsSyntheticMethod reports whether m was minted by this factory.
	IsSyntheticMethod(m appmodel.MethodRef) bool
}

// companionKey identifies one (holder, purpose) request so repeated
// requests for logically the same synthetic method return the same
// handle: synthetic items are only ever appended, never duplicated
// per call site.
type companionKey struct {
	holder  appmodel.Type
	purpose string
	proto   string
}

// DefaultItems is a minimal, in-memory SyntheticItems implementation
// sufficient to drive tests end to end: it mints one companion class per
// holder (suffixed "$$Synthetic") the first time any purpose is
// requested against it, and one method per distinct purpose thereafter.
type DefaultItems struct {
	ctx     *appmodel.Context
	program *appmodel.Program

	companionOf map[appmodel.Type]appmodel.Type
	methods     map[companionKey]appmodel.MethodRef
	synthetic   map[appmodel.MethodRef]bool
}

// NewDefaultItems returns a DefaultItems that mints companion classes
// into program.
func NewDefaultItems(ctx *appmodel.Context, program *appmodel.Program) *DefaultItems {
	return &DefaultItems{
		ctx:         ctx,
		program:     program,
		companionOf: make(map[appmodel.Type]appmodel.Type),
		methods:     make(map[companionKey]appmodel.MethodRef),
		synthetic:   make(map[appmodel.MethodRef]bool),
	}
}

func (d *DefaultItems) companionClass(holder appmodel.Type) appmodel.Type {
	if c, ok := d.companionOf[holder]; ok {
		return c
	}
	descriptor := d.ctx.Descriptor(holder)
	name := descriptor[:len(descriptor)-1] + "$$Synthetic;"
	companion := d.ctx.InternType(name)
	d.program.AddClass(&appmodel.ClassDef{
		Type:  companion,
		Kind:  appmodel.ClassProgram,
		Super: d.ctx.InternType("Ljava/lang/Object;"),
		Flags: appmodel.AccSynthetic | appmodel.AccFinal,
	})
	d.companionOf[holder] = companion
	return companion
}

func (d *DefaultItems) EnsureMethodOfCompanionClass(holder appmodel.Type, purpose string, proto appmodel.Proto) appmodel.MethodRef {
	key := companionKey{holder: holder, purpose: purpose, proto: proto.Key()}
	if m, ok := d.methods[key]; ok {
		return m
	}
	companion := d.companionClass(holder)
	m := d.ctx.InternMethod(companion, purpose, proto)
	d.appendMethod(companion, m)
	d.methods[key] = m
	d.synthetic[m] = true
	return m
}

func (d *DefaultItems) EnsureFixedArgumentsForwardingMethod(holder appmodel.Type, target appmodel.MethodRef, proto appmodel.Proto) appmodel.MethodRef {
	purpose := "forward$" + d.ctx.MethodName(target)
	return d.EnsureMethodOfCompanionClass(holder, purpose, proto)
}

func (d *DefaultItems) IsSyntheticMethod(m appmodel.MethodRef) bool { return d.synthetic[m] }

func (d *DefaultItems) appendMethod(companion appmodel.Type, m appmodel.MethodRef) {
	class, ok := d.program.ClassDefinition(companion)
	if !ok {
		return
	}
	class.VirtualMethods = append(class.VirtualMethods, &appmodel.MethodDef{
		Ref:   m,
		Flags: appmodel.AccPublic | appmodel.AccSynthetic,
	})
}

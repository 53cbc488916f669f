// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/keep"
)

// runDesugaringAndSynthesize is the last-resort fixed-point step:
// a live interface default method that the desugar.Collection reports as
// needing desugaring needs
// a companion-class forwarding method minted before any of its callers
// can be retargeted, and that minting itself can make new code live (the
// companion method's body is traced the same as any other), so it only
// runs once every cheaper source of growth -- the work list, conditional
// rules, reflective uses -- is exhausted.
func (e *Enqueuer) runDesugaringAndSynthesize() bool {
	grew := false
	for _, m := range e.out.LiveMethods.Items() {
		if e.synthesizedDefaults[m] {
			continue
		}
		holder := e.model.Context().MethodHolder(m)
		class, ok := e.model.ClassDefinition(holder)
		if !ok || !class.IsInterface() {
			continue
		}
		method := e.findVirtualMethod(class, m)
		if method == nil || !method.HasCode() || method.IsAbstract() {
			continue
		}
		if !e.desug.NeedsDesugaring(method) {
			continue
		}
		e.synthesizedDefaults[m] = true

		proto := e.model.Context().MethodProto(m)
		companion := e.items.EnsureMethodOfCompanionClass(holder, e.model.Context().MethodName(m)+"$default", proto)
		e.work = append(e.work, Action{Kind: ActionMarkMethodLive, Method: companion, Caller: m, Reason: keep.ReasonConditionalRule})
		grew = true
	}
	return grew
}

// findVirtualMethod returns the MethodDef on class matching ref, or nil.
// Unlike ClassDef.LookupDeclaredMethod (which searches by name+proto), it
// matches the already-interned ref directly since the enqueuer always
// holds one by the time it calls this.
func (e *Enqueuer) findVirtualMethod(class *appmodel.ClassDef, ref appmodel.MethodRef) *appmodel.MethodDef {
	for _, m := range class.VirtualMethods {
		if m.Ref == ref {
			return m
		}
	}
	for _, m := range class.DirectMethods {
		if m.Ref == ref {
			return m
		}
	}
	return nil
}

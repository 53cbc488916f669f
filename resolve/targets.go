// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package resolve

import "github.com/saferwall/shrinkcore/appmodel"

// InvokeContext carries the caller-side facts the special/super/static/
// direct target procedures need beyond the symbolic reference itself.
type InvokeContext struct {
	// CallerHolder is the class containing the invoke instruction.
	CallerHolder appmodel.Type
	// SymbolicSuper is true if M names a non-interface super of
	// CallerHolder.
	SymbolicSuper bool
}

// ResolveSpecialOrSuper computes the invoke-special/invoke-super
// target.
func (r *Resolver) ResolveSpecialOrSuper(m appmodel.MethodRef, ic InvokeContext) Result {
	symbolicHolder := r.ctx.MethodHolder(m)

	if !r.accessible(m, ic.CallerHolder) {
		return failed(FailureIllegalAccess)
	}

	start := symbolicHolder
	// "if the symbolic reference is a non-interface super of the
	// caller's holder and the resolved method is not an initializer,
	// start at the caller holder's immediate superclass; otherwise
	// start at the symbolic reference itself."
	if ic.SymbolicSuper {
		callerClass, ok := r.model.ClassDefinition(ic.CallerHolder)
		if ok && !callerClass.IsInterface() && callerClass.Super.IsValid() {
			name := r.ctx.MethodName(m)
			if name != "<init>" {
				start = callerClass.Super
			}
		}
	}

	res := r.resolveMethodUncached(m, start)
	if res.Kind != ResultSingle {
		return res
	}

	// Abort cases.
	if res.Method.IsStatic() {
		return failed(FailureIncompatibleClassChange, res.Method.Ref)
	}
	if res.Method.Init == appmodel.InstanceInitializer && res.Holder != symbolicHolder {
		return failed(FailureNoSuchMethod, res.Method.Ref)
	}
	if res.Method.IsPrivate() && res.Holder != symbolicHolder {
		return failed(FailureNoSuchMethod, res.Method.Ref)
	}
	if res.Method.IsAbstract() {
		return failed(FailureNoSuchMethod, res.Method.Ref)
	}
	return res
}

// ResolveStatic computes the invoke-static target: resolve
// M normally, then require the target be static.
func (r *Resolver) ResolveStatic(m appmodel.MethodRef, callerHolder appmodel.Type) Result {
	if !r.accessible(m, callerHolder) {
		return failed(FailureIllegalAccess)
	}
	res := r.ResolveMethod(m, r.ctx.MethodHolder(m))
	if res.Kind != ResultSingle {
		return res
	}
	if !res.Method.IsStatic() {
		return failed(FailureIncompatibleClassChange, res.Method.Ref)
	}
	return res
}

// ResolveDirect computes the invoke-direct target: resolve
// M normally, then require the target be direct (private or an
// initializer).
func (r *Resolver) ResolveDirect(m appmodel.MethodRef, callerHolder appmodel.Type) Result {
	if !r.accessible(m, callerHolder) {
		return failed(FailureIllegalAccess)
	}
	res := r.ResolveMethod(m, r.ctx.MethodHolder(m))
	if res.Kind != ResultSingle {
		return res
	}
	if !res.Method.IsPrivate() && res.Method.Init == appmodel.NotInitializer {
		return failed(FailureIncompatibleClassChange, res.Method.Ref)
	}
	return res
}

// accessible runs the nest-membership-respecting accessibility check
// performed before every special/super/static/direct
// resolution. It is intentionally permissive for anything not
// private/package-private: this module never denies access across a
// public/protected boundary, only across a private or package boundary
// without nest membership.
func (r *Resolver) accessible(m appmodel.MethodRef, fromHolder appmodel.Type) bool {
	holder := r.ctx.MethodHolder(m)
	class, ok := r.model.ClassDefinition(holder)
	if !ok {
		return true // class-not-found is reported by resolution itself
	}
	target := class.LookupDeclaredMethod(r.ctx, r.ctx.MethodName(m), r.ctx.MethodProto(m))
	if target == nil {
		return true
	}
	if target.IsPrivate() {
		if p, ok := r.model.(*appmodel.Program); ok {
			return appmodel.IsNestMate(p, holder, fromHolder)
		}
		return holder == fromHolder
	}
	if target.Flags.IsPackagePrivate() {
		return appmodel.SamePackage(r.ctx, holder, fromHolder)
	}
	return true
}

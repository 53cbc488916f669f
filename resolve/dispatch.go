// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package resolve

import "github.com/saferwall/shrinkcore/appmodel"

// InstantiatedSubtypeOracle answers, for a given type, which concrete
// subclasses are known instantiated and which lambda instances implement
// it. The enqueuer
// owns the actual instantiated-set bookkeeping; this interface is
// the seam that lets the resolver stay a pure function of whatever
// snapshot the caller passes in.
type InstantiatedSubtypeOracle interface {
	// InstantiatedSubclasses returns every instantiated class known to
	// be assignable to holder.
	InstantiatedSubclasses(holder appmodel.Type) []appmodel.Type
	// LambdaInstances returns every lambda instance implementing the
	// functional interface holder, along with its SAM method and
	// concrete implementation method.
	LambdaInstances(holder appmodel.Type) []LambdaInstance
	// MayHaveMissedSubtypes reports whether the oracle's view of holder
	// is known-incomplete (e.g. an open-world classpath boundary).
	MayHaveMissedSubtypes(holder appmodel.Type) bool
}

// PinnedPredicate reports whether a class or method is externally
// pinned (kept) and therefore must be assumed to have unknown,
// non-enumerable overrides.
type PinnedPredicate interface {
	ClassPinned(t appmodel.Type) bool
	MethodPinned(m appmodel.MethodRef) bool
}

// LambdaInstance is one lambda/method-reference implementing a
// functional interface.
type LambdaInstance struct {
	SAMMethod  appmodel.MethodRef
	ImplMethod appmodel.MethodRef
	ImplHolder appmodel.Type
}

// DispatchTarget is one concrete or lambda target yielded by virtual
// dispatch enumeration.
type DispatchTarget struct {
	IsLambda   bool
	Holder     appmodel.Type
	Method     *appmodel.MethodDef
	LambdaImpl LambdaInstance

	// AccessOverridePair is set when this target was reached through a
	// widening-override (a package-private-blocked candidate resolved
	// by searching upward for a public/protected same-name method).
	AccessOverridePair bool
	WideningHolder     appmodel.Type
}

// DispatchResult is the output of virtual dispatch enumeration: every
// reachable concrete/lambda target plus a completeness flag.
type DispatchResult struct {
	Targets    []DispatchTarget
	Complete   bool
}

// EnumerateVirtualDispatch enumerates the concrete runtime targets of
// a virtual invocation over a resolved method.
func (r *Resolver) EnumerateVirtualDispatch(resolved Result, isInterfaceInvoke bool, oracle InstantiatedSubtypeOracle, pinned PinnedPredicate) DispatchResult {
	if resolved.Kind != ResultSingle {
		return DispatchResult{Complete: true}
	}
	method := resolved.Method
	holder := resolved.Holder

	if method.IsPrivate() {
		complete := !(pinned.ClassPinned(holder) && pinned.MethodPinned(method.Ref))
		return DispatchResult{
			Targets:  []DispatchTarget{{Holder: holder, Method: method}},
			Complete: complete,
		}
	}

	out := DispatchResult{Complete: true}
	name := r.ctx.MethodName(method.Ref)
	proto := r.ctx.MethodProto(method.Ref)

	for _, sub := range oracle.InstantiatedSubclasses(holder) {
		targets, complete := r.singleReceiverLookup(sub, holder, name, proto, pinned)
		out.Targets = append(out.Targets, targets...)
		if !complete {
			out.Complete = false
		}
	}
	if oracle.MayHaveMissedSubtypes(holder) {
		out.Complete = false
	}

	for _, lam := range oracle.LambdaInstances(holder) {
		if lam.SAMMethod == method.Ref {
			implClass, ok := r.model.ClassDefinition(lam.ImplHolder)
			var implMethod *appmodel.MethodDef
			if ok {
				implMethod = implClass.LookupDeclaredMethod(r.ctx, name, proto)
			}
			if implMethod == nil {
				implMethod = &appmodel.MethodDef{Ref: lam.ImplMethod}
			}
			out.Targets = append(out.Targets, DispatchTarget{
				IsLambda:   true,
				Holder:     lam.ImplHolder,
				Method:     implMethod,
				LambdaImpl: lam,
			})
			continue
		}
		// Maximally-specific dispatch via the implemented interfaces
		// for a lambda whose primary SAM does not directly match.
		iface, ok := r.model.ClassDefinition(holder)
		if !ok {
			continue
		}
		candidates := r.maximallySpecificDefaults(iface, name, proto, map[appmodel.Type]bool{})
		res := r.resolveFromCandidates(candidates)
		if res.Kind == ResultSingle {
			out.Targets = append(out.Targets, DispatchTarget{IsLambda: true, Holder: res.Holder, Method: res.Method, LambdaImpl: lam})
		}
	}

	out.Targets = append(out.Targets, r.overrideInclusionExtras(holder, name, proto)...)
	return out
}

// singleReceiverLookup walks up sub's class chain looking for a
// class-declared override of (name, proto), applying the
// package-private widening rule. resolvedHolder is the declaring class
// of the resolved symbolic method: a package-private candidate only
// overrides when it lives in that class's package, so the comparison
// reference must be the resolved holder, never the receiver class
// being walked.
func (r *Resolver) singleReceiverLookup(sub, resolvedHolder appmodel.Type, name string, proto appmodel.Proto, pinned PinnedPredicate) ([]DispatchTarget, bool) {
	complete := true
	cur, ok := r.model.ClassDefinition(sub)
	if !ok {
		return nil, true
	}
	resolvedHolderPkg := appmodel.PackageName(r.ctx, resolvedHolder)

	var blocked *appmodel.MethodDef
	var blockedHolder appmodel.Type
	for cur != nil {
		if pinned.ClassPinned(cur.Type) {
			complete = false
		}
		if m := cur.LookupDeclaredMethod(r.ctx, name, proto); m != nil {
			overrides := m.Flags.Has(appmodel.AccPublic) || m.Flags.Has(appmodel.AccProtected) ||
				(m.Flags.IsPackagePrivate() && appmodel.PackageName(r.ctx, cur.Type) == resolvedHolderPkg)
			if overrides {
				if blocked != nil {
					return []DispatchTarget{
						{Holder: cur.Type, Method: m},
						{Holder: blockedHolder, Method: blocked, AccessOverridePair: true, WideningHolder: cur.Type},
					}, complete
				}
				return []DispatchTarget{{Holder: cur.Type, Method: m}}, complete
			}
			// package-private-blocked candidate: keep searching upward
			// for a widening override.
			if blocked == nil {
				blocked = m
				blockedHolder = cur.Type
			}
		}
		if !cur.Super.IsValid() {
			break
		}
		next, ok := r.model.ClassDefinition(cur.Super)
		if !ok {
			complete = false
			break
		}
		cur = next
	}

	if cur != nil && cur.IsInterface() {
		candidates := r.maximallySpecificDefaults(cur, name, proto, map[appmodel.Type]bool{})
		res := r.resolveFromCandidates(candidates)
		if res.Kind == ResultSingle {
			return []DispatchTarget{{Holder: res.Holder, Method: res.Method}}, complete
		}
	}
	if blocked != nil {
		return []DispatchTarget{{Holder: blockedHolder, Method: blocked}}, complete
	}
	return nil, complete
}

// overrideInclusionExtras implements override-inclusion
// policy: for interface holders, default methods and non-abstract
// bridge methods are always added so synthetic lambdas that do not
// override them still resolve.
func (r *Resolver) overrideInclusionExtras(holder appmodel.Type, name string, proto appmodel.Proto) []DispatchTarget {
	class, ok := r.model.ClassDefinition(holder)
	if !ok || !class.IsInterface() {
		return nil
	}
	var extras []DispatchTarget
	candidates := r.filterMaximallySpecific(r.maximallySpecificDefaults(class, name, proto, map[appmodel.Type]bool{}))
	for _, c := range candidates {
		if !c.method.IsAbstract() {
			extras = append(extras, DispatchTarget{Holder: c.holder, Method: c.method})
		}
	}
	for _, m := range class.VirtualMethods {
		if m.IsBridge() && !m.IsAbstract() && r.ctx.MethodName(m.Ref) == name && r.ctx.MethodProto(m.Ref).Key() == proto.Key() {
			extras = append(extras, DispatchTarget{Holder: holder, Method: m})
		}
	}
	return extras
}

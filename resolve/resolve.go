// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package resolve

import (
	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/log"
)

// Resolver models platform method lookup over an immutable app model. resolve
// is a pure function of that model, so
// Resolver memoizes every call. The memo is a plain map with no locking,
// so a Resolver is not safe for concurrent use.
type Resolver struct {
	model  appmodel.AppModel
	ctx    *appmodel.Context
	logger *log.Helper

	cache map[methodCacheKey]Result
}

type methodCacheKey struct {
	method appmodel.MethodRef
	holder appmodel.Type
}

// New returns a Resolver over model.
func New(model appmodel.AppModel, logger *log.Helper) *Resolver {
	if logger == nil {
		logger = log.NewHelper(log.NewFilter(log.NewStdLogger(nopWriter{}), log.FilterLevel(log.LevelError)))
	}
	return &Resolver{
		model:  model,
		ctx:    model.Context(),
		logger: logger,
		cache:  make(map[methodCacheKey]Result),
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// ResolveMethod runs the platform method-resolution algorithm for
// symbolic reference m, starting the search at holder H.
func (r *Resolver) ResolveMethod(m appmodel.MethodRef, holder appmodel.Type) Result {
	key := methodCacheKey{method: m, holder: holder}
	if cached, ok := r.cache[key]; ok {
		return cached
	}
	res := r.resolveMethodUncached(m, holder)
	r.cache[key] = res
	return res
}

func (r *Resolver) resolveMethodUncached(m appmodel.MethodRef, holder appmodel.Type) Result {
	// Array clone is a special result, never a single resolution.
	if r.ctx.IsArray(holder) && r.ctx.MethodName(m) == "clone" && len(r.ctx.MethodProto(m).Params) == 0 {
		return arrayClone(holder)
	}

	class, ok := r.model.ClassDefinition(holder)
	if !ok {
		return failed(FailureClassNotFound)
	}

	name := r.ctx.MethodName(m)
	proto := r.ctx.MethodProto(m)

	if class.IsInterface() {
		return r.resolveInterfaceMethod(class, name, proto)
	}

	// Step 2: search H and each superclass.
	cur := class
	for {
		if declared := cur.LookupDeclaredMethod(r.ctx, name, proto); declared != nil {
			origin := originOf(cur.Kind)
			return single(cur.Type, declared, origin)
		}
		if !cur.Super.IsValid() {
			break
		}
		next, ok := r.model.ClassDefinition(cur.Super)
		if !ok {
			return failed(FailureClassNotFound)
		}
		cur = next
	}

	// Not found on any superclass: fall back to default-method search
	// across implemented interfaces (mirrors an interface holder's
	// maximally-specific-default search, but for a class hierarchy that
	// never declared the method itself -- e.g. an inherited default).
	if res, ok := r.resolveDefaultAcrossInterfaces(class, name, proto); ok {
		return res
	}
	return failed(FailureNoSuchMethod)
}

func originOf(kind appmodel.ClassKind) Origin {
	switch kind {
	case appmodel.ClassProgram:
		return OriginProgram
	case appmodel.ClassPath:
		return OriginClasspath
	default:
		return OriginLibrary
	}
}

// resolveInterfaceMethod implements step 2's interface-holder branch:
// search directly declared methods, then recursively maximally-specific
// default methods among superinterfaces.
func (r *Resolver) resolveInterfaceMethod(iface *appmodel.ClassDef, name string, proto appmodel.Proto) Result {
	if declared := iface.LookupDeclaredMethod(r.ctx, name, proto); declared != nil {
		return single(iface.Type, declared, originOf(iface.Kind))
	}
	candidates := r.maximallySpecificDefaults(iface, name, proto, map[appmodel.Type]bool{})
	return r.resolveFromCandidates(candidates)
}

func (r *Resolver) resolveDefaultAcrossInterfaces(class *appmodel.ClassDef, name string, proto appmodel.Proto) (Result, bool) {
	var candidates []candidate
	visited := map[appmodel.Type]bool{}
	walkClass := func(c *appmodel.ClassDef) {
		for _, it := range c.Interfaces {
			iface, ok := r.model.ClassDefinition(it)
			if !ok || visited[it] {
				continue
			}
			candidates = append(candidates, r.maximallySpecificDefaults(iface, name, proto, visited)...)
		}
	}
	walkClass(class)
	if p, ok := r.model.(*appmodel.Program); ok {
		p.SuperclassChain(class, func(c *appmodel.ClassDef) bool {
			walkClass(c)
			return true
		})
	}
	if len(candidates) == 0 {
		return Result{}, false
	}
	return r.resolveFromCandidates(candidates), true
}

type candidate struct {
	holder appmodel.Type
	method *appmodel.MethodDef
}

// maximallySpecificDefaults collects every interface method reachable
// from iface matching name+proto, stopping each branch at the first
// declaration it finds. The collection is raw: a declaration inherited
// through one branch may be shadowed by an override collected through
// another, so consumers must narrow it via filterMaximallySpecific
// (resolveFromCandidates does) before tie-breaking.
func (r *Resolver) maximallySpecificDefaults(iface *appmodel.ClassDef, name string, proto appmodel.Proto, visited map[appmodel.Type]bool) []candidate {
	if visited[iface.Type] {
		return nil
	}
	visited[iface.Type] = true

	var out []candidate
	if m := iface.LookupDeclaredMethod(r.ctx, name, proto); m != nil {
		out = append(out, candidate{holder: iface.Type, method: m})
	} else {
		for _, super := range iface.Interfaces {
			superIface, ok := r.model.ClassDefinition(super)
			if !ok {
				continue
			}
			out = append(out, r.maximallySpecificDefaults(superIface, name, proto, visited)...)
		}
	}
	return out
}

// filterMaximallySpecific reduces a raw candidate collection to the
// maximally-specific ones: a candidate declared on an interface that is
// a proper superinterface of another candidate's declaring interface is
// shadowed by the more-derived declaration and must not participate in
// tie-breaking. Without this, a diamond like B extends A, C extends A
// (C overriding A's default), D extends B, C would surface both A's
// inherited default and C's override as rivals instead of resolving to
// C alone. Duplicate sightings of one holder collapse to the first.
func (r *Resolver) filterMaximallySpecific(candidates []candidate) []candidate {
	if len(candidates) < 2 {
		return candidates
	}
	out := make([]candidate, 0, len(candidates))
	seen := make(map[appmodel.Type]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.holder] {
			continue
		}
		seen[c.holder] = true
		shadowed := false
		for _, o := range candidates {
			if o.holder == c.holder {
				continue
			}
			if r.extendsInterface(o.holder, c.holder) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			out = append(out, c)
		}
	}
	return out
}

// extendsInterface reports whether sub is a proper sub-interface of
// super, following the transitive Interfaces links.
func (r *Resolver) extendsInterface(sub, super appmodel.Type) bool {
	if sub == super {
		return false
	}
	return r.reachesInterface(sub, super, map[appmodel.Type]bool{})
}

func (r *Resolver) reachesInterface(from, target appmodel.Type, visited map[appmodel.Type]bool) bool {
	if visited[from] {
		return false
	}
	visited[from] = true
	class, ok := r.model.ClassDefinition(from)
	if !ok {
		return false
	}
	for _, it := range class.Interfaces {
		if it == target || r.reachesInterface(it, target, visited) {
			return true
		}
	}
	return false
}

// resolveFromCandidates applies step 3's tie-break rules once every
// candidate has been collected and narrowed to the maximally-specific
// set.
func (r *Resolver) resolveFromCandidates(candidates []candidate) Result {
	if len(candidates) == 0 {
		return failed(FailureNoSuchMethod)
	}
	candidates = r.filterMaximallySpecific(candidates)
	var nonAbstract []candidate
	var abstractOnly []candidate
	for _, c := range candidates {
		if c.method.IsAbstract() {
			abstractOnly = append(abstractOnly, c)
		} else {
			nonAbstract = append(nonAbstract, c)
		}
	}
	switch {
	case len(nonAbstract) == 1:
		c := nonAbstract[0]
		return single(c.holder, c.method, OriginProgram)
	case len(nonAbstract) > 1:
		// Two or more maximally-specific non-abstract defaults: fail
		// incompatible-class-change with every contributor recorded.
		refs := make([]appmodel.MethodRef, len(nonAbstract))
		for i, c := range nonAbstract {
			refs[i] = c.method.Ref
		}
		return failed(FailureIncompatibleClassChange, refs...)
	default:
		// Only abstract defaults: succeed with one, chosen
		// deterministically (lowest type handle, stable given a fixed
		// interning order).
		best := abstractOnly[0]
		for _, c := range abstractOnly[1:] {
			if c.holder.Less(best.holder) {
				best = c
			}
		}
		return single(best.holder, best.method, OriginProgram)
	}
}

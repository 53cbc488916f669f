// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/internal/ordered"
	"github.com/saferwall/shrinkcore/liveness"
	"github.com/saferwall/shrinkcore/resolve"
)

func newCallingContextSet() *ordered.Set[liveness.CallingContext] {
	return ordered.NewSet[liveness.CallingContext]()
}

// The Enqueuer itself serves as both the InstantiatedSubtypeOracle and
// the PinnedPredicate the resolver's virtual-dispatch enumeration needs
//, since it already owns the instantiated-type and
// pinned-entity bookkeeping those interfaces read.

func (e *Enqueuer) InstantiatedSubclasses(holder appmodel.Type) []appmodel.Type {
	var out []appmodel.Type
	for _, t := range e.out.InstantiatedClasses.Items() {
		if e.isAssignable(t, holder) {
			out = append(out, t)
		}
	}
	return out
}

func (e *Enqueuer) LambdaInstances(holder appmodel.Type) []resolve.LambdaInstance {
	info, ok := e.out.LambdaInstantiation.Get(holder)
	if !ok {
		return nil
	}
	return info.Instances
}

func (e *Enqueuer) MayHaveMissedSubtypes(holder appmodel.Type) bool {
	class, ok := e.model.ClassDefinition(holder)
	if !ok {
		return true
	}
	return class.Kind == appmodel.ClassLibrary
}

func (e *Enqueuer) ClassPinned(t appmodel.Type) bool { return e.pinnedClasses[t] }

func (e *Enqueuer) MethodPinned(m appmodel.MethodRef) bool { return e.pinnedMethods[m] }

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/keep"
)

// conditionalFireKey memoizes which (fingerprint, class) pairs have
// already fired their consequents, since a rule's antecedent need only
// be applied once per matching class.
type conditionalFireKey struct {
	fp    keep.ClassFingerprint
	class appmodel.Type
}

// evaluateActiveConditionalRules applies the conditional keep rules:
// every distinct antecedent fingerprint is rechecked
// against every program class once per call, and on a match its
// consequents are enqueued. It returns whether anything new was
// enqueued, so Run's fixed-point loop can tell progress from
// stagnation.
func (e *Enqueuer) evaluateActiveConditionalRules() bool {
	if e.keepCfg == nil || len(e.keepCfg.Conditional) == 0 {
		return false
	}
	grew := false
	for _, group := range e.keepCfg.RulesForFingerprint() {
		fp := group.Fingerprint
		for _, class := range e.model.ProgramClasses() {
			if e.firedConditional[conditionalFireKey{fp, class.Type}] {
				continue
			}
			if !fp.Matches(e.model.Context(), class, e.isAssignable) {
				continue
			}
			e.firedConditional[conditionalFireKey{fp, class.Type}] = true
			for _, rule := range group.Rules {
				e.enqueueConsequent(rule.Consequent)
				grew = true
			}
		}
	}
	return grew
}

func (e *Enqueuer) enqueueConsequent(entry keep.RootEntry) {
	switch {
	case entry.Method.IsValid():
		e.work = append(e.work, Action{Kind: ActionMarkMethodLive, Method: entry.Method, Reason: keep.ReasonConditionalRule})
		e.work = append(e.work, Action{Kind: ActionMarkMethodKept, Method: entry.Method, Reason: keep.ReasonConditionalRule})
	case entry.Field.IsValid():
		e.work = append(e.work, Action{Kind: ActionMarkFieldKept, Field: entry.Field, Reason: keep.ReasonConditionalRule})
	case entry.Class.IsValid():
		e.pinnedClasses[entry.Class] = true
		e.work = append(e.work, Action{Kind: ActionEnqueueClassInstantiated, Type: entry.Class, Reason: keep.ReasonConditionalRule})
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package keep

import "github.com/saferwall/shrinkcore/appmodel"

// EventKind is the enqueuer-event precondition tag: it defers
// application of a keep-info joiner until its precondition fires.
type EventKind uint8

const (
	EventUnconditional EventKind = iota
	EventClassLive
	EventClassInstantiated
	EventMethodLive
	EventFieldLive
)

// Event pairs an EventKind with the entity it is conditioned on, named
// by Class, Method or Field according to Kind.
type Event struct {
	Kind    EventKind
	Class   appmodel.Type
	Method  appmodel.MethodRef
	Field   appmodel.FieldRef
}

// RootEntry seeds the enqueuer's root set: an entity (class, method, or
// field) to keep, the Info to apply, and the precondition under which to
// apply it.
type RootEntry struct {
	Class  appmodel.Type    // invalid if Method/Field below names the entity
	Method appmodel.MethodRef
	Field  appmodel.FieldRef

	Info  Info
	Event Event
}

// ConditionalRule is "if X matches then keep Y": when the live/instantiated set grows, Antecedent is
// rechecked against every live/instantiated class; on a match,
// Consequent is enqueued with Info applied.
type ConditionalRule struct {
	Antecedent ClassFingerprint
	Consequent RootEntry
}

// ClassFingerprint is the canonical, equivalence-grouped shape a
// conditional rule's antecedent is indexed by. Two rules with the same fingerprint are
// evaluated together exactly once per candidate class.
type ClassFingerprint struct {
	// ExtendsOrImplements is the supertype the antecedent requires a
	// candidate class to extend or implement; invalid means "any class."
	ExtendsOrImplements appmodel.Type
	// AnnotatedWith is the annotation type the candidate must carry;
	// invalid means no annotation requirement.
	AnnotatedWith appmodel.Type
	// NamePattern is a glob-style name filter ("" matches everything),
	// applied to the candidate's binary name.
	NamePattern string
}

// Matches reports whether fp's conditions hold for class c.
func (fp ClassFingerprint) Matches(ctx *appmodel.Context, c *appmodel.ClassDef, isSuper func(sub, super appmodel.Type) bool) bool {
	if fp.ExtendsOrImplements.IsValid() {
		if c.Type != fp.ExtendsOrImplements && !isSuper(c.Type, fp.ExtendsOrImplements) {
			return false
		}
	}
	if fp.AnnotatedWith.IsValid() {
		found := false
		for _, a := range c.Annotations {
			if a == fp.AnnotatedWith {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if fp.NamePattern != "" {
		if !globMatch(fp.NamePattern, appmodel.BinaryName(ctx, c.Type)) {
			return false
		}
	}
	return true
}

// globMatch implements the small subset of glob syntax keep rules need:
// '*' matches any run of characters, everything else is literal.
func globMatch(pattern, s string) bool {
	return globMatchAt(pattern, s)
}

func globMatchAt(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	if pattern[0] == '*' {
		if globMatchAt(pattern[1:], s) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if globMatchAt(pattern[1:], s[i+1:]) {
				return true
			}
		}
		return pattern[1:] == ""
	}
	if s == "" || s[0] != pattern[0] {
		return false
	}
	return globMatchAt(pattern[1:], s[1:])
}

// Configuration is the parsed `KeepConfiguration` input: a root set
// plus the conditional rules that may grow it as tracing proceeds.
type Configuration struct {
	Roots      []RootEntry
	Conditional []ConditionalRule
}

// FingerprintGroup is one equivalence class of conditional rules: every
// rule whose antecedent shares Fingerprint, evaluated together exactly
// once per candidate class.
type FingerprintGroup struct {
	Fingerprint ClassFingerprint
	Rules       []ConditionalRule
}

// RulesForFingerprint groups conditional rules sharing an identical
// fingerprint, so the enqueuer evaluates each distinct antecedent shape
// once per candidate class rather than once per rule. Groups come back
// in first-appearance order, never map-iteration order, so re-evaluation
// walks antecedents deterministically run to run.
func (c *Configuration) RulesForFingerprint() []FingerprintGroup {
	index := make(map[ClassFingerprint]int)
	var out []FingerprintGroup
	for _, r := range c.Conditional {
		i, ok := index[r.Antecedent]
		if !ok {
			i = len(out)
			index[r.Antecedent] = i
			out = append(out, FingerprintGroup{Fingerprint: r.Antecedent})
		}
		out[i].Rules = append(out[i].Rules, r)
	}
	return out
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package resolve

import "github.com/saferwall/shrinkcore/appmodel"

// Severity buckets a missing-class reference by how badly its absence
// undermines closed-world reasoning, mirroring the info/warn/error
// anomaly tiers this codebase's PE anomaly reporting uses even though
// resolution itself only ever needs "error or warning, decided by the
// caller."
type Severity uint8

const (
	// SeverityInfo is a reference from a keep rule or other best-effort
	// context: missing is expected and does not affect soundness.
	SeverityInfo Severity = iota
	// SeverityWarn is a reference from a library override or supertype
	// of a library class: missing may make dispatch enumeration
	// incomplete but does not affect program classes.
	SeverityWarn
	// SeverityError is a reference from a live program method body:
	// missing means the enqueuer cannot soundly trace further.
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MissingClassEntry records one observation of a reference to a type
// with no known class definition.
type MissingClassEntry struct {
	Type     appmodel.Type
	Severity Severity
	// From is the program method whose body or keep rule referenced
	// Type, invalid if the reference came from outside any method (a
	// supertype link on another class, for instance).
	From appmodel.MethodRef
	// Reason is a short human-readable description of where the
	// reference came from, for diagnostics.
	Reason string
}

// MissingClassReport accumulates every missing-class observation made
// while resolving references against an app model. The enqueuer
// and resolver both write into one shared report so a single build
// produces one coherent diagnostic surface instead of scattered errors.
type MissingClassReport struct {
	entries []MissingClassEntry
	seen    map[appmodel.Type]bool
}

// NewMissingClassReport returns an empty report.
func NewMissingClassReport() *MissingClassReport {
	return &MissingClassReport{seen: make(map[appmodel.Type]bool)}
}

// Record appends an observation. Repeated Type values are not merged:
// each sighting stays a separate entry with its own Severity and Reason,
// and WorstSeverity looks across all of them.
func (r *MissingClassReport) Record(e MissingClassEntry) {
	r.entries = append(r.entries, e)
	r.seen[e.Type] = true
}

// Has reports whether t was ever recorded missing.
func (r *MissingClassReport) Has(t appmodel.Type) bool { return r.seen[t] }

// Entries returns every recorded observation, in recording order.
func (r *MissingClassReport) Entries() []MissingClassEntry {
	return append([]MissingClassEntry(nil), r.entries...)
}

// WorstSeverity returns the highest severity recorded across every
// entry, or SeverityInfo if the report is empty.
func (r *MissingClassReport) WorstSeverity() Severity {
	worst := SeverityInfo
	for _, e := range r.entries {
		if e.Severity > worst {
			worst = e.Severity
		}
	}
	return worst
}

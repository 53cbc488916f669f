// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package keep

import (
	"fmt"
	"io"
	"strings"

	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/internal/ordered"
)

// ReasonKind names why an entity was kept, mirroring the enqueuer's
// work-item vocabulary so a KeptGraph edge always traces
// back to an actual tracing action rather than an opaque label.
type ReasonKind uint8

const (
	ReasonRoot ReasonKind = iota
	ReasonMethodLive
	ReasonFieldLive
	ReasonClassInstantiated
	ReasonSuperinterfaceOfLive
	ReasonConditionalRule
)

func (k ReasonKind) String() string {
	switch k {
	case ReasonRoot:
		return "root"
	case ReasonMethodLive:
		return "method-live"
	case ReasonFieldLive:
		return "field-live"
	case ReasonClassInstantiated:
		return "class-instantiated"
	case ReasonSuperinterfaceOfLive:
		return "superinterface-of-live"
	case ReasonConditionalRule:
		return "conditional-rule"
	default:
		return "unknown"
	}
}

// NodeID identifies one entity in the graph: a class, method, or field,
// distinguished by which handle is valid.
type NodeID struct {
	Class  appmodel.Type
	Method appmodel.MethodRef
	Field  appmodel.FieldRef
}

func (n NodeID) label(ctx *appmodel.Context) string {
	switch {
	case n.Method.IsValid():
		return fmt.Sprintf("%s.%s", ctx.Descriptor(ctx.MethodHolder(n.Method)), ctx.MethodName(n.Method))
	case n.Field.IsValid():
		return fmt.Sprintf("%s.%s", ctx.Descriptor(ctx.FieldHolder(n.Field)), ctx.FieldName(n.Field))
	default:
		return ctx.Descriptor(n.Class)
	}
}

// IsValid reports whether n names any entity at all.
func (n NodeID) IsValid() bool {
	return n.Class.IsValid() || n.Method.IsValid() || n.Field.IsValid()
}

// Edge records one keep dependency: To was kept because of From, for
// Reason.
type Edge struct {
	From, To NodeID
	Reason   ReasonKind
}

// KeptGraph is the optional output: for each retained entity, the
// chain of keep reasons leading to it. It is a plain DAG over NodeID,
// built incrementally as the enqueuer records reasons, using
// insertion-ordered collections so that two builds of the same program
// emit byte-identical DOT output.
type KeptGraph struct {
	nodes *ordered.Set[NodeID]
	edges []Edge
	byTo  map[NodeID][]Edge
}

// NewKeptGraph returns an empty graph.
func NewKeptGraph() *KeptGraph {
	return &KeptGraph{
		nodes: ordered.NewSet[NodeID](),
		byTo:  make(map[NodeID][]Edge),
	}
}

// AddReason records that entity was kept because of cause, for reason.
// An unconditional root has an invalid cause.
func (g *KeptGraph) AddReason(cause, entity NodeID, reason ReasonKind) {
	g.nodes.Add(entity)
	if cause.IsValid() {
		g.nodes.Add(cause)
	}
	e := Edge{From: cause, To: entity, Reason: reason}
	g.edges = append(g.edges, e)
	g.byTo[entity] = append(g.byTo[entity], e)
}

// ReasonsFor returns every recorded reason entity was kept, in the order
// they were recorded.
func (g *KeptGraph) ReasonsFor(entity NodeID) []Edge {
	return append([]Edge(nil), g.byTo[entity]...)
}

// WriteDOT renders the graph in Graphviz DOT format. Node identifiers are
// derived from each NodeID's position in the insertion-ordered node set,
// so output is stable across runs given the same trace.
func (g *KeptGraph) WriteDOT(w io.Writer, ctx *appmodel.Context) error {
	var b strings.Builder
	b.WriteString("digraph kept {\n")
	ids := make(map[NodeID]int, g.nodes.Len())
	for i, n := range g.nodes.Items() {
		ids[n] = i
		fmt.Fprintf(&b, "  n%d [label=%q];\n", i, n.label(ctx))
	}
	for _, e := range g.edges {
		if !e.From.IsValid() {
			fmt.Fprintf(&b, "  n%d [shape=box, style=filled, fillcolor=lightgray];\n", ids[e.To])
			continue
		}
		fmt.Fprintf(&b, "  n%d -> n%d [label=%q];\n", ids[e.From], ids[e.To], e.Reason.String())
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package keep

import (
	"strings"
	"testing"

	"github.com/saferwall/shrinkcore/appmodel"
)

func TestInfoJoinTightensMonotonically(t *testing.T) {
	a := Permissive()
	b := Info{MayShrink: true, MayOptimize: false, MayMinify: true}
	joined := a.Join(b)

	if joined.MayOptimize {
		t.Errorf("expected MayOptimize to be disallowed after join")
	}
	if !joined.LessOrEqual(a) {
		t.Errorf("joined info should be <= the more permissive input")
	}
}

func TestInfoJoinNeverLoosens(t *testing.T) {
	restrictive := Pinned()
	joined := restrictive.Join(Permissive())
	if joined != restrictive {
		t.Errorf("joining with a permissive value should not loosen a pinned entity: got %+v", joined)
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"com/app/*", "com/app/foo", true},
		{"com/app/*", "com/other/foo", false},
		{"*", "anything", true},
		{"com/app/Exact", "com/app/Exact", true},
		{"com/app/Exact", "com/app/Other", false},
	}
	for _, c := range cases {
		if got := globMatch(c.pattern, c.s); got != c.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}

func TestKeptGraphWriteDOTIsDeterministic(t *testing.T) {
	ctx := appmodel.NewContext()
	foo := ctx.InternType("Lcom/app/Foo;")
	bar := ctx.InternType("Lcom/app/Bar;")

	g := NewKeptGraph()
	g.AddReason(NodeID{}, NodeID{Class: foo}, ReasonRoot)
	g.AddReason(NodeID{Class: foo}, NodeID{Class: bar}, ReasonClassInstantiated)

	var b1, b2 strings.Builder
	if err := g.WriteDOT(&b1, ctx); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	if err := g.WriteDOT(&b2, ctx); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	if b1.String() != b2.String() {
		t.Errorf("WriteDOT output is not deterministic across calls")
	}
	if !strings.Contains(b1.String(), "digraph kept") {
		t.Errorf("missing digraph header: %s", b1.String())
	}
}

func TestClassFingerprintMatches(t *testing.T) {
	ctx := appmodel.NewContext()
	annot := ctx.InternType("Lcom/app/Keep;")
	target := ctx.InternType("Lcom/app/Target;")

	class := &appmodel.ClassDef{Type: target, Annotations: []appmodel.Type{annot}}
	fp := ClassFingerprint{AnnotatedWith: annot}

	if !fp.Matches(ctx, class, func(sub, super appmodel.Type) bool { return false }) {
		t.Errorf("expected fingerprint to match annotated class")
	}

	fp2 := ClassFingerprint{AnnotatedWith: ctx.InternType("Lcom/app/Other;")}
	if fp2.Matches(ctx, class, func(sub, super appmodel.Type) bool { return false }) {
		t.Errorf("expected fingerprint to reject class missing the annotation")
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ingest

import (
	"testing"

	"github.com/saferwall/shrinkcore/appmodel"
)

const localsDebugNameFixture = `[
	{
		"type": "Lcom/app/Main;",
		"kind": "program",
		"methods": [
			{
				"name": "run",
				"return": "V",
				"registers": 1,
				"code": [{"op": 6}],
				"locals_debug_names": {"0": "78000000"}
			}
		]
	}
]`

func TestParseDecodesLocalsDebugNames(t *testing.T) {
	src, err := NewBytes([]byte(localsDebugNameFixture), nil)
	if err != nil {
		t.Fatalf("NewBytes: %v", err)
	}
	ctx := appmodel.NewContext()
	prog, err := src.Parse(ctx)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	class, ok := prog.ClassDefinition(ctx.InternType("Lcom/app/Main;"))
	if !ok {
		t.Fatalf("expected Main to be present")
	}
	if len(class.VirtualMethods) != 1 {
		t.Fatalf("expected one virtual method, got %d", len(class.VirtualMethods))
	}
	code := class.VirtualMethods[0].Code
	if code == nil {
		t.Fatalf("expected a code body")
	}
	if got, want := code.LocalsDebugNames[0], "x"; got != want {
		t.Errorf("LocalsDebugNames[0] = %q, want %q", got, want)
	}
}

func TestParseRejectsMalformedLocalsDebugNames(t *testing.T) {
	fixture := `[{"type":"Lcom/app/Main;","kind":"program","methods":[{"name":"run","return":"V","registers":1,"code":[{"op":6}],"locals_debug_names":{"0":"not-hex"}}]}]`
	src, err := NewBytes([]byte(fixture), nil)
	if err != nil {
		t.Fatalf("NewBytes: %v", err)
	}
	if _, err := src.Parse(appmodel.NewContext()); err == nil {
		t.Errorf("expected Parse to reject a non-hex locals_debug_names entry")
	}
}

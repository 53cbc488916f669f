// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ssa

import (
	"testing"

	"github.com/saferwall/shrinkcore/appmodel"
)

func TestBuildDestructRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		code *appmodel.CodeBody
	}{
		{
			name: "straight-line-return",
			code: &appmodel.CodeBody{
				Form:          appmodel.FormRaw,
				RegisterCount: 1,
				Raw: []appmodel.RawInstruction{
					{Op: appmodel.OpConst, Registers: []int32{0}, IntOperand: 42},
					{Op: appmodel.OpReturn, Registers: []int32{0}},
				},
			},
		},
		{
			name: "diamond-with-phi",
			code: &appmodel.CodeBody{
				Form:          appmodel.FormRaw,
				RegisterCount: 2,
				Raw: []appmodel.RawInstruction{
					{Op: appmodel.OpIf, Registers: []int32{0, 0}, Targets: []int32{2, 3}},
					{Op: appmodel.OpGoto, IntOperand: 4},
					{Op: appmodel.OpConst, Registers: []int32{1}, IntOperand: 1},
					{Op: appmodel.OpGoto, IntOperand: 4},
					{Op: appmodel.OpReturn, Registers: []int32{1}},
				},
			},
		},
		{
			name: "loop-back-edge",
			code: &appmodel.CodeBody{
				Form:          appmodel.FormRaw,
				RegisterCount: 1,
				Raw: []appmodel.RawInstruction{
					{Op: appmodel.OpConst, Registers: []int32{0}, IntOperand: 0},
					{Op: appmodel.OpIf, Registers: []int32{0, 0}, Targets: []int32{2, 3}},
					{Op: appmodel.OpGoto, IntOperand: 1},
					{Op: appmodel.OpReturnVoid},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := appmodel.MethodRef{}
			f := Build(method, tt.code)
			if len(f.Blocks) == 0 {
				t.Fatalf("Build(%s) produced no blocks", tt.name)
			}
			for _, b := range f.Blocks {
				if b.Term == nil {
					t.Errorf("block %s has no terminator", b)
				}
			}
			out := Destruct(f)
			if len(out.Raw) == 0 {
				t.Errorf("Destruct(%s) produced no instructions", tt.name)
			}
			if out.RegisterCount == 0 {
				t.Errorf("Destruct(%s) produced zero registers", tt.name)
			}
		})
	}
}

func TestDominators(t *testing.T) {
	code := &appmodel.CodeBody{
		Form:          appmodel.FormRaw,
		RegisterCount: 1,
		Raw: []appmodel.RawInstruction{
			{Op: appmodel.OpIf, Registers: []int32{0, 0}, Targets: []int32{2, 3}},
			{Op: appmodel.OpGoto, IntOperand: 4},
			{Op: appmodel.OpGoto, IntOperand: 4},
			{Op: appmodel.OpGoto, IntOperand: 4},
			{Op: appmodel.OpReturnVoid},
		},
	}
	f := Build(appmodel.MethodRef{}, code)
	f.BuildDominators()
	last := f.Blocks[len(f.Blocks)-1]
	if !f.Dominates(f.Entry, last) {
		t.Errorf("entry block should dominate every reachable block")
	}
}

// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rewrite

import "github.com/saferwall/shrinkcore/ssa"

// materializeArrays performs array materialization:
// collapse a NewArray followed by a dense, all-constant run of ArrayPuts
// (one per slot, no gaps; only Const instructions may sit between them)
// into a single FillArrayData literal, up to opts.MaxFillArrayBytes, and
// drop the puts together with any index/value Const nothing else uses.
// NewArray stays untouched when any slot is left to runtime computation
// or the array has any use besides those puts.
func materializeArrays(f *ssa.Function, opts Options) bool {
	changed := false
	for _, b := range f.Blocks {
		for i := 0; i < len(b.Instrs); i++ {
			na, ok := b.Instrs[i].(*ssa.NewArray)
			if !ok {
				continue
			}
			values, puts, ok := collectFillRun(b, i, na, opts)
			if !ok {
				continue
			}
			fa := &ssa.FillArrayData{ElemType: na.ElemType, Values: values}
			fa.SetKind(ssa.LatticeType{Null: ssa.NeverNull, Declared: na.Kind().Declared})
			f.ReplaceInstr(b, na, fa)
			ssa.ReplaceAll(na, fa)
			for _, p := range puts {
				removeInstr(b, p)
			}
			for _, p := range puts {
				for _, v := range []ssa.Value{p.Index, p.Val} {
					c, unused := v.(*ssa.Const)
					for _, r := range *v.Referrers() {
						if ap, isPut := r.(*ssa.ArrayPut); !isPut || ap.Array != fa {
							unused = false
						}
					}
					if unused {
						removeInstr(b, c)
					}
				}
			}
			changed = true
		}
	}
	return changed
}

// collectFillRun scans forward from na's position for a fully-dense run
// of constant ArrayPuts targeting na, interrupted by nothing but Const
// instructions, returning the packed values in slot order.
func collectFillRun(b *ssa.Block, startIdx int, na *ssa.NewArray, opts Options) ([]int64, []*ssa.ArrayPut, bool) {
	length, ok := na.Length.Kind().IsConstInt()
	if !ok || length <= 0 {
		return nil, nil, false
	}
	if length*8 > int64(opts.MaxFillArrayBytes) {
		return nil, nil, false
	}
	values := make([]int64, length)
	filled := make([]bool, length)
	var puts []*ssa.ArrayPut
	for j := startIdx + 1; j < len(b.Instrs) && int64(len(puts)) < length; j++ {
		if _, isConst := b.Instrs[j].(*ssa.Const); isConst {
			continue
		}
		ap, ok := b.Instrs[j].(*ssa.ArrayPut)
		if !ok || ap.Array != na {
			break
		}
		idx, ok := ap.Index.Kind().IsConstInt()
		if !ok || idx < 0 || idx >= length || filled[idx] {
			return nil, nil, false
		}
		val, ok := ap.Val.Kind().IsConstInt()
		if !ok {
			return nil, nil, false
		}
		values[idx] = val
		filled[idx] = true
		puts = append(puts, ap)
	}
	for _, got := range filled {
		if !got {
			return nil, nil, false
		}
	}
	if len(*na.Referrers()) != len(puts) {
		return nil, nil, false
	}
	return values, puts, true
}

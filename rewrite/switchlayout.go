// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rewrite

import (
	"sort"

	"github.com/saferwall/shrinkcore/ssa"
)

// Estimated encoding sizes, in bytes, for the switch-restructuring cost
// model. A packed table pays a fixed header plus one target per key in
// its [lo, hi] span, holes included; a sparse table pays per populated
// entry but stores the key alongside the target; an if-chain pays a
// compare-and-branch per case. Splitting adds one dispatch block of
// overhead per extra segment. On a class-file target every branch
// target additionally costs a stack-map frame entry.
const (
	packedHeaderBytes         = 8
	packedEntryBytes          = 4
	sparseHeaderBytes         = 4
	sparseEntryBytes          = 8
	ifChainCaseBytes          = 8
	subSwitchOverheadBytes    = 8
	stackMapEntryPenaltyBytes = 4
)

// restructureSwitches performs switch restructuring: drop
// case entries that are redundant with the default edge, then choose,
// per switch, among keeping it packed, keeping it sparse, or splitting
// it into packed sub-switches plus either one sparse bin or an if-chain
// for the leftover keys, minimizing estimated encoded size under opts.Mode. The
// restructuring never changes which block a given key reaches, so it
// runs once, after the rest of the fixed point, rather than feeding
// back into it.
func restructureSwitches(f *ssa.Function, opts Options) {
	for _, b := range append([]*ssa.Block(nil), f.Blocks...) {
		sw, ok := b.Term.(*ssa.Switch)
		if !ok {
			continue
		}
		collapseRedundantCases(f, b, sw)
		sw, ok = b.Term.(*ssa.Switch)
		if !ok {
			continue
		}
		if switchSuccessorsHavePhis(sw) {
			// Splitting or re-keying would desynchronize phi operand
			// order from Block.Preds; leave the shape alone and only
			// record the packed-vs-sparse verdict.
			sw.PreferPacked = preferPacked(sw.Keys, opts)
			continue
		}
		segments := planSwitchLayout(sw, opts)
		if len(segments) == 0 {
			continue
		}
		if len(segments) == 1 && segments[0].kind != segmentIfChain {
			sw.PreferPacked = segments[0].kind == segmentPacked
			continue
		}
		emitSwitchPlan(f, b, sw, segments)
	}
}

// collapseRedundantCases drops any case whose successor is identical to
// the switch's own default successor, shrinking the encoded table. Only
// runs when none of the switch's successors carry phis, since removing a
// duplicate predecessor edge would otherwise desynchronize phi operand
// order from Block.Preds.
func collapseRedundantCases(f *ssa.Function, b *ssa.Block, sw *ssa.Switch) {
	if switchSuccessorsHavePhis(sw) {
		return
	}
	def := sw.Default()
	succs := sw.Successors()
	var keys []int32
	var kept []*ssa.Block
	dropped := false
	for i, k := range sw.Keys {
		if succs[i] == def {
			dropped = true
			continue
		}
		keys = append(keys, k)
		kept = append(kept, succs[i])
	}
	if !dropped {
		return
	}
	if len(keys) == 0 {
		// Every case collapsed into the default edge: drop the Switch
		// terminator entirely rather than keep a degenerate zero-key one.
		f.ReplaceTerm(b, ssa.NewGoto(def))
		return
	}
	kept = append(kept, def)
	f.ReplaceTerm(b, ssa.NewSwitch(sw.Key, keys, kept))
}

func switchSuccessorsHavePhis(sw *ssa.Switch) bool {
	for _, s := range sw.Successors() {
		if len(s.Phis) != 0 {
			return true
		}
	}
	return false
}

type segmentKind uint8

const (
	segmentPacked segmentKind = iota
	segmentSparse
	segmentIfChain
)

type caseEntry struct {
	key  int32
	succ *ssa.Block
}

type segment struct {
	kind  segmentKind
	cases []caseEntry
}

// preferPacked is the whole-table packed-vs-sparse verdict, used when
// the switch's shape cannot be split (phi-carrying successors).
func preferPacked(keys []int32, opts Options) bool {
	if len(keys) == 0 {
		return false
	}
	sorted := append([]int32(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	lo, hi := sorted[0], sorted[len(sorted)-1]
	return packedCost(lo, hi, len(keys), opts) <= sparseCost(len(keys), opts)
}

func perEntryPenalty(opts Options) int {
	if opts.Mode == TargetClassFile {
		return stackMapEntryPenaltyBytes
	}
	return 0
}

func packedCost(lo, hi int32, n int, opts Options) int {
	span := int(int64(hi) - int64(lo) + 1)
	return packedHeaderBytes + span*packedEntryBytes + n*perEntryPenalty(opts)
}

func sparseCost(n int, opts Options) int {
	return sparseHeaderBytes + n*(sparseEntryBytes+perEntryPenalty(opts))
}

func ifChainCost(n int, opts Options) int {
	return n * (ifChainCaseBytes + perEntryPenalty(opts))
}

// planSwitchLayout partitions sw's cases into segments:
// (1) group consecutive packed intervals greedily, (2) keep
// the top-K intervals with the largest packed-over-sparse savings,
// (3) merge the rest into one sparse bin, (4) peel the remainder into
// an if-chain when its aggregate estimated size beats the sparse cost
// plus a fixed overhead. A plan of one packed or sparse segment means
// "leave the switch whole"; the caller then only records the
// packed/sparse verdict. A plan of one if-chain segment still replaces
// the switch with compares.
func planSwitchLayout(sw *ssa.Switch, opts Options) []segment {
	succs := sw.Successors()
	cases := make([]caseEntry, len(sw.Keys))
	for i, k := range sw.Keys {
		cases[i] = caseEntry{key: k, succ: succs[i]}
	}
	sort.SliceStable(cases, func(i, j int) bool { return cases[i].key < cases[j].key })

	// Step 1: greedy consecutive intervals.
	var intervals [][]caseEntry
	for i := 0; i < len(cases); {
		j := i + 1
		for j < len(cases) && cases[j].key == cases[j-1].key+1 {
			j++
		}
		intervals = append(intervals, cases[i:j])
		i = j
	}
	if len(intervals) == 1 {
		return []segment{{kind: segmentPacked, cases: cases}}
	}

	// Step 2: rank intervals by packed-over-sparse savings; a sub-switch
	// only earns its keep if the savings beat the split overhead.
	type ranked struct {
		idx     int
		savings int
	}
	var rank []ranked
	for idx, iv := range intervals {
		lo, hi := iv[0].key, iv[len(iv)-1].key
		s := sparseCost(len(iv), opts) - packedCost(lo, hi, len(iv), opts)
		rank = append(rank, ranked{idx: idx, savings: s})
	}
	sort.SliceStable(rank, func(i, j int) bool { return rank[i].savings > rank[j].savings })

	selected := make(map[int]bool)
	for _, r := range rank {
		if len(selected) >= opts.SwitchTopKPackedIntervals {
			break
		}
		if r.savings <= subSwitchOverheadBytes {
			break
		}
		selected[r.idx] = true
	}

	var segments []segment
	var rest []caseEntry
	for idx, iv := range intervals {
		if selected[idx] {
			segments = append(segments, segment{kind: segmentPacked, cases: iv})
		} else {
			rest = append(rest, iv...)
		}
	}

	// Steps 3-4: the leftovers become one sparse bin, or an if-chain
	// when that encodes smaller.
	if len(rest) > 0 {
		kind := segmentSparse
		if ifChainCost(len(rest), opts) < sparseCost(len(rest), opts)+subSwitchOverheadBytes {
			kind = segmentIfChain
		}
		segments = append(segments, segment{kind: kind, cases: rest})
	}

	if len(segments) <= 1 {
		return segments
	}

	// Splitting only pays if the whole plan, overhead included, beats
	// the best single-table encoding.
	lo, hi := cases[0].key, cases[len(cases)-1].key
	whole := sparseCost(len(cases), opts)
	if pc := packedCost(lo, hi, len(cases), opts); pc < whole {
		whole = pc
	}
	split := (len(segments) - 1) * subSwitchOverheadBytes
	for _, seg := range segments {
		switch seg.kind {
		case segmentPacked:
			split += packedCost(seg.cases[0].key, seg.cases[len(seg.cases)-1].key, len(seg.cases), opts)
		case segmentSparse:
			split += sparseCost(len(seg.cases), opts)
		case segmentIfChain:
			split += ifChainCost(len(seg.cases), opts)
		}
	}
	if split >= whole {
		kind := segmentSparse
		if packedCost(lo, hi, len(cases), opts) <= sparseCost(len(cases), opts) {
			kind = segmentPacked
		}
		return []segment{{kind: kind, cases: cases}}
	}
	return segments
}

// emitSwitchPlan rewrites b's switch into the planned segment chain:
// each segment dispatches its own cases and falls through to the next
// segment's block on a miss, with the final miss edge landing on the
// original default. The key value is defined at or above b, so it
// dominates every chained block by construction.
func emitSwitchPlan(f *ssa.Function, b *ssa.Block, sw *ssa.Switch, segments []segment) {
	def := sw.Default()
	key := sw.Key

	// Build the chain back to front so each segment knows its miss target.
	next := def
	terms := make([]ssa.Terminator, len(segments))
	blocks := make([]*ssa.Block, len(segments))
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		var blk *ssa.Block
		if i == 0 {
			blk = b
		} else {
			blk = f.NewBlock("switch-split")
		}
		blocks[i] = blk

		switch seg.kind {
		case segmentPacked, segmentSparse:
			keys := make([]int32, len(seg.cases))
			succs := make([]*ssa.Block, len(seg.cases)+1)
			for j, c := range seg.cases {
				keys[j] = c.key
				succs[j] = c.succ
			}
			succs[len(seg.cases)] = next
			sub := ssa.NewSwitch(key, keys, succs)
			sub.PreferPacked = seg.kind == segmentPacked
			terms[i] = sub
		case segmentIfChain:
			// One compare block per case, chained on the miss edge.
			inner := next
			for j := len(seg.cases) - 1; j >= 0; j-- {
				c := seg.cases[j]
				var cmpBlk *ssa.Block
				if j == 0 {
					cmpBlk = blk
				} else {
					cmpBlk = f.NewBlock("if-chain")
				}
				k := &ssa.Const{IsInt: true, Int: int64(c.key)}
				k.SetKind(ssa.LatticeType{Range: ssa.ValueRange{Known: true, Constant: true, Value: int64(c.key)}})
				f.Emit(cmpBlk, k)
				term := ssa.NewIf(ssa.OpCmpEq, key, k, c.succ, inner)
				if cmpBlk == blk {
					terms[i] = term
				} else {
					f.SetTerm(cmpBlk, term)
				}
				inner = cmpBlk
			}
		}
		next = blocks[i]
	}

	f.ReplaceTerm(b, terms[0])
	for i := 1; i < len(segments); i++ {
		if terms[i] != nil {
			f.SetTerm(blocks[i], terms[i])
		}
	}
	ssa.RebuildReferrers(f)
}

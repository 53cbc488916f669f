// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package keep models the keep policy lattice and the root-set
// configuration that seeds the enqueuer.
// As with resolve, the source models this as a hierarchy of rule
// objects; here it is a flat join-semilattice of booleans plus a set of
// conditional rules.
package keep

// Info is the per-entity keep-policy lattice: a
// join-semilattice of booleans that only ever tightens. The zero Info
// has every flag false and so permits nothing (it is what Pinned
// returns); Permissive is the value that permits everything.
type Info struct {
	MayShrink              bool
	MayOptimize            bool
	MayMinify              bool
	MayMergeHorizontally   bool
	MayMergeVertically     bool
	MayInline              bool
	MayReprocess           bool
	ClosedWorldReasoning   bool
}

// Permissive is the Info value that allows every policy, assigned to a
// fresh entity before any keep rule has applied to it.
func Permissive() Info {
	return Info{
		MayShrink:            true,
		MayOptimize:          true,
		MayMinify:            true,
		MayMergeHorizontally: true,
		MayMergeVertically:   true,
		MayInline:            true,
		MayReprocess:         true,
		ClosedWorldReasoning: true,
	}
}

// Join combines two Info values by ANDing every flag: the result is
// never more permissive than either input.
func (i Info) Join(o Info) Info {
	return Info{
		MayShrink:            i.MayShrink && o.MayShrink,
		MayOptimize:          i.MayOptimize && o.MayOptimize,
		MayMinify:            i.MayMinify && o.MayMinify,
		MayMergeHorizontally: i.MayMergeHorizontally && o.MayMergeHorizontally,
		MayMergeVertically:   i.MayMergeVertically && o.MayMergeVertically,
		MayInline:            i.MayInline && o.MayInline,
		MayReprocess:         i.MayReprocess && o.MayReprocess,
		ClosedWorldReasoning: i.ClosedWorldReasoning && o.ClosedWorldReasoning,
	}
}

// LessOrEqual reports whether i is at least as restrictive as o on every
// flag (i <= o in the lattice order, where false <= true).
func (i Info) LessOrEqual(o Info) bool {
	return impliesLE(i.MayShrink, o.MayShrink) &&
		impliesLE(i.MayOptimize, o.MayOptimize) &&
		impliesLE(i.MayMinify, o.MayMinify) &&
		impliesLE(i.MayMergeHorizontally, o.MayMergeHorizontally) &&
		impliesLE(i.MayMergeVertically, o.MayMergeVertically) &&
		impliesLE(i.MayInline, o.MayInline) &&
		impliesLE(i.MayReprocess, o.MayReprocess) &&
		impliesLE(i.ClosedWorldReasoning, o.ClosedWorldReasoning)
}

func impliesLE(a, b bool) bool { return !a || b }

// Pinned is the degenerate, fully-restrictive Info an externally kept
// entity with unknown subclasses/overrides receives: closed-world reasoning cannot be applied to it at all.
func Pinned() Info {
	return Info{}
}

// MinimumKeepInfoWhenLive is the floor every live entity receives even
// absent an explicit keep rule: an entity that is merely
// reachable, rather than explicitly pinned, may still be shrunk,
// optimized, and so on -- this floor only forbids reasoning that assumes
// the entity's full call graph is known, since "live" alone does not
// guarantee "exhaustively enumerated."
func MinimumKeepInfoWhenLive() Info {
	info := Permissive()
	info.ClosedWorldReasoning = false
	return info
}

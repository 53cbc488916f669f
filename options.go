// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package shrinkcore wires the reachability pipeline (resolve, ssa,
// rewrite, enqueue, keep, liveness) into the Options/Run entry point
// cmd/shrinkctl drives.
package shrinkcore

import (
	"os"

	"golang.org/x/mod/semver"

	"github.com/saferwall/shrinkcore/log"
)

// DefaultMaxReflectiveEntryPoints is the value withDefaults gives
// Options.MaxReflectiveEntryPoints when it is left zero, modeled on
// file.go's MaxCOFFSymbolsCount-style denial-of-service guard. Run does
// not pass it to the enqueuer, so the number of pending reflective uses
// is not bounded by it.
const DefaultMaxReflectiveEntryPoints = 4096

// Options configures one shrink run.
type Options struct {
	// TargetAPILevel selects which desugaring constructs apply: Run hands
	// it to desugar.NewPlatformCollection, which compares it with each
	// construct's level via semver.Compare, and an empty TargetAPILevel
	// turns desugaring off. MinSupportedAPILevel is read only by
	// NeedsDesugaring, which Run does not call. Both take semver strings
	// ("vN.N.N"). Neither level affects the platform-bug booleans below.
	TargetAPILevel       string
	MinSupportedAPILevel string

	// CmpLongBug mirrors the source's canHaveCmpLongBug: some platform
	// revisions generate an incorrect flag on long-compare, so the
	// rewriter must not fold a long If guarded by ssa.OpCmpLong as
	// aggressively. Kept as an explicit boolean rather than inferred
	// from TargetAPILevel alone, since the bug is revision-specific and
	// callers may know about an affected device the version string
	// alone would not flag.
	CmpLongBug bool

	// MaxReflectiveEntryPoints defaults to DefaultMaxReflectiveEntryPoints.
	// Run does not hand it to the enqueuer; the enqueuer's
	// pending-reflective-use set has no bound.
	MaxReflectiveEntryPoints int

	// Workers bounds the internal/taskpool concurrency used for
	// per-method IR construction and rewriting, by default
	// runtime.NumCPU() (left zero here; resolved at pool construction).
	Workers int

	// A custom logger.
	Logger log.Logger
}

// withDefaults returns a copy of opts (or a fresh zero Options if opts
// is nil) with every zero-valued field set to its default, the same
// pattern file.go's New/NewBytes apply inline before using *Options.
func (opts *Options) withDefaults() *Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.MaxReflectiveEntryPoints == 0 {
		o.MaxReflectiveEntryPoints = DefaultMaxReflectiveEntryPoints
	}
	return &o
}

// NeedsDesugaring reports whether TargetAPILevel is older than
// MinSupportedAPILevel, per semver precedence.
func (o *Options) NeedsDesugaring() bool {
	if o.TargetAPILevel == "" || o.MinSupportedAPILevel == "" {
		return false
	}
	return semver.Compare(o.TargetAPILevel, o.MinSupportedAPILevel) < 0
}

// newLogger builds the *log.Helper every long-lived component holds,
// defaulting to stderr at error level exactly as file.go's New does.
func (opts *Options) newLogger() *log.Helper {
	if opts.Logger != nil {
		return log.NewHelper(opts.Logger)
	}
	return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(log.LevelError)))
}

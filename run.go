// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package shrinkcore

import (
	"runtime"

	"github.com/saferwall/shrinkcore/appmodel"
	"github.com/saferwall/shrinkcore/desugar"
	"github.com/saferwall/shrinkcore/enqueue"
	"github.com/saferwall/shrinkcore/internal/taskpool"
	"github.com/saferwall/shrinkcore/keep"
	"github.com/saferwall/shrinkcore/liveness"
	"github.com/saferwall/shrinkcore/resolve"
	"github.com/saferwall/shrinkcore/rewrite"
	"github.com/saferwall/shrinkcore/ssa"
	"github.com/saferwall/shrinkcore/synthetic"
)

// Run drives one shrink pass: it builds a Resolver and Enqueuer over
// model, seeds the enqueuer from cfg's root set, and runs the
// reachability fixed point to completion. cmd/shrinkctl's
// "shrink" and "trace" sub-commands are both thin wrappers over this
// function, the way pedumper.go's parsePE is a thin wrapper over
// pe.NewBytes/pe.Parse.
//
// Desugaring is keyed off opts.TargetAPILevel: when empty, no method is
// ever reported as needing it, rather than standing up a Collection
// with an empty construct list.
func Run(model appmodel.AppModel, cfg *keep.Configuration, opts *Options) (*liveness.AppInfoWithLiveness, *resolve.Resolver, error) {
	opts = opts.withDefaults()
	logger := opts.newLogger()

	resolver := resolve.New(model, logger)
	items := synthetic.NewDefaultItems(model.Context(), programOf(model))

	var desug desugar.Collection
	if opts.TargetAPILevel != "" {
		desug = desugar.NewPlatformCollection(opts.TargetAPILevel, desugar.WellKnownConstructs())
	} else {
		desug = noDesugaring{}
	}

	rewriteOpts := rewrite.Options{CmpLongBug: opts.CmpLongBug}

	if err := prebuildIR(model, opts.Workers, rewriteOpts); err != nil {
		logger.Errorf("shrinkcore: IR prebuild failed: %v", err)
		return nil, nil, err
	}

	eq := enqueue.New(model, resolver, cfg, items, desug, logger, rewriteOpts)
	eq.Seed()
	out := eq.Run()
	return out, resolver, nil
}

// prebuildIR is the per-method concurrency boundary:
// independent methods are built into SSA and rewritten in parallel on a
// bounded taskpool, each worker owning exactly the one CodeBody it is
// rewriting, and the enqueuer only starts consuming after the Wait
// barrier. A failure in any worker cancels the rest and surfaces as
// Run's error; partial IR is discarded by the caller along with
// everything else.
func prebuildIR(model appmodel.AppModel, workers int, rewriteOpts rewrite.Options) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool := taskpool.New(workers)
	for _, class := range model.ProgramClasses() {
		methods := make([]*appmodel.MethodDef, 0, len(class.DirectMethods)+len(class.VirtualMethods))
		methods = append(methods, class.DirectMethods...)
		methods = append(methods, class.VirtualMethods...)
		for _, m := range methods {
			m := m
			if !m.HasCode() || m.Code.Form != appmodel.FormRaw {
				continue
			}
			pool.Go(func() error {
				f := ssa.Build(m.Ref, m.Code)
				rewrite.Run(f, rewriteOpts)
				m.Code.Form = appmodel.FormSSA
				m.Code.IR = f
				m.Code.Raw = nil
				return nil
			})
		}
	}
	return pool.Wait()
}

// noDesugaring is the zero Collection: every method already targets a
// supported platform level, so nothing ever needs rewriting.
type noDesugaring struct{}

func (noDesugaring) NeedsDesugaring(*appmodel.MethodDef) bool { return false }
func (noDesugaring) Desugar(*appmodel.MethodDef, desugar.EventConsumer) {}

// programOf recovers the concrete *appmodel.Program SyntheticItems needs
// to append freshly minted classes to. Every AppModel this codebase
// constructs is in fact a *appmodel.Program; a caller supplying some
// other AppModel implementation does not get synthetic-item support,
// mirroring the narrow, interface-only contract the core consumes.
func programOf(model appmodel.AppModel) *appmodel.Program {
	if p, ok := model.(*appmodel.Program); ok {
		return p
	}
	return appmodel.NewProgram(model.Context())
}

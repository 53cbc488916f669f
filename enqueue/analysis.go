// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package enqueue

import (
	"github.com/saferwall/shrinkcore/internal/taskpool"
	"github.com/saferwall/shrinkcore/keep"
	"github.com/saferwall/shrinkcore/liveness"
)

// Analysis is a registered analysis invoked at each inner fixed point.
// An analysis reads the current liveness view and may emit keep events;
// it never touches the enqueuer's collections directly.
type Analysis interface {
	Name() string
	// Pure analyses declare they read only the view they are handed, so
	// the enqueuer may fan them out in parallel. Impure analyses run alone on the enqueuer's thread.
	Pure() bool
	AtFixedPoint(view *liveness.AppInfoWithLiveness, emit func(keep.Event))
}

// RegisterAnalysis adds a to the fixed-point hook. Registration order is
// the order results are merged in, so a fixed registration order keeps
// the trace deterministic even when pure analyses run concurrently.
func (e *Enqueuer) RegisterAnalysis(a Analysis) {
	e.analyses = append(e.analyses, a)
}

// runAnalysesAtFixedPoint invokes every registered analysis against the
// current (read-only) liveness view. Pure analyses run concurrently on
// a taskpool with no concurrency limit, each accumulating events into
// its own slot; the slots
// are merged in registration order after the barrier, so the work list
// sees the same event order run to run. Returns whether any analysis
// emitted anything.
func (e *Enqueuer) runAnalysesAtFixedPoint() bool {
	if len(e.analyses) == 0 {
		return false
	}
	events := make([][]keep.Event, len(e.analyses))

	pool := taskpool.New(0)
	for i, a := range e.analyses {
		if !a.Pure() {
			continue
		}
		i, a := i, a
		pool.Go(func() error {
			a.AtFixedPoint(e.out, func(ev keep.Event) { events[i] = append(events[i], ev) })
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		e.logger.Errorf("enqueue: analysis fan-out failed: %v", err)
	}
	for i, a := range e.analyses {
		if a.Pure() {
			continue
		}
		a.AtFixedPoint(e.out, func(ev keep.Event) { events[i] = append(events[i], ev) })
	}

	grew := false
	sink := eventSink{e}
	for _, evs := range events {
		for _, ev := range evs {
			if !e.eventAddsFact(ev) {
				// Re-emitted, already-known facts must not count as
				// growth, or an idempotent analysis would keep the
				// fixed point spinning forever.
				continue
			}
			sink.Emit(ev)
			grew = true
		}
	}
	return grew
}

// eventAddsFact reports whether ev names a fact the trace has not
// already derived.
func (e *Enqueuer) eventAddsFact(ev keep.Event) bool {
	switch ev.Kind {
	case keep.EventClassInstantiated:
		return !e.out.InstantiatedClasses.Contains(ev.Class)
	case keep.EventMethodLive:
		return !e.out.LiveMethods.Contains(ev.Method)
	case keep.EventFieldLive:
		return !e.out.LiveFields.Contains(ev.Field)
	default:
		return false
	}
}

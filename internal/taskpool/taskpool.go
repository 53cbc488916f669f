// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package taskpool is the pipeline's bounded task executor: callers
// pick the worker count (typically the number of cores), and the pool
// fans work out at the two well-defined concurrency boundaries the
// enqueuer exposes (per-method desugaring/tracing, and analysis fan-out).
// The enqueuer itself stays single-threaded; it only ever waits on a
// Pool's Wait barrier, the same shape cmd/dump.go's worker-queue loop
// uses to drain a directory tree.
package taskpool

import "sync"

// Pool runs up to N tasks concurrently and reports the first error, if
// any, that any task returned.
type Pool struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	err     error
	cancel  bool
	cancelC chan struct{}
}

// New returns a Pool that runs at most n tasks at a time. n <= 0 means
// unbounded.
func New(n int) *Pool {
	p := &Pool{cancelC: make(chan struct{})}
	if n > 0 {
		p.sem = make(chan struct{}, n)
	}
	return p
}

// Go schedules fn to run and returns at once; when the pool is at
// capacity, the goroutine it starts waits for a free slot before calling
// fn. fn should check Cancelled if it can exit early.
func (p *Pool) Go(fn func() error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if p.sem != nil {
			p.sem <- struct{}{}
			defer func() { <-p.sem }()
		}
		if p.Cancelled() {
			return
		}
		if err := fn(); err != nil {
			p.fail(err)
		}
	}()
}

func (p *Pool) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
		if !p.cancel {
			p.cancel = true
			close(p.cancelC)
		}
	}
}

// Cancelled reports whether some prior task has already failed. Tasks are
// expected to poll this cooperatively; the pool never forcibly interrupts
// a running goroutine.
func (p *Pool) Cancelled() bool {
	select {
	case <-p.cancelC:
		return true
	default:
		return false
	}
}

// Wait blocks until every scheduled task has returned, then returns the
// first error reported, if any. This is the consumption barrier: the
// enqueuer consumes accumulated results only after Wait returns.
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

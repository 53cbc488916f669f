// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package taskpool

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestPoolRunsEveryTask(t *testing.T) {
	p := New(4)
	var n int64
	for i := 0; i < 100; i++ {
		p.Go(func() error {
			atomic.AddInt64(&n, 1)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 100 {
		t.Errorf("expected 100 tasks to run, got %d", n)
	}
}

func TestPoolReportsFirstErrorAndCancels(t *testing.T) {
	p := New(1)
	boom := errors.New("boom")
	p.Go(func() error { return boom })
	var ran int64
	for i := 0; i < 50; i++ {
		p.Go(func() error {
			atomic.AddInt64(&ran, 1)
			return nil
		})
	}
	if err := p.Wait(); !errors.Is(err, boom) {
		t.Fatalf("expected the first error back from Wait, got %v", err)
	}
	if !p.Cancelled() {
		t.Errorf("expected the pool to be cancelled after a failure")
	}
}

func TestPoolUnboundedWhenNonPositive(t *testing.T) {
	p := New(0)
	done := make(chan struct{})
	p.Go(func() error { close(done); return nil })
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	select {
	case <-done:
	default:
		t.Errorf("expected the task to have run")
	}
}

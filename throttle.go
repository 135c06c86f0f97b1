// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"context"
	"sync"
	"sync/atomic"
)

// throttle limits the number of concurrently running workers and
// captures the first reported error. Acquire blocks until a slot is
// free or ctx is done; callers skip the work and do not Release when
// Acquire fails.
type throttle struct {
	Max       int
	wg        sync.WaitGroup
	ch        chan bool
	err       atomic.Value
	setupOnce sync.Once
	errorOnce sync.Once
}

func (t *throttle) Acquire(ctx context.Context) error {
	t.setupOnce.Do(func() { t.ch = make(chan bool, t.Max) })
	select {
	case t.ch <- true:
		t.wg.Add(1)
		return nil
	case <-ctx.Done():
		t.Report(ctx.Err())
		return ctx.Err()
	}
}

func (t *throttle) Release() {
	t.wg.Done()
	<-t.ch
}

func (t *throttle) Report(err error) {
	if err != nil {
		t.errorOnce.Do(func() { t.err.Store(err) })
	}
}

func (t *throttle) Err() error {
	err, _ := t.err.Load().(error)
	return err
}

func (t *throttle) Wait() error {
	t.wg.Wait()
	return t.Err()
}

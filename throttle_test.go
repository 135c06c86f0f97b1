// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"context"
	"errors"
	"sync/atomic"

	"gopkg.in/check.v1"
)

type throttleSuite struct{}

var _ = check.Suite(&throttleSuite{})

func (s *throttleSuite) TestFirstErrorWins(c *check.C) {
	t := throttle{Max: 4}
	errFirst := errors.New("first")
	for i := 0; i < 100; i++ {
		c.Assert(t.Acquire(context.Background()), check.IsNil)
		go func(i int) {
			defer t.Release()
			if i == 0 {
				t.Report(errFirst)
			} else {
				t.Report(errors.New("other"))
			}
		}(i)
	}
	err := t.Wait()
	c.Check(err, check.NotNil)
	// whichever error arrived first is sticky
	c.Check(err, check.Equals, t.Err())
}

func (s *throttleSuite) TestAcquireCancelled(c *check.C) {
	t := throttle{Max: 1}
	c.Assert(t.Acquire(context.Background()), check.IsNil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// slot is taken, so only the Done branch can fire
	c.Check(t.Acquire(ctx), check.Equals, context.Canceled)
	t.Release()
	c.Check(t.Wait(), check.Equals, context.Canceled)
}

func (s *throttleSuite) TestLimitsConcurrency(c *check.C) {
	t := throttle{Max: 3}
	var running, peak int32
	for i := 0; i < 50; i++ {
		c.Assert(t.Acquire(context.Background()), check.IsNil)
		go func() {
			defer t.Release()
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			atomic.AddInt32(&running, -1)
		}()
	}
	c.Check(t.Wait(), check.IsNil)
	c.Check(atomic.LoadInt32(&peak) <= 3, check.Equals, true)
}

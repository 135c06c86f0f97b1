// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"gopkg.in/check.v1"
)

type numericSuite struct{}

var _ = check.Suite(&numericSuite{})

func (s *numericSuite) TestTopTwo(c *check.C) {
	for _, trial := range []struct {
		row          []float64
		best, second int
	}{
		{[]float64{0.6, 0.2, 0.2}, 0, 1},
		{[]float64{0.2, 0.2, 0.6}, 2, 0},
		{[]float64{0.1, 0.5, 0.4}, 1, 2},
		{[]float64{0.5, 0.5}, 0, 1},
		{[]float64{1}, 0, 0},
	} {
		best, second := topTwo(trial.row)
		c.Check(best, check.Equals, trial.best, check.Commentf("%v", trial.row))
		c.Check(second, check.Equals, trial.second, check.Commentf("%v", trial.row))
	}
}

func (s *numericSuite) TestFiveNum(c *check.C) {
	min, q1, median, q3, max := fiveNum([]float64{4, 1, 3, 2, 5, 8, 7, 6})
	c.Check(min, check.Equals, 1.0)
	c.Check(max, check.Equals, 8.0)
	c.Check(q1 <= median && median <= q3, check.Equals, true)
	c.Check(min <= q1 && q3 <= max, check.Equals, true)

	b := newBand([]float64{1, 1, 1, 1})
	c.Check(b.Min, check.Equals, 1.0)
	c.Check(b.WhiskLo, check.Equals, 1.0)
	c.Check(b.WhiskHi, check.Equals, 1.0)
}

// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type assignSuite struct{}

var _ = check.Suite(&assignSuite{})

func (s *assignSuite) TestIdentifiableZeroCoverage(c *check.C) {
	geno := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
	cfg, err := NewCloneConfig(geno, []string{"A", "B", "C"})
	c.Assert(err, check.IsNil)
	c.Check(Identifiable([]bool{false, false, false}, cfg), check.DeepEquals, []bool{false, false, false})
}

func (s *assignSuite) TestIdentifiableDuplicateColumns(c *check.C) {
	// restricted to variants 0 and 1, clones A and B look identical
	geno := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		0, 0, 1,
		1, 0, 0,
	})
	cfg, err := NewCloneConfig(geno, []string{"A", "B", "C"})
	c.Assert(err, check.IsNil)
	// A and B are mutual duplicates on the observed set, so neither
	// is identifiable; C differs from both and stays identifiable
	c.Check(Identifiable([]bool{true, true, false}, cfg), check.DeepEquals, []bool{false, false, true})
	// observing variant 2 separates A from B again
	c.Check(Identifiable([]bool{true, true, true}, cfg), check.DeepEquals, []bool{true, true, true})
}

func (s *assignSuite) TestIdentifiabilityMatrix(c *check.C) {
	rc, cfg := synthetic(6, 4, 3, 5)
	// cell 0 loses all coverage
	for i := 0; i < 6; i++ {
		rc.D.Set(i, 0, 0)
	}
	m := IdentifiabilityMatrix(rc, cfg)
	c.Check(m[0], check.DeepEquals, []bool{false, false, false})
	c.Check(m[1], check.DeepEquals, []bool{true, true, true})
}

func (s *assignSuite) TestAssignRule(c *check.C) {
	geno := mat.NewDense(2, 3, []float64{
		1, 0, 0,
		0, 1, 0,
	})
	cfg, err := NewCloneConfig(geno, []string{"clone1", "clone2", "clone3"})
	c.Assert(err, check.IsNil)

	p := mat.NewDense(2, 3, []float64{
		0.6, 0.2, 0.2,
		0.4, 0.35, 0.25,
	})
	got := AssignCells(p, cfg, 0.25)

	// 0.6 > 1.25*0.2: assignable
	c.Check(got[0].Assignable, check.Equals, true)
	c.Check(got[0].Label, check.Equals, "clone1")
	c.Check(got[0].Best, check.Equals, 0)

	// 0.4 <= 1.25*0.35: not assignable
	c.Check(got[1].Assignable, check.Equals, false)
	c.Check(got[1].Label, check.Equals, Unassigned)
	c.Check(got[1].Best, check.Equals, 0)
}

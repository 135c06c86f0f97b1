// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type clusterSuite struct{}

var _ = check.Suite(&clusterSuite{})

// twoGroupP builds 12 cell profiles over 3 clones: the first six are
// torn between clones 0 and 1 (alternating which side is slightly
// ahead), the last six clearly belong to clone 2.
func twoGroupP() *mat.Dense {
	p := mat.NewDense(12, 3, nil)
	for j := 0; j < 6; j++ {
		if j%2 == 0 {
			p.SetRow(j, []float64{0.52, 0.46, 0.02})
		} else {
			p.SetRow(j, []float64{0.46, 0.52, 0.02})
		}
	}
	for j := 6; j < 12; j++ {
		p.SetRow(j, []float64{0.02, 0.03, 0.95})
	}
	return p
}

func cloneABC(c *check.C) *CloneConfig {
	geno := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
	cfg, err := NewCloneConfig(geno, []string{"A", "B", "C"})
	c.Assert(err, check.IsNil)
	return cfg
}

func (s *clusterSuite) TestClusterMergeTwoGroups(c *check.C) {
	p := twoGroupP()
	ca, err := ClusterMerge(p, 2, ClusterOptions{})
	c.Assert(err, check.IsNil)
	c.Assert(len(ca.Members), check.Equals, 2)
	// first-encountered cell gives cluster 0 to the torn group
	for j := 0; j < 6; j++ {
		c.Check(ca.Cluster[j], check.Equals, 0)
	}
	for j := 6; j < 12; j++ {
		c.Check(ca.Cluster[j], check.Equals, 1)
	}
}

func (s *clusterSuite) TestVoteAndReassign(c *check.C) {
	cfg := cloneABC(c)
	p := twoGroupP()
	ca, err := ClusterMerge(p, 2, ClusterOptions{})
	c.Assert(err, check.IsNil)

	assignments := AssignCells(p, cfg, 0.25)
	cloneCluster := VoteCloneClusters(assignments, ca, cfg)
	c.Check(cloneCluster, check.DeepEquals, []int{0, 0, 1})

	merged := ReassignMerged(p, ca, cloneCluster, cfg, DefaultMergeMargin)
	for j := 0; j < 6; j++ {
		c.Check(merged[j].Assignable, check.Equals, true)
		c.Check(merged[j].Label, check.Equals, "A,B")
	}
	for j := 6; j < 12; j++ {
		c.Check(merged[j].Assignable, check.Equals, true)
		c.Check(merged[j].Label, check.Equals, "C")
	}
}

func (s *clusterSuite) TestReassignMargin(c *check.C) {
	cfg := cloneABC(c)
	// one cell per cluster; clone A voted to cluster 0, B and C to 1
	ca := &ClusterAssignment{
		Cluster: []int{0, 1},
		Members: [][]int{{0}, {1}},
	}
	cloneCluster := []int{0, 1, 1}
	p := mat.NewDense(2, 3, []float64{
		// in-cluster mass 0.55 < 1.5*0.42: stays unassigned
		0.55, 0.42, 0.03,
		// in-cluster mass 0.9 >= 1.5*0.1
		0.10, 0.45, 0.45,
	})
	got := ReassignMerged(p, ca, cloneCluster, cfg, DefaultMergeMargin)
	c.Check(got[0].Assignable, check.Equals, false)
	c.Check(got[0].Label, check.Equals, Unassigned)
	c.Check(got[1].Assignable, check.Equals, true)
	c.Check(got[1].Label, check.Equals, "B,C")
}

func (s *clusterSuite) TestVoteTieBreak(c *check.C) {
	cfg := cloneABC(c)
	ca := &ClusterAssignment{
		Cluster: []int{0, 0, 1, 1},
		Members: [][]int{{0, 1}, {2, 3}},
	}
	// clone A: one best-cell in each cluster; tie goes to cluster 0
	assignments := []Assignment{
		{Cell: 0, Best: 0},
		{Cell: 1, Best: 1},
		{Cell: 2, Best: 0},
		{Cell: 3, Best: 2},
	}
	cloneCluster := VoteCloneClusters(assignments, ca, cfg)
	c.Check(cloneCluster[0], check.Equals, 0)
	c.Check(cloneCluster[1], check.Equals, 0)
	c.Check(cloneCluster[2], check.Equals, 1)
}

func (s *clusterSuite) TestSingleGroup(c *check.C) {
	// identical profiles: everything collapses into one cluster
	p := mat.NewDense(5, 2, nil)
	for j := 0; j < 5; j++ {
		p.SetRow(j, []float64{0.5, 0.5})
	}
	ca, err := ClusterMerge(p, 2, ClusterOptions{})
	c.Assert(err, check.IsNil)
	c.Check(len(ca.Members) <= 2, check.Equals, true)
	for _, cl := range ca.Cluster {
		c.Check(cl < len(ca.Members), check.Equals, true)
	}
}

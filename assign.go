// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"gonum.org/v1/gonum/mat"
)

// Unassigned is the label given to cells the assignment rule declines
// to place in any clone.
const Unassigned = "unassigned"

// Identifiable reports, for one cell, which clones are distinguishable
// given only the variants covered in that cell (mask[i] true iff
// variant i has coverage). Clone k is identifiable iff no other
// clone's configuration is element-wise identical to clone k's on the
// covered variant set: a duplicated column makes both copies
// unidentifiable. A cell with no covered variant identifies nothing.
func Identifiable(mask []bool, cfg *CloneConfig) []bool {
	k := cfg.Nclone()
	ident := make([]bool, k)
	covered := false
	for _, m := range mask {
		if m {
			covered = true
			break
		}
	}
	if !covered {
		return ident
	}
	for a := 0; a < k; a++ {
		ident[a] = true
		for b := 0; b < k && ident[a]; b++ {
			if b == a {
				continue
			}
			same := true
			for i, m := range mask {
				if m && cfg.Geno.At(i, a) != cfg.Geno.At(i, b) {
					same = false
					break
				}
			}
			if same {
				ident[a] = false
			}
		}
	}
	return ident
}

// IdentifiabilityMatrix applies Identifiable to every cell's coverage
// pattern, returning a cell-by-clone boolean matrix.
func IdentifiabilityMatrix(rc *ReadCounts, cfg *CloneConfig) [][]bool {
	n := rc.Ncell()
	out := make([][]bool, n)
	for j := 0; j < n; j++ {
		out[j] = Identifiable(rc.CoverageMask(j), cfg)
	}
	return out
}

// Assignment is the per-cell outcome of the hard-assignment rule.
// Best is the highest-posterior clone regardless of confidence; Label
// is that clone's name when Assignable, else Unassigned.
type Assignment struct {
	Cell       int
	Best       int
	BestProb   float64
	Assignable bool
	Label      string
}

// AssignCells turns a cell-by-clone posterior into discrete
// assignments. A cell is assignable iff its top posterior probability
// exceeds (1+threshold) times the runner-up, guarding against cells
// whose covered variants leave two clones near-indistinguishable.
func AssignCells(p *mat.Dense, cfg *CloneConfig, threshold float64) []Assignment {
	n, k := p.Dims()
	out := make([]Assignment, n)
	for j := 0; j < n; j++ {
		best, second := topTwo(p.RawRowView(j))
		a := Assignment{
			Cell:     j,
			Best:     best,
			BestProb: p.At(j, best),
			Label:    Unassigned,
		}
		if k == 1 || a.BestProb > (1+threshold)*p.At(j, second) {
			a.Assignable = true
			a.Label = cfg.Clones[best]
		}
		out[j] = a
	}
	return out
}

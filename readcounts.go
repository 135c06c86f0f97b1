// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ReadCounts holds per-variant, per-cell allele counts: A is the
// alternate-allele read count, D the total read depth. Rows are
// variants, columns are cells. D[i,j]==0 marks a missing observation
// (no coverage); A is NaN there. Entries where D>0 satisfy
// 0 <= A <= D.
type ReadCounts struct {
	A *mat.Dense
	D *mat.Dense
}

// NewReadCounts validates a and d and wraps them. The matrices are not
// copied; callers must not modify them afterwards.
func NewReadCounts(a, d *mat.Dense) (*ReadCounts, error) {
	ar, ac := a.Dims()
	dr, dc := d.Dims()
	if ar != dr || ac != dc {
		return nil, invalidInputf("alt counts are %dx%d but depths are %dx%d", ar, ac, dr, dc)
	}
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			dv := d.At(i, j)
			if math.IsNaN(dv) || dv < 0 || dv != math.Trunc(dv) {
				return nil, invalidInputf("depth[%d,%d] = %v is not a non-negative integer", i, j, dv)
			}
			av := a.At(i, j)
			if dv == 0 {
				if !math.IsNaN(av) && av != 0 {
					return nil, invalidInputf("alt[%d,%d] = %v has zero depth", i, j, av)
				}
				a.Set(i, j, math.NaN())
				continue
			}
			if math.IsNaN(av) || av < 0 || av > dv || av != math.Trunc(av) {
				return nil, invalidInputf("alt[%d,%d] = %v out of range for depth %v", i, j, av, dv)
			}
		}
	}
	return &ReadCounts{A: a, D: d}, nil
}

func (rc *ReadCounts) Nvariant() int {
	r, _ := rc.A.Dims()
	return r
}

func (rc *ReadCounts) Ncell() int {
	_, c := rc.A.Dims()
	return c
}

// Observed reports whether variant i has any read coverage in cell j.
func (rc *ReadCounts) Observed(i, j int) bool {
	return rc.D.At(i, j) > 0
}

// CoverageMask returns, for one cell, which variants have coverage.
func (rc *ReadCounts) CoverageMask(cell int) []bool {
	mask := make([]bool, rc.Nvariant())
	for i := range mask {
		mask[i] = rc.Observed(i, cell)
	}
	return mask
}

// resample returns new count matrices built from the given variant row
// indices (rows may repeat). Used by the bootstrap; the returned
// matrices share no storage with rc.
func (rc *ReadCounts) resample(rows []int) *ReadCounts {
	n := rc.Ncell()
	a := mat.NewDense(len(rows), n, nil)
	d := mat.NewDense(len(rows), n, nil)
	for ri, src := range rows {
		for j := 0; j < n; j++ {
			a.Set(ri, j, rc.A.At(src, j))
			d.Set(ri, j, rc.D.At(src, j))
		}
	}
	return &ReadCounts{A: a, D: d}
}

// CloneConfig is the variant-by-clone genotype configuration:
// Geno[i,k]==1 iff clone k carries variant i. Clone labels are
// resolved to column indices once, here; everything downstream works
// on integer clone ids.
type CloneConfig struct {
	Geno   *mat.Dense
	Clones []string
}

// NewCloneConfig validates geno (binary entries, at least one variant
// whose row differs across clones) and wraps it with the given clone
// labels.
func NewCloneConfig(geno *mat.Dense, clones []string) (*CloneConfig, error) {
	_, k := geno.Dims()
	if len(clones) != k {
		return nil, invalidInputf("%d clone labels for %d configuration columns", len(clones), k)
	}
	v, _ := geno.Dims()
	for i := 0; i < v; i++ {
		for j := 0; j < k; j++ {
			g := geno.At(i, j)
			if g != 0 && g != 1 {
				return nil, invalidInputf("configuration[%d,%d] = %v is not 0/1", i, j, g)
			}
		}
	}
	cfg := &CloneConfig{Geno: geno, Clones: clones}
	if !cfg.discriminating() {
		return nil, invalidInputf("no variant distinguishes any pair of clones; posterior would be determined by the prior alone")
	}
	return cfg, nil
}

// discriminating reports whether at least one variant row differs
// across clones. When none does the posterior is under-determined.
func (cfg *CloneConfig) discriminating() bool {
	v, k := cfg.Geno.Dims()
	if k < 2 {
		return true
	}
	for i := 0; i < v; i++ {
		for j := 1; j < k; j++ {
			if cfg.Geno.At(i, j) != cfg.Geno.At(i, 0) {
				return true
			}
		}
	}
	return false
}

func (cfg *CloneConfig) Nvariant() int {
	r, _ := cfg.Geno.Dims()
	return r
}

func (cfg *CloneConfig) Nclone() int {
	_, c := cfg.Geno.Dims()
	return c
}

func (cfg *CloneConfig) resample(rows []int) *CloneConfig {
	k := cfg.Nclone()
	geno := mat.NewDense(len(rows), k, nil)
	for ri, src := range rows {
		for j := 0; j < k; j++ {
			geno.Set(ri, j, cfg.Geno.At(src, j))
		}
	}
	return &CloneConfig{Geno: geno, Clones: cfg.Clones}
}

// checkAligned verifies the count matrices and the configuration
// describe the same variants (same row count; identity alignment is
// the caller's contract).
func checkAligned(rc *ReadCounts, cfg *CloneConfig, psi []float64) error {
	if rc.Nvariant() != cfg.Nvariant() {
		return invalidInputf("%d count rows but %d configuration rows", rc.Nvariant(), cfg.Nvariant())
	}
	if len(psi) != cfg.Nclone() {
		return invalidInputf("prior has %d entries for %d clones", len(psi), cfg.Nclone())
	}
	if !cfg.discriminating() {
		return invalidInputf("no variant distinguishes any pair of clones")
	}
	sum := 0.0
	for k, p := range psi {
		if math.IsNaN(p) || p < 0 {
			return invalidInputf("prior[%d] = %v", k, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		return invalidInputf("prior sums to %v, want 1", sum)
	}
	return nil
}

// UniformPrior returns the flat prior over k clones.
func UniformPrior(k int) []float64 {
	psi := make([]float64, k)
	for i := range psi {
		psi[i] = 1 / float64(k)
	}
	return psi
}

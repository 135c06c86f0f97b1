// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Model selects the base distribution for the mixture likelihood.
type Model int

const (
	// Bernoulli dichotomizes each covered observation to "any
	// alternate read" vs "none".
	Bernoulli Model = iota
	// Binomial models the alternate count as Binomial(depth, p),
	// using the read depths directly.
	Binomial
)

func ParseModel(name string) (Model, error) {
	switch name {
	case "bernoulli":
		return Bernoulli, nil
	case "binomial":
		return Binomial, nil
	}
	return 0, fmt.Errorf("unknown model %q (want bernoulli or binomial)", name)
}

func (m Model) String() string {
	if m == Binomial {
		return "binomial"
	}
	return "bernoulli"
}

// Theta is the global two-point success-rate parameter shared by all
// variants and cells: Theta[0] applies where the configuration says
// the variant is absent (background/error rate), Theta[1] where it is
// present.
type Theta [2]float64

// thetaMin keeps theta off the {0,1} boundary, where the Bernoulli
// and Binomial log terms are undefined.
const thetaMin = 1e-6

func (t Theta) clamp() Theta {
	for i, v := range t {
		if v < thetaMin {
			t[i] = thetaMin
		} else if v > 1-thetaMin {
			t[i] = 1 - thetaMin
		}
	}
	return t
}

func defaultTheta(model Model) Theta {
	if model == Binomial {
		// alt-read rate under error vs under a true mutation
		// subject to allele-specific expression
		return Theta{0.01, 0.45}
	}
	return Theta{0.02, 0.75}
}

// logLikMatrix returns the cell-by-clone log-likelihood matrix: entry
// [j,k] is the log-probability of cell j's covered observations under
// the hypothesis that cell j belongs to clone k. Missing entries
// contribute no term (missing at random). The sweep over (cell, clone)
// is expressed as two matrix products: with H0/H1 the per-entry log
// terms under the absent/present hypotheses (zero where uncovered),
// L = H0' (1-G) + H1' G.
func logLikMatrix(rc *ReadCounts, cfg *CloneConfig, theta Theta, model Model) *mat.Dense {
	v, n := rc.A.Dims()
	k := cfg.Nclone()

	h0 := mat.NewDense(v, n, nil)
	h1 := mat.NewDense(v, n, nil)
	for i := 0; i < v; i++ {
		for j := 0; j < n; j++ {
			if !rc.Observed(i, j) {
				continue
			}
			h0.Set(i, j, logObsProb(rc.A.At(i, j), rc.D.At(i, j), theta[0], model))
			h1.Set(i, j, logObsProb(rc.A.At(i, j), rc.D.At(i, j), theta[1], model))
		}
	}

	g := cfg.Geno
	gc := mat.NewDense(v, k, nil)
	gc.Apply(func(_, _ int, x float64) float64 { return 1 - x }, g)

	ll := mat.NewDense(n, k, nil)
	ll.Mul(h0.T(), gc)
	var l1 mat.Dense
	l1.Mul(h1.T(), g)
	ll.Add(ll, &l1)
	return ll
}

func logObsProb(alt, depth, p float64, model Model) float64 {
	if model == Binomial {
		return distuv.Binomial{N: depth, P: p}.LogProb(alt)
	}
	if alt > 0 {
		return math.Log(p)
	}
	return math.Log(1 - p)
}

// posterior turns a log-likelihood matrix and a clone prior into a
// normalized cell-by-clone probability matrix, and returns the total
// observed-data log-likelihood.
func posterior(ll *mat.Dense, psi []float64) (*mat.Dense, float64) {
	n, k := ll.Dims()
	logPsi := make([]float64, k)
	for i, p := range psi {
		logPsi[i] = math.Log(p)
	}
	p := mat.NewDense(n, k, nil)
	total := 0.0
	row := make([]float64, k)
	for j := 0; j < n; j++ {
		for c := 0; c < k; c++ {
			row[c] = logPsi[c] + ll.At(j, c)
		}
		lse := floats.LogSumExp(row)
		total += lse
		for c := 0; c < k; c++ {
			p.Set(j, c, math.Exp(row[c]-lse))
		}
	}
	return p, total
}

// sufficientStats accumulates, per hypothesis h in {absent, present},
// the soft-weighted success and trial totals over all covered
// (variant, cell, clone) triples, weighting each by the cell-clone
// responsibility w[j,k]. For the Bernoulli model a trial is one
// covered observation and a success is alt>0; for the Binomial model
// trials are read depths and successes alternate counts.
func sufficientStats(rc *ReadCounts, cfg *CloneConfig, w *mat.Dense, model Model) (succ, trials [2]float64) {
	v, n := rc.A.Dims()

	// per-entry success and trial values
	x := mat.NewDense(v, n, nil)
	m := mat.NewDense(v, n, nil)
	for i := 0; i < v; i++ {
		for j := 0; j < n; j++ {
			if !rc.Observed(i, j) {
				continue
			}
			if model == Binomial {
				x.Set(i, j, rc.A.At(i, j))
				m.Set(i, j, rc.D.At(i, j))
			} else {
				if rc.A.At(i, j) > 0 {
					x.Set(i, j, 1)
				}
				m.Set(i, j, 1)
			}
		}
	}

	g := cfg.Geno
	k := cfg.Nclone()
	gc := mat.NewDense(v, k, nil)
	gc.Apply(func(_, _ int, y float64) float64 { return 1 - y }, g)

	// (X' G)[j,k] is the success total cell j would contribute if it
	// belonged to clone k; weighting elementwise by w and summing
	// gives the expected totals.
	for h, gh := range []*mat.Dense{gc, g} {
		var s, t mat.Dense
		s.Mul(x.T(), gh)
		t.Mul(m.T(), gh)
		s.MulElem(&s, w)
		t.MulElem(&t, w)
		succ[h] = mat.Sum(&s)
		trials[h] = mat.Sum(&t)
	}
	return succ, trials
}

// coveredCells counts cells with at least one covered variant.
func coveredCells(rc *ReadCounts) int {
	v, n := rc.D.Dims()
	covered := 0
	for j := 0; j < n; j++ {
		for i := 0; i < v; i++ {
			if rc.Observed(i, j) {
				covered++
				break
			}
		}
	}
	return covered
}

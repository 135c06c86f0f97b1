// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"context"
	"math"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GibbsOptions control the Gibbs sampler. The zero value selects the
// defaults: 1000 iterations, first 25% discarded as burn-in,
// Beta(1,1) priors on both components of theta.
type GibbsOptions struct {
	NIter    int
	BurnFrac float64
	Seed     uint64
	Theta0   *Theta
	Quiet    bool
}

func (o GibbsOptions) withDefaults(model Model) GibbsOptions {
	if o.NIter <= 0 {
		o.NIter = 1000
	}
	if o.BurnFrac <= 0 || o.BurnFrac >= 1 {
		o.BurnFrac = 0.25
	}
	if o.Theta0 == nil {
		t := defaultTheta(model)
		o.Theta0 = &t
	}
	return o
}

// GibbsResult is the full chain produced by FitGibbs. P[j,k] is the
// post-burn-in frequency with which cell j was sampled into clone k.
// Convergence diagnostics on the chains are the caller's
// responsibility.
type GibbsResult struct {
	P           *mat.Dense
	ThetaChain  []Theta
	LogLik      []float64
	Assignments [][]int
	BurnIn      int
}

// FitGibbs samples the posterior over (cell assignments, theta) by
// Gibbs sampling. Each sweep draws every cell's clone label from the
// same categorical kernel the E-step uses, then draws theta from its
// Beta conjugate posterior given the hard assignments. The chain is
// strictly sequential; ctx is checked at iteration boundaries.
func FitGibbs(ctx context.Context, rc *ReadCounts, cfg *CloneConfig, psi []float64, model Model, opts GibbsOptions) (*GibbsResult, error) {
	if err := checkAligned(rc, cfg, psi); err != nil {
		return nil, err
	}
	if coveredCells(rc) == 0 {
		return nil, &DegenerateFitError{Guard: "no cell has a covered variant"}
	}
	opts = opts.withDefaults(model)

	n := rc.Ncell()
	k := cfg.Nclone()
	rnd := rand.New(rand.NewSource(opts.Seed))
	theta := opts.Theta0.clamp()
	logPsi := make([]float64, k)
	for i, p := range psi {
		logPsi[i] = math.Log(p)
	}

	res := &GibbsResult{
		ThetaChain:  make([]Theta, 0, opts.NIter),
		LogLik:      make([]float64, 0, opts.NIter),
		Assignments: make([][]int, 0, opts.NIter),
		BurnIn:      int(float64(opts.NIter) * opts.BurnFrac),
	}
	freq := mat.NewDense(n, k, nil)
	logRow := make([]float64, k)
	for iter := 0; iter < opts.NIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ll := logLikMatrix(rc, cfg, theta, model)

		// sample cell assignments
		z := make([]int, n)
		total := 0.0
		for j := 0; j < n; j++ {
			for c := 0; c < k; c++ {
				logRow[c] = logPsi[c] + ll.At(j, c)
			}
			lse := floats.LogSumExp(logRow)
			u := rnd.Float64()
			cum := 0.0
			z[j] = k - 1
			for c := 0; c < k; c++ {
				cum += math.Exp(logRow[c] - lse)
				if u < cum {
					z[j] = c
					break
				}
			}
			total += ll.At(j, z[j])
		}

		// sample theta from its conjugate posterior given the
		// hard assignments
		onehot := mat.NewDense(n, k, nil)
		for j, c := range z {
			onehot.Set(j, c, 1)
		}
		succ, trials := sufficientStats(rc, cfg, onehot, model)
		for h := 0; h < 2; h++ {
			theta[h] = distuv.Beta{
				Alpha: 1 + succ[h],
				Beta:  1 + trials[h] - succ[h],
				Src:   rnd,
			}.Rand()
		}
		theta = theta.clamp()

		res.ThetaChain = append(res.ThetaChain, theta)
		res.LogLik = append(res.LogLik, total)
		res.Assignments = append(res.Assignments, z)
		if iter >= res.BurnIn {
			for j, c := range z {
				freq.Set(j, c, freq.At(j, c)+1)
			}
		}
	}

	kept := float64(opts.NIter - res.BurnIn)
	freq.Scale(1/kept, freq)
	res.P = freq
	if !opts.Quiet {
		log.Printf("gibbs: %d iterations (%d burn-in), final theta %v", opts.NIter, res.BurnIn, theta)
	}
	return res, nil
}

// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"context"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// EMOptions control the EM fit. The zero value selects the defaults.
type EMOptions struct {
	MaxIter int     // default 200
	Tol     float64 // log-likelihood change below which EM stops; default 1e-6
	Theta0  *Theta  // starting point; default depends on the model
	Quiet   bool
}

func (o EMOptions) withDefaults(model Model) EMOptions {
	if o.MaxIter <= 0 {
		o.MaxIter = 200
	}
	if o.Tol <= 0 {
		o.Tol = 1e-6
	}
	if o.Theta0 == nil {
		t := defaultTheta(model)
		o.Theta0 = &t
	}
	return o
}

// FitResult is the outcome of an EM fit: the cell-by-clone posterior,
// the fitted global parameter, and the log-likelihood trajectory (one
// entry per iteration, non-decreasing). Converged is false when the
// iteration cap was hit before the tolerance; the result is still the
// best iterate reached.
type FitResult struct {
	P         *mat.Dense
	Theta     Theta
	LogLik    []float64
	Converged bool
}

// FitEM fits the clone mixture model by expectation-maximization.
// psi is the clone prior (length K, sums to 1). The fit is
// deterministic: identical inputs and starting point give identical
// results. ctx is checked between iterations.
func FitEM(ctx context.Context, rc *ReadCounts, cfg *CloneConfig, psi []float64, model Model, opts EMOptions) (*FitResult, error) {
	if err := checkAligned(rc, cfg, psi); err != nil {
		return nil, err
	}
	if coveredCells(rc) == 0 {
		return nil, &DegenerateFitError{Guard: "no cell has a covered variant"}
	}
	opts = opts.withDefaults(model)

	theta := opts.Theta0.clamp()
	var (
		p      *mat.Dense
		loglik []float64
	)
	for iter := 0; iter < opts.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// E-step
		ll := logLikMatrix(rc, cfg, theta, model)
		var total float64
		p, total = posterior(ll, psi)
		if math.IsNaN(total) || math.IsInf(total, 1) {
			return nil, &DegenerateFitError{Guard: "log-likelihood is not finite"}
		}
		loglik = append(loglik, total)
		if iter > 0 && total-loglik[iter-1] < opts.Tol {
			if !opts.Quiet {
				log.Printf("em: converged after %d iterations, logLik %.6f, theta %v", iter+1, total, theta)
			}
			return &FitResult{P: p, Theta: theta, LogLik: loglik, Converged: true}, nil
		}

		// M-step
		succ, trials := sufficientStats(rc, cfg, p, model)
		if trials[0]+trials[1] == 0 {
			return nil, &DegenerateFitError{Guard: "no trials in M-step"}
		}
		for h := 0; h < 2; h++ {
			if trials[h] > 0 {
				theta[h] = succ[h] / trials[h]
			}
		}
		theta = theta.clamp()
	}
	if !opts.Quiet {
		log.Printf("em: not converged after %d iterations, logLik %.6f", opts.MaxIter, loglik[len(loglik)-1])
	}
	return &FitResult{P: p, Theta: theta, LogLik: loglik, Converged: false}, nil
}

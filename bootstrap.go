// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"context"
	"errors"
	"math"
	"runtime"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// BootstrapOptions control the variant-resampling bootstrap. The zero
// value selects the defaults: 500 replicates, up to 10 fresh
// resamples per replicate after degenerate fits, one worker per CPU.
type BootstrapOptions struct {
	Nboot      int
	MaxRetries int
	Workers    int
	Seed       uint64
	EM         EMOptions
}

func (o BootstrapOptions) withDefaults() BootstrapOptions {
	if o.Nboot <= 0 {
		o.Nboot = 500
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 10
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	o.EM.Quiet = true
	return o
}

// BootstrapResult holds per-replicate posteriors: P[b] is the
// cell-by-clone posterior from replicate b, nil where the replicate
// kept producing degenerate fits through every retry.
type BootstrapResult struct {
	P      []*mat.Dense
	Failed int
}

// retryable reports whether a replicate's fit failed for a reason a
// fresh resample can fix: a degenerate fit, or a resample that lost
// every discriminating variant.
func retryable(err error) bool {
	var degenerate *DegenerateFitError
	var invalid *InvalidInputError
	return errors.As(err, &degenerate) || errors.As(err, &invalid)
}

// Band is the per-(cell, clone) confidence band over bootstrap
// replicates: the five-number summary plus Tukey whiskers clamped to
// the observed range.
type Band struct {
	Min, Q1, Median, Q3, Max float64
	WhiskLo, WhiskHi         float64
}

// Bootstrap resamples variant rows with replacement (the same
// resample applied jointly to counts and configuration, preserving
// row correspondence) and refits the Bernoulli mixture by EM on each
// resample. Replicates run concurrently; each owns its slot of the
// result, so the reduction needs no locking. A replicate whose
// resample yields a degenerate fit is retried with a fresh resample
// up to MaxRetries times, then counted as failed. ctx aborts between
// replicates.
func Bootstrap(ctx context.Context, rc *ReadCounts, cfg *CloneConfig, psi []float64, opts BootstrapOptions) (*BootstrapResult, error) {
	if err := checkAligned(rc, cfg, psi); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	v := rc.Nvariant()

	res := &BootstrapResult{P: make([]*mat.Dense, opts.Nboot)}
	failed := make([]bool, opts.Nboot)
	throttle := throttle{Max: opts.Workers}
	for b := 0; b < opts.Nboot; b++ {
		if err := ctx.Err(); err != nil {
			throttle.Report(err)
			break
		}
		if err := throttle.Acquire(ctx); err != nil {
			break
		}
		go func(b int) {
			defer throttle.Release()
			// each replicate gets its own deterministic stream
			rnd := rand.New(rand.NewSource(opts.Seed + uint64(b)))
			rows := make([]int, v)
			for attempt := 0; ; attempt++ {
				for i := range rows {
					rows[i] = rnd.Intn(v)
				}
				fit, err := FitEM(ctx, rc.resample(rows), cfg.resample(rows), psi, Bernoulli, opts.EM)
				if retryable(err) {
					if attempt+1 < opts.MaxRetries {
						continue
					}
					log.Printf("bootstrap: replicate %d failed after %d resamples: %s", b, opts.MaxRetries, err)
					failed[b] = true
					return
				}
				if err != nil {
					throttle.Report(err)
					return
				}
				res.P[b] = fit.P
				return
			}
		}(b)
	}
	if err := throttle.Wait(); err != nil {
		return nil, err
	}
	for _, f := range failed {
		if f {
			res.Failed++
		}
	}
	if res.Failed == opts.Nboot {
		return nil, &DegenerateFitError{Guard: "every bootstrap replicate was degenerate"}
	}
	return res, nil
}

// Bands aggregates the replicate posteriors into per-(cell, clone)
// confidence bands. Failed replicates are excluded.
func (res *BootstrapResult) Bands() [][]Band {
	var n, k int
	for _, p := range res.P {
		if p != nil {
			n, k = p.Dims()
			break
		}
	}
	bands := make([][]Band, n)
	sample := make([]float64, 0, len(res.P))
	for j := 0; j < n; j++ {
		bands[j] = make([]Band, k)
		for c := 0; c < k; c++ {
			sample = sample[:0]
			for _, p := range res.P {
				if p != nil {
					sample = append(sample, p.At(j, c))
				}
			}
			bands[j][c] = newBand(sample)
		}
	}
	return bands
}

func newBand(sample []float64) Band {
	min, q1, median, q3, max := fiveNum(sample)
	iqr := q3 - q1
	return Band{
		Min: min, Q1: q1, Median: median, Q3: q3, Max: max,
		WhiskLo: math.Max(min, q1-1.5*iqr),
		WhiskHi: math.Min(max, q3+1.5*iqr),
	}
}

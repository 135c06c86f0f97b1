// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// inputs holds the flags naming the pre-aligned input files shared by
// the assign and bootstrap commands.
type inputs struct {
	alt    string
	depth  string
	config string
	prior  string
}

func (in *inputs) Flags(flags *flag.FlagSet) {
	flags.StringVar(&in.alt, "alt", "", "alternate-allele count matrix `file` (variant x cell TSV, .gz ok)")
	flags.StringVar(&in.depth, "depth", "", "read depth matrix `file` (variant x cell TSV, .gz ok)")
	flags.StringVar(&in.config, "config", "", "clone configuration matrix `file` (variant x clone TSV, .gz ok)")
	flags.StringVar(&in.prior, "prior", "", "clone prior `file` (clone TAB weight; default uniform)")
}

func (in *inputs) Load() (*ReadCounts, *CloneConfig, []float64, []string, error) {
	for _, req := range []struct{ name, val string }{{"-alt", in.alt}, {"-depth", in.depth}, {"-config", in.config}} {
		if req.val == "" {
			return nil, nil, nil, nil, fmt.Errorf("%s is required", req.name)
		}
	}
	alt, err := loadMatrixTSV(in.alt)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	depth, err := loadMatrixTSV(in.depth)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	rc, err := alignCounts(alt, depth)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	cfg, err := loadConfig(in.config, alt.Rows)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	psi, err := loadPrior(in.prior, cfg.Clones)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	log.Printf("loaded %d variants x %d cells, %d clones", rc.Nvariant(), rc.Ncell(), cfg.Nclone())
	return rc, cfg, psi, alt.Cols, nil
}

type assigncmd struct {
	inputs inputs
}

func (cmd *assigncmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cmd.inputs.Flags(flags)
	modelName := flags.String("model", "bernoulli", "base `model`: bernoulli or binomial")
	threshold := flags.Float64("threshold", 0.25, "assign a cell only if its top posterior exceeds (1+`T`) times the runner-up")
	gibbs := flags.Bool("gibbs", false, "sample the posterior by Gibbs instead of point-fitting by EM")
	gibbsIter := flags.Int("gibbs-iter", 1000, "Gibbs chain length")
	burnFrac := flags.Float64("burn-frac", 0.25, "fraction of the Gibbs chain discarded as burn-in")
	seed := flags.Uint64("seed", 1, "random seed for the Gibbs sampler")
	mergeK := flags.Int("merge-clusters", 0, "merge indistinguishable clones by clustering cell profiles down to `K` clusters (0 = off)")
	mergeMargin := flags.Float64("merge-margin", DefaultMergeMargin, "in-cluster probability mass must exceed `M` times the best outside clone")
	outputFilename := flags.String("o", "-", "output assignment table `file`")
	probNpy := flags.String("p-npy", "", "also write the posterior probability matrix to a numpy `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	var model Model
	model, err = ParseModel(*modelName)
	if err != nil {
		return 2
	}
	var (
		rc    *ReadCounts
		cfg   *CloneConfig
		psi   []float64
		cells []string
	)
	rc, cfg, psi, cells, err = cmd.inputs.Load()
	if err != nil {
		return 1
	}

	ctx := context.Background()
	var p *mat.Dense
	if *gibbs {
		var res *GibbsResult
		res, err = FitGibbs(ctx, rc, cfg, psi, model, GibbsOptions{NIter: *gibbsIter, BurnFrac: *burnFrac, Seed: *seed})
		if err != nil {
			return 1
		}
		p = res.P
	} else {
		var res *FitResult
		res, err = FitEM(ctx, rc, cfg, psi, model, EMOptions{})
		if err != nil {
			return 1
		}
		if !res.Converged {
			log.Warn("EM did not converge; reporting the best iterate reached")
		}
		p = res.P
	}

	assignments := AssignCells(p, cfg, *threshold)
	if *mergeK > 0 {
		var ca *ClusterAssignment
		ca, err = ClusterMerge(p, *mergeK, ClusterOptions{})
		if err != nil {
			return 1
		}
		cloneCluster := VoteCloneClusters(assignments, ca, cfg)
		assignments = ReassignMerged(p, ca, cloneCluster, cfg, *mergeMargin)
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0777)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	fmt.Fprintln(bufw, "cell\tbest_clone\tbest_prob\tassignable\tlabel")
	for _, a := range assignments {
		fmt.Fprintf(bufw, "%s\t%s\t%.6f\t%v\t%s\n", cells[a.Cell], cfg.Clones[a.Best], a.BestProb, a.Assignable, a.Label)
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}

	if *probNpy != "" {
		n, k := p.Dims()
		data := make([]float64, 0, n*k)
		for j := 0; j < n; j++ {
			data = append(data, p.RawRowView(j)...)
		}
		err = writeNpy(*probNpy, []int{n, k}, data)
		if err != nil {
			return 1
		}
	}
	return 0
}

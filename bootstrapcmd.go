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
	"math"
	"os"

	log "github.com/sirupsen/logrus"
)

type bootstrapcmd struct {
	inputs inputs
}

func (cmd *bootstrapcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cmd.inputs.Flags(flags)
	nboot := flags.Int("nboot", 500, "number of bootstrap replicates")
	retries := flags.Int("retries", 10, "fresh resamples to try when a replicate's fit is degenerate")
	workers := flags.Int("workers", 0, "concurrent replicates (0 = GOMAXPROCS)")
	seed := flags.Uint64("seed", 1, "random seed for variant resampling")
	outputFilename := flags.String("o", "-", "output band table `file`")
	repNpy := flags.String("npy", "", "also write the cell x clone x replicate posterior array to a numpy `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
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

	var res *BootstrapResult
	res, err = Bootstrap(context.Background(), rc, cfg, psi, BootstrapOptions{
		Nboot:      *nboot,
		MaxRetries: *retries,
		Workers:    *workers,
		Seed:       *seed,
	})
	if err != nil {
		return 1
	}
	if res.Failed > 0 {
		log.Warnf("%d of %d replicates failed and are excluded from the bands", res.Failed, *nboot)
	}
	bands := res.Bands()

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
	fmt.Fprintln(bufw, "cell\tclone\tmin\tq1\tmedian\tq3\tmax\twhisk_lo\twhisk_hi")
	for j, row := range bands {
		for k, b := range row {
			fmt.Fprintf(bufw, "%s\t%s\t%.6f\t%.6f\t%.6f\t%.6f\t%.6f\t%.6f\t%.6f\n",
				cells[j], cfg.Clones[k], b.Min, b.Q1, b.Median, b.Q3, b.Max, b.WhiskLo, b.WhiskHi)
		}
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}

	if *repNpy != "" {
		n, k := rc.Ncell(), cfg.Nclone()
		data := make([]float64, n*k*len(res.P))
		for j := 0; j < n; j++ {
			for c := 0; c < k; c++ {
				for b, p := range res.P {
					v := math.NaN()
					if p != nil {
						v = p.At(j, c)
					}
					data[(j*k+c)*len(res.P)+b] = v
				}
			}
		}
		err = writeNpy(*repNpy, []int{n, k, len(res.P)}, data)
		if err != nil {
			return 1
		}
	}
	return 0
}

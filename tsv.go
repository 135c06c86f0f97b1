// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	"gonum.org/v1/gonum/mat"
)

// matrixTSV is a labeled matrix as read from (or written to) a
// tab-separated file: one header line of column names, then one line
// per row of rowname followed by values. "NA" and empty fields are
// missing entries (NaN).
type matrixTSV struct {
	Rows []string
	Cols []string
	M    *mat.Dense
}

func openInput(filename string) (io.ReadCloser, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(filename, ".gz") {
		return f, nil
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: gzip: %w", filename, err)
	}
	return gzipr{rdr, f}, nil
}

// gzipr wraps a ReadCloser and a Closer, presenting a single Close()
// that closes both.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	err := gr.ReadCloser.Close()
	if err2 := gr.Closer.Close(); err == nil {
		err = err2
	}
	return err
}

func loadMatrixTSV(filename string) (*matrixTSV, error) {
	input, err := openInput(filename)
	if err != nil {
		return nil, err
	}
	defer input.Close()
	mt, err := readMatrixTSV(input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return mt, nil
}

func readMatrixTSV(input io.Reader) (*matrixTSV, error) {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 1<<20), 1<<28)
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty input: %w", scanner.Err())
	}
	mt := &matrixTSV{Cols: strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")}
	var data []float64
	for lineno := 2; scanner.Scan(); lineno++ {
		fields := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
		if len(fields) != len(mt.Cols)+1 {
			return nil, fmt.Errorf("line %d: %d fields, want %d", lineno, len(fields), len(mt.Cols)+1)
		}
		mt.Rows = append(mt.Rows, fields[0])
		for _, field := range fields[1:] {
			if field == "" || field == "NA" {
				data = append(data, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %q: %w", lineno, field, err)
			}
			data = append(data, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(mt.Rows) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	mt.M = mat.NewDense(len(mt.Rows), len(mt.Cols), data)
	return mt, nil
}

// alignCounts builds validated read counts from alt and depth files,
// requiring identical row and column labels in identical order, and
// treating NaN/zero depth as no coverage. Alt entries with no depth
// are cleared rather than rejected, so sparse exports that leave alt
// blank where depth is blank load cleanly.
func alignCounts(alt, depth *matrixTSV) (*ReadCounts, error) {
	if len(alt.Rows) != len(depth.Rows) || len(alt.Cols) != len(depth.Cols) {
		return nil, invalidInputf("alt is %dx%d but depth is %dx%d", len(alt.Rows), len(alt.Cols), len(depth.Rows), len(depth.Cols))
	}
	for i, r := range alt.Rows {
		if depth.Rows[i] != r {
			return nil, invalidInputf("row %d: alt has variant %q, depth has %q", i, r, depth.Rows[i])
		}
	}
	for j, c := range alt.Cols {
		if depth.Cols[j] != c {
			return nil, invalidInputf("column %d: alt has cell %q, depth has %q", j, c, depth.Cols[j])
		}
	}
	v, n := alt.M.Dims()
	for i := 0; i < v; i++ {
		for j := 0; j < n; j++ {
			d := depth.M.At(i, j)
			if math.IsNaN(d) || d == 0 {
				depth.M.Set(i, j, 0)
				alt.M.Set(i, j, math.NaN())
			} else if math.IsNaN(alt.M.At(i, j)) {
				alt.M.Set(i, j, 0)
			}
		}
	}
	return NewReadCounts(alt.M, depth.M)
}

// loadConfig reads the variant-by-clone configuration matrix,
// requiring the same variant rows, in the same order, as the counts.
func loadConfig(filename string, variantRows []string) (*CloneConfig, error) {
	mt, err := loadMatrixTSV(filename)
	if err != nil {
		return nil, err
	}
	if len(mt.Rows) != len(variantRows) {
		return nil, invalidInputf("%s: %d variants, counts have %d", filename, len(mt.Rows), len(variantRows))
	}
	for i, r := range mt.Rows {
		if r != variantRows[i] {
			return nil, invalidInputf("%s row %d: variant %q, counts have %q", filename, i, r, variantRows[i])
		}
	}
	return NewCloneConfig(mt.M, mt.Cols)
}

// loadPrior reads "clone<TAB>weight" lines and returns weights in
// clone order. An empty filename means the uniform prior.
func loadPrior(filename string, clones []string) ([]float64, error) {
	if filename == "" {
		return UniformPrior(len(clones)), nil
	}
	input, err := openInput(filename)
	if err != nil {
		return nil, err
	}
	defer input.Close()
	index := map[string]int{}
	for k, name := range clones {
		index[name] = k
	}
	psi := make([]float64, len(clones))
	seen := make([]bool, len(clones))
	scanner := bufio.NewScanner(input)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s line %d: want clone<TAB>weight", filename, lineno)
		}
		k, ok := index[fields[0]]
		if !ok {
			return nil, fmt.Errorf("%s line %d: unknown clone %q", filename, lineno, fields[0])
		}
		if seen[k] {
			return nil, fmt.Errorf("%s line %d: duplicate clone %q", filename, lineno, fields[0])
		}
		seen[k] = true
		psi[k], err = strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for k, s := range seen {
		if !s {
			return nil, fmt.Errorf("%s: no weight for clone %q", filename, clones[k])
		}
	}
	return psi, nil
}

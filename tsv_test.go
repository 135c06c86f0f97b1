// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"io/ioutil"
	"math"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"gopkg.in/check.v1"
)

type tsvSuite struct{}

var _ = check.Suite(&tsvSuite{})

const altTSV = `cell1	cell2	cell3
var1	3	NA	0
var2	0	2	
var3	1	0	4
`

const depthTSV = `cell1	cell2	cell3
var1	5	NA	2
var2	4	2	0
var3	1	3	9
`

func (s *tsvSuite) TestReadMatrixTSV(c *check.C) {
	mt, err := readMatrixTSV(strings.NewReader(altTSV))
	c.Assert(err, check.IsNil)
	c.Check(mt.Cols, check.DeepEquals, []string{"cell1", "cell2", "cell3"})
	c.Check(mt.Rows, check.DeepEquals, []string{"var1", "var2", "var3"})
	c.Check(mt.M.At(0, 0), check.Equals, 3.0)
	c.Check(math.IsNaN(mt.M.At(0, 1)), check.Equals, true)
	c.Check(math.IsNaN(mt.M.At(1, 2)), check.Equals, true)
}

func (s *tsvSuite) TestReadMatrixTSVErrors(c *check.C) {
	_, err := readMatrixTSV(strings.NewReader("cell1\tcell2\nvar1\t1\n"))
	c.Check(err, check.ErrorMatches, `line 2: 2 fields, want 3`)
	_, err = readMatrixTSV(strings.NewReader("cell1\nvar1\tx\n"))
	c.Check(err, check.ErrorMatches, `line 2: "x": .*`)
	_, err = readMatrixTSV(strings.NewReader("cell1\n"))
	c.Check(err, check.ErrorMatches, `no data rows`)
}

func (s *tsvSuite) TestAlignCounts(c *check.C) {
	alt, err := readMatrixTSV(strings.NewReader(altTSV))
	c.Assert(err, check.IsNil)
	depth, err := readMatrixTSV(strings.NewReader(depthTSV))
	c.Assert(err, check.IsNil)
	rc, err := alignCounts(alt, depth)
	c.Assert(err, check.IsNil)
	c.Check(rc.Observed(0, 0), check.Equals, true)
	// NA depth and zero depth both mean no observation
	c.Check(rc.Observed(0, 1), check.Equals, false)
	c.Check(rc.Observed(1, 2), check.Equals, false)
	c.Check(rc.A.At(2, 2), check.Equals, 4.0)
	c.Check(rc.CoverageMask(2), check.DeepEquals, []bool{true, false, true})
}

func (s *tsvSuite) TestAlignCountsMismatch(c *check.C) {
	alt, err := readMatrixTSV(strings.NewReader(altTSV))
	c.Assert(err, check.IsNil)
	depth, err := readMatrixTSV(strings.NewReader(strings.Replace(depthTSV, "var2", "varX", 1)))
	c.Assert(err, check.IsNil)
	_, err = alignCounts(alt, depth)
	c.Check(err, check.FitsTypeOf, &InvalidInputError{})
}

func (s *tsvSuite) TestLoadGzipped(c *check.C) {
	f, err := ioutil.TempFile("", "cloneid_test_*.tsv.gz")
	c.Assert(err, check.IsNil)
	defer os.Remove(f.Name())
	gzw := pgzip.NewWriter(f)
	_, err = gzw.Write([]byte(altTSV))
	c.Assert(err, check.IsNil)
	c.Assert(gzw.Close(), check.IsNil)
	c.Assert(f.Close(), check.IsNil)

	mt, err := loadMatrixTSV(f.Name())
	c.Assert(err, check.IsNil)
	c.Check(mt.Rows, check.DeepEquals, []string{"var1", "var2", "var3"})
	c.Check(mt.M.At(2, 2), check.Equals, 4.0)
}

func (s *tsvSuite) TestLoadPrior(c *check.C) {
	f, err := ioutil.TempFile("", "cloneid_test_*.tsv")
	c.Assert(err, check.IsNil)
	defer os.Remove(f.Name())
	_, err = f.WriteString("B\t0.25\nA\t0.75\n")
	c.Assert(err, check.IsNil)
	c.Assert(f.Close(), check.IsNil)

	psi, err := loadPrior(f.Name(), []string{"A", "B"})
	c.Assert(err, check.IsNil)
	c.Check(psi, check.DeepEquals, []float64{0.75, 0.25})

	psi, err = loadPrior("", []string{"A", "B"})
	c.Assert(err, check.IsNil)
	c.Check(psi, check.DeepEquals, []float64{0.5, 0.5})

	_, err = loadPrior(f.Name(), []string{"A", "B", "C"})
	c.Check(err, check.ErrorMatches, `.*no weight for clone "C"`)
}

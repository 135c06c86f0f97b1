// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// topTwo returns the indices of the largest and second-largest entries
// of row. Ties go to the lower index. With a single entry both return
// values are 0.
func topTwo(row []float64) (best, second int) {
	if len(row) == 1 {
		return 0, 0
	}
	if row[1] > row[0] {
		best, second = 1, 0
	} else {
		best, second = 0, 1
	}
	for i := 2; i < len(row); i++ {
		switch {
		case row[i] > row[best]:
			second = best
			best = i
		case row[i] > row[second]:
			second = i
		}
	}
	return best, second
}

// fiveNum computes the five-number summary (min, Q1, median, Q3, max)
// of a sample. The input is not modified.
func fiveNum(sample []float64) (min, q1, median, q3, max float64) {
	sorted := append([]float64(nil), sample...)
	sort.Float64s(sorted)
	min = sorted[0]
	max = sorted[len(sorted)-1]
	q1 = stat.Quantile(0.25, stat.Empirical, sorted, nil)
	median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	q3 = stat.Quantile(0.75, stat.Empirical, sorted, nil)
	return
}

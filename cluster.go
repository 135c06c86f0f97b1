// Copyright (C) The CloneID Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cloneid

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ClusterOptions control the affinity-propagation pass. The zero
// value selects the defaults.
type ClusterOptions struct {
	Damping  float64 // message damping factor; default 0.9
	MaxIter  int     // default 1000
	ConvIter int     // stop after this many iterations without exemplar changes; default 50
}

func (o ClusterOptions) withDefaults() ClusterOptions {
	if o.Damping <= 0 || o.Damping >= 1 {
		o.Damping = 0.9
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 1000
	}
	if o.ConvIter <= 0 {
		o.ConvIter = 50
	}
	return o
}

// ClusterAssignment maps each cell to a cluster of cells whose
// posterior profiles are mutually similar. Cluster ids are dense,
// 0..len(Members)-1, numbered by first-encountered cell.
type ClusterAssignment struct {
	Cluster []int   // per cell
	Members [][]int // per cluster, ascending cell indices
}

// ClusterMerge groups cells by the similarity of their posterior
// probability profiles (negative squared distance between rows of p),
// using affinity propagation followed by an agglomerative merge of
// the resulting clusters down to targetK. It is used to detect groups
// of clones the data cannot tell apart: cells torn between such
// clones end up in one cluster. targetK <= 0 keeps the affinity
// propagation clustering as is.
func ClusterMerge(p *mat.Dense, targetK int, opts ClusterOptions) (*ClusterAssignment, error) {
	n, _ := p.Dims()
	if n == 0 {
		return nil, invalidInputf("no cells to cluster")
	}
	opts = opts.withDefaults()

	s := similarity(p)
	labels := affinityPropagation(s, opts)
	members := membersOf(labels)
	for targetK > 0 && len(members) > targetK {
		a, b := closestClusters(s, members)
		merged := append(members[a], members[b]...)
		sort.Ints(merged)
		members[a] = merged
		members = append(members[:b], members[b+1:]...)
	}
	return renumber(members, n), nil
}

// similarity returns the n-by-n matrix of negative squared Euclidean
// distances between rows of p, with the diagonal set to the median
// off-diagonal similarity (the affinity propagation preference).
func similarity(p *mat.Dense) *mat.Dense {
	n, k := p.Dims()
	s := mat.NewDense(n, n, nil)
	offdiag := make([]float64, 0, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d2 := 0.0
			for c := 0; c < k; c++ {
				d := p.At(i, c) - p.At(j, c)
				d2 += d * d
			}
			s.Set(i, j, -d2)
			offdiag = append(offdiag, -d2)
		}
	}
	pref := 0.0
	if len(offdiag) > 0 {
		sort.Float64s(offdiag)
		pref = offdiag[len(offdiag)/2]
	}
	for i := 0; i < n; i++ {
		s.Set(i, i, pref)
	}
	return s
}

// affinityPropagation runs the standard responsibility/availability
// message passing over the similarity matrix and returns an exemplar
// cell index per cell.
func affinityPropagation(s *mat.Dense, opts ClusterOptions) []int {
	n, _ := s.Dims()
	r := mat.NewDense(n, n, nil)
	a := mat.NewDense(n, n, nil)

	exemplars := make([]bool, n)
	stable := 0
	for iter := 0; iter < opts.MaxIter && stable < opts.ConvIter; iter++ {
		// responsibilities
		for i := 0; i < n; i++ {
			// top two of a[i,:]+s[i,:], so max over k'!=k is O(1)
			max1, max2 := math.Inf(-1), math.Inf(-1)
			arg1 := -1
			for k := 0; k < n; k++ {
				v := a.At(i, k) + s.At(i, k)
				if v > max1 {
					max2 = max1
					max1, arg1 = v, k
				} else if v > max2 {
					max2 = v
				}
			}
			for k := 0; k < n; k++ {
				other := max1
				if k == arg1 {
					other = max2
				}
				rho := s.At(i, k) - other
				r.Set(i, k, opts.Damping*r.At(i, k)+(1-opts.Damping)*rho)
			}
		}
		// availabilities
		for k := 0; k < n; k++ {
			pos := 0.0
			for i := 0; i < n; i++ {
				if i != k {
					pos += math.Max(0, r.At(i, k))
				}
			}
			for i := 0; i < n; i++ {
				var alpha float64
				if i == k {
					alpha = pos
				} else {
					alpha = math.Min(0, r.At(k, k)+pos-math.Max(0, r.At(i, k)))
				}
				a.Set(i, k, opts.Damping*a.At(i, k)+(1-opts.Damping)*alpha)
			}
		}

		changed := false
		for k := 0; k < n; k++ {
			e := r.At(k, k)+a.At(k, k) > 0
			if e != exemplars[k] {
				exemplars[k] = e
				changed = true
			}
		}
		if changed {
			stable = 0
		} else {
			stable++
		}
	}

	exlist := []int{}
	for k, e := range exemplars {
		if e {
			exlist = append(exlist, k)
		}
	}
	if len(exlist) == 0 {
		// no cell accumulated enough evidence to serve as an
		// exemplar; fall back to the single most central cell
		best, bestsum := 0, math.Inf(-1)
		for k := 0; k < n; k++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += s.At(i, k)
			}
			if sum > bestsum {
				best, bestsum = k, sum
			}
		}
		exlist = []int{best}
	}

	labels := make([]int, n)
	for i := 0; i < n; i++ {
		best, bestsim := exlist[0], math.Inf(-1)
		for _, k := range exlist {
			if i == k {
				best = k
				break
			}
			if s.At(i, k) > bestsim {
				best, bestsim = k, s.At(i, k)
			}
		}
		labels[i] = best
	}
	return labels
}

func membersOf(labels []int) [][]int {
	order := []int{}
	members := map[int][]int{}
	for cell, ex := range labels {
		if _, ok := members[ex]; !ok {
			order = append(order, ex)
		}
		members[ex] = append(members[ex], cell)
	}
	out := make([][]int, 0, len(order))
	for _, ex := range order {
		out = append(out, members[ex])
	}
	return out
}

// closestClusters returns the pair of clusters with the highest
// average inter-member similarity (average linkage). Ties go to the
// earliest pair in index order.
func closestClusters(s *mat.Dense, members [][]int) (int, int) {
	besta, bestb := 0, 1
	best := math.Inf(-1)
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			sum, cnt := 0.0, 0
			for _, i := range members[a] {
				for _, j := range members[b] {
					sum += s.At(i, j)
					cnt++
				}
			}
			if avg := sum / float64(cnt); avg > best {
				best, besta, bestb = avg, a, b
			}
		}
	}
	return besta, bestb
}

func renumber(members [][]int, n int) *ClusterAssignment {
	// number clusters by their earliest member cell
	sort.Slice(members, func(a, b int) bool { return members[a][0] < members[b][0] })
	ca := &ClusterAssignment{
		Cluster: make([]int, n),
		Members: members,
	}
	for id, cells := range members {
		for _, cell := range cells {
			ca.Cluster[cell] = id
		}
	}
	return ca
}

// VoteCloneClusters maps each clone to a cluster by majority vote:
// clone c goes to the cluster holding the most cells whose
// best-posterior clone is c. Ties break to the lowest cluster id, a
// deterministic rule rather than map iteration order.
func VoteCloneClusters(assignments []Assignment, ca *ClusterAssignment, cfg *CloneConfig) []int {
	k := cfg.Nclone()
	nc := len(ca.Members)
	votes := make([][]int, k)
	for c := range votes {
		votes[c] = make([]int, nc)
	}
	for _, a := range assignments {
		votes[a.Best][ca.Cluster[a.Cell]]++
	}
	cloneCluster := make([]int, k)
	for c := 0; c < k; c++ {
		best := 0
		for cl := 1; cl < nc; cl++ {
			if votes[c][cl] > votes[c][best] {
				best = cl
			}
		}
		cloneCluster[c] = best
	}
	return cloneCluster
}

// ReassignMerged re-assigns cells at cluster resolution. For a cell in
// cluster cl, with S the set of clones voted into cl: the cell keeps
// the composite label joining S iff the probability mass inside S
// exceeds margin times the largest single-clone probability outside
// S. margin defaults to 1.5 via the DefaultMergeMargin constant; like
// the voting tie-break it is a fixed convention, not a fitted value.
func ReassignMerged(p *mat.Dense, ca *ClusterAssignment, cloneCluster []int, cfg *CloneConfig, margin float64) []Assignment {
	n, k := p.Dims()
	out := make([]Assignment, n)
	for j := 0; j < n; j++ {
		cl := ca.Cluster[j]
		in := []int{}
		pin, pout := 0.0, 0.0
		for c := 0; c < k; c++ {
			if cloneCluster[c] == cl {
				in = append(in, c)
				pin += p.At(j, c)
			} else if p.At(j, c) > pout {
				pout = p.At(j, c)
			}
		}
		best, _ := topTwo(p.RawRowView(j))
		a := Assignment{
			Cell:     j,
			Best:     best,
			BestProb: p.At(j, best),
			Label:    Unassigned,
		}
		if len(in) > 0 && pin >= margin*pout {
			names := make([]string, len(in))
			for i, c := range in {
				names[i] = cfg.Clones[c]
			}
			a.Assignable = true
			a.Label = strings.Join(names, ",")
		}
		out[j] = a
	}
	return out
}

// DefaultMergeMargin is the factor by which in-cluster probability
// mass must dominate the best out-of-cluster clone for a merged-label
// assignment to stick.
const DefaultMergeMargin = 1.5

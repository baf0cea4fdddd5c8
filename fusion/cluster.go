// Copyright 2025 The qsim Authors
// This file is part of the qsim library.
//
// The qsim library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The qsim library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the qsim library. If not, see <http://www.gnu.org/licenses/>.

// Package fusion groups buffered gates into clusters over bounded qubit
// subsets so an evaluator can flush each cluster as one pass over the
// amplitude vector. Flushing the clusters in emission order is
// observationally equivalent to applying the gates one by one in
// submission order.
package fusion

import (
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/exp/slices"

	"github.com/qubitforge/qsim/gate"
)

// Gate is one pending gate: a 2x2 matrix on Target, conditioned on the
// Controls all being 1. Controls are ordered but treated as a set and
// never contain the target. Immutable once buffered.
type Gate struct {
	Controls []uint
	Target   uint
	Mat      gate.Matrix
}

// Qids returns the qubits the gate touches, controls first.
func (g Gate) Qids() []uint {
	qids := make([]uint, 0, len(g.Controls)+1)
	qids = append(qids, g.Controls...)
	return append(qids, g.Target)
}

// Cluster is an ordered run of gates together with the union of the
// qubits they touch. Gates stay in submission order.
type Cluster struct {
	qids  mapset.Set[uint]
	gates []Gate
}

func newCluster(g Gate) *Cluster {
	return &Cluster{
		qids:  mapset.NewThreadUnsafeSet(g.Qids()...),
		gates: []Gate{g},
	}
}

// Qids returns the touched qubits in ascending order.
func (c *Cluster) Qids() []uint {
	qids := c.qids.ToSlice()
	slices.Sort(qids)
	return qids
}

// Gates returns the gates in submission order.
func (c *Cluster) Gates() []Gate {
	return c.gates
}

// Width is the number of distinct qubits the cluster touches.
func (c *Cluster) Width() int {
	return c.qids.Cardinality()
}

// Depth is the number of gates in the cluster.
func (c *Cluster) Depth() int {
	return len(c.gates)
}

// takeCompatible scans the stack from its top (the cluster nearest in
// submission order) outward for the first cluster that can be absorbed
// into c at the given width. A candidate is absorbable when the union of
// qubit sets fits the width, the combined gate count fits maxDepth, and
// every qubit it adds is untouched by the clusters scanned past; a
// candidate sharing qubits with c that cannot be absorbed is a barrier and
// ends the scan. On success the candidate is removed from the stack,
// merged into c, and true is returned.
func (c *Cluster) takeCompatible(stack *[]*Cluster, width, maxDepth int) bool {
	allTouched := c.qids.Clone()
	for i := len(*stack) - 1; i >= 0; i-- {
		next := (*stack)[i]
		union := c.qids.Union(next.qids)
		if union.Cardinality() <= width && len(c.gates)+len(next.gates) <= maxDepth {
			diff := next.qids.Difference(c.qids)
			if diff.Intersect(allTouched).Cardinality() == 0 {
				*stack = append((*stack)[:i], (*stack)[i+1:]...)
				c.qids = union
				c.gates = append(c.gates, next.gates...)
				return true
			}
		}
		if next.qids.Intersect(c.qids).Cardinality() != 0 {
			return false
		}
		allTouched = allTouched.Union(next.qids)
	}
	return false
}

// MakeClusters groups the buffered gates into clusters no wider than
// fuseSpan and no deeper than maxDepth. Passes run at widths 1..fuseSpan;
// each pass walks the previous emission order as a stack whose top is the
// earliest remaining cluster and greedily absorbs the nearest compatible
// follower, so the output is a deterministic function of the input.
func MakeClusters(fuseSpan, maxDepth int, gates []Gate) []*Cluster {
	if len(gates) == 0 {
		return nil
	}
	clusters := make([]*Cluster, 0, len(gates))
	for _, g := range gates {
		clusters = append(clusters, newCluster(g))
	}
	for w := 1; w <= fuseSpan; w++ {
		clusters = fusePass(clusters, w, maxDepth)
	}
	return clusters
}

func fusePass(clusters []*Cluster, width, maxDepth int) []*Cluster {
	// Reverse into a stack so the earliest cluster sits on top.
	stack := make([]*Cluster, len(clusters))
	for i, c := range clusters {
		stack[len(clusters)-1-i] = c
	}
	out := make([]*Cluster, 0, len(clusters))
	cur := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	for len(stack) > 0 {
		if cur.Depth() < maxDepth && cur.takeCompatible(&stack, width, maxDepth) {
			continue
		}
		out = append(out, cur)
		cur = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
	}
	return append(out, cur)
}

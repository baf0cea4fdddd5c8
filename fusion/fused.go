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

package fusion

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/qubitforge/qsim/gate"
	"github.com/qubitforge/qsim/kernels"
)

// Default fusion bounds of the staged evaluator.
const (
	DefaultSpan  = 4
	DefaultDepth = 999
)

// Fused stages the gates of one cluster and materializes them onto the
// amplitude vector in a single flush. The simulator never inspects staged
// state; it pairs one Flush call with each cluster traversal. Qubit
// arguments are physical indices.
type Fused interface {
	MaxSpan() int
	MaxDepth() int
	ShouldFlush(wfn []complex128, controls []uint, target uint) bool
	Apply(wfn []complex128, m gate.Matrix, target uint)
	ApplyControlled(wfn []complex128, m gate.Matrix, controls []uint, target uint)
	Flush(wfn []complex128)
	Reset()
}

// Evaluator is the default Fused implementation: it stages gates in order
// and replays them through the kernels on Flush. ShouldFlush reports
// staged-capacity pressure; callers treat it as advice.
type Evaluator struct {
	span   int
	depth  int
	staged []Gate
}

// NewEvaluator returns an evaluator with the default fusion bounds.
func NewEvaluator() *Evaluator {
	return NewEvaluatorWithLimits(DefaultSpan, DefaultDepth)
}

// NewEvaluatorWithLimits returns an evaluator with explicit span and depth
// bounds.
func NewEvaluatorWithLimits(span, depth int) *Evaluator {
	return &Evaluator{span: span, depth: depth}
}

// MaxSpan returns the widest qubit set a cluster may touch.
func (e *Evaluator) MaxSpan() int {
	return e.span
}

// MaxDepth returns the most gates a cluster may hold.
func (e *Evaluator) MaxDepth() int {
	return e.depth
}

// ShouldFlush reports whether staging one more gate on the given qubits
// would exceed the evaluator's bounds.
func (e *Evaluator) ShouldFlush(wfn []complex128, controls []uint, target uint) bool {
	if len(e.staged) >= e.depth {
		return true
	}
	touched := mapset.NewThreadUnsafeSet[uint](target)
	touched.Append(controls...)
	for _, g := range e.staged {
		touched.Append(g.Qids()...)
	}
	return touched.Cardinality() > e.span
}

// Apply stages a single-qubit gate.
func (e *Evaluator) Apply(wfn []complex128, m gate.Matrix, target uint) {
	e.staged = append(e.staged, Gate{Target: target, Mat: m})
}

// ApplyControlled stages a multiply controlled gate.
func (e *Evaluator) ApplyControlled(wfn []complex128, m gate.Matrix, controls []uint, target uint) {
	e.staged = append(e.staged, Gate{Controls: controls, Target: target, Mat: m})
}

// Flush replays the staged gates onto the vector in staging order and
// clears the stage.
func (e *Evaluator) Flush(wfn []complex128) {
	for _, g := range e.staged {
		if len(g.Controls) == 0 {
			kernels.Apply(wfn, g.Mat, g.Target)
		} else {
			kernels.ApplyControlled(wfn, g.Mat, g.Controls, g.Target)
		}
	}
	e.staged = e.staged[:0]
}

// Reset discards staged state without touching the vector.
func (e *Evaluator) Reset() {
	e.staged = nil
}

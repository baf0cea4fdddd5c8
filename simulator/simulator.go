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

// Package simulator maintains the dense amplitude vector of an n-qubit
// register. Gates accumulate in a buffer and are fused into clusters on
// flush; every observational operation flushes first, so buffering is
// never visible to a caller. A Simulator is single-threaded; independent
// instances may run on separate goroutines.
package simulator

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/qubitforge/qsim/fusion"
	"github.com/qubitforge/qsim/gate"
	"github.com/qubitforge/qsim/kernels"
)

// invalidQubit marks a released slot in the logical-to-physical map.
const invalidQubit = ^uint(0)

// flushThreshold caps the gate buffer; exceeding it forces a flush.
const flushThreshold = 999

var (
	gateMeter    = metrics.NewRegisteredMeter("qsim/gates", nil)
	flushMeter   = metrics.NewRegisteredMeter("qsim/flushes", nil)
	clusterMeter = metrics.NewRegisteredMeter("qsim/clusters", nil)
)

type usageMode int

const (
	usageUnset usageMode = iota
	usageAuto
	usageManual
)

// Simulator owns the amplitude vector and the logical qubit map.
type Simulator struct {
	wfn       []complex128
	qubitMap  []uint // logical id -> physical index, invalidQubit when released
	numQubits uint
	usage     usageMode

	pending []fusion.Gate
	fused   fusion.Fused
	rng     *rand.Rand
}

// New returns a simulator for zero qubits with the default fused
// evaluator and a clock-derived RNG seed.
func New() *Simulator {
	return NewWithEvaluator(fusion.NewEvaluator())
}

// NewWithEvaluator returns a simulator flushing through the given
// evaluator.
func NewWithEvaluator(f fusion.Fused) *Simulator {
	return &Simulator{
		wfn:   []complex128{1},
		fused: f,
		rng:   newRNG(clockSeed()),
	}
}

// Seed reseeds the measurement RNG.
func (s *Simulator) Seed(seed uint64) {
	s.rng = newRNG(int64(seed))
}

// Reset discards all qubits and pending gates and returns the simulator
// to the zero-qubit state with a fresh clock-derived seed.
func (s *Simulator) Reset() {
	s.fused.Reset()
	s.rng = newRNG(clockSeed())
	s.numQubits = 0
	s.wfn = []complex128{1}
	s.qubitMap = s.qubitMap[:0]
	s.pending = s.pending[:0]
}

// NumQubits returns the number of allocated qubits.
func (s *Simulator) NumQubits() uint {
	return s.numQubits
}

// LogicalQubits returns the logical ids currently allocated, in ascending
// order.
func (s *Simulator) LogicalQubits() []uint {
	qs := make([]uint, 0, s.numQubits)
	for q, p := range s.qubitMap {
		if p != invalidQubit {
			qs = append(qs, uint(q))
		}
	}
	return qs
}

// Pending returns the number of buffered gates awaiting flush.
func (s *Simulator) Pending() int {
	return len(s.pending)
}

func (s *Simulator) physical(q uint) (uint, error) {
	if q >= uint(len(s.qubitMap)) || s.qubitMap[q] == invalidQubit {
		return 0, fmt.Errorf("%w: id %d", ErrInvalidQubit, q)
	}
	return s.qubitMap[q], nil
}

func (s *Simulator) physicalAll(qs []uint) ([]uint, error) {
	ps := make([]uint, len(qs))
	for i, q := range qs {
		p, err := s.physical(q)
		if err != nil {
			return nil, err
		}
		ps[i] = p
	}
	return ps, nil
}

// Flush fuses the buffered gates into clusters and materializes them onto
// the amplitude vector, one evaluator flush per cluster. Flushing an
// empty buffer short-circuits to a bare evaluator flush.
func (s *Simulator) Flush() {
	clusters := fusion.MakeClusters(s.fused.MaxSpan(), s.fused.MaxDepth(), s.pending)
	flushMeter.Mark(1)
	if len(clusters) == 0 {
		s.fused.Flush(s.wfn)
		return
	}
	clusterMeter.Mark(int64(len(clusters)))
	log.Debug("Flushing gate buffer", "gates", len(s.pending), "clusters", len(clusters))
	for _, cl := range clusters {
		for _, g := range cl.Gates() {
			if len(g.Controls) == 0 {
				s.fused.Apply(s.wfn, g.Mat, s.qubitMap[g.Target])
			} else {
				cs := make([]uint, len(g.Controls))
				for i, c := range g.Controls {
					cs[i] = s.qubitMap[c]
				}
				s.fused.ApplyControlled(s.wfn, g.Mat, cs, s.qubitMap[g.Target])
			}
		}
		s.fused.Flush(s.wfn)
	}
	s.pending = s.pending[:0]
}

func (s *Simulator) grow() {
	s.wfn = append(s.wfn, make([]complex128, len(s.wfn))...)
}

// Allocate reserves a new qubit in |0>, doubling the amplitude vector
// with a zero-padded high half, and returns the lowest available logical
// id. It cannot be mixed with AllocateWithID on the same simulator.
func (s *Simulator) Allocate() (uint, error) {
	if s.usage == usageManual {
		return 0, ErrMixedAllocationMode
	}
	s.usage = usageAuto
	s.Flush()
	s.grow()
	for q, p := range s.qubitMap {
		if p == invalidQubit {
			s.qubitMap[q] = s.numQubits
			s.numQubits++
			return uint(q), nil
		}
	}
	s.qubitMap = append(s.qubitMap, s.numQubits)
	s.numQubits++
	return uint(len(s.qubitMap) - 1), nil
}

// AllocateWithID reserves the caller-chosen logical id, which must be a
// released slot or exactly the next fresh id. It cannot be mixed with
// Allocate on the same simulator.
func (s *Simulator) AllocateWithID(id uint) error {
	if s.usage == usageAuto {
		return ErrMixedAllocationMode
	}
	if id < uint(len(s.qubitMap)) {
		if s.qubitMap[id] != invalidQubit {
			return fmt.Errorf("%w: id %d already allocated", ErrInvalidQubit, id)
		}
	} else if id != uint(len(s.qubitMap)) {
		return fmt.Errorf("%w: id %d out of sequence", ErrInvalidQubit, id)
	}
	s.usage = usageManual
	s.Flush()
	s.grow()
	if id < uint(len(s.qubitMap)) {
		s.qubitMap[id] = s.numQubits
	} else {
		s.qubitMap = append(s.qubitMap, s.numQubits)
	}
	s.numQubits++
	return nil
}

// Release frees a qubit that is classical in the computational basis. The
// deterministic branch is collapsed out, the vector halves, and physical
// indices above the released one shift down. The slot becomes reusable.
func (s *Simulator) Release(q uint) error {
	p, err := s.physical(q)
	if err != nil {
		return err
	}
	s.Flush()
	if !kernels.IsClassical(s.wfn, p) {
		return fmt.Errorf("%w: id %d", ErrNotClassical, q)
	}
	v, err := s.value(p)
	if err != nil {
		return err
	}
	s.wfn = kernels.Collapse(s.wfn, p, v, true)
	for i, m := range s.qubitMap {
		if m != invalidQubit && m > p {
			s.qubitMap[i] = m - 1
		}
	}
	s.qubitMap[q] = invalidQubit
	s.numQubits--
	return nil
}

// Apply buffers a single-qubit gate on q.
func (s *Simulator) Apply(m gate.Matrix, q uint) error {
	return s.ApplyControlled(m, nil, q)
}

// ApplyControlled buffers a gate on q conditioned on every control being
// 1. The buffer is force-flushed past the threshold; the evaluator's
// flush advice is consulted but not acted on here.
func (s *Simulator) ApplyControlled(m gate.Matrix, controls []uint, q uint) error {
	if _, err := s.physical(q); err != nil {
		return err
	}
	for _, c := range controls {
		if c == q {
			return fmt.Errorf("%w: id %d", ErrControlTarget, q)
		}
		if _, err := s.physical(c); err != nil {
			return err
		}
	}
	cs := append([]uint(nil), controls...)
	s.pending = append(s.pending, fusion.Gate{Controls: cs, Target: q, Mat: m})
	gateMeter.Mark(1)
	if len(s.pending) > flushThreshold {
		s.Flush()
	}
	_ = s.fused.ShouldFlush(s.wfn, cs, q)
	return nil
}

// ApplyControlledExp applies exp(i*phi*P) for the Pauli string bs on
// targets qs, conditioned on controls. This bypasses the fusion queue; it
// is not a one-qubit gate.
func (s *Simulator) ApplyControlledExp(bs []gate.Basis, phi float64, controls, targets []uint) error {
	for _, c := range controls {
		for _, q := range targets {
			if c == q {
				return fmt.Errorf("%w: id %d", ErrControlTarget, q)
			}
		}
	}
	cs, err := s.physicalAll(controls)
	if err != nil {
		return err
	}
	qs, err := s.physicalAll(targets)
	if err != nil {
		return err
	}
	s.Flush()
	return kernels.ApplyControlledExp(s.wfn, bs, phi, cs, qs)
}

// Probability returns the probability of measuring 1 on q.
func (s *Simulator) Probability(q uint) (float64, error) {
	p, err := s.physical(q)
	if err != nil {
		return 0, err
	}
	s.Flush()
	return kernels.Probability(s.wfn, p), nil
}

// JointProbability returns the probability that a joint Z measurement of
// qs yields odd parity.
func (s *Simulator) JointProbability(qs []uint) (float64, error) {
	ps, err := s.physicalAll(qs)
	if err != nil {
		return 0, err
	}
	s.Flush()
	return kernels.JointProbability(s.wfn, ps), nil
}

// JointProbabilityInBasis returns the odd-parity probability for a joint
// measurement of qs in the given Pauli bases.
func (s *Simulator) JointProbabilityInBasis(bs []gate.Basis, qs []uint) (float64, error) {
	ps, err := s.physicalAll(qs)
	if err != nil {
		return 0, err
	}
	s.Flush()
	return kernels.JointProbabilityInBasis(s.wfn, bs, ps)
}

// Measure samples qubit q, collapses the state and renormalizes.
func (s *Simulator) Measure(q uint) (bool, error) {
	p, err := s.physical(q)
	if err != nil {
		return false, err
	}
	s.Flush()
	result := s.rng.Float64() < kernels.Probability(s.wfn, p)
	s.wfn = kernels.Collapse(s.wfn, p, result, false)
	kernels.Normalize(s.wfn)
	return result, nil
}

// JointMeasure samples the joint Z-parity of qs, collapses onto the
// matching subspace and renormalizes.
func (s *Simulator) JointMeasure(qs []uint) (bool, error) {
	ps, err := s.physicalAll(qs)
	if err != nil {
		return false, err
	}
	s.Flush()
	result := s.rng.Float64() < kernels.JointProbability(s.wfn, ps)
	kernels.JointCollapse(s.wfn, ps, result)
	kernels.Normalize(s.wfn)
	return result, nil
}

// IsClassical reports whether q is |0> or |1> within tolerance.
func (s *Simulator) IsClassical(q uint) (bool, error) {
	p, err := s.physical(q)
	if err != nil {
		return false, err
	}
	s.Flush()
	return kernels.IsClassical(s.wfn, p), nil
}

// GetValue returns the classical value of q, which must be classical in
// the computational basis; an ambiguous probe fails with ErrAmbiguousValue.
func (s *Simulator) GetValue(q uint) (bool, error) {
	p, err := s.physical(q)
	if err != nil {
		return false, err
	}
	s.Flush()
	return s.value(p)
}

// value resolves a classical probe on a physical qubit. An ambiguous
// probe dumps the amplitude vector for diagnostics before failing.
func (s *Simulator) value(p uint) (bool, error) {
	switch kernels.GetValue(s.wfn, p) {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		log.Error("Ambiguous classical value probe", "physical", p, "dump", spew.Sdump(s.wfn))
		return false, fmt.Errorf("%w: physical %d", ErrAmbiguousValue, p)
	}
}

// SubsystemWavefunction extracts the state of the subsystem qs when it
// factorizes from the rest within the tolerance.
func (s *Simulator) SubsystemWavefunction(qs []uint, tolerance float64) ([]complex128, bool, error) {
	ps, err := s.physicalAll(qs)
	if err != nil {
		return nil, false, err
	}
	s.Flush()
	sub, ok := kernels.SubsystemWavefunction(s.wfn, ps, tolerance)
	return sub, ok, nil
}

// Data flushes and returns the amplitude vector. The slice is a borrow:
// it must not be retained across subsequent mutating operations.
func (s *Simulator) Data() []complex128 {
	s.Flush()
	return s.wfn
}

// String renders a short diagnostic view of the state.
func (s *Simulator) String() string {
	s.Flush()
	var sb strings.Builder
	fmt.Fprintf(&sb, "wavefunction: %d qubits, %d amplitudes", s.numQubits, len(s.wfn))
	if s.numQubits <= 6 {
		for i, a := range s.wfn {
			fmt.Fprintf(&sb, "\n|%0*b> %v", max(int(s.numQubits), 1), i, a)
		}
	}
	return sb.String()
}

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

package simulator

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubitforge/qsim/fusion"
	"github.com/qubitforge/qsim/gate"
)

const isq2 = 1 / math.Sqrt2

func norm(wfn []complex128) float64 {
	var sum float64
	for _, a := range wfn {
		sum += real(a)*real(a) + imag(a)*imag(a)
	}
	return sum
}

// checkInvariants asserts the state invariants every public call must
// leave behind: unit norm, 2^n amplitudes, injective qubit map.
func checkInvariants(t *testing.T, s *Simulator) {
	t.Helper()
	data := s.Data()
	assert.InDelta(t, 1.0, norm(data), 1e-9)
	require.Equal(t, 1<<s.NumQubits(), len(data))
	seen := map[uint]bool{}
	for _, q := range s.LogicalQubits() {
		p, err := s.physical(q)
		require.NoError(t, err)
		require.Less(t, p, s.NumQubits())
		require.False(t, seen[p])
		seen[p] = true
	}
}

func allocN(t *testing.T, s *Simulator, n int) []uint {
	t.Helper()
	qs := make([]uint, n)
	for i := range qs {
		q, err := s.Allocate()
		require.NoError(t, err)
		qs[i] = q
	}
	return qs
}

func TestAllocate(t *testing.T) {
	s := New()
	qs := allocN(t, s, 3)
	assert.Equal(t, []uint{0, 1, 2}, qs)
	assert.Equal(t, uint(3), s.NumQubits())
	assert.Equal(t, []uint{0, 1, 2}, s.LogicalQubits())
	// Fresh qubits start in |0...0>.
	data := s.Data()
	assert.InDelta(t, 1.0, cmplx.Abs(data[0]), 1e-12)
	checkInvariants(t, s)
}

func TestAllocateModeExclusive(t *testing.T) {
	s := New()
	_, err := s.Allocate()
	require.NoError(t, err)
	require.ErrorIs(t, s.AllocateWithID(1), ErrMixedAllocationMode)

	s = New()
	require.NoError(t, s.AllocateWithID(0))
	_, err = s.Allocate()
	require.ErrorIs(t, err, ErrMixedAllocationMode)
}

func TestAllocateWithID(t *testing.T) {
	s := New()
	require.NoError(t, s.AllocateWithID(0))
	// Out of sequence and already-allocated ids are rejected.
	require.ErrorIs(t, s.AllocateWithID(2), ErrInvalidQubit)
	require.ErrorIs(t, s.AllocateWithID(0), ErrInvalidQubit)
	require.NoError(t, s.AllocateWithID(1))
	assert.Equal(t, uint(2), s.NumQubits())

	// A released slot becomes valid again.
	require.NoError(t, s.Release(0))
	require.NoError(t, s.AllocateWithID(0))
	assert.Equal(t, uint(2), s.NumQubits())
	checkInvariants(t, s)
}

func TestReleaseReusesSlot(t *testing.T) {
	s := New()
	allocN(t, s, 3)
	require.NoError(t, s.Release(1))
	assert.Equal(t, uint(2), s.NumQubits())
	assert.Equal(t, []uint{0, 2}, s.LogicalQubits())

	q, err := s.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint(1), q)
	assert.Equal(t, uint(3), s.NumQubits())
	checkInvariants(t, s)
}

func TestReleaseRequiresClassical(t *testing.T) {
	s := New()
	qs := allocN(t, s, 2)
	require.NoError(t, s.Apply(gate.H(), qs[0]))
	require.ErrorIs(t, s.Release(qs[0]), ErrNotClassical)
	// The failed release leaves the register intact.
	assert.Equal(t, uint(2), s.NumQubits())
}

// Releasing a classical-zero qubit of a product state leaves the rest of
// the state untouched.
func TestReleaseProductState(t *testing.T) {
	s := New()
	qs := allocN(t, s, 2)
	require.NoError(t, s.Apply(gate.H(), qs[1]))
	require.NoError(t, s.Release(qs[0]))
	data := s.Data()
	require.Len(t, data, 2)
	assert.InDelta(t, 0, cmplx.Abs(data[0]-complex(isq2, 0)), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(data[1]-complex(isq2, 0)), 1e-12)
	checkInvariants(t, s)
}

func TestReleaseSetQubit(t *testing.T) {
	s := New()
	qs := allocN(t, s, 2)
	require.NoError(t, s.Apply(gate.X(), qs[0]))
	require.NoError(t, s.Release(qs[0]))
	data := s.Data()
	require.Len(t, data, 2)
	assert.InDelta(t, 1.0, cmplx.Abs(data[0]), 1e-12)
}

func TestInvalidQubit(t *testing.T) {
	s := New()
	qs := allocN(t, s, 1)
	_, err := s.Measure(5)
	require.ErrorIs(t, err, ErrInvalidQubit)
	require.ErrorIs(t, s.Apply(gate.H(), 7), ErrInvalidQubit)

	require.NoError(t, s.Release(qs[0]))
	_, err = s.Probability(qs[0])
	require.ErrorIs(t, err, ErrInvalidQubit)
}

func TestControlTarget(t *testing.T) {
	s := New()
	qs := allocN(t, s, 2)
	require.ErrorIs(t, s.ApplyControlled(gate.X(), []uint{qs[0]}, qs[0]), ErrControlTarget)
	err := s.ApplyControlledExp([]gate.Basis{gate.PauliZ}, 0.5, []uint{qs[1]}, []uint{qs[1]})
	require.ErrorIs(t, err, ErrControlTarget)
}

func TestMeasureDeterministicWithSeed(t *testing.T) {
	run := func() []bool {
		s := New()
		s.Seed(42)
		q, err := s.Allocate()
		require.NoError(t, err)
		var outcomes []bool
		for i := 0; i < 20; i++ {
			require.NoError(t, s.Apply(gate.H(), q))
			v, err := s.Measure(q)
			require.NoError(t, err)
			outcomes = append(outcomes, v)
			if v {
				require.NoError(t, s.Apply(gate.X(), q))
			}
		}
		return outcomes
	}
	assert.Equal(t, run(), run())
}

func TestMeasureFrequency(t *testing.T) {
	s := New()
	s.Seed(42)
	q, err := s.Allocate()
	require.NoError(t, err)
	ones := 0
	const shots = 10000
	for i := 0; i < shots; i++ {
		require.NoError(t, s.Apply(gate.H(), q))
		v, err := s.Measure(q)
		require.NoError(t, err)
		if v {
			ones++
			require.NoError(t, s.Apply(gate.X(), q))
		}
	}
	assert.InDelta(t, 0.5, float64(ones)/shots, 0.02)
	checkInvariants(t, s)
}

func TestMeasureCollapses(t *testing.T) {
	s := New()
	s.Seed(1)
	q, err := s.Allocate()
	require.NoError(t, err)
	require.NoError(t, s.Apply(gate.H(), q))
	v, err := s.Measure(q)
	require.NoError(t, err)

	classical, err := s.IsClassical(q)
	require.NoError(t, err)
	assert.True(t, classical)
	got, err := s.GetValue(q)
	require.NoError(t, err)
	assert.Equal(t, v, got)
	checkInvariants(t, s)
}

func TestBellPair(t *testing.T) {
	const shots = 10000
	var zeros, ones int
	for i := 0; i < shots; i++ {
		s := New()
		s.Seed(uint64(i))
		qs := allocN(t, s, 2)
		require.NoError(t, s.Apply(gate.H(), qs[0]))
		require.NoError(t, s.ApplyControlled(gate.X(), []uint{qs[0]}, qs[1]))

		// The Bell state has even parity, so the joint outcome is
		// deterministically 0.
		parity, err := s.JointMeasure(qs)
		require.NoError(t, err)
		require.False(t, parity)

		m0, err := s.Measure(qs[0])
		require.NoError(t, err)
		m1, err := s.GetValue(qs[1])
		require.NoError(t, err)
		require.Equal(t, m0, m1)
		if m0 {
			ones++
		} else {
			zeros++
		}
	}
	assert.InDelta(t, 0.5, float64(ones)/shots, 0.02)
	assert.InDelta(t, 0.5, float64(zeros)/shots, 0.02)
}

func TestGetValueNotClassical(t *testing.T) {
	s := New()
	q, err := s.Allocate()
	require.NoError(t, err)
	require.NoError(t, s.Apply(gate.H(), q))
	_, err = s.GetValue(q)
	require.ErrorIs(t, err, ErrAmbiguousValue)
}

// applyCircuit drives a fixed multi-qubit circuit exercising singles,
// controlled and doubly controlled gates.
func applyCircuit(t *testing.T, s *Simulator, qs []uint, flushEach bool) {
	t.Helper()
	steps := []fusion.Gate{
		{Target: qs[0], Mat: gate.H()},
		{Target: qs[1], Mat: gate.T()},
		{Controls: []uint{qs[0]}, Target: qs[1], Mat: gate.X()},
		{Target: qs[2], Mat: gate.H()},
		{Controls: []uint{qs[1]}, Target: qs[2], Mat: gate.X()},
		{Target: qs[0], Mat: gate.S()},
		{Controls: []uint{qs[0], qs[1]}, Target: qs[2], Mat: gate.X()},
		{Target: qs[1], Mat: gate.Ry(0.3)},
		{Controls: []uint{qs[2]}, Target: qs[0], Mat: gate.Z()},
	}
	for _, g := range steps {
		require.NoError(t, s.ApplyControlled(g.Mat, g.Controls, g.Target))
		if flushEach {
			s.Flush()
		}
	}
}

// The defining property of the cluster builder: fused evaluation is
// observationally identical to flushing after every gate.
func TestFlushEquivalence(t *testing.T) {
	ref := NewWithEvaluator(fusion.NewEvaluatorWithLimits(1, 1))
	refQs := allocN(t, ref, 3)
	applyCircuit(t, ref, refQs, true)
	want := append([]complex128(nil), ref.Data()...)

	for _, span := range []int{2, 4} {
		s := NewWithEvaluator(fusion.NewEvaluatorWithLimits(span, fusion.DefaultDepth))
		qs := allocN(t, s, 3)
		applyCircuit(t, s, qs, false)
		got := s.Data()
		require.Equal(t, len(want), len(got), "span %d", span)
		for i := range want {
			assert.InDelta(t, 0, cmplx.Abs(want[i]-got[i]), 1e-10, "span %d amp %d", span, i)
		}
		checkInvariants(t, s)
	}
}

func TestFusionScenarioProbability(t *testing.T) {
	for _, span := range []int{2, 4} {
		s := NewWithEvaluator(fusion.NewEvaluatorWithLimits(span, 999))
		qs := allocN(t, s, 4)
		for _, q := range qs {
			require.NoError(t, s.Apply(gate.H(), q))
		}
		require.NoError(t, s.ApplyControlled(gate.X(), []uint{qs[0]}, qs[1]))
		require.NoError(t, s.ApplyControlled(gate.X(), []uint{qs[2]}, qs[3]))
		require.NoError(t, s.ApplyControlled(gate.X(), []uint{qs[1]}, qs[2]))
		p, err := s.Probability(qs[0])
		require.NoError(t, err)
		assert.InDelta(t, 0.5, p, 1e-10, "span %d", span)
		checkInvariants(t, s)
	}
}

func TestDeepBufferForcedFlush(t *testing.T) {
	s := New()
	q, err := s.Allocate()
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		require.NoError(t, s.Apply(gate.H(), q))
	}
	// The 1000th gate must have tripped the forced flush.
	assert.Equal(t, 0, s.Pending())

	// An even run of Hadamards is the identity.
	data := s.Data()
	assert.InDelta(t, 1.0, cmplx.Abs(data[0]), 1e-9)
	checkInvariants(t, s)
}

func TestApplyControlledExp(t *testing.T) {
	s := New()
	q, err := s.Allocate()
	require.NoError(t, err)
	require.NoError(t, s.Apply(gate.H(), q))
	phi := 0.6
	require.NoError(t, s.ApplyControlledExp([]gate.Basis{gate.PauliZ}, phi, nil, []uint{q}))
	data := s.Data()
	want0 := complex(isq2, 0) * cmplx.Exp(complex(0, phi))
	want1 := complex(isq2, 0) * cmplx.Exp(complex(0, -phi))
	assert.InDelta(t, 0, cmplx.Abs(data[0]-want0), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(data[1]-want1), 1e-12)
	checkInvariants(t, s)
}

func TestJointProbabilityInBasis(t *testing.T) {
	s := New()
	qs := allocN(t, s, 2)
	require.NoError(t, s.Apply(gate.H(), qs[0]))
	require.NoError(t, s.ApplyControlled(gate.X(), []uint{qs[0]}, qs[1]))

	pzz, err := s.JointProbabilityInBasis([]gate.Basis{gate.PauliZ, gate.PauliZ}, qs)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, pzz, 1e-12)

	pxx, err := s.JointProbabilityInBasis([]gate.Basis{gate.PauliX, gate.PauliX}, qs)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, pxx, 1e-12)
}

func TestSubsystemWavefunction(t *testing.T) {
	s := New()
	qs := allocN(t, s, 2)
	require.NoError(t, s.Apply(gate.H(), qs[0]))
	require.NoError(t, s.Apply(gate.X(), qs[1]))

	sub, ok, err := s.SubsystemWavefunction([]uint{qs[0]}, 1e-9)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, sub, 2)
	assert.InDelta(t, isq2, cmplx.Abs(sub[0]), 1e-12)
	assert.InDelta(t, isq2, cmplx.Abs(sub[1]), 1e-12)

	// Entangle the pair: no factorization exists any more.
	require.NoError(t, s.ApplyControlled(gate.X(), []uint{qs[0]}, qs[1]))
	_, ok, err = s.SubsystemWavefunction([]uint{qs[0]}, 1e-9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	s := New()
	qs := allocN(t, s, 2)
	require.NoError(t, s.Apply(gate.H(), qs[0]))
	s.Reset()
	assert.Equal(t, uint(0), s.NumQubits())
	assert.Empty(t, s.LogicalQubits())
	data := s.Data()
	require.Len(t, data, 1)
	assert.Equal(t, complex128(1), data[0])
}

func TestStringRendering(t *testing.T) {
	s := New()
	q, err := s.Allocate()
	require.NoError(t, err)
	require.NoError(t, s.Apply(gate.X(), q))
	out := s.String()
	assert.Contains(t, out, "1 qubits")
	assert.Contains(t, out, "|1>")
}

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

// Package kernels holds the pure numerical operations on an amplitude
// vector. Every function takes the vector by slice and a physical qubit
// index used as a bit position in amplitude indices; none of them know
// about logical ids. Probability is striped across goroutines on large
// vectors, which only perturbs its result within floating-point
// associativity; the other reductions run serially.
package kernels

import (
	"math"
	"math/bits"
	"math/cmplx"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Tolerance bounds the numerical drift accepted when deciding whether a
// qubit is classical and when verifying subsystem factorization.
const Tolerance = 1e-10

// Vectors below this length are reduced serially.
const parallelThreshold = 1 << 16

// MakeMask returns the bit mask covering the given physical qubits.
func MakeMask(qs []uint) uint64 {
	var mask uint64
	for _, q := range qs {
		mask |= uint64(1) << q
	}
	return mask
}

// GetRegister packs the bits of basisState at positions qs into the low
// bits of the result, in qs order.
func GetRegister(qs []uint, basisState uint64) uint64 {
	var r uint64
	for i, q := range qs {
		r |= ((basisState >> q) & 1) << uint(i)
	}
	return r
}

// SetRegister writes the low bits of register to positions qs of original,
// clearing qmask first. qmask must equal MakeMask(qs).
func SetRegister(qs []uint, qmask uint64, register uint64, original uint64) uint64 {
	r := original &^ qmask
	for i, q := range qs {
		r |= ((register >> uint(i)) & 1) << q
	}
	return r
}

// Probability returns the probability of measuring 1 on qubit q.
func Probability(wfn []complex128, q uint) float64 {
	bit := uint64(1) << q
	if len(wfn) < parallelThreshold {
		return probRange(wfn, 0, uint64(len(wfn)), bit)
	}
	stripes := runtime.GOMAXPROCS(0)
	parts := make([]float64, stripes)
	chunk := (uint64(len(wfn)) + uint64(stripes) - 1) / uint64(stripes)
	var g errgroup.Group
	for s := 0; s < stripes; s++ {
		s := s
		lo := uint64(s) * chunk
		hi := lo + chunk
		if hi > uint64(len(wfn)) {
			hi = uint64(len(wfn))
		}
		g.Go(func() error {
			parts[s] = probRange(wfn, lo, hi, bit)
			return nil
		})
	}
	_ = g.Wait()
	var sum float64
	for _, p := range parts {
		sum += p
	}
	return sum
}

func probRange(wfn []complex128, lo, hi, bit uint64) float64 {
	var sum float64
	for i := lo; i < hi; i++ {
		if i&bit != 0 {
			a := wfn[i]
			sum += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	return sum
}

// JointProbability returns the probability that a joint Z-basis measurement
// of qs yields odd parity.
func JointProbability(wfn []complex128, qs []uint) float64 {
	mask := MakeMask(qs)
	var sum float64
	for i, a := range wfn {
		if bits.OnesCount64(uint64(i)&mask)&1 == 1 {
			sum += real(a)*real(a) + imag(a)*imag(a)
		}
	}
	return sum
}

// Collapse projects qubit q onto the given value. With compact set, the
// surviving amplitudes are repacked into a vector of half the length with
// bit q removed; otherwise the discarded branch is zeroed in place. The
// possibly reallocated vector is returned.
func Collapse(wfn []complex128, q uint, value bool, compact bool) []complex128 {
	bit := uint64(1) << q
	if !compact {
		for i := range wfn {
			if (uint64(i)&bit != 0) != value {
				wfn[i] = 0
			}
		}
		return wfn
	}
	next := make([]complex128, len(wfn)/2)
	low := bit - 1
	var keep uint64
	if value {
		keep = bit
	}
	for r := range next {
		i := (uint64(r)&^low)<<1 | keep | uint64(r)&low
		next[r] = wfn[i]
	}
	return next
}

// JointCollapse projects qs onto the subspace whose Z-parity matches value.
func JointCollapse(wfn []complex128, qs []uint, value bool) {
	mask := MakeMask(qs)
	for i := range wfn {
		if (bits.OnesCount64(uint64(i)&mask)&1 == 1) != value {
			wfn[i] = 0
		}
	}
}

// Normalize rescales the vector to unit norm.
func Normalize(wfn []complex128) {
	var sum float64
	for _, a := range wfn {
		sum += real(a)*real(a) + imag(a)*imag(a)
	}
	if sum == 0 {
		return
	}
	inv := complex(1/math.Sqrt(sum), 0)
	for i := range wfn {
		wfn[i] *= inv
	}
}

// IsClassical reports whether qubit q is |0> or |1> within tolerance.
func IsClassical(wfn []complex128, q uint) bool {
	p := Probability(wfn, q)
	return p < Tolerance || p > 1-Tolerance
}

// GetValue returns 0 or 1 for a classical qubit, and 2 when the probe is
// ambiguous (the qubit is not classical within tolerance).
func GetValue(wfn []complex128, q uint) int {
	p := Probability(wfn, q)
	switch {
	case p < Tolerance:
		return 0
	case p > 1-Tolerance:
		return 1
	default:
		return 2
	}
}

// SubsystemWavefunction extracts the state of the subsystem qs when the
// full state factorizes as (subsystem) x (rest) within the given tolerance.
// It returns the normalized subsystem vector of length 2^len(qs) and true,
// or nil and false when the state is entangled across the cut.
func SubsystemWavefunction(wfn []complex128, qs []uint, tolerance float64) ([]complex128, bool) {
	qmask := MakeMask(qs)

	// Anchor on the largest amplitude. For a product state every row of
	// the (subsystem x rest) matrix is proportional to the anchor's row.
	anchor := uint64(0)
	best := 0.0
	for i, a := range wfn {
		if m := real(a)*real(a) + imag(a)*imag(a); m > best {
			best = m
			anchor = uint64(i)
		}
	}

	sub := make([]complex128, uint64(1)<<uint(len(qs)))
	var norm float64
	for x := range sub {
		a := wfn[SetRegister(qs, qmask, uint64(x), anchor)]
		sub[x] = a
		norm += real(a)*real(a) + imag(a)*imag(a)
	}
	if norm == 0 {
		return nil, false
	}
	inv := complex(1/math.Sqrt(norm), 0)
	for x := range sub {
		sub[x] *= inv
	}

	// Verify the factorization against every amplitude.
	x0 := GetRegister(qs, anchor)
	pivot := sub[x0]
	for i, a := range wfn {
		rest := wfn[uint64(i)&^qmask|anchor&qmask] / pivot
		want := sub[GetRegister(qs, uint64(i))] * rest
		if cmplx.Abs(a-want) > tolerance {
			return nil, false
		}
	}
	return sub, true
}

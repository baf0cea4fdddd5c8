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

package kernels

import (
	"errors"
	"math"
	"math/bits"
	"math/cmplx"

	"github.com/qubitforge/qsim/gate"
)

// ErrBasisMismatch is returned when a Pauli basis list does not pair up
// with its qubit list.
var ErrBasisMismatch = errors.New("basis and qubit lists differ in length")

// Apply multiplies the single-qubit matrix m into the vector on qubit q.
func Apply(wfn []complex128, m gate.Matrix, q uint) {
	bit := uint64(1) << q
	for i := range wfn {
		if uint64(i)&bit != 0 {
			continue
		}
		j := uint64(i) | bit
		a0, a1 := wfn[i], wfn[j]
		wfn[i] = m[0][0]*a0 + m[0][1]*a1
		wfn[j] = m[1][0]*a0 + m[1][1]*a1
	}
}

// ApplyControlled multiplies m into the vector on qubit q for the branches
// where every control qubit is 1. Controls must not contain q.
func ApplyControlled(wfn []complex128, m gate.Matrix, cs []uint, q uint) {
	bit := uint64(1) << q
	cmask := MakeMask(cs)
	for i := range wfn {
		if uint64(i)&bit != 0 || uint64(i)&cmask != cmask {
			continue
		}
		j := uint64(i) | bit
		a0, a1 := wfn[i], wfn[j]
		wfn[i] = m[0][0]*a0 + m[0][1]*a1
		wfn[j] = m[1][0]*a0 + m[1][1]*a1
	}
}

// pauliMasks splits a Pauli string over qs into the bit-flip mask (X and Y
// action), the Z-sign mask and the Y mask.
func pauliMasks(bs []gate.Basis, qs []uint) (flip, zmask, ymask uint64) {
	for i, b := range bs {
		bit := uint64(1) << qs[i]
		switch b {
		case gate.PauliX:
			flip |= bit
		case gate.PauliY:
			flip |= bit
			ymask |= bit
		case gate.PauliZ:
			zmask |= bit
		}
	}
	return flip, zmask, ymask
}

// pauliCoef returns the coefficient c with P|b> = c|b^flip> for the Pauli
// string encoded by zmask and ymask.
func pauliCoef(b, zmask, ymask uint64) complex128 {
	// Y contributes i on a 0 bit and -i on a 1 bit; Z contributes a sign.
	ny := bits.OnesCount64(ymask)
	nset := bits.OnesCount64(b & ymask)
	c := ipow(ny - 2*nset)
	if bits.OnesCount64(b&zmask)&1 == 1 {
		c = -c
	}
	return c
}

func ipow(n int) complex128 {
	switch ((n % 4) + 4) % 4 {
	case 0:
		return 1
	case 1:
		return 1i
	case 2:
		return -1
	default:
		return -1i
	}
}

// ApplyControlledExp applies exp(i*phi*P) to the vector, where P is the
// tensor product of the Pauli operators bs acting on qubits qs, restricted
// to the branches where every control qubit in cs is 1. Controls must be
// disjoint from targets.
func ApplyControlledExp(wfn []complex128, bs []gate.Basis, phi float64, cs, qs []uint) error {
	if len(bs) != len(qs) {
		return ErrBasisMismatch
	}
	flip, zmask, ymask := pauliMasks(bs, qs)
	cmask := MakeMask(cs)
	cosp := complex(math.Cos(phi), 0)
	isin := complex(0, math.Sin(phi))

	if flip == 0 {
		// Diagonal string: every basis state picks up a phase e^{+-i phi}.
		for i := range wfn {
			if uint64(i)&cmask != cmask {
				continue
			}
			if bits.OnesCount64(uint64(i)&zmask)&1 == 1 {
				wfn[i] *= cosp - isin
			} else {
				wfn[i] *= cosp + isin
			}
		}
		return nil
	}

	for i := range wfn {
		idx := uint64(i)
		j := idx ^ flip
		if idx >= j || idx&cmask != cmask {
			continue
		}
		ai, aj := wfn[idx], wfn[j]
		wfn[idx] = cosp*ai + isin*pauliCoef(j, zmask, ymask)*aj
		wfn[j] = cosp*aj + isin*pauliCoef(idx, zmask, ymask)*ai
	}
	return nil
}

// JointProbabilityInBasis returns the probability that jointly measuring
// qs in the given Pauli bases yields odd parity, computed from the
// expectation of the Pauli string: P(odd) = (1 - <P>)/2.
func JointProbabilityInBasis(wfn []complex128, bs []gate.Basis, qs []uint) (float64, error) {
	if len(bs) != len(qs) {
		return 0, ErrBasisMismatch
	}
	flip, zmask, ymask := pauliMasks(bs, qs)
	var expect float64
	for j := range wfn {
		i := uint64(j) ^ flip
		expect += real(cmplx.Conj(wfn[i]) * pauliCoef(uint64(j), zmask, ymask) * wfn[j])
	}
	return (1 - expect) / 2, nil
}

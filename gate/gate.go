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

// Package gate defines the 2x2 complex matrices submitted to the simulator
// and the Pauli basis tags used by joint operations. Unitarity is a caller
// contract; nothing here validates it.
package gate

import (
	"math"
	"math/cmplx"
)

// Matrix is a single-qubit gate in row-major order.
type Matrix [2][2]complex128

// Basis selects the Pauli operator measured or exponentiated on a qubit.
type Basis int

const (
	PauliI Basis = iota
	PauliX
	PauliY
	PauliZ
)

var invSqrt2 = complex(1/math.Sqrt2, 0)

// I returns the identity.
func I() Matrix {
	return Matrix{{1, 0}, {0, 1}}
}

// H returns the Hadamard gate.
func H() Matrix {
	return Matrix{{invSqrt2, invSqrt2}, {invSqrt2, -invSqrt2}}
}

// X returns the Pauli-X (NOT) gate.
func X() Matrix {
	return Matrix{{0, 1}, {1, 0}}
}

// Y returns the Pauli-Y gate.
func Y() Matrix {
	return Matrix{{0, -1i}, {1i, 0}}
}

// Z returns the Pauli-Z gate.
func Z() Matrix {
	return Matrix{{1, 0}, {0, -1}}
}

// S returns the phase gate diag(1, i).
func S() Matrix {
	return Matrix{{1, 0}, {0, 1i}}
}

// Sdg returns the adjoint of S.
func Sdg() Matrix {
	return Matrix{{1, 0}, {0, -1i}}
}

// T returns the pi/8 gate diag(1, e^{i pi/4}).
func T() Matrix {
	return Matrix{{1, 0}, {0, cmplx.Exp(complex(0, math.Pi/4))}}
}

// Tdg returns the adjoint of T.
func Tdg() Matrix {
	return Matrix{{1, 0}, {0, cmplx.Exp(complex(0, -math.Pi/4))}}
}

// Rx returns a rotation of theta radians about the X axis.
func Rx(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(0, -math.Sin(theta/2))
	return Matrix{{c, s}, {s, c}}
}

// Ry returns a rotation of theta radians about the Y axis.
func Ry(theta float64) Matrix {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return Matrix{{c, -s}, {s, c}}
}

// Rz returns a rotation of theta radians about the Z axis.
func Rz(theta float64) Matrix {
	return Matrix{
		{cmplx.Exp(complex(0, -theta/2)), 0},
		{0, cmplx.Exp(complex(0, theta/2))},
	}
}

// Phase returns diag(1, e^{i phi}).
func Phase(phi float64) Matrix {
	return Matrix{{1, 0}, {0, cmplx.Exp(complex(0, phi))}}
}

// Adjoint returns the conjugate transpose.
func (m Matrix) Adjoint() Matrix {
	return Matrix{
		{cmplx.Conj(m[0][0]), cmplx.Conj(m[1][0])},
		{cmplx.Conj(m[0][1]), cmplx.Conj(m[1][1])},
	}
}

// Mul returns the matrix product m * o.
func (m Matrix) Mul(o Matrix) Matrix {
	var r Matrix
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j]
		}
	}
	return r
}

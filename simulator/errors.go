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

import "errors"

var (
	// ErrInvalidQubit marks a logical id that is out of range, released,
	// or unusable for an id-supplied allocation.
	ErrInvalidQubit = errors.New("invalid logical qubit")

	// ErrMixedAllocationMode marks a mix of auto-assigned and
	// caller-supplied qubit allocation on one simulator.
	ErrMixedAllocationMode = errors.New("mixed qubit allocation modes")

	// ErrNotClassical marks a release of a qubit still in superposition.
	ErrNotClassical = errors.New("qubit is not in a classical state")

	// ErrAmbiguousValue marks a classical-value probe that resolved to
	// neither 0 nor 1 within tolerance.
	ErrAmbiguousValue = errors.New("ambiguous classical value")

	// ErrControlTarget marks a gate whose target appears in its controls.
	ErrControlTarget = errors.New("target qubit listed as control")

	// ErrBadPermutationTable marks a permutation table whose size or
	// entries do not match the qubit set.
	ErrBadPermutationTable = errors.New("malformed basis permutation table")
)

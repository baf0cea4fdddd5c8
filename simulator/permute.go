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
	"fmt"

	"github.com/qubitforge/qsim/kernels"
)

// PermuteBasis relabels the computational basis on the subregister qs
// using a permutation table of length 2^len(qs). In the forward direction
// an amplitude at basis state i moves to the state whose qs-bits are
// table[r], r being the value packed from i's qs-bits; the adjoint pulls
// amplitudes the other way. Bits outside qs are preserved.
func (s *Simulator) PermuteBasis(qs []uint, table []uint64, adjoint bool) error {
	size := uint64(1) << uint(len(qs))
	if uint64(len(table)) != size {
		return fmt.Errorf("%w: got %d entries, want %d", ErrBadPermutationTable, len(table), size)
	}
	for _, v := range table {
		if v >= size {
			return fmt.Errorf("%w: entry %d out of range", ErrBadPermutationTable, v)
		}
	}
	ps, err := s.physicalAll(qs)
	if err != nil {
		return err
	}
	s.Flush()

	qmask := kernels.MakeMask(ps)
	next := make([]complex128, len(s.wfn))
	permute := func(state uint64) uint64 {
		r := kernels.GetRegister(ps, state)
		return kernels.SetRegister(ps, qmask, table[r], state)
	}
	if !adjoint {
		for i := range s.wfn {
			next[permute(uint64(i))] = s.wfn[i]
		}
	} else {
		for i := range next {
			next[i] = s.wfn[permute(uint64(i))]
		}
	}
	s.wfn = next
	return nil
}

// Copyright 2016 Chris Purcell. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package collect

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupIndexBits(t *testing.T) {
	testCases := []struct {
		capacity int
		expected uint
	}{
		{1, 4},
		{10, 4},
		{15, 4},
		{16, 5},
		{31, 5},
		{32, 6},
		{255, 8},
		{256, 9},
		{1023, 10},
		{1024, 11},
		{2047, 11},
		{2048, 15},
		{1<<15 - 1, 15},
		{1 << 15, 20},
		{1<<20 - 1, 20},
		{1 << 20, 31},
	}
	for _, c := range testCases {
		t.Run(fmt.Sprintf("capacity=%d", c.capacity), func(t *testing.T) {
			bits := lookupIndexBits(c.capacity)
			require.Equal(t, c.expected, bits)
			// The all-ones empty pattern must never be a valid slot index.
			require.Less(t, uint64(c.capacity-1), uint64(1)<<bits-1)
		})
	}
}

func TestLookupCells(t *testing.T) {
	testCases := []struct {
		capacity int
		expected int
	}{
		{10, 16},
		{11, 16},
		{12, 32},
		{22, 32},
		{23, 64},
		{44, 64},
		{45, 128},
	}
	for _, c := range testCases {
		t.Run(fmt.Sprintf("capacity=%d", c.capacity), func(t *testing.T) {
			numCells := lookupCells(c.capacity)
			require.Equal(t, c.expected, numCells)
			// Power of two, loaded at most maxElementLoadPercent even with
			// the element array full.
			require.Zero(t, numCells&(numCells-1))
			require.LessOrEqual(t, c.capacity*100, numCells*maxElementLoadPercent)
		})
	}
}

func TestLookupTableSetAt(t *testing.T) {
	for _, capacity := range []int{10, 100, 5000} {
		t.Run(fmt.Sprintf("capacity=%d", capacity), func(t *testing.T) {
			lt := makeLookupTable(make([]uint64, lookupWords(capacity)), capacity)
			for i := 0; i < lt.numCells; i++ {
				_, _, ok := lt.at(i)
				require.False(t, ok, "cell %d not empty after reset", i)
			}

			// Scatter writes: every third cell holds its own offset modulo
			// capacity, with a varying fingerprint.
			fpMax := uint64(1) << lt.fpBits
			for i := 0; i < lt.numCells; i += 3 {
				lt.set(i, i%capacity, uint64(i)%fpMax)
			}
			for i := 0; i < lt.numCells; i++ {
				index, fp, ok := lt.at(i)
				if i%3 != 0 {
					require.False(t, ok, "cell %d dirtied by a neighboring write", i)
					continue
				}
				require.True(t, ok)
				require.Equal(t, i%capacity, index)
				require.Equal(t, uint64(i)%fpMax, fp)
			}

			// Overwriting a cell replaces both fields.
			lt.set(0, capacity-1, fpMax-1)
			index, fp, ok := lt.at(0)
			require.True(t, ok)
			require.Equal(t, capacity-1, index)
			require.Equal(t, fpMax-1, fp)

			lt.reset()
			for i := 0; i < lt.numCells; i++ {
				_, _, ok := lt.at(i)
				require.False(t, ok)
			}
		})
	}
}

func TestProbeSeqVisitsEveryCell(t *testing.T) {
	hashes := []uint64{0, 1, ^uint64(0), 0xdeadbeefcafe}
	for i := 0; i < 10; i++ {
		hashes = append(hashes, rand.Uint64())
	}
	for _, mask := range []int{15, 63, 255} {
		for _, h := range hashes {
			seq := makeProbeSeq(h, mask)
			offsets := make([]int, 0, mask+1)
			for n := 0; n <= mask; n++ {
				offsets = append(offsets, seq.offset)
				seq = seq.next()
			}
			sort.Ints(offsets)
			for n := 0; n <= mask; n++ {
				require.Equal(t, n, offsets[n], "hash %#x mask %d misses cell %d", h, mask, n)
			}
		}
	}
}

func TestProbeSeqStrideOdd(t *testing.T) {
	for i := 0; i < 100; i++ {
		h := rand.Uint64()
		seq := makeProbeSeq(h, 1023)
		require.Equal(t, 1, seq.stride&1, "even stride for hash %#x", h)
	}
}

func TestLookupFingerprint(t *testing.T) {
	lt := makeLookupTable(make([]uint64, lookupWords(10)), 10)
	require.EqualValues(t, fingerprintBits, lt.fpBits)
	require.EqualValues(t, 0b11, lt.fingerprint(^uint64(0)))
	require.EqualValues(t, 0b10, lt.fingerprint(uint64(1)<<63))
	require.EqualValues(t, 0, lt.fingerprint(1))
}

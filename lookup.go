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
	"math/bits"
)

const (
	// noIndex is returned by cell and probe lookups that find nothing.
	noIndex = -1

	// fingerprintBits is the number of hash bits packed alongside each
	// index cell. A cell's fingerprint is compared before dereferencing
	// the element array, rejecting most collision-heavy probes without a
	// key comparison. Dropped for the overflow cell width, where a cell
	// already fills a word.
	fingerprintBits = 2

	// maxElementLoadPercent bounds element-store capacity relative to the
	// lookup cell count. The cell count is the smallest power of two
	// keeping occupancy at or below this load even with the element array
	// full.
	maxElementLoadPercent = 70

	wordBits = 64
)

// lookupIndexBits returns the width of the index field in each lookup
// cell for an element array of the given capacity. Widths come from a
// fixed table of supported sizes; narrow widths pack more cells into each
// word. The all-ones bit pattern marks an empty cell, so a width is only
// used while every valid slot index stays below it.
func lookupIndexBits(capacity int) uint {
	switch {
	case capacity < 1<<4:
		return 4
	case capacity < 1<<5:
		return 5
	case capacity < 1<<6:
		return 6
	case capacity < 1<<7:
		return 7
	case capacity < 1<<8:
		return 8
	case capacity < 1<<9:
		return 9
	case capacity < 1<<10:
		return 10
	case capacity < 1<<11:
		return 11
	case capacity < 1<<15:
		return 15
	case capacity < 1<<20:
		return 20
	case capacity < 1<<31:
		return 31
	default:
		return 63
	}
}

// lookupCells returns the number of lookup cells for an element array of
// the given capacity: a power of two sized so that capacity stays at or
// below maxElementLoadPercent of the cell count.
func lookupCells(capacity int) int {
	numCells := 1 << log2ceil(capacity)
	for capacity*100 > numCells*maxElementLoadPercent {
		numCells *= 2
	}
	return numCells
}

func log2ceil(value int) int {
	if value <= 1 {
		return 0
	}
	return bits.Len(uint(value - 1))
}

// lookupTable is an open-addressed table of bit-packed index cells
// mapping hash probe positions to element-array slots. Each cell holds an
// index field plus a fingerprint field, packed
// floor(wordBits/(indexBits+fpBits)) cells per word. An all-ones index
// field marks an empty cell.
type lookupTable struct {
	words     []uint64
	indexBits uint
	fpBits    uint
	numCells  int
}

// lookupWidth returns the index and fingerprint field widths used for an
// element array of the given capacity.
func lookupWidth(capacity int) (indexBits, fpBits uint) {
	indexBits = lookupIndexBits(capacity)
	fpBits = fingerprintBits
	if indexBits+fpBits > wordBits {
		fpBits = 0
	}
	return indexBits, fpBits
}

// lookupWords returns the number of words backing a table for the given
// capacity.
func lookupWords(capacity int) int {
	indexBits, fpBits := lookupWidth(capacity)
	cellsPerWord := wordBits / int(indexBits+fpBits)
	return 1 + (lookupCells(capacity)-1)/cellsPerWord
}

// makeLookupTable wraps the supplied backing words, which must be
// lookupWords(capacity) long, and marks every cell empty.
func makeLookupTable(words []uint64, capacity int) lookupTable {
	indexBits, fpBits := lookupWidth(capacity)
	t := lookupTable{
		words:     words,
		indexBits: indexBits,
		fpBits:    fpBits,
		numCells:  lookupCells(capacity),
	}
	t.reset()
	return t
}

// mask returns the cell-offset mask; numCells is always a power of two.
func (t *lookupTable) mask() int {
	return t.numCells - 1
}

// fingerprint extracts the hash bits stored alongside an index. The top
// of the hash is used; the bottom seeds the probe offset.
func (t *lookupTable) fingerprint(h uint64) uint64 {
	if t.fpBits == 0 {
		return 0
	}
	return h >> (wordBits - t.fpBits)
}

// at returns the slot index and fingerprint stored in cell i, or ok=false
// if the cell is empty.
func (t *lookupTable) at(i int) (index int, fp uint64, ok bool) {
	cellWidth := t.indexBits + t.fpBits
	cellsPerWord := wordBits / cellWidth
	shift := cellWidth * (uint(i) % cellsPerWord)
	raw := t.words[uint(i)/cellsPerWord] >> shift
	idxMask := uint64(1)<<t.indexBits - 1
	index = int(raw & idxMask)
	if uint64(index) == idxMask {
		return noIndex, 0, false
	}
	fp = (raw >> t.indexBits) & (uint64(1)<<t.fpBits - 1)
	return index, fp, true
}

// set stores a slot index and fingerprint in cell i, overwriting whatever
// the cell held.
func (t *lookupTable) set(i, index int, fp uint64) {
	if invariants && (index < 0 || uint64(index) >= uint64(1)<<t.indexBits-1) {
		panic(fmt.Sprintf("collect: index %d does not fit a %d-bit cell", index, t.indexBits))
	}
	cellWidth := t.indexBits + t.fpBits
	cellsPerWord := wordBits / cellWidth
	shift := cellWidth * (uint(i) % cellsPerWord)
	word := &t.words[uint(i)/cellsPerWord]
	cellMask := uint64(1)<<cellWidth - 1
	*word &^= cellMask << shift
	*word |= (uint64(index) | fp<<t.indexBits) << shift
}

// reset marks every cell empty. An all-ones fill leaves every index field
// at the empty pattern; the fingerprint bits it also sets are never read.
func (t *lookupTable) reset() {
	for i := range t.words {
		t.words[i] = ^uint64(0)
	}
}

// probeSeq maintains the state of a double-hashing probe sequence over
// the lookup cells. The initial cell is hash&mask; the stride is derived
// from the bit-reversed hash so different keys colliding on an initial
// cell still follow different paths. The stride is always odd, hence
// coprime with the power-of-two cell count, so the sequence visits every
// cell exactly once before repeating.
type probeSeq struct {
	mask   int
	offset int
	stride int
}

func makeProbeSeq(h uint64, mask int) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: int(h) & mask,
		stride: int(bits.Reverse64(h)*2+1) & mask,
	}
}

func (s probeSeq) next() probeSeq {
	s.offset = (s.offset + s.stride) & s.mask
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d stride=%d", s.mask, s.offset, s.stride)
}

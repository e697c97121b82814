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

import "math/bits"

// bitvec tracks which element slots hold a live entry, one bit per slot.
// A zero bit is either a never-used slot past the append cursor or a
// tombstone left behind by a removal.
type bitvec struct {
	words []uint64
}

// bitvecWords returns the number of words needed to track n slots.
func bitvecWords(n int) int {
	return (n + 63) / 64
}

func (b *bitvec) get(i int) bool {
	return b.words[i>>6]&(1<<(uint(i)&63)) != 0
}

func (b *bitvec) set(i int) {
	b.words[i>>6] |= 1 << (uint(i) & 63)
}

func (b *bitvec) clear(i int) {
	b.words[i>>6] &^= 1 << (uint(i) & 63)
}

func (b *bitvec) clearAll() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// setFirst sets bits [0, n) and clears the rest.
func (b *bitvec) setFirst(n int) {
	b.clearAll()
	for i := 0; i < n>>6; i++ {
		b.words[i] = ^uint64(0)
	}
	if rem := uint(n) & 63; rem != 0 {
		b.words[n>>6] = (1 << rem) - 1
	}
}

// count returns the number of set bits.
func (b *bitvec) count() int {
	var n int
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

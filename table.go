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
	"math/rand/v2"
	"unsafe"
)

const (
	debug = false

	// defaultCapacity is the element-array capacity of a newly
	// constructed set or map.
	defaultCapacity = 10

	// The element array grows by growthNumerator/growthDenominator
	// (x1.5) when it fills up with at least
	// minLiveNumerator/minLiveDenominator live entries. Below that
	// threshold enough of the array is tombstones that compacting in
	// place reclaims the space without allocating.
	growthNumerator    = 3
	growthDenominator  = 2
	minLiveNumerator   = 3
	minLiveDenominator = 4
)

// Slot holds a key and value at one position of the element array.
type Slot[K comparable, V any] struct {
	Key   K
	Value V
}

// table is the core shared by Map and Set: a dense insertion-ordered
// element array, a liveness bit per slot, and a bit-packed lookup table
// mapping hash probes to element positions. Sets instantiate it with a
// zero-size value type.
type table[K comparable, V any] struct {
	// The hash function applied to keys of type K, extracted from the Go
	// runtime's implementation of map[K]struct{}.
	hash hashFn
	seed uintptr
	// The allocator for the element and word arrays.
	alloc Allocator[K, V]
	// slots is the element store. slots[:head] have been appended to at
	// some point; live slots among them hold the entries in insertion
	// order, dead ones are tombstones awaiting compaction.
	slots []Slot[K, V]
	live  bitvec
	// lookup maps probe positions to slot indices. Regenerated wholesale
	// whenever the element array grows or is compacted; lookup.words is
	// nil in the window between a grow and the rebuild.
	lookup lookupTable
	// head is the next append position.
	head int
	// size is the number of live slots.
	size int
	// gen increments on every structural mutation (add or remove, not
	// value update), invalidating outstanding iterators.
	gen uint64
}

func (t *table[K, V]) init(initialCapacity int, options []option[K, V]) {
	if initialCapacity < 0 {
		panic(fmt.Sprintf("collect: initial capacity must be non-negative, got %d", initialCapacity))
	}
	t.hash = getRuntimeHasher[K]()
	t.seed = uintptr(rand.Uint64())
	t.alloc = defaultAllocator[K, V]{}
	for _, op := range options {
		op.apply(t)
	}
	capacity := max(initialCapacity, defaultCapacity)
	t.slots = t.alloc.AllocSlots(capacity)
	t.live = bitvec{words: t.alloc.AllocWords(bitvecWords(capacity))}
	t.newLookup()
	t.checkInvariants()
}

// close releases the backing arrays to the configured allocator. The
// table must not be used afterwards.
func (t *table[K, V]) close() {
	if t.slots != nil {
		t.alloc.FreeSlots(t.slots)
		t.alloc.FreeWords(t.live.words)
		if t.lookup.words != nil {
			t.alloc.FreeWords(t.lookup.words)
		}
	}
	t.slots = nil
	t.live = bitvec{}
	t.lookup = lookupTable{}
	t.head = 0
	t.size = 0
	t.alloc = nil
}

func (t *table[K, V]) hashKey(key *K) uint64 {
	return uint64(t.hash(noescape(unsafe.Pointer(key)), t.seed))
}

// find probes the lookup table for key. If the key is present it returns
// its slot index with found=true. Otherwise it returns found=false and
// free, the first reusable lookup cell along the key's probe sequence:
// either the first cell left dangling by a deletion, or the empty cell
// that terminated the probe. This is the single combined
// find-or-insert-point pass; callers insert at free without rescanning.
//
// The probe may visit every cell without finding an empty one: removals
// leave their cells dangling, and removing a tail element regresses the
// append cursor, so add/remove churn at the tail can fill the table with
// dangling cells without ever triggering a rebuild. That state still
// answers lookups correctly, it just exhausts the sequence first.
func (t *table[K, V]) find(h uint64, key K) (index, free int, found bool) {
	mask := t.lookup.mask()
	fp := t.lookup.fingerprint(h)
	free = noIndex
	seq := makeProbeSeq(h, mask)
	if debug {
		fmt.Printf("find(%v): %s\n", key, seq)
	}
	for n := 0; n <= mask; n++ {
		index, cellFP, ok := t.lookup.at(seq.offset)
		if !ok {
			if free == noIndex {
				free = seq.offset
			}
			return noIndex, free, false
		}
		if !t.live.get(index) {
			// A dangling cell: its slot was tombstoned after the cell
			// was written. It does not terminate the probe (the key's
			// chain may continue past it) but its cell is reusable.
			if free == noIndex {
				free = seq.offset
			}
		} else if cellFP == fp && t.slots[index].Key == key {
			return index, free, true
		}
		seq = seq.next()
	}
	// Every cell is live or dangling. Live cells alone can never fill the
	// table (the element array caps out well below the cell count), so a
	// dangling cell must have been seen along the way.
	if free == noIndex {
		panic(fmt.Sprintf("collect: no reusable cell along probe sequence %s", makeProbeSeq(h, mask)))
	}
	return noIndex, free, false
}

// insertCell returns the first empty cell along the probe sequence for h.
// Only valid while the lookup table contains no dangling cells, i.e.
// during a rebuild.
func (t *table[K, V]) insertCell(h uint64) int {
	mask := t.lookup.mask()
	seq := makeProbeSeq(h, mask)
	for n := 0; n <= mask; n++ {
		if _, _, ok := t.lookup.at(seq.offset); !ok {
			return seq.offset
		}
		seq = seq.next()
	}
	panic(fmt.Sprintf("collect: no empty cell along probe sequence %s", makeProbeSeq(h, mask)))
}

// get returns the value stored for key.
func (t *table[K, V]) get(key K) (value V, ok bool) {
	index, _, found := t.find(t.hashKey(&key), key)
	if !found {
		return value, false
	}
	return t.slots[index].Value, true
}

func (t *table[K, V]) contains(key K) bool {
	_, _, found := t.find(t.hashKey(&key), key)
	return found
}

// put inserts key or updates its value in place. Updates are not
// structural: they do not move the entry, bump the generation, or
// invalidate iterators.
func (t *table[K, V]) put(key K, value V) (old V, existed bool) {
	h := t.hashKey(&key)
	index, free, found := t.find(h, key)
	if found {
		old = t.slots[index].Value
		t.slots[index].Value = value
		return old, true
	}
	// Growing or compacting rebuilds the lookup table, invalidating the
	// free cell found above.
	if t.ensureFreeSlot() {
		_, free, _ = t.find(h, key)
	}
	index = t.head
	t.head++
	t.slots[index] = Slot[K, V]{Key: key, Value: value}
	t.live.set(index)
	t.lookup.set(free, index, t.lookup.fingerprint(h))
	t.size++
	t.gen++
	t.checkInvariants()
	return old, false
}

// del removes key, returning its value. The slot becomes a tombstone; the
// lookup cells along the key's probe chain are left dangling and are
// reclaimed by the next rebuild.
func (t *table[K, V]) del(key K) (old V, existed bool) {
	index, _, found := t.find(t.hashKey(&key), key)
	if !found {
		return old, false
	}
	old = t.slots[index].Value
	t.deleteAt(index)
	t.checkInvariants()
	return old, true
}

// deleteAt tombstones the slot at index, which must be live.
func (t *table[K, V]) deleteAt(index int) {
	if !t.live.get(index) {
		panic(fmt.Sprintf("collect: delete of dead slot %d", index))
	}
	t.slots[index] = Slot[K, V]{}
	t.live.clear(index)
	t.size--
	t.gen++
	// Reuse a removed tail slot for the next append instead of growing
	// toward the end of the array.
	if index == t.head-1 {
		t.head--
		for t.head > 0 && !t.live.get(t.head-1) {
			t.head--
		}
	}
}

// ensureFreeSlot makes room to append one element, growing or compacting
// as needed. It reports whether the lookup table was rebuilt.
func (t *table[K, V]) ensureFreeSlot() bool {
	if t.head < len(t.slots) {
		return false
	}
	if t.size >= len(t.slots)*minLiveNumerator/minLiveDenominator {
		t.grow()
	}
	t.compact()
	return true
}

// grow reallocates the element array at x1.5 capacity. The lookup table
// is released here and regenerated by the compact call that follows every
// grow.
func (t *table[K, V]) grow() {
	newCapacity := len(t.slots) * growthNumerator / growthDenominator
	newSlots := t.alloc.AllocSlots(newCapacity)
	copy(newSlots, t.slots)
	t.alloc.FreeSlots(t.slots)
	t.slots = newSlots

	newWords := t.alloc.AllocWords(bitvecWords(newCapacity))
	copy(newWords, t.live.words)
	t.alloc.FreeWords(t.live.words)
	t.live = bitvec{words: newWords}

	t.alloc.FreeWords(t.lookup.words)
	t.lookup = lookupTable{}

	if debug {
		fmt.Printf("grow: capacity=%d\n", newCapacity)
	}
}

// compact slides live elements down over tombstones, preserving insertion
// order, and rebuilds the lookup table as each element lands in its new
// slot. Afterwards the append cursor sits just past the last live
// element.
func (t *table[K, V]) compact() {
	if t.lookup.words == nil {
		t.newLookup()
	} else {
		t.lookup.reset()
	}
	target := 0
	for source := 0; source < t.head; source++ {
		if !t.live.get(source) {
			continue
		}
		if source != target {
			t.slots[target] = t.slots[source]
		}
		h := t.hashKey(&t.slots[target].Key)
		t.lookup.set(t.insertCell(h), target, t.lookup.fingerprint(h))
		target++
	}
	if target != t.size {
		panic(fmt.Sprintf("collect: compacted %d slots but size is %d", target, t.size))
	}
	for i := target; i < t.head; i++ {
		t.slots[i] = Slot[K, V]{}
	}
	t.live.setFirst(target)
	t.head = t.size

	if debug {
		fmt.Printf("compact: size=%d capacity=%d cells=%d\n", t.size, len(t.slots), t.lookup.numCells)
	}
}

func (t *table[K, V]) newLookup() {
	capacity := len(t.slots)
	t.lookup = makeLookupTable(t.alloc.AllocWords(lookupWords(capacity)), capacity)
}

// clear removes all elements, retaining the backing arrays.
func (t *table[K, V]) clear() {
	for i := range t.slots[:t.head] {
		t.slots[i] = Slot[K, V]{}
	}
	t.live.clearAll()
	t.lookup.reset()
	t.head = 0
	t.size = 0
	t.gen++
}

func (t *table[K, V]) checkInvariants() {
	if invariants {
		if n := t.live.count(); n != t.size {
			panic(fmt.Sprintf("invariant failed: %d live slots, but size is %d", n, t.size))
		}
		if t.head > len(t.slots) {
			panic(fmt.Sprintf("invariant failed: head %d past capacity %d", t.head, len(t.slots)))
		}
		for i := t.head; i < len(t.slots); i++ {
			if t.live.get(i) {
				panic(fmt.Sprintf("invariant failed: live slot %d past head %d", i, t.head))
			}
		}
		// Every live slot must be reachable along its key's probe
		// sequence.
		for i := 0; i < t.head; i++ {
			if !t.live.get(i) {
				continue
			}
			index, _, found := t.find(t.hashKey(&t.slots[i].Key), t.slots[i].Key)
			if !found || index != i {
				panic(fmt.Sprintf("invariant failed: slot %d (%v) found at %d, found=%t",
					i, t.slots[i].Key, index, found))
			}
		}
	}
}

// all calls yield for each live entry in insertion order until yield
// returns false.
func (t *table[K, V]) all(yield func(K, V) bool) {
	for i := 0; i < t.head; i++ {
		if t.live.get(i) && !yield(t.slots[i].Key, t.slots[i].Value) {
			return
		}
	}
}

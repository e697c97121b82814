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

// Package collect provides memory-compact hash sets and maps with
// predictable, insertion-ordered iteration. The representation was
// originally pioneered by PyPy and subsequently adopted for Python 3.6's
// compact dict:
//
//	https://morepypy.blogspot.co.uk/2015/01/faster-more-memory-efficient-and-more.html
//	https://docs.python.org/3.6/whatsnew/3.6.html#whatsnew36-compactdict
//
// # Design
//
// Entries live in a dense array in insertion order. Lookup goes through a
// separate open-addressed table of bit-packed index cells mapping hash
// probe positions to element-array slots, using double hashing
// (https://en.wikipedia.org/wiki/Double_hashing) to reduce collisions.
// Small collections achieve a high compression rate, as lookup cells
// need fewer bits; a newly-allocated instance spends only 6 bits per
// cell to index the default 10-element array, and the cell width grows
// with the element array. A couple of hash bits ride along in each cell
// as a fingerprint, rejecting most colliding probes without touching the
// element array.
//
// Removal tombstones the element slot and leaves its lookup cells
// dangling; the element array is periodically compacted, squeezing out
// tombstones and regenerating the lookup table, when it fills up with
// mostly-live entries it instead grows like a slice append (x1.5).
//
// Memory overhead beyond the entries themselves is a handful of bits per
// element, against several machine words per entry for a builtin map
// shadowed by a separate insertion-order list.
//
// # Concurrency
//
// Maps and Sets are NOT goroutine-safe: access from multiple goroutines
// where at least one mutates must be synchronized externally. Iterators
// are fail-fast on a best-effort basis: structural modification during
// iteration surfaces as ErrModified from the iterator rather than
// nondeterministic behavior, but this detects bugs, it does not license
// concurrent use.
package collect

// Map is an insertion-ordered map from keys to values. All returns
// entries in the order the keys were first inserted; updating the value
// of an existing key does not move it. The zero value for a Map is not
// usable; construct with NewMap.
type Map[K comparable, V any] struct {
	t table[K, V]
}

// NewMap constructs an empty map with capacity for at least
// initialCapacity entries before the element array first grows. A
// negative initialCapacity panics. By default keys hash with the same
// function as Go's builtin map[K]V; override with WithHash.
func NewMap[K comparable, V any](initialCapacity int, options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{}
	m.t.init(initialCapacity, options)
	return m
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. It returns the previous value,
// if any. Overwriting is not a structural modification and does not
// invalidate iterators.
func (m *Map[K, V]) Put(key K, value V) (old V, existed bool) {
	return m.t.put(key, value)
}

// Get retrieves the value for the specified key, returning ok=false if
// the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	return m.t.get(key)
}

// ContainsKey reports whether the map holds an entry for key.
func (m *Map[K, V]) ContainsKey(key K) bool {
	return m.t.contains(key)
}

// Delete removes the entry for the specified key, returning its value.
// Deleting a non-existent key is a noop.
func (m *Map[K, V]) Delete(key K) (old V, existed bool) {
	return m.t.del(key)
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.t.size
}

// IsEmpty reports whether the map holds no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.t.size == 0
}

// All calls yield sequentially for each key and value in insertion
// order. If yield returns false, iteration stops. The map must not be
// structurally modified during All; use Iter for checked iteration.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	m.t.all(yield)
}

// Clear removes all entries, retaining the backing arrays.
func (m *Map[K, V]) Clear() {
	m.t.clear()
}

// Close releases the map's memory back to its configured allocator. It
// is unnecessary to close a map using the default allocator. It is
// invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	if m.t.alloc != nil {
		m.t.close()
	}
}

// Iter returns a fail-fast iterator positioned before the first entry.
// The iterator doubles as a view of its current entry: Key, Value and
// SetValue address the entry most recently returned by Next.
func (m *Map[K, V]) Iter() *MapIter[K, V] {
	return &MapIter[K, V]{t: &m.t, gen: m.t.gen, index: noIndex}
}

// MapIter iterates a Map in insertion order:
//
//	it := m.Iter()
//	for it.Next() {
//	  fmt.Printf("%v: %v\n", it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
//
// Structural modification of the map after the iterator is created, in
// any way except through the iterator's own Remove method, stops the
// iterator with ErrModified. Value updates (Put on an existing key,
// SetValue through any iterator) are not structural and do not
// invalidate it.
type MapIter[K comparable, V any] struct {
	t     *table[K, V]
	gen   uint64
	index int
	next  int
	err   error
}

// Next advances to the next entry, reporting whether one exists. It
// returns false at the end of the map or once the map has been
// structurally modified; Err distinguishes the two.
func (it *MapIter[K, V]) Next() bool {
	if it.err != nil {
		return false
	}
	if it.t.gen != it.gen {
		it.err = ErrModified
		return false
	}
	for it.next < it.t.head && !it.t.live.get(it.next) {
		it.next++
	}
	if it.next >= it.t.head {
		return false
	}
	it.index = it.next
	it.next++
	return true
}

// Err returns ErrModified if the iterator stopped because of a
// structural modification, and nil otherwise.
func (it *MapIter[K, V]) Err() error {
	return it.err
}

// Key returns the key of the current entry.
func (it *MapIter[K, V]) Key() (key K) {
	if !it.valid() {
		return key
	}
	return it.t.slots[it.index].Key
}

// Value returns the value of the current entry, reading through any
// updates made since Next.
func (it *MapIter[K, V]) Value() (value V) {
	if !it.valid() {
		return value
	}
	return it.t.slots[it.index].Value
}

// SetValue replaces the value of the current entry, returning the old
// value. The update is not structural: it never invalidates other
// iterators, and the entry keeps its position in iteration order.
func (it *MapIter[K, V]) SetValue(value V) (old V) {
	if !it.valid() {
		return old
	}
	old = it.t.slots[it.index].Value
	it.t.slots[it.index].Value = value
	return old
}

// Remove deletes the current entry. This is the one mutation that does
// not invalidate the iterator: its snapshot is resynchronized after the
// removal. The entry view is exhausted until the next call to Next.
func (it *MapIter[K, V]) Remove() {
	if !it.valid() {
		return
	}
	it.t.deleteAt(it.index)
	it.t.checkInvariants()
	it.gen = it.t.gen
	it.index = noIndex
	// deleteAt may have regressed the append cursor over the removed
	// tail; the scan position never has to back up because everything
	// before it stays put.
}

// valid checks that the iterator has a current entry and the map has not
// been structurally modified since. Calling an entry accessor with no
// current entry is a caller bug.
func (it *MapIter[K, V]) valid() bool {
	if it.err != nil {
		return false
	}
	if it.index == noIndex {
		panic("collect: no current entry (Next not called, or entry removed)")
	}
	if it.t.gen != it.gen {
		it.err = ErrModified
		return false
	}
	return true
}

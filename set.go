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

// Set is an insertion-ordered set of comparable elements, backed by the
// same compact element array and bit-packed lookup table as Map. The
// zero value for a Set is not usable; construct with NewSet or SetOf.
type Set[E comparable] struct {
	t table[E, struct{}]
}

// NewSet constructs an empty set with capacity for at least
// initialCapacity elements before the element array first grows. A
// negative initialCapacity panics. By default elements hash with the
// same function as Go's builtin map[E]struct{}; override with WithHash.
func NewSet[E comparable](initialCapacity int, options ...option[E, struct{}]) *Set[E] {
	s := &Set[E]{}
	s.t.init(initialCapacity, options)
	return s
}

// SetOf constructs a set containing the given elements in order. If an
// element is duplicated, only the first occurrence is stored.
func SetOf[E comparable](elems ...E) *Set[E] {
	s := NewSet[E](len(elems))
	for _, e := range elems {
		s.Add(e)
	}
	return s
}

// Add inserts an element, reporting whether the set changed. Adding an
// element already present leaves the set, and its iteration order,
// untouched.
func (s *Set[E]) Add(e E) bool {
	_, existed := s.t.put(e, struct{}{})
	return !existed
}

// Contains reports whether the set holds e.
func (s *Set[E]) Contains(e E) bool {
	return s.t.contains(e)
}

// Remove deletes an element, reporting whether the set changed.
func (s *Set[E]) Remove(e E) bool {
	_, existed := s.t.del(e)
	return existed
}

// Len returns the number of elements in the set.
func (s *Set[E]) Len() int {
	return s.t.size
}

// IsEmpty reports whether the set holds no elements.
func (s *Set[E]) IsEmpty() bool {
	return s.t.size == 0
}

// All calls yield sequentially for each element in insertion order. If
// yield returns false, iteration stops. The set must not be structurally
// modified during All; use Iter for checked iteration.
func (s *Set[E]) All(yield func(e E) bool) {
	s.t.all(func(e E, _ struct{}) bool { return yield(e) })
}

// Clear removes all elements, retaining the backing arrays.
func (s *Set[E]) Clear() {
	s.t.clear()
}

// Close releases the set's memory back to its configured allocator.
// Unnecessary with the default allocator; idempotent.
func (s *Set[E]) Close() {
	if s.t.alloc != nil {
		s.t.close()
	}
}

// Iter returns a fail-fast iterator positioned before the first element.
func (s *Set[E]) Iter() *SetIter[E] {
	return &SetIter[E]{t: &s.t, gen: s.t.gen, index: noIndex}
}

// SetIter iterates a Set in insertion order:
//
//	it := s.Iter()
//	for it.Next() {
//	  fmt.Println(it.Elem())
//	}
//	if err := it.Err(); err != nil { ... }
//
// Structural modification of the set after the iterator is created, in
// any way except through the iterator's own Remove method, stops the
// iterator with ErrModified.
type SetIter[E comparable] struct {
	t     *table[E, struct{}]
	gen   uint64
	index int
	next  int
	err   error
}

// Next advances to the next element, reporting whether one exists. It
// returns false at the end of the set or once the set has been
// structurally modified; Err distinguishes the two.
func (it *SetIter[E]) Next() bool {
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
func (it *SetIter[E]) Err() error {
	return it.err
}

// Elem returns the current element.
func (it *SetIter[E]) Elem() (e E) {
	if !it.valid() {
		return e
	}
	return it.t.slots[it.index].Key
}

// Remove deletes the current element. This is the one mutation that does
// not invalidate the iterator: its snapshot is resynchronized after the
// removal.
func (it *SetIter[E]) Remove() {
	if !it.valid() {
		return
	}
	it.t.deleteAt(it.index)
	it.t.checkInvariants()
	it.gen = it.t.gen
	it.index = noIndex
}

func (it *SetIter[E]) valid() bool {
	if it.err != nil {
		return false
	}
	if it.index == noIndex {
		panic("collect: no current element (Next not called, or element removed)")
	}
	if it.t.gen != it.gen {
		it.err = ErrModified
		return false
	}
	return true
}

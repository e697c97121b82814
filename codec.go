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
	"encoding/binary"
	"io"
)

// The encoded form of a set or map is a big-endian uint32 element count
// followed by each live element in iteration order, each written by the
// caller-supplied encode function. Decoding rebuilds the lookup table by
// inserting sequentially, so insertion order round-trips; a duplicate
// element marks the input corrupt.

// maxDecodeCapacityHint bounds the capacity preallocated from an encoded
// element count. The count is unvalidated input, so a corrupt or hostile
// header must not be able to demand an enormous allocation up front;
// larger collections grow as their elements decode.
const maxDecodeCapacityHint = 1 << 16

// Encode writes the set to w: the element count, then each element in
// insertion order via encodeElem.
func (s *Set[E]) Encode(w io.Writer, encodeElem func(io.Writer, E) error) error {
	if err := binary.Write(w, binary.BigEndian, uint32(s.Len())); err != nil {
		return err
	}
	var err error
	s.All(func(e E) bool {
		err = encodeElem(w, e)
		return err == nil
	})
	return err
}

// DecodeSet reads a set written by Encode, yielding elements in their
// original insertion order. Duplicate elements are rejected with
// ErrCorrupted.
func DecodeSet[E comparable](r io.Reader, decodeElem func(io.Reader) (E, error)) (*Set[E], error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	s := NewSet[E](int(min(uint64(count), maxDecodeCapacityHint)))
	for i := 0; i < int(count); i++ {
		e, err := decodeElem(r)
		if err != nil {
			return nil, err
		}
		if !s.Add(e) {
			return nil, ErrCorrupted
		}
	}
	return s, nil
}

// Encode writes the map to w: the entry count, then each key and value
// in insertion order via encodeKey and encodeValue.
func (m *Map[K, V]) Encode(
	w io.Writer, encodeKey func(io.Writer, K) error, encodeValue func(io.Writer, V) error,
) error {
	if err := binary.Write(w, binary.BigEndian, uint32(m.Len())); err != nil {
		return err
	}
	var err error
	m.All(func(k K, v V) bool {
		if err = encodeKey(w, k); err != nil {
			return false
		}
		err = encodeValue(w, v)
		return err == nil
	})
	return err
}

// DecodeMap reads a map written by Encode, yielding entries in their
// original insertion order. Duplicate keys are rejected with
// ErrCorrupted.
func DecodeMap[K comparable, V any](
	r io.Reader, decodeKey func(io.Reader) (K, error), decodeValue func(io.Reader) (V, error),
) (*Map[K, V], error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	m := NewMap[K, V](int(min(uint64(count), maxDecodeCapacityHint)))
	for i := 0; i < int(count); i++ {
		k, err := decodeKey(r)
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		if _, existed := m.Put(k, v); existed {
			return nil, ErrCorrupted
		}
	}
	return m, nil
}

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

import "unsafe"

// hashFn matches the signature of the hash functions in the Go runtime.
type hashFn func(unsafe.Pointer, uintptr) uintptr

// getRuntimeHasher returns the hash function the Go runtime uses for
// map[K]struct{}, extracted by reaching into the internals of the map
// type. This keys hashing off the exact same routines the builtin map
// uses, including AES-based string hashing where available. (This might
// break in a future version of Go, but is likely fixable).
func getRuntimeHasher[K comparable]() hashFn {
	var m any = (map[K]struct{})(nil)
	return (*rtEface)(unsafe.Pointer(&m)).typ.Hasher
}

// rtEface mirrors runtime.eface for an interface holding a map value.
type rtEface struct {
	typ *rtMapType
	val unsafe.Pointer
}

// rtMapType mirrors the layout of the runtime's map type descriptor
// (internal/abi.MapType). Only Hasher is used; the preceding fields exist
// to keep the offsets correct.
type rtMapType struct {
	rtType
	Key    *rtType
	Elem   *rtType
	Bucket *rtType
	// Hasher computes the hash of the key at the supplied pointer, mixing
	// in a seed.
	Hasher     func(unsafe.Pointer, uintptr) uintptr
	KeySize    uint8
	ValueSize  uint8
	BucketSize uint16
	Flags      uint32
}

// rtType mirrors the layout of internal/abi.Type.
type rtType struct {
	Size_       uintptr
	PtrBytes    uintptr
	Hash        uint32
	TFlag       uint8
	Align_      uint8
	FieldAlign_ uint8
	Kind_       uint8
	Equal       func(unsafe.Pointer, unsafe.Pointer) bool
	GCData      *byte
	Str         int32
	PtrToThis   int32
}

// noescape hides a pointer from escape analysis. noescape is the identity
// function but escape analysis doesn't think the output depends on the
// input. noescape is inlined and currently compiles down to zero
// instructions.
// USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}

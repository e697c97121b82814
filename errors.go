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

import "errors"

// Errors reported by sets and maps.
var (
	// ErrModified is reported by an iterator whose set or map was
	// structurally modified (an element added or removed, not a value
	// updated) after the iterator was created, other than through the
	// iterator's own Remove method. Detection is best-effort.
	ErrModified = errors.New("collect: structure modified during iteration")

	// ErrCorrupted is returned when decoding an encoded set or map that
	// contains a duplicate element.
	ErrCorrupted = errors.New("collect: duplicate element in encoded data")
)

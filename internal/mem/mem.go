/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package mem provides backing buffers for fixed arenas. Each helper
// returns the buffer together with a release function; release is safe
// to call more than once.
package mem

import (
	"fmt"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

// Alloc returns a heap-backed buffer of exactly size bytes. The buffer
// is not zeroed: arena owners overwrite their metadata before reading
// it, so zeroing would be wasted work.
func Alloc(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mem: invalid buffer size %d", size)
	}
	buf := dirtmake.Bytes(size, size)
	return buf, func() error { return nil }, nil
}

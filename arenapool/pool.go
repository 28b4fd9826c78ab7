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

// Package arenapool fronts several fixed malloc arenas with one
// allocation surface. A single arena never grows; a pool adds whole
// arenas instead, so total capacity can be raised while each arena
// keeps its fixed-size guarantees.
package arenapool

import (
	"errors"
	"sync"

	"github.com/cloudwego/memarena/malloc"
)

// Handle identifies an allocation within a pool: the owning arena plus
// the payload offset inside it. The zero Handle is the null handle;
// Free(Handle{}) is a no-op.
type Handle struct {
	arena  int
	offset int
}

// IsNull reports whether h is the null handle.
func (h Handle) IsNull() bool {
	return h.offset == malloc.NullOffset
}

// Offset returns the payload offset within the owning arena.
func (h Handle) Offset() int {
	return h.offset
}

// Pool is a set of fixed arenas. All methods are safe for concurrent
// use. The pool mutex only guards the arena slice; block-level locking
// stays inside each arena.
type Pool struct {
	mu     sync.Mutex
	arenas []*malloc.Allocator
}

// New returns an empty pool. Alloc fails with ErrOutOfMemory until
// Grow adds capacity.
func New() *Pool {
	return &Pool{}
}

// NewWithSize returns a pool with one arena of the given size.
func NewWithSize(size int) (*Pool, error) {
	p := New()
	if err := p.Grow(size); err != nil {
		return nil, err
	}
	return p, nil
}

// Grow adds one heap-backed arena of the given size to the pool.
// Existing arenas and outstanding handles are unaffected.
func (p *Pool) Grow(size int) error {
	a, err := malloc.New(size)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.arenas = append(p.arenas, a)
	p.mu.Unlock()
	return nil
}

// Alloc allocates size bytes from the first arena that can satisfy the
// request, in the order the arenas were added. It returns
// malloc.ErrOutOfMemory when every arena is too full.
func (p *Pool) Alloc(size int) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, a := range p.arenas {
		off, err := a.Alloc(size)
		if err == nil {
			return Handle{arena: i, offset: off}, nil
		}
		if !errors.Is(err, malloc.ErrOutOfMemory) {
			return Handle{}, err
		}
	}
	return Handle{}, malloc.ErrOutOfMemory
}

// Free returns the allocation identified by h to its arena.
func (p *Pool) Free(h Handle) {
	if h.IsNull() {
		return
	}
	p.owner(h).Free(h.offset)
}

// Bytes returns the payload for h. The slice stays valid until the
// handle is freed.
func (p *Pool) Bytes(h Handle) []byte {
	return p.owner(h).Bytes(h.offset)
}

func (p *Pool) owner(h Handle) *malloc.Allocator {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h.arena < 0 || h.arena >= len(p.arenas) {
		panic("arenapool: foreign handle")
	}
	return p.arenas[h.arena]
}

// Stats aggregates the stats of every arena in the pool.
type Stats struct {
	Arenas         int
	TotalSize      int
	AllocatedBytes int
	FreeBytes      int
	Allocations    int
}

// Stats walks every arena and returns aggregated counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	arenas := make([]*malloc.Allocator, len(p.arenas))
	copy(arenas, p.arenas)
	p.mu.Unlock()

	s := Stats{Arenas: len(arenas)}
	for _, a := range arenas {
		as := a.Stats()
		s.TotalSize += as.TotalSize
		s.AllocatedBytes += as.AllocatedBytes
		s.FreeBytes += as.FreeBytes
		s.Allocations += as.Allocations
	}
	return s
}

// Package malloc implements a thread-safe first-fit allocator over a
// fixed-size byte arena. The arena never grows and never returns memory
// to the runtime; allocations and frees are carved out of the one buffer
// handed to the allocator at construction time.
//
// Free blocks are threaded through the arena itself as a singly-linked,
// address-ordered list. Each block starts with a 16-byte header holding
// the total block size and either the arena offset of the next free
// block (free blocks) or an allocated-tag sentinel (allocated blocks).
// Instead of raw pointers the allocator hands out integer offsets into
// the arena, so every access is bounds-checked slice indexing.
package malloc

import (
	"sync"

	"github.com/cloudwego/memarena/internal/mem"
)

const (
	// HeaderSize is the per-block metadata size. It is also the
	// allocation granularity and the minimum block size: requested
	// sizes are rounded up to a multiple of HeaderSize before the
	// header is added.
	HeaderSize = 16

	// NullOffset is the null allocation handle. Payload offsets are
	// always at least HeaderSize, so zero can never identify a live
	// allocation. Free(NullOffset) is a no-op.
	NullOffset = 0
)

// Allocator manages one fixed arena. All methods are safe for
// concurrent use; a single mutex covers the arena and the free list.
type Allocator struct {
	mu   sync.Mutex
	buf  []byte
	head int // offset of the first free block, noBlock if none

	release func() error // backing cleanup installed by New/NewMmap
}

// NewAllocator wraps a caller-provided arena. The arena length must be
// a positive multiple of HeaderSize. The buffer's previous contents are
// discarded: the whole arena becomes one free block.
func NewAllocator(arena []byte) (*Allocator, error) {
	if err := checkArenaSize(len(arena)); err != nil {
		return nil, err
	}
	a := &Allocator{buf: arena, head: 0}
	a.writeFree(0, len(arena), noBlock)
	return a, nil
}

// New creates an allocator over a heap-backed arena of the given size.
func New(size int) (*Allocator, error) {
	if err := checkArenaSize(size); err != nil {
		return nil, err
	}
	buf, release, err := mem.Alloc(size)
	if err != nil {
		return nil, err
	}
	return newWithBacking(buf, release)
}

// NewMmap creates an allocator over an anonymous private mapping of the
// given size. The mapping is released by Close. On platforms without
// mmap support the arena is heap-backed.
func NewMmap(size int) (*Allocator, error) {
	if err := checkArenaSize(size); err != nil {
		return nil, err
	}
	buf, release, err := mem.Map(size)
	if err != nil {
		return nil, err
	}
	return newWithBacking(buf, release)
}

func newWithBacking(buf []byte, release func() error) (*Allocator, error) {
	a, err := NewAllocator(buf)
	if err != nil {
		_ = release()
		return nil, err
	}
	a.release = release
	return a, nil
}

// Close retires the allocator and releases its backing memory, if any.
// Every outstanding offset becomes invalid; any further use panics.
// Close is idempotent.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.buf == nil {
		return nil
	}
	a.buf = nil
	a.head = noBlock
	release := a.release
	a.release = nil
	if release == nil {
		return nil
	}
	return release()
}

// TotalSize returns the arena size in bytes, headers included.
func (a *Allocator) TotalSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

func checkArenaSize(size int) error {
	if size < HeaderSize || size%HeaderSize != 0 {
		return ErrInvalidArenaSize
	}
	return nil
}

// roundUp rounds n up to the next multiple of HeaderSize.
func roundUp(n int) int {
	return (n + 0xF) &^ 0xF
}

package malloc

// Alloc carves a block of at least size bytes out of the arena and
// returns the payload's arena offset. The payload is always aligned to
// HeaderSize. It returns ErrOutOfMemory when no free block is large
// enough; the arena is left unchanged in that case.
//
// The free-list scan and the split both happen under one lock
// acquisition, so the selected block cannot be merged away or relinked
// by a concurrent Free between the search and the mutation.
func (a *Allocator) Alloc(size int) (int, error) {
	if size < 0 {
		return NullOffset, ErrInvalidSize
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkOpen()
	if size > len(a.buf) {
		// Cannot fit even in an empty arena. Checked up front so the
		// rounding below cannot overflow on absurd sizes.
		return NullOffset, ErrOutOfMemory
	}
	needed := roundUp(size) + HeaderSize

	// First fit: the first free block in address order that is large
	// enough wins, whatever it wastes.
	prev := noBlock
	off := a.head
	for off != noBlock {
		h := a.readHeader(off)
		if h.size >= needed {
			return a.takeBlock(prev, off, h, needed), nil
		}
		prev = off
		off = h.next
	}
	return NullOffset, ErrOutOfMemory
}

// takeBlock allocates needed bytes from the free block at off,
// splitting off the tail as a new free block unless the fit is exact.
// prev is the preceding free block (noBlock when off is the head).
// Called with the lock held.
func (a *Allocator) takeBlock(prev, off int, h blockHeader, needed int) int {
	if h.size == needed {
		a.setNext(prev, h.next)
		a.writeAllocated(off, needed)
		return off + HeaderSize
	}

	// The tail keeps the original block's place in the free list. It
	// is always at least HeaderSize because block sizes and needed are
	// both multiples of HeaderSize.
	tail := off + needed
	a.writeFree(tail, h.size-needed, h.next)
	a.setNext(prev, tail)
	a.writeAllocated(off, needed)
	return off + HeaderSize
}

// Free returns the allocation at the given payload offset to the arena.
// Free(NullOffset) is a no-op. The block is reinserted into the free
// list at its address position and eagerly merged with byte-adjacent
// free neighbors on both sides, so the list never holds two adjacent
// free blocks.
//
// Freeing an offset that was not returned by Alloc, or freeing it
// twice, panics.
func (a *Allocator) Free(off int) {
	if off == NullOffset {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkOpen()
	block := a.blockOffset(off)
	h := a.readHeader(block)
	if !h.allocated {
		panic("malloc: double free or foreign offset")
	}

	if a.head == noBlock || block < a.head {
		// New head of the free list.
		a.writeFree(block, h.size, a.head)
		a.head = block
		a.mergeNext(block)
		return
	}

	// Find the last free block before this one.
	prev := a.head
	for {
		ph := a.readHeader(prev)
		if ph.next == noBlock || ph.next > block {
			break
		}
		prev = ph.next
	}
	a.writeFree(block, h.size, a.readHeader(prev).next)
	a.setNext(prev, block)
	a.mergeNext(block)
	a.mergeNext(prev)
}

// mergeNext absorbs the free block following off into it when the two
// are byte-adjacent. Called with the lock held; never locks itself.
func (a *Allocator) mergeNext(off int) {
	h := a.readHeader(off)
	if h.next == noBlock || off+h.size != h.next {
		return
	}
	succ := a.readHeader(h.next)
	a.writeFree(off, h.size+succ.size, succ.next)
}

// Bytes returns the payload of the allocation at off as a slice into
// the arena. Its length is the block's usable size, which may exceed
// the requested size due to rounding. The slice is only valid until
// the allocation is freed.
func (a *Allocator) Bytes(off int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkOpen()
	block := a.blockOffset(off)
	h := a.readHeader(block)
	if !h.allocated {
		panic("malloc: offset not allocated")
	}
	end := block + h.size
	return a.buf[off:end:end]
}

// Size returns the usable payload size of the allocation at off.
func (a *Allocator) Size(off int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkOpen()
	block := a.blockOffset(off)
	h := a.readHeader(block)
	if !h.allocated {
		panic("malloc: offset not allocated")
	}
	return h.size - HeaderSize
}

func (a *Allocator) checkOpen() {
	if a.buf == nil {
		panic("malloc: use after Close")
	}
}

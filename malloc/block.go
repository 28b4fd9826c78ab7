package malloc

import "encoding/binary"

// Block header layout, little endian:
//
//	word 0: total block size in bytes, header included
//	word 1: next free block's arena offset while the block is free
//	        (freeListEnd when it is the last free block), or
//	        allocatedTag while the block is allocated
//
// Valid arena offsets are small non-negative integers, so both
// sentinels are unmistakable for a free-list link.
const (
	allocatedTag = 0xBADC0DEBADC0DE0
	freeListEnd  = ^uint64(0)
)

// noBlock marks the absence of a block in decoded form.
const noBlock = -1

// blockHeader is the decoded form of a block header. It is produced by
// readHeader and written back with writeFree/writeAllocated; header
// bytes are never reinterpreted in place.
type blockHeader struct {
	size      int // total bytes including the header
	allocated bool
	next      int // next free block offset, noBlock if last; free blocks only
}

func (a *Allocator) readHeader(off int) blockHeader {
	size := binary.LittleEndian.Uint64(a.buf[off:])
	word := binary.LittleEndian.Uint64(a.buf[off+8:])
	h := blockHeader{size: int(size), next: noBlock}
	switch word {
	case allocatedTag:
		h.allocated = true
	case freeListEnd:
	default:
		h.next = int(word)
	}
	return h
}

func (a *Allocator) writeFree(off, size, next int) {
	binary.LittleEndian.PutUint64(a.buf[off:], uint64(size))
	if next == noBlock {
		binary.LittleEndian.PutUint64(a.buf[off+8:], freeListEnd)
	} else {
		binary.LittleEndian.PutUint64(a.buf[off+8:], uint64(next))
	}
}

func (a *Allocator) writeAllocated(off, size int) {
	binary.LittleEndian.PutUint64(a.buf[off:], uint64(size))
	binary.LittleEndian.PutUint64(a.buf[off+8:], allocatedTag)
}

// setNext relinks the free list: prev's next link (or the list head
// when prev is noBlock) is pointed at next.
func (a *Allocator) setNext(prev, next int) {
	if prev == noBlock {
		a.head = next
		return
	}
	a.writeFree(prev, a.readHeader(prev).size, next)
}

// blockOffset maps a payload offset back to its block offset, checking
// bounds and alignment. The caller still has to verify the block is
// allocated via the header tag.
func (a *Allocator) blockOffset(payload int) int {
	block := payload - HeaderSize
	if block < 0 || block >= len(a.buf) || block%HeaderSize != 0 {
		panic("malloc: offset not in arena")
	}
	return block
}

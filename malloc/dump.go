package malloc

import (
	"fmt"
	"io"
	"strconv"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// ArenaStats is a point-in-time summary of the arena. All byte counts
// include block headers.
type ArenaStats struct {
	TotalSize        int
	AllocatedBytes   int
	FreeBytes        int
	Allocations      int
	FreeBlocks       int
	LargestFreeBlock int
}

// Stats walks the arena and returns a consistent snapshot.
func (a *Allocator) Stats() ArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkOpen()
	return a.statsLocked()
}

func (a *Allocator) statsLocked() ArenaStats {
	s := ArenaStats{TotalSize: len(a.buf)}
	for off := 0; off < len(a.buf); {
		h := a.readHeader(off)
		if h.allocated {
			s.AllocatedBytes += h.size
			s.Allocations++
		} else {
			s.FreeBytes += h.size
			s.FreeBlocks++
			if h.size > s.LargestFreeBlock {
				s.LargestFreeBlock = h.size
			}
		}
		off += h.size
	}
	return s
}

// DumpTo writes a textual report of the arena to w: every block in
// address order, then the free list in link order. Offsets are relative
// to the arena start.
func (a *Allocator) DumpTo(w io.Writer) error {
	buf := a.dump(mcache.Malloc(0, 512))
	_, err := w.Write(buf)
	mcache.Free(buf)
	return err
}

// String returns the same report DumpTo writes.
func (a *Allocator) String() string {
	buf := a.dump(mcache.Malloc(0, 512))
	s := string(buf)
	mcache.Free(buf)
	return s
}

func (a *Allocator) dump(buf []byte) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkOpen()
	return a.appendDumpLocked(buf)
}

func (a *Allocator) appendDumpLocked(buf []byte) []byte {
	buf = append(buf, "All blocks:\n"...)
	for off := 0; off < len(a.buf); {
		h := a.readHeader(off)
		buf = append(buf, "  Block starting at "...)
		buf = strconv.AppendInt(buf, int64(off), 10)
		buf = append(buf, ", size "...)
		buf = strconv.AppendInt(buf, int64(h.size), 10)
		if h.allocated {
			buf = append(buf, " (in use)\n"...)
		} else {
			buf = append(buf, " (free)\n"...)
		}
		off += h.size
	}

	buf = append(buf, "Free block list:\n"...)
	for off := a.head; off != noBlock; off = a.readHeader(off).next {
		h := a.readHeader(off)
		buf = append(buf, "  Free block starting at "...)
		buf = strconv.AppendInt(buf, int64(off), 10)
		buf = append(buf, ", size "...)
		buf = strconv.AppendInt(buf, int64(h.size), 10)
		buf = append(buf, '\n')
	}
	return buf
}

// PrintDetailedMap writes the arena's block map into an open JSON
// object: summary counters plus a Suballocations array with one entry
// per block in address order.
func (a *Allocator) PrintDetailedMap(obj *jwriter.ObjectState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkOpen()

	s := a.statsLocked()
	obj.Name("TotalBytes").Int(s.TotalSize)
	obj.Name("UnusedBytes").Int(s.FreeBytes)
	obj.Name("Allocations").Int(s.Allocations)
	obj.Name("UnusedRanges").Int(s.FreeBlocks)

	arr := obj.Name("Suballocations").Array()
	for off := 0; off < len(a.buf); {
		h := a.readHeader(off)
		blockObj := arr.Object()
		blockObj.Name("Offset").Int(off)
		if h.allocated {
			blockObj.Name("Type").String("ALLOCATED")
		} else {
			blockObj.Name("Type").String("FREE")
		}
		blockObj.Name("Size").Int(h.size)
		blockObj.End()
		off += h.size
	}
	arr.End()
}

// DetailedMapJSON returns the PrintDetailedMap output as a standalone
// JSON document.
func (a *Allocator) DetailedMapJSON() []byte {
	w := jwriter.NewWriter()
	obj := w.Object()
	a.PrintDetailedMap(&obj)
	obj.End()
	return w.Bytes()
}

// Validate checks every structural invariant of the arena and returns
// the first violation found:
//
//   - walking blocks by size from offset 0 covers the arena exactly
//   - every block size is a positive multiple of HeaderSize
//   - the free list visits strictly increasing offsets and exactly the
//     blocks whose header tag is free
//   - no two consecutive free-list blocks are byte-adjacent
//
// It is meant for tests and debugging; a healthy allocator can never
// fail it.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkOpen()

	var freeBlocks []int
	for off := 0; off < len(a.buf); {
		h := a.readHeader(off)
		if h.size < HeaderSize || h.size%HeaderSize != 0 {
			return fmt.Errorf("malloc: block at %d has invalid size %d", off, h.size)
		}
		if off+h.size > len(a.buf) {
			return fmt.Errorf("malloc: block at %d (size %d) overruns the arena", off, h.size)
		}
		if !h.allocated {
			freeBlocks = append(freeBlocks, off)
		}
		off += h.size
	}

	i := 0
	prev := noBlock
	for off := a.head; off != noBlock; {
		if i >= len(freeBlocks) {
			return fmt.Errorf("malloc: free list longer than the set of free blocks")
		}
		if off != freeBlocks[i] {
			return fmt.Errorf("malloc: free list visits %d, expected free block at %d", off, freeBlocks[i])
		}
		if prev != noBlock && off <= prev {
			return fmt.Errorf("malloc: free list not in ascending order at %d", off)
		}
		h := a.readHeader(off)
		if h.next != noBlock && off+h.size == h.next {
			return fmt.Errorf("malloc: adjacent free blocks at %d and %d not coalesced", off, h.next)
		}
		prev = off
		off = h.next
		i++
	}
	if i != len(freeBlocks) {
		return fmt.Errorf("malloc: %d free blocks not reachable from the free list", len(freeBlocks)-i)
	}
	return nil
}

package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAllocator(t *testing.T) {
	tests := []struct {
		size    int
		wantErr bool
	}{
		{0, true},
		{8, true},
		{15, true},
		{16, false},
		{100, true}, // not a multiple of 16
		{128, false},
		{1 << 20, false},
	}
	for _, tt := range tests {
		a, err := NewAllocator(make([]byte, tt.size))
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidArenaSize, "size=%d", tt.size)
		} else {
			require.NoError(t, err, "size=%d", tt.size)
			assert.Equal(t, tt.size, a.TotalSize())
			assert.NoError(t, a.Validate())
		}
	}
}

func TestNewInstallsOneFreeBlock(t *testing.T) {
	a, err := New(256)
	require.NoError(t, err)
	s := a.Stats()
	assert.Equal(t, 256, s.TotalSize)
	assert.Equal(t, 256, s.FreeBytes)
	assert.Equal(t, 1, s.FreeBlocks)
	assert.Equal(t, 256, s.LargestFreeBlock)
	assert.Equal(t, 0, s.Allocations)
	assert.NoError(t, a.Close())
}

func TestNewRejectsBadSizes(t *testing.T) {
	_, err := New(24)
	assert.ErrorIs(t, err, ErrInvalidArenaSize)
	_, err = NewMmap(-16)
	assert.ErrorIs(t, err, ErrInvalidArenaSize)
}

func TestNewMmap(t *testing.T) {
	a, err := NewMmap(1 << 16)
	require.NoError(t, err)

	off, err := a.Alloc(1000)
	require.NoError(t, err)
	p := a.Bytes(off)
	for i := range p {
		p[i] = byte(i)
	}
	a.Free(off)

	require.NoError(t, a.Validate())
	require.NoError(t, a.Close())
	assert.NoError(t, a.Close()) // idempotent
}

func TestTightArena(t *testing.T) {
	// 128-byte arena: Alloc(10) consumes 32 bytes (16 header + 16
	// rounded payload) and leaves a single 96-byte free block.
	a, err := NewAllocator(make([]byte, 128))
	require.NoError(t, err)

	off, err := a.Alloc(10)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize, off)
	assert.Equal(t, 16, a.Size(off))

	s := a.Stats()
	assert.Equal(t, 32, s.AllocatedBytes)
	assert.Equal(t, 96, s.FreeBytes)
	assert.Equal(t, 1, s.FreeBlocks)

	// 100 bytes needs 128 including the header; the remaining free
	// block only has 96.
	_, err = a.Alloc(100)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	// Failure must leave the arena untouched.
	assert.Equal(t, s, a.Stats())
	require.NoError(t, a.Validate())

	a.Free(off)
	s = a.Stats()
	assert.Equal(t, 1, s.FreeBlocks)
	assert.Equal(t, 128, s.LargestFreeBlock)
	require.NoError(t, a.Validate())
}

func TestAllocZero(t *testing.T) {
	a, err := NewAllocator(make([]byte, 64))
	require.NoError(t, err)

	// A zero-size request still occupies one header-sized block.
	off, err := a.Alloc(0)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Size(off))
	assert.Len(t, a.Bytes(off), 0)
	assert.Equal(t, 16, a.Stats().AllocatedBytes)

	a.Free(off)
	assert.Equal(t, 64, a.Stats().FreeBytes)
}

func TestAllocNegative(t *testing.T) {
	a, err := NewAllocator(make([]byte, 64))
	require.NoError(t, err)
	_, err = a.Alloc(-1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestUseAfterClose(t *testing.T) {
	a, err := New(64)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	assert.Panics(t, func() { _, _ = a.Alloc(16) })
	assert.Panics(t, func() { a.Free(16) })
	assert.Panics(t, func() { a.Stats() })
}

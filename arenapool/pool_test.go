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

package arenapool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/memarena/malloc"
)

func TestEmptyPool(t *testing.T) {
	p := New()
	_, err := p.Alloc(16)
	assert.ErrorIs(t, err, malloc.ErrOutOfMemory)
	assert.Equal(t, 0, p.Stats().Arenas)
}

func TestGrowValidation(t *testing.T) {
	p := New()
	assert.ErrorIs(t, p.Grow(24), malloc.ErrInvalidArenaSize)
	assert.ErrorIs(t, p.Grow(0), malloc.ErrInvalidArenaSize)
	require.NoError(t, p.Grow(128))
	assert.Equal(t, 1, p.Stats().Arenas)
}

func TestAllocSpillsToSecondArena(t *testing.T) {
	p, err := NewWithSize(128)
	require.NoError(t, err)

	// Fill the first arena completely.
	h1, err := p.Alloc(112)
	require.NoError(t, err)
	_, err = p.Alloc(16)
	assert.ErrorIs(t, err, malloc.ErrOutOfMemory)

	// A second arena picks up the overflow without touching the first.
	require.NoError(t, p.Grow(128))
	h2, err := p.Alloc(16)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	s := p.Stats()
	assert.Equal(t, 2, s.Arenas)
	assert.Equal(t, 256, s.TotalSize)
	assert.Equal(t, 2, s.Allocations)

	p.Free(h1)
	p.Free(h2)
	s = p.Stats()
	assert.Equal(t, 0, s.Allocations)
	assert.Equal(t, 256, s.FreeBytes)
}

func TestBytesRoundTrip(t *testing.T) {
	p, err := NewWithSize(256)
	require.NoError(t, err)

	h, err := p.Alloc(20)
	require.NoError(t, err)
	buf := p.Bytes(h)
	require.Len(t, buf, 32) // rounded up
	copy(buf, "payload")
	assert.Equal(t, "payload", string(p.Bytes(h)[:7]))
	p.Free(h)
}

func TestNullHandle(t *testing.T) {
	p := New()
	var h Handle
	assert.True(t, h.IsNull())
	p.Free(h) // no-op
}

func TestForeignHandlePanics(t *testing.T) {
	p, err := NewWithSize(128)
	require.NoError(t, err)
	assert.Panics(t, func() { p.Free(Handle{arena: 3, offset: 16}) })
}

func TestConcurrentPool(t *testing.T) {
	p, err := NewWithSize(1 << 12)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				h, err := p.Alloc(48)
				if err != nil {
					// Grow races are fine; capacity arrives eventually.
					_ = p.Grow(1 << 12)
					continue
				}
				p.Bytes(h)[0] = 1
				p.Free(h)
			}
		}()
	}
	wg.Wait()

	s := p.Stats()
	assert.Equal(t, 0, s.Allocations)
	assert.Equal(t, s.TotalSize, s.FreeBytes)
}

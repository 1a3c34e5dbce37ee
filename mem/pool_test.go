package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocFirstFit(t *testing.T) {
	p := New("test", 256, 16)
	a, ok := p.Alloc(10, 0)
	require.True(t, ok)
	assert.Equal(t, 0, a)
	b, ok := p.Alloc(16, 0)
	require.True(t, ok)
	assert.Equal(t, 12, b, "sizes round up to the word size")

	require.NoError(t, p.Free(a))
	c, ok := p.Alloc(8, 0)
	require.True(t, ok)
	assert.Equal(t, 0, c, "first fit reuses the lowest hole")

	s := p.Stat()
	assert.Equal(t, 2, s.UsedBlocks)
	assert.Equal(t, 24, s.TotalUsed)
	assert.Equal(t, 256-24, s.TotalFree)
}

func TestAllocAlignment(t *testing.T) {
	p := New("test", 256, 16)
	_, ok := p.Alloc(4, 0)
	require.True(t, ok)
	off, ok := p.Alloc(32, 64)
	require.True(t, ok)
	assert.Equal(t, 64, off)
	assert.Equal(t, 2, p.Stat().FreeBlocks, "alignment padding stays free")

	_, ok = p.Alloc(4, 3)
	assert.False(t, ok)
}

func TestFreeCoalesces(t *testing.T) {
	p := New("test", 64, 8)
	var offs []int
	for i := 0; i < 4; i++ {
		off, ok := p.Alloc(16, 0)
		require.True(t, ok)
		offs = append(offs, off)
	}
	_, ok := p.Alloc(4, 0)
	assert.False(t, ok, "arena exhausted")

	require.NoError(t, p.Free(offs[1]))
	require.NoError(t, p.Free(offs[3]))
	require.NoError(t, p.Free(offs[2]))
	s := p.Stat()
	assert.Equal(t, 1, s.FreeBlocks)
	assert.Equal(t, 48, s.LargestFree)

	require.NoError(t, p.Free(offs[0]))
	assert.Equal(t, Stat{FreeBlocks: 1, TotalFree: 64, LargestFree: 64}, p.Stat())
}

func TestInvalidFree(t *testing.T) {
	p := New("test", 64, 8)
	off, ok := p.Alloc(8, 0)
	require.True(t, ok)
	assert.ErrorIs(t, p.Free(off+4), ErrInvalidFree)
	require.NoError(t, p.Free(off))
	assert.ErrorIs(t, p.Free(off), ErrInvalidFree)
}

func TestEntryTableExhaustion(t *testing.T) {
	p := New("test", 1024, 2)
	_, ok := p.Alloc(8, 0)
	require.True(t, ok)
	_, ok = p.Alloc(8, 0)
	assert.True(t, ok, "last block takes the whole tail")
	_, ok = p.Alloc(8, 0)
	assert.False(t, ok)
}

func TestBytes(t *testing.T) {
	p := New("test", 64, 8)
	off, ok := p.Alloc(8, 0)
	require.True(t, ok)
	b := p.Bytes(off, 8)
	b[0] = 0x5a
	assert.Equal(t, byte(0x5a), p.Bytes(off, 1)[0])
	n, ok := p.BlockSize(off)
	assert.True(t, ok)
	assert.Equal(t, 8, n)
}

package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlabStaleHandle(t *testing.T) {
	s := newSlab[int]("TEST", 0x1234, 2)

	h1, v1, ok := s.alloc()
	require.True(t, ok)
	*v1 = 7
	h2, _, ok := s.alloc()
	require.True(t, ok)
	_, _, ok = s.alloc()
	require.False(t, ok)

	got, ok := s.get(h1)
	require.True(t, ok)
	require.Equal(t, 7, *got)

	s.release(h1)
	_, ok = s.get(h1)
	require.False(t, ok)

	h3, v3, ok := s.alloc()
	require.True(t, ok)
	require.Zero(t, *v3)
	require.Equal(t, h1&0xffff, h3&0xffff)
	require.NotEqual(t, h1, h3)
	_, ok = s.get(h1)
	require.False(t, ok)

	_, ok = s.get(0)
	require.False(t, ok)
	_, ok = s.get(h2 + 5)
	require.False(t, ok)

	var n int
	s.each(func(*int) { n++ })
	require.Equal(t, 2, n)
}

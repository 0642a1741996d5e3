package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAlloc(t *testing.T) {
	a := NewArena(256)

	first, err := a.Alloc(16, 8)
	require.NoError(t, err)
	assert.Len(t, first, 16)
	assert.EqualValues(t, 16, a.Used())

	second, err := a.Alloc(8, 16)
	require.NoError(t, err)
	assert.Len(t, second, 8)
	// offset 16 is already 16-byte aligned, so the second allocation needs
	// no padding and ends at 24.
	assert.EqualValues(t, 24, a.Used())
}

func TestArenaAllocExhausted(t *testing.T) {
	a := NewArena(8)
	_, err := a.Alloc(16, 8)
	assert.Error(t, err)
}

func TestAlignUp(t *testing.T) {
	assert.EqualValues(t, 0, AlignUp(0, 64))
	assert.EqualValues(t, 64, AlignUp(1, 64))
	assert.EqualValues(t, 64, AlignUp(64, 64))
	assert.EqualValues(t, 128, AlignUp(65, 64))
}

func TestArenaCacheLineIsolation(t *testing.T) {
	// Simulate two groups' worth of operator storage, each rounded up to
	// a cache line so neighboring groups never share a line.
	a := NewArena(4 * CacheLineSize)

	groupA, err := a.Alloc(CacheLineSize, CacheLineSize)
	require.NoError(t, err)
	groupB, err := a.Alloc(CacheLineSize, CacheLineSize)
	require.NoError(t, err)

	assert.EqualValues(t, 2*CacheLineSize, a.Used())
	assert.NotSame(t, &groupA[0], &groupB[0])
}

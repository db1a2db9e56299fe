package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocator_RequiresUnifiedDevice(t *testing.T) {
	_, err := NewUnifiedAllocator(false)
	assert.ErrorIs(t, err, ErrNotUnified)
}

func TestAllocator_AccountingScenario(t *testing.T) {
	a, err := NewUnifiedAllocator(true)
	require.NoError(t, err)

	r1, err := a.Alloc(4096, 16)
	require.NoError(t, err)
	r2, err := a.Alloc(8192, 16)
	require.NoError(t, err)
	require.NoError(t, a.Free(r1))

	s := a.Stats()
	assert.Equal(t, uint64(8192), s.AllocatedBytes)
	assert.Equal(t, uint64(12288), s.PeakBytes)
	assert.Equal(t, uint64(2), s.AllocCount)
	assert.Equal(t, uint64(1), s.FreeCount)
	assert.Equal(t, uint64(1), s.ActiveRegions)
	assert.True(t, r2.IsUnified())
}

func TestAllocator_AlignsAndNeverReusesAddresses(t *testing.T) {
	a, err := NewUnifiedAllocator(true)
	require.NoError(t, err)

	r1, err := a.Alloc(100, 64)
	require.NoError(t, err)
	assert.Zero(t, r1.Ptr%64)

	require.NoError(t, a.Free(r1))
	r2, err := a.Alloc(100, 64)
	require.NoError(t, err)
	assert.Zero(t, r2.Ptr%64)
	assert.Greater(t, r2.Ptr, r1.Ptr)
}

func TestAllocator_RejectsBadAlignment(t *testing.T) {
	a, err := NewUnifiedAllocator(true)
	require.NoError(t, err)

	for _, align := range []uint64{0, 3, 12, 100} {
		_, err := a.Alloc(64, align)
		assert.True(t, IsInvalidAlignment(err), "align=%d", align)
	}
}

func TestAllocator_DoubleFreeAndUnknownFreeFail(t *testing.T) {
	a, err := NewUnifiedAllocator(true)
	require.NoError(t, err)

	r, err := a.Alloc(64, 8)
	require.NoError(t, err)
	require.NoError(t, a.Free(r))

	assert.True(t, IsNullPointer(a.Free(r)))
	assert.True(t, IsNullPointer(a.Free(Region{Ptr: 0xdead})))
}

func TestAllocator_CapacityBound(t *testing.T) {
	a, err := NewUnifiedAllocator(true, WithCapacity(1024))
	require.NoError(t, err)

	r, err := a.Alloc(1024, 8)
	require.NoError(t, err)
	_, err = a.Alloc(1, 8)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	// Freeing releases the budget.
	require.NoError(t, a.Free(r))
	_, err = a.Alloc(512, 8)
	assert.NoError(t, err)
}

func TestTile_RoundTripAllPresets(t *testing.T) {
	const rowWidth = 64
	for _, cfg := range []TileConfig{Tile8x8, Tile16x16, Tile32x32} {
		seen := make(map[uint64]bool)
		for i := uint64(0); i < rowWidth*cfg.Height*2; i++ {
			tiled := cfg.LinearToTiled(i, rowWidth)
			assert.Equal(t, i, cfg.TiledToLinear(tiled, rowWidth),
				"cfg=%dx%d i=%d", cfg.Width, cfg.Height, i)
			assert.False(t, seen[tiled], "collision at %d", tiled)
			seen[tiled] = true
		}
	}
}

func TestTile_KeepsTileCellsContiguous(t *testing.T) {
	// The first 8x8 tile of a 64-wide buffer occupies tiled slots
	// 0..63 regardless of which rows its cells come from.
	cfg := Tile8x8
	for row := uint64(0); row < 8; row++ {
		for col := uint64(0); col < 8; col++ {
			tiled := cfg.LinearToTiled(row*64+col, 64)
			assert.Less(t, tiled, uint64(64))
		}
	}
}

func TestPrefetch_NonePolicyDropsHints(t *testing.T) {
	m := NewPrefetchManager(PrefetchNone)
	m.Hint(Region{Ptr: 0x10000}, LocDevice)
	s := m.Stats()
	assert.Zero(t, s.Issued)
	assert.Equal(t, uint64(1), s.Dropped)
}

func TestPrefetch_AdaptiveStopsHintingHotRegions(t *testing.T) {
	m := NewPrefetchManager(PrefetchAdaptive)
	r := Region{Ptr: 0x10000}

	for i := 0; i < 10; i++ {
		m.Hint(r, LocDevice)
	}
	s := m.Stats()
	assert.Equal(t, uint64(adaptiveHotAt), s.Issued)
	assert.Equal(t, uint64(10-adaptiveHotAt), s.Dropped)

	// Host-side hints still go out for a device-hot region.
	m.Hint(r, LocHost)
	assert.Equal(t, uint64(adaptiveHotAt+1), m.Stats().Issued)
}

package profile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftvm/weft/internal/backend"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "profile.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, s2.Close())
}

func TestMeans_EmptyStoreReportsUnmeasured(t *testing.T) {
	s := openTestStore(t)
	cpu, gpu, err := s.Means(context.Background(), "Unknown/8")
	require.NoError(t, err)
	assert.Zero(t, cpu)
	assert.Zero(t, gpu)
}

func TestMeans_WeightsByPairs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := Key(backend.DeviceInfo{Vendor: backend.VendorAMDDesktop, ComputeUnits: 32})

	// 100 pairs at 10 ns and 300 pairs at 30 ns: mean is 25 ns.
	require.NoError(t, s.RecordSample(ctx, key, backend.KindGPU, 10, 100))
	require.NoError(t, s.RecordSample(ctx, key, backend.KindGPU, 30, 300))
	require.NoError(t, s.RecordSample(ctx, key, backend.KindCPU, 50, 100))

	cpu, gpu, err := s.Means(ctx, key)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, gpu, 1e-9)
	assert.InDelta(t, 50.0, cpu, 1e-9)

	n, err := s.SampleCount(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestMeans_IsolatesDevices(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordSample(ctx, "A/1", backend.KindGPU, 10, 10))
	require.NoError(t, s.RecordSample(ctx, "B/2", backend.KindGPU, 99, 10))

	_, gpu, err := s.Means(ctx, "A/1")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, gpu, 1e-9)
}

func TestRecordSample_IgnoresEmptySamples(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordSample(ctx, "A/1", backend.KindCPU, 0, 100))
	require.NoError(t, s.RecordSample(ctx, "A/1", backend.KindCPU, 10, 0))

	n, err := s.SampleCount(ctx, "A/1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKey_FoldsVendorAndComputeUnits(t *testing.T) {
	k := Key(backend.DeviceInfo{Vendor: backend.VendorAppleSilicon, ComputeUnits: 10})
	assert.Equal(t, "AppleSilicon/10", k)
}

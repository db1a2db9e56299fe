package backend_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftvm/weft/internal/backend"
	"github.com/weftvm/weft/internal/backend/backendtest"
	"github.com/weftvm/weft/internal/core"
	"github.com/weftvm/weft/internal/engine"
	"github.com/weftvm/weft/internal/ir"
)

func addProgram(t *testing.T, op core.Op) *ir.Program {
	t.Helper()
	net := core.NewNet()
	n := net.AllocNode(core.Node{
		P1:    core.NewPort(core.Num, 3),
		P2:    net.Root(),
		Label: core.OpLabel(op),
	})
	batch := []core.Redex{{
		A: core.NewPort(core.Op2, n),
		B: core.NewPort(core.Num, 5),
	}}
	p, err := ir.Lower(net, core.NewBook(), batch)
	require.NoError(t, err)
	return p
}

func TestSelect_FallsBackToCPU(t *testing.T) {
	dev, err := backend.Select(slog.Default())
	require.NoError(t, err)
	assert.Equal(t, backend.KindCPU, dev.Kind())
	assert.Equal(t, "cpu", dev.Name())
	assert.True(t, dev.Describe().UnifiedMemory)
}

func TestSelect_WithoutCPUFallbackFails(t *testing.T) {
	_, err := backend.Select(slog.Default(), backend.WithoutCPUFallback())
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrNoBackendAvailable)
}

func TestSelect_PrefersInjectedDevice(t *testing.T) {
	fake := backendtest.NewFakeGPU(backend.DeviceInfo{
		Vendor:       backend.VendorAppleSilicon,
		ComputeUnits: 8,
	})
	dev, err := backend.Select(slog.Default(), backend.WithDevice(fake))
	require.NoError(t, err)
	assert.Equal(t, backend.KindGPU, dev.Kind())
	assert.Equal(t, backend.VendorAppleSilicon, dev.Describe().Vendor)
	assert.True(t, dev.Describe().Vendor.Mobile())
}

func TestCPU_CompileRejectsUnknownOperator(t *testing.T) {
	p := &ir.Program{}
	p.Push(ir.Instr{
		Op:    ir.OpInteract,
		Rule:  engine.RuleOper,
		Label: core.Label(200),
		A:     core.NewPort(core.Op2, 0),
		B:     core.NewPort(core.Num, 1),
	})
	_, err := backend.NewCPU().Compile(p)
	require.Error(t, err)
	assert.True(t, backend.IsCompileFailed(err))
}

func TestCPU_KernelIDIsStructural(t *testing.T) {
	cpu := backend.NewCPU()
	k1, err := cpu.Compile(addProgram(t, core.OpAdd))
	require.NoError(t, err)
	k2, err := cpu.Compile(addProgram(t, core.OpAdd))
	require.NoError(t, err)
	k3, err := cpu.Compile(addProgram(t, core.OpMul))
	require.NoError(t, err)

	assert.Equal(t, k1.ID, k2.ID)
	assert.NotEqual(t, k1.ID, k3.ID)
	assert.Equal(t, uint32(1), k1.LaunchX)
}

func TestCPU_ExecuteAppliesBatch(t *testing.T) {
	net := core.NewNet()
	n := net.AllocNode(core.Node{
		P1:    core.NewPort(core.Num, 3),
		P2:    net.Root(),
		Label: core.OpLabel(core.OpAdd),
	})
	batch := []core.Redex{{
		A: core.NewPort(core.Op2, n),
		B: core.NewPort(core.Num, 5),
	}}
	rw := engine.NewRewriter(net, core.NewBook())

	cpu := backend.NewCPU()
	k, err := cpu.Compile(addProgram(t, core.OpAdd))
	require.NoError(t, err)
	require.NoError(t, cpu.Execute(context.Background(), k, rw, batch))

	assert.Equal(t, core.NewPort(core.Num, 8), net.Resolve(net.Root()))
}

func TestCPU_ExecuteSurfacesGraphFaultUnwrapped(t *testing.T) {
	net := core.NewNet()
	batch := []core.Redex{{
		A: core.NewPort(core.Num, 1),
		B: core.NewPort(core.Num, 2),
	}}
	rw := engine.NewRewriter(net, core.NewBook())

	err := backend.NewCPU().Execute(context.Background(), nil, rw, batch)
	require.Error(t, err)
	assert.True(t, engine.IsMalformedNet(err))
	assert.False(t, backend.IsExecuteFailed(err))
}

func TestCPU_ExecuteHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	net := core.NewNet()
	n := net.AllocNode(core.Node{
		P1:    core.NewPort(core.Num, 3),
		P2:    net.Root(),
		Label: core.OpLabel(core.OpAdd),
	})
	batch := []core.Redex{{
		A: core.NewPort(core.Op2, n),
		B: core.NewPort(core.Num, 5),
	}}
	rw := engine.NewRewriter(net, core.NewBook())

	err := backend.NewCPU().Execute(ctx, nil, rw, batch)
	require.Error(t, err)
	assert.True(t, backend.IsExecuteFailed(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := backend.NewCache(2)
	c.Put("a", &backend.CompiledKernel{ID: 1})
	c.Put("b", &backend.CompiledKernel{ID: 2})

	_, ok := c.Get("a") // refresh a; b becomes oldest
	require.True(t, ok)

	c.Put("c", &backend.CompiledKernel{ID: 3})
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCache_DefaultCapacity(t *testing.T) {
	c := backend.NewCache(0)
	for i := 0; i < backend.DefaultCacheCap+10; i++ {
		c.Put(string(rune('a'+i%26))+"-"+string(rune('0'+i/26)), &backend.CompiledKernel{ID: uint64(i)})
	}
	assert.LessOrEqual(t, c.Len(), backend.DefaultCacheCap)
}

func TestCache_GetOrCompileCompilesOnce(t *testing.T) {
	fake := backendtest.NewFakeGPU(backend.DeviceInfo{})
	c := backend.NewCache(8)

	p := addProgram(t, core.OpAdd)
	k1, err := c.GetOrCompile(p, fake)
	require.NoError(t, err)
	k2, err := c.GetOrCompile(addProgram(t, core.OpAdd), fake)
	require.NoError(t, err)

	assert.Same(t, k1, k2)
	assert.Equal(t, 1, fake.Compiles)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCache_GetOrCompilePropagatesCompileError(t *testing.T) {
	fake := backendtest.NewFakeGPU(backend.DeviceInfo{})
	fake.CompileErr = errors.New("register spill")
	c := backend.NewCache(8)

	_, err := c.GetOrCompile(addProgram(t, core.OpAdd), fake)
	require.Error(t, err)
	assert.True(t, backend.IsCompileFailed(err))
	assert.Equal(t, 0, c.Len())
}

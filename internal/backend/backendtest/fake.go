// Package backendtest provides a scriptable GPU device for tests.
package backendtest

import (
	"context"
	"errors"

	"github.com/weftvm/weft/internal/backend"
	"github.com/weftvm/weft/internal/core"
	"github.com/weftvm/weft/internal/engine"
	"github.com/weftvm/weft/internal/ir"
)

// FakeGPU reports as a GPU while executing batches with the host
// rewrite rules. Failures are scripted through the public fields.
type FakeGPU struct {
	Info backend.DeviceInfo

	// CompileErr, when set, fails every Compile call.
	CompileErr error
	// ExecuteFailures fails that many Execute calls before
	// succeeding.
	ExecuteFailures int

	Compiles int
	Executes int

	cpu *backend.CPU
}

// NewFakeGPU returns a fake reporting info, defaulting to an unknown
// discrete GPU when info is zero.
func NewFakeGPU(info backend.DeviceInfo) *FakeGPU {
	if info == (backend.DeviceInfo{}) {
		info = backend.DeviceInfo{Vendor: backend.VendorUnknown, ComputeUnits: 16}
	}
	return &FakeGPU{Info: info, cpu: backend.NewCPU()}
}

// Compile counts the call, then fails with CompileErr or delegates to
// the host compiler.
func (f *FakeGPU) Compile(p *ir.Program) (*backend.CompiledKernel, error) {
	f.Compiles++
	if f.CompileErr != nil {
		return nil, &backend.CompileError{Device: f.Name(), Reason: f.CompileErr.Error()}
	}
	return f.cpu.Compile(p)
}

// Execute counts the call, consumes a scripted failure if one remains,
// and otherwise applies the batch with the host rules.
func (f *FakeGPU) Execute(ctx context.Context, k *backend.CompiledKernel, rw *engine.Rewriter, batch []core.Redex) error {
	f.Executes++
	if f.ExecuteFailures > 0 {
		f.ExecuteFailures--
		return &backend.ExecuteError{Device: f.Name(), Err: errors.New("scripted device loss")}
	}
	return f.cpu.Execute(ctx, k, rw, batch)
}

// Describe reports the configured info.
func (f *FakeGPU) Describe() backend.DeviceInfo { return f.Info }

// Kind reports KindGPU.
func (f *FakeGPU) Kind() backend.Kind { return backend.KindGPU }

// Name returns "fake-gpu".
func (f *FakeGPU) Name() string { return "fake-gpu" }

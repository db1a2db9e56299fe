// Package backend abstracts the compute devices rewrite batches run
// on. Exactly one device is active per runtime instance, chosen at
// construction by probing a fixed preference order and falling back to
// the CPU. Concrete GPU kernel emission (SPIR-V, MSL, PTX) sits behind
// this boundary and is not part of the runtime.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/weftvm/weft/internal/core"
	"github.com/weftvm/weft/internal/engine"
	"github.com/weftvm/weft/internal/ir"
)

// Vendor identifies a device family, consumed by the scheduler to seed
// its initial partition strategy.
type Vendor uint8

const (
	VendorUnknown Vendor = iota
	VendorNvidiaDesktop
	VendorQualcommAdreno
	VendorARMMali
	VendorAppleSilicon
	VendorAMDDesktop
	VendorIntelXe

	vendorCount
)

var vendorNames = [vendorCount]string{
	"Unknown", "NvidiaDesktop", "QualcommAdreno", "ARMMali",
	"AppleSilicon", "AMDDesktop", "IntelXe",
}

// String returns the vendor name.
func (v Vendor) String() string {
	if int(v) < len(vendorNames) {
		return vendorNames[v]
	}
	return "Unknown"
}

// Mobile reports whether the vendor is a unified-memory mobile SoC
// family, which biases the scheduler toward the GPU earlier.
func (v Vendor) Mobile() bool {
	switch v {
	case VendorQualcommAdreno, VendorARMMali, VendorAppleSilicon:
		return true
	}
	return false
}

// Kind separates the two scheduling classes of device.
type Kind uint8

const (
	// KindCPU is the host fallback.
	KindCPU Kind = iota
	// KindGPU is any compute-API device.
	KindGPU
)

// String returns "cpu" or "gpu".
func (k Kind) String() string {
	if k == KindGPU {
		return "gpu"
	}
	return "cpu"
}

// DeviceInfo is the capability report of a device.
type DeviceInfo struct {
	Vendor            Vendor
	ComputeUnits      uint32
	SharedMemoryBytes uint64
	UnifiedMemory     bool
}

// CompiledKernel is a compiled program handle, owned by the kernel
// cache and shared read-only with the device during execution.
type CompiledKernel struct {
	ID      uint64
	LaunchX uint32
	LaunchY uint32
}

// Device is the capability interface every backend implements.
//
// Execute is the synchronization boundary: it holds device access for
// the duration of the call and returns only after every mutation of
// the batch is visible to the host. Callers must not touch the net (or
// any region the device reads) while a call is outstanding.
type Device interface {
	// Compile lowers a program into a kernel. Fails with a compile
	// error if the program cannot be lowered further, e.g. an
	// unsupported operator.
	Compile(p *ir.Program) (*CompiledKernel, error)

	// Execute applies a batch under a compiled kernel. A device error
	// surfaces as an execute error; work is never silently dropped.
	// Graph faults pass through unwrapped: they are not retryable.
	Execute(ctx context.Context, k *CompiledKernel, rw *engine.Rewriter, batch []core.Redex) error

	// Describe reports device capabilities.
	Describe() DeviceInfo

	// Kind reports the scheduling class.
	Kind() Kind

	// Name returns a short identifier, e.g. "cpu" or "vulkan".
	Name() string
}

// ErrNoBackendAvailable means every probe failed. It is fatal for the
// runtime instance only when the CPU fallback is disabled as well.
var ErrNoBackendAvailable = errors.New("no compute backend available")

// CompileError reports a program the device could not compile.
type CompileError struct {
	Device string
	Reason string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("COMPILE_FAILED: %s (device=%s)", e.Reason, e.Device)
}

// ExecuteError reports a device failure during batch execution.
type ExecuteError struct {
	Device string
	Err    error
}

// Error implements the error interface.
func (e *ExecuteError) Error() string {
	return fmt.Sprintf("EXECUTE_FAILED: %v (device=%s)", e.Err, e.Device)
}

// Unwrap exposes the underlying device error.
func (e *ExecuteError) Unwrap() error { return e.Err }

// IsCompileFailed reports whether err is a compile failure.
func IsCompileFailed(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// IsExecuteFailed reports whether err is an execute failure.
func IsExecuteFailed(err error) bool {
	var ee *ExecuteError
	return errors.As(err, &ee)
}

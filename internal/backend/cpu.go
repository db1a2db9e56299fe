package backend

import (
	"context"
	"runtime"
	"strconv"

	"github.com/weftvm/weft/internal/core"
	"github.com/weftvm/weft/internal/engine"
	"github.com/weftvm/weft/internal/ir"
)

// CPU is the host backend. It is always available and executes batches
// by applying the rewrite rules directly, one pair at a time. Compile
// only validates the program; there is no code generation.
type CPU struct{}

// NewCPU returns the host backend.
func NewCPU() *CPU { return &CPU{} }

// Compile validates the program and returns a kernel handle. The
// kernel identity is derived from the structural hash so that two
// structurally identical programs compile to the same handle.
func (c *CPU) Compile(p *ir.Program) (*CompiledKernel, error) {
	for _, in := range p.Instrs {
		if in.Op == ir.OpInteract && in.Rule == engine.RuleOper {
			if op := in.Label.Operator(); !op.Valid() {
				return nil, &CompileError{
					Device: c.Name(),
					Reason: "unsupported operator " + strconv.Itoa(int(in.Label.Operator())),
				}
			}
		}
	}
	id, err := strconv.ParseUint(ir.StructuralHash(p)[:16], 16, 64)
	if err != nil {
		return nil, &CompileError{Device: c.Name(), Reason: "bad structural hash"}
	}
	return &CompiledKernel{ID: id, LaunchX: uint32(p.Pairs), LaunchY: 1}, nil
}

// Execute applies every pair of the batch through the rewriter. Graph
// faults return unwrapped; they describe a malformed net, not a device
// failure, and must not trigger a backend retry.
func (c *CPU) Execute(ctx context.Context, _ *CompiledKernel, rw *engine.Rewriter, batch []core.Redex) error {
	for _, rx := range batch {
		if err := ctx.Err(); err != nil {
			return &ExecuteError{Device: c.Name(), Err: err}
		}
		if err := rw.Interact(rx.A, rx.B); err != nil {
			return err
		}
	}
	return nil
}

// Describe reports the host as a unified-memory device with one
// compute unit per logical CPU.
func (c *CPU) Describe() DeviceInfo {
	return DeviceInfo{
		Vendor:        VendorUnknown,
		ComputeUnits:  uint32(runtime.NumCPU()),
		UnifiedMemory: true,
	}
}

// Kind reports KindCPU.
func (c *CPU) Kind() Kind { return KindCPU }

// Name returns "cpu".
func (c *CPU) Name() string { return "cpu" }

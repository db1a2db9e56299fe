package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/weftvm/weft/internal/backend"
	"github.com/weftvm/weft/internal/core"
	"github.com/weftvm/weft/internal/engine"
	"github.com/weftvm/weft/internal/ir"
	"github.com/weftvm/weft/internal/memory"
	"github.com/weftvm/weft/internal/profile"
	"github.com/weftvm/weft/internal/sched"
)

// Result is the outcome of one evaluation session.
type Result struct {
	// Session is the session token, unique and time-ordered.
	Session string
	// State is the terminal state the session reached.
	State engine.State
	// Output is the printed normal form, empty unless State is
	// NormalForm.
	Output string
	// Rewrites counts rule applications across the session.
	Rewrites uint64
	// Steps counts iteration barriers crossed.
	Steps uint64
}

// Eval instantiates entry from book and reduces it to normal form.
//
// An iteration barrier holds between steps: the device and host parts
// of a batch both complete before the next scan begins. A device
// failure on a chunk is retried once on the host; only a second
// failure surfaces. Graph faults are terminal immediately.
func (r *Runtime) Eval(ctx context.Context, book *core.Book, entry string) (*Result, error) {
	res := &Result{Session: uuid.Must(uuid.NewV7()).String()}

	def, ok := book.Get(entry)
	if !ok {
		res.State = engine.StateFault
		return res, engine.NewUnresolvedReference(entry)
	}
	if def.Arity != 0 {
		res.State = engine.StateFault
		return res, engine.NewArityMismatch(entry, 0, int(def.Arity))
	}

	logger := r.logger.With("session", res.Session, "entry", entry)
	logger.Info("session start", "device", r.device.Name())

	net := core.NewNet()
	net.Link(net.Root(), net.Instantiate(&def.Template))
	rw := engine.NewRewriter(net, book)

	// The net heap lives in one unified region, grown by reallocation
	// when instantiation outpaces it.
	heap, err := r.alloc.Alloc(heapSize(net), 64)
	if err != nil {
		res.State = engine.StateFault
		return res, err
	}
	defer func() { r.alloc.Free(heap) }()

	start := net.Rewrites()
	for {
		if err := ctx.Err(); err != nil {
			res.State = engine.StateExhausted
			res.Rewrites = net.Rewrites() - start
			return res, err
		}

		batch := net.TakeRedexes()
		if len(batch) == 0 {
			res.State = engine.StateNormalForm
			res.Rewrites = net.Rewrites() - start
			res.Output = engine.Dump(net, book)
			logger.Info("session complete",
				"steps", res.Steps, "rewrites", res.Rewrites)
			return res, nil
		}

		if r.maxSteps > 0 && net.Rewrites()-start >= r.maxSteps {
			for _, rx := range batch {
				net.Enqueue(rx.A, rx.B)
			}
			res.State = engine.StateExhausted
			res.Rewrites = net.Rewrites() - start
			logger.Warn("step budget exhausted", "pending", net.RedexCount())
			return res, nil
		}

		if grown := heapSize(net); grown > heap.Size {
			next, err := r.alloc.Alloc(grown, 64)
			if err != nil {
				res.State = engine.StateFault
				res.Rewrites = net.Rewrites() - start
				return res, err
			}
			r.alloc.Free(heap)
			heap = next
		}

		if err := r.runStep(ctx, rw, heap, batch, book); err != nil {
			res.State = engine.StateFault
			res.Rewrites = net.Rewrites() - start
			logger.Error("session fault", "error", err)
			return res, err
		}
		res.Steps++
	}
}

func heapSize(net *core.Net) uint64 {
	return uint64(net.NodeCount()) * cellBytes
}

// runStep partitions one batch, executes both sides, and feeds the
// timings back.
func (r *Runtime) runStep(ctx context.Context, rw *engine.Rewriter, heap memory.Region, batch []core.Redex, book *core.Book) error {
	chunks := chunk(batch)
	tasks := make([]sched.Task, len(chunks))
	for i, c := range chunks {
		tasks[i] = sched.Task{ID: uint64(i), Size: uint64(len(c))}
	}

	part, err := r.sch.Plan(tasks)
	if err != nil {
		return err
	}

	// Device side first, then host. Sequential execution keeps the
	// barrier trivial; both sides finish before the caller rescans.
	for _, t := range part.GPU {
		pairs := chunks[t.ID]
		if err := r.runOnDevice(ctx, rw, heap, pairs, book); err != nil {
			return err
		}
	}
	for _, t := range part.CPU {
		pairs := chunks[t.ID]
		r.prefetch.Hint(heap, memory.LocHost)
		elapsed, err := timed(func() error {
			return r.cpu.Execute(ctx, nil, rw, pairs)
		})
		if err != nil {
			return err
		}
		r.feedback(ctx, backend.KindCPU, uint64(len(pairs)), elapsed)
	}
	return nil
}

// runOnDevice lowers, compiles, and executes one chunk on the active
// device, retrying once on the host when the device fails. The device
// reports failure before any pair is applied, so the host replay sees
// the chunk untouched.
func (r *Runtime) runOnDevice(ctx context.Context, rw *engine.Rewriter, heap memory.Region, pairs []core.Redex, book *core.Book) error {
	program, err := ir.Lower(rw.Net(), book, pairs)
	if err != nil {
		return err
	}

	kernel, err := r.cache.GetOrCompile(program, r.device)
	if err == nil {
		r.prefetch.Hint(heap, memory.LocDevice)
		var elapsed time.Duration
		elapsed, err = timed(func() error {
			return r.device.Execute(ctx, kernel, rw, pairs)
		})
		if err == nil {
			r.feedback(ctx, backend.KindGPU, uint64(len(pairs)), elapsed)
			return nil
		}
	}

	if !backend.IsCompileFailed(err) && !backend.IsExecuteFailed(err) {
		return err
	}
	r.logger.Warn("device failed, retrying chunk on host",
		"device", r.device.Name(), "error", err)

	r.prefetch.Hint(heap, memory.LocHost)
	elapsed, err := timed(func() error {
		return r.cpu.Execute(ctx, nil, rw, pairs)
	})
	if err != nil {
		return err
	}
	r.feedback(ctx, backend.KindCPU, uint64(len(pairs)), elapsed)
	return nil
}

// feedback routes one timing sample to the adaptive strategy and the
// profile store.
func (r *Runtime) feedback(ctx context.Context, kind backend.Kind, pairs uint64, elapsed time.Duration) {
	if pairs == 0 {
		return
	}
	if r.adaptive != nil {
		r.adaptive.UpdatePerf(kind, pairs, elapsed)
	}
	if r.profiles != nil {
		nsPerPair := float64(elapsed.Nanoseconds()) / float64(pairs)
		key := profile.Key(r.device.Describe())
		if err := r.profiles.RecordSample(ctx, key, kind, nsPerPair, pairs); err != nil {
			r.logger.Warn("profile write failed", "error", err)
		}
	}
}

func chunk(batch []core.Redex) [][]core.Redex {
	var chunks [][]core.Redex
	for len(batch) > taskPairs {
		chunks = append(chunks, batch[:taskPairs])
		batch = batch[taskPairs:]
	}
	if len(batch) > 0 {
		chunks = append(chunks, batch)
	}
	return chunks
}

func timed(f func() error) (time.Duration, error) {
	start := time.Now()
	err := f()
	return time.Since(start), err
}

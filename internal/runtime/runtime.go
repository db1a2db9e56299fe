// Package runtime composes the device, kernel cache, allocator,
// prefetcher, and scheduler into an evaluation session API. One
// Runtime owns one active device plus the CPU fallback; sessions are
// sequential per Runtime.
package runtime

import (
	"context"
	"log/slog"
	"os"

	"github.com/weftvm/weft/internal/backend"
	"github.com/weftvm/weft/internal/memory"
	"github.com/weftvm/weft/internal/profile"
	"github.com/weftvm/weft/internal/sched"
)

// cellBytes is the storage footprint of one node: two ports and a
// label, padded to a word boundary.
const cellBytes = 24

// taskPairs is the chunk size work is split into before partitioning.
const taskPairs = 64

// Runtime is a configured evaluator. Construct with New, evaluate with
// Eval, release with Close.
type Runtime struct {
	logger   *slog.Logger
	device   backend.Device
	cpu      backend.Device
	cache    *backend.Cache
	alloc    *memory.UnifiedAllocator
	prefetch *memory.PrefetchManager
	sch      *sched.Scheduler
	adaptive *sched.Adaptive // nil unless the adaptive strategy is active
	profiles *profile.Store  // optional
	maxSteps uint64
}

type config struct {
	logger         *slog.Logger
	device         backend.Device
	strategy       sched.Strategy
	prefetchPolicy memory.PrefetchPolicy
	cacheCap       int
	maxSteps       uint64
	profilePath    string
	capacity       uint64
}

// Option configures a Runtime.
type Option func(*config)

// WithLogger sets the structured logger. Defaults to text on stderr.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithDevice injects an already-open device, skipping the probe.
func WithDevice(d backend.Device) Option {
	return func(c *config) { c.device = d }
}

// WithStrategy overrides the partition strategy. The default adapts to
// measured timings.
func WithStrategy(s sched.Strategy) Option {
	return func(c *config) { c.strategy = s }
}

// WithPrefetchPolicy sets the residency hint policy.
func WithPrefetchPolicy(p memory.PrefetchPolicy) Option {
	return func(c *config) { c.prefetchPolicy = p }
}

// WithCacheCap bounds the kernel cache. Zero selects the default.
func WithCacheCap(n int) Option {
	return func(c *config) { c.cacheCap = n }
}

// WithMaxSteps bounds rewrites per Eval call. Zero means unbounded.
func WithMaxSteps(n uint64) Option {
	return func(c *config) { c.maxSteps = n }
}

// WithProfileStore persists batch timings at path and seeds the
// adaptive strategy from prior runs.
func WithProfileStore(path string) Option {
	return func(c *config) { c.profilePath = path }
}

// WithMemoryCapacity bounds the net heap in bytes. Zero means
// unbounded.
func WithMemoryCapacity(bytes uint64) Option {
	return func(c *config) { c.capacity = bytes }
}

// New probes for a device and assembles a runtime around it.
func New(opts ...Option) (*Runtime, error) {
	cfg := config{
		prefetchPolicy: memory.PrefetchAdaptive,
		maxSteps:       1 << 24,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	device := cfg.device
	if device == nil {
		var err error
		device, err = backend.Select(cfg.logger)
		if err != nil {
			return nil, err
		}
	}

	// Net storage lives in unified space. A discrete device would need
	// a staging allocator behind the same interface; none of the built
	// backends report discrete memory, and the CPU is always unified.
	allocOpts := []memory.AllocOption{}
	if cfg.capacity > 0 {
		allocOpts = append(allocOpts, memory.WithCapacity(cfg.capacity))
	}
	alloc, err := memory.NewUnifiedAllocator(true, allocOpts...)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		logger:   cfg.logger,
		device:   device,
		cpu:      backend.NewCPU(),
		cache:    backend.NewCache(cfg.cacheCap),
		alloc:    alloc,
		prefetch: memory.NewPrefetchManager(cfg.prefetchPolicy),
		maxSteps: cfg.maxSteps,
	}

	if cfg.profilePath != "" {
		store, err := profile.Open(cfg.profilePath)
		if err != nil {
			return nil, err
		}
		r.profiles = store
	}

	strategy := cfg.strategy
	if strategy == nil {
		adaptive := sched.NewAdaptive(device.Describe())
		r.adaptive = adaptive
		strategy = adaptive
		r.seedAdaptive()
	} else if a, ok := strategy.(*sched.Adaptive); ok {
		r.adaptive = a
	}

	gpuWorkers := 0
	if device.Kind() == backend.KindGPU {
		gpuWorkers = 1
	}
	r.sch = sched.NewScheduler(strategy, cfg.logger,
		sched.WithGPUWorkers(gpuWorkers),
	)
	return r, nil
}

// seedAdaptive loads prior timing means from the profile store.
func (r *Runtime) seedAdaptive() {
	if r.profiles == nil || r.adaptive == nil {
		return
	}
	// Seeding is best effort; a fresh or unreadable profile just means
	// cold calibration.
	cpuNs, gpuNs, err := r.profiles.Means(context.Background(), profile.Key(r.device.Describe()))
	if err != nil {
		r.logger.Warn("profile seed failed", "error", err)
		return
	}
	r.adaptive.Seed(cpuNs, gpuNs)
}

// Device reports the active device.
func (r *Runtime) Device() backend.Device { return r.device }

// CacheStats reports kernel cache counters.
func (r *Runtime) CacheStats() backend.CacheStats { return r.cache.Stats() }

// MemStats reports net heap counters.
func (r *Runtime) MemStats() memory.MemStats { return r.alloc.Stats() }

// Close releases the profile store, flushing nothing; samples are
// written as sessions complete.
func (r *Runtime) Close() error {
	if r.profiles != nil {
		return r.profiles.Close()
	}
	return nil
}

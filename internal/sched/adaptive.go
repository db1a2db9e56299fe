package sched

import (
	"sync"
	"time"

	"github.com/weftvm/weft/internal/backend"
)

// EWMA smoothing factor for per-backend timing feedback.
const perfAlpha = 0.2

// Threshold bounds for the adaptive strategy, in pairs per task.
const (
	minAdaptiveThreshold = 8
	maxAdaptiveThreshold = 1 << 16
)

// Adaptive is a size-threshold strategy whose threshold moves with
// measured per-pair timings. Every completed batch feeds back through
// UpdatePerf; when the device outruns the host the threshold halves,
// and when it lags the threshold doubles.
type Adaptive struct {
	mu        sync.Mutex
	threshold uint64

	// EWMA of nanoseconds per pair, zero until first sample.
	cpuNsPerPair float64
	gpuNsPerPair float64
}

// NewAdaptive seeds the threshold from the device report. Unified
// mobile parts pay little for small transfers, so they start with a
// low threshold; discrete parts start high.
func NewAdaptive(info backend.DeviceInfo) *Adaptive {
	threshold := uint64(256)
	if info.UnifiedMemory && info.Vendor.Mobile() {
		threshold = 64
	}
	return &Adaptive{threshold: threshold}
}

// Name identifies the strategy in logs.
func (a *Adaptive) Name() string { return "adaptive" }

// Assign partitions by the current threshold.
func (a *Adaptive) Assign(tasks []Task) Partition {
	a.mu.Lock()
	threshold := a.threshold
	a.mu.Unlock()
	return sizeThreshold{n: threshold}.Assign(tasks)
}

// Threshold reports the current split point in pairs.
func (a *Adaptive) Threshold() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.threshold
}

// UpdatePerf folds one completed batch into the timing model. Batches
// with no pairs carry no signal and are ignored.
func (a *Adaptive) UpdatePerf(kind backend.Kind, pairs uint64, elapsed time.Duration) {
	if pairs == 0 {
		return
	}
	sample := float64(elapsed.Nanoseconds()) / float64(pairs)

	a.mu.Lock()
	defer a.mu.Unlock()

	switch kind {
	case backend.KindCPU:
		a.cpuNsPerPair = fold(a.cpuNsPerPair, sample)
	case backend.KindGPU:
		a.gpuNsPerPair = fold(a.gpuNsPerPair, sample)
	}

	// Adjust only once both sides have been measured.
	if a.cpuNsPerPair == 0 || a.gpuNsPerPair == 0 {
		return
	}
	if a.gpuNsPerPair < a.cpuNsPerPair {
		if a.threshold/2 >= minAdaptiveThreshold {
			a.threshold /= 2
		}
	} else if a.threshold*2 <= maxAdaptiveThreshold {
		a.threshold *= 2
	}
}

// Seed installs prior timing means, typically loaded from the device
// profile store, so the first batches start from measured ground.
func (a *Adaptive) Seed(cpuNsPerPair, gpuNsPerPair float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cpuNsPerPair > 0 {
		a.cpuNsPerPair = cpuNsPerPair
	}
	if gpuNsPerPair > 0 {
		a.gpuNsPerPair = gpuNsPerPair
	}
}

// Snapshot reports the current timing means for persistence.
func (a *Adaptive) Snapshot() (cpuNsPerPair, gpuNsPerPair float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cpuNsPerPair, a.gpuNsPerPair
}

func fold(ewma, sample float64) float64 {
	if ewma == 0 {
		return sample
	}
	return perfAlpha*sample + (1-perfAlpha)*ewma
}

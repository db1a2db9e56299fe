package memory

import "sync"

// PrefetchPolicy selects how aggressively regions are staged toward
// the side that will touch them next.
type PrefetchPolicy uint8

const (
	// PrefetchNone issues no hints.
	PrefetchNone PrefetchPolicy = iota
	// PrefetchOnDemand hints a region only when it is about to be
	// used.
	PrefetchOnDemand
	// PrefetchEager hints every region as soon as it is allocated.
	PrefetchEager
	// PrefetchAdaptive starts on demand and promotes regions to
	// eager once their access count shows a stable pattern.
	PrefetchAdaptive
)

// String returns the policy name.
func (p PrefetchPolicy) String() string {
	switch p {
	case PrefetchOnDemand:
		return "on-demand"
	case PrefetchEager:
		return "eager"
	case PrefetchAdaptive:
		return "adaptive"
	}
	return "none"
}

// Location names the side of the unified space a hint targets.
type Location uint8

const (
	// LocHost stages toward the CPU.
	LocHost Location = iota
	// LocDevice stages toward the compute device.
	LocDevice
)

// adaptiveHotAt is the access count at which the adaptive policy
// starts treating a region as resident on its dominant side.
const adaptiveHotAt = 4

// PrefetchManager issues residency hints for unified regions. Hints
// are advisory: a hint can be dropped at any time, so hinting never
// fails and never blocks.
type PrefetchManager struct {
	policy PrefetchPolicy

	mu      sync.Mutex
	issued  uint64
	dropped uint64
	counts  map[uint64]uint64 // region ptr -> device-side accesses
}

// NewPrefetchManager returns a manager applying the given policy.
func NewPrefetchManager(policy PrefetchPolicy) *PrefetchManager {
	return &PrefetchManager{
		policy: policy,
		counts: make(map[uint64]uint64),
	}
}

// Policy reports the configured policy.
func (m *PrefetchManager) Policy() PrefetchPolicy { return m.policy }

// Hint requests that r be made resident at loc before the next batch.
func (m *PrefetchManager) Hint(r Region, loc Location) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.policy {
	case PrefetchNone:
		m.dropped++
	case PrefetchOnDemand, PrefetchEager:
		m.issued++
	case PrefetchAdaptive:
		if loc == LocDevice {
			m.counts[r.Ptr]++
		}
		if loc == LocHost || m.counts[r.Ptr] <= adaptiveHotAt {
			m.issued++
		} else {
			// Region is hot on the device; no hint needed.
			m.dropped++
		}
	}
}

// PrefetchStats is a snapshot of hint counters.
type PrefetchStats struct {
	Issued  uint64
	Dropped uint64
}

// Stats snapshots the hint counters.
func (m *PrefetchManager) Stats() PrefetchStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PrefetchStats{Issued: m.issued, Dropped: m.dropped}
}

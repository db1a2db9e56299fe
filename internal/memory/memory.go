// Package memory manages unified host/device allocations, tiled
// layout transforms, and prefetch hinting for net storage shared
// between the CPU and a compute device.
package memory

import (
	"errors"
	"fmt"
	"sync"
)

// Region describes one allocation. Ptr is an address in the unified
// space; regions handed out by the allocator are visible to both the
// host and the device.
type Region struct {
	Ptr              uint64
	Size             uint64
	HostAccessible   bool
	DeviceAccessible bool
}

// IsUnified reports whether both sides can touch the region.
func (r Region) IsUnified() bool { return r.HostAccessible && r.DeviceAccessible }

// MemStats is a point-in-time snapshot of allocator counters.
// AllocatedBytes never exceeds PeakBytes, and the region count equals
// AllocCount minus FreeCount.
type MemStats struct {
	AllocatedBytes uint64
	PeakBytes      uint64
	AllocCount     uint64
	FreeCount      uint64
	ActiveRegions  uint64
}

// ErrNotUnified means the device cannot share an address space with
// the host, so a unified allocator cannot be built for it.
var ErrNotUnified = errors.New("device memory is not host-coherent")

// ErrOutOfMemory means an allocation would exceed the configured
// capacity.
var ErrOutOfMemory = errors.New("allocation exceeds capacity")

// InvalidAlignmentError reports a requested alignment that is zero or
// not a power of two.
type InvalidAlignmentError struct {
	Align uint64
}

// Error implements the error interface.
func (e *InvalidAlignmentError) Error() string {
	return fmt.Sprintf("INVALID_ALIGNMENT: %d is not a power of two", e.Align)
}

// NullPointerError reports a free of an address the allocator never
// handed out, or handed out and already reclaimed.
type NullPointerError struct {
	Ptr uint64
}

// Error implements the error interface.
func (e *NullPointerError) Error() string {
	return fmt.Sprintf("NULL_POINTER: free of unknown address %#x", e.Ptr)
}

// IsInvalidAlignment reports whether err is an alignment error.
func IsInvalidAlignment(err error) bool {
	var ae *InvalidAlignmentError
	return errors.As(err, &ae)
}

// IsNullPointer reports whether err is an unknown-address free.
func IsNullPointer(err error) bool {
	var ne *NullPointerError
	return errors.As(err, &ne)
}

// allocBase keeps address zero and the first pages out of the unified
// space, so a zero Ptr always means "no region".
const allocBase uint64 = 0x10000

// UnifiedAllocator hands out regions from a monotonically growing
// unified address space. Addresses are never reused after free, which
// keeps stale-pointer bugs loud; only the byte accounting is returned
// to the pool.
type UnifiedAllocator struct {
	mu       sync.Mutex
	next     uint64
	capacity uint64 // 0 means unbounded
	live     map[uint64]uint64

	allocated uint64
	peak      uint64
	allocs    uint64
	frees     uint64
}

// AllocOption customizes allocator construction.
type AllocOption func(*UnifiedAllocator)

// WithCapacity bounds the total live bytes. Zero leaves the allocator
// unbounded.
func WithCapacity(bytes uint64) AllocOption {
	return func(a *UnifiedAllocator) { a.capacity = bytes }
}

// NewUnifiedAllocator builds an allocator for a device that shares
// memory with the host. unified reflects the device capability report;
// a discrete device fails with ErrNotUnified.
func NewUnifiedAllocator(unified bool, opts ...AllocOption) (*UnifiedAllocator, error) {
	if !unified {
		return nil, ErrNotUnified
	}
	a := &UnifiedAllocator{
		next: allocBase,
		live: make(map[uint64]uint64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Alloc reserves size bytes at the requested alignment. Alignment must
// be a power of two.
func (a *UnifiedAllocator) Alloc(size, align uint64) (Region, error) {
	if align == 0 || align&(align-1) != 0 {
		return Region{}, &InvalidAlignmentError{Align: align}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.capacity != 0 && a.allocated+size > a.capacity {
		return Region{}, fmt.Errorf("want %d bytes with %d live: %w", size, a.allocated, ErrOutOfMemory)
	}

	ptr := (a.next + align - 1) &^ (align - 1)
	a.next = ptr + size
	a.live[ptr] = size

	a.allocated += size
	if a.allocated > a.peak {
		a.peak = a.allocated
	}
	a.allocs++

	return Region{
		Ptr:              ptr,
		Size:             size,
		HostAccessible:   true,
		DeviceAccessible: true,
	}, nil
}

// Free returns a region's bytes to the accounting pool. The address
// itself is retired permanently.
func (a *UnifiedAllocator) Free(r Region) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	size, ok := a.live[r.Ptr]
	if !ok {
		return &NullPointerError{Ptr: r.Ptr}
	}
	delete(a.live, r.Ptr)
	a.allocated -= size
	a.frees++
	return nil
}

// Stats snapshots the allocator counters.
func (a *UnifiedAllocator) Stats() MemStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return MemStats{
		AllocatedBytes: a.allocated,
		PeakBytes:      a.peak,
		AllocCount:     a.allocs,
		FreeCount:      a.frees,
		ActiveRegions:  uint64(len(a.live)),
	}
}

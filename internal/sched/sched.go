// Package sched partitions rewrite work between the CPU and the
// compute device. Partitioning is pure: a strategy maps a task list to
// a partition without touching the net, so the same inputs always
// produce the same split.
package sched

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Task is one schedulable chunk of rewrite work. Size is the number of
// pairs in the chunk.
type Task struct {
	ID   uint64
	Size uint64
}

// Partition assigns every task to exactly one side.
type Partition struct {
	CPU []Task
	GPU []Task
}

// Total reports the number of assigned tasks.
func (p Partition) Total() int { return len(p.CPU) + len(p.GPU) }

// ErrNoWorkers means the scheduler was built without any workers.
var ErrNoWorkers = errors.New("no workers configured")

// ErrQueueFull means a plan request exceeded the pending-task bound.
var ErrQueueFull = errors.New("task queue full")

// InvalidPartitionError reports a strategy output that dropped or
// duplicated tasks.
type InvalidPartitionError struct {
	Strategy string
	Want     int
	Got      int
}

// Error implements the error interface.
func (e *InvalidPartitionError) Error() string {
	return fmt.Sprintf("INVALID_PARTITION: strategy %q assigned %d of %d tasks", e.Strategy, e.Got, e.Want)
}

// IsInvalidPartition reports whether err is a partition validity error.
func IsInvalidPartition(err error) bool {
	var pe *InvalidPartitionError
	return errors.As(err, &pe)
}

// Strategy maps a task list to a partition. Implementations must be
// total: every input task appears in the output exactly once.
type Strategy interface {
	Name() string
	Assign(tasks []Task) Partition
}

// Validate checks that p assigns every task in tasks exactly once.
func Validate(p Partition, tasks []Task, strategy string) error {
	seen := make(map[uint64]bool, len(tasks))
	count := 0
	for _, side := range [][]Task{p.CPU, p.GPU} {
		for _, t := range side {
			if seen[t.ID] {
				return &InvalidPartitionError{Strategy: strategy, Want: len(tasks), Got: count}
			}
			seen[t.ID] = true
			count++
		}
	}
	for _, t := range tasks {
		if !seen[t.ID] {
			return &InvalidPartitionError{Strategy: strategy, Want: len(tasks), Got: count}
		}
	}
	if count != len(tasks) {
		return &InvalidPartitionError{Strategy: strategy, Want: len(tasks), Got: count}
	}
	return nil
}

type allCPU struct{}

func (allCPU) Name() string { return "all-cpu" }

func (allCPU) Assign(tasks []Task) Partition {
	return Partition{CPU: append([]Task(nil), tasks...)}
}

// AllCPU assigns everything to the host. It is also the fallback when
// another strategy misbehaves.
func AllCPU() Strategy { return allCPU{} }

type allGPU struct{}

func (allGPU) Name() string { return "all-gpu" }

func (allGPU) Assign(tasks []Task) Partition {
	return Partition{GPU: append([]Task(nil), tasks...)}
}

// AllGPU assigns everything to the device.
func AllGPU() Strategy { return allGPU{} }

type sizeThreshold struct {
	n uint64
}

func (s sizeThreshold) Name() string { return fmt.Sprintf("size-threshold(%d)", s.n) }

func (s sizeThreshold) Assign(tasks []Task) Partition {
	var p Partition
	for _, t := range tasks {
		if t.Size >= s.n {
			p.GPU = append(p.GPU, t)
		} else {
			p.CPU = append(p.CPU, t)
		}
	}
	return p
}

// SizeThreshold sends tasks of at least n pairs to the device and the
// rest to the host.
func SizeThreshold(n uint64) Strategy { return sizeThreshold{n: n} }

type roundRobin struct {
	next uint64
}

func (*roundRobin) Name() string { return "round-robin" }

func (r *roundRobin) Assign(tasks []Task) Partition {
	var p Partition
	for _, t := range tasks {
		if r.next%2 == 0 {
			p.CPU = append(p.CPU, t)
		} else {
			p.GPU = append(p.GPU, t)
		}
		r.next++
	}
	return p
}

// RoundRobin alternates tasks between the two sides.
func RoundRobin() Strategy { return &roundRobin{} }

// Option customizes a scheduler.
type Option func(*Scheduler)

// WithQueueCap bounds the number of tasks accepted per plan. Zero
// leaves the queue unbounded.
func WithQueueCap(n int) Option {
	return func(s *Scheduler) { s.queueCap = n }
}

// WithGPUWorkers sets the device worker count. Zero routes all work to
// the host regardless of strategy.
func WithGPUWorkers(n int) Option {
	return func(s *Scheduler) { s.gpuWorkers = n }
}

// WithCPUWorkers sets the host worker count.
func WithCPUWorkers(n int) Option {
	return func(s *Scheduler) { s.cpuWorkers = n }
}

// Scheduler applies a strategy and enforces the worker and queue
// bounds around it.
type Scheduler struct {
	strategy   Strategy
	logger     *slog.Logger
	cpuWorkers int
	gpuWorkers int
	queueCap   int
}

// NewScheduler builds a scheduler with one CPU worker and one GPU
// worker by default.
func NewScheduler(strategy Strategy, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		strategy:   strategy,
		logger:     logger,
		cpuWorkers: 1,
		gpuWorkers: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan partitions tasks for the next step. A strategy that drops or
// duplicates tasks is reported and replaced by the all-CPU fallback;
// work is never lost to a bad strategy.
func (s *Scheduler) Plan(tasks []Task) (Partition, error) {
	if s.cpuWorkers+s.gpuWorkers == 0 {
		return Partition{}, ErrNoWorkers
	}
	if s.queueCap > 0 && len(tasks) > s.queueCap {
		return Partition{}, fmt.Errorf("%d tasks exceed bound %d: %w", len(tasks), s.queueCap, ErrQueueFull)
	}
	if len(tasks) == 0 {
		return Partition{}, nil
	}

	p := s.strategy.Assign(tasks)
	if err := Validate(p, tasks, s.strategy.Name()); err != nil {
		s.logger.Warn("partition invalid, falling back to all-cpu",
			"strategy", s.strategy.Name(), "error", err)
		p = AllCPU().Assign(tasks)
	}

	if s.gpuWorkers == 0 && len(p.GPU) > 0 {
		p.CPU = append(p.CPU, p.GPU...)
		p.GPU = nil
		sort.Slice(p.CPU, func(i, j int) bool { return p.CPU[i].ID < p.CPU[j].ID })
	}
	return p, nil
}

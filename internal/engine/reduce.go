package engine

import (
	"context"
	"log/slog"

	"github.com/weftvm/weft/internal/core"
)

// State is the reducer's position in its state machine. Scanning,
// Dispatching and Rewriting cycle until one of the terminal states is
// reached.
type State int

const (
	// StateScanning pops the next redex batch.
	StateScanning State = iota
	// StateDispatching classifies pairs against the rule matrix.
	StateDispatching
	// StateRewriting applies rules and enqueues exposed pairs.
	StateRewriting
	// StateNormalForm is terminal: the redex queue is empty.
	StateNormalForm
	// StateFault is terminal: an active pair violated the graph
	// invariants. The net is unusable afterwards.
	StateFault
	// StateExhausted is terminal: the step budget ran out. The net is
	// left intact and Reduce may be called again with a fresh budget.
	StateExhausted
)

var stateNames = [...]string{"Scanning", "Dispatching", "Rewriting", "NormalForm", "Fault", "Exhausted"}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State?"
}

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StateNormalForm || s == StateFault || s == StateExhausted
}

// DefaultMaxSteps bounds rewrites per Reduce call so runaway programs
// cannot spin forever. Zero disables the budget.
const DefaultMaxSteps = 1 << 24

// Reducer drives a net to normal form on the host, one batch per
// iteration. All mutation happens on the calling goroutine; within a
// batch, pairs are independent (each rewrite touches only its own two
// cells and their wires), which is what lets backends replay a batch
// data-parallel.
//
// Cancellation is cooperative: the context is checked between batches,
// never mid-batch.
type Reducer struct {
	rw       *Rewriter
	state    State
	maxSteps uint64
}

// ReducerOption configures a Reducer.
type ReducerOption func(*Reducer)

// WithMaxSteps sets the rewrite budget per Reduce call. Zero means
// unbounded.
func WithMaxSteps(n uint64) ReducerOption {
	return func(r *Reducer) { r.maxSteps = n }
}

// NewReducer creates a reducer over a net and book.
func NewReducer(net *core.Net, book *core.Book, opts ...ReducerOption) *Reducer {
	r := &Reducer{
		rw:       NewRewriter(net, book),
		state:    StateScanning,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the reducer's current state.
func (r *Reducer) State() State { return r.state }

// Rewriter exposes the rule applier, for backends that execute batches.
func (r *Reducer) Rewriter() *Rewriter { return r.rw }

// Reduce runs the Scanning/Dispatching/Rewriting loop until a terminal
// state. An iteration barrier holds between batches: the next scan only
// begins after every rewrite of the previous batch has been applied.
func (r *Reducer) Reduce(ctx context.Context) (State, error) {
	net := r.rw.Net()
	start := net.Rewrites()

	for {
		select {
		case <-ctx.Done():
			r.state = StateExhausted
			return r.state, ctx.Err()
		default:
		}

		r.state = StateScanning
		batch := net.TakeRedexes()
		if len(batch) == 0 {
			r.state = StateNormalForm
			return r.state, nil
		}

		if r.maxSteps > 0 && net.Rewrites()-start >= r.maxSteps {
			// Push the unprocessed batch back so the net stays resumable.
			for _, rx := range batch {
				net.Enqueue(rx.A, rx.B)
			}
			slog.Debug("step budget exhausted",
				"rewrites", net.Rewrites()-start,
				"pending", net.RedexCount(),
			)
			r.state = StateExhausted
			return r.state, nil
		}

		r.state = StateRewriting
		for _, rx := range batch {
			if err := r.rw.Interact(rx.A, rx.B); err != nil {
				r.state = StateFault
				return r.state, err
			}
		}
	}
}

package core

// Label is the auxiliary payload of a node: for Con and Dup it names
// the constructor/duplication family (Anni vs Comm is decided on label
// equality, not on the tag alone); for Op2 it encodes the operator and
// the operand-order flip bit.
type Label uint16

const (
	// OpFlip marks an Op2 whose stashed operand is the left-hand side.
	OpFlip Label = 1 << 8
	opMask Label = OpFlip - 1
)

// OpLabel builds an Op2 label for an operator.
func OpLabel(op Op) Label { return Label(op) }

// Operator extracts the operator from an Op2 label.
func (l Label) Operator() Op { return Op(l & opMask) }

// Flipped reports whether the Op2 stash holds the left operand.
func (l Label) Flipped() bool { return l&OpFlip != 0 }

// Node is a two-port cell in the heap. The principal port is implicit:
// it is wherever a Port referencing this node appears.
type Node struct {
	P1, P2 Port
	Label  Label
}

// Redex is an active pair: two Ports whose principal connections meet.
// Redexes are unordered; the final normal form must not depend on the
// order in which they are processed.
type Redex struct {
	A, B Port
}

// Net owns a flat node heap, the wire substitution slots, and the queue
// of pending redexes. A Net lives for one evaluation session and is
// discarded afterwards; nodes are bump-allocated and never reused.
//
// Mutation discipline: exactly one goroutine rewrites a Net at a time.
// Rewrites happen only inside a backend execute call, and a new scan
// never starts before the previous execute has returned.
type Net struct {
	nodes   []Node
	vars    []Port
	redexes []Redex
	root    Port

	freedNodes uint64
	rewrites   uint64
}

// NewNet creates an empty net. Var slot 0 is reserved as the None
// sentinel; slot 1 is the root wire.
func NewNet() *Net {
	n := &Net{
		nodes: make([]Node, 0, 64),
		vars:  make([]Port, 2, 64),
	}
	n.root = NewPort(Var, 1)
	return n
}

// Root returns the net's result wire.
func (n *Net) Root() Port { return n.root }

// SetRoot repoints the result wire. Used when loading an entry net.
func (n *Net) SetRoot(p Port) { n.root = p }

// AllocNode appends a node and returns its index.
func (n *Net) AllocNode(node Node) uint64 {
	n.nodes = append(n.nodes, node)
	return uint64(len(n.nodes) - 1)
}

// Node returns a pointer to the node at index i.
func (n *Net) Node(i uint64) *Node { return &n.nodes[i] }

// NodeCount returns the number of nodes ever allocated.
func (n *Net) NodeCount() int { return len(n.nodes) }

// FreeNode zeroes a consumed node. The slot is not reused; the counter
// feeds the lowering layer's free instructions.
func (n *Net) FreeNode(i uint64) {
	n.nodes[i] = Node{}
	n.freedNodes++
}

// FreedNodes returns how many nodes have been consumed by rewrites.
func (n *Net) FreedNodes() uint64 { return n.freedNodes }

// FreshVar allocates a new unbound wire and returns its Var port.
func (n *Net) FreshVar() Port {
	n.vars = append(n.vars, None)
	return NewPort(Var, uint64(len(n.vars)-1))
}

// VarCount returns the number of wire slots, including the reserved ones.
func (n *Net) VarCount() int { return len(n.vars) }

// Enqueue records an active pair for a future scan.
func (n *Net) Enqueue(a, b Port) {
	n.redexes = append(n.redexes, Redex{A: a, B: b})
}

// RedexCount returns the number of pending redexes.
func (n *Net) RedexCount() int { return len(n.redexes) }

// TakeRedexes removes and returns the entire pending batch. Slots are
// zeroed before the slice is reset so the backing array does not retain
// stale pairs across steps.
func (n *Net) TakeRedexes() []Redex {
	batch := make([]Redex, len(n.redexes))
	copy(batch, n.redexes)
	for i := range n.redexes {
		n.redexes[i] = Redex{}
	}
	n.redexes = n.redexes[:0]
	return batch
}

// Link connects two ports. This is the only wiring primitive: every
// rewrite rule reduces to Link calls plus node allocation.
//
// A Var port is one endpoint of a wire. The first Link on a wire
// deposits the partner port in the slot; the second retrieves it and
// fuses the two partners. When both ports are principal (non-Var), the
// pair is active and is enqueued for the next scan.
func (n *Net) Link(a, b Port) {
	for {
		if a.Tag() != Var {
			a, b = b, a
		}
		if a.Tag() != Var {
			n.Enqueue(a, b)
			return
		}
		slot := a.Val()
		got := n.vars[slot]
		if got.IsNone() {
			n.vars[slot] = b
			return
		}
		n.vars[slot] = None
		a = got
	}
}

// Resolve follows bound wires until it reaches a principal port or an
// unbound Var. Read-only: slots are not cleared.
func (n *Net) Resolve(p Port) Port {
	for p.Tag() == Var {
		got := n.vars[p.Val()]
		if got.IsNone() {
			return p
		}
		p = got
	}
	return p
}

// CountRewrite bumps the rewrite counter. Called once per applied rule.
func (n *Net) CountRewrite() { n.rewrites++ }

// Rewrites returns the number of rules applied so far.
func (n *Net) Rewrites() uint64 { return n.rewrites }

// Instantiate copies a template into this net with fresh node indices
// and fresh wire slots, enqueues the template's redexes, and returns
// the remapped root port.
func (n *Net) Instantiate(t *Template) Port {
	nodeOff := uint64(len(n.nodes))
	varOff := uint64(len(n.vars))

	remap := func(p Port) Port {
		switch {
		case p.Tag() == Var:
			return NewPort(Var, p.Val()+varOff)
		case p.Tag().HasNode():
			return NewPort(p.Tag(), p.Val()+nodeOff)
		default:
			return p
		}
	}

	for i := 0; i < t.Vars; i++ {
		n.vars = append(n.vars, None)
	}
	for _, node := range t.Nodes {
		n.nodes = append(n.nodes, Node{
			P1:    remap(node.P1),
			P2:    remap(node.P2),
			Label: node.Label,
		})
	}
	for _, r := range t.Redexes {
		n.Enqueue(remap(r.A), remap(r.B))
	}
	return remap(t.Root)
}

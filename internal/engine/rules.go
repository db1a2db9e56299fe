package engine

import (
	"fmt"

	"github.com/weftvm/weft/internal/core"
)

// Rule names an interaction rule class.
type Rule uint8

const (
	// RuleLink binds a wire endpoint to the opposite port.
	RuleLink Rule = iota
	// RuleAnni annihilates two same-label nodes of the same species.
	RuleAnni
	// RuleComm commutes two different nodes, duplicating each against
	// the other.
	RuleComm
	// RuleEras propagates an eraser through a node's auxiliary ports.
	RuleEras
	// RuleDeref expands a Ref into a fresh instantiation of its template.
	RuleDeref
	// RuleCall beta-reduces an App against a Lam.
	RuleCall
	// RuleCopy duplicates the cell a Dup shares.
	RuleCopy
	// RuleOper evaluates a binary operator over two numeric operands.
	RuleOper

	ruleCount
)

var ruleNames = [ruleCount]string{"LINK", "ANNI", "COMM", "ERAS", "DEREF", "CALL", "COPY", "OPER"}

// String returns the rule mnemonic.
func (r Rule) String() string {
	if int(r) < len(ruleNames) {
		return ruleNames[r]
	}
	return "RULE?"
}

// Classify decides which rule applies to an active pair. The decision
// is symmetric in the pair order. ok=false means no rule exists: the
// pair violates the graph invariants and the session must fault.
//
// Label equality (Anni vs Comm) is read from the nodes' auxiliary
// payload, so classification needs the net, not just the two tags.
func Classify(net *core.Net, a, b core.Port) (Rule, bool) {
	ta, tb := a.Tag(), b.Tag()
	switch {
	case ta == core.Var || tb == core.Var:
		return RuleLink, true

	case ta == core.Era || tb == core.Era:
		return RuleEras, true

	case ta == core.Ref || tb == core.Ref:
		return RuleDeref, true

	case ta == core.Con && tb == core.Con,
		ta == core.Dup && tb == core.Dup:
		if net.Node(a.Val()).Label == net.Node(b.Val()).Label {
			return RuleAnni, true
		}
		return RuleComm, true

	case ta == core.App && tb == core.Lam,
		ta == core.Lam && tb == core.App:
		return RuleCall, true

	case ta == core.Dup || tb == core.Dup:
		return RuleCopy, true

	case ta == core.Op2 && tb == core.Num,
		ta == core.Num && tb == core.Op2:
		return RuleOper, true
	}
	return 0, false
}

// Rewriter applies interaction rules to one Net. Every rule enqueues
// the active pairs it exposes before returning, so reduction terminates
// exactly when the redex queue drains.
type Rewriter struct {
	net  *core.Net
	book *core.Book
}

// NewRewriter creates a rewriter over a net and its definition book.
func NewRewriter(net *core.Net, book *core.Book) *Rewriter {
	return &Rewriter{net: net, book: book}
}

// Net returns the underlying net.
func (r *Rewriter) Net() *core.Net { return r.net }

// Interact applies the rule for one active pair. Errors are faults:
// the net must be considered corrupt afterwards.
func (r *Rewriter) Interact(a, b core.Port) error {
	rule, ok := Classify(r.net, a, b)
	if !ok {
		return NewMalformedNet(fmt.Sprintf("%s-%s", a, b))
	}
	r.net.CountRewrite()

	switch rule {
	case RuleLink:
		r.net.Link(a, b)
		return nil
	case RuleAnni, RuleCall:
		r.anni(a, b)
		return nil
	case RuleComm:
		r.comm(a, b)
		return nil
	case RuleEras:
		r.eras(orient(a, b, core.Era))
		return nil
	case RuleDeref:
		return r.deref(orient(a, b, core.Ref))
	case RuleCopy:
		r.copy(orient(a, b, core.Dup))
		return nil
	case RuleOper:
		r.oper(orient(a, b, core.Num))
		return nil
	}
	return NewMalformedNet(fmt.Sprintf("%s-%s", a, b))
}

// orient returns the pair with the port carrying tag first.
func orient(a, b core.Port, tag core.Tag) (core.Port, core.Port) {
	if a.Tag() == tag {
		return a, b
	}
	return b, a
}

// anni wires the two nodes' auxiliary ports together and consumes both.
// Beta reduction (App-Lam) is structurally the same rewrite: argument
// to binder, result to body.
func (r *Rewriter) anni(a, b core.Port) {
	na, nb := r.net.Node(a.Val()), r.net.Node(b.Val())
	p1a, p2a := na.P1, na.P2
	p1b, p2b := nb.P1, nb.P2
	r.net.FreeNode(a.Val())
	r.net.FreeNode(b.Val())
	r.net.Link(p1a, p1b)
	r.net.Link(p2a, p2b)
}

// comm duplicates each node against the other. Four fresh wires join
// the copies crosswise, and the four original auxiliary ports are
// linked to the copies' principal ports, exposing any new active pairs.
func (r *Rewriter) comm(a, b core.Port) {
	na, nb := r.net.Node(a.Val()), r.net.Node(b.Val())
	ta, tb := a.Tag(), b.Tag()
	la, lb := na.Label, nb.Label
	p1a, p2a := na.P1, na.P2
	p1b, p2b := nb.P1, nb.P2
	r.net.FreeNode(a.Val())
	r.net.FreeNode(b.Val())

	w00 := r.net.FreshVar()
	w01 := r.net.FreshVar()
	w10 := r.net.FreshVar()
	w11 := r.net.FreshVar()

	b1 := r.net.AllocNode(core.Node{P1: w00, P2: w01, Label: lb})
	b2 := r.net.AllocNode(core.Node{P1: w10, P2: w11, Label: lb})
	a1 := r.net.AllocNode(core.Node{P1: w00, P2: w10, Label: la})
	a2 := r.net.AllocNode(core.Node{P1: w01, P2: w11, Label: la})

	r.net.Link(p1a, core.NewPort(tb, b1))
	r.net.Link(p2a, core.NewPort(tb, b2))
	r.net.Link(p1b, core.NewPort(ta, a1))
	r.net.Link(p2b, core.NewPort(ta, a2))
}

// eras propagates erasure. Atomic cells (Num, Ref, Era) vanish with the
// eraser; node cells are consumed and an eraser is sent down each
// auxiliary port, enqueuing follow-on erasures.
func (r *Rewriter) eras(_, other core.Port) {
	if !other.Tag().HasNode() {
		return
	}
	n := r.net.Node(other.Val())
	p1, p2 := n.P1, n.P2
	r.net.FreeNode(other.Val())
	r.net.Link(core.NewPort(core.Era, 0), p1)
	r.net.Link(core.NewPort(core.Era, 0), p2)
}

// deref expands a Ref through the Book and re-wires the pair against
// the fresh expansion. The Book is immutable during evaluation, so the
// lookup is race-free.
func (r *Rewriter) deref(ref, other core.Port) error {
	def, ok := r.book.ByIndex(ref.Val())
	if !ok {
		return NewUnresolvedReference(fmt.Sprintf("#%d", ref.Val()))
	}
	root := r.net.Instantiate(&def.Template)
	r.net.Link(root, other)
	return nil
}

// copy duplicates the cell a Dup faces. Atomic cells are copied by
// value onto both Dup outputs; node cells duplicate via commutation.
func (r *Rewriter) copy(dup, other core.Port) {
	if other.Tag().HasNode() {
		r.comm(dup, other)
		return
	}
	n := r.net.Node(dup.Val())
	p1, p2 := n.P1, n.P2
	r.net.FreeNode(dup.Val())
	r.net.Link(p1, other)
	r.net.Link(p2, other)
}

// oper evaluates a binary operator once both operands are numeric. The
// Op2 node's first aux holds the partner operand wire, the second the
// destination. If the partner is not yet a number, the arriving operand
// is stashed in a fresh Op2 with the flip bit toggled so left/right
// order survives re-staging.
func (r *Rewriter) oper(num, op2 core.Port) {
	n := r.net.Node(op2.Val())
	label := n.Label
	partner, dest := n.P1, n.P2
	r.net.FreeNode(op2.Val())

	x := core.NewNumb(num.Val())
	y := r.net.Resolve(partner)
	if y.Tag() == core.Num {
		yv := core.NewNumb(y.Val())
		op := label.Operator()
		var res core.Numb
		if label.Flipped() {
			res = op.Apply(yv, x)
		} else {
			res = op.Apply(x, yv)
		}
		r.net.Link(dest, core.NewPort(core.Num, res.Uint()))
		return
	}

	stash := r.net.AllocNode(core.Node{
		P1:    core.NewPort(core.Num, num.Val()),
		P2:    dest,
		Label: label ^ core.OpFlip,
	})
	r.net.Link(partner, core.NewPort(core.Op2, stash))
}

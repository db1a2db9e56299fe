package ir

import (
	"github.com/weftvm/weft/internal/core"
	"github.com/weftvm/weft/internal/engine"
)

// Lower converts a redex batch into a program. Each pair contributes
// its interaction instruction bracketed by the rule's resource
// footprint: allocations it will perform and the nodes it consumes.
//
// Lowering resolves Ref sizing through the Book, so an unresolved
// reference surfaces here, before any backend work is attempted.
func Lower(net *core.Net, book *core.Book, batch []core.Redex) (*Program, error) {
	p := &Program{Instrs: make([]Instr, 0, len(batch)*2)}

	for _, rx := range batch {
		rule, ok := engine.Classify(net, rx.A, rx.B)
		if !ok {
			return nil, engine.NewMalformedNet(rx.A.String() + "-" + rx.B.String())
		}

		switch rule {
		case engine.RuleLink:
			p.Push(Instr{Op: OpLink, A: rx.A, B: rx.B})
			continue

		case engine.RuleComm:
			p.Push(Instr{Op: OpAlloc, Count: 4})

		case engine.RuleCopy:
			if nodeSide(rx).Tag().HasNode() {
				p.Push(Instr{Op: OpAlloc, Count: 4})
			}

		case engine.RuleDeref:
			ref := rx.A
			if ref.Tag() != core.Ref {
				ref = rx.B
			}
			def, found := book.ByIndex(ref.Val())
			if !found {
				return nil, engine.NewUnresolvedReference(ref.String())
			}
			p.Push(Instr{Op: OpAlloc, Count: uint32(len(def.Template.Nodes))})
		}

		p.Push(Instr{Op: OpInteract, A: rx.A, B: rx.B, Rule: rule, Label: interactLabel(net, rule, rx)})

		if freed := freedBy(rule, rx); freed > 0 {
			p.Push(Instr{Op: OpFree, Count: freed})
		}
	}
	return p, nil
}

// nodeSide returns the non-Dup port of a Copy pair.
func nodeSide(rx core.Redex) core.Port {
	if rx.A.Tag() == core.Dup {
		return rx.B
	}
	return rx.A
}

// interactLabel records the operator for Oper pairs; other rules carry
// no label in the IR.
func interactLabel(net *core.Net, rule engine.Rule, rx core.Redex) core.Label {
	if rule != engine.RuleOper {
		return 0
	}
	op2 := rx.A
	if op2.Tag() != core.Op2 {
		op2 = rx.B
	}
	return net.Node(op2.Val()).Label
}

// freedBy returns how many heap nodes a rule consumes.
func freedBy(rule engine.Rule, rx core.Redex) uint32 {
	switch rule {
	case engine.RuleAnni, engine.RuleCall, engine.RuleComm:
		return 2
	case engine.RuleOper:
		return 1
	case engine.RuleCopy:
		if nodeSide(rx).Tag().HasNode() {
			return 2
		}
		return 1
	case engine.RuleEras:
		other := rx.A
		if other.Tag() == core.Era {
			other = rx.B
		}
		if other.Tag().HasNode() {
			return 1
		}
	}
	return 0
}

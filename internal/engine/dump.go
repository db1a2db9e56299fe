package engine

import (
	"fmt"
	"strings"

	"github.com/weftvm/weft/internal/core"
)

// Dump renders the term reachable from the net's root as a
// deterministic s-expression. Two nets in the same normal form render
// identically regardless of node indices or the order redexes were
// processed, which makes the output suitable for golden files and for
// confluence comparisons.
func Dump(net *core.Net, book *core.Book) string {
	d := &dumper{net: net, book: book, wires: make(map[core.Port]int)}
	return d.show(net.Root(), 0)
}

const maxDumpDepth = 64

type dumper struct {
	net   *core.Net
	book  *core.Book
	wires map[core.Port]int
}

// wire assigns stable names to unbound wires in first-visit order, so
// isomorphic nets with different slot numbers print the same.
func (d *dumper) wire(p core.Port) string {
	id, ok := d.wires[p]
	if !ok {
		id = len(d.wires)
		d.wires[p] = id
	}
	return fmt.Sprintf("w%d", id)
}

func (d *dumper) show(p core.Port, depth int) string {
	if depth > maxDumpDepth {
		return "..."
	}
	p = d.net.Resolve(p)

	switch p.Tag() {
	case core.Var:
		return d.wire(p)
	case core.Num:
		return fmt.Sprintf("#%d", p.Val())
	case core.Era:
		return "*"
	case core.Ref:
		if def, ok := d.book.ByIndex(p.Val()); ok {
			return "@" + def.Name
		}
		return fmt.Sprintf("@#%d", p.Val())
	}

	n := d.net.Node(p.Val())
	p1 := d.show(n.P1, depth+1)
	p2 := d.show(n.P2, depth+1)

	var b strings.Builder
	switch p.Tag() {
	case core.Con:
		fmt.Fprintf(&b, "(C%d %s %s)", n.Label, p1, p2)
	case core.Dup:
		fmt.Fprintf(&b, "{D%d %s %s}", n.Label, p1, p2)
	case core.App:
		fmt.Fprintf(&b, "(! %s %s)", p1, p2)
	case core.Lam:
		fmt.Fprintf(&b, "(λ %s %s)", p1, p2)
	case core.Op2:
		fmt.Fprintf(&b, "($%s %s %s)", n.Label.Operator(), p1, p2)
	default:
		fmt.Fprintf(&b, "(%s %s %s)", p.Tag(), p1, p2)
	}
	return b.String()
}

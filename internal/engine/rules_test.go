package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftvm/weft/internal/core"
)

// reduceAll drives a net to a terminal state with default options.
func reduceAll(t *testing.T, net *core.Net, book *core.Book) State {
	t.Helper()
	r := NewReducer(net, book)
	state, err := r.Reduce(context.Background())
	require.NoError(t, err)
	return state
}

func TestClassify_FullMatrix(t *testing.T) {
	net := core.NewNet()
	c0 := net.AllocNode(core.Node{Label: 0})
	c1 := net.AllocNode(core.Node{Label: 1})
	d0 := net.AllocNode(core.Node{Label: 0})

	con0 := core.NewPort(core.Con, c0)
	con1 := core.NewPort(core.Con, c1)
	dup0 := core.NewPort(core.Dup, d0)
	lam := core.NewPort(core.Lam, net.AllocNode(core.Node{}))
	app := core.NewPort(core.App, net.AllocNode(core.Node{}))
	op2 := core.NewPort(core.Op2, net.AllocNode(core.Node{}))
	num := core.NewPort(core.Num, 5)
	era := core.NewPort(core.Era, 0)
	ref := core.NewPort(core.Ref, 0)
	wire := core.NewPort(core.Var, 2)

	cases := []struct {
		a, b core.Port
		want Rule
	}{
		{wire, con0, RuleLink},
		{num, wire, RuleLink},
		{con0, con0, RuleAnni},
		{con0, con1, RuleComm},
		{era, con0, RuleEras},
		{num, era, RuleEras},
		{era, ref, RuleEras}, // erasure wins over expansion
		{ref, lam, RuleDeref},
		{ref, num, RuleDeref},
		{app, lam, RuleCall},
		{lam, app, RuleCall},
		{dup0, lam, RuleCopy},
		{dup0, num, RuleCopy},
		{op2, num, RuleOper},
		{num, op2, RuleOper},
	}
	for _, tc := range cases {
		got, ok := Classify(net, tc.a, tc.b)
		require.True(t, ok, "%s-%s must classify", tc.a, tc.b)
		assert.Equal(t, tc.want, got, "%s-%s", tc.a, tc.b)
	}
}

func TestClassify_UnhandledPairsFault(t *testing.T) {
	net := core.NewNet()
	lam := core.NewPort(core.Lam, net.AllocNode(core.Node{}))
	num := core.NewPort(core.Num, 1)

	bad := [][2]core.Port{
		{num, num},
		{lam, lam},
		{lam, num},
	}
	for _, pair := range bad {
		_, ok := Classify(net, pair[0], pair[1])
		assert.False(t, ok, "%s-%s has no rule", pair[0], pair[1])
	}
}

func TestOper_AddTwoLiterals(t *testing.T) {
	// Num(5) against an addition Op2 holding Num(3) reduces to Numb(8).
	net := core.NewNet()
	book := core.NewBook()

	op := net.AllocNode(core.Node{
		P1:    core.NewPort(core.Num, 3),
		P2:    net.Root(),
		Label: core.OpLabel(core.OpAdd),
	})
	net.Enqueue(core.NewPort(core.Num, 5), core.NewPort(core.Op2, op))

	state := reduceAll(t, net, book)
	assert.Equal(t, StateNormalForm, state)
	assert.Equal(t, core.NewPort(core.Num, 8), net.Resolve(net.Root()))
}

func TestOper_RestagePreservesOperandOrder(t *testing.T) {
	// 5 - 3: the left operand arrives first, the right lands on the
	// wire afterwards. The flip bit must keep subtraction ordered.
	net := core.NewNet()
	book := core.NewBook()

	w := net.FreshVar()
	op := net.AllocNode(core.Node{
		P1:    w,
		P2:    net.Root(),
		Label: core.OpLabel(core.OpSub),
	})
	net.Enqueue(core.NewPort(core.Num, 5), core.NewPort(core.Op2, op))

	state := reduceAll(t, net, book)
	require.Equal(t, StateNormalForm, state, "re-staged operator waits on its wire")

	net.Link(core.NewPort(core.Num, 3), w)
	state = reduceAll(t, net, book)
	assert.Equal(t, StateNormalForm, state)
	assert.Equal(t, core.NewPort(core.Num, 2), net.Resolve(net.Root()))
}

func TestCall_BetaReducesIdentity(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()

	bind := net.FreshVar()
	lam := net.AllocNode(core.Node{P1: bind, P2: bind})
	app := net.AllocNode(core.Node{P1: core.NewPort(core.Num, 7), P2: net.Root()})
	net.Enqueue(core.NewPort(core.App, app), core.NewPort(core.Lam, lam))

	state := reduceAll(t, net, book)
	assert.Equal(t, StateNormalForm, state)
	assert.Equal(t, core.NewPort(core.Num, 7), net.Resolve(net.Root()))
}

func TestAnni_SameLabelConsWireThrough(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()

	c1 := net.AllocNode(core.Node{
		P1: core.NewPort(core.Num, 1),
		P2: core.NewPort(core.Num, 2),
	})
	c2 := net.AllocNode(core.Node{
		P1: net.Root(),
		P2: core.NewPort(core.Era, 0),
	})
	net.Enqueue(core.NewPort(core.Con, c1), core.NewPort(core.Con, c2))

	state := reduceAll(t, net, book)
	assert.Equal(t, StateNormalForm, state)
	assert.Equal(t, core.NewPort(core.Num, 1), net.Resolve(net.Root()), "aux 1 wires to aux 1")
	assert.Equal(t, uint64(2), net.Rewrites(), "one annihilation, one erasure")
}

func TestCopy_DupDuplicatesConOfLiterals(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()

	wa := net.FreshVar()
	wb := net.FreshVar()
	group := net.AllocNode(core.Node{P1: wa, P2: wb})
	net.SetRoot(core.NewPort(core.Con, group))

	dup := net.AllocNode(core.Node{P1: wa, P2: wb})
	con := net.AllocNode(core.Node{
		P1:    core.NewPort(core.Num, 1),
		P2:    core.NewPort(core.Num, 2),
		Label: 5,
	})
	net.Enqueue(core.NewPort(core.Dup, dup), core.NewPort(core.Con, con))

	state := reduceAll(t, net, book)
	assert.Equal(t, StateNormalForm, state)
	assert.Equal(t, "(C0 (C5 #1 #2) (C5 #1 #2))", Dump(net, book))
}

func TestEras_PropagatesThroughTree(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()

	leaf := net.AllocNode(core.Node{
		P1: core.NewPort(core.Num, 2),
		P2: core.NewPort(core.Num, 3),
	})
	top := net.AllocNode(core.Node{
		P1: core.NewPort(core.Num, 1),
		P2: core.NewPort(core.Con, leaf),
	})
	net.Enqueue(core.NewPort(core.Era, 0), core.NewPort(core.Con, top))

	state := reduceAll(t, net, book)
	assert.Equal(t, StateNormalForm, state)
	assert.Equal(t, uint64(2), net.FreedNodes(), "both nodes consumed")
	assert.Equal(t, uint64(5), net.Rewrites(), "two node erasures, three literal erasures")
}

func TestDeref_ExpandsDefinition(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()

	// id = (λ w w)
	idx := book.Insert(core.Def{
		Name:  "id",
		Arity: 1,
		Template: core.Template{
			Nodes: []core.Node{{P1: core.NewPort(core.Var, 0), P2: core.NewPort(core.Var, 0)}},
			Root:  core.NewPort(core.Lam, 0),
			Vars:  1,
		},
	})

	app := net.AllocNode(core.Node{P1: core.NewPort(core.Num, 4), P2: net.Root()})
	net.Enqueue(core.NewPort(core.Ref, idx), core.NewPort(core.App, app))

	state := reduceAll(t, net, book)
	assert.Equal(t, StateNormalForm, state)
	assert.Equal(t, core.NewPort(core.Num, 4), net.Resolve(net.Root()))
}

func TestDeref_UnknownDefinitionFaults(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()
	net.Enqueue(core.NewPort(core.Ref, 42), core.NewPort(core.Num, 1))

	r := NewReducer(net, book)
	state, err := r.Reduce(context.Background())
	assert.Equal(t, StateFault, state)
	assert.True(t, IsUnresolvedReference(err))
}

func TestInteract_MalformedPairFaults(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()
	net.Enqueue(core.NewPort(core.Num, 1), core.NewPort(core.Num, 2))

	r := NewReducer(net, book)
	state, err := r.Reduce(context.Background())
	assert.Equal(t, StateFault, state)
	assert.True(t, IsMalformedNet(err))
	assert.True(t, IsFault(err))
}

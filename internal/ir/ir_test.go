package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftvm/weft/internal/core"
	"github.com/weftvm/weft/internal/engine"
)

func TestProgram_PushCountsPairs(t *testing.T) {
	p := &Program{}
	p.Push(Instr{Op: OpAlloc, Count: 4})
	p.Push(Instr{Op: OpInteract, Rule: engine.RuleComm})
	p.Push(Instr{Op: OpFree, Count: 2})

	assert.Equal(t, 3, p.Len())
	assert.Equal(t, 1, p.Pairs)
	assert.False(t, p.Empty())
}

func TestLower_OperCarriesOperator(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()
	op := net.AllocNode(core.Node{
		P1:    core.NewPort(core.Num, 3),
		P2:    net.Root(),
		Label: core.OpLabel(core.OpMul),
	})
	batch := []core.Redex{{A: core.NewPort(core.Num, 5), B: core.NewPort(core.Op2, op)}}

	p, err := Lower(net, book, batch)
	require.NoError(t, err)
	require.Equal(t, 2, p.Len(), "interact plus free")
	assert.Equal(t, OpInteract, p.Instrs[0].Op)
	assert.Equal(t, engine.RuleOper, p.Instrs[0].Rule)
	assert.Equal(t, core.OpMul, p.Instrs[0].Label.Operator())
	assert.Equal(t, OpFree, p.Instrs[1].Op)
	assert.Equal(t, uint32(1), p.Instrs[1].Count)
}

func TestLower_CommFootprint(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()
	c0 := net.AllocNode(core.Node{Label: 0})
	c1 := net.AllocNode(core.Node{Label: 1})
	batch := []core.Redex{{A: core.NewPort(core.Con, c0), B: core.NewPort(core.Con, c1)}}

	p, err := Lower(net, book, batch)
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())
	assert.Equal(t, OpAlloc, p.Instrs[0].Op)
	assert.Equal(t, uint32(4), p.Instrs[0].Count)
	assert.Equal(t, engine.RuleComm, p.Instrs[1].Rule)
	assert.Equal(t, uint32(2), p.Instrs[2].Count)
}

func TestLower_DerefSizesFromBook(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()
	idx := book.Insert(core.Def{
		Name: "pair",
		Template: core.Template{
			Nodes: []core.Node{{}, {}, {}},
			Root:  core.NewPort(core.Con, 0),
		},
	})
	app := net.AllocNode(core.Node{})
	batch := []core.Redex{{A: core.NewPort(core.Ref, idx), B: core.NewPort(core.App, app)}}

	p, err := Lower(net, book, batch)
	require.NoError(t, err)
	require.GreaterOrEqual(t, p.Len(), 2)
	assert.Equal(t, OpAlloc, p.Instrs[0].Op)
	assert.Equal(t, uint32(3), p.Instrs[0].Count, "allocation sized by the template")
}

func TestLower_UnresolvedReferenceSurfaces(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()
	app := net.AllocNode(core.Node{})
	batch := []core.Redex{{A: core.NewPort(core.Ref, 9), B: core.NewPort(core.App, app)}}

	_, err := Lower(net, book, batch)
	assert.True(t, engine.IsUnresolvedReference(err))
}

func TestLower_MalformedPairSurfaces(t *testing.T) {
	net := core.NewNet()
	book := core.NewBook()
	batch := []core.Redex{{A: core.NewPort(core.Num, 1), B: core.NewPort(core.Num, 2)}}

	_, err := Lower(net, book, batch)
	assert.True(t, engine.IsMalformedNet(err))
}

func TestStructuralHash_IgnoresAddresses(t *testing.T) {
	build := func(nums [2]uint64) (*core.Net, []core.Redex) {
		net := core.NewNet()
		// Occupy differing numbers of slots so node indices diverge.
		for i := uint64(0); i < nums[0]%3; i++ {
			net.AllocNode(core.Node{})
		}
		op := net.AllocNode(core.Node{
			P1:    core.NewPort(core.Num, nums[1]),
			P2:    net.Root(),
			Label: core.OpLabel(core.OpAdd),
		})
		return net, []core.Redex{{A: core.NewPort(core.Num, nums[0]), B: core.NewPort(core.Op2, op)}}
	}

	book := core.NewBook()
	netA, batchA := build([2]uint64{5, 3})
	netB, batchB := build([2]uint64{8, 1})

	pa, err := Lower(netA, book, batchA)
	require.NoError(t, err)
	pb, err := Lower(netB, book, batchB)
	require.NoError(t, err)

	assert.Equal(t, StructuralHash(pa), StructuralHash(pb),
		"same rewrite structure must share one compiled kernel")
}

func TestStructuralHash_DistinguishesOperators(t *testing.T) {
	mk := func(op core.Op) *Program {
		p := &Program{}
		p.Push(Instr{Op: OpInteract, Rule: engine.RuleOper, Label: core.OpLabel(op)})
		return p
	}
	assert.NotEqual(t, StructuralHash(mk(core.OpAdd)), StructuralHash(mk(core.OpDiv)))
}

func TestStructuralHash_DistinguishesShapes(t *testing.T) {
	p1 := &Program{}
	p1.Push(Instr{Op: OpAlloc, Count: 4})
	p2 := &Program{}
	p2.Push(Instr{Op: OpAlloc, Count: 2})
	assert.NotEqual(t, StructuralHash(p1), StructuralHash(p2))
}

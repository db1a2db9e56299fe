// Package ir defines the backend-neutral instruction form a redex
// batch is lowered into before compilation. A program carries four
// primitive instruction kinds: wire links, node allocations, node
// frees, and interaction-pair references. Backends consume programs;
// the kernel cache keys them by structural hash.
package ir

import (
	"github.com/weftvm/weft/internal/core"
	"github.com/weftvm/weft/internal/engine"
)

// OpCode is an IR instruction kind.
type OpCode uint8

const (
	// OpLink joins two wire endpoints.
	OpLink OpCode = iota
	// OpAlloc reserves nodes for the following interaction.
	OpAlloc
	// OpFree releases nodes consumed by the preceding interaction.
	OpFree
	// OpInteract applies one interaction rule to a referenced pair.
	OpInteract

	opCodeCount
)

var opCodeNames = [opCodeCount]string{"LINK", "ALLOC", "FREE", "INTERACT"}

// String returns the opcode mnemonic.
func (o OpCode) String() string {
	if int(o) < len(opCodeNames) {
		return opCodeNames[o]
	}
	return "OP?"
}

// Instr is one IR instruction. Field use depends on Op:
// Link uses A and B as wire ends; Interact uses A and B as the active
// pair plus Rule and Label; Alloc and Free use Count.
type Instr struct {
	Op    OpCode
	A, B  core.Port
	Rule  engine.Rule
	Label core.Label
	Count uint32
}

// Program is a lowered redex batch.
type Program struct {
	Instrs []Instr
	// Pairs is the number of interactions in the program; it sizes the
	// backend launch shape.
	Pairs int
}

// Push appends an instruction.
func (p *Program) Push(i Instr) {
	p.Instrs = append(p.Instrs, i)
	if i.Op == OpInteract {
		p.Pairs++
	}
}

// Len returns the instruction count.
func (p *Program) Len() int { return len(p.Instrs) }

// Empty reports whether the program holds no instructions.
func (p *Program) Empty() bool { return len(p.Instrs) == 0 }

package core

import "fmt"

// Tag identifies the species of cell a Port refers to.
type Tag uint8

const (
	// Var references a substitution slot (wire endpoint).
	Var Tag = iota
	// Ref references a named Book definition, expanded lazily.
	Ref
	// Num carries an inline 60-bit numeric literal.
	Num
	// Con is a binary constructor cell; its label distinguishes families.
	Con
	// Dup is a duplication cell; its label distinguishes duplication zones.
	Dup
	// Era is an eraser; it has no auxiliary ports.
	Era
	// App is a function application cell (argument, result).
	App
	// Lam is a lambda cell (binder, body).
	Lam
	// Op2 is a binary numeric operator cell; its label carries the operator.
	Op2

	tagCount
)

var tagNames = [tagCount]string{"VAR", "REF", "NUM", "CON", "DUP", "ERA", "APP", "LAM", "OP2"}

// String returns the canonical upper-case tag name.
func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("TAG(%d)", uint8(t))
}

// Port is a tagged reference packed into one 64-bit word:
// the tag in the top 4 bits, a 60-bit value in the rest.
//
// The value field addresses a node in a Net (Con, Dup, App, Lam, Op2),
// a substitution slot (Var), a Book definition index (Ref), or holds an
// inline numeric literal (Num). Era carries no value.
//
// Packing is total: the value is masked to 60 bits, never rejected.
// Alignment and bounds guards belong to the allocator layer, not here.
type Port uint64

const (
	tagShift = 60
	valMask  = (1 << tagShift) - 1
)

// NewPort packs a tag and value into a Port. Oversized values truncate
// deterministically to the 60-bit field.
func NewPort(tag Tag, val uint64) Port {
	return Port(uint64(tag)<<tagShift | val&valMask)
}

// Tag returns the Port's tag.
func (p Port) Tag() Tag { return Tag(p >> tagShift) }

// Val returns the Port's 60-bit value field.
func (p Port) Val() uint64 { return uint64(p) & valMask }

// None is the zero Port. It is a Var referencing slot 0, which Nets
// never hand out: slot 0 is reserved so that None can act as the
// "unbound" sentinel in substitution slots.
const None Port = 0

// IsNone reports whether p is the reserved sentinel.
func (p Port) IsNone() bool { return p == None }

// String renders the port as TAG:value, e.g. "CON:7" or "NUM:42".
func (p Port) String() string {
	return fmt.Sprintf("%s:%d", p.Tag(), p.Val())
}

// HasNode reports whether the tag addresses a two-port node in the heap.
func (t Tag) HasNode() bool {
	switch t {
	case Con, Dup, App, Lam, Op2:
		return true
	}
	return false
}

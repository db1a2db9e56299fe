package core

// Numb is the runtime's 60-bit unsigned numeric value.
//
// All arithmetic is defined modulo 2^60: results wrap rather than
// overflow, and division by the zero Numb yields the zero Numb. Every
// operator is a total function; no input faults.
type Numb uint64

// NumbMask is the 60-bit magnitude mask shared with the Port value field.
const NumbMask = valMask

// NewNumb masks v to 60 bits.
func NewNumb(v uint64) Numb { return Numb(v & NumbMask) }

// Uint returns the magnitude as a uint64.
func (n Numb) Uint() uint64 { return uint64(n) }

// Add returns n + m mod 2^60.
func (n Numb) Add(m Numb) Numb { return NewNumb(uint64(n) + uint64(m)) }

// Sub returns n - m mod 2^60.
func (n Numb) Sub(m Numb) Numb { return NewNumb(uint64(n) - uint64(m)) }

// Mul returns n * m mod 2^60.
func (n Numb) Mul(m Numb) Numb { return NewNumb(uint64(n) * uint64(m)) }

// Div returns n / m, or the zero Numb when m is zero.
func (n Numb) Div(m Numb) Numb {
	if m == 0 {
		return 0
	}
	return NewNumb(uint64(n) / uint64(m))
}

// Op identifies a binary numeric operator carried in an Op2 label.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv

	opCount
)

var opNames = [opCount]string{"ADD", "SUB", "MUL", "DIV"}

// String returns the operator mnemonic.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "OP?"
}

// Valid reports whether o names a defined operator.
func (o Op) Valid() bool { return o < opCount }

// Apply evaluates the operator over two operands. Total for valid
// operators; invalid operators must be rejected before reaching here.
func (o Op) Apply(a, b Numb) Numb {
	switch o {
	case OpAdd:
		return a.Add(b)
	case OpSub:
		return a.Sub(b)
	case OpMul:
		return a.Mul(b)
	case OpDiv:
		return a.Div(b)
	}
	return 0
}

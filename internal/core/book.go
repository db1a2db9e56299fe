package core

// Template is the body of a Book definition: a self-contained net
// fragment with local node indices and local wire slots 0..Vars-1.
// A Ref port dereferences into a fresh instantiation of its template.
type Template struct {
	Nodes   []Node
	Redexes []Redex
	Root    Port
	Vars    int
}

// Def is a named, reusable net template. Arity is advisory metadata
// consumed by the scheduler and lowering layers for sizing; the Book
// does not enforce it.
type Def struct {
	Name     string
	Arity    uint32
	Template Template
}

// Book maps definition names to templates. It is populated at load
// time and read-only during evaluation. Ref ports address definitions
// by index, so indices are stable across overwrites: inserting an
// existing name replaces the definition in place (last-write-wins).
type Book struct {
	defs  []Def
	index map[string]uint64
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{index: make(map[string]uint64)}
}

// Insert adds or replaces a definition. The previous definition of the
// same name, if any, is overwritten without merging, and its index is
// retained so existing Ref ports stay valid.
func (b *Book) Insert(def Def) uint64 {
	if i, ok := b.index[def.Name]; ok {
		b.defs[i] = def
		return i
	}
	i := uint64(len(b.defs))
	b.defs = append(b.defs, def)
	b.index[def.Name] = i
	return i
}

// Get returns the definition for a name, or ok=false if absent.
func (b *Book) Get(name string) (*Def, bool) {
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return &b.defs[i], true
}

// ByIndex returns the definition a Ref port's value addresses.
func (b *Book) ByIndex(i uint64) (*Def, bool) {
	if i >= uint64(len(b.defs)) {
		return nil, false
	}
	return &b.defs[i], true
}

// IndexOf returns the Ref index for a name.
func (b *Book) IndexOf(name string) (uint64, bool) {
	i, ok := b.index[name]
	return i, ok
}

// Len returns the number of definitions.
func (b *Book) Len() int { return len(b.defs) }

// Names returns definition names in insertion order.
func (b *Book) Names() []string {
	names := make([]string, len(b.defs))
	for i, d := range b.defs {
		names[i] = d.Name
	}
	return names
}

// Package bookio reads and writes book files: YAML documents listing
// named definitions with their net templates. Loading validates the
// document against a CUE schema, resolves @name references to stable
// indices, and normalizes definition names to NFC so a name compares
// equal no matter how the editor composed its accents.
package bookio

import (
	"fmt"
	"io"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/weftvm/weft/internal/core"
)

type fileBook struct {
	Defs []fileDef `yaml:"defs"`
}

type fileDef struct {
	Name  string  `yaml:"name"`
	Arity uint32  `yaml:"arity"`
	Net   fileNet `yaml:"net"`
}

type fileNet struct {
	Vars    int         `yaml:"vars"`
	Root    string      `yaml:"root"`
	Nodes   []fileNode  `yaml:"nodes,omitempty"`
	Redexes []fileRedex `yaml:"redexes,omitempty"`
}

type fileNode struct {
	Label uint16 `yaml:"label,omitempty"`
	P1    string `yaml:"p1"`
	P2    string `yaml:"p2"`
}

type fileRedex struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

func normalizeName(name string) string {
	return norm.NFC.String(name)
}

// Load parses, validates, and assembles a book. References resolve by
// name across the whole file, so a definition may refer to one that
// appears later.
func Load(r io.Reader) (*core.Book, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read book: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse book: %w", err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	var file fileBook
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse book: %w", err)
	}

	// First pass fixes the index of every name so forward references
	// resolve; second pass builds the templates.
	book := core.NewBook()
	index := make(map[string]uint64, len(file.Defs))
	for _, fd := range file.Defs {
		name := normalizeName(fd.Name)
		index[name] = book.Insert(core.Def{Name: name, Arity: fd.Arity})
	}

	for _, fd := range file.Defs {
		name := normalizeName(fd.Name)
		tmpl, err := buildTemplate(fd.Net, index)
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", name, err)
		}
		book.Insert(core.Def{Name: name, Arity: fd.Arity, Template: *tmpl})
	}
	return book, nil
}

func buildTemplate(fn fileNet, index map[string]uint64) (*core.Template, error) {
	tmpl := &core.Template{Vars: fn.Vars}

	check := func(p core.Port) error {
		if p.Tag() == core.Var && p.Val() >= uint64(fn.Vars) {
			return fmt.Errorf("port %s exceeds vars bound %d", p, fn.Vars)
		}
		if p.Tag().HasNode() && p.Val() >= uint64(len(fn.Nodes)) {
			return fmt.Errorf("port %s exceeds node count %d", p, len(fn.Nodes))
		}
		return nil
	}
	parse := func(s string) (core.Port, error) {
		p, err := parsePort(s, index)
		if err != nil {
			return core.None, err
		}
		return p, check(p)
	}

	root, err := parse(fn.Root)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}
	tmpl.Root = root

	for i, n := range fn.Nodes {
		p1, err := parse(n.P1)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		p2, err := parse(n.P2)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		tmpl.Nodes = append(tmpl.Nodes, core.Node{P1: p1, P2: p2, Label: core.Label(n.Label)})
	}

	for i, rx := range fn.Redexes {
		a, err := parse(rx.A)
		if err != nil {
			return nil, fmt.Errorf("redex %d: %w", i, err)
		}
		b, err := parse(rx.B)
		if err != nil {
			return nil, fmt.Errorf("redex %d: %w", i, err)
		}
		tmpl.Redexes = append(tmpl.Redexes, core.Redex{A: a, B: b})
	}
	return tmpl, nil
}

// Store writes a book as YAML. Loading the output reproduces the book
// exactly, including definition order.
func Store(w io.Writer, book *core.Book) error {
	var file fileBook
	for _, name := range book.Names() {
		def, _ := book.Get(name)
		fn, err := fileNetOf(&def.Template, book)
		if err != nil {
			return fmt.Errorf("definition %q: %w", name, err)
		}
		file.Defs = append(file.Defs, fileDef{Name: def.Name, Arity: def.Arity, Net: *fn})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("write book: %w", err)
	}
	return enc.Close()
}

func fileNetOf(t *core.Template, book *core.Book) (*fileNet, error) {
	fn := &fileNet{Vars: t.Vars}

	root, err := formatPort(t.Root, book)
	if err != nil {
		return nil, err
	}
	fn.Root = root

	for _, n := range t.Nodes {
		p1, err := formatPort(n.P1, book)
		if err != nil {
			return nil, err
		}
		p2, err := formatPort(n.P2, book)
		if err != nil {
			return nil, err
		}
		fn.Nodes = append(fn.Nodes, fileNode{Label: uint16(n.Label), P1: p1, P2: p2})
	}

	for _, rx := range t.Redexes {
		a, err := formatPort(rx.A, book)
		if err != nil {
			return nil, err
		}
		b, err := formatPort(rx.B, book)
		if err != nil {
			return nil, err
		}
		fn.Redexes = append(fn.Redexes, fileRedex{A: a, B: b})
	}
	return fn, nil
}

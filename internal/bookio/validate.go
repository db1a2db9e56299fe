package bookio

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// bookSchema constrains a decoded book document before any template is
// built, so malformed files fail with a field path instead of a panic
// deep in net construction.
const bookSchema = `
#Port: =~"^((VAR|NUM|CON|DUP|APP|LAM|OP2):[0-9]+|ERA|@[^@:\\s]+)$"

#Node: {
	label?: int & >=0 & <=65535
	p1:     #Port
	p2:     #Port
}

#Redex: {
	a: #Port
	b: #Port
}

#Net: {
	vars:     int & >=0
	root:     #Port
	nodes?:   [...#Node]
	redexes?: [...#Redex]
}

#Def: {
	name:  string & !=""
	arity: int & >=0
	net:   #Net
}

defs: [...#Def]
`

// validateDocument checks a raw YAML document against the book schema.
func validateDocument(raw any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(bookSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}
	unified := schema.Unify(ctx.Encode(raw))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("book does not match schema: %s", cueerrors.Details(err, nil))
	}
	return nil
}

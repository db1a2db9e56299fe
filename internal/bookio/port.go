package bookio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/weftvm/weft/internal/core"
)

// Port text grammar:
//
//	VAR:3 NUM:42 CON:0 DUP:1 APP:2 LAM:0 OP2:4   tag and value
//	ERA                                          no value
//	@name                                        definition reference
//
// References travel by name so a book file stays valid when its
// definitions are reordered; indices are assigned at load time.

var tagByName = map[string]core.Tag{
	"VAR": core.Var,
	"NUM": core.Num,
	"CON": core.Con,
	"DUP": core.Dup,
	"APP": core.App,
	"LAM": core.Lam,
	"OP2": core.Op2,
}

func parsePort(s string, index map[string]uint64) (core.Port, error) {
	if s == "ERA" {
		return core.NewPort(core.Era, 0), nil
	}
	if name, ok := strings.CutPrefix(s, "@"); ok {
		i, ok := index[normalizeName(name)]
		if !ok {
			return core.None, fmt.Errorf("port %q references unknown definition", s)
		}
		return core.NewPort(core.Ref, i), nil
	}
	tagStr, valStr, ok := strings.Cut(s, ":")
	if !ok {
		return core.None, fmt.Errorf("port %q: want TAG:value, ERA, or @name", s)
	}
	tag, ok := tagByName[tagStr]
	if !ok {
		return core.None, fmt.Errorf("port %q: unknown tag %q", s, tagStr)
	}
	val, err := strconv.ParseUint(valStr, 10, 60)
	if err != nil {
		return core.None, fmt.Errorf("port %q: %w", s, err)
	}
	return core.NewPort(tag, val), nil
}

func formatPort(p core.Port, book *core.Book) (string, error) {
	switch p.Tag() {
	case core.Era:
		return "ERA", nil
	case core.Ref:
		def, ok := book.ByIndex(p.Val())
		if !ok {
			return "", fmt.Errorf("ref port %s addresses no definition", p)
		}
		return "@" + def.Name, nil
	default:
		return p.String(), nil
	}
}

package frontend

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/dshills/lcmil/internal/ir"
)

// FixtureFrontend loads a pre-typed MIL program from a JSON fixture,
// mirroring the teacher's own JSON-in boundary (internal/ast/types.go's
// Module, loaded by every cmd/alas-* binary via encoding/json) rather
// than inventing one. It exists because a real LC lexer/parser/type
// checker is out of scope (spec.md §1): tests and cmd/milc need a
// concrete way to feed the pass driver a typed program, and a fixed
// JSON shape with this package's own resolver is the smallest faithful
// substitute that does not pretend to parse LC source.
type FixtureFrontend struct{}

// ParseAndCheck decodes src as a fixtureModule, using path only to
// label error messages. Parse
// errors (malformed JSON, a dangling name reference) are returned as
// plain errors, not internal errors: they are mistakes in the fixture
// being fed in, the same category spec.md §7.2 assigns to a real
// frontend's parse/type errors.
func (FixtureFrontend) ParseAndCheck(path string, src []byte) (TypedProgram, error) {
	var fm fixtureModule
	if err := json.Unmarshal(src, &fm); err != nil {
		return nil, errors.Wrapf(err, "frontend: %s: invalid fixture JSON", path)
	}
	prog, layouts, err := fm.resolve()
	if err != nil {
		return nil, errors.Wrapf(err, "frontend: %s", path)
	}
	return NewTypedProgramWithLayouts(prog, layouts), nil
}

// --- JSON DTO shapes -------------------------------------------------
//
// Mirrors the teacher's tagged-union-by-string-field convention
// (ast.Statement/ast.Expression's "type"/"op" discriminators) rather
// than Go's native interface marshaling, which cannot round-trip MIL's
// pointer-identity Temps or forward references between blocks,
// closures and top-levels declared in any order.

type fixtureModule struct {
	EntryNames []string         `json:"entryNames"`
	DataNames  []string         `json:"dataNames,omitempty"`
	Cfuns      []fixtureCfun    `json:"cfuns,omitempty"`
	Blocks     []fixtureBlock   `json:"blocks"`
	TopLevels  []fixtureTop     `json:"topLevels,omitempty"`
	Closures   []fixtureClosure `json:"closures,omitempty"`
}

type fixtureCfun struct {
	ID        string          `json:"id"`
	DataName  string          `json:"dataName"`
	TagIndex  int             `json:"tagIndex"`
	AllocType string          `json:"allocType"`
	Layout    *fixtureLayout  `json:"layout,omitempty"`
}

// fixtureLayout is a constructor's packed-word representation
// (reptrans.CfunLayout), supplied directly by the fixture since the
// real bitdata layout assignment is the type checker's job (out of
// core scope; see fixture.go's package doc). Only cfuns with
// AllocType "bitdata" need one: a "struct" cfun is left for a future
// heap-allocation lowering reptrans does not yet cover.
type fixtureLayout struct {
	WordBits  int                   `json:"wordBits"`
	TagOffset int                   `json:"tagOffset"`
	TagWidth  int                   `json:"tagWidth"`
	TagValue  int64                 `json:"tagValue"`
	Fields    []fixtureFieldLayout  `json:"fields,omitempty"`
}

type fixtureFieldLayout struct {
	Offset int `json:"offset"`
	Width  int `json:"width"`
}

type fixtureBlock struct {
	Name   string          `json:"name"`
	Params []fixtureTemp   `json:"params,omitempty"`
	Body   fixtureCode     `json:"body"`
}

type fixtureTop struct {
	Lhs  []fixtureTopLhs `json:"lhs"`
	Tail fixtureTail     `json:"tail"`
}

type fixtureTopLhs struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type fixtureClosure struct {
	Name   string        `json:"name"`
	Stored []fixtureTemp `json:"stored,omitempty"`
	Params []fixtureTemp `json:"params,omitempty"`
	Body   fixtureTail   `json:"body"`
}

type fixtureTemp struct {
	Hint string `json:"hint"`
	Type string `json:"type"`
}

// fixtureCode and fixtureTail are decoded generically (json.RawMessage
// bodies dispatched on a "kind" discriminator) since Code/Tail are
// closed interfaces with no single Go struct shape to decode into
// directly.
type fixtureCode struct {
	Kind string          `json:"kind"`
	Raw  json.RawMessage `json:"-"`
}

func (c *fixtureCode) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	c.Kind = head.Kind
	c.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type fixtureBindCode struct {
	Vars []fixtureTemp `json:"vars"`
	Tail fixtureTail   `json:"tail"`
	Next fixtureCode   `json:"next"`
}

type fixtureDoneCode struct {
	Tail fixtureTail `json:"tail"`
}

type fixtureIfCode struct {
	Cond string          `json:"cond"`
	Then fixtureBlockRef `json:"then"`
	Else fixtureBlockRef `json:"else"`
}

type fixtureCaseCode struct {
	Scrutinee string              `json:"scrutinee"`
	Alts      []fixtureCaseAlt    `json:"alts"`
	Default   *fixtureBlockRef    `json:"default,omitempty"`
}

type fixtureCaseAlt struct {
	Cfun string          `json:"cfun"`
	Call fixtureBlockRef `json:"call"`
}

type fixtureBlockRef struct {
	Block string          `json:"block"`
	Args  []fixtureAtom   `json:"args,omitempty"`
}

type fixtureTail struct {
	Kind string          `json:"kind"`
	Raw  json.RawMessage `json:"-"`
}

func (t *fixtureTail) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	t.Kind = head.Kind
	t.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type fixtureReturnTail struct {
	Atoms []fixtureAtom `json:"atoms"`
}

type fixturePrimTail struct {
	ID   string        `json:"id"`
	Args []fixtureAtom `json:"args"`
}

type fixtureBlockCallTail struct {
	Block string        `json:"block"`
	Args  []fixtureAtom `json:"args"`
}

type fixtureDataAllocTail struct {
	Cfun string        `json:"cfun"`
	Args []fixtureAtom `json:"args"`
}

type fixtureClosAllocTail struct {
	Closure string        `json:"closure"`
	Args    []fixtureAtom `json:"args"`
}

type fixtureEnterTail struct {
	Func fixtureAtom   `json:"func"`
	Args []fixtureAtom `json:"args"`
}

type fixtureSelTail struct {
	Cfun string      `json:"cfun"`
	N    int         `json:"n"`
	Atom fixtureAtom `json:"atom"`
}

type fixtureAtom struct {
	Kind  string `json:"kind"`
	Name  string `json:"name,omitempty"`  // temp | topref | global
	Value int64  `json:"value,omitempty"` // int
	Bits  int    `json:"bits,omitempty"`  // int
	Flag  bool   `json:"flag,omitempty"`  // flag
	Index int    `json:"index,omitempty"` // topref
}

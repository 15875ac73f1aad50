// Package frontend defines the boundary between this core and the
// external LC lexer/parser/type-checker (spec.md §1/§6: kind and type
// inference are out of core scope). The core only ever consumes a
// TypedProgram; how one gets built is a Frontend's concern.
package frontend

import (
	"github.com/dshills/lcmil/internal/ir"
	"github.com/dshills/lcmil/internal/reptrans"
)

// TypedProgram is an already lexed, parsed and type-checked program
// ready for the pass driver: every Temp already carries its real MIL
// Type, every Block's arity already matches its callers.
type TypedProgram interface {
	TopLevels() []*ir.TopLevel
	Blocks() []*ir.Block
	EntryPoints() []*ir.Block
}

// Frontend turns source text into a TypedProgram, or a recoverable
// parse/type error (spec.md §7.2 distinguishes these from this core's
// own internal errors; see internal/diag).
type Frontend interface {
	ParseAndCheck(path string, src []byte) (TypedProgram, error)
}

// programView adapts an *ir.Program (the arena every real loader
// eventually builds, fixture-based or otherwise) to TypedProgram. It
// also carries the bitdata layouts a real type checker would assign
// (out of core scope), so a Frontend that has them (FixtureFrontend)
// can hand them to internal/reptrans without widening the
// TypedProgram interface every other caller has to satisfy.
type programView struct {
	prog    *ir.Program
	layouts reptrans.Layouts
}

// NewTypedProgram wraps an already-built arena as a TypedProgram, with
// no bitdata layouts attached.
func NewTypedProgram(prog *ir.Program) TypedProgram {
	return &programView{prog: prog}
}

// NewTypedProgramWithLayouts is NewTypedProgram plus the bitdata
// layouts internal/reptrans needs to lower this program's
// constructors.
func NewTypedProgramWithLayouts(prog *ir.Program, layouts reptrans.Layouts) TypedProgram {
	return &programView{prog: prog, layouts: layouts}
}

func (v *programView) TopLevels() []*ir.TopLevel { return v.prog.TopLevels }
func (v *programView) Blocks() []*ir.Block        { return v.prog.Blocks }
func (v *programView) EntryPoints() []*ir.Block   { return v.prog.EntryBlocks() }

// Program returns the underlying arena, for callers (cmd/milc) that
// need more than TypedProgram's narrow view — e.g. the Cfuns/Closures
// internal/reptrans and internal/llvmgen also need.
func Program(tp TypedProgram) *ir.Program {
	if v, ok := tp.(*programView); ok {
		return v.prog
	}
	return nil
}

// Layouts returns the bitdata layouts attached by
// NewTypedProgramWithLayouts, or nil if tp carries none.
func Layouts(tp TypedProgram) reptrans.Layouts {
	if v, ok := tp.(*programView); ok {
		return v.layouts
	}
	return nil
}

// Package rewrite implements the fact-driven peephole rewriter over
// primitive calls: the dense algebraic core of spec.md §4.3. Rewrite
// is the single entry point; everything else in this package is a
// helper family keyed on argument shape (literal / known-tail /
// opaque atom), per spec.md §9's guidance to keep each dispatch arm
// short.
package rewrite

import (
	"github.com/dshills/lcmil/internal/facts"
	"github.com/dshills/lcmil/internal/ir"
)

// WordSize is the machine word width in bits used to normalize shift
// amounts (spec.md §9 Open Question (b)) and to decide when a
// composite shift collapses to zero.
const WordSize = 64

// Rewrite returns the code fragment that should replace tail, given
// the facts visible at this point on the spine, or ok=false if no
// rewrite applies. table is the program's primitive interner, used to
// resolve the canonical *ir.Prim for an identity substituted in by a
// rewrite (e.g. bnot(eq x y) -> neq x y). The caller splices the
// returned Code in place of Done(tail) (or the right-hand side of the
// enclosing Bind).
//
// Per spec.md §7: when applicability is uncertain, every helper in
// this package returns "no rewrite" rather than guessing; nothing here
// ever produces a fragment that could violate scoping or arity.
func Rewrite(tail ir.Tail, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	pc, ok := tail.(ir.PrimCall)
	if !ok {
		return nil, false
	}
	pc = normalizeShiftAmount(pc)

	switch pc.Prim.Arity {
	case 1:
		return rewriteUnary(pc, f, table)
	case 2:
		if pc.Prim.ID == ir.PLoad || pc.Prim.ID == ir.PStore {
			return rewriteAddressing(pc, f, table)
		}
		return rewriteBinary(pc, f, table)
	default:
		if pc.Prim.ID == ir.PLoad || pc.Prim.ID == ir.PStore {
			return rewriteAddressing(pc, f, table)
		}
		return nil, false
	}
}

// normalizeShiftAmount reduces a literal shl/lshr/ashr amount modulo
// WordSize exactly once, before any fact lookup runs, resolving
// spec.md §9 Open Question (b) (the source normalizes both before and
// after fact lookup, risking double normalization).
func normalizeShiftAmount(pc ir.PrimCall) ir.PrimCall {
	switch pc.Prim.ID {
	case ir.PShl, ir.PLShr, ir.PAShr:
	default:
		return pc
	}
	if len(pc.Args) != 2 {
		return pc
	}
	amt, ok := ir.AsIntConst(pc.Args[1])
	if !ok {
		return pc
	}
	norm := amt % WordSize
	if norm < 0 {
		norm += WordSize
	}
	if norm == amt {
		return pc
	}
	args := append([]ir.Atom(nil), pc.Args...)
	args[1] = ir.IntConst{Value: norm}
	return ir.PrimCall{Prim: pc.Prim, Args: args}
}

// doneTail wraps a single replacement tail as a one-binding-free
// fragment (no intermediate Binds needed).
func doneTail(t ir.Tail) ir.Code { return ir.Done{Tail: t} }

func foldedInt(v int64) ir.Code { return doneTail(ir.Return{Atoms: []ir.Atom{ir.IntConst{Value: v}}}) }
func foldedFlag(v bool) ir.Code {
	return doneTail(ir.Return{Atoms: []ir.Atom{ir.FlagConst{Value: v}}})
}

func primCall(p *ir.Prim, args ...ir.Atom) ir.Tail {
	return ir.PrimCall{Prim: p, Args: args}
}

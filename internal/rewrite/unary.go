package rewrite

import (
	"github.com/dshills/lcmil/internal/facts"
	"github.com/dshills/lcmil/internal/ir"
)

// relationalDual maps a relation primitive to the primitive computing
// its logical negation (spec.md §4.3 point 1: "relational inversion").
var relationalDual = map[ir.PrimID]ir.PrimID{
	ir.PEq:  ir.PNeq,
	ir.PNeq: ir.PEq,
	ir.PLt:  ir.PGte,
	ir.PGte: ir.PLt,
	ir.PLte: ir.PGt,
	ir.PGt:  ir.PLte,
}

// rewriteUnary handles the unary primitives bnot, not, neg,
// flagToWord: constant folding when the argument is a literal, else
// fact-driven involution / relational inversion / arithmetic
// involution (spec.md §4.3 point 1).
func rewriteUnary(pc ir.PrimCall, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	arg := pc.Args[0]

	switch pc.Prim.ID {
	case ir.PBNot:
		if v, ok := arg.(ir.FlagConst); ok {
			return foldedFlag(!v.Value), true
		}
		if args, ok := facts.LookupPrim(f, arg, ir.PBNot); ok {
			// bnot(bnot x) = x
			return doneTail(ir.Return{Atoms: []ir.Atom{args[0]}}), true
		}
		if tail, ok := facts.Lookup(f, arg); ok {
			if pcInner, ok := tail.(ir.PrimCall); ok {
				if dualID, ok := relationalDual[pcInner.Prim.ID]; ok {
					dual := table.Lookup(dualID)
					if dual != nil {
						return doneTail(primCall(dual, pcInner.Args...)), true
					}
				}
			}
		}
		return nil, false

	case ir.PNot:
		if v, ok := ir.AsIntConst(arg); ok {
			return foldedInt(^v), true
		}
		if args, ok := facts.LookupPrim(f, arg, ir.PNot); ok {
			// not(not x) = x
			return doneTail(ir.Return{Atoms: []ir.Atom{args[0]}}), true
		}
		return nil, false

	case ir.PNeg:
		if v, ok := ir.AsIntConst(arg); ok {
			return foldedInt(-v), true
		}
		if args, ok := facts.LookupPrim(f, arg, ir.PNeg); ok {
			// neg(neg x) = x
			return doneTail(ir.Return{Atoms: []ir.Atom{args[0]}}), true
		}
		if args, ok := facts.LookupPrim(f, arg, ir.PSub); ok {
			// neg(x - y) = y - x
			sub := table.Lookup(ir.PSub)
			return doneTail(primCall(sub, args[1], args[0])), true
		}
		return nil, false

	case ir.PFlagToWord:
		if v, ok := arg.(ir.FlagConst); ok {
			if v.Value {
				return foldedInt(1), true
			}
			return foldedInt(0), true
		}
		return nil, false
	}
	return nil, false
}

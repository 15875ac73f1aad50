package rewrite

import (
	"github.com/dshills/lcmil/internal/facts"
	"github.com/dshills/lcmil/internal/ir"
)

// associative is the set of primitives commuteRearrange applies to
// (spec.md §4.3 point 4, "commutative/associative rearrangement").
var associative = map[ir.PrimID]bool{
	ir.PAdd: true, ir.PMul: true, ir.PAnd: true, ir.POr: true, ir.PXor: true,
}

// distributivePartner names, for each of {and, or}, the other
// primitive that distributes with it (spec.md §4.3 point 4,
// "distributive rearrangement").
var distributivePartner = map[ir.PrimID]ir.PrimID{
	ir.PAnd: ir.POr,
	ir.POr:  ir.PAnd,
}

// deMorganDual names, for each of {and, or}, the dual it becomes under
// a surrounding bitwise not (spec.md §4.3 point 4, "deMorgan").
var deMorganDual = map[ir.PrimID]ir.PrimID{
	ir.PAnd: ir.POr,
	ir.POr:  ir.PAnd,
}

// rewriteBinaryVars handles binary(x, y) where neither operand is a
// literal (spec.md §4.3 point 4): commutative/associative
// rearrangement, distribution, deMorgan, annihilation/idempotence, and
// multiplication-sum fusion, each consulting facts on x and/or y.
func rewriteBinaryVars(id ir.PrimID, x, y ir.Atom, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	if code, ok := rewriteAnnihilation(id, x, y, table); ok {
		return code, true
	}
	if code, ok := rewriteMulSumFusion(id, x, y, f, table); ok {
		return code, true
	}
	if code, ok := rewriteDeMorgan(id, x, y, f, table); ok {
		return code, true
	}
	if code, ok := rewriteDistribute(id, x, y, f, table); ok {
		return code, true
	}
	if code, ok := rewriteCommuteRearrange(id, x, y, f, table); ok {
		return code, true
	}
	return nil, false
}

// rewriteAnnihilation covers x-x=0, x^x=0, x&x=x, x|x=x, x+x -> x*2.
func rewriteAnnihilation(id ir.PrimID, x, y ir.Atom, table *ir.PrimTable) (ir.Code, bool) {
	if !ir.AtomEqual(x, y) {
		return nil, false
	}
	switch id {
	case ir.PSub, ir.PXor:
		return foldedInt(0), true
	case ir.PAnd, ir.POr:
		return identity(x), true
	case ir.PAdd:
		mul := table.Lookup(ir.PMul)
		return doneTail(primCall(mul, x, ir.IntConst{Value: 2})), true
	}
	return nil, false
}

// rewriteMulSumFusion covers (u*c)+u -> u*(c+1), (u*c)-u -> u*(c-1),
// u+(v*d) with u==v -> v*(1+d), and the symmetric sub cases.
func rewriteMulSumFusion(id ir.PrimID, x, y ir.Atom, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	if id != ir.PAdd && id != ir.PSub {
		return nil, false
	}
	mul := table.Lookup(ir.PMul)

	// (u*c) +/- u
	if args, ok := facts.LookupPrim(f, x, ir.PMul); ok {
		u, c, cok := mulOperands(args)
		if cok && ir.AtomEqual(u, y) {
			if id == ir.PAdd {
				return doneTail(primCall(mul, u, ir.IntConst{Value: c + 1})), true
			}
			return doneTail(primCall(mul, u, ir.IntConst{Value: c - 1})), true
		}
	}
	// u +/- (v*d), u == v
	if args, ok := facts.LookupPrim(f, y, ir.PMul); ok {
		v, d, dok := mulOperands(args)
		if dok && ir.AtomEqual(v, x) {
			if id == ir.PAdd {
				return doneTail(primCall(mul, v, ir.IntConst{Value: 1 + d})), true
			}
			// x - (x*d) = x*(1-d)
			return doneTail(primCall(mul, v, ir.IntConst{Value: 1 - d})), true
		}
	}
	return nil, false
}

// mulOperands extracts (atom, literal-multiplier) from a mul's
// argument pair in whichever position the literal appears.
func mulOperands(args []ir.Atom) (ir.Atom, int64, bool) {
	if c, ok := ir.AsIntConst(args[1]); ok {
		return args[0], c, true
	}
	if c, ok := ir.AsIntConst(args[0]); ok {
		return args[1], c, true
	}
	return nil, 0, false
}

// rewriteDeMorgan covers p(not u, not v) -> not(dual(u,v)) for
// p in {and, or}.
func rewriteDeMorgan(id ir.PrimID, x, y ir.Atom, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	dualID, ok := deMorganDual[id]
	if !ok {
		return nil, false
	}
	xArgs, xOK := facts.LookupPrim(f, x, ir.PNot)
	yArgs, yOK := facts.LookupPrim(f, y, ir.PNot)
	if !xOK || !yOK {
		return nil, false
	}
	dual := table.Lookup(dualID)
	not := table.Lookup(ir.PNot)
	inner := ir.NewTemp("demorgan", ir.TypeWord)
	return ir.Bind{
		Vs:   []*ir.Temp{inner},
		Tail: primCall(dual, xArgs[0], yArgs[0]),
		Next: ir.Done{Tail: primCall(not, ir.TempAtom{Temp: inner})},
	}, true
}

// rewriteDistribute covers p(q(u,c), q(v,d)) -> q(p(u,v), c) when
// c == d, for the {or,and}/{and,or} partner pairs.
func rewriteDistribute(id ir.PrimID, x, y ir.Atom, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	qID, ok := distributivePartner[id]
	if !ok {
		return nil, false
	}
	xArgs, xOK := facts.LookupPrim(f, x, qID)
	yArgs, yOK := facts.LookupPrim(f, y, qID)
	if !xOK || !yOK {
		return nil, false
	}
	xc, xIsConst := ir.AsIntConst(xArgs[1])
	yc, yIsConst := ir.AsIntConst(yArgs[1])
	if !xIsConst || !yIsConst || xc != yc {
		return nil, false
	}
	p := table.Lookup(id)
	q := table.Lookup(qID)
	inner := ir.NewTemp("distrib", ir.TypeWord)
	return ir.Bind{
		Vs:   []*ir.Temp{inner},
		Tail: primCall(p, xArgs[0], yArgs[0]),
		Next: ir.Done{Tail: primCall(q, ir.TempAtom{Temp: inner}, ir.IntConst{Value: xc})},
	}, true
}

// rewriteCommuteRearrange covers the associative-family redistribution
// of spec.md §4.3 point 4: the two-sided form
// p(q(u,c), q(v,d)) -> q(p(u,v), p(c,d)) when p == q, and the
// one-sided forms p(q(u,c), y) -> q(p(u,y), c) /
// p(x, q(v,d)) -> q(p(x,v), d).
func rewriteCommuteRearrange(id ir.PrimID, x, y ir.Atom, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	if !associative[id] {
		return nil, false
	}
	p := table.Lookup(id)
	xArgs, xOK := facts.LookupPrim(f, x, id)
	yArgs, yOK := facts.LookupPrim(f, y, id)

	var xc, yc int64
	var xConst, yConst bool
	if xOK {
		xc, xConst = ir.AsIntConst(xArgs[1])
	}
	if yOK {
		yc, yConst = ir.AsIntConst(yArgs[1])
	}

	switch {
	case xOK && xConst && yOK && yConst:
		// p(q(u,c), q(v,d)) -> q(p(u,v), p(c,d))
		folded, _ := foldTwoLiterals(id, xc, yc)
		constAtom := foldedResultAtom(folded)
		if constAtom == nil {
			return nil, false
		}
		inner := ir.NewTemp("assoc", ir.TypeWord)
		return ir.Bind{
			Vs:   []*ir.Temp{inner},
			Tail: primCall(p, xArgs[0], yArgs[0]),
			Next: ir.Done{Tail: primCall(p, ir.TempAtom{Temp: inner}, constAtom)},
		}, true
	case xOK && xConst:
		// p(q(u,c), y) -> q(p(u,y), c)
		inner := ir.NewTemp("assoc", ir.TypeWord)
		return ir.Bind{
			Vs:   []*ir.Temp{inner},
			Tail: primCall(p, xArgs[0], y),
			Next: ir.Done{Tail: primCall(p, ir.TempAtom{Temp: inner}, ir.IntConst{Value: xc})},
		}, true
	case yOK && yConst:
		// p(x, q(v,d)) -> q(p(x,v), d)
		inner := ir.NewTemp("assoc", ir.TypeWord)
		return ir.Bind{
			Vs:   []*ir.Temp{inner},
			Tail: primCall(p, x, yArgs[0]),
			Next: ir.Done{Tail: primCall(p, ir.TempAtom{Temp: inner}, ir.IntConst{Value: yc})},
		}, true
	}
	return nil, false
}

// foldedResultAtom extracts the literal atom from a folded
// Done(Return(...)) fragment, or nil if code isn't that shape.
func foldedResultAtom(code ir.Code) ir.Atom {
	d, ok := code.(ir.Done)
	if !ok {
		return nil
	}
	r, ok := d.Tail.(ir.Return)
	if !ok || len(r.Atoms) != 1 {
		return nil
	}
	return r.Atoms[0]
}

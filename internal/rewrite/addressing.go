package rewrite

import (
	"github.com/dshills/lcmil/internal/facts"
	"github.com/dshills/lcmil/internal/ir"
)

// recognizedMultipliers are the addressing-mode scale factors the
// target's complex addressing mode can encode (spec.md §4.3 point 5).
var recognizedMultipliers = map[int64]bool{1: true, 2: true, 4: true, 8: true}

// addrArgs is the memory-op argument vector (S, base, offset, index,
// multiplier, [value]) of spec.md §4.3 point 5.
type addrArgs struct {
	size   ir.Atom
	base   ir.Atom
	offset ir.Atom
	index  ir.Atom
	mult   ir.Atom
	value  ir.Atom // only for store; nil for load
}

func parseAddrArgs(args []ir.Atom) addrArgs {
	a := addrArgs{size: args[0], base: args[1], offset: args[2], index: args[3], mult: args[4]}
	if len(args) > 5 {
		a.value = args[5]
	}
	return a
}

func (a addrArgs) toSlice() []ir.Atom {
	if a.value != nil {
		return []ir.Atom{a.size, a.base, a.offset, a.index, a.mult, a.value}
	}
	return []ir.Atom{a.size, a.base, a.offset, a.index, a.mult}
}

func isZero(a ir.Atom) bool {
	v, ok := ir.AsIntConst(a)
	return ok && v == 0
}

// isBaseAtom recognizes a static base address: a reference to a
// top-level or an external global, never a plain integer offset.
func isBaseAtom(a ir.Atom) bool {
	switch a.(type) {
	case ir.TopRef, ir.GlobalRef:
		return true
	default:
		return false
	}
}

// addFact resolves atom a to the pair (p, q) iff it was bound to
// add(p, q).
func addFact(f facts.Facts, a ir.Atom) (ir.Atom, ir.Atom, bool) {
	args, ok := facts.LookupPrim(f, a, ir.PAdd)
	if !ok {
		return nil, nil, false
	}
	return args[0], args[1], true
}

// mulFact resolves atom a to (v, M) iff it was bound to mul(v, M)
// with M a recognized multiplier constant.
func mulFact(f facts.Facts, a ir.Atom) (ir.Atom, int64, bool) {
	args, ok := facts.LookupPrim(f, a, ir.PMul)
	if !ok {
		return nil, 0, false
	}
	v, m, ok := mulOperands(args)
	if !ok || !recognizedMultipliers[m] {
		return nil, 0, false
	}
	return v, m, true
}

// rewriteAddressing synthesizes a complex addressing mode for
// load/store by applying the five ordered, fact-driven splits of
// spec.md §4.3 point 5. It returns done(prim, newArgs) iff the
// argument vector actually changed.
func rewriteAddressing(pc ir.PrimCall, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	a := parseAddrArgs(pc.Args)
	changed := false

	// Step 1: a constant base sitting in offset moves into base.
	if isZero(a.base) && isBaseAtom(a.offset) {
		a.base, a.offset = a.offset, ir.IntConst{Value: 0}
		changed = true
	}

	// Step 2: offset == b + o with b a base atom -> split (b, o).
	if isZero(a.base) {
		if p, q, ok := addFact(f, a.offset); ok {
			if isBaseAtom(p) {
				a.base, a.offset = p, q
				changed = true
			} else if isBaseAtom(q) {
				a.base, a.offset = q, p
				changed = true
			}
		}
	}

	// Step 3: index == b + i with b a base atom and no multiplier yet
	// -> split (b, i).
	if isZero(a.base) && isZero(a.mult) {
		if p, q, ok := addFact(f, a.index); ok {
			if isBaseAtom(p) {
				a.base, a.index = p, q
				changed = true
			} else if isBaseAtom(q) {
				a.base, a.index = q, p
				changed = true
			}
		}
	}

	// Step 4: offset == o + i -> move i into the index slot.
	if isZero(a.index) {
		if p, q, ok := addFact(f, a.offset); ok {
			// p is always kept as the residual offset and q moves to
			// index; spec.md's ordering only requires that one operand
			// lands in offset and the other in index.
			a.offset, a.index = p, q
			changed = true
		}
	}

	// Step 5: offset or index is v*M with M recognized -> move v to
	// index, M to multiplier.
	if isZero(a.mult) {
		if isZero(a.index) {
			if v, m, ok := mulFact(f, a.offset); ok {
				a.offset, a.index, a.mult = ir.IntConst{Value: 0}, v, ir.IntConst{Value: m}
				changed = true
			}
		}
		if isZero(a.mult) {
			if v, m, ok := mulFact(f, a.index); ok {
				a.index, a.mult = v, ir.IntConst{Value: m}
				changed = true
			}
		}
	}

	if !changed {
		return nil, false
	}
	return doneTail(ir.PrimCall{Prim: pc.Prim, Args: a.toSlice()}), true
}

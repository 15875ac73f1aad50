package rewrite

import (
	"math/bits"

	"github.com/dshills/lcmil/internal/facts"
	"github.com/dshills/lcmil/internal/ir"
)

// commutative is the set of primitives for which a left-literal
// operand can be handled by swapping to the right-literal case.
var commutative = map[ir.PrimID]bool{
	ir.PAdd: true, ir.PMul: true, ir.PAnd: true, ir.POr: true, ir.PXor: true,
	ir.PEq: true, ir.PNeq: true,
}

// rewriteBinaryConstLeft handles binary(c, y) where c is a literal
// (spec.md §4.3 point 3). Commutative primitives delegate to the
// right-literal table; sub has its own left-literal identity.
func rewriteBinaryConstLeft(id ir.PrimID, c int64, y ir.Atom, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	if id == ir.PSub && c == 0 {
		// 0 - y = -y
		neg := table.Lookup(ir.PNeg)
		return doneTail(primCall(neg, y)), true
	}
	if commutative[id] {
		return rewriteBinaryConstRight(id, y, c, f, table)
	}
	return nil, false
}

// rewriteBinaryConstRight handles binary(x, c) where c is a literal
// (spec.md §4.3 point 3's table). x may itself be a fact-known tail,
// enabling redistribution and composite-shift collapsing.
func rewriteBinaryConstRight(id ir.PrimID, x ir.Atom, c int64, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	switch id {
	case ir.PAdd:
		if c == 0 {
			return identity(x), true
		}
		add := table.Lookup(ir.PAdd)
		sub := table.Lookup(ir.PSub)
		if args, ok := facts.LookupPrim(f, x, ir.PAdd); ok {
			if n, isConst := ir.AsIntConst(args[1]); isConst {
				// (x+n)+c = x+(n+c)
				return doneTail(primCall(add, args[0], ir.IntConst{Value: n + c})), true
			}
		}
		if args, ok := facts.LookupPrim(f, x, ir.PSub); ok {
			if n, isConst := ir.AsIntConst(args[1]); isConst {
				// (x-n)+c = x+(c-n)
				return doneTail(primCall(add, args[0], ir.IntConst{Value: c - n})), true
			}
			if n, isConst := ir.AsIntConst(args[0]); isConst {
				// (n-x)+c = (n+c)-x
				return doneTail(primCall(sub, ir.IntConst{Value: n + c}, args[1])), true
			}
		}
		if args, ok := facts.LookupPrim(f, x, ir.PNeg); ok {
			// (-x)+c = c-x
			return doneTail(primCall(sub, ir.IntConst{Value: c}, args[0])), true
		}
		return nil, false

	case ir.PSub:
		if c == 0 {
			return identity(x), true
		}
		add := table.Lookup(ir.PAdd)
		// x - c = x + (-c)
		return doneTail(primCall(add, x, ir.IntConst{Value: -c})), true

	case ir.PMul:
		switch c {
		case 0:
			return foldedInt(0), true
		case 1:
			return identity(x), true
		case -1:
			neg := table.Lookup(ir.PNeg)
			return doneTail(primCall(neg, x)), true
		}
		if c > 1 && isPowerOfTwo(c) {
			shl := table.Lookup(ir.PShl)
			k := bits.TrailingZeros64(uint64(c))
			return doneTail(primCall(shl, x, ir.IntConst{Value: int64(k)})), true
		}
		return nil, false

	case ir.POr:
		if c == 0 {
			return identity(x), true
		}
		if c == -1 {
			return foldedInt(-1), true
		}
		return nil, false

	case ir.PAnd:
		if c == 0 {
			return foldedInt(0), true
		}
		if c == -1 {
			return identity(x), true
		}
		// (x<<s) & m with (m & em) == em (em = mask implied by shift)
		// collapses to x<<s: the shift already guarantees the low s
		// bits of the result are zero, so an AND mask that agrees with
		// that implied mask on every bit it actually constrains is a
		// no-op.
		if args, ok := facts.LookupPrim(f, x, ir.PShl); ok {
			if s, isConst := ir.AsIntConst(args[1]); isConst && s > 0 && s < WordSize {
				em := int64(-1) << uint(s)
				if c&em == em {
					return identity(x), true
				}
			}
		}
		return nil, false

	case ir.PXor:
		if c == 0 {
			return identity(x), true
		}
		if c == -1 {
			not := table.Lookup(ir.PNot)
			return doneTail(primCall(not, x)), true
		}
		return nil, false

	case ir.PShl, ir.PLShr, ir.PAShr:
		if c == 0 {
			return identity(x), true
		}
		// composite shifts: (x op d) op c -> collapse to one shift, or
		// to 0 (lshr/shl) once the total reaches word size; an ashr
		// whose total reaches word size is left unrewritten.
		if args, ok := facts.LookupPrim(f, x, id); ok {
			if d, isConst := ir.AsIntConst(args[1]); isConst {
				total := d + c
				if total >= WordSize {
					if id == ir.PAShr {
						return nil, false // sign depends on runtime value; leave to the emitter
					}
					return foldedInt(0), true
				}
				op := table.Lookup(id)
				return doneTail(primCall(op, args[0], ir.IntConst{Value: total})), true
			}
		}
		return nil, false
	}
	return nil, false
}

func identity(x ir.Atom) ir.Code {
	return doneTail(ir.Return{Atoms: []ir.Atom{x}})
}

func isPowerOfTwo(c int64) bool {
	return c > 0 && c&(c-1) == 0
}

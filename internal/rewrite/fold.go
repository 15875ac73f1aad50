package rewrite

import (
	"github.com/dshills/lcmil/internal/facts"
	"github.com/dshills/lcmil/internal/ir"
)

// rewriteBinary dispatches the binary-primitive stages of spec.md
// §4.3 in order: two-literal folding, one-literal identities,
// two-variable fact-driven identities.
func rewriteBinary(pc ir.PrimCall, f facts.Facts, table *ir.PrimTable) (ir.Code, bool) {
	x, y := pc.Args[0], pc.Args[1]
	xi, xIsInt := ir.AsIntConst(x)
	yi, yIsInt := ir.AsIntConst(y)

	if xIsInt && yIsInt {
		if code, ok := foldTwoLiterals(pc.Prim.ID, xi, yi); ok {
			return code, true
		}
		return nil, false
	}
	if yIsInt {
		if code, ok := rewriteBinaryConstRight(pc.Prim.ID, x, yi, f, table); ok {
			return code, true
		}
	}
	if xIsInt {
		if code, ok := rewriteBinaryConstLeft(pc.Prim.ID, xi, y, f, table); ok {
			return code, true
		}
	}
	if !xIsInt && !yIsInt {
		return rewriteBinaryVars(pc.Prim.ID, x, y, f, table)
	}
	return nil, false
}

// foldTwoLiterals computes the constant result of a binary primitive
// applied to two known integer operands (spec.md §4.3 point 2).
func foldTwoLiterals(id ir.PrimID, x, y int64) (ir.Code, bool) {
	switch id {
	case ir.PAdd:
		return foldedInt(x + y), true
	case ir.PSub:
		return foldedInt(x - y), true
	case ir.PMul:
		return foldedInt(x * y), true
	case ir.PDiv:
		if y == 0 {
			return nil, false // leave division-by-zero to runtime trap
		}
		return foldedInt(int64(uint64(x) / uint64(y))), true
	case ir.PAnd:
		return foldedInt(x & y), true
	case ir.POr:
		return foldedInt(x | y), true
	case ir.PXor:
		return foldedInt(x ^ y), true
	case ir.PShl:
		if y < 0 || y >= WordSize {
			return foldedInt(0), true
		}
		return foldedInt(x << uint(y)), true
	case ir.PLShr:
		if y < 0 || y >= WordSize {
			return foldedInt(0), true
		}
		return foldedInt(int64(uint64(x) >> uint(y))), true
	case ir.PAShr:
		if y < 0 || y >= WordSize {
			if x < 0 {
				return foldedInt(-1), true
			}
			return foldedInt(0), true
		}
		return foldedInt(x >> uint(y)), true
	case ir.PEq:
		return foldedFlag(x == y), true
	case ir.PNeq:
		return foldedFlag(x != y), true
	case ir.PLt:
		return foldedFlag(uint64(x) < uint64(y)), true
	case ir.PLte:
		return foldedFlag(uint64(x) <= uint64(y)), true
	case ir.PGt:
		return foldedFlag(uint64(x) > uint64(y)), true
	case ir.PGte:
		return foldedFlag(uint64(x) >= uint64(y)), true
	}
	return nil, false
}

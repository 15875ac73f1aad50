package pass

import (
	"github.com/dshills/lcmil/internal/facts"
	"github.com/dshills/lcmil/internal/ir"
	"github.com/dshills/lcmil/internal/rewrite"
)

// Flow walks each block's Code spine from outermost Bind inward,
// extending a persistent facts map at each Bind, rewriting tails with
// the peephole rewriter, and pruning dead bindings (spec.md §4.4
// point 2). Facts never cross a block boundary or a branch (spec.md
// §3, §5): each block starts from facts.Empty, and If/Case arms are
// not explored with the facts accumulated up to the branch carried
// into them beyond what their own BlockCall target re-derives.
func Flow(prog *ir.Program) (bool, error) {
	changed := false
	for _, b := range prog.Blocks {
		newBody, c, err := flowCode(b.Body, facts.Empty, prog.Prims)
		if err != nil {
			return changed, err
		}
		if c {
			b.Body = newBody
			changed = true
		}
	}
	for _, top := range prog.TopLevels {
		newCode, c, err := flowCode(ir.Done{Tail: top.Tail}, facts.Empty, prog.Prims)
		if err != nil {
			return changed, err
		}
		if c {
			done, ok := newCode.(ir.Done)
			if !ok {
				// A top-level is a single tuple-valued tail; only a
				// fragment that collapses back to one terminal tail
				// fits its shape. If rewriting produced auxiliary
				// bindings (e.g. a deMorgan/distribute temp), thread
				// them through a zero-param wrapper block instead of
				// discarding them.
				wrapped := wrapAsBlock(prog, newCode)
				top.Tail = ir.BlockCall{Block: wrapped}
			} else {
				top.Tail = done.Tail
			}
			changed = true
		}
	}
	return changed, nil
}

// wrapAsBlock registers a fresh zero-parameter block holding code and
// returns it, used when a top-level-tail rewrite needs intermediate
// bindings that a bare Tail cannot represent.
func wrapAsBlock(prog *ir.Program, code ir.Code) *ir.Block {
	b := &ir.Block{Name: freshBlockName(prog, "flow_wrap"), Body: code}
	prog.AddBlock(b)
	return b
}

var wrapCounter int

func freshBlockName(prog *ir.Program, prefix string) string {
	for {
		wrapCounter++
		name := prefix + "." + itoa(wrapCounter)
		if _, exists := prog.BlockByName(name); !exists {
			return name
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// flowCode rewrites a single Code spine under the given facts,
// reporting whether anything changed.
func flowCode(c ir.Code, f facts.Facts, table *ir.PrimTable) (ir.Code, bool, error) {
	switch n := c.(type) {
	case ir.Bind:
		if frag, ok := rewrite.Rewrite(n.Tail, f, table); ok {
			spliced := spliceAtEnd(frag, n.Vs, n.Next)
			result, _, err := flowCode(spliced, f, table)
			if err != nil {
				return nil, false, err
			}
			return result, true, nil
		}

		extended := f
		if t := pickOutputTemp(n.Vs); t != nil {
			extended = facts.Extend(f, t, n.Tail)
		}
		newNext, nextChanged, err := flowCode(n.Next, extended, table)
		if err != nil {
			return nil, false, err
		}

		if allUnused(n.Vs, newNext) && n.Tail.Purity().HasNoEffect() {
			return newNext, true, nil
		}
		if !nextChanged {
			return n, false, nil
		}
		return ir.Bind{Vs: n.Vs, Tail: n.Tail, Next: newNext}, true, nil

	case ir.Done:
		if frag, ok := rewrite.Rewrite(n.Tail, f, table); ok {
			return frag, true, nil
		}
		return n, false, nil

	case ir.If, ir.Case:
		return n, false, nil

	default:
		return c, false, nil
	}
}

// pickOutputTemp extends facts keyed by the first bound temp when a
// tail has multiple outputs; MIL's primitives used by the rewriter are
// all single-output, so this is the common Outity()==1 case. Facts
// for multi-output tails beyond the first are intentionally not
// tracked: no rewrite in this package looks one up.
func pickOutputTemp(vs []*ir.Temp) *ir.Temp {
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}

// allUnused reports whether none of vs appears in code's usage set.
func allUnused(vs []*ir.Temp, code ir.Code) bool {
	used := ir.UsedTemps(code)
	for _, v := range vs {
		if used[v] {
			return false
		}
	}
	return true
}

// spliceAtEnd replaces frag's terminal Done with Bind(vs, innerTail,
// next), implementing the rewrite contract's "prepending renaming of
// vs" (spec.md §4.3).
func spliceAtEnd(frag ir.Code, vs []*ir.Temp, next ir.Code) ir.Code {
	switch n := frag.(type) {
	case ir.Bind:
		return ir.Bind{Vs: n.Vs, Tail: n.Tail, Next: spliceAtEnd(n.Next, vs, next)}
	case ir.Done:
		return ir.Bind{Vs: vs, Tail: n.Tail, Next: next}
	default:
		return frag
	}
}

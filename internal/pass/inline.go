package pass

import "github.com/dshills/lcmil/internal/ir"

// Inline unfolds trivial BlockCalls: calls to a zero-parameter block
// whose entire body is a single Done(tail) are replaced by tail
// itself (spec.md §4.4 point 1). Run first in the pipeline: it removes
// indirection that would otherwise block flow's fact discovery and
// dedup's alpha-equivalence matching.
func Inline(prog *ir.Program) (bool, error) {
	changed := false
	for _, b := range prog.Blocks {
		newBody, c := ir.TransformTails(b.Body, func(t ir.Tail) (ir.Tail, bool) {
			return inlineTail(t)
		})
		if c {
			b.Body = newBody
			changed = true
		}
	}
	for _, top := range prog.TopLevels {
		if newTail, c := inlineTail(top.Tail); c {
			top.Tail = newTail
			changed = true
		}
	}
	return changed, nil
}

// inlineTail replaces a BlockCall to a trivial block with that
// block's body tail. Trivial means zero parameters and a body of
// exactly Done(tail); any other shape (If/Case terminators, nonempty
// params) is left alone, since substituting into those would require
// the renaming machinery spec.md §4.5 reserves for lambda lifting, not
// this inlining step.
func inlineTail(t ir.Tail) (ir.Tail, bool) {
	bc, ok := t.(ir.BlockCall)
	if !ok || bc.Block == nil {
		return t, false
	}
	block := bc.Block
	if len(block.Params) != 0 || len(bc.Args) != 0 {
		return t, false
	}
	done, ok := block.Body.(ir.Done)
	if !ok {
		return t, false
	}
	// Never inline into a self-referential trivial block: that would
	// not terminate.
	if selfBlockCall, ok := done.Tail.(ir.BlockCall); ok && selfBlockCall.Block == block {
		return t, false
	}
	return done.Tail, true
}

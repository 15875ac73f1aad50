package pass

import "github.com/dshills/lcmil/internal/ir"

// EliminateDuplicates finds alpha-equivalent top-levels and blocks and
// merges later occurrences into the earliest one found, per spec.md
// §4.4 point 3: summaries bucket candidates cheaply, then exact
// alpha-equivalence decides a real match (the summary law of spec.md
// §8 guarantees no true duplicate is missed by bucketing).
func EliminateDuplicates(prog *ir.Program) (bool, error) {
	changed := dedupTopLevels(prog)
	if dedupBlocks(prog) {
		changed = true
	}
	return changed, nil
}

func dedupTopLevels(prog *ir.Program) bool {
	changed := false
	buckets := make(map[uint64][]*ir.TopLevel)
	for _, top := range prog.TopLevels {
		if isForwardingTop(top) {
			continue // already merged this iteration; nothing to re-check
		}
		sum := ir.Summary(top.Tail)
		matched := false
		for _, cand := range buckets[sum] {
			if ir.AlphaTail(top.Tail, nil, cand.Tail, nil) {
				top.Tail = ir.Return{Atoms: topRefs(cand)}
				changed = true
				matched = true
				break
			}
		}
		if !matched {
			buckets[sum] = append(buckets[sum], top)
		}
	}
	return changed
}

// isForwardingTop recognizes a top-level already rewritten to
// Return(previous_tops) by a prior dedup pass, so it is not itself
// re-bucketed as a fresh candidate (it no longer carries the original
// computation's summary).
func isForwardingTop(top *ir.TopLevel) bool {
	r, ok := top.Tail.(ir.Return)
	if !ok || len(r.Atoms) != len(top.Lhs) {
		return false
	}
	for i, a := range r.Atoms {
		ref, ok := a.(ir.TopRef)
		if !ok || ref.Index != i {
			return false
		}
	}
	return true
}

func topRefs(top *ir.TopLevel) []ir.Atom {
	atoms := make([]ir.Atom, len(top.Lhs))
	for i := range top.Lhs {
		atoms[i] = ir.TopRef{Top: top, Index: i}
	}
	return atoms
}

func dedupBlocks(prog *ir.Program) bool {
	changed := false
	type bucketEntry struct {
		block *ir.Block
	}
	buckets := make(map[uint64][]bucketEntry)
	for _, b := range prog.Blocks {
		if isForwardingBlock(b) {
			continue
		}
		sum := ir.SummaryCode(b.Body)
		matched := false
		for _, cand := range buckets[sum] {
			if sameShape(b, cand.block) && ir.AlphaCode(b.Body, b.Params, cand.block.Body, cand.block.Params) {
				b.Body = ir.Done{Tail: ir.BlockCall{Block: cand.block, Args: paramAtoms(b.Params)}}
				changed = true
				matched = true
				break
			}
		}
		if !matched {
			buckets[sum] = append(buckets[sum], bucketEntry{block: b})
		}
	}
	return changed
}

func sameShape(a, b *ir.Block) bool {
	return len(a.Params) == len(b.Params)
}

func paramAtoms(params []*ir.Temp) []ir.Atom {
	atoms := make([]ir.Atom, len(params))
	for i, p := range params {
		atoms[i] = ir.TempAtom{Temp: p}
	}
	return atoms
}

// isForwardingBlock recognizes a block already rewritten to forward to
// another block with its own parameters, analogous to
// isForwardingTop.
func isForwardingBlock(b *ir.Block) bool {
	done, ok := b.Body.(ir.Done)
	if !ok {
		return false
	}
	bc, ok := done.Tail.(ir.BlockCall)
	if !ok || bc.Block == b || len(bc.Args) != len(b.Params) {
		return false
	}
	for i, a := range bc.Args {
		t, ok := ir.AsTemp(a)
		if !ok || t != b.Params[i] {
			return false
		}
	}
	return true
}

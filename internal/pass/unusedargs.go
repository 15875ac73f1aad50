package pass

import "github.com/dshills/lcmil/internal/ir"

// RemoveUnusedArgs computes, for each non-entry block, the indices of
// parameters never referenced in its body, drops those parameters, and
// rewrites every call site to drop the matching argument positions
// (spec.md §4.4 point 4).
func RemoveUnusedArgs(prog *ir.Program) (bool, error) {
	entry := make(map[*ir.Block]bool)
	for _, b := range prog.EntryBlocks() {
		entry[b] = true
	}

	keep := make(map[*ir.Block][]bool) // keep[b][i] == true iff param i survives
	changed := false

	for _, b := range prog.Blocks {
		if entry[b] || len(b.Params) == 0 {
			continue
		}
		used := ir.UsedTemps(b.Body)
		mask := make([]bool, len(b.Params))
		anyUnused := false
		for i, p := range b.Params {
			mask[i] = used[p]
			if !mask[i] {
				anyUnused = true
			}
		}
		if !anyUnused {
			continue
		}
		keep[b] = mask
		b.Params = filterParams(b.Params, mask)
		b.UnusedParams = invert(mask)
		changed = true
	}

	if !changed {
		return false, nil
	}

	rewriteCall := func(t ir.Tail) (ir.Tail, bool) {
		bc, ok := t.(ir.BlockCall)
		if !ok || bc.Block == nil {
			return t, false
		}
		mask, ok := keep[bc.Block]
		if !ok {
			return t, false
		}
		return ir.BlockCall{Block: bc.Block, Args: filterAtoms(bc.Args, mask)}, true
	}

	for _, b := range prog.Blocks {
		newBody, _ := ir.TransformTails(b.Body, rewriteCall)
		b.Body = newBody
	}
	for _, top := range prog.TopLevels {
		if newTail, ok := rewriteCall(top.Tail); ok {
			top.Tail = newTail
		}
	}
	return true, nil
}

func filterParams(params []*ir.Temp, mask []bool) []*ir.Temp {
	out := make([]*ir.Temp, 0, len(params))
	for i, p := range params {
		if mask[i] {
			out = append(out, p)
		}
	}
	return out
}

func filterAtoms(atoms []ir.Atom, mask []bool) []ir.Atom {
	out := make([]ir.Atom, 0, len(atoms))
	for i, a := range atoms {
		if i < len(mask) && mask[i] {
			out = append(out, a)
		}
	}
	return out
}

func invert(mask []bool) []bool {
	out := make([]bool, len(mask))
	for i, v := range mask {
		out[i] = !v
	}
	return out
}

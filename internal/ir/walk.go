package ir

// TransformTails rewrites every Tail position reachable on a Code
// spine by applying fn, rebuilding only the parts that actually
// changed (Code is logically immutable; passes build new trees rather
// than mutating existing ones — spec.md §3 Lifecycle).
//
// If positions (If.Then/If.Else) and Case alt/default positions must
// remain BlockCall per spec.md §3's tail-position invariant: when fn
// returns a non-BlockCall replacement for one of those slots, the
// replacement is discarded and the original BlockCall is kept, so
// TransformTails itself never produces an IR fragment violating that
// invariant — it is the caller's responsibility (e.g. the inliner) to
// only offer replacements a given slot can legally accept.
func TransformTails(c Code, fn func(Tail) (Tail, bool)) (Code, bool) {
	switch n := c.(type) {
	case Bind:
		newTail, tailChanged := fn(n.Tail)
		if !tailChanged {
			newTail = n.Tail
		}
		newNext, nextChanged := TransformTails(n.Next, fn)
		if !tailChanged && !nextChanged {
			return n, false
		}
		return Bind{Vs: n.Vs, Tail: newTail, Next: newNext}, true

	case Done:
		newTail, changed := fn(n.Tail)
		if !changed {
			return n, false
		}
		return Done{Tail: newTail}, true

	case If:
		then, thenChanged := replaceIfBlockCall(n.Then, fn)
		els, elseChanged := replaceIfBlockCall(n.Else, fn)
		if !thenChanged && !elseChanged {
			return n, false
		}
		return If{V: n.V, Then: then, Else: els}, true

	case Case:
		changed := false
		alts := make([]CaseAlt, len(n.Alts))
		for i, alt := range n.Alts {
			call, c := replaceIfBlockCall(alt.Call, fn)
			alts[i] = CaseAlt{Cfun: alt.Cfun, Call: call}
			changed = changed || c
		}
		var def *BlockCall
		if n.Default != nil {
			call, c := replaceIfBlockCall(*n.Default, fn)
			def = &call
			changed = changed || c
		}
		if !changed {
			return n, false
		}
		return Case{V: n.V, Alts: alts, Default: def}, true

	default:
		return c, false
	}
}

func replaceIfBlockCall(bc BlockCall, fn func(Tail) (Tail, bool)) (BlockCall, bool) {
	newTail, changed := fn(bc)
	if !changed {
		return bc, false
	}
	if newBC, ok := newTail.(BlockCall); ok {
		return newBC, true
	}
	return bc, false
}

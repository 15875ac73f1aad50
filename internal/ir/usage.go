package ir

// UsedTemps collects every *Temp referenced as an atom (or as an If/
// Case scrutinee) anywhere within c, at any nesting depth. Used by the
// flow pass's liveness pruning (spec.md §4.4 point 2) to decide
// whether a binding's result is still needed by its continuation.
func UsedTemps(c Code) map[*Temp]bool {
	used := make(map[*Temp]bool)
	collectCodeUses(c, used)
	return used
}

func collectAtomUses(a Atom, used map[*Temp]bool) {
	if t, ok := AsTemp(a); ok {
		used[t] = true
	}
}

func collectTailUses(t Tail, used map[*Temp]bool) {
	switch n := t.(type) {
	case Return:
		for _, a := range n.Atoms {
			collectAtomUses(a, used)
		}
	case PrimCall:
		for _, a := range n.Args {
			collectAtomUses(a, used)
		}
	case BlockCall:
		for _, a := range n.Args {
			collectAtomUses(a, used)
		}
	case DataAlloc:
		for _, a := range n.Args {
			collectAtomUses(a, used)
		}
	case ClosAlloc:
		for _, a := range n.Args {
			collectAtomUses(a, used)
		}
	case Enter:
		collectAtomUses(n.Func, used)
		for _, a := range n.Args {
			collectAtomUses(a, used)
		}
	case Sel:
		collectAtomUses(n.Atom, used)
	}
}

func collectCodeUses(c Code, used map[*Temp]bool) {
	switch n := c.(type) {
	case Bind:
		collectTailUses(n.Tail, used)
		collectCodeUses(n.Next, used)
	case Done:
		collectTailUses(n.Tail, used)
	case If:
		used[n.V] = true
		collectTailUses(n.Then, used)
		collectTailUses(n.Else, used)
	case Case:
		used[n.V] = true
		for _, alt := range n.Alts {
			collectTailUses(alt.Call, used)
		}
		if n.Default != nil {
			collectTailUses(*n.Default, used)
		}
	}
}

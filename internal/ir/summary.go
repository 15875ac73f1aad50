package ir

// mixConstant is the fixed mixing constant spec.md §4.1 calls for: the
// usual 64-bit golden-ratio constant used by hash_combine-style
// mixers, applied uniformly everywhere a summary folds in a new value.
const mixConstant uint64 = 0x9e3779b97f4a7c15

func mix(h, x uint64) uint64 {
	h ^= x + mixConstant + (h << 6) + (h >> 2)
	return h
}

func mixString(h uint64, s string) uint64 {
	for i := 0; i < len(s); i++ {
		h = mix(h, uint64(s[i]))
	}
	return h
}

// summaryCtx assigns each Temp a de Bruijn-style index in first-
// occurrence order. Because alpha-equivalent fragments visit their
// bound temps in the same structural order, this makes Summary
// renaming-invariant: it never depends on a Temp's identity or Hint,
// only on the position at which it was bound relative to other
// binders in the same fragment (the summary law of spec.md §8).
type summaryCtx struct {
	index     map[*Temp]uint64
	next      uint64
	freeIndex map[*Temp]uint64
	freeNext  uint64
}

func newSummaryCtx() *summaryCtx {
	return &summaryCtx{index: make(map[*Temp]uint64), freeIndex: make(map[*Temp]uint64)}
}

// freeOrdinal assigns a stable per-fragment ordinal to a temp that is
// not bound anywhere inside the fragment being summarized (a free
// reference to an outer binder). Two occurrences of the same free
// temp within one fragment get the same ordinal; this is all the
// summary law requires, since alpha-equivalence never renames a free
// variable.
func (c *summaryCtx) freeOrdinal(t *Temp) uint64 {
	if idx, ok := c.freeIndex[t]; ok {
		return idx
	}
	idx := c.freeNext
	c.freeNext++
	c.freeIndex[t] = idx
	return idx
}

func (c *summaryCtx) bind(t *Temp) uint64 {
	idx := c.next
	c.next++
	c.index[t] = idx
	return idx
}

func (c *summaryCtx) lookup(t *Temp) (uint64, bool) {
	idx, ok := c.index[t]
	return idx, ok
}

// Summary computes an alpha-invariant hash of a Tail: alphaTail(t1,
// vs1, t2, vs2) implies Summary(t1) == Summary(t2) when vs1/vs2 are
// bound at the same positions. No parameters are bound beforehand: each
// free temp is numbered in order of first occurrence, so fragments that
// use their free temps in the same positions summarize equally.
func Summary(t Tail) uint64 {
	ctx := newSummaryCtx()
	return summaryTail(ctx, t)
}

// SummaryCode computes the alpha-invariant hash of a Code fragment.
func SummaryCode(c Code) uint64 {
	ctx := newSummaryCtx()
	return summaryCode(ctx, c)
}

func summaryAtom(ctx *summaryCtx, a Atom, pos int) uint64 {
	h := mix(0, uint64(pos+1)*mixConstant)
	switch x := a.(type) {
	case TempAtom:
		if idx, ok := ctx.lookup(x.Temp); ok {
			h = mix(h, 1)
			h = mix(h, idx)
		} else {
			// Free (non-locally-bound) temp: fall back to a stable
			// per-fragment ordinal. Two fragments that both reference
			// the *same* free temp (e.g. both refer to a shared outer
			// parameter) summarize identically; this only loses
			// precision when comparing fragments with different free
			// variables, which is exactly when they are not
			// alpha-equivalent.
			h = mix(h, 2)
			h = mix(h, ctx.freeOrdinal(x.Temp))
		}
	case IntConst:
		h = mix(h, 3)
		h = mix(h, uint64(x.Value))
	case FlagConst:
		h = mix(h, 4)
		if x.Value {
			h = mix(h, 1)
		}
	case TopRef:
		h = mix(h, 5)
		if x.Top != nil && len(x.Top.Lhs) > 0 {
			h = mixString(h, x.Top.Lhs[0].Name)
		}
		h = mix(h, uint64(x.Index))
	case GlobalRef:
		h = mix(h, 6)
		h = mixString(h, x.Name)
	}
	return h
}

func summaryAtoms(ctx *summaryCtx, atoms []Atom) uint64 {
	h := uint64(0)
	for i, a := range atoms {
		h = mix(h, summaryAtom(ctx, a, i))
	}
	return h
}

func summaryTail(ctx *summaryCtx, t Tail) uint64 {
	switch n := t.(type) {
	case Return:
		return mix(mixString(0, "return"), summaryAtoms(ctx, n.Atoms))
	case PrimCall:
		h := mixString(0, "prim")
		h = mixString(h, string(n.Prim.ID))
		return mix(h, summaryAtoms(ctx, n.Args))
	case BlockCall:
		h := mixString(0, "blockcall")
		if n.Block != nil {
			h = mixString(h, n.Block.Name)
		}
		return mix(h, summaryAtoms(ctx, n.Args))
	case DataAlloc:
		h := mixString(0, "dataalloc")
		h = mixString(h, n.Cfun.ID)
		return mix(h, summaryAtoms(ctx, n.Args))
	case ClosAlloc:
		h := mixString(0, "closalloc")
		if n.Def != nil {
			h = mixString(h, n.Def.Name)
		}
		return mix(h, summaryAtoms(ctx, n.Args))
	case Enter:
		h := mixString(0, "enter")
		h = mix(h, summaryAtom(ctx, n.Func, -1))
		return mix(h, summaryAtoms(ctx, n.Args))
	case Sel:
		h := mixString(0, "sel")
		h = mixString(h, n.Cfun.ID)
		h = mix(h, uint64(n.N))
		return mix(h, summaryAtom(ctx, n.Atom, -1))
	default:
		return 0
	}
}

func summaryCode(ctx *summaryCtx, c Code) uint64 {
	switch n := c.(type) {
	case Bind:
		h := mixString(0, "bind")
		for _, v := range n.Vs {
			h = mix(h, ctx.bind(v))
		}
		h = mix(h, summaryTail(ctx, n.Tail))
		return mix(h, summaryCode(ctx, n.Next))
	case Done:
		return mix(mixString(0, "done"), summaryTail(ctx, n.Tail))
	case If:
		h := mixString(0, "if")
		if idx, ok := ctx.lookup(n.V); ok {
			h = mix(h, idx)
		}
		h = mix(h, summaryTail(ctx, n.Then))
		return mix(h, summaryTail(ctx, n.Else))
	case Case:
		h := mixString(0, "case")
		if idx, ok := ctx.lookup(n.V); ok {
			h = mix(h, idx)
		}
		for _, alt := range n.Alts {
			h = mixString(h, alt.Cfun.ID)
			h = mix(h, summaryTail(ctx, alt.Call))
		}
		if n.Default != nil {
			h = mix(h, summaryTail(ctx, *n.Default))
		}
		return h
	default:
		return 0
	}
}

// AlphaTail reports whether t1 and t2 are structurally equal modulo
// renaming, given parallel lists of already-equivalent temporaries
// vs1/vs2 (e.g. two blocks' parameter lists).
func AlphaTail(t1 Tail, vs1 []*Temp, t2 Tail, vs2 []*Temp) bool {
	if len(vs1) != len(vs2) {
		return false
	}
	env := newAlphaEnv()
	for i := range vs1 {
		env.bind(vs1[i], vs2[i])
	}
	return env.tail(t1, t2)
}

// AlphaCode reports whether c1 and c2 are structurally equal modulo
// renaming, given the same parallel-list convention as AlphaTail.
func AlphaCode(c1 Code, vs1 []*Temp, c2 Code, vs2 []*Temp) bool {
	if len(vs1) != len(vs2) {
		return false
	}
	env := newAlphaEnv()
	for i := range vs1 {
		env.bind(vs1[i], vs2[i])
	}
	return env.code(c1, c2)
}

type alphaEnv struct {
	fwd map[*Temp]*Temp
	bwd map[*Temp]*Temp
}

func newAlphaEnv() *alphaEnv {
	return &alphaEnv{fwd: make(map[*Temp]*Temp), bwd: make(map[*Temp]*Temp)}
}

func (e *alphaEnv) bind(a, b *Temp) {
	e.fwd[a] = b
	e.bwd[b] = a
}

func (e *alphaEnv) atomEq(a1, a2 Atom) bool {
	switch x := a1.(type) {
	case TempAtom:
		y, ok := a2.(TempAtom)
		if !ok {
			return false
		}
		if mapped, ok := e.fwd[x.Temp]; ok {
			return mapped == y.Temp
		}
		// Free temp: must refer to the literal same binding on both
		// sides (no outer renaming in scope for it).
		if _, boundOnOther := e.bwd[y.Temp]; boundOnOther {
			return false
		}
		return x.Temp == y.Temp
	default:
		y, ok := a2.(Atom)
		if !ok {
			return false
		}
		return AtomEqual(x, y)
	}
}

func (e *alphaEnv) atoms(a1, a2 []Atom) bool {
	if len(a1) != len(a2) {
		return false
	}
	for i := range a1 {
		if !e.atomEq(a1[i], a2[i]) {
			return false
		}
	}
	return true
}

func (e *alphaEnv) tail(t1, t2 Tail) bool {
	switch x := t1.(type) {
	case Return:
		y, ok := t2.(Return)
		return ok && e.atoms(x.Atoms, y.Atoms)
	case PrimCall:
		y, ok := t2.(PrimCall)
		return ok && x.Prim == y.Prim && e.atoms(x.Args, y.Args)
	case BlockCall:
		y, ok := t2.(BlockCall)
		return ok && x.Block == y.Block && e.atoms(x.Args, y.Args)
	case DataAlloc:
		y, ok := t2.(DataAlloc)
		return ok && x.Cfun == y.Cfun && e.atoms(x.Args, y.Args)
	case ClosAlloc:
		y, ok := t2.(ClosAlloc)
		return ok && x.Def == y.Def && e.atoms(x.Args, y.Args)
	case Enter:
		y, ok := t2.(Enter)
		return ok && e.atomEq(x.Func, y.Func) && e.atoms(x.Args, y.Args)
	case Sel:
		y, ok := t2.(Sel)
		return ok && x.Cfun == y.Cfun && x.N == y.N && e.atomEq(x.Atom, y.Atom)
	default:
		return false
	}
}

func (e *alphaEnv) code(c1, c2 Code) bool {
	switch x := c1.(type) {
	case Bind:
		y, ok := c2.(Bind)
		if !ok || len(x.Vs) != len(y.Vs) || !e.tail(x.Tail, y.Tail) {
			return false
		}
		for i := range x.Vs {
			e.bind(x.Vs[i], y.Vs[i])
		}
		return e.code(x.Next, y.Next)
	case Done:
		y, ok := c2.(Done)
		return ok && e.tail(x.Tail, y.Tail)
	case If:
		y, ok := c2.(If)
		return ok && e.atomEq(TempAtom{x.V}, TempAtom{y.V}) &&
			e.tail(x.Then, y.Then) && e.tail(x.Else, y.Else)
	case Case:
		y, ok := c2.(Case)
		if !ok || len(x.Alts) != len(y.Alts) || !e.atomEq(TempAtom{x.V}, TempAtom{y.V}) {
			return false
		}
		for i := range x.Alts {
			if x.Alts[i].Cfun != y.Alts[i].Cfun || !e.tail(x.Alts[i].Call, y.Alts[i].Call) {
				return false
			}
		}
		if (x.Default == nil) != (y.Default == nil) {
			return false
		}
		if x.Default != nil && !e.tail(*x.Default, *y.Default) {
			return false
		}
		return true
	default:
		return false
	}
}

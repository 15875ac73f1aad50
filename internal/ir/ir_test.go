package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTempAlwaysDistinctIdentity(t *testing.T) {
	a := NewTemp("x", TypeWord)
	b := NewTemp("x", TypeWord)
	assert.NotSame(t, a, b, "two temps with identical hint and type must still be distinct bindings")
}

func TestAtomEqualTempByPointerIdentity(t *testing.T) {
	a := NewTemp("x", TypeWord)
	b := NewTemp("x", TypeWord)
	assert.True(t, AtomEqual(TempAtom{Temp: a}, TempAtom{Temp: a}))
	assert.False(t, AtomEqual(TempAtom{Temp: a}, TempAtom{Temp: b}))
}

func TestAtomEqualConstantsByValue(t *testing.T) {
	assert.True(t, AtomEqual(IntConst{Value: 3}, IntConst{Value: 3}))
	assert.False(t, AtomEqual(IntConst{Value: 3}, IntConst{Value: 4}))
	assert.False(t, AtomEqual(IntConst{Value: 3}, FlagConst{Value: true}), "atoms of different kinds are never equal")
}

func TestAsTempAndAsIntConst(t *testing.T) {
	x := NewTemp("x", TypeWord)
	tmp, ok := AsTemp(TempAtom{Temp: x})
	assert.True(t, ok)
	assert.Same(t, x, tmp)

	_, ok = AsTemp(IntConst{Value: 1})
	assert.False(t, ok)

	v, ok := AsIntConst(IntConst{Value: 7})
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)

	_, ok = AsIntConst(TempAtom{Temp: x})
	assert.False(t, ok)
}

func TestIntConstWordBitsDefaultsToSixtyFour(t *testing.T) {
	assert.Equal(t, 64, IntConst{Value: 1}.WordBits())
	assert.Equal(t, 32, IntConst{Value: 1, Bits: 32}.WordBits())
}

func TestPrimTableRegisterAndLookup(t *testing.T) {
	table := NewPrimTable()
	add := table.Lookup(PAdd)
	require.NotNil(t, add)
	assert.Equal(t, PAdd, add.ID)
	assert.Equal(t, 2, add.Arity)
	assert.Equal(t, 1, add.Outity)
	assert.Equal(t, Pure, add.Purity)
}

func TestPrimTableRegisterCreatesDistinctSpecialization(t *testing.T) {
	table := NewPrimTable()
	original := table.Lookup(PAdd)
	specialized := table.Register(PAdd, 2, 1, Pure, original.BlockType)
	assert.NotSame(t, original, specialized, "Register always allocates a fresh *Prim even for a known PrimID")
	assert.Equal(t, original.ID, specialized.ID)
}

func TestPurityOrdering(t *testing.T) {
	assert.True(t, Pure.IsRepeatable())
	assert.True(t, Observer.IsRepeatable())
	assert.False(t, Volatile.IsRepeatable())
	assert.False(t, Impure.IsRepeatable())

	assert.True(t, Pure.HasNoEffect())
	assert.True(t, Volatile.HasNoEffect())
	assert.False(t, Impure.HasNoEffect())
	assert.False(t, DoesNotReturn.HasNoEffect())
}

func TestBlockTypeReportsParamsAndOutity(t *testing.T) {
	p := NewTemp("p", TypeWord)
	b := &Block{
		Name:   "entry",
		Params: []*Temp{p},
		Body:   Done{Tail: Return{Atoms: []Atom{IntConst{Value: 1}, IntConst{Value: 2}}}},
	}
	bt := b.Type()
	require.Len(t, bt.Params, 1)
	assert.Equal(t, TypeWord, bt.Params[0])
	assert.Len(t, bt.Results, 2, "Return's outity of 2 determines the block's result arity")
}

func TestBlockTypeWalksThroughBindToTerminal(t *testing.T) {
	x := NewTemp("x", TypeWord)
	b := &Block{
		Name: "entry",
		Body: Bind{
			Vs:   []*Temp{x},
			Tail: Return{Atoms: []Atom{IntConst{Value: 1}}},
			Next: Done{Tail: Return{Atoms: []Atom{IntConst{Value: 9}}}},
		},
	}
	bt := b.Type()
	assert.Len(t, bt.Results, 1)
}

func TestBlockTypeOnBranchingTerminalHasNoKnownResults(t *testing.T) {
	v := NewTemp("v", TypeFlag)
	target := &Block{Name: "target"}
	b := &Block{
		Name: "entry",
		Body: If{V: v, Then: BlockCall{Block: target}, Else: BlockCall{Block: target}},
	}
	bt := b.Type()
	assert.Nil(t, bt.Results)
}

func TestResetCallMetadataClearsPredsAndUnusedParams(t *testing.T) {
	other := &Block{Name: "other"}
	b := &Block{Name: "b", Preds: []*Block{other}, UnusedParams: []bool{true, false}}
	b.ResetCallMetadata()
	assert.Nil(t, b.Preds)
	assert.Nil(t, b.UnusedParams)
}

func TestProgramAddBlockAndBlockByName(t *testing.T) {
	prog := NewProgram()
	b := &Block{Name: "entry"}
	prog.AddBlock(b)

	got, ok := prog.BlockByName("entry")
	assert.True(t, ok)
	assert.Same(t, b, got)

	_, ok = prog.BlockByName("missing")
	assert.False(t, ok)
}

func TestProgramRemoveBlockDropsItFromArenaAndIndex(t *testing.T) {
	prog := NewProgram()
	a := prog.AddBlock(&Block{Name: "a"})
	prog.AddBlock(&Block{Name: "b"})

	prog.RemoveBlock(a)
	_, ok := prog.BlockByName("a")
	assert.False(t, ok)
	assert.Len(t, prog.Blocks, 1)
	assert.Equal(t, "b", prog.Blocks[0].Name)
}

func TestProgramEntryBlocksResolvesOnlyBlockNames(t *testing.T) {
	prog := NewProgram()
	prog.AddBlock(&Block{Name: "entry"})
	prog.AddTopLevel(&TopLevel{Lhs: []TopLhs{{Name: "notABlock", Type: TypeWord}}})
	prog.EntryNames = []string{"entry", "notABlock", "alsoMissing"}

	entries := prog.EntryBlocks()
	require.Len(t, entries, 1)
	assert.Equal(t, "entry", entries[0].Name)
}

func TestProgramResetAllCallMetadataClearsEveryBlock(t *testing.T) {
	prog := NewProgram()
	b := prog.AddBlock(&Block{Name: "b", Preds: []*Block{{Name: "pred"}}})
	prog.ResetAllCallMetadata()
	assert.Nil(t, b.Preds)
}

func TestUsedTempsWalksNestedBindAndIf(t *testing.T) {
	x := NewTemp("x", TypeWord)
	flag := NewTemp("flag", TypeFlag)
	y := NewTemp("y", TypeWord)
	target := &Block{Name: "target"}

	code := Bind{
		Vs:   []*Temp{y},
		Tail: Return{Atoms: []Atom{TempAtom{Temp: x}}},
		Next: If{
			V:    flag,
			Then: BlockCall{Block: target, Args: []Atom{TempAtom{Temp: y}}},
			Else: BlockCall{Block: target, Args: []Atom{IntConst{Value: 0}}},
		},
	}
	used := UsedTemps(code)
	assert.True(t, used[x])
	assert.True(t, used[flag])
	assert.True(t, used[y])
}

func TestUsedTempsIgnoresTempsNotReferenced(t *testing.T) {
	x := NewTemp("x", TypeWord)
	unreferenced := NewTemp("unreferenced", TypeWord)
	code := Done{Tail: Return{Atoms: []Atom{TempAtom{Temp: x}}}}
	used := UsedTemps(code)
	assert.True(t, used[x])
	assert.False(t, used[unreferenced])
}

func TestTransformTailsRewritesBindAndDoneTails(t *testing.T) {
	marker := IntConst{Value: 99}
	code := Bind{
		Vs:   nil,
		Tail: Return{Atoms: []Atom{IntConst{Value: 1}}},
		Next: Done{Tail: Return{Atoms: []Atom{IntConst{Value: 2}}}},
	}
	rewritten, changed := TransformTails(code, func(t Tail) (Tail, bool) {
		return Return{Atoms: []Atom{marker}}, true
	})
	require.True(t, changed)
	b := rewritten.(Bind)
	assert.Equal(t, marker, b.Tail.(Return).Atoms[0])
	d := b.Next.(Done)
	assert.Equal(t, marker, d.Tail.(Return).Atoms[0])
}

func TestTransformTailsReportsNoChangeWhenFnDeclines(t *testing.T) {
	code := Done{Tail: Return{Atoms: []Atom{IntConst{Value: 1}}}}
	rewritten, changed := TransformTails(code, func(t Tail) (Tail, bool) {
		return t, false
	})
	assert.False(t, changed)
	assert.Equal(t, code, rewritten)
}

func TestTransformTailsDiscardsNonBlockCallReplacementInIfSlot(t *testing.T) {
	target := &Block{Name: "target"}
	v := NewTemp("v", TypeFlag)
	code := If{V: v, Then: BlockCall{Block: target}, Else: BlockCall{Block: target}}

	rewritten, changed := TransformTails(code, func(t Tail) (Tail, bool) {
		return Return{Atoms: []Atom{IntConst{Value: 1}}}, true
	})
	assert.False(t, changed, "a non-BlockCall replacement for an If arm must be discarded, not spliced in")
	assert.Equal(t, code, rewritten)
}

func TestSummaryIsAlphaInvariantAcrossDistinctParamIdentities(t *testing.T) {
	p1 := NewTemp("p1", TypeWord)
	p2 := NewTemp("p2", TypeWord)
	add := NewPrimTable().Lookup(PAdd)

	t1 := PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: p1}, IntConst{Value: 1}}}
	t2 := PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: p2}, IntConst{Value: 1}}}

	// Summary alone, with no binder context, treats each temp as its
	// own free variable; two singleton fragments referencing a lone
	// free temp each summarize identically regardless of which *Temp
	// it is, since free ordinals are assigned per-fragment.
	assert.Equal(t, Summary(t1), Summary(t2))
}

func TestSummaryDiffersForDifferentPrimitives(t *testing.T) {
	x := NewTemp("x", TypeWord)
	table := NewPrimTable()
	add := table.Lookup(PAdd)
	sub := table.Lookup(PSub)

	t1 := PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: x}, IntConst{Value: 1}}}
	t2 := PrimCall{Prim: sub, Args: []Atom{TempAtom{Temp: x}, IntConst{Value: 1}}}
	assert.NotEqual(t, Summary(t1), Summary(t2))
}

func TestAlphaTailMatchesRenamedParameters(t *testing.T) {
	p1 := NewTemp("p1", TypeWord)
	p2 := NewTemp("p2", TypeWord)
	table := NewPrimTable()
	add := table.Lookup(PAdd)

	t1 := PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: p1}, IntConst{Value: 1}}}
	t2 := PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: p2}, IntConst{Value: 1}}}

	assert.True(t, AlphaTail(t1, []*Temp{p1}, t2, []*Temp{p2}))
}

func TestAlphaTailRejectsDifferentLiterals(t *testing.T) {
	p1 := NewTemp("p1", TypeWord)
	p2 := NewTemp("p2", TypeWord)
	table := NewPrimTable()
	add := table.Lookup(PAdd)

	t1 := PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: p1}, IntConst{Value: 1}}}
	t2 := PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: p2}, IntConst{Value: 2}}}

	assert.False(t, AlphaTail(t1, []*Temp{p1}, t2, []*Temp{p2}))
}

func TestAlphaCodeMatchesAcrossBindChains(t *testing.T) {
	p1 := NewTemp("p1", TypeWord)
	s1 := NewTemp("s1", TypeWord)
	p2 := NewTemp("p2", TypeWord)
	s2 := NewTemp("s2", TypeWord)
	table := NewPrimTable()
	add := table.Lookup(PAdd)

	c1 := Bind{
		Vs:   []*Temp{s1},
		Tail: PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: p1}, IntConst{Value: 1}}},
		Next: Done{Tail: Return{Atoms: []Atom{TempAtom{Temp: s1}}}},
	}
	c2 := Bind{
		Vs:   []*Temp{s2},
		Tail: PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: p2}, IntConst{Value: 1}}},
		Next: Done{Tail: Return{Atoms: []Atom{TempAtom{Temp: s2}}}},
	}
	assert.True(t, AlphaCode(c1, []*Temp{p1}, c2, []*Temp{p2}))
}

func TestAlphaCodeRejectsFreeVariableMismatch(t *testing.T) {
	outer1 := NewTemp("outer1", TypeWord)
	outer2 := NewTemp("outer2", TypeWord)
	p1 := NewTemp("p1", TypeWord)
	p2 := NewTemp("p2", TypeWord)
	table := NewPrimTable()
	add := table.Lookup(PAdd)

	c1 := Done{Tail: PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: p1}, TempAtom{Temp: outer1}}}}
	c2 := Done{Tail: PrimCall{Prim: add, Args: []Atom{TempAtom{Temp: p2}, TempAtom{Temp: outer2}}}}

	assert.False(t, AlphaCode(c1, []*Temp{p1}, c2, []*Temp{p2}), "outer1 and outer2 are different free bindings, not the same one referenced twice")
}

func TestRepVectorWordCount(t *testing.T) {
	rv := RepVector{TypeWord, TypeWord, TypeFlag}
	assert.Equal(t, 3, rv.WordCount())
}

func TestTypeStringNames(t *testing.T) {
	assert.Equal(t, "Word", TypeWord.String())
	assert.Equal(t, "Flag", TypeFlag.String())
	assert.Equal(t, "Bitdata", TypeBitdata.String())
	assert.Equal(t, "Struct", TypeStruct.String())
}

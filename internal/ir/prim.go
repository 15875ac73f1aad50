package ir

// Purity classifies how freely a Tail may be duplicated or dropped by
// the rewriter. Ordered from most to least permissive.
type Purity int

const (
	// Pure tails may be freely duplicated, reordered, or dropped.
	Pure Purity = iota
	// Observer tails may be duplicated (their result may be used
	// more than once, e.g. folded into a fact) and dropped when their
	// result is unused; they are repeatable.
	Observer
	// Volatile tails may be dropped if unused but must not be
	// duplicated (they have no effect on program meaning beyond
	// producing a value, but re-executing them is not free).
	Volatile
	// Impure tails may be neither duplicated nor dropped.
	Impure
	// DoesNotReturn tails (e.g. halt) terminate control flow and
	// may be neither duplicated, dropped, nor reordered past.
	DoesNotReturn
)

// IsRepeatable reports whether a tail of this purity may be
// duplicated by a rewrite (spec.md §3, §4.3).
func (p Purity) IsRepeatable() bool { return p <= Observer }

// HasNoEffect reports whether a tail of this purity may be dropped by
// a rewrite when its result is unused (spec.md §3, §4.3).
func (p Purity) HasNoEffect() bool { return p <= Volatile }

// PrimID is the stable, name-based identity of a primitive kind (as
// opposed to *Prim pointer identity, which distinguishes
// specializations of the same PrimID — see spec.md §3).
type PrimID string

// The fixed primitive vocabulary observable at every boundary
// (spec.md §6).
const (
	PAdd  PrimID = "add"
	PSub  PrimID = "sub"
	PMul  PrimID = "mul"
	PDiv  PrimID = "div" // unsigned; see DESIGN.md Open Question (a)
	PNeg  PrimID = "neg"
	PAnd  PrimID = "and"
	POr   PrimID = "or"
	PXor  PrimID = "xor"
	PNot  PrimID = "not"
	PShl  PrimID = "shl"
	PLShr PrimID = "lshr"
	PAShr PrimID = "ashr"

	PEq  PrimID = "primEq"
	PNeq PrimID = "primNeq"
	PLt  PrimID = "primLt"
	PLte PrimID = "primLte"
	PGt  PrimID = "primGt"
	PGte PrimID = "primGte"

	PFlagToWord PrimID = "flagToWord"
	PBNot       PrimID = "bnot"

	PHalt PrimID = "halt"
	PLoop PrimID = "loop"

	PPrintWord PrimID = "printWord"

	PLoad  PrimID = "load"
	PStore PrimID = "store"
)

// Prim is a named, typed primitive. Two primitives with identical ID
// may differ after specialization (e.g. load/store at different
// widths). facts.LookupPrim, which the rewriter uses, matches by ID;
// facts.IsPrim matches by *Prim pointer.
type Prim struct {
	ID        PrimID
	Arity     int
	Outity    int
	Purity    Purity
	BlockType BlockType
}

// defaultPurity gives each PrimID's purity per spec.md §3/§6.
func defaultPurity(id PrimID) Purity {
	switch id {
	case PHalt, PLoop:
		return DoesNotReturn
	case PPrintWord, PStore:
		return Impure
	case PLoad:
		// A load may fault or observe memory state change across
		// reorderings; treat as Observer so it can be duplicated
		// into facts, and, like any Observer, dropped when its
		// result is unused.
		return Observer
	case PDiv:
		// unsigned division may trap on divide-by-zero.
		return Observer
	default:
		return Pure
	}
}

// PrimTable is the process-wide interner for primitives, threaded
// through passes as a handle rather than kept as a mutable package
// global (spec.md §9).
type PrimTable struct {
	byID map[PrimID][]*Prim
}

// NewPrimTable builds a table preloaded with the standard vocabulary
// at their canonical arities.
func NewPrimTable() *PrimTable {
	t := &PrimTable{byID: make(map[PrimID][]*Prim)}
	word := BlockType{Params: []Type{TypeWord}, Results: []Type{TypeWord}}
	binWord := BlockType{Params: []Type{TypeWord, TypeWord}, Results: []Type{TypeWord}}
	binFlag := BlockType{Params: []Type{TypeWord, TypeWord}, Results: []Type{TypeFlag}}

	bin := []PrimID{PAdd, PSub, PMul, PDiv, PAnd, POr, PXor, PShl, PLShr, PAShr}
	for _, id := range bin {
		t.Register(id, 2, 1, defaultPurity(id), binWord)
	}
	for _, id := range []PrimID{PEq, PNeq, PLt, PLte, PGt, PGte} {
		t.Register(id, 2, 1, Pure, binFlag)
	}
	for _, id := range []PrimID{PNeg, PNot} {
		t.Register(id, 1, 1, Pure, word)
	}
	flagFlag := BlockType{Params: []Type{TypeFlag}, Results: []Type{TypeFlag}}
	t.Register(PBNot, 1, 1, Pure, flagFlag)
	t.Register(PFlagToWord, 1, 1, Pure, BlockType{Params: []Type{TypeFlag}, Results: []Type{TypeWord}})
	t.Register(PHalt, 0, 0, DoesNotReturn, BlockType{})
	t.Register(PLoop, 0, 0, DoesNotReturn, BlockType{})
	t.Register(PPrintWord, 1, 0, Impure, BlockType{Params: []Type{TypeWord}})
	// load(size, base, offset, index, mult) -> word
	t.Register(PLoad, 5, 1, Observer, BlockType{
		Params:  []Type{TypeWord, TypeWord, TypeWord, TypeWord, TypeWord},
		Results: []Type{TypeWord},
	})
	// store(size, base, offset, index, mult, value) -> ()
	t.Register(PStore, 6, 0, Impure, BlockType{
		Params: []Type{TypeWord, TypeWord, TypeWord, TypeWord, TypeWord, TypeWord},
	})
	return t
}

// Register interns a fresh *Prim for id, returning it. Each call
// produces a new, distinct *Prim even for a repeated id, matching
// spec.md §3's "two primitives with identical id may differ after
// specialization; identity is by reference".
func (t *PrimTable) Register(id PrimID, arity, outity int, purity Purity, bt BlockType) *Prim {
	p := &Prim{ID: id, Arity: arity, Outity: outity, Purity: purity, BlockType: bt}
	t.byID[id] = append(t.byID[id], p)
	return p
}

// Lookup returns the first registered Prim with the given ID, or nil.
// Used by the rewriter to recognize a primitive's identity/arity when
// producing a replacement; rewrites must preserve the operand *Prim
// pointer when re-emitting a PrimCall of the same kind.
func (t *PrimTable) Lookup(id PrimID) *Prim {
	ps := t.byID[id]
	if len(ps) == 0 {
		return nil
	}
	return ps[0]
}

// Is reports whether p's ID matches id. Rewrite dispatch keys on this,
// not on pointer equality, since a program may carry several
// specialized *Prim values sharing an ID.
func Is(p *Prim, id PrimID) bool { return p != nil && p.ID == id }

package ir

// Code is a linear spine of bindings terminated by a tail, a two-way
// branch, or a constructor-dispatch case.
type Code interface {
	isCode()
}

// Bind binds Vs to the tuple produced by Tail, then continues as
// Next. len(Vs) must equal Tail.Outity() (spec.md §3 Arity invariant).
// A Temp appearing in Vs is in scope only within Next.
type Bind struct {
	Vs   []*Temp
	Tail Tail
	Next Code
}

func (Bind) isCode() {}

// Done is a terminal Code: the block's (or top-level's) result is
// whatever Tail produces.
type Done struct {
	Tail Tail
}

func (Done) isCode() {}

// If is a two-way branch on a Flag-typed temp.
type If struct {
	V    *Temp
	Then BlockCall
	Else BlockCall
}

func (If) isCode() {}

// CaseAlt pairs a constructor function with the block to call when
// the scrutinee was built by that constructor.
type CaseAlt struct {
	Cfun  *Cfun
	Call  BlockCall
}

// Case dispatches on the constructor tag of V.
type Case struct {
	V       *Temp
	Alts    []CaseAlt
	Default *BlockCall // nil if the dispatch is exhaustive
}

func (Case) isCode() {}

// Package lift implements the lambda lifter of spec.md §4.5: it closes
// over free variables by rewriting mutually-recursive local closures
// into top-level blocks that take the free variables as extra
// parameters.
package lift

import "github.com/dshills/lcmil/internal/ir"

// Lifting records one closure's rewrite: the new top-level block it
// became, and the extra (free) variables appended to every call.
type Lifting struct {
	Original *ir.ClosureDefn
	NewBlock *ir.Block
	Extra    []*ir.Temp
}

// LiftEnv accumulates liftings discovered across SCCs so later SCCs'
// free-variable closure can see which names already became top-level
// calls (spec.md §4.5 "union-closing across liftings in the current
// environment").
type LiftEnv struct {
	byClosure map[*ir.ClosureDefn]*Lifting
	Lifted    []*ir.Block
}

func newLiftEnv() *LiftEnv {
	return &LiftEnv{byClosure: make(map[*ir.ClosureDefn]*Lifting)}
}

// Lift computes SCCs of the program's closures, lifts each SCC to a
// set of new top-level blocks parameterized over their free variables,
// rewrites every reference to a lifted closure into a call to its new
// block with the extra variables appended, and returns the newly
// created blocks (also appended to prog's "lifted" list, i.e.
// prog.Blocks).
func Lift(prog *ir.Program) []*ir.Block {
	env := newLiftEnv()
	sccs := tarjanSCCs(prog.Closures)

	for _, scc := range sccs {
		extra := computeExtraVars(scc, env)
		for _, cd := range scc {
			nb := liftOne(prog, cd, extra)
			env.byClosure[cd] = &Lifting{Original: cd, NewBlock: nb, Extra: extra}
			env.Lifted = append(env.Lifted, nb)
		}
		// Rewrite each lifted closure's body now that every member of
		// the SCC has a NewBlock assigned, so co-recursive references
		// resolve.
		for _, cd := range scc {
			lg := env.byClosure[cd]
			lg.NewBlock.Body = rewriteClosureBody(cd, env)
		}
	}
	return env.Lifted
}

// liftOne registers a fresh top-level block for cd: its parameters
// are cd's own Params followed by the extra free variables; its body
// is filled in afterwards by rewriteClosureBody once the whole SCC's
// blocks exist (so mutual references can be resolved).
func liftOne(prog *ir.Program, cd *ir.ClosureDefn, extra []*ir.Temp) *ir.Block {
	params := make([]*ir.Temp, 0, len(cd.Params)+len(extra))
	params = append(params, cd.Params...)
	params = append(params, extra...)
	b := &ir.Block{Name: liftedName(cd), Params: params}
	prog.AddBlock(b)
	return b
}

func liftedName(cd *ir.ClosureDefn) string {
	return "lifted$" + cd.Name
}

// computeExtraVars determines the free variables of an SCC: atoms
// referenced in any member's body that are not bound by that member's
// own Stored+Params and do not name another member of the same SCC
// (spec.md §4.5 "union-closing across liftings").
func computeExtraVars(scc []*ir.ClosureDefn, env *LiftEnv) []*ir.Temp {
	inSCC := make(map[*ir.ClosureDefn]bool, len(scc))
	for _, cd := range scc {
		inSCC[cd] = true
	}

	seen := make(map[*ir.Temp]bool)
	var extra []*ir.Temp
	for _, cd := range scc {
		bound := make(map[*ir.Temp]bool)
		for _, t := range cd.Stored {
			bound[t] = true
		}
		for _, t := range cd.Params {
			bound[t] = true
		}
		for free := range freeTempsInTail(cd.Body, bound, scc, inSCC) {
			if !seen[free] {
				seen[free] = true
				extra = append(extra, free)
			}
		}
		// Closures already lifted in an earlier SCC that this one
		// references contribute their own extra variables too (the
		// "union-closing" spec.md calls for): a reference to an
		// already-lifted sibling must still carry along whatever free
		// variables that sibling itself needed.
		for ref := range referencedClosures(cd.Body) {
			if lg, ok := env.byClosure[ref]; ok {
				for _, e := range lg.Extra {
					if !seen[e] {
						seen[e] = true
						extra = append(extra, e)
					}
				}
			}
		}
	}
	return extra
}

// freeTempsInTail collects Temp references in t not covered by bound,
// skipping references that name a fellow SCC member (those become
// direct calls to the new top-level blocks instead of captured
// values).
func freeTempsInTail(t ir.Tail, bound map[*ir.Temp]bool, scc []*ir.ClosureDefn, inSCC map[*ir.ClosureDefn]bool) map[*ir.Temp]bool {
	free := make(map[*ir.Temp]bool)
	var walkAtom func(a ir.Atom)
	walkAtom = func(a ir.Atom) {
		if tp, ok := ir.AsTemp(a); ok && !bound[tp] {
			free[tp] = true
		}
	}
	switch n := t.(type) {
	case ir.Return:
		for _, a := range n.Atoms {
			walkAtom(a)
		}
	case ir.PrimCall:
		for _, a := range n.Args {
			walkAtom(a)
		}
	case ir.BlockCall:
		for _, a := range n.Args {
			walkAtom(a)
		}
	case ir.DataAlloc:
		for _, a := range n.Args {
			walkAtom(a)
		}
	case ir.ClosAlloc:
		if n.Def == nil || !inSCC[n.Def] {
			for _, a := range n.Args {
				walkAtom(a)
			}
		}
		// arguments to a sibling SCC member's closure allocation are
		// exactly its captured variables, already accounted for when
		// that member's own Stored/body is walked.
	case ir.Enter:
		walkAtom(n.Func)
		for _, a := range n.Args {
			walkAtom(a)
		}
	case ir.Sel:
		walkAtom(n.Atom)
	}
	return free
}

// referencedClosures returns the set of ClosureDefns t allocates (a
// ClosAlloc); an Enter contributes nothing.
func referencedClosures(t ir.Tail) map[*ir.ClosureDefn]bool {
	out := make(map[*ir.ClosureDefn]bool)
	if ca, ok := t.(ir.ClosAlloc); ok && ca.Def != nil {
		out[ca.Def] = true
	}
	return out
}

// rewriteClosureBody produces the Code for cd's lifted block: cd's
// body tail, with every reference to a fellow SCC member's ClosAlloc
// replaced by a BlockCall to that member's new top-level block, passing
// its own params plus the (now-resolved) extra variables.
func rewriteClosureBody(cd *ir.ClosureDefn, env *LiftEnv) ir.Code {
	switch n := cd.Body.(type) {
	case ir.ClosAlloc:
		if n.Def != nil {
			if lg, ok := env.byClosure[n.Def]; ok {
				args := append(append([]ir.Atom{}, n.Args...), extraAtoms(lg.Extra)...)
				return ir.Done{Tail: ir.BlockCall{Block: lg.NewBlock, Args: args}}
			}
		}
		return ir.Done{Tail: n}
	default:
		return ir.Done{Tail: cd.Body}
	}
}

func extraAtoms(extra []*ir.Temp) []ir.Atom {
	atoms := make([]ir.Atom, len(extra))
	for i, t := range extra {
		atoms[i] = ir.TempAtom{Temp: t}
	}
	return atoms
}

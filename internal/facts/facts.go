// Package facts implements the per-spine fact table the peephole
// rewriter consults: a map from temporary to the unique, repeatable
// tail that defined it (spec.md §4.2).
package facts

import "github.com/dshills/lcmil/internal/ir"

// entry is one link of the persistent, cons-list fact table. Facts are
// never mutated once built — the flow pass only ever extends a table,
// producing a new head, which is exactly what makes branch exploration
// safe (spec.md §9: "facts as persistent map").
type entry struct {
	temp *ir.Temp
	tail ir.Tail
	next *entry
}

// Facts is an immutable mapping from *ir.Temp to the ir.Tail that
// defined it, covering only atoms bound earlier on the same linear
// Code spine (spec.md §3 "Facts are local").
type Facts struct {
	head *entry
}

// Empty is the fact table at the top of a fresh block: no bindings
// are yet visible.
var Empty = Facts{}

// Extend records that t was bound to tail, returning a new table that
// also contains every binding in f. Only recorded when tail is
// repeatable (spec.md §4.2): a fact map entry for t is itself only
// ever consulted as a substitution for t, so it must be safe to
// re-evaluate the tail in place of every future occurrence of t.
func Extend(f Facts, t *ir.Temp, tail ir.Tail) Facts {
	if !tail.Purity().IsRepeatable() {
		return f
	}
	return Facts{head: &entry{temp: t, tail: tail, next: f.head}}
}

// Lookup returns the fact for atom a, if any: a is a TempAtom bound
// earlier on this spine to a repeatable tail.
func Lookup(f Facts, a ir.Atom) (ir.Tail, bool) {
	t, ok := ir.AsTemp(a)
	if !ok {
		return nil, false
	}
	for e := f.head; e != nil; e = e.next {
		if e.temp == t {
			return e.tail, true
		}
	}
	return nil, false
}

// IsPrim reports whether tail is a PrimCall of prim p, returning its
// argument atoms if so.
func IsPrim(tail ir.Tail, p *ir.Prim) ([]ir.Atom, bool) {
	pc, ok := tail.(ir.PrimCall)
	if !ok || pc.Prim != p {
		return nil, false
	}
	return pc.Args, true
}

// LookupPrim is the common compose of Lookup+IsPrim: resolves atom a
// through the fact table and checks whether the tail that defined it
// was a PrimCall of the named primitive ID (matched by ID rather than
// pointer, since specialized *ir.Prim values share an ID — spec.md
// §3).
func LookupPrim(f Facts, a ir.Atom, id ir.PrimID) ([]ir.Atom, bool) {
	tail, ok := Lookup(f, a)
	if !ok {
		return nil, false
	}
	pc, ok := tail.(ir.PrimCall)
	if !ok || pc.Prim == nil || pc.Prim.ID != id {
		return nil, false
	}
	return pc.Args, true
}

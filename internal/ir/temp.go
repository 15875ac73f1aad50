// Package ir defines the MIL intermediate representation: atoms, types,
// primitives, tails, code, blocks, closures, constructor functions and
// top-level definitions, plus the program arena that owns them.
package ir

import "fmt"

// Temp is a local temporary name. Identity is by pointer: two Temps are
// the same binding iff they are the same *Temp value. A Temp is bound
// exactly once, either as a Block parameter or on the left of a Bind,
// and is only ever in scope within the Code that follows that binding.
type Temp struct {
	// Hint is a human-readable name used only for printing; it plays
	// no role in equality or scoping.
	Hint string
	// Type is the temp's MIL type.
	Type Type
}

// NewTemp creates a fresh temporary. Every call returns a distinct
// identity even if hint and typ match a previously created Temp.
func NewTemp(hint string, typ Type) *Temp {
	return &Temp{Hint: hint, Type: typ}
}

func (t *Temp) String() string {
	if t == nil {
		return "<nil-temp>"
	}
	return fmt.Sprintf("%%%s", t.Hint)
}

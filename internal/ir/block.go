package ir

// Block is a named code with explicit parameters: the unit of control
// flow. Blocks are referred to by shared reference; a Program is a set
// of blocks plus entry points.
type Block struct {
	Name   string
	Params []*Temp
	Body   Code

	// Preds and UnusedParams are call-site metadata
	// accumulated across a pass-driver fixpoint iteration (spec.md
	// §3 Lifecycle, §4.4 removeUnusedArgs). They are reset at the
	// start of each pass iteration by ResetCallMetadata.
	Preds        []*Block
	UnusedParams []bool
}

// Type computes the block's BlockType from its parameters and the
// result types of its terminal tail. Code alone does not carry result
// types, so Results is the best-effort answer of terminalResultTypes:
// one entry per result of a terminal Done, and nil for a body ending in
// If or Case.
func (b *Block) Type() BlockType {
	bt := BlockType{Params: make([]Type, len(b.Params))}
	for i, p := range b.Params {
		bt.Params[i] = p.Type
	}
	bt.Results = terminalResultTypes(b.Body)
	return bt
}

// terminalResultTypes walks a Code spine to the first Done/If/Case and
// reports best-effort result types (Word for everything not otherwise
// known; callers needing exact types should consult the type checker's
// output instead, since kind/type inference is out of core scope).
func terminalResultTypes(c Code) []Type {
	switch n := c.(type) {
	case Bind:
		return terminalResultTypes(n.Next)
	case Done:
		return make([]Type, n.Tail.Outity())
	case If, Case:
		return nil
	default:
		return nil
	}
}

// ResetCallMetadata clears predecessor and unused-argument bookkeeping
// ahead of a fresh pass-driver iteration (spec.md §3 Lifecycle).
func (b *Block) ResetCallMetadata() {
	b.Preds = nil
	b.UnusedParams = nil
}

package ir

// Program is the arena that owns every Block, ClosureDefn, TopLevel,
// Cfun and Type definition in a compilation unit. Go's garbage
// collector already resolves the cyclic-reference problem spec.md §9
// raises for arena-of-indices designs (Cfun<->DataName,
// TopLevel<->Tail), so internal references are ordinary typed
// pointers into this arena rather than integer indices; Program's role
// is to be the single owner that can enumerate, add, and remove
// entities as passes run.
type Program struct {
	Prims *PrimTable

	Blocks     []*Block
	TopLevels  []*TopLevel
	Closures   []*ClosureDefn
	Cfuns      []*Cfun
	DataNames  []*DataName
	EntryNames []string // names of TopLevels / Blocks reachable from outside the program

	byBlockName map[string]*Block
}

// NewProgram creates an empty arena with a fresh primitive table.
func NewProgram() *Program {
	return &Program{
		Prims:       NewPrimTable(),
		byBlockName: make(map[string]*Block),
	}
}

// AddBlock registers a block with the arena and indexes it by name.
func (p *Program) AddBlock(b *Block) *Block {
	p.Blocks = append(p.Blocks, b)
	p.byBlockName[b.Name] = b
	return b
}

// BlockByName looks up a block by its declared name.
func (p *Program) BlockByName(name string) (*Block, bool) {
	b, ok := p.byBlockName[name]
	return b, ok
}

// RemoveBlock deletes a block from the arena (used by the pass driver
// once dead code / merged duplicates make it unreachable).
func (p *Program) RemoveBlock(b *Block) {
	delete(p.byBlockName, b.Name)
	for i, bb := range p.Blocks {
		if bb == b {
			p.Blocks = append(p.Blocks[:i], p.Blocks[i+1:]...)
			return
		}
	}
}

// AddTopLevel registers a top-level definition with the arena.
func (p *Program) AddTopLevel(t *TopLevel) *TopLevel {
	p.TopLevels = append(p.TopLevels, t)
	return t
}

// AddClosure registers a closure definition with the arena.
func (p *Program) AddClosure(c *ClosureDefn) *ClosureDefn {
	p.Closures = append(p.Closures, c)
	return c
}

// AddCfun registers a constructor function with the arena.
func (p *Program) AddCfun(c *Cfun) *Cfun {
	p.Cfuns = append(p.Cfuns, c)
	return c
}

// EntryBlocks resolves EntryNames against the registered blocks,
// skipping any name that does not resolve to a block (it may name a
// TopLevel instead).
func (p *Program) EntryBlocks() []*Block {
	var out []*Block
	for _, name := range p.EntryNames {
		if b, ok := p.byBlockName[name]; ok {
			out = append(out, b)
		}
	}
	return out
}

// ResetAllCallMetadata clears every block's per-iteration call-site
// bookkeeping ahead of a fresh pass-driver pass (spec.md §3
// Lifecycle).
func (p *Program) ResetAllCallMetadata() {
	for _, b := range p.Blocks {
		b.ResetCallMetadata()
	}
}

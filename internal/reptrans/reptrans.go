// Package reptrans implements the representation transform of spec.md
// §4.6: it replaces high-level bitdata values with machine words,
// lowering DataAlloc/Sel/mask-test Case dispatches to generated
// support blocks built from primitive bit operations.
package reptrans

import "github.com/dshills/lcmil/internal/ir"

// FieldLayout places one constructor field at a bit offset/width
// within its constructor's packed word.
type FieldLayout struct {
	Offset int
	Width  int
}

// CfunLayout is the representation vector for one constructor
// function: its tag bits plus its payload fields' bit positions,
// all within a WordBits-wide machine word (spec.md §8 scenario 5 uses
// an 8-bit word with a 2-bit tag and a 6-bit payload field).
type CfunLayout struct {
	WordBits  int
	TagOffset int
	TagWidth  int
	TagValue  int64
	Fields    []FieldLayout // indexed the same as DataAlloc's Args / Sel's N
}

// TagMask returns the bitmask covering this layout's tag field.
func (l CfunLayout) TagMask() int64 {
	return ((int64(1) << uint(l.TagWidth)) - 1) << uint(l.TagOffset)
}

// TagBits returns the tag value already shifted into position, ready
// to compare against a word ANDed with TagMask().
func (l CfunLayout) TagBits() int64 {
	return l.TagValue << uint(l.TagOffset)
}

// FieldMask returns the bitmask covering field i.
func (l CfunLayout) FieldMask(i int) int64 {
	f := l.Fields[i]
	return ((int64(1) << uint(f.Width)) - 1) << uint(f.Offset)
}

// Layouts maps each Cfun to its packed-word layout; the caller (the
// type checker / bitdata declaration, out of core scope) supplies it.
type Layouts map[*ir.Cfun]CfunLayout

// Transform lowers every DataAlloc, Sel and mask-test Case in prog
// whose Cfun has an entry in layouts, generating one constructor block
// per distinct Cfun and one field-extract block per distinct (Cfun,
// field) the program actually uses, and a then/else pair of
// dispatch-chain blocks per alt of each lowered Case. A DataAlloc, Sel
// or Case whose Cfun has no entry in layouts is left unchanged and is
// not reported here; llvmgen rejects any that reach it.
func Transform(prog *ir.Program, layouts Layouts) error {
	gen := &generator{prog: prog, layouts: layouts, ctorBlocks: map[*ir.Cfun]*ir.Block{}, selBlocks: map[cfunField]*ir.Block{}}

	for _, b := range prog.Blocks {
		newBody, err := gen.transformCode(b.Body)
		if err != nil {
			return err
		}
		b.Body = newBody
	}
	for _, top := range prog.TopLevels {
		newTail, err := gen.transformTail(top.Tail)
		if err != nil {
			return err
		}
		top.Tail = newTail
	}
	return nil
}

type cfunField struct {
	cfun *ir.Cfun
	n    int
}

type generator struct {
	prog       *ir.Program
	layouts    Layouts
	ctorBlocks map[*ir.Cfun]*ir.Block
	selBlocks  map[cfunField]*ir.Block
	counter    int
}

func (g *generator) freshName(prefix string) string {
	g.counter++
	return prefix + "$" + itoa(g.counter)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (g *generator) transformCode(c ir.Code) (ir.Code, error) {
	switch n := c.(type) {
	case ir.Bind:
		newTail, err := g.transformTail(n.Tail)
		if err != nil {
			return nil, err
		}
		newNext, err := g.transformCode(n.Next)
		if err != nil {
			return nil, err
		}
		return ir.Bind{Vs: n.Vs, Tail: newTail, Next: newNext}, nil
	case ir.Done:
		newTail, err := g.transformTail(n.Tail)
		if err != nil {
			return nil, err
		}
		return ir.Done{Tail: newTail}, nil
	case ir.Case:
		return g.transformCase(n)
	default:
		return c, nil
	}
}

func (g *generator) transformTail(t ir.Tail) (ir.Tail, error) {
	switch n := t.(type) {
	case ir.DataAlloc:
		layout, ok := g.layouts[n.Cfun]
		if !ok {
			return t, nil // not a lowered type; leave untouched
		}
		block := g.constructorBlock(n.Cfun, layout)
		return ir.BlockCall{Block: block, Args: n.Args}, nil
	case ir.Sel:
		layout, ok := g.layouts[n.Cfun]
		if !ok {
			return t, nil
		}
		block := g.selectorBlock(n.Cfun, n.N, layout)
		return ir.BlockCall{Block: block, Args: []ir.Atom{n.Atom}}, nil
	default:
		return t, nil
	}
}

// constructorBlock returns (creating if needed) the generated block
// that packs a Cfun's fields and tag into one word: a left fold of
// `or`s starting from the tag bits, each field first masked with `and`
// and shifted into position with `shl`.
func (g *generator) constructorBlock(cf *ir.Cfun, layout CfunLayout) *ir.Block {
	if b, ok := g.ctorBlocks[cf]; ok {
		return b
	}
	or := g.prog.Prims.Lookup(ir.POr)
	shl := g.prog.Prims.Lookup(ir.PShl)
	and := g.prog.Prims.Lookup(ir.PAnd)

	params := make([]*ir.Temp, len(layout.Fields))
	for i := range layout.Fields {
		params[i] = ir.NewTemp("field", ir.TypeWord)
	}

	// Fold the tag bits and each field's shifted-and-masked value
	// together with `or`, left to right, so the generated Binds read
	// in the natural "pack the tag, then each field" order.
	result := ir.Atom(ir.IntConst{Value: layout.TagBits()})
	var binds []ir.Bind
	for i, f := range layout.Fields {
		masked := ir.NewTemp("masked", ir.TypeWord)
		shifted := ir.NewTemp("shifted", ir.TypeWord)
		packed := ir.NewTemp("packed", ir.TypeWord)
		binds = append(binds,
			ir.Bind{Vs: []*ir.Temp{masked}, Tail: ir.PrimCall{Prim: and, Args: []ir.Atom{ir.TempAtom{Temp: params[i]}, ir.IntConst{Value: fieldValueMask(f)}}}},
			ir.Bind{Vs: []*ir.Temp{shifted}, Tail: ir.PrimCall{Prim: shl, Args: []ir.Atom{ir.TempAtom{Temp: masked}, ir.IntConst{Value: int64(f.Offset)}}}},
			ir.Bind{Vs: []*ir.Temp{packed}, Tail: ir.PrimCall{Prim: or, Args: []ir.Atom{result, ir.TempAtom{Temp: shifted}}}},
		)
		result = ir.TempAtom{Temp: packed}
	}

	code := ir.Code(ir.Done{Tail: ir.Return{Atoms: []ir.Atom{result}}})
	for i := len(binds) - 1; i >= 0; i-- {
		code = ir.Bind{Vs: binds[i].Vs, Tail: binds[i].Tail, Next: code}
	}

	b := &ir.Block{Name: g.freshName("ctor$" + cf.ID), Params: params, Body: code}
	g.prog.AddBlock(b)
	g.ctorBlocks[cf] = b
	return b
}

// fieldValueMask is the low-order mask (not yet shifted) that a raw
// field value must be ANDed with before it is shifted into place,
// ensuring a caller that accidentally supplies a too-wide value cannot
// corrupt neighboring fields.
func fieldValueMask(f FieldLayout) int64 {
	return (int64(1) << uint(f.Width)) - 1
}

// selectorBlock returns (creating if needed) the generated block that
// extracts field n of cf: mask then shift.
func (g *generator) selectorBlock(cf *ir.Cfun, n int, layout CfunLayout) *ir.Block {
	key := cfunField{cfun: cf, n: n}
	if b, ok := g.selBlocks[key]; ok {
		return b
	}
	and := g.prog.Prims.Lookup(ir.PAnd)
	lshr := g.prog.Prims.Lookup(ir.PLShr)

	src := ir.NewTemp("word", ir.TypeWord)
	masked := ir.NewTemp("masked", ir.TypeWord)
	field := layout.Fields[n]

	code := ir.Bind{
		Vs:   []*ir.Temp{masked},
		Tail: ir.PrimCall{Prim: and, Args: []ir.Atom{ir.TempAtom{Temp: src}, ir.IntConst{Value: layout.FieldMask(n)}}},
		Next: ir.Done{Tail: ir.PrimCall{Prim: lshr, Args: []ir.Atom{ir.TempAtom{Temp: masked}, ir.IntConst{Value: int64(field.Offset)}}}},
	}
	b := &ir.Block{Name: g.freshName("sel$" + cf.ID), Params: []*ir.Temp{src}, Body: code}
	g.prog.AddBlock(b)
	g.selBlocks[key] = b
	return b
}

// transformCase lowers a mask-test Case dispatch into a chain of
// generated blocks, each ANDing the scrutinee word with one alt's tag
// mask and comparing to its tag bits, short-circuiting (via If) to the
// next alt on mismatch (spec.md §4.6).
func (g *generator) transformCase(c ir.Case) (ir.Code, error) {
	if len(c.Alts) == 0 {
		return c, nil
	}
	if _, ok := g.layouts[c.Alts[0].Cfun]; !ok {
		return c, nil // not bitdata; leave the constructor-tag dispatch as-is
	}

	fallback := c.Default
	var build func(i int) ir.Code
	build = func(i int) ir.Code {
		if i >= len(c.Alts) {
			if fallback != nil {
				return ir.Done{Tail: *fallback}
			}
			// Exhaustive dispatch with no default: fall through to
			// the last alt per spec.md §7's "prefer no silent
			// no-op"; an unmatched scrutinee here is a precondition
			// violation the type checker should have ruled out.
			return ir.Done{Tail: c.Alts[len(c.Alts)-1].Call}
		}
		alt := c.Alts[i]
		al, ok := g.layouts[alt.Cfun]
		if !ok {
			return ir.Done{Tail: alt.Call}
		}
		masked := ir.NewTemp("tagmasked", ir.TypeWord)
		cmp := ir.NewTemp("tagmatch", ir.TypeFlag)
		and := g.prog.Prims.Lookup(ir.PAnd)
		eq := g.prog.Prims.Lookup(ir.PEq)

		elseBlock := &ir.Block{Name: g.freshName("masktest$else"), Body: build(i + 1)}
		g.prog.AddBlock(elseBlock)
		thenBlock := &ir.Block{Name: g.freshName("masktest$then"), Body: ir.Done{Tail: alt.Call}}
		g.prog.AddBlock(thenBlock)

		return ir.Bind{
			Vs:   []*ir.Temp{masked},
			Tail: ir.PrimCall{Prim: and, Args: []ir.Atom{ir.TempAtom{Temp: c.V}, ir.IntConst{Value: al.TagMask()}}},
			Next: ir.Bind{
				Vs:   []*ir.Temp{cmp},
				Tail: ir.PrimCall{Prim: eq, Args: []ir.Atom{ir.TempAtom{Temp: masked}, ir.IntConst{Value: al.TagBits()}}},
				Next: ir.If{
					V:    cmp,
					Then: ir.BlockCall{Block: thenBlock},
					Else: ir.BlockCall{Block: elseBlock},
				},
			},
		}
	}
	return build(0), nil
}

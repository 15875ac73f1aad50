package frontend

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/dshills/lcmil/internal/ir"
	"github.com/dshills/lcmil/internal/reptrans"
)

// unmarshalInto decodes a raw JSON body captured by fixtureCode's or
// fixtureTail's custom UnmarshalJSON into the concrete DTO shape its
// "kind" discriminator names.
func unmarshalInto(raw json.RawMessage, dto interface{}) error {
	if err := json.Unmarshal(raw, dto); err != nil {
		return errors.Wrap(err, "decoding fixture body")
	}
	return nil
}

// resolver holds the name -> entity maps a fixture's forward references
// (a block calling one declared later, a closure capturing itself, a
// TopRef naming a top-level by its left-hand name) resolve against. It
// is built in a first pass that creates every named entity as an empty
// shell, then filled in by a second pass that can freely reference any
// of them regardless of declaration order.
type resolver struct {
	prog     *ir.Program
	dataName map[string]ir.DataName
	cfuns    map[string]*ir.Cfun
	blocks   map[string]*ir.Block
	closures map[string]*ir.ClosureDefn
	tops     map[string]*ir.TopLevel
}

func (fm *fixtureModule) resolve() (*ir.Program, reptrans.Layouts, error) {
	prog := ir.NewProgram()
	r := &resolver{
		prog:     prog,
		dataName: map[string]ir.DataName{},
		cfuns:    map[string]*ir.Cfun{},
		blocks:   map[string]*ir.Block{},
		closures: map[string]*ir.ClosureDefn{},
		tops:     map[string]*ir.TopLevel{},
	}
	layouts := reptrans.Layouts{}

	for _, name := range fm.DataNames {
		r.dataName[name] = ir.DataName{Name: name}
	}
	for _, fc := range fm.Cfuns {
		dn, ok := r.dataName[fc.DataName]
		if !ok {
			dn = ir.DataName{Name: fc.DataName}
			r.dataName[fc.DataName] = dn
		}
		typ, err := parseType(fc.AllocType)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "cfun %s", fc.ID)
		}
		cf := &ir.Cfun{ID: fc.ID, DataName: dn, TagIndex: fc.TagIndex, AllocType: typ}
		r.cfuns[fc.ID] = cf
		prog.AddCfun(cf)

		if fc.Layout != nil {
			fields := make([]reptrans.FieldLayout, len(fc.Layout.Fields))
			for i, f := range fc.Layout.Fields {
				fields[i] = reptrans.FieldLayout{Offset: f.Offset, Width: f.Width}
			}
			layouts[cf] = reptrans.CfunLayout{
				WordBits:  fc.Layout.WordBits,
				TagOffset: fc.Layout.TagOffset,
				TagWidth:  fc.Layout.TagWidth,
				TagValue:  fc.Layout.TagValue,
				Fields:    fields,
			}
		}
	}
	for _, fb := range fm.Blocks {
		params, err := newTemps(fb.Params)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "block %s params", fb.Name)
		}
		b := &ir.Block{Name: fb.Name, Params: params}
		r.blocks[fb.Name] = b
		prog.AddBlock(b)
	}
	for _, fc := range fm.Closures {
		stored, err := newTemps(fc.Stored)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "closure %s stored", fc.Name)
		}
		params, err := newTemps(fc.Params)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "closure %s params", fc.Name)
		}
		cd := &ir.ClosureDefn{Name: fc.Name, Stored: stored, Params: params}
		r.closures[fc.Name] = cd
		prog.AddClosure(cd)
	}
	for _, ft := range fm.TopLevels {
		lhs := make([]ir.TopLhs, len(ft.Lhs))
		for i, l := range ft.Lhs {
			typ, err := parseType(l.Type)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "top-level %s", l.Name)
			}
			lhs[i] = ir.TopLhs{Name: l.Name, Type: typ}
		}
		top := &ir.TopLevel{Lhs: lhs}
		if len(lhs) > 0 {
			r.tops[lhs[0].Name] = top
		}
		prog.AddTopLevel(top)
	}

	// Second pass: fill in bodies now that every name resolves.
	for _, fb := range fm.Blocks {
		b := r.blocks[fb.Name]
		scope := scopeOf(b.Params)
		code, err := r.resolveCode(fb.Body, scope)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "block %s", fb.Name)
		}
		b.Body = code
	}
	for i, fc := range fm.Closures {
		cd := prog.Closures[i]
		scope := scopeOf(cd.Stored)
		for k, v := range scopeOf(cd.Params) {
			scope[k] = v
		}
		tail, err := r.resolveTail(fc.Body, scope)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "closure %s", fc.Name)
		}
		cd.Body = tail
	}
	for i, ft := range fm.TopLevels {
		top := prog.TopLevels[i]
		tail, err := r.resolveTail(ft.Tail, map[string]*ir.Temp{})
		if err != nil {
			return nil, nil, errors.Wrapf(err, "top-level %d", i)
		}
		top.Tail = tail
	}

	prog.EntryNames = fm.EntryNames
	return prog, layouts, nil
}

func scopeOf(temps []*ir.Temp) map[string]*ir.Temp {
	scope := make(map[string]*ir.Temp, len(temps))
	for _, t := range temps {
		scope[t.Hint] = t
	}
	return scope
}

func newTemps(fts []fixtureTemp) ([]*ir.Temp, error) {
	out := make([]*ir.Temp, len(fts))
	for i, ft := range fts {
		typ, err := parseType(ft.Type)
		if err != nil {
			return nil, err
		}
		out[i] = ir.NewTemp(ft.Hint, typ)
	}
	return out, nil
}

func parseType(s string) (ir.Type, error) {
	switch s {
	case "word", "":
		return ir.TypeWord, nil
	case "flag":
		return ir.TypeFlag, nil
	case "bitdata":
		return ir.TypeBitdata, nil
	case "struct":
		return ir.TypeStruct, nil
	default:
		return 0, errors.Errorf("unknown type %q", s)
	}
}

func (r *resolver) resolveCode(fc fixtureCode, scope map[string]*ir.Temp) (ir.Code, error) {
	switch fc.Kind {
	case "bind":
		var dto fixtureBindCode
		if err := unmarshalInto(fc.Raw, &dto); err != nil {
			return nil, err
		}
		vs, err := newTemps(dto.Vars)
		if err != nil {
			return nil, err
		}
		tail, err := r.resolveTail(dto.Tail, scope)
		if err != nil {
			return nil, err
		}
		inner := cloneScope(scope)
		for _, v := range vs {
			inner[v.Hint] = v
		}
		next, err := r.resolveCode(dto.Next, inner)
		if err != nil {
			return nil, err
		}
		return ir.Bind{Vs: vs, Tail: tail, Next: next}, nil
	case "done":
		var dto fixtureDoneCode
		if err := unmarshalInto(fc.Raw, &dto); err != nil {
			return nil, err
		}
		tail, err := r.resolveTail(dto.Tail, scope)
		if err != nil {
			return nil, err
		}
		return ir.Done{Tail: tail}, nil
	case "if":
		var dto fixtureIfCode
		if err := unmarshalInto(fc.Raw, &dto); err != nil {
			return nil, err
		}
		v, ok := scope[dto.Cond]
		if !ok {
			return nil, errors.Errorf("if: temp %q not in scope", dto.Cond)
		}
		then, err := r.resolveBlockRef(dto.Then, scope)
		if err != nil {
			return nil, err
		}
		els, err := r.resolveBlockRef(dto.Else, scope)
		if err != nil {
			return nil, err
		}
		return ir.If{V: v, Then: then, Else: els}, nil
	case "case":
		var dto fixtureCaseCode
		if err := unmarshalInto(fc.Raw, &dto); err != nil {
			return nil, err
		}
		v, ok := scope[dto.Scrutinee]
		if !ok {
			return nil, errors.Errorf("case: temp %q not in scope", dto.Scrutinee)
		}
		alts := make([]ir.CaseAlt, len(dto.Alts))
		for i, a := range dto.Alts {
			cf, ok := r.cfuns[a.Cfun]
			if !ok {
				return nil, errors.Errorf("case: unknown cfun %q", a.Cfun)
			}
			call, err := r.resolveBlockRef(a.Call, scope)
			if err != nil {
				return nil, err
			}
			alts[i] = ir.CaseAlt{Cfun: cf, Call: call}
		}
		var def *ir.BlockCall
		if dto.Default != nil {
			bc, err := r.resolveBlockRef(*dto.Default, scope)
			if err != nil {
				return nil, err
			}
			def = &bc
		}
		return ir.Case{V: v, Alts: alts, Default: def}, nil
	default:
		return nil, errors.Errorf("unknown code kind %q", fc.Kind)
	}
}

func (r *resolver) resolveBlockRef(ref fixtureBlockRef, scope map[string]*ir.Temp) (ir.BlockCall, error) {
	b, ok := r.blocks[ref.Block]
	if !ok {
		return ir.BlockCall{}, errors.Errorf("unknown block %q", ref.Block)
	}
	args, err := r.resolveAtoms(ref.Args, scope)
	if err != nil {
		return ir.BlockCall{}, err
	}
	return ir.BlockCall{Block: b, Args: args}, nil
}

func (r *resolver) resolveTail(ft fixtureTail, scope map[string]*ir.Temp) (ir.Tail, error) {
	switch ft.Kind {
	case "return":
		var dto fixtureReturnTail
		if err := unmarshalInto(ft.Raw, &dto); err != nil {
			return nil, err
		}
		atoms, err := r.resolveAtoms(dto.Atoms, scope)
		if err != nil {
			return nil, err
		}
		return ir.Return{Atoms: atoms}, nil
	case "prim":
		var dto fixturePrimTail
		if err := unmarshalInto(ft.Raw, &dto); err != nil {
			return nil, err
		}
		prim := r.prog.Prims.Lookup(ir.PrimID(dto.ID))
		if prim == nil {
			return nil, errors.Errorf("unknown primitive %q", dto.ID)
		}
		args, err := r.resolveAtoms(dto.Args, scope)
		if err != nil {
			return nil, err
		}
		return ir.PrimCall{Prim: prim, Args: args}, nil
	case "blockcall":
		var dto fixtureBlockCallTail
		if err := unmarshalInto(ft.Raw, &dto); err != nil {
			return nil, err
		}
		bc, err := r.resolveBlockRef(fixtureBlockRef{Block: dto.Block, Args: dto.Args}, scope)
		if err != nil {
			return nil, err
		}
		return bc, nil
	case "dataalloc":
		var dto fixtureDataAllocTail
		if err := unmarshalInto(ft.Raw, &dto); err != nil {
			return nil, err
		}
		cf, ok := r.cfuns[dto.Cfun]
		if !ok {
			return nil, errors.Errorf("unknown cfun %q", dto.Cfun)
		}
		args, err := r.resolveAtoms(dto.Args, scope)
		if err != nil {
			return nil, err
		}
		return ir.DataAlloc{Cfun: cf, Args: args}, nil
	case "closalloc":
		var dto fixtureClosAllocTail
		if err := unmarshalInto(ft.Raw, &dto); err != nil {
			return nil, err
		}
		cd, ok := r.closures[dto.Closure]
		if !ok {
			return nil, errors.Errorf("unknown closure %q", dto.Closure)
		}
		args, err := r.resolveAtoms(dto.Args, scope)
		if err != nil {
			return nil, err
		}
		return ir.ClosAlloc{Def: cd, Args: args}, nil
	case "enter":
		var dto fixtureEnterTail
		if err := unmarshalInto(ft.Raw, &dto); err != nil {
			return nil, err
		}
		fn, err := r.resolveAtom(dto.Func, scope)
		if err != nil {
			return nil, err
		}
		args, err := r.resolveAtoms(dto.Args, scope)
		if err != nil {
			return nil, err
		}
		return ir.Enter{Func: fn, Args: args}, nil
	case "sel":
		var dto fixtureSelTail
		if err := unmarshalInto(ft.Raw, &dto); err != nil {
			return nil, err
		}
		cf, ok := r.cfuns[dto.Cfun]
		if !ok {
			return nil, errors.Errorf("unknown cfun %q", dto.Cfun)
		}
		atom, err := r.resolveAtom(dto.Atom, scope)
		if err != nil {
			return nil, err
		}
		return ir.Sel{Cfun: cf, N: dto.N, Atom: atom}, nil
	default:
		return nil, errors.Errorf("unknown tail kind %q", ft.Kind)
	}
}

func (r *resolver) resolveAtoms(fas []fixtureAtom, scope map[string]*ir.Temp) ([]ir.Atom, error) {
	out := make([]ir.Atom, len(fas))
	for i, fa := range fas {
		a, err := r.resolveAtom(fa, scope)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func (r *resolver) resolveAtom(fa fixtureAtom, scope map[string]*ir.Temp) (ir.Atom, error) {
	switch fa.Kind {
	case "temp":
		t, ok := scope[fa.Name]
		if !ok {
			return nil, errors.Errorf("temp %q not in scope", fa.Name)
		}
		return ir.TempAtom{Temp: t}, nil
	case "int":
		return ir.IntConst{Value: fa.Value, Bits: fa.Bits}, nil
	case "flag":
		return ir.FlagConst{Value: fa.Flag}, nil
	case "topref":
		top, ok := r.tops[fa.Name]
		if !ok {
			return nil, errors.Errorf("unknown top-level %q", fa.Name)
		}
		return ir.TopRef{Top: top, Index: fa.Index}, nil
	case "global":
		return ir.GlobalRef{Name: fa.Name}, nil
	default:
		return nil, errors.Errorf("unknown atom kind %q", fa.Kind)
	}
}

func cloneScope(scope map[string]*ir.Temp) map[string]*ir.Temp {
	out := make(map[string]*ir.Temp, len(scope))
	for k, v := range scope {
		out[k] = v
	}
	return out
}

package llvmgen

import (
	"fmt"

	llvmir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	mil "github.com/dshills/lcmil/internal/ir"
)

// funcCtx is the per-function emission state: the LLVM function being
// built, the MIL-block-to-LLVM-block/phi maps for a flat intra-function
// CFG (nil for the simpler single-tail contexts: a top-level
// definition or a closure trampoline), and the live Temp->value
// bindings accumulated as each block's Code spine is walked.
type funcCtx struct {
	fn  *llvmir.Func
	cur *llvmir.Block
	e   *Emitter
	env map[*mil.Temp]value.Value

	llvmBlocks map[*mil.Block]*llvmir.Block
	phis       map[*mil.Block][]*llvmir.InstPhi
}

// emitCode walks one block's Code spine, appending instructions to
// fctx.cur and recursing into Next without changing fctx.cur (an
// ordinary Bind never crosses a basic-block boundary; only a branch or
// jump does).
func (fctx *funcCtx) emitCode(c mil.Code, owner *mil.Block) error {
	switch n := c.(type) {
	case mil.Bind:
		vals, err := fctx.emitBindTail(n.Tail)
		if err != nil {
			return err
		}
		if len(n.Vs) != len(vals) {
			return internalError("block %s: bind arity mismatch: %d vars for %d values", ownerName(owner), len(n.Vs), len(vals))
		}
		for i, v := range n.Vs {
			fctx.env[v] = vals[i]
		}
		return fctx.emitCode(n.Next, owner)
	case mil.Done:
		return fctx.emitTerminal(n.Tail, owner)
	case mil.If:
		thenTarget, ok1 := fctx.llvmBlocks[n.Then.Block]
		elseTarget, ok2 := fctx.llvmBlocks[n.Else.Block]
		if !ok1 || !ok2 {
			return internalError("block %s: If branch target outside its own flat CFG", ownerName(owner))
		}
		if err := fctx.addIncoming(n.Then); err != nil {
			return err
		}
		if err := fctx.addIncoming(n.Else); err != nil {
			return err
		}
		cond, ok := fctx.env[n.V]
		if !ok {
			return internalError("block %s: If condition temp unbound", ownerName(owner))
		}
		fctx.cur.NewCondBr(cond, thenTarget, elseTarget)
		return nil
	case mil.Case:
		// internal/reptrans lowers every mask-test Case on a bitdata
		// value into an If chain before this package runs, and
		// TypeStruct values carry no tag to dispatch on (DESIGN.md); a
		// Case still standing at codegen means an earlier pass failed
		// to lower it.
		return internalError("block %s: Case survived to codegen; representation transform must lower constructor dispatch first", ownerName(owner))
	default:
		return internalError("block %s: unsupported code node %T", ownerName(owner), c)
	}
}

// addIncoming evaluates bc's arguments in the current block and
// records them as the phi incoming values for bc.Block, with the
// current block as predecessor. A jump to the function's own entry
// block has no phis (the entry's parameters are bound directly from
// the LLVM function's own parameters) and is a no-op here.
func (fctx *funcCtx) addIncoming(bc mil.BlockCall) error {
	if bc.Block == nil {
		return nil
	}
	phis, ok := fctx.phis[bc.Block]
	if !ok {
		return nil
	}
	args, err := fctx.emitAtoms(bc.Args)
	if err != nil {
		return err
	}
	if len(args) != len(phis) {
		return internalError("block %s: jump supplies %d args for %d params", bc.Block.Name, len(args), len(phis))
	}
	for i, phi := range phis {
		phi.Incs = append(phi.Incs, llvmir.NewIncoming(args[i], fctx.cur))
	}
	return nil
}

// emitTerminal lowers a Done-position (block- or function-terminal)
// tail: a same-function jump (tail BlockCall into this function's own
// flat CFG), a genuine tail call into a separate function, a
// non-returning primitive, or an ordinary value-producing tail
// returned from the enclosing function.
func (fctx *funcCtx) emitTerminal(t mil.Tail, owner *mil.Block) error {
	if bc, ok := t.(mil.BlockCall); ok {
		if bc.Block == nil {
			return internalError("block %s: BlockCall with no target", ownerName(owner))
		}
		if target, ok := fctx.llvmBlocks[bc.Block]; ok {
			if err := fctx.addIncoming(bc); err != nil {
				return err
			}
			fctx.cur.NewBr(target)
			return nil
		}
		fn := fctx.e.funcFor(bc.Block)
		args, err := fctx.emitAtoms(bc.Args)
		if err != nil {
			return err
		}
		call := fctx.cur.NewCall(fn, args...)
		// cfgResultArity, not bc.Outity(): Block.Type() only reports a
		// block's own immediate terminal and gives 0 for an If/Case
		// entry, while the callee's real declared signature (built by
		// funcFor) reflects its whole flat CFG.
		fctx.retTuple(fctx.unpackTuple(call, cfgResultArity(bc.Block)))
		return nil
	}
	if pc, ok := t.(mil.PrimCall); ok && pc.Prim.Purity == mil.DoesNotReturn {
		return fctx.emitNonReturning(pc)
	}
	vals, err := fctx.emitBindTail(t)
	if err != nil {
		return err
	}
	fctx.retTuple(vals)
	return nil
}

// emitNonReturning lowers halt (abort the process) and loop (spin
// forever): both end the function without a value.
func (fctx *funcCtx) emitNonReturning(pc mil.PrimCall) error {
	switch pc.Prim.ID {
	case mil.PHalt:
		fctx.cur.NewCall(fctx.e.abortFn)
		fctx.cur.NewUnreachable()
		return nil
	case mil.PLoop:
		spin := fctx.fn.NewBlock(fmt.Sprintf("loopforever.%p", pc.Prim))
		fctx.cur.NewBr(spin)
		spin.NewBr(spin)
		return nil
	default:
		return internalError("non-returning primitive %s must only appear in terminal position", pc.Prim.ID)
	}
}

// emitBindTail evaluates a Tail to its result tuple without branching:
// used both for a non-terminal Bind and (by emitTerminal) for a
// terminal tail that simply produces a value to return.
func (fctx *funcCtx) emitBindTail(t mil.Tail) ([]value.Value, error) {
	switch n := t.(type) {
	case mil.Return:
		return fctx.emitAtoms(n.Atoms)
	case mil.PrimCall:
		return fctx.emitPrimCall(n)
	case mil.BlockCall:
		// Call-position use (spec.md: BlockCall "may also appear as
		// the right-hand side of a Bind, a non-tail use"): a genuine
		// call to a separate function, continuing in this same LLVM
		// block afterward.
		if n.Block == nil {
			return nil, internalError("BlockCall with no target in bind position")
		}
		fn := fctx.e.funcFor(n.Block)
		args, err := fctx.emitAtoms(n.Args)
		if err != nil {
			return nil, err
		}
		call := fctx.cur.NewCall(fn, args...)
		// cfgResultArity, not n.Outity(): see the Done-position
		// BlockCall case above for why.
		return fctx.unpackTuple(call, cfgResultArity(n.Block)), nil
	case mil.DataAlloc:
		return nil, internalError("DataAlloc on cfun %s survived representation transform", n.Cfun.ID)
	case mil.Sel:
		return nil, internalError("Sel on cfun %s field %d survived representation transform", n.Cfun.ID, n.N)
	case mil.ClosAlloc:
		v, err := fctx.emitClosAlloc(n)
		if err != nil {
			return nil, err
		}
		return []value.Value{v}, nil
	case mil.Enter:
		v, err := fctx.emitEnter(n)
		if err != nil {
			return nil, err
		}
		return []value.Value{v}, nil
	default:
		return nil, internalError("unsupported tail %T", t)
	}
}

// emitTailValues is emitBindTail under the name used by the
// single-tail contexts (top-level definitions, closure trampolines)
// that have no Code spine to walk, only one Tail to evaluate.
func (fctx *funcCtx) emitTailValues(t mil.Tail) ([]value.Value, error) {
	return fctx.emitBindTail(t)
}

func (fctx *funcCtx) emitAtoms(atoms []mil.Atom) ([]value.Value, error) {
	out := make([]value.Value, len(atoms))
	for i, a := range atoms {
		v, err := fctx.emitAtom(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (fctx *funcCtx) emitAtom(a mil.Atom) (value.Value, error) {
	switch n := a.(type) {
	case mil.TempAtom:
		v, ok := fctx.env[n.Temp]
		if !ok {
			return nil, internalError("temp %s used before it is bound", n.Temp.Hint)
		}
		return v, nil
	case mil.IntConst:
		return constant.NewInt(types.I64, n.Value), nil
	case mil.FlagConst:
		if n.Value {
			return constant.NewInt(types.I1, 1), nil
		}
		return constant.NewInt(types.I1, 0), nil
	case mil.TopRef:
		fn := fctx.e.topFuncFor(n.Top)
		call := fctx.cur.NewCall(fn)
		vals := fctx.unpackTuple(call, len(n.Top.Lhs))
		if n.Index < 0 || n.Index >= len(vals) {
			return nil, internalError("TopRef index %d out of range for %d results", n.Index, len(vals))
		}
		return vals[n.Index], nil
	case mil.GlobalRef:
		g := fctx.e.externalGlobal(n.Name)
		return fctx.cur.NewPtrToInt(g, types.I64), nil
	default:
		return nil, internalError("unsupported atom %T", a)
	}
}

// unpackTuple splits a call's result into its tuple components: a
// single-result call is already the value itself, a multi-result call
// returns a struct unpacked via extractvalue, and a zero-result call
// has nothing to unpack.
func (fctx *funcCtx) unpackTuple(v value.Value, n int) []value.Value {
	switch n {
	case 0:
		return nil
	case 1:
		return []value.Value{v}
	default:
		out := make([]value.Value, n)
		for i := 0; i < n; i++ {
			out[i] = fctx.cur.NewExtractValue(v, uint64(i))
		}
		return out
	}
}

// retTuple emits this function's (or trampoline's) return, packing
// more than one result word into a struct the same way unpackTuple
// reads one back out.
func (fctx *funcCtx) retTuple(vals []value.Value) {
	switch len(vals) {
	case 0:
		fctx.cur.NewRet(nil)
	case 1:
		fctx.cur.NewRet(vals[0])
	default:
		fields := make([]types.Type, len(vals))
		for i := range fields {
			fields[i] = types.I64
		}
		structTy := types.NewStruct(fields...)
		var agg value.Value = constant.NewUndef(structTy)
		for i, v := range vals {
			agg = fctx.cur.NewInsertValue(agg, v, uint64(i))
		}
		fctx.cur.NewRet(agg)
	}
}

func one(v value.Value) []value.Value { return []value.Value{v} }

// emitPrimCall lowers one primitive call to the corresponding LLVM
// instruction(s); see DESIGN.md's Open Question (a): div and the
// ordering comparisons are unsigned, matching lshr's unsignedness
// rather than ashr's.
func (fctx *funcCtx) emitPrimCall(pc mil.PrimCall) ([]value.Value, error) {
	args, err := fctx.emitAtoms(pc.Args)
	if err != nil {
		return nil, err
	}
	b := fctx.cur
	switch pc.Prim.ID {
	case mil.PAdd:
		return one(b.NewAdd(args[0], args[1])), nil
	case mil.PSub:
		return one(b.NewSub(args[0], args[1])), nil
	case mil.PMul:
		return one(b.NewMul(args[0], args[1])), nil
	case mil.PDiv:
		return one(b.NewUDiv(args[0], args[1])), nil
	case mil.PNeg:
		return one(b.NewSub(constant.NewInt(types.I64, 0), args[0])), nil
	case mil.PAnd:
		return one(b.NewAnd(args[0], args[1])), nil
	case mil.POr:
		return one(b.NewOr(args[0], args[1])), nil
	case mil.PXor:
		return one(b.NewXor(args[0], args[1])), nil
	case mil.PNot:
		return one(b.NewXor(args[0], constant.NewInt(types.I64, -1))), nil
	case mil.PShl:
		return one(b.NewShl(args[0], args[1])), nil
	case mil.PLShr:
		return one(b.NewLShr(args[0], args[1])), nil
	case mil.PAShr:
		return one(b.NewAShr(args[0], args[1])), nil
	case mil.PEq:
		return one(b.NewICmp(enum.IPredEQ, args[0], args[1])), nil
	case mil.PNeq:
		return one(b.NewICmp(enum.IPredNE, args[0], args[1])), nil
	case mil.PLt:
		return one(b.NewICmp(enum.IPredULT, args[0], args[1])), nil
	case mil.PLte:
		return one(b.NewICmp(enum.IPredULE, args[0], args[1])), nil
	case mil.PGt:
		return one(b.NewICmp(enum.IPredUGT, args[0], args[1])), nil
	case mil.PGte:
		return one(b.NewICmp(enum.IPredUGE, args[0], args[1])), nil
	case mil.PFlagToWord:
		return one(b.NewZExt(args[0], types.I64)), nil
	case mil.PBNot:
		return one(b.NewXor(args[0], constant.NewInt(types.I1, 1))), nil
	case mil.PPrintWord:
		b.NewCall(fctx.e.printFn, args[0])
		return nil, nil
	case mil.PLoad:
		addr, err := fctx.emitAddress(args)
		if err != nil {
			return nil, err
		}
		return one(b.NewLoad(types.I64, addr)), nil
	case mil.PStore:
		addr, err := fctx.emitAddress(args[:5])
		if err != nil {
			return nil, err
		}
		b.NewStore(args[5], addr)
		return nil, nil
	case mil.PHalt, mil.PLoop:
		return nil, internalError("non-returning primitive %s must only appear in terminal position", pc.Prim.ID)
	default:
		return nil, internalError("unsupported primitive %s", pc.Prim.ID)
	}
}

// emitAddress computes the effective address for load/store's
// (size, base, offset, index, mult) argument vector. size is kept only
// for signature fidelity with the primitive's declared arity: every
// load/store this emitter sees operates on one machine word (spec.md's
// only machine type), so size is never consulted.
func (fctx *funcCtx) emitAddress(args []value.Value) (value.Value, error) {
	if len(args) != 5 {
		return nil, internalError("load/store address needs 5 arguments, got %d", len(args))
	}
	_, base, offset, index, mult := args[0], args[1], args[2], args[3], args[4]
	b := fctx.cur
	scaled := b.NewMul(index, mult)
	withOffset := b.NewAdd(base, offset)
	eff := b.NewAdd(withOffset, scaled)
	return b.NewIntToPtr(eff, types.NewPointer(types.I64)), nil
}

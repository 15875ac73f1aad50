package llvmgen

import (
	llvmir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	mil "github.com/dshills/lcmil/internal/ir"
)

// Genuine, escaping closures are the one construct spec.md §6 permits
// to survive past representation transform ("except as calls to
// generated support blocks") — unlike Sel/DataAlloc, which
// internal/reptrans must have already lowered. A surviving ClosAlloc
// allocates a boxed closure record: one word holding a trampoline
// function's address, followed by one word per captured atom, mallocd
// through the same external-allocation idiom the teacher declares for
// its own GC entry points (internal/codegen/llvm.go's
// declareGCFunctions/boxToI8Ptr). A surviving Enter loads that code
// word back out and calls through it with a uniform ABI — the closure
// record pointer plus each argument word — so any closure, regardless
// of its real parameter count, is callable without the caller needing
// to know its shape ahead of time.

// emitClosAlloc allocates a closure record for n.Def, storing its
// trampoline's address at word 0 and each captured atom at the words
// that follow, and returns the record's address as one machine word.
func (fctx *funcCtx) emitClosAlloc(n mil.ClosAlloc) (value.Value, error) {
	trampoline, err := fctx.e.closureTrampoline(n.Def)
	if err != nil {
		return nil, err
	}
	argVals, err := fctx.emitAtoms(n.Args)
	if err != nil {
		return nil, err
	}

	words := int64(1 + len(argVals))
	size := constant.NewInt(types.I64, words*8)
	record := fctx.cur.NewCall(fctx.e.mallocFn, size) // i8*
	wordPtr := fctx.cur.NewBitCast(record, types.NewPointer(types.I64))

	codeWord := fctx.cur.NewPtrToInt(trampoline, types.I64)
	fctx.cur.NewStore(codeWord, fctx.cur.NewGetElementPtr(types.I64, wordPtr, constant.NewInt(types.I64, 0)))
	for i, v := range argVals {
		slot := fctx.cur.NewGetElementPtr(types.I64, wordPtr, constant.NewInt(types.I64, int64(i+1)))
		fctx.cur.NewStore(v, slot)
	}
	return fctx.cur.NewPtrToInt(record, types.I64), nil
}

// emitEnter loads a closure record's trampoline address and calls
// through it with the record itself as an extra leading argument, so
// the trampoline can recover its captured atoms.
func (fctx *funcCtx) emitEnter(n mil.Enter) (value.Value, error) {
	funcWord, err := fctx.emitAtom(n.Func)
	if err != nil {
		return nil, err
	}
	argVals, err := fctx.emitAtoms(n.Args)
	if err != nil {
		return nil, err
	}

	record := fctx.cur.NewIntToPtr(funcWord, types.I8Ptr)
	wordPtr := fctx.cur.NewBitCast(record, types.NewPointer(types.I64))
	codeWord := fctx.cur.NewLoad(types.I64, fctx.cur.NewGetElementPtr(types.I64, wordPtr, constant.NewInt(types.I64, 0)))

	paramTypes := make([]types.Type, len(argVals)+1)
	paramTypes[0] = types.I8Ptr
	for i := range argVals {
		paramTypes[i+1] = types.I64
	}
	fnTy := types.NewFunc(types.I64, paramTypes...)
	fnPtr := fctx.cur.NewIntToPtr(codeWord, types.NewPointer(fnTy))

	callArgs := append([]value.Value{record}, argVals...)
	return fctx.cur.NewCall(fnPtr, callArgs...), nil
}

// closureTrampoline returns (building if needed) the uniform-ABI
// function for one ClosureDefn: it takes the closure record plus one
// word per ordinary parameter, reloads each captured (Stored) atom
// from the record, and evaluates the closure's single-Tail body.
func (e *Emitter) closureTrampoline(cd *mil.ClosureDefn) (*llvmir.Func, error) {
	if fn, ok := e.trampolines[cd]; ok {
		return fn, nil
	}
	if cd.Body.Outity() != 1 {
		return nil, internalError("closure %s body must produce exactly one result (Enter always expects one), got %d", cd.Name, cd.Body.Outity())
	}

	params := make([]*llvmir.Param, 1+len(cd.Params))
	params[0] = llvmir.NewParam("env", types.I8Ptr)
	for i, p := range cd.Params {
		params[i+1] = llvmir.NewParam(p.Hint, llvmTypeOf(p.Type))
	}
	fn := e.module.NewFunc("closure$"+cd.Name, types.I64, params...)
	// Registered before the body is built so a closure that captures
	// itself (direct recursion through its own ClosAlloc) resolves.
	e.trampolines[cd] = fn

	entry := fn.NewBlock("entry")
	fctx := &funcCtx{fn: fn, cur: entry, e: e, env: map[*mil.Temp]value.Value{}}

	envParam := fn.Params[0]
	wordPtr := entry.NewBitCast(envParam, types.NewPointer(types.I64))
	for i, st := range cd.Stored {
		slot := entry.NewGetElementPtr(types.I64, wordPtr, constant.NewInt(types.I64, int64(i+1)))
		fctx.env[st] = entry.NewLoad(types.I64, slot)
	}
	for i, p := range cd.Params {
		fctx.env[p] = fn.Params[i+1]
	}

	if err := fctx.emitTerminal(cd.Body, nil); err != nil {
		return nil, err
	}
	return fn, nil
}

// externalGlobal returns (declaring if needed) an external i8 symbol
// for a GlobalRef; its address, not its contents, is the word value a
// GlobalRef atom denotes (spec.md: "an external, process-wide symbol,
// e.g. a runtime-provided address").
func (e *Emitter) externalGlobal(name string) *llvmir.Global {
	if g, ok := e.externalGlobals[name]; ok {
		return g
	}
	g := e.module.NewGlobal(name, types.I8)
	e.externalGlobals[name] = g
	return g
}

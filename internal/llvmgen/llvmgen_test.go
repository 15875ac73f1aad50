package llvmgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llvmir "github.com/llir/llvm/ir"

	mil "github.com/dshills/lcmil/internal/ir"
)

// funcNamed finds a module-level function by name, failing the test if
// absent; Emit predeclares every function before filling in its body,
// so presence alone does not prove a body was emitted.
func funcNamed(t *testing.T, m *llvmir.Module, name string) *llvmir.Func {
	t.Helper()
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}
	t.Fatalf("no function named %q in module; have: %v", name, funcNames(m))
	return nil
}

func funcNames(m *llvmir.Module) []string {
	var out []string
	for _, f := range m.Funcs {
		out = append(out, f.Name())
	}
	return out
}

// addReturnOne builds a program with a single entry block that adds
// its two word parameters and returns the sum, the smallest program
// that exercises Emit's top-level plumbing (declareRuntime, entry
// discovery, one flat CFG with no branches).
func addReturnOne(t *testing.T) *mil.Program {
	t.Helper()
	prog := mil.NewProgram()
	a := mil.NewTemp("a", mil.TypeWord)
	b := mil.NewTemp("b", mil.TypeWord)
	sum := mil.NewTemp("sum", mil.TypeWord)

	entry := &mil.Block{
		Name:   "addTwo",
		Params: []*mil.Temp{a, b},
		Body: mil.Bind{
			Vs:   []*mil.Temp{sum},
			Tail: mil.PrimCall{Prim: prog.Prims.Lookup(mil.PAdd), Args: []mil.Atom{mil.TempAtom{Temp: a}, mil.TempAtom{Temp: b}}},
			Next: mil.Done{Tail: mil.Return{Atoms: []mil.Atom{mil.TempAtom{Temp: sum}}}},
		},
	}
	prog.AddBlock(entry)
	prog.EntryNames = []string{"addTwo"}
	return prog
}

func TestEmitDeclaresRuntimeHelpers(t *testing.T) {
	mod, err := Emit(addReturnOne(t))
	require.NoError(t, err)

	funcNamed(t, mod, "malloc")
	funcNamed(t, mod, "abort")
	funcNamed(t, mod, "printWord")
}

func TestEmitEntryBlockBecomesFunction(t *testing.T) {
	mod, err := Emit(addReturnOne(t))
	require.NoError(t, err)

	fn := funcNamed(t, mod, "addTwo")
	assert.Len(t, fn.Params, 2)
	require.NotEmpty(t, fn.Blocks, "entry function must have at least one basic block")
	assert.NotEmpty(t, fn.Blocks[0].Insts, "entry block must contain the add instruction")
	_, ok := fn.Blocks[0].Term.(*llvmir.TermRet)
	assert.True(t, ok, "a single Done{Return{...}} must lower to an ordinary ret")
}

// branchingEntry builds a program whose entry block ends in an If, to
// exercise cfgResultArity's walk past a non-Done terminal and the
// phi-node wiring between an entry and its branch targets.
func branchingEntry(t *testing.T) (*mil.Program, *mil.Block) {
	t.Helper()
	prog := mil.NewProgram()
	flag := mil.NewTemp("flag", mil.TypeFlag)
	x := mil.NewTemp("x", mil.TypeWord)

	thenBlock := &mil.Block{
		Name:   "thenArm",
		Params: []*mil.Temp{x},
		Body:   mil.Done{Tail: mil.Return{Atoms: []mil.Atom{mil.TempAtom{Temp: x}}}},
	}
	elseBlock := &mil.Block{
		Name: "elseArm",
		Body: mil.Done{Tail: mil.Return{Atoms: []mil.Atom{mil.IntConst{Value: 0}}}},
	}
	entry := &mil.Block{
		Name:   "pickOne",
		Params: []*mil.Temp{flag, x},
		Body: mil.If{
			V:    flag,
			Then: mil.BlockCall{Block: thenBlock, Args: []mil.Atom{mil.TempAtom{Temp: x}}},
			Else: mil.BlockCall{Block: elseBlock},
		},
	}
	prog.AddBlock(entry)
	prog.AddBlock(thenBlock)
	prog.AddBlock(elseBlock)
	prog.EntryNames = []string{"pickOne"}
	return prog, entry
}

func TestCfgResultArityLooksPastIfToDone(t *testing.T) {
	_, entry := branchingEntry(t)
	assert.Equal(t, 1, cfgResultArity(entry), "both branch targets return exactly one word")
}

func TestEmitBranchingEntryProducesSingleFunction(t *testing.T) {
	prog, _ := branchingEntry(t)
	mod, err := Emit(prog)
	require.NoError(t, err)

	fn := funcNamed(t, mod, "pickOne")
	// The whole flat CFG (entry + both arms) must live inside one LLVM
	// function, not three: only one function named after the entry
	// block, and none named after its branch targets.
	for _, f := range mod.Funcs {
		assert.NotEqual(t, "thenArm", f.Name())
		assert.NotEqual(t, "elseArm", f.Name())
	}
	assert.Len(t, fn.Blocks, 3, "entry + two branch targets as basic blocks")
}

// callAcrossFunctions builds a program where one block reaches another
// only via a Bind-position BlockCall — a genuine cross-function call,
// not a same-function jump — so the callee must get its own separate
// LLVM function rather than being folded into the caller's flat CFG.
func callAcrossFunctions(t *testing.T) *mil.Program {
	t.Helper()
	prog := mil.NewProgram()
	n := mil.NewTemp("n", mil.TypeWord)
	doubled := mil.NewTemp("doubled", mil.TypeWord)
	result := mil.NewTemp("result", mil.TypeWord)

	callee := &mil.Block{
		Name:   "double",
		Params: []*mil.Temp{n},
		Body:   mil.Done{Tail: mil.PrimCall{Prim: prog.Prims.Lookup(mil.PAdd), Args: []mil.Atom{mil.TempAtom{Temp: n}, mil.TempAtom{Temp: n}}}},
	}
	caller := &mil.Block{
		Name:   "quadruple",
		Params: []*mil.Temp{n},
		Body: mil.Bind{
			Vs:   []*mil.Temp{doubled},
			Tail: mil.BlockCall{Block: callee, Args: []mil.Atom{mil.TempAtom{Temp: n}}},
			Next: mil.Bind{
				Vs:   []*mil.Temp{result},
				Tail: mil.BlockCall{Block: callee, Args: []mil.Atom{mil.TempAtom{Temp: doubled}}},
				Next: mil.Done{Tail: mil.Return{Atoms: []mil.Atom{mil.TempAtom{Temp: result}}}},
			},
		},
	}
	prog.AddBlock(callee)
	prog.AddBlock(caller)
	prog.EntryNames = []string{"quadruple"}
	return prog
}

func TestBindPositionBlockCallBecomesSeparateFunction(t *testing.T) {
	mod, err := Emit(callAcrossFunctions(t))
	require.NoError(t, err)

	funcNamed(t, mod, "quadruple")
	callee := funcNamed(t, mod, "double")
	assert.Len(t, callee.Params, 1)
}

// topLevelProgram exercises topFuncFor/emitTop and the TopRef atom: a
// top-level tuple definition referenced from an entry block.
func topLevelProgram(t *testing.T) *mil.Program {
	t.Helper()
	prog := mil.NewProgram()
	top := &mil.TopLevel{
		Lhs:  []mil.TopLhs{{Name: "answer", Type: mil.TypeWord}},
		Tail: mil.Return{Atoms: []mil.Atom{mil.IntConst{Value: 42}}},
	}
	prog.AddTopLevel(top)

	entry := &mil.Block{
		Name: "readAnswer",
		Body: mil.Done{Tail: mil.Return{Atoms: []mil.Atom{mil.TopRef{Top: top, Index: 0}}}},
	}
	prog.AddBlock(entry)
	prog.EntryNames = []string{"readAnswer"}
	return prog
}

func TestEmitTopLevelBecomesZeroArgFunction(t *testing.T) {
	mod, err := Emit(topLevelProgram(t))
	require.NoError(t, err)

	fn := funcNamed(t, mod, "top$answer")
	assert.Len(t, fn.Params, 0, "a top-level definition takes no arguments")
}

// closureProgram exercises ClosAlloc/Enter: an entry block allocates a
// closure over one captured word, then immediately enters it with one
// more argument, the closure body adding the two.
func closureProgram(t *testing.T) *mil.Program {
	t.Helper()
	prog := mil.NewProgram()
	captured := mil.NewTemp("captured", mil.TypeWord)
	arg := mil.NewTemp("arg", mil.TypeWord)
	stored := mil.NewTemp("stored", mil.TypeWord)
	param := mil.NewTemp("param", mil.TypeWord)

	cd := &mil.ClosureDefn{
		Name:   "addClosure",
		Stored: []*mil.Temp{stored},
		Params: []*mil.Temp{param},
		Body:   mil.PrimCall{Prim: prog.Prims.Lookup(mil.PAdd), Args: []mil.Atom{mil.TempAtom{Temp: stored}, mil.TempAtom{Temp: param}}},
	}

	clos := mil.NewTemp("clos", mil.TypeWord)
	result := mil.NewTemp("result", mil.TypeWord)
	entry := &mil.Block{
		Name:   "makeAndEnter",
		Params: []*mil.Temp{captured, arg},
		Body: mil.Bind{
			Vs:   []*mil.Temp{clos},
			Tail: mil.ClosAlloc{Def: cd, Args: []mil.Atom{mil.TempAtom{Temp: captured}}},
			Next: mil.Bind{
				Vs:   []*mil.Temp{result},
				Tail: mil.Enter{Func: mil.TempAtom{Temp: clos}, Args: []mil.Atom{mil.TempAtom{Temp: arg}}},
				Next: mil.Done{Tail: mil.Return{Atoms: []mil.Atom{mil.TempAtom{Temp: result}}}},
			},
		},
	}
	prog.AddBlock(entry)
	prog.EntryNames = []string{"makeAndEnter"}
	return prog
}

func TestEmitClosureProducesTrampoline(t *testing.T) {
	mod, err := Emit(closureProgram(t))
	require.NoError(t, err)

	funcNamed(t, mod, "makeAndEnter")
	trampoline := funcNamed(t, mod, "closure$addClosure")
	// env pointer plus one ordinary parameter.
	assert.Len(t, trampoline.Params, 2)
}

// haltProgram exercises emitNonReturning's PHalt arm: a DoesNotReturn
// primitive in terminal position must lower to a call to abort plus an
// unreachable terminator, with no ordinary ret.
func haltProgram(t *testing.T) *mil.Program {
	t.Helper()
	prog := mil.NewProgram()
	entry := &mil.Block{
		Name: "die",
		Body: mil.Done{Tail: mil.PrimCall{Prim: prog.Prims.Lookup(mil.PHalt), Args: nil}},
	}
	prog.AddBlock(entry)
	prog.EntryNames = []string{"die"}
	return prog
}

func TestEmitHaltCallsAbortAndIsUnreachable(t *testing.T) {
	mod, err := Emit(haltProgram(t))
	require.NoError(t, err)

	fn := funcNamed(t, mod, "die")
	require.NotEmpty(t, fn.Blocks)
	_, ok := fn.Blocks[0].Term.(*llvmir.TermUnreachable)
	assert.True(t, ok, "halt must end its block in an unreachable terminator, not a return")
}

// TestDataAllocSurvivingToCodegenIsAnInternalError checks the boundary
// contract: a DataAlloc that representation transform failed to lower
// must surface as an error from Emit, not a silently wrong program.
func TestDataAllocSurvivingToCodegenIsAnInternalError(t *testing.T) {
	prog := mil.NewProgram()
	cf := &mil.Cfun{ID: "MkThing", DataName: mil.DataName{Name: "Thing"}, TagIndex: 0, AllocType: mil.TypeStruct}
	prog.AddCfun(cf)

	entry := &mil.Block{
		Name: "bad",
		Body: mil.Bind{
			Vs:   []*mil.Temp{mil.NewTemp("v", mil.TypeStruct)},
			Tail: mil.DataAlloc{Cfun: cf, Args: nil},
			Next: mil.Done{Tail: mil.Return{Atoms: []mil.Atom{}}},
		},
	}
	prog.AddBlock(entry)
	prog.EntryNames = []string{"bad"}

	_, err := Emit(prog)
	assert.Error(t, err, "a DataAlloc that reptrans did not lower must be rejected, not silently miscompiled")
}

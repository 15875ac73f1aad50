package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lcmil/internal/config"
	"github.com/dshills/lcmil/internal/frontend"
	"github.com/dshills/lcmil/internal/lift"
	"github.com/dshills/lcmil/internal/llvmgen"
	"github.com/dshills/lcmil/internal/reptrans"
)

// foldableAddFixture has a block that always adds two constants
// together; the flow sub-pass should constant-fold it down to a bare
// Return before anything reaches llvmgen.
const foldableAddFixture = `{
	"entryNames": ["entry"],
	"blocks": [
		{
			"name": "entry",
			"body": {
				"kind": "bind",
				"vars": [{"hint": "sum", "type": "word"}],
				"tail": {
					"kind": "prim",
					"id": "add",
					"args": [{"kind": "int", "value": 2}, {"kind": "int", "value": 3}]
				},
				"next": {
					"kind": "done",
					"tail": {"kind": "return", "atoms": [{"kind": "temp", "name": "sum"}]}
				}
			}
		}
	]
}`

func TestFullPipelineFoldsConstantAdd(t *testing.T) {
	fe := frontend.FixtureFrontend{}
	tp, err := fe.ParseAndCheck("foldable_add.json", []byte(foldableAddFixture))
	require.NoError(t, err)

	prog := frontend.Program(tp)

	pipeline := config.DefaultPipeline()
	_, err = pipeline.Run(prog, nil)
	require.NoError(t, err)

	lift.Lift(prog)
	require.NoError(t, reptrans.Transform(prog, reptrans.Layouts{}))

	module, err := llvmgen.Emit(prog)
	require.NoError(t, err)

	ir := module.String()
	assert.Contains(t, ir, "ret i64 5", "constant-folded add must reach llvmgen as a bare literal return")
	assert.NotContains(t, ir, "add i64", "no runtime add instruction should remain once the constant fold applies")
}

// closureOverCounterFixture builds a top-level value fed into a
// closure that the entry block allocates and then enters, exercising
// frontend forward references, lift's lambda lifting, and llvmgen's
// closure trampoline together in one program.
const closureOverCounterFixture = `{
	"entryNames": ["entry"],
	"topLevels": [
		{"lhs": [{"name": "start", "type": "word"}], "tail": {"kind": "return", "atoms": [{"kind": "int", "value": 0}]}}
	],
	"blocks": [
		{
			"name": "entry",
			"body": {
				"kind": "bind",
				"vars": [{"hint": "c", "type": "word"}],
				"tail": {"kind": "closalloc", "closure": "identity", "args": []},
				"next": {
					"kind": "bind",
					"vars": [{"hint": "r", "type": "word"}],
					"tail": {"kind": "enter", "func": {"kind": "temp", "name": "c"}, "args": [{"kind": "topref", "name": "start", "index": 0}]},
					"next": {"kind": "done", "tail": {"kind": "return", "atoms": [{"kind": "temp", "name": "r"}]}}
				}
			}
		}
	],
	"closures": [
		{
			"name": "identity",
			"params": [{"hint": "n", "type": "word"}],
			"body": {"kind": "return", "atoms": [{"kind": "temp", "name": "n"}]}
		}
	]
}`

func TestFullPipelineEmitsClosureAndTopLevel(t *testing.T) {
	fe := frontend.FixtureFrontend{}
	tp, err := fe.ParseAndCheck("closure_counter.json", []byte(closureOverCounterFixture))
	require.NoError(t, err)

	prog := frontend.Program(tp)

	pipeline := config.DefaultPipeline()
	_, err = pipeline.Run(prog, nil)
	require.NoError(t, err)

	lift.Lift(prog)
	require.NoError(t, reptrans.Transform(prog, reptrans.Layouts{}))

	module, err := llvmgen.Emit(prog)
	require.NoError(t, err)

	ir := module.String()
	assert.Contains(t, ir, "top$start", "a zero-arg function for the top-level definition must appear in emitted IR")
	assert.Contains(t, ir, "closure$identity", "the closure's trampoline function must appear in emitted IR")
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lcmil/internal/ir"
)

func TestDefaultPipelineEnablesEveryPass(t *testing.T) {
	p := DefaultPipeline()
	for _, name := range AllPasses {
		assert.True(t, p.Enabled[name], "pass %s must be enabled by default", name)
	}
	assert.Empty(t, p.DumpAfter)
}

func TestParsePassListRestrictsToNamed(t *testing.T) {
	enabled, err := ParsePassList("inline,dedup")
	require.NoError(t, err)
	assert.True(t, enabled[PassInline])
	assert.True(t, enabled[PassDedup])
	assert.False(t, enabled[PassFlow])
	assert.False(t, enabled[PassUnusedArgs])
}

func TestParsePassListEmptyMeansEverything(t *testing.T) {
	enabled, err := ParsePassList("")
	require.NoError(t, err)
	for _, name := range AllPasses {
		assert.True(t, enabled[name])
	}
}

func TestParsePassListRejectsUnknownName(t *testing.T) {
	_, err := ParsePassList("inline,bogus")
	assert.Error(t, err)
}

func TestParseDumpAfterEmptyMeansNothing(t *testing.T) {
	dump, err := ParseDumpAfter("")
	require.NoError(t, err)
	assert.Empty(t, dump)
}

func TestParseDumpAfterNamesSubset(t *testing.T) {
	dump, err := ParseDumpAfter("flow")
	require.NoError(t, err)
	assert.True(t, dump[PassFlow])
	assert.False(t, dump[PassInline])
}

func TestToPassPipelineCarriesEnablement(t *testing.T) {
	c := DefaultPipeline()
	c.Enabled[PassDedup] = false
	pp := c.ToPassPipeline()
	assert.True(t, pp.EnableInline)
	assert.False(t, pp.EnableDedup)
}

// identityProgram builds a program already at fixpoint (a block whose
// body never changes under any sub-pass), so Run's dump hook fires
// exactly once per enabled-and-named sub-pass before the loop detects
// no change and returns.
func identityProgram() *ir.Program {
	prog := ir.NewProgram()
	a := ir.NewTemp("a", ir.TypeWord)
	entry := &ir.Block{
		Name:   "entry",
		Params: []*ir.Temp{a},
		Body:   ir.Done{Tail: ir.Return{Atoms: []ir.Atom{ir.TempAtom{Temp: a}}}},
	}
	prog.AddBlock(entry)
	prog.EntryNames = []string{"entry"}
	return prog
}

func TestRunInvokesDumpHookForNamedPasses(t *testing.T) {
	c := DefaultPipeline()
	c.DumpAfter[PassFlow] = true

	var labels []string
	_, err := c.Run(identityProgram(), func(label string, prog *ir.Program) {
		labels = append(labels, label)
	})
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Contains(t, labels[0], "after flow")
}

func TestRunWithNilDumpHookDoesNotPanic(t *testing.T) {
	c := DefaultPipeline()
	c.DumpAfter[PassInline] = true
	_, err := c.Run(identityProgram(), nil)
	assert.NoError(t, err)
}

package diag

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/pkg/errors"

	"github.com/dshills/lcmil/internal/ir"
)

func TestNewInternalErrorIsInternal(t *testing.T) {
	err := NewInternalError("arity mismatch: %d vars for %d values", 2, 1)
	assert.True(t, IsInternal(err))
	assert.Contains(t, err.Error(), "arity mismatch: 2 vars for 1 values")
}

func TestWrapInternalPreservesCause(t *testing.T) {
	cause := errors.New("missing block")
	err := WrapInternal(cause, "block %s not found", "entry")
	require.True(t, IsInternal(err))
	assert.Contains(t, err.Error(), "missing block")
	assert.Contains(t, err.Error(), "block entry not found")
}

func TestIsInternalFalseForRecoverableError(t *testing.T) {
	err := pkgerrors.Wrap(errors.New("parse error: unexpected token"), "while parsing")
	assert.False(t, IsInternal(err))
}

func TestStackTraceNonEmptyForInternalError(t *testing.T) {
	err := NewInternalError("boom")
	assert.NotEmpty(t, StackTrace(err))
}

func TestDumpProgramRendersBlocksTopsAndClosures(t *testing.T) {
	prog := ir.NewProgram()
	a := ir.NewTemp("a", ir.TypeWord)
	entry := &ir.Block{
		Name:   "entry",
		Params: []*ir.Temp{a},
		Body:   ir.Done{Tail: ir.Return{Atoms: []ir.Atom{ir.TempAtom{Temp: a}}}},
	}
	prog.AddBlock(entry)
	prog.AddTopLevel(&ir.TopLevel{
		Lhs:  []ir.TopLhs{{Name: "answer", Type: ir.TypeWord}},
		Tail: ir.Return{Atoms: []ir.Atom{ir.IntConst{Value: 42}}},
	})

	var buf bytes.Buffer
	DumpProgram(&buf, "after flow", prog)
	out := buf.String()

	assert.Contains(t, out, "after flow")
	assert.Contains(t, out, "entry(a):")
	assert.Contains(t, out, "answer =")
	assert.Contains(t, out, "return")
}

func TestReportFormatsInternalErrorWithStackTrace(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, NewInternalError("invariant broken"))
	out := buf.String()
	assert.Contains(t, out, "internal error")
	assert.Contains(t, out, "invariant broken")
	assert.Contains(t, out, "stack trace")
}

func TestReportFormatsRecoverableErrorWithoutStackTrace(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, errors.New("unexpected token at line 3"))
	out := buf.String()
	assert.Contains(t, out, "error")
	assert.NotContains(t, out, "stack trace")
}

func TestWarnFormatsYellowWarning(t *testing.T) {
	var buf bytes.Buffer
	Warn(&buf, "pass %s is disabled", "inline")
	assert.Contains(t, buf.String(), "pass inline is disabled")
}

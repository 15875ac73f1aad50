// Package pass implements the fixpoint pass driver of spec.md §4.4:
// inlining, flow (fact-driven rewriting + liveness pruning), duplicate
// elimination via alpha-equivalent summaries, and unused-argument
// removal, run in that fixed order until no pass reports a change.
package pass

import (
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/dshills/lcmil/internal/ir"
)

var log = commonlog.GetLogger("lcmil.pass")

// Pipeline runs the ordered, to-fixpoint sequence of sub-passes over a
// program. The order is fixed by spec.md §4.4/§9 and is not encoded in
// Go's type system; this struct documents it and the invariants each
// sub-pass assumes/establishes, per spec.md §9's recommendation.
type Pipeline struct {
	// EnableInline, EnableFlow, EnableDedup and EnableUnusedArgs allow
	// selectively disabling a sub-pass (spec.md §6 "passes can be
	// selectively disabled").
	EnableInline     bool
	EnableFlow       bool
	EnableDedup      bool
	EnableUnusedArgs bool
	// MaxIterations bounds the fixpoint loop defensively; a
	// well-formed program converges in a handful of iterations, but an
	// error (rather than silent nontermination) is returned if it does
	// not.
	MaxIterations int
}

// DefaultPipeline enables every sub-pass with a generous iteration
// bound.
func DefaultPipeline() Pipeline {
	return Pipeline{
		EnableInline:     true,
		EnableFlow:       true,
		EnableDedup:      true,
		EnableUnusedArgs: true,
		MaxIterations:    64,
	}
}

// Run executes the pipeline to fixpoint over prog, returning whether
// the program changed overall and any error encountered.
func (p Pipeline) Run(prog *ir.Program) (bool, error) {
	max := p.MaxIterations
	if max <= 0 {
		max = 64
	}
	anyChanged := false
	for i := 0; i < max; i++ {
		prog.ResetAllCallMetadata()
		changed := false

		if p.EnableInline {
			c, err := Inline(prog)
			if err != nil {
				return anyChanged, errors.Wrap(err, "inline pass")
			}
			changed = changed || c
		}
		if p.EnableFlow {
			c, err := Flow(prog)
			if err != nil {
				return anyChanged, errors.Wrap(err, "flow pass")
			}
			changed = changed || c
		}
		if p.EnableDedup {
			c, err := EliminateDuplicates(prog)
			if err != nil {
				return anyChanged, errors.Wrap(err, "dedup pass")
			}
			changed = changed || c
		}
		if p.EnableUnusedArgs {
			c, err := RemoveUnusedArgs(prog)
			if err != nil {
				return anyChanged, errors.Wrap(err, "remove-unused-args pass")
			}
			changed = changed || c
		}

		log.Debugf("pass iteration %d: changed=%v", i, changed)
		anyChanged = anyChanged || changed
		if !changed {
			return anyChanged, nil
		}
	}
	return anyChanged, errors.Errorf("pass pipeline did not reach a fixpoint within %d iterations", max)
}

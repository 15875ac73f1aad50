// Package config is the CLI-facing pipeline configuration `cmd/milc`
// builds from its flags: which of the pass driver's independently
// toggleable sub-passes run, and after which of them the driver should
// print an IR dump. It generalizes the teacher's single
// `codegen.OptimizationLevel` knob (`cmd/alas-compile`'s `-O`) to an
// explicit per-pass struct, since MIL's sub-passes (spec.md §4.4/§9)
// are independently toggleable rather than a strict level hierarchy.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/dshills/lcmil/internal/diag"
	"github.com/dshills/lcmil/internal/ir"
	"github.com/dshills/lcmil/internal/pass"
)

// PassName identifies one of the pass driver's sub-passes.
type PassName string

const (
	PassInline     PassName = "inline"
	PassFlow       PassName = "flow"
	PassDedup      PassName = "dedup"
	PassUnusedArgs PassName = "unusedargs"
)

// AllPasses names every sub-pass in the pass driver's fixed order
// (spec.md §4.4/§9): inline, then flow, then dedup, then unusedargs.
var AllPasses = []PassName{PassInline, PassFlow, PassDedup, PassUnusedArgs}

func isKnownPass(name PassName) bool {
	for _, p := range AllPasses {
		if p == name {
			return true
		}
	}
	return false
}

// Pipeline is the CLI-facing pipeline configuration: which sub-passes
// run, which ones get an IR dump immediately after they run in each
// fixpoint iteration, and how many fixpoint iterations are allowed
// before the pass driver reports non-convergence as an internal error.
type Pipeline struct {
	Enabled       map[PassName]bool
	DumpAfter     map[PassName]bool
	MaxIterations int
}

// DefaultPipeline enables every sub-pass, dumps nothing, and allows the
// pass driver's own default iteration bound.
func DefaultPipeline() Pipeline {
	enabled := make(map[PassName]bool, len(AllPasses))
	for _, p := range AllPasses {
		enabled[p] = true
	}
	return Pipeline{Enabled: enabled, DumpAfter: make(map[PassName]bool), MaxIterations: 64}
}

// ParsePassList parses a comma-separated `-pass` flag value (e.g.
// "inline,flow,dedup") into an enablement set: only the named passes
// run, every other pass is disabled. An empty string means "every
// pass enabled", matching DefaultPipeline.
func ParsePassList(s string) (map[PassName]bool, error) {
	enabled := make(map[PassName]bool, len(AllPasses))
	if strings.TrimSpace(s) == "" {
		for _, p := range AllPasses {
			enabled[p] = true
		}
		return enabled, nil
	}
	for _, tok := range strings.Split(s, ",") {
		name := PassName(strings.TrimSpace(tok))
		if !isKnownPass(name) {
			return nil, errors.Errorf("unknown pass %q (known: %s)", name, passNameList())
		}
		enabled[name] = true
	}
	return enabled, nil
}

// ParseDumpAfter parses a comma-separated `-dump-after` flag value the
// same way ParsePassList parses `-pass`, except an empty string means
// "dump after nothing" rather than "dump after everything".
func ParseDumpAfter(s string) (map[PassName]bool, error) {
	dump := make(map[PassName]bool)
	if strings.TrimSpace(s) == "" {
		return dump, nil
	}
	for _, tok := range strings.Split(s, ",") {
		name := PassName(strings.TrimSpace(tok))
		if !isKnownPass(name) {
			return nil, errors.Errorf("unknown pass %q (known: %s)", name, passNameList())
		}
		dump[name] = true
	}
	return dump, nil
}

func passNameList() string {
	names := make([]string, len(AllPasses))
	for i, p := range AllPasses {
		names[i] = string(p)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// ToPassPipeline converts to the pass driver's own enablement struct,
// for the common case of running straight to fixpoint with no
// per-sub-pass dumping.
func (c Pipeline) ToPassPipeline() pass.Pipeline {
	return pass.Pipeline{
		EnableInline:     c.Enabled[PassInline],
		EnableFlow:       c.Enabled[PassFlow],
		EnableDedup:      c.Enabled[PassDedup],
		EnableUnusedArgs: c.Enabled[PassUnusedArgs],
		MaxIterations:    c.MaxIterations,
	}
}

// Run drives the fixpoint loop itself (rather than delegating to
// pass.Pipeline.Run) so it can interleave a dump after any sub-pass
// named in DumpAfter, each time that sub-pass runs (one dump per
// fixpoint iteration, labelled with the iteration number) — matching spec.md §6's "debug dumps of the IR after each pass" at
// sub-pass, not whole-pipeline, granularity.
func (c Pipeline) Run(prog *ir.Program, dump func(label string, prog *ir.Program)) (bool, error) {
	max := c.MaxIterations
	if max <= 0 {
		max = 64
	}
	anyChanged := false
	for i := 0; i < max; i++ {
		prog.ResetAllCallMetadata()
		changed := false

		if c.Enabled[PassInline] {
			c2, err := pass.Inline(prog)
			if err != nil {
				return anyChanged, diag.WrapInternal(err, "inline pass")
			}
			changed = changed || c2
			if c.DumpAfter[PassInline] && dump != nil {
				dump(fmt.Sprintf("after inline (iteration %d)", i), prog)
			}
		}
		if c.Enabled[PassFlow] {
			c2, err := pass.Flow(prog)
			if err != nil {
				return anyChanged, diag.WrapInternal(err, "flow pass")
			}
			changed = changed || c2
			if c.DumpAfter[PassFlow] && dump != nil {
				dump(fmt.Sprintf("after flow (iteration %d)", i), prog)
			}
		}
		if c.Enabled[PassDedup] {
			c2, err := pass.EliminateDuplicates(prog)
			if err != nil {
				return anyChanged, diag.WrapInternal(err, "dedup pass")
			}
			changed = changed || c2
			if c.DumpAfter[PassDedup] && dump != nil {
				dump(fmt.Sprintf("after dedup (iteration %d)", i), prog)
			}
		}
		if c.Enabled[PassUnusedArgs] {
			c2, err := pass.RemoveUnusedArgs(prog)
			if err != nil {
				return anyChanged, diag.WrapInternal(err, "remove-unused-args pass")
			}
			changed = changed || c2
			if c.DumpAfter[PassUnusedArgs] && dump != nil {
				dump(fmt.Sprintf("after unusedargs (iteration %d)", i), prog)
			}
		}

		anyChanged = anyChanged || changed
		if !changed {
			return anyChanged, nil
		}
	}
	return anyChanged, diag.NewInternalError("pass pipeline did not reach a fixpoint within %d iterations", max)
}

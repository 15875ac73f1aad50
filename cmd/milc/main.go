// Command milc compiles a typed MIL program fixture down to LLVM IR:
// internal/frontend -> internal/config (the pass driver) ->
// internal/lift -> internal/reptrans -> internal/llvmgen, in that
// order, mirroring the
// teacher's cmd/alas-compile shape (flag.StringVar for input/output/
// format) generalized to MIL's independently toggleable pass list.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/dshills/lcmil/internal/config"
	"github.com/dshills/lcmil/internal/diag"
	"github.com/dshills/lcmil/internal/frontend"
	"github.com/dshills/lcmil/internal/ir"
	"github.com/dshills/lcmil/internal/lift"
	"github.com/dshills/lcmil/internal/llvmgen"
	"github.com/dshills/lcmil/internal/reptrans"
)

var log = commonlog.GetLogger("lcmil.milc")

func main() {
	var input string
	var output string
	var passList string
	var dumpAfter string
	var verbosity int

	flag.StringVar(&input, "file", "", "MIL program fixture to compile (reads from stdin if not provided)")
	flag.StringVar(&output, "o", "", "Output file (default: input file with .ll extension)")
	flag.StringVar(&passList, "pass", "", "comma-separated sub-passes to run (default: all of inline,flow,dedup,unusedargs)")
	flag.StringVar(&dumpAfter, "dump-after", "", "comma-separated sub-passes to print an IR dump after")
	flag.IntVar(&verbosity, "v", 0, "log verbosity (0 quiet, 1 debug)")
	flag.Parse()

	commonlog.Configure(verbosity, nil)

	if err := run(input, output, passList, dumpAfter); err != nil {
		diag.Report(os.Stderr, err)
		os.Exit(1)
	}
}

func run(input, output, passList, dumpAfter string) error {
	data, err := readInput(input)
	if err != nil {
		return err
	}

	fe := frontend.FixtureFrontend{}
	tp, err := fe.ParseAndCheck(displayName(input), data)
	if err != nil {
		return err
	}
	prog := frontend.Program(tp)
	layouts := frontend.Layouts(tp)
	if layouts == nil {
		layouts = reptrans.Layouts{}
	}

	enabled, err := config.ParsePassList(passList)
	if err != nil {
		return err
	}
	dumped, err := config.ParseDumpAfter(dumpAfter)
	if err != nil {
		return err
	}
	pipeline := config.DefaultPipeline()
	pipeline.Enabled = enabled
	pipeline.DumpAfter = dumped

	for _, name := range config.AllPasses {
		if !enabled[name] {
			diag.Warn(os.Stderr, "pass %s disabled", name)
		}
	}

	changed, err := pipeline.Run(prog, func(label string, p *ir.Program) {
		diag.DumpProgram(os.Stderr, label, p)
	})
	if err != nil {
		return err
	}
	log.Debugf("pass pipeline converged, changed=%v", changed)

	lifted := lift.Lift(prog)
	log.Debugf("lambda lifter produced %d top-level block(s)", len(lifted))

	if err := reptrans.Transform(prog, layouts); err != nil {
		return diag.WrapInternal(err, "representation transform")
	}

	module, err := llvmgen.Emit(prog)
	if err != nil {
		return err
	}

	out := output
	if out == "" {
		out = defaultOutput(input)
	}
	if err := os.WriteFile(out, []byte(module.String()), 0o600); err != nil {
		return fmt.Errorf("writing LLVM IR to %s: %w", out, err)
	}
	fmt.Printf("LLVM IR written to %s\n", out)
	return nil
}

func readInput(input string) ([]byte, error) {
	if input == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", input, err)
	}
	return data, nil
}

func displayName(input string) string {
	if input == "" {
		return "<stdin>"
	}
	return input
}

func defaultOutput(input string) string {
	if input == "" {
		return "output.ll"
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + ".ll"
}

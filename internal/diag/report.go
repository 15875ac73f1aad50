package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Report writes err to w in the teacher pack's colorized CLI style
// (kanso-lang-kanso's reporter.go: red for a hard error, yellow for a
// warning), printing an attached stack trace for an InternalError
// since that indicates a bug in this core rather than a mistake in the
// program being compiled.
func Report(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if IsInternal(err) {
		fmt.Fprintf(w, "%s: %v\n", red("internal error"), err)
		if st := StackTrace(err); st != "" {
			fmt.Fprintf(w, "%s%s\n", dim("stack trace: "), st)
		}
		return
	}
	fmt.Fprintf(w, "%s: %v\n", red("error"), err)
}

// Warn writes a yellow pass-disabled (or similar) warning to w.
func Warn(w io.Writer, format string, args ...interface{}) {
	yellow := color.New(color.FgYellow, color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s: %s\n", yellow("warning"), fmt.Sprintf(format, args...))
}

package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dshills/lcmil/internal/ir"
)

// DumpProgram writes a colorized textual rendering of prog to w: one
// section per block, in the teacher's "header line + indented body"
// style (internal/codegen/llvm.go's own IR-to-text convention,
// generalized from LLVM instruction text to MIL's Tail/Code text)
// rather than the block-is-a-graph structure an actual graph dump
// would need. label (e.g. a pass name) is printed in the section
// header so repeated dumps after each pass stay distinguishable in a
// terminal scrollback.
func DumpProgram(w io.Writer, label string, prog *ir.Program) {
	header := color.New(color.FgGreen, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", header("==="), header(label))
	for _, b := range prog.Blocks {
		fmt.Fprintf(w, "%s %s\n", dim("block"), blockSignature(b))
		dumpCode(w, b.Body, "  ")
	}
	for _, top := range prog.TopLevels {
		fmt.Fprintf(w, "%s %s\n", dim("top"), topSignature(top))
		dumpTail(w, top.Tail, "  ")
	}
	for _, cd := range prog.Closures {
		fmt.Fprintf(w, "%s %s\n", dim("closure"), closureSignature(cd))
		dumpTail(w, cd.Body, "  ")
	}
}

func blockSignature(b *ir.Block) string {
	params := make([]string, len(b.Params))
	for i, p := range b.Params {
		params[i] = p.Hint
	}
	return fmt.Sprintf("%s(%s):", b.Name, strings.Join(params, ", "))
}

func topSignature(top *ir.TopLevel) string {
	names := make([]string, len(top.Lhs))
	for i, l := range top.Lhs {
		names[i] = l.Name
	}
	return strings.Join(names, ", ") + " ="
}

func closureSignature(cd *ir.ClosureDefn) string {
	params := make([]string, len(cd.Params))
	for i, p := range cd.Params {
		params[i] = p.Hint
	}
	stored := make([]string, len(cd.Stored))
	for i, s := range cd.Stored {
		stored[i] = s.Hint
	}
	return fmt.Sprintf("%s[%s](%s):", cd.Name, strings.Join(stored, ", "), strings.Join(params, ", "))
}

func dumpCode(w io.Writer, c ir.Code, indent string) {
	switch n := c.(type) {
	case ir.Bind:
		vs := make([]string, len(n.Vs))
		for i, v := range n.Vs {
			vs[i] = v.Hint
		}
		fmt.Fprintf(w, "%s%s = %s\n", indent, strings.Join(vs, ", "), tailText(n.Tail))
		dumpCode(w, n.Next, indent)
	case ir.Done:
		fmt.Fprintf(w, "%sdone %s\n", indent, tailText(n.Tail))
	case ir.If:
		fmt.Fprintf(w, "%sif %s then %s else %s\n", indent, n.V.String(), blockCallText(n.Then), blockCallText(n.Else))
	case ir.Case:
		fmt.Fprintf(w, "%scase %s:\n", indent, n.V.String())
		for _, alt := range n.Alts {
			fmt.Fprintf(w, "%s  %s -> %s\n", indent, alt.Cfun.ID, blockCallText(alt.Call))
		}
		if n.Default != nil {
			fmt.Fprintf(w, "%s  default -> %s\n", indent, blockCallText(*n.Default))
		}
	default:
		fmt.Fprintf(w, "%s<unknown code %T>\n", indent, c)
	}
}

func dumpTail(w io.Writer, t ir.Tail, indent string) {
	fmt.Fprintf(w, "%s%s\n", indent, tailText(t))
}

func tailText(t ir.Tail) string {
	switch n := t.(type) {
	case ir.Return:
		return "return " + atomsText(n.Atoms)
	case ir.PrimCall:
		return fmt.Sprintf("%s(%s)", n.Prim.ID, atomsText(n.Args))
	case ir.BlockCall:
		return blockCallText(n)
	case ir.DataAlloc:
		return fmt.Sprintf("alloc %s(%s)", n.Cfun.ID, atomsText(n.Args))
	case ir.ClosAlloc:
		return fmt.Sprintf("closure %s(%s)", n.Def.Name, atomsText(n.Args))
	case ir.Enter:
		return fmt.Sprintf("enter %s(%s)", n.Func.String(), atomsText(n.Args))
	case ir.Sel:
		return fmt.Sprintf("sel %s.%d(%s)", n.Cfun.ID, n.N, n.Atom.String())
	default:
		return fmt.Sprintf("<unknown tail %T>", t)
	}
}

func blockCallText(bc ir.BlockCall) string {
	name := "<nil>"
	if bc.Block != nil {
		name = bc.Block.Name
	}
	return fmt.Sprintf("%s(%s)", name, atomsText(bc.Args))
}

func atomsText(atoms []ir.Atom) string {
	parts := make([]string, len(atoms))
	for i, a := range atoms {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

package lift

import "github.com/dshills/lcmil/internal/ir"

// tarjanSCCs computes the strongly connected components of the
// closure reference graph (an edge cd -> cd2 exists when cd's body
// allocates cd2's closure), returned in reverse topological order
// (the usual order to process them in so a callee's lifting decision
// is available when its caller's extra-variable computation needs it).
func tarjanSCCs(closures []*ir.ClosureDefn) [][]*ir.ClosureDefn {
	type state struct {
		index, lowlink int
		onStack        bool
	}
	st := make(map[*ir.ClosureDefn]*state)
	var stack []*ir.ClosureDefn
	index := 0
	var sccs [][]*ir.ClosureDefn

	var strongconnect func(v *ir.ClosureDefn)
	strongconnect = func(v *ir.ClosureDefn) {
		st[v] = &state{index: index, lowlink: index, onStack: true}
		index++
		stack = append(stack, v)

		for w := range referencedClosures(v.Body) {
			if st[w] == nil {
				strongconnect(w)
				if st[w].lowlink < st[v].lowlink {
					st[v].lowlink = st[w].lowlink
				}
			} else if st[w].onStack {
				if st[w].index < st[v].lowlink {
					st[v].lowlink = st[w].index
				}
			}
		}

		if st[v].lowlink == st[v].index {
			var scc []*ir.ClosureDefn
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				st[w].onStack = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, cd := range closures {
		if st[cd] == nil {
			strongconnect(cd)
		}
	}
	return sccs
}

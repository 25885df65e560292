package classify

import (
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"laddergen/internal/ir"
	"laddergen/internal/parser"
)

// SequenceFindings checks the machine's step graph: every transition target
// must exist, every step must be reachable from the initial step, and some
// step must return to it (the sequence forms a cycle). Violations are
// warnings; real machines sometimes park in a terminal state on purpose.
func SequenceFindings(m parser.Machine) ([]ir.Finding, error) {
	if len(m.States) == 0 {
		return nil, nil
	}

	steps := map[int]struct{}{}
	for _, st := range m.States {
		steps[st.Step] = struct{}{}
	}
	initial := m.States[0].Step

	g := graph.New(graph.IntHash, graph.Directed())
	for step := range steps {
		if err := g.AddVertex(step); err != nil {
			return nil, errors.Wrapf(err, "add step %d", step)
		}
	}

	var findings []ir.Finding
	returns := false
	for _, st := range m.States {
		if _, ok := steps[st.NextStep]; !ok {
			// next_step 0 with no step 0 defined is the "sequence
			// complete" sentinel: the machine restarts its cycle.
			if st.NextStep == 0 {
				returns = true
				continue
			}
			findings = append(findings, ir.Finding{
				Level:   ir.LevelWarning,
				Message: fmt.Sprintf("machine %q: step %d advances to undefined step %d", m.Name, st.Step, st.NextStep),
			})
			continue
		}
		if st.NextStep == initial {
			returns = true
		}
		if st.Step == st.NextStep {
			continue
		}
		err := g.AddEdge(st.Step, st.NextStep)
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return findings, errors.Wrapf(err, "add transition %d->%d", st.Step, st.NextStep)
		}
	}

	adj, err := g.AdjacencyMap()
	if err != nil {
		return findings, errors.Wrap(err, "adjacency map")
	}
	reach := map[int]struct{}{initial: {}}
	queue := []int{initial}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range adj[cur] {
			if _, seen := reach[next]; seen {
				continue
			}
			reach[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	var unreachable []int
	for step := range steps {
		if _, ok := reach[step]; !ok {
			unreachable = append(unreachable, step)
		}
	}
	sort.Ints(unreachable)
	for _, step := range unreachable {
		findings = append(findings, ir.Finding{
			Level:   ir.LevelWarning,
			Message: fmt.Sprintf("machine %q: step %d unreachable from initial step %d", m.Name, step, initial),
		})
	}
	if !returns {
		findings = append(findings, ir.Finding{
			Level:   ir.LevelWarning,
			Message: fmt.Sprintf("machine %q: sequence never returns to initial step %d", m.Name, initial),
		})
	}
	return findings, nil
}

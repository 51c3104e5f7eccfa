package graph

import (
	"fmt"
	"sort"

	"planforge/internal/logging"
	"planforge/internal/plan"
)

// pair identifies a directed edge by input positions: from must run before
// to.
type pair struct {
	from, to int
}

// Build constructs a validated execution DAG from resolved action steps.
// Error steps must have been dealt with before scheduling; callers pass only
// the plan's action steps.
//
// Construction runs in passes: index the steps, link explicit dependencies,
// infer context-flow dependencies, reject explicit/implicit direction
// contradictions, then produce a stable topological order (ties broken by
// input position) so the same input always yields the same order indices.
func Build(steps []*plan.ActionStep) (*DAG, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "graph construction")
	defer timer.Stop()

	pos := make(map[string]int, len(steps))
	for i, s := range steps {
		if prev, dup := pos[s.ID]; dup {
			return nil, fmt.Errorf("%w: %q (steps %d and %d)", ErrDuplicateStepID, s.ID, prev, i)
		}
		pos[s.ID] = i
	}

	explicit, err := linkExplicit(steps, pos)
	if err != nil {
		return nil, err
	}
	implicit := linkImplicit(steps)
	logging.GraphDebug("Linked %d explicit and %d implicit edges for %d steps", len(explicit), len(implicit), len(steps))

	// An explicit edge and a context-flow edge pointing opposite ways for
	// the same pair is a catalog/plan defect, not something a retry fixes.
	for p := range explicit {
		if keys, ok := implicit[pair{from: p.to, to: p.from}]; ok {
			return nil, fmt.Errorf(
				"%w: step %q explicitly depends on %q but context key(s) %v flow the other way",
				ErrContradictoryDependency, steps[p.to].ID, steps[p.from].ID, keys)
		}
	}

	// Merge both sources into one reason-tagged edge set.
	reasons := make(map[pair][]string, len(explicit)+len(implicit))
	for p := range explicit {
		reasons[p] = append(reasons[p], ReasonExplicit)
	}
	for p, keys := range implicit {
		sort.Strings(keys)
		for _, k := range keys {
			reasons[p] = append(reasons[p], ContextReason(k))
		}
	}

	order, err := topoSort(steps, reasons)
	if err != nil {
		return nil, err
	}

	dag := &DAG{Nodes: make([]*Node, 0, len(steps))}
	for rank, idx := range order {
		node := &Node{
			ID:    steps[idx].ID,
			Step:  steps[idx],
			Order: rank,
		}
		// Incoming edges, ordered by prerequisite input position.
		var incoming []pair
		for p := range reasons {
			if p.to == idx {
				incoming = append(incoming, p)
			}
		}
		sort.Slice(incoming, func(i, j int) bool { return incoming[i].from < incoming[j].from })
		for _, p := range incoming {
			node.Edges = append(node.Edges, DependencyEdge{
				DependsOn: steps[p.from].ID,
				Reasons:   reasons[p],
			})
		}
		dag.Nodes = append(dag.Nodes, node)
	}

	logging.Graph("Built DAG with %d nodes", len(dag.Nodes))
	return dag, nil
}

// linkExplicit collects edges from each step's declared dependency list.
func linkExplicit(steps []*plan.ActionStep, pos map[string]int) (map[pair]bool, error) {
	edges := make(map[pair]bool)
	for i, s := range steps {
		for _, dep := range s.DependsOn {
			j, ok := pos[dep]
			if !ok {
				return nil, fmt.Errorf("%w: step %q depends on unknown step %q", ErrMissingDependencyTarget, s.ID, dep)
			}
			if j == i {
				return nil, fmt.Errorf("%w: %q", ErrSelfDependency, s.ID)
			}
			edges[pair{from: j, to: i}] = true
		}
	}
	return edges, nil
}

// linkImplicit infers producer->consumer edges from intersecting declared
// context keys. The single-writer-per-key convention makes this sound: the
// step declaring a produced key is the only step that writes it.
func linkImplicit(steps []*plan.ActionStep) map[pair][]string {
	edges := make(map[pair][]string)
	for i, producer := range steps {
		if len(producer.Descriptor.Produces) == 0 {
			continue
		}
		produced := make(map[string]bool, len(producer.Descriptor.Produces))
		for _, k := range producer.Descriptor.Produces {
			produced[k] = true
		}
		for j, consumer := range steps {
			if i == j {
				continue
			}
			for _, k := range consumer.Descriptor.Requires {
				if produced[k] {
					p := pair{from: i, to: j}
					edges[p] = append(edges[p], k)
				}
			}
		}
	}
	return edges
}

// topoSort performs a stable Kahn's-algorithm sort: among nodes with no
// remaining prerequisites, the one earliest in the input always goes next.
// Leftover nodes mean a cycle; the error names them.
func topoSort(steps []*plan.ActionStep, reasons map[pair][]string) ([]int, error) {
	n := len(steps)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for p := range reasons {
		indegree[p.to]++
		dependents[p.from] = append(dependents[p.from], p.to)
	}

	placed := make([]bool, n)
	order := make([]int, 0, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !placed[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			var stuck []string
			for i := 0; i < n; i++ {
				if !placed[i] {
					stuck = append(stuck, steps[i].ID)
				}
			}
			return nil, fmt.Errorf("%w: unresolved steps %v", ErrCycleDetected, stuck)
		}
		placed[next] = true
		order = append(order, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}
	return order, nil
}

// Package graph builds the execution DAG for a resolved plan: explicit
// dependencies declared by the model plus implicit edges inferred from
// context-key flow, merged, checked for contradictions and cycles, and
// flattened into a deterministic total order.
//
// Graph-build failures are configuration or catalog defects, not data
// errors; they are returned as errors and are never retried.
package graph

import (
	"fmt"
	"strings"

	"planforge/internal/plan"
)

// ReasonExplicit tags an edge declared directly by the plan.
const ReasonExplicit = "explicit"

// ContextReason tags an edge inferred from a produced/required context key.
func ContextReason(key string) string {
	return "context:" + key
}

// DependencyEdge records that a node must wait for another, with every
// reason the edge exists.
type DependencyEdge struct {
	// DependsOn is the step id of the prerequisite node.
	DependsOn string

	// Reasons lists why the edge exists: "explicit" and/or "context:<key>"
	// tags, sorted with explicit first.
	Reasons []string
}

// Node is one scheduled step with its incoming dependency edges and its
// assigned position in the total order.
type Node struct {
	// ID is the step id.
	ID string

	// Step is the resolved action step this node schedules.
	Step *plan.ActionStep

	// Edges are the node's prerequisites, ordered by prerequisite step
	// position in the input plan.
	Edges []DependencyEdge

	// Order is the node's index in the deterministic total order.
	Order int
}

// Describe renders the node for audit and log output: its action, mutability,
// cost and affinity tags, and each dependency edge as stepId(reason1,reason2).
func (n *Node) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s action=%s mutability=%s cost=%d", n.ID, n.Step.Descriptor.ID, n.Step.Descriptor.Mutability, n.Step.Descriptor.Cost)
	if len(n.Step.Descriptor.Affinity) > 0 {
		fmt.Fprintf(&sb, " affinity=[%s]", strings.Join(n.Step.Descriptor.Affinity, ","))
	}
	if len(n.Edges) > 0 {
		parts := make([]string, 0, len(n.Edges))
		for _, e := range n.Edges {
			parts = append(parts, fmt.Sprintf("%s(%s)", e.DependsOn, strings.Join(e.Reasons, ",")))
		}
		fmt.Fprintf(&sb, " deps=[%s]", strings.Join(parts, " "))
	}
	return sb.String()
}

// DAG is the validated, ordered execution graph. It owns no mutable state
// after construction; Nodes is in topological order.
type DAG struct {
	Nodes []*Node
}

// Describe renders every node, one per line, in execution order.
func (d *DAG) Describe() string {
	lines := make([]string, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		lines = append(lines, n.Describe())
	}
	return strings.Join(lines, "\n")
}

// Node returns the node with the given step id, or nil.
func (d *DAG) Node(id string) *Node {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

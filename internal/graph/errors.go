package graph

import "errors"

// Graph construction errors. All of them indicate a defect in the plan's
// declared dependencies or the catalog's context-key declarations, so they
// surface immediately rather than becoming part of the plan status.
var (
	// ErrMissingDependencyTarget is returned when an explicit dependency
	// names a step that does not exist.
	ErrMissingDependencyTarget = errors.New("dependency target not found")

	// ErrContradictoryDependency is returned when an explicit dependency and
	// the context-flow inference disagree on the direction of the same pair.
	ErrContradictoryDependency = errors.New("contradictory dependency")

	// ErrCycleDetected is returned when the dependency graph cannot be
	// linearized.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrDuplicateStepID is returned when two steps share an id.
	ErrDuplicateStepID = errors.New("duplicate step id")

	// ErrSelfDependency is returned when a step names itself as a
	// prerequisite.
	ErrSelfDependency = errors.New("step cannot depend on itself")
)

package executor

import "errors"

var (
	// ErrPlanNotReady is returned when a plan containing error steps (or no
	// steps at all) is handed to the executor.
	ErrPlanNotReady = errors.New("plan is not ready for execution")

	// ErrContextFrozen is returned on writes to a frozen action context.
	ErrContextFrozen = errors.New("action context is frozen")

	// ErrDuplicateKey is returned when a step writes a context key that an
	// earlier step already produced.
	ErrDuplicateKey = errors.New("context key already written")

	// ErrErrorStepInPlan signals an internal invariant violation: a plan
	// reported READY but still carried an error step.
	ErrErrorStepInPlan = errors.New("error step in ready plan")
)

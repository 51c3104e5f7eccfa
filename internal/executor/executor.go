package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"planforge/internal/graph"
	"planforge/internal/logging"
	"planforge/internal/plan"
)

// StepStatus classifies how a step ended up after a run.
type StepStatus string

const (
	// StepOK means the step's operation returned without error.
	StepOK StepStatus = "OK"
	// StepFailed means the step ran and failed, aborting the run.
	StepFailed StepStatus = "FAILED"
	// StepNotRun means an earlier failure prevented the step from running.
	StepNotRun StepStatus = "NOT_RUN"
)

// StepOutcome records what happened to one step during a run.
type StepOutcome struct {
	StepID   string
	ActionID string
	Status   StepStatus
	Value    any
	Err      error
	Duration time.Duration
}

// Result is the full account of one execution run.
type Result struct {
	// RunID uniquely identifies this run.
	RunID string

	// Success is true when every step completed.
	Success bool

	// Outcomes holds one entry per plan step, in execution order.
	Outcomes []StepOutcome

	// Context is the shared context after the run. Executor-created
	// contexts come back frozen; caller-supplied ones stay writable for
	// the next run.
	Context *ActionContext

	// FailedStep names the step that aborted the run, if any.
	FailedStep string
}

// Executor runs ready plans sequentially against a shared action context,
// stopping at the first failure. It performs no rollback: steps that ran
// before a failure keep their effects.
type Executor struct{}

// New returns a sequential executor.
func New() *Executor {
	return &Executor{}
}

// Run executes the plan's steps in plan order over a fresh context. The
// plan must be READY; plans carrying error steps are refused outright. The
// returned Result always has one outcome per step, and its context is
// frozen.
func (e *Executor) Run(ctx context.Context, p *plan.ResolvedPlan) (*Result, error) {
	return e.RunWith(ctx, p, nil)
}

// RunWith executes the plan over a caller-supplied context, so values
// produced by an earlier run stay readable by this one. A nil actx runs over
// a fresh context. The caller receives the same object back, mutated, and
// owns freezing it; only contexts the executor created itself are frozen on
// return.
func (e *Executor) RunWith(ctx context.Context, p *plan.ResolvedPlan, actx *ActionContext) (*Result, error) {
	if p.Status() != plan.StatusReady {
		return nil, fmt.Errorf("%w: plan %s has status %s", ErrPlanNotReady, p.ID, p.Status())
	}

	steps := make([]*plan.ActionStep, 0, len(p.Steps))
	for _, s := range p.Steps {
		as, ok := s.(*plan.ActionStep)
		if !ok {
			// Status() just said READY; a non-action step here means the
			// plan was mutated underneath us.
			return nil, fmt.Errorf("%w: step %s", ErrErrorStepInPlan, s.StepID())
		}
		steps = append(steps, as)
	}
	return e.runSteps(ctx, p.ID, steps, actx)
}

// RunDAG executes the plan's steps in the DAG's topological order instead of
// raw plan order, over a fresh context.
func (e *Executor) RunDAG(ctx context.Context, planID string, d *graph.DAG) (*Result, error) {
	return e.RunDAGWith(ctx, planID, d, nil)
}

// RunDAGWith is RunDAG over a caller-supplied context; nil runs fresh.
func (e *Executor) RunDAGWith(ctx context.Context, planID string, d *graph.DAG, actx *ActionContext) (*Result, error) {
	steps := make([]*plan.ActionStep, 0, len(d.Nodes))
	for _, n := range d.Nodes {
		steps = append(steps, n.Step)
	}
	return e.runSteps(ctx, planID, steps, actx)
}

func (e *Executor) runSteps(ctx context.Context, planID string, steps []*plan.ActionStep, actx *ActionContext) (*Result, error) {
	owned := actx == nil
	if owned {
		actx = NewActionContext()
	}
	res := &Result{
		RunID:   "run-" + uuid.New().String()[:8],
		Context: actx,
	}
	logging.Exec("Run %s: starting plan %s (%d steps)", res.RunID, planID, len(steps))
	timer := logging.StartTimer(logging.CategoryExec, "plan execution")
	defer timer.Stop()

	failedAt := -1
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			res.Outcomes = append(res.Outcomes, StepOutcome{
				StepID:   step.ID,
				ActionID: step.Descriptor.ID,
				Status:   StepFailed,
				Err:      err,
			})
			res.FailedStep = step.ID
			failedAt = i
			break
		}
		outcome := e.runStep(ctx, step, res.Context)
		res.Outcomes = append(res.Outcomes, outcome)
		if outcome.Status == StepFailed {
			logging.ExecError("Run %s: step %s failed: %v", res.RunID, step.ID, outcome.Err)
			res.FailedStep = step.ID
			failedAt = i
			break
		}
	}

	if failedAt >= 0 {
		for _, step := range steps[failedAt+1:] {
			res.Outcomes = append(res.Outcomes, StepOutcome{
				StepID:   step.ID,
				ActionID: step.Descriptor.ID,
				Status:   StepNotRun,
			})
		}
	} else {
		res.Success = true
	}

	if owned {
		res.Context.Freeze()
	}
	logging.Exec("Run %s: finished success=%t keys=%v", res.RunID, res.Success, res.Context.Keys())
	return res, nil
}

// runStep assembles the step's arguments, injects required context values,
// invokes the operation, and stores its result under the declared key.
func (e *Executor) runStep(ctx context.Context, step *plan.ActionStep, actx *ActionContext) StepOutcome {
	outcome := StepOutcome{StepID: step.ID, ActionID: step.Descriptor.ID}
	start := time.Now()

	args := step.ArgMap()
	var missing []string
	for _, key := range step.Descriptor.Requires {
		v, ok := actx.Get(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		args[key] = v
	}
	if len(missing) > 0 {
		outcome.Status = StepFailed
		outcome.Err = fmt.Errorf("incomplete binding: context key(s) %s not produced before step %s",
			strings.Join(missing, ", "), step.ID)
		outcome.Duration = time.Since(start)
		return outcome
	}

	logging.ExecDebug("Invoking %s (step %s) with %d args", step.Descriptor.ID, step.ID, len(args))
	value, err := step.Descriptor.Invoke(ctx, args)
	outcome.Duration = time.Since(start)
	if err != nil {
		outcome.Status = StepFailed
		outcome.Err = err
		return outcome
	}

	if key := step.Descriptor.ResultKey; key != "" {
		if err := actx.Put(key, value); err != nil {
			outcome.Status = StepFailed
			outcome.Err = fmt.Errorf("storing result of step %s: %w", step.ID, err)
			return outcome
		}
	}

	outcome.Status = StepOK
	outcome.Value = value
	return outcome
}

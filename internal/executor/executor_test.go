package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"planforge/internal/catalog"
	"planforge/internal/plan"
)

func echoOp(id, resultKey string, requires ...string) *catalog.OperationDescriptor {
	return &catalog.OperationDescriptor{
		ID: id,
		Invoke: func(_ context.Context, args map[string]any) (any, error) {
			return id + "-result", nil
		},
		ResultKey: resultKey,
		Produces:  producesFor(resultKey),
		Requires:  requires,
	}
}

func producesFor(resultKey string) []string {
	if resultKey == "" {
		return nil
	}
	return []string{resultKey}
}

func failingOp(id string) *catalog.OperationDescriptor {
	return &catalog.OperationDescriptor{
		ID: id,
		Invoke: func(_ context.Context, _ map[string]any) (any, error) {
			return nil, fmt.Errorf("%s blew up", id)
		},
	}
}

func readyPlan(steps ...*plan.ActionStep) *plan.ResolvedPlan {
	p := &plan.ResolvedPlan{ID: "plan-test"}
	for _, s := range steps {
		p.Steps = append(p.Steps, s)
	}
	return p
}

func TestRunStoresResultsUnderDeclaredKeys(t *testing.T) {
	res, err := New().Run(context.Background(), readyPlan(
		&plan.ActionStep{ID: "s1", Descriptor: echoOp("fetch", "data")},
		&plan.ActionStep{ID: "s2", Descriptor: echoOp("report", "summary", "data")},
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("run should succeed, failed at %s", res.FailedStep)
	}

	v, ok := res.Context.Get("data")
	if !ok || v != "fetch-result" {
		t.Errorf("data = %v (present=%t)", v, ok)
	}
	if _, ok := res.Context.Get("summary"); !ok {
		t.Error("summary should be stored")
	}
	if !res.Context.Frozen() {
		t.Error("context should be frozen after the run")
	}
}

func TestRunInjectsRequiredContextValues(t *testing.T) {
	var seen any
	capture := &catalog.OperationDescriptor{
		ID: "capture",
		Invoke: func(_ context.Context, args map[string]any) (any, error) {
			seen = args["data"]
			return nil, nil
		},
		Requires: []string{"data"},
	}

	res, err := New().Run(context.Background(), readyPlan(
		&plan.ActionStep{ID: "s1", Descriptor: echoOp("fetch", "data")},
		&plan.ActionStep{ID: "s2", Descriptor: capture},
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("run should succeed, failed at %s", res.FailedStep)
	}
	if seen != "fetch-result" {
		t.Errorf("injected value = %v", seen)
	}
}

func TestRunFailFastMarksRemainingNotRun(t *testing.T) {
	res, err := New().Run(context.Background(), readyPlan(
		&plan.ActionStep{ID: "s1", Descriptor: echoOp("fetch", "data")},
		&plan.ActionStep{ID: "s2", Descriptor: failingOp("boom")},
		&plan.ActionStep{ID: "s3", Descriptor: echoOp("report", "")},
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Success {
		t.Fatal("run should fail")
	}
	if res.FailedStep != "s2" {
		t.Errorf("failed step = %q", res.FailedStep)
	}
	if len(res.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(res.Outcomes))
	}
	if res.Outcomes[0].Status != StepOK {
		t.Errorf("s1 status = %s", res.Outcomes[0].Status)
	}
	if res.Outcomes[1].Status != StepFailed {
		t.Errorf("s2 status = %s", res.Outcomes[1].Status)
	}
	if res.Outcomes[2].Status != StepNotRun {
		t.Errorf("s3 status = %s", res.Outcomes[2].Status)
	}
	// Completed work is kept; there is no rollback.
	if _, ok := res.Context.Get("data"); !ok {
		t.Error("s1's result should survive the failure")
	}
}

func TestRunMissingContextKeyFailsStep(t *testing.T) {
	res, err := New().Run(context.Background(), readyPlan(
		&plan.ActionStep{ID: "s1", Descriptor: echoOp("report", "", "data")},
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Success {
		t.Fatal("run should fail on incomplete binding")
	}
	if res.Outcomes[0].Err == nil || res.Outcomes[0].Status != StepFailed {
		t.Fatalf("outcome = %+v", res.Outcomes[0])
	}
}

func TestRunRefusesNonReadyPlan(t *testing.T) {
	p := &plan.ResolvedPlan{ID: "plan-bad", Steps: []plan.ResolvedStep{
		&plan.ErrorStep{ID: "s1", ActionID: "x", Reason: "nope"},
	}}
	_, err := New().Run(context.Background(), p)
	if !errors.Is(err, ErrPlanNotReady) {
		t.Fatalf("err = %v, want ErrPlanNotReady", err)
	}

	_, err = New().Run(context.Background(), &plan.ResolvedPlan{ID: "plan-empty"})
	if !errors.Is(err, ErrPlanNotReady) {
		t.Fatalf("empty plan err = %v, want ErrPlanNotReady", err)
	}
}

func TestRunDuplicateResultKeyFailsStep(t *testing.T) {
	res, err := New().Run(context.Background(), readyPlan(
		&plan.ActionStep{ID: "s1", Descriptor: echoOp("first", "data")},
		&plan.ActionStep{ID: "s2", Descriptor: echoOp("second", "data")},
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Success {
		t.Fatal("second write to the same key should fail the step")
	}
	if !errors.Is(res.Outcomes[1].Err, ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", res.Outcomes[1].Err)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancelAfterFirst := &catalog.OperationDescriptor{
		ID: "trip",
		Invoke: func(_ context.Context, _ map[string]any) (any, error) {
			cancel()
			return nil, nil
		},
	}

	res, err := New().Run(ctx, readyPlan(
		&plan.ActionStep{ID: "s1", Descriptor: cancelAfterFirst},
		&plan.ActionStep{ID: "s2", Descriptor: echoOp("never", "")},
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Success {
		t.Fatal("cancelled run should not succeed")
	}
	if !errors.Is(res.Outcomes[1].Err, context.Canceled) {
		t.Errorf("s2 err = %v, want context.Canceled", res.Outcomes[1].Err)
	}
}

func TestRunWithContinuesPriorContext(t *testing.T) {
	actx := NewActionContext()

	first, err := New().RunWith(context.Background(), readyPlan(
		&plan.ActionStep{ID: "s1", Descriptor: echoOp("fetch", "data")},
	), actx)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Context != actx {
		t.Fatal("result should carry the caller's context object")
	}
	if actx.Frozen() {
		t.Fatal("caller-supplied context must stay writable between runs")
	}

	// The second plan has no producer for "data"; it only works because the
	// first run's value is still readable.
	second, err := New().RunWith(context.Background(), readyPlan(
		&plan.ActionStep{ID: "s2", Descriptor: echoOp("report", "summary", "data")},
	), actx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !second.Success {
		t.Fatalf("second run should see the first run's keys, failed at %s", second.FailedStep)
	}
	if v, ok := actx.Get("summary"); !ok || v != "report-result" {
		t.Errorf("summary = %v (present=%t)", v, ok)
	}

	actx.Freeze()
	if !actx.Frozen() {
		t.Error("freezing remains the caller's call")
	}
}

func TestRunWithNilContextRunsFreshAndFrozen(t *testing.T) {
	res, err := New().RunWith(context.Background(), readyPlan(
		&plan.ActionStep{ID: "s1", Descriptor: echoOp("fetch", "data")},
	), nil)
	if err != nil {
		t.Fatalf("RunWith failed: %v", err)
	}
	if res.Context == nil || !res.Context.Frozen() {
		t.Error("executor-created context should come back frozen")
	}
}

func TestActionContextFreeze(t *testing.T) {
	actx := NewActionContext()
	if err := actx.Put("k", 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	actx.Freeze()
	actx.Freeze() // idempotent

	if err := actx.Put("other", 2); !errors.Is(err, ErrContextFrozen) {
		t.Errorf("err = %v, want ErrContextFrozen", err)
	}
	if v, ok := actx.Get("k"); !ok || v != 1 {
		t.Errorf("reads should still work after freeze, got %v", v)
	}
}

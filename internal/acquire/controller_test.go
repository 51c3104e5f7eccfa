package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"planforge/internal/catalog"
	"planforge/internal/plan"
)

const validPlanJSON = "```json" + `
{"message": "ok", "steps": [
  {"actionId": "noop", "parameters": {}}
]}
` + "```"

const invalidPlanJSON = `{"message": "bad", "steps": [
  {"actionId": "no.such.op", "parameters": {}}
]}`

// scriptedProducer returns responses (or errors) in sequence and records the
// prompts it saw.
type scriptedProducer struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (p *scriptedProducer) GeneratePlan(_ context.Context, prompt string) (string, error) {
	i := p.calls
	p.calls++
	p.prompts = append(p.prompts, prompt)
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return "", fmt.Errorf("script exhausted")
}

type recorderFunc func(AttemptRecord)

func (f recorderFunc) Record(r AttemptRecord) { f(r) }

func testResolver(t *testing.T) *plan.Resolver {
	t.Helper()
	cat := catalog.New()
	cat.MustRegister(&catalog.OperationDescriptor{
		ID:     "noop",
		Invoke: func(_ context.Context, _ map[string]any) (any, error) { return nil, nil },
	})
	return plan.NewResolver(cat, nil)
}

func TestFormulateZeroTiersIsDryRun(t *testing.T) {
	c, err := NewController(nil, testResolver(t))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	p, m := c.Formulate(context.Background(), "do nothing")
	if p.Status() == plan.StatusReady {
		t.Error("dry-run plan must not be READY")
	}
	if len(p.Steps) != 0 {
		t.Errorf("dry-run plan should be empty, got %d steps", len(p.Steps))
	}
	if m.TotalAttempts != 0 || len(m.Attempts) != 0 {
		t.Errorf("dry run should make no attempts, got %+v", m)
	}
}

func TestFormulateFallsThroughTiers(t *testing.T) {
	flaky := &scriptedProducer{errs: []error{
		errors.New("connection reset"),
		errors.New("connection reset"),
	}}
	good := &scriptedProducer{responses: []string{validPlanJSON}}

	c, err := NewController([]Tier{
		{Producer: flaky, ModelID: "big-model", MaxAttempts: 2},
		{Producer: good, ModelID: "small-model", MaxAttempts: 2},
	}, testResolver(t))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	p, m := c.Formulate(context.Background(), "send mail")
	if p.Status() != plan.StatusReady {
		t.Fatalf("plan status = %s, want READY", p.Status())
	}
	if m.TotalAttempts != 3 {
		t.Errorf("total attempts = %d, want 3", m.TotalAttempts)
	}
	if m.TiersAttempted() != 2 {
		t.Errorf("tiers attempted = %d, want 2", m.TiersAttempted())
	}
	if m.SuccessfulModelID != "small-model" {
		t.Errorf("successful model = %q, want small-model", m.SuccessfulModelID)
	}

	want := []Outcome{OutcomeNetworkError, OutcomeNetworkError, OutcomeSuccess}
	for i, rec := range m.Attempts {
		if rec.Outcome != want[i] {
			t.Errorf("attempt %d outcome = %s, want %s", i, rec.Outcome, want[i])
		}
	}
	if m.Attempts[0].Attempt != 1 || m.Attempts[1].Attempt != 2 || m.Attempts[2].Attempt != 1 {
		t.Errorf("attempt numbering wrong: %+v", m.Attempts)
	}
}

func TestFormulateClassifiesFailures(t *testing.T) {
	p := &scriptedProducer{
		responses: []string{"that is not a plan at all", invalidPlanJSON, validPlanJSON},
	}
	c, err := NewController([]Tier{
		{Producer: p, ModelID: "m", MaxAttempts: 3},
	}, testResolver(t))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	resolved, m := c.Formulate(context.Background(), "goal")
	if resolved.Status() != plan.StatusReady {
		t.Fatalf("plan status = %s, want READY", resolved.Status())
	}

	want := []Outcome{OutcomeParseFailed, OutcomeValidationFailed, OutcomeSuccess}
	for i, rec := range m.Attempts {
		if rec.Outcome != want[i] {
			t.Errorf("attempt %d outcome = %s, want %s", i, rec.Outcome, want[i])
		}
	}
	if m.Attempts[1].ErrorDetails == "" {
		t.Error("validation failure should carry error details")
	}
}

func TestFormulateCorrectivePromptAfterValidationFailure(t *testing.T) {
	p := &scriptedProducer{
		responses: []string{invalidPlanJSON, validPlanJSON},
	}
	c, err := NewController([]Tier{
		{Producer: p, ModelID: "m", MaxAttempts: 2},
	}, testResolver(t))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	if resolved, _ := c.Formulate(context.Background(), "goal"); resolved.Status() != plan.StatusReady {
		t.Fatalf("plan status = %s, want READY", resolved.Status())
	}

	if len(p.prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(p.prompts))
	}
	if p.prompts[0] != "goal" {
		t.Errorf("first prompt = %q", p.prompts[0])
	}
	if !strings.Contains(p.prompts[1], "no.such.op") {
		t.Errorf("retry prompt should quote the validation errors, got: %q", p.prompts[1])
	}
}

func TestFormulateExhaustionReturnsFailedPlan(t *testing.T) {
	p := &scriptedProducer{responses: []string{invalidPlanJSON}}
	c, err := NewController([]Tier{
		{Producer: p, ModelID: "m", MaxAttempts: 1},
	}, testResolver(t))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	resolved, m := c.Formulate(context.Background(), "goal")
	if resolved.Status() == plan.StatusReady {
		t.Fatal("exhausted acquisition must not yield a ready plan")
	}
	if m.Succeeded() {
		t.Error("metrics should not report success")
	}
	if len(resolved.Errors()) == 0 {
		t.Error("the last failed plan should be returned with its errors")
	}
}

func TestNewControllerValidation(t *testing.T) {
	p := &scriptedProducer{}
	resolver := testResolver(t)

	if _, err := NewController([]Tier{{Producer: p, ModelID: "m", MaxAttempts: 0}}, resolver); !errors.Is(err, ErrInvalidMaxAttempts) {
		t.Errorf("err = %v, want ErrInvalidMaxAttempts", err)
	}
	if _, err := NewController([]Tier{
		{Producer: p, ModelID: "a", MaxAttempts: 1},
		{Producer: p, ModelID: "b", MaxAttempts: 1},
	}, resolver); !errors.Is(err, ErrDuplicateProducer) {
		t.Errorf("err = %v, want ErrDuplicateProducer", err)
	}
	if _, err := NewController(nil, nil); !errors.Is(err, ErrNilResolver) {
		t.Errorf("err = %v, want ErrNilResolver", err)
	}
	if _, err := NewController([]Tier{{Producer: p, MaxAttempts: 1}}, resolver); !errors.Is(err, ErrEmptyModelID) {
		t.Errorf("err = %v, want ErrEmptyModelID", err)
	}
}

func TestSucceededMatchesSuccessOutcome(t *testing.T) {
	p := &scriptedProducer{responses: []string{validPlanJSON}}
	c, err := NewController([]Tier{
		{Producer: p, ModelID: "m", MaxAttempts: 1},
	}, testResolver(t))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	_, m := c.Formulate(context.Background(), "goal")
	var sawSuccess bool
	for _, rec := range m.Attempts {
		if rec.Outcome == OutcomeSuccess {
			sawSuccess = true
		}
	}
	if m.Succeeded() != sawSuccess {
		t.Errorf("Succeeded() = %t but success attempt present = %t", m.Succeeded(), sawSuccess)
	}
	if m.SuccessfulModelID != "m" {
		t.Errorf("successful model = %q", m.SuccessfulModelID)
	}
}

func TestFormulateNotifiesRecorder(t *testing.T) {
	var seen []AttemptRecord
	rec := recorderFunc(func(r AttemptRecord) { seen = append(seen, r) })

	p := &scriptedProducer{responses: []string{validPlanJSON}}
	c, err := NewController([]Tier{
		{Producer: p, ModelID: "m", MaxAttempts: 1},
	}, testResolver(t), WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	c.Formulate(context.Background(), "goal")
	if len(seen) != 1 || seen[0].Outcome != OutcomeSuccess {
		t.Errorf("recorder saw %+v", seen)
	}
}

package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"planforge/internal/logging"
	"planforge/internal/plan"
)

var (
	// ErrInvalidMaxAttempts is returned when a tier allows fewer than one
	// attempt.
	ErrInvalidMaxAttempts = errors.New("tier max attempts must be at least 1")

	// ErrDuplicateProducer is returned when the same producer instance
	// appears in more than one tier.
	ErrDuplicateProducer = errors.New("producer instance appears in multiple tiers")

	// ErrEmptyModelID is returned when a tier has no model id. Metrics
	// report success through SuccessfulModelID, so every tier needs a
	// non-empty label.
	ErrEmptyModelID = errors.New("tier model id cannot be empty")

	// ErrNilResolver is returned when the controller is built without a
	// plan resolver.
	ErrNilResolver = errors.New("plan resolver is required")
)

// Producer turns a planning prompt into raw model output. Implementations
// wrap a model backend; the controller never interprets the text itself.
type Producer interface {
	GeneratePlan(ctx context.Context, prompt string) (string, error)
}

// Recorder receives every attempt record as it is made. Implementations must
// tolerate being called from a single goroutine only.
type Recorder interface {
	Record(AttemptRecord)
}

// Tier pairs a producer with its retry budget.
type Tier struct {
	// Producer generates plan candidates for this tier.
	Producer Producer

	// ModelID labels attempt records made through this tier.
	ModelID string

	// MaxAttempts is how many times this tier may try before the
	// controller falls through to the next one.
	MaxAttempts int
}

// Controller walks an ordered list of producer tiers until one of them
// yields a plan that resolves READY. Every attempt is recorded whether it
// succeeds or not, so callers can account for cost and reliability per
// model.
type Controller struct {
	tiers    []Tier
	resolver *plan.Resolver
	recorder Recorder
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder attaches a recorder that observes every attempt.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// NewController validates the tier list and returns a controller. Tiers may
// be empty; Formulate then degrades to a dry run that returns an empty,
// non-ready plan.
func NewController(tiers []Tier, resolver *plan.Resolver, opts ...Option) (*Controller, error) {
	if resolver == nil {
		return nil, ErrNilResolver
	}
	seen := make(map[Producer]int, len(tiers))
	for i, t := range tiers {
		if t.MaxAttempts < 1 {
			return nil, fmt.Errorf("%w: tier %d (%s) has %d", ErrInvalidMaxAttempts, i, t.ModelID, t.MaxAttempts)
		}
		if t.Producer == nil {
			return nil, fmt.Errorf("tier %d (%s) has no producer", i, t.ModelID)
		}
		if t.ModelID == "" {
			return nil, fmt.Errorf("%w: tier %d", ErrEmptyModelID, i)
		}
		if prev, dup := seen[t.Producer]; dup {
			return nil, fmt.Errorf("%w: tiers %d and %d", ErrDuplicateProducer, prev, i)
		}
		seen[t.Producer] = i
	}
	c := &Controller{tiers: tiers, resolver: resolver}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Formulate asks each tier in order for a plan, retrying within a tier up to
// its budget before moving on. The first plan that resolves READY wins.
// Exhausting every tier is not a Go error: the caller gets the last tier's
// failed plan (or an empty one) plus metrics describing every attempt, and
// decides what to do with them.
func (c *Controller) Formulate(ctx context.Context, prompt string) (*plan.ResolvedPlan, *PlanningMetrics) {
	metrics := &PlanningMetrics{}
	if len(c.tiers) == 0 {
		logging.Acquire("No tiers configured, returning empty plan")
		return &plan.ResolvedPlan{ID: "plan-dry-run"}, metrics
	}

	timer := logging.StartTimer(logging.CategoryAcquire, "plan acquisition")
	defer timer.Stop()

	var lastFailed *plan.ResolvedPlan
	for tierIdx, tier := range c.tiers {
		tierPrompt := prompt
		for attempt := 1; attempt <= tier.MaxAttempts; attempt++ {
			if ctx.Err() != nil {
				logging.AcquireWarn("Acquisition cancelled after %d attempts", metrics.TotalAttempts)
				return c.exhausted(lastFailed), metrics
			}

			logging.AcquireDebug("Tier %d (%s) attempt %d/%d", tierIdx, tier.ModelID, attempt, tier.MaxAttempts)
			start := time.Now()
			record := AttemptRecord{ModelID: tier.ModelID, Tier: tierIdx, Attempt: attempt}

			resolved, failure := c.tryOnce(ctx, tier, tierPrompt)
			record.Duration = time.Since(start)

			if failure == nil {
				record.Outcome = OutcomeSuccess
				c.record(metrics, record)
				logging.Acquire("Tier %d (%s) produced plan %s on attempt %d", tierIdx, tier.ModelID, resolved.ID, attempt)
				metrics.SuccessfulModelID = tier.ModelID
				return resolved, metrics
			}

			record.Outcome = failure.outcome
			record.ErrorDetails = failure.details
			c.record(metrics, record)
			logging.AcquireWarn("Tier %d (%s) attempt %d: %s: %s", tierIdx, tier.ModelID, attempt, failure.outcome, failure.details)

			if failure.outcome == OutcomeValidationFailed {
				lastFailed = failure.plan
				// Give the same model a chance to correct itself before the
				// tier's budget runs out.
				tierPrompt = correctivePrompt(prompt, failure.details)
			}
		}
	}

	logging.AcquireWarn("All %d tiers exhausted after %d attempts", len(c.tiers), metrics.TotalAttempts)
	return c.exhausted(lastFailed), metrics
}

// attemptFailure carries the classification of a failed attempt.
type attemptFailure struct {
	outcome Outcome
	details string
	plan    *plan.ResolvedPlan
}

func (c *Controller) tryOnce(ctx context.Context, tier Tier, prompt string) (*plan.ResolvedPlan, *attemptFailure) {
	text, err := tier.Producer.GeneratePlan(ctx, prompt)
	if err != nil {
		return nil, &attemptFailure{outcome: OutcomeNetworkError, details: err.Error()}
	}

	raw, err := plan.ExtractRawPlan(text)
	if err != nil {
		return nil, &attemptFailure{outcome: OutcomeParseFailed, details: err.Error()}
	}

	resolved := c.resolver.Resolve(ctx, raw)
	if resolved.Status() != plan.StatusReady {
		details := resolved.ErrorSummary()
		if details == "" {
			details = "plan contains no steps"
		}
		return nil, &attemptFailure{outcome: OutcomeValidationFailed, details: details, plan: resolved}
	}
	return resolved, nil
}

func (c *Controller) record(metrics *PlanningMetrics, rec AttemptRecord) {
	metrics.Attempts = append(metrics.Attempts, rec)
	metrics.TotalAttempts++
	if c.recorder != nil {
		c.recorder.Record(rec)
	}
}

// exhausted picks the plan returned after every tier failed: the last
// validation-failed plan when one exists, otherwise an empty plan. Either
// way its status is not READY.
func (c *Controller) exhausted(lastFailed *plan.ResolvedPlan) *plan.ResolvedPlan {
	if lastFailed != nil {
		return lastFailed
	}
	return &plan.ResolvedPlan{ID: "plan-exhausted"}
}

func correctivePrompt(prompt, errorSummary string) string {
	return prompt + "\n\nYour previous plan was rejected for these reasons:\n" +
		errorSummary + "\nProduce a corrected plan that fixes every issue."
}

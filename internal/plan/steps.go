package plan

import (
	"fmt"
	"strings"

	"planforge/internal/catalog"
)

// PlanStatus reflects whether a resolved plan is fit to execute.
type PlanStatus string

const (
	// StatusReady means the plan is non-empty and every step resolved.
	StatusReady PlanStatus = "READY"

	// StatusError means the plan is empty or contains at least one error
	// step.
	StatusError PlanStatus = "ERROR"
)

// ResolvedArgument is one converted parameter value.
type ResolvedArgument struct {
	// Name is the parameter name.
	Name string

	// Value is the converted value.
	Value any

	// Kind is the target type the value was converted to.
	Kind catalog.ParamKind
}

// ResolvedStep is the closed variant over the two resolution outcomes for a
// step: ActionStep (typed, executable) or ErrorStep (rejected, with reason).
// No other implementations exist.
type ResolvedStep interface {
	// StepID returns the step's identifier within the plan.
	StepID() string

	isResolvedStep()
}

// ActionStep is a successfully resolved step: a catalog operation bound to
// typed arguments.
type ActionStep struct {
	// ID is the step identifier.
	ID string

	// Descriptor is the catalog operation this step invokes.
	Descriptor *catalog.OperationDescriptor

	// Args are the converted arguments, in descriptor parameter order.
	Args []ResolvedArgument

	// Description carries the model's free-text account of the step.
	Description string

	// DependsOn names steps the model declared as explicit prerequisites.
	DependsOn []string
}

// StepID implements ResolvedStep.
func (s *ActionStep) StepID() string { return s.ID }

func (s *ActionStep) isResolvedStep() {}

// ArgMap returns the arguments as a name->value map for invocation.
func (s *ActionStep) ArgMap() map[string]any {
	m := make(map[string]any, len(s.Args))
	for _, a := range s.Args {
		m[a.Name] = a.Value
	}
	return m
}

// ErrorStep is a step that failed resolution. It is data, not an exception:
// the plan carries it so the caller (and the acquisition controller) can see
// exactly which steps the model got wrong.
type ErrorStep struct {
	// ID is the step identifier.
	ID string

	// ActionID is the operation the raw step referenced, possibly unknown.
	ActionID string

	// Reason describes the first failure encountered for this step.
	Reason string
}

// StepID implements ResolvedStep.
func (s *ErrorStep) StepID() string { return s.ID }

func (s *ErrorStep) isResolvedStep() {}

func (s *ErrorStep) String() string {
	return fmt.Sprintf("%s (%s): %s", s.ID, s.ActionID, s.Reason)
}

// ResolvedPlan is an ordered list of resolved steps with a derived status.
type ResolvedPlan struct {
	// ID uniquely identifies this plan instance.
	ID string

	// Message is the model's plan-level commentary.
	Message string

	// Steps are the resolved steps, preserving raw plan order.
	Steps []ResolvedStep
}

// Status derives the plan's readiness: ERROR iff the plan is empty or any
// step is an ErrorStep.
func (p *ResolvedPlan) Status() PlanStatus {
	if len(p.Steps) == 0 {
		return StatusError
	}
	for _, s := range p.Steps {
		if _, bad := s.(*ErrorStep); bad {
			return StatusError
		}
	}
	return StatusReady
}

// ActionSteps returns the successfully resolved steps, in plan order.
func (p *ResolvedPlan) ActionSteps() []*ActionStep {
	out := make([]*ActionStep, 0, len(p.Steps))
	for _, s := range p.Steps {
		if as, ok := s.(*ActionStep); ok {
			out = append(out, as)
		}
	}
	return out
}

// Errors returns the reasons of all error steps, in plan order.
func (p *ResolvedPlan) Errors() []string {
	var out []string
	for _, s := range p.Steps {
		if es, ok := s.(*ErrorStep); ok {
			out = append(out, es.String())
		}
	}
	return out
}

// ErrorSummary joins all error-step reasons into one line for attempt
// records and corrective reprompting.
func (p *ResolvedPlan) ErrorSummary() string {
	return strings.Join(p.Errors(), "; ")
}

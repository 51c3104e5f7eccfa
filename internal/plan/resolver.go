package plan

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"planforge/internal/catalog"
	"planforge/internal/logging"
)

// Resolver converts raw steps into typed, validated steps against an
// operation catalog. Resolution never throws for bad model output: every
// failure becomes an ErrorStep inside the plan.
type Resolver struct {
	catalog   *catalog.Catalog
	resolvers *catalog.ResolverRegistry
}

// NewResolver creates a resolver over the given catalog and delegate-type
// resolver registry. The registry may be nil when no delegate parameters
// are declared.
func NewResolver(cat *catalog.Catalog, resolvers *catalog.ResolverRegistry) *Resolver {
	if resolvers == nil {
		resolvers = catalog.NewResolverRegistry()
	}
	return &Resolver{catalog: cat, resolvers: resolvers}
}

// Resolve converts every raw step independently; one bad step does not stop
// resolution of the others. The returned plan is READY only if it is
// non-empty and contains no error steps.
func (r *Resolver) Resolve(ctx context.Context, raw *RawPlan) *ResolvedPlan {
	timer := logging.StartTimer(logging.CategoryResolve, "plan resolution")
	defer timer.Stop()

	resolved := &ResolvedPlan{
		ID:      fmt.Sprintf("plan-%s", uuid.New().String()[:8]),
		Message: raw.Message,
		Steps:   make([]ResolvedStep, 0, len(raw.Steps)),
	}

	for i := range raw.Steps {
		resolved.Steps = append(resolved.Steps, r.resolveStep(ctx, &raw.Steps[i]))
	}

	logging.Resolve("Resolved plan %s: %d steps, status=%s", resolved.ID, len(resolved.Steps), resolved.Status())
	return resolved
}

// resolveStep runs the resolution pipeline for a single step: existence,
// arity, per-parameter conversion, then constraint validation. The first
// failure wins and conversion stops for the step.
func (r *Resolver) resolveStep(ctx context.Context, raw *RawStep) ResolvedStep {
	desc := r.catalog.Get(raw.ActionID)
	if desc == nil {
		return &ErrorStep{
			ID:       raw.ID,
			ActionID: raw.ActionID,
			Reason:   fmt.Sprintf("Unknown action id: %q", raw.ActionID),
		}
	}

	if len(raw.Parameters) != len(desc.Params) {
		return &ErrorStep{
			ID:       raw.ID,
			ActionID: raw.ActionID,
			Reason: fmt.Sprintf("parameter count mismatch: expected %d, got %d",
				len(desc.Params), len(raw.Parameters)),
		}
	}

	args := make([]ResolvedArgument, 0, len(desc.Params))
	for i := range desc.Params {
		spec := &desc.Params[i]

		rawValue, present := raw.Parameters[spec.Name]
		if !present {
			return &ErrorStep{
				ID:       raw.ID,
				ActionID: raw.ActionID,
				Reason:   fmt.Sprintf("missing parameter %q", spec.Name),
			}
		}

		value, err := r.convert(ctx, spec, rawValue)
		if err != nil {
			return &ErrorStep{
				ID:       raw.ID,
				ActionID: raw.ActionID,
				Reason:   fmt.Sprintf("parameter %q: %v", spec.Name, err),
			}
		}

		if err := checkConstraints(spec, value); err != nil {
			return &ErrorStep{
				ID:       raw.ID,
				ActionID: raw.ActionID,
				Reason:   fmt.Sprintf("parameter %q: %v", spec.Name, err),
			}
		}

		args = append(args, ResolvedArgument{Name: spec.Name, Value: value, Kind: spec.Kind})
	}

	logging.ResolveDebug("Step %s resolved to action %s with %d arguments", raw.ID, desc.ID, len(args))
	return &ActionStep{
		ID:          raw.ID,
		Descriptor:  desc,
		Args:        args,
		Description: raw.Description,
		DependsOn:   append([]string(nil), raw.DependsOn...),
	}
}

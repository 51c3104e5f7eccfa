// Package catalog defines the operation catalog consumed by the plan
// lifecycle: typed operation descriptors, parameter specs, and the pluggable
// delegate-type resolver registry.
//
// Descriptors are built once at startup (explicit registration, no
// reflection) and are immutable afterwards. The resolver walks a descriptor's
// parameter specs in order when converting raw model output into typed
// arguments.
package catalog

import (
	"context"
	"fmt"
	"regexp"
)

// Mutability classifies how an operation touches shared state. It governs
// which steps may run concurrently when a scheduler chooses to parallelize.
type Mutability string

const (
	// ReadOnly operations never contend and need no mutual exclusion.
	ReadOnly Mutability = "READ_ONLY"

	// Create operations add new state; they conflict only with operations
	// sharing an affinity tag.
	Create Mutability = "CREATE"

	// Mutate operations modify existing state; within one affinity lane they
	// must run one at a time, in declared order.
	Mutate Mutability = "MUTATE"
)

// ParamKind identifies the target type of a parameter.
type ParamKind string

const (
	KindString   ParamKind = "string"
	KindInt      ParamKind = "int"
	KindFloat    ParamKind = "float"
	KindBool     ParamKind = "bool"
	KindDate     ParamKind = "date" // ISO-8601 string -> time.Time
	KindEnum     ParamKind = "enum"
	KindArray    ParamKind = "array"
	KindObject   ParamKind = "object"
	KindDelegate ParamKind = "delegate"
)

// ParameterSpec describes one declared parameter of an operation.
type ParameterSpec struct {
	// Name is the parameter name as it appears in raw plan output.
	Name string

	// Kind is the target type.
	Kind ParamKind

	// Constants lists the legal values for KindEnum parameters. The matched
	// constant is returned in its declared spelling.
	Constants []string

	// Allowed restricts the stringified converted value to a fixed set.
	// Empty means unrestricted.
	Allowed []string

	// Pattern is a regular expression the stringified converted value must
	// match. Empty means unrestricted.
	Pattern string

	// CaseSensitive controls enum matching and allowed-value comparison.
	CaseSensitive bool

	// ResolverID names the registered TypeResolver for KindDelegate
	// parameters.
	ResolverID string

	// Elem describes the element type for KindArray parameters.
	Elem *ParameterSpec

	// Fields describes the named components of KindObject parameters.
	Fields []ParameterSpec
}

// Validate checks the spec for structural defects. Called at registration
// time so malformed catalogs fail at startup, not at plan time.
func (p *ParameterSpec) Validate() error {
	if p.Name == "" {
		return ErrParamNameEmpty
	}
	switch p.Kind {
	case KindString, KindInt, KindFloat, KindBool, KindDate:
	case KindEnum:
		if len(p.Constants) == 0 {
			return fmt.Errorf("%w: enum parameter %q declares no constants", ErrInvalidSpec, p.Name)
		}
	case KindArray:
		if p.Elem == nil {
			return fmt.Errorf("%w: array parameter %q has no element spec", ErrInvalidSpec, p.Name)
		}
		if err := p.Elem.Validate(); err != nil {
			return err
		}
	case KindObject:
		if len(p.Fields) == 0 {
			return fmt.Errorf("%w: object parameter %q has no fields", ErrInvalidSpec, p.Name)
		}
		for i := range p.Fields {
			if err := p.Fields[i].Validate(); err != nil {
				return err
			}
		}
	case KindDelegate:
		if p.ResolverID == "" {
			return fmt.Errorf("%w: delegate parameter %q has no resolver id", ErrInvalidSpec, p.Name)
		}
	default:
		return fmt.Errorf("%w: parameter %q has unknown kind %q", ErrInvalidSpec, p.Name, p.Kind)
	}
	if p.Pattern != "" {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("%w: parameter %q pattern: %v", ErrInvalidSpec, p.Name, err)
		}
	}
	return nil
}

// TargetFunc is the native callable bound to an operation. Arguments arrive
// as a name->value map containing the resolved parameters plus any
// context-injected values the descriptor requires.
type TargetFunc func(ctx context.Context, args map[string]any) (any, error)

// OperationDescriptor is the immutable record for one registered operation.
type OperationDescriptor struct {
	// ID uniquely identifies the operation; raw plan steps reference it.
	ID string

	// Description explains what the operation does. Included in prompt
	// material shown to the plan producer.
	Description string

	// Params are the declared parameters, in resolution order.
	Params []ParameterSpec

	// Invoke is the target callable.
	Invoke TargetFunc

	// ResultKey, when set, names the action-context key the return value is
	// stored under after a successful invocation.
	ResultKey string

	// Mutability classifies the operation for concurrency decisions.
	Mutability Mutability

	// Affinity tags group operations contending on the same logical
	// resource.
	Affinity []string

	// Produces lists context keys this operation writes. Feeds context-flow
	// dependency inference.
	Produces []string

	// Requires lists context keys this operation reads. Values are injected
	// into the argument map at execution time.
	Requires []string

	// Cost is the relative cost used for audit output (default 1).
	Cost int
}

// Validate checks the descriptor for structural defects.
func (d *OperationDescriptor) Validate() error {
	if d.ID == "" {
		return ErrOperationIDEmpty
	}
	if d.Invoke == nil {
		return fmt.Errorf("%w: %s", ErrInvokeNil, d.ID)
	}
	switch d.Mutability {
	case "", ReadOnly, Create, Mutate:
	default:
		return fmt.Errorf("%w: operation %q mutability %q", ErrInvalidSpec, d.ID, d.Mutability)
	}
	seen := make(map[string]bool, len(d.Params))
	for i := range d.Params {
		if err := d.Params[i].Validate(); err != nil {
			return fmt.Errorf("operation %q: %w", d.ID, err)
		}
		if seen[d.Params[i].Name] {
			return fmt.Errorf("%w: operation %q parameter %q", ErrDuplicateParam, d.ID, d.Params[i].Name)
		}
		seen[d.Params[i].Name] = true
	}
	if d.ResultKey != "" && !contains(d.Produces, d.ResultKey) {
		return fmt.Errorf("%w: operation %q result key %q not in produced keys", ErrInvalidSpec, d.ID, d.ResultKey)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

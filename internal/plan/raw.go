// Package plan turns raw, untrusted plan text produced by a model into a
// typed, validated plan against the operation catalog.
//
// The package owns two stages of the lifecycle: extraction (response text ->
// RawPlan, stripping markdown fences) and resolution (RawPlan -> ResolvedPlan
// with per-step typed arguments or error steps). Both stages are
// deterministic for a given input; retrying them without new model output is
// pointless, which is why the acquisition controller owns retries, not this
// package.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawStep is one step as parsed from model output: an operation reference
// with untyped parameter values. Transient; it lives for one acquisition
// attempt.
type RawStep struct {
	// ID identifies the step for dependency references. Assigned
	// "step-<index>" when the model omits it.
	ID string `json:"id,omitempty"`

	// ActionID names the catalog operation to invoke.
	ActionID string `json:"actionId"`

	// Description is the model's free-text account of the step.
	Description string `json:"description"`

	// Parameters maps parameter name to untyped value (string, number,
	// bool, array, or nested object).
	Parameters map[string]any `json:"parameters"`

	// DependsOn optionally names steps that must run first.
	DependsOn []string `json:"dependsOn,omitempty"`
}

// RawPlan is the wire shape the core parses out of producer response text.
type RawPlan struct {
	// Message is the model's commentary on the plan as a whole.
	Message string `json:"message"`

	// Steps are the proposed steps, in the model's order.
	Steps []RawStep `json:"steps"`
}

// ExtractRawPlan parses producer response text into a RawPlan. The text may
// wrap the JSON document in a fenced code block; the fence is stripped
// before parsing. A nil error means the text had the raw-plan shape - it
// says nothing about whether the steps are valid against the catalog.
func ExtractRawPlan(text string) (*RawPlan, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response text")
	}

	var raw RawPlan
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("response is not a plan document: %w", err)
	}

	seen := make(map[string]int, len(raw.Steps))
	for i := range raw.Steps {
		if raw.Steps[i].ID == "" {
			raw.Steps[i].ID = fmt.Sprintf("step-%d", i)
		}
		if prev, dup := seen[raw.Steps[i].ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q (steps %d and %d)", raw.Steps[i].ID, prev, i)
		}
		seen[raw.Steps[i].ID] = i
	}

	return &raw, nil
}

// stripFences removes a markdown code fence wrapper from a response.
func stripFences(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

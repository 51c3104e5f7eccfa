package acquire

import "time"

// Outcome classifies how a single acquisition attempt ended.
type Outcome string

const (
	// OutcomeSuccess means the producer returned a plan that resolved READY.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeParseFailed means the producer's output was not a parseable plan.
	OutcomeParseFailed Outcome = "PARSE_FAILED"
	// OutcomeValidationFailed means the plan parsed but resolution produced
	// error steps.
	OutcomeValidationFailed Outcome = "VALIDATION_FAILED"
	// OutcomeNetworkError means the producer call itself failed.
	OutcomeNetworkError Outcome = "NETWORK_ERROR"
)

// AttemptRecord captures one producer call, successful or not.
type AttemptRecord struct {
	// ModelID identifies the model the tier was configured with.
	ModelID string `json:"model_id"`

	// Tier is the zero-based index of the tier that made the attempt.
	Tier int `json:"tier"`

	// Attempt is the 1-based attempt number within the tier.
	Attempt int `json:"attempt"`

	// Outcome classifies the result.
	Outcome Outcome `json:"outcome"`

	// Duration is how long the attempt took, producer call included.
	Duration time.Duration `json:"duration"`

	// ErrorDetails describes the failure for non-success outcomes.
	ErrorDetails string `json:"error_details,omitempty"`
}

// PlanningMetrics summarizes a full acquisition run across all tiers.
type PlanningMetrics struct {
	// SuccessfulModelID names the model that produced the accepted plan,
	// empty when every tier was exhausted.
	SuccessfulModelID string `json:"successful_model_id,omitempty"`

	// TotalAttempts counts every attempt across every tier.
	TotalAttempts int `json:"total_attempts"`

	// Attempts holds one record per attempt, in the order they were made.
	Attempts []AttemptRecord `json:"attempts"`
}

// Succeeded reports whether any attempt produced an accepted plan.
func (m *PlanningMetrics) Succeeded() bool {
	return m.SuccessfulModelID != ""
}

// TiersAttempted counts the distinct tiers that made at least one attempt.
func (m *PlanningMetrics) TiersAttempted() int {
	seen := make(map[int]bool)
	for _, a := range m.Attempts {
		seen[a.Tier] = true
	}
	return len(seen)
}

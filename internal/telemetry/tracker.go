package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"planforge/internal/acquire"
	"planforge/internal/logging"
)

// AttemptCounts aggregates attempt outcomes for one bucket.
type AttemptCounts struct {
	Total            int `json:"total"`
	Success          int `json:"success"`
	ParseFailed      int `json:"parse_failed"`
	ValidationFailed int `json:"validation_failed"`
	NetworkError     int `json:"network_error"`
}

// Add folds one outcome into the counts.
func (c *AttemptCounts) Add(outcome acquire.Outcome) {
	c.Total++
	switch outcome {
	case acquire.OutcomeSuccess:
		c.Success++
	case acquire.OutcomeParseFailed:
		c.ParseFailed++
	case acquire.OutcomeValidationFailed:
		c.ValidationFailed++
	case acquire.OutcomeNetworkError:
		c.NetworkError++
	}
}

// TrackerData is the persisted telemetry document.
type TrackerData struct {
	Version   string                    `json:"version"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Total     AttemptCounts             `json:"total"`
	ByModel   map[string]*AttemptCounts `json:"by_model"`
	ByTier    map[string]*AttemptCounts `json:"by_tier"`
}

// Tracker aggregates acquisition attempt records and persists them as JSON.
// It satisfies the acquisition controller's Recorder interface.
type Tracker struct {
	mu       sync.Mutex
	data     TrackerData
	filePath string
	dirty    bool
}

// NewTracker creates a tracker persisting to filePath, loading any existing
// data first. A corrupt or missing file starts empty.
func NewTracker(filePath string) (*Tracker, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create telemetry dir: %w", err)
		}
	}

	t := &Tracker{
		filePath: filePath,
		data: TrackerData{
			Version: "1.0",
			ByModel: make(map[string]*AttemptCounts),
			ByTier:  make(map[string]*AttemptCounts),
		},
	}
	if err := t.load(); err != nil {
		logging.TelemetryDebug("Starting with empty telemetry: %v", err)
	}
	return t, nil
}

func (t *Tracker) load() error {
	data, err := os.ReadFile(t.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.data); err != nil {
		return err
	}
	if t.data.ByModel == nil {
		t.data.ByModel = make(map[string]*AttemptCounts)
	}
	if t.data.ByTier == nil {
		t.data.ByTier = make(map[string]*AttemptCounts)
	}
	return nil
}

// Record folds one attempt into the aggregates.
func (t *Tracker) Record(rec acquire.AttemptRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Total.Add(rec.Outcome)
	addTo(t.data.ByModel, rec.ModelID, rec.Outcome)
	addTo(t.data.ByTier, fmt.Sprintf("tier-%d", rec.Tier), rec.Outcome)
	t.dirty = true
	logging.TelemetryDebug("Recorded %s attempt for %s (tier %d)", rec.Outcome, rec.ModelID, rec.Tier)
}

func addTo(m map[string]*AttemptCounts, key string, outcome acquire.Outcome) {
	c, ok := m[key]
	if !ok {
		c = &AttemptCounts{}
		m[key] = c
	}
	c.Add(outcome)
}

// Save writes the aggregates to disk if anything changed since the last
// save.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return nil
	}

	t.data.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.filePath, data, 0o644); err != nil {
		return err
	}
	t.dirty = false
	logging.Telemetry("Saved telemetry to %s (%d attempts total)", t.filePath, t.data.Total.Total)
	return nil
}

// Snapshot returns a copy of the current aggregates.
func (t *Tracker) Snapshot() TrackerData {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.data
	out.ByModel = make(map[string]*AttemptCounts, len(t.data.ByModel))
	for k, v := range t.data.ByModel {
		c := *v
		out.ByModel[k] = &c
	}
	out.ByTier = make(map[string]*AttemptCounts, len(t.data.ByTier))
	for k, v := range t.data.ByTier {
		c := *v
		out.ByTier[k] = &c
	}
	return out
}

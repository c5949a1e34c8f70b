// Package cost tracks AI narrator token usage and dollar spend.
// Budgets never fail an evaluation: when a limit is hit the tracker
// reports that AI calls should stop and the narrator falls back to its
// template text.
package cost

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Config holds the budget limits and pricing for the tracker.
type Config struct {
	// MaxTokensPerRun caps input+output tokens attributed to a single
	// run. 0 = unlimited.
	MaxTokensPerRun int64 `json:"max_tokens_per_run"`

	// MaxCostPerDay caps estimated spend per UTC day in USD.
	// 0 = unlimited.
	MaxCostPerDay float64 `json:"max_cost_per_day"`

	// InputTokenCost is USD per 1M input tokens.
	InputTokenCost float64 `json:"input_token_cost"`

	// OutputTokenCost is USD per 1M output tokens.
	OutputTokenCost float64 `json:"output_token_cost"`

	// StatePath is where tracker state is persisted so daily budgets
	// survive restarts. Empty disables persistence.
	StatePath string `json:"state_path"`
}

// DefaultConfig returns conservative limits with haiku-class pricing.
func DefaultConfig() *Config {
	return &Config{
		MaxTokensPerRun: 8192,
		MaxCostPerDay:   1.00,
		InputTokenCost:  0.80,
		OutputTokenCost: 4.00,
	}
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.MaxTokensPerRun < 0 {
		return fmt.Errorf("max tokens per run cannot be negative (got %d)", c.MaxTokensPerRun)
	}
	if c.MaxCostPerDay < 0 {
		return fmt.Errorf("max cost per day cannot be negative (got %.2f)", c.MaxCostPerDay)
	}
	if c.InputTokenCost < 0 || c.OutputTokenCost < 0 {
		return fmt.Errorf("token prices cannot be negative")
	}
	return nil
}

// State is the persisted tracker state.
type State struct {
	DayTokensUsed int64     `json:"day_tokens_used"`
	DayCostUsed   float64   `json:"day_cost_used"`
	WindowStart   time.Time `json:"window_start"`

	// RunTokensUsed maps run ID to input+output tokens spent on it.
	RunTokensUsed map[string]int64 `json:"run_tokens_used"`

	TotalTokensUsed int64     `json:"total_tokens_used"`
	TotalCostUsed   float64   `json:"total_cost_used"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Stats is a read-only snapshot of the tracker for display.
type Stats struct {
	DayTokensUsed   int64     `json:"day_tokens_used"`
	DayCostUsed     float64   `json:"day_cost_used"`
	TotalTokensUsed int64     `json:"total_tokens_used"`
	TotalCostUsed   float64   `json:"total_cost_used"`
	WindowStart     time.Time `json:"window_start"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Tracker enforces the AI spend budget.
type Tracker struct {
	config *Config
	state  *State
	mu     sync.Mutex
	now    func() time.Time
}

// NewTracker builds a tracker, recovering persisted state when a
// state path is configured. A corrupt or unreadable state file is
// reported as a warning and replaced with fresh state.
func NewTracker(cfg *Config) (*Tracker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cost config: %w", err)
	}

	t := &Tracker{
		config: cfg,
		now:    time.Now,
	}
	t.state = &State{
		WindowStart:   t.now(),
		RunTokensUsed: make(map[string]int64),
		LastUpdated:   t.now(),
	}

	if cfg.StatePath != "" {
		if err := t.loadState(); err != nil {
			fmt.Printf("Warning: failed to load cost state from %s: %v (starting fresh)\n", cfg.StatePath, err)
		}
	}
	return t, nil
}

// Record attributes token usage to a run and returns the estimated
// cost in USD. Persistence failures are warnings, never errors.
func (t *Tracker) Record(runID string, inputTokens, outputTokens int64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetWindowIfStale()

	tokens := inputTokens + outputTokens
	cost := t.price(inputTokens, outputTokens)

	t.state.DayTokensUsed += tokens
	t.state.DayCostUsed += cost
	t.state.TotalTokensUsed += tokens
	t.state.TotalCostUsed += cost
	t.state.LastUpdated = t.now()
	if runID != "" {
		t.state.RunTokensUsed[runID] += tokens
	}

	if err := t.persistState(); err != nil {
		fmt.Printf("Warning: failed to persist cost state: %v\n", err)
	}
	return cost
}

// CanProceed reports whether another AI call fits the budget. When it
// does not, the second return value names the limit that was hit.
func (t *Tracker) CanProceed(runID string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetWindowIfStale()

	if t.config.MaxCostPerDay > 0 && t.state.DayCostUsed >= t.config.MaxCostPerDay {
		return false, fmt.Sprintf("daily cost budget exceeded ($%.2f/$%.2f used)",
			t.state.DayCostUsed, t.config.MaxCostPerDay)
	}
	if runID != "" && t.config.MaxTokensPerRun > 0 {
		if used := t.state.RunTokensUsed[runID]; used >= t.config.MaxTokensPerRun {
			return false, fmt.Sprintf("token budget exceeded for run %s (%d/%d tokens used)",
				runID, used, t.config.MaxTokensPerRun)
		}
	}
	return true, ""
}

// Stats returns a snapshot of current usage.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetWindowIfStale()

	return Stats{
		DayTokensUsed:   t.state.DayTokensUsed,
		DayCostUsed:     t.state.DayCostUsed,
		TotalTokensUsed: t.state.TotalTokensUsed,
		TotalCostUsed:   t.state.TotalCostUsed,
		WindowStart:     t.state.WindowStart,
		LastUpdated:     t.state.LastUpdated,
	}
}

// price estimates USD cost for the given token counts.
func (t *Tracker) price(inputTokens, outputTokens int64) float64 {
	in := float64(inputTokens) * t.config.InputTokenCost / 1_000_000
	out := float64(outputTokens) * t.config.OutputTokenCost / 1_000_000
	return in + out
}

// resetWindowIfStale zeroes the daily counters when the UTC date has
// rolled over. Must be called with the lock held.
func (t *Tracker) resetWindowIfStale() {
	now := t.now()
	y1, m1, d1 := t.state.WindowStart.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		t.state.DayTokensUsed = 0
		t.state.DayCostUsed = 0
		t.state.WindowStart = now
	}
}

// persistState saves tracker state to disk. Must be called with the
// lock held.
func (t *Tracker) persistState() error {
	if t.config.StatePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cost state: %w", err)
	}
	if err := os.WriteFile(t.config.StatePath, data, 0644); err != nil {
		return fmt.Errorf("writing cost state: %w", err)
	}
	return nil
}

// loadState restores tracker state from disk. A missing file is not
// an error; the tracker simply starts fresh.
func (t *Tracker) loadState() error {
	data, err := os.ReadFile(t.config.StatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cost state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parsing cost state: %w", err)
	}
	if state.RunTokensUsed == nil {
		state.RunTokensUsed = make(map[string]int64)
	}
	t.state = &state
	return nil
}

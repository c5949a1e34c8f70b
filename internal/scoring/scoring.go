// Package scoring aggregates final agent scores into one composite score
// and grade. Everything here is a pure function of its inputs: same
// results and weights always produce the identical composite, bit for
// bit, so scoring can be replayed and audited independently of the
// negotiation that produced the inputs.
package scoring

import (
	"math"
	"sort"

	"github.com/steveyegge/jury/internal/types"
)

// Config selects the weighting scheme for the composite.
type Config struct {
	// Method is equal_weight or weighted.
	Method types.CalculationMethod

	// Weights holds the explicit integer weights for the weighted method.
	// They must cover exactly the agent set and sum to 100. Ignored for
	// equal_weight.
	Weights map[types.AgentID]int
}

// DefaultConfig returns an equal-weight scoring configuration.
func DefaultConfig() *Config {
	return &Config{Method: types.MethodEqualWeight}
}

// Scorer computes composite results under one weighting configuration.
type Scorer struct {
	config *Config
}

// NewScorer creates a scorer, validating the configuration shape. Weight
// coverage against the actual agent set is checked per call, since the
// agent set is not known until a run is assembled.
func NewScorer(cfg *Config) (*Scorer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Method.IsValid() {
		return nil, types.NewConfigurationError("unknown calculation method %q", cfg.Method)
	}
	if cfg.Method == types.MethodWeighted && len(cfg.Weights) == 0 {
		return nil, types.NewConfigurationError("weighted method requires explicit weights")
	}
	return &Scorer{config: cfg}, nil
}

// Method returns the configured calculation method.
func (s *Scorer) Method() types.CalculationMethod {
	return s.config.Method
}

// ValidateAgents checks the configuration against the agent set that
// will be scored. For the weighted method this enforces exact coverage
// and the sum-to-100 rule, so a bad configuration fails before any
// analysis or negotiation starts.
func (s *Scorer) ValidateAgents(agents []types.AgentID) error {
	if len(agents) == 0 {
		return types.NewConfigurationError("no agents to score")
	}
	if s.config.Method == types.MethodEqualWeight {
		return nil
	}
	_, err := resolveCustomWeights(agents, s.config.Weights)
	return err
}

// Compose combines the agents' adjusted scores into the composite result.
// The weights used are recorded on the result so every composite is
// auditable on its own.
func (s *Scorer) Compose(results []*types.AgentResult) (*types.CompositeResult, error) {
	if len(results) == 0 {
		return nil, types.NewConfigurationError("no agents to score")
	}

	agents := make([]types.AgentID, 0, len(results))
	byAgent := make(map[types.AgentID]*types.AgentResult, len(results))
	for _, r := range results {
		if _, dup := byAgent[r.AgentName]; dup {
			return nil, types.NewConfigurationError("duplicate result for agent %s", r.AgentName)
		}
		agents = append(agents, r.AgentName)
		byAgent[r.AgentName] = r
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i] < agents[j] })

	var weights map[types.AgentID]float64
	var err error
	switch s.config.Method {
	case types.MethodEqualWeight:
		weights = EqualWeights(agents)
	case types.MethodWeighted:
		weights, err = resolveCustomWeights(agents, s.config.Weights)
		if err != nil {
			return nil, err
		}
	default:
		return nil, types.NewConfigurationError("unknown calculation method %q", s.config.Method)
	}

	// Sum in sorted agent order so recomputation is bit-identical.
	var overall float64
	for _, agent := range agents {
		overall += byAgent[agent].AdjustedScore * weights[agent] / 100
	}
	overall = Round2(overall)

	return &types.CompositeResult{
		OverallScore:      overall,
		Grade:             GradeFor(overall),
		WeightsUsed:       weights,
		CalculationMethod: s.config.Method,
	}, nil
}

// EqualWeights splits 100 evenly across the agents, rounding each share
// to 2 decimals and assigning the rounding remainder to the last agent
// alphabetically so the split is deterministic and sums exactly to 100.
func EqualWeights(agents []types.AgentID) map[types.AgentID]float64 {
	sorted := make([]types.AgentID, len(agents))
	copy(sorted, agents)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	weights := make(map[types.AgentID]float64, len(sorted))
	if len(sorted) == 0 {
		return weights
	}

	share := Round2(100 / float64(len(sorted)))
	assigned := 0.0
	for _, agent := range sorted[:len(sorted)-1] {
		weights[agent] = share
		assigned += share
	}
	weights[sorted[len(sorted)-1]] = Round2(100 - assigned)
	return weights
}

// resolveCustomWeights checks explicit weights against the agent set:
// exact coverage, no negatives, sum of 100.
func resolveCustomWeights(agents []types.AgentID, custom map[types.AgentID]int) (map[types.AgentID]float64, error) {
	sorted := make([]types.AgentID, len(agents))
	copy(sorted, agents)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	weights := make(map[types.AgentID]float64, len(sorted))
	sum := 0
	for _, agent := range sorted {
		w, ok := custom[agent]
		if !ok {
			return nil, types.NewConfigurationError("no weight configured for agent %s", agent)
		}
		if w < 0 {
			return nil, types.NewConfigurationError("weight for agent %s cannot be negative (got %d)", agent, w)
		}
		weights[agent] = float64(w)
		sum += w
	}
	if len(custom) != len(sorted) {
		for agent := range custom {
			if _, ok := weights[agent]; !ok {
				return nil, types.NewConfigurationError("weight configured for unknown agent %s", agent)
			}
		}
	}
	if sum != 100 {
		return nil, types.NewConfigurationError("weights must sum to 100 (got %d)", sum)
	}
	return weights, nil
}

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/jury/internal/agent"
	"github.com/steveyegge/jury/internal/types"
)

// ParseWeights parses a weights string of the form
// "security=40,quality=30,documentation=30" into integer weights.
// Whether the named agents exist is checked later against the actual
// registry; here only the syntax and the sum are enforced.
func ParseWeights(spec string) (map[types.AgentID]int, error) {
	weights := make(map[types.AgentID]int)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("weight %q is not of the form name=value", part)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("weight %q has an empty agent name", part)
		}
		w, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("weight for %s is not an integer: %w", name, err)
		}
		id := types.AgentID(name)
		if _, dup := weights[id]; dup {
			return nil, fmt.Errorf("duplicate weight for agent %s", name)
		}
		weights[id] = w
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("weights string %q names no agents", spec)
	}
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	return weights, nil
}

// ValidateWeights checks that every weight is non-negative and the
// set sums to 100.
func ValidateWeights(weights map[types.AgentID]int) error {
	sum := 0
	for id, w := range weights {
		if w < 0 {
			return fmt.Errorf("weight for agent %s cannot be negative (got %d)", id, w)
		}
		sum += w
	}
	if sum != 100 {
		return fmt.Errorf("weights must sum to 100 (got %d)", sum)
	}
	return nil
}

// weightsFile is the YAML shape of a weights file.
type weightsFile struct {
	Method  string         `yaml:"method"`
	Weights map[string]int `yaml:"weights"`
}

// LoadWeightsFile reads a YAML weights file:
//
//	method: weighted
//	weights:
//	  security: 40
//	  quality: 30
//	  documentation: 30
//
// A method of equal_weight returns nil weights (the default split).
// An absent method defaults to weighted.
func LoadWeightsFile(path string) (map[types.AgentID]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading weights file: %w", err)
	}
	var file weightsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing weights file %s: %w", path, err)
	}

	method := file.Method
	if method == "" {
		method = string(types.MethodWeighted)
	}
	switch types.CalculationMethod(method) {
	case types.MethodEqualWeight:
		return nil, nil
	case types.MethodWeighted:
	default:
		return nil, fmt.Errorf("weights file %s: unknown method %q", path, file.Method)
	}

	if len(file.Weights) == 0 {
		return nil, fmt.Errorf("weights file %s: weighted method requires a weights map", path)
	}
	weights := make(map[types.AgentID]int, len(file.Weights))
	for name, w := range file.Weights {
		weights[types.AgentID(name)] = w
	}
	if err := ValidateWeights(weights); err != nil {
		return nil, fmt.Errorf("weights file %s: %w", path, err)
	}
	return weights, nil
}

// policyFile is the YAML shape of a policy file. Pointers distinguish
// an absent key from an explicit zero.
type policyFile struct {
	SecretPenalty           *float64 `yaml:"secret_penalty"`
	SecretPenaltyCap        *float64 `yaml:"secret_penalty_cap"`
	DocsSecurityGapPenalty  *float64 `yaml:"docs_security_gap_penalty"`
	DocsMissingTestsPenalty *float64 `yaml:"docs_missing_tests_penalty"`
}

// LoadPolicyFile reads a YAML policy file and overlays it on the
// default penalties. Keys left out keep their defaults.
func LoadPolicyFile(path string) (*agent.PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}

	cfg := agent.DefaultPolicyConfig()
	if file.SecretPenalty != nil {
		cfg.SecretPenalty = *file.SecretPenalty
	}
	if file.SecretPenaltyCap != nil {
		cfg.SecretPenaltyCap = *file.SecretPenaltyCap
	}
	if file.DocsSecurityGapPenalty != nil {
		cfg.DocsSecurityGapPenalty = *file.DocsSecurityGapPenalty
	}
	if file.DocsMissingTestsPenalty != nil {
		cfg.DocsMissingTestsPenalty = *file.DocsMissingTestsPenalty
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return cfg, nil
}

package types

import "fmt"

// AnalysisError reports that one agent's analysis capability failed
// against the given snapshot (unreadable files, empty file set). The
// manager recovers from it locally by substituting a zero-score,
// zero-confidence result; it never aborts a run.
type AnalysisError struct {
	Agent AgentID
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed for agent %s: %v", e.Agent, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// NewAnalysisError wraps err as an analysis failure for the given agent.
func NewAnalysisError(agent AgentID, err error) *AnalysisError {
	return &AnalysisError{Agent: agent, Err: err}
}

// ConfigurationError reports an invalid weighting or policy
// configuration (wrong agent set, weights not summing to 100). It is
// fatal to the run and surfaces before any scoring begins.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// NewConfigurationError builds a configuration error from a format string.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// AdjustmentConflictError reports a message that references an agent not
// present in the run. The adjustment is skipped and logged; it must never
// crash the run.
type AdjustmentConflictError struct {
	Source AgentID
	Target AgentID
	Reason string
}

func (e *AdjustmentConflictError) Error() string {
	return fmt.Sprintf("adjustment conflict (%s -> %s): %s", e.Source, e.Target, e.Reason)
}

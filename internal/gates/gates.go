// Package gates evaluates CI requirements against a finalized run.
// Every configured check runs even after one fails, so a pipeline gets
// the complete list of reasons in a single pass.
package gates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/jury/internal/types"
)

// CheckType identifies the requirement a result belongs to.
type CheckType string

const (
	CheckGrade    CheckType = "grade"
	CheckScore    CheckType = "score"
	CheckFindings CheckType = "findings"
)

// Requirements is the gate configuration. Zero values disable a check:
// an empty MinGrade, a negative MinScore, and a nil MaxFindings each
// switch their check off.
type Requirements struct {
	// MinGrade is the worst acceptable grade.
	MinGrade types.Grade

	// MinScore is the lowest acceptable overall score. Negative
	// disables the check; zero still requires a non-negative score.
	MinScore float64

	// MaxFindings caps the per-agent finding count by kind.
	MaxFindings map[string]int
}

// DefaultRequirements disables every check; callers opt in per flag.
func DefaultRequirements() Requirements {
	return Requirements{MinScore: -1}
}

// Result is the outcome of one requirement check.
type Result struct {
	Check  CheckType `json:"check"`
	Passed bool      `json:"passed"`
	Reason string    `json:"reason,omitempty"`
}

// gradeRank orders grades from worst to best.
var gradeRank = map[types.Grade]int{
	types.GradePoor:            0,
	types.GradeNeedsAttention:  1,
	types.GradeFair:            2,
	types.GradeGood:            3,
	types.GradeExcellent:       4,
}

// Evaluate applies the requirements to a finalized run. The second
// return value is true only when every configured check passed.
func Evaluate(run *types.EvaluationRun, reqs Requirements) ([]Result, bool, error) {
	if run == nil {
		return nil, false, fmt.Errorf("run is required")
	}
	if !run.Finalized() {
		return nil, false, fmt.Errorf("run %s is not finalized", run.ID)
	}
	if reqs.MinGrade != "" {
		if _, ok := gradeRank[reqs.MinGrade]; !ok {
			return nil, false, fmt.Errorf("unknown minimum grade %q", reqs.MinGrade)
		}
	}

	var results []Result
	allPassed := true

	if reqs.MinGrade != "" {
		result := Result{Check: CheckGrade, Passed: true}
		if gradeRank[run.Composite.Grade] < gradeRank[reqs.MinGrade] {
			result.Passed = false
			result.Reason = fmt.Sprintf("grade %s is below required %s", run.Composite.Grade, reqs.MinGrade)
		}
		results = append(results, result)
	}

	if reqs.MinScore >= 0 {
		result := Result{Check: CheckScore, Passed: true}
		if run.Composite.OverallScore < reqs.MinScore {
			result.Passed = false
			result.Reason = fmt.Sprintf("overall score %.2f is below required %.2f",
				run.Composite.OverallScore, reqs.MinScore)
		}
		results = append(results, result)
	}

	for _, kind := range sortedKinds(reqs.MaxFindings) {
		max := reqs.MaxFindings[kind]
		result := Result{Check: CheckFindings, Passed: true}

		var violations []string
		for _, agent := range sortedResults(run.Results) {
			if count := agent.FindingCount(kind); count > max {
				violations = append(violations, fmt.Sprintf("%s reported %d %s findings (max %d)",
					agent.AgentName, count, kind, max))
			}
		}
		if len(violations) > 0 {
			result.Passed = false
			result.Reason = strings.Join(violations, "; ")
		}
		results = append(results, result)
	}

	for _, r := range results {
		if !r.Passed {
			allPassed = false
		}
	}
	return results, allPassed, nil
}

// Reasons collects the failure reasons across results, in order.
func Reasons(results []Result) []string {
	var reasons []string
	for _, r := range results {
		if !r.Passed && r.Reason != "" {
			reasons = append(reasons, r.Reason)
		}
	}
	return reasons
}

func sortedKinds(maxFindings map[string]int) []string {
	kinds := make([]string, 0, len(maxFindings))
	for kind := range maxFindings {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func sortedResults(results []*types.AgentResult) []*types.AgentResult {
	sorted := make([]*types.AgentResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AgentName < sorted[j].AgentName })
	return sorted
}

package scoring

import "github.com/steveyegge/jury/internal/types"

// Grade thresholds are inclusive lower bounds: a score on a boundary
// takes the higher tier.
const (
	ThresholdExcellent      = 80.0
	ThresholdGood           = 65.0
	ThresholdFair           = 50.0
	ThresholdNeedsAttention = 30.0
)

// GradeFor maps an overall score to its categorical grade.
func GradeFor(score float64) types.Grade {
	switch {
	case score >= ThresholdExcellent:
		return types.GradeExcellent
	case score >= ThresholdGood:
		return types.GradeGood
	case score >= ThresholdFair:
		return types.GradeFair
	case score >= ThresholdNeedsAttention:
		return types.GradeNeedsAttention
	default:
		return types.GradePoor
	}
}

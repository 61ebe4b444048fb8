package service

import (
	"math"

	"github.com/noah-isme/drivematch-api/internal/models"
)

// trendThreshold is the success-rate delta, in points, that must be exceeded to count as a move.
const trendThreshold = 5

// SuccessRate returns round(100 * passed / total), or 0 when total is not positive.
func SuccessRate(passed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(passed) / float64(total)))
}

// CompareTrend classifies current against previous. Missing or zero previous rates are stable.
func CompareTrend(current int, previous *int) models.TrendDirection {
	if previous == nil || *previous == 0 {
		return models.TrendStable
	}
	diff := current - *previous
	switch {
	case diff > trendThreshold:
		return models.TrendUp
	case diff < -trendThreshold:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

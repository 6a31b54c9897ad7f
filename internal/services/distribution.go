package services

import (
	"eduassist/internal/models"
)

// distributionBand is one rung of the difficulty quota ladder. Bands are
// evaluated in order; the first whose matches func returns true wins.
type distributionBand struct {
	name    string
	matches func(p *models.PerformanceProfile) bool
	low     float64
	medium  float64
	high    float64
}

// distributionLadder maps a performance profile to tier percentages. The
// medium share is the remainder tier and is listed only for documentation;
// PlanDistribution derives it from the total.
var distributionLadder = []distributionBand{
	{
		name:    "struggling",
		matches: func(p *models.PerformanceProfile) bool { return p.Mastery < 40 || p.Consistency < 0.6 },
		low:     0.70, medium: 0.25, high: 0.05,
	},
	{
		name:    "developing",
		matches: func(p *models.PerformanceProfile) bool { return p.Mastery < 70 },
		low:     0.40, medium: 0.50, high: 0.10,
	},
	{
		name:    "excelling",
		matches: func(p *models.PerformanceProfile) bool { return p.Mastery >= 85 && p.Consistency > 0.8 },
		low:     0.10, medium: 0.40, high: 0.50,
	},
	{
		name:    "proficient",
		matches: func(p *models.PerformanceProfile) bool { return true },
		low:     0.25, medium: 0.60, high: 0.15,
	},
}

// PlanDistribution maps a performance profile and a requested total into a
// per-tier quota summing exactly to total. Low and high use ceiling rounding,
// the high tier is floored at 1 whenever total >= 1, and medium absorbs the
// remainder. Pure function: identical inputs always yield identical quotas.
func PlanDistribution(profile *models.PerformanceProfile, total int) models.DifficultyDistribution {
	if total <= 0 {
		return models.DifficultyDistribution{}
	}

	var band distributionBand
	for _, b := range distributionLadder {
		if b.matches(profile) {
			band = b
			break
		}
	}

	high := ceilShare(total, band.high)
	if high < 1 {
		high = 1
	}
	if high > total {
		high = total
	}

	low := ceilShare(total, band.low)
	if low > total-high {
		low = total - high
	}

	return models.DifficultyDistribution{
		Low:    low,
		Medium: total - low - high,
		High:   high,
	}
}

// ceilShare computes ceil(total * share) without floating point edge drift
// for the shares used in the ladder (multiples of 0.05).
func ceilShare(total int, share float64) int {
	// Work in twentieths: share*20 is integral for every ladder entry.
	num := total * int(share*20+0.5)
	return (num + 19) / 20
}

package mirror

import "math"

// RiskLevel is a coarse label derived from the focus score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Status is the observer-facing attention label.
type Status string

const (
	StatusFocused    Status = "focused"
	StatusDistracted Status = "distracted"
)

// DeriveRisk maps a score to a risk level: >= 70 low, >= 50 medium, otherwise high.
func DeriveRisk(score float64) RiskLevel {
	switch {
	case score >= 70:
		return RiskLow
	case score >= 50:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// DeriveStatus maps a score to focused (>= 70) or distracted.
func DeriveStatus(score float64) Status {
	if score >= 70 {
		return StatusFocused
	}
	return StatusDistracted
}

// NormalizeScore clamps to [0,100] and rounds to two decimals.
func NormalizeScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(0, math.Min(100, v))
	return math.Round(v*100) / 100
}

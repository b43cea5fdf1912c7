package service

import "github.com/stemsi/exstem-cbt/internal/model"

var riskWeights = map[model.ActivityType]float64{
	model.ActivityTabBlur:          1,
	model.ActivityDevtools:         2,
	model.ActivityScreenshot:       1,
	model.ActivityRightClick:       0.3,
	model.ActivityCopy:             0.5,
	model.ActivityPaste:            0.5,
	model.ActivitySessionViolation: 3,
	model.ActivityExitFullscreen:   0.5,
}

const (
	riskHighThreshold   = 5.0
	riskMediumThreshold = 3.0
)

// RiskScore is the weighted sum of activity counts. Unknown types weigh nothing.
func RiskScore(counts model.ActivityCounts) float64 {
	var sum float64
	for typ, n := range counts {
		if n <= 0 {
			continue
		}
		sum += riskWeights[typ] * float64(n)
	}
	return sum
}

// ClassifyRisk maps a weighted score onto a level.
func ClassifyRisk(score float64) model.RiskLevel {
	switch {
	case score >= riskHighThreshold:
		return model.RiskHigh
	case score >= riskMediumThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exstem-cbt/internal/model"
)

func TestRiskScoreAndLevel(t *testing.T) {
	tests := []struct {
		name   string
		counts model.ActivityCounts
		want   float64
		level  model.RiskLevel
	}{
		{"no activity", model.ActivityCounts{}, 0, model.RiskLow},
		{"a few right clicks", model.ActivityCounts{model.ActivityRightClick: 5}, 1.5, model.RiskLow},
		{"medium boundary", model.ActivityCounts{model.ActivityTabBlur: 1, model.ActivityDevtools: 1}, 3, model.RiskMedium},
		{"session violations escalate", model.ActivityCounts{model.ActivitySessionViolation: 2}, 6, model.RiskHigh},
		{"mixed high boundary", model.ActivityCounts{
			model.ActivityCopy: 2, model.ActivityPaste: 2, model.ActivityExitFullscreen: 2,
			model.ActivityScreenshot: 2,
		}, 5, model.RiskHigh},
		{"unknown types weigh nothing", model.ActivityCounts{"MOUSE_LEFT_WINDOW": 100}, 0, model.RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RiskScore(tt.counts)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.level, ClassifyRisk(got))
		})
	}
}

func TestRiskMonotonic(t *testing.T) {
	base := model.ActivityCounts{
		model.ActivityTabBlur:    2,
		model.ActivityRightClick: 1,
		model.ActivityCopy:       1,
	}
	types := []model.ActivityType{
		model.ActivityTabBlur, model.ActivityDevtools, model.ActivityScreenshot, model.ActivityRightClick,
		model.ActivityCopy, model.ActivityPaste, model.ActivitySessionViolation, model.ActivityExitFullscreen,
	}

	for _, typ := range types {
		before := RiskScore(base)
		bumped := model.ActivityCounts{}
		for k, v := range base {
			bumped[k] = v
		}
		bumped[typ]++
		assert.GreaterOrEqual(t, RiskScore(bumped), before, string(typ))
	}
}

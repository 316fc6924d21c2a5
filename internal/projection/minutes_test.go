package projection_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hoopsight/projection-engine/internal/models"
	"github.com/hoopsight/projection-engine/internal/projection"
)

func logsWithMinutes(start time.Time, minutes ...float64) []models.GameLog {
	logs := make([]models.GameLog, len(minutes))
	for i, m := range minutes {
		logs[i] = models.GameLog{
			GameID:   uint(100 + i),
			PlayerID: 1,
			GameDate: start.AddDate(0, 0, -2*i),
			Minutes:  m,
		}
	}
	return logs
}

func TestMinutesProjector_Eligible(t *testing.T) {
	mp := projection.NewMinutesProjector(projection.DefaultModelConfig())
	asOf := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		logs     []models.GameLog
		eligible bool
	}{
		{
			name:     "too few games",
			logs:     logsWithMinutes(asOf, 30, 30, 30, 30),
			eligible: false,
		},
		{
			name:     "steady rotation minutes",
			logs:     logsWithMinutes(asOf, 25, 22, 28, 24, 26),
			eligible: true,
		},
		{
			name:     "garbage time only",
			logs:     logsWithMinutes(asOf, 5, 6, 4, 5, 6),
			eligible: false,
		},
		{
			name:     "recent role change",
			logs:     logsWithMinutes(asOf, 14, 12, 5, 4, 5, 6, 5),
			eligible: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.eligible, mp.Eligible(tt.logs, asOf))
		})
	}
}

func TestMinutesProjector_Eligible_RoleChangeOutsideWindow(t *testing.T) {
	mp := projection.NewMinutesProjector(projection.DefaultModelConfig())
	asOf := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	// Two bigger games exist, but they are over two weeks old.
	logs := logsWithMinutes(asOf.AddDate(0, 0, -20), 14, 12, 5, 4, 5, 6, 5)
	assert.False(t, mp.Eligible(logs, asOf))
}

func TestMinutesProjector_Profile_BlendsAndClamps(t *testing.T) {
	mp := projection.NewMinutesProjector(projection.DefaultModelConfig())
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	// Hot last five (36 a game) over a 28-minute season shape. The blend
	// wants 33.6 but the season band caps the move at +3.
	logs := logsWithMinutes(start, 36, 36, 36, 36, 36, 20, 20, 20, 20, 20)
	profile := mp.Profile(logs)

	assert.InDelta(t, 36.0, profile.Last5Avg, 1e-9)
	assert.InDelta(t, 28.0, profile.SeasonAvg, 1e-9)
	assert.InDelta(t, 31.0, profile.Blended, 1e-9)
	assert.Equal(t, 5, profile.Last5Samples)
}

func TestMinutesProjector_Profile_NeverExceedsMax(t *testing.T) {
	mp := projection.NewMinutesProjector(projection.DefaultModelConfig())
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	logs := logsWithMinutes(start, 44, 45, 43, 44, 46, 44, 45)
	profile := mp.Profile(logs)
	assert.LessOrEqual(t, profile.Blended, 38.0)
}

func TestMinutesProjector_Rates(t *testing.T) {
	mp := projection.NewMinutesProjector(projection.DefaultModelConfig())
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	total := 7.0
	logs := []models.GameLog{
		{
			GameDate:      start,
			Minutes:       30,
			Points:        24,
			TotalRebounds: &total,
			Assists:       6,
			Threes:        3,
			UsagePct:      24,
			ReboundPct:    11,
			AssistPct:     18,
		},
		{
			GameDate:          start.AddDate(0, 0, -2),
			Minutes:           30,
			Points:            18,
			OffensiveRebounds: 2,
			DefensiveRebounds: 5,
			Assists:           4,
			Threes:            1,
			UsagePct:          20,
			ReboundPct:        9,
			AssistPct:         14,
		},
	}

	rates := mp.Rates(logs)
	assert.Equal(t, 2, rates.Games)
	assert.InDelta(t, 42.0/60.0, rates.PointsPerMinute, 1e-9)
	// One log has the total column, the other only the split.
	assert.InDelta(t, 14.0/60.0, rates.ReboundsPerMinute, 1e-9)
	assert.InDelta(t, 10.0/60.0, rates.AssistsPerMinute, 1e-9)
	assert.InDelta(t, 4.0/60.0, rates.ThreesPerMinute, 1e-9)
	assert.InDelta(t, 22.0, rates.UsagePct, 1e-9)
	assert.InDelta(t, 10.0, rates.ReboundPct, 1e-9)
	assert.InDelta(t, 16.0, rates.AssistPct, 1e-9)
}

func TestMinutesProjector_Rates_WindowBound(t *testing.T) {
	mp := projection.NewMinutesProjector(projection.DefaultModelConfig())
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	// Twelve logs; only the most recent eight should count.
	logs := logsWithMinutes(start, 30, 30, 30, 30, 30, 30, 30, 30, 10, 10, 10, 10)
	rates := mp.Rates(logs)
	assert.Equal(t, 8, rates.Games)
	assert.InDelta(t, 30.0, rates.Minutes, 1e-9)
}

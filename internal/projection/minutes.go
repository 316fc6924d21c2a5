package projection

import (
	"time"

	"github.com/hoopsight/projection-engine/internal/models"
)

// MinutesProfile is the per-run blended minutes estimate for one player.
type MinutesProfile struct {
	Last5Avg     float64 `json:"last5_avg"`
	SeasonAvg    float64 `json:"season_like_avg"`
	Blended      float64 `json:"blended_minutes"`
	Last5Samples int     `json:"last5_samples"`
}

// RateBaseline carries a player's per-minute production rates and average
// share percentages over a bounded recent window.
type RateBaseline struct {
	Games             int
	Minutes           float64
	PointsPerMinute   float64
	ReboundsPerMinute float64
	AssistsPerMinute  float64
	ThreesPerMinute   float64
	UsagePct          float64
	ReboundPct        float64
	AssistPct         float64
}

// MinutesProjector estimates expected minutes from a blended recency window.
type MinutesProjector struct {
	cfg ModelConfig
}

func NewMinutesProjector(cfg ModelConfig) *MinutesProjector {
	return &MinutesProjector{cfg: cfg}
}

// Eligible reports whether a player has enough of a track record to project.
// Logs must be ordered most recent first. The second path (a couple of
// 10+ minute games inside two weeks) keeps recent role changes in scope even
// when the longer window average is low.
func (mp *MinutesProjector) Eligible(logs []models.GameLog, asOf time.Time) bool {
	if len(logs) < mp.cfg.MinGameLogs {
		return false
	}

	window := logs
	if len(window) > mp.cfg.RecentWindowGames {
		window = window[:mp.cfg.RecentWindowGames]
	}
	if meanMinutes(window) >= mp.cfg.RecentWindowMinMinutes {
		return true
	}

	cutoff := asOf.AddDate(0, 0, -mp.cfg.RoleChangeDays)
	recent := 0
	for _, log := range logs {
		if log.GameDate.Before(cutoff) {
			continue
		}
		if log.Minutes >= mp.cfg.RoleChangeMinMinutes {
			recent++
		}
	}
	return recent >= mp.cfg.RoleChangeMinGames
}

// Profile computes the blended minutes estimate. Logs must be ordered most
// recent first.
func (mp *MinutesProjector) Profile(logs []models.GameLog) MinutesProfile {
	if len(logs) == 0 {
		return MinutesProfile{}
	}

	last5 := logs
	if len(last5) > 5 {
		last5 = last5[:5]
	}
	season := logs
	if len(season) > mp.cfg.SeasonWindowGames {
		season = season[:mp.cfg.SeasonWindowGames]
	}

	last5Avg := meanMinutes(last5)
	seasonAvg := meanMinutes(season)
	weight := recencyWeight(len(last5))

	blended := last5Avg*weight + seasonAvg*(1-weight)
	// A single outlier game should not swing the estimate past the season band.
	blended = clamp(blended, seasonAvg-mp.cfg.BlendClampBand, seasonAvg+mp.cfg.BlendClampBand)
	blended = clamp(blended, 0, mp.cfg.MaxMinutes)

	return MinutesProfile{
		Last5Avg:     last5Avg,
		SeasonAvg:    seasonAvg,
		Blended:      blended,
		Last5Samples: len(last5),
	}
}

// Rates computes per-minute production baselines over the rate window.
// Logs must be ordered most recent first.
func (mp *MinutesProjector) Rates(logs []models.GameLog) RateBaseline {
	window := logs
	if len(window) > mp.cfg.RateWindowGames {
		window = window[:mp.cfg.RateWindowGames]
	}
	if len(window) == 0 {
		return RateBaseline{}
	}

	var totalMinutes, points, rebounds, assists, threes float64
	var usage, reboundPct, assistPct float64
	for _, log := range window {
		totalMinutes += log.Minutes
		points += log.Points
		rebounds += log.Rebounds()
		assists += log.Assists
		threes += log.Threes
		usage += log.UsagePct
		reboundPct += log.ReboundPct
		assistPct += log.AssistPct
	}

	n := float64(len(window))
	baseline := RateBaseline{
		Games:      len(window),
		Minutes:    totalMinutes / n,
		UsagePct:   usage / n,
		ReboundPct: reboundPct / n,
		AssistPct:  assistPct / n,
	}
	if totalMinutes > 0 {
		baseline.PointsPerMinute = points / totalMinutes
		baseline.ReboundsPerMinute = rebounds / totalMinutes
		baseline.AssistsPerMinute = assists / totalMinutes
		baseline.ThreesPerMinute = threes / totalMinutes
	}
	return baseline
}

// recencyWeight increases with last-5 sample confidence: more short-window
// samples, more trust in the short window.
func recencyWeight(samples int) float64 {
	switch {
	case samples >= 4:
		return 0.70
	case samples == 3:
		return 0.60
	case samples == 2:
		return 0.45
	case samples == 1:
		return 0.25
	default:
		return 0.0
	}
}

func meanMinutes(logs []models.GameLog) float64 {
	if len(logs) == 0 {
		return 0
	}
	total := 0.0
	for _, log := range logs {
		total += log.Minutes
	}
	return total / float64(len(logs))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

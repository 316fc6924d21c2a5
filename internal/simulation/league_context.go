package simulation

import (
	"github.com/hoopsight/projection-engine/internal/models"
)

// League-wide fallbacks for seasons with sparse advanced-stat coverage.
const (
	DefaultPace   = 98.5
	DefaultOffRtg = 113.0
	DefaultDefRtg = 113.0
)

// LeagueContext holds season-level league averages used as the efficiency
// baseline for game simulation.
type LeagueContext struct {
	PaceAvg   float64 `json:"pace_avg"`
	OffRtgAvg float64 `json:"off_rtg_avg"`
	DefRtgAvg float64 `json:"def_rtg_avg"`
	PPPAvg    float64 `json:"ppp_avg"`
}

// NewLeagueContext averages the season's team advanced stats, ignoring
// non-positive values and falling back to league defaults when a column has
// no usable rows. League average PPP is defined as league average ORtg / 100.
func NewLeagueContext(stats []models.TeamAdvancedStat) LeagueContext {
	var paces, offs, defs []float64
	for _, s := range stats {
		if s.Pace > 0 {
			paces = append(paces, s.Pace)
		}
		if s.OffRtg > 0 {
			offs = append(offs, s.OffRtg)
		}
		if s.DefRtg > 0 {
			defs = append(defs, s.DefRtg)
		}
	}

	ctx := LeagueContext{
		PaceAvg:   avgOrDefault(paces, DefaultPace),
		OffRtgAvg: avgOrDefault(offs, DefaultOffRtg),
		DefRtgAvg: avgOrDefault(defs, DefaultDefRtg),
	}
	ctx.PPPAvg = ctx.OffRtgAvg / 100.0
	return ctx
}

func avgOrDefault(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

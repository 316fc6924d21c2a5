package projection

import (
	"fmt"
	"hash/crc32"
	"math"
	"math/rand"
	"time"
)

// StatLine is the final per-player projection for a date.
type StatLine struct {
	Points   float64 `json:"points"`
	Rebounds float64 `json:"rebounds"`
	Assists  float64 `json:"assists"`
	Threes   float64 `json:"threes"`
}

// StatProjector combines per-minute rates, matchup multipliers, role
// multipliers and deterministic micro-variance into final projections.
type StatProjector struct {
	cfg ModelConfig
}

func NewStatProjector(cfg ModelConfig) *StatProjector {
	return &StatProjector{cfg: cfg}
}

// Project computes the final stat line. The usage/rebound/assist percentages
// are the injury-adjusted values. Returns an error when a computed stat is
// not finite, so the caller can skip the player instead of persisting junk.
func (sp *StatProjector) Project(
	date time.Time,
	playerID uint,
	minutes float64,
	rates RateBaseline,
	usagePct, reboundPct, assistPct float64,
	matchup MatchupMultipliers,
) (StatLine, error) {
	roleUsage := roleMultiplier(usagePct, sp.cfg.UsageAnchor, sp.cfg.UsageSwing)
	roleRebound := roleMultiplier(reboundPct, sp.cfg.ReboundPctAnchor, sp.cfg.ReboundSwing)
	roleAssist := roleMultiplier(assistPct, sp.cfg.AssistPctAnchor, sp.cfg.AssistSwing)

	vary := sp.varianceSource(date, playerID)

	line := StatLine{
		Points:   rates.PointsPerMinute * minutes * matchup.Points * roleUsage * vary(),
		Rebounds: rates.ReboundsPerMinute * minutes * matchup.Rebounds * roleRebound * vary(),
		Assists:  rates.AssistsPerMinute * minutes * matchup.Assists * roleAssist * vary(),
		Threes:   rates.ThreesPerMinute * minutes * roleUsage * vary(),
	}

	// Sanity ceiling: nobody scores more than this per minute over a game.
	line.Points = math.Min(line.Points, minutes*sp.cfg.PointsPerMinuteCap)

	line.Points = math.Max(line.Points, 0)
	line.Rebounds = math.Max(line.Rebounds, 0)
	line.Assists = math.Max(line.Assists, 0)
	line.Threes = math.Max(line.Threes, 0)

	for _, v := range []float64{line.Points, line.Rebounds, line.Assists, line.Threes} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return StatLine{}, fmt.Errorf("non-finite projection for player %d", playerID)
		}
	}
	return line, nil
}

// roleMultiplier converts a share percentage into a multiplier centered on a
// league-typical anchor, contributing at most the configured swing.
func roleMultiplier(value, anchor, swing float64) float64 {
	if anchor <= 0 {
		return 1.0
	}
	deviation := clamp((value-anchor)/anchor, -1, 1)
	return 1.0 + deviation*swing
}

// varianceSource returns a generator of small deterministic perturbations
// seeded from (date, model version, player). Re-runs of the same date with
// the same inputs reproduce bit-identical projections.
func (sp *StatProjector) varianceSource(date time.Time, playerID uint) func() float64 {
	key := fmt.Sprintf("%s-%s-%d", date.Format("2006-01-02"), sp.cfg.ModelVersion, playerID)
	seed := int64(crc32.ChecksumIEEE([]byte(key)))
	rng := rand.New(rand.NewSource(seed))
	return func() float64 {
		return 1.0 + (2*rng.Float64()-1)*sp.cfg.MicroVariance
	}
}

package projection

import (
	"github.com/hoopsight/projection-engine/internal/models"
)

// MatchupMultipliers are the opponent defense-vs-position adjustments for a
// single player's stat projection.
type MatchupMultipliers struct {
	Points   float64 `json:"points"`
	Rebounds float64 `json:"rebounds"`
	Assists  float64 `json:"assists"`
}

// MatchupAdjuster converts opponent defense-vs-position ranks (1 = stingiest,
// 30 = most generous) into multiplicative stat adjustments.
type MatchupAdjuster struct {
	cfg ModelConfig
}

func NewMatchupAdjuster(cfg ModelConfig) *MatchupAdjuster {
	return &MatchupAdjuster{cfg: cfg}
}

// BucketsFor maps a listed position to the defense-vs-position buckets it is
// scored against. Unknown positions fall back to the full set.
func (ma *MatchupAdjuster) BucketsFor(pos models.Position) []models.PositionBucket {
	bucket := pos.Bucket()
	if bucket == models.BucketOther {
		return []models.PositionBucket{models.BucketGuard, models.BucketForward, models.BucketCenter}
	}
	return []models.PositionBucket{bucket}
}

// Multipliers averages the opponent's stat ranks across the player's buckets
// and converts them to multipliers. Missing ranks fall back to a neutral 1.0.
func (ma *MatchupAdjuster) Multipliers(pos models.Position, ranks []models.DefenseRank) MatchupMultipliers {
	buckets := ma.BucketsFor(pos)

	byStat := make(map[models.StatKind][]float64)
	for _, rank := range ranks {
		for _, bucket := range buckets {
			if rank.Bucket == bucket {
				byStat[rank.Stat] = append(byStat[rank.Stat], float64(rank.Rank))
			}
		}
	}

	multipliers := MatchupMultipliers{Points: 1.0, Rebounds: 1.0, Assists: 1.0}
	if values, ok := byStat[models.StatPoints]; ok {
		raw := ma.rankToMultiplier(mean(values))
		// Matchup effects on scoring are muted relative to rebounds/assists.
		multipliers.Points = 1.0 + (raw-1.0)*ma.cfg.PointsMatchupDamping
	}
	if values, ok := byStat[models.StatRebounds]; ok {
		multipliers.Rebounds = ma.rankToMultiplier(mean(values))
	}
	if values, ok := byStat[models.StatAssists]; ok {
		multipliers.Assists = ma.rankToMultiplier(mean(values))
	}
	return multipliers
}

// rankToMultiplier linearly interpolates rank 1 -> min multiplier and
// rank 30 -> max multiplier.
func (ma *MatchupAdjuster) rankToMultiplier(rank float64) float64 {
	rank = clamp(rank, 1, 30)
	span := ma.cfg.RankMaxMultiplier - ma.cfg.RankMinMultiplier
	return ma.cfg.RankMinMultiplier + (rank-1)/29.0*span
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

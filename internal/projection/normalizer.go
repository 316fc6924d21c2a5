package projection

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// RotationCandidate is one active player entering team minutes normalization.
type RotationCandidate struct {
	PlayerID        uint
	BaselineMinutes float64 // blended pre-injury estimate
	MinutesDelta    float64 // raw delta from injury redistribution
	Last5Avg        float64
	SeasonAvg       float64
}

// TeamMinutesNormalizer forces a team's projected minutes to sum to the
// fixed team budget while respecting star floors and bench soft caps.
type TeamMinutesNormalizer struct {
	cfg    ModelConfig
	logger *logrus.Logger
}

func NewTeamMinutesNormalizer(cfg ModelConfig, logger *logrus.Logger) *TeamMinutesNormalizer {
	return &TeamMinutesNormalizer{cfg: cfg, logger: logger}
}

// Normalize returns final minutes per player id summing to the team budget
// (when the roster's caps make that feasible).
func (tn *TeamMinutesNormalizer) Normalize(candidates []RotationCandidate) map[uint]float64 {
	result := make(map[uint]float64, len(candidates))
	if len(candidates) == 0 {
		return result
	}

	budget := tn.cfg.TeamMinutesBudget
	maxMin := tn.cfg.MaxMinutes
	n := len(candidates)

	// Step 1: scale baselines to the budget, clamp, re-normalize once.
	scaled := make([]float64, n)
	baseSum := 0.0
	for _, c := range candidates {
		baseSum += math.Max(c.BaselineMinutes, 0)
	}
	if baseSum <= 0 {
		even := math.Min(maxMin, budget/float64(n))
		for _, c := range candidates {
			result[c.PlayerID] = even
		}
		return result
	}
	scale := budget / baseSum
	scaledSum := 0.0
	for i, c := range candidates {
		scaled[i] = clamp(math.Max(c.BaselineMinutes, 0)*scale, 0, maxMin)
		scaledSum += scaled[i]
	}
	if scaledSum > 0 {
		rescale := budget / scaledSum
		for i := range scaled {
			scaled[i] = clamp(scaled[i]*rescale, 0, maxMin)
		}
	}

	// Apply raw injury deltas on top of the scaled baselines. The per-player
	// boost cap keeps a single absence from spiking one teammate to the
	// minutes ceiling; the excess flows to others in the water-fill below.
	minutes := make([]float64, n)
	caps := make([]float64, n)
	for i, c := range candidates {
		caps[i] = math.Min(maxMin, scaled[i]+tn.cfg.BoostCap)
		minutes[i] = clamp(scaled[i]+c.MinutesDelta, 0, caps[i])
	}

	// Step 2: rotation eligibility. Keep the top of the rotation plus anyone
	// with a real recent role; prune garbage-time-only players.
	eligible := tn.rotationEligible(candidates, minutes)
	for i := range minutes {
		if !eligible[i] {
			minutes[i] = 0
			caps[i] = 0
		}
	}

	// Step 3: bench taper by minutes rank to avoid 14-man equalization.
	tn.applyTaper(minutes)

	// Step 4: minute floors for the top of the rotation.
	floors := tn.floors(candidates, eligible)

	// Step 5: bounded water-filling toward the exact budget.
	const tolerance = 0.05
	for pass := 0; pass < tn.cfg.NormalizePasses; pass++ {
		total := 0.0
		for i := range minutes {
			minutes[i] = clamp(minutes[i], floors[i], math.Max(caps[i], floors[i]))
			total += minutes[i]
		}
		diff := budget - total
		if math.Abs(diff) <= tolerance {
			break
		}

		var adjustable []int
		weightSum := 0.0
		for i := range minutes {
			if !eligible[i] {
				continue
			}
			hi := math.Max(caps[i], floors[i])
			if (diff > 0 && minutes[i] < hi-1e-9) || (diff < 0 && minutes[i] > floors[i]+1e-9) {
				adjustable = append(adjustable, i)
				weightSum += minutes[i]
			}
		}
		if len(adjustable) == 0 {
			break
		}
		for _, i := range adjustable {
			share := 1.0 / float64(len(adjustable))
			if weightSum > 0 {
				share = minutes[i] / weightSum
			}
			minutes[i] = clamp(minutes[i]+diff*share, 0, maxMin)
		}
	}

	total := 0.0
	for i, c := range candidates {
		minutes[i] = clamp(minutes[i], 0, maxMin)
		result[c.PlayerID] = minutes[i]
		total += minutes[i]
	}
	if math.Abs(total-budget) > 0.5 {
		tn.logger.WithFields(logrus.Fields{
			"component": "minutes_normalizer",
			"total":     total,
			"budget":    budget,
			"players":   n,
		}).Warn("Normalized minutes did not reach team budget")
	}
	return result
}

func (tn *TeamMinutesNormalizer) rotationEligible(candidates []RotationCandidate, minutes []float64) []bool {
	eligible := make([]bool, len(candidates))

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return minutes[order[a]] > minutes[order[b]]
	})
	for rank, i := range order {
		if rank < tn.cfg.RotationKeepTop {
			eligible[i] = true
		}
	}

	for i, c := range candidates {
		if c.Last5Avg >= tn.cfg.RotationLast5Floor ||
			c.SeasonAvg >= tn.cfg.RotationSeasonFloor ||
			minutes[i] >= tn.cfg.RotationPreFloor {
			eligible[i] = true
		}
	}
	return eligible
}

func (tn *TeamMinutesNormalizer) applyTaper(minutes []float64) {
	order := make([]int, len(minutes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return minutes[order[a]] > minutes[order[b]]
	})
	for rank, i := range order {
		minutes[i] *= tn.taperMultiplier(rank + 1)
	}
}

func (tn *TeamMinutesNormalizer) taperMultiplier(rank int) float64 {
	for _, band := range tn.cfg.TaperBands {
		if rank <= band.MaxRank {
			return band.Multiplier
		}
	}
	return 1.0
}

// floors computes minute floors: the top of the rotation by blended recency
// gets a floor near their last-5 average, and explicit star bands apply when
// both recency windows sit above star-level minutes.
func (tn *TeamMinutesNormalizer) floors(candidates []RotationCandidate, eligible []bool) []float64 {
	floors := make([]float64, len(candidates))

	order := make([]int, 0, len(candidates))
	for i := range candidates {
		if eligible[i] {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].BaselineMinutes > candidates[order[b]].BaselineMinutes
	})

	for rank, i := range order {
		if rank >= tn.cfg.TopFloorCount {
			break
		}
		c := candidates[i]
		floor := math.Max(tn.cfg.TopFloorMin, c.Last5Avg-tn.cfg.TopFloorLast5Offset)

		// Star bands, highest first.
		for j := len(tn.cfg.StarFloorBands) - 1; j >= 0; j-- {
			band := tn.cfg.StarFloorBands[j]
			if c.Last5Avg >= band && c.SeasonAvg >= band {
				floor = math.Max(floor, band)
				break
			}
		}
		floors[i] = math.Min(floor, tn.cfg.MaxMinutes)
	}
	return floors
}

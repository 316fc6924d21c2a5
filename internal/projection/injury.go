package projection

import (
	"github.com/sirupsen/logrus"

	"github.com/hoopsight/projection-engine/internal/models"
)

// PlayerBaseline bundles everything the team-level steps need to know about
// one rostered player.
type PlayerBaseline struct {
	Player  models.Player
	Status  models.AvailabilityState
	Profile MinutesProfile
	Rates   RateBaseline
}

// Adjustment is the per-player outcome of injury redistribution. Minutes are
// a raw delta consumed by the team minutes normalizer; the percentage deltas
// are final (already capped relative to baseline).
type Adjustment struct {
	MinutesDelta    float64
	UsageDelta      float64
	ReboundPctDelta float64
	AssistPctDelta  float64
}

// TeamGameWindow is a team's recent schedule plus every box score line the
// team produced in it. Games are ordered most recent first.
type TeamGameWindow struct {
	Games []models.Game
	Logs  []models.GameLog
}

// Appeared reports whether the player logged real minutes anywhere in the
// window. Guards against season-long absences polluting the model.
func (w TeamGameWindow) Appeared(playerID uint) bool {
	for _, log := range w.Logs {
		if log.PlayerID == playerID && log.Minutes > 0 {
			return true
		}
	}
	return false
}

// GamesWithout returns the window's game IDs in which the player did not
// appear. The upstream feed writes no row at all for DNPs, so "no log or a
// zero-minute log" is the operational definition of sitting out.
func (w TeamGameWindow) GamesWithout(playerID uint) []uint {
	played := make(map[uint]bool)
	for _, log := range w.Logs {
		if log.PlayerID == playerID && log.Minutes > 0 {
			played[log.GameID] = true
		}
	}
	var absent []uint
	for _, game := range w.Games {
		if !played[game.ID] {
			absent = append(absent, game.ID)
		}
	}
	return absent
}

func (w TeamGameWindow) logsByGame(playerID uint) map[uint]models.GameLog {
	byGame := make(map[uint]models.GameLog)
	for _, log := range w.Logs {
		if log.PlayerID == playerID && log.Minutes > 0 {
			byGame[log.GameID] = log
		}
	}
	return byGame
}

// InjuryRedistributor reallocates minutes/usage/rebound%/assist% from
// unavailable players to teammates, blending a pool heuristic with
// historical on/off deltas.
type InjuryRedistributor struct {
	cfg    ModelConfig
	logger *logrus.Logger
}

func NewInjuryRedistributor(cfg ModelConfig, logger *logrus.Logger) *InjuryRedistributor {
	return &InjuryRedistributor{cfg: cfg, logger: logger}
}

// Redistribute computes per-receiver adjustments for a roster. The roster
// slice holds every player with a usable baseline, including the unavailable
// ones; receivers are the non-Out players. Returns an empty map when there is
// nothing to redistribute.
func (ir *InjuryRedistributor) Redistribute(roster []PlayerBaseline, window TeamGameWindow) map[uint]Adjustment {
	adjustments := make(map[uint]Adjustment)

	var active, out []PlayerBaseline
	for _, pb := range roster {
		if pb.Status == models.StatusOut {
			out = append(out, pb)
		} else {
			active = append(active, pb)
		}
	}
	if len(out) == 0 || len(active) == 0 {
		return adjustments
	}

	for _, missing := range out {
		if !window.Appeared(missing.Player.ID) {
			ir.logger.WithFields(logrus.Fields{
				"component": "injury_redistributor",
				"player_id": missing.Player.ID,
			}).Debug("Skipping redistribution for absence outside recent window")
			continue
		}

		poolDeltas := ir.poolDeltas(missing, active)
		onOffDeltas, weight := ir.onOffDeltas(missing, active, window)

		for _, receiver := range active {
			id := receiver.Player.ID
			pool := poolDeltas[id]
			onOff := onOffDeltas[id]

			adj := adjustments[id]
			// Minutes obey the hard team budget, so only the pool estimate
			// contributes; the normalizer settles the final allocation.
			adj.MinutesDelta += pool.minutes
			adj.UsageDelta += onOff.usage*weight + pool.usage*(1-weight)
			adj.ReboundPctDelta += onOff.rebound*weight + pool.rebound*(1-weight)
			adj.AssistPctDelta += onOff.assist*weight + pool.assist*(1-weight)
			adjustments[id] = adj
		}
	}

	// Percentage deltas are capped relative to baseline; a pile of absences
	// should not turn a role player into a fictional star.
	for id, adj := range adjustments {
		adj.UsageDelta = clamp(adj.UsageDelta, -ir.cfg.UsageDeltaCap, ir.cfg.UsageDeltaCap)
		adj.ReboundPctDelta = clamp(adj.ReboundPctDelta, -ir.cfg.ReboundPctDeltaCap, ir.cfg.ReboundPctDeltaCap)
		adj.AssistPctDelta = clamp(adj.AssistPctDelta, -ir.cfg.AssistPctDeltaCap, ir.cfg.AssistPctDeltaCap)
		adjustments[id] = adj
	}

	return adjustments
}

type statDelta struct {
	minutes float64
	usage   float64
	rebound float64
	assist  float64
}

// poolDeltas distributes the missing player's transferable production.
// The transfer fractions deliberately leave part of the pool "lost": when a
// rotation player sits, the rotation tightens rather than absorbing
// everything.
func (ir *InjuryRedistributor) poolDeltas(missing PlayerBaseline, active []PlayerBaseline) map[uint]statDelta {
	deltas := make(map[uint]statDelta)

	pool := statDelta{
		minutes: missing.Profile.Blended * ir.cfg.MinutesTransferFraction,
		usage:   missing.Rates.UsagePct * ir.cfg.UsageTransferFraction,
		rebound: missing.Rates.ReboundPct * ir.cfg.ReboundTransferFraction,
		assist:  missing.Rates.AssistPct * ir.cfg.AssistTransferFraction,
	}

	bucket := missing.Player.Position.Bucket()
	var sameGroup []PlayerBaseline
	for _, pb := range active {
		if pb.Player.Position.Bucket() == bucket {
			sameGroup = append(sameGroup, pb)
		}
	}

	groupShare := ir.cfg.SamePositionShare
	if len(sameGroup) == 0 {
		groupShare = 0
	}

	distribute := func(receivers []PlayerBaseline, share float64) {
		if share <= 0 || len(receivers) == 0 {
			return
		}
		totalWeight := 0.0
		for _, pb := range receivers {
			totalWeight += receiverWeight(pb)
		}
		if totalWeight <= 0 {
			return
		}
		for _, pb := range receivers {
			fraction := receiverWeight(pb) / totalWeight * share
			delta := deltas[pb.Player.ID]
			delta.minutes += pool.minutes * fraction
			delta.usage += pool.usage * fraction
			delta.rebound += pool.rebound * fraction
			delta.assist += pool.assist * fraction
			deltas[pb.Player.ID] = delta
		}
	}

	distribute(sameGroup, groupShare)
	distribute(active, 1-groupShare)

	return deltas
}

// receiverWeight favors players who already play more and use more
// possessions; they absorb proportionally more of an absence.
func receiverWeight(pb PlayerBaseline) float64 {
	weight := pb.Profile.Blended * (1 + pb.Rates.UsagePct/100)
	if weight < 0 {
		return 0
	}
	return weight
}

// onOffDeltas computes, for each active teammate, how their production moved
// historically in the window's games the missing player sat out, relative to
// their own baseline across the window. The confidence weight grows with the
// number of sampled absences.
func (ir *InjuryRedistributor) onOffDeltas(missing PlayerBaseline, active []PlayerBaseline, window TeamGameWindow) (map[uint]statDelta, float64) {
	deltas := make(map[uint]statDelta)

	absentGames := window.GamesWithout(missing.Player.ID)
	if len(absentGames) > ir.cfg.OnOffLookbackGames {
		absentGames = absentGames[:ir.cfg.OnOffLookbackGames]
	}
	if len(absentGames) == 0 {
		return deltas, 0
	}

	absentSet := make(map[uint]bool, len(absentGames))
	for _, id := range absentGames {
		absentSet[id] = true
	}

	sampled := 0
	for _, teammate := range active {
		byGame := window.logsByGame(teammate.Player.ID)
		if len(byGame) == 0 {
			continue
		}

		var withoutUsage, withoutReb, withoutAst float64
		var baseUsage, baseReb, baseAst float64
		withoutGames, baseGames := 0, 0
		for gameID, log := range byGame {
			baseUsage += log.UsagePct
			baseReb += log.ReboundPct
			baseAst += log.AssistPct
			baseGames++
			if absentSet[gameID] {
				withoutUsage += log.UsagePct
				withoutReb += log.ReboundPct
				withoutAst += log.AssistPct
				withoutGames++
			}
		}
		if withoutGames == 0 || baseGames == 0 {
			continue
		}
		if withoutGames > sampled {
			sampled = withoutGames
		}

		deltas[teammate.Player.ID] = statDelta{
			usage:   withoutUsage/float64(withoutGames) - baseUsage/float64(baseGames),
			rebound: withoutReb/float64(withoutGames) - baseReb/float64(baseGames),
			assist:  withoutAst/float64(withoutGames) - baseAst/float64(baseGames),
		}
	}

	weight := ir.cfg.OnOffWeightPerGame * float64(sampled)
	if weight > ir.cfg.OnOffWeightCap {
		weight = ir.cfg.OnOffWeightCap
	}
	return deltas, weight
}

package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/hoopsight/projection-engine/internal/models"
	"github.com/hoopsight/projection-engine/internal/repository"
	"github.com/hoopsight/projection-engine/internal/services"
)

// GameSimulator turns a date's persisted projections into simulated game
// outcomes. Team points anchor to the sum of player projections; pace and
// efficiency ratings only nudge the result.
type GameSimulator struct {
	repo        repository.StatsRepository
	projections repository.ProjectionStore
	sims        repository.SimulationStore
	cache       *services.CacheService
	logger      *logrus.Logger
	cfg         Config
}

// NewGameSimulator creates a simulator. The cache is optional; pass nil to
// skip the Redis layer and read straight from the database.
func NewGameSimulator(
	repo repository.StatsRepository,
	projections repository.ProjectionStore,
	sims repository.SimulationStore,
	cache *services.CacheService,
	logger *logrus.Logger,
	cfg Config,
) *GameSimulator {
	return &GameSimulator{
		repo:        repo,
		projections: projections,
		sims:        sims,
		cache:       cache,
		logger:      logger,
		cfg:         cfg,
	}
}

type teamBaseline struct {
	Minutes  float64 `json:"minutes"`
	Points   float64 `json:"points"`
	Rebounds float64 `json:"rebounds"`
	Assists  float64 `json:"assists"`
	Threes   float64 `json:"threes"`
}

func sumTeam(rows []models.Projection) teamBaseline {
	var base teamBaseline
	for _, row := range rows {
		base.Minutes += row.ExpectedMinutes
		base.Points += row.ProjPoints
		base.Rebounds += row.ProjRebounds
		base.Assists += row.ProjAssists
		base.Threes += row.ProjThrees
	}
	return base
}

// scaled reconciles the stat sums to a team point target. Minutes never scale.
func (b teamBaseline) scaled(scale float64) teamBaseline {
	return teamBaseline{
		Minutes:  b.Minutes,
		Points:   b.Points * scale,
		Rebounds: b.Rebounds * scale,
		Assists:  b.Assists * scale,
		Threes:   b.Threes * scale,
	}
}

// teamEnv is a team's efficiency context with league fallbacks applied.
type teamEnv struct {
	Pace   float64
	OffPPP float64
	DefPPP float64
}

// gameInputs is everything SimulateGame and SimulateDistribution share.
type gameInputs struct {
	game        *models.Game
	seasonID    uint
	league      LeagueContext
	homeBase    teamBaseline
	visitorBase teamBaseline

	possMean       float64
	homePPPMean    float64
	visitorPPPMean float64
}

// SimulateGame runs the deterministic single simulation for a game and
// persists the result keyed by (date, game, model version).
func (gs *GameSimulator) SimulateGame(ctx context.Context, date time.Time, gameID uint) (*models.GameSimulation, error) {
	in, err := gs.loadInputs(ctx, date, gameID)
	if err != nil {
		return nil, err
	}

	homeEnvPoints := in.possMean * in.homePPPMean
	visitorEnvPoints := in.possMean * in.visitorPPPMean

	homeTarget := math.Max(gs.blendedPoints(in.homeBase.Points, homeEnvPoints), 0)
	visitorTarget := math.Max(gs.blendedPoints(in.visitorBase.Points, visitorEnvPoints), 0)

	homeScale := safeScale(homeTarget, in.homeBase.Points)
	visitorScale := safeScale(visitorTarget, in.visitorBase.Points)

	homeTotals := in.homeBase.scaled(homeScale)
	visitorTotals := in.visitorBase.scaled(visitorScale)

	sim := &models.GameSimulation{
		Date:          dateOnly(date),
		GameID:        in.game.ID,
		ModelVersion:  gs.cfg.ModelVersion,
		SeasonID:      in.seasonID,
		HomeTeamID:    in.game.HomeTeamID,
		VisitorTeamID: in.game.VisitorTeamID,
		SimsCount:     1,

		HomePoints:      math.Round(homeTotals.Points),
		VisitorPoints:   math.Round(visitorTotals.Points),
		HomeRebounds:    homeTotals.Rebounds,
		VisitorRebounds: visitorTotals.Rebounds,
		HomeAssists:     homeTotals.Assists,
		VisitorAssists:  visitorTotals.Assists,
		HomeThrees:      homeTotals.Threes,
		VisitorThrees:   visitorTotals.Threes,

		HomeBaselinePoints:      in.homeBase.Points,
		VisitorBaselinePoints:   in.visitorBase.Points,
		HomeBaselineRebounds:    in.homeBase.Rebounds,
		VisitorBaselineRebounds: in.visitorBase.Rebounds,
		HomeBaselineAssists:     in.homeBase.Assists,
		VisitorBaselineAssists:  in.visitorBase.Assists,
		HomeBaselineThrees:      in.homeBase.Threes,
		VisitorBaselineThrees:   in.visitorBase.Threes,

		HomeScale:    homeScale,
		VisitorScale: visitorScale,

		WinProbHome: winProbFromPoints(homeTotals.Points, visitorTotals.Points),

		Meta: models.JSONMap{
			"league": in.league,
			"env": map[string]interface{}{
				"possessions_mean":   in.possMean,
				"home_ppp_mean":      in.homePPPMean,
				"visitor_ppp_mean":   in.visitorPPPMean,
				"home_env_points":    homeEnvPoints,
				"visitor_env_points": visitorEnvPoints,
				"blend": map[string]interface{}{
					"player_weight": gs.cfg.PlayerPointsWeight,
					"env_weight":    gs.cfg.EnvPointsWeight,
				},
			},
			"home_minutes":    in.homeBase.Minutes,
			"visitor_minutes": in.visitorBase.Minutes,
		},
	}

	if err := gs.sims.Save(ctx, sim); err != nil {
		return nil, err
	}
	return sim, nil
}

// SimulateDate runs the deterministic simulation for every game on the date.
// Games are independent and run on a bounded worker pool. Per-game failures
// are logged; the first one is returned after the whole date is processed.
func (gs *GameSimulator) SimulateDate(ctx context.Context, date time.Time) ([]models.GameSimulation, error) {
	season, err := gs.repo.CurrentSeason(ctx)
	if err != nil {
		return nil, err
	}
	games, err := gs.repo.GamesOn(ctx, season.ID, date)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}

	workers := gs.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan uint)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  []models.GameSimulation
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for gameID := range jobs {
				sim, err := gs.SimulateGame(ctx, date, gameID)
				mu.Lock()
				if err != nil {
					gs.logger.WithError(err).WithFields(logrus.Fields{
						"component": "game_simulator",
						"game_id":   gameID,
						"date":      date.Format("2006-01-02"),
					}).Error("Game simulation failed")
					if firstErr == nil {
						firstErr = fmt.Errorf("simulating game %d: %w", gameID, err)
					}
				} else {
					results = append(results, *sim)
				}
				mu.Unlock()
			}
		}()
	}
	for _, game := range games {
		jobs <- game.ID
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].GameID < results[b].GameID })
	return results, firstErr
}

// FetchOrSimulate returns the cached simulation when one exists, checking
// Redis first and the database second, and simulates otherwise.
func (gs *GameSimulator) FetchOrSimulate(ctx context.Context, date time.Time, gameID uint) (*models.GameSimulation, error) {
	key := services.SimulationCacheKey(date, gameID, gs.cfg.ModelVersion)

	if gs.cache != nil {
		var cached models.GameSimulation
		err := gs.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, services.ErrCacheMiss) {
			gs.logger.WithError(err).WithField("component", "game_simulator").Warn("Simulation cache read failed")
		}
	}

	sim, err := gs.sims.Find(ctx, date, gameID, gs.cfg.ModelVersion)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		sim, err = gs.SimulateGame(ctx, date, gameID)
		if err != nil {
			return nil, err
		}
	}

	if gs.cache != nil {
		if err := gs.cache.Set(ctx, key, sim, gs.cfg.CacheTTL); err != nil {
			gs.logger.WithError(err).WithField("component", "game_simulator").Warn("Simulation cache write failed")
		}
	}
	return sim, nil
}

// distributionOutputs is the aggregate of one Monte Carlo batch.
type distributionOutputs struct {
	HomePointsMean    float64 `json:"home_points_mean"`
	HomePointsSD      float64 `json:"home_points_sd"`
	VisitorPointsMean float64 `json:"visitor_points_mean"`
	VisitorPointsSD   float64 `json:"visitor_points_sd"`

	WinProbHome    float64 `json:"win_prob_home"`
	WinProbVisitor float64 `json:"win_prob_visitor"`

	SpreadMean float64 `json:"spread_mean"`
	SpreadSD   float64 `json:"spread_sd"`
	SpreadP10  float64 `json:"spread_p10"`
	SpreadP50  float64 `json:"spread_p50"`
	SpreadP90  float64 `json:"spread_p90"`

	TotalMean float64 `json:"total_mean"`
	TotalSD   float64 `json:"total_sd"`
	TotalP10  float64 `json:"total_p10"`
	TotalP50  float64 `json:"total_p50"`
	TotalP90  float64 `json:"total_p90"`
}

// SimulateDistribution runs the Monte Carlo batch for a game: per-trial noise
// on possessions and each team's points-per-possession, plus a points-level
// term, all seeded deterministically per (date, game, team, trial). Persists
// under the distribution model version.
func (gs *GameSimulator) SimulateDistribution(ctx context.Context, date time.Time, gameID uint, trials int) (*models.GameSimulation, error) {
	if trials <= 0 {
		trials = gs.cfg.DefaultSims
	}

	in, err := gs.loadInputs(ctx, date, gameID)
	if err != nil {
		return nil, err
	}

	homePts := make([]float64, trials)
	visitorPts := make([]float64, trials)

	// Trials share no state; seeds are a pure function of the trial index, so
	// any partition over workers produces identical results.
	workers := gs.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	chunk := (trials + workers - 1) / workers
	for start := 0; start < trials; start += chunk {
		end := start + chunk
		if end > trials {
			end = trials
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				homePts[i], visitorPts[i] = gs.runTrial(in, date, i)
			}
		}(start, end)
	}
	wg.Wait()

	spreads := make([]float64, trials)
	totals := make([]float64, trials)
	homeWins := 0
	for i := 0; i < trials; i++ {
		spreads[i] = homePts[i] - visitorPts[i]
		totals[i] = homePts[i] + visitorPts[i]
		if homePts[i] > visitorPts[i] {
			homeWins++
		}
	}

	winProbHome := float64(homeWins) / float64(trials)
	out := distributionOutputs{
		HomePointsMean:    stat.Mean(homePts, nil),
		HomePointsSD:      stat.StdDev(homePts, nil),
		VisitorPointsMean: stat.Mean(visitorPts, nil),
		VisitorPointsSD:   stat.StdDev(visitorPts, nil),
		WinProbHome:       winProbHome,
		WinProbVisitor:    1.0 - winProbHome,
		SpreadMean:        stat.Mean(spreads, nil),
		SpreadSD:          stat.StdDev(spreads, nil),
		TotalMean:         stat.Mean(totals, nil),
		TotalSD:           stat.StdDev(totals, nil),
	}
	sort.Float64s(spreads)
	sort.Float64s(totals)
	out.SpreadP10 = stat.Quantile(0.10, stat.Empirical, spreads, nil)
	out.SpreadP50 = stat.Quantile(0.50, stat.Empirical, spreads, nil)
	out.SpreadP90 = stat.Quantile(0.90, stat.Empirical, spreads, nil)
	out.TotalP10 = stat.Quantile(0.10, stat.Empirical, totals, nil)
	out.TotalP50 = stat.Quantile(0.50, stat.Empirical, totals, nil)
	out.TotalP90 = stat.Quantile(0.90, stat.Empirical, totals, nil)

	sim := &models.GameSimulation{
		Date:          dateOnly(date),
		GameID:        in.game.ID,
		ModelVersion:  gs.cfg.DistributionModelVersion(),
		SeasonID:      in.seasonID,
		HomeTeamID:    in.game.HomeTeamID,
		VisitorTeamID: in.game.VisitorTeamID,
		SimsCount:     trials,

		HomePoints:    math.Round(out.HomePointsMean),
		VisitorPoints: math.Round(out.VisitorPointsMean),

		// Non-point stats carry the player-model baselines; the distribution
		// only models the score.
		HomeRebounds:    in.homeBase.Rebounds,
		VisitorRebounds: in.visitorBase.Rebounds,
		HomeAssists:     in.homeBase.Assists,
		VisitorAssists:  in.visitorBase.Assists,
		HomeThrees:      in.homeBase.Threes,
		VisitorThrees:   in.visitorBase.Threes,

		HomeBaselinePoints:      in.homeBase.Points,
		VisitorBaselinePoints:   in.visitorBase.Points,
		HomeBaselineRebounds:    in.homeBase.Rebounds,
		VisitorBaselineRebounds: in.visitorBase.Rebounds,
		HomeBaselineAssists:     in.homeBase.Assists,
		VisitorBaselineAssists:  in.visitorBase.Assists,
		HomeBaselineThrees:      in.homeBase.Threes,
		VisitorBaselineThrees:   in.visitorBase.Threes,

		HomeScale:    1.0,
		VisitorScale: 1.0,

		WinProbHome: winProbHome,

		Meta: models.JSONMap{
			"league": in.league,
			"env": map[string]interface{}{
				"possessions_mean": in.possMean,
				"possessions_sd":   gs.cfg.PossSD,
				"home_ppp_mean":    in.homePPPMean,
				"visitor_ppp_mean": in.visitorPPPMean,
				"ppp_sd":           gs.cfg.PPPSD,
				"mc_points_sd":     gs.cfg.MCPointsSD,
				"blend": map[string]interface{}{
					"player_weight": gs.cfg.PlayerPointsWeight,
					"env_weight":    gs.cfg.EnvPointsWeight,
				},
			},
			"outputs": out,
		},
	}

	if err := gs.sims.Save(ctx, sim); err != nil {
		return nil, err
	}
	return sim, nil
}

// FetchOrSimulateDistribution returns the persisted Monte Carlo row when one
// exists, unless force is set.
func (gs *GameSimulator) FetchOrSimulateDistribution(ctx context.Context, date time.Time, gameID uint, trials int, force bool) (*models.GameSimulation, error) {
	if !force {
		sim, err := gs.sims.Find(ctx, date, gameID, gs.cfg.DistributionModelVersion())
		if err == nil {
			return sim, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return gs.SimulateDistribution(ctx, date, gameID, trials)
}

// runTrial draws one Monte Carlo sample. Every noise term is seeded from the
// trial identity, so trial i is the same number no matter which worker runs it.
func (gs *GameSimulator) runTrial(in *gameInputs, date time.Time, i int) (home, visitor float64) {
	model := gs.cfg.ModelVersion
	gameID := in.game.ID

	poss := in.possMean + normalNoise(gs.cfg.PossSD, seedFor(date, model, gameID, 0, fmt.Sprintf("poss-%d", i)))
	poss = clampFloat(poss, gs.cfg.PossMin, gs.cfg.PossMax)

	hppp := in.homePPPMean + normalNoise(gs.cfg.PPPSD, seedFor(date, model, gameID, in.game.HomeTeamID, fmt.Sprintf("hppp-%d", i)))
	vppp := in.visitorPPPMean + normalNoise(gs.cfg.PPPSD, seedFor(date, model, gameID, in.game.VisitorTeamID, fmt.Sprintf("vppp-%d", i)))
	hppp = clampFloat(hppp, gs.cfg.PPPMin, gs.cfg.PPPMax)
	vppp = clampFloat(vppp, gs.cfg.PPPMin, gs.cfg.PPPMax)

	home = gs.blendedPoints(in.homeBase.Points, poss*hppp)
	visitor = gs.blendedPoints(in.visitorBase.Points, poss*vppp)

	if gs.cfg.MCPointsSD > 0 {
		home += normalNoise(gs.cfg.MCPointsSD, seedFor(date, model, gameID, in.game.HomeTeamID, fmt.Sprintf("mc-hpts-%d", i)))
		visitor += normalNoise(gs.cfg.MCPointsSD, seedFor(date, model, gameID, in.game.VisitorTeamID, fmt.Sprintf("mc-vpts-%d", i)))
	}
	return home, visitor
}

func (gs *GameSimulator) loadInputs(ctx context.Context, date time.Time, gameID uint) (*gameInputs, error) {
	game, err := gs.repo.GameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	season, err := gs.repo.CurrentSeason(ctx)
	if err != nil {
		return nil, err
	}
	league, err := gs.LeagueContext(ctx, season.ID)
	if err != nil {
		return nil, err
	}

	homeRows, err := gs.projections.ProjectionsFor(ctx, date, game.HomeTeamID, game.VisitorTeamID)
	if err != nil {
		return nil, err
	}
	if len(homeRows) == 0 {
		return nil, fmt.Errorf("no projections for team %d vs %d on %s", game.HomeTeamID, game.VisitorTeamID, date.Format("2006-01-02"))
	}
	visitorRows, err := gs.projections.ProjectionsFor(ctx, date, game.VisitorTeamID, game.HomeTeamID)
	if err != nil {
		return nil, err
	}
	if len(visitorRows) == 0 {
		return nil, fmt.Errorf("no projections for team %d vs %d on %s", game.VisitorTeamID, game.HomeTeamID, date.Format("2006-01-02"))
	}

	homeEnv, err := gs.teamEnv(ctx, game.HomeTeamID, season.ID, league)
	if err != nil {
		return nil, err
	}
	visitorEnv, err := gs.teamEnv(ctx, game.VisitorTeamID, season.ID, league)
	if err != nil {
		return nil, err
	}

	return &gameInputs{
		game:        game,
		seasonID:    season.ID,
		league:      league,
		homeBase:    sumTeam(homeRows),
		visitorBase: sumTeam(visitorRows),

		possMean:       (homeEnv.Pace + visitorEnv.Pace) / 2.0,
		homePPPMean:    gs.expectedPPP(homeEnv, visitorEnv, league) + gs.cfg.HomePPPBonus,
		visitorPPPMean: gs.expectedPPP(visitorEnv, homeEnv, league),
	}, nil
}

// LeagueContext returns the season's league averages, cached in Redis when a
// cache is configured.
func (gs *GameSimulator) LeagueContext(ctx context.Context, seasonID uint) (LeagueContext, error) {
	key := services.LeagueContextCacheKey(seasonID)
	if gs.cache != nil {
		var cached LeagueContext
		if err := gs.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	stats, err := gs.repo.LeagueAdvanced(ctx, seasonID)
	if err != nil {
		return LeagueContext{}, err
	}
	league := NewLeagueContext(stats)

	if gs.cache != nil {
		if err := gs.cache.Set(ctx, key, league, gs.cfg.LeagueCacheTTL); err != nil {
			gs.logger.WithError(err).WithField("component", "game_simulator").Warn("League context cache write failed")
		}
	}
	return league, nil
}

// teamEnv loads a team's pace and per-possession efficiency, falling back to
// league averages when the team's advanced stats are missing or zeroed.
func (gs *GameSimulator) teamEnv(ctx context.Context, teamID, seasonID uint, league LeagueContext) (teamEnv, error) {
	env := teamEnv{
		Pace:   league.PaceAvg,
		OffPPP: league.OffRtgAvg / 100.0,
		DefPPP: league.DefRtgAvg / 100.0,
	}

	adv, err := gs.repo.TeamAdvanced(ctx, teamID, seasonID)
	if errors.Is(err, repository.ErrNotFound) {
		return env, nil
	}
	if err != nil {
		return env, err
	}

	if adv.Pace > 0 {
		env.Pace = adv.Pace
	}
	if adv.OffRtg > 0 {
		env.OffPPP = adv.OffRtg / 100.0
	}
	if adv.DefRtg > 0 {
		env.DefPPP = adv.DefRtg / 100.0
	}
	return env, nil
}

func (gs *GameSimulator) expectedPPP(team, opponent teamEnv, league LeagueContext) float64 {
	lg := league.PPPAvg
	return lg + gs.cfg.OffWeight*(team.OffPPP-lg) - gs.cfg.DefWeight*(opponent.DefPPP-lg)
}

func (gs *GameSimulator) blendedPoints(playerPoints, envPoints float64) float64 {
	return gs.cfg.PlayerPointsWeight*playerPoints + gs.cfg.EnvPointsWeight*envPoints
}

func safeScale(target, baseline float64) float64 {
	if baseline <= 0 {
		return 1.0
	}
	return target / baseline
}

// winProbFromPoints gives the deterministic single run a degenerate win
// probability so the column is never unset.
func winProbFromPoints(home, visitor float64) float64 {
	switch {
	case home > visitor:
		return 1.0
	case home < visitor:
		return 0.0
	}
	return 0.5
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

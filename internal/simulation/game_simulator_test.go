package simulation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopsight/projection-engine/internal/models"
	"github.com/hoopsight/projection-engine/internal/repository"
)

type fakeRepo struct {
	season models.Season
	games  map[uint]models.Game
	league []models.TeamAdvancedStat
	adv    map[uint]models.TeamAdvancedStat
}

func (f *fakeRepo) CurrentSeason(ctx context.Context) (*models.Season, error) {
	season := f.season
	return &season, nil
}

func (f *fakeRepo) GamesOn(ctx context.Context, seasonID uint, date time.Time) ([]models.Game, error) {
	var games []models.Game
	for _, game := range f.games {
		games = append(games, game)
	}
	return games, nil
}

func (f *fakeRepo) GameByID(ctx context.Context, gameID uint) (*models.Game, error) {
	game, ok := f.games[gameID]
	if !ok {
		return nil, fmt.Errorf("game %d: %w", gameID, repository.ErrNotFound)
	}
	return &game, nil
}

func (f *fakeRepo) Roster(ctx context.Context, teamID uint) ([]models.Player, error) {
	return nil, nil
}

func (f *fakeRepo) Availability(ctx context.Context, playerID uint) (models.AvailabilityState, error) {
	return models.StatusHealthy, nil
}

func (f *fakeRepo) RecentGameLogs(ctx context.Context, playerID, seasonID uint, onOrBefore time.Time, limit int) ([]models.GameLog, error) {
	return nil, nil
}

func (f *fakeRepo) TeamRecentGames(ctx context.Context, teamID, seasonID uint, onOrBefore time.Time, limit int) ([]models.Game, error) {
	return nil, nil
}

func (f *fakeRepo) TeamGameLogs(ctx context.Context, teamID uint, gameIDs []uint) ([]models.GameLog, error) {
	return nil, nil
}

func (f *fakeRepo) DefenseRanks(ctx context.Context, teamID, seasonID uint) ([]models.DefenseRank, error) {
	return nil, nil
}

func (f *fakeRepo) TeamAdvanced(ctx context.Context, teamID, seasonID uint) (*models.TeamAdvancedStat, error) {
	if stat, ok := f.adv[teamID]; ok {
		return &stat, nil
	}
	return nil, fmt.Errorf("advanced stats for team %d: %w", teamID, repository.ErrNotFound)
}

func (f *fakeRepo) LeagueAdvanced(ctx context.Context, seasonID uint) ([]models.TeamAdvancedStat, error) {
	return f.league, nil
}

type fakeProjStore struct {
	rows map[uint][]models.Projection // keyed by team id
}

func (f *fakeProjStore) BeginRun(ctx context.Context, date time.Time, modelVersion string) (*models.ProjectionRun, error) {
	return nil, errors.New("not used")
}

func (f *fakeProjStore) MarkRunSuccess(ctx context.Context, runID uuid.UUID, count int) error {
	return nil
}

func (f *fakeProjStore) MarkRunError(ctx context.Context, runID uuid.UUID, note string) error {
	return nil
}

func (f *fakeProjStore) ClearDate(ctx context.Context, date time.Time) error {
	return nil
}

func (f *fakeProjStore) SaveProjections(ctx context.Context, projections []models.Projection) error {
	return nil
}

func (f *fakeProjStore) ProjectionsFor(ctx context.Context, date time.Time, teamID, opponentTeamID uint) ([]models.Projection, error) {
	return f.rows[teamID], nil
}

type fakeSimStore struct {
	saved []models.GameSimulation
}

func (f *fakeSimStore) Find(ctx context.Context, date time.Time, gameID uint, modelVersion string) (*models.GameSimulation, error) {
	for i := range f.saved {
		s := f.saved[i]
		if s.GameID == gameID && s.ModelVersion == modelVersion {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("simulation for game %d: %w", gameID, repository.ErrNotFound)
}

func (f *fakeSimStore) Save(ctx context.Context, sim *models.GameSimulation) error {
	f.saved = append(f.saved, *sim)
	return nil
}

func teamRows(teamID, oppID uint, players int, pointsEach float64) []models.Projection {
	rows := make([]models.Projection, players)
	for i := range rows {
		rows[i] = models.Projection{
			PlayerID:        teamID*100 + uint(i),
			TeamID:          teamID,
			OpponentTeamID:  oppID,
			ExpectedMinutes: 30,
			ProjPoints:      pointsEach,
			ProjRebounds:    5,
			ProjAssists:     3,
			ProjThrees:      1.5,
		}
	}
	return rows
}

func newFixture() (*fakeRepo, *fakeProjStore, *fakeSimStore) {
	repo := &fakeRepo{
		season: models.Season{ID: 1, Current: true},
		games: map[uint]models.Game{
			77: {ID: 77, SeasonID: 1, HomeTeamID: 1, VisitorTeamID: 2},
		},
		adv: make(map[uint]models.TeamAdvancedStat),
	}
	proj := &fakeProjStore{rows: map[uint][]models.Projection{
		1: teamRows(1, 2, 8, 13.75), // 110 baseline points
		2: teamRows(2, 1, 8, 12.5),  // 100 baseline points
	}}
	return repo, proj, &fakeSimStore{}
}

func newSimulator(repo *fakeRepo, proj *fakeProjStore, sims *fakeSimStore) *GameSimulator {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewGameSimulator(repo, proj, sims, nil, log, DefaultConfig())
}

func TestSimulateGame_ReconcilesToBlendedTarget(t *testing.T) {
	repo, proj, sims := newFixture()
	gs := newSimulator(repo, proj, sims)
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	sim, err := gs.SimulateGame(context.Background(), date, 77)
	require.NoError(t, err)

	// No advanced stats anywhere, so the environment is pure league defaults:
	// 98.5 possessions, 1.13 PPP, plus the home bonus.
	homeEnv := 98.5 * 1.14
	visitorEnv := 98.5 * 1.13
	homeTarget := 0.55*110 + 0.45*homeEnv
	visitorTarget := 0.55*100 + 0.45*visitorEnv

	assert.Equal(t, float64(111), sim.HomePoints)
	assert.Equal(t, float64(105), sim.VisitorPoints)
	assert.InDelta(t, homeTarget/110, sim.HomeScale, 1e-9)
	assert.InDelta(t, visitorTarget/100, sim.VisitorScale, 1e-9)

	// Non-point stats scale with the same factor.
	assert.InDelta(t, 40*sim.HomeScale, sim.HomeRebounds, 1e-9)
	assert.InDelta(t, 24*sim.HomeScale, sim.HomeAssists, 1e-9)
	assert.InDelta(t, 12*sim.HomeScale, sim.HomeThrees, 1e-9)

	assert.InDelta(t, 110, sim.HomeBaselinePoints, 1e-9)
	assert.InDelta(t, 100, sim.VisitorBaselinePoints, 1e-9)
	assert.Equal(t, 1, sim.SimsCount)
	assert.Equal(t, 1.0, sim.WinProbHome)

	require.Len(t, sims.saved, 1)
}

func TestSimulateGame_UsesTeamRatingsWhenPresent(t *testing.T) {
	repo, proj, sims := newFixture()
	repo.adv[1] = models.TeamAdvancedStat{TeamID: 1, SeasonID: 1, Pace: 102, OffRtg: 118, DefRtg: 110}
	repo.adv[2] = models.TeamAdvancedStat{TeamID: 2, SeasonID: 1, Pace: 96, OffRtg: 110, DefRtg: 115}
	gs := newSimulator(repo, proj, sims)
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	sim, err := gs.SimulateGame(context.Background(), date, 77)
	require.NoError(t, err)

	poss := (102.0 + 96.0) / 2.0
	lg := 1.13
	homePPP := lg + 0.60*(1.18-lg) - 0.40*(1.15-lg) + 0.010
	visitorPPP := lg + 0.60*(1.10-lg) - 0.40*(1.10-lg)

	homeTarget := 0.55*110 + 0.45*poss*homePPP
	visitorTarget := 0.55*100 + 0.45*poss*visitorPPP

	assert.InDelta(t, homeTarget/110, sim.HomeScale, 1e-9)
	assert.InDelta(t, visitorTarget/100, sim.VisitorScale, 1e-9)
}

func TestSimulateGame_MissingProjections(t *testing.T) {
	repo, proj, sims := newFixture()
	delete(proj.rows, 2)
	gs := newSimulator(repo, proj, sims)
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	_, err := gs.SimulateGame(context.Background(), date, 77)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no projections")
	assert.Empty(t, sims.saved)
}

func TestFetchOrSimulate_ReturnsPersistedRow(t *testing.T) {
	repo, proj, sims := newFixture()
	// Break the projections so an accidental re-simulation would error.
	delete(proj.rows, 1)

	existing := models.GameSimulation{
		GameID:       77,
		ModelVersion: DefaultConfig().ModelVersion,
		HomePoints:   120,
	}
	sims.saved = append(sims.saved, existing)

	gs := newSimulator(repo, proj, sims)
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	got, err := gs.FetchOrSimulate(context.Background(), date, 77)
	require.NoError(t, err)
	assert.Equal(t, float64(120), got.HomePoints)
}

func TestSimulateDistribution_DeterministicAcrossWorkerCounts(t *testing.T) {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	run := func(workers int) *models.GameSimulation {
		repo, proj, sims := newFixture()
		log := logrus.New()
		log.SetLevel(logrus.PanicLevel)
		cfg := DefaultConfig()
		cfg.Workers = workers
		gs := NewGameSimulator(repo, proj, sims, nil, log, cfg)

		sim, err := gs.SimulateDistribution(context.Background(), date, 77, 500)
		require.NoError(t, err)
		return sim
	}

	first := run(1)
	second := run(4)

	assert.Equal(t, first.WinProbHome, second.WinProbHome)
	assert.Equal(t, first.HomePoints, second.HomePoints)
	assert.Equal(t, first.VisitorPoints, second.VisitorPoints)
	assert.Equal(t, first.Meta["outputs"], second.Meta["outputs"])
}

func TestSimulateDistribution_Outputs(t *testing.T) {
	repo, proj, sims := newFixture()
	gs := newSimulator(repo, proj, sims)
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	sim, err := gs.SimulateDistribution(context.Background(), date, 77, 500)
	require.NoError(t, err)

	assert.Equal(t, 500, sim.SimsCount)
	assert.Equal(t, DefaultConfig().DistributionModelVersion(), sim.ModelVersion)

	out, ok := sim.Meta["outputs"].(distributionOutputs)
	require.True(t, ok)

	assert.GreaterOrEqual(t, out.WinProbHome, 0.0)
	assert.LessOrEqual(t, out.WinProbHome, 1.0)
	assert.InDelta(t, 1.0, out.WinProbHome+out.WinProbVisitor, 1e-12)
	assert.Equal(t, sim.WinProbHome, out.WinProbHome)

	// The home side projects more points; the distribution should agree.
	assert.Greater(t, out.WinProbHome, 0.5)
	assert.LessOrEqual(t, out.SpreadP10, out.SpreadP50)
	assert.LessOrEqual(t, out.SpreadP50, out.SpreadP90)
	assert.LessOrEqual(t, out.TotalP10, out.TotalP90)
	assert.InDelta(t, out.HomePointsMean+out.VisitorPointsMean, out.TotalMean, 1e-6)
	assert.InDelta(t, out.HomePointsMean-out.VisitorPointsMean, out.SpreadMean, 1e-6)
}

func TestSimulateDate_AllGames(t *testing.T) {
	repo, proj, sims := newFixture()
	repo.games[78] = models.Game{ID: 78, SeasonID: 1, HomeTeamID: 3, VisitorTeamID: 4}
	proj.rows[3] = teamRows(3, 4, 8, 14)
	proj.rows[4] = teamRows(4, 3, 8, 13)

	gs := newSimulator(repo, proj, sims)
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	results, err := gs.SimulateDate(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, uint(77), results[0].GameID)
	assert.Equal(t, uint(78), results[1].GameID)
	assert.Len(t, sims.saved, 2)
}

func TestLeagueContext_Defaults(t *testing.T) {
	league := NewLeagueContext(nil)
	assert.Equal(t, 98.5, league.PaceAvg)
	assert.Equal(t, 113.0, league.OffRtgAvg)
	assert.Equal(t, 113.0, league.DefRtgAvg)
	assert.InDelta(t, 1.13, league.PPPAvg, 1e-9)
}

func TestLeagueContext_AveragesIgnoringZeroes(t *testing.T) {
	league := NewLeagueContext([]models.TeamAdvancedStat{
		{Pace: 100, OffRtg: 116, DefRtg: 112},
		{Pace: 96, OffRtg: 112, DefRtg: 114},
		{Pace: 0, OffRtg: 0, DefRtg: 0}, // unreported team
	})
	assert.InDelta(t, 98.0, league.PaceAvg, 1e-9)
	assert.InDelta(t, 114.0, league.OffRtgAvg, 1e-9)
	assert.InDelta(t, 113.0, league.DefRtgAvg, 1e-9)
	assert.InDelta(t, 1.14, league.PPPAvg, 1e-9)
}

func TestNormalNoise_Deterministic(t *testing.T) {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	seed := seedFor(date, "sim_v1_from_projections", 77, 1, "hppp-0")
	assert.Equal(t, normalNoise(0.032, seed), normalNoise(0.032, seed))

	other := seedFor(date, "sim_v1_from_projections", 77, 2, "hppp-0")
	assert.NotEqual(t, seed, other)
}

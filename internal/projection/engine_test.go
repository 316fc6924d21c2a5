package projection_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopsight/projection-engine/internal/models"
	"github.com/hoopsight/projection-engine/internal/projection"
)

type fakeStatsRepo struct {
	season   models.Season
	games    []models.Game
	rosters  map[uint][]models.Player
	logs     map[uint][]models.GameLog
	statuses map[uint]models.AvailabilityState
	gamesErr error
}

func (f *fakeStatsRepo) CurrentSeason(ctx context.Context) (*models.Season, error) {
	season := f.season
	return &season, nil
}

func (f *fakeStatsRepo) GamesOn(ctx context.Context, seasonID uint, date time.Time) ([]models.Game, error) {
	if f.gamesErr != nil {
		return nil, f.gamesErr
	}
	return f.games, nil
}

func (f *fakeStatsRepo) GameByID(ctx context.Context, gameID uint) (*models.Game, error) {
	for _, game := range f.games {
		if game.ID == gameID {
			g := game
			return &g, nil
		}
	}
	return nil, errors.New("game not found")
}

func (f *fakeStatsRepo) Roster(ctx context.Context, teamID uint) ([]models.Player, error) {
	return f.rosters[teamID], nil
}

func (f *fakeStatsRepo) Availability(ctx context.Context, playerID uint) (models.AvailabilityState, error) {
	if status, ok := f.statuses[playerID]; ok {
		return status, nil
	}
	return models.StatusHealthy, nil
}

func (f *fakeStatsRepo) RecentGameLogs(ctx context.Context, playerID, seasonID uint, onOrBefore time.Time, limit int) ([]models.GameLog, error) {
	logs := f.logs[playerID]
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (f *fakeStatsRepo) TeamRecentGames(ctx context.Context, teamID, seasonID uint, onOrBefore time.Time, limit int) ([]models.Game, error) {
	return nil, nil
}

func (f *fakeStatsRepo) TeamGameLogs(ctx context.Context, teamID uint, gameIDs []uint) ([]models.GameLog, error) {
	return nil, nil
}

func (f *fakeStatsRepo) DefenseRanks(ctx context.Context, teamID, seasonID uint) ([]models.DefenseRank, error) {
	return nil, nil
}

func (f *fakeStatsRepo) TeamAdvanced(ctx context.Context, teamID, seasonID uint) (*models.TeamAdvancedStat, error) {
	return nil, errors.New("not used")
}

func (f *fakeStatsRepo) LeagueAdvanced(ctx context.Context, seasonID uint) ([]models.TeamAdvancedStat, error) {
	return nil, nil
}

type fakeProjectionStore struct {
	run          models.ProjectionRun
	cleared      []time.Time
	saved        []models.Projection
	successCount int
	errNote      string
}

func (f *fakeProjectionStore) BeginRun(ctx context.Context, date time.Time, modelVersion string) (*models.ProjectionRun, error) {
	f.run = models.ProjectionRun{
		ID:           uuid.New(),
		Date:         date,
		ModelVersion: modelVersion,
		Status:       models.RunStatusRunning,
	}
	run := f.run
	return &run, nil
}

func (f *fakeProjectionStore) MarkRunSuccess(ctx context.Context, runID uuid.UUID, count int) error {
	f.successCount = count
	return nil
}

func (f *fakeProjectionStore) MarkRunError(ctx context.Context, runID uuid.UUID, note string) error {
	f.errNote = note
	return nil
}

func (f *fakeProjectionStore) ClearDate(ctx context.Context, date time.Time) error {
	f.cleared = append(f.cleared, date)
	return nil
}

func (f *fakeProjectionStore) SaveProjections(ctx context.Context, projections []models.Projection) error {
	f.saved = append(f.saved, projections...)
	return nil
}

func (f *fakeProjectionStore) ProjectionsFor(ctx context.Context, date time.Time, teamID, opponentTeamID uint) ([]models.Projection, error) {
	var rows []models.Projection
	for _, p := range f.saved {
		if p.TeamID == teamID && p.OpponentTeamID == opponentTeamID {
			rows = append(rows, p)
		}
	}
	return rows, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func rotationLogs(playerID, teamID uint, date time.Time) []models.GameLog {
	logs := make([]models.GameLog, 6)
	for i := range logs {
		logs[i] = models.GameLog{
			GameID:            uint(500 + i),
			PlayerID:          playerID,
			TeamID:            teamID,
			GameDate:          date.AddDate(0, 0, -2*(i+1)),
			Minutes:           30,
			Points:            15,
			OffensiveRebounds: 2,
			DefensiveRebounds: 4,
			Assists:           4,
			Threes:            2,
			UsagePct:          20,
			ReboundPct:        10,
			AssistPct:         15,
		}
	}
	return logs
}

func buildFixture(date time.Time) *fakeStatsRepo {
	repo := &fakeStatsRepo{
		season:   models.Season{ID: 1, Current: true},
		games:    []models.Game{{ID: 77, SeasonID: 1, Date: date, HomeTeamID: 1, VisitorTeamID: 2}},
		rosters:  make(map[uint][]models.Player),
		logs:     make(map[uint][]models.GameLog),
		statuses: make(map[uint]models.AvailabilityState),
	}

	positions := []models.Position{
		models.PositionPG, models.PositionSG, models.PositionSF,
		models.PositionPF, models.PositionC, models.PositionSG,
	}
	for teamID := uint(1); teamID <= 2; teamID++ {
		for i, pos := range positions {
			playerID := teamID*100 + uint(i)
			repo.rosters[teamID] = append(repo.rosters[teamID], models.Player{
				ID:       playerID,
				TeamID:   teamID,
				Position: pos,
			})
			repo.logs[playerID] = rotationLogs(playerID, teamID, date)
		}
	}
	return repo
}

func TestEngine_Run_PersistsProjections(t *testing.T) {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	repo := buildFixture(date)
	repo.statuses[105] = models.StatusOut

	store := &fakeProjectionStore{}
	engine := projection.NewEngine(repo, store, quietLogger(), projection.DefaultModelConfig())

	run, err := engine.Run(context.Background(), date)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.Len(t, store.cleared, 1)
	assert.Equal(t, len(store.saved), store.successCount)
	assert.Equal(t, len(store.saved), run.ProjectionsCount)

	// Five actives for the home team, six for the visitors.
	assert.Len(t, store.saved, 11)

	for _, row := range store.saved {
		assert.NotEqual(t, uint(105), row.PlayerID, "unavailable players are never persisted")
		assert.Greater(t, row.ExpectedMinutes, 0.0)
		assert.Equal(t, run.ID, row.RunID)
		assert.InDelta(t, row.ProjPoints+row.ProjRebounds+row.ProjAssists, row.ProjPRA, 1e-9)
		assert.InDelta(t, row.ProjPoints+row.ProjAssists, row.ProjPA, 1e-9)
	}

	// Rows arrive in deterministic (team, player) order.
	for i := 1; i < len(store.saved); i++ {
		prev, cur := store.saved[i-1], store.saved[i]
		if prev.TeamID == cur.TeamID {
			assert.Less(t, prev.PlayerID, cur.PlayerID)
		} else {
			assert.Less(t, prev.TeamID, cur.TeamID)
		}
	}
}

func TestEngine_Run_Deterministic(t *testing.T) {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	first := &fakeProjectionStore{}
	engine := projection.NewEngine(buildFixture(date), first, quietLogger(), projection.DefaultModelConfig())
	_, err := engine.Run(context.Background(), date)
	require.NoError(t, err)

	second := &fakeProjectionStore{}
	engine = projection.NewEngine(buildFixture(date), second, quietLogger(), projection.DefaultModelConfig())
	_, err = engine.Run(context.Background(), date)
	require.NoError(t, err)

	require.Equal(t, len(first.saved), len(second.saved))
	for i := range first.saved {
		assert.Equal(t, first.saved[i].PlayerID, second.saved[i].PlayerID)
		assert.InDelta(t, first.saved[i].ProjPoints, second.saved[i].ProjPoints, 1e-12)
		assert.InDelta(t, first.saved[i].ExpectedMinutes, second.saved[i].ExpectedMinutes, 1e-12)
	}
}

func TestEngine_Run_MarksErrorOnFailure(t *testing.T) {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	repo := buildFixture(date)
	repo.gamesErr = errors.New("schedule feed down")

	store := &fakeProjectionStore{}
	engine := projection.NewEngine(repo, store, quietLogger(), projection.DefaultModelConfig())

	run, err := engine.Run(context.Background(), date)
	require.Error(t, err)
	assert.Equal(t, models.RunStatusError, run.Status)
	assert.Contains(t, store.errNote, "schedule feed down")
	assert.Empty(t, store.saved)
}

func TestEngine_Run_EmptySlate(t *testing.T) {
	date := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)
	repo := buildFixture(date)
	repo.games = nil

	store := &fakeProjectionStore{}
	engine := projection.NewEngine(repo, store, quietLogger(), projection.DefaultModelConfig())

	run, err := engine.Run(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.Equal(t, 0, run.ProjectionsCount)
}

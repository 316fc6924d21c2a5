package projection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hoopsight/projection-engine/internal/models"
	"github.com/hoopsight/projection-engine/internal/repository"
)

// Engine runs the full projection pipeline for a date: minutes estimation,
// injury redistribution, team minutes normalization, matchup adjustment and
// final stat projection, persisted as one ProjectionRun.
type Engine struct {
	repo   repository.StatsRepository
	store  repository.ProjectionStore
	logger *logrus.Logger
	cfg    ModelConfig

	minutes    *MinutesProjector
	matchup    *MatchupAdjuster
	injuries   *InjuryRedistributor
	normalizer *TeamMinutesNormalizer
	stats      *StatProjector
}

func NewEngine(repo repository.StatsRepository, store repository.ProjectionStore, logger *logrus.Logger, cfg ModelConfig) *Engine {
	return &Engine{
		repo:       repo,
		store:      store,
		logger:     logger,
		cfg:        cfg,
		minutes:    NewMinutesProjector(cfg),
		matchup:    NewMatchupAdjuster(cfg),
		injuries:   NewInjuryRedistributor(cfg, logger),
		normalizer: NewTeamMinutesNormalizer(cfg, logger),
		stats:      NewStatProjector(cfg),
	}
}

// Run projects every eligible player across the date's games. Re-running the
// same date replaces the prior rows. Per-player problems are skipped and
// logged; run-level failures mark the run as errored with a diagnostic note.
func (e *Engine) Run(ctx context.Context, date time.Time) (*models.ProjectionRun, error) {
	run, err := e.store.BeginRun(ctx, date, e.cfg.ModelVersion)
	if err != nil {
		return nil, fmt.Errorf("starting projection run: %w", err)
	}

	log := e.logger.WithFields(logrus.Fields{
		"component":     "projection_engine",
		"run_id":        run.ID.String(),
		"date":          date.Format("2006-01-02"),
		"model_version": e.cfg.ModelVersion,
	})
	log.Info("Projection run started")

	count, runErr := e.execute(ctx, run.ID, date)
	if runErr != nil {
		log.WithError(runErr).Error("Projection run failed")
		if markErr := e.store.MarkRunError(ctx, run.ID, runErr.Error()); markErr != nil {
			log.WithError(markErr).Error("Failed to record run error")
		}
		run.Status = models.RunStatusError
		run.Notes = runErr.Error()
		return run, runErr
	}

	if err := e.store.MarkRunSuccess(ctx, run.ID, count); err != nil {
		return run, fmt.Errorf("marking run success: %w", err)
	}
	run.Status = models.RunStatusSuccess
	run.ProjectionsCount = count
	log.WithField("projections", count).Info("Projection run finished")
	return run, nil
}

func (e *Engine) execute(ctx context.Context, runID uuid.UUID, date time.Time) (int, error) {
	season, err := e.repo.CurrentSeason(ctx)
	if err != nil {
		return 0, err
	}

	// The prior rows for the date go away only after the new run has been
	// started, so a run that fails before this point leaves them intact.
	if err := e.store.ClearDate(ctx, date); err != nil {
		return 0, err
	}

	games, err := e.repo.GamesOn(ctx, season.ID, date)
	if err != nil {
		return 0, err
	}
	if len(games) == 0 {
		return 0, nil
	}

	type teamJob struct {
		teamID uint
		oppID  uint
	}
	var jobs []teamJob
	for _, game := range games {
		jobs = append(jobs, teamJob{teamID: game.HomeTeamID, oppID: game.VisitorTeamID})
		jobs = append(jobs, teamJob{teamID: game.VisitorTeamID, oppID: game.HomeTeamID})
	}

	// Teams share no state and run concurrently.
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		rows     []models.Projection
		firstErr error
	)
	for _, job := range jobs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			teamRows, err := e.projectTeam(ctx, season.ID, date, job.teamID, job.oppID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("projecting team %d: %w", job.teamID, err)
				}
				return
			}
			rows = append(rows, teamRows...)
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return 0, firstErr
	}

	for i := range rows {
		rows[i].RunID = runID
	}

	// Deterministic persist order, so identical inputs write identical rows.
	sort.Slice(rows, func(a, b int) bool {
		if rows[a].TeamID != rows[b].TeamID {
			return rows[a].TeamID < rows[b].TeamID
		}
		return rows[a].PlayerID < rows[b].PlayerID
	})
	if err := e.store.SaveProjections(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (e *Engine) projectTeam(ctx context.Context, seasonID uint, date time.Time, teamID, opponentID uint) ([]models.Projection, error) {
	log := e.logger.WithFields(logrus.Fields{
		"component": "projection_engine",
		"team_id":   teamID,
		"date":      date.Format("2006-01-02"),
	})

	roster, err := e.repo.Roster(ctx, teamID)
	if err != nil {
		return nil, err
	}

	defenseRanks, err := e.repo.DefenseRanks(ctx, opponentID, seasonID)
	if err != nil {
		return nil, err
	}

	window, err := e.teamWindow(ctx, teamID, seasonID, date)
	if err != nil {
		return nil, err
	}

	// Build baselines for everyone with a usable track record; the injury
	// step needs the unavailable players' baselines too.
	var baselines []PlayerBaseline
	for _, player := range roster {
		status, err := e.repo.Availability(ctx, player.ID)
		if err != nil {
			return nil, err
		}

		logs, err := e.repo.RecentGameLogs(ctx, player.ID, seasonID, date, e.cfg.SeasonWindowGames)
		if err != nil {
			return nil, err
		}
		if len(logs) == 0 {
			continue
		}

		if status != models.StatusOut && !e.minutes.Eligible(logs, date) {
			log.WithFields(logrus.Fields{
				"player_id": player.ID,
				"reason":    "ineligible",
			}).Debug("Skipping player")
			continue
		}

		profile := e.minutes.Profile(logs)
		if status == models.StatusDayToDay {
			profile.Blended *= e.cfg.DayToDayMinutesScale
		}

		baselines = append(baselines, PlayerBaseline{
			Player:  player,
			Status:  status,
			Profile: profile,
			Rates:   e.minutes.Rates(logs),
		})
	}

	adjustments := e.injuries.Redistribute(baselines, window)

	var active []PlayerBaseline
	var candidates []RotationCandidate
	for _, pb := range baselines {
		if pb.Status == models.StatusOut {
			continue
		}
		active = append(active, pb)
		candidates = append(candidates, RotationCandidate{
			PlayerID:        pb.Player.ID,
			BaselineMinutes: pb.Profile.Blended,
			MinutesDelta:    adjustments[pb.Player.ID].MinutesDelta,
			Last5Avg:        pb.Profile.Last5Avg,
			SeasonAvg:       pb.Profile.SeasonAvg,
		})
	}
	normalized := e.normalizer.Normalize(candidates)

	var rows []models.Projection
	for _, pb := range active {
		expectedMinutes := normalized[pb.Player.ID]
		if expectedMinutes <= 0 {
			log.WithFields(logrus.Fields{
				"player_id": pb.Player.ID,
				"reason":    "zero_minutes",
			}).Debug("Skipping player")
			continue
		}

		adj := adjustments[pb.Player.ID]
		usagePct := pb.Rates.UsagePct + adj.UsageDelta
		reboundPct := pb.Rates.ReboundPct + adj.ReboundPctDelta
		assistPct := pb.Rates.AssistPct + adj.AssistPctDelta

		multipliers := e.matchup.Multipliers(pb.Player.Position, defenseRanks)

		line, err := e.stats.Project(date, pb.Player.ID, expectedMinutes, pb.Rates, usagePct, reboundPct, assistPct, multipliers)
		if err != nil {
			log.WithError(err).WithField("player_id", pb.Player.ID).Warn("Skipping player")
			continue
		}

		projection := models.Projection{
			Date:            dateOnly(date),
			PlayerID:        pb.Player.ID,
			TeamID:          teamID,
			OpponentTeamID:  opponentID,
			Position:        pb.Player.Position,
			InjuryStatus:    pb.Status,
			ExpectedMinutes: expectedMinutes,
			UsagePct:        usagePct,
			ReboundPct:      reboundPct,
			AssistPct:       assistPct,
			DvpPtsMult:      multipliers.Points,
			DvpRebMult:      multipliers.Rebounds,
			DvpAstMult:      multipliers.Assists,
			ProjPoints:      line.Points,
			ProjRebounds:    line.Rebounds,
			ProjAssists:     line.Assists,
			ProjThrees:      line.Threes,
		}
		projection.FillCombos()
		rows = append(rows, projection)
	}
	return rows, nil
}

func (e *Engine) teamWindow(ctx context.Context, teamID, seasonID uint, date time.Time) (TeamGameWindow, error) {
	games, err := e.repo.TeamRecentGames(ctx, teamID, seasonID, date, e.cfg.OnOffLookbackGames)
	if err != nil {
		return TeamGameWindow{}, err
	}
	gameIDs := make([]uint, 0, len(games))
	for _, game := range games {
		gameIDs = append(gameIDs, game.ID)
	}
	logs, err := e.repo.TeamGameLogs(ctx, teamID, gameIDs)
	if err != nil {
		return TeamGameWindow{}, err
	}
	return TeamGameWindow{Games: games, Logs: logs}, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hoopsight/projection-engine/internal/models"
)

// StatsRepository is the read-only surface over game logs, availability,
// schedule, defensive profiles and team efficiency context. It never
// mutates anything.
type StatsRepository interface {
	CurrentSeason(ctx context.Context) (*models.Season, error)
	GamesOn(ctx context.Context, seasonID uint, date time.Time) ([]models.Game, error)
	GameByID(ctx context.Context, gameID uint) (*models.Game, error)
	Roster(ctx context.Context, teamID uint) ([]models.Player, error)
	Availability(ctx context.Context, playerID uint) (models.AvailabilityState, error)
	RecentGameLogs(ctx context.Context, playerID, seasonID uint, onOrBefore time.Time, limit int) ([]models.GameLog, error)
	TeamRecentGames(ctx context.Context, teamID, seasonID uint, onOrBefore time.Time, limit int) ([]models.Game, error)
	TeamGameLogs(ctx context.Context, teamID uint, gameIDs []uint) ([]models.GameLog, error)
	DefenseRanks(ctx context.Context, teamID, seasonID uint) ([]models.DefenseRank, error)
	TeamAdvanced(ctx context.Context, teamID, seasonID uint) (*models.TeamAdvancedStat, error)
	LeagueAdvanced(ctx context.Context, seasonID uint) ([]models.TeamAdvancedStat, error)
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates the gorm-backed stats repository.
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) CurrentSeason(ctx context.Context) (*models.Season, error) {
	var season models.Season
	err := r.db.WithContext(ctx).Where("current = ?", true).First(&season).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no current season configured: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading current season: %w", err)
	}
	return &season, nil
}

func (r *statsRepository) GamesOn(ctx context.Context, seasonID uint, date time.Time) ([]models.Game, error) {
	var games []models.Game
	err := r.db.WithContext(ctx).
		Where("season_id = ? AND date = ?", seasonID, dateOnly(date)).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("loading games for %s: %w", date.Format("2006-01-02"), err)
	}
	return games, nil
}

func (r *statsRepository) GameByID(ctx context.Context, gameID uint) (*models.Game, error) {
	var game models.Game
	err := r.db.WithContext(ctx).First(&game, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("game %d: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading game %d: %w", gameID, err)
	}
	return &game, nil
}

func (r *statsRepository) Roster(ctx context.Context, teamID uint) ([]models.Player, error) {
	if err := r.requireTeam(ctx, teamID); err != nil {
		return nil, err
	}
	var players []models.Player
	err := r.db.WithContext(ctx).Where("team_id = ?", teamID).Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("loading roster for team %d: %w", teamID, err)
	}
	return players, nil
}

// Availability returns the player's current status. Players with no injury
// report entry are treated as healthy.
func (r *statsRepository) Availability(ctx context.Context, playerID uint) (models.AvailabilityState, error) {
	var availability models.Availability
	err := r.db.WithContext(ctx).Where("player_id = ?", playerID).First(&availability).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StatusHealthy, nil
	}
	if err != nil {
		return "", fmt.Errorf("loading availability for player %d: %w", playerID, err)
	}
	return availability.Status, nil
}

// RecentGameLogs returns the player's qualifying logs most recent first,
// restricted to games on or before the given date in the given season.
// Games with zero recorded minutes are excluded.
func (r *statsRepository) RecentGameLogs(ctx context.Context, playerID, seasonID uint, onOrBefore time.Time, limit int) ([]models.GameLog, error) {
	var logs []models.GameLog
	query := r.db.WithContext(ctx).
		Joins("JOIN games ON games.id = box_scores.game_id").
		Where("box_scores.player_id = ?", playerID).
		Where("games.season_id = ?", seasonID).
		Where("box_scores.game_date <= ?", dateOnly(onOrBefore)).
		Where("box_scores.minutes > 0").
		Order("box_scores.game_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("loading game logs for player %d: %w", playerID, err)
	}
	if len(logs) == 0 {
		if err := r.requirePlayer(ctx, playerID); err != nil {
			return nil, err
		}
	}
	return logs, nil
}

func (r *statsRepository) TeamRecentGames(ctx context.Context, teamID, seasonID uint, onOrBefore time.Time, limit int) ([]models.Game, error) {
	var games []models.Game
	query := r.db.WithContext(ctx).
		Where("season_id = ?", seasonID).
		Where("date <= ?", dateOnly(onOrBefore)).
		Where("home_team_id = ? OR visitor_team_id = ?", teamID, teamID).
		Order("date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&games).Error; err != nil {
		return nil, fmt.Errorf("loading recent games for team %d: %w", teamID, err)
	}
	return games, nil
}

func (r *statsRepository) TeamGameLogs(ctx context.Context, teamID uint, gameIDs []uint) ([]models.GameLog, error) {
	if len(gameIDs) == 0 {
		return nil, nil
	}
	var logs []models.GameLog
	err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Where("game_id IN ?", gameIDs).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("loading team %d game logs: %w", teamID, err)
	}
	return logs, nil
}

func (r *statsRepository) DefenseRanks(ctx context.Context, teamID, seasonID uint) ([]models.DefenseRank, error) {
	var ranks []models.DefenseRank
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND season_id = ?", teamID, seasonID).
		Find(&ranks).Error
	if err != nil {
		return nil, fmt.Errorf("loading defense ranks for team %d: %w", teamID, err)
	}
	return ranks, nil
}

func (r *statsRepository) TeamAdvanced(ctx context.Context, teamID, seasonID uint) (*models.TeamAdvancedStat, error) {
	var stat models.TeamAdvancedStat
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND season_id = ?", teamID, seasonID).
		First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("advanced stats for team %d: %w", teamID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading advanced stats for team %d: %w", teamID, err)
	}
	return &stat, nil
}

func (r *statsRepository) LeagueAdvanced(ctx context.Context, seasonID uint) ([]models.TeamAdvancedStat, error) {
	var stats []models.TeamAdvancedStat
	err := r.db.WithContext(ctx).Where("season_id = ?", seasonID).Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("loading league advanced stats: %w", err)
	}
	return stats, nil
}

func (r *statsRepository) requireTeam(ctx context.Context, teamID uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Team{}).Where("id = ?", teamID).Count(&count).Error; err != nil {
		return fmt.Errorf("checking team %d: %w", teamID, err)
	}
	if count == 0 {
		return fmt.Errorf("team %d: %w", teamID, ErrNotFound)
	}
	return nil
}

func (r *statsRepository) requirePlayer(ctx context.Context, playerID uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Player{}).Where("id = ?", playerID).Count(&count).Error; err != nil {
		return fmt.Errorf("checking player %d: %w", playerID, err)
	}
	if count == 0 {
		return fmt.Errorf("player %d: %w", playerID, ErrNotFound)
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

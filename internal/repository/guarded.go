package repository

import (
	"context"
	"time"

	"github.com/hoopsight/projection-engine/internal/models"
	"github.com/hoopsight/projection-engine/internal/services"
)

// GuardedStatsRepository wraps the feed-backed reads of a StatsRepository
// with circuit breakers so a flapping upstream (injury report, schedule,
// box score ingest) fails fast instead of stalling a whole run.
type GuardedStatsRepository struct {
	StatsRepository
	breakers *services.CircuitBreakerService
}

func NewGuardedStatsRepository(repo StatsRepository, breakers *services.CircuitBreakerService) *GuardedStatsRepository {
	return &GuardedStatsRepository{
		StatsRepository: repo,
		breakers:        breakers,
	}
}

func (r *GuardedStatsRepository) Availability(ctx context.Context, playerID uint) (models.AvailabilityState, error) {
	result, err := r.breakers.Execute(services.FeedAvailability, func() (interface{}, error) {
		return r.StatsRepository.Availability(ctx, playerID)
	})
	if err != nil {
		return "", err
	}
	return result.(models.AvailabilityState), nil
}

func (r *GuardedStatsRepository) GamesOn(ctx context.Context, seasonID uint, date time.Time) ([]models.Game, error) {
	result, err := r.breakers.Execute(services.FeedSchedule, func() (interface{}, error) {
		return r.StatsRepository.GamesOn(ctx, seasonID, date)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Game), nil
}

func (r *GuardedStatsRepository) RecentGameLogs(ctx context.Context, playerID, seasonID uint, onOrBefore time.Time, limit int) ([]models.GameLog, error) {
	result, err := r.breakers.Execute(services.FeedGameLogs, func() (interface{}, error) {
		return r.StatsRepository.RecentGameLogs(ctx, playerID, seasonID, onOrBefore, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.GameLog), nil
}

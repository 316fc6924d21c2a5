package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hoopsight/projection-engine/internal/models"
)

// ProjectionStore is the persistence sink for projection runs and their rows.
type ProjectionStore interface {
	// BeginRun finds or creates the run for (date, model version), resets it
	// to running and clears any previous diagnostic note.
	BeginRun(ctx context.Context, date time.Time, modelVersion string) (*models.ProjectionRun, error)
	MarkRunSuccess(ctx context.Context, runID uuid.UUID, count int) error
	MarkRunError(ctx context.Context, runID uuid.UUID, note string) error
	// ClearDate removes every projection row for the date. Called only after
	// a new run has been started, so a failed run never leaves the previous
	// rows half-deleted.
	ClearDate(ctx context.Context, date time.Time) error
	SaveProjections(ctx context.Context, projections []models.Projection) error
	ProjectionsFor(ctx context.Context, date time.Time, teamID, opponentTeamID uint) ([]models.Projection, error)
}

type projectionStore struct {
	db *gorm.DB
}

// NewProjectionStore creates the gorm-backed projection store.
func NewProjectionStore(db *gorm.DB) ProjectionStore {
	return &projectionStore{db: db}
}

func (s *projectionStore) BeginRun(ctx context.Context, date time.Time, modelVersion string) (*models.ProjectionRun, error) {
	now := time.Now().UTC()
	day := dateOnly(date)

	var run models.ProjectionRun
	err := s.db.WithContext(ctx).
		Where("date = ? AND model_version = ?", day, modelVersion).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		run = models.ProjectionRun{
			ID:           uuid.New(),
			Date:         day,
			ModelVersion: modelVersion,
		}
	} else if err != nil {
		return nil, fmt.Errorf("loading projection run: %w", err)
	}

	run.Status = models.RunStatusRunning
	run.Notes = ""
	run.ProjectionsCount = 0
	run.StartedAt = &now
	run.FinishedAt = nil

	if err := s.db.WithContext(ctx).Save(&run).Error; err != nil {
		return nil, fmt.Errorf("starting projection run: %w", err)
	}
	return &run, nil
}

func (s *projectionStore) MarkRunSuccess(ctx context.Context, runID uuid.UUID, count int) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&models.ProjectionRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":            models.RunStatusSuccess,
			"projections_count": count,
			"finished_at":       now,
		}).Error
	if err != nil {
		return fmt.Errorf("marking run success: %w", err)
	}
	return nil
}

func (s *projectionStore) MarkRunError(ctx context.Context, runID uuid.UUID, note string) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&models.ProjectionRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":      models.RunStatusError,
			"notes":       note,
			"finished_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("marking run error: %w", err)
	}
	return nil
}

func (s *projectionStore) ClearDate(ctx context.Context, date time.Time) error {
	err := s.db.WithContext(ctx).
		Where("date = ?", dateOnly(date)).
		Delete(&models.Projection{}).Error
	if err != nil {
		return fmt.Errorf("clearing projections for %s: %w", date.Format("2006-01-02"), err)
	}
	return nil
}

func (s *projectionStore) SaveProjections(ctx context.Context, projections []models.Projection) error {
	if len(projections) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&projections).Error; err != nil {
		return fmt.Errorf("saving %d projections: %w", len(projections), err)
	}
	return nil
}

func (s *projectionStore) ProjectionsFor(ctx context.Context, date time.Time, teamID, opponentTeamID uint) ([]models.Projection, error) {
	var rows []models.Projection
	err := s.db.WithContext(ctx).
		Where("date = ? AND team_id = ? AND opponent_team_id = ?", dateOnly(date), teamID, opponentTeamID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading projections for team %d vs %d: %w", teamID, opponentTeamID, err)
	}
	return rows, nil
}

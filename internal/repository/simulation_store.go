package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hoopsight/projection-engine/internal/models"
)

// SimulationStore is the persistence sink for game simulation results.
type SimulationStore interface {
	Find(ctx context.Context, date time.Time, gameID uint, modelVersion string) (*models.GameSimulation, error)
	// Save upserts on the (date, game, model version) key.
	Save(ctx context.Context, sim *models.GameSimulation) error
}

type simulationStore struct {
	db *gorm.DB
}

// NewSimulationStore creates the gorm-backed simulation store.
func NewSimulationStore(db *gorm.DB) SimulationStore {
	return &simulationStore{db: db}
}

func (s *simulationStore) Find(ctx context.Context, date time.Time, gameID uint, modelVersion string) (*models.GameSimulation, error) {
	var sim models.GameSimulation
	err := s.db.WithContext(ctx).
		Where("date = ? AND game_id = ? AND model_version = ?", dateOnly(date), gameID, modelVersion).
		First(&sim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("simulation for game %d: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading simulation for game %d: %w", gameID, err)
	}
	return &sim, nil
}

func (s *simulationStore) Save(ctx context.Context, sim *models.GameSimulation) error {
	sim.Date = dateOnly(sim.Date)

	var existing models.GameSimulation
	err := s.db.WithContext(ctx).
		Where("date = ? AND game_id = ? AND model_version = ?", sim.Date, sim.GameID, sim.ModelVersion).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// insert below
	case err != nil:
		return fmt.Errorf("loading existing simulation: %w", err)
	default:
		sim.ID = existing.ID
		sim.CreatedAt = existing.CreatedAt
	}

	if err := s.db.WithContext(ctx).Save(sim).Error; err != nil {
		return fmt.Errorf("saving simulation for game %d: %w", sim.GameID, err)
	}
	return nil
}

package main

import (
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/hoopsight/projection-engine/internal/config"
	"github.com/hoopsight/projection-engine/internal/database"
	"github.com/hoopsight/projection-engine/internal/models"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down]")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		if err := runMigrations(db); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := dropTables(db); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	default:
		log.Fatalf("Unknown command: %s", os.Args[1])
	}
}

func runMigrations(db *database.DB) error {
	return db.AutoMigrate(
		&models.Season{},
		&models.Team{},
		&models.Player{},
		&models.Game{},
		&models.GameLog{},
		&models.Availability{},
		&models.DefenseRank{},
		&models.TeamAdvancedStat{},
		&models.ProjectionRun{},
		&models.Projection{},
		&models.GameSimulation{},
	)
}

func dropTables(db *database.DB) error {
	return db.Migrator().DropTable(
		&models.GameSimulation{},
		&models.Projection{},
		&models.ProjectionRun{},
		&models.TeamAdvancedStat{},
		&models.DefenseRank{},
		&models.Availability{},
		&models.GameLog{},
		&models.Game{},
		&models.Player{},
		&models.Team{},
		&models.Season{},
	)
}

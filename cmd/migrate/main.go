package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/models"
	"github.com/stitts-dev/match-predictor/pkg/config"
	"github.com/stitts-dev/match-predictor/pkg/database"
	"github.com/stitts-dev/match-predictor/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		logrus.Fatal("Usage: migrate [up|down|status]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log := logger.WithComponent("migrate")

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		if err := runMigrations(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Info("Migrations completed successfully")

	case "down":
		if err := dropTables(db); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Info("Tables dropped successfully")

	case "status":
		if err := printStatus(db); err != nil {
			log.Fatalf("Failed to read status: %v", err)
		}

	default:
		log.Fatalf("Unknown command: %s", os.Args[1])
	}
}

func runMigrations(db *database.DB) error {
	if err := db.AutoMigrate(&models.Prediction{}); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_predictions_active_created ON predictions(is_archived, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_predictions_model_type ON predictions(model_type)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func dropTables(db *database.DB) error {
	return db.Migrator().DropTable(&models.Prediction{})
}

func printStatus(db *database.DB) error {
	if !db.Migrator().HasTable(&models.Prediction{}) {
		logrus.Info("predictions table missing, run `migrate up`")
		return nil
	}
	var total, archived int64
	if err := db.Model(&models.Prediction{}).Count(&total).Error; err != nil {
		return err
	}
	if err := db.Model(&models.Prediction{}).Where("is_archived = ?", true).Count(&archived).Error; err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"total":    total,
		"archived": archived,
	}).Info("predictions table present")
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stitts-dev/match-predictor/internal/models"
	"github.com/stitts-dev/match-predictor/pkg/database"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200

	DefaultArchiveAfter        = 90 * 24 * time.Hour
	DefaultDeleteArchivedAfter = 180 * 24 * time.Hour
)

var ErrPredictionNotFound = errors.New("prediction not found")

// HistoryService persists served predictions.
type HistoryService struct {
	db     *database.DB
	logger *logrus.Entry
}

func NewHistoryService(db *database.DB, logger *logrus.Logger) *HistoryService {
	return &HistoryService{
		db:     db,
		logger: logger.WithField("component", "prediction_history"),
	}
}

// Migrate creates or updates the history table.
func (s *HistoryService) Migrate() error {
	return s.db.AutoMigrate(&models.Prediction{})
}

func (s *HistoryService) Save(ctx context.Context, p *models.Prediction) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// Recent lists active predictions, newest first.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]models.Prediction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var out []models.Prediction
	err := s.db.WithContext(ctx).
		Where("is_archived = ?", false).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	return out, nil
}

func (s *HistoryService) Get(ctx context.Context, id uuid.UUID) (*models.Prediction, error) {
	var p models.Prediction
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPredictionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction: %w", err)
	}
	return &p, nil
}

func (s *HistoryService) Stats(ctx context.Context) (*models.PredictionStats, error) {
	db := s.db.WithContext(ctx).Model(&models.Prediction{})
	stats := &models.PredictionStats{ByOutcome: make(map[string]int64)}

	if err := db.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}
	if err := db.Session(&gorm.Session{}).Where("is_archived = ?", true).Count(&stats.Archived).Error; err != nil {
		return nil, fmt.Errorf("failed to count archived predictions: %w", err)
	}
	stats.Active = stats.Total - stats.Archived

	if err := db.Session(&gorm.Session{}).Where("is_fallback = ?", true).Count(&stats.Fallbacks).Error; err != nil {
		return nil, fmt.Errorf("failed to count fallback predictions: %w", err)
	}

	var rows []struct {
		Outcome string
		Count   int64
	}
	if err := db.Session(&gorm.Session{}).Select("outcome, COUNT(*) AS count").Group("outcome").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to group predictions: %w", err)
	}
	for _, r := range rows {
		stats.ByOutcome[r.Outcome] = r.Count
	}
	return stats, nil
}

// Archive flags active predictions created before the cutoff.
func (s *HistoryService) Archive(ctx context.Context, olderThan time.Time) (int64, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Prediction{}).
		Where("is_archived = ? AND created_at < ?", false, olderThan).
		Updates(map[string]interface{}{"is_archived": true, "archived_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to archive predictions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteArchived removes archived predictions archived before the cutoff.
func (s *HistoryService) DeleteArchived(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("is_archived = ? AND archived_at < ?", true, olderThan).
		Delete(&models.Prediction{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete archived predictions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

type CleanupOptions struct {
	ArchiveAfter        time.Duration
	DeleteArchivedAfter time.Duration
	DryRun              bool
}

type CleanupResult struct {
	Archived int64 `json:"archived"`
	Deleted  int64 `json:"deleted"`
	DryRun   bool  `json:"dry_run"`
}

// Cleanup archives old predictions and purges long-archived ones. A dry run
// only counts what would change.
func (s *HistoryService) Cleanup(ctx context.Context, opts CleanupOptions) (*CleanupResult, error) {
	if opts.ArchiveAfter <= 0 {
		opts.ArchiveAfter = DefaultArchiveAfter
	}
	if opts.DeleteArchivedAfter <= 0 {
		opts.DeleteArchivedAfter = DefaultDeleteArchivedAfter
	}
	now := time.Now().UTC()
	archiveCutoff := now.Add(-opts.ArchiveAfter)
	deleteCutoff := now.Add(-opts.DeleteArchivedAfter)

	result := &CleanupResult{DryRun: opts.DryRun}
	if opts.DryRun {
		db := s.db.WithContext(ctx).Model(&models.Prediction{})
		if err := db.Session(&gorm.Session{}).
			Where("is_archived = ? AND created_at < ?", false, archiveCutoff).
			Count(&result.Archived).Error; err != nil {
			return nil, err
		}
		if err := db.Session(&gorm.Session{}).
			Where("is_archived = ? AND archived_at < ?", true, deleteCutoff).
			Count(&result.Deleted).Error; err != nil {
			return nil, err
		}
		return result, nil
	}

	var err error
	if result.Deleted, err = s.DeleteArchived(ctx, deleteCutoff); err != nil {
		return nil, err
	}
	if result.Archived, err = s.Archive(ctx, archiveCutoff); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"archived": result.Archived,
		"deleted":  result.Deleted,
	}).Info("Prediction cleanup completed")
	return result, nil
}

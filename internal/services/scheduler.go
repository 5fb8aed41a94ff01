package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/category"
	"github.com/stitts-dev/match-predictor/internal/dataset"
	"github.com/stitts-dev/match-predictor/internal/match"
)

// Refresher reloads a dataset from its source.
type Refresher interface {
	Refresh(ctx context.Context, id int) (*dataset.Table, match.FallbackReason)
}

type SchedulerConfig struct {
	RefreshSchedule     string
	CleanupSchedule     string
	ArchiveAfter        time.Duration
	DeleteArchivedAfter time.Duration
}

// Scheduler runs the periodic dataset refresh and history cleanup.
type Scheduler struct {
	datasets    Refresher
	history     *HistoryService
	predictions *PredictionService
	config      SchedulerConfig
	logger      *logrus.Entry
	cron        *cron.Cron
	mu          sync.Mutex
	isRunning   bool
}

// NewScheduler builds a scheduler. history and predictions may be nil.
func NewScheduler(
	datasets Refresher,
	history *HistoryService,
	predictions *PredictionService,
	config SchedulerConfig,
	logger *logrus.Logger,
) *Scheduler {
	if config.RefreshSchedule == "" {
		config.RefreshSchedule = "@every 1h"
	}
	if config.CleanupSchedule == "" {
		config.CleanupSchedule = "0 3 * * *"
	}
	return &Scheduler{
		datasets:    datasets,
		history:     history,
		predictions: predictions,
		config:      config,
		logger:      logger.WithField("component", "scheduler"),
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// A stopped cron keeps its entries, so every start gets a fresh one.
	c := cron.New()
	if _, err := c.AddFunc(s.config.RefreshSchedule, s.refreshDatasets); err != nil {
		return fmt.Errorf("failed to schedule dataset refresh: %w", err)
	}
	if s.history != nil {
		if _, err := c.AddFunc(s.config.CleanupSchedule, s.cleanupPredictions); err != nil {
			return fmt.Errorf("failed to schedule prediction cleanup: %w", err)
		}
	}

	s.cron = c
	s.cron.Start()
	s.isRunning = true

	s.logger.WithFields(logrus.Fields{
		"refresh": s.config.RefreshSchedule,
		"cleanup": s.config.CleanupSchedule,
	}).Info("Scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Scheduler) refreshDatasets() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s.RefreshDatasets(ctx)
}

// RefreshDatasets reloads both datasets and drops cached predictions that
// were computed from the old tables.
func (s *Scheduler) RefreshDatasets(ctx context.Context) map[int]int {
	rows := make(map[int]int, 2)
	for _, id := range []int{category.EuropeanDataset, category.OtherDataset} {
		table, reason := s.datasets.Refresh(ctx, id)
		rows[id] = table.Len()

		entry := s.logger.WithFields(logrus.Fields{"dataset": id, "rows": table.Len()})
		if reason.Triggered() {
			entry.WithField("reason", string(reason)).Warn("Dataset refresh produced no usable data")
			continue
		}
		entry.Info("Dataset refreshed")
	}

	if s.predictions != nil {
		if n, err := s.predictions.Invalidate(ctx); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate cached predictions")
		} else if n > 0 {
			s.logger.WithField("keys", n).Info("Invalidated cached predictions")
		}
	}
	return rows
}

func (s *Scheduler) cleanupPredictions() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := s.history.Cleanup(ctx, CleanupOptions{
		ArchiveAfter:        s.config.ArchiveAfter,
		DeleteArchivedAfter: s.config.DeleteArchivedAfter,
	}); err != nil {
		s.logger.WithError(err).Error("Prediction cleanup failed")
	}
}

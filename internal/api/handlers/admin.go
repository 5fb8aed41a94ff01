package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/category"
	"github.com/stitts-dev/match-predictor/internal/models"
	"github.com/stitts-dev/match-predictor/internal/services"
	"github.com/stitts-dev/match-predictor/pkg/utils"
)

// ConnectionCounter reports live feed subscribers.
type ConnectionCounter interface {
	ConnectionCount() int
}

type AdminHandler struct {
	datasets    DatasetCache
	predictions *services.PredictionService
	history     *services.HistoryService
	feed        ConnectionCounter
	logger      *logrus.Entry
}

func NewAdminHandler(
	datasets DatasetCache,
	predictions *services.PredictionService,
	history *services.HistoryService,
	feed ConnectionCounter,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		datasets:    datasets,
		predictions: predictions,
		history:     history,
		feed:        feed,
		logger:      logger.WithField("component", "admin_api"),
	}
}

// ClearDataset handles POST /admin/datasets/:id/clear.
func (h *AdminHandler) ClearDataset(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || (id != category.EuropeanDataset && id != category.OtherDataset) {
		utils.SendValidationError(c, "Invalid dataset ID", c.Param("id"))
		return
	}

	if err := h.datasets.Clear(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		utils.SendInternalError(c, "Failed to clear dataset cache")
		return
	}
	invalidated, err := h.predictions.Invalidate(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Failed to invalidate cached predictions")
	}

	h.logger.WithFields(logrus.Fields{
		"dataset":     id,
		"invalidated": invalidated,
		"subject":     c.GetString("subject"),
	}).Info("Dataset cache cleared")
	utils.SendSuccess(c, gin.H{"dataset_id": id, "cleared": true, "predictions_invalidated": invalidated})
}

type CleanupRequest struct {
	ArchiveAfterDays        int  `json:"archive_after_days"`
	DeleteArchivedAfterDays int  `json:"delete_archived_after_days"`
	DryRun                  bool `json:"dry_run"`
}

// CleanupPredictions handles POST /admin/predictions/cleanup. An empty body
// uses the default retention.
func (h *AdminHandler) CleanupPredictions(c *gin.Context) {
	if h.history == nil {
		utils.SendServiceUnavailable(c, "Prediction history is not configured")
		return
	}
	var req CleanupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.SendValidationError(c, "Invalid request body", err.Error())
			return
		}
	}
	if req.ArchiveAfterDays < 0 || req.DeleteArchivedAfterDays < 0 {
		utils.SendValidationError(c, "Retention must not be negative", "")
		return
	}

	res, err := h.history.Cleanup(c.Request.Context(), services.CleanupOptions{
		ArchiveAfter:        time.Duration(req.ArchiveAfterDays) * 24 * time.Hour,
		DeleteArchivedAfter: time.Duration(req.DeleteArchivedAfterDays) * 24 * time.Hour,
		DryRun:              req.DryRun,
	})
	if err != nil {
		_ = c.Error(err)
		utils.SendInternalError(c, "Prediction cleanup failed")
		return
	}
	utils.SendSuccess(c, res)
}

type AdminStats struct {
	Predictions     *models.PredictionStats `json:"predictions,omitempty"`
	Datasets        map[int]int             `json:"datasets"`
	FeedConnections int                     `json:"feed_connections"`
}

// GetStats handles GET /admin/stats.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats := AdminStats{Datasets: h.datasets.Loaded()}
	if h.feed != nil {
		stats.FeedConnections = h.feed.ConnectionCount()
	}
	if h.history != nil {
		ps, err := h.history.Stats(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			utils.SendInternalError(c, "Failed to compute statistics")
			return
		}
		stats.Predictions = ps
	}
	utils.SendSuccess(c, stats)
}

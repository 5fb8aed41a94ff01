package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stitts-dev/match-predictor/internal/category"
	"github.com/stitts-dev/match-predictor/internal/engine"
	"github.com/stitts-dev/match-predictor/internal/reconcile"
	"github.com/stitts-dev/match-predictor/internal/services"
	"github.com/stitts-dev/match-predictor/pkg/utils"
)

type PredictRequest struct {
	HomeTeam string `json:"home_team" binding:"required"`
	AwayTeam string `json:"away_team" binding:"required"`
	Category string `json:"category"`
}

type PredictionHandler struct {
	predictions *services.PredictionService
	history     *services.HistoryService
}

// NewPredictionHandler builds the handler. history may be nil when no
// database is configured.
func NewPredictionHandler(predictions *services.PredictionService, history *services.HistoryService) *PredictionHandler {
	return &PredictionHandler{
		predictions: predictions,
		history:     history,
	}
}

// Predict handles POST /predict.
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	if req.Category != "" {
		if _, err := category.ParseCategory(req.Category); err != nil {
			utils.SendValidationError(c, "Invalid category", err.Error())
			return
		}
	}
	h.respond(c, req.HomeTeam, req.AwayTeam)
}

// PredictSimple handles GET /predict/simple?home_team=&away_team=.
func (h *PredictionHandler) PredictSimple(c *gin.Context) {
	home, away := c.Query("home_team"), c.Query("away_team")
	if home == "" || away == "" {
		utils.SendValidationError(c, "home_team and away_team are required", "")
		return
	}
	h.respond(c, home, away)
}

func (h *PredictionHandler) respond(c *gin.Context, home, away string) {
	resp, err := h.predictions.Predict(c.Request.Context(), home, away, c.ClientIP())
	switch {
	case err == nil:
		utils.SendSuccess(c, resp)
	case errors.Is(err, engine.ErrInvalidFixture):
		utils.SendValidationError(c, "Invalid fixture", err.Error())
	case errors.Is(err, reconcile.ErrInvalidModelOutput):
		_ = c.Error(err)
		utils.SendUnprocessable(c, utils.ErrCodeInvalidModelOutput, "Classifier returned an unrecognised prediction", err.Error())
	default:
		_ = c.Error(err)
		utils.SendInternalError(c, "Prediction failed")
	}
}

// ListPredictions handles GET /predictions?limit=.
func (h *PredictionHandler) ListPredictions(c *gin.Context) {
	if h.history == nil {
		utils.SendServiceUnavailable(c, "Prediction history is not configured")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		utils.SendValidationError(c, "Invalid limit", c.Query("limit"))
		return
	}

	out, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		utils.SendInternalError(c, "Failed to fetch predictions")
		return
	}
	utils.SendSuccessWithMeta(c, out, &utils.Meta{Limit: limit, Total: int64(len(out))})
}

// GetPrediction handles GET /predictions/:id.
func (h *PredictionHandler) GetPrediction(c *gin.Context) {
	if h.history == nil {
		utils.SendServiceUnavailable(c, "Prediction history is not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendValidationError(c, "Invalid prediction ID", err.Error())
		return
	}

	p, err := h.history.Get(c.Request.Context(), id)
	if errors.Is(err, services.ErrPredictionNotFound) {
		utils.SendNotFound(c, "Prediction not found")
		return
	}
	if err != nil {
		_ = c.Error(err)
		utils.SendInternalError(c, "Failed to fetch prediction")
		return
	}
	utils.SendSuccess(c, p)
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/match-predictor/internal/engine"
	"github.com/stitts-dev/match-predictor/internal/services"
	"github.com/stitts-dev/match-predictor/pkg/utils"
)

// DatasetCache is the view of the dataset store the API needs.
type DatasetCache interface {
	Clear(ctx context.Context, id int) error
	Loaded() map[int]int
}

type HealthHandler struct {
	engine   *engine.Engine
	datasets DatasetCache
	cache    *services.CacheService
}

func NewHealthHandler(eng *engine.Engine, datasets DatasetCache, cache *services.CacheService) *HealthHandler {
	return &HealthHandler{
		engine:   eng,
		datasets: datasets,
		cache:    cache,
	}
}

// GetHealth always answers 200 while the process is up; degraded
// dependencies are reported in the body.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	loaded := 0
	for _, m := range h.engine.Models() {
		if m.Loaded {
			loaded++
		}
	}

	redis := "disabled"
	if h.cache.Enabled() {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		redis = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			redis = "unavailable"
		}
	}

	status := "ok"
	if loaded == 0 {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        status,
		"service":       "match-predictor",
		"timestamp":     time.Now().UTC(),
		"models_loaded": loaded,
		"datasets":      h.datasets.Loaded(),
		"redis":         redis,
	})
}

type ModelsHandler struct {
	engine *engine.Engine
}

func NewModelsHandler(eng *engine.Engine) *ModelsHandler {
	return &ModelsHandler{engine: eng}
}

func (h *ModelsHandler) ListModels(c *gin.Context) {
	utils.SendSuccess(c, h.engine.Models())
}

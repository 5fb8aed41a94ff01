package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/api/handlers"
	"github.com/stitts-dev/match-predictor/internal/api/middleware"
	"github.com/stitts-dev/match-predictor/internal/engine"
	"github.com/stitts-dev/match-predictor/internal/services"
	"github.com/stitts-dev/match-predictor/internal/websocket"
	"github.com/stitts-dev/match-predictor/pkg/config"
)

// Deps are the wired services the router exposes. History and Hub may be
// nil.
type Deps struct {
	Config      *config.Config
	Engine      *engine.Engine
	Datasets    handlers.DatasetCache
	Cache       *services.CacheService
	Predictions *services.PredictionService
	History     *services.HistoryService
	Hub         *websocket.Hub
	RateLimiter *middleware.RateLimiter
	Logger      *logrus.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.RateLimiter == nil {
		d.RateLimiter = middleware.NewRateLimiter(d.Config.RateLimitRequests, d.Config.RateLimitWindow)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(d.Logger))
	router.Use(middleware.CORS(d.Config.CorsOrigins))
	router.Use(middleware.SecurityHeaders())

	healthHandler := handlers.NewHealthHandler(d.Engine, d.Datasets, d.Cache)
	router.GET("/health", healthHandler.GetHealth)

	if d.Hub != nil {
		router.GET("/ws/predictions", d.Hub.HandleWebSocket)
	}

	v1 := router.Group("/api/v1")
	v1.Use(d.RateLimiter.Middleware())
	SetupRoutes(v1, d)

	return router
}

// SetupRoutes registers the versioned API on group.
func SetupRoutes(group *gin.RouterGroup, d Deps) {
	modelsHandler := handlers.NewModelsHandler(d.Engine)
	predictionHandler := handlers.NewPredictionHandler(d.Predictions, d.History)
	teamsHandler := handlers.NewTeamsHandler(d.Engine)

	var feed handlers.ConnectionCounter
	if d.Hub != nil {
		feed = d.Hub
	}
	adminHandler := handlers.NewAdminHandler(d.Datasets, d.Predictions, d.History, feed, d.Logger)

	group.GET("/models", modelsHandler.ListModels)

	// Predictions
	group.POST("/predict", predictionHandler.Predict)
	group.GET("/predict/simple", predictionHandler.PredictSimple)
	group.GET("/predictions", predictionHandler.ListPredictions)
	group.GET("/predictions/:id", predictionHandler.GetPrediction)

	// Teams and taxonomy
	group.GET("/teams/:team/form", teamsHandler.GetForm)
	group.GET("/h2h", teamsHandler.GetHeadToHead)
	group.GET("/categories", teamsHandler.ListCategories)
	group.GET("/categories/:category/leagues", teamsHandler.ListLeagues)
	group.GET("/leagues/:league/teams", teamsHandler.ListTeams)

	admin := group.Group("/admin")
	admin.Use(middleware.AdminRequired(d.Config.JWTSecret))
	{
		admin.POST("/datasets/:id/clear", adminHandler.ClearDataset)
		admin.POST("/predictions/cleanup", adminHandler.CleanupPredictions)
		admin.GET("/stats", adminHandler.GetStats)
	}
}

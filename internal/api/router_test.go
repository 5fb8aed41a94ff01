package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/stitts-dev/match-predictor/internal/api/middleware"
	"github.com/stitts-dev/match-predictor/internal/category"
	"github.com/stitts-dev/match-predictor/internal/dataset"
	"github.com/stitts-dev/match-predictor/internal/engine"
	"github.com/stitts-dev/match-predictor/internal/match"
	"github.com/stitts-dev/match-predictor/internal/services"
	"github.com/stitts-dev/match-predictor/pkg/config"
	"github.com/stitts-dev/match-predictor/pkg/database"
)

const testSecret = "test-secret"

type stubSource struct{}

func (stubSource) Load(_ context.Context, id int) (*dataset.Table, match.FallbackReason) {
	if id != category.EuropeanDataset {
		return dataset.Empty, match.DataUnavailable
	}
	rec := func(home, away string, o match.Outcome, hg, ag float64) dataset.Record {
		return dataset.Record{HomeTeam: home, AwayTeam: away, Result: o, HomeGoals: hg, AwayGoals: ag, HasGoals: true}
	}
	return &dataset.Table{
		ID:      id,
		Schema:  dataset.SchemaA,
		Columns: []string{"HomeTeam", "AwayTeam", "FTHG", "FTAG", "FTR"},
		Records: []dataset.Record{
			rec("Arsenal", "Chelsea", match.Home, 2, 0),
			rec("Chelsea", "Arsenal", match.Draw, 1, 1),
			rec("Arsenal", "Chelsea", match.Away, 0, 1),
		},
	}, match.NoFallback
}

type APITestSuite struct {
	suite.Suite
	router  *gin.Engine
	db      *database.DB
	history *services.HistoryService
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{
		Env:               "test",
		JWTSecret:         testSecret,
		CorsOrigins:       []string{"http://localhost:5173"},
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}

	db, err := database.NewConnection("sqlite://:memory:", false)
	s.Require().NoError(err)
	s.db = db
	s.history = services.NewHistoryService(db, logger)
	s.Require().NoError(s.history.Migrate())

	tax, err := category.DefaultTaxonomy()
	s.Require().NoError(err)
	cache := services.NewCacheService(nil)
	store := dataset.NewStore(stubSource{}, cache, time.Hour, logger)
	eng := engine.New(engine.Deps{Datasets: store, Index: category.NewIndex(tax)}, logger)
	predictions := services.NewPredictionService(eng, store, cache, s.history, nil, 0, logger)

	s.router = NewRouter(Deps{
		Config:      cfg,
		Engine:      eng,
		Datasets:    store,
		Cache:       cache,
		Predictions: predictions,
		History:     s.history,
		Logger:      logger,
	})
}

func (s *APITestSuite) TearDownTest() {
	s.db.Close()
}

func (s *APITestSuite) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *APITestSuite) decode(w *httptest.ResponseRecorder, data interface{}) envelope {
	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil && len(env.Data) > 0 {
		s.Require().NoError(json.Unmarshal(env.Data, data))
	}
	return env
}

func token(role string) string {
	claims := middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		panic(err)
	}
	return "Bearer " + signed
}

func (s *APITestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusOK, w.Code)

	var body map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("degraded", body["status"])
	s.Equal("disabled", body["redis"])

	s.Equal("nosniff", w.Header().Get("X-Content-Type-Options"))
	s.NotEmpty(w.Header().Get(middleware.RequestIDHeader))
	s.NotEmpty(w.Header().Get(middleware.ProcessTimeHeader))
}

func (s *APITestSuite) TestModels() {
	w := s.do(http.MethodGet, "/api/v1/models", nil, nil)
	s.Equal(http.StatusOK, w.Code)

	var infos []engine.ModelInfo
	s.True(s.decode(w, &infos).Success)
	s.Require().Len(infos, 2)
	s.Equal("Model1", infos[0].Name)
	s.False(infos[0].Loaded)
}

func (s *APITestSuite) TestPredictAndHistory() {
	w := s.do(http.MethodPost, "/api/v1/predict", map[string]string{
		"home_team": "Arsenal",
		"away_team": "Chelsea",
		"category":  "European",
	}, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var pred struct {
		ID        string             `json:"id"`
		HomeTeam  string             `json:"home_team"`
		ModelType string             `json:"model_type"`
		Probs     map[string]float64 `json:"probabilities"`
		HomeScore int                `json:"home_score"`
		AwayScore int                `json:"away_score"`
		Fallbacks []string           `json:"fallbacks"`
	}
	s.True(s.decode(w, &pred).Success)
	s.Equal("Arsenal", pred.HomeTeam)
	s.Equal("Model1 (Fallback)", pred.ModelType)
	s.InDelta(1.0, pred.Probs["home"]+pred.Probs["draw"]+pred.Probs["away"], 1e-6)
	s.Contains(pred.Fallbacks, "classifier_error")
	s.NotEmpty(pred.ID)

	w = s.do(http.MethodGet, "/api/v1/predictions?limit=5", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	var list []map[string]interface{}
	s.decode(w, &list)
	s.Len(list, 1)

	w = s.do(http.MethodGet, "/api/v1/predictions/"+pred.ID, nil, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/predictions/not-a-uuid", nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/predictions/00000000-0000-0000-0000-000000000001", nil, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestPredictValidation() {
	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing away", map[string]string{"home_team": "Arsenal"}},
		{"same team", map[string]string{"home_team": "Arsenal", "away_team": "arsenal"}},
		{"bad category", map[string]string{"home_team": "Arsenal", "away_team": "Chelsea", "category": "Asia"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(http.MethodPost, "/api/v1/predict", tt.body, nil)
			s.Equal(http.StatusBadRequest, w.Code)
			env := s.decode(w, nil)
			s.False(env.Success)
			s.Equal("VALIDATION_ERROR", env.Error.Code)
		})
	}

	w := s.do(http.MethodGet, "/api/v1/predict/simple?home_team=Arsenal", nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestPredictSimpleOthersFallback() {
	w := s.do(http.MethodGet, "/api/v1/predict/simple?home_team=Basel&away_team=Young%20Boys", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var pred struct {
		ModelType string `json:"model_type"`
		DatasetID int    `json:"dataset_id"`
	}
	s.decode(w, &pred)
	s.Equal("Model2 (Form-Based Fallback)", pred.ModelType)
	s.Equal(2, pred.DatasetID)
}

func (s *APITestSuite) TestTeamsAndTaxonomy() {
	w := s.do(http.MethodGet, "/api/v1/teams/Arsenal/form", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	var form engine.FormReport
	s.decode(w, &form)
	s.Equal(3, form.Played)

	w = s.do(http.MethodGet, "/api/v1/h2h?home=Arsenal&away=Chelsea", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.True(s.decode(w, nil).Success)

	w = s.do(http.MethodGet, "/api/v1/h2h?home=Arsenal", nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/categories", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	var cats []string
	s.decode(w, &cats)
	s.Equal([]string{"European", "Other"}, cats)

	w = s.do(http.MethodGet, "/api/v1/categories/others/leagues", nil, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/categories/asia/leagues", nil, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/v1/leagues/Switzerland%20League/teams", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	var teams []string
	s.decode(w, &teams)
	s.Contains(teams, "Basel")

	w = s.do(http.MethodGet, "/api/v1/leagues/Moon%20League/teams", nil, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestAdminRequiresToken() {
	w := s.do(http.MethodGet, "/api/v1/admin/stats", nil, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/stats", nil, map[string]string{"Authorization": "Bearer garbage"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/stats", nil, map[string]string{"Authorization": token("viewer")})
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *APITestSuite) TestAdminOperations() {
	auth := map[string]string{"Authorization": token(middleware.RoleAdmin)}

	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/predict/simple?home_team=Arsenal&away_team=Chelsea", nil, nil).Code)

	w := s.do(http.MethodGet, "/api/v1/admin/stats", nil, auth)
	s.Require().Equal(http.StatusOK, w.Code)
	var stats struct {
		Predictions struct {
			Total int64 `json:"total"`
		} `json:"predictions"`
		Datasets map[string]int `json:"datasets"`
	}
	s.decode(w, &stats)
	s.Equal(int64(1), stats.Predictions.Total)
	s.Equal(3, stats.Datasets["1"])

	w = s.do(http.MethodPost, "/api/v1/admin/datasets/1/clear", nil, auth)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/datasets/9/clear", nil, auth)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/admin/predictions/cleanup", map[string]interface{}{"dry_run": true}, auth)
	s.Require().Equal(http.StatusOK, w.Code)
	var res services.CleanupResult
	s.decode(w, &res)
	s.True(res.DryRun)
	s.Zero(res.Archived)

	w = s.do(http.MethodPost, "/api/v1/admin/predictions/cleanup", map[string]interface{}{"archive_after_days": -1}, auth)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestCORSPreflight() {
	w := s.do(http.MethodOptions, "/api/v1/predict", nil, map[string]string{"Origin": "http://localhost:5173"})
	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(http.MethodOptions, "/api/v1/predict", nil, map[string]string{"Origin": "http://evil.example"})
	s.Empty(w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := middleware.NewRateLimiter(2, time.Minute)

	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		router.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	var body struct {
		RetryAfter int `json:"retry_after"`
	}
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
	assert.GreaterOrEqual(t, body.RetryAfter, 1)
	assert.LessOrEqual(t, body.RetryAfter, 30)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))

	assert.Zero(t, limiter.Sweep())
}

package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/dataset"
	"github.com/stitts-dev/match-predictor/internal/engine"
	"github.com/stitts-dev/match-predictor/internal/match"
	"github.com/stitts-dev/match-predictor/internal/models"
	"github.com/stitts-dev/match-predictor/internal/websocket"
)

const (
	DefaultPredictionTTL = 30 * time.Minute

	cacheWriteAttempts = 2
)

// Publisher receives every freshly computed prediction.
type Publisher interface {
	Publish(e websocket.Event)
}

// PredictionResponse is the engine result plus the presentation fields the
// API serves.
type PredictionResponse struct {
	*engine.Prediction
	ID           string `json:"id,omitempty"`
	HomeScore    int    `json:"home_score"`
	AwayScore    int    `json:"away_score"`
	DoubleChance string `json:"double_chance,omitempty"`
	Cached       bool   `json:"cached"`
}

// PredictionService wraps the engine with the result cache, history and the
// live feed. history and feed are optional.
type PredictionService struct {
	engine   *engine.Engine
	datasets engine.Datasets
	cache    *CacheService
	history  *HistoryService
	feed     Publisher
	ttl      time.Duration
	logger   *logrus.Entry
}

func NewPredictionService(
	eng *engine.Engine,
	datasets engine.Datasets,
	cache *CacheService,
	history *HistoryService,
	feed Publisher,
	ttl time.Duration,
	logger *logrus.Logger,
) *PredictionService {
	if ttl <= 0 {
		ttl = DefaultPredictionTTL
	}
	return &PredictionService{
		engine:   eng,
		datasets: datasets,
		cache:    cache,
		history:  history,
		feed:     feed,
		ttl:      ttl,
		logger:   logger.WithField("component", "prediction_service"),
	}
}

func (s *PredictionService) Engine() *engine.Engine {
	return s.engine
}

// Predict serves a fixture from the result cache or computes, stores and
// broadcasts it.
func (s *PredictionService) Predict(ctx context.Context, home, away, clientKey string) (*PredictionResponse, error) {
	key := PredictionCacheKey(home, away)

	var cached PredictionResponse
	if err := s.cache.Get(ctx, key, &cached); err == nil && cached.Prediction != nil {
		cached.Cached = true
		return &cached, nil
	} else if err != nil && !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheDisabled) {
		s.logger.WithError(err).Warn("Prediction cache read failed")
	}

	p, err := s.engine.Predict(ctx, home, away)
	if err != nil {
		return nil, err
	}

	resp := &PredictionResponse{Prediction: p}
	table, _ := s.datasets.Get(ctx, p.DatasetID)
	resp.HomeScore, resp.AwayScore = ExpectedScore(p.HomeTeam, p.AwayTeam, p.Outcome, table)
	if p.DecisionLabel.IsDoubleChance() {
		resp.DoubleChance = p.DecisionLabel.Code()
	}

	if s.history != nil {
		row, err := models.FromEngine(p, resp.HomeScore, resp.AwayScore, clientKey)
		if err == nil {
			err = s.history.Save(ctx, row)
		}
		if err != nil {
			s.logger.WithError(err).Warn("Failed to record prediction history")
		} else {
			resp.ID = row.ID.String()
		}
	}

	if err := s.cache.SetWithRetry(ctx, key, resp, s.ttl, cacheWriteAttempts); err != nil {
		s.logger.WithError(err).Warn("Failed to cache prediction")
	}

	if s.feed != nil {
		s.feed.Publish(websocket.Event{
			Type:     "prediction",
			HomeTeam: p.HomeTeam,
			AwayTeam: p.AwayTeam,
			Data:     resp,
		})
	}
	return resp, nil
}

// Invalidate drops cached results for every fixture.
func (s *PredictionService) Invalidate(ctx context.Context) (int, error) {
	return s.cache.DeletePattern(ctx, "prediction:*")
}

// ExpectedScore rounds each side's mean goals from the dataset (home team at
// home, away team away) and nudges the scoreline until it agrees with the
// outcome. Without goal data it returns 2-1, 1-2 or 1-1.
func ExpectedScore(home, away string, outcome match.Outcome, table *dataset.Table) (int, int) {
	hg, hok := meanGoals(table, func(r dataset.Record) (bool, float64) {
		return strings.EqualFold(strings.TrimSpace(r.HomeTeam), home), r.HomeGoals
	})
	ag, aok := meanGoals(table, func(r dataset.Record) (bool, float64) {
		return strings.EqualFold(strings.TrimSpace(r.AwayTeam), away), r.AwayGoals
	})
	if !hok || !aok {
		switch outcome {
		case match.Home:
			return 2, 1
		case match.Away:
			return 1, 2
		}
		return 1, 1
	}

	h, a := int(math.Round(hg)), int(math.Round(ag))
	switch outcome {
	case match.Home:
		if h <= a {
			h = a + 1
		}
	case match.Away:
		if a <= h {
			a = h + 1
		}
	default:
		if h != a {
			m := h
			if a > m {
				m = a
			}
			h, a = m, m
		}
	}
	return h, a
}

func meanGoals(table *dataset.Table, pick func(dataset.Record) (bool, float64)) (float64, bool) {
	if !table.Usable() {
		return 0, false
	}
	var sum float64
	n := 0
	for _, r := range table.Records {
		if !r.HasGoals {
			continue
		}
		if ok, g := pick(r); ok {
			sum += g
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/stitts-dev/match-predictor/internal/match"
	"github.com/stitts-dev/match-predictor/pkg/logger"
)

// SharedCache is the cross-process cache tier (Redis in production).
type SharedCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheKey is the key a dataset is stored under in both cache tiers.
func CacheKey(id int) string {
	return fmt.Sprintf("football_data_%d", id)
}

type cached struct {
	table  *Table
	reason match.FallbackReason
}

// Store caches loaded tables: in-process map first, then the shared cache,
// then the underlying source. Tables are published once and only read
// afterwards.
type Store struct {
	source Source
	shared SharedCache
	ttl    time.Duration
	logger *logrus.Entry

	mu     sync.RWMutex
	tables map[int]cached
	group  singleflight.Group
}

// NewStore builds a store. shared may be nil to disable the shared tier.
func NewStore(source Source, shared SharedCache, ttl time.Duration, logger *logrus.Logger) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		source: source,
		shared: shared,
		ttl:    ttl,
		logger: logger.WithField("component", "dataset_store"),
		tables: make(map[int]cached),
	}
}

// Get returns the table for a dataset id.
func (s *Store) Get(ctx context.Context, id int) (*Table, match.FallbackReason) {
	s.mu.RLock()
	hit, ok := s.tables[id]
	s.mu.RUnlock()
	if ok {
		logger.WithDataset(s.logger, id).Debug("Dataset served from memory")
		return hit.table, hit.reason
	}

	v, _, _ := s.group.Do(CacheKey(id), func() (interface{}, error) {
		return s.load(ctx, id), nil
	})
	c := v.(cached)
	return c.table, c.reason
}

func (s *Store) load(ctx context.Context, id int) cached {
	s.mu.RLock()
	if hit, ok := s.tables[id]; ok {
		s.mu.RUnlock()
		return hit
	}
	s.mu.RUnlock()

	key := CacheKey(id)
	if s.shared != nil {
		var table Table
		if err := s.shared.Get(ctx, key, &table); err == nil && table.Usable() {
			logger.WithDataset(s.logger, id).Debug("Dataset served from shared cache")
			c := cached{table: &table}
			s.publish(id, c)
			return c
		}
	}

	table, reason := s.source.Load(ctx, id)
	c := cached{table: table, reason: reason}
	if table.IsEmpty() {
		// Not cached so a dataset that appears later is picked up.
		return c
	}
	s.publish(id, c)

	if s.shared != nil && reason == match.NoFallback {
		if err := s.shared.Set(ctx, key, table, s.ttl); err != nil {
			logger.WithDataset(s.logger, id).WithError(err).Debug("Shared cache unavailable, keeping in-memory copy only")
		}
	}
	return c
}

func (s *Store) publish(id int, c cached) {
	s.mu.Lock()
	s.tables[id] = c
	s.mu.Unlock()
}

// Clear drops a dataset from both cache tiers.
func (s *Store) Clear(ctx context.Context, id int) error {
	s.mu.Lock()
	delete(s.tables, id)
	s.mu.Unlock()

	if s.shared == nil {
		return nil
	}
	if err := s.shared.Delete(ctx, CacheKey(id)); err != nil {
		return fmt.Errorf("clear shared dataset cache: %w", err)
	}
	return nil
}

// Refresh clears a dataset and loads it again.
func (s *Store) Refresh(ctx context.Context, id int) (*Table, match.FallbackReason) {
	if err := s.Clear(ctx, id); err != nil {
		logger.WithDataset(s.logger, id).WithError(err).Warn("Shared cache clear failed during refresh")
	}
	return s.Get(ctx, id)
}

// Loaded reports which dataset ids are held in memory.
func (s *Store) Loaded() map[int]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]int, len(s.tables))
	for id, c := range s.tables {
		out[id] = c.table.Len()
	}
	return out
}

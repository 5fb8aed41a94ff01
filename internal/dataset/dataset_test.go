package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/match-predictor/internal/match"
)

const schemaACSV = `Country,Date,HomeTeam,AwayTeam,FTHG,FTAG,FTR,HTR,HS,AS
Switzerland,2024-08-03,Basel,Lugano,2,1,H,D,12,8
Switzerland,10/08/2024,Lugano,Basel,0,0,D,D,7,9
Switzerland,2024-08-17,Basel,Sion,1,3,A,A,10,11
Switzerland,not-a-date,Sion,Lugano,1,1,X,D,5,5
`

const schemaBCSV = `Country,League,Season,Date,Time,Home,Away,HG,AG,Res
Denmark,Superliga,2024,19/07/2024,18:00,Aarhus,Vejle,3,1,H
Denmark,Superliga,2024,20/07/2024,18:00,Brondby,Aarhus,1,2,A
`

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSchemaA(t *testing.T) {
	table, stats, err := Parse(strings.NewReader(schemaACSV), 0)
	require.NoError(t, err)

	assert.Equal(t, SchemaA, table.Schema)
	assert.True(t, table.HasDate)
	assert.Equal(t, 4, stats.Rows)
	assert.Equal(t, 1, stats.SkippedResult)
	require.Len(t, table.Records, 3)

	first := table.Records[0]
	assert.Equal(t, "Basel", first.HomeTeam)
	assert.Equal(t, "Lugano", first.AwayTeam)
	assert.Equal(t, match.Home, first.Result)
	assert.Equal(t, "Switzerland", first.Country)
	require.NotNil(t, first.Date)
	assert.Equal(t, time.Date(2024, 8, 3, 0, 0, 0, 0, time.UTC), *first.Date)
	assert.True(t, first.HasGoals)
	assert.Equal(t, 2.0, first.HomeGoals)
	assert.Equal(t, 1.0, first.AwayGoals)

	htr, ok := first.Stat("HTR")
	require.True(t, ok)
	assert.Equal(t, 2.0, htr)
	hs, _ := first.Stat("HS")
	assert.Equal(t, 12.0, hs)
	_, ok = first.Stat("HomeTeam")
	assert.False(t, ok)

	second := table.Records[1]
	require.NotNil(t, second.Date)
	assert.Equal(t, time.Date(2024, 8, 10, 0, 0, 0, 0, time.UTC), *second.Date, "day-first fallback")
}

func TestParseSchemaB(t *testing.T) {
	table, _, err := Parse(strings.NewReader(schemaBCSV), 0)
	require.NoError(t, err)

	assert.Equal(t, SchemaB, table.Schema)
	require.Len(t, table.Records, 2)
	assert.Equal(t, "Aarhus", table.Records[0].HomeTeam)
	assert.Equal(t, match.Away, table.Records[1].Result)
	assert.Equal(t, 1.0, table.Records[1].HomeGoals)
	assert.Equal(t, 2.0, table.Records[1].AwayGoals)
	_, ok := table.Records[0].Stat("Season")
	assert.False(t, ok)
}

func TestParseNumericResultEncodings(t *testing.T) {
	csv := "HomeTeam,AwayTeam,FTR\nA,B,2\nA,B,1\nA,B,0\nA,B,3.1\nA,B,1.6\n"
	table, _, err := Parse(strings.NewReader(csv), 0)
	require.NoError(t, err)

	got := make([]match.Outcome, 0, len(table.Records))
	for _, r := range table.Records {
		got = append(got, r.Result)
	}
	assert.Equal(t, []match.Outcome{match.Home, match.Draw, match.Away, match.Home, match.Draw}, got)
	assert.False(t, table.HasDate)
}

func TestParseLatin1Fallback(t *testing.T) {
	// "Zürich" encoded as ISO-8859-1.
	raw := []byte("HomeTeam,AwayTeam,FTR\nZ\xfcrich,Basel,H\n")
	table, _, err := Parse(strings.NewReader(string(raw)), 0)
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, "Zürich", table.Records[0].HomeTeam)
}

func TestParseUnknownSchemaAndEmpty(t *testing.T) {
	table, _, err := Parse(strings.NewReader("Team,Score\nA,1\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, SchemaUnknown, table.Schema)
	assert.False(t, table.HasRequiredColumns())

	_, _, err = Parse(strings.NewReader(""), 0)
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestParseMaxRows(t *testing.T) {
	table, stats, err := Parse(strings.NewReader(schemaACSV), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rows)
	assert.Len(t, table.Records, 2)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2023-05-01", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"2023-05-01 19:45:00", time.Date(2023, 5, 1, 19, 45, 0, 0, time.UTC), true},
		{"01/05/2023", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"01/05/23", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"45047", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDetectSchemaPrefersB(t *testing.T) {
	assert.Equal(t, SchemaB, DetectSchema([]string{"HomeTeam", "AwayTeam", "FTR", "Home", "Away", "Res"}))
	assert.Equal(t, SchemaA, DetectSchema([]string{"HomeTeam", "AwayTeam", "FTR"}))
	assert.Equal(t, SchemaUnknown, DetectSchema([]string{"HomeTeam", "AwayTeam"}))
}

func TestLoaderMissingFileReturnsEmpty(t *testing.T) {
	loader := NewLoader(Paths{Dataset1: "/nonexistent/data1.csv"}, testLogger())

	table, reason := loader.Load(context.Background(), DatasetEuropean)
	assert.Same(t, Empty, table)
	assert.True(t, table.IsEmpty())
	assert.Equal(t, match.DataUnavailable, reason)

	_, reason = loader.Load(context.Background(), 9)
	assert.Equal(t, match.DataUnavailable, reason)
}

func TestLoaderMissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data1.csv", "Team,Score\nA,1\n")
	loader := NewLoader(Paths{Dataset1: path}, testLogger())

	table, reason := loader.Load(context.Background(), DatasetEuropean)
	assert.Equal(t, match.MissingColumns, reason)
	assert.False(t, table.Usable())
}

func TestLoaderDatasetTwoPreference(t *testing.T) {
	dir := t.TempDir()
	fallback := writeFile(t, dir, "secondary/data2.csv", schemaBCSV)

	t.Run("main in schema A with Swiss rows", func(t *testing.T) {
		main := writeFile(t, dir, "a/data2.csv", schemaACSV)
		loader := NewLoader(Paths{Dataset2: main, Dataset2Fallback: fallback}, testLogger())
		table, reason := loader.Load(context.Background(), DatasetOthers)
		assert.Equal(t, match.NoFallback, reason)
		assert.Equal(t, main, table.Source)
		assert.Equal(t, SchemaA, table.Schema)
		assert.Equal(t, DatasetOthers, table.ID)
	})

	t.Run("main in schema A without Swiss rows", func(t *testing.T) {
		main := writeFile(t, dir, "b/data2.csv", strings.ReplaceAll(schemaACSV, "Switzerland", "Austria"))
		loader := NewLoader(Paths{Dataset2: main, Dataset2Fallback: fallback}, testLogger())
		table, _ := loader.Load(context.Background(), DatasetOthers)
		assert.Equal(t, main, table.Source)
	})

	t.Run("main in schema B uses secondary", func(t *testing.T) {
		main := writeFile(t, dir, "c/data2.csv", schemaBCSV)
		loader := NewLoader(Paths{Dataset2: main, Dataset2Fallback: fallback}, testLogger())
		table, _ := loader.Load(context.Background(), DatasetOthers)
		assert.Equal(t, fallback, table.Source)
	})

	t.Run("main missing uses secondary", func(t *testing.T) {
		loader := NewLoader(Paths{Dataset2: filepath.Join(dir, "none.csv"), Dataset2Fallback: fallback}, testLogger())
		table, reason := loader.Load(context.Background(), DatasetOthers)
		assert.Equal(t, match.NoFallback, reason)
		assert.Equal(t, fallback, table.Source)
		assert.Equal(t, SchemaB, table.Schema)
	})
}

type countingSource struct {
	calls int32
	table *Table
}

func (s *countingSource) Load(ctx context.Context, id int) (*Table, match.FallbackReason) {
	atomic.AddInt32(&s.calls, 1)
	if s.table == nil {
		return Empty, match.DataUnavailable
	}
	return s.table, match.NoFallback
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return errors.New("key not found")
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	m.sets++
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func parsedTable(t *testing.T, csv string) *Table {
	t.Helper()
	table, _, err := Parse(strings.NewReader(csv), 0)
	require.NoError(t, err)
	return table
}

func TestStoreLoadIsIdempotent(t *testing.T) {
	source := &countingSource{table: parsedTable(t, schemaACSV)}
	store := NewStore(source, nil, time.Hour, testLogger())
	ctx := context.Background()

	first, reason := store.Get(ctx, DatasetEuropean)
	require.Equal(t, match.NoFallback, reason)
	second, _ := store.Get(ctx, DatasetEuropean)

	assert.Equal(t, first.Len(), second.Len())
	assert.Equal(t, first.Schema, second.Schema)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&source.calls))
	assert.Equal(t, map[int]int{DatasetEuropean: 3}, store.Loaded())
}

func TestStoreConcurrentFirstAccessLoadsOnce(t *testing.T) {
	source := &countingSource{table: parsedTable(t, schemaACSV)}
	store := NewStore(source, nil, time.Hour, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table, _ := store.Get(context.Background(), DatasetEuropean)
			assert.Equal(t, 3, table.Len())
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&source.calls), int32(2))
}

func TestStoreSharedCacheTier(t *testing.T) {
	shared := newMemoryCache()
	source := &countingSource{table: parsedTable(t, schemaACSV)}
	ctx := context.Background()

	first := NewStore(source, shared, time.Hour, testLogger())
	table, _ := first.Get(ctx, DatasetEuropean)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, 1, shared.sets)

	// A second process sharing the cache does not touch its source.
	otherSource := &countingSource{}
	second := NewStore(otherSource, shared, time.Hour, testLogger())
	fromShared, reason := second.Get(ctx, DatasetEuropean)
	assert.Equal(t, match.NoFallback, reason)
	assert.Equal(t, 3, fromShared.Len())
	assert.Equal(t, SchemaA, fromShared.Schema)
	assert.Equal(t, match.Home, fromShared.Records[0].Result)
	assert.Equal(t, int32(0), atomic.LoadInt32(&otherSource.calls))
}

func TestStoreClearAndEmptyNotCached(t *testing.T) {
	shared := newMemoryCache()
	source := &countingSource{}
	store := NewStore(source, shared, time.Hour, testLogger())
	ctx := context.Background()

	table, reason := store.Get(ctx, DatasetOthers)
	assert.True(t, table.IsEmpty())
	assert.Equal(t, match.DataUnavailable, reason)
	store.Get(ctx, DatasetOthers)
	assert.Equal(t, int32(2), atomic.LoadInt32(&source.calls))

	source.table = parsedTable(t, schemaBCSV)
	table, _ = store.Get(ctx, DatasetOthers)
	assert.Equal(t, 2, table.Len())

	require.NoError(t, store.Clear(ctx, DatasetOthers))
	assert.Empty(t, store.Loaded())
	var cached Table
	assert.Error(t, shared.Get(ctx, CacheKey(DatasetOthers), &cached))

	refreshed, _ := store.Refresh(ctx, DatasetOthers)
	assert.Equal(t, 2, refreshed.Len())
}

func TestTeamIndexCachesByFingerprint(t *testing.T) {
	table := parsedTable(t, schemaACSV)
	index := NewTeamIndex()

	teams := index.Teams(table)
	assert.Equal(t, []string{"Basel", "Lugano", "Sion"}, teams)

	again := index.Teams(table)
	assert.Same(t, &teams[0], &again[0], "second call served from cache")

	assert.Nil(t, index.Teams(Empty))
	assert.Equal(t, "0|3|Country,Date,HomeTeam,AwayTeam,FTHG,FTAG,FTR,HTR,HS,AS", table.Fingerprint())
}

func TestTeamIndexSeparatesDatasets(t *testing.T) {
	cols := []string{"HomeTeam", "AwayTeam", "FTR"}
	european := &Table{ID: DatasetEuropean, Columns: cols, Records: []Record{
		{HomeTeam: "Arsenal", AwayTeam: "Chelsea"},
	}}
	others := &Table{ID: DatasetOthers, Columns: cols, Records: []Record{
		{HomeTeam: "Basel", AwayTeam: "Sion"},
	}}
	index := NewTeamIndex()

	assert.NotEqual(t, european.Fingerprint(), others.Fingerprint())
	assert.Equal(t, []string{"Arsenal", "Chelsea"}, index.Teams(european))
	assert.Equal(t, []string{"Basel", "Sion"}, index.Teams(others))
}

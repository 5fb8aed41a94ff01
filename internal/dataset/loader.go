package dataset

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/match"
	"github.com/stitts-dev/match-predictor/pkg/logger"
)

// Dataset ids: European leagues and the other leagues.
const (
	DatasetEuropean = 1
	DatasetOthers   = 2

	formatSampleRows = 100
	preferredCountry = "Switzerland"
)

// Source produces tables by dataset id.
type Source interface {
	Load(ctx context.Context, id int) (*Table, match.FallbackReason)
}

// Paths configures where each dataset lives on disk.
type Paths struct {
	Dataset1         string
	Dataset2         string
	Dataset2Fallback string
}

// Loader reads datasets from disk. It never returns an error for missing
// data; callers get Empty and a fallback reason instead.
type Loader struct {
	paths  Paths
	logger *logrus.Entry
}

func NewLoader(paths Paths, logger *logrus.Logger) *Loader {
	return &Loader{
		paths:  paths,
		logger: logger.WithField("component", "dataset_loader"),
	}
}

func (l *Loader) Load(ctx context.Context, id int) (*Table, match.FallbackReason) {
	if err := ctx.Err(); err != nil {
		return Empty, match.DataUnavailable
	}

	path, err := l.resolvePath(id)
	if err != nil {
		logger.WithDataset(l.logger, id).WithError(err).Warn("No dataset file available")
		return Empty, match.DataUnavailable
	}

	table, stats, err := readFile(path, 0)
	if err != nil {
		l.logger.WithFields(logrus.Fields{
			"dataset": id,
			"path":    path,
		}).WithError(err).Warn("Dataset unreadable, using fallback heuristics")
		return Empty, match.DataUnavailable
	}
	table.ID = id
	table.Source = path

	entry := l.logger.WithFields(logrus.Fields{
		"dataset":        id,
		"path":           path,
		"schema":         table.Schema.String(),
		"rows":           table.Len(),
		"skipped_result": stats.SkippedResult,
		"undated":        stats.UndatedRows,
	})
	if !table.HasRequiredColumns() {
		entry.Warn("Dataset is missing team/result columns")
		return table, match.MissingColumns
	}
	if table.IsEmpty() {
		entry.Warn("Dataset has no usable rows")
		return Empty, match.DataUnavailable
	}
	entry.Info("Dataset loaded")
	return table, match.NoFallback
}

// resolvePath picks the file for a dataset id. Dataset 2 prefers the main
// file when it is in schema A, and otherwise falls back to the secondary file.
func (l *Loader) resolvePath(id int) (string, error) {
	switch id {
	case DatasetEuropean:
		if !fileExists(l.paths.Dataset1) {
			return "", fmt.Errorf("dataset 1 not found at %q", l.paths.Dataset1)
		}
		return l.paths.Dataset1, nil
	case DatasetOthers:
		return l.resolveOthers()
	}
	return "", fmt.Errorf("unknown dataset id %d", id)
}

func (l *Loader) resolveOthers() (string, error) {
	main, fallback := l.paths.Dataset2, l.paths.Dataset2Fallback
	mainOK, fallbackOK := fileExists(main), fallback != "" && fileExists(fallback)

	if !mainOK {
		if fallbackOK {
			l.logger.WithField("path", fallback).Info("Main dataset 2 missing, using secondary file")
			return fallback, nil
		}
		return "", fmt.Errorf("dataset 2 not found at %q or %q", main, fallback)
	}

	sample, _, err := readFile(main, formatSampleRows)
	if err != nil {
		if fallbackOK {
			l.logger.WithError(err).Warn("Main dataset 2 sample read failed, using secondary file")
			return fallback, nil
		}
		return main, nil
	}

	switch {
	case sample.Schema == SchemaA && hasCountry(sample, preferredCountry):
		l.logger.WithField("path", main).Debug("Dataset 2 main file has schema A with Swiss rows")
		return main, nil
	case sample.Schema == SchemaA:
		l.logger.WithField("path", main).Debug("Dataset 2 main file has schema A")
		return main, nil
	case fallbackOK:
		l.logger.WithField("path", fallback).Info("Main dataset 2 has the wrong format, using secondary file")
		return fallback, nil
	}
	return main, nil
}

func hasCountry(t *Table, country string) bool {
	for _, r := range t.Records {
		if r.Country == country {
			return true
		}
	}
	return false
}

func readFile(path string, maxRows int) (*Table, ParseStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ParseStats{}, err
	}
	defer f.Close()
	return Parse(f, maxRows)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

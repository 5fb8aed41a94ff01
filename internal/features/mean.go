package features

import (
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/match-predictor/internal/dataset"
	"github.com/stitts-dev/match-predictor/internal/match"
)

// MeanForTeams averages every numeric column over the direct fixtures
// (home hosting away) and aligns the result to the schema. The half-time
// result mean is snapped back to its H=1, D=2, A=3 code.
func MeanForTeams(home, away string, schema Schema, table *dataset.Table) (Vector, match.FallbackReason) {
	if !table.Usable() {
		return Vector{}, match.DataUnavailable
	}
	home, away = strings.TrimSpace(home), strings.TrimSpace(away)

	var rows []dataset.Record
	for _, r := range table.Records {
		if strings.TrimSpace(r.HomeTeam) == home && strings.TrimSpace(r.AwayTeam) == away {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return Vector{}, match.NoHeadToHead
	}

	var v Vector
	for _, col := range table.Columns {
		vals := make([]float64, 0, len(rows))
		for _, r := range rows {
			if val, ok := r.Stat(col); ok {
				vals = append(vals, val)
			}
		}
		if len(vals) == 0 {
			continue
		}
		mean := stat.Mean(vals, nil)
		if col == "HTR" {
			mean = snapHalfTime(mean)
		}
		v.Append(col, mean)
	}
	if v.IsEmpty() {
		return Vector{}, match.NoFeatureVector
	}

	aligned, supplied := Align(v, schema)
	if supplied == 0 {
		return Vector{}, match.NoFeatureVector
	}
	return aligned, match.NoFallback
}

func snapHalfTime(mean float64) float64 {
	switch {
	case mean < 1.5:
		return 1
	case mean < 2.5:
		return 2
	}
	return 3
}

package features

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/dataset"
	"github.com/stitts-dev/match-predictor/internal/match"
	"github.com/stitts-dev/match-predictor/pkg/logger"
)

// StatColumns are the numeric match statistics the classifiers were trained on.
var StatColumns = []string{
	"FTHG", "FTAG", "HTHG", "HTAG", "HS", "AS", "HST", "AST",
	"HF", "AF", "HC", "AC", "HY", "AY", "HR", "AR", "B365H",
	"B365D", "B365A", "MaxD", "MaxA", "AvgH", "B365<2.5",
	"Max>2.5", "Max<2.5", "B365AHH", "B365AHA", "MaxAHH",
	"MaxAHA", "B365CD", "B365CA", "MaxCD", "MaxCA", "AvgCH",
	"B365C<2.5", "MaxC>2.5", "MaxC<2.5", "AvgC<2.5",
	"B365CAHH", "B365CAHA", "MaxCAHH", "MaxCAHA",
}

// awayOriented columns describe the away side and come from the away team's
// away matches.
var awayOriented = []string{"FTAG", "AS", "AST", "AF", "AC", "AY", "AR"}

// FormColumns are the engineered recent-form features.
var FormColumns = []string{
	"home_points", "away_points",
	"home_goals_scored", "home_goals_conceded",
	"away_goals_scored", "away_goals_conceded",
	"home_wins", "away_wins",
	"home_goal_diff", "away_goal_diff", "form_goal_diff",
}

const (
	formWindow        = 5
	generalSampleRows = 100
	homePrefix        = "HomeTeam_"
	awayPrefix        = "AwayTeam_"
)

// Builder assembles classifier input rows from a dataset table.
type Builder struct {
	teams  *dataset.TeamIndex
	logger *logrus.Entry
}

func NewBuilder(teams *dataset.TeamIndex, logger *logrus.Logger) *Builder {
	if teams == nil {
		teams = dataset.NewTeamIndex()
	}
	return &Builder{
		teams:  teams,
		logger: logger.WithField("component", "feature_builder"),
	}
}

// Build returns a vector shaped for the schema. Count-only schemas use the
// head-to-head mean path first. An empty vector comes back with
// NoFeatureVector.
func (b *Builder) Build(home, away string, schema Schema, table *dataset.Table) (Vector, match.FallbackReason) {
	entry := logger.WithMatch(b.logger, home, away)

	if !table.Usable() || schema.Size() == 0 {
		entry.Warn("Cannot build features without a usable table and schema")
		return Vector{}, match.NoFeatureVector
	}

	if !schema.Named() {
		if v, reason := MeanForTeams(home, away, schema, table); reason == match.NoFallback {
			return v, reason
		}
	}

	raw, reason := b.Raw(home, away, table)
	aligned, supplied := Align(raw, schema)
	if supplied == 0 {
		entry.WithField("expected", schema.Size()).Warn("No expected feature could be supplied")
		return Vector{}, match.NoFeatureVector
	}
	if !schema.Named() && raw.Len() != schema.Count {
		entry.WithFields(logrus.Fields{
			"built":    raw.Len(),
			"expected": schema.Count,
		}).Warn("Feature count differs from model, truncating or padding")
		if reason == match.NoFallback {
			reason = match.SchemaMismatch
		}
	}
	return aligned, reason
}

// Raw builds the unaligned row: statistic means, form features and one-hot
// team columns.
func (b *Builder) Raw(home, away string, table *dataset.Table) (Vector, match.FallbackReason) {
	home, away = strings.TrimSpace(home), strings.TrimSpace(away)
	reason := match.NoFallback

	stats, found := statMeans(home, away, table)
	if !found {
		b.logger.WithFields(logrus.Fields{
			"home_team": home,
			"away_team": away,
		}).Warn("Teams not found in dataset, using general averages")
		reason = match.TeamNotFound
	}

	var v Vector
	for _, col := range StatColumns {
		v.Append(col, stats[col])
	}

	hf := recentFormStats(home, table)
	af := recentFormStats(away, table)
	homeDiff := hf.scored - hf.conceded
	awayDiff := af.scored - af.conceded
	v.Append("home_points", hf.points)
	v.Append("away_points", af.points)
	v.Append("home_goals_scored", hf.scored)
	v.Append("home_goals_conceded", hf.conceded)
	v.Append("away_goals_scored", af.scored)
	v.Append("away_goals_conceded", af.conceded)
	v.Append("home_wins", hf.wins)
	v.Append("away_wins", af.wins)
	v.Append("home_goal_diff", homeDiff)
	v.Append("away_goal_diff", awayDiff)
	v.Append("form_goal_diff", homeDiff-awayDiff)

	teams := b.teams.Teams(table)
	for _, team := range teams {
		v.Append(homePrefix+team, indicator(strings.TrimSpace(team) == home))
	}
	for _, team := range teams {
		v.Append(awayPrefix+team, indicator(strings.TrimSpace(team) == away))
	}
	return v, reason
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// statMeans averages the statistic columns for the fixture. The second
// result is false when neither team has any rows.
func statMeans(home, away string, table *dataset.Table) (map[string]float64, bool) {
	var homeHome, awayAway, either []dataset.Record
	for _, r := range table.Records {
		h, a := strings.TrimSpace(r.HomeTeam), strings.TrimSpace(r.AwayTeam)
		if h == home {
			homeHome = append(homeHome, r)
		}
		if a == away {
			awayAway = append(awayAway, r)
		}
		if h == home || a == home || h == away || a == away {
			either = append(either, r)
		}
	}

	available := make([]string, 0, len(StatColumns))
	for _, col := range StatColumns {
		if table.HasColumn(col) {
			available = append(available, col)
		}
	}

	switch {
	case len(homeHome) > 0 && len(awayAway) > 0:
		out := zeroFilledMeans(homeHome, available)
		awayStats := zeroFilledMeans(awayAway, available)
		for _, col := range awayOriented {
			if v, ok := awayStats[col]; ok {
				out[col] = v
			}
		}
		return out, true
	case len(either) > 0:
		return zeroFilledMeans(either, available), true
	}

	sample := table.Records
	if len(sample) > generalSampleRows {
		sample = sample[:generalSampleRows]
	}
	return zeroFilledMeans(sample, available), false
}

// zeroFilledMeans treats a missing cell as zero, so every row counts toward
// every column.
func zeroFilledMeans(rows []dataset.Record, columns []string) map[string]float64 {
	out := make(map[string]float64, len(columns))
	if len(rows) == 0 {
		return out
	}
	for _, col := range columns {
		var sum float64
		for _, r := range rows {
			if v, ok := r.Stat(col); ok && !math.IsNaN(v) {
				sum += v
			}
		}
		out[col] = sum / float64(len(rows))
	}
	return out
}

type formStats struct {
	points   float64
	scored   float64
	conceded float64
	wins     float64
}

// recentFormStats looks at the team's last five rows in file order, as if
// the fixture being predicted were appended at the end of the table.
func recentFormStats(team string, table *dataset.Table) formStats {
	var fs formStats
	name := strings.ToLower(team)
	if name == "" {
		return fs
	}

	n := 0
	for i := len(table.Records) - 1; i >= 0 && n < formWindow; i-- {
		r := table.Records[i]
		isHome := strings.ToLower(strings.TrimSpace(r.HomeTeam)) == name
		isAway := strings.ToLower(strings.TrimSpace(r.AwayTeam)) == name
		if !isHome && !isAway {
			continue
		}
		n++
		switch r.Result.Perspective(isHome) {
		case 'W':
			fs.points += 3
			fs.wins++
		case 'D':
			fs.points++
		}
		if r.HasGoals {
			if isHome {
				fs.scored += r.HomeGoals
				fs.conceded += r.AwayGoals
			} else {
				fs.scored += r.AwayGoals
				fs.conceded += r.HomeGoals
			}
		}
	}
	if n > 0 {
		fs.scored /= float64(n)
		fs.conceded /= float64(n)
	}
	return fs
}

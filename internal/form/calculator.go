package form

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/dataset"
	"github.com/stitts-dev/match-predictor/internal/match"
)

// DefaultOverrides covers teams whose data files are known to lack fixtures.
var DefaultOverrides = map[string]string{
	"Grasshoppers": "WLDWL",
	"Lausanne":     "LLWWW",
}

const (
	hashPrime      = 7919
	minVariantLen  = 3
	hashWinCutoff  = 40
	hashDrawCutoff = 70
)

// Calculator derives recent form from a dataset table.
type Calculator struct {
	overrides map[string]Form
	logger    *logrus.Entry
}

func NewCalculator(logger *logrus.Logger) *Calculator {
	c := &Calculator{
		overrides: make(map[string]Form, len(DefaultOverrides)),
		logger:    logger.WithField("component", "form_calculator"),
	}
	for team, s := range DefaultOverrides {
		if f, err := Parse(s); err == nil {
			c.overrides[team] = f
		}
	}
	return c
}

// RecentForm returns the team's last five results. It never fails: teams
// with no rows get a manual override or a synthetic form derived from the
// name, and the reason says which.
func (c *Calculator) RecentForm(team string, table *dataset.Table) (Form, match.FallbackReason) {
	name := strings.TrimSpace(team)

	if !table.Usable() {
		return c.noData(name, match.SyntheticForm)
	}

	rows, isHome := matchTiers(name, table.Records)
	if len(rows) == 0 {
		return c.noData(name, match.TeamNotFound)
	}

	ordered := orderByRecency(rows, table.HasDate)
	if len(ordered) == 0 {
		return c.noData(name, match.TeamNotFound)
	}
	results := make([]byte, 0, Length)
	for _, r := range ordered {
		if len(results) == Length {
			break
		}
		results = append(results, r.Result.Perspective(isHome(r)))
	}

	f := fromResults(results)
	c.logger.WithFields(logrus.Fields{
		"team":   name,
		"form":   f.Raw(),
		"played": f.Played(),
	}).Debug("Computed recent form")
	return f, match.NoFallback
}

func (c *Calculator) noData(name string, reason match.FallbackReason) (Form, match.FallbackReason) {
	if f, ok := c.overrides[name]; ok {
		c.logger.WithField("team", name).Info("Using manual form override")
		return f, match.ManualOverride
	}
	f := HashForm(name)
	c.logger.WithFields(logrus.Fields{
		"team":   name,
		"form":   f.String(),
		"reason": string(reason),
	}).Info("Generated synthetic form")
	return f, reason
}

// HashForm is a deterministic stand-in form built from the team name.
func HashForm(team string) Form {
	sum := md5.Sum([]byte(strings.TrimSpace(team)))
	h, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)

	var f Form
	for i := range f {
		v := (h + uint64(i)*hashPrime) % 100
		switch {
		case v < hashWinCutoff:
			f[i] = 'W'
		case v < hashDrawCutoff:
			f[i] = 'D'
		default:
			f[i] = 'L'
		}
	}
	return f
}

type nameMatcher func(cell string) bool

// matchTiers tries each name matching tier in order and stops at the first
// that yields rows. The returned predicate tells whether the team was the
// home side of a row under that tier.
func matchTiers(name string, records []dataset.Record) ([]dataset.Record, func(dataset.Record) bool) {
	for _, m := range tiers(name) {
		var rows []dataset.Record
		for _, r := range records {
			if m(r.HomeTeam) || m(r.AwayTeam) {
				rows = append(rows, r)
			}
		}
		if len(rows) > 0 {
			matcher := m
			return rows, func(r dataset.Record) bool { return matcher(r.HomeTeam) }
		}
	}
	return nil, nil
}

func tiers(name string) []nameMatcher {
	lower := strings.ToLower(name)
	out := []nameMatcher{exactMatcher(name)}
	for _, v := range Variations(name) {
		out = append(out, exactMatcher(v))
	}
	out = append(out,
		func(cell string) bool {
			return strings.ToLower(strings.TrimSpace(cell)) == lower
		},
		func(cell string) bool {
			cell = strings.ToLower(strings.TrimSpace(cell))
			if cell == "" || lower == "" {
				return false
			}
			return strings.Contains(cell, lower) || strings.Contains(lower, cell)
		},
	)
	return out
}

func exactMatcher(name string) nameMatcher {
	return func(cell string) bool {
		return strings.TrimSpace(cell) == name
	}
}

// Variations strips the common club affixes from a name. Candidates shorter
// than three characters are dropped.
func Variations(name string) []string {
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if len([]rune(v)) < minVariantLen || v == name {
			return
		}
		for _, existing := range out {
			if existing == v {
				return
			}
		}
		out = append(out, v)
	}
	if strings.HasPrefix(name, "FC ") {
		add(name[3:])
	}
	if strings.HasSuffix(name, " FC") {
		add(strings.TrimSuffix(name, " FC"))
	}
	if strings.Contains(name, "Club") {
		add(strings.Join(strings.Fields(strings.ReplaceAll(name, "Club", "")), " "))
	}
	return out
}

// orderByRecency sorts dated rows newest first. Undated rows are dropped
// when the table has a Date column; without one the file is assumed to be
// in chronological order.
func orderByRecency(rows []dataset.Record, hasDate bool) []dataset.Record {
	if !hasDate {
		out := make([]dataset.Record, len(rows))
		for i, r := range rows {
			out[len(rows)-1-i] = r
		}
		return out
	}
	out := make([]dataset.Record, 0, len(rows))
	for _, r := range rows {
		if r.Date != nil {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(*out[j].Date)
	})
	return out
}

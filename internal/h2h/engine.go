package h2h

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/dataset"
	"github.com/stitts-dev/match-predictor/internal/form"
	"github.com/stitts-dev/match-predictor/internal/match"
	"github.com/stitts-dev/match-predictor/pkg/logger"
)

const defaultShare = 33.3

// Tally counts past meetings from the home team's point of view.
type Tally struct {
	HomeWins int `json:"home_wins"`
	Draws    int `json:"draws"`
	AwayWins int `json:"away_wins"`
	Direct   int `json:"direct"`
	Reversed int `json:"reversed"`
}

func (t Tally) Total() int {
	return t.Direct + t.Reversed
}

// Percentages converts the tally to a percentage triple.
func (t Tally) Percentages() match.Triple {
	total := t.Total()
	if total == 0 {
		return match.Triple{Home: defaultShare, Draw: defaultShare, Away: defaultShare}
	}
	n := float64(total)
	return match.Triple{
		Home: float64(t.HomeWins) / n * 100,
		Draw: float64(t.Draws) / n * 100,
		Away: float64(t.AwayWins) / n * 100,
	}
}

// Count tallies both fixture directions. Reversed fixtures have their
// result flipped so the home argument stays the frame of reference.
func Count(home, away string, table *dataset.Table) Tally {
	var t Tally
	if table.IsEmpty() {
		return t
	}
	home, away = strings.TrimSpace(home), strings.TrimSpace(away)
	for _, r := range table.Records {
		h, a := strings.TrimSpace(r.HomeTeam), strings.TrimSpace(r.AwayTeam)
		switch {
		case h == home && a == away:
			t.Direct++
			t.add(r.Result)
		case h == away && a == home:
			t.Reversed++
			t.add(flip(r.Result))
		}
	}
	return t
}

func (t *Tally) add(o match.Outcome) {
	switch o {
	case match.Home:
		t.HomeWins++
	case match.Draw:
		t.Draws++
	case match.Away:
		t.AwayWins++
	}
}

func flip(o match.Outcome) match.Outcome {
	switch o {
	case match.Home:
		return match.Away
	case match.Away:
		return match.Home
	}
	return o
}

// Engine computes historical outcome percentages for a fixture.
type Engine struct {
	forms  *form.Calculator
	logger *logrus.Entry
}

func NewEngine(forms *form.Calculator, logger *logrus.Logger) *Engine {
	return &Engine{
		forms:  forms,
		logger: logger.WithField("component", "h2h_engine"),
	}
}

// Probabilities returns percentages summing to 100. Without a usable table
// or without any meeting between the teams the strength fallback is used.
func (e *Engine) Probabilities(home, away string, table *dataset.Table) (match.Triple, match.FallbackReason) {
	entry := logger.WithMatch(e.logger, home, away)

	if !table.Usable() {
		entry.Warn("No data available for head-to-head, using form-based fallback")
		return e.fallback(home, away, table), match.DataUnavailable
	}

	tally := Count(home, away, table)
	if tally.Total() == 0 {
		entry.Debug("No head-to-head fixtures, using form-based fallback")
		return e.fallback(home, away, table), match.NoHeadToHead
	}

	entry.WithFields(logrus.Fields{
		"direct":   tally.Direct,
		"reversed": tally.Reversed,
	}).Debug("Head-to-head computed")
	return tally.Percentages(), match.NoFallback
}

func (e *Engine) fallback(home, away string, table *dataset.Table) match.Triple {
	homeForm, _ := e.forms.RecentForm(home, table)
	awayForm, _ := e.forms.RecentForm(away, table)
	return StrengthFallback(form.StrengthDiff(homeForm, awayForm))
}

// StrengthFallback maps a home-minus-away strength difference onto fixed
// outcome percentages summing to 100.
func StrengthFallback(diff float64) match.Triple {
	var p match.Triple
	abs := math.Abs(diff)

	switch {
	case abs < 0.03:
		p = match.Triple{Home: 0.33, Draw: 0.34, Away: 0.33}
	case abs < 0.08:
		if diff > 0 {
			p = match.Triple{Home: 0.38 + diff*2, Draw: 0.30, Away: 0.32 - diff*1.5}
		} else {
			p = match.Triple{Home: 0.32 - abs*1.5, Draw: 0.30, Away: 0.38 + abs*2}
		}
	case diff > 0.20:
		p = match.Triple{Home: 0.58, Draw: 0.24, Away: 0.18}
	case diff > 0.12:
		p = match.Triple{Home: 0.48, Draw: 0.30, Away: 0.22}
	case diff > 0.08:
		p = match.Triple{Home: 0.42, Draw: 0.32, Away: 0.26}
	case diff < -0.20:
		p = match.Triple{Home: 0.18, Draw: 0.24, Away: 0.58}
	case diff < -0.12:
		p = match.Triple{Home: 0.22, Draw: 0.30, Away: 0.48}
	case diff < -0.08:
		p = match.Triple{Home: 0.26, Draw: 0.32, Away: 0.42}
	default:
		p = match.Triple{Home: 0.35, Draw: 0.33, Away: 0.32}
	}

	out, _ := p.Normalize(100)
	return out
}

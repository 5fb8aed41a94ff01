package engine

import (
	"context"
	"strings"

	"github.com/stitts-dev/match-predictor/internal/category"
	"github.com/stitts-dev/match-predictor/internal/form"
	"github.com/stitts-dev/match-predictor/internal/h2h"
	"github.com/stitts-dev/match-predictor/internal/match"
)

// FormReport is a team's recent form as the engine sees it.
type FormReport struct {
	Team     string               `json:"team"`
	Category category.Category    `json:"category"`
	Form     form.Form            `json:"form"`
	Raw      string               `json:"raw"`
	Played   int                  `json:"played"`
	Strength float64              `json:"strength"`
	Fallback match.FallbackReason `json:"fallback,omitempty"`
}

func (e *Engine) TeamForm(ctx context.Context, team string) FormReport {
	team = strings.TrimSpace(team)
	cat := e.index.CategoryOf(team)
	table, _ := e.datasets.Get(ctx, e.index.DatasetID(cat))

	f, reason := e.forms.RecentForm(team, table)
	return FormReport{
		Team:     team,
		Category: cat,
		Form:     f,
		Raw:      f.Raw(),
		Played:   f.Played(),
		Strength: form.Strength(f),
		Fallback: reason,
	}
}

// HeadToHeadReport summarises past meetings between two teams.
type HeadToHeadReport struct {
	HomeTeam      string               `json:"home_team"`
	AwayTeam      string               `json:"away_team"`
	DatasetID     int                  `json:"dataset_id"`
	Meetings      h2h.Tally            `json:"meetings"`
	Probabilities match.Triple         `json:"probabilities"`
	Fallback      match.FallbackReason `json:"fallback,omitempty"`
}

func (e *Engine) HeadToHead(ctx context.Context, home, away string) (HeadToHeadReport, error) {
	home, away, err := validateFixture(home, away)
	if err != nil {
		return HeadToHeadReport{}, err
	}
	route := e.index.Route(home, away)
	table, _ := e.datasets.Get(ctx, route.DatasetID)

	probs, reason := e.h2h.Probabilities(home, away, table)
	return HeadToHeadReport{
		HomeTeam:      home,
		AwayTeam:      away,
		DatasetID:     route.DatasetID,
		Meetings:      h2h.Count(home, away, table),
		Probabilities: probs,
		Fallback:      reason,
	}, nil
}

package reconcile

import (
	"math"

	"github.com/stitts-dev/match-predictor/internal/match"
)

// closeTieMargin is how many percentage points below the maximum an outcome
// may sit and still count as tied.
const closeTieMargin = 5.0

// Rule names the decision branch that produced a label.
type Rule string

const (
	RuleModelPriority Rule = "model_priority"
	RuleHomeAwayTie   Rule = "home_away_tie"
	RuleHomeDrawTie   Rule = "home_draw_tie"
	RuleAwayDrawTie   Rule = "away_draw_tie"
	RuleThreeWayTie   Rule = "three_way_tie"
	RuleFallback      Rule = "fallback"
)

// Decision is the rule-table result for one fixture.
type Decision struct {
	Label     Label           `json:"label"`
	Rule      Rule            `json:"rule"`
	Model     match.Outcome   `json:"model"`
	Highest   []match.Outcome `json:"highest"`
	CloseTies []match.Outcome `json:"close_ties"`
}

type outcomeSet []match.Outcome

func (s outcomeSet) has(o match.Outcome) bool {
	for _, v := range s {
		if v == o {
			return true
		}
	}
	return false
}

// Decide applies the tie rules to the historical percentages. The model's
// prediction wins whenever history has one clean leader; double-chance
// labels only appear when two outcomes are level and the model picked the
// third.
func Decide(model match.Outcome, hist match.Triple) Decision {
	d := Decision{Model: model, Label: LabelOf(model), Rule: RuleModelPriority}
	if hist.Sum() <= 0 {
		return d
	}

	top := hist.Max()
	var highest, near outcomeSet
	for _, o := range match.Outcomes {
		v := hist.Get(o)
		switch {
		case v == top:
			highest = append(highest, o)
		case math.Abs(v-top) <= closeTieMargin:
			near = append(near, o)
		}
	}
	all := append(append(outcomeSet{}, highest...), near...)
	d.Highest, d.CloseTies = highest, near

	pair := func(a, b match.Outcome) bool {
		return (highest.has(a) && highest.has(b)) || (all.has(a) && all.has(b) && len(all) == 2)
	}

	switch {
	case len(highest) == 1 && len(near) == 0:
		return d
	case pair(match.Home, match.Away):
		d.Rule = RuleHomeAwayTie
		if model == match.Draw {
			d.Label = LabelHomeOrAway
		}
	case pair(match.Home, match.Draw):
		d.Rule = RuleHomeDrawTie
		if model != match.Home && model != match.Draw {
			d.Label = LabelHomeOrDraw
		}
	case pair(match.Away, match.Draw):
		d.Rule = RuleAwayDrawTie
		if model != match.Away && model != match.Draw {
			d.Label = LabelAwayOrDraw
		}
	case len(highest) == 3:
		d.Rule = RuleThreeWayTie
	default:
		d.Rule = RuleFallback
	}
	return d
}

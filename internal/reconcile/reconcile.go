package reconcile

import (
	"fmt"
	"strings"

	"github.com/stitts-dev/match-predictor/internal/classifier"
	"github.com/stitts-dev/match-predictor/internal/match"
)

// Input gathers everything one reconciliation needs.
type Input struct {
	RawPrediction string
	Probabilities []float64
	Classes       classifier.ClassIndex
	Historical    match.Triple
	StrengthDiff  float64
}

// Result is the reconciled outcome. Outcome follows the highest
// post-correction probability; DecisionLabel is the rule-table label kept
// for display.
type Result struct {
	Outcome                match.Outcome
	DecisionLabel          Label
	ProbabilityArgmaxLabel Label
	Probabilities          match.Triple
	Confidence             float64
	Decision               Decision
	FormCorrected          bool
	Fallbacks              match.Fallbacks
	Reasoning              string
}

// Reconcile runs the full pipeline. Only an unmappable raw prediction is an
// error.
func Reconcile(in Input) (Result, error) {
	model, err := ModelOutcome(in.RawPrediction, in.Classes)
	if err != nil {
		return Result{}, err
	}

	var res Result
	res.Decision = Decide(model, in.Historical)
	res.DecisionLabel = res.Decision.Label

	probs, reason := Assemble(in.Probabilities, in.Classes, in.Historical)
	res.Fallbacks.Add(reason)

	probs, res.FormCorrected = FormCorrection(probs, in.StrengthDiff)

	res.Probabilities = probs
	res.Outcome = probs.Argmax()
	res.ProbabilityArgmaxLabel = LabelOf(res.Outcome)
	res.Confidence = probs.Max()
	res.Reasoning = Explain(res, in.Historical)
	return res, nil
}

// Explain renders the decision path as a sentence list.
func Explain(res Result, hist match.Triple) string {
	var b strings.Builder
	d := res.Decision

	fmt.Fprintf(&b, "Model predicted %s.", LabelOf(d.Model).Display())
	if hist.Sum() > 0 {
		fmt.Fprintf(&b, " Historical split: home %.1f%%, draw %.1f%%, away %.1f%%.", hist.Home, hist.Draw, hist.Away)
	}

	switch d.Rule {
	case RuleModelPriority:
		b.WriteString(" Model prediction takes priority over the historical record.")
	case RuleHomeAwayTie, RuleHomeDrawTie, RuleAwayDrawTie:
		if d.Label.IsDoubleChance() {
			fmt.Fprintf(&b, " History is level between two outcomes the model did not pick, suggesting %s (%s).", d.Label.Display(), d.Label.Code())
		} else {
			b.WriteString(" History is level between two outcomes and the model breaks the tie.")
		}
	case RuleThreeWayTie:
		b.WriteString(" All outcomes are level historically, trusting the model.")
	}

	if res.FormCorrected {
		b.WriteString(" Probabilities were adjusted toward recent form.")
	}
	fmt.Fprintf(&b, " Most likely outcome: %s at %.1f%%.", res.ProbabilityArgmaxLabel.Display(), res.Confidence*100)
	return b.String()
}

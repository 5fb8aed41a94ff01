package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/match-predictor/internal/classifier"
	"github.com/stitts-dev/match-predictor/internal/match"
)

var canonical = classifier.NewClassIndex([]string{"0", "1", "2"})

func TestNormalizeRaw(t *testing.T) {
	tests := []struct {
		raw  string
		want match.Outcome
	}{
		{"0", match.Away},
		{"1", match.Draw},
		{"2", match.Home},
		{"0.5", match.Away},
		{"1.4", match.Away},
		{"1.5", match.Draw},
		{"2.4", match.Draw},
		{"2.5", match.Home},
		{"3.4", match.Home},
		{" 2 ", match.Home},
		{"H", match.Home},
		{"d", match.Draw},
		{"A", match.Away},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeRaw(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRawRejects(t *testing.T) {
	for _, raw := range []string{"", "3.5", "-1", "0.3", "1.45", "Home", "banana", "NaN"} {
		t.Run(raw, func(t *testing.T) {
			_, err := NormalizeRaw(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidModelOutput))

			var invalid *InvalidModelOutputError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, raw, invalid.Raw)
		})
	}
}

func TestModelOutcomeUsesClassLabels(t *testing.T) {
	oneBased := classifier.NewClassIndex([]string{"1", "2", "3"})

	got, err := ModelOutcome("1", oneBased)
	require.NoError(t, err)
	assert.Equal(t, match.Away, got)

	got, err = ModelOutcome("0", oneBased)
	require.NoError(t, err)
	assert.Equal(t, match.Away, got)

	named := classifier.NewClassIndex([]string{"Away", "Draw", "Home"})
	got, err = ModelOutcome("Away", named)
	require.NoError(t, err)
	assert.Equal(t, match.Away, got)

	_, err = ModelOutcome("Away", canonical)
	assert.ErrorIs(t, err, ErrInvalidModelOutput)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		model match.Outcome
		hist  match.Triple
		label Label
		rule  Rule
	}{
		{"model beats clean historical winner", match.Home, match.Triple{Home: 20, Draw: 25, Away: 55}, LabelHome, RuleModelPriority},
		{"model agrees with history", match.Away, match.Triple{Home: 20, Draw: 25, Away: 55}, LabelAway, RuleModelPriority},
		{"home draw tie, model away", match.Away, match.Triple{Home: 40, Draw: 40, Away: 20}, LabelHomeOrDraw, RuleHomeDrawTie},
		{"home draw tie, model home", match.Home, match.Triple{Home: 40, Draw: 40, Away: 20}, LabelHome, RuleHomeDrawTie},
		{"home draw tie, model draw", match.Draw, match.Triple{Home: 40, Draw: 40, Away: 20}, LabelDraw, RuleHomeDrawTie},
		{"home away tie, model draw", match.Draw, match.Triple{Home: 40, Draw: 20, Away: 40}, LabelHomeOrAway, RuleHomeAwayTie},
		{"home away tie, model home", match.Home, match.Triple{Home: 40, Draw: 20, Away: 40}, LabelHome, RuleHomeAwayTie},
		{"home away close tie", match.Draw, match.Triple{Home: 45, Draw: 13, Away: 42}, LabelHomeOrAway, RuleHomeAwayTie},
		{"away draw tie, model home", match.Home, match.Triple{Home: 23, Draw: 37, Away: 40}, LabelAwayOrDraw, RuleAwayDrawTie},
		{"away draw tie, model away", match.Away, match.Triple{Home: 23, Draw: 37, Away: 40}, LabelAway, RuleAwayDrawTie},
		{"three close, one leader", match.Away, match.Triple{Home: 34, Draw: 33, Away: 33}, LabelAway, RuleFallback},
		{"exact three way", match.Home, match.Triple{Home: 33.3, Draw: 33.3, Away: 33.3}, LabelHome, RuleHomeAwayTie},
		{"no history", match.Draw, match.Triple{}, LabelDraw, RuleModelPriority},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.model, tt.hist)
			assert.Equal(t, tt.label, d.Label)
			assert.Equal(t, tt.rule, d.Rule)
			assert.Equal(t, tt.model, d.Model)
		})
	}
}

func TestDecideRecordsTies(t *testing.T) {
	d := Decide(match.Home, match.Triple{Home: 45, Draw: 13, Away: 42})
	assert.Equal(t, []match.Outcome{match.Home}, d.Highest)
	assert.Equal(t, []match.Outcome{match.Away}, d.CloseTies)
}

func TestAssembleMapsByClassIndex(t *testing.T) {
	idx := classifier.NewClassIndex([]string{"H", "D", "A"})
	p, reason := Assemble([]float64{0.6, 0.3, 0.1}, idx, match.Triple{})
	assert.Equal(t, match.NoFallback, reason)
	assert.InDelta(t, 0.6, p.Home, 1e-9)
	assert.InDelta(t, 0.3, p.Draw, 1e-9)
	assert.InDelta(t, 0.1, p.Away, 1e-9)
}

func TestAssembleCorrectsLeakedPercentage(t *testing.T) {
	p, reason := Assemble([]float64{0.2, 0.15, 65.0}, canonical, match.Triple{})
	assert.Equal(t, match.NoFallback, reason)
	assert.InDelta(t, 0.65, p.Home, 0.005)
	assert.InDelta(t, 0.20, p.Away, 0.005)
	assert.InDelta(t, 0.15, p.Draw, 0.005)

	all, _ := Assemble([]float64{20, 30, 50}, canonical, match.Triple{})
	assert.InDelta(t, 0.5, all.Home, 1e-9)
	assert.InDelta(t, 1.0, all.Sum(), 1e-9)
}

func TestAssembleFallsBackToHistory(t *testing.T) {
	p, reason := Assemble(nil, canonical, match.Triple{Home: 50, Draw: 30, Away: 20})
	assert.Equal(t, match.NoModelProbabilities, reason)
	assert.InDelta(t, 0.5, p.Home, 1e-9)
	assert.InDelta(t, 0.3, p.Draw, 1e-9)
	assert.InDelta(t, 0.2, p.Away, 1e-9)

	p, reason = Assemble([]float64{0.2, 0.8}, classifier.NewClassIndex([]string{"win", "loss"}), match.Triple{})
	assert.Equal(t, match.NoModelProbabilities, reason)
	assert.Equal(t, match.Uniform, p)
}

func TestAssembleZeroMass(t *testing.T) {
	p, reason := Assemble([]float64{0, 0, 0}, canonical, match.Triple{Home: 40, Draw: 40, Away: 20})
	assert.Equal(t, match.ZeroProbabilityMass, reason)
	assert.Equal(t, match.Triple{Home: 0.33, Draw: 0.34, Away: 0.33}, p)
}

func TestProbabilityClosure(t *testing.T) {
	inputs := [][]float64{
		{0.1, 0.2, 0.7},
		{0.5, 0.5, 0.5},
		{0.01, 0.01, 0.01},
		{33, 33, 34},
		{0.2, 0.15, 65.0},
		{0, 0, 0},
		{-1, 0.4, 0.6},
		{0.3},
		nil,
	}
	hists := []match.Triple{{}, {Home: 20, Draw: 25, Away: 55}, {Home: 300, Draw: 0, Away: 0}}
	diffs := []float64{-0.3, -0.1, 0, 0.09, 0.2}

	for _, probs := range inputs {
		for _, hist := range hists {
			for _, diff := range diffs {
				res, err := Reconcile(Input{
					RawPrediction: "1",
					Probabilities: probs,
					Classes:       canonical,
					Historical:    hist,
					StrengthDiff:  diff,
				})
				require.NoError(t, err)
				p := res.Probabilities
				assert.InDelta(t, 1.0, p.Sum(), 0.01, "probs=%v hist=%v diff=%v", probs, hist, diff)
				for _, o := range match.Outcomes {
					assert.GreaterOrEqual(t, p.Get(o), 0.0)
					assert.LessOrEqual(t, p.Get(o), 1.0)
				}
			}
		}
	}
}

func TestFormCorrection(t *testing.T) {
	p := match.Triple{Home: 0.2, Draw: 0.3, Away: 0.5}

	same, applied := FormCorrection(p, 0.1)
	assert.False(t, applied)
	assert.Equal(t, p, same)

	out, applied := FormCorrection(p, 0.15)
	require.True(t, applied)
	assert.InDelta(t, 0.6*0.2+0.4*0.48, out.Home, 1e-9)
	assert.InDelta(t, 0.6*0.3+0.4*0.30, out.Draw, 1e-9)
	assert.InDelta(t, 0.6*0.5+0.4*0.22, out.Away, 1e-9)

	out, applied = FormCorrection(p, -0.11)
	require.True(t, applied)
	assert.InDelta(t, 0.6*0.2+0.4*0.26, out.Home, 1e-9)
	assert.InDelta(t, 0.6*0.5+0.4*0.42, out.Away, 1e-9)
}

func TestReconcileArgmaxDrivesOutcome(t *testing.T) {
	res, err := Reconcile(Input{
		RawPrediction: "0",
		Probabilities: []float64{0.2, 0.25, 0.55},
		Classes:       canonical,
		Historical:    match.Triple{Home: 40, Draw: 40, Away: 20},
	})
	require.NoError(t, err)

	assert.Equal(t, LabelHomeOrDraw, res.DecisionLabel)
	assert.Equal(t, RuleHomeDrawTie, res.Decision.Rule)
	assert.Equal(t, match.Home, res.Outcome)
	assert.Equal(t, LabelHome, res.ProbabilityArgmaxLabel)
	assert.InDelta(t, 0.55, res.Confidence, 1e-9)
	assert.False(t, res.FormCorrected)
	assert.Empty(t, res.Fallbacks)
	assert.Contains(t, res.Reasoning, "Home Team Win or Draw (1X)")
	assert.Contains(t, res.Reasoning, "Most likely outcome: Home Team Win at 55.0%")
}

func TestReconcileSurfacesInvalidOutput(t *testing.T) {
	_, err := Reconcile(Input{RawPrediction: "7", Classes: canonical})
	assert.ErrorIs(t, err, ErrInvalidModelOutput)
}

func TestLabelCodes(t *testing.T) {
	assert.Equal(t, "1", LabelHome.Code())
	assert.Equal(t, "X", LabelDraw.Code())
	assert.Equal(t, "2", LabelAway.Code())
	assert.Equal(t, "1X", LabelHomeOrDraw.Code())
	assert.Equal(t, "X2", LabelAwayOrDraw.Code())
	assert.Equal(t, "12", LabelHomeOrAway.Code())
	assert.True(t, LabelHomeOrAway.IsDoubleChance())
	assert.False(t, LabelDraw.IsDoubleChance())
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/category"
	"github.com/stitts-dev/match-predictor/internal/classifier"
	"github.com/stitts-dev/match-predictor/internal/dataset"
	"github.com/stitts-dev/match-predictor/internal/features"
	"github.com/stitts-dev/match-predictor/internal/form"
	"github.com/stitts-dev/match-predictor/internal/h2h"
	"github.com/stitts-dev/match-predictor/internal/match"
	"github.com/stitts-dev/match-predictor/internal/reconcile"
	"github.com/stitts-dev/match-predictor/pkg/logger"
)

const (
	suffixFormFallback = " (Form-Based Fallback)"
	suffixFallback     = " (Fallback)"
)

var ErrInvalidFixture = errors.New("invalid fixture")

// Datasets hands out tables by dataset id.
type Datasets interface {
	Get(ctx context.Context, id int) (*dataset.Table, match.FallbackReason)
}

// Prediction is the full result for one fixture.
type Prediction struct {
	HomeTeam               string            `json:"home_team"`
	AwayTeam               string            `json:"away_team"`
	Category               category.Category `json:"category"`
	League                 string            `json:"league,omitempty"`
	Mixed                  bool              `json:"mixed_categories"`
	DatasetID              int               `json:"dataset_id"`
	Outcome                match.Outcome     `json:"outcome"`
	DecisionLabel          reconcile.Label   `json:"decision_label"`
	ProbabilityArgmaxLabel reconcile.Label   `json:"probability_argmax_label"`
	Probabilities          match.Triple      `json:"probabilities"`
	Confidence             float64           `json:"confidence"`
	ModelType              string            `json:"model_type"`
	HistoricalProbs        match.Triple      `json:"historical_probabilities"`
	FormHome               form.Form         `json:"form_home"`
	FormAway               form.Form         `json:"form_away"`
	StrengthDiff           float64           `json:"strength_diff"`
	DecisionRule           reconcile.Rule    `json:"decision_rule"`
	Reasoning              string            `json:"reasoning"`
	Fallbacks              match.Fallbacks   `json:"fallbacks"`
}

// IsFallback reports whether the result came from a degraded path.
func (p *Prediction) IsFallback() bool {
	return strings.HasSuffix(p.ModelType, suffixFallback) || strings.HasSuffix(p.ModelType, suffixFormFallback)
}

// Deps are the collaborators an Engine is built from.
type Deps struct {
	Datasets Datasets
	Index    *category.Index
	Forms    *form.Calculator
	H2H      *h2h.Engine
	Features *features.Builder
	Models   map[int]*Model
}

// Engine produces predictions. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	datasets Datasets
	index    *category.Index
	forms    *form.Calculator
	h2h      *h2h.Engine
	features *features.Builder
	models   map[int]*Model
	logger   *logrus.Entry
}

func New(deps Deps, logger *logrus.Logger) *Engine {
	if deps.Forms == nil {
		deps.Forms = form.NewCalculator(logger)
	}
	if deps.H2H == nil {
		deps.H2H = h2h.NewEngine(deps.Forms, logger)
	}
	if deps.Features == nil {
		deps.Features = features.NewBuilder(dataset.NewTeamIndex(), logger)
	}
	if deps.Models == nil {
		deps.Models = map[int]*Model{}
	}
	return &Engine{
		datasets: deps.Datasets,
		index:    deps.Index,
		forms:    deps.Forms,
		h2h:      deps.H2H,
		features: deps.Features,
		models:   deps.Models,
		logger:   logger.WithField("component", "prediction_engine"),
	}
}

func validateFixture(home, away string) (string, string, error) {
	home, away = strings.TrimSpace(home), strings.TrimSpace(away)
	if home == "" || away == "" {
		return "", "", fmt.Errorf("%w: both teams are required", ErrInvalidFixture)
	}
	if strings.EqualFold(home, away) {
		return "", "", fmt.Errorf("%w: a team cannot play itself", ErrInvalidFixture)
	}
	return home, away, nil
}

// Predict runs routing, statistics, inference and reconciliation for one
// fixture. Missing data never fails the call; only an invalid fixture or an
// unmappable classifier output is returned as an error.
func (e *Engine) Predict(ctx context.Context, home, away string) (*Prediction, error) {
	home, away, err := validateFixture(home, away)
	if err != nil {
		return nil, err
	}

	route := e.index.Route(home, away)
	entry := logger.WithDataset(logger.WithMatch(e.logger, home, away), route.DatasetID).
		WithField("category", string(route.Category))
	if route.Mixed {
		entry.WithFields(logrus.Fields{
			"home_category": string(route.HomeCategory),
			"away_category": string(route.AwayCategory),
		}).Warn("Teams span categories, defaulting to European model")
	}

	p := &Prediction{
		HomeTeam:  home,
		AwayTeam:  away,
		Category:  route.Category,
		League:    route.League,
		Mixed:     route.Mixed,
		DatasetID: route.DatasetID,
	}
	modelName := ModelName(route.DatasetID)

	table, reason := e.datasets.Get(ctx, route.DatasetID)
	p.Fallbacks.Add(reason)

	var r match.FallbackReason
	p.FormHome, r = e.forms.RecentForm(home, table)
	p.Fallbacks.Add(r)
	p.FormAway, r = e.forms.RecentForm(away, table)
	p.Fallbacks.Add(r)
	p.StrengthDiff = form.StrengthDiff(p.FormHome, p.FormAway)

	p.HistoricalProbs, r = e.h2h.Probabilities(home, away, table)
	p.Fallbacks.Add(r)

	if !table.Usable() {
		entry.Warn("Dataset unavailable, predicting from recent form")
		e.strengthOnly(p, modelName+suffixFormFallback,
			"No historical dataset is available, so probabilities come from recent form strength.")
		return p, nil
	}

	model := e.models[route.DatasetID]
	if model == nil || model.Classifier == nil {
		entry.Warn(describeMissing(route.DatasetID))
		p.Fallbacks.Add(match.ClassifierError)
		e.strengthOnly(p, modelName+suffixFallback,
			"The classifier is not available, so probabilities come from recent form strength.")
		return p, nil
	}

	vec, r := e.features.Build(home, away, classifier.SchemaOf(model.Classifier), table)
	p.Fallbacks.Add(r)
	if vec.IsEmpty() {
		entry.Warn("No feature vector could be built, predicting from recent form")
		p.Fallbacks.Add(match.NoFeatureVector)
		e.strengthOnly(p, modelName+suffixFallback,
			"The classifier input could not be built for these teams, so probabilities come from recent form strength.")
		return p, nil
	}

	p.ModelType = modelName
	raw, proba := e.infer(model, vec, entry, p)

	res, err := reconcile.Reconcile(reconcile.Input{
		RawPrediction: raw,
		Probabilities: proba,
		Classes:       model.Classes,
		Historical:    p.HistoricalProbs,
		StrengthDiff:  p.StrengthDiff,
	})
	if err != nil {
		entry.WithError(err).Error("Classifier produced an invalid prediction")
		return nil, fmt.Errorf("%s: %w", modelName, err)
	}

	for _, f := range res.Fallbacks {
		p.Fallbacks.Add(f)
	}
	p.Outcome = res.Outcome
	p.DecisionLabel = res.DecisionLabel
	p.ProbabilityArgmaxLabel = res.ProbabilityArgmaxLabel
	p.Probabilities = res.Probabilities
	p.Confidence = res.Confidence
	p.DecisionRule = res.Decision.Rule
	p.Reasoning = res.Reasoning

	entry.WithFields(logrus.Fields{
		"outcome":        p.Outcome.String(),
		"decision_label": string(p.DecisionLabel),
		"rule":           string(p.DecisionRule),
		"model_type":     p.ModelType,
		"confidence":     p.Confidence,
	}).Info("Prediction completed")
	return p, nil
}

// infer calls the classifier. A failure on either call marks the result as
// a fallback. When Predict fails the most probable class stands in for it,
// and a neutral draw when no probabilities exist either.
func (e *Engine) infer(model *Model, vec features.Vector, entry *logrus.Entry, p *Prediction) (string, []float64) {
	degrade := func() {
		p.Fallbacks.Add(match.ClassifierError)
		p.ModelType = model.Name + suffixFallback
	}

	proba, perr := model.Classifier.PredictProba(vec.Values)
	if perr != nil {
		entry.WithError(perr).Warn("Classifier probabilities unavailable")
		proba = nil
		degrade()
	}

	raw, err := model.Classifier.Predict(vec.Values)
	if err == nil {
		return raw, proba
	}

	entry.WithError(err).Warn("Classifier prediction failed, using fallback")
	degrade()

	labels := model.Classifier.Classes()
	best, bestP := -1, -1.0
	for i, v := range proba {
		if _, ok := model.Classes.Outcome(i); ok && i < len(labels) && v > bestP {
			best, bestP = i, v
		}
	}
	if best >= 0 {
		return labels[best], proba
	}
	if l, ok := model.Classes.Label(match.Draw); ok {
		return l, proba
	}
	return match.Draw.Letter(), proba
}

// strengthOnly fills p from the form strength difference alone.
func (e *Engine) strengthOnly(p *Prediction, modelType, why string) {
	probs := h2h.StrengthFallback(p.StrengthDiff).Scale(0.01)
	p.ModelType = modelType
	p.Probabilities = probs
	p.Outcome = probs.Argmax()
	p.ProbabilityArgmaxLabel = reconcile.LabelOf(p.Outcome)
	p.DecisionLabel = p.ProbabilityArgmaxLabel
	p.DecisionRule = reconcile.RuleFallback
	p.Confidence = probs.Max()
	p.Reasoning = fmt.Sprintf("%s Home form %s, away form %s, strength difference %.3f. Most likely outcome: %s at %.1f%%.",
		why, p.FormHome, p.FormAway, p.StrengthDiff, p.ProbabilityArgmaxLabel.Display(), p.Confidence*100)
}

// Models describes every model slot.
func (e *Engine) Models() []ModelInfo {
	out := make([]ModelInfo, 0, 2)
	for _, id := range []int{category.EuropeanDataset, category.OtherDataset} {
		if m, ok := e.models[id]; ok {
			out = append(out, m.Info())
			continue
		}
		out = append(out, ModelInfo{Name: ModelName(id), DatasetID: id})
	}
	return out
}

// Index exposes the category index for the teams API.
func (e *Engine) Index() *category.Index {
	return e.index
}

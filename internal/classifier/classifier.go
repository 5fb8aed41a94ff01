package classifier

import (
	"errors"
	"strconv"
	"strings"

	"github.com/stitts-dev/match-predictor/internal/features"
	"github.com/stitts-dev/match-predictor/internal/match"
)

var (
	ErrFeatureCount = errors.New("feature count does not match model")
	ErrNoClasses    = errors.New("model declares no classes")
)

// Classifier is a trained outcome model.
type Classifier interface {
	Name() string
	// Predict returns the raw predicted label as the model emits it.
	Predict(x []float64) (string, error)
	// PredictProba returns one probability per entry of Classes.
	PredictProba(x []float64) ([]float64, error)
	Classes() []string
	FeatureNames() []string
	NFeatures() int
}

// SchemaOf describes the input shape a classifier expects.
func SchemaOf(c Classifier) features.Schema {
	if names := c.FeatureNames(); len(names) > 0 {
		return features.NamedSchema(names)
	}
	return features.CountSchema(c.NFeatures())
}

// ClassIndex maps a model's class positions onto canonical outcomes.
type ClassIndex struct {
	labels   []string
	outcomes []match.Outcome
	known    []bool
}

var labelOutcomes = map[string]match.Outcome{
	"H": match.Home, "HOME": match.Home, "HOME TEAM WIN": match.Home,
	"D": match.Draw, "DRAW": match.Draw,
	"A": match.Away, "AWAY": match.Away, "AWAY TEAM WIN": match.Away,
}

// NewClassIndex inspects the class list once. Integer labels {0,1,2} map
// directly, {1,2,3} are shifted down by one, H/D/A style labels map by
// name, and any other three-class list is taken positionally.
func NewClassIndex(classes []string) ClassIndex {
	n := len(classes)
	idx := ClassIndex{
		labels:   append([]string(nil), classes...),
		outcomes: make([]match.Outcome, n),
		known:    make([]bool, n),
	}

	if nums, ok := numericClasses(classes); ok {
		if isSet(nums, 0, 1, 2) {
			for i, v := range nums {
				idx.set(i, match.Outcome(v))
			}
			return idx
		}
		if isSet(nums, 1, 2, 3) {
			for i, v := range nums {
				idx.set(i, match.Outcome(v-1))
			}
			return idx
		}
	}

	allLabels := n > 0
	for i, c := range classes {
		o, ok := labelOutcomes[strings.ToUpper(strings.TrimSpace(c))]
		if !ok {
			allLabels = false
			break
		}
		idx.set(i, o)
	}
	if allLabels {
		return idx
	}

	idx.outcomes, idx.known = make([]match.Outcome, n), make([]bool, n)
	if n == len(match.Outcomes) {
		for i, o := range match.Outcomes {
			idx.set(i, o)
		}
	}
	return idx
}

func (ci *ClassIndex) set(i int, o match.Outcome) {
	ci.outcomes[i] = o
	ci.known[i] = true
}

// Outcome returns the canonical outcome for class position i.
func (ci ClassIndex) Outcome(i int) (match.Outcome, bool) {
	if i < 0 || i >= len(ci.outcomes) || !ci.known[i] {
		return 0, false
	}
	return ci.outcomes[i], true
}

// Lookup maps a raw label the model emitted back to its class position's
// outcome. It reports false when the label is not one of the model's
// classes.
func (ci ClassIndex) Lookup(raw string) (match.Outcome, bool) {
	raw = strings.TrimSpace(raw)
	for i, l := range ci.labels {
		if strings.EqualFold(strings.TrimSpace(l), raw) {
			return ci.Outcome(i)
		}
	}
	return 0, false
}

// Label returns the class label that stands for o.
func (ci ClassIndex) Label(o match.Outcome) (string, bool) {
	for i := range ci.labels {
		if got, ok := ci.Outcome(i); ok && got == o {
			return ci.labels[i], true
		}
	}
	return "", false
}

func (ci ClassIndex) Len() int {
	return len(ci.outcomes)
}

// Mapped counts the class positions with a known outcome.
func (ci ClassIndex) Mapped() int {
	n := 0
	for _, k := range ci.known {
		if k {
			n++
		}
	}
	return n
}

func numericClasses(classes []string) ([]int, bool) {
	out := make([]int, len(classes))
	for i, c := range classes {
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil || f != float64(int(f)) {
			return nil, false
		}
		out[i] = int(f)
	}
	return out, len(out) > 0
}

func isSet(nums []int, want ...int) bool {
	if len(nums) != len(want) {
		return false
	}
	seen := make(map[int]bool, len(nums))
	for _, v := range nums {
		seen[v] = true
	}
	for _, w := range want {
		if !seen[w] {
			return false
		}
	}
	return true
}

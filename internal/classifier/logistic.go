package classifier

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticArtifact is the on-disk form of a multinomial logistic model.
type LogisticArtifact struct {
	Name         string      `json:"name"`
	Classes      []string    `json:"classes"`
	FeatureNames []string    `json:"feature_names,omitempty"`
	NFeatures    int         `json:"n_features,omitempty"`
	Coefficients [][]float64 `json:"coefficients"`
	Intercepts   []float64   `json:"intercepts"`
}

// LogisticModel scores each class with a linear function and a softmax.
type LogisticModel struct {
	name         string
	classes      []string
	featureNames []string
	weights      *mat.Dense
	intercepts   *mat.VecDense
}

// LoadLogisticModel reads a JSON artifact from disk.
func LoadLogisticModel(path string) (*LogisticModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer f.Close()
	return ParseLogisticModel(f)
}

func ParseLogisticModel(r io.Reader) (*LogisticModel, error) {
	var a LogisticArtifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	return NewLogisticModel(a)
}

// NewLogisticModel validates the artifact shapes.
func NewLogisticModel(a LogisticArtifact) (*LogisticModel, error) {
	k := len(a.Classes)
	if k == 0 {
		return nil, ErrNoClasses
	}
	if len(a.Coefficients) != k || len(a.Intercepts) != k {
		return nil, fmt.Errorf("model %q: %d classes but %d coefficient rows and %d intercepts",
			a.Name, k, len(a.Coefficients), len(a.Intercepts))
	}

	n := a.NFeatures
	if len(a.FeatureNames) > 0 {
		n = len(a.FeatureNames)
	}
	if n == 0 {
		n = len(a.Coefficients[0])
	}

	flat := make([]float64, 0, k*n)
	for i, row := range a.Coefficients {
		if len(row) != n {
			return nil, fmt.Errorf("model %q: coefficient row %d has %d values, want %d", a.Name, i, len(row), n)
		}
		flat = append(flat, row...)
	}

	return &LogisticModel{
		name:         a.Name,
		classes:      append([]string(nil), a.Classes...),
		featureNames: append([]string(nil), a.FeatureNames...),
		weights:      mat.NewDense(k, n, flat),
		intercepts:   mat.NewVecDense(k, append([]float64(nil), a.Intercepts...)),
	}, nil
}

func (m *LogisticModel) Name() string           { return m.name }
func (m *LogisticModel) Classes() []string      { return m.classes }
func (m *LogisticModel) FeatureNames() []string { return m.featureNames }

func (m *LogisticModel) NFeatures() int {
	_, n := m.weights.Dims()
	return n
}

func (m *LogisticModel) PredictProba(x []float64) ([]float64, error) {
	k, n := m.weights.Dims()
	if len(x) != n {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(x), n)
	}

	scores := mat.NewVecDense(k, nil)
	scores.MulVec(m.weights, mat.NewVecDense(n, append([]float64(nil), x...)))
	scores.AddVec(scores, m.intercepts)

	out := make([]float64, k)
	for i := range out {
		out[i] = scores.AtVec(i)
	}
	lse := floats.LogSumExp(out)
	for i, s := range out {
		out[i] = math.Exp(s - lse)
	}
	return out, nil
}

func (m *LogisticModel) Predict(x []float64) (string, error) {
	proba, err := m.PredictProba(x)
	if err != nil {
		return "", err
	}
	return m.classes[floats.MaxIdx(proba)], nil
}

package engine

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/category"
	"github.com/stitts-dev/match-predictor/internal/classifier"
)

// ModelName is the display name of the model serving a dataset.
func ModelName(datasetID int) string {
	if datasetID == category.OtherDataset {
		return "Model2"
	}
	return "Model1"
}

// Model is a loaded classifier with its class mapping resolved once.
type Model struct {
	Name       string
	DatasetID  int
	Classifier classifier.Classifier
	Classes    classifier.ClassIndex
}

func NewModel(datasetID int, c classifier.Classifier) *Model {
	return &Model{
		Name:       ModelName(datasetID),
		DatasetID:  datasetID,
		Classifier: c,
		Classes:    classifier.NewClassIndex(c.Classes()),
	}
}

// ModelInfo is the public description of a model slot.
type ModelInfo struct {
	Name      string   `json:"name"`
	DatasetID int      `json:"dataset_id"`
	Loaded    bool     `json:"loaded"`
	Classes   []string `json:"classes,omitempty"`
	Mapped    int      `json:"mapped_classes"`
	Features  int      `json:"features"`
	Named     bool     `json:"named_features"`
	Breaker   string   `json:"breaker_state,omitempty"`
}

func (m *Model) Info() ModelInfo {
	info := ModelInfo{Name: m.Name, DatasetID: m.DatasetID, Loaded: m.Classifier != nil}
	if m.Classifier == nil {
		return info
	}
	schema := classifier.SchemaOf(m.Classifier)
	info.Classes = m.Classifier.Classes()
	info.Mapped = m.Classes.Mapped()
	info.Features = schema.Size()
	info.Named = schema.Named()
	if g, ok := m.Classifier.(*classifier.Guard); ok {
		info.Breaker = g.State()
	}
	return info
}

// LoadModels reads each model artifact and wraps it in a circuit breaker.
// A model that fails to load is logged and left out; predictions for its
// dataset use the form-based fallback.
func LoadModels(paths map[int]string, breakerRequests int, breakerTimeout time.Duration, logger *logrus.Logger) map[int]*Model {
	models := make(map[int]*Model, len(paths))
	for id, path := range paths {
		entry := logger.WithFields(logrus.Fields{
			"component": "model_loader",
			"model":     ModelName(id),
			"path":      path,
		})
		m, err := classifier.LoadLogisticModel(path)
		if err != nil {
			entry.WithError(err).Warn("Model unavailable, predictions will use form-based fallback")
			continue
		}
		model := NewModel(id, classifier.NewGuard(m, breakerRequests, breakerTimeout, logger))
		if model.Classes.Mapped() < model.Classes.Len() {
			entry.WithField("classes", m.Classes()).Warn("Some model classes have no outcome, their probabilities are ignored")
		}
		models[id] = model
		entry.WithField("classes", m.Classes()).Info("Model loaded")
	}
	return models
}

func describeMissing(id int) string {
	return fmt.Sprintf("%s not loaded", ModelName(id))
}

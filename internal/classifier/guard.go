package classifier

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Guard wraps a classifier with a circuit breaker so a broken artifact fails
// fast instead of erroring on every request.
type Guard struct {
	Classifier
	breaker *gobreaker.CircuitBreaker
}

func NewGuard(c Classifier, maxRequests int, timeout time.Duration, logger *logrus.Logger) *Guard {
	settings := gobreaker.Settings{
		Name:        c.Name(),
		MaxRequests: uint32(maxRequests),
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "classifier_guard",
				"model":     name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Classifier circuit breaker state changed")
		},
	}
	return &Guard{
		Classifier: c,
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *Guard) Predict(x []float64) (string, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.Classifier.Predict(x)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (g *Guard) PredictProba(x []float64) ([]float64, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.Classifier.PredictProba(x)
	})
	if err != nil {
		return nil, err
	}
	return out.([]float64), nil
}

// State reports the breaker state for health output.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

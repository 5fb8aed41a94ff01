package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/stitts-dev/match-predictor/internal/engine"
	"github.com/stitts-dev/match-predictor/internal/match"
)

// Prediction is one served prediction kept for history and auditing.
type Prediction struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	HomeTeam      string         `gorm:"not null;index:idx_prediction_teams" json:"home_team"`
	AwayTeam      string         `gorm:"not null;index:idx_prediction_teams" json:"away_team"`
	Category      string         `gorm:"size:32" json:"category"`
	League        string         `json:"league,omitempty"`
	DatasetID     int            `json:"dataset_id"`
	Outcome       string         `gorm:"size:16;index" json:"outcome"`
	DecisionLabel string         `gorm:"size:32" json:"decision_label"`
	ProbHome      float64        `json:"prob_home"`
	ProbDraw      float64        `json:"prob_draw"`
	ProbAway      float64        `json:"prob_away"`
	Confidence    float64        `json:"confidence"`
	ModelType     string         `json:"model_type"`
	IsFallback    bool           `gorm:"default:false;index" json:"is_fallback"`
	Historical    datatypes.JSON `json:"historical_probabilities"`
	FormHome      string         `gorm:"size:5" json:"form_home"`
	FormAway      string         `gorm:"size:5" json:"form_away"`
	HomeScore     int            `json:"home_score"`
	AwayScore     int            `json:"away_score"`
	Reasoning     string         `gorm:"type:text" json:"reasoning"`
	Fallbacks     pq.StringArray `gorm:"type:text[]" json:"fallbacks"`
	ClientKey     string         `gorm:"size:64" json:"-"`
	IsArchived    bool           `gorm:"default:false;index" json:"is_archived"`
	ArchivedAt    *time.Time     `json:"archived_at,omitempty"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (Prediction) TableName() string {
	return "predictions"
}

func (p *Prediction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// HistoricalTriple decodes the stored head-to-head percentages.
func (p *Prediction) HistoricalTriple() match.Triple {
	var t match.Triple
	if len(p.Historical) == 0 {
		return t
	}
	_ = json.Unmarshal(p.Historical, &t)
	return t
}

// FromEngine flattens an engine result into a history row.
func FromEngine(res *engine.Prediction, homeScore, awayScore int, clientKey string) (*Prediction, error) {
	hist, err := json.Marshal(res.HistoricalProbs)
	if err != nil {
		return nil, err
	}
	return &Prediction{
		HomeTeam:      res.HomeTeam,
		AwayTeam:      res.AwayTeam,
		Category:      string(res.Category),
		League:        res.League,
		DatasetID:     res.DatasetID,
		Outcome:       res.Outcome.String(),
		DecisionLabel: string(res.DecisionLabel),
		ProbHome:      res.Probabilities.Home,
		ProbDraw:      res.Probabilities.Draw,
		ProbAway:      res.Probabilities.Away,
		Confidence:    res.Confidence,
		ModelType:     res.ModelType,
		IsFallback:    res.IsFallback(),
		Historical:    datatypes.JSON(hist),
		FormHome:      res.FormHome.String(),
		FormAway:      res.FormAway.String(),
		HomeScore:     homeScore,
		AwayScore:     awayScore,
		Reasoning:     res.Reasoning,
		Fallbacks:     pq.StringArray(res.Fallbacks.Strings()),
		ClientKey:     clientKey,
	}, nil
}

// PredictionStats summarises the history table.
type PredictionStats struct {
	Total     int64            `json:"total"`
	Active    int64            `json:"active"`
	Archived  int64            `json:"archived"`
	ByOutcome map[string]int64 `json:"by_outcome"`
	Fallbacks int64            `json:"fallback_predictions"`
}

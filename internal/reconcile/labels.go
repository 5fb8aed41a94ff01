package reconcile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stitts-dev/match-predictor/internal/classifier"
	"github.com/stitts-dev/match-predictor/internal/match"
)

// Label is a single outcome or a double-chance pair.
type Label string

const (
	LabelHome       Label = "Home"
	LabelDraw       Label = "Draw"
	LabelAway       Label = "Away"
	LabelHomeOrAway Label = "HomeOrAway"
	LabelHomeOrDraw Label = "HomeOrDraw"
	LabelAwayOrDraw Label = "AwayOrDraw"
)

func LabelOf(o match.Outcome) Label {
	switch o {
	case match.Home:
		return LabelHome
	case match.Draw:
		return LabelDraw
	}
	return LabelAway
}

// IsDoubleChance reports whether the label covers two outcomes.
func (l Label) IsDoubleChance() bool {
	return l == LabelHomeOrAway || l == LabelHomeOrDraw || l == LabelAwayOrDraw
}

// Code is the betting shorthand: 1, X, 2, 1X, X2 or 12.
func (l Label) Code() string {
	switch l {
	case LabelHome:
		return "1"
	case LabelDraw:
		return "X"
	case LabelAway:
		return "2"
	case LabelHomeOrDraw:
		return "1X"
	case LabelAwayOrDraw:
		return "X2"
	case LabelHomeOrAway:
		return "12"
	}
	return ""
}

// Display is the human readable form used in reasoning text.
func (l Label) Display() string {
	switch l {
	case LabelHome:
		return "Home Team Win"
	case LabelAway:
		return "Away Team Win"
	case LabelDraw:
		return "Draw"
	case LabelHomeOrAway:
		return "Home Team Win or Away Team Win"
	case LabelHomeOrDraw:
		return "Home Team Win or Draw"
	case LabelAwayOrDraw:
		return "Away Team Win or Draw"
	}
	return string(l)
}

var ErrInvalidModelOutput = errors.New("invalid model output")

// InvalidModelOutputError carries the raw prediction that could not be
// mapped to an outcome.
type InvalidModelOutputError struct {
	Raw string
}

func (e *InvalidModelOutputError) Error() string {
	return fmt.Sprintf("invalid model output %q", e.Raw)
}

func (e *InvalidModelOutputError) Is(target error) bool {
	return target == ErrInvalidModelOutput
}

// ModelOutcome decodes a raw prediction with the model's own class list
// first, so a label means what the probability columns say it means. Labels
// outside the class list go through NormalizeRaw.
func ModelOutcome(raw string, classes classifier.ClassIndex) (match.Outcome, error) {
	if o, ok := classes.Lookup(raw); ok {
		return o, nil
	}
	return NormalizeRaw(raw)
}

// NormalizeRaw maps a classifier's raw prediction onto an outcome. Class ids
// 0/1/2 are checked before the legacy float ranges; the H/D/A letters are
// also accepted. Anything else is an error, never a guess.
func NormalizeRaw(raw string) (match.Outcome, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToUpper(s) {
	case "H":
		return match.Home, nil
	case "D":
		return match.Draw, nil
	case "A":
		return match.Away, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err == nil {
		if o, ok := match.OutcomeFromNumber(v); ok {
			return o, nil
		}
	}
	return 0, &InvalidModelOutputError{Raw: raw}
}

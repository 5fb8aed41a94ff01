package match

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Outcome is a fixture result relative to the row's home/away orientation.
// The numeric values are the canonical class indexes.
type Outcome int

const (
	Away Outcome = 0
	Draw Outcome = 1
	Home Outcome = 2
)

// Outcomes lists the canonical order used for probability vectors.
var Outcomes = [3]Outcome{Away, Draw, Home}

var ErrUndecodableResult = errors.New("undecodable match result")

func (o Outcome) String() string {
	switch o {
	case Away:
		return "Away"
	case Draw:
		return "Draw"
	case Home:
		return "Home"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

func (o Outcome) Valid() bool {
	return o == Away || o == Draw || o == Home
}

// Letter is the H/D/A code used by result columns.
func (o Outcome) Letter() string {
	switch o {
	case Away:
		return "A"
	case Draw:
		return "D"
	case Home:
		return "H"
	}
	return "?"
}

func (o Outcome) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid outcome %d", int(o))
	}
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutcome accepts the display names and the H/D/A letters.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HOME", "H":
		return Home, nil
	case "DRAW", "D":
		return Draw, nil
	case "AWAY", "A":
		return Away, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUndecodableResult, s)
}

// DecodeResult turns a raw result cell into an Outcome. Letters H/D/A,
// integer class ids 0/1/2 (A=0, D=1, H=2) and the legacy float ranges
// 0.5-1.4 / 1.5-2.4 / 2.5-3.4 are understood.
func DecodeResult(raw string) (Outcome, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrUndecodableResult)
	}
	if o, err := ParseOutcome(s); err == nil {
		return o, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %q", ErrUndecodableResult, raw)
	}
	if o, ok := OutcomeFromNumber(v); ok {
		return o, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUndecodableResult, raw)
}

// OutcomeFromNumber maps exact class ids first and then the legacy ranges,
// so 1 is Draw even though it also falls in the Away range.
func OutcomeFromNumber(v float64) (Outcome, bool) {
	switch v {
	case 0:
		return Away, true
	case 1:
		return Draw, true
	case 2:
		return Home, true
	}
	switch {
	case v >= 0.5 && v <= 1.4:
		return Away, true
	case v >= 1.5 && v <= 2.4:
		return Draw, true
	case v >= 2.5 && v <= 3.4:
		return Home, true
	}
	return 0, false
}

// Perspective converts a row result into W/D/L for one side of the row.
func (o Outcome) Perspective(isHome bool) byte {
	switch {
	case o == Draw:
		return 'D'
	case (o == Home && isHome) || (o == Away && !isHome):
		return 'W'
	default:
		return 'L'
	}
}

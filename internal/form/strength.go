package form

// recencyWeights is ordered oldest to most recent.
var recencyWeights = [Length]float64{1.0, 1.2, 1.4, 1.6, 1.8}

var resultPoints = map[byte]float64{'W': 3, 'D': 1, 'L': 0}

const (
	homeAdvantage       = 0.08
	strongAwayPenalty   = 0.02
	weakAwayPenalty     = 0.05
	strongAwayThreshold = 0.6
	neutralStrength     = 0.5
)

// Side is the role a team plays in the fixture being predicted.
type Side int

const (
	SideHome Side = iota
	SideAway
)

// Strength scores a form in [0,1]. The most recent result carries the
// largest weight; padded slots count toward neither sum.
func Strength(f Form) float64 {
	var score, max float64
	for i, c := range f {
		if !isResult(c) {
			continue
		}
		w := recencyWeights[Length-1-i]
		score += resultPoints[c] * w
		max += 3 * w
	}
	if max == 0 {
		return neutralStrength
	}
	return score / max
}

// SideStrength applies the home bonus or the away penalty to a form.
func SideStrength(f Form, side Side) float64 {
	s := Strength(f)
	if side == SideHome {
		s += homeAdvantage
	} else if s > strongAwayThreshold {
		s -= strongAwayPenalty
	} else {
		s -= weakAwayPenalty
	}
	return clamp01(s)
}

// StrengthDiff is the home side strength minus the away side strength.
func StrengthDiff(home, away Form) float64 {
	return SideStrength(home, SideHome) - SideStrength(away, SideAway)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

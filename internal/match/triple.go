package match

import "math"

// Triple holds one value per outcome. It is used both for percentage
// triples (summing to ~100) and for decimal distributions (summing to ~1).
type Triple struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// Uniform is the neutral distribution used when no probability mass survives.
var Uniform = Triple{Home: 0.33, Draw: 0.34, Away: 0.33}

func (t Triple) Get(o Outcome) float64 {
	switch o {
	case Home:
		return t.Home
	case Draw:
		return t.Draw
	default:
		return t.Away
	}
}

func (t *Triple) Set(o Outcome, v float64) {
	switch o {
	case Home:
		t.Home = v
	case Draw:
		t.Draw = v
	default:
		t.Away = v
	}
}

func (t Triple) Sum() float64 {
	return t.Home + t.Draw + t.Away
}

// Normalize rescales the triple so it sums to total. A non-positive sum
// returns the triple unchanged and false.
func (t Triple) Normalize(total float64) (Triple, bool) {
	sum := t.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return t, false
	}
	k := total / sum
	return Triple{Home: t.Home * k, Draw: t.Draw * k, Away: t.Away * k}, true
}

// Scale multiplies every component by k.
func (t Triple) Scale(k float64) Triple {
	return Triple{Home: t.Home * k, Draw: t.Draw * k, Away: t.Away * k}
}

// Argmax returns the outcome with the largest value. Ties resolve in the
// order Away, Draw, Home, matching the canonical class index order.
func (t Triple) Argmax() Outcome {
	best := Away
	for _, o := range Outcomes[1:] {
		if t.Get(o) > t.Get(best) {
			best = o
		}
	}
	return best
}

func (t Triple) Max() float64 {
	return math.Max(t.Home, math.Max(t.Draw, t.Away))
}

// Blend returns w*t + (1-w)*other.
func (t Triple) Blend(other Triple, w float64) Triple {
	return Triple{
		Home: t.Home*w + other.Home*(1-w),
		Draw: t.Draw*w + other.Draw*(1-w),
		Away: t.Away*w + other.Away*(1-w),
	}
}

package reconcile

import (
	"math"

	"github.com/stitts-dev/match-predictor/internal/classifier"
	"github.com/stitts-dev/match-predictor/internal/match"
)

const (
	closureTolerance = 0.01
	formWeight       = 0.4
	formTrigger      = 0.1
)

// Assemble turns classifier output into a canonical distribution summing to
// one. Without usable model output the historical percentages stand in.
func Assemble(probs []float64, idx classifier.ClassIndex, hist match.Triple) (match.Triple, match.FallbackReason) {
	var p match.Triple
	reason := match.NoFallback

	mapped := 0
	for i, v := range probs {
		o, ok := idx.Outcome(i)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		p.Set(o, p.Get(o)+v)
		mapped++
	}

	if mapped == 0 {
		reason = match.NoModelProbabilities
		if hist.Sum() > 0 {
			p = hist.Scale(0.01)
		} else {
			p = match.Uniform
		}
	}

	p = correctPercentages(p)

	sum := p.Sum()
	if sum <= 0 {
		return match.Uniform, match.ZeroProbabilityMass
	}
	if math.Abs(sum-1) > closureTolerance {
		p, _ = p.Normalize(1)
	}
	return p, reason
}

// correctPercentages divides any component above one by 100; such values
// are percentages written into a probability slot.
func correctPercentages(p match.Triple) match.Triple {
	for _, o := range match.Outcomes {
		if v := p.Get(o); v > 1 {
			p.Set(o, v/100)
		}
	}
	return p
}

// FormTriple is the fixed distribution used to pull probabilities toward
// recent form. It is only defined for |diff| above the correction trigger.
func FormTriple(diff float64) match.Triple {
	switch {
	case diff < -0.12:
		return match.Triple{Home: 0.22, Draw: 0.30, Away: 0.48}
	case diff < -0.08:
		return match.Triple{Home: 0.26, Draw: 0.32, Away: 0.42}
	case diff > 0.12:
		return match.Triple{Home: 0.48, Draw: 0.30, Away: 0.22}
	case diff > 0.08:
		return match.Triple{Home: 0.42, Draw: 0.32, Away: 0.26}
	}
	return match.Triple{Home: 0.35, Draw: 0.33, Away: 0.32}
}

// FormCorrection blends p 60/40 with the form triple when the strength
// difference exceeds 0.1. The bool reports whether a blend happened.
func FormCorrection(p match.Triple, diff float64) (match.Triple, bool) {
	if math.Abs(diff) <= formTrigger {
		return p, false
	}
	blended := p.Blend(FormTriple(diff), 1-formWeight)
	if out, ok := blended.Normalize(1); ok {
		return out, true
	}
	return p, false
}

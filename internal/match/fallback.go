package match

// FallbackReason says why a stage returned a substitute value instead of a
// data-derived one. The zero value means no fallback happened.
type FallbackReason string

const (
	NoFallback           FallbackReason = ""
	DataUnavailable      FallbackReason = "data_unavailable"
	MissingColumns       FallbackReason = "missing_columns"
	TeamNotFound         FallbackReason = "team_not_found"
	NoHeadToHead         FallbackReason = "no_head_to_head"
	ManualOverride       FallbackReason = "manual_override"
	SyntheticForm        FallbackReason = "synthetic_form"
	SchemaMismatch       FallbackReason = "schema_mismatch"
	ClassifierError      FallbackReason = "classifier_error"
	NoModelProbabilities FallbackReason = "no_model_probabilities"
	ZeroProbabilityMass  FallbackReason = "zero_probability_mass"
	NoFeatureVector      FallbackReason = "no_feature_vector"
)

func (r FallbackReason) Triggered() bool {
	return r != NoFallback
}

// Fallbacks collects the reasons raised while building one prediction.
type Fallbacks []FallbackReason

// Add records r when it is a real fallback and not already present.
func (f *Fallbacks) Add(r FallbackReason) {
	if !r.Triggered() {
		return
	}
	for _, existing := range *f {
		if existing == r {
			return
		}
	}
	*f = append(*f, r)
}

func (f Fallbacks) Has(r FallbackReason) bool {
	for _, existing := range f {
		if existing == r {
			return true
		}
	}
	return false
}

func (f Fallbacks) Strings() []string {
	out := make([]string, len(f))
	for i, r := range f {
		out[i] = string(r)
	}
	return out
}

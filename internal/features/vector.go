package features

// Schema is the input shape a classifier declares: ordered feature names,
// or only a feature count.
type Schema struct {
	Names []string `json:"names,omitempty"`
	Count int      `json:"count"`
}

func NamedSchema(names []string) Schema {
	return Schema{Names: names, Count: len(names)}
}

func CountSchema(n int) Schema {
	return Schema{Count: n}
}

// Named reports whether the schema carries column names.
func (s Schema) Named() bool {
	return len(s.Names) > 0
}

func (s Schema) Size() int {
	if s.Named() {
		return len(s.Names)
	}
	return s.Count
}

// Vector is an ordered feature row.
type Vector struct {
	Names  []string
	Values []float64
}

func (v *Vector) Append(name string, value float64) {
	v.Names = append(v.Names, name)
	v.Values = append(v.Values, value)
}

func (v Vector) Len() int {
	return len(v.Values)
}

func (v Vector) IsEmpty() bool {
	return len(v.Values) == 0
}

func (v Vector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.Names))
	for i, n := range v.Names {
		out[n] = v.Values[i]
	}
	return out
}

// Align shapes v to the schema. Named schemas get missing columns as 0,
// extras dropped and the declared order; count-only schemas truncate or
// zero-pad. The second result reports how many schema columns v supplied.
func Align(v Vector, schema Schema) (Vector, int) {
	if schema.Named() {
		have := v.Map()
		out := Vector{
			Names:  make([]string, len(schema.Names)),
			Values: make([]float64, len(schema.Names)),
		}
		matched := 0
		for i, name := range schema.Names {
			out.Names[i] = name
			if val, ok := have[name]; ok {
				out.Values[i] = val
				matched++
			}
		}
		return out, matched
	}

	n := schema.Count
	out := Vector{Values: make([]float64, n)}
	copy(out.Values, v.Values)
	if len(v.Names) > 0 {
		out.Names = make([]string, n)
		copy(out.Names, v.Names)
	}
	supplied := v.Len()
	if supplied > n {
		supplied = n
	}
	return out, supplied
}

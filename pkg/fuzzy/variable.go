package fuzzy

// Variable is a named linguistic variable: a crisp input partitioned into
// labeled membership sets.
type Variable struct {
	Name   string
	sets   map[string]Set
	labels []string
}

func NewVariable(name string) *Variable {
	return &Variable{
		Name: name,
		sets: make(map[string]Set),
	}
}

// AddSet registers a labeled membership set. Re-adding a label replaces it.
func (v *Variable) AddSet(label string, set Set) *Variable {
	if _, ok := v.sets[label]; !ok {
		v.labels = append(v.labels, label)
	}
	v.sets[label] = set
	return v
}

// Labels returns the labels in registration order.
func (v *Variable) Labels() []string {
	out := make([]string, len(v.labels))
	copy(out, v.labels)
	return out
}

// Membership returns the degree of x in one labeled set, zero for an
// unknown label.
func (v *Variable) Membership(label string, x float64) float64 {
	set, ok := v.sets[label]
	if !ok {
		return 0
	}
	return set.Evaluate(x)
}

// Fuzzify evaluates every labeled set against x. All labels are retained in
// the result, including those with zero degree.
func (v *Variable) Fuzzify(x float64) map[string]float64 {
	degrees := make(map[string]float64, len(v.labels))
	for label, set := range v.sets {
		degrees[label] = set.Evaluate(x)
	}
	return degrees
}

package fuzzy

// Engine holds the linguistic variables of one inference system and resolves
// rule blocks against crisp inputs. An engine is immutable once built and
// safe for concurrent readers.
type Engine struct {
	vars map[string]*Variable
}

func NewEngine(variables ...*Variable) *Engine {
	e := &Engine{vars: make(map[string]*Variable, len(variables))}
	for _, v := range variables {
		e.vars[v.Name] = v
	}
	return e
}

// AddVariable registers a variable, replacing any previous one of the same name.
func (e *Engine) AddVariable(v *Variable) *Engine {
	e.vars[v.Name] = v
	return e
}

// Variable looks up a registered variable by name.
func (e *Engine) Variable(name string) (*Variable, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Rule pairs an antecedent with a crisp consequent value. Weight scales the
// firing strength; zero means the default weight of 1.
type Rule struct {
	Antecedent Term
	Value      float64
	Weight     float64
}

// Defuzzify evaluates a rule block bottom-up and aggregates the fired rules
// with the weighted average sum(strength*value)/sum(strength). When no rule
// fires the caller's default is returned.
func (e *Engine) Defuzzify(rules []Rule, inputs map[string]float64, fallback float64) float64 {
	var num, den float64
	for _, r := range rules {
		w := r.Weight
		if w == 0 {
			w = 1
		}
		strength := r.Antecedent.Degree(e, inputs) * w
		num += strength * r.Value
		den += strength
	}
	if den == 0 {
		return fallback
	}
	return num / den
}

// RegionRule pairs an antecedent with an output membership region, for
// centroid defuzzification.
type RegionRule struct {
	Antecedent Term
	Output     Set
	Weight     float64
}

const centroidSamples = 200

// DefuzzifyCentroid clips each rule's output region at its firing strength,
// takes the pointwise max of the clipped regions over [lo, hi], and returns
// the centroid of the aggregate. When the aggregate has zero area the
// caller's default is returned.
func (e *Engine) DefuzzifyCentroid(rules []RegionRule, inputs map[string]float64, lo, hi, fallback float64) float64 {
	if hi <= lo {
		return fallback
	}

	strengths := make([]float64, len(rules))
	for i, r := range rules {
		w := r.Weight
		if w == 0 {
			w = 1
		}
		strengths[i] = r.Antecedent.Degree(e, inputs) * w
	}

	step := (hi - lo) / float64(centroidSamples)
	var num, den float64
	for i := 0; i <= centroidSamples; i++ {
		x := lo + float64(i)*step
		var mu float64
		for j, r := range rules {
			m := r.Output.Evaluate(x)
			if strengths[j] < m {
				m = strengths[j]
			}
			if m > mu {
				mu = m
			}
		}
		num += x * mu
		den += mu
	}
	if den == 0 {
		return fallback
	}
	return num / den
}

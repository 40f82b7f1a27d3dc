package fuzzy

// Term is a node of an antecedent expression tree. Degree resolves the node
// against the engine's variables and the crisp inputs of the current cycle.
type Term interface {
	Degree(e *Engine, inputs map[string]float64) float64
}

type isTerm struct {
	variable string
	label    string
}

type andTerm struct{ operands []Term }
type orTerm struct{ operands []Term }
type notTerm struct{ operand Term }

// Is tests a variable against one of its labels. An unknown variable, an
// unknown label, or a missing input all resolve to degree zero.
func Is(variable, label string) Term {
	return isTerm{variable: variable, label: label}
}

// And combines operands with the minimum. Associative for any operand count.
func And(operands ...Term) Term {
	return andTerm{operands: operands}
}

// Or combines operands with the maximum. Associative for any operand count.
func Or(operands ...Term) Term {
	return orTerm{operands: operands}
}

// Not complements a term as 1 - degree.
func Not(operand Term) Term {
	return notTerm{operand: operand}
}

func (t isTerm) Degree(e *Engine, inputs map[string]float64) float64 {
	v, ok := e.vars[t.variable]
	if !ok {
		return 0
	}
	x, ok := inputs[t.variable]
	if !ok {
		return 0
	}
	return v.Membership(t.label, x)
}

func (t andTerm) Degree(e *Engine, inputs map[string]float64) float64 {
	if len(t.operands) == 0 {
		return 0
	}
	min := t.operands[0].Degree(e, inputs)
	for _, op := range t.operands[1:] {
		if d := op.Degree(e, inputs); d < min {
			min = d
		}
	}
	return min
}

func (t orTerm) Degree(e *Engine, inputs map[string]float64) float64 {
	max := 0.0
	for _, op := range t.operands {
		if d := op.Degree(e, inputs); d > max {
			max = d
		}
	}
	return max
}

func (t notTerm) Degree(e *Engine, inputs map[string]float64) float64 {
	return 1 - t.operand.Degree(e, inputs)
}

package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriangularMembership(t *testing.T) {
	set := Triangular(-1, 0, 1)

	assert.Equal(t, 0.0, set.Evaluate(-1.5))
	assert.Equal(t, 0.0, set.Evaluate(-1))
	assert.InDelta(t, 0.5, set.Evaluate(-0.5), 1e-9)
	assert.Equal(t, 1.0, set.Evaluate(0))
	assert.InDelta(t, 0.5, set.Evaluate(0.5), 1e-9)
	assert.Equal(t, 0.0, set.Evaluate(1))
	assert.Equal(t, 0.0, set.Evaluate(2))
}

func TestTrapezoidalMembership(t *testing.T) {
	set := Trapezoidal(0, 0.2, 0.6, 0.8)

	assert.Equal(t, 0.0, set.Evaluate(-0.1))
	assert.InDelta(t, 0.5, set.Evaluate(0.1), 1e-9)
	assert.Equal(t, 1.0, set.Evaluate(0.2))
	assert.Equal(t, 1.0, set.Evaluate(0.4))
	assert.Equal(t, 1.0, set.Evaluate(0.6))
	assert.InDelta(t, 0.5, set.Evaluate(0.7), 1e-9)
	assert.Equal(t, 0.0, set.Evaluate(0.9))
}

func TestTrapezoidalVerticalEdge(t *testing.T) {
	// Saturated edge set, full membership from the lower bound onward
	set := Trapezoidal(0.6, 0.6, 1, 1)

	assert.Equal(t, 1.0, set.Evaluate(0.6))
	assert.Equal(t, 1.0, set.Evaluate(1))
	assert.Equal(t, 0.0, set.Evaluate(0.59))
}

func TestFuzzifyRetainsAllLabels(t *testing.T) {
	v := NewVariable("vix").
		AddSet("low", Trapezoidal(0, 0, 0.2, 0.4)).
		AddSet("mid", Trapezoidal(0.2, 0.4, 0.6, 0.8)).
		AddSet("high", Trapezoidal(0.6, 0.8, 1, 1))

	degrees := v.Fuzzify(0.1)
	require.Len(t, degrees, 3)
	assert.Equal(t, 1.0, degrees["low"])
	assert.Equal(t, 0.0, degrees["mid"])
	assert.Equal(t, 0.0, degrees["high"])
}

func TestTermOperators(t *testing.T) {
	a := NewVariable("a").AddSet("hot", Triangular(0, 1, 2))
	b := NewVariable("b").AddSet("cold", Triangular(0, 1, 2))
	e := NewEngine(a, b)

	inputs := map[string]float64{"a": 0.5, "b": 1.5}

	// a is hot -> 0.5, b is cold -> 0.5
	assert.InDelta(t, 0.5, Is("a", "hot").Degree(e, inputs), 1e-9)
	assert.InDelta(t, 0.5, And(Is("a", "hot"), Is("b", "cold")).Degree(e, inputs), 1e-9)
	assert.InDelta(t, 0.5, Or(Is("a", "hot"), Is("b", "cold")).Degree(e, inputs), 1e-9)
	assert.InDelta(t, 0.5, Not(Is("a", "hot")).Degree(e, inputs), 1e-9)

	inputs["b"] = 1.0 // full cold
	assert.InDelta(t, 0.5, And(Is("a", "hot"), Is("b", "cold")).Degree(e, inputs), 1e-9)
	assert.InDelta(t, 1.0, Or(Is("a", "hot"), Is("b", "cold")).Degree(e, inputs), 1e-9)
}

func TestTermOperatorsAssociative(t *testing.T) {
	v := NewVariable("x").
		AddSet("a", Triangular(0, 1, 2)).
		AddSet("b", Triangular(1, 2, 3)).
		AddSet("c", Triangular(2, 3, 4))
	e := NewEngine(v)
	inputs := map[string]float64{"x": 1.5}

	// degrees: a=0.5, b=0.5, c=0
	assert.InDelta(t, 0.0, And(Is("x", "a"), Is("x", "b"), Is("x", "c")).Degree(e, inputs), 1e-9)
	assert.InDelta(t, 0.5, Or(Is("x", "a"), Is("x", "b"), Is("x", "c")).Degree(e, inputs), 1e-9)
}

func TestUnknownVariableOrLabelIsZero(t *testing.T) {
	e := NewEngine(NewVariable("known").AddSet("yes", Triangular(0, 1, 2)))
	inputs := map[string]float64{"known": 1}

	assert.Equal(t, 0.0, Is("missing", "yes").Degree(e, inputs))
	assert.Equal(t, 0.0, Is("known", "missing").Degree(e, inputs))
	assert.Equal(t, 0.0, Is("known", "yes").Degree(e, map[string]float64{}))
}

func TestDefuzzifyWeightedAverage(t *testing.T) {
	v := NewVariable("x").
		AddSet("low", Triangular(-1, 0, 1)).
		AddSet("high", Triangular(0, 1, 2))
	e := NewEngine(v)

	rules := []Rule{
		{Antecedent: Is("x", "low"), Value: 10},
		{Antecedent: Is("x", "high"), Value: 20},
	}

	// x=0.5 fires both at 0.5, average lands in the middle
	got := e.Defuzzify(rules, map[string]float64{"x": 0.5}, -1)
	assert.InDelta(t, 15, got, 1e-9)

	// x=0.25 fires low at 0.75 and high at 0.25
	got = e.Defuzzify(rules, map[string]float64{"x": 0.25}, -1)
	assert.InDelta(t, 12.5, got, 1e-9)
}

func TestDefuzzifyWeights(t *testing.T) {
	v := NewVariable("x").
		AddSet("low", Triangular(-1, 0, 1)).
		AddSet("high", Triangular(0, 1, 2))
	e := NewEngine(v)

	rules := []Rule{
		{Antecedent: Is("x", "low"), Value: 10, Weight: 3},
		{Antecedent: Is("x", "high"), Value: 20, Weight: 1},
	}

	got := e.Defuzzify(rules, map[string]float64{"x": 0.5}, -1)
	assert.InDelta(t, 12.5, got, 1e-9)
}

func TestDefuzzifyFallbackWhenNothingFires(t *testing.T) {
	v := NewVariable("x").AddSet("low", Triangular(0, 1, 2))
	e := NewEngine(v)

	rules := []Rule{{Antecedent: Is("x", "low"), Value: 10}}

	got := e.Defuzzify(rules, map[string]float64{"x": 5}, 0.42)
	assert.Equal(t, 0.42, got)
}

func TestDefuzzifyCentroid(t *testing.T) {
	v := NewVariable("x").AddSet("on", Trapezoidal(0, 0, 1, 1))
	e := NewEngine(v)

	// Single fully fired rule with a symmetric output region centers at 0.5
	rules := []RegionRule{
		{Antecedent: Is("x", "on"), Output: Triangular(0, 0.5, 1)},
	}
	got := e.DefuzzifyCentroid(rules, map[string]float64{"x": 0.5}, 0, 1, -1)
	assert.InDelta(t, 0.5, got, 0.01)

	// Nothing fires outside the support, fallback applies
	got = e.DefuzzifyCentroid(rules, map[string]float64{"x": 5}, 0, 1, -1)
	assert.Equal(t, -1.0, got)
}

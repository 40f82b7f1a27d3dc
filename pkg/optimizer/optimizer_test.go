package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/backtest"
	"github.com/quantarc/fuzzywheel/pkg/core"
)

// scoreEvaluator scores a parameter set as the value of its "x" parameter,
// so the best result is known in advance.
type scoreEvaluator struct{}

func (scoreEvaluator) Evaluate(_ context.Context, params ParameterSet) (*Result, error) {
	x, _ := params["x"].(float64)
	return &Result{
		Parameters: params,
		Metrics:    map[string]float64{"score": x},
		Duration:   time.Millisecond,
	}, nil
}

// failingEvaluator errors on every call
type failingEvaluator struct{}

func (failingEvaluator) Evaluate(context.Context, ParameterSet) (*Result, error) {
	return nil, errors.New("boom")
}

func xParameter() Parameter {
	return Parameter{
		Name:    "x",
		Default: 0.5,
		Min:     0.0,
		Max:     1.0,
		Type:    TypeFloat,
	}
}

func TestRandomSearchReturnsSortedResults(t *testing.T) {
	config := NewConfig().
		WithParameters(xParameter()).
		WithMaxIterations(20).
		WithParallelism(4).
		WithSeed(42)

	search, err := NewRandomSearch(config)
	if err != nil {
		t.Fatalf("failed to create random search: %v", err)
	}

	results, err := search.Optimize(context.Background(), scoreEvaluator{}, "score", true)
	if err != nil {
		t.Fatalf("optimization failed: %v", err)
	}
	if len(results) != 20 {
		t.Fatalf("expected 20 results, got %d", len(results))
	}

	for i := 1; i < len(results); i++ {
		if results[i].Metrics["score"] > results[i-1].Metrics["score"] {
			t.Fatalf("results not sorted at index %d", i)
		}
	}
}

func TestRandomSearchSeedIsReproducible(t *testing.T) {
	run := func() []float64 {
		config := NewConfig().WithParameters(xParameter()).WithMaxIterations(10).WithSeed(7)
		search, err := NewRandomSearch(config)
		if err != nil {
			t.Fatalf("failed to create random search: %v", err)
		}
		results, err := search.Optimize(context.Background(), scoreEvaluator{}, "score", true)
		if err != nil {
			t.Fatalf("optimization failed: %v", err)
		}
		values := make([]float64, len(results))
		for i, r := range results {
			values[i] = r.Metrics["score"]
		}
		return values
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed produced different samples at index %d", i)
		}
	}
}

func TestCustomObjectiveOverridesTargetMetric(t *testing.T) {
	// Reward proximity to 0.5 instead of the raw score
	config := NewConfig().
		WithParameters(xParameter()).
		WithMaxIterations(20).
		WithSeed(42).
		WithObjective(func(metrics map[string]float64) float64 {
			return -math.Abs(metrics["score"] - 0.5)
		})

	search, err := NewRandomSearch(config)
	if err != nil {
		t.Fatalf("failed to create random search: %v", err)
	}

	results, err := search.Optimize(context.Background(), scoreEvaluator{}, config.TargetMetric, config.Maximize)
	if err != nil {
		t.Fatalf("optimization failed: %v", err)
	}

	for i, r := range results {
		objective, ok := r.Metrics[string(MetricObjective)]
		if !ok {
			t.Fatalf("result %d missing objective value", i)
		}
		if i > 0 && objective > results[i-1].Metrics[string(MetricObjective)] {
			t.Fatalf("results not sorted by objective at index %d", i)
		}
	}

	best := results[0].Metrics["score"]
	for _, r := range results[1:] {
		if math.Abs(r.Metrics["score"]-0.5) < math.Abs(best-0.5) {
			t.Fatalf("a worse candidate outranked the objective winner")
		}
	}
}

func TestLatinHypercubeHonorsCustomObjective(t *testing.T) {
	config := NewConfig().
		WithParameters(xParameter()).
		WithMaxIterations(10).
		WithSeed(11).
		WithObjective(func(metrics map[string]float64) float64 {
			return -metrics["score"]
		})

	lhs, err := NewLatinHypercube(config)
	if err != nil {
		t.Fatalf("failed to create sampler: %v", err)
	}

	results, err := lhs.Optimize(context.Background(), scoreEvaluator{}, config.TargetMetric, config.Maximize)
	if err != nil {
		t.Fatalf("optimization failed: %v", err)
	}

	// Negating the score flips the ranking to ascending
	for i := 1; i < len(results); i++ {
		if results[i].Metrics["score"] < results[i-1].Metrics["score"] {
			t.Fatalf("results not sorted ascending at index %d", i)
		}
	}
}

func TestRandomSearchPropagatesEvaluatorError(t *testing.T) {
	config := NewConfig().WithParameters(xParameter()).WithMaxIterations(3).WithSeed(1)
	search, err := NewRandomSearch(config)
	if err != nil {
		t.Fatalf("failed to create random search: %v", err)
	}

	if _, err := search.Optimize(context.Background(), failingEvaluator{}, "score", true); err == nil {
		t.Fatal("expected evaluator error to propagate")
	}
}

func TestRandomSearchRequiresParameters(t *testing.T) {
	if _, err := NewRandomSearch(NewConfig()); err == nil {
		t.Fatal("expected error with no parameters")
	}
	if _, err := NewRandomSearch(nil); err == nil {
		t.Fatal("expected error with nil config")
	}
}

func TestLatinHypercubeCoversAllStrata(t *testing.T) {
	const n = 10
	config := NewConfig().
		WithParameters(xParameter()).
		WithMaxIterations(n).
		WithSeed(99)

	lhs, err := NewLatinHypercube(config)
	if err != nil {
		t.Fatalf("failed to create sampler: %v", err)
	}

	sets := lhs.generateParameterSets()
	if len(sets) != n {
		t.Fatalf("expected %d samples, got %d", n, len(sets))
	}

	values := make([]float64, n)
	for i, set := range sets {
		values[i] = set["x"].(float64)
	}
	sort.Float64s(values)

	// One sample per equal-width bin
	for i, v := range values {
		lo := float64(i) / n
		hi := float64(i+1) / n
		if v < lo || v >= hi {
			t.Fatalf("sample %d = %v outside stratum [%v, %v)", i, v, lo, hi)
		}
	}
}

func TestLatinHypercubeIntStrata(t *testing.T) {
	config := NewConfig().
		WithParameters(Parameter{Name: "dte", Default: 1, Min: 1, Max: 5, Type: TypeInt}).
		WithMaxIterations(5).
		WithSeed(3)

	lhs, err := NewLatinHypercube(config)
	if err != nil {
		t.Fatalf("failed to create sampler: %v", err)
	}

	seen := make(map[int]bool)
	for _, set := range lhs.generateParameterSets() {
		v := set["dte"].(int)
		if v < 1 || v > 5 {
			t.Fatalf("value %d out of range", v)
		}
		seen[v] = true
	}
	if len(seen) != 5 {
		t.Fatalf("expected every integer covered once, got %v", seen)
	}
}

func TestValidateParameterSet(t *testing.T) {
	definitions := []Parameter{
		{Name: "intParam", Default: 10, Min: 1, Max: 100, Type: TypeInt},
		{Name: "floatParam", Default: 0.5, Min: 0.1, Max: 1.0, Type: TypeFloat},
	}

	valid := ParameterSet{"intParam": 50, "floatParam": 0.5}
	if err := ValidateParameterSet(valid, definitions); err != nil {
		t.Errorf("valid parameter set failed validation: %v", err)
	}

	missing := ParameterSet{"intParam": 50}
	if err := ValidateParameterSet(missing, definitions); err == nil {
		t.Error("missing parameter should fail validation")
	}

	wrongType := ParameterSet{"intParam": 50.5, "floatParam": 0.5}
	if err := ValidateParameterSet(wrongType, definitions); err == nil {
		t.Error("wrong type parameter should fail validation")
	}
}

func TestResultSorter(t *testing.T) {
	results := []*Result{
		{Metrics: map[string]float64{"mar": 1.0, "max_drawdown": 0.5}},
		{Metrics: map[string]float64{"mar": 2.0, "max_drawdown": 0.8}},
		{Metrics: map[string]float64{"mar": 1.5, "max_drawdown": 0.3}},
	}

	marSorter := ResultSorter{Results: results, MetricName: "mar", Maximize: true}
	if !marSorter.Less(1, 0) || !marSorter.Less(1, 2) {
		t.Error("higher MAR should sort first when maximizing")
	}

	ddSorter := ResultSorter{Results: results, MetricName: "max_drawdown", Maximize: false}
	if !ddSorter.Less(2, 0) || !ddSorter.Less(2, 1) {
		t.Error("lower drawdown should sort first when minimizing")
	}
}

func TestApplyParameterSet(t *testing.T) {
	base := backtest.DefaultParams()
	set := ParameterSet{
		"cycle_oversold": -0.5,
		"target_dte":     3,
	}

	params, err := ApplyParameterSet(base, set)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if params.CycleOversold != -0.5 {
		t.Errorf("cycle_oversold not applied, got %v", params.CycleOversold)
	}
	if params.TargetDTE != 3 {
		t.Errorf("target_dte not applied, got %v", params.TargetDTE)
	}
	if params.TrendUp != base.TrendUp {
		t.Error("untouched fields must keep base values")
	}

	if _, err := ApplyParameterSet(base, ParameterSet{"no_such_param": 1.0}); err == nil {
		t.Error("unknown parameter name should error")
	}
	if _, err := ApplyParameterSet(base, ParameterSet{"target_dte": 3.0}); err == nil {
		t.Error("wrong value type should error")
	}
}

func TestDefaultParametersMatchValidator(t *testing.T) {
	defaults := make(ParameterSet)
	for _, p := range DefaultParameters() {
		defaults[p.Name] = p.Default
	}

	if err := ValidateParameterSet(defaults, DefaultParameters()); err != nil {
		t.Fatalf("defaults fail their own declaration: %v", err)
	}

	params, err := ApplyParameterSet(backtest.DefaultParams(), defaults)
	if err != nil {
		t.Fatalf("defaults fail to apply: %v", err)
	}
	if err := params.Validate(); err != nil {
		t.Fatalf("applied defaults fail backtest validation: %v", err)
	}
}

func flatHistory(n int) []core.TradingDay {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	days := make([]core.TradingDay, n)
	for i := range days {
		days[i] = core.TradingDay{
			Date: start.AddDate(0, 0, i),
			Open: 400, High: 400, Low: 400, Close: 400,
			VIX: 20,
		}
	}
	return days
}

func TestBacktestEvaluatorEmitsValidationMetrics(t *testing.T) {
	evaluator, err := NewBacktestEvaluator("SPX", flatHistory(240), backtest.DefaultParams(), 0.7, nil)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}

	result, err := evaluator.Evaluate(context.Background(), ParameterSet{"trend_up": 0.3})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	for _, key := range []string{"cagr", "mar", "val_cagr", "val_mar", "cagr_constrained"} {
		if _, ok := result.Metrics[key]; !ok {
			t.Errorf("missing metric %s", key)
		}
	}
	if math.IsInf(result.Metrics["cagr"], -1) {
		t.Error("flat market run should not score negative infinity")
	}
}

func TestBacktestEvaluatorBuriesInvalidCandidates(t *testing.T) {
	evaluator, err := NewBacktestEvaluator("SPX", flatHistory(240), backtest.DefaultParams(), 1, nil)
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}

	// trend_up of 0 fails vector validation but must not abort the search
	result, err := evaluator.Evaluate(context.Background(), ParameterSet{"trend_up": 0.0})
	if err != nil {
		t.Fatalf("invalid candidate should not error: %v", err)
	}
	if !math.IsInf(result.Metrics["mar"], -1) {
		t.Error("invalid candidate should score negative infinity")
	}
}

func TestWalkForwardWindows(t *testing.T) {
	search := NewConfig().
		WithParameters(xForwardParameter()).
		WithMaxIterations(2).
		WithSeed(5)

	wf, err := NewWalkForward("SPX", backtest.DefaultParams(), 110, 50, 50, search)
	if err != nil {
		t.Fatalf("failed to create walk-forward: %v", err)
	}

	windows, err := wf.Run(context.Background(), flatHistory(260))
	if err != nil {
		t.Fatalf("walk-forward failed: %v", err)
	}
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}

	for i, w := range windows {
		if w.Best == nil {
			t.Fatalf("window %d has no best result", i)
		}
		if _, ok := w.Validation["val_cagr"]; !ok {
			t.Fatalf("window %d missing validation metrics", i)
		}
		if !w.ValidateStart.After(w.TrainEnd) {
			t.Fatalf("window %d validate segment overlaps train", i)
		}
	}
}

func TestWalkForwardRanksOnHeldOutMetrics(t *testing.T) {
	search := NewConfig().
		WithParameters(xForwardParameter()).
		WithMaxIterations(2).
		WithSeed(5).
		WithTargetMetric(MetricMAR.Validation(), true)

	wf, err := NewWalkForward("SPX", backtest.DefaultParams(), 110, 50, 50, search)
	if err != nil {
		t.Fatalf("failed to create walk-forward: %v", err)
	}

	windows, err := wf.Run(context.Background(), flatHistory(260))
	if err != nil {
		t.Fatalf("walk-forward failed: %v", err)
	}
	if len(windows) == 0 {
		t.Fatal("expected at least one window")
	}

	// The winner must carry the held-out selection metric; a search that
	// ranked on the training fit alone would never emit it
	for i, w := range windows {
		if _, ok := w.Best.Metrics[string(MetricMAR.Validation())]; !ok {
			t.Fatalf("window %d best result has no %s metric", i, MetricMAR.Validation())
		}
		if _, ok := w.Best.Metrics[string(MetricMAR)]; !ok {
			t.Fatalf("window %d best result has no training metrics", i)
		}
	}
}

func xForwardParameter() Parameter {
	return Parameter{
		Name:    "trend_up",
		Default: 0.3,
		Min:     0.1,
		Max:     0.7,
		Type:    TypeFloat,
	}
}

func TestWalkForwardRejectsShortTrainWindow(t *testing.T) {
	search := NewConfig().WithParameters(xForwardParameter())

	// One day short of warming up both sides of the selection split
	_, err := NewWalkForward("SPX", backtest.DefaultParams(), 2*(backtest.WarmupDays+1)-1, 50, 50, search)
	if err == nil {
		t.Fatal("train window too short for the selection split should be rejected")
	}
	if !errors.Is(err, core.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestFormatParameterSetIsSorted(t *testing.T) {
	got := FormatParameterSet(ParameterSet{"b": 2, "a": 1})
	want := fmt.Sprintf("{a: %v, b: %v}", 1, 2)
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

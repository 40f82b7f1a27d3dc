// Package optimizer searches the strategy parameter space: random search and
// latin hypercube sampling over a declared parameter set, plus walk-forward
// evaluation across rolling train/validate windows.
package optimizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/logger"
)

// Parameter declares one optimizable dimension of the search space.
type Parameter struct {
	Name        string
	Description string
	Default     interface{}
	Min         interface{}   // numeric parameters
	Max         interface{}   // numeric parameters
	Step        interface{}   // grid granularity, optional
	Options     []interface{} // categorical parameters
	Type        ParameterType
}

// ParameterType defines the data type of a parameter
type ParameterType string

const (
	TypeInt         ParameterType = "int"
	TypeFloat       ParameterType = "float"
	TypeBool        ParameterType = "bool"
	TypeCategorical ParameterType = "categorical"
)

// ParameterSet is one concrete point in the search space.
type ParameterSet map[string]interface{}

// Result is the outcome of evaluating a single parameter set.
type Result struct {
	Parameters ParameterSet
	Metrics    map[string]float64
	Duration   time.Duration
}

// MetricName defines the standard metric keys an evaluation emits.
type MetricName string

const (
	MetricCAGR            MetricName = "cagr"
	MetricMAR             MetricName = "mar"
	MetricSharpe          MetricName = "sharpe"
	MetricMaxDrawdown     MetricName = "max_drawdown"
	MetricTotalReturn     MetricName = "total_return"
	MetricWinRate         MetricName = "win_rate"
	MetricTradeCount      MetricName = "trade_count"
	MetricTargetMetPct    MetricName = "days_target_met_pct"
	MetricCAGRConstrained MetricName = "cagr_constrained"

	// MetricObjective is where a custom objective stores its value.
	MetricObjective MetricName = "objective"
)

// ObjectiveFunc computes a custom scalar objective from the metrics of one
// evaluation. Higher is better.
type ObjectiveFunc func(metrics map[string]float64) float64

// Validation returns the out-of-sample variant of a metric key. Selection
// should run on validation metrics so the search cannot overfit the training
// window.
func (m MetricName) Validation() MetricName {
	return "val_" + m
}

// Evaluator runs one backtest for a parameter set and reports its metrics.
type Evaluator interface {
	Evaluate(ctx context.Context, params ParameterSet) (*Result, error)
}

// Optimizer is a search algorithm over the declared parameter space.
type Optimizer interface {
	Optimize(ctx context.Context, evaluator Evaluator, targetMetric MetricName, maximize bool) ([]*Result, error)
	SetParameters(params []Parameter) error
	SetMaxIterations(iterations int)
	SetParallelism(n int)
}

// Config holds configuration for the optimization process
type Config struct {
	Parameters    []Parameter
	MaxIterations int
	Parallelism   int
	Logger        logger.Logger
	TargetMetric  MetricName
	Maximize      bool
	TopN          int
	// Objective overrides TargetMetric when set; see WithObjective
	Objective ObjectiveFunc
	// Seed fixes the sampler RNG; zero means time-based
	Seed int64
}

// NewConfig creates a default configuration
func NewConfig() *Config {
	return &Config{
		Parameters:    []Parameter{},
		MaxIterations: 100,
		Parallelism:   1,
		TargetMetric:  MetricMAR.Validation(),
		Maximize:      true,
		TopN:          5,
	}
}

// WithParameters adds parameters to the configuration
func (c *Config) WithParameters(params ...Parameter) *Config {
	c.Parameters = append(c.Parameters, params...)
	return c
}

// WithMaxIterations sets the maximum number of iterations
func (c *Config) WithMaxIterations(iterations int) *Config {
	c.MaxIterations = iterations
	return c
}

// WithParallelism sets the number of parallel evaluations
func (c *Config) WithParallelism(n int) *Config {
	c.Parallelism = n
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger logger.Logger) *Config {
	c.Logger = logger
	return c
}

// WithTargetMetric sets the target metric to optimize
func (c *Config) WithTargetMetric(metric MetricName, maximize bool) *Config {
	c.TargetMetric = metric
	c.Maximize = maximize
	return c
}

// WithObjective ranks candidates by a custom function of their metrics
// instead of a single metric key. The computed value is stored in each
// result under the "objective" key and higher values rank first.
func (c *Config) WithObjective(objective ObjectiveFunc) *Config {
	c.Objective = objective
	return c
}

// WithTopN sets the number of top results to return
func (c *Config) WithTopN(n int) *Config {
	c.TopN = n
	return c
}

// WithSeed fixes the sampler seed for reproducible searches
func (c *Config) WithSeed(seed int64) *Config {
	c.Seed = seed
	return c
}

// ValidateParameterSet checks if a parameter set contains all declared
// parameters with values of the correct type.
func ValidateParameterSet(params ParameterSet, definitions []Parameter) error {
	for _, def := range definitions {
		value, exists := params[def.Name]
		if !exists {
			return fmt.Errorf("missing parameter: %s", def.Name)
		}

		switch def.Type {
		case TypeInt:
			if _, ok := value.(int); !ok {
				return fmt.Errorf("parameter %s must be an integer", def.Name)
			}
		case TypeFloat:
			if _, ok := value.(float64); !ok {
				return fmt.Errorf("parameter %s must be a float", def.Name)
			}
		case TypeBool:
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("parameter %s must be a boolean", def.Name)
			}
		case TypeCategorical:
			found := false
			for _, option := range def.Options {
				if option == value {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("parameter %s has invalid value", def.Name)
			}
		}
	}
	return nil
}

// ResultSorter sorts optimization results by a specific metric
type ResultSorter struct {
	Results    []*Result
	MetricName string
	Maximize   bool
}

// Len returns the number of results
func (s ResultSorter) Len() int {
	return len(s.Results)
}

// Swap swaps two results
func (s ResultSorter) Swap(i, j int) {
	s.Results[i], s.Results[j] = s.Results[j], s.Results[i]
}

// Less compares two results based on the target metric
func (s ResultSorter) Less(i, j int) bool {
	valueI := s.Results[i].Metrics[s.MetricName]
	valueJ := s.Results[j].Metrics[s.MetricName]

	if s.Maximize {
		return valueI > valueJ
	}
	return valueI < valueJ
}

// rankResults scores and sorts evaluation results in place. A custom
// objective takes precedence over the target metric.
func rankResults(results []*Result, objective ObjectiveFunc, targetMetric MetricName, maximize bool) {
	key, maximizeKey := string(targetMetric), maximize
	if objective != nil {
		for _, result := range results {
			result.Metrics[string(MetricObjective)] = objective(result.Metrics)
		}
		key, maximizeKey = string(MetricObjective), true
	}

	sort.Sort(ResultSorter{
		Results:    results,
		MetricName: key,
		Maximize:   maximizeKey,
	})
}

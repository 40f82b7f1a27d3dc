package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/logger"
)

// RandomSearch samples the parameter space uniformly at random.
type RandomSearch struct {
	parameters    []Parameter
	maxIterations int
	parallelism   int
	logger        logger.Logger
	objective     ObjectiveFunc
	rng           *rand.Rand

	mu sync.Mutex // guards rng during sampling
}

// NewRandomSearch creates a new random search optimizer
func NewRandomSearch(config *Config) (*RandomSearch, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(config.Parameters) == 0 {
		return nil, fmt.Errorf("at least one parameter must be provided")
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &RandomSearch{
		parameters:    config.Parameters,
		maxIterations: config.MaxIterations,
		parallelism:   max(1, config.Parallelism),
		logger:        config.Logger,
		objective:     config.Objective,
		rng:           rand.New(rand.NewSource(seed)),
	}, nil
}

// SetParameters sets the parameters to be optimized
func (r *RandomSearch) SetParameters(params []Parameter) error {
	if len(params) == 0 {
		return fmt.Errorf("at least one parameter must be provided")
	}
	r.parameters = params
	return nil
}

// SetMaxIterations sets the maximum number of iterations
func (r *RandomSearch) SetMaxIterations(iterations int) {
	r.maxIterations = iterations
}

// SetParallelism sets the number of parallel evaluations
func (r *RandomSearch) SetParallelism(n int) {
	r.parallelism = max(1, n)
}

// Optimize runs the random search optimization process
func (r *RandomSearch) Optimize(
	ctx context.Context,
	evaluator Evaluator,
	targetMetric MetricName,
	maximize bool,
) ([]*Result, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}

	parameterSets := r.generateParameterSets()
	r.logf("Starting random search with %d iterations", len(parameterSets))

	results, err := runEvaluations(ctx, evaluator, parameterSets, r.parallelism, r.logger)
	if err != nil {
		return nil, err
	}

	rankResults(results, r.objective, targetMetric, maximize)

	r.logf("Random search completed with %d results", len(results))
	return results, nil
}

// generateParameterSets draws maxIterations independent random points.
func (r *RandomSearch) generateParameterSets() []ParameterSet {
	parameterSets := make([]ParameterSet, r.maxIterations)

	for i := 0; i < r.maxIterations; i++ {
		paramSet := make(ParameterSet)
		for _, param := range r.parameters {
			paramSet[param.Name] = r.randomValue(param)
		}
		parameterSets[i] = paramSet
	}

	return parameterSets
}

func (r *RandomSearch) randomValue(param Parameter) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch param.Type {
	case TypeInt:
		return randomInt(r.rng, param)
	case TypeFloat:
		return randomFloat(r.rng, param)
	case TypeBool:
		return r.rng.Intn(2) == 1
	case TypeCategorical:
		if len(param.Options) == 0 {
			return param.Default
		}
		return param.Options[r.rng.Intn(len(param.Options))]
	default:
		return param.Default
	}
}

func randomInt(rng *rand.Rand, param Parameter) int {
	min, ok := param.Min.(int)
	if !ok {
		if def, ok := param.Default.(int); ok {
			return def
		}
		return 0
	}
	max, ok := param.Max.(int)
	if !ok || min >= max {
		return min
	}
	return min + rng.Intn(max-min+1)
}

func randomFloat(rng *rand.Rand, param Parameter) float64 {
	min, ok := param.Min.(float64)
	if !ok {
		if def, ok := param.Default.(float64); ok {
			return def
		}
		return 0.0
	}
	max, ok := param.Max.(float64)
	if !ok || min >= max {
		return min
	}
	return min + rng.Float64()*(max-min)
}

// runEvaluations executes the evaluations for all parameter sets with
// bounded parallelism. The first evaluation error stops the run.
func runEvaluations(
	ctx context.Context,
	evaluator Evaluator,
	parameterSets []ParameterSet,
	parallelism int,
	log logger.Logger,
) ([]*Result, error) {
	var (
		results   []*Result
		mutex     sync.Mutex
		wg        sync.WaitGroup
		errCh     = make(chan error, 1)
		semaphore = make(chan struct{}, parallelism)
	)

	for i, params := range parameterSets {
		select {
		case <-ctx.Done():
			wg.Wait()
			return results, ctx.Err()
		case err := <-errCh:
			wg.Wait()
			return results, err
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(index int, paramSet ParameterSet) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result, err := evaluator.Evaluate(ctx, paramSet)
			if err != nil {
				select {
				case errCh <- fmt.Errorf("evaluation %d: %w", index+1, err):
				default:
				}
				return
			}

			mutex.Lock()
			results = append(results, result)
			mutex.Unlock()

			if log != nil {
				log.Debugf("Completed evaluation %d/%d", index+1, len(parameterSets))
			}
		}(i, params)
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return results, err
	default:
		return results, nil
	}
}

func (r *RandomSearch) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Infof(format, args...)
	}
}

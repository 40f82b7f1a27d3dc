package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/backtest"
	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/logger"
)

// WindowResult is the outcome of one walk-forward window: the best in-sample
// candidate and its out-of-sample metrics over the validate segment.
type WindowResult struct {
	TrainStart    time.Time
	TrainEnd      time.Time
	ValidateStart time.Time
	ValidateEnd   time.Time
	Best          *Result
	Validation    map[string]float64
}

// WalkForward slides a train/validate pair of windows across the history.
// Each window runs the configured search over its train segment, ranking
// candidates on the segment's held-back tail, then scores the winner on the
// untouched validate segment. Stable parameters show
// consistent validation metrics across windows; a strategy that only looks
// good in-sample falls apart here.
type WalkForward struct {
	symbol       string
	base         backtest.Params
	trainDays    int
	validateDays int
	stepDays     int
	search       *Config
	logger       logger.Logger
}

// selectionSplit reserves the tail of every train window as the segment
// candidates are ranked on, mirroring the split evaluator.
const selectionSplit = 2.0 / 3.0

// NewWalkForward validates the window geometry. The train window must cover
// the indicator warmup on both sides of the selection split.
func NewWalkForward(symbol string, base backtest.Params, trainDays, validateDays, stepDays int, search *Config) (*WalkForward, error) {
	if search == nil {
		return nil, fmt.Errorf("search config cannot be nil")
	}
	if minTrain := 2 * (backtest.WarmupDays + 1); trainDays < minTrain {
		return nil, fmt.Errorf("%w: train window %d cannot fit a selection split, need at least %d days",
			core.ErrInvalidParameter, trainDays, minTrain)
	}
	if validateDays <= 0 || stepDays <= 0 {
		return nil, fmt.Errorf("%w: validate and step windows must be positive", core.ErrInvalidParameter)
	}

	return &WalkForward{
		symbol:       symbol,
		base:         base,
		trainDays:    trainDays,
		validateDays: validateDays,
		stepDays:     stepDays,
		search:       search,
		logger:       search.Logger,
	}, nil
}

// Run executes every window in sequence and returns the per-window results.
func (w *WalkForward) Run(ctx context.Context, days []core.TradingDay) ([]WindowResult, error) {
	if len(days) < w.trainDays+w.validateDays {
		return nil, fmt.Errorf("%w: need at least %d days for one window, got %d",
			core.ErrInsufficientHistory, w.trainDays+w.validateDays, len(days))
	}

	var windows []WindowResult
	for start := 0; start+w.trainDays+w.validateDays <= len(days); start += w.stepDays {
		if err := ctx.Err(); err != nil {
			return windows, err
		}

		trainEnd := start + w.trainDays
		validateEnd := trainEnd + w.validateDays

		window, err := w.runWindow(ctx, days, start, trainEnd, validateEnd)
		if err != nil {
			return windows, fmt.Errorf("window starting %s: %w",
				days[start].Date.Format("2006-01-02"), err)
		}
		windows = append(windows, window)
	}

	return windows, nil
}

func (w *WalkForward) runWindow(ctx context.Context, days []core.TradingDay, start, trainEnd, validateEnd int) (WindowResult, error) {
	window := WindowResult{
		TrainStart:    days[start].Date,
		TrainEnd:      days[trainEnd-1].Date,
		ValidateStart: days[trainEnd].Date,
		ValidateEnd:   days[validateEnd-1].Date,
	}

	if w.logger != nil {
		w.logger.WithFields(map[string]interface{}{
			"train":    fmt.Sprintf("%s..%s", window.TrainStart.Format("2006-01-02"), window.TrainEnd.Format("2006-01-02")),
			"validate": fmt.Sprintf("%s..%s", window.ValidateStart.Format("2006-01-02"), window.ValidateEnd.Format("2006-01-02")),
		}).Info("running walk-forward window")
	}

	// Candidates are ranked on the tail of the train segment, never on the
	// fit itself; the held-out segment below stays untouched by selection
	evaluator, err := NewBacktestEvaluator(w.symbol, days[start:trainEnd], w.base, selectionSplit, w.logger)
	if err != nil {
		return window, err
	}

	search, err := NewRandomSearch(w.search)
	if err != nil {
		return window, err
	}

	results, err := search.Optimize(ctx, evaluator, w.search.TargetMetric, w.search.Maximize)
	if err != nil {
		return window, err
	}
	if len(results) == 0 {
		return window, fmt.Errorf("search produced no results")
	}
	window.Best = results[0]

	// Out-of-sample run, warmed up from the train tail
	params, err := ApplyParameterSet(w.base, window.Best.Parameters)
	if err != nil {
		return window, err
	}
	if err := params.Validate(); err != nil {
		return window, err
	}

	validator, err := NewBacktestEvaluator(w.symbol, days[trainEnd-backtest.WarmupDays:validateEnd], w.base, 1, w.logger)
	if err != nil {
		return window, err
	}

	perf, err := validator.run(ctx, params, validator.days)
	if err != nil {
		return window, err
	}

	window.Validation = make(map[string]float64)
	mergeMetrics(window.Validation, perf, "val_")
	return window, nil
}

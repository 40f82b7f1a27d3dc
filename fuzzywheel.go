// Package fuzzywheel wires the pieces of the options-wheel simulator into a
// runnable session: a market data provider, the backtest engine, trade
// journal storage and optional notification surfaces.
package fuzzywheel

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/quantarc/fuzzywheel/pkg/backtest"
	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/logger"
	"github.com/quantarc/fuzzywheel/pkg/metric"
	"github.com/quantarc/fuzzywheel/pkg/storage"
	"github.com/schollz/progressbar/v3"
)

const defaultDatabase = "fuzzywheel.db"

// DefaultLog is the process-wide logger, configured from the environment in
// init.go.
var DefaultLog logger.Logger

// Session runs one symbol's simulation end to end.
type Session struct {
	symbol   string
	params   backtest.Params
	provider core.DataProvider
	storage  core.TradeStorage
	notifier core.Notifier
	telegram core.NotifierWithStart
	logger   logger.Logger

	result *backtest.Result
}

type Option func(*Session)

// WithStorage sets the trade journal store. By default a local file called
// fuzzywheel.db is used.
func WithStorage(store core.TradeStorage) Option {
	return func(s *Session) {
		s.storage = store
	}
}

// WithNotifier registers a notifier for run completion and errors.
func WithNotifier(notifier core.Notifier) Option {
	return func(s *Session) {
		s.notifier = notifier
	}
}

// WithTelegram registers a telegram bot; its receive loop is started with the
// run and it also acts as the session notifier.
func WithTelegram(bot core.NotifierWithStart) Option {
	return func(s *Session) {
		s.telegram = bot
		s.notifier = bot
	}
}

// WithLogger replaces the default logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Session) {
		s.logger = log
	}
}

// WithLogLevel sets the log level on the session logger.
func WithLogLevel(level logger.Level) Option {
	return func(s *Session) {
		s.logger.SetLevel(level)
	}
}

// NewSession validates the inputs and assembles a run-ready session.
func NewSession(symbol string, params backtest.Params, provider core.DataProvider, options ...Option) (*Session, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: a market data provider is required", core.ErrInvalidParameter)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	session := &Session{
		symbol:   symbol,
		params:   params,
		provider: provider,
		logger:   DefaultLog,
	}

	for _, option := range options {
		option(session)
	}

	if session.storage == nil {
		store, err := storage.FromFile(defaultDatabase)
		if err != nil {
			return nil, err
		}
		session.storage = store
	}

	return session, nil
}

// Run fetches the history for the window and walks it through the backtest
// engine. The result is retained for Summary and SaveReturns.
func (s *Session) Run(ctx context.Context, start, end time.Time) (*backtest.Result, error) {
	days, err := s.provider.DailyHistory(ctx, s.symbol, start, end)
	if err != nil {
		return nil, err
	}

	if s.telegram != nil {
		s.telegram.Start()
	}

	tradeable := len(days) - backtest.WarmupDays
	if tradeable < 1 {
		tradeable = 1
	}
	progressBar := progressbar.Default(int64(tradeable))

	engine, err := backtest.NewEngine(s.symbol, s.params,
		backtest.WithLogger(s.logger),
		backtest.WithStorage(s.storage),
		backtest.WithDayHook(func(metric.DailyRecord) {
			if err := progressBar.Add(1); err != nil {
				s.logger.Warnf("update progressbar fail: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	result, err := engine.Run(ctx, days)
	if err != nil {
		if s.notifier != nil {
			s.notifier.OnError(err)
		}
		return nil, err
	}
	s.result = result

	if s.notifier != nil {
		s.notifier.Notify(fmt.Sprintf(
			"%s run finished: return %.2f%%, max drawdown %.2f%%, %d trades",
			s.symbol, result.Metrics.TotalReturn*100, result.Metrics.MaxDrawdown*100,
			result.Metrics.TotalTrades))
	}
	return result, nil
}

// Result returns the last run's output, or nil before the first run.
func (s *Session) Result() *backtest.Result {
	return s.result
}

// Summary renders the last run as a metrics table, a daily-return histogram
// and a bootstrap confidence interval.
func (s *Session) Summary() string {
	if s.result == nil {
		return "no results yet"
	}
	m := s.result.Metrics

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.AppendBulk([][]string{
		{"Total Return", fmt.Sprintf("%.2f %%", m.TotalReturn*100)},
		{"CAGR", fmt.Sprintf("%.2f %%", m.CAGR*100)},
		{"Max Drawdown", fmt.Sprintf("%.2f %%", m.MaxDrawdown*100)},
		{"Sharpe", fmt.Sprintf("%.2f", m.Sharpe)},
		{"MAR", fmt.Sprintf("%.2f", m.MAR)},
		{"Win Rate", fmt.Sprintf("%.1f %%", m.WinRate*100)},
		{"Trades", strconv.Itoa(m.TotalTrades)},
		{"Days Target Met", fmt.Sprintf("%d (%.1f %%)", m.DaysTargetMet, m.DaysTargetMetPct)},
		{"Aborted", strconv.FormatBool(m.Aborted)},
	})
	table.Render()

	equity := make([]float64, len(s.result.Days))
	for i, day := range s.result.Days {
		equity[i] = day.Equity
	}
	returns := metric.DailyReturns(equity)

	fmt.Fprintln(buffer, "------ DAILY RETURN -------")
	returnsPercent := make([]float64, len(returns))
	for i, r := range returns {
		returnsPercent[i] = r * 100
	}
	hist := histogram.Hist(15, returnsPercent)
	if err := histogram.Fprint(buffer, hist, histogram.Linear(10)); err != nil {
		s.logger.WithError(err).Warn("failed to render return histogram")
	}

	fmt.Fprintln(buffer, "------ CONFIDENCE INTERVAL (95%) -------")
	interval := metric.Bootstrap(returns, metric.Mean, 10000, 0.95)
	fmt.Fprintf(buffer, "DAILY RETURN: %.3f%% (%.3f%% ~ %.3f%%)\n",
		interval.Mean*100, interval.Lower*100, interval.Upper*100)

	return buffer.String()
}

// PrintSummary writes Summary to stdout.
func (s *Session) PrintSummary() {
	fmt.Println(s.Summary())
}

// SaveReturns writes the daily equity curve and premium bookkeeping to a CSV
// file.
func (s *Session) SaveReturns(outputFile string) error {
	if s.result == nil {
		return fmt.Errorf("no results yet")
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"date", "equity", "premium", "target"}); err != nil {
		return err
	}
	for _, day := range s.result.Days {
		record := []string{
			day.Date.Format("2006-01-02"),
			strconv.FormatFloat(day.Equity, 'f', 2, 64),
			strconv.FormatFloat(day.Premium, 'f', 2, 64),
			strconv.FormatFloat(day.Target, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

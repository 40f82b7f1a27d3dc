package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/quantarc/fuzzywheel"
	"github.com/quantarc/fuzzywheel/pkg/backtest"
	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/marketdata"
	"github.com/quantarc/fuzzywheel/pkg/notification"
	"github.com/quantarc/fuzzywheel/pkg/optimizer"
	"github.com/quantarc/fuzzywheel/pkg/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"
)

const dateLayout = "2006-01-02"

// Command line flags
var (
	// Data source flags
	symbol    string
	priceFile string
	vixFile   string
	apiURL    string
	startDate string
	endDate   string

	outputFile string

	// Search flags
	iterations   int
	parallelism  int
	seed         int64
	targetMetric string
	topN         int
	sampler      string
	split        float64

	// Walk-forward window flags
	trainWindow    string
	validateWindow string
	stepWindow     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "fuzzywheel",
		Short:   "Options wheel strategy simulator and optimizer",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&symbol, "symbol", "p", "SPX", "Underlying symbol")
	rootCmd.PersistentFlags().StringVar(&priceFile, "prices", "", "Daily OHLC CSV file")
	rootCmd.PersistentFlags().StringVar(&vixFile, "vix", "", "Volatility index CSV file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Quote API base URL (alternative to CSV files)")
	rootCmd.PersistentFlags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2021-12-01)")
	rootCmd.PersistentFlags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2023-12-31)")

	rootCmd.AddCommand(buildBacktestCmd(), buildOptimizeCmd(), buildWalkForwardCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildBacktestCmd() *cobra.Command {
	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one simulation and print its summary",
		RunE:  runBacktest,
	}

	backtestCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Daily returns CSV output path")

	return backtestCmd
}

func buildOptimizeCmd() *cobra.Command {
	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search the parameter space for the best vectors",
		RunE:  runOptimize,
	}

	addSearchFlags(optimizeCmd)
	optimizeCmd.Flags().Float64Var(&split, "split", 0.7, "Train fraction of the history; the rest validates")
	optimizeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Results CSV output path")

	return optimizeCmd
}

func buildWalkForwardCmd() *cobra.Command {
	walkForwardCmd := &cobra.Command{
		Use:   "walkforward",
		Short: "Run a rolling train/validate optimization",
		RunE:  runWalkForward,
	}

	addSearchFlags(walkForwardCmd)
	walkForwardCmd.Flags().StringVar(&trainWindow, "train", "2520h", "Training window (e.g. 2520h for ~105 trading days)")
	walkForwardCmd.Flags().StringVar(&validateWindow, "validate", "1080h", "Validation window")
	walkForwardCmd.Flags().StringVar(&stepWindow, "step", "1080h", "Roll step")

	return walkForwardCmd
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&iterations, "iterations", "i", 100, "Number of candidates to evaluate")
	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "Concurrent evaluations")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Sampler seed (0 = time based)")
	cmd.Flags().StringVarP(&targetMetric, "metric", "m", string(optimizer.MetricMAR.Validation()), "Metric to maximize")
	cmd.Flags().IntVar(&topN, "top", 5, "How many results to print")
	cmd.Flags().StringVar(&sampler, "sampler", "random", "Search strategy: random or lhs")
}

// buildProvider picks the data source from the flags: local CSV files or the
// quote API fronted by the memoizing cache.
func buildProvider() (core.DataProvider, error) {
	switch {
	case priceFile != "":
		if vixFile == "" {
			return nil, fmt.Errorf("--vix is required when --prices is set")
		}
		return marketdata.NewCSVFeed(marketdata.FileFeed{
			Symbol:    symbol,
			PriceFile: priceFile,
			VIXFile:   vixFile,
		})
	case apiURL != "":
		return marketdata.NewCache(marketdata.NewClient(apiURL)), nil
	}
	return nil, fmt.Errorf("either --prices/--vix or --api must be provided")
}

// parseRange parses the date flags; without them the last two years are used.
func parseRange() (start, end time.Time, err error) {
	end = time.Now().UTC().Truncate(24 * time.Hour)
	start = end.AddDate(-2, 0, 0)

	if startDate != "" {
		if start, err = time.Parse(dateLayout, startDate); err != nil {
			return start, end, fmt.Errorf("invalid start date format: %w", err)
		}
	}
	if endDate != "" {
		if end, err = time.Parse(dateLayout, endDate); err != nil {
			return start, end, fmt.Errorf("invalid end date format: %w", err)
		}
	}
	if !end.After(start) {
		return start, end, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	config := loadAppConfig()

	provider, err := buildProvider()
	if err != nil {
		return err
	}
	start, end, err := parseRange()
	if err != nil {
		return err
	}

	store, err := storage.FromFile(config.StoragePath)
	if err != nil {
		return err
	}
	defer store.Close()

	options := []fuzzywheel.Option{fuzzywheel.WithStorage(store)}

	// The summary provider closes over the session pointer so the bot can be
	// built before the session exists.
	var session *fuzzywheel.Session
	if config.Telegram.Enabled {
		bot, err := notification.NewTelegram(
			notification.Settings{
				Token: config.Telegram.Token,
				Users: []int64{config.Telegram.UserID},
			},
			notification.WithSummaryProvider(func() string {
				if session == nil {
					return "no results yet"
				}
				return session.Summary()
			}),
		)
		if err != nil {
			return err
		}
		options = append(options, fuzzywheel.WithTelegram(bot))
	}

	session, err = fuzzywheel.NewSession(symbol, backtest.DefaultParams(), provider, options...)
	if err != nil {
		return err
	}

	if _, err := session.Run(cmd.Context(), start, end); err != nil {
		return err
	}

	session.PrintSummary()

	if outputFile != "" {
		return session.SaveReturns(outputFile)
	}
	return nil
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	days, err := loadHistory(cmd)
	if err != nil {
		return err
	}

	evaluator, err := optimizer.NewBacktestEvaluator(
		symbol, days, backtest.DefaultParams(), split, fuzzywheel.DefaultLog)
	if err != nil {
		return err
	}

	config := searchConfig()
	search, err := buildSampler(config)
	if err != nil {
		return err
	}

	progress := &progressEvaluator{
		inner: evaluator,
		bar:   progressbar.Default(int64(iterations)),
	}
	results, err := search.Optimize(cmd.Context(), progress, config.TargetMetric, config.Maximize)
	if err != nil {
		return err
	}

	optimizer.PrintResults(results, config.TargetMetric, config.TopN)

	if outputFile != "" {
		return optimizer.SaveResultsToCSV(results, config.TargetMetric, outputFile)
	}
	return nil
}

func runWalkForward(cmd *cobra.Command, _ []string) error {
	days, err := loadHistory(cmd)
	if err != nil {
		return err
	}

	trainDays, err := windowDays("train", trainWindow)
	if err != nil {
		return err
	}
	validateDays, err := windowDays("validate", validateWindow)
	if err != nil {
		return err
	}
	stepDays, err := windowDays("step", stepWindow)
	if err != nil {
		return err
	}

	walkForward, err := optimizer.NewWalkForward(
		symbol, backtest.DefaultParams(), trainDays, validateDays, stepDays, searchConfig())
	if err != nil {
		return err
	}

	windows, err := walkForward.Run(cmd.Context(), days)
	if err != nil {
		return err
	}

	for i, window := range windows {
		fmt.Printf("--- window %d: train %s..%s validate %s..%s ---\n",
			i+1,
			window.TrainStart.Format(dateLayout), window.TrainEnd.Format(dateLayout),
			window.ValidateStart.Format(dateLayout), window.ValidateEnd.Format(dateLayout))
		fmt.Printf("best: %s\n", optimizer.FormatParameterSet(window.Best.Parameters))
		for _, name := range []optimizer.MetricName{optimizer.MetricCAGR, optimizer.MetricMAR, optimizer.MetricMaxDrawdown} {
			fmt.Printf("%s: %.4f (train %.4f)\n",
				name.Validation(), window.Validation[string(name.Validation())],
				window.Best.Metrics[string(name)])
		}
	}
	return nil
}

func loadHistory(cmd *cobra.Command) ([]core.TradingDay, error) {
	provider, err := buildProvider()
	if err != nil {
		return nil, err
	}
	start, end, err := parseRange()
	if err != nil {
		return nil, err
	}
	return provider.DailyHistory(cmd.Context(), symbol, start, end)
}

func searchConfig() *optimizer.Config {
	return optimizer.NewConfig().
		WithParameters(optimizer.DefaultParameters()...).
		WithMaxIterations(iterations).
		WithParallelism(parallelism).
		WithTargetMetric(optimizer.MetricName(targetMetric), true).
		WithTopN(topN).
		WithSeed(seed).
		WithLogger(fuzzywheel.DefaultLog)
}

func buildSampler(config *optimizer.Config) (optimizer.Optimizer, error) {
	switch sampler {
	case "lhs":
		return optimizer.NewLatinHypercube(config)
	case "random":
		return optimizer.NewRandomSearch(config)
	}
	return nil, fmt.Errorf("unknown sampler %q", sampler)
}

// progressEvaluator ticks a terminal progress bar per evaluated candidate.
// The bar serializes its own updates, so concurrent evaluations are fine.
type progressEvaluator struct {
	inner optimizer.Evaluator
	bar   *progressbar.ProgressBar
}

func (p *progressEvaluator) Evaluate(ctx context.Context, params optimizer.ParameterSet) (*optimizer.Result, error) {
	result, err := p.inner.Evaluate(ctx, params)
	_ = p.bar.Add(1)
	return result, err
}

// windowDays converts a duration flag into whole days.
func windowDays(name, value string) (int, error) {
	duration, err := str2duration.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s window: %w", name, err)
	}
	days := int(duration.Hours() / 24)
	if days < 1 {
		return 0, fmt.Errorf("%s window must cover at least one day", name)
	}
	return days, nil
}

package fuzzywheel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/backtest"
	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/metric"
	"github.com/quantarc/fuzzywheel/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatProvider serves a flat synthetic history regardless of range.
type flatProvider struct {
	n int
}

func (p flatProvider) DailyHistory(_ context.Context, _ string, start, _ time.Time) ([]core.TradingDay, error) {
	days := make([]core.TradingDay, p.n)
	for i := range days {
		days[i] = core.TradingDay{
			Date:  start.AddDate(0, 0, i),
			Open:  400,
			High:  400,
			Low:   400,
			Close: 400,
			VIX:   20,
		}
	}
	return days, nil
}

func TestNewSessionRequiresProvider(t *testing.T) {
	_, err := NewSession("SPX", backtest.DefaultParams(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestNewSessionRejectsBadParams(t *testing.T) {
	params := backtest.DefaultParams()
	params.InitialCapital = 0
	_, err := NewSession("SPX", params, flatProvider{n: 160})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestSessionRunAndSummary(t *testing.T) {
	store, err := storage.FromMemory()
	require.NoError(t, err)
	defer store.Close()

	session, err := NewSession("SPX", backtest.DefaultParams(), flatProvider{n: 160},
		WithStorage(store))
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := session.Run(context.Background(), start, start.AddDate(0, 0, 160))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Metrics.Aborted)
	assert.Same(t, result, session.Result())

	// The journal made it to storage
	trades, err := store.Trades(core.WithSymbol("SPX"))
	require.NoError(t, err)
	assert.NotEmpty(t, trades)

	summary := session.Summary()
	assert.Contains(t, summary, "Total Return")
	assert.Contains(t, summary, "CONFIDENCE INTERVAL")
}

func TestSummaryRendersTargetMetPercent(t *testing.T) {
	session, err := NewSession("SPX", backtest.DefaultParams(), flatProvider{n: 160},
		WithStorage(mustMemoryStore(t)))
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	session.result = &backtest.Result{
		// DaysTargetMetPct is already a percentage
		Metrics: metric.Performance{DaysTargetMet: 2, DaysTargetMetPct: 50},
		Days: []metric.DailyRecord{
			{Date: start, Equity: 1_000_000},
			{Date: start.AddDate(0, 0, 1), Equity: 1_000_100},
			{Date: start.AddDate(0, 0, 2), Equity: 1_000_300},
			{Date: start.AddDate(0, 0, 3), Equity: 1_000_200},
		},
	}

	assert.Contains(t, session.Summary(), "2 (50.0 %)")
}

func TestSessionSummaryBeforeRun(t *testing.T) {
	session, err := NewSession("SPX", backtest.DefaultParams(), flatProvider{n: 160},
		WithStorage(mustMemoryStore(t)))
	require.NoError(t, err)
	assert.Equal(t, "no results yet", session.Summary())
	assert.Error(t, session.SaveReturns("unused.csv"))
}

func TestSessionSaveReturns(t *testing.T) {
	session, err := NewSession("SPX", backtest.DefaultParams(), flatProvider{n: 160},
		WithStorage(mustMemoryStore(t)))
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = session.Run(context.Background(), start, start.AddDate(0, 0, 160))
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "returns.csv")
	require.NoError(t, session.SaveReturns(output))

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal(t, "date,equity,premium,target", lines[0])
	assert.Len(t, lines, len(session.Result().Days)+1)
}

func mustMemoryStore(t *testing.T) core.TradeStorage {
	t.Helper()
	store, err := storage.FromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

package recommend

import (
	"testing"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/backtest"
	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// history builds n flat trading days starting Monday 2024-01-01. The last
// day's weekday follows from n: offsets 0, 7, 14... are Mondays.
func history(n int, close, vix float64) []core.TradingDay {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	days := make([]core.TradingDay, n)
	for i := range days {
		days[i] = core.TradingDay{
			Date:  start.AddDate(0, 0, i),
			Open:  close,
			High:  close,
			Low:   close,
			Close: close,
			VIX:   vix,
		}
	}
	return days
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine("SPX", backtest.DefaultParams())
	require.NoError(t, err)
	return e
}

func findAction(recs []Recommendation, action core.TradeAction) (Recommendation, bool) {
	for _, rec := range recs {
		if rec.Action == action {
			return rec, true
		}
	}
	return Recommendation{}, false
}

func TestNewEngineRejectsBadParams(t *testing.T) {
	params := backtest.DefaultParams()
	params.TargetDTE = 0
	_, err := NewEngine("SPX", params)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestRecommendationsRequireHistory(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Recommendations(history(10, 400, 20), Book{TotalValue: 1_000_000})
	assert.ErrorIs(t, err, core.ErrInsufficientHistory)
}

func TestRecommendationsRequirePositiveBook(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Recommendations(history(117, 400, 20), Book{})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestFlatFridayRecommendsATMPut(t *testing.T) {
	e := newTestEngine(t)

	// 117 days ends on a Friday, so the weekend tenor applies
	recs, err := e.Recommendations(history(117, 400, 20), Book{TotalValue: 1_000_000})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, core.ActionSellPut, rec.Action)
	assert.Equal(t, core.OptionPut, rec.OptionType)
	assert.Equal(t, 400.0, rec.Strike, "neutral cycle and flat trend strike at the money")
	assert.Equal(t, 3, rec.DTE)
	assert.Equal(t, 11, rec.Contracts)
	assert.InDelta(t, 797.8, rec.ExpectedPremium, 1.0)
	assert.Equal(t, ConfidenceHigh, rec.Confidence)
}

func TestMidweekPutSkippedWhenPremiumTooSmall(t *testing.T) {
	e := newTestEngine(t)

	// 115 days ends on a Wednesday: single-day tenor, premium under minimum
	recs, err := e.Recommendations(history(115, 400, 20), Book{TotalValue: 1_000_000})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPremiumTargetMetSkipsPut(t *testing.T) {
	e := newTestEngine(t)

	book := Book{TotalValue: 1_000_000, PremiumCollected: 800}
	recs, err := e.Recommendations(history(117, 400, 20), book)
	require.NoError(t, err)
	_, found := findAction(recs, core.ActionSellPut)
	assert.False(t, found)
}

func TestCoveredCallInRichVIX(t *testing.T) {
	e := newTestEngine(t)

	// A VIX spike on the last day pushes its percentile to 1.0, which is what
	// makes the call premium attractive enough to write against the lot.
	days := history(117, 400, 10)
	days[len(days)-1].VIX = 30

	book := Book{
		TotalValue: 1_000_000,
		Shares:     300,
		CostBasis:  360,
		Acquired:   days[0].Date,
	}
	recs, err := e.Recommendations(days, book)
	require.NoError(t, err)

	rec, found := findAction(recs, core.ActionSellCall)
	require.True(t, found)
	assert.Equal(t, core.OptionCall, rec.OptionType)
	assert.Equal(t, 363.5, rec.Strike, "one percent above cost basis, rounded to the half dollar")
	assert.Equal(t, 3, rec.Contracts)
	assert.Equal(t, ConfidenceMedium, rec.Confidence)
	assert.Greater(t, rec.ExpectedPremium, 0.0)
}

func TestExistingShortCallBlocksNewCall(t *testing.T) {
	e := newTestEngine(t)

	days := history(117, 400, 10)
	days[len(days)-1].VIX = 30

	book := Book{
		TotalValue:   1_000_000,
		Shares:       300,
		CostBasis:    360,
		Acquired:     days[0].Date,
		HasShortCall: true,
	}
	recs, err := e.Recommendations(days, book)
	require.NoError(t, err)

	_, found := findAction(recs, core.ActionSellCall)
	assert.False(t, found)
}

func TestHeavyBookGetsHedge(t *testing.T) {
	e := newTestEngine(t)

	book := Book{
		TotalValue:      1_000_000,
		BuyingPowerUsed: 800_000,
		Shares:          2000,
		CostBasis:       400,
	}
	recs, err := e.Recommendations(history(117, 400, 20), book)
	require.NoError(t, err)

	rec, found := findAction(recs, core.ActionBuyHedge)
	require.True(t, found)
	assert.Equal(t, core.OptionPut, rec.OptionType)
	assert.Equal(t, 364.0, rec.Strike, "nine percent OTM in a mid VIX regime")
	assert.Equal(t, 5, rec.Contracts)
	assert.Equal(t, backtest.DefaultParams().HedgeDTE, rec.DTE)
	assert.Negative(t, rec.ExpectedPremium, "hedges cost money")
}

func TestCriticalBuyingPowerConvertsShares(t *testing.T) {
	e := newTestEngine(t)

	// Nearly all buying power consumed by a heavy stock lot: the conversion
	// rule frees margin by swapping shares for deep ITM calls.
	book := Book{
		TotalValue:      1_000_000,
		BuyingPowerUsed: 950_000,
		Shares:          2000,
		CostBasis:       400,
	}
	recs, err := e.Recommendations(history(117, 400, 20), book)
	require.NoError(t, err)

	rec, found := findAction(recs, core.ActionConvert)
	require.True(t, found)
	assert.Equal(t, core.OptionCall, rec.OptionType)
	assert.Equal(t, 336.0, rec.Strike, "deep ITM at the mid VIX delta target")
	assert.Equal(t, 16, rec.Contracts)
	assert.Equal(t, 90, rec.DTE)
	assert.Equal(t, ConfidenceMedium, rec.Confidence)
	assert.Negative(t, rec.ExpectedPremium, "the replacement calls cost money")
}

func TestComfortableBookSkipsConvert(t *testing.T) {
	e := newTestEngine(t)

	book := Book{
		TotalValue: 1_000_000,
		Shares:     2000,
		CostBasis:  400,
	}
	recs, err := e.Recommendations(history(117, 400, 20), book)
	require.NoError(t, err)

	_, found := findAction(recs, core.ActionConvert)
	assert.False(t, found)
}

func TestLightBookSkipsHedge(t *testing.T) {
	e := newTestEngine(t)

	recs, err := e.Recommendations(history(117, 400, 20), Book{TotalValue: 1_000_000})
	require.NoError(t, err)

	_, found := findAction(recs, core.ActionBuyHedge)
	assert.False(t, found)
}

package backtest

import (
	"testing"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // a Monday

func TestOpenShortCreditsPremium(t *testing.T) {
	l := NewLedger("SPX", 1_000_000)
	l.ResetDay(800)

	pos, err := l.openShort(testDay, core.OptionPut, 400, testDay.AddDate(0, 0, 1), 5, 0.80, core.ActionSellPut)
	require.NoError(t, err)

	assert.InDelta(t, 1_000_400, l.Cash(), 1e-9)
	assert.InDelta(t, 400, l.DailyPremium(), 1e-9)
	assert.Equal(t, core.StatusOpen, pos.Status)
	assert.Equal(t, 0.80, pos.Mark)

	trades := l.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, core.ActionSellPut, trades[0].Action)
	assert.False(t, trades[0].Terminal)
	assert.InDelta(t, 400, trades[0].CashFlow, 1e-9)
}

func TestClosePositionRealizesAndIsTerminal(t *testing.T) {
	l := NewLedger("SPX", 1_000_000)
	pos, err := l.openShort(testDay, core.OptionPut, 400, testDay.AddDate(0, 0, 1), 2, 1.00, core.ActionSellPut)
	require.NoError(t, err)

	ok := l.closePosition(pos, testDay.AddDate(0, 0, 1), 0.30, core.StatusClosed, core.ActionBuyClose)
	require.True(t, ok)

	// Credited 200 on open, paid 60 to close
	assert.InDelta(t, 1_000_140, l.Cash(), 1e-9)
	assert.Equal(t, core.StatusClosed, pos.Status)

	trades := l.Trades()
	require.Len(t, trades, 2)
	assert.True(t, trades[1].Terminal)
	assert.InDelta(t, 140, trades[1].RealizedPnL, 1e-9)

	// Settling again must be a no-op
	ok = l.closePosition(pos, testDay.AddDate(0, 0, 2), 0, core.StatusExpired, core.ActionExpire)
	assert.False(t, ok)
	assert.InDelta(t, 1_000_140, l.Cash(), 1e-9)
	assert.Len(t, l.Trades(), 2)
}

func TestLongPositionRoundTrip(t *testing.T) {
	l := NewLedger("SPX", 1_000_000)
	pos, err := l.openLong(testDay, core.OptionPut, 360, testDay.AddDate(0, 0, 30), 3, 2.00, core.ActionBuyHedge)
	require.NoError(t, err)

	assert.InDelta(t, 999_400, l.Cash(), 1e-9)
	assert.Zero(t, l.DailyPremium(), "long option cost must not count toward premium income")

	l.closePosition(pos, testDay.AddDate(0, 0, 30), 5.00, core.StatusExercised, core.ActionExercise)
	assert.InDelta(t, 1_000_900, l.Cash(), 1e-9)

	trades := l.Trades()
	require.Len(t, trades, 2)
	assert.InDelta(t, 900, trades[1].RealizedPnL, 1e-9)
}

func TestBuySharesBlendsCostBasis(t *testing.T) {
	l := NewLedger("SPX", 1_000_000)

	l.buyShares(testDay, 100, 400, core.ActionAssign)
	l.buyShares(testDay.AddDate(0, 0, 5), 100, 380, core.ActionAssign)

	lot := l.Stock()
	assert.Equal(t, 200, lot.Shares)
	assert.InDelta(t, 390, lot.CostBasis, 1e-9)
	assert.Equal(t, testDay, lot.Acquired, "acquired date keeps the first assignment")
	assert.InDelta(t, 1_000_000-78_000, l.Cash(), 1e-9)
}

func TestSellSharesRealizesStockPnL(t *testing.T) {
	l := NewLedger("SPX", 1_000_000)
	l.buyShares(testDay, 200, 400, core.ActionAssign)

	require.NoError(t, l.sellShares(testDay.AddDate(0, 0, 10), 200, 410, core.ActionSellShares))

	assert.Equal(t, 0, l.Stock().Shares)
	assert.InDelta(t, 1_002_000, l.Cash(), 1e-9)

	trades := l.Trades()
	require.Len(t, trades, 2)
	assert.InDelta(t, 2000, trades[1].RealizedPnL, 1e-9)
	assert.True(t, trades[1].Terminal)
}

func TestSellSharesClampsToHolding(t *testing.T) {
	l := NewLedger("SPX", 1_000_000)
	l.buyShares(testDay, 100, 400, core.ActionAssign)

	require.NoError(t, l.sellShares(testDay, 500, 400, core.ActionSellShares))
	assert.Equal(t, 0, l.Stock().Shares)

	err := l.sellShares(testDay, 100, 400, core.ActionSellShares)
	assert.ErrorIs(t, err, core.ErrInvalidQuantity)
	assert.Len(t, l.Trades(), 2, "selling with no shares must not journal")
}

func TestTotalValueMarksOpenLines(t *testing.T) {
	l := NewLedger("SPX", 1_000_000)
	l.buyShares(testDay, 100, 400, core.ActionAssign)
	short, err := l.openShort(testDay, core.OptionPut, 390, testDay.AddDate(0, 0, 1), 1, 1.00, core.ActionSellPut)
	require.NoError(t, err)
	long, err := l.openLong(testDay, core.OptionPut, 360, testDay.AddDate(0, 0, 30), 1, 2.00, core.ActionBuyHedge)
	require.NoError(t, err)

	short.Mark = 1.50 // moved against us
	long.Mark = 2.40

	spot := 405.0
	cash := 1_000_000.0 - 40_000 + 100 - 200
	want := cash + 100*spot + (1.00-1.50)*100 + (2.40-2.00)*100
	assert.InDelta(t, want, l.TotalValue(spot), 1e-9)
}

func TestBuyingPower(t *testing.T) {
	l := NewLedger("SPX", 1_000_000)
	l.buyShares(testDay, 100, 400, core.ActionAssign)
	l.openShort(testDay, core.OptionPut, 390, testDay.AddDate(0, 0, 1), 2, 1.00, core.ActionSellPut)

	spot := 400.0
	used := 100*spot + 390*100*2
	assert.InDelta(t, used, l.BuyingPowerUsed(spot), 1e-9)

	total := l.TotalValue(spot)
	assert.InDelta(t, total*maxBuyingPowerUsage-used, l.BuyingPowerAvailable(spot), 1e-9)
}

func TestSpendableCashKeepsReserve(t *testing.T) {
	l := NewLedger("SPX", 1_000_000)
	spot := 400.0
	assert.InDelta(t, 1_000_000*(1-cashReservePct), l.SpendableCash(spot), 1e-9)
}

func TestOpenShortRejectsZeroContracts(t *testing.T) {
	l := NewLedger("SPX", 1_000_000)

	_, err := l.openShort(testDay, core.OptionPut, 400, testDay.AddDate(0, 0, 1), 0, 0.80, core.ActionSellPut)
	assert.ErrorIs(t, err, core.ErrInvalidQuantity)
	assert.Empty(t, l.Trades(), "rejected orders must not journal")
	assert.InDelta(t, 1_000_000, l.Cash(), 1e-9)
}

func TestOpenLongRequiresCash(t *testing.T) {
	l := NewLedger("SPX", 100)

	// 3 contracts at 2.00 debit 600 against 100 of cash
	_, err := l.openLong(testDay, core.OptionPut, 360, testDay.AddDate(0, 0, 30), 3, 2.00, core.ActionBuyHedge)
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
	assert.Empty(t, l.LongPositions())
	assert.Empty(t, l.Trades())
	assert.InDelta(t, 100, l.Cash(), 1e-9)

	_, err = l.openLong(testDay, core.OptionPut, 360, testDay.AddDate(0, 0, 30), 0, 0.50, core.ActionBuyHedge)
	assert.ErrorIs(t, err, core.ErrInvalidQuantity)
}

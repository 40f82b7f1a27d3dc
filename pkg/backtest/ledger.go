package backtest

import (
	"fmt"
	"sync"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/core"
)

// Ledger is the single-account position book for one simulation run: cash,
// the aggregate stock lot, short option lines and long option lines
// (protective puts and conversion calls). Every mutation flows through the
// executor; the ledger itself only enforces bookkeeping identities.
type Ledger struct {
	mu sync.Mutex

	symbol string
	cash   float64
	stock  core.StockLot

	shorts []*core.OptionPosition
	longs  []*core.OptionPosition

	dailyPremium float64
	dailyTarget  float64

	nextID int64
	trades []*core.Trade
}

func NewLedger(symbol string, initialCash float64) *Ledger {
	return &Ledger{symbol: symbol, cash: initialCash}
}

func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

func (l *Ledger) Stock() core.StockLot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock
}

// ShortPositions returns the open short option lines.
func (l *Ledger) ShortPositions() []*core.OptionPosition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return openPositions(l.shorts)
}

// LongPositions returns the open long option lines.
func (l *Ledger) LongPositions() []*core.OptionPosition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return openPositions(l.longs)
}

func openPositions(positions []*core.OptionPosition) []*core.OptionPosition {
	open := make([]*core.OptionPosition, 0, len(positions))
	for _, p := range positions {
		if p.Status == core.StatusOpen {
			open = append(open, p)
		}
	}
	return open
}

// Trades returns the journal in emission order.
func (l *Ledger) Trades() []*core.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*core.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// DailyPremium returns the premium collected since the last reset.
func (l *Ledger) DailyPremium() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dailyPremium
}

// DailyTarget returns the premium target set for the current day.
func (l *Ledger) DailyTarget() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dailyTarget
}

// ResetDay clears the daily premium accumulator and pins the day's target.
func (l *Ledger) ResetDay(target float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dailyPremium = 0
	l.dailyTarget = target
}

// TotalValue marks the whole book: cash plus stock at spot plus the
// unrealized value of every open option line.
func (l *Ledger) TotalValue(spot float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalValueLocked(spot)
}

func (l *Ledger) totalValueLocked(spot float64) float64 {
	value := l.cash + float64(l.stock.Shares)*spot
	for _, p := range openPositions(l.shorts) {
		value += (p.OpenPremium - p.Mark) * 100 * float64(p.Contracts)
	}
	for _, p := range openPositions(l.longs) {
		value += (p.Mark - p.OpenPremium) * 100 * float64(p.Contracts)
	}
	return value
}

// BuyingPowerUsed counts stock exposure plus the cash securing short puts.
func (l *Ledger) BuyingPowerUsed(spot float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buyingPowerUsedLocked(spot)
}

func (l *Ledger) buyingPowerUsedLocked(spot float64) float64 {
	used := float64(l.stock.Shares) * spot
	for _, p := range openPositions(l.shorts) {
		if p.Type == core.OptionPut {
			used += p.Notional()
		}
	}
	return used
}

// BuyingPowerAvailable is what remains under the usage cap.
func (l *Ledger) BuyingPowerAvailable(spot float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalValueLocked(spot)*maxBuyingPowerUsage - l.buyingPowerUsedLocked(spot)
}

// SpendableCash is cash above the configured reserve.
func (l *Ledger) SpendableCash(spot float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	reserve := l.totalValueLocked(spot) * cashReservePct
	if reserve < 0 {
		reserve = 0
	}
	return l.cash - reserve
}

// ShortPutNotional sums the strike notional of open short puts.
func (l *Ledger) ShortPutNotional() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum float64
	for _, p := range openPositions(l.shorts) {
		if p.Type == core.OptionPut {
			sum += p.Notional()
		}
	}
	return sum
}

// HedgeNotional sums the strike notional of open long puts.
func (l *Ledger) HedgeNotional() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum float64
	for _, p := range openPositions(l.longs) {
		if p.Type == core.OptionPut {
			sum += p.Notional()
		}
	}
	return sum
}

// HasOpenShortCall reports whether a covered call is already written.
func (l *Ledger) HasOpenShortCall() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range openPositions(l.shorts) {
		if p.Type == core.OptionCall {
			return true
		}
	}
	return false
}

// openShort books a new short option line and credits its premium.
func (l *Ledger) openShort(date time.Time, optType core.OptionType, strike float64, expiration time.Time, contracts int, premium float64, action core.TradeAction) (*core.OptionPosition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if contracts < 1 {
		return nil, fmt.Errorf("%w: %d contracts", core.ErrInvalidQuantity, contracts)
	}

	l.nextID++
	pos := &core.OptionPosition{
		ID:          l.nextID,
		Type:        optType,
		Side:        core.SideShort,
		Strike:      strike,
		Expiration:  expiration,
		Contracts:   contracts,
		OpenPremium: premium,
		OpenDate:    date,
		Status:      core.StatusOpen,
		Mark:        premium,
	}
	l.shorts = append(l.shorts, pos)

	credit := premium * 100 * float64(contracts)
	l.cash += credit
	l.dailyPremium += credit

	l.recordLocked(&core.Trade{
		Symbol:     l.symbol,
		Date:       date,
		Action:     action,
		OptionType: optType,
		Side:       core.SideShort,
		Strike:     strike,
		Expiration: expiration,
		Contracts:  contracts,
		Premium:    premium,
		CashFlow:   credit,
	})
	return pos, nil
}

// openLong books a new long option line and debits its cost. The debit may
// not exceed the cash balance.
func (l *Ledger) openLong(date time.Time, optType core.OptionType, strike float64, expiration time.Time, contracts int, premium float64, action core.TradeAction) (*core.OptionPosition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if contracts < 1 {
		return nil, fmt.Errorf("%w: %d contracts", core.ErrInvalidQuantity, contracts)
	}
	cost := premium * 100 * float64(contracts)
	if cost > l.cash {
		return nil, fmt.Errorf("%w: need %.2f, have %.2f", core.ErrInsufficientFunds, cost, l.cash)
	}

	l.nextID++
	pos := &core.OptionPosition{
		ID:          l.nextID,
		Type:        optType,
		Side:        core.SideLong,
		Strike:      strike,
		Expiration:  expiration,
		Contracts:   contracts,
		OpenPremium: premium,
		OpenDate:    date,
		Status:      core.StatusOpen,
		Mark:        premium,
	}
	l.longs = append(l.longs, pos)
	l.cash -= cost

	l.recordLocked(&core.Trade{
		Symbol:     l.symbol,
		Date:       date,
		Action:     action,
		OptionType: optType,
		Side:       core.SideLong,
		Strike:     strike,
		Expiration: expiration,
		Contracts:  contracts,
		Premium:    premium,
		CashFlow:   -cost,
	})
	return pos, nil
}

// closePosition settles an open line at the given per-share value and marks
// it with the terminal status. Closing an already-terminal position is a
// no-op returning false.
func (l *Ledger) closePosition(pos *core.OptionPosition, date time.Time, value float64, status core.PositionStatus, action core.TradeAction) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pos.Status != core.StatusOpen {
		return false
	}

	gross := value * 100 * float64(pos.Contracts)
	var cashFlow, realized float64
	if pos.Side == core.SideShort {
		cashFlow = -gross
		realized = (pos.OpenPremium - value) * 100 * float64(pos.Contracts)
	} else {
		cashFlow = gross
		realized = (value - pos.OpenPremium) * 100 * float64(pos.Contracts)
	}

	l.cash += cashFlow
	pos.Status = status
	pos.CloseDate = date
	pos.ClosePremium = value

	l.recordLocked(&core.Trade{
		Symbol:      l.symbol,
		Date:        date,
		Action:      action,
		OptionType:  pos.Type,
		Side:        pos.Side,
		Strike:      pos.Strike,
		Expiration:  pos.Expiration,
		Contracts:   pos.Contracts,
		Premium:     value,
		CashFlow:    cashFlow,
		RealizedPnL: realized,
		Terminal:    true,
	})
	return true
}

// buyShares extends the aggregate lot at a blended cost basis.
func (l *Ledger) buyShares(date time.Time, shares int, price float64, action core.TradeAction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cost := price * float64(shares)
	l.cash -= cost

	oldCost := l.stock.CostBasis * float64(l.stock.Shares)
	l.stock.Shares += shares
	if l.stock.Shares > 0 {
		l.stock.CostBasis = (oldCost + cost) / float64(l.stock.Shares)
	}
	if l.stock.Acquired.IsZero() {
		l.stock.Acquired = date
	}

	l.recordLocked(&core.Trade{
		Symbol:    l.symbol,
		Date:      date,
		Action:    action,
		Contracts: shares / 100,
		Strike:    price,
		CashFlow:  -cost,
	})
}

// sellShares reduces the lot at the given price, realizing stock P&L. A sale
// exceeding the holding is clamped; with nothing to sell it is rejected.
func (l *Ledger) sellShares(date time.Time, shares int, price float64, action core.TradeAction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if shares > l.stock.Shares {
		shares = l.stock.Shares
	}
	if shares <= 0 {
		return fmt.Errorf("%w: no shares to sell", core.ErrInvalidQuantity)
	}

	proceeds := price * float64(shares)
	realized := (price - l.stock.CostBasis) * float64(shares)
	l.cash += proceeds
	l.stock.Shares -= shares
	if l.stock.Shares == 0 {
		l.stock = core.StockLot{}
	}

	l.recordLocked(&core.Trade{
		Symbol:      l.symbol,
		Date:        date,
		Action:      action,
		Contracts:   shares / 100,
		Strike:      price,
		CashFlow:    proceeds,
		RealizedPnL: realized,
		Terminal:    true,
	})
	return nil
}

// settle credits an arbitrary cash amount tied to a journal event.
func (l *Ledger) settle(trade *core.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash += trade.CashFlow
	l.recordLocked(trade)
}

func (l *Ledger) recordLocked(t *core.Trade) {
	l.nextID++
	t.ID = l.nextID
	l.trades = append(l.trades, t)
}

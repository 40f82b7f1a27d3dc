package core

import (
	"context"
	"time"
)

// DataProvider serves aligned daily underlying + volatility-index rows for a
// symbol. Implementations return ErrDataUnavailable when a required row is
// missing from the range.
type DataProvider interface {
	DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]TradingDay, error)
}

// TradeStorage persists the journal events emitted during a simulation.
type TradeStorage interface {
	SaveTrade(trade *Trade) error
	Trades(filters ...TradeFilter) ([]*Trade, error)
}

// TradeFilter selects journal events on read.
type TradeFilter func(Trade) bool

// WithSymbol filters trades for one underlying symbol.
func WithSymbol(symbol string) TradeFilter {
	return func(t Trade) bool {
		return t.Symbol == symbol
	}
}

// WithAction filters trades by event action.
func WithAction(action TradeAction) TradeFilter {
	return func(t Trade) bool {
		return t.Action == action
	}
}

// WithTerminal keeps only terminal (realizing) events.
func WithTerminal() TradeFilter {
	return func(t Trade) bool {
		return t.Terminal
	}
}

// Notifier pushes human-readable strategy events to an external surface.
type Notifier interface {
	Notify(text string)
	OnError(err error)
}

// NotifierWithStart is a notifier that runs its own receive loop.
type NotifierWithStart interface {
	Notifier
	Start()
}

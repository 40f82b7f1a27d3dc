package core

import (
	"fmt"
	"time"
)

// TradingDay is one aligned daily row of underlying OHLC plus the volatility
// index close for the same date.
type TradingDay struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	VIX   float64   `json:"vix"`
}

type OptionType string

const (
	OptionPut  OptionType = "PUT"
	OptionCall OptionType = "CALL"
)

type PositionSide string

const (
	SideShort PositionSide = "SHORT"
	SideLong  PositionSide = "LONG"
)

type PositionStatus string

const (
	StatusOpen      PositionStatus = "OPEN"
	StatusExpired   PositionStatus = "EXPIRED"
	StatusAssigned  PositionStatus = "ASSIGNED"
	StatusExercised PositionStatus = "EXERCISED"
	StatusClosed    PositionStatus = "CLOSED"
	StatusRolled    PositionStatus = "ROLLED"
)

// OptionPosition is a single option line in the ledger. Premiums are quoted
// per share; one contract covers 100 shares.
type OptionPosition struct {
	ID           int64          `json:"id"`
	Type         OptionType     `json:"type"`
	Side         PositionSide   `json:"side"`
	Strike       float64        `json:"strike"`
	Expiration   time.Time      `json:"expiration"`
	Contracts    int            `json:"contracts"`
	OpenPremium  float64        `json:"open_premium"`
	OpenDate     time.Time      `json:"open_date"`
	Status       PositionStatus `json:"status"`
	CloseDate    time.Time      `json:"close_date,omitempty"`
	ClosePremium float64        `json:"close_premium,omitempty"`

	// Mark is the latest model price per share, maintained by the ledger.
	Mark float64 `json:"-"`
}

// Notional returns the strike notional covered by the position.
func (p OptionPosition) Notional() float64 {
	return p.Strike * 100 * float64(p.Contracts)
}

// DTE returns the calendar days remaining until expiration as of the given date.
func (p OptionPosition) DTE(asOf time.Time) int {
	return int(p.Expiration.Sub(asOf).Hours() / 24)
}

func (p OptionPosition) String() string {
	return fmt.Sprintf("%s %s %.2f x%d exp %s [%s]",
		p.Side, p.Type, p.Strike, p.Contracts,
		p.Expiration.Format("2006-01-02"), p.Status)
}

// StockLot is the assigned share block held by the wheel. The simulation
// carries at most one aggregate lot; assignments merge into it at blended cost.
type StockLot struct {
	Shares    int       `json:"shares"`
	CostBasis float64   `json:"cost_basis"`
	Acquired  time.Time `json:"acquired"`
}

type TradeAction string

const (
	ActionSellPut    TradeAction = "SELL_PUT"
	ActionSellCall   TradeAction = "SELL_CALL"
	ActionBuyHedge   TradeAction = "BUY_HEDGE"
	ActionBuyClose   TradeAction = "BUY_CLOSE"
	ActionRoll       TradeAction = "ROLL"
	ActionExpire     TradeAction = "EXPIRE"
	ActionAssign     TradeAction = "ASSIGN"
	ActionExercise   TradeAction = "EXERCISE"
	ActionConvert    TradeAction = "CONVERT"
	ActionSellShares TradeAction = "SELL_SHARES"
)

// Trade is one journal event emitted by the executor. CashFlow is the signed
// cash impact of the event; RealizedPnL is set only on terminal events.
type Trade struct {
	ID          int64       `json:"id" gorm:"primaryKey,autoIncrement"`
	Symbol      string      `json:"symbol"`
	Date        time.Time   `json:"date"`
	Action      TradeAction `json:"action"`
	OptionType  OptionType  `json:"option_type,omitempty"`
	Side        PositionSide `json:"side,omitempty"`
	Strike      float64     `json:"strike,omitempty"`
	Expiration  time.Time   `json:"expiration,omitempty"`
	Contracts   int         `json:"contracts,omitempty"`
	Premium     float64     `json:"premium,omitempty"`
	CashFlow    float64     `json:"cash_flow"`
	RealizedPnL float64     `json:"realized_pnl,omitempty"`
	Terminal    bool        `json:"terminal"`
}

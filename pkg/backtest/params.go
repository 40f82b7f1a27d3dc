package backtest

import (
	"fmt"

	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/strategy"
)

// Strategy constants that are rules of the book rather than tunables.
const (
	// WarmupDays is how much history the indicators need before the first trade.
	WarmupDays = 50

	// indicatorWindow bounds the trailing slice fed to the indicator recompute.
	indicatorWindow = 100

	cashReservePct      = 0.05
	maxBuyingPowerUsage = 0.95

	ditmCallDTE    = 90
	strikeRounding = 0.5
)

// Params is the immutable tunable vector for one simulation run. One
// instance is built per optimizer candidate and never mutated in place.
type Params struct {
	// Membership boundaries
	CycleOversold   float64
	CycleOverbought float64
	TrendDown       float64
	TrendUp         float64

	// Rule weights and gates
	PutMoneynessWeight  float64
	PutSizeWeight       float64
	CallSellThreshold   float64
	ConvertThreshold    float64
	HedgeScoreThreshold float64

	// Contract tenors
	TargetDTE int
	CallDTE   int
	HedgeDTE  int

	// Sizing
	TargetDailyPremiumPct float64
	MinContractPremium    float64
	MaxHedgeNotionalPct   float64

	// Hedge OTM overrides by VIX regime
	HedgeOTMPctLowVIX  float64
	HedgeOTMPctHighVIX float64

	// Position maintenance
	CloseThreshold float64
	RollPremiumMin float64

	InitialCapital float64
}

// DefaultParams returns the hand-tuned baseline the optimizer searches
// around.
func DefaultParams() Params {
	return Params{
		CycleOversold:   -0.4,
		CycleOverbought: 0.4,
		TrendDown:       -0.3,
		TrendUp:         0.3,

		PutMoneynessWeight:  1.0,
		PutSizeWeight:       1.0,
		CallSellThreshold:   0.6,
		ConvertThreshold:    0.6,
		HedgeScoreThreshold: 0.4,

		TargetDTE: 1,
		CallDTE:   7,
		HedgeDTE:  30,

		TargetDailyPremiumPct: 0.0008,
		MinContractPremium:    50.0,
		MaxHedgeNotionalPct:   0.5,

		HedgeOTMPctLowVIX:  12.0,
		HedgeOTMPctHighVIX: 6.0,

		CloseThreshold: 0.05,
		RollPremiumMin: 0.0005,

		InitialCapital: 1_000_000,
	}
}

// Validate bounds-checks the vector before a run is accepted.
func (p Params) Validate() error {
	checks := []struct {
		ok   bool
		desc string
	}{
		{p.CycleOversold >= -1 && p.CycleOversold < 0, "cycle oversold threshold must be in [-1, 0)"},
		{p.CycleOverbought > 0 && p.CycleOverbought <= 1, "cycle overbought threshold must be in (0, 1]"},
		{p.TrendDown >= -1 && p.TrendDown < 0, "trend down threshold must be in [-1, 0)"},
		{p.TrendUp > 0 && p.TrendUp <= 1, "trend up threshold must be in (0, 1]"},
		{p.PutMoneynessWeight > 0, "put moneyness weight must be positive"},
		{p.PutSizeWeight > 0, "put size weight must be positive"},
		{p.CallSellThreshold >= 0 && p.CallSellThreshold <= 1, "call sell threshold must be in [0, 1]"},
		{p.ConvertThreshold >= 0 && p.ConvertThreshold <= 1, "convert threshold must be in [0, 1]"},
		{p.HedgeScoreThreshold >= 0 && p.HedgeScoreThreshold <= 1, "hedge score threshold must be in [0, 1]"},
		{p.TargetDTE >= 1 && p.TargetDTE <= 5, "target DTE must be in [1, 5]"},
		{p.CallDTE >= 1 && p.CallDTE <= 45, "call DTE must be in [1, 45]"},
		{p.HedgeDTE >= 7 && p.HedgeDTE <= 90, "hedge DTE must be in [7, 90]"},
		{p.TargetDailyPremiumPct > 0 && p.TargetDailyPremiumPct <= 0.01, "target daily premium must be in (0, 1%]"},
		{p.MinContractPremium >= 0, "minimum contract premium cannot be negative"},
		{p.MaxHedgeNotionalPct >= 0 && p.MaxHedgeNotionalPct <= 1, "max hedge notional must be in [0, 1]"},
		{p.HedgeOTMPctLowVIX > 0 && p.HedgeOTMPctLowVIX <= 25, "low VIX hedge OTM must be in (0, 25]"},
		{p.HedgeOTMPctHighVIX > 0 && p.HedgeOTMPctHighVIX <= 25, "high VIX hedge OTM must be in (0, 25]"},
		{p.CloseThreshold >= 0, "close threshold cannot be negative"},
		{p.RollPremiumMin >= 0, "roll premium minimum cannot be negative"},
		{p.InitialCapital > 0, "initial capital must be positive"},
	}

	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s", core.ErrInvalidParameter, c.desc)
		}
	}
	return nil
}

func (p Params) thresholds() strategy.Thresholds {
	return strategy.Thresholds{
		CycleOversold:   p.CycleOversold,
		CycleOverbought: p.CycleOverbought,
		TrendDown:       p.TrendDown,
		TrendUp:         p.TrendUp,
	}
}

func roundToIncrement(v, increment float64) float64 {
	return float64(int(v/increment+0.5)) * increment
}

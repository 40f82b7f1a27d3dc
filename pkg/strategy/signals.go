package strategy

import (
	"time"

	"github.com/quantarc/fuzzywheel/pkg/core"
)

// Inputs is the full crisp input vector for one day of inference.
type Inputs struct {
	Trend       float64 // [-1, 1], negative falling
	Cycle       float64 // [-1, 1], negative oversold
	VIXNorm     float64 // [0, 1]
	BPFrac      float64 // [0, 1], available buying power fraction
	StockWeight float64 // [0, 1]
	DeltaPort   float64 // directional exposure, stock-weight units
	PremiumGap  float64 // [0, 1], 1 = far below daily target
}

// MinVIXHistory is how many observations the percentile normalization needs
// before it is trusted over the fixed midpoint.
const MinVIXHistory = 50

// NormalizeVIX maps a VIX reading into [0, 1] as its min-max percentile over
// the supplied history. With fewer than MinVIXHistory observations, or a
// degenerate range, the fixed midpoint 0.5 is returned.
func NormalizeVIX(vix float64, history core.Series[float64]) float64 {
	if history.Length() < MinVIXHistory {
		return 0.5
	}

	min := history.Lowest(history.Length())
	max := history.Highest(history.Length())
	if max <= min {
		return 0.5
	}

	return clamp((vix-min)/(max-min), 0, 1)
}

// NormalizeTrend clamps a raw trend scalar into [-1, 1].
func NormalizeTrend(raw float64) float64 {
	return clamp(raw, -1, 1)
}

// NormalizeCycle clamps a raw cycle scalar into [-1, 1].
func NormalizeCycle(raw float64) float64 {
	return clamp(raw, -1, 1)
}

// PortfolioMetrics derives the portfolio-side fuzzy inputs from ledger
// aggregates. A non-positive total value yields the idle-portfolio vector:
// full buying power, no stock, full premium gap.
func PortfolioMetrics(totalValue, bpUsed, stockValue, shortPutNotional, hedgeNotional, realizedPremium, targetPremium float64) (bpFrac, stockWeight, deltaPort, premiumGap float64) {
	if totalValue <= 0 {
		return 1, 0, 0, 1
	}

	bpFrac = clamp(1-bpUsed/totalValue, 0, 1)
	stockWeight = clamp(stockValue/totalValue, 0, 1)

	// Rough delta proxy: long stock at full delta, short puts around 0.4,
	// long hedge puts around -0.3, all in strike-notional terms.
	deltaPort = stockWeight
	deltaPort += 0.4 * shortPutNotional / totalValue
	deltaPort -= 0.3 * hedgeNotional / totalValue

	if targetPremium > 0 {
		premiumGap = clamp(1-realizedPremium/targetPremium, 0, 1)
	} else {
		premiumGap = 1
	}

	return bpFrac, stockWeight, deltaPort, premiumGap
}

// ShareMetrics describes the assigned share lot for the call-writing rules.
type ShareMetrics struct {
	UnrealizedPnLPct float64
	CostBasis        float64
	DaysHeld         int
}

// AssignedShareMetrics computes the lot-level inputs. With no shares held
// the zero metrics are returned with the cost basis pinned to spot.
func AssignedShareMetrics(shares int, costBasis, spot float64, acquired, asOf time.Time) ShareMetrics {
	if shares <= 0 {
		return ShareMetrics{CostBasis: spot}
	}

	m := ShareMetrics{CostBasis: costBasis}
	if costBasis > 0 {
		m.UnrealizedPnLPct = (spot - costBasis) / costBasis
	}
	if !acquired.IsZero() {
		m.DaysHeld = int(asOf.Sub(acquired).Hours() / 24)
	}
	return m
}

// DistanceFromBreakeven measures how far a candidate call strike sits from
// the lot's break-even, in cost-basis-relative units.
func DistanceFromBreakeven(strike, costBasis float64) float64 {
	if costBasis <= 0 {
		return 0
	}
	return (strike - costBasis) / costBasis
}

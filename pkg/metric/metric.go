// Package metric turns an equity curve and a trade journal into the
// performance numbers the optimizer scores against and the report prints.
package metric

import (
	"math"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/core"
	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

// Performance is the full metric set computed from one simulation run.
type Performance struct {
	TotalReturn      float64
	CAGR             float64
	MaxDrawdown      float64
	Sharpe           float64
	MAR              float64
	DaysTargetMet    int
	DaysTargetMetPct float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	AvgWin           float64
	AvgLoss          float64
	Aborted          bool
}

// DailyRecord is one day of the equity curve with its premium bookkeeping.
type DailyRecord struct {
	Date    time.Time
	Equity  float64
	Premium float64
	Target  float64
}

// Analyze computes the performance metrics over a daily equity curve and the
// terminal trade events. An empty curve yields the zero metrics.
func Analyze(days []DailyRecord, trades []*core.Trade) Performance {
	var p Performance
	if len(days) == 0 {
		return p
	}

	first, last := days[0].Equity, days[len(days)-1].Equity
	if first > 0 {
		p.TotalReturn = (last - first) / first
	}

	span := int(days[len(days)-1].Date.Sub(days[0].Date).Hours() / 24)
	if span > 0 && first > 0 && last > 0 {
		p.CAGR = math.Pow(last/first, 365/float64(span)) - 1
	}

	p.MaxDrawdown = MaxDrawdown(equityValues(days))
	p.Sharpe = Sharpe(DailyReturns(equityValues(days)))

	// MAR is meaningless without a drawdown; 0 is the sentinel, never an error
	if p.MaxDrawdown > 0 {
		p.MAR = p.CAGR / p.MaxDrawdown
	}

	for _, d := range days {
		if d.Target > 0 && d.Premium >= 0.8*d.Target {
			p.DaysTargetMet++
		}
	}
	p.DaysTargetMetPct = float64(p.DaysTargetMet) / float64(len(days)) * 100

	p.tradeStats(trades)
	return p
}

func (p *Performance) tradeStats(trades []*core.Trade) {
	var wins, losses []float64
	for _, t := range trades {
		if !t.Terminal {
			continue
		}
		p.TotalTrades++
		if t.RealizedPnL >= 0 {
			p.WinningTrades++
			wins = append(wins, t.RealizedPnL)
		} else {
			p.LosingTrades++
			losses = append(losses, t.RealizedPnL)
		}
	}

	if p.TotalTrades > 0 {
		p.WinRate = float64(p.WinningTrades) / float64(p.TotalTrades)
	}
	if len(wins) > 0 {
		p.AvgWin = stat.Mean(wins, nil)
	}
	if len(losses) > 0 {
		p.AvgLoss = stat.Mean(losses, nil)
	}
}

// MaxDrawdown returns the deepest peak-to-trough loss fraction over the
// curve, as a positive number.
func MaxDrawdown(equity []float64) float64 {
	var peak, maxDD float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// DailyReturns converts an equity curve into simple day-over-day returns.
func DailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
		}
	}
	return returns
}

// Sharpe annualizes the mean/stddev ratio of daily returns. Zero-variance
// curves score 0.
func Sharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

func equityValues(days []DailyRecord) []float64 {
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = d.Equity
	}
	return out
}

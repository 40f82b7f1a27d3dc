// Package strategy holds the fuzzy scoring pipelines that drive the daily
// trading decisions, and the normalizers that turn raw market and portfolio
// state into the crisp inputs those pipelines consume.
package strategy

import (
	"math"

	"github.com/quantarc/fuzzywheel/pkg/fuzzy"
)

// Thresholds are the tunable membership boundaries. They move the outer
// breakpoints of the cycle and trend partitions; the inner shoulders stay
// fixed so the neutral bands keep their width.
type Thresholds struct {
	CycleOversold   float64
	CycleOverbought float64
	TrendDown       float64
	TrendUp         float64
}

// DefaultThresholds returns the boundaries the rule tables were designed
// around.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CycleOversold:   -0.4,
		CycleOverbought: 0.4,
		TrendDown:       -0.3,
		TrendUp:         0.3,
	}
}

// RuleSet evaluates the six scoring pipelines against one day's inputs.
// A RuleSet is immutable after construction and safe for concurrent use.
type RuleSet struct {
	engine *fuzzy.Engine
}

func NewRuleSet(th Thresholds) *RuleSet {
	cycle := fuzzy.NewVariable("cycle").
		AddSet("oversold", fuzzy.Trapezoidal(-1, -1, th.CycleOversold, -0.1)).
		AddSet("neutral", fuzzy.Trapezoidal(th.CycleOversold, -0.1, 0.1, th.CycleOverbought)).
		AddSet("overbought", fuzzy.Trapezoidal(0.1, th.CycleOverbought, 1, 1))

	trend := fuzzy.NewVariable("trend").
		AddSet("down", fuzzy.Trapezoidal(-1, -1, th.TrendDown, -0.05)).
		AddSet("flat", fuzzy.Trapezoidal(th.TrendDown, -0.05, 0.05, th.TrendUp)).
		AddSet("up", fuzzy.Trapezoidal(0.05, th.TrendUp, 1, 1))

	vix := fuzzy.NewVariable("vix_norm").
		AddSet("low", fuzzy.Trapezoidal(0, 0, 0.2, 0.4)).
		AddSet("mid", fuzzy.Trapezoidal(0.2, 0.4, 0.6, 0.8)).
		AddSet("high", fuzzy.Trapezoidal(0.6, 0.8, 1, 1))

	bpFrac := fuzzy.NewVariable("bp_frac").
		AddSet("critical", fuzzy.Trapezoidal(0, 0, 0.1, 0.2)).
		AddSet("tight", fuzzy.Trapezoidal(0.1, 0.2, 0.4, 0.5)).
		AddSet("comfortable", fuzzy.Trapezoidal(0.4, 0.5, 1, 1))

	stockWeight := fuzzy.NewVariable("stock_weight").
		AddSet("light", fuzzy.Trapezoidal(0, 0, 0.2, 0.3)).
		AddSet("normal", fuzzy.Trapezoidal(0.2, 0.3, 0.6, 0.7)).
		AddSet("heavy", fuzzy.Trapezoidal(0.6, 0.7, 1, 1))

	premiumGap := fuzzy.NewVariable("premium_gap").
		AddSet("met", fuzzy.Trapezoidal(0, 0, 0.1, 0.3)).
		AddSet("slightly_below", fuzzy.Trapezoidal(0.1, 0.3, 0.5, 0.6)).
		AddSet("far_below", fuzzy.Trapezoidal(0.5, 0.6, 1, 1))

	unrealPnL := fuzzy.NewVariable("unreal_pnl_pct").
		AddSet("deep_loss", fuzzy.Trapezoidal(-1, -1, -0.1, -0.05)).
		AddSet("mild_loss", fuzzy.Trapezoidal(-0.1, -0.05, -0.01, 0)).
		AddSet("flat", fuzzy.Trapezoidal(-0.01, 0, 0.01, 0.05)).
		AddSet("profit", fuzzy.Trapezoidal(0.01, 0.05, 1, 1))

	ivRank := fuzzy.NewVariable("iv_rank").
		AddSet("low", fuzzy.Trapezoidal(0, 0, 0.2, 0.4)).
		AddSet("med", fuzzy.Trapezoidal(0.2, 0.4, 0.6, 0.8)).
		AddSet("high", fuzzy.Trapezoidal(0.6, 0.8, 1, 1))

	deltaPort := fuzzy.NewVariable("delta_port").
		AddSet("short", fuzzy.Trapezoidal(-1, -1, -0.3, -0.1)).
		AddSet("neutral", fuzzy.Trapezoidal(-0.3, -0.1, 0.1, 0.3)).
		AddSet("long", fuzzy.Trapezoidal(0.1, 0.3, 1, 1))

	distFromBE := fuzzy.NewVariable("dist_from_be").
		AddSet("below_be", fuzzy.Trapezoidal(-1, -1, -0.05, 0)).
		AddSet("near_be", fuzzy.Trapezoidal(-0.05, 0, 0.05, 0.1)).
		AddSet("above_be", fuzzy.Trapezoidal(0.05, 0.1, 1, 1))

	return &RuleSet{
		engine: fuzzy.NewEngine(
			cycle, trend, vix, bpFrac, stockWeight,
			premiumGap, unrealPnL, ivRank, deltaPort, distFromBE,
		),
	}
}

// PutMoneyness recommends where to strike a new short put relative to spot.
// Negative values mean ITM, zero ATM, positive OTM; one unit is 2% of spot.
// Output is clamped to [-2, 2].
func (r *RuleSet) PutMoneyness(cycle, trend float64) float64 {
	inputs := map[string]float64{"cycle": cycle, "trend": trend}

	rules := []fuzzy.Rule{
		{Antecedent: fuzzy.And(fuzzy.Is("cycle", "oversold"), fuzzy.Is("trend", "up")), Value: -1.5},
		{Antecedent: fuzzy.And(fuzzy.Is("cycle", "oversold"), fuzzy.Is("trend", "down")), Value: 0},
		{Antecedent: fuzzy.And(fuzzy.Is("cycle", "neutral"), fuzzy.Is("trend", "up")), Value: 0.5},
		{Antecedent: fuzzy.And(fuzzy.Is("cycle", "neutral"), fuzzy.Is("trend", "down")), Value: 0},
		{Antecedent: fuzzy.And(fuzzy.Is("cycle", "overbought"), fuzzy.Is("trend", "up")), Value: 1},
		{Antecedent: fuzzy.And(fuzzy.Is("cycle", "overbought"), fuzzy.Is("trend", "down")), Value: 2},
	}

	return clamp(r.engine.Defuzzify(rules, inputs, 0), -2, 2)
}

// PutSizeFraction sizes a new short put as a fraction of the remaining daily
// premium target. The base comes from how far behind target the day is; the
// result is scaled down under buying-power pressure and up in rich VIX.
func (r *RuleSet) PutSizeFraction(premiumGap, vixNorm, bpFrac float64) float64 {
	inputs := map[string]float64{"premium_gap": premiumGap}

	rules := []fuzzy.Rule{
		{Antecedent: fuzzy.Is("premium_gap", "far_below"), Value: 1},
		{Antecedent: fuzzy.Is("premium_gap", "slightly_below"), Value: 0.5},
		{Antecedent: fuzzy.Is("premium_gap", "met"), Value: 0.2},
	}

	size := r.engine.Defuzzify(rules, inputs, 0.5)

	bp, _ := r.engine.Variable("bp_frac")
	switch {
	case bp.Membership("critical", bpFrac) > 0.5:
		size *= 0.5
	case bp.Membership("tight", bpFrac) > 0.5:
		size *= 0.75
	}

	vix, _ := r.engine.Variable("vix_norm")
	switch {
	case vix.Membership("high", vixNorm) > 0.5:
		size *= 1.2
	case vix.Membership("low", vixNorm) > 0.5:
		size *= 0.9
	}

	return clamp(size, 0, 1)
}

// CallSellScore rates writing a covered call against the assigned shares.
// It balances the risk of locking in a stock loss below break-even against
// how attractive the premium is.
func (r *RuleSet) CallSellScore(unrealPnLPct, distFromBE, ivRank, premiumYield float64) float64 {
	inputs := map[string]float64{
		"unreal_pnl_pct": unrealPnLPct,
		"dist_from_be":   distFromBE,
	}

	lossLockRules := []fuzzy.Rule{
		{Antecedent: fuzzy.And(fuzzy.Is("unreal_pnl_pct", "deep_loss"), fuzzy.Is("dist_from_be", "below_be")), Value: 1},
		{Antecedent: fuzzy.And(fuzzy.Is("unreal_pnl_pct", "mild_loss"), fuzzy.Is("dist_from_be", "near_be")), Value: 0.5},
		{Antecedent: fuzzy.And(fuzzy.Is("unreal_pnl_pct", "profit"), fuzzy.Is("dist_from_be", "above_be")), Value: 0},
	}
	lossLockRisk := r.engine.Defuzzify(lossLockRules, inputs, 0.5)

	iv, _ := r.engine.Variable("iv_rank")
	premiumAttr := 0.5
	switch {
	case iv.Membership("high", ivRank) > 0.5 && premiumYield > 0.01:
		premiumAttr = 0.8
	case iv.Membership("med", ivRank) > 0.5 && premiumYield > 0.005:
		premiumAttr = 0.5
	case iv.Membership("low", ivRank) > 0.5 || premiumYield < 0.003:
		premiumAttr = 0.2
	}

	switch {
	case lossLockRisk > 0.7 || premiumAttr < 0.3:
		return 0.2
	case lossLockRisk < 0.3 && premiumAttr > 0.7:
		return 0.9
	case lossLockRisk < 0.3 && premiumAttr >= 0.5:
		return 0.7
	case lossLockRisk > 0.4 && premiumAttr > 0.5:
		return 0.6
	case lossLockRisk < 0.4 && premiumAttr >= 0.5:
		return 0.65
	}

	return 0.5
}

// CallMoneyness recommends how far above break-even to strike a covered
// call, in OTM units of 1% each. Output is clamped to [0, 5]; when nothing
// fires the default is one unit OTM.
func (r *RuleSet) CallMoneyness(cycle, trend float64) float64 {
	inputs := map[string]float64{"cycle": cycle, "trend": trend}

	rules := []fuzzy.Rule{
		{Antecedent: fuzzy.And(fuzzy.Is("trend", "up"), fuzzy.Is("cycle", "oversold")), Value: 3},
		{Antecedent: fuzzy.And(fuzzy.Is("trend", "up"), fuzzy.Is("cycle", "neutral")), Value: 1.5},
		{Antecedent: fuzzy.And(fuzzy.Is("trend", "down"), fuzzy.Is("cycle", "overbought")), Value: 0.5},
	}

	return clamp(r.engine.Defuzzify(rules, inputs, 1), 0, 5)
}

// ConvertScore rates swapping assigned shares for deep ITM calls to free
// buying power. The delta target picks the conversion depth: shallower in
// rich VIX where time value is expensive, deeper when VIX is low.
func (r *RuleSet) ConvertScore(bpFrac, stockWeight, vixNorm float64) (score, deltaTarget float64) {
	inputs := map[string]float64{
		"bp_frac":      bpFrac,
		"stock_weight": stockWeight,
	}

	rules := []fuzzy.Rule{
		{Antecedent: fuzzy.And(fuzzy.Is("bp_frac", "critical"), fuzzy.Is("stock_weight", "heavy")), Value: 0.8},
		{Antecedent: fuzzy.And(fuzzy.Is("bp_frac", "tight"), fuzzy.Is("stock_weight", "heavy")), Value: 0.5},
		{Antecedent: fuzzy.Or(fuzzy.Is("bp_frac", "comfortable"), fuzzy.Is("stock_weight", "light")), Value: 0.2},
	}

	score = clamp(r.engine.Defuzzify(rules, inputs, 0), 0, 1)

	vix, _ := r.engine.Variable("vix_norm")
	switch {
	case vix.Membership("high", vixNorm) > 0.5:
		deltaTarget = 0.7
	case vix.Membership("low", vixNorm) > 0.5:
		deltaTarget = 0.9
	default:
		deltaTarget = 0.8
	}

	return score, deltaTarget
}

// HedgeScore rates buying protective puts and picks their OTM distance.
// Hedges are bought when protection is cheap (low VIX into an overbought,
// rising market) and avoided when it is expensive.
func (r *RuleSet) HedgeScore(vixNorm, cycle, trend, stockWeight, deltaPort float64) (score, otmPct float64) {
	inputs := map[string]float64{
		"vix_norm":     vixNorm,
		"cycle":        cycle,
		"trend":        trend,
		"stock_weight": stockWeight,
		"delta_port":   deltaPort,
	}

	rules := []fuzzy.Rule{
		{
			Antecedent: fuzzy.And(fuzzy.Is("vix_norm", "low"), fuzzy.Is("cycle", "overbought"), fuzzy.Is("trend", "up")),
			Value:      0.8,
		},
		{
			Antecedent: fuzzy.And(fuzzy.Is("vix_norm", "mid"), fuzzy.Or(fuzzy.Is("stock_weight", "heavy"), fuzzy.Is("delta_port", "long"))),
			Value:      0.5,
		},
		{
			Antecedent: fuzzy.And(fuzzy.Is("vix_norm", "high"), fuzzy.Not(fuzzy.Is("cycle", "overbought"))),
			Value:      0.2,
		},
	}

	score = clamp(r.engine.Defuzzify(rules, inputs, 0), 0, 1)

	vix, _ := r.engine.Variable("vix_norm")
	switch {
	case vix.Membership("low", vixNorm) > 0.5:
		otmPct = 12
	case vix.Membership("high", vixNorm) > 0.5:
		otmPct = 6
	default:
		otmPct = 9
	}

	return score, otmPct
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

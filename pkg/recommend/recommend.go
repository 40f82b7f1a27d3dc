// Package recommend runs the fuzzy inference stack against the latest day of
// history and a snapshot of a live book, and emits discrete trade
// recommendations instead of simulated fills. The strike and sizing math is
// the same as the simulator's executor, so a recommendation is exactly the
// trade the backtest would have taken.
package recommend

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/backtest"
	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/indicator"
	"github.com/quantarc/fuzzywheel/pkg/logger"
	zerologger "github.com/quantarc/fuzzywheel/pkg/logger/zerolog"
	"github.com/quantarc/fuzzywheel/pkg/pricing"
	"github.com/quantarc/fuzzywheel/pkg/strategy"
	"github.com/rs/zerolog"
)

const (
	indicatorWindow     = 100
	minPutSizeFraction  = 0.1
	strikeRounding      = 0.5
	maxBuyingPowerUsage = 0.95
	deepCallDTE         = 90
)

// Confidence grades how strongly the rules back a recommendation.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Book is the live-account snapshot the rules need. It mirrors the ledger
// aggregates the simulator computes for itself.
type Book struct {
	TotalValue       float64
	BuyingPowerUsed  float64
	ShortPutNotional float64
	HedgeNotional    float64
	PremiumCollected float64 // premium already realized today

	Shares    int
	CostBasis float64
	Acquired  time.Time

	HasShortCall bool
}

// Recommendation is one suggested trade. ExpectedPremium is signed: negative
// means the trade costs money (hedges).
type Recommendation struct {
	Symbol          string
	Action          core.TradeAction
	OptionType      core.OptionType
	Strike          float64
	Expiration      time.Time
	DTE             int
	Contracts       int
	Price           float64 // model premium per share
	ExpectedPremium float64
	Confidence      Confidence
	Reason          string
}

// Engine produces recommendations for one symbol.
type Engine struct {
	symbol string
	params backtest.Params
	rules  *strategy.RuleSet
	model  *pricing.Model
	log    logger.Logger
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger replaces the default logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithPricingModel replaces the default option pricing model.
func WithPricingModel(model *pricing.Model) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// NewEngine validates the parameter vector and assembles the engine.
func NewEngine(symbol string, params backtest.Params, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		symbol: symbol,
		params: params,
		rules:  strategy.NewRuleSet(strategy.Thresholds{
			CycleOversold:   params.CycleOversold,
			CycleOverbought: params.CycleOverbought,
			TrendDown:       params.TrendDown,
			TrendUp:         params.TrendUp,
		}),
		model: pricing.NewDefaultModel(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.log == nil {
		zl := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
		e.log = zerologger.NewAdapter(&zl)
	}
	return e, nil
}

// scores bundles the crisp rule outputs for the latest day.
type scores struct {
	Trend        float64
	Cycle        float64
	VIXNorm      float64
	PutMoneyness float64
	PutSizeFrac  float64
	CallOTM      float64
	ConvertScore float64
	DeltaTarget  float64
	HedgeScore   float64
	HedgeOTMPct  float64
}

// Recommendations evaluates the rules against the last day of history.
func (e *Engine) Recommendations(days []core.TradingDay, book Book) ([]Recommendation, error) {
	if len(days) <= backtest.WarmupDays {
		return nil, fmt.Errorf("%w: need more than %d days, got %d",
			core.ErrInsufficientHistory, backtest.WarmupDays, len(days))
	}
	if book.TotalValue <= 0 {
		return nil, fmt.Errorf("%w: book total value must be positive", core.ErrInvalidParameter)
	}

	day := days[len(days)-1]
	s := e.score(days, book)

	recs := make([]Recommendation, 0, 4)
	if rec, ok := e.putRecommendation(day, book, s); ok {
		recs = append(recs, rec)
	}
	if rec, ok := e.callRecommendation(day, book, s); ok {
		recs = append(recs, rec)
	}
	if rec, ok := e.convertRecommendation(day, book, s); ok {
		recs = append(recs, rec)
	}
	if rec, ok := e.hedgeRecommendation(day, book, s); ok {
		recs = append(recs, rec)
	}

	e.log.WithField("count", len(recs)).Debug("recommendations generated")
	return recs, nil
}

func (e *Engine) score(days []core.TradingDay, book Book) scores {
	start := len(days) - indicatorWindow
	if start < 0 {
		start = 0
	}
	window := days[start:]

	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	closes := make([]float64, len(window))
	vixes := make([]float64, len(window))
	for j, d := range window {
		highs[j] = d.High
		lows[j] = d.Low
		closes[j] = d.Close
		vixes[j] = d.VIX
	}

	day := days[len(days)-1]
	s := scores{
		Trend:   strategy.NormalizeTrend(indicator.TrendStrength(indicator.HL2(highs, lows))),
		Cycle:   strategy.NormalizeCycle(indicator.CycleStrength(closes)),
		VIXNorm: strategy.NormalizeVIX(day.VIX, vixes),
	}

	stockValue := float64(book.Shares) * day.Close
	target := book.TotalValue * e.params.TargetDailyPremiumPct
	bpFrac, stockWeight, deltaPort, premiumGap := strategy.PortfolioMetrics(
		book.TotalValue,
		book.BuyingPowerUsed,
		stockValue,
		book.ShortPutNotional,
		book.HedgeNotional,
		book.PremiumCollected,
		target,
	)

	s.PutMoneyness = e.rules.PutMoneyness(s.Cycle, s.Trend) * e.params.PutMoneynessWeight
	s.PutSizeFrac = math.Min(1, e.rules.PutSizeFraction(premiumGap, s.VIXNorm, bpFrac)*e.params.PutSizeWeight)
	s.CallOTM = e.rules.CallMoneyness(s.Cycle, s.Trend)
	s.ConvertScore, s.DeltaTarget = e.rules.ConvertScore(bpFrac, stockWeight, s.VIXNorm)
	s.HedgeScore, s.HedgeOTMPct = e.rules.HedgeScore(s.VIXNorm, s.Cycle, s.Trend, stockWeight, deltaPort)
	return s
}

func (e *Engine) putRecommendation(day core.TradingDay, book Book, s scores) (Recommendation, bool) {
	if s.PutSizeFrac <= minPutSizeFraction {
		return Recommendation{}, false
	}

	spot := day.Close
	strike := roundToIncrement(spot-s.PutMoneyness*spot*0.02, strikeRounding)
	if strike <= 0 {
		return Recommendation{}, false
	}

	dte := e.params.TargetDTE
	if day.Date.Weekday() == time.Friday {
		dte = 3
	}
	premium := e.model.Premium(core.OptionPut, spot, strike, day.VIX, dte, s.PutMoneyness)
	if premium < e.params.MinContractPremium/100 {
		return Recommendation{}, false
	}

	remaining := book.TotalValue*e.params.TargetDailyPremiumPct - book.PremiumCollected
	if remaining <= 0 {
		return Recommendation{}, false
	}

	contracts := int(remaining * s.PutSizeFrac / (premium * 100))
	if contracts < 1 {
		return Recommendation{}, false
	}

	available := book.TotalValue*maxBuyingPowerUsage - book.BuyingPowerUsed
	if required := strike * 100 * float64(contracts); required > available {
		contracts = int(available / (strike * 100))
		if contracts < 1 {
			return Recommendation{}, false
		}
	}

	confidence := ConfidenceMedium
	if s.PutSizeFrac > 0.7 {
		confidence = ConfidenceHigh
	}

	return Recommendation{
		Symbol:          e.symbol,
		Action:          core.ActionSellPut,
		OptionType:      core.OptionPut,
		Strike:          strike,
		Expiration:      day.Date.AddDate(0, 0, dte),
		DTE:             dte,
		Contracts:       contracts,
		Price:           premium,
		ExpectedPremium: premium * 100 * float64(contracts),
		Confidence:      confidence,
		Reason: fmt.Sprintf("%s put, moneyness %.1f, size fraction %.2f, cycle %.2f, trend %.2f",
			moneynessLabel(s.PutMoneyness), s.PutMoneyness, s.PutSizeFrac, s.Cycle, s.Trend),
	}, true
}

func (e *Engine) callRecommendation(day core.TradingDay, book Book, s scores) (Recommendation, bool) {
	if book.Shares < 100 || book.HasShortCall {
		return Recommendation{}, false
	}

	spot := day.Close
	strike := roundToIncrement(book.CostBasis*(1+s.CallOTM/100), strikeRounding)
	if strike <= 0 {
		return Recommendation{}, false
	}

	dte := e.params.CallDTE
	moneyness := (strike - spot) / spot / 0.02
	premium := e.model.Premium(core.OptionCall, spot, strike, day.VIX, dte, moneyness)

	premiumYield := premium / spot * 365 / float64(dte)
	shareMetrics := strategy.AssignedShareMetrics(book.Shares, book.CostBasis, spot, book.Acquired, day.Date)
	distBE := strategy.DistanceFromBreakeven(strike, book.CostBasis)

	score := e.rules.CallSellScore(shareMetrics.UnrealizedPnLPct, distBE, s.VIXNorm, premiumYield)
	if score < e.params.CallSellThreshold {
		return Recommendation{}, false
	}

	contracts := book.Shares / 100
	confidence := ConfidenceMedium
	if score > 0.8 {
		confidence = ConfidenceHigh
	}

	return Recommendation{
		Symbol:          e.symbol,
		Action:          core.ActionSellCall,
		OptionType:      core.OptionCall,
		Strike:          strike,
		Expiration:      day.Date.AddDate(0, 0, dte),
		DTE:             dte,
		Contracts:       contracts,
		Price:           premium,
		ExpectedPremium: premium * 100 * float64(contracts),
		Confidence:      confidence,
		Reason: fmt.Sprintf("covered call, sell score %.2f, strike %.1f%% above basis, unrealized %.1f%%",
			score, s.CallOTM, shareMetrics.UnrealizedPnLPct*100),
	}, true
}

func (e *Engine) convertRecommendation(day core.TradingDay, book Book, s scores) (Recommendation, bool) {
	if s.ConvertScore < e.params.ConvertThreshold {
		return Recommendation{}, false
	}

	shares := int(float64(book.Shares)*s.ConvertScore/100) * 100
	if shares < 100 {
		return Recommendation{}, false
	}

	spot := day.Close
	strike := roundToIncrement(spot*(1-0.2*s.DeltaTarget), strikeRounding)
	if strike <= 0 {
		return Recommendation{}, false
	}

	contracts := shares / 100
	moneyness := (strike - spot) / strike
	premium := e.model.Premium(core.OptionCall, spot, strike, day.VIX, deepCallDTE, moneyness)
	cost := premium * 100 * float64(contracts)

	confidence := ConfidenceMedium
	if s.ConvertScore > 0.8 {
		confidence = ConfidenceHigh
	}

	return Recommendation{
		Symbol:          e.symbol,
		Action:          core.ActionConvert,
		OptionType:      core.OptionCall,
		Strike:          strike,
		Expiration:      day.Date.AddDate(0, 0, deepCallDTE),
		DTE:             deepCallDTE,
		Contracts:       contracts,
		Price:           premium,
		ExpectedPremium: -cost,
		Confidence:      confidence,
		Reason: fmt.Sprintf("sell %d shares, buy deep ITM calls, convert score %.2f, delta target %.2f",
			shares, s.ConvertScore, s.DeltaTarget),
	}, true
}

func (e *Engine) hedgeRecommendation(day core.TradingDay, book Book, s scores) (Recommendation, bool) {
	if s.HedgeScore < e.params.HedgeScoreThreshold {
		return Recommendation{}, false
	}

	spot := day.Close
	stockExposure := float64(book.Shares) * spot
	if stockExposure <= 0 {
		return Recommendation{}, false
	}

	otmPct := s.HedgeOTMPct
	switch {
	case s.VIXNorm < 0.3:
		otmPct = e.params.HedgeOTMPctLowVIX
	case s.VIXNorm > 0.7:
		otmPct = e.params.HedgeOTMPctHighVIX
	}

	desired := s.HedgeScore * e.params.MaxHedgeNotionalPct * stockExposure
	delta := desired - book.HedgeNotional
	if delta <= 0 {
		return Recommendation{}, false
	}

	strike := roundToIncrement(spot*(1-otmPct/100), strikeRounding)
	if strike <= 0 {
		return Recommendation{}, false
	}

	contracts := int(delta / (strike * 100))
	if contracts < 1 {
		return Recommendation{}, false
	}

	moneyness := (spot - strike) / strike / 0.02
	premium := e.model.Premium(core.OptionPut, spot, strike, day.VIX, e.params.HedgeDTE, moneyness)
	cost := premium * 100 * float64(contracts)

	confidence := ConfidenceMedium
	if s.HedgeScore > 0.7 {
		confidence = ConfidenceHigh
	}

	return Recommendation{
		Symbol:          e.symbol,
		Action:          core.ActionBuyHedge,
		OptionType:      core.OptionPut,
		Strike:          strike,
		Expiration:      day.Date.AddDate(0, 0, e.params.HedgeDTE),
		DTE:             e.params.HedgeDTE,
		Contracts:       contracts,
		Price:           premium,
		ExpectedPremium: -cost,
		Confidence:      confidence,
		Reason: fmt.Sprintf("protective put, hedge score %.2f, %.1f%% OTM, vix norm %.2f",
			s.HedgeScore, otmPct, s.VIXNorm),
	}, true
}

func moneynessLabel(moneyness float64) string {
	switch {
	case moneyness < -0.5:
		return "ITM"
	case moneyness > 0.5:
		return "OTM"
	default:
		return "ATM"
	}
}

func roundToIncrement(v, increment float64) float64 {
	return float64(int(v/increment+0.5)) * increment
}

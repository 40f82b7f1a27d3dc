package backtest

import (
	"math"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/pricing"
	"github.com/quantarc/fuzzywheel/pkg/strategy"
)

// dayScores is the crisp output vector of one day of inference, kept around
// so the daily record and the recommendation report can expose it.
type dayScores struct {
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

// markPositions reprices every open line against today's close.
func (e *Engine) markPositions(day core.TradingDay) {
	for _, pos := range append(e.ledger.ShortPositions(), e.ledger.LongPositions()...) {
		dte := pos.DTE(day.Date)
		if dte < 0 {
			dte = 0
		}
		pos.Mark = e.model.Mark(*pos, day.Close, day.VIX, dte)
	}
}

// putExpiration applies the Friday rule: puts written on Friday carry the
// weekend, everything else uses the configured tenor.
func (e *Engine) putExpiration(date time.Time) (time.Time, int) {
	dte := e.params.TargetDTE
	if date.Weekday() == time.Friday {
		dte = 3
	}
	return date.AddDate(0, 0, dte), dte
}

// rollITMPuts rolls expiring in-the-money short puts out to the next tenor
// when the roll still collects meaningful premium. Puts that cannot be rolled
// profitably are left to assignment.
func (e *Engine) rollITMPuts(day core.TradingDay) {
	totalValue := e.ledger.TotalValue(day.Close)

	for _, pos := range e.ledger.ShortPositions() {
		if pos.Type != core.OptionPut || pos.DTE(day.Date) > 0 || day.Close >= pos.Strike {
			continue
		}

		closeCost := pricing.Intrinsic(core.OptionPut, day.Close, pos.Strike)
		expiration, dte := e.putExpiration(day.Date)
		moneyness := (day.Close - pos.Strike) / pos.Strike / 0.02
		newPremium := e.model.Premium(core.OptionPut, day.Close, pos.Strike, day.VIX, dte, moneyness)

		incremental := (newPremium - closeCost) * 100 * float64(pos.Contracts)
		if incremental < e.params.RollPremiumMin*totalValue {
			continue
		}

		e.ledger.closePosition(pos, day.Date, closeCost, core.StatusRolled, core.ActionRoll)
		if _, err := e.ledger.openShort(day.Date, core.OptionPut, pos.Strike, expiration, pos.Contracts, newPremium, core.ActionSellPut); err != nil {
			e.log.WithError(err).Warn("roll rejected")
			continue
		}

		e.log.WithFields(map[string]interface{}{
			"strike":    pos.Strike,
			"contracts": pos.Contracts,
			"credit":    incremental,
		}).Debug("rolled ITM put")
	}
}

// resolveExpirations settles every line at or past expiration. Already
// terminal positions are skipped, so a position can never settle twice.
func (e *Engine) resolveExpirations(day core.TradingDay) {
	asOf := day.Date

	for _, pos := range e.ledger.ShortPositions() {
		if pos.DTE(asOf) > 0 {
			continue
		}

		itm := pricing.Intrinsic(pos.Type, day.Close, pos.Strike) > 0
		switch {
		case !itm:
			e.ledger.closePosition(pos, day.Date, 0, core.StatusExpired, core.ActionExpire)
		case pos.Type == core.OptionPut:
			// Assignment: premium stays realized, shares come in at the strike
			if e.ledger.closePosition(pos, day.Date, 0, core.StatusAssigned, core.ActionAssign) {
				e.ledger.buyShares(day.Date, pos.Contracts*100, pos.Strike, core.ActionAssign)
				e.log.WithField("strike", pos.Strike).
					WithField("shares", pos.Contracts*100).
					Info("short put assigned")
			}
		default:
			// Covered call exercised against us, shares called away at strike
			if e.ledger.closePosition(pos, day.Date, 0, core.StatusAssigned, core.ActionAssign) {
				if err := e.ledger.sellShares(day.Date, pos.Contracts*100, pos.Strike, core.ActionAssign); err != nil {
					e.log.WithError(err).Warn("call assigned with no shares held")
					continue
				}
				e.log.WithField("strike", pos.Strike).Info("covered call assigned, shares called away")
			}
		}
	}

	for _, pos := range e.ledger.LongPositions() {
		if pos.DTE(asOf) > 0 {
			continue
		}

		intrinsic := pricing.Intrinsic(pos.Type, day.Close, pos.Strike)
		if intrinsic <= 0 {
			e.ledger.closePosition(pos, day.Date, 0, core.StatusExpired, core.ActionExpire)
			continue
		}

		if pos.Type == core.OptionPut {
			// Protective put pays off: dump covered shares at spot, settle
			// the put at intrinsic. Economically identical to delivery at
			// the strike.
			held := e.ledger.Stock().Shares
			if covered := pos.Contracts * 100; held > 0 {
				if covered < held {
					held = covered
				}
				if err := e.ledger.sellShares(day.Date, held, day.Close, core.ActionSellShares); err != nil {
					e.log.WithError(err).Warn("hedge delivery sale rejected")
				}
			}
		}
		e.ledger.closePosition(pos, day.Date, intrinsic, core.StatusExercised, core.ActionExercise)
	}
}

// closeCheapShorts buys back short options whose mark fell under the close
// threshold, freeing their buying power early.
func (e *Engine) closeCheapShorts(day core.TradingDay) {
	for _, pos := range e.ledger.ShortPositions() {
		if pos.DTE(day.Date) <= 0 || pos.Mark > e.params.CloseThreshold {
			continue
		}
		e.ledger.closePosition(pos, day.Date, pos.Mark, core.StatusClosed, core.ActionBuyClose)
	}
}

// sellPut writes a new cash-secured put sized against the remaining daily
// premium target.
func (e *Engine) sellPut(day core.TradingDay, scores dayScores) {
	spot := day.Close
	strike := roundToIncrement(spot-scores.PutMoneyness*spot*0.02, strikeRounding)
	if strike <= 0 {
		return
	}

	expiration, dte := e.putExpiration(day.Date)
	premium := e.model.Premium(core.OptionPut, spot, strike, day.VIX, dte, scores.PutMoneyness)
	if premium < e.params.MinContractPremium/100 {
		e.log.WithField("premium", premium).Debug("put premium under minimum, skipping")
		return
	}

	remaining := e.ledger.DailyTarget() - e.ledger.DailyPremium()
	if remaining <= 0 {
		return
	}

	contracts := int(remaining * scores.PutSizeFrac / (premium * 100))
	if contracts < 1 {
		return
	}

	available := e.ledger.BuyingPowerAvailable(spot)
	if required := strike * 100 * float64(contracts); required > available {
		contracts = int(available / (strike * 100))
		if contracts < 1 {
			e.log.Debug("no buying power for new puts")
			return
		}
	}

	if _, err := e.ledger.openShort(day.Date, core.OptionPut, strike, expiration, contracts, premium, core.ActionSellPut); err != nil {
		e.log.WithError(err).Warn("put order rejected")
		return
	}
	e.log.WithFields(map[string]interface{}{
		"strike":    strike,
		"contracts": contracts,
		"premium":   premium,
		"dte":       dte,
	}).Info("sold puts")
}

// sellCoveredCall writes one covered call against the assigned lot when the
// score clears the gate. At most one short call is carried at a time.
func (e *Engine) sellCoveredCall(day core.TradingDay, scores dayScores) {
	lot := e.ledger.Stock()
	if lot.Shares < 100 || e.ledger.HasOpenShortCall() {
		return
	}

	spot := day.Close
	strike := roundToIncrement(lot.CostBasis*(1+scores.CallOTM/100), strikeRounding)
	if strike <= 0 {
		return
	}

	dte := e.params.CallDTE
	moneyness := (strike - spot) / spot / 0.02
	premium := e.model.Premium(core.OptionCall, spot, strike, day.VIX, dte, moneyness)

	premiumYield := premium / spot * 365 / float64(dte)
	shareMetrics := strategy.AssignedShareMetrics(lot.Shares, lot.CostBasis, spot, lot.Acquired, day.Date)
	distBE := strategy.DistanceFromBreakeven(strike, lot.CostBasis)

	score := e.rules.CallSellScore(shareMetrics.UnrealizedPnLPct, distBE, scores.VIXNorm, premiumYield)
	if score < e.params.CallSellThreshold {
		return
	}

	contracts := lot.Shares / 100
	if _, err := e.ledger.openShort(day.Date, core.OptionCall, strike, day.Date.AddDate(0, 0, dte), contracts, premium, core.ActionSellCall); err != nil {
		e.log.WithError(err).Warn("call order rejected")
		return
	}
	e.log.WithFields(map[string]interface{}{
		"strike":    strike,
		"contracts": contracts,
		"premium":   premium,
		"score":     score,
	}).Info("sold covered calls")
}

// convertShares swaps part of the assigned lot for deep ITM calls to release
// buying power while keeping upside exposure.
func (e *Engine) convertShares(day core.TradingDay, scores dayScores) {
	if scores.ConvertScore < e.params.ConvertThreshold {
		return
	}

	lot := e.ledger.Stock()
	shares := int(float64(lot.Shares)*scores.ConvertScore/100) * 100
	if shares < 100 {
		return
	}

	spot := day.Close
	strike := roundToIncrement(spot*(1-0.2*scores.DeltaTarget), strikeRounding)
	if strike <= 0 {
		return
	}

	contracts := shares / 100
	moneyness := (strike - spot) / strike
	premium := e.model.Premium(core.OptionCall, spot, strike, day.VIX, ditmCallDTE, moneyness)

	cost := premium * 100 * float64(contracts)
	if cost > e.ledger.SpendableCash(spot)+float64(shares)*spot {
		return
	}

	if err := e.ledger.sellShares(day.Date, shares, spot, core.ActionConvert); err != nil {
		e.log.WithError(err).Warn("conversion rejected")
		return
	}
	if _, err := e.ledger.openLong(day.Date, core.OptionCall, strike, day.Date.AddDate(0, 0, ditmCallDTE), contracts, premium, core.ActionConvert); err != nil {
		e.log.WithError(err).Warn("conversion rejected")
		return
	}
	e.log.WithFields(map[string]interface{}{
		"shares":    shares,
		"strike":    strike,
		"contracts": contracts,
	}).Info("converted shares to deep ITM calls")
}

// buyHedge tops the protective put book up to the score-implied notional.
func (e *Engine) buyHedge(day core.TradingDay, scores dayScores) {
	if scores.HedgeScore < e.params.HedgeScoreThreshold {
		return
	}

	spot := day.Close
	stockExposure := float64(e.ledger.Stock().Shares) * spot
	if stockExposure <= 0 {
		return
	}

	otmPct := scores.HedgeOTMPct
	switch {
	case scores.VIXNorm < 0.3:
		otmPct = e.params.HedgeOTMPctLowVIX
	case scores.VIXNorm > 0.7:
		otmPct = e.params.HedgeOTMPctHighVIX
	}

	desired := scores.HedgeScore * e.params.MaxHedgeNotionalPct * stockExposure
	delta := desired - e.ledger.HedgeNotional()
	if delta <= 0 {
		return
	}

	strike := roundToIncrement(spot*(1-otmPct/100), strikeRounding)
	if strike <= 0 {
		return
	}

	contracts := int(delta / (strike * 100))
	if contracts < 1 {
		return
	}

	moneyness := (spot - strike) / strike / 0.02
	premium := e.model.Premium(core.OptionPut, spot, strike, day.VIX, e.params.HedgeDTE, moneyness)

	spendable := e.ledger.SpendableCash(spot)
	if cost := premium * 100 * float64(contracts); cost > spendable {
		contracts = int(spendable / (premium * 100))
		if contracts < 1 {
			return
		}
	}

	if _, err := e.ledger.openLong(day.Date, core.OptionPut, strike, day.Date.AddDate(0, 0, e.params.HedgeDTE), contracts, premium, core.ActionBuyHedge); err != nil {
		e.log.WithError(err).Warn("hedge order rejected")
		return
	}
	e.log.WithFields(map[string]interface{}{
		"strike":    strike,
		"contracts": contracts,
		"otm_pct":   otmPct,
	}).Info("bought hedge puts")
}

// score runs the full inference stack for one day.
func (e *Engine) score(day core.TradingDay, trend, cycle, vixNorm float64) dayScores {
	spot := day.Close
	totalValue := e.ledger.TotalValue(spot)
	stockValue := float64(e.ledger.Stock().Shares) * spot

	bpFrac, stockWeight, deltaPort, premiumGap := strategy.PortfolioMetrics(
		totalValue,
		e.ledger.BuyingPowerUsed(spot),
		stockValue,
		e.ledger.ShortPutNotional(),
		e.ledger.HedgeNotional(),
		e.ledger.DailyPremium(),
		e.ledger.DailyTarget(),
	)

	s := dayScores{Trend: trend, Cycle: cycle, VIXNorm: vixNorm}
	s.PutMoneyness = e.rules.PutMoneyness(cycle, trend) * e.params.PutMoneynessWeight
	s.PutSizeFrac = math.Min(1, e.rules.PutSizeFraction(premiumGap, vixNorm, bpFrac)*e.params.PutSizeWeight)
	s.CallOTM = e.rules.CallMoneyness(cycle, trend)
	s.ConvertScore, s.DeltaTarget = e.rules.ConvertScore(bpFrac, stockWeight, vixNorm)
	s.HedgeScore, s.HedgeOTMPct = e.rules.HedgeScore(vixNorm, cycle, trend, stockWeight, deltaPort)
	return s
}

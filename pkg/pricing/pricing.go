// Package pricing estimates option premiums with a closed-form
// approximation: intrinsic value plus a VIX and DTE driven time value.
// It is deliberately coarse; the simulation needs consistent, monotonic
// prices rather than market-accurate ones.
package pricing

import (
	"fmt"
	"math"

	"github.com/quantarc/fuzzywheel/pkg/core"
)

// DefaultScale keeps ATM short-dated premiums around 1-3% of strike.
const DefaultScale = 0.1

const (
	itmTimeValueBoost = 0.15
	otmTimeValueDecay = 0.15
	otmTimeValueFloor = 0.1
)

// Model prices options from spot, strike, VIX and days to expiration. The
// time value scales off the strike so deep-ITM short puts do not collapse to
// pure intrinsic.
type Model struct {
	scale float64
}

// NewModel validates the time-value scale. Scales outside (0, 0.5] either
// suppress all premium income or inflate it beyond anything the executor's
// gates were calibrated for.
func NewModel(scale float64) (*Model, error) {
	if scale <= 0 || scale > 0.5 {
		return nil, fmt.Errorf("%w: time value scale %.3f outside (0, 0.5]", core.ErrInvalidParameter, scale)
	}
	return &Model{scale: scale}, nil
}

// NewDefaultModel returns a model with the standard scale.
func NewDefaultModel() *Model {
	return &Model{scale: DefaultScale}
}

// Premium estimates the per-share option price. Moneyness is the signed
// distance from the money in strike-relative units; negative means ITM for
// the quoted contract.
func (m *Model) Premium(optType core.OptionType, spot, strike, vix float64, dte int, moneyness float64) float64 {
	if dte < 0 {
		dte = 0
	}

	var intrinsic float64
	if optType == core.OptionPut {
		intrinsic = math.Max(0, strike-spot)
	} else {
		intrinsic = math.Max(0, spot-strike)
	}

	timeValue := (vix / 100) * strike * math.Sqrt(float64(dte)/365) * m.scale
	if moneyness < 0 {
		timeValue *= 1 + math.Abs(moneyness)*itmTimeValueBoost
	} else {
		timeValue *= math.Max(otmTimeValueFloor, 1-moneyness*otmTimeValueDecay)
	}

	return intrinsic + timeValue
}

// Mark reprices an open position against the current market. The moneyness
// adjustment is derived from how far the contract sits from the money.
func (m *Model) Mark(pos core.OptionPosition, spot, vix float64, dte int) float64 {
	var moneyness float64
	if pos.Type == core.OptionPut {
		moneyness = (spot - pos.Strike) / pos.Strike
	} else {
		moneyness = (pos.Strike - spot) / pos.Strike
	}
	return m.Premium(pos.Type, spot, pos.Strike, vix, dte, moneyness)
}

// Intrinsic returns the exercise value of the contract at the given spot.
func Intrinsic(optType core.OptionType, spot, strike float64) float64 {
	if optType == core.OptionPut {
		return math.Max(0, strike-spot)
	}
	return math.Max(0, spot-strike)
}

package notification

import (
	"testing"
	"time"

	"github.com/quantarc/fuzzywheel/pkg/core"
	"github.com/quantarc/fuzzywheel/pkg/recommend"
	"github.com/stretchr/testify/assert"
)

func TestFormatRecommendationSellPut(t *testing.T) {
	rec := recommend.Recommendation{
		Symbol:          "SPX",
		Action:          core.ActionSellPut,
		OptionType:      core.OptionPut,
		Strike:          400,
		Expiration:      time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		DTE:             3,
		Contracts:       11,
		Price:           0.73,
		ExpectedPremium: 797.8,
		Confidence:      recommend.ConfidenceHigh,
		Reason:          "ATM put, moneyness 0.0, size fraction 1.00, cycle 0.00, trend 0.00",
	}

	message := FormatRecommendation(rec)
	assert.Contains(t, message, "SELL PUT - SPX")
	assert.Contains(t, message, "Strike: 400.00")
	assert.Contains(t, message, "Expiration: 2024-05-03 (3d)")
	assert.Contains(t, message, "Contracts: 11")
	assert.Contains(t, message, "Expected premium: 797.80")
	assert.Contains(t, message, "Confidence: high")
	assert.Contains(t, message, "ATM put")
}

func TestFormatRecommendationHedgeCost(t *testing.T) {
	rec := recommend.Recommendation{
		Symbol:          "SPX",
		Action:          core.ActionBuyHedge,
		OptionType:      core.OptionPut,
		Strike:          364,
		DTE:             30,
		Contracts:       5,
		ExpectedPremium: -612.5,
		Confidence:      recommend.ConfidenceMedium,
	}

	message := FormatRecommendation(rec)
	assert.Contains(t, message, "BUY HEDGE PUT - SPX")
	assert.Contains(t, message, "Expected premium: -612.50")
}

func TestFormatRecommendationUnknownActionFallsBack(t *testing.T) {
	rec := recommend.Recommendation{Symbol: "SPX", Action: core.ActionRoll}
	assert.Contains(t, FormatRecommendation(rec), "ROLL - SPX")
}

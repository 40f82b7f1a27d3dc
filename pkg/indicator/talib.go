package indicator

import "github.com/markcheno/go-talib"

// HTTrendline calculates Hilbert Transform - Instantaneous Trendline
func HTTrendline(input []float64) []float64 {
	return talib.HtTrendline(input)
}

// ROC calculates Rate of Change over period, in percent. A zero reference
// value yields zero.
func ROC(input []float64, period int) []float64 {
	return talib.Roc(input, period)
}

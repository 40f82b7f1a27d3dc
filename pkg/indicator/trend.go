package indicator

// MinWarmup is the minimum number of bars either calculator needs before it
// produces a meaningful value.
const MinWarmup = 50

const trendSlopeWindow = 10

// HL2 returns the (high+low)/2 midpoint series fed to the trendline.
func HL2(high, low []float64) []float64 {
	out := make([]float64, len(high))
	for i := range high {
		out[i] = (high[i] + low[i]) / 2
	}
	return out
}

// TrendStrength measures the rate of change of the instantaneous trendline
// over its last ten bars, scaled by 10 and clamped into [-1, 1]. Positive
// values mean a rising trend. Returns 0 when fewer than MinWarmup bars are
// available.
func TrendStrength(hl2 []float64) float64 {
	if len(hl2) < MinWarmup {
		return 0
	}

	roc := ROC(HTTrendline(hl2), trendSlopeWindow-1)
	slope := roc[len(roc)-1] / 100
	return clamp(slope*10, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

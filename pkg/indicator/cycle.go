package indicator

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Cycle swing momentum. The indicator runs two damped wave filters with
// different throttle factors over a 50-bar window and takes their difference
// as the cycle swing index (CSI). Dynamic percentile bands over a 34-bar
// memory locate the index inside its recent swing range.

const (
	csiWindow    = 50
	cyclicMemory = 34
	bandLeveling = 10
)

func cycleCoef1(i int, waveThrottle float64, cycs int) float64 {
	switch i {
	case 0:
		return 1 + waveThrottle
	case 1:
		return 1 + waveThrottle*5
	case cycs - 1:
		return 1 + waveThrottle
	case cycs - 2:
		return 1 + waveThrottle*5
	default:
		return 6*waveThrottle + 1
	}
}

func cycleCoef2(i int, waveThrottle float64, cycs int) float64 {
	switch i {
	case 0:
		return -2 * waveThrottle
	case cycs - 1:
		return 0
	case cycs - 2:
		return -2 * waveThrottle
	default:
		return -4 * waveThrottle
	}
}

func cycleCoef3(i int, waveThrottle float64, cycs int) float64 {
	if i == cycs-1 || i == cycs-2 {
		return 0
	}
	return waveThrottle
}

func csiProcessor(src []float64, cycleCount int) []float64 {
	n := len(src)
	out := make([]float64, n)
	waveThrottle := float64(160 * cycleCount)

	for barIdx := 0; barIdx < n; barIdx++ {
		if barIdx < csiWindow-1 {
			continue
		}

		var wtt1, wtt2, wtt3, wtt4, wtt5 float64
		var pwtt1, pwtt2, pwtt3, pwtt5 float64
		var current float64

		for i := 0; i < csiWindow; i++ {
			swing := cycleCoef1(i, waveThrottle, csiWindow) - wtt4*wtt1 - pwtt5*pwtt2
			if swing == 0 {
				break
			}

			momentum := cycleCoef2(i, waveThrottle, csiWindow)
			pwtt1 = wtt1
			wtt1 = (momentum - wtt4*wtt2) / swing

			acceleration := cycleCoef3(i, waveThrottle, csiWindow)
			pwtt2 = wtt2
			wtt2 = acceleration / swing

			var val float64
			if lookback := barIdx - (csiWindow - 1 - i); lookback >= 0 {
				val = src[lookback]
			}

			current = (val - pwtt3*pwtt5 - wtt3*wtt4) / swing
			pwtt3 = wtt3
			wtt3 = current
			wtt4 = momentum - wtt5*pwtt1
			pwtt5 = wtt5
			wtt5 = acceleration
		}

		out[barIdx] = current
	}

	return out
}

// CycleSwing computes the cycle swing index and its dynamic percentile
// bands. Band entries before the cyclic memory fills are NaN. Input shorter
// than MinWarmup yields nil slices.
func CycleSwing(src []float64) (csi, highBand, lowBand []float64) {
	if len(src) < MinWarmup {
		return nil, nil, nil
	}

	thrust1 := csiProcessor(src, 1)
	thrust2 := csiProcessor(src, 10)

	n := len(src)
	csi = make([]float64, n)
	for i := range csi {
		csi[i] = thrust1[i] - thrust2[i]
	}

	highBand = make([]float64, n)
	lowBand = make([]float64, n)
	window := make([]float64, 0, cyclicMemory)
	for i := range csi {
		if i < cyclicMemory {
			highBand[i] = math.NaN()
			lowBand[i] = math.NaN()
			continue
		}
		window = append(window[:0], csi[i-cyclicMemory+1:i+1]...)
		sort.Float64s(window)
		highBand[i] = stat.Quantile(float64(100-bandLeveling)/100, stat.Empirical, window, nil)
		lowBand[i] = stat.Quantile(float64(bandLeveling)/100, stat.Empirical, window, nil)
	}

	return csi, highBand, lowBand
}

// CycleStrength locates the latest cycle swing index inside its band range,
// mapped to [-1, 1] where -1 means oversold and +1 overbought. Returns 0
// when the history is too short or the band range is degenerate.
func CycleStrength(src []float64) float64 {
	csi, highBand, lowBand := CycleSwing(src)
	if csi == nil {
		return 0
	}

	n := len(csi)
	high, low := highBand[n-1], lowBand[n-1]
	if math.IsNaN(high) || math.IsNaN(low) || high-low <= 0 {
		return 0
	}

	normalized := 2*(csi[n-1]-low)/(high-low) - 1
	return clamp(normalized, -1, 1)
}

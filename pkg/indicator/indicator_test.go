package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSeries(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func sineSeries(n int, base, amplitude float64, period float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + amplitude*math.Sin(2*math.Pi*float64(i)/period)
	}
	return out
}

func TestHL2(t *testing.T) {
	high := []float64{10, 12}
	low := []float64{8, 10}

	got := HL2(high, low)
	assert.Equal(t, []float64{9, 11}, got)
}

func TestROCPercentChange(t *testing.T) {
	got := ROC([]float64{100, 110, 121}, 1)

	require.Len(t, got, 3)
	assert.InDelta(t, 10.0, got[1], 1e-9)
	assert.InDelta(t, 10.0, got[2], 1e-9)
}

func TestTrendStrengthShortHistory(t *testing.T) {
	assert.Equal(t, 0.0, TrendStrength(linearSeries(49, 100, 1)))
}

func TestTrendStrengthDirection(t *testing.T) {
	rising := TrendStrength(linearSeries(120, 100, 0.5))
	falling := TrendStrength(linearSeries(120, 200, -0.5))

	assert.Greater(t, rising, 0.0)
	assert.Less(t, falling, 0.0)
	assert.LessOrEqual(t, rising, 1.0)
	assert.GreaterOrEqual(t, falling, -1.0)
}

func TestTrendStrengthFlat(t *testing.T) {
	flat := make([]float64, 120)
	for i := range flat {
		flat[i] = 100
	}
	assert.InDelta(t, 0.0, TrendStrength(flat), 1e-6)
}

func TestCycleSwingShortHistory(t *testing.T) {
	csi, high, low := CycleSwing(linearSeries(30, 100, 1))
	assert.Nil(t, csi)
	assert.Nil(t, high)
	assert.Nil(t, low)
}

func TestCycleSwingBands(t *testing.T) {
	src := sineSeries(200, 100, 5, 20)
	csi, highBand, lowBand := CycleSwing(src)
	require.Len(t, csi, 200)

	// Bands are undefined until the cyclic memory fills
	assert.True(t, math.IsNaN(highBand[10]))
	assert.True(t, math.IsNaN(lowBand[10]))

	last := len(csi) - 1
	assert.False(t, math.IsNaN(highBand[last]))
	assert.False(t, math.IsNaN(lowBand[last]))
	assert.GreaterOrEqual(t, highBand[last], lowBand[last])
}

func TestCycleStrengthBounded(t *testing.T) {
	src := sineSeries(200, 100, 5, 20)
	got := CycleStrength(src)

	assert.GreaterOrEqual(t, got, -1.0)
	assert.LessOrEqual(t, got, 1.0)
}

func TestCycleStrengthShortHistory(t *testing.T) {
	assert.Equal(t, 0.0, CycleStrength(linearSeries(20, 100, 1)))
}

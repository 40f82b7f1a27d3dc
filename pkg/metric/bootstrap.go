package metric

import (
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// ConfidenceInterval is a bootstrap estimate of a statistic's range.
type ConfidenceInterval struct {
	Lower  float64
	Upper  float64
	Mean   float64
	StdDev float64
}

// Mean is the arithmetic-mean measure for Bootstrap.
func Mean(values []float64) float64 {
	return stat.Mean(values, nil)
}

// Bootstrap resamples values with replacement, applies the measure to each
// resample and returns the confidence interval of the resulting
// distribution. Confidence is a fraction, e.g. 0.95.
func Bootstrap(values []float64, measure func([]float64) float64, resamples int, confidence float64) ConfidenceInterval {
	if len(values) == 0 || resamples <= 0 {
		return ConfidenceInterval{}
	}

	data := make([]float64, 0, resamples)
	sample := make([]float64, len(values))
	for i := 0; i < resamples; i++ {
		for j := range sample {
			sample[j] = lo.Sample(values)
		}
		data = append(data, measure(sample))
	}

	sort.Float64s(data)
	tail := 1 - confidence
	mean, stdDev := stat.MeanStdDev(data, nil)

	return ConfidenceInterval{
		Lower:  stat.Quantile(tail/2, stat.LinInterp, data, nil),
		Upper:  stat.Quantile(1-tail/2, stat.LinInterp, data, nil),
		Mean:   mean,
		StdDev: stdDev,
	}
}

package spectrum

import (
	"math"

	"github.com/ftl/rtlscan/core"
)

// Scale returns the marks of a frequency scale for the given range. The marks are
// at least 10% of the width apart and aligned to multiples of 1, 2 or 5 times a power of ten.
func Scale(frequencyRange core.FrequencyRange) []core.FrequencyMark {
	width := frequencyRange.Width()
	if width <= 0 {
		return []core.FrequencyMark{}
	}

	step := math.Pow(10, math.Floor(math.Log10(float64(width)*0.1)))
	multipliers := []float64{2, 2.5, 2}
	for i := 0; step/float64(width) < 0.1; i++ {
		step *= multipliers[i%len(multipliers)]
	}
	fFactor := core.Frequency(step)
	if fFactor < 1 {
		fFactor = 1
	}

	result := make([]core.FrequencyMark, 0, int(width/fFactor)+1)
	first := (frequencyRange.From / fFactor) * fFactor
	if first < frequencyRange.From {
		first += fFactor
	}
	for f := first; f <= frequencyRange.To; f += fFactor {
		result = append(result, core.FrequencyMark{
			Frequency: f,
			X:         float64(f-frequencyRange.From) / float64(width),
		})
	}
	return result
}

// Reduce the given power values to at most size values, keeping the maximum of each group of bins.
func Reduce(power []float64, size int) []float64 {
	if size <= 0 {
		return []float64{}
	}
	if len(power) <= size {
		result := make([]float64, len(power))
		copy(result, power)
		return result
	}

	result := make([]float64, size)
	for i := range result {
		from := i * len(power) / size
		to := (i + 1) * len(power) / size
		max := math.Inf(-1)
		for _, v := range power[from:to] {
			max = math.Max(max, v)
		}
		result[i] = max
	}
	return result
}

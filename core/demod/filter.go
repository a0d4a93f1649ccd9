package demod

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func magnitudes(samples []complex128) []float64 {
	result := make([]float64, len(samples))
	for i, s := range samples {
		result[i] = cmplx.Abs(s)
	}
	return result
}

func removeMean(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	floats.AddConst(-stat.Mean(values, nil), values)
	return values
}

// normalize scales the values in place to a maximum magnitude of 1. All-zero input stays untouched.
func normalize(values []float64) []float64 {
	max := floats.Norm(values, math.Inf(1))
	if max == 0 {
		return values
	}
	for i := range values {
		values[i] /= max
	}
	return values
}

func unwrap(phases []float64) {
	offset := 0.0
	for i := 1; i < len(phases); i++ {
		delta := phases[i] + offset - phases[i-1]
		offset -= 2 * math.Pi * math.Round(delta/(2*math.Pi))
		phases[i] += offset
	}
}

func rms(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Norm(values, 2) / math.Sqrt(float64(len(values)))
}

// movingAverage returns the centered moving average of the given length, the values outside count as zero.
func movingAverage(values []float64, length int) []float64 {
	if length <= 1 {
		return values
	}
	window := newSlidingWindow(length)
	offset := length - 1 - length/2
	result := make([]float64, len(values))
	for i := 0; i < len(values)+offset; i++ {
		v := 0.0
		if i < len(values) {
			v = values[i]
		}
		avg := window.Put(v)
		if i >= offset {
			result[i-offset] = avg
		}
	}
	return result
}

func newSlidingWindow(length int) *slidingWindow {
	return &slidingWindow{
		length: length,
		buffer: make([]float64, length),
	}
}

type slidingWindow struct {
	length  int
	buffer  []float64
	index   int
	current float64
}

func (w *slidingWindow) Put(v float64) float64 {
	w.current += ((v - w.buffer[w.index]) / float64(w.length))
	w.buffer[w.index] = v
	w.index = (w.index + 1) % w.length
	return w.current
}

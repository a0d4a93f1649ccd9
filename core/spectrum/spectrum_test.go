package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/ftl/rtlscan/core"
)

func TestComputeZerosIsFinite(t *testing.T) {
	for _, fftSize := range []int{2, 16, 1023, 1024} {
		t.Run(fmt.Sprintf("%d", fftSize), func(t *testing.T) {
			power, err := Compute(make([]complex128, fftSize), fftSize, Hann(fftSize))
			require.NoError(t, err)
			require.Len(t, power, fftSize)
			for _, v := range power {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}
		})
	}
}

func TestComputePadsAndTruncates(t *testing.T) {
	power, err := Compute(make([]complex128, 10), 64, Hann(64))
	require.NoError(t, err)
	assert.Len(t, power, 64)

	power, err = Compute(make([]complex128, 100), 64, Hann(64))
	require.NoError(t, err)
	assert.Len(t, power, 64)
}

func TestComputeTonePeak(t *testing.T) {
	fftSize := 64
	tt := []struct {
		bin      int
		expected int
	}{
		{0, 32},
		{8, 40},
		{-8, 24},
		{-16, 16},
		{31, 63},
	}
	for _, tc := range tt {
		t.Run(fmt.Sprintf("%d", tc.bin), func(t *testing.T) {
			samples := tone(fftSize, tc.bin)

			power, err := Compute(samples, fftSize, Hann(fftSize))

			require.NoError(t, err)
			assert.Equal(t, tc.expected, floats.MaxIdx(power))
		})
	}
}

func TestComputeRejectsNonFiniteSamples(t *testing.T) {
	samples := make([]complex128, 16)
	samples[3] = cmplx.NaN()

	_, err := Compute(samples, 16, Hann(16))

	require.Error(t, err)
	var fault *ComputeFault
	assert.True(t, errors.As(err, &fault))
}

func TestComputeRejectsWrongWindow(t *testing.T) {
	_, err := Compute(make([]complex128, 16), 16, Hann(8))
	assert.Error(t, err)

	_, err = Compute(nil, 0, nil)
	assert.Error(t, err)
}

func TestAxisFrequencies(t *testing.T) {
	tt := []struct {
		name     string
		axis     Axis
		expected []float64
	}{
		{"empty", Axis{FFTSize: 0, SampleRate: 2048000, Center: 100000000, Zoom: 1}, []float64{}},
		{"normal", Axis{FFTSize: 4, SampleRate: 4000, Center: 100000, Zoom: 1}, []float64{98000, 99000, 100000, 101000}},
		{"wide", Axis{FFTSize: 4, SampleRate: 4000, Center: 100000, Zoom: 2}, []float64{96000, 98000, 100000, 102000}},
		{"narrow", Axis{FFTSize: 4, SampleRate: 4000, Center: 100000, Zoom: 0.25}, []float64{99500, 99750, 100000, 100250}},
		{"odd", Axis{FFTSize: 3, SampleRate: 3000, Center: 0, Zoom: 1}, []float64{-1000, 0, 1000}},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			actual := tc.axis.Frequencies()
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestAxisIsAscending(t *testing.T) {
	axis := Axis{FFTSize: 1024, SampleRate: 2048000, Center: 100000000, Zoom: 1}.Frequencies()

	require.Len(t, axis, 1024)
	for i := 1; i < len(axis); i++ {
		assert.True(t, axis[i] > axis[i-1])
	}
	assert.Equal(t, 100000000.0, axis[512])
}

func TestEngineProcess(t *testing.T) {
	engine := NewEngine(64, nil)
	axis := Axis{FFTSize: 64, SampleRate: 64000, Center: 1000000, Zoom: 1}.Frequencies()

	snapshot := engine.Process(tone(64, 8), axis)

	assert.False(t, snapshot.Floor)
	assert.Len(t, snapshot.PowerDB, 64)
	assert.Equal(t, axis, snapshot.FrequencyAxis)
	assert.Equal(t, snapshot, engine.Last())
	assert.Equal(t, core.FrequencyRange{From: 968000, To: 1031000}, snapshot.Range())
}

func TestEngineFallsBackToFloor(t *testing.T) {
	engine := NewEngine(32, Hann)
	axis := Axis{FFTSize: 32, SampleRate: 32000, Center: 1000000, Zoom: 1}.Frequencies()
	samples := make([]complex128, 32)
	samples[0] = cmplx.Inf()

	snapshot := engine.Process(samples, axis)

	assert.True(t, snapshot.Floor)
	require.Len(t, snapshot.PowerDB, 32)
	for _, v := range snapshot.PowerDB {
		assert.Equal(t, FloorDB, v)
	}

	snapshot = engine.Process(make([]complex128, 32), axis)
	assert.False(t, snapshot.Floor)
}

func TestNewEngineDefaults(t *testing.T) {
	engine := NewEngine(0, nil)

	assert.Equal(t, DefaultFFTSize, engine.FFTSize())
	assert.True(t, engine.Last().Empty())
}

func TestReduce(t *testing.T) {
	tt := []struct {
		name     string
		power    []float64
		size     int
		expected []float64
	}{
		{"zero size", []float64{1, 2}, 0, []float64{}},
		{"smaller", []float64{1, 2}, 4, []float64{1, 2}},
		{"half", []float64{1, 2, 4, 3, -1, -2}, 3, []float64{2, 4, -1}},
		{"uneven", []float64{1, 5, 2, 3, 4}, 2, []float64{5, 4}},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Reduce(tc.power, tc.size))
		})
	}
}

func TestScale(t *testing.T) {
	marks := Scale(core.FrequencyRange{From: 98800000, To: 101200000})

	frequencies := make([]core.Frequency, len(marks))
	for i, mark := range marks {
		frequencies[i] = mark.Frequency
		assert.True(t, mark.X >= 0 && mark.X <= 1)
	}
	assert.Equal(t, []core.Frequency{99000000, 99500000, 100000000, 100500000, 101000000}, frequencies)

	assert.Empty(t, Scale(core.FrequencyRange{From: 100, To: 100}))
}

func tone(n int, bin int) []complex128 {
	result := make([]complex128, n)
	for i := range result {
		result[i] = cmplx.Exp(complex(0, 2*math.Pi*float64(bin*i)/float64(n)))
	}
	return result
}

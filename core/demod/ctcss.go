package demod

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/stat"
)

// CTCSSTones contains the standard CTCSS tone frequencies in Hz.
var CTCSSTones = []float64{
	67.0, 71.9, 74.4, 77.0, 79.7, 82.5, 85.4, 88.5, 91.5, 94.8,
	97.4, 100.0, 103.5, 107.2, 110.9, 114.8, 118.8, 123.0, 127.3, 131.8,
	136.5, 141.3, 146.2, 151.4, 156.7, 162.2, 167.9, 173.8, 179.9, 186.2,
	192.8, 203.5, 210.7, 218.1, 225.7, 233.6, 241.8, 250.3,
}

const (
	toneBlockSize     = 1024
	toneMinPoints     = 64
	toneBandFrom      = 60.0
	toneBandTo        = 260.0
	toneMaxDifference = 5.0
	toneEpsilon       = 1.0e-12
	toneMinRatio      = 0.01
)

// detectTone looks for the strongest sub-audible tone in the audio at the device sample rate and keeps it if it is close to a CTCSS tone.
func (d *Demodulator) detectTone(audio []float64) {
	sampleRate := d.sampleRate
	if sampleRate <= 0 {
		sampleRate = AudioSampleRate
	}
	tone, ok := findTone(audio, sampleRate)
	if !ok {
		d.tone = nil
		return
	}
	d.tone = &tone
}

// findTone averages the audio down to at most toneBlockSize points and interpolates the
// frequency of the strongest bin in the CTCSS band. Leakage of stronger tones outside the
// band is ignored.
func findTone(audio []float64, sampleRate int) (float64, bool) {
	factor := len(audio) / toneBlockSize
	if factor < 1 {
		factor = 1
	}
	n := len(audio) / factor
	if n > toneBlockSize {
		n = toneBlockSize
	}
	if n < toneMinPoints {
		return 0, false
	}
	points := make([]float64, n)
	for i := range points {
		points[i] = stat.Mean(audio[i*factor:(i+1)*factor], nil)
	}

	window.Apply(points, window.Hann)
	spectrum := fft.FFTReal(points)
	binWidth := float64(sampleRate) / float64(factor) / float64(n)

	peakBin := -1
	peakMagnitude := 0.0
	for i := 0; i <= n/2; i++ {
		f := float64(i) * binWidth
		if f < toneBandFrom || f > toneBandTo {
			continue
		}
		magnitude := cmplx.Abs(spectrum[i])
		if magnitude > peakMagnitude {
			peakMagnitude = magnitude
			peakBin = i
		}
	}
	if peakBin < 0 || peakMagnitude < toneMinRatio*strongestBin(spectrum, n/2) {
		return 0, false
	}

	peakFrequency := (float64(peakBin) + peakOffset(spectrum, peakBin, n/2)) * binWidth
	nearest := NearestCTCSSTone(peakFrequency)
	if math.Abs(nearest-peakFrequency) > toneMaxDifference {
		return 0, false
	}
	return nearest, true
}

func strongestBin(spectrum []complex128, maxBin int) float64 {
	result := 0.0
	for i := 1; i <= maxBin; i++ {
		result = math.Max(result, cmplx.Abs(spectrum[i]))
	}
	return result
}

// peakOffset fits a gaussian through the log magnitudes of the peak bin and its neighbors.
// The result is the offset of the true peak in bins, within [-0.5,0.5].
func peakOffset(spectrum []complex128, bin, maxBin int) float64 {
	if bin <= 0 || bin >= maxBin {
		return 0
	}
	a := math.Log(cmplx.Abs(spectrum[bin-1]) + toneEpsilon)
	b := math.Log(cmplx.Abs(spectrum[bin]) + toneEpsilon)
	c := math.Log(cmplx.Abs(spectrum[bin+1]) + toneEpsilon)
	curvature := a - 2*b + c
	if curvature >= 0 {
		return 0
	}
	return math.Max(-0.5, math.Min(0.5, 0.5*(a-c)/curvature))
}

// NearestCTCSSTone returns the CTCSS tone closest to the given frequency.
func NearestCTCSSTone(f float64) float64 {
	result := CTCSSTones[0]
	for _, tone := range CTCSSTones[1:] {
		if math.Abs(tone-f) < math.Abs(result-f) {
			result = tone
		}
	}
	return result
}

package demod

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

const (
	dmrToneFrequency  = 1200.0
	dmrToneAmplitude  = 0.3
	activityThreshold = 0.15
)

// dmr plays a marker tone while DMR-like activity is detected.
func (d *Demodulator) dmr(samples []complex128) []float64 {
	d.detectActivity(samples)

	result := make([]float64, len(samples))
	if !d.digital.Active || d.sampleRate <= 0 {
		return result
	}
	ω := 2.0 * math.Pi * dmrToneFrequency / float64(d.sampleRate)
	for i := range result {
		result[i] = dmrToneAmplitude * math.Sin(ω*float64(i))
	}
	return result
}

// detectActivity compares the mean sample to sample change with the mean magnitude.
// Talkgroup, timeslot and color code are made up when the activity starts.
func (d *Demodulator) detectActivity(samples []complex128) {
	if !active(samples) {
		d.digital = FrameInfo{}
		return
	}
	if d.digital.Active {
		return
	}
	d.digital = FrameInfo{
		Active:    true,
		Talkgroup: 1 + d.random.Intn(9999),
		Timeslot:  1 + d.random.Intn(2),
		ColorCode: d.random.Intn(16),
	}
}

func active(samples []complex128) bool {
	if len(samples) < 2 {
		return false
	}
	changes := make([]float64, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		changes[i-1] = cmplx.Abs(samples[i] - samples[i-1])
	}
	return stat.Mean(changes, nil) > activityThreshold*stat.Mean(magnitudes(samples), nil)
}

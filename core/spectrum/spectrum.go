// Package spectrum computes the power spectrum of IQ sample blocks.
//
// The frequency axis follows the zoom factor of the display, the spectrum data
// always keeps the FFT size. Zooming is a display scaling of the axis labels,
// not a narrowband capture.
package spectrum

import (
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"sync"

	dsp "github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
)

// FloorDB is the value of all bins of a fallback snapshot.
const FloorDB = -50.0

const epsilon = 1.0e-10

// DefaultFFTSize is used if no FFT size is configured.
const DefaultFFTSize = 1024

// WindowFunc returns a window of the given length.
type WindowFunc func(int) []float64

// Hann is the default window function.
var Hann WindowFunc = window.Hann

// Snapshot of the spectrum, replaced as a whole on every capture.
type Snapshot struct {
	PowerDB       []float64 `json:"power_db"`
	FrequencyAxis []float64 `json:"frequency_axis"`
	Floor         bool      `json:"floor"`
}

// Range returns the frequency range covered by the frequency axis.
func (s Snapshot) Range() core.FrequencyRange {
	if len(s.FrequencyAxis) == 0 {
		return core.FrequencyRange{}
	}
	return core.FrequencyRange{
		From: core.Frequency(s.FrequencyAxis[0]),
		To:   core.Frequency(s.FrequencyAxis[len(s.FrequencyAxis)-1]),
	}
}

// Empty indicates that the snapshot contains no data.
func (s Snapshot) Empty() bool {
	return len(s.PowerDB) == 0
}

// ComputeFault is a numerical failure inside the spectrum computation.
type ComputeFault struct {
	Reason string
}

func (f *ComputeFault) Error() string {
	return "spectrum compute fault: " + f.Reason
}

func fault(format string, args ...interface{}) error {
	return errors.WithStack(&ComputeFault{Reason: fmt.Sprintf(format, args...)})
}

// Axis describes the frequency axis of the spectrum.
type Axis struct {
	FFTSize    int
	SampleRate int
	Center     core.Frequency
	Zoom       float64
}

// Frequencies computes fftshift(fftfreq(fftSize, 1/sampleRate)) * zoom + center.
func (a Axis) Frequencies() []float64 {
	n := a.FFTSize
	result := make([]float64, n)
	if n == 0 {
		return result
	}
	binWidth := float64(a.SampleRate) / float64(n)
	first := -(n / 2)
	for i := range result {
		result[i] = float64(first+i)*binWidth*a.Zoom + float64(a.Center)
	}
	return result
}

// Compute returns the power spectrum in dB of the given samples: window, FFT, center shift, 20*log10(|X|+ε).
// Samples are zero-padded or truncated to fftSize.
func Compute(samples []complex128, fftSize int, win []float64) (result []float64, err error) {
	if fftSize <= 0 {
		return nil, fault("invalid FFT size %d", fftSize)
	}
	if len(win) != fftSize {
		return nil, fault("window length %d does not match FFT size %d", len(win), fftSize)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fault("panic in FFT: %v", r)
		}
	}()

	block := make([]complex128, fftSize)
	for i := 0; i < fftSize && i < len(samples); i++ {
		s := samples[i]
		if cmplx.IsNaN(s) || cmplx.IsInf(s) {
			return nil, fault("sample %d is not finite", i)
		}
		block[i] = s * complex(win[i], 0)
	}

	cfft := dsp.FFT(block)
	result = make([]float64, fftSize)
	blockCenter := fftSize / 2
	for i, v := range cfft {
		resultIndex := (i + blockCenter) % fftSize
		db := 20.0 * math.Log10(cmplx.Abs(v)+epsilon)
		if math.IsNaN(db) || math.IsInf(db, 0) {
			return nil, fault("bin %d is not finite", i)
		}
		result[resultIndex] = db
	}
	return result, nil
}

// Engine turns sample blocks into snapshots and recovers from compute faults.
// An Engine is used by a single goroutine.
type Engine struct {
	fftSize int
	window  []float64
	last    Snapshot
	warn    sync.Once
}

// NewEngine returns a new engine for the given FFT size and window function.
func NewEngine(fftSize int, windowFunc WindowFunc) *Engine {
	if fftSize <= 0 {
		fftSize = DefaultFFTSize
	}
	if windowFunc == nil {
		windowFunc = Hann
	}
	return &Engine{
		fftSize: fftSize,
		window:  windowFunc(fftSize),
	}
}

// FFTSize of this engine.
func (e *Engine) FFTSize() int {
	return e.fftSize
}

// Process computes the snapshot of the given samples on the given frequency axis.
// On a compute fault the previous snapshot's shape is returned, filled with FloorDB.
func (e *Engine) Process(samples []complex128, frequencyAxis []float64) Snapshot {
	power, err := Compute(samples, e.fftSize, e.window)
	if err != nil {
		e.warn.Do(func() {
			log.Print("spectrum: ", err)
		})
		e.last = e.floor(frequencyAxis)
		return e.last
	}

	e.last = Snapshot{
		PowerDB:       power,
		FrequencyAxis: frequencyAxis,
	}
	return e.last
}

// Last returns the most recent snapshot.
func (e *Engine) Last() Snapshot {
	return e.last
}

func (e *Engine) floor(frequencyAxis []float64) Snapshot {
	size := len(e.last.PowerDB)
	if size == 0 {
		size = e.fftSize
	}
	power := make([]float64, size)
	for i := range power {
		power[i] = FloorDB
	}
	return Snapshot{
		PowerDB:       power,
		FrequencyAxis: frequencyAxis,
		Floor:         true,
	}
}

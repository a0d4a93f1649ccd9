// Package demod turns complex baseband samples into audio.
//
// The digital path is a placeholder. It detects DMR-like activity and plays a
// marker tone, it does not decode frames. The CTCSS detector is a spectral
// peak heuristic as well.
package demod

import (
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
)

// AudioSampleRate is the nominal sample rate of the demodulated audio in Hz.
const AudioSampleRate = 48000

// FrameInfo describes the detected digital activity.
type FrameInfo struct {
	Active    bool `json:"active"`
	Talkgroup int  `json:"talkgroup,omitempty"`
	Timeslot  int  `json:"timeslot,omitempty"`
	ColorCode int  `json:"color_code,omitempty"`
}

// Result of a demodulation call.
type Result struct {
	Audio   []float64 `json:"-"`
	Level   float64   `json:"level"`
	Tone    *float64  `json:"tone,omitempty"`
	Digital FrameInfo `json:"digital"`
}

// ComputeFault is a numerical failure inside a demodulation path.
type ComputeFault struct {
	Mode   core.DemodMode
	Reason string
}

func (f *ComputeFault) Error() string {
	return fmt.Sprintf("%s demodulation fault: %s", f.Mode, f.Reason)
}

func fault(mode core.DemodMode, format string, args ...interface{}) error {
	return errors.WithStack(&ComputeFault{Mode: mode, Reason: fmt.Sprintf(format, args...)})
}

// Demodulator keeps the side channel state between calls. It is used by a single goroutine.
type Demodulator struct {
	sampleRate int
	random     *rand.Rand
	tone       *float64
	digital    FrameInfo
	warned     map[core.DemodMode]bool
}

// New returns a demodulator for the given sample rate. If random is nil, a time seeded source is used.
func New(sampleRate int, random *rand.Rand) *Demodulator {
	if random == nil {
		random = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Demodulator{
		sampleRate: sampleRate,
		random:     random,
		warned:     make(map[core.DemodMode]bool),
	}
}

// Demodulate the given samples with the given mode. A numerical failure results in silence.
func (d *Demodulator) Demodulate(samples []complex128, mode core.DemodMode) Result {
	audio, err := d.demodulate(samples, mode)
	if err != nil {
		if !d.warned[mode] {
			d.warned[mode] = true
			log.Print("demod: ", err)
		}
		audio = make([]float64, len(samples))
	}

	result := Result{
		Audio:   audio,
		Level:   rms(audio),
		Digital: d.digital,
	}
	if d.tone != nil {
		tone := *d.tone
		result.Tone = &tone
	}
	return result
}

// Tone returns the currently detected CTCSS tone.
func (d *Demodulator) Tone() (float64, bool) {
	if d.tone == nil {
		return 0, false
	}
	return *d.tone, true
}

// Digital returns the currently detected digital activity.
func (d *Demodulator) Digital() FrameInfo {
	return d.digital
}

func (d *Demodulator) demodulate(samples []complex128, mode core.DemodMode) (audio []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			audio = nil
			err = fault(mode, "panic: %v", r)
		}
	}()

	if mode != core.ModeFM {
		d.tone = nil
	}
	if mode != core.ModeDMR {
		d.digital = FrameInfo{}
	}
	if mode == core.ModeNone || len(samples) == 0 {
		return make([]float64, len(samples)), nil
	}
	for i, s := range samples {
		if cmplx.IsNaN(s) || cmplx.IsInf(s) {
			return nil, fault(mode, "sample %d is not finite", i)
		}
	}

	switch mode {
	case core.ModeAM:
		audio = am(samples)
	case core.ModeFM:
		audio = fm(samples)
		d.detectTone(audio)
	case core.ModeSSB:
		audio = ssb(samples)
	case core.ModeCW:
		audio = cw(samples, d.sampleRate/1000)
	case core.ModeDMR:
		audio = d.dmr(samples)
	default:
		return nil, fault(mode, "unknown mode")
	}

	for i, v := range audio {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fault(mode, "audio value %d is not finite", i)
		}
	}
	return audio, nil
}

func am(samples []complex128) []float64 {
	return normalize(removeMean(magnitudes(samples)))
}

func fm(samples []complex128) []float64 {
	phases := make([]float64, len(samples))
	for i, s := range samples {
		phases[i] = cmplx.Phase(s)
	}
	unwrap(phases)

	result := make([]float64, len(samples))
	for i := 1; i < len(phases); i++ {
		result[i-1] = (phases[i] - phases[i-1]) / (2 * math.Pi)
	}
	if len(result) > 1 {
		result[len(result)-1] = result[len(result)-2]
	}
	return normalize(result)
}

// ssb approximates upper sideband by the real part.
func ssb(samples []complex128) []float64 {
	result := make([]float64, len(samples))
	for i, s := range samples {
		result[i] = real(s)
	}
	return normalize(removeMean(result))
}

func cw(samples []complex128, smoothing int) []float64 {
	envelope := movingAverage(magnitudes(samples), smoothing)
	return normalize(removeMean(envelope))
}

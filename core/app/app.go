// Package app contains the scanner session: the capture loop, the display loop and the
// tuning operations of the presentation layers.
package app

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
	"github.com/ftl/rtlscan/core/bandplan"
	"github.com/ftl/rtlscan/core/demod"
	"github.com/ftl/rtlscan/core/rtlsdr"
	"github.com/ftl/rtlscan/core/source"
	"github.com/ftl/rtlscan/core/spectrum"
	"github.com/ftl/rtlscan/core/tuning"
)

// Defaults for unset configuration values.
const (
	DefaultSampleRate      = 2048000
	DefaultShutdownTimeout = 1 * time.Second
)

// ErrShutdownTimeout is returned by Stop if the loops did not exit in time.
var ErrShutdownTimeout = errors.New("loops did not shut down in time")

// OpenDevice opens the radio device for the given configuration: the synthetic device in test mode,
// the RTL-SDR dongle with the configured index otherwise.
func OpenDevice(configuration core.Configuration) (source.Device, error) {
	if configuration.Testmode {
		return source.NewSynthetic(source.DefaultStations, time.Now().UnixNano(), true), nil
	}
	dongle, err := rtlsdr.Open(configuration.DeviceIndex)
	if err != nil {
		return nil, err
	}
	return dongle, nil
}

// Frame is everything a presentation layer needs to render the current state.
type Frame struct {
	SessionID  string
	Time       time.Time
	Tuning     tuning.State
	Menu       tuning.Menu
	Band       bandplan.Band
	SampleRate int
	Spectrum   spectrum.Snapshot
	Demod      DemodSummary
	DeviceLost bool
}

// DemodSummary is the part of the demodulation result that is shown to the user.
type DemodSummary struct {
	Mode        core.DemodMode
	AudioActive bool
	Level       float64
	Tone        *float64
	Digital     demod.FrameInfo
}

// FrameListener is notified about every new frame.
type FrameListener func(Frame)

// TuneListener is notified when the center frequency was changed.
type TuneListener func(core.Frequency)

// AudioListener receives the demodulated audio while audio is active.
type AudioListener func(audio []float64, sampleRate int)

func withDefaults(configuration core.Configuration) core.Configuration {
	result := configuration
	if result.SampleRate <= 0 {
		result.SampleRate = DefaultSampleRate
	}
	if result.FFTSize <= 0 {
		result.FFTSize = spectrum.DefaultFFTSize
	}
	if result.ReadTimeout <= 0 {
		result.ReadTimeout = source.DefaultReadTimeout
	}
	return result
}

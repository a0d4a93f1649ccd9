package source

import (
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
)

// Station is a transmitter simulated by the synthetic device.
type Station struct {
	Frequency core.Frequency
	Mode      core.DemodMode
	Amplitude float64
	// Tone is the modulating audio tone in Hz.
	Tone float64
	// CTCSS is the sub-audible tone of an FM station in Hz, 0 for none.
	CTCSS float64
}

// DefaultStations are used in test mode.
var DefaultStations = []Station{
	{Frequency: 100100000, Mode: core.ModeFM, Amplitude: 0.5, Tone: 1000, CTCSS: 94.8},
	{Frequency: 99700000, Mode: core.ModeAM, Amplitude: 0.3, Tone: 800},
	{Frequency: 100350000, Mode: core.ModeDMR, Amplitude: 0.4},
}

const (
	fmDeviation    = 5000.0
	ctcssDeviation = 500.0
	dmrDeviation   = 648.0
	dmrSymbolRate  = 4800.0
	noiseLevel     = 0.02
)

// Synthetic is a Device that simulates a few stations and noise. Failures can be injected for testing.
type Synthetic struct {
	mu       sync.Mutex
	stations []Station
	phases   []float64
	symbols  []float64
	random   *rand.Rand
	realtime bool

	sampleRate int
	center     core.Frequency
	gain       core.Gain
	n          int64

	transientFailures int
	lost              bool
	readDelay         time.Duration
	rejected          map[Parameter]bool
	closed            bool
}

// NewSynthetic returns a synthetic device with the given stations. If realtime is set,
// reads take as long as the samples would take on air.
func NewSynthetic(stations []Station, seed int64, realtime bool) *Synthetic {
	return &Synthetic{
		stations: stations,
		phases:   make([]float64, len(stations)),
		symbols:  make([]float64, len(stations)),
		random:   rand.New(rand.NewSource(seed)),
		realtime: realtime,
		rejected: make(map[Parameter]bool),
	}
}

// SetSampleRate of the simulation.
func (s *Synthetic) SetSampleRate(rate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejected[SampleRate] || rate <= 0 {
		return errors.Errorf("sample rate %d rejected", rate)
	}
	s.sampleRate = rate
	return nil
}

// SetCenterFrequency of the simulation.
func (s *Synthetic) SetCenterFrequency(f core.Frequency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejected[CenterFrequency] {
		return errors.Errorf("center frequency %v rejected", f)
	}
	s.center = f
	return nil
}

// SetGain of the simulation. Manual gain scales the signal, auto gain is treated as 20dB.
func (s *Synthetic) SetGain(gain core.Gain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejected[Gain] {
		return errors.Errorf("gain %v rejected", gain)
	}
	s.gain = gain
	return nil
}

// Read simulated samples.
func (s *Synthetic) Read(samples []complex128) error {
	s.mu.Lock()
	delay := s.readDelay
	if s.realtime && s.sampleRate > 0 {
		delay += time.Duration(float64(len(samples)) / float64(s.sampleRate) * float64(time.Second))
	}
	err := s.read(samples)
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (s *Synthetic) read(samples []complex128) error {
	switch {
	case s.closed:
		return &DeviceError{Kind: IOFailure, Op: "read", Gone: true, Err: ErrClosed}
	case s.lost:
		return &DeviceError{Kind: IOFailure, Op: "read", Gone: true, Err: errors.New("synthetic device unplugged")}
	case s.transientFailures > 0:
		s.transientFailures--
		return &DeviceError{Kind: IOFailure, Op: "read", Err: errors.New("synthetic transfer error")}
	case s.sampleRate <= 0:
		return &DeviceError{Kind: IOFailure, Op: "read", Err: errors.New("no sample rate")}
	}

	rate := float64(s.sampleRate)
	gain := s.gainFactor()
	samplesPerSymbol := int64(rate / dmrSymbolRate)
	if samplesPerSymbol < 1 {
		samplesPerSymbol = 1
	}
	for i := range samples {
		n := s.n + int64(i)
		t := float64(n) / rate
		v := complex(s.random.NormFloat64()*noiseLevel, s.random.NormFloat64()*noiseLevel)
		for j, station := range s.stations {
			offset := float64(station.Frequency - s.center)
			if math.Abs(offset) > rate/2 {
				continue
			}
			amplitude := station.Amplitude
			f := offset
			switch station.Mode {
			case core.ModeFM:
				f += fmDeviation * math.Sin(2*math.Pi*station.Tone*t)
				if station.CTCSS > 0 {
					f += ctcssDeviation * math.Sin(2*math.Pi*station.CTCSS*t)
				}
			case core.ModeAM:
				amplitude *= 1 + 0.5*math.Sin(2*math.Pi*station.Tone*t)
			case core.ModeDMR:
				// bursts of 30ms in every 60ms frame
				if math.Mod(t, 0.06) >= 0.03 {
					continue
				}
				if n%samplesPerSymbol == 0 {
					s.symbols[j] = float64(2*s.random.Intn(4) - 3)
				}
				f += s.symbols[j] * dmrDeviation
			}
			s.phases[j] = math.Mod(s.phases[j]+2*math.Pi*f/rate, 2*math.Pi)
			v += complex(amplitude*math.Cos(s.phases[j]), amplitude*math.Sin(s.phases[j]))
		}
		v *= complex(gain, 0)
		samples[i] = complex(clip(real(v)), clip(imag(v)))
	}
	s.n += int64(len(samples))
	return nil
}

func (s *Synthetic) gainFactor() float64 {
	db := 20.0
	if !s.gain.Auto {
		db = float64(s.gain.DB)
	}
	return math.Pow(10, (db-20)/20)
}

func clip(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// Close the simulation.
func (s *Synthetic) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		log.Print("synthetic device closed")
	}
	s.closed = true
	return nil
}

// FailReads lets the next count reads fail with a transient error.
func (s *Synthetic) FailReads(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transientFailures = count
}

// Unplug simulates a physically lost device.
func (s *Synthetic) Unplug() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = true
}

// Reject lets the device refuse the given parameter.
func (s *Synthetic) Reject(p Parameter, rejected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[p] = rejected
}

// Delay every read by the given duration.
func (s *Synthetic) Delay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readDelay = d
}

// Params returns the current simulation parameters.
func (s *Synthetic) Params() core.DeviceParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.DeviceParams{SampleRate: s.sampleRate, CenterFrequency: s.center, Gain: s.gain}
}

// Closed indicates that the device was closed.
func (s *Synthetic) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

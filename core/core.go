package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Frequency represents a frequency in Hz.
type Frequency int64

func (f Frequency) String() string {
	return fmt.Sprintf("%.6fMHz", f.MHz())
}

// MHz returns the frequency in MHz.
func (f Frequency) MHz() float64 {
	return float64(f) / 1e6
}

// FromMHz converts the given value in MHz to a Frequency.
func FromMHz(mhz float64) Frequency {
	return Frequency(mhz*1e6 + 0.5)
}

// Clamp the frequency to the given range.
func (f Frequency) Clamp(r FrequencyRange) Frequency {
	if f < r.From {
		return r.From
	}
	if f > r.To {
		return r.To
	}
	return f
}

// FrequencyRange represents a range of frequencies.
type FrequencyRange struct {
	From, To Frequency
}

func (r FrequencyRange) String() string {
	return fmt.Sprintf("[%v,%v]", r.From, r.To)
}

// Center frequency of this range.
func (r FrequencyRange) Center() Frequency {
	return r.From + (r.To-r.From)/2
}

// Width of the frequency range.
func (r FrequencyRange) Width() Frequency {
	return r.To - r.From
}

// Contains the given frequency.
func (r FrequencyRange) Contains(f Frequency) bool {
	return f >= r.From && f <= r.To
}

// TunableRange is the range of frequencies the scanner can be tuned to.
var TunableRange = FrequencyRange{From: 1000000, To: 2000000000}

// DB represents decibel (dB).
type DB float64

func (f DB) String() string {
	return fmt.Sprintf("%.2fdB", f)
}

// Gain is either automatic gain control or a manual gain in dB.
type Gain struct {
	Auto bool
	DB   int
}

// AutoGain lets the tuner control the gain.
var AutoGain = Gain{Auto: true}

// ManualGain returns a manual gain setting of the given value in dB.
func ManualGain(db int) Gain {
	return Gain{DB: db}
}

func (g Gain) String() string {
	if g.Auto {
		return "Auto"
	}
	return fmt.Sprintf("%ddB", g.DB)
}

// ParseGain parses "auto" or a value in dB, e.g. "15" or "15dB".
func ParseGain(s string) (Gain, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "auto" || s == "" {
		return AutoGain, nil
	}
	db, err := strconv.Atoi(strings.TrimSuffix(s, "db"))
	if err != nil {
		return Gain{}, errors.Errorf("invalid gain %q", s)
	}
	return ManualGain(db), nil
}

// MarshalText implements encoding.TextMarshaler.
func (g Gain) MarshalText() ([]byte, error) {
	if g.Auto {
		return []byte("auto"), nil
	}
	return []byte(strconv.Itoa(g.DB)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Gain) UnmarshalText(text []byte) error {
	parsed, err := ParseGain(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// SignalType selects the group of demodulation modes.
type SignalType int

// All signal types.
const (
	Analog SignalType = iota
	Digital
)

func (t SignalType) String() string {
	switch t {
	case Analog:
		return "Analog"
	case Digital:
		return "Digital"
	default:
		return "Unknown"
	}
}

// DemodMode is the demodulation mode.
type DemodMode int

// All demodulation modes.
const (
	ModeNone DemodMode = iota
	ModeAM
	ModeFM
	ModeSSB
	ModeCW
	ModeDMR
)

var modeNames = map[DemodMode]string{
	ModeNone: "none",
	ModeAM:   "am",
	ModeFM:   "fm",
	ModeSSB:  "ssb",
	ModeCW:   "cw",
	ModeDMR:  "dmr",
}

func (m DemodMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m DemodMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *DemodMode) UnmarshalText(text []byte) error {
	parsed, err := ParseDemodMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseDemodMode parses the name of a demodulation mode.
func ParseDemodMode(s string) (DemodMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range modeNames {
		if name == s {
			return mode, nil
		}
	}
	return ModeNone, errors.Errorf("unknown mode %q", s)
}

// AnalogModes are the modes of the analog signal type, in menu order.
var AnalogModes = []DemodMode{ModeNone, ModeAM, ModeFM, ModeSSB, ModeCW}

// DigitalModes are the modes of the digital signal type, in menu order.
var DigitalModes = []DemodMode{ModeNone, ModeDMR}

// Modes returns the modes of the given signal type.
func Modes(t SignalType) []DemodMode {
	if t == Digital {
		return DigitalModes
	}
	return AnalogModes
}

// DeviceParams are the parameters that are mirrored onto the radio device.
type DeviceParams struct {
	SampleRate      int
	CenterFrequency Frequency
	Gain            Gain
}

func (p DeviceParams) String() string {
	return fmt.Sprintf("rate %d center %v gain %v", p.SampleRate, p.CenterFrequency, p.Gain)
}

// Key is a decoded input event.
type Key int

// The input vocabulary.
const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyToggleMenu
	KeySelect
	KeyQuit
	KeyCancel
)

var keyNames = []string{"none", "up", "down", "left", "right", "menu", "select", "quit", "cancel"}

func (k Key) String() string {
	if int(k) < len(keyNames) && k >= 0 {
		return keyNames[k]
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// ParseKey parses the name of a key event.
func ParseKey(s string) (Key, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range keyNames {
		if i > 0 && name == s {
			return Key(i), nil
		}
	}
	return KeyNone, errors.Errorf("unknown key %q", s)
}

// FrequencyMark on the frequency scale, X is the relative position in [0,1].
type FrequencyMark struct {
	Frequency Frequency
	X         float64
}

// Configuration parameters of the application.
type Configuration struct {
	Testmode        bool
	DeviceIndex     int
	SampleRate      int
	CenterFrequency Frequency
	Gain            Gain
	FFTSize         int
	CaptureRate     int
	DisplayRate     int
	ReadTimeout     time.Duration
	AudioEnabled    bool
	VFOHost         string
	WebAddress      string
	WebAnnounce     bool
}

// Interval returns the duration between two ticks at the given rate per second.
func Interval(ratePerSecond int) time.Duration {
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	return time.Second / time.Duration(ratePerSecond)
}

// Package tuning contains the digit cursor model of the scanner: frequency,
// gain, spectrum width, demodulation mode and frequency correction.
//
// State is a plain value without internal synchronization. The session keeps
// it behind the device lock, so each transition is applied atomically with
// respect to the capture loop.
package tuning

import (
	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
)

// DigitSteps are the step sizes of the frequency digits, from 100MHz down to 1Hz.
var DigitSteps = [...]core.Frequency{100000000, 10000000, 1000000, 100000, 10000, 1000, 100, 10, 1}

// DigitLabels name the frequency digits.
var DigitLabels = [...]string{"100MHz", "10MHz", "1MHz", "100kHz", "10kHz", "1kHz", "100Hz", "10Hz", "1Hz"}

// GainValues are the manual gain values in dB that can be set.
var GainValues = []int{-10, 0, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50}

// GainPreset is an entry of the gain control group in the menu.
type GainPreset struct {
	Gain  core.Gain
	Label string
}

// GainPresets is the gain control group of the menu.
var GainPresets = []GainPreset{
	{core.AutoGain, "Auto"},
	{core.ManualGain(-10), "Low"},
	{core.ManualGain(15), "Medium"},
	{core.ManualGain(35), "High"},
}

// Width of the spectrum display.
type Width struct {
	Name string
	Zoom float64
}

// Widths maps the spectrum width index to the zoom factor of the frequency axis.
var Widths = []Width{
	{"narrow", 0.25},
	{"normal", 1.0},
	{"wide", 2.0},
	{"full", 4.0},
}

// PPM limits.
const (
	MinPPM = -100
	MaxPPM = 100
)

// DefaultFrequency is used if no frequency is configured.
const DefaultFrequency = core.Frequency(100000000)

// State of the tuning controls.
type State struct {
	Frequency  core.Frequency
	Digit      int
	Gain       core.Gain
	WidthIndex int
	SignalType core.SignalType
	ModeIndex  int
	PPM        int
	Audio      bool
}

// New returns the default state tuned to the given frequency.
func New(f core.Frequency) State {
	if f == 0 {
		f = DefaultFrequency
	}
	return State{
		Frequency:  f.Clamp(core.TunableRange),
		Gain:       core.AutoGain,
		WidthIndex: 1,
		SignalType: core.Analog,
	}
}

// Step is the frequency step of the selected digit.
func (s State) Step() core.Frequency {
	return DigitSteps[s.Digit]
}

// DigitLabel names the selected digit.
func (s State) DigitLabel() string {
	return DigitLabels[s.Digit]
}

// AdjustFrequency moves the frequency by one step of the selected digit in the given direction.
// It returns true if the frequency changed.
func (s *State) AdjustFrequency(direction int) bool {
	return s.SetFrequency(s.Frequency + core.Frequency(direction)*s.Step())
}

// SetFrequency sets the frequency, clamped to the tunable range. It returns true if the frequency changed.
func (s *State) SetFrequency(f core.Frequency) bool {
	f = f.Clamp(core.TunableRange)
	if f == s.Frequency {
		return false
	}
	s.Frequency = f
	return true
}

// SelectNextDigit moves the digit cursor to the next smaller digit, wrapping around.
func (s *State) SelectNextDigit() {
	s.SelectDigit(s.Digit + 1)
}

// SelectPrevDigit moves the digit cursor to the next larger digit, wrapping around.
func (s *State) SelectPrevDigit() {
	s.SelectDigit(s.Digit - 1)
}

// SelectDigit selects the given digit, modulo the number of digits.
func (s *State) SelectDigit(digit int) {
	n := len(DigitSteps)
	s.Digit = ((digit % n) + n) % n
}

// SetGain sets auto gain or one of the manual GainValues.
func (s *State) SetGain(gain core.Gain) error {
	if !gain.Auto && !validGain(gain.DB) {
		return errors.Errorf("gain %v is not available", gain)
	}
	s.Gain = gain
	return nil
}

func validGain(db int) bool {
	for _, v := range GainValues {
		if v == db {
			return true
		}
	}
	return false
}

// GainPresetIndex returns the index of the current gain in GainPresets. Gains outside the presets count as auto.
func (s State) GainPresetIndex() int {
	for i, preset := range GainPresets {
		if preset.Gain == s.Gain {
			return i
		}
	}
	return 0
}

// CycleGain selects the next gain preset in the given direction, wrapping around.
func (s *State) CycleGain(direction int) {
	n := len(GainPresets)
	i := ((s.GainPresetIndex()+direction)%n + n) % n
	s.Gain = GainPresets[i].Gain
}

// Modes returns the modes of the selected signal type.
func (s State) Modes() []core.DemodMode {
	return core.Modes(s.SignalType)
}

// Mode returns the selected demodulation mode.
func (s State) Mode() core.DemodMode {
	modes := s.Modes()
	if s.ModeIndex < 0 || s.ModeIndex >= len(modes) {
		return core.ModeNone
	}
	return modes[s.ModeIndex]
}

// CycleMode selects the next mode of the current signal type in the given direction, wrapping around.
func (s *State) CycleMode(direction int) {
	n := len(s.Modes())
	s.ModeIndex = ((s.ModeIndex+direction)%n + n) % n
}

// ToggleSignalType switches between analog and digital and resets the mode to none.
func (s *State) ToggleSignalType() {
	if s.SignalType == core.Analog {
		s.SignalType = core.Digital
	} else {
		s.SignalType = core.Analog
	}
	s.ModeIndex = 0
}

// SetMode selects the signal type and mode index of the given mode.
func (s *State) SetMode(mode core.DemodMode) {
	for _, signalType := range []core.SignalType{core.Analog, core.Digital} {
		for i, m := range core.Modes(signalType) {
			if m == mode && (mode != core.ModeNone || signalType == s.SignalType) {
				s.SignalType = signalType
				s.ModeIndex = i
				return
			}
		}
	}
}

// Width returns the selected spectrum width.
func (s State) Width() Width {
	return Widths[s.WidthIndex]
}

// Zoom returns the zoom factor of the frequency axis.
func (s State) Zoom() float64 {
	return s.Width().Zoom
}

// AdjustSpectrumWidth moves the spectrum width by the sign of direction, clamped to the available widths.
func (s *State) AdjustSpectrumWidth(direction int) {
	switch {
	case direction > 0:
		s.SetSpectrumWidth(s.WidthIndex + 1)
	case direction < 0:
		s.SetSpectrumWidth(s.WidthIndex - 1)
	}
}

// SetSpectrumWidth selects the given width index, clamped to the available widths.
func (s *State) SetSpectrumWidth(index int) {
	if index < 0 {
		index = 0
	}
	if index >= len(Widths) {
		index = len(Widths) - 1
	}
	s.WidthIndex = index
}

// CycleSpectrumWidth selects the next width in the given direction, wrapping around.
func (s *State) CycleSpectrumWidth(direction int) {
	n := len(Widths)
	s.WidthIndex = ((s.WidthIndex+direction)%n + n) % n
}

// AdjustPPM changes the frequency correction, clamped to [MinPPM,MaxPPM].
// The correction is not applied to the device.
func (s *State) AdjustPPM(delta int) {
	ppm := s.PPM + delta
	if ppm < MinPPM {
		ppm = MinPPM
	}
	if ppm > MaxPPM {
		ppm = MaxPPM
	}
	s.PPM = ppm
}

// ToggleAudio switches the audio output on or off. Audio is only toggled if a mode is selected.
func (s *State) ToggleAudio() {
	if s.Mode() == core.ModeNone {
		return
	}
	s.Audio = !s.Audio
}

// AudioActive indicates if demodulated audio should be played.
func (s State) AudioActive() bool {
	return s.Audio && s.Mode() != core.ModeNone
}

// DeviceParams returns the parameters of this state that are mirrored onto the device.
func (s State) DeviceParams(sampleRate int) core.DeviceParams {
	return core.DeviceParams{
		SampleRate:      sampleRate,
		CenterFrequency: s.Frequency,
		Gain:            s.Gain,
	}
}

// Valid checks the invariants of the state.
func (s State) Valid() error {
	switch {
	case !core.TunableRange.Contains(s.Frequency):
		return errors.Errorf("frequency %v out of range", s.Frequency)
	case s.Digit < 0 || s.Digit >= len(DigitSteps):
		return errors.Errorf("digit %d out of range", s.Digit)
	case !s.Gain.Auto && !validGain(s.Gain.DB):
		return errors.Errorf("invalid gain %v", s.Gain)
	case s.WidthIndex < 0 || s.WidthIndex >= len(Widths):
		return errors.Errorf("width %d out of range", s.WidthIndex)
	case s.ModeIndex < 0 || s.ModeIndex >= len(s.Modes()):
		return errors.Errorf("mode %d out of range", s.ModeIndex)
	case s.PPM < MinPPM || s.PPM > MaxPPM:
		return errors.Errorf("ppm %d out of range", s.PPM)
	}
	return nil
}

package web

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
	"github.com/ftl/rtlscan/core/app"
	"github.com/ftl/rtlscan/core/demod"
)

// Status is the JSON representation of a frame.
type Status struct {
	Type       string           `json:"type"`
	SessionID  string           `json:"session_id"`
	Frequency  core.Frequency   `json:"frequency"`
	Digit      int              `json:"digit"`
	Step       string           `json:"step"`
	Gain       core.Gain        `json:"gain"`
	Width      string           `json:"width"`
	Zoom       float64          `json:"zoom"`
	SignalType string           `json:"signal_type"`
	Mode       core.DemodMode   `json:"mode"`
	Audio      bool             `json:"audio"`
	PPM        int              `json:"ppm"`
	Band       string           `json:"band"`
	BandMode   *core.DemodMode  `json:"band_mode,omitempty"`
	SampleRate int              `json:"sample_rate"`
	Level      float64          `json:"level"`
	Tone       *float64         `json:"ctcss,omitempty"`
	Digital    *demod.FrameInfo `json:"dmr,omitempty"`
	Menu       *MenuStatus      `json:"menu,omitempty"`
	DeviceLost bool             `json:"device_lost"`
	PowerDB    []float64        `json:"power_db,omitempty"`
	Axis       []float64        `json:"frequency_axis,omitempty"`
}

// MenuStatus is the JSON representation of the open menu.
type MenuStatus struct {
	Selection int      `json:"selection"`
	Items     []string `json:"items"`
}

// NewStatus converts the frame. The spectrum is only included if withSpectrum is set.
func NewStatus(frame app.Frame, withSpectrum bool) Status {
	state := frame.Tuning
	result := Status{
		Type:       "frame",
		SessionID:  frame.SessionID,
		Frequency:  state.Frequency,
		Digit:      state.Digit,
		Step:       state.DigitLabel(),
		Gain:       state.Gain,
		Width:      state.Width().Name,
		Zoom:       state.Zoom(),
		SignalType: strings.ToLower(state.SignalType.String()),
		Mode:       state.Mode(),
		Audio:      state.AudioActive(),
		PPM:        state.PPM,
		Band:       string(frame.Band.Name),
		SampleRate: frame.SampleRate,
		Level:      frame.Demod.Level,
		DeviceLost: frame.DeviceLost,
	}
	if frame.Band.Name != "" && frame.Band.Mode != core.ModeNone {
		mode := frame.Band.Mode
		result.BandMode = &mode
	}
	if state.Mode() == core.ModeFM {
		result.Tone = frame.Demod.Tone
	}
	if frame.Demod.Digital.Active {
		digital := frame.Demod.Digital
		result.Digital = &digital
	}
	if frame.Menu.Open {
		result.Menu = &MenuStatus{
			Selection: int(frame.Menu.Selection),
			Items:     frame.Menu.Items(state),
		}
	}
	if withSpectrum {
		result.PowerDB = frame.Spectrum.PowerDB
		result.Axis = frame.Spectrum.FrequencyAxis
	}
	return result
}

// Controller is the part of the session that can be controlled through the web relay.
type Controller interface {
	ID() string
	Frame() app.Frame
	HandleKey(core.Key) error
	AdjustFrequency(direction int) error
	SetFrequency(core.Frequency) error
	SelectDigit(digit int) error
	SetGain(core.Gain) error
	SetMode(core.DemodMode) error
	SetSpectrumWidth(index int) error
}

// Command is sent by the web clients.
type Command struct {
	Type      string         `json:"type"`
	Key       string         `json:"key,omitempty"`
	Direction int            `json:"direction,omitempty"`
	Frequency core.Frequency `json:"frequency,omitempty"`
	Digit     int            `json:"digit,omitempty"`
	Gain      string         `json:"gain,omitempty"`
	Mode      string         `json:"mode,omitempty"`
	Index     int            `json:"index,omitempty"`
}

// ParseCommand parses a JSON command.
func ParseCommand(data []byte) (Command, error) {
	var result Command
	if err := json.Unmarshal(data, &result); err != nil {
		return Command{}, errors.Wrap(err, "invalid command")
	}
	return result, nil
}

// Apply the command to the controller.
func (c Command) Apply(controller Controller) error {
	switch c.Type {
	case "key":
		key, err := core.ParseKey(c.Key)
		if err != nil {
			return err
		}
		return controller.HandleKey(key)
	case "adjust_frequency":
		return controller.AdjustFrequency(sign(c.Direction))
	case "set_frequency":
		return controller.SetFrequency(c.Frequency)
	case "select_digit":
		return controller.SelectDigit(c.Digit)
	case "set_gain":
		gain, err := core.ParseGain(c.Gain)
		if err != nil {
			return err
		}
		return controller.SetGain(gain)
	case "set_mode":
		mode, err := core.ParseDemodMode(c.Mode)
		if err != nil {
			return err
		}
		return controller.SetMode(mode)
	case "set_spectrum_width":
		return controller.SetSpectrumWidth(c.Index)
	default:
		return errors.Errorf("unknown command %q", c.Type)
	}
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func newErrorMessage(err error) errorMessage {
	return errorMessage{Type: "error", Error: err.Error()}
}

// sign reduces the direction to a single step.
func sign(direction int) int {
	switch {
	case direction > 0:
		return 1
	case direction < 0:
		return -1
	default:
		return 0
	}
}

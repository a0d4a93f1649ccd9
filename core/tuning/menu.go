package tuning

import (
	"fmt"
	"strings"
)

// MenuItem of the settings menu.
type MenuItem int

// All menu items, in display order.
const (
	ItemGain MenuItem = iota
	ItemWidth
	ItemType
	ItemMode
	ItemAudio
	ItemPPM
	ItemExit
	itemCount
)

// Menu is the modal settings overlay.
type Menu struct {
	Open      bool
	Selection MenuItem
}

// Toggle opens or closes the menu. Opening resets the selection to the first item.
func (m *Menu) Toggle() {
	m.Open = !m.Open
	if m.Open {
		m.Selection = ItemGain
	}
}

// Close the menu.
func (m *Menu) Close() {
	m.Open = false
}

// Up moves the selection up, stopping at the first item.
func (m *Menu) Up() {
	if m.Selection > ItemGain {
		m.Selection--
	}
}

// Down moves the selection down, stopping at the last item.
func (m *Menu) Down() {
	if m.Selection < itemCount-1 {
		m.Selection++
	}
}

// Select executes the selected item. Values are changed with Change, so selecting always closes the menu.
func (m *Menu) Select() {
	m.Close()
}

// Change the value of the selected item in the given direction.
func (m *Menu) Change(s *State, direction int) {
	switch m.Selection {
	case ItemGain:
		s.CycleGain(direction)
	case ItemWidth:
		s.CycleSpectrumWidth(direction)
	case ItemType:
		s.ToggleSignalType()
	case ItemMode:
		s.CycleMode(direction)
	case ItemAudio:
		s.ToggleAudio()
	case ItemPPM:
		s.AdjustPPM(direction)
	case ItemExit:
	}
}

// Items returns the labels of all menu items for the given state.
func (m Menu) Items(s State) []string {
	audio := "OFF"
	if s.AudioActive() {
		audio = "ON"
	}
	return []string{
		fmt.Sprintf("Gain: %s", GainPresets[s.GainPresetIndex()].Label),
		fmt.Sprintf("Width: %s", strings.ToUpper(s.Width().Name)),
		fmt.Sprintf("Type: %s", s.SignalType),
		fmt.Sprintf("Mode: %s", strings.ToUpper(s.Mode().String())),
		fmt.Sprintf("Audio: %s", audio),
		fmt.Sprintf("PPM: %+d", s.PPM),
		"Exit",
	}
}

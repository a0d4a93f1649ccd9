package input

import (
	"github.com/ftl/rtlscan/core"
	"github.com/ftl/rtlscan/core/tuning"
)

// Dispatch applies the key to the tuning state or the menu, depending on whether the menu is open.
// It returns true if the key requests to quit.
func Dispatch(key core.Key, s *tuning.State, m *tuning.Menu) (quit bool) {
	switch key {
	case core.KeyQuit:
		return true
	case core.KeyToggleMenu:
		m.Toggle()
		return false
	}

	if m.Open {
		dispatchMenu(key, s, m)
	} else {
		dispatchTuning(key, s)
	}
	return false
}

func dispatchMenu(key core.Key, s *tuning.State, m *tuning.Menu) {
	switch key {
	case core.KeyUp:
		m.Up()
	case core.KeyDown:
		m.Down()
	case core.KeyLeft:
		m.Change(s, -1)
	case core.KeyRight:
		m.Change(s, 1)
	case core.KeySelect:
		m.Select()
	case core.KeyCancel:
		m.Close()
	}
}

func dispatchTuning(key core.Key, s *tuning.State) {
	switch key {
	case core.KeyUp:
		s.AdjustFrequency(1)
	case core.KeyDown:
		s.AdjustFrequency(-1)
	case core.KeyLeft:
		s.SelectPrevDigit()
	case core.KeyRight:
		s.SelectNextDigit()
	}
}

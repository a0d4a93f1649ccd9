package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/ftl/rtlscan/core"
	"github.com/ftl/rtlscan/core/app"
	"github.com/ftl/rtlscan/core/spectrum"
	"github.com/ftl/rtlscan/core/tuning"
)

// frequencyText formats the frequency as MHz with all digits down to 1Hz.
func frequencyText(f core.Frequency) string {
	return fmt.Sprintf("%04d.%06d MHz", int64(f)/1000000, int64(f)%1000000)
}

// digitCursor returns a line with a caret below the selected digit of frequencyText.
func digitCursor(digit int) string {
	position := digit + 1
	if digit >= 3 {
		position++
	}
	return strings.Repeat(" ", position) + "^"
}

func statusText(frame app.Frame) string {
	state := frame.Tuning
	parts := []string{
		fmt.Sprintf("Band: %s", bandName(frame)),
		fmt.Sprintf("Step: %s", state.DigitLabel()),
		fmt.Sprintf("Gain: %s", state.Gain),
		fmt.Sprintf("Width: %s", strings.ToUpper(state.Width().Name)),
		fmt.Sprintf("Mode: %s", strings.ToUpper(state.Mode().String())),
	}
	if state.AudioActive() {
		parts = append(parts, fmt.Sprintf("Audio: %.3f", frame.Demod.Level))
	}
	if frame.Demod.Tone != nil && state.Mode() == core.ModeFM {
		parts = append(parts, fmt.Sprintf("CTCSS: %.1fHz", *frame.Demod.Tone))
	}
	if digital := frame.Demod.Digital; digital.Active {
		parts = append(parts, fmt.Sprintf("DMR TG %d TS %d CC %d", digital.Talkgroup, digital.Timeslot, digital.ColorCode))
	}
	if state.PPM != 0 {
		parts = append(parts, fmt.Sprintf("PPM: %+d", state.PPM))
	}
	if frame.DeviceLost {
		parts = append(parts, "DEVICE LOST")
	}
	return strings.Join(parts, "  ")
}

// bandName includes the mode that is usually found in the band.
func bandName(frame app.Frame) string {
	if frame.Band.Name == "" {
		return "-"
	}
	if frame.Band.Mode == core.ModeNone {
		return string(frame.Band.Name)
	}
	return fmt.Sprintf("%s (%s)", frame.Band.Name, strings.ToUpper(frame.Band.Mode.String()))
}

// spectrumLines draws the spectrum as bars of the given size, scaled between the minimum and maximum power.
func spectrumLines(snapshot spectrum.Snapshot, width, height int) []string {
	if width <= 0 || height <= 0 {
		return []string{}
	}
	lines := make([][]rune, height)
	for i := range lines {
		lines[i] = []rune(strings.Repeat(" ", width))
	}
	result := func() []string {
		out := make([]string, height)
		for i, line := range lines {
			out[i] = string(line)
		}
		return out
	}
	if snapshot.Empty() {
		return result()
	}

	power := spectrum.Reduce(snapshot.PowerDB, width)
	minDB, maxDB := math.Inf(1), math.Inf(-1)
	for _, v := range power {
		minDB = math.Min(minDB, v)
		maxDB = math.Max(maxDB, v)
	}
	dynamicRange := maxDB - minDB
	for x, v := range power {
		level := height
		if dynamicRange > 0 {
			level = int(math.Round((v - minDB) / dynamicRange * float64(height)))
		}
		for y := 0; y < level && y < height; y++ {
			lines[height-1-y][x] = '█'
		}
	}
	return result()
}

// scaleLine places the frequency marks of the snapshot range on a line of the given width.
func scaleLine(snapshot spectrum.Snapshot, width int) string {
	if width <= 0 {
		return ""
	}
	line := []rune(strings.Repeat(" ", width))
	lastEnd := -1
	for _, mark := range spectrum.Scale(snapshot.Range()) {
		label := fmt.Sprintf("|%.3f", mark.Frequency.MHz())
		x := int(mark.X * float64(width-1))
		if x <= lastEnd || x+len(label) > width {
			continue
		}
		copy(line[x:], []rune(label))
		lastEnd = x + len(label)
	}
	return string(line)
}

func menuLines(menu tuning.Menu, state tuning.State) []string {
	items := menu.Items(state)
	result := make([]string, len(items))
	for i, item := range items {
		marker := "  "
		if tuning.MenuItem(i) == menu.Selection {
			marker = "> "
		}
		result[i] = marker + item
	}
	return result
}

// StatusLine is a single line summary of the frame.
func StatusLine(frame app.Frame) string {
	return frequencyText(frame.Tuning.Frequency) + "  " + statusText(frame)
}

const helpText = "↑/↓: tune  ←/→: digit  m: menu  q: quit"

const menuHelpText = "↑/↓: select  ←/→: change  enter: close  esc: cancel"

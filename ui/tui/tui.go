// Package tui is the terminal user interface of the scanner.
package tui

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jroimartin/gocui"
	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
	"github.com/ftl/rtlscan/core/app"
)

// Controller of the terminal UI.
type Controller interface {
	HandleKey(core.Key) error
	Frame() app.Frame
}

// keyboard maps gocui keys and runes to the keys of the scanner.
type keyboard map[interface{}]core.Key

// TUI renders the frames of the session and forwards the keys.
type TUI struct {
	gui        *gocui.Gui
	controller Controller
	keyboard   keyboard

	frameLock sync.RWMutex
	frame     app.Frame
}

// New creates the terminal UI. The caller must call Close.
func New(controller Controller) (*TUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open terminal")
	}
	g.InputEsc = true

	result := &TUI{
		gui:        g,
		controller: controller,
		frame:      controller.Frame(),
		keyboard: keyboard{
			gocui.KeyArrowUp:    core.KeyUp,
			gocui.KeyArrowDown:  core.KeyDown,
			gocui.KeyArrowLeft:  core.KeyLeft,
			gocui.KeyArrowRight: core.KeyRight,
			gocui.KeyEnter:      core.KeySelect,
			gocui.KeySpace:      core.KeySelect,
			gocui.KeyEsc:        core.KeyCancel,
			gocui.KeyCtrlC:      core.KeyQuit,
			'm':                 core.KeyToggleMenu,
			'M':                 core.KeyToggleMenu,
			'q':                 core.KeyQuit,
			'Q':                 core.KeyQuit,
		},
	}
	g.SetManagerFunc(result.layout)
	if err := result.bindKeys(); err != nil {
		g.Close()
		return nil, err
	}
	return result, nil
}

func (t *TUI) bindKeys() error {
	for binding, key := range t.keyboard {
		if err := t.gui.SetKeybinding("", binding, gocui.ModNone, t.onKey(key)); err != nil {
			return errors.Wrapf(err, "cannot bind %v", key)
		}
	}
	return nil
}

func (t *TUI) onKey(key core.Key) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		if err := t.controller.HandleKey(key); err != nil {
			log.Print(err)
		}
		if key == core.KeyQuit {
			return gocui.ErrQuit
		}
		return nil
	}
}

// Run the main loop until the user quits.
func (t *TUI) Run() error {
	if err := t.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

// Close the terminal UI and restore the terminal.
func (t *TUI) Close() {
	t.gui.Close()
}

// Quit the main loop.
func (t *TUI) Quit() {
	t.gui.Update(func(*gocui.Gui) error {
		return gocui.ErrQuit
	})
}

// ShowFrame schedules a redraw with the given frame. It is safe to call from any goroutine.
func (t *TUI) ShowFrame(frame app.Frame) {
	t.setFrame(frame)
	t.gui.Update(func(*gocui.Gui) error {
		return nil
	})
}

func (t *TUI) setFrame(frame app.Frame) {
	t.frameLock.Lock()
	defer t.frameLock.Unlock()
	t.frame = frame
}

func (t *TUI) currentFrame() app.Frame {
	t.frameLock.RLock()
	defer t.frameLock.RUnlock()
	return t.frame
}

func (t *TUI) layout(g *gocui.Gui) error {
	frame := t.currentFrame()
	maxX, maxY := g.Size()

	header, err := g.SetView("frequency", 0, 0, maxX-1, 4)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		header.Title = "rtlscan"
	}
	header.Clear()
	fmt.Fprintln(header, " "+frequencyText(frame.Tuning.Frequency))
	fmt.Fprintln(header, " "+digitCursor(frame.Tuning.Digit))
	fmt.Fprint(header, " "+statusText(frame))

	spectrumView, err := g.SetView("spectrum", 0, 5, maxX-1, maxY-4)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		spectrumView.Title = "Spectrum"
	}
	spectrumView.Clear()
	width, height := spectrumView.Size()
	lines := spectrumLines(frame.Spectrum, width, height-1)
	lines = append(lines, scaleLine(frame.Spectrum, width))
	fmt.Fprint(spectrumView, strings.Join(lines, "\n"))

	help, err := g.SetView("help", 0, maxY-3, maxX-1, maxY-1)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
	}
	help.Clear()
	if frame.Menu.Open {
		fmt.Fprint(help, menuHelpText)
	} else {
		fmt.Fprint(help, helpText)
	}

	return t.layoutMenu(g, frame, maxX, maxY)
}

func (t *TUI) layoutMenu(g *gocui.Gui, frame app.Frame, maxX, maxY int) error {
	if !frame.Menu.Open {
		if err := g.DeleteView("menu"); err != nil && err != gocui.ErrUnknownView {
			return err
		}
		return nil
	}

	lines := menuLines(frame.Menu, frame.Tuning)
	width := 24
	x0 := maxX/2 - width/2
	y0 := maxY/2 - len(lines)/2 - 1
	menu, err := g.SetView("menu", x0, y0, x0+width, y0+len(lines)+1)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		menu.Title = "Menu"
	}
	if _, err := g.SetViewOnTop("menu"); err != nil {
		return err
	}
	menu.Clear()
	fmt.Fprint(menu, strings.Join(lines, "\n"))
	return nil
}

package app

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
	"github.com/ftl/rtlscan/core/bandplan"
	"github.com/ftl/rtlscan/core/demod"
	"github.com/ftl/rtlscan/core/input"
	"github.com/ftl/rtlscan/core/source"
	"github.com/ftl/rtlscan/core/spectrum"
	"github.com/ftl/rtlscan/core/tuning"
)

// Session owns the device source and the tuning state and runs the capture and display loops.
// The tuning state is guarded by the device lock of the source.
type Session struct {
	id            string
	configuration core.Configuration
	source        *source.Source

	// guarded by the device lock
	tuning tuning.State
	menu   tuning.Menu
	axis   []float64

	engine      *spectrum.Engine
	demodulator *demod.Demodulator
	backoff     *backoff.ExponentialBackOff

	capture    atomic.Value
	deviceLost int32

	errLock sync.Mutex
	err     error

	frameListeners []FrameListener
	tuneListeners  []TuneListener
	audioListeners []AudioListener
	subscribers    []chan Frame

	cancel          context.CancelFunc
	loops           sync.WaitGroup
	started         bool
	done            chan struct{}
	quit            chan struct{}
	quitOnce        sync.Once
	stopOnce        sync.Once
	stopErr         error
	shutdownTimeout time.Duration
}

type captureResult struct {
	snapshot spectrum.Snapshot
	demod    DemodSummary
}

// NewSession takes ownership of the device and applies the configured parameters to it.
func NewSession(configuration core.Configuration, device source.Device) (*Session, error) {
	configuration = withDefaults(configuration)

	state := tuning.New(configuration.CenterFrequency)
	if err := state.SetGain(configuration.Gain); err != nil {
		log.Printf("%v, using auto gain", err)
	}
	state.Audio = configuration.AudioEnabled

	src, err := source.New(device, state.DeviceParams(configuration.SampleRate), configuration.ReadTimeout)
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 1 * time.Second
	b.MaxElapsedTime = 0

	result := &Session{
		id:              uuid.New().String(),
		configuration:   configuration,
		source:          src,
		tuning:          state,
		engine:          spectrum.NewEngine(configuration.FFTSize, spectrum.Hann),
		demodulator:     demod.New(configuration.SampleRate, nil),
		backoff:         b,
		done:            make(chan struct{}),
		quit:            make(chan struct{}),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	result.updateAxis()
	result.capture.Store(captureResult{})
	return result, nil
}

// ID of this session.
func (s *Session) ID() string {
	return s.id
}

// SampleRate of the device.
func (s *Session) SampleRate() int {
	return s.configuration.SampleRate
}

// OnFrame registers a listener that is called by the display loop with every new frame.
// Listeners must be registered before Start.
func (s *Session) OnFrame(listener FrameListener) {
	s.frameListeners = append(s.frameListeners, listener)
}

// OnTune registers a listener that is called when the center frequency changed.
// Listeners must be registered before Start.
func (s *Session) OnTune(listener TuneListener) {
	s.tuneListeners = append(s.tuneListeners, listener)
}

// OnAudio registers a listener for the demodulated audio. Listeners must be registered before Start.
func (s *Session) OnAudio(listener AudioListener) {
	s.audioListeners = append(s.audioListeners, listener)
}

// Subscribe returns a channel that receives the frames of the display loop. Frames are dropped
// if the subscriber does not keep up. Subscribe must be called before Start.
func (s *Session) Subscribe() <-chan Frame {
	result := make(chan Frame, 1)
	s.subscribers = append(s.subscribers, result)
	return result
}

// Start the capture and display loops.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.loops.Add(2)
	go func() {
		defer s.loops.Done()
		s.runCapture(ctx)
	}()
	go func() {
		defer s.loops.Done()
		s.runDisplay(ctx)
	}()
	go func() {
		s.loops.Wait()
		for _, subscriber := range s.subscribers {
			close(subscriber)
		}
		close(s.done)
	}()
}

// Stop the loops, then close the device. Stop returns ErrShutdownTimeout if the loops
// do not exit within the shutdown timeout, the device is closed anyway.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if !s.started {
			close(s.done)
		}
		select {
		case <-s.done:
		case <-time.After(s.shutdownTimeout):
			log.Print("session loops hang")
			s.stopErr = errors.WithStack(ErrShutdownTimeout)
		}
		if err := s.source.Close(); err != nil {
			log.Print(err)
		}
	})
	return s.stopErr
}

// Done is closed when both loops have exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Quit is closed when the user requested to quit.
func (s *Session) Quit() <-chan struct{} {
	return s.quit
}

// Err returns the fatal device error that stopped the capture loop.
func (s *Session) Err() error {
	s.errLock.Lock()
	defer s.errLock.Unlock()
	return s.err
}

// DeviceLost indicates that the device is gone and the capture loop has stopped.
func (s *Session) DeviceLost() bool {
	return atomic.LoadInt32(&s.deviceLost) != 0
}

func (s *Session) fail(err error) {
	s.errLock.Lock()
	s.err = err
	s.errLock.Unlock()
	atomic.StoreInt32(&s.deviceLost, 1)
	log.Print("device lost: ", err)
}

func (s *Session) requestQuit() {
	s.quitOnce.Do(func() {
		close(s.quit)
	})
}

// HandleKey applies the key modally to the menu or the tuning controls.
func (s *Session) HandleKey(key core.Key) error {
	quit := false
	err := s.update(func(t *tuning.State, m *tuning.Menu) error {
		quit = input.Dispatch(key, t, m)
		return nil
	})
	if quit {
		s.requestQuit()
	}
	return err
}

// AdjustFrequency by one step of the selected digit in the given direction.
func (s *Session) AdjustFrequency(direction int) error {
	return s.update(func(t *tuning.State, _ *tuning.Menu) error {
		t.AdjustFrequency(direction)
		return nil
	})
}

// SetFrequency tunes to the given frequency, clamped to the tunable range.
func (s *Session) SetFrequency(f core.Frequency) error {
	return s.update(func(t *tuning.State, _ *tuning.Menu) error {
		t.SetFrequency(f)
		return nil
	})
}

// SelectDigit selects the frequency digit with the given index.
func (s *Session) SelectDigit(digit int) error {
	return s.update(func(t *tuning.State, _ *tuning.Menu) error {
		t.SelectDigit(digit)
		return nil
	})
}

// SetGain sets auto gain or one of the available manual gain values.
func (s *Session) SetGain(gain core.Gain) error {
	return s.update(func(t *tuning.State, _ *tuning.Menu) error {
		return t.SetGain(gain)
	})
}

// SetMode selects the given demodulation mode.
func (s *Session) SetMode(mode core.DemodMode) error {
	return s.update(func(t *tuning.State, _ *tuning.Menu) error {
		t.SetMode(mode)
		return nil
	})
}

// SetSpectrumWidth selects the spectrum width with the given index.
func (s *Session) SetSpectrumWidth(index int) error {
	return s.update(func(t *tuning.State, _ *tuning.Menu) error {
		if index < 0 || index >= len(tuning.Widths) {
			return errors.Errorf("invalid spectrum width %d", index)
		}
		t.SetSpectrumWidth(index)
		return nil
	})
}

// ToggleAudio switches the audio output on or off.
func (s *Session) ToggleAudio() error {
	return s.update(func(t *tuning.State, _ *tuning.Menu) error {
		t.ToggleAudio()
		return nil
	})
}

// Tuning returns a copy of the current tuning state.
func (s *Session) Tuning() (result tuning.State) {
	s.source.Locked(func(source.Handle) {
		result = s.tuning
	})
	return result
}

// update applies the transition to the tuning state under the device lock and mirrors the
// device parameters. Parameters the device rejects are restored to their previous values.
func (s *Session) update(transition func(*tuning.State, *tuning.Menu) error) error {
	var err error
	var before, after core.Frequency
	s.source.Locked(func(h source.Handle) {
		before = s.tuning.Frequency
		err = transition(&s.tuning, &s.menu)
		if err != nil {
			return
		}
		if h.Usable() {
			err = h.Configure(s.tuning.DeviceParams(s.configuration.SampleRate))
			if err != nil {
				log.Print("cannot apply tuning: ", err)
				applied := h.Params()
				s.tuning.Frequency = applied.CenterFrequency
				s.tuning.Gain = applied.Gain
			}
		}
		s.updateAxis()
		after = s.tuning.Frequency
	})
	if after != before {
		for _, listener := range s.tuneListeners {
			listener(after)
		}
	}
	return err
}

// updateAxis replaces the frequency axis, must be called under the device lock.
func (s *Session) updateAxis() {
	s.axis = spectrum.Axis{
		FFTSize:    s.engine.FFTSize(),
		SampleRate: s.configuration.SampleRate,
		Center:     s.tuning.Frequency,
		Zoom:       s.tuning.Zoom(),
	}.Frequencies()
}

// Frame returns a frame of the current tuning state and the most recent capture.
func (s *Session) Frame() Frame {
	return s.buildFrame()
}

func (s *Session) buildFrame() Frame {
	result := Frame{
		SessionID:  s.id,
		Time:       time.Now(),
		SampleRate: s.configuration.SampleRate,
		DeviceLost: s.DeviceLost(),
	}
	s.source.Locked(func(source.Handle) {
		result.Tuning = s.tuning
		result.Menu = s.menu
	})
	result.Band = bandplan.Default.ByFrequency(result.Tuning.Frequency)

	capture := s.capture.Load().(captureResult)
	result.Spectrum = capture.snapshot
	result.Demod = capture.demod
	result.Demod.Mode = result.Tuning.Mode()
	result.Demod.AudioActive = result.Tuning.AudioActive()
	return result
}

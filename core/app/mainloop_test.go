package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/rtlscan/core"
	"github.com/ftl/rtlscan/core/source"
)

var testConfiguration = core.Configuration{
	SampleRate:      48000,
	CenterFrequency: 100000000,
	Gain:            core.AutoGain,
	FFTSize:         64,
	CaptureRate:     100,
	DisplayRate:     100,
	ReadTimeout:     500 * time.Millisecond,
}

func newTestSession(t *testing.T) (*Session, *source.Synthetic) {
	device := source.NewSynthetic(source.DefaultStations, 1, false)
	session, err := NewSession(testConfiguration, device)
	require.NoError(t, err)
	return session, device
}

func waitFor(t *testing.T, condition func() bool, msg string) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "timeout waiting for "+msg)
}

func TestStopAndDone(t *testing.T) {
	session, device := newTestSession(t)
	session.Start(context.Background())

	start := time.Now()
	stopped := make(chan error, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		stopped <- session.Stop()
	}()
	<-session.Done()
	duration := time.Since(start)

	assert.True(t, duration > 100*time.Millisecond)
	assert.NoError(t, <-stopped)
	assert.True(t, device.Closed())
	assert.NoError(t, session.Err())
	assert.False(t, session.DeviceLost())
	assert.NoError(t, session.Stop())
}

func TestQuickStopIsClean(t *testing.T) {
	configuration := testConfiguration
	configuration.CaptureRate = 1000
	for i := 0; i < 50; i++ {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			device := source.NewSynthetic(source.DefaultStations, int64(i), false)
			device.Delay(2 * time.Millisecond)
			session, err := NewSession(configuration, device)
			require.NoError(t, err)
			session.Start(context.Background())
			time.Sleep(5 * time.Millisecond)

			assert.NoError(t, session.Stop())
			assert.NoError(t, session.Err())
			assert.False(t, session.DeviceLost())
			assert.True(t, device.Closed())
		})
	}
}

func TestStopWithoutStart(t *testing.T) {
	session, device := newTestSession(t)

	assert.NoError(t, session.Stop())
	assert.True(t, device.Closed())
	<-session.Done()
}

func TestFramesContainSpectrum(t *testing.T) {
	session, _ := newTestSession(t)
	frames := session.Subscribe()
	var listened int32
	session.OnFrame(func(Frame) {
		atomic.AddInt32(&listened, 1)
	})
	session.Start(context.Background())
	defer session.Stop()

	waitFor(t, func() bool { return !session.Frame().Spectrum.Empty() }, "spectrum")

	frame := session.Frame()
	assert.Equal(t, session.ID(), frame.SessionID)
	assert.Len(t, frame.Spectrum.PowerDB, 64)
	assert.Len(t, frame.Spectrum.FrequencyAxis, 64)
	assert.Equal(t, 100000000.0, frame.Spectrum.FrequencyAxis[32])
	assert.Equal(t, "FM Broadcast", string(frame.Band.Name))
	assert.False(t, frame.DeviceLost)

	select {
	case <-frames:
	case <-time.After(time.Second):
		assert.Fail(t, "no frame delivered to the subscriber")
	}
	assert.True(t, atomic.LoadInt32(&listened) > 0)
}

func TestSubscribersAreClosedWhenDone(t *testing.T) {
	session, _ := newTestSession(t)
	frames := session.Subscribe()
	session.Start(context.Background())

	require.NoError(t, session.Stop())

	for range frames {
	}
}

func TestAdjustFrequencyTunesDevice(t *testing.T) {
	session, device := newTestSession(t)
	tuned := []core.Frequency{}
	session.OnTune(func(f core.Frequency) {
		tuned = append(tuned, f)
	})

	require.NoError(t, session.SelectDigit(2))
	require.NoError(t, session.AdjustFrequency(1))
	require.NoError(t, session.AdjustFrequency(1))
	require.NoError(t, session.SetFrequency(103000000))
	require.NoError(t, session.SetFrequency(103000000))

	frame := session.Frame()
	assert.Equal(t, core.Frequency(103000000), frame.Tuning.Frequency)
	assert.Equal(t, core.Frequency(103000000), device.Params().CenterFrequency)
	assert.Equal(t, []core.Frequency{101000000, 102000000, 103000000}, tuned, "only changes are reported")
}

func TestRejectedFrequencyIsRestored(t *testing.T) {
	session, device := newTestSession(t)
	device.Reject(source.CenterFrequency, true)

	err := session.SetFrequency(145500000)

	require.Error(t, err)
	assert.True(t, source.IsKind(err, source.ParameterRejected))
	assert.Equal(t, core.Frequency(100000000), session.Tuning().Frequency)
	assert.Equal(t, core.Frequency(100000000), device.Params().CenterFrequency)
}

func TestRejectedGainIsRestored(t *testing.T) {
	session, device := newTestSession(t)
	device.Reject(source.Gain, true)

	err := session.HandleKey(core.KeyToggleMenu)
	require.NoError(t, err)
	err = session.HandleKey(core.KeyRight)

	assert.True(t, source.IsKind(err, source.ParameterRejected))
	assert.Equal(t, core.AutoGain, session.Tuning().Gain)
}

func TestInvalidSettings(t *testing.T) {
	session, _ := newTestSession(t)

	assert.Error(t, session.SetGain(core.ManualGain(17)))
	assert.Error(t, session.SetSpectrumWidth(4))
	assert.Error(t, session.SetSpectrumWidth(-1))

	require.NoError(t, session.SetGain(core.ManualGain(25)))
	require.NoError(t, session.SetSpectrumWidth(3))
	state := session.Tuning()
	assert.Equal(t, core.ManualGain(25), state.Gain)
	assert.Equal(t, 4.0, state.Zoom())
}

func TestNewSessionWithRejectedParameters(t *testing.T) {
	device := source.NewSynthetic(nil, 1, false)
	device.Reject(source.SampleRate, true)

	_, err := NewSession(testConfiguration, device)

	assert.True(t, source.IsKind(err, source.ParameterRejected))
	assert.True(t, device.Closed())
}

func TestQuitKey(t *testing.T) {
	session, _ := newTestSession(t)

	require.NoError(t, session.HandleKey(core.KeyToggleMenu))
	require.NoError(t, session.HandleKey(core.KeyQuit))

	select {
	case <-session.Quit():
	default:
		assert.Fail(t, "quit was not requested")
	}
	require.NoError(t, session.HandleKey(core.KeyQuit))
}

func TestDeviceLost(t *testing.T) {
	session, device := newTestSession(t)
	session.Start(context.Background())
	defer session.Stop()
	waitFor(t, func() bool { return !session.Frame().Spectrum.Empty() }, "spectrum")

	device.Unplug()

	waitFor(t, session.DeviceLost, "device lost")
	assert.True(t, source.IsGone(session.Err()))
	waitFor(t, func() bool { return session.Frame().DeviceLost }, "device lost frame")
	assert.False(t, session.Frame().Spectrum.Empty(), "the last snapshot is kept")

	assert.NoError(t, session.AdjustFrequency(1), "tuning continues without a device")
}

func TestTransientReadErrorsAreRetried(t *testing.T) {
	session, device := newTestSession(t)
	device.FailReads(3)
	session.Start(context.Background())
	defer session.Stop()

	waitFor(t, func() bool { return !session.Frame().Spectrum.Empty() }, "spectrum")
	assert.False(t, session.DeviceLost())
	assert.NoError(t, session.Err())
}

func TestAudioIsDeliveredWhileActive(t *testing.T) {
	session, _ := newTestSession(t)
	var lock sync.Mutex
	var blocks [][]float64
	session.OnAudio(func(audio []float64, sampleRate int) {
		lock.Lock()
		defer lock.Unlock()
		assert.Equal(t, 48000, sampleRate)
		blocks = append(blocks, audio)
	})
	require.NoError(t, session.SetMode(core.ModeFM))
	require.NoError(t, session.ToggleAudio())
	session.Start(context.Background())
	defer session.Stop()

	waitFor(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(blocks) > 0
	}, "audio")

	lock.Lock()
	assert.Len(t, blocks[0], 480)
	lock.Unlock()
	assert.Equal(t, core.ModeFM, session.Frame().Demod.Mode)
	assert.True(t, session.Frame().Demod.AudioActive)
}

func TestShutdownTimeout(t *testing.T) {
	session, _ := newTestSession(t)
	session.shutdownTimeout = 20 * time.Millisecond
	release := make(chan struct{})
	defer close(release)
	blocked := make(chan struct{}, 1)
	session.OnFrame(func(Frame) {
		select {
		case blocked <- struct{}{}:
		default:
		}
		<-release
	})
	session.Start(context.Background())
	<-blocked

	err := session.Stop()

	assert.Equal(t, ErrShutdownTimeout, errors.Cause(err))
}

func TestTuningDuringCaptureNeverOverlapsDeviceAccess(t *testing.T) {
	device := &overlapDevice{}
	session, err := NewSession(testConfiguration, device)
	require.NoError(t, err)
	session.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(direction int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				session.AdjustFrequency(direction)
				session.HandleKey(core.KeyRight)
			}
		}(1 - 2*(i%2))
	}
	wg.Wait()
	require.NoError(t, session.Stop())

	assert.Equal(t, int32(0), atomic.LoadInt32(&device.overlaps))
	assert.True(t, atomic.LoadInt32(&device.reads) > 0)
}

type overlapDevice struct {
	active   int32
	overlaps int32
	reads    int32
}

func (d *overlapDevice) enter() func() {
	if atomic.AddInt32(&d.active, 1) > 1 {
		atomic.AddInt32(&d.overlaps, 1)
	}
	time.Sleep(100 * time.Microsecond)
	return func() { atomic.AddInt32(&d.active, -1) }
}

func (d *overlapDevice) SetSampleRate(int) error                 { defer d.enter()(); return nil }
func (d *overlapDevice) SetCenterFrequency(core.Frequency) error { defer d.enter()(); return nil }
func (d *overlapDevice) SetGain(core.Gain) error                 { defer d.enter()(); return nil }
func (d *overlapDevice) Close() error                            { defer d.enter()(); return nil }

func (d *overlapDevice) Read(samples []complex128) error {
	defer d.enter()()
	atomic.AddInt32(&d.reads, 1)
	for i := range samples {
		samples[i] = complex(float64(i%7)/7, 0)
	}
	return nil
}

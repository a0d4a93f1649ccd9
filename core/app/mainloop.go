package app

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/ftl/rtlscan/core"
	"github.com/ftl/rtlscan/core/source"
)

func (s *Session) runCapture(ctx context.Context) {
	defer log.Print("capture loop shutdown")
	tick := time.NewTicker(core.Interval(s.configuration.CaptureRate))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		if ctx.Err() != nil {
			return
		}

		retry, fatal := s.captureOnce(ctx)
		if fatal {
			return
		}
		if retry > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retry):
			}
		}
	}
}

// captureOnce reads one block of samples and computes the derived buffers outside the device lock.
// It returns the time to wait before the next attempt after a transient error, and if the capture loop
// has to stop. Read errors after the context is done do not count as a lost device.
func (s *Session) captureOnce(ctx context.Context) (time.Duration, bool) {
	var samples []complex128
	var axis []float64
	var mode core.DemodMode
	var audioActive bool
	var err error
	s.source.Locked(func(h source.Handle) {
		axis = s.axis
		mode = s.tuning.Mode()
		audioActive = s.tuning.AudioActive()
		samples, err = h.Read(s.blockSize(mode))
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, true
		}
		if source.IsGone(err) {
			s.fail(err)
			return 0, true
		}
		retry := s.backoff.NextBackOff()
		if retry == backoff.Stop {
			s.fail(err)
			return 0, true
		}
		log.Printf("cannot read samples, retrying in %v: %v", retry, err)
		return retry, false
	}
	s.backoff.Reset()

	snapshot := s.engine.Process(samples, axis)
	result := s.demodulator.Demodulate(samples, mode)
	s.capture.Store(captureResult{
		snapshot: snapshot,
		demod: DemodSummary{
			Mode:    mode,
			Level:   result.Level,
			Tone:    result.Tone,
			Digital: result.Digital,
		},
	})

	if audioActive {
		for _, listener := range s.audioListeners {
			listener(result.Audio, s.configuration.SampleRate)
		}
	}
	return 0, false
}

// blockSize is the number of samples of one capture. Without demodulation the FFT size is enough,
// otherwise one capture interval worth of samples is read to get continuous audio.
func (s *Session) blockSize(mode core.DemodMode) int {
	fftSize := s.engine.FFTSize()
	if mode == core.ModeNone {
		return fftSize
	}
	interval := core.Interval(s.configuration.CaptureRate)
	result := int(int64(s.configuration.SampleRate) * int64(interval) / int64(time.Second))
	if result < fftSize {
		return fftSize
	}
	return result
}

func (s *Session) runDisplay(ctx context.Context) {
	defer log.Print("display loop shutdown")
	tick := time.NewTicker(core.Interval(s.configuration.DisplayRate))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.publish(s.buildFrame())
		}
	}
}

func (s *Session) publish(frame Frame) {
	for _, listener := range s.frameListeners {
		listener(frame)
	}
	for _, subscriber := range s.subscribers {
		select {
		case subscriber <- frame:
		default:
			log.Print("frame subscriber hangs")
		}
	}
}

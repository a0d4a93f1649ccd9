// Package source owns the radio device.
//
// All access to a Device goes through Source.Locked, which holds the single
// device lock for the duration of the callback. The lock is held for one
// bounded read at most.
package source

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
)

// DefaultReadTimeout is used if no read timeout is configured.
const DefaultReadTimeout = 2 * time.Second

// Device is the capability of a radio receiver.
type Device interface {
	SetSampleRate(rate int) error
	SetCenterFrequency(f core.Frequency) error
	SetGain(gain core.Gain) error
	// Read fills the given slice with samples normalized to [-1,1].
	Read(samples []complex128) error
	Close() error
}

// ErrorKind classifies device errors.
type ErrorKind int

// All kinds of device errors.
const (
	NotFound ErrorKind = iota
	PermissionDenied
	IOFailure
	ParameterRejected
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "device not found"
	case PermissionDenied:
		return "permission denied"
	case IOFailure:
		return "I/O failure"
	case ParameterRejected:
		return "parameter rejected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DeviceError is an error reported by or about the radio device.
type DeviceError struct {
	Kind ErrorKind
	Op   string
	// Gone indicates that the device is physically lost.
	Gone bool
	Err  error
}

func (e *DeviceError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Gone {
		msg += " (device gone)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// IsKind checks if the given error is a DeviceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var deviceErr *DeviceError
	if !errors.As(err, &deviceErr) {
		return false
	}
	return deviceErr.Kind == kind
}

// IsGone checks if the given error reports a lost device.
func IsGone(err error) bool {
	var deviceErr *DeviceError
	if !errors.As(err, &deviceErr) {
		return false
	}
	return deviceErr.Gone
}

// Parameter of the device configuration.
type Parameter int

// All device parameters.
const (
	SampleRate Parameter = iota
	CenterFrequency
	Gain
)

func (p Parameter) String() string {
	switch p {
	case SampleRate:
		return "sample rate"
	case CenterFrequency:
		return "center frequency"
	case Gain:
		return "gain"
	default:
		return fmt.Sprintf("parameter(%d)", int(p))
	}
}

// ConfigureError names each parameter the device refused.
type ConfigureError struct {
	Failed map[Parameter]error
}

func (e *ConfigureError) Error() string {
	failed := make([]string, 0, len(e.Failed))
	for _, p := range []Parameter{SampleRate, CenterFrequency, Gain} {
		if err, ok := e.Failed[p]; ok {
			failed = append(failed, fmt.Sprintf("%s: %v", p, err))
		}
	}
	return strings.Join(failed, ", ")
}

// Rejected checks if the given parameter was refused.
func (e *ConfigureError) Rejected(p Parameter) bool {
	_, ok := e.Failed[p]
	return ok
}

// ErrClosed is reported when the source was already closed.
var ErrClosed = errors.New("source closed")

// ErrReadHangs is reported by Close if a timed out read did not return. The device is not closed then.
var ErrReadHangs = errors.New("device read hangs")

// Source owns a Device and its lock.
type Source struct {
	lock        sync.Mutex
	device      Device
	params      core.DeviceParams
	readTimeout time.Duration
	lost        bool
	closed      bool
	// reading receives the result of a read that timed out and is still inside the device.
	reading chan error
}

// New takes ownership of the given device and applies the initial parameters.
// If the device refuses any of them, it is closed and a ParameterRejected error is returned.
func New(device Device, params core.DeviceParams, readTimeout time.Duration) (*Source, error) {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	result := &Source{
		device:      device,
		readTimeout: readTimeout,
	}

	failed := result.apply(params, true)
	if len(failed) > 0 {
		device.Close()
		return nil, errors.WithStack(&DeviceError{Kind: ParameterRejected, Op: "open", Err: &ConfigureError{Failed: failed}})
	}
	return result, nil
}

// Locked runs f while holding the device lock. The handle must not be used after f returns.
func (s *Source) Locked(f func(h Handle)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	f(Handle{s: s})
}

// Close the device. Closing twice is a no-op. A read that timed out earlier is given
// another read timeout to return, the device is left open if it does not.
func (s *Source) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.settle(s.readTimeout) {
		return errors.WithStack(ErrReadHangs)
	}
	return errors.Wrap(s.device.Close(), "cannot close device")
}

// settle waits for a timed out read to leave the device. It returns false if the read is still
// inside the device after the given time. Must be called with the lock held.
func (s *Source) settle(wait time.Duration) bool {
	if s.reading == nil {
		return true
	}
	timeout := time.NewTimer(wait)
	defer timeout.Stop()
	select {
	case <-s.reading:
		s.reading = nil
		return true
	case <-timeout.C:
		return false
	}
}

func (s *Source) apply(params core.DeviceParams, force bool) map[Parameter]error {
	failed := make(map[Parameter]error)
	if force || params.SampleRate != s.params.SampleRate {
		if err := s.device.SetSampleRate(params.SampleRate); err != nil {
			failed[SampleRate] = err
		} else {
			s.params.SampleRate = params.SampleRate
		}
	}
	if force || params.CenterFrequency != s.params.CenterFrequency {
		if err := s.device.SetCenterFrequency(params.CenterFrequency); err != nil {
			failed[CenterFrequency] = err
		} else {
			s.params.CenterFrequency = params.CenterFrequency
		}
	}
	if force || params.Gain != s.params.Gain {
		if err := s.device.SetGain(params.Gain); err != nil {
			failed[Gain] = err
		} else {
			s.params.Gain = params.Gain
		}
	}
	return failed
}

// Handle gives access to the device while the lock is held.
type Handle struct {
	s *Source
}

// Params returns the parameters that were applied successfully.
func (h Handle) Params() core.DeviceParams {
	return h.s.params
}

// Usable indicates that the device is neither closed nor lost.
func (h Handle) Usable() bool {
	return !h.s.closed && !h.s.lost
}

// Configure applies the changed parameters independently. If any parameter is refused,
// a ParameterRejected error with a *ConfigureError is returned, the other parameters are still applied.
func (h Handle) Configure(params core.DeviceParams) error {
	if !h.Usable() {
		return h.unusable("configure")
	}
	failed := h.s.apply(params, false)
	if len(failed) == 0 {
		return nil
	}
	return errors.WithStack(&DeviceError{Kind: ParameterRejected, Op: "configure", Err: &ConfigureError{Failed: failed}})
}

// Read n samples. The read is bounded by the read timeout of the source, a timed out read
// marks the device as lost and keeps it from being accessed until Close.
func (h Handle) Read(n int) ([]complex128, error) {
	if !h.Usable() {
		return nil, h.unusable("read")
	}

	samples := make([]complex128, n)
	done := make(chan error, 1)
	go func() {
		done <- h.s.device.Read(samples)
	}()

	timeout := time.NewTimer(h.s.readTimeout)
	defer timeout.Stop()
	select {
	case err := <-done:
		if err == nil {
			return samples, nil
		}
		if IsGone(err) {
			h.s.lost = true
		}
		var deviceErr *DeviceError
		if errors.As(err, &deviceErr) {
			return nil, errors.WithStack(err)
		}
		return nil, errors.WithStack(&DeviceError{Kind: IOFailure, Op: "read", Err: err})
	case <-timeout.C:
		h.s.lost = true
		h.s.reading = done
		return nil, errors.WithStack(&DeviceError{Kind: IOFailure, Op: "read", Gone: true, Err: errors.Errorf("no samples within %v", h.s.readTimeout)})
	}
}

func (h Handle) unusable(op string) error {
	if h.s.closed {
		return errors.WithStack(&DeviceError{Kind: IOFailure, Op: op, Gone: true, Err: ErrClosed})
	}
	return errors.WithStack(&DeviceError{Kind: IOFailure, Op: op, Gone: true, Err: errors.New("device lost")})
}

// Package rtlsdr implements the radio device on top of an RTL-SDR dongle.
package rtlsdr

import (
	"log"
	"math"
	"strings"

	rtl "github.com/jpoirier/gortlsdr"
	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
	"github.com/ftl/rtlscan/core/source"
)

// DeviceInfo describes an attached RTL-SDR dongle.
type DeviceInfo struct {
	Index        int
	Name         string
	Manufacturer string
	Product      string
	Serial       string
}

// List all attached RTL-SDR dongles.
func List() []DeviceInfo {
	count := rtl.GetDeviceCount()
	result := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		info := DeviceInfo{
			Index: i,
			Name:  rtl.GetDeviceName(i),
		}
		manufacturer, product, serial, err := rtl.GetDeviceUsbStrings(i)
		if err != nil {
			log.Printf("cannot read USB strings of device %d: %v", i, err)
		} else {
			info.Manufacturer = manufacturer
			info.Product = product
			info.Serial = serial
		}
		result = append(result, info)
	}
	return result
}

// Open the RTL-SDR dongle with the given index.
func Open(index int) (*Dongle, error) {
	if count := rtl.GetDeviceCount(); index >= count {
		return nil, errors.WithStack(&source.DeviceError{Kind: source.NotFound, Op: "open", Err: errors.Errorf("no device with index %d, %d devices found", index, count)})
	}

	device, err := rtl.Open(index)
	if err != nil {
		return nil, classify("open", err)
	}

	gains, err := device.GetTunerGains()
	if err != nil {
		device.Close()
		return nil, classify("tuner gains", err)
	}
	log.Printf("opened %s, tuner gains %v", rtl.GetDeviceName(index), gains)

	return &Dongle{
		device: device,
		gains:  gains,
	}, nil
}

// Dongle represents the RTL-SDR dongle.
type Dongle struct {
	device *rtl.Context
	gains  []int
	buffer []byte
}

// SetSampleRate of the dongle.
func (d *Dongle) SetSampleRate(rate int) error {
	if err := d.device.SetSampleRate(rate); err != nil {
		return classify("set sample rate", err)
	}
	return nil
}

// SetCenterFrequency of the dongle and reset the sample buffer.
func (d *Dongle) SetCenterFrequency(f core.Frequency) error {
	if err := d.device.SetCenterFreq(int(f)); err != nil {
		return classify("set center frequency", err)
	}
	if err := d.device.ResetBuffer(); err != nil {
		return classify("reset buffer", err)
	}
	return nil
}

// SetGain of the tuner. Auto gain enables the tuner AGC, manual gain uses the nearest supported tuner gain.
func (d *Dongle) SetGain(gain core.Gain) error {
	if gain.Auto {
		if err := d.device.SetTunerGainMode(false); err != nil {
			return classify("set gain mode", err)
		}
		return nil
	}

	if err := d.device.SetTunerGainMode(true); err != nil {
		return classify("set gain mode", err)
	}
	tunerGain := nearestGain(d.gains, gain.DB*10)
	if err := d.device.SetTunerGain(tunerGain); err != nil {
		return classify("set gain", err)
	}
	return nil
}

// Read samples from the dongle.
func (d *Dongle) Read(samples []complex128) error {
	size := bufferSize(len(samples))
	if len(d.buffer) != size {
		d.buffer = make([]byte, size)
	}

	n, err := d.device.ReadSync(d.buffer, size)
	if err != nil {
		return classify("read", err)
	}
	if n < 2*len(samples) {
		return errors.WithStack(&source.DeviceError{Kind: source.IOFailure, Op: "read", Err: errors.Errorf("short read: %d of %d bytes", n, 2*len(samples))})
	}
	convert(d.buffer, samples)
	return nil
}

// Close the dongle.
func (d *Dongle) Close() error {
	return d.device.Close()
}

// bufferSize returns the size of the byte buffer for n IQ samples. Synchronous reads need a multiple of 512 bytes.
func bufferSize(n int) int {
	const blockSize = 512
	size := 2 * n
	if size%blockSize != 0 {
		size += blockSize - size%blockSize
	}
	return size
}

// convert the interleaved 8-bit IQ data to samples normalized to [-1,1].
func convert(buf []byte, samples []complex128) {
	for i := range samples {
		samples[i] = complex(normalizeSampleUint8(buf[2*i]), normalizeSampleUint8(buf[2*i+1]))
	}
}

func normalizeSampleUint8(s byte) float64 {
	return (float64(s) - 127.5) / 127.5
}

// nearestGain returns the supported tuner gain closest to the given gain, both in tenths of a dB.
func nearestGain(gains []int, tenths int) int {
	if len(gains) == 0 {
		return tenths
	}
	result := gains[0]
	for _, g := range gains[1:] {
		if math.Abs(float64(g-tenths)) < math.Abs(float64(result-tenths)) {
			result = g
		}
	}
	return result
}

func classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	deviceErr := &source.DeviceError{Kind: source.IOFailure, Op: op, Err: err}
	switch {
	case strings.Contains(msg, "access") || strings.Contains(msg, "permission"):
		deviceErr.Kind = source.PermissionDenied
	case strings.Contains(msg, "no_device") || strings.Contains(msg, "no such device"):
		deviceErr.Gone = true
		if op == "open" {
			deviceErr.Kind = source.NotFound
		}
	case strings.Contains(msg, "not_found") || strings.Contains(msg, "not found"):
		deviceErr.Kind = source.NotFound
	case op != "read":
		deviceErr.Kind = source.ParameterRejected
	}
	return errors.WithStack(deviceErr)
}

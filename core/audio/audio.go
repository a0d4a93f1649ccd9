// Package audio plays and records the demodulated audio.
package audio

import (
	"log"
	"sync"
)

// SampleRate of the audio output in Hz.
const SampleRate = 48000

// Writer consumes audio at SampleRate.
type Writer interface {
	Write(samples []float64) error
	Close() error
}

// Monitor resamples the demodulated audio to SampleRate and hands it to its writers.
type Monitor struct {
	lock    sync.Mutex
	writers []Writer
	failed  map[Writer]bool
}

// NewMonitor returns a monitor that writes to the given writers.
func NewMonitor(writers ...Writer) *Monitor {
	return &Monitor{
		writers: writers,
		failed:  make(map[Writer]bool),
	}
}

// Audio is called with each block of demodulated audio.
func (m *Monitor) Audio(samples []float64, sampleRate int) {
	decimated := Decimate(samples, sampleRate, SampleRate)

	m.lock.Lock()
	defer m.lock.Unlock()
	for _, writer := range m.writers {
		if m.failed[writer] {
			continue
		}
		if err := writer.Write(decimated); err != nil {
			log.Print("cannot write audio: ", err)
			m.failed[writer] = true
		}
	}
}

// Close all writers.
func (m *Monitor) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	var result error
	for _, writer := range m.writers {
		if err := writer.Close(); err != nil && result == nil {
			result = err
		}
	}
	m.writers = nil
	return result
}

// Decimate reduces the sample rate by averaging the samples of each output period.
// If toRate is not smaller than fromRate, the samples are returned unchanged.
func Decimate(samples []float64, fromRate, toRate int) []float64 {
	if toRate <= 0 || fromRate <= toRate {
		return samples
	}
	n := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	result := make([]float64, n)
	for i := range result {
		from := int(int64(i) * int64(fromRate) / int64(toRate))
		to := int(int64(i+1) * int64(fromRate) / int64(toRate))
		if to > len(samples) {
			to = len(samples)
		}
		sum := 0.0
		for _, v := range samples[from:to] {
			sum += v
		}
		if to > from {
			result[i] = sum / float64(to-from)
		}
	}
	return result
}

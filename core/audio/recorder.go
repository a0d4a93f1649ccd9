package audio

import (
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

const bitDepth = 16

// Recorder writes the audio into a 16 bit mono WAV file.
type Recorder struct {
	file    *os.File
	encoder *wav.Encoder
	buffer  *audio.IntBuffer
}

// NewRecorder creates the WAV file with the given name.
func NewRecorder(filename string) (*Recorder, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create recording")
	}
	return &Recorder{
		file:    file,
		encoder: wav.NewEncoder(file, SampleRate, bitDepth, 1, 1),
		buffer: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: SampleRate},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// Write the samples, clipped to [-1,1].
func (r *Recorder) Write(samples []float64) error {
	if len(samples) == 0 {
		return nil
	}
	if cap(r.buffer.Data) < len(samples) {
		r.buffer.Data = make([]int, len(samples))
	}
	r.buffer.Data = r.buffer.Data[:len(samples)]
	for i, v := range samples {
		r.buffer.Data[i] = int(math.Round(math.Max(-1, math.Min(1, v)) * math.MaxInt16))
	}
	return errors.Wrap(r.encoder.Write(r.buffer), "cannot write recording")
}

// Close the recording and finish the WAV header.
func (r *Recorder) Close() error {
	if err := r.encoder.Close(); err != nil {
		r.file.Close()
		return errors.Wrap(err, "cannot finish recording")
	}
	return errors.Wrap(r.file.Close(), "cannot close recording")
}

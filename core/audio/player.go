package audio

import (
	"log"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"
)

const framesPerBuffer = 1024

// Player writes the audio to the default output device.
type Player struct {
	stream *portaudio.Stream
	buffer []float32
	blocks chan []float64
	done   chan struct{}
}

// NewPlayer opens the default output device.
func NewPlayer() (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "cannot initialize portaudio")
	}

	result := &Player{
		buffer: make([]float32, framesPerBuffer),
		blocks: make(chan []float64, 10),
		done:   make(chan struct{}),
	}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(SampleRate), framesPerBuffer, result.buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, errors.Wrap(err, "cannot open output stream")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, errors.Wrap(err, "cannot start output stream")
	}
	result.stream = stream

	go result.run()
	return result, nil
}

func (p *Player) run() {
	defer close(p.done)
	pending := make([]float64, 0, 2*framesPerBuffer)
	for block := range p.blocks {
		pending = append(pending, block...)
		for len(pending) >= framesPerBuffer {
			for i := range p.buffer {
				p.buffer[i] = float32(pending[i])
			}
			if err := p.stream.Write(); err != nil {
				log.Print("audio output: ", err)
			}
			pending = append(pending[:0], pending[framesPerBuffer:]...)
		}
	}
}

// Write queues the samples for playback. Samples are dropped if the output does not keep up.
func (p *Player) Write(samples []float64) error {
	select {
	case p.blocks <- samples:
	default:
		log.Print("audio player hangs")
	}
	return nil
}

// Close the output stream.
func (p *Player) Close() error {
	close(p.blocks)
	<-p.done
	defer portaudio.Terminate()
	if err := p.stream.Stop(); err != nil {
		log.Print("cannot stop output stream: ", err)
	}
	return errors.Wrap(p.stream.Close(), "cannot close output stream")
}

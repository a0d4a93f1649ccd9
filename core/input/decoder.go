// Package input turns raw terminal bytes into key events and applies them to the tuning controls.
package input

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/ftl/rtlscan/core"
)

const (
	esc    = 0x1b
	ctrlC  = 0x03
	csi    = '['
	maxSeq = 3
)

// DefaultEscapeTimeout is the time to wait for the rest of an escape sequence.
const DefaultEscapeTimeout = 50 * time.Millisecond

// Decoder decodes bytes into keys. Arrow keys are sent as ESC [ A/B/C/D, a lone or malformed
// escape sequence is decoded as Cancel.
type Decoder struct {
	pending []byte
}

// Feed the next byte into the decoder and return the keys that are complete.
func (d *Decoder) Feed(b byte) []core.Key {
	if len(d.pending) > 0 {
		return d.continueSequence(b)
	}
	if b == esc {
		d.pending = append(d.pending, b)
		return nil
	}
	if key := plainKey(b); key != core.KeyNone {
		return []core.Key{key}
	}
	return nil
}

func (d *Decoder) continueSequence(b byte) []core.Key {
	if len(d.pending) == 1 {
		if b == csi {
			d.pending = append(d.pending, b)
			return nil
		}
		d.pending = d.pending[:0]
		if b == esc {
			d.pending = append(d.pending, b)
			return []core.Key{core.KeyCancel}
		}
		return append([]core.Key{core.KeyCancel}, d.Feed(b)...)
	}

	d.pending = d.pending[:0]
	switch b {
	case 'A':
		return []core.Key{core.KeyUp}
	case 'B':
		return []core.Key{core.KeyDown}
	case 'C':
		return []core.Key{core.KeyRight}
	case 'D':
		return []core.Key{core.KeyLeft}
	default:
		return []core.Key{core.KeyCancel}
	}
}

// Flush an incomplete escape sequence, which is decoded as Cancel.
func (d *Decoder) Flush() []core.Key {
	if len(d.pending) == 0 {
		return nil
	}
	d.pending = d.pending[:0]
	return []core.Key{core.KeyCancel}
}

// Pending indicates an incomplete escape sequence.
func (d *Decoder) Pending() bool {
	return len(d.pending) > 0
}

func plainKey(b byte) core.Key {
	switch b {
	case 'q', 'Q', ctrlC:
		return core.KeyQuit
	case 'm', 'M':
		return core.KeyToggleMenu
	case ' ', '\r', '\n':
		return core.KeySelect
	default:
		return core.KeyNone
	}
}

// ReadKeys decodes the bytes read from r until the context is done or r is exhausted.
// An escape sequence that is not completed within escapeTimeout is flushed.
// A blocked read on r is not interrupted by the context.
func ReadKeys(ctx context.Context, r io.Reader, escapeTimeout time.Duration) <-chan core.Key {
	if escapeTimeout <= 0 {
		escapeTimeout = DefaultEscapeTimeout
	}
	bytes := make(chan byte, maxSeq*8)
	go func() {
		defer close(bytes)
		buf := make([]byte, 64)
		for {
			n, err := r.Read(buf)
			for _, b := range buf[:n] {
				select {
				case bytes <- b:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					log.Print("reading keys failed: ", err)
				}
				return
			}
		}
	}()

	keys := make(chan core.Key, 16)
	go func() {
		defer close(keys)
		var decoder Decoder
		var timeout <-chan time.Time

		send := func(decoded []core.Key) bool {
			for _, key := range decoded {
				select {
				case keys <- key:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			select {
			case b, ok := <-bytes:
				if !ok {
					send(decoder.Flush())
					return
				}
				if !send(decoder.Feed(b)) {
					return
				}
				if decoder.Pending() {
					timeout = time.After(escapeTimeout)
				} else {
					timeout = nil
				}
			case <-timeout:
				timeout = nil
				if !send(decoder.Flush()) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return keys
}

// Package vfo follows the scanner frequency with a hamlib rig and vice versa.
package vfo

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ftl/rigproxy/pkg/protocol"
	"github.com/pkg/errors"

	"github.com/ftl/rtlscan/core"
)

// DefaultAddress of rigctld.
const DefaultAddress = "localhost:4532"

// Open a connection to a hamlib VFO at the given network address. If address is empty, DefaultAddress is used.
func Open(address string) (*VFO, error) {
	if address == "" {
		address = DefaultAddress
	}
	out, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open VFO connection")
	}

	trx := protocol.NewTransceiver(out)
	trx.WhenDone(func() {
		out.Close()
	})

	return newVFO(trx), nil
}

func newVFO(trx *protocol.Transceiver) *VFO {
	return &VFO{
		trx:             trx,
		pollingInterval: 500 * time.Millisecond,
		requestTimeout:  2 * time.Second,
		setFrequency:    make(chan core.Frequency, 10),
	}
}

// VFO mirrors the frequency of a hamlib rig.
type VFO struct {
	trx                       *protocol.Transceiver
	pollingInterval           time.Duration
	requestTimeout            time.Duration
	setFrequency              chan core.Frequency
	currentFrequency          core.Frequency
	frequencyLock             sync.RWMutex
	frequencyChangedCallbacks []FrequencyChanged
}

// FrequencyChanged is called when the frequency of the rig was changed on the rig.
type FrequencyChanged func(f core.Frequency)

// Run the VFO until the context is done.
func (v *VFO) Run(ctx context.Context, wait *sync.WaitGroup) {
	wait.Add(1)
	go func() {
		defer wait.Done()
		defer v.shutdown()

		poll := time.NewTicker(v.pollingInterval)
		defer poll.Stop()
		for {
			select {
			case <-poll.C:
				v.pollFrequency(ctx)
			case f := <-v.setFrequency:
				v.sendFrequency(ctx, f)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (v *VFO) shutdown() {
	v.trx.Close()
	log.Print("VFO shutdown")
}

func (v *VFO) send(ctx context.Context, request protocol.Request) (protocol.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, v.requestTimeout)
	defer cancel()
	return v.trx.Send(ctx, request)
}

func (v *VFO) pollFrequency(ctx context.Context) {
	response, err := v.send(ctx, protocol.Request{Command: protocol.ShortCommand("f")})
	if err != nil {
		log.Print("Polling frequency failed: ", err)
		return
	}
	if len(response.Data) == 0 {
		log.Print("Polling frequency returned no data")
		return
	}

	f, err := hamlibToF(response.Data[0])
	if err != nil {
		log.Printf("Wrong frequency format %s: %v", response.Data[0], err)
		return
	}

	if v.updateCurrentFrequency(f) {
		for _, frequencyChanged := range v.frequencyChangedCallbacks {
			frequencyChanged(f)
		}
	}
}

func (v *VFO) updateCurrentFrequency(f core.Frequency) bool {
	v.frequencyLock.Lock()
	defer v.frequencyLock.Unlock()
	if f == v.currentFrequency {
		return false
	}

	v.currentFrequency = f
	return true
}

func (v *VFO) sendFrequency(ctx context.Context, f core.Frequency) {
	request := protocol.Request{Command: protocol.ShortCommand("F"), Args: []string{fToHamlib(f)}}
	_, err := v.send(ctx, request)
	if err != nil {
		log.Print("Sending frequency failed: ", err)
	}
}

// SetFrequency sets the given frequency on the rig. Frequencies the rig already has are not sent again.
func (v *VFO) SetFrequency(f core.Frequency) {
	if !v.updateCurrentFrequency(f) {
		return
	}
	select {
	case v.setFrequency <- f:
	default:
		log.Print("VFO.SetFrequency hangs")
	}
}

// CurrentFrequency returns the current frequency of the VFO.
func (v *VFO) CurrentFrequency() core.Frequency {
	v.frequencyLock.RLock()
	defer v.frequencyLock.RUnlock()
	return v.currentFrequency
}

// OnFrequencyChange registers the given callback to be notified if the frequency is changed on the rig.
func (v *VFO) OnFrequencyChange(f FrequencyChanged) {
	v.frequencyChangedCallbacks = append(v.frequencyChangedCallbacks, f)
}

func fToHamlib(f core.Frequency) string {
	return fmt.Sprintf("%d", int64(f))
}

func hamlibToF(s string) (core.Frequency, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid frequency %q", s)
	}
	return core.Frequency(f + 0.5), nil
}

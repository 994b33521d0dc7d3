/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package transmitter

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"jinr.ru/greenlab/go-rc6d/pkg/config"
	"jinr.ru/greenlab/go-rc6d/pkg/layers"
	"jinr.ru/greenlab/go-rc6d/pkg/log"
	"jinr.ru/greenlab/go-rc6d/pkg/srv"
)

const (
	OutChSize = 16
)

// Transmitter sends the current control state to a peer at a fixed rate
type Transmitter struct {
	srv.Server
	period time.Duration
	count  uint64
	state  atomic.Pointer[layers.ControlState]
	sent   atomic.Uint64
}

func NewTransmitter(ctx context.Context, cfg *config.Config) (*Transmitter, error) {
	log.Info("Initializing transmitter with peer address: %s port: %d rate: %.2fHz",
		cfg.Transmitter.PeerAddress, cfg.Transmitter.PeerPort, cfg.Transmitter.Rate)

	if cfg.Transmitter.Rate <= 0 {
		return nil, config.ErrInvalidConfig{What: "transmitter rate must be positive"}
	}
	uaddr, err := srv.ResolveUDPAddr(cfg.Transmitter.PeerAddress, cfg.Transmitter.PeerPort)
	if err != nil {
		return nil, err
	}

	t := &Transmitter{
		Server: srv.Server{
			Context: ctx,
			Config:  cfg,
			UDPAddr: uaddr,
			ChOut:   make(chan srv.OutPacket, OutChSize),
		},
		period: time.Duration(float64(time.Second) / cfg.Transmitter.Rate),
	}
	t.state.Store(layers.NewControlState(0))
	return t, nil
}

// SetState replaces the state sent on the next tick. The transmitter keeps a copy.
func (t *Transmitter) SetState(cs *layers.ControlState) error {
	if err := cs.Validate(); err != nil {
		return err
	}
	stored := *cs
	t.state.Store(&stored)
	return nil
}

func (t *Transmitter) State() *layers.ControlState {
	cs := *t.state.Load()
	return &cs
}

// SetCount makes Run return after count frames, 0 means run until the context is done
func (t *Transmitter) SetCount(count uint64) {
	t.count = count
}

func (t *Transmitter) Period() time.Duration {
	return t.period
}

// Sent returns the number of frames written to the socket
func (t *Transmitter) Sent() uint64 {
	return t.sent.Load()
}

// Send queues a single frame to be written by Run. It blocks while the output
// queue is full.
func (t *Transmitter) Send(cs *layers.ControlState) error {
	return t.enqueue(cs, nil)
}

func (t *Transmitter) enqueue(cs *layers.ControlState, stop <-chan struct{}) error {
	data, err := cs.Encode()
	if err != nil {
		return err
	}
	select {
	case t.ChOut <- srv.OutPacket{Data: data, UDPAddr: t.UDPAddr}:
		return nil
	case <-t.Context.Done():
		return t.Context.Err()
	case <-stop:
		return nil
	}
}

func (t *Transmitter) Run() error {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	errChan := make(chan error, 1)
	stop := make(chan struct{})
	var stopOnce sync.Once
	finish := func() { stopOnce.Do(func() { close(stop) }) }
	defer finish()

	// Read packets from output queue and send them to wire
	go func() {
		for {
			select {
			case <-t.Context.Done():
				return
			case <-stop:
				return
			case outPacket := <-t.ChOut:
				_, sendErr := conn.WriteToUDP(outPacket.Data, outPacket.UDPAddr)
				if sendErr != nil {
					log.Error("Error while sending data to %s", outPacket.UDPAddr)
					errChan <- sendErr
					finish()
					return
				}
				sent := t.sent.Add(1)
				if t.count > 0 && sent >= t.count {
					finish()
					return
				}
			}
		}
	}()

	// Put the current state to output queue on every tick
	go func() {
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()
		for {
			select {
			case <-t.Context.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := t.enqueue(t.State(), stop); err != nil {
					log.Error("Error while queueing control state: %s", err)
				}
			}
		}
	}()

	log.Info("Starting transmitter: peer: %s period: %s", t.UDPAddr, t.period)
	select {
	case <-t.Context.Done():
		return t.Context.Err()
	case err = <-errChan:
		return err
	case <-stop:
		select {
		case err = <-errChan:
			return err
		default:
			return nil
		}
	}
}

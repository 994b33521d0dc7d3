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

package receiver

import (
	"errors"
	"fmt"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-rc6d/pkg/config"
	"jinr.ru/greenlab/go-rc6d/pkg/layers"
	"jinr.ru/greenlab/go-rc6d/pkg/log"
	"jinr.ru/greenlab/go-rc6d/pkg/srv"
)

// Callback consumes decoded control states. It is called on the receive
// goroutine, so nothing is read from the socket until it returns.
type Callback func(cs *layers.ControlState)

type Stats struct {
	Received        uint64  `json:"received"`
	Decoded         uint64  `json:"decoded"`
	Malformed       uint64  `json:"malformed"`
	ZeroIntervals   uint64  `json:"zero_intervals"`
	TransportErrors uint64  `json:"transport_errors"`
	CallbackPanics  uint64  `json:"callback_panics"`
	Frequency       float64 `json:"frequency"`
}

type stats struct {
	received        atomic.Uint64
	decoded         atomic.Uint64
	malformed       atomic.Uint64
	zeroIntervals   atomic.Uint64
	transportErrors atomic.Uint64
	callbackPanics  atomic.Uint64
	frequency       atomic.Uint64 // math.Float64bits
}

// Receiver reads RC frames from a UDP socket on a single goroutine and hands
// every valid one to the registered Callback.
type Receiver struct {
	conn      net.PacketConn
	buffer    []byte
	frequency *FrequencyEstimator
	callback  atomic.Pointer[Callback]
	metrics   *Metrics
	now       func() time.Time
	started   atomic.Bool
	done      chan struct{}
	stats     stats
}

type Option func(r *Receiver)

// WithBufferSize sets the read buffer size. It must be larger than an RC frame,
// otherwise oversized datagrams are cut to a valid looking length.
func WithBufferSize(size int) Option {
	return func(r *Receiver) {
		if size > layers.RCFrameSize {
			r.buffer = make([]byte, size)
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Receiver) {
		r.metrics = m
	}
}

// WithClock replaces time.Now as the source of arrival timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Receiver) {
		r.now = now
	}
}

// NewReceiver binds a UDP socket on address:port. An empty address binds all
// local addresses. The receive loop is not running until Start is called.
func NewReceiver(address string, port int, opts ...Option) (*Receiver, error) {
	hostPort := net.JoinHostPort(address, fmt.Sprint(port))
	log.Debug("Initializing receiver with address: %s", hostPort)

	uaddr, err := srv.ResolveUDPAddr(address, port)
	if err != nil {
		return nil, srv.ErrBind{Addr: hostPort, Err: err}
	}
	conn, err := net.ListenUDP("udp", uaddr)
	if err != nil {
		return nil, srv.ErrBind{Addr: hostPort, Err: err}
	}
	return NewReceiverWithConn(conn, opts...), nil
}

// NewReceiverFromConfig binds the receiver described by the receiver section of the config
func NewReceiverFromConfig(cfg *config.ReceiverConfig, opts ...Option) (*Receiver, error) {
	opts = append([]Option{WithBufferSize(cfg.BufferSize)}, opts...)
	return NewReceiver(cfg.Address, cfg.Port, opts...)
}

// NewReceiverWithConn wraps an already bound socket. The receiver owns conn from now on.
func NewReceiverWithConn(conn net.PacketConn, opts ...Option) *Receiver {
	r := &Receiver{
		conn:   conn,
		buffer: make([]byte, config.DefaultBufferSize),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.frequency = NewFrequencyEstimator(r.now())
	return r
}

// OnReceive registers the consumer. The previous one is discarded, nil disables dispatch.
func (r *Receiver) OnReceive(cb Callback) {
	if cb == nil {
		r.callback.Store(nil)
		return
	}
	r.callback.Store(&cb)
}

// Start launches the receive loop and returns immediately. Only the first call has effect.
func (r *Receiver) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	log.Info("Starting receiver: address: %s", r.LocalAddr())
	go r.receiveLoop()
}

// Close closes the socket, which ends the receive loop
func (r *Receiver) Close() error {
	return r.conn.Close()
}

// Done is closed when the receive loop has returned
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

func (r *Receiver) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *Receiver) Stats() Stats {
	return Stats{
		Received:        r.stats.received.Load(),
		Decoded:         r.stats.decoded.Load(),
		Malformed:       r.stats.malformed.Load(),
		ZeroIntervals:   r.stats.zeroIntervals.Load(),
		TransportErrors: r.stats.transportErrors.Load(),
		CallbackPanics:  r.stats.callbackPanics.Load(),
		Frequency:       math.Float64frombits(r.stats.frequency.Load()),
	}
}

// ReadPacketData reads one datagram from the socket and stamps it with the arrival time.
// This method is from PacketDataSource interface.
func (r *Receiver) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	length, addr, err := r.conn.ReadFrom(r.buffer)
	if err != nil {
		return nil, gopacket.CaptureInfo{}, err
	}
	return r.buffer[:length], srv.CaptureInfo(length, addr, r.now()), nil
}

func (r *Receiver) receiveLoop() {
	defer close(r.done)

	source := gopacket.NewPacketSource(r, layers.RCLayerType)
	for {
		packet, err := source.NextPacket()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Info("Receiver socket is closed, stopping receive loop")
				return
			}
			r.stats.transportErrors.Add(1)
			r.metrics.transportError()
			log.Error("Error while reading datagram: %s", err)
			continue
		}
		r.handlePacket(packet)
	}
}

func (r *Receiver) handlePacket(packet gopacket.Packet) {
	r.stats.received.Add(1)

	frequency, err := r.frequency.Update(packet.Metadata().Timestamp)
	if err != nil {
		r.stats.zeroIntervals.Add(1)
		r.metrics.datagram(ResultZeroInterval)
		log.Warning("Drop datagram: %s", err)
		return
	}
	r.stats.frequency.Store(math.Float64bits(frequency))
	r.metrics.setFrequency(frequency)

	var rc *layers.RCLayer
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		err = errLayer.Error()
	} else if layer, ok := packet.Layer(layers.RCLayerType).(*layers.RCLayer); ok {
		rc = layer
	} else {
		err = layers.ErrFormat{What: "no RC frame", Field: -1}
	}
	if err != nil {
		r.stats.malformed.Add(1)
		r.metrics.datagram(ResultMalformed)
		if log.Level() >= log.DebugLevel {
			addr, _ := srv.GetAddrPort(packet)
			log.Debug("Drop malformed datagram from %s: %s", addr, err)
		}
		return
	}

	cs := rc.ControlState
	cs.Frequency = frequency
	r.stats.decoded.Add(1)
	r.metrics.datagram(ResultDecoded)
	r.dispatch(&cs)
}

// dispatch calls the consumer. A panicking consumer must not end the receive loop.
func (r *Receiver) dispatch(cs *layers.ControlState) {
	cb := r.callback.Load()
	if cb == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.stats.callbackPanics.Add(1)
			r.metrics.callbackPanic()
			log.Error("Receive callback panicked: %v", p)
		}
	}()
	(*cb)(cs)
}

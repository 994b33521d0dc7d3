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
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-rc6d/pkg/layers"
	"jinr.ru/greenlab/go-rc6d/pkg/srv"
)

const (
	validFrame     = "$RC:    1:    2:    3:0:    4:    5:    6:0:0:0:0:0:0:0:0:0:#\r"
	otherFrame     = "$RC:  -12:   12:    0:1:    0:    0:    0:0:1:0:0:0:0:0:0:1:#\r"
	malformedFrame = "XRC:    1:    2:    3:0:    4:    5:    6:0:0:0:0:0:0:0:0:0:#\r"
	waitTimeout    = 2 * time.Second
)

var start = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func collect(r *Receiver) <-chan *layers.ControlState {
	ch := make(chan *layers.ControlState, 16)
	r.OnReceive(func(cs *layers.ControlState) { ch <- cs })
	return ch
}

func next(t *testing.T, ch <-chan *layers.ControlState) *layers.ControlState {
	t.Helper()
	select {
	case cs := <-ch:
		return cs
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for control state")
		return nil
	}
}

func stop(t *testing.T, r *Receiver) {
	t.Helper()
	require.NoError(t, r.Close())
	select {
	case <-r.Done():
	case <-time.After(waitTimeout):
		t.Fatal("receive loop did not stop")
	}
}

func TestReceiverOverUDP(t *testing.T) {
	r, err := NewReceiver("127.0.0.1", 0)
	require.NoError(t, err)
	ch := collect(r)
	r.Start()
	defer stop(t, r)

	conn, err := net.DialUDP("udp", nil, r.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(validFrame))
	require.NoError(t, err)

	cs := next(t, ch)
	assert.Equal(t, layers.Joystick{X: 1, Y: 2, Z: 3}, cs.Joystick1)
	assert.Equal(t, layers.Joystick{X: 4, Y: 5, Z: 6}, cs.Joystick2)
	assert.Equal(t, [layers.NumButtons]int{}, cs.Buttons)
	assert.Greater(t, cs.Frequency, 0.0)
}

func TestReceiverBindError(t *testing.T) {
	first, err := NewReceiver("127.0.0.1", 0)
	require.NoError(t, err)
	defer first.Close()

	port := first.LocalAddr().(*net.UDPAddr).Port
	second, err := NewReceiver("127.0.0.1", port)
	assert.Nil(t, second)
	var bindErr srv.ErrBind
	require.True(t, errors.As(err, &bindErr))
	assert.Error(t, bindErr.Unwrap())
}

func TestReceiverFrequency(t *testing.T) {
	conn := newFakeConn()
	clock := newFakeClock(start, 500*time.Millisecond, 520*time.Millisecond)
	r := NewReceiverWithConn(conn, WithClock(clock.Now))
	ch := collect(r)
	r.Start()
	defer stop(t, r)

	conn.push(validFrame)
	assert.InDelta(t, 2.0, next(t, ch).Frequency, 1e-9)

	conn.push(otherFrame)
	assert.InDelta(t, 50.0, next(t, ch).Frequency, 1e-9)
	assert.InDelta(t, 50.0, r.Stats().Frequency, 1e-9)
}

func TestReceiverMalformedDoesNotStopLoop(t *testing.T) {
	conn := newFakeConn()
	clock := newFakeClock(start, time.Second, 2*time.Second, 3*time.Second)
	r := NewReceiverWithConn(conn, WithClock(clock.Now))
	ch := collect(r)
	r.Start()
	defer stop(t, r)

	conn.push(malformedFrame)
	conn.push(validFrame[:40])
	conn.push(validFrame)

	cs := next(t, ch)
	assert.Equal(t, layers.Joystick{X: 1, Y: 2, Z: 3}, cs.Joystick1)
	// the malformed datagrams still count as arrivals for the frequency
	assert.InDelta(t, 1.0, cs.Frequency, 1e-9)

	stats := r.Stats()
	assert.Equal(t, uint64(3), stats.Received)
	assert.Equal(t, uint64(2), stats.Malformed)
	assert.Equal(t, uint64(1), stats.Decoded)
	assert.Empty(t, ch)
}

func TestReceiverTransportErrorDoesNotStopLoop(t *testing.T) {
	conn := newFakeConn()
	r := NewReceiverWithConn(conn)
	ch := collect(r)
	r.Start()
	defer stop(t, r)

	conn.pushErr(errors.New("connection refused"))
	conn.push(validFrame)

	next(t, ch)
	assert.Equal(t, uint64(1), r.Stats().TransportErrors)
}

func TestReceiverZeroInterval(t *testing.T) {
	conn := newFakeConn()
	clock := newFakeClock(start, time.Second, time.Second, 1250*time.Millisecond)
	r := NewReceiverWithConn(conn, WithClock(clock.Now))
	ch := collect(r)
	r.Start()
	defer stop(t, r)

	conn.push(validFrame)
	conn.push(validFrame)
	conn.push(otherFrame)

	assert.InDelta(t, 1.0, next(t, ch).Frequency, 1e-9)
	cs := next(t, ch)
	assert.Equal(t, 1, cs.Joystick1.Button)
	assert.InDelta(t, 4.0, cs.Frequency, 1e-9)
	assert.Equal(t, uint64(1), r.Stats().ZeroIntervals)
}

func TestReceiverCallbackReplacement(t *testing.T) {
	conn := newFakeConn()
	r := NewReceiverWithConn(conn)
	var first, second atomic.Int32
	r.OnReceive(func(cs *layers.ControlState) { first.Add(1) })
	done := make(chan struct{}, 4)
	r.OnReceive(func(cs *layers.ControlState) {
		second.Add(1)
		done <- struct{}{}
	})
	r.Start()
	defer stop(t, r)

	conn.push(validFrame)
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("callback not called")
	}
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())

	r.OnReceive(nil)
	conn.push(validFrame)
	require.Eventually(t, func() bool { return r.Stats().Decoded == 2 }, waitTimeout, 5*time.Millisecond)
	ch := collect(r)
	conn.push(otherFrame)
	assert.Equal(t, 1, next(t, ch).Joystick1.Button)
	assert.Equal(t, int32(1), second.Load())
	assert.Equal(t, uint64(3), r.Stats().Decoded)
}

func TestReceiverCallbackPanic(t *testing.T) {
	conn := newFakeConn()
	r := NewReceiverWithConn(conn)
	r.OnReceive(func(cs *layers.ControlState) { panic("actuator failure") })
	r.Start()
	defer stop(t, r)

	conn.push(validFrame)
	require.Eventually(t, func() bool { return r.Stats().CallbackPanics == 1 }, waitTimeout, 5*time.Millisecond)

	ch := collect(r)
	conn.push(otherFrame)
	assert.Equal(t, -12, next(t, ch).Joystick1.X)
}

func TestReceiverStartTwice(t *testing.T) {
	conn := newFakeConn()
	r := NewReceiverWithConn(conn)
	ch := collect(r)
	r.Start()
	r.Start()
	defer stop(t, r)

	conn.push(validFrame)
	next(t, ch)
	assert.Equal(t, uint64(1), r.Stats().Received)
}

func TestReceiverCloseStopsLoop(t *testing.T) {
	r, err := NewReceiver("127.0.0.1", 0)
	require.NoError(t, err)
	r.Start()
	stop(t, r)
	assert.Zero(t, r.Stats().TransportErrors)
}

func TestReceiverBufferSize(t *testing.T) {
	conn := newFakeConn()
	r := NewReceiverWithConn(conn, WithBufferSize(layers.RCFrameSize))
	assert.Len(t, r.buffer, 1024)

	r = NewReceiverWithConn(conn, WithBufferSize(4096))
	assert.Len(t, r.buffer, 4096)
}

func TestReceiverMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry, "test")
	conn := newFakeConn()
	clock := newFakeClock(start, 100*time.Millisecond, 200*time.Millisecond)
	r := NewReceiverWithConn(conn, WithClock(clock.Now), WithMetrics(metrics))
	ch := collect(r)
	r.Start()
	defer stop(t, r)

	conn.push(malformedFrame)
	conn.push(validFrame)
	next(t, ch)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.datagrams.WithLabelValues(ResultDecoded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.datagrams.WithLabelValues(ResultMalformed)))
	assert.InDelta(t, 10.0, testutil.ToFloat64(metrics.frequency), 1e-9)
}

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
	"net"
	"sync"
	"time"
)

type fakeRead struct {
	data []byte
	addr net.Addr
	err  error
}

// fakeConn is a net.PacketConn fed by the test through reads.
// ReadFrom blocks until a read is queued or the conn is closed.
type fakeConn struct {
	reads     chan fakeRead
	closed    chan struct{}
	closeOnce sync.Once
}

var fakePeer = &net.UDPAddr{IP: net.ParseIP("192.168.1.10"), Port: 40000}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan fakeRead, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) push(data string) {
	c.reads <- fakeRead{data: []byte(data), addr: fakePeer}
}

func (c *fakeConn) pushErr(err error) {
	c.reads <- fakeRead{err: err}
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	select {
	case <-c.closed:
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: net.ErrClosed}
	case r := <-c.reads:
		if r.err != nil {
			return 0, nil, r.err
		}
		return copy(b, r.data), r.addr, nil
	}
}

func (c *fakeConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5005}
}

func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

// fakeClock returns the given times in order and then keeps returning the last one
type fakeClock struct {
	mu    sync.Mutex
	times []time.Time
}

func newFakeClock(start time.Time, offsets ...time.Duration) *fakeClock {
	times := []time.Time{start}
	for _, offset := range offsets {
		times = append(times, start.Add(offset))
	}
	return &fakeClock{times: times}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return now
}

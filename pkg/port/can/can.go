// Package can provides a uuxi.Port backed by a can.Bus (pkg/can), via
// whichever backend that registry resolves ("socketcan" for a real
// interface, "virtualcan" for tests). The byte stream is chunked into
// 8-byte CAN data frames on a fixed transmit arbitration ID and
// reassembled from a fixed receive arbitration ID; this is a convenience
// transport for links where a CAN bus is the only medium available, not an
// ISO-TP stack.
package can

import (
	"sync"
	"time"

	"github.com/gouuxi/uuxi"
	canbus "github.com/gouuxi/uuxi/pkg/can"
)

func init() {
	uuxi.RegisterPort("can", func(channel string) (uuxi.Port, error) {
		return Dial("socketcan", channel, DefaultTxID, DefaultRxID)
	})
}

// DefaultTxID and DefaultRxID are the arbitration IDs used when a caller
// registers this backend by name; construct a Port directly with Dial for
// any other pairing.
const (
	DefaultTxID uint32 = 0x7a0
	DefaultRxID uint32 = 0x7a8
)

// Port adapts a can.Bus into a byte stream by fragmenting writes into
// 8-byte frames tagged with txID and reassembling frames tagged with rxID
// into a read buffer.
type Port struct {
	bus  canbus.Bus
	txID uint32
	rxID uint32

	mu      sync.Mutex
	pending []byte
	notify  chan struct{} // closed and replaced each time pending grows
	closed  bool
}

// Dial opens the named can.Bus backend (e.g. "socketcan", "virtualcan") on
// the given channel and returns a Port that frames the byte stream over
// txID/rxID.
func Dial(backend, channel string, txID, rxID uint32) (*Port, error) {
	bus, err := canbus.NewBus(backend, channel, 0)
	if err != nil {
		return nil, err
	}
	p := &Port{bus: bus, txID: txID, rxID: rxID, notify: make(chan struct{})}
	if err := bus.Subscribe(p); err != nil {
		return nil, err
	}
	if err := bus.Connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// Handle implements can.FrameListener.
func (p *Port) Handle(frame canbus.Frame) {
	if frame.ID != p.rxID {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, frame.Data[:frame.DLC]...)
	old := p.notify
	p.notify = make(chan struct{})
	close(old)
	p.mu.Unlock()
}

func (p *Port) write(buf []byte) (int, error) {
	sent := 0
	for sent < len(buf) {
		var chunk [8]byte
		n := copy(chunk[:], buf[sent:])
		frame := canbus.Frame{ID: p.txID, DLC: uint8(n), Data: chunk}
		if err := p.bus.Send(frame); err != nil {
			return sent, err
		}
		sent += n
	}
	return sent, nil
}

func (p *Port) IO(send []byte, recv []byte) (sent int, received int, err error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, 0, uuxi.ErrPortClosed
	}
	sent, err = p.write(send)
	if err != nil {
		return sent, 0, err
	}
	received = p.drain(recv)
	return sent, received, nil
}

func (p *Port) drain(recv []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(recv, p.pending)
	p.pending = p.pending[n:]
	return n
}

func (p *Port) Read(recv []byte, min int, timeout time.Duration) (int, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		p.mu.Lock()
		have := len(p.pending)
		wake := p.notify
		closed := p.closed
		p.mu.Unlock()

		if have >= min || closed {
			break
		}
		select {
		case <-wake:
		case <-deadline:
			goto drain
		}
	}
drain:
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(recv, p.pending)
	p.pending = p.pending[n:]
	if n == 0 && p.closed {
		return 0, uuxi.ErrPortClosed
	}
	return n, nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	p.closed = true
	old := p.notify
	p.notify = make(chan struct{})
	close(old)
	p.mu.Unlock()
	return p.bus.Disconnect()
}

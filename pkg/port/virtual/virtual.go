// Package virtual provides an in-memory uuxi.Port pair for tests, modeled
// on the loopback/broker style of a virtual CAN bus but specialized to a
// plain byte stream with no external process required.
package virtual

import (
	"sync"
	"time"

	"github.com/gouuxi/uuxi"
)

// Transform mutates bytes in flight from one side to the other; tests use
// it to inject header corruption, payload corruption, or packet loss.
type Transform func(buf []byte) []byte

// Port is one end of an in-memory pipe.
type Port struct {
	mu      sync.Mutex
	cond    *sync.Cond
	inbox   []byte
	closed  bool
	peer    *Port
	onWrite Transform
}

// Pipe returns two connected Ports; bytes written to one are (after an
// optional transform) readable from the other.
func Pipe() (*Port, *Port) {
	a := &Port{}
	b := &Port{}
	a.cond = sync.NewCond(&a.mu)
	b.cond = sync.NewCond(&b.mu)
	a.peer = b
	b.peer = a
	return a, b
}

// SetTransform installs a function applied to every write this port sends
// to its peer, for simulating corruption or loss in tests.
func (p *Port) SetTransform(fn Transform) {
	p.onWrite = fn
}

func (p *Port) IO(send []byte, recv []byte) (sent int, received int, err error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, 0, uuxi.ErrPortClosed
	}
	if len(send) > 0 {
		p.writeToPeer(send)
		sent = len(send)
	}
	if len(recv) == 0 {
		return sent, 0, nil
	}
	received, err = p.Read(recv, 0, time.Millisecond)
	return sent, received, err
}

func (p *Port) writeToPeer(buf []byte) {
	out := buf
	if p.onWrite != nil {
		out = p.onWrite(append([]byte(nil), buf...))
	}
	if out == nil {
		return // transform dropped the packet
	}
	peer := p.peer
	peer.mu.Lock()
	peer.inbox = append(peer.inbox, out...)
	peer.cond.Broadcast()
	peer.mu.Unlock()
}

func (p *Port) Read(recv []byte, min int, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.inbox) < min && !p.closed {
		if timeout <= 0 {
			p.cond.Wait()
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		waitUntil(p.cond, remaining)
	}
	n := copy(recv, p.inbox)
	p.inbox = p.inbox[n:]
	if n == 0 && p.closed {
		return 0, uuxi.ErrPortClosed
	}
	return n, nil
}

// waitUntil wakes cond after at most d, whichever comes first.
func waitUntil(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}

func (p *Port) Close() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

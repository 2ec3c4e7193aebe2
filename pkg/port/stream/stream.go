// Package stream adapts any io.ReadWriter (a serial line, a pipe, a TCP
// connection) into a uuxi.Port.
package stream

import (
	"io"
	"time"

	"github.com/gouuxi/uuxi"
)

// deadlineConn is implemented by connections that support per-call read
// deadlines, e.g. net.Conn.
type deadlineConn interface {
	SetReadDeadline(t time.Time) error
}

// Port wraps rw as a uuxi.Port. If rw also implements deadlineConn, Read
// honors its timeout argument; otherwise the timeout is ignored and Read
// blocks until the underlying Read returns.
type Port struct {
	rw     io.ReadWriter
	closer io.Closer
	closed bool
}

// New wraps an existing io.ReadWriter. If rw implements io.Closer, Close
// forwards to it.
func New(rw io.ReadWriter) *Port {
	p := &Port{rw: rw}
	if c, ok := rw.(io.Closer); ok {
		p.closer = c
	}
	return p
}

func (p *Port) IO(send []byte, recv []byte) (sent int, received int, err error) {
	if p.closed {
		return 0, 0, uuxi.ErrPortClosed
	}
	if len(send) > 0 {
		sent, err = p.rw.Write(send)
		if err != nil {
			return sent, 0, err
		}
	}
	if len(recv) == 0 {
		return sent, 0, nil
	}
	received, err = p.rw.Read(recv)
	if err == io.EOF {
		return sent, received, nil
	}
	return sent, received, err
}

func (p *Port) Read(recv []byte, min int, timeout time.Duration) (int, error) {
	if p.closed {
		return 0, uuxi.ErrPortClosed
	}
	if dc, ok := p.rw.(deadlineConn); ok && timeout > 0 {
		_ = dc.SetReadDeadline(time.Now().Add(timeout))
	}
	total := 0
	for total < min {
		n, err := p.rw.Read(recv[total:])
		total += n
		if err != nil {
			if isTimeout(err) {
				return total, nil
			}
			if err == io.EOF {
				return total, err
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func (p *Port) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

type timeoutError interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	te, ok := err.(timeoutError)
	return ok && te.Timeout()
}

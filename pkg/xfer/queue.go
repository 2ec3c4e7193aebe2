package xfer

import "bytes"

// CommandQueue reassembles NUL-terminated command strings out of whatever
// chunking the underlying data channel delivers them in (a command may
// span several GotData calls; each call completes at most one command, see
// Feed), and hands them out in arrival order. It has no transport or file-system
// knowledge; it is the pure accumulate/split half of layer C's command
// reassembly, used identically by both the caller and callee role.
type CommandQueue struct {
	partial []byte
	ready   [][]byte
}

// NewCommandQueue returns an empty queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Feed appends data, a single DATA packet's payload, to whatever command is
// already being assembled. A command is complete as soon as this payload
// contains a NUL byte; anything in data after that NUL is discarded, not
// buffered as the start of the next command — only a later Feed call may
// begin one, per the "we don't care about what comes after the null byte"
// rule a command payload is framed under.
func (q *CommandQueue) Feed(data []byte) {
	i := bytes.IndexByte(data, 0)
	if i < 0 {
		q.partial = append(q.partial, data...)
		return
	}
	cmd := make([]byte, 0, len(q.partial)+i)
	cmd = append(cmd, q.partial...)
	cmd = append(cmd, data[:i]...)
	q.ready = append(q.ready, cmd)
	q.partial = q.partial[:0]
}

// Pop removes and returns the oldest complete command, or ok=false if
// none is ready yet.
func (q *CommandQueue) Pop() (cmd []byte, ok bool) {
	if len(q.ready) == 0 {
		return nil, false
	}
	cmd = q.ready[0]
	q.ready = q.ready[1:]
	return cmd, true
}

// Len reports how many complete commands are waiting to be popped.
func (q *CommandQueue) Len() int {
	return len(q.ready)
}

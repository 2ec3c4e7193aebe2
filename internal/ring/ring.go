// Package ring implements the circular receive buffer shared between the
// port I/O layer and the packet engine. Producers (port reads) write into
// the contiguous free region; consumers (the framer) peek and advance
// without copying, since a frame's payload may straddle the wrap point.
package ring

// Ring is a fixed-capacity circular byte buffer. The invariant rstart ==
// rend means empty; one byte of capacity is always reserved so that state
// is never confused with full.
type Ring struct {
	buf    []byte
	rstart int
	rend   int
}

// New allocates a ring of the given capacity. Effective usable space is
// capacity-1 bytes, per the full/empty disambiguation invariant.
func New(capacity int) *Ring {
	if capacity < 2 {
		capacity = 2
	}
	return &Ring{buf: make([]byte, capacity)}
}

func (r *Ring) cap() int { return len(r.buf) }

// Empty reports whether the ring currently holds no bytes.
func (r *Ring) Empty() bool { return r.rstart == r.rend }

// Len returns the number of bytes currently buffered.
func (r *Ring) Len() int {
	n := r.rend - r.rstart
	if n < 0 {
		n += r.cap()
	}
	return n
}

// Free returns the number of bytes that can be written before the ring is
// full (one byte short of raw capacity, by invariant).
func (r *Ring) Free() int {
	return r.cap() - 1 - r.Len()
}

// WriteRegion returns the contiguous free region starting at rend, for a
// producer to fill directly. A wrapped free region requires two calls: fill
// the first, call Produce, then call WriteRegion again for the remainder.
func (r *Ring) WriteRegion() []byte {
	if r.rend >= r.rstart {
		end := r.cap()
		if r.rstart == 0 {
			end-- // preserve the one-byte gap when rstart is at 0
		}
		return r.buf[r.rend:end]
	}
	return r.buf[r.rend : r.rstart-1]
}

// Produce advances rend by n bytes written into the last WriteRegion.
func (r *Ring) Produce(n int) {
	r.rend = (r.rend + n) % r.cap()
}

// Write copies buf into the ring, wrapping as needed. Returns the number of
// bytes actually written (less than len(buf) only if the ring is full).
func (r *Ring) Write(buf []byte) int {
	written := 0
	for written < len(buf) && r.Free() > 0 {
		region := r.WriteRegion()
		if len(region) == 0 {
			break
		}
		n := copy(region, buf[written:])
		r.Produce(n)
		written += n
	}
	return written
}

// Peek returns up to n bytes starting at offset from rstart without
// consuming them, split into two slices if the requested range wraps.
// The second slice is empty unless the range straddles the wrap point.
func (r *Ring) Peek(offset, n int) (first, second []byte) {
	avail := r.Len() - offset
	if avail <= 0 {
		return nil, nil
	}
	if n > avail {
		n = avail
	}
	start := (r.rstart + offset) % r.cap()
	if start+n <= r.cap() {
		return r.buf[start : start+n], nil
	}
	firstLen := r.cap() - start
	return r.buf[start:r.cap()], r.buf[0 : n-firstLen]
}

// ByteAt returns the byte at offset from rstart. Caller must ensure offset
// < Len().
func (r *Ring) ByteAt(offset int) byte {
	return r.buf[(r.rstart+offset)%r.cap()]
}

// Advance consumes n bytes from the front of the ring.
func (r *Ring) Advance(n int) {
	r.rstart = (r.rstart + n) % r.cap()
}

// Reset empties the ring without zeroing its backing storage.
func (r *Ring) Reset() {
	r.rstart = 0
	r.rend = 0
}

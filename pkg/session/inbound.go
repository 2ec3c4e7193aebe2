package session

import (
	"time"

	"github.com/gouuxi/uuxi"
	"github.com/gouuxi/uuxi/internal/crc"
)

// Wait blocks until at least one packet is fully processed or an
// unrecoverable error occurs.
func (s *Session) Wait() error {
	return s.waitForPacket()
}

// Process drains whatever is already buffered in the ring without blocking
// for more; it is the non-blocking counterpart used by callers that poll.
func (s *Session) Process() error {
	_, err := s.drainRing()
	return err
}

// waitForPacket alternates between draining the ring and reading more bytes
// until the framer reports forward progress. On a port_read timeout it
// retransmits the oldest unacknowledged send, or NAKs the next expected
// sequence if everything already sent has been acknowledged.
func (s *Session) waitForPacket() error {
	retries := 0
	for {
		progressed, err := s.drainRing()
		if err != nil {
			return err
		}
		if progressed {
			return nil
		}

		need := s.needed()
		n, err := s.readMore(need, s.cfg.Timeout)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := s.onReadTimeout(); err != nil {
				return err
			}
			retries++
			if retries >= s.cfg.Retries {
				return uuxi.ErrRetriesExhausted
			}
			continue
		}
		if n < need {
			s.shortReads++
			if s.shortReads >= 2 {
				// A corrupted length field can make the framer wait
				// forever for bytes that will never arrive; force
				// progress by discarding the leading byte.
				s.ring.Advance(1)
				s.shortReads = 0
			}
		} else {
			s.shortReads = 0
		}
	}
}

func (s *Session) onReadTimeout() error {
	if uuxi.NextSeq(s.remoteAck) != s.sendSeq {
		return s.retransmitSlot(uuxi.NextSeq(s.remoteAck))
	}
	return s.sendNak(uuxi.NextSeq(s.recvSeq))
}

// readMore reads into the ring's current write region, requesting at least
// `need` bytes (capped to the contiguous free region and the ring's total
// free space).
func (s *Session) readMore(need int, timeout time.Duration) (int, error) {
	region := s.ring.WriteRegion()
	if len(region) == 0 {
		return 0, nil
	}
	want := need
	if want > len(region) {
		want = len(region)
	}
	if want < 1 {
		want = 1
	}
	n, err := s.port.Read(region, want, timeout)
	if err != nil {
		return n, err
	}
	s.ring.Produce(n)
	return n, nil
}

// needed computes how many more bytes the framer requires to make progress:
// enough to find an intro byte, assemble a header, or complete a payload
// plus trailing CRC.
func (s *Session) needed() int {
	n := s.ring.Len()
	if n == 0 {
		return uuxi.HeaderLen
	}
	introOffset := -1
	for i := 0; i < n; i++ {
		if s.ring.ByteAt(i) == uuxi.Intro {
			introOffset = i
			break
		}
	}
	if introOffset < 0 {
		return uuxi.HeaderLen
	}
	have := n - introOffset
	if have < uuxi.HeaderLen {
		return uuxi.HeaderLen - have
	}
	first, second := s.ring.Peek(introOffset, uuxi.HeaderLen)
	h, err := uuxi.DecodeHeader(combine(first, second))
	if err != nil {
		return 1
	}
	total := uuxi.HeaderLen
	if h.Length > 0 {
		total += int(h.Length) + uuxi.CRCLen
	}
	if have < total {
		return total - have
	}
	return 0
}

// drainRing runs the inbound framer over whatever is currently buffered,
// processing complete frames until none remain or more bytes are needed.
// progressed reports whether at least one frame was consumed.
func (s *Session) drainRing() (progressed bool, err error) {
	for {
		n := s.ring.Len()
		if n == 0 {
			return progressed, nil
		}

		// Step 1: intro search.
		if s.ring.ByteAt(0) != uuxi.Intro {
			off := -1
			for i := 0; i < n; i++ {
				if s.ring.ByteAt(i) == uuxi.Intro {
					off = i
					break
				}
			}
			if off < 0 {
				s.ring.Advance(n)
				return progressed, nil
			}
			s.ring.Advance(off)
			n -= off
		}

		// Step 2: header assembly.
		if n < uuxi.HeaderLen {
			return progressed, nil
		}
		hfirst, hsecond := s.ring.Peek(0, uuxi.HeaderLen)
		hdr := combine(hfirst, hsecond)
		h, decErr := uuxi.DecodeHeader(hdr)

		// Step 3: header validation.
		peerIsCaller := !s.isCaller
		if decErr != nil || !uuxi.CheckByteValid(hdr) || h.Caller != peerIsCaller {
			s.cnt.badHeader++
			s.ring.Advance(1)
			progressed = true
			continue
		}

		sequenced := h.Type == uuxi.TypeData || h.Type == uuxi.TypeSpos || h.Type == uuxi.TypeClose

		// Step 4: sequence-window check (DATA/SPOS/CLOSE only).
		if sequenced && uuxi.DiffSeq(h.Seq, s.localAck) >= uint8(s.cfg.Window) {
			s.cnt.badOrder++
			s.ring.Advance(1)
			progressed = true
			continue
		}

		total := uuxi.HeaderLen
		if h.Length > 0 {
			total += int(h.Length) + uuxi.CRCLen
		}
		if n < total {
			return progressed, nil
		}

		// Step 5: payload assembly and CRC verification.
		var payloadFirst, payloadSecond []byte
		if h.Length > 0 {
			payloadFirst, payloadSecond = s.ring.Peek(uuxi.HeaderLen, int(h.Length))
			cfirst, csecond := s.ring.Peek(uuxi.HeaderLen+int(h.Length), uuxi.CRCLen)
			want := crc.Decode(combine(cfirst, csecond))
			got := crc.SumSplit(payloadFirst, payloadSecond)
			if want != got {
				s.cnt.badChecksum++
				_ = s.sendNak(h.Seq)
				s.ring.Advance(1)
				progressed = true
				continue
			}
		}

		// Step 6: accept.
		s.ring.Advance(total)
		progressed = true
		s.cnt.received++
		if h.Length > 0 {
			s.cnt.receivedPackets++
		}
		if inAckRange(h.Seq, s.remoteAck, s.sendSeq) {
			s.remoteAck = h.Ack
		}

		if err := s.checkErrorBudget(); err != nil {
			return progressed, err
		}

		// Steps 7-8: ordering and delivery.
		if sequenced {
			if err := s.acceptSequenced(h, payloadFirst, payloadSecond); err != nil {
				return progressed, err
			}
		} else {
			if err := s.deliver(h, payloadFirst, payloadSecond); err != nil {
				return progressed, err
			}
		}

		if s.peerClosed {
			return progressed, nil
		}
	}
}

// acceptSequenced implements the ordering rule for DATA/SPOS/CLOSE: deliver
// immediately if the packet is the next expected sequence (draining any
// buffered successors), otherwise buffer it and NAK the gap.
func (s *Session) acceptSequenced(h uuxi.Header, first, second []byte) error {
	if h.Seq == s.recvSeq {
		return nil // duplicate of the last delivered sequence
	}
	if h.Seq == uuxi.NextSeq(s.recvSeq) {
		s.recvSeq = h.Seq
		s.naked[h.Seq] = false
		if err := s.deliver(h, first, second); err != nil {
			return err
		}
		for {
			nxt := uuxi.NextSeq(s.recvSeq)
			slot := &s.recvBufs[nxt]
			if !slot.occupied {
				break
			}
			s.recvSeq = nxt
			s.naked[nxt] = false
			hh := slot.header
			payload := slot.payload
			slot.occupied = false
			slot.payload = nil
			if err := s.deliver(hh, payload, nil); err != nil {
				return err
			}
		}
		s.maybeAck()
		return nil
	}

	slot := &s.recvBufs[h.Seq]
	if slot.occupied {
		return nil // duplicate out-of-order arrival
	}
	if uuxi.DiffSeq(h.Seq, s.localAck) >= uint8(s.cfg.Window) {
		return nil // out of window
	}
	slot.occupied = true
	slot.header = h
	slot.payload = combine(first, second)

	for i := uuxi.NextSeq(s.recvSeq); i != h.Seq; i = uuxi.NextSeq(i) {
		if !s.naked[i] {
			s.naked[i] = true
			if err := s.sendNak(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// maybeAck emits a standalone ACK only when the peer's window would
// otherwise fill without relief: diff(recv_seq, local_ack) >= remote_winsize/2.
func (s *Session) maybeAck() {
	if uuxi.DiffSeq(s.recvSeq, s.localAck) >= s.remoteWinsize/2 {
		_ = s.transmitControl(uuxi.TypeAck, 0, 0, nil)
		s.localAck = s.recvSeq
	}
}

// deliver dispatches an accepted frame to its packet-type handler. For
// DATA/SPOS/CLOSE, the caller (acceptSequenced) has already cleared the
// naked flag for this sequence.
func (s *Session) deliver(h uuxi.Header, first, second []byte) error {
	switch h.Type {
	case uuxi.TypeData:
		return s.handleData(h, first, second)
	case uuxi.TypeSync:
		return s.handleSync(first, second)
	case uuxi.TypeAck:
		return nil // piggy-back ack already consumed in step 6
	case uuxi.TypeNak:
		return s.handleNak(h)
	case uuxi.TypeSpos:
		return s.handleSpos(first, second)
	case uuxi.TypeClose:
		return s.handleClose()
	default:
		return nil
	}
}

func (s *Session) handleData(h uuxi.Header, first, second []byte) error {
	var exit bool
	err := s.upcall.GotData(first, second, h.LocalChan, h.RemoteChan, s.recvPos, &exit)
	s.recvPos += uint32(len(first) + len(second))
	return err
}

func (s *Session) handleSync(first, second []byte) error {
	packsize, winsize, err := uuxi.DecodeSyncPayload(combine(first, second))
	if err != nil {
		return err
	}
	if s.cfg.RemotePacketSize != 0 {
		packsize = s.cfg.RemotePacketSize
	}
	if s.cfg.RemoteWindow != 0 {
		winsize = s.cfg.RemoteWindow
	}
	s.remotePacksize = packsize
	s.remoteWinsize = winsize
	s.syncObserved = true
	return nil
}

func (s *Session) handleNak(h uuxi.Header) error {
	s.cnt.remoteRejects++
	return s.retransmitSlot(h.Seq)
}

func (s *Session) handleSpos(first, second []byte) error {
	off, err := uuxi.DecodeSposPayload(combine(first, second))
	if err != nil {
		return err
	}
	s.recvPos = off
	return nil
}

func (s *Session) handleClose() error {
	s.peerClosed = true
	if !s.closing {
		s.state = Closed
	}
	return nil
}

func (s *Session) retransmitSlot(seq uint8) error {
	slot := &s.sendBufs[seq]
	if !slot.inUse || len(slot.raw) == 0 {
		return nil
	}
	s.restampAck(slot.raw)
	return s.transmitRaw(slot.raw)
}

// checkErrorBudget implements §4.B's ficheck_errors formula.
func (s *Session) checkErrorBudget() error {
	total := s.cnt.badOrder + s.cnt.badHeader + s.cnt.badChecksum + s.cnt.remoteRejects
	forgiven := 0
	if s.cfg.ErrorDecay > 0 {
		forgiven = s.cnt.receivedPackets / s.cfg.ErrorDecay
	}
	if total-forgiven > s.cfg.Errors {
		return uuxi.ErrBudgetExceeded
	}
	return nil
}

// inAckRange reports whether seq falls in the open interval (lo, hi) of the
// mod-32 sequence space, i.e. whether accepting a frame with this sequence
// number justifies advancing remote_ack.
func inAckRange(seq, lo, hi uint8) bool {
	d := uuxi.DiffSeq(seq, lo)
	span := uuxi.DiffSeq(hi, lo)
	return d > 0 && d < span
}

// combine copies one or two (possibly empty) slices into one contiguous
// buffer.
func combine(first, second []byte) []byte {
	buf := make([]byte, 0, len(first)+len(second))
	buf = append(buf, first...)
	buf = append(buf, second...)
	return buf
}

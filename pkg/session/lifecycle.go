package session

import (
	"github.com/gouuxi/uuxi"
	"github.com/sirupsen/logrus"
)

// minPacketSize is the floor for the packet-size halving retried during
// buffer allocation at startup.
const minPacketSize = 200

// maxSendBufferBudget bounds the total bytes committed to the 32 send
// slots. A garbage-collected runtime has no direct equivalent of the
// original's malloc failure, so a configured budget stands in for it: if
// 32 buffers at the requested size would exceed it, halve and retry, same
// as the original's allocation-failure path.
const maxSendBufferBudget = 1 << 20 // 1 MiB

// Start performs the SYNC handshake. It transmits a SYNC packet advertising
// the locally requested packet/window size, and polls for an inbound SYNC,
// retransmitting every SyncTimeout until SyncRetries is exhausted.
func (s *Session) Start() error {
	s.logf(logrus.InfoLevel, "starting sync handshake, caller=%v", s.isCaller)

	if err := s.sendSync(); err != nil {
		return err
	}

	attempts := 0
	for {
		n, err := s.waitForSync()
		if err != nil {
			return err
		}
		if n {
			break
		}
		attempts++
		if attempts >= s.cfg.SyncRetries {
			s.logf(logrus.ErrorLevel, "sync handshake failed after %d retries", attempts)
			return uuxi.ErrSyncFailed
		}
		if err := s.sendSync(); err != nil {
			return err
		}
	}

	if err := s.allocateSendBuffers(); err != nil {
		return err
	}

	s.state = Established
	s.logf(logrus.InfoLevel, "established: remote_packsize=%d remote_winsize=%d", s.remotePacksize, s.remoteWinsize)
	return nil
}

// sendSync transmits a SYNC packet advertising our requested packet/window
// size.
func (s *Session) sendSync() error {
	payload := uuxi.EncodeSyncPayload(s.cfg.PacketSize, s.cfg.Window)
	return s.transmitControl(uuxi.TypeSync, 0, 0, payload)
}

// waitForSync polls the ring for an inbound SYNC until one is observed or a
// single SyncTimeout window elapses. The observed-sync flag is set by the
// framer's SYNC handler.
func (s *Session) waitForSync() (bool, error) {
	s.syncObserved = false
	deadline := s.cfg.SyncTimeout
	for {
		consumed, err := s.drainRing()
		if err != nil {
			return false, err
		}
		if s.syncObserved {
			return true, nil
		}
		if !consumed {
			n, err := s.readMore(uuxi.HeaderLen, deadline)
			if err != nil {
				return false, err
			}
			if n == 0 {
				return false, nil // timeout: caller retries or gives up
			}
		}
	}
}

// allocateSendBuffers sizes the 32 retransmit slots from the negotiated
// remote packet size, honoring any configured override, halving on
// "allocation failure" down to minPacketSize.
func (s *Session) allocateSendBuffers() error {
	size := s.remotePacksize
	if s.cfg.RemotePacketSize != 0 {
		size = s.cfg.RemotePacketSize
	}
	if s.cfg.RemoteWindow != 0 {
		s.remoteWinsize = s.cfg.RemoteWindow
	}

	for {
		full := uuxi.HeaderLen + int(size) + uuxi.CRCLen
		if full*32 <= maxSendBufferBudget {
			for i := range s.sendBufs {
				s.sendBufs[i] = sendSlot{raw: make([]byte, 0, full)}
			}
			s.remotePacksize = size
			return nil
		}
		if size <= minPacketSize {
			return uuxi.ErrOutOfMemory
		}
		size /= 2
		if size < minPacketSize {
			size = minPacketSize
		}
		s.logf(logrus.WarnLevel, "send buffer allocation too large, halving to %d", size)
	}
}

// Shutdown marks the session closing, transmits a zero-payload CLOSE
// packet, logs counters, and resets configurable parameters to defaults.
func (s *Session) Shutdown() error {
	if s.state == Closed {
		return nil
	}
	s.closing = true
	s.state = Closing

	err := s.transmitData(uuxi.TypeClose, 0, 0, nil)

	s.logf(logrus.InfoLevel,
		"shutdown counters: sent=%d received=%d bad_order=%d bad_header=%d bad_checksum=%d remote_rejects=%d",
		s.cnt.sent, s.cnt.received, s.cnt.badOrder, s.cnt.badHeader, s.cnt.badChecksum, s.cnt.remoteRejects)

	s.cfg = DefaultConfig()
	s.state = Closed
	return err
}

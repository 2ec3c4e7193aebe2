package session

import (
	"github.com/gouuxi/uuxi"
	"github.com/gouuxi/uuxi/internal/crc"
	"github.com/sirupsen/logrus"
)

// NoFilePos re-exports uuxi.NoFilePos: the "don't care" sentinel for
// SendData's filePos argument, meaning no SPOS packet is emitted
// regardless of the session's current send_pos.
const NoFilePos = uuxi.NoFilePos

// GetSpace returns a scratch buffer sized to the negotiated remote packet
// size; the caller fills some prefix of it and passes that prefix to
// SendData.
func (s *Session) GetSpace() []byte {
	return make([]byte, s.remotePacksize)
}

// SendData transmits one DATA packet carrying payload (len(payload) may be
// 0 to signal EOF). If filePos differs from the session's send_pos and is
// not NoFilePos, an SPOS packet carrying the new offset is emitted first,
// taking the next sequence number; payload then goes out under the
// sequence number after that.
func (s *Session) SendData(payload []byte, localChan, remoteChan uint8, filePos int64) error {
	uuxi.CheckInvariant(localChan <= uuxi.MaxChannel && remoteChan <= uuxi.MaxChannel,
		"SendData: localChan %d remoteChan %d", localChan, remoteChan)
	if s.state != Established {
		return uuxi.ErrInvalidState
	}
	if filePos != NoFilePos && uint32(filePos) != s.sendPos {
		if err := s.sendSpos(uint32(filePos), localChan, remoteChan); err != nil {
			return err
		}
		s.sendPos = uint32(filePos)
	}

	if err := s.waitForWindow(); err != nil {
		return err
	}

	if err := s.transmitData(uuxi.TypeData, localChan, remoteChan, payload); err != nil {
		return err
	}
	s.sendPos += uint32(len(payload))

	// Opportunistically drain any buffered inbound packets.
	if _, err := s.drainRing(); err != nil {
		return err
	}
	return nil
}

// SendCmd sends str (already NUL-terminated by the caller) as one or more
// DATA packets; the final packet carries the trailing NUL.
func (s *Session) SendCmd(str []byte, localChan, remoteChan uint8) error {
	packetSize := int(s.remotePacksize)
	if packetSize == 0 {
		packetSize = uuxi.MaxPayload
	}
	for off := 0; off < len(str); off += packetSize {
		end := off + packetSize
		if end > len(str) {
			end = len(str)
		}
		if err := s.SendData(str[off:end], localChan, remoteChan, NoFilePos); err != nil {
			return err
		}
	}
	if len(str) == 0 {
		return s.SendData(nil, localChan, remoteChan, NoFilePos)
	}
	return nil
}

// sendSpos emits an SPOS packet carrying the new absolute offset.
func (s *Session) sendSpos(offset uint32, localChan, remoteChan uint8) error {
	return s.transmitData(uuxi.TypeSpos, localChan, remoteChan, uuxi.EncodeSposPayload(offset))
}

// waitForWindow blocks while the number of un-acked outstanding packets
// exceeds the negotiated remote window.
func (s *Session) waitForWindow() error {
	for uuxi.DiffSeq(s.sendSeq, s.remoteAck) > s.remoteWinsize {
		if err := s.waitForPacket(); err != nil {
			return err
		}
	}
	return nil
}

// transmitData stamps, CRCs, and sends one sequence-numbered packet (DATA,
// SPOS or CLOSE), storing it in its send slot for retransmission, then advances
// send_seq.
func (s *Session) transmitData(typ uuxi.PacketType, localChan, remoteChan uint8, payload []byte) error {
	seq := s.sendSeq
	raw := s.buildFrame(typ, seq, localChan, remoteChan, payload)

	slot := &s.sendBufs[seq]
	slot.raw = raw
	slot.inUse = true

	if err := s.transmitRaw(raw); err != nil {
		return err
	}
	s.sendSeq = uuxi.NextSeq(s.sendSeq)
	s.localAck = s.recvSeq
	s.cnt.sent++
	return nil
}

// transmitControl sends an unsequenced control packet (SYNC or ACK) that
// does not consume a sequence number and is never retransmitted from a
// slot.
func (s *Session) transmitControl(typ uuxi.PacketType, localChan, remoteChan uint8, payload []byte) error {
	raw := s.buildFrame(typ, 0, localChan, remoteChan, payload)
	return s.transmitRaw(raw)
}

// sendNak emits a NAK whose sequence field names the sequence being
// negatively acknowledged.
func (s *Session) sendNak(seq uint8) error {
	raw := s.buildFrame(uuxi.TypeNak, seq, 0, 0, nil)
	return s.transmitRaw(raw)
}

// buildFrame serializes a full wire frame: header, payload, trailing CRC.
// The remote field always carries the freshest recv_seq, per §5's ordering
// guarantee that any outbound packet observes the most recent recv_seq at
// the instant of transmission.
func (s *Session) buildFrame(typ uuxi.PacketType, seq, localChan, remoteChan uint8, payload []byte) []byte {
	h := uuxi.Header{
		Seq:        seq,
		LocalChan:  localChan,
		Ack:        s.recvSeq,
		RemoteChan: remoteChan,
		Type:       typ,
		Caller:     s.isCaller,
		Length:     uint16(len(payload)),
	}
	header := uuxi.EncodeHeader(h)

	raw := make([]byte, 0, uuxi.HeaderLen+len(payload)+uuxi.CRCLen)
	raw = append(raw, header[:]...)
	raw = append(raw, payload...)
	if len(payload) > 0 {
		sum := crc.Encode(crc.Sum(payload))
		raw = append(raw, sum[:]...)
	}
	return raw
}

// restampAck refreshes a stored retransmit slot's remote-ack field and
// check byte to the current recv_seq before resending, per the NAK and
// timeout-retransmit handlers.
func (s *Session) restampAck(raw []byte) {
	if len(raw) < uuxi.HeaderLen {
		return
	}
	h, err := uuxi.DecodeHeader(raw)
	if err != nil {
		return
	}
	h.Ack = s.recvSeq
	fresh := uuxi.EncodeHeader(h)
	copy(raw[:uuxi.HeaderLen], fresh[:])
}

// transmitRaw writes a fully stamped frame to the port.
func (s *Session) transmitRaw(raw []byte) error {
	_, _, err := s.port.IO(raw, nil)
	if err != nil {
		s.logf(logrus.ErrorLevel, "port write failed: %v", err)
	}
	return err
}

// Package session implements the 'i' sliding-window transport protocol: a
// single-threaded, cooperative packet engine that frames, CRCs, windows,
// orders, retransmits, and multiplexes logical channels over a uuxi.Port.
package session

import (
	"fmt"
	"time"

	"github.com/gouuxi/uuxi"
	"github.com/gouuxi/uuxi/internal/ring"
	"github.com/sirupsen/logrus"
)

// State is a session's position in its lifecycle.
type State int

const (
	Starting State = iota
	Established
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Established:
		return "established"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds the negotiable parameters named in §6, all overridable.
type Config struct {
	PacketSize       uint16        // requested packet size, default 1024
	Window           uint8         // requested window, default 16
	RemotePacketSize uint16        // override, 0 = negotiate
	RemoteWindow     uint8         // override, 0 = negotiate
	SyncTimeout      time.Duration // default 10s
	SyncRetries      int           // default 6
	Timeout          time.Duration // per-packet timeout, default 10s
	Retries          int           // default 6
	Errors           int           // error budget, default 100
	ErrorDecay       int           // successful packets per forgiven error, default 10
}

// DefaultConfig returns the parameters named in §6 at their defaults.
func DefaultConfig() Config {
	return Config{
		PacketSize:  1024,
		Window:      16,
		SyncTimeout: 10 * time.Second,
		SyncRetries: 6,
		Timeout:     10 * time.Second,
		Retries:     6,
		Errors:      100,
		ErrorDecay:  10,
	}
}

// sendSlot is one of the 32 per-sequence retransmit buffers. raw holds the
// fully stamped wire bytes (header + payload + CRC) last transmitted for
// this sequence number.
type sendSlot struct {
	raw    []byte
	header uuxi.Header
	inUse  bool
}

// recvSlot holds an out-of-order packet awaiting in-order delivery.
type recvSlot struct {
	occupied bool
	header   uuxi.Header
	payload  []byte
}

// counters tallies the figures referenced by the error budget and the
// counters logged at shutdown.
type counters struct {
	sent            int
	received        int
	badOrder        int
	badHeader       int
	badChecksum     int
	remoteRejects   int
	receivedPackets int
}

// Session is one 'i' protocol connection. All state is owned exclusively by
// the goroutine driving it; there is no internal locking because the
// protocol itself is single-threaded and cooperative (concurrent sessions
// are independent Session values run by independent goroutines).
type Session struct {
	port     uuxi.Port
	upcall   uuxi.Upcall
	cfg      Config
	isCaller bool
	log      *logrus.Entry

	state State

	sendSeq   uint8
	recvSeq   uint8
	localAck  uint8
	remoteAck uint8
	sendPos   uint32
	recvPos   uint32
	closing   bool

	remotePacksize uint16
	remoteWinsize  uint8

	sendBufs [32]sendSlot
	recvBufs [32]recvSlot
	naked    [32]bool

	ring *ring.Ring

	cnt counters

	syncObserved bool // set by the SYNC handler, consumed by waitForSync
	peerClosed   bool // set by the CLOSE handler whenever a CLOSE arrives
	shortReads   int  // consecutive short port_read calls, for the escape hatch
}

// New constructs a Session bound to port, delivering in-order data to
// upcall. isCaller identifies which side of the caller-flag convention this
// session occupies; it must agree with the peer's opposite value.
func New(port uuxi.Port, upcall uuxi.Upcall, isCaller bool, cfg Config, log *logrus.Entry) *Session {
	if cfg.PacketSize == 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		port:      port,
		upcall:    upcall,
		cfg:       cfg,
		isCaller:  isCaller,
		log:       log,
		state:     Starting,
		sendSeq:   1,
		recvSeq:   0,
		ring:      ring.New(ringCapacity(cfg)),
	}
}

// ringCapacity sizes the shared receive ring at least 2x a full packet
// (header + the configured PacketSize, or MaxPayload if that is unset or
// larger, + CRC trailer) per §4.A.
func ringCapacity(cfg Config) int {
	packetSize := int(cfg.PacketSize)
	if packetSize == 0 || packetSize > uuxi.MaxPayload {
		packetSize = uuxi.MaxPayload
	}
	full := uuxi.HeaderLen + packetSize + uuxi.CRCLen
	return 2*full + 64
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

func (s *Session) tag() string {
	return fmt.Sprintf("[%s][seq=%d][ack=%d]", s.state, s.sendSeq, s.remoteAck)
}

// logf mirrors the teacher's bracketed-tag logging convention.
func (s *Session) logf(level logrus.Level, format string, args ...any) {
	s.log.Logf(level, "%s "+format, append([]any{s.tag()}, args...)...)
}

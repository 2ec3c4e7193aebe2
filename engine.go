package uuxi

// NoFilePos is the "don't care" sentinel for Engine.SendData's filePos
// argument: no SPOS packet is emitted regardless of the engine's
// currently tracked send position.
const NoFilePos int64 = -1

// Upcall is layer C's receiver for inbound data delivered in order by the
// packet engine. It is the sole coupling surface from the engine (layer B)
// up to the command/transfer layer and core glue (layers C/D); nothing
// above this interface reaches into engine internals.
type Upcall interface {
	// GotData is called once per accepted DATA packet. The payload may be
	// split into two slices when the frame straddled the ring's wrap
	// point; either may be empty. A zero-length payload signals EOF for
	// the channel's current file. exit may be set true by the callee;
	// pkg/session's engine does not act on it, and its Wait returns once
	// the drain pass that delivered the packet has finished.
	GotData(first, second []byte, localChan, remoteChan uint8, recvPos uint32, exit *bool) error
}

// Engine is the protocol vtable described in the design notes: a capability
// object exposing exactly the operations layer C is allowed to call on the
// packet engine. 'i' (pkg/session.Session) is the only implementor in this
// repository; other legacy protocols the original repo supports ('g', 'f',
// ...) share this interface but are out of scope here.
type Engine interface {
	// Start performs the SYNC handshake and transitions the engine to
	// Established.
	Start() error

	// Shutdown marks the session closing, transmits a CLOSE packet, and
	// releases protocol resources.
	Shutdown() error

	// SendCmd sends a NUL-terminated command string as one or more DATA
	// packets.
	SendCmd(str []byte, localChan, remoteChan uint8) error

	// GetSpace returns a scratch buffer sized to the negotiated remote
	// packet size for the caller to fill before calling SendData.
	GetSpace() []byte

	// SendData transmits one DATA packet, optionally preceded by an SPOS
	// packet if filePos differs from the engine's tracked send position.
	SendData(payload []byte, localChan, remoteChan uint8, filePos int64) error

	// Wait blocks until at least one packet is fully processed or an
	// unrecoverable error occurs.
	Wait() error

	// Process drains already-buffered inbound bytes without blocking.
	Process() error
}

// File is the opaque, externally supplied file handle layer C reads from
// and writes to: read/write/position only, per §1's scope boundary. Any
// io.ReadWriteSeeker plus io.Closer satisfies it, including *os.File.
type File interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

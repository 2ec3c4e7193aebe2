// Package core implements layer D's glue: the single uuxi.Upcall that
// routes inbound bytes either into an open receive file or into the
// command queue, and the send/receive/hangup procedures of layer C built
// on top of an uuxi.Engine and an xfer.Storage.
package core

import (
	"fmt"

	"github.com/gouuxi/uuxi"
	"github.com/gouuxi/uuxi/pkg/xfer"
	"github.com/sirupsen/logrus"
)

// Core owns the one file handle active at a time for the channel pair it
// drives, and the reassembled command queue; it is the sole uuxi.Upcall
// for its engine.
type Core struct {
	engine uuxi.Engine
	store  xfer.Storage
	log    *logrus.Entry

	queue *xfer.CommandQueue

	recvFile   uuxi.File
	recvActive bool
	recvBytes  int64

	lastGotDataWasEOF bool
}

// New returns a Core driving engine, resolving storage policy through
// store, for a handle that satisfies uuxi.Upcall once passed to whatever
// wires up the engine (the caller constructs the Engine with this Core,
// or assigns it post hoc, depending on the transport's construction
// order).
func New(engine uuxi.Engine, store xfer.Storage, log *logrus.Entry) *Core {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Core{
		engine: engine,
		store:  store,
		log:    log.WithField("component", "core"),
		queue:  xfer.NewCommandQueue(),
	}
}

// GotData implements uuxi.Upcall. While a receive file is open, payload
// bytes are written at recvPos; a zero-length payload is layer B's EOF
// signal and closes out the transfer. Otherwise payload is command text
// and is fed to the command queue for GetCmd to dequeue.
func (c *Core) GotData(first, second []byte, localChan, remoteChan uint8, recvPos uint32, exit *bool) error {
	if !c.recvActive {
		// first and second are the two halves of one ring-split packet
		// payload; they must be fed as a single payload so a NUL landing
		// in either half discards the rest of this same payload, not just
		// the half it falls in.
		if len(second) == 0 {
			c.queue.Feed(first)
		} else {
			payload := make([]byte, 0, len(first)+len(second))
			payload = append(payload, first...)
			payload = append(payload, second...)
			c.queue.Feed(payload)
		}
		return nil
	}
	uuxi.CheckInvariant(c.recvFile != nil, "GotData: receive active with no open file")
	if len(first) == 0 && len(second) == 0 {
		c.lastGotDataWasEOF = true
		*exit = true
		return nil
	}
	n, err := writeAt(c.recvFile, int64(recvPos), first, second)
	c.recvBytes += int64(n)
	return err
}

// writeAt positions f at offset and writes first then second, since
// uuxi.File exposes Seek+Write rather than WriteAt.
func writeAt(f uuxi.File, offset int64, first, second []byte) (int, error) {
	if _, err := f.Seek(offset, 0); err != nil {
		return 0, err
	}
	n1, err := f.Write(first)
	if err != nil {
		return n1, err
	}
	n2, err := f.Write(second)
	return n1 + n2, err
}

// GetCmd blocks until a complete command is available and returns it.
func (c *Core) GetCmd() ([]byte, error) {
	for {
		if cmd, ok := c.queue.Pop(); ok {
			return cmd, nil
		}
		if err := c.engine.Wait(); err != nil {
			return nil, err
		}
	}
}

// SetEngine binds the engine this Core drives. Construction is two-step
// because the engine (e.g. *session.Session) needs this Core as its
// uuxi.Upcall before it exists to be handed back here: build the Core
// with a nil engine, construct the engine with it as upcall, then call
// SetEngine.
func (c *Core) SetEngine(engine uuxi.Engine) {
	c.engine = engine
}

func (c *Core) sendCmd(cmd []byte, localChan, remoteChan uint8) error {
	return c.engine.SendCmd(cmd, localChan, remoteChan)
}

func failureMessage(kind string, reason uuxi.TransferFailure) string {
	switch {
	case kind == "S" && reason == uuxi.FailPermission:
		return "permission denied"
	case kind == "R" && reason == uuxi.FailPermission:
		return "no such file"
	case reason == uuxi.FailOpen:
		return "cannot open file"
	case reason == uuxi.FailSize:
		return "file too large"
	default:
		return "transfer failed"
	}
}

func (c *Core) fail(kind, path string, reason uuxi.TransferFailure) error {
	c.store.Failed(path, reason)
	return fmt.Errorf("can't %s %s: %s", verbFor(kind), path, failureMessage(kind, reason))
}

func verbFor(kind string) string {
	if kind == "R" {
		return "receive"
	}
	return "send"
}

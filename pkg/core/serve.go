package core

import (
	"github.com/gouuxi/uuxi"
	"github.com/gouuxi/uuxi/pkg/xfer"
)

// Dispatcher decides how this side reacts to a request it did not
// initiate: whether to honor a peer's S/R/X, and whether to confirm a
// hangup. Permission checks and queue/work selection are the outer
// work-request scheduler's job, out of scope here; Dispatcher is the
// seam Serve calls through to reach that policy.
type Dispatcher interface {
	// AcceptSend decides whether to honor a peer's R request (they want
	// us to send req.From); ok=false yields a reasoned RN.
	AcceptSend(req xfer.ReceiveRequest) (ok bool, reason uuxi.TransferFailure, mode uint32)

	// AcceptReceive decides whether to honor a peer's S request (they
	// want to send req.To to us); ok=false yields a reasoned SN.
	AcceptReceive(req xfer.SendRequest) (ok bool, reason uuxi.TransferFailure)

	// AcceptXfer decides whether to honor a peer's X request.
	AcceptXfer(req xfer.XferRequest) bool

	// AcceptHangup decides whether to confirm an inbound hangup request.
	AcceptHangup() bool
}

// DenyAll is a Dispatcher that refuses every inbound request and
// confirms every hangup; a safe default to embed and override.
type DenyAll struct{}

func (DenyAll) AcceptSend(xfer.ReceiveRequest) (bool, uuxi.TransferFailure, uint32) {
	return false, uuxi.FailPermission, 0
}
func (DenyAll) AcceptReceive(xfer.SendRequest) (bool, uuxi.TransferFailure) {
	return false, uuxi.FailPermission
}
func (DenyAll) AcceptXfer(xfer.XferRequest) bool { return false }
func (DenyAll) AcceptHangup() bool               { return true }

// Serve runs the inbound command dispatch loop: each complete command is
// parsed by kind and routed to the matching accept procedure, until a
// confirmed hangup ends the session (returning nil) or GetCmd errors.
func (c *Core) Serve(d Dispatcher) error {
	for {
		line, err := c.GetCmd()
		if err != nil {
			return err
		}
		switch xfer.Token(line) {
		case "S":
			req, perr := xfer.ParseSendRequest(line)
			if perr != nil {
				c.log.Errorf("bad S request: %v", perr)
				continue
			}
			if err := c.serveSend(d, req); err != nil {
				return err
			}
		case "R":
			req, perr := xfer.ParseReceiveRequest(line)
			if perr != nil {
				c.log.Errorf("bad R request: %v", perr)
				continue
			}
			if err := c.serveReceive(d, req); err != nil {
				return err
			}
		case "X":
			req, perr := xfer.ParseXferRequest(line)
			if perr != nil {
				c.log.Errorf("bad X request: %v", perr)
				continue
			}
			ok := d.AcceptXfer(req)
			if err := c.sendCmd(xfer.XferResponse{OK: ok}.Encode(), 0, 0); err != nil {
				return err
			}
		case "H":
			confirm := d.AcceptHangup()
			if err := c.AcceptHangup(confirm); err != nil {
				return err
			}
			if confirm {
				return nil
			}
		default:
			c.log.Warnf("unrecognized command %q", line)
		}
	}
}

func (c *Core) serveSend(d Dispatcher, req xfer.SendRequest) error {
	ok, reason := d.AcceptReceive(req)
	if !ok {
		return c.sendCmd(xfer.SendResponse{OK: false, Reason: reason}.Encode(), 0, 0)
	}
	return c.AcceptReceive(req, 0, 0)
}

func (c *Core) serveReceive(d Dispatcher, req xfer.ReceiveRequest) error {
	ok, reason, mode := d.AcceptSend(req)
	if !ok {
		return c.sendCmd(xfer.ReceiveResponse{OK: false, Reason: reason}.Encode(), 0, 0)
	}
	return c.AcceptSend(req, mode)
}

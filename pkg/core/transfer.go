package core

import (
	"fmt"

	"github.com/gouuxi/uuxi"
	"github.com/gouuxi/uuxi/pkg/xfer"
)

// RequestSend implements the master-initiated send-file procedure of
// §4.C: send S, await SY/SN, stream the file, then await the peer's
// placement confirmation (CY/CN5).
func (c *Core) RequestSend(req xfer.SendRequest, localChan, remoteChan uint8) error {
	if err := c.sendCmd(req.Encode(), localChan, remoteChan); err != nil {
		return err
	}
	line, err := c.GetCmd()
	if err != nil {
		return err
	}
	resp, err := xfer.ParseSendResponse(line)
	if err != nil {
		return err
	}
	if !resp.OK {
		return c.fail("S", req.From, resp.Reason)
	}
	return c.runSendLoop(req.From, localChan, remoteChan)
}

// AcceptReceive implements the slave side of an inbound S request: the
// remote wants to send us req.To, so we reply SY and run the receive
// loop into a temporary file, then send a placement confirmation.
func (c *Core) AcceptReceive(req xfer.SendRequest, localChan, remoteChan uint8) error {
	if err := c.sendCmd(xfer.SendResponse{OK: true}.Encode(), localChan, remoteChan); err != nil {
		return err
	}
	return c.runReceiveLoop(req.To, 0, localChan, remoteChan)
}

// RequestReceive implements the master-initiated receive-file procedure
// of §4.C: send R, await RY<mode>/RN (mode 0 meaning "use default
// 0666"), receive the file, then send a placement confirmation.
func (c *Core) RequestReceive(req xfer.ReceiveRequest, localChan, remoteChan uint8) error {
	if err := c.sendCmd(req.Encode(), localChan, remoteChan); err != nil {
		return err
	}
	line, err := c.GetCmd()
	if err != nil {
		return err
	}
	resp, err := xfer.ParseReceiveResponse(line)
	if err != nil {
		return err
	}
	if !resp.OK {
		return c.fail("R", req.To, resp.Reason)
	}
	return c.runReceiveLoop(req.To, resp.Mode, localChan, remoteChan)
}

// AcceptSend implements the slave side of an inbound R request: the
// remote wants us to send req.From, so we reply RY 0mode and run the
// send loop, then await the peer's confirmation.
func (c *Core) AcceptSend(req xfer.ReceiveRequest, mode uint32) error {
	// localChan/remoteChan default to 0: Core drives one transfer at a
	// time on the channel pair its engine was constructed for.
	if err := c.sendCmd(xfer.ReceiveResponse{OK: true, Mode: mode}.Encode(), 0, 0); err != nil {
		return err
	}
	return c.runSendLoop(req.From, 0, 0)
}

// runSendLoop streams path out as a sequence of DATA packets followed by
// a zero-length EOF packet, then blocks for the receiver's placement
// confirmation.
func (c *Core) runSendLoop(path string, localChan, remoteChan uint8) error {
	f, size, err := c.store.OpenSend(path)
	if err != nil {
		return c.fail("S", path, uuxi.FailOpen)
	}
	defer f.Close()

	var pos int64
	for pos < size || size == 0 {
		buf := c.engine.GetSpace()
		n, err := f.Read(buf)
		if n > 0 {
			if err := c.engine.SendData(buf[:n], localChan, remoteChan, pos); err != nil {
				return err
			}
			pos += int64(n)
		}
		if err != nil {
			break // io.EOF or any other read error ends the loop; the latter surfaces via the confirm step
		}
		if n == 0 {
			break
		}
	}
	if err := c.engine.SendData(nil, localChan, remoteChan, uuxi.NoFilePos); err != nil {
		return err
	}
	return c.awaitConfirm(path)
}

// runReceiveLoop opens path (mode 0 meaning "default to 0666") and pumps
// the engine until GotData reports EOF, then commits the staged file and
// sends a placement confirmation.
func (c *Core) runReceiveLoop(path string, mode uint32, localChan, remoteChan uint8) error {
	f, err := c.store.OpenReceive(path, mode)
	if err != nil {
		c.sendCmd(xfer.ConfirmResponse{OK: false}.Encode(), localChan, remoteChan)
		return c.fail("R", path, uuxi.FailOpen)
	}
	c.recvFile = f
	c.recvActive = true
	c.recvBytes = 0
	c.lastGotDataWasEOF = false
	defer func() {
		c.recvActive = false
		c.recvFile = nil
	}()

	eof := false
	for !eof {
		if err := c.engine.Wait(); err != nil {
			f.Close()
			return err
		}
		eof = c.lastGotDataWasEOF
	}
	if err := f.Close(); err != nil {
		return err
	}
	c.log.Debugf("received %d bytes for %s", c.recvBytes, path)
	if err := c.store.CommitReceive(path, path); err != nil {
		c.sendCmd(xfer.ConfirmResponse{OK: false}.Encode(), localChan, remoteChan)
		return err
	}
	return c.sendCmd(xfer.ConfirmResponse{OK: true}.Encode(), localChan, remoteChan)
}

// awaitConfirm blocks for the peer's post-transfer placement status.
func (c *Core) awaitConfirm(path string) error {
	line, err := c.GetCmd()
	if err != nil {
		return err
	}
	resp, err := xfer.ParseConfirmResponse(line)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("remote could not place %s", path)
	}
	return nil
}

package core

import "github.com/gouuxi/uuxi/pkg/xfer"

// RequestHangup sends H and waits for the peer's response. HN is a plain
// denial (the caller tries again later); HY begins the three-message
// confirm exchange that ends in Shutdown.
func (c *Core) RequestHangup() error {
	if err := c.sendCmd(xfer.EncodeHangup(), 0, 0); err != nil {
		return err
	}
	line, err := c.GetCmd()
	if err != nil {
		return err
	}
	switch xfer.Token(line) {
	case "HN":
		return nil
	case "HY":
		return c.confirmHangup()
	default:
		c.log.Warnf("unexpected reply to hangup request: %q", line)
		return nil
	}
}

// confirmHangup is the initiator's second leg of the three-message HY
// exchange: having received the peer's first HY, echo one back, wait for
// its final HY, then shut the engine down. AcceptHangup supplies the
// mirror-image first leg on the side that received the original H.
func (c *Core) confirmHangup() error {
	if err := c.sendCmd(xfer.EncodeHangupYes(), 0, 0); err != nil {
		return err
	}
	line, err := c.GetCmd()
	if err != nil {
		return err
	}
	if xfer.Token(line) != "HY" {
		c.log.Errorf("expected final HY, got %q", line)
	}
	return c.engine.Shutdown()
}

// AcceptHangup is called once this side has decided whether to honor an
// inbound H request. Declining sends HN and the session continues.
// Confirming sends the first HY, waits for the initiator's echo, sends
// the closing HY, and shuts the engine down.
func (c *Core) AcceptHangup(confirm bool) error {
	if !confirm {
		return c.sendCmd(xfer.EncodeHangupNo(), 0, 0)
	}
	if err := c.sendCmd(xfer.EncodeHangupYes(), 0, 0); err != nil {
		return err
	}
	line, err := c.GetCmd()
	if err != nil {
		return err
	}
	if xfer.Token(line) != "HY" {
		c.log.Errorf("expected echoed HY, got %q", line)
	}
	if err := c.sendCmd(xfer.EncodeHangupYes(), 0, 0); err != nil {
		return err
	}
	return c.engine.Shutdown()
}

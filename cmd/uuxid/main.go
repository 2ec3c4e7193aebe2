// Command uuxid drives one UUCP 'i'-protocol session end to end: it
// dials a transport, negotiates the SYNC handshake, then either issues
// an S and/or R request and hangs up (caller role) or answers inbound
// requests with core.DenyAll, refusing every S/R/X and confirming hangup
// (callee role, the default).
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/gouuxi/uuxi"
	"github.com/gouuxi/uuxi/pkg/config"
	"github.com/gouuxi/uuxi/pkg/core"
	_ "github.com/gouuxi/uuxi/pkg/port/can"
	"github.com/gouuxi/uuxi/pkg/port/stream"
	"github.com/gouuxi/uuxi/pkg/session"
	"github.com/gouuxi/uuxi/pkg/xfer"
	"github.com/gouuxi/uuxi/pkg/xfer/localstore"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to an ini-format config file (defaults baked in if absent)")
		transport  = flag.String("transport", "stream", "port backend: stream (TCP dial) or can (socketcan)")
		channel    = flag.String("channel", "can0", "backend-specific dial target (e.g. socketcan interface name)")
		spoolDir   = flag.String("spool", ".", "local directory serving as the file store")
		caller     = flag.Bool("caller", false, "act as the calling side of the SYNC handshake")
		sendPath   = flag.String("send", "", "if set (caller only), request to send this file")
		recvPath   = flag.String("recv", "", "if set (caller only), request to receive this file")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	log := logrus.NewEntry(logrus.StandardLogger())
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg := session.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	port, err := dial(*transport, *channel)
	if err != nil {
		log.Fatalf("dialing %s transport on %q: %v", *transport, *channel, err)
	}

	store, err := localstore.New(*spoolDir, log)
	if err != nil {
		log.Fatalf("opening spool %q: %v", *spoolDir, err)
	}

	c := core.New(nil, store, log)
	sess := session.New(port, c, *caller, cfg, log)
	c.SetEngine(sess)

	if err := sess.Start(); err != nil {
		log.Fatalf("sync handshake: %v", err)
	}

	if !*caller {
		if err := c.Serve(core.DenyAll{}); err != nil {
			log.Fatalf("serve: %v", err)
		}
		return
	}

	if err := runCallerRequests(c, *sendPath, *recvPath); err != nil {
		log.Fatalf("%v", err)
	}
	if err := c.RequestHangup(); err != nil {
		log.Fatalf("hangup: %v", err)
	}
}

func runCallerRequests(c *core.Core, sendPath, recvPath string) error {
	if sendPath != "" {
		req := xfer.SendRequest{From: sendPath, To: sendPath, User: os.Getenv("USER"), Temp: "D.0", Mode: 0644}
		if err := c.RequestSend(req, 0, 0); err != nil {
			return fmt.Errorf("sending %s: %w", sendPath, err)
		}
	}
	if recvPath != "" {
		req := xfer.ReceiveRequest{From: recvPath, To: recvPath, User: os.Getenv("USER")}
		if err := c.RequestReceive(req, 0, 0); err != nil {
			return fmt.Errorf("receiving %s: %w", recvPath, err)
		}
	}
	return nil
}

// dial resolves the named transport into a uuxi.Port. "stream" treats
// channel as a "host:port" TCP dial target; every other name is looked
// up in the uuxi.Port backend registry (populated by the blank imports
// above).
func dial(transport, channel string) (uuxi.Port, error) {
	if transport == "stream" {
		conn, err := net.Dial("tcp", channel)
		if err != nil {
			return nil, err
		}
		return stream.New(conn), nil
	}
	return uuxi.NewPort(transport, channel)
}

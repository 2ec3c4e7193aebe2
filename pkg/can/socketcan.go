// Package can provides a small bus abstraction for links framed as CAN
// traffic, and a registry of named backends (mirroring the reference
// CANopen stack's pkg/can registry) so pkg/port/can can be dialed against
// either a real interface or an in-memory one without knowing which.
package can

import (
	brutella "github.com/brutella/can"
)

func init() {
	RegisterInterface("socketcan", NewSocketCANBus)
}

// socketCANBus adapts brutella/can's socketcan binding to Bus.
type socketCANBus struct {
	bus      *brutella.Bus
	listener FrameListener
}

// NewSocketCANBus opens the named socketcan interface (e.g. "can0"). The
// bitrate argument of NewBus is ignored: socketcan interfaces are
// configured out-of-band via `ip link`.
func NewSocketCANBus(channel string) (Bus, error) {
	bus, err := brutella.NewBusForInterfaceWithName(channel)
	if err != nil {
		return nil, err
	}
	return &socketCANBus{bus: bus}, nil
}

func (s *socketCANBus) Connect(...any) error {
	go s.bus.ConnectAndPublish()
	return nil
}

func (s *socketCANBus) Disconnect() error {
	return s.bus.Disconnect()
}

func (s *socketCANBus) Send(frame Frame) error {
	return s.bus.Publish(brutella.Frame{ID: frame.ID, Length: frame.DLC, Data: frame.Data})
}

func (s *socketCANBus) Subscribe(cb FrameListener) error {
	s.listener = cb
	s.bus.Subscribe(s)
	return nil
}

// Handle implements brutella/can's frame-received callback and forwards to
// the subscribed FrameListener.
func (s *socketCANBus) Handle(frame brutella.Frame) {
	if s.listener == nil {
		return
	}
	s.listener.Handle(Frame{ID: frame.ID, DLC: frame.Length, Data: frame.Data})
}

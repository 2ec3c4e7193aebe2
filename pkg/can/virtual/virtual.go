// Package virtual provides an in-memory can.Bus for tests: every frame
// Sent by one member of a named channel group is delivered to every other
// member's subscriber, with no broker process required. This mirrors the
// reference stack's virtual CAN bus but drops its TCP broker in favor of a
// plain in-process fan-out, since nothing here needs a separate server.
package virtual

import (
	"sync"

	"github.com/gouuxi/uuxi/pkg/can"
)

func init() {
	can.RegisterInterface("virtualcan", NewBus)
}

type group struct {
	mu      sync.Mutex
	members []*Bus
}

var groups = struct {
	mu sync.Mutex
	m  map[string]*group
}{m: make(map[string]*group)}

func joinGroup(channel string) *group {
	groups.mu.Lock()
	defer groups.mu.Unlock()
	g, ok := groups.m[channel]
	if !ok {
		g = &group{}
		groups.m[channel] = g
	}
	return g
}

// Bus is one member of a named in-memory CAN bus group.
type Bus struct {
	channel string
	group   *group

	mu       sync.Mutex
	listener can.FrameListener
}

// NewBus returns a Bus joining the named channel's group, creating the
// group on first use. Every Bus sharing a channel name sees every other
// member's frames once Connect has been called.
func NewBus(channel string) (can.Bus, error) {
	return &Bus{channel: channel, group: joinGroup(channel)}, nil
}

func (b *Bus) Connect(...any) error {
	b.group.mu.Lock()
	b.group.members = append(b.group.members, b)
	b.group.mu.Unlock()
	return nil
}

func (b *Bus) Disconnect() error {
	b.group.mu.Lock()
	defer b.group.mu.Unlock()
	for i, m := range b.group.members {
		if m == b {
			b.group.members = append(b.group.members[:i], b.group.members[i+1:]...)
			break
		}
	}
	return nil
}

// Send fans frame out to every other connected member of this bus's group.
func (b *Bus) Send(frame can.Frame) error {
	b.group.mu.Lock()
	members := append([]*Bus(nil), b.group.members...)
	b.group.mu.Unlock()

	for _, m := range members {
		if m == b {
			continue
		}
		m.mu.Lock()
		listener := m.listener
		m.mu.Unlock()
		if listener != nil {
			listener.Handle(frame)
		}
	}
	return nil
}

func (b *Bus) Subscribe(cb can.FrameListener) error {
	b.mu.Lock()
	b.listener = cb
	b.mu.Unlock()
	return nil
}

package outbound

import (
	"sync"

	"github.com/go-kit/log"

	"github.com/maxpoletaev/wire/message"
	"github.com/maxpoletaev/wire/nodes"
)

// MockChannel records written messages as text.
type MockChannel struct {
	mut     sync.Mutex
	id      nodes.ID
	address nodes.Address
	writes  []string
	closes  int
	broken  bool
	failing bool
}

func NewMockChannel(id nodes.ID, address nodes.Address) *MockChannel {
	return &MockChannel{id: id, address: address}
}

func (c *MockChannel) ID() nodes.ID {
	return c.id
}

func (c *MockChannel) Address() nodes.Address {
	return c.address
}

func (c *MockChannel) Write(msg message.RawMessage) int {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.failing {
		return 0
	}

	c.writes = append(c.writes, msg.AsText())

	return msg.Len()
}

func (c *MockChannel) Close() {
	c.mut.Lock()
	c.closes++
	c.mut.Unlock()
}

func (c *MockChannel) IsClosed() bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.closes > 0
}

func (c *MockChannel) IsBroken() bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.broken
}

func (c *MockChannel) SetBroken(broken bool) {
	c.mut.Lock()
	c.broken = broken
	c.mut.Unlock()
}

func (c *MockChannel) SetFailing(failing bool) {
	c.mut.Lock()
	c.failing = failing
	c.mut.Unlock()
}

func (c *MockChannel) Writes() []string {
	c.mut.Lock()
	defer c.mut.Unlock()

	return append([]string(nil), c.writes...)
}

func (c *MockChannel) Closes() int {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.closes
}

// MockChannelFactory creates mock channels and remembers all of them.
type MockChannelFactory struct {
	mut      sync.Mutex
	channels []*MockChannel
}

func (f *MockChannelFactory) New(node nodes.Node, address nodes.Address, _ log.Logger) ManagedChannel {
	ch := NewMockChannel(node.ID, address)

	f.mut.Lock()
	f.channels = append(f.channels, ch)
	f.mut.Unlock()

	return ch
}

func (f *MockChannelFactory) Created() []*MockChannel {
	f.mut.Lock()
	defer f.mut.Unlock()

	return append([]*MockChannel(nil), f.channels...)
}

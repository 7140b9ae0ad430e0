package channel

import (
	"context"
	"net"

	"github.com/maxpoletaev/wire/message"
)

// Consumer receives every complete message a reader pulls off its sockets. Messages of a
// single socket arrive in order; messages of different sockets may be consumed concurrently.
type Consumer interface {
	Consume(msg message.RawMessage)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(msg message.RawMessage)

func (f ConsumerFunc) Consume(msg message.RawMessage) {
	f(msg)
}

// Reader is a source of inbound messages. It does not run on its own: the owner is
// expected to call ProbeChannel periodically.
type Reader interface {
	Name() string
	Port() int
	OpenFor(consumer Consumer) error
	ProbeChannel()
	Close()
}

// Dialer opens outbound connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

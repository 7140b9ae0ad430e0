package outbound

import (
	"github.com/go-kit/log"

	"github.com/maxpoletaev/wire/message"
	"github.com/maxpoletaev/wire/nodes"
)

// ManagedChannel is an outbound channel to a single node.
type ManagedChannel interface {
	ID() nodes.ID
	Write(msg message.RawMessage) int
	Close()
	IsClosed() bool
	IsBroken() bool
}

// ChannelFactory creates a channel to the node at the given address.
type ChannelFactory func(node nodes.Node, address nodes.Address, logger log.Logger) ManagedChannel

package outbound

import (
	"github.com/go-kit/log"

	"github.com/maxpoletaev/wire/channel"
	"github.com/maxpoletaev/wire/nodes"
)

// SocketChannel binds a node id to a socket writer.
type SocketChannel struct {
	*channel.SocketWriter
	id nodes.ID
}

func NewSocketChannel(node nodes.Node, address nodes.Address, logger log.Logger, opts ...channel.WriterOption) *SocketChannel {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &SocketChannel{
		SocketWriter: channel.NewSocketWriter(address, log.With(logger, "node", node.ID), opts...),
		id:           node.ID,
	}
}

func (c *SocketChannel) ID() nodes.ID {
	return c.id
}

// SocketChannelFactory returns a factory of socket channels configured with the writer options.
func SocketChannelFactory(opts ...channel.WriterOption) ChannelFactory {
	return func(node nodes.Node, address nodes.Address, logger log.Logger) ManagedChannel {
		return NewSocketChannel(node, address, logger, opts...)
	}
}

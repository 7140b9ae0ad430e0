package outbound

import (
	"errors"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/maxpoletaev/wire/internal/multierror"
	"github.com/maxpoletaev/wire/message"
	"github.com/maxpoletaev/wire/nodes"
)

var (
	ErrNotDelivered = errors.New("message not delivered")
	ErrUnknownNode  = errors.New("no channel to node")
)

// Outbound sends messages to other nodes through the channels of a provider.
type Outbound struct {
	provider *Provider
	logger   log.Logger
}

func NewOutbound(provider *Provider, logger log.Logger) *Outbound {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Outbound{
		provider: provider,
		logger:   logger,
	}
}

// Open makes sure a channel to the node exists.
func (o *Outbound) Open(node nodes.Node) {
	o.provider.ChannelFor(node)
}

// Close closes the channel to the node.
func (o *Outbound) Close(id nodes.ID) {
	o.provider.CloseChannel(id)
}

// Broadcast sends the message to every node the provider has a channel to. The returned
// error lists the nodes the message was not delivered to.
func (o *Outbound) Broadcast(msg message.RawMessage) error {
	return o.send(msg, o.provider.AllOtherNodeChannels())
}

// BroadcastTo sends the message to the given nodes, opening channels as needed.
func (o *Outbound) BroadcastTo(msg message.RawMessage, list []nodes.Node) error {
	return o.send(msg, o.provider.ChannelsFor(list))
}

// SendTo sends the message to a node the provider already has a channel to.
func (o *Outbound) SendTo(msg message.RawMessage, id nodes.ID) error {
	ch, ok := o.provider.AllOtherNodeChannels()[id]
	if !ok {
		return ErrUnknownNode
	}

	if ch.Write(msg) == 0 {
		return ErrNotDelivered
	}

	return nil
}

func (o *Outbound) send(msg message.RawMessage, channels map[nodes.ID]ManagedChannel) error {
	errs := multierror.New[nodes.ID]()
	errg := errgroup.Group{}

	for id, ch := range channels {
		id, ch := id, ch

		errg.Go(func() error {
			if ch.Write(msg) == 0 {
				errs.Add(id, ErrNotDelivered)
			}

			return nil
		})
	}

	_ = errg.Wait()

	if err := errs.Ret(); err != nil {
		level.Warn(o.logger).Log("msg", "broadcast incomplete", "failed", errs.Len(), "total", len(channels), "err", err)
		return err
	}

	return nil
}

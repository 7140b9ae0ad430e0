package outbound

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/wire/nodes"
)

type ProviderOption func(p *Provider)

func WithChannelFactory(f ChannelFactory) ProviderOption {
	return func(p *Provider) {
		p.factory = f
	}
}

func WithLogger(logger log.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

type providerEntry struct {
	channel ManagedChannel
	// address the channel was created for.
	address nodes.Address
}

// Provider is the only owner of outbound channels. It maps node ids to channels on
// one address plane, creating them on demand and closing them when they go away.
type Provider struct {
	self        nodes.Node
	addressType nodes.AddressType
	factory     ChannelFactory
	logger      log.Logger

	mut      sync.RWMutex
	channels map[nodes.ID]providerEntry
}

// NewProvider creates a provider of channels to the addressType plane of remote nodes.
// By default, channels are socket channels with the default writer settings.
func NewProvider(self nodes.Node, addressType nodes.AddressType, opts ...ProviderOption) *Provider {
	p := &Provider{
		self:        self,
		addressType: addressType,
		factory:     SocketChannelFactory(),
		logger:      log.NewNopLogger(),
		channels:    make(map[nodes.ID]providerEntry),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = log.With(p.logger, "provider", addressType, "self", self.ID)

	return p
}

func (p *Provider) get(id nodes.ID, address nodes.Address) (ManagedChannel, bool) {
	p.mut.RLock()
	defer p.mut.RUnlock()

	entry, ok := p.channels[id]
	if !ok || !usable(entry, address) {
		return nil, false
	}

	return entry.channel, true
}

// usable is false for broken channels and for channels created for an address the
// node no longer has on this plane. Other node parts do not matter.
func usable(entry providerEntry, address nodes.Address) bool {
	return entry.address == address && !entry.channel.IsBroken()
}

// ChannelFor returns the channel to the node, creating it if needed. Concurrent calls
// for the same node id never create more than one channel.
func (p *Provider) ChannelFor(node nodes.Node) ManagedChannel {
	address := node.AddressOf(p.addressType)

	if ch, ok := p.get(node.ID, address); ok {
		return ch
	}

	p.mut.Lock()
	defer p.mut.Unlock()

	// Someone could have created the channel while we were waiting for the lock.
	if entry, ok := p.channels[node.ID]; ok {
		if usable(entry, address) {
			return entry.channel
		}

		level.Info(p.logger).Log("msg", "replacing channel", "node", node.ID,
			"old_addr", entry.address, "addr", address, "broken", entry.channel.IsBroken())
		entry.channel.Close()
	}

	ch := p.factory(node, address, p.logger)

	p.channels[node.ID] = providerEntry{
		channel: ch,
		address: address,
	}

	level.Debug(p.logger).Log("msg", "channel created", "node", node.ID, "addr", address)

	return ch
}

// ChannelsFor returns the channels to every given node.
func (p *Provider) ChannelsFor(list []nodes.Node) map[nodes.ID]ManagedChannel {
	channels := make(map[nodes.ID]ManagedChannel, len(list))

	for _, node := range list {
		channels[node.ID] = p.ChannelFor(node)
	}

	return channels
}

// AllOtherNodeChannels returns a snapshot of the existing channels, except the one to the local node.
func (p *Provider) AllOtherNodeChannels() map[nodes.ID]ManagedChannel {
	p.mut.RLock()
	defer p.mut.RUnlock()

	channels := make(map[nodes.ID]ManagedChannel, len(p.channels))

	for id, entry := range p.channels {
		if id != p.self.ID {
			channels[id] = entry.channel
		}
	}

	return channels
}

// CloseChannel closes and removes the channel to the node. No-op if there is none.
func (p *Provider) CloseChannel(id nodes.ID) {
	p.mut.Lock()
	entry, ok := p.channels[id]
	delete(p.channels, id)
	p.mut.Unlock()

	if ok {
		entry.channel.Close()
		level.Debug(p.logger).Log("msg", "channel closed", "node", id)
	}
}

// Forget closes the channel to the node if the node has moved to a different address
// on the provider plane, so that the next ChannelFor uses the new address.
func (p *Provider) Forget(node nodes.Node) {
	address := node.AddressOf(p.addressType)

	p.mut.Lock()
	entry, ok := p.channels[node.ID]

	if !ok || entry.address == address {
		p.mut.Unlock()
		return
	}

	delete(p.channels, node.ID)
	p.mut.Unlock()

	entry.channel.Close()
}

// Close closes and removes every channel.
func (p *Provider) Close() {
	p.mut.Lock()
	channels := p.channels
	p.channels = make(map[nodes.ID]providerEntry)
	p.mut.Unlock()

	for _, entry := range channels {
		entry.channel.Close()
	}

	level.Info(p.logger).Log("msg", "all channels closed", "count", len(channels))
}

// CollectGarbage closes the channels that are broken or belong to nodes that are not
// on the live list.
func (p *Provider) CollectGarbage(live []nodes.Node) {
	alive := make(map[nodes.ID]struct{}, len(live))
	for _, node := range live {
		alive[node.ID] = struct{}{}
	}

	p.mut.Lock()
	defer p.mut.Unlock()

	for id, entry := range p.channels {
		if _, ok := alive[id]; ok && !entry.channel.IsBroken() {
			continue
		}

		entry.channel.Close()
		delete(p.channels, id)

		level.Debug(p.logger).Log("msg", "channel collected", "node", id)
	}
}

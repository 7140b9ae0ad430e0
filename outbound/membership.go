package outbound

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"

	"github.com/maxpoletaev/wire/nodes"
)

var _ memberlist.EventDelegate = (*MembershipListener)(nil)

// MembershipListener keeps the provider consistent with memberlist: channels to nodes
// that left are closed, and channels to nodes that moved to another address on the
// provider plane are dropped so that they are recreated on the next use. Member meta must be produced by nodes.EncodeMeta.
type MembershipListener struct {
	providers []*Provider
	logger    log.Logger
}

func NewMembershipListener(logger log.Logger, providers ...*Provider) *MembershipListener {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &MembershipListener{
		providers: providers,
		logger:    logger,
	}
}

// NotifyJoin does not open anything, channels are created lazily.
func (l *MembershipListener) NotifyJoin(m *memberlist.Node) {
	level.Debug(l.logger).Log("msg", "member joined", "name", m.Name, "addr", m.Address())
}

func (l *MembershipListener) NotifyLeave(m *memberlist.Node) {
	node, err := nodes.FromMemberlist(m)
	if err != nil {
		level.Warn(l.logger).Log("msg", "ignoring member leave", "name", m.Name, "err", err)
		return
	}

	for _, p := range l.providers {
		p.CloseChannel(node.ID)
	}

	level.Info(l.logger).Log("msg", "member left, channels closed", "node", node.ID)
}

func (l *MembershipListener) NotifyUpdate(m *memberlist.Node) {
	node, err := nodes.FromMemberlist(m)
	if err != nil {
		level.Warn(l.logger).Log("msg", "ignoring member update", "name", m.Name, "err", err)
		return
	}

	level.Debug(l.logger).Log("msg", "member updated", "node", node.ID, "fingerprint", node.Hash64())

	for _, p := range l.providers {
		p.Forget(node)
	}
}

package nodes

import (
	"encoding/binary"
	"fmt"

	"github.com/twmb/murmur3"
	"golang.org/x/exp/slices"
)

// Node is a cluster participant. Nodes are values and can be used as map keys.
type Node struct {
	ID                 ID
	Name               Name
	Seed               bool
	OperationalAddress Address
	ApplicationAddress Address
}

// NoNode is a node with every part missing.
var NoNode = Node{
	ID:                 NoID,
	Name:               NoName,
	OperationalAddress: NoAddress,
	ApplicationAddress: NoAddress,
}

// NewNode creates a node which exposes both planes on the same host.
func NewNode(id ID, name Name, host Host, seed bool, opPort, appPort int) Node {
	return Node{
		ID:                 id,
		Name:               name,
		Seed:               seed,
		OperationalAddress: NewAddress(host, opPort, AddressTypeOp),
		ApplicationAddress: NewAddress(host, appPort, AddressTypeApp),
	}
}

// HasMissingPart returns true when all of the node parts are missing.
func (n Node) HasMissingPart() bool {
	return n.ID.HasNoID() &&
		n.Name.HasNoName() &&
		n.OperationalAddress.HasNoAddress() &&
		n.ApplicationAddress.HasNoAddress()
}

func (n Node) IsValid() bool {
	return !n.HasMissingPart()
}

// IsLeaderOver returns true if the node wins the leader tie-break against the node with
// the given id.
func (n Node) IsLeaderOver(id ID) bool {
	return n.IsValid() && n.ID.GreaterThan(id)
}

func (n Node) GreaterThan(other Node) bool {
	return n.ID.GreaterThan(other.ID)
}

// AddressOf returns the address of the given plane.
func (n Node) AddressOf(t AddressType) Address {
	switch t {
	case AddressTypeOp:
		return n.OperationalAddress
	case AddressTypeApp:
		return n.ApplicationAddress
	default:
		return NoAddress
	}
}

// Compare orders nodes by id, name, seed flag, operational and application addresses.
func (n Node) Compare(other Node) int {
	if c := n.ID.Compare(other.ID); c != 0 {
		return c
	}

	if c := n.Name.Compare(other.Name); c != 0 {
		return c
	}

	if n.Seed != other.Seed {
		if other.Seed {
			return -1
		}

		return 1
	}

	if c := n.OperationalAddress.Compare(other.OperationalAddress); c != 0 {
		return c
	}

	return n.ApplicationAddress.Compare(other.ApplicationAddress)
}

// Hash64 returns a fingerprint of every node part. Two nodes with the same id but
// different addresses have different fingerprints.
func (n Node) Hash64() uint64 {
	h := murmur3.New64()

	var b [2]byte

	binary.BigEndian.PutUint16(b[:], uint16(n.ID))
	_, _ = h.Write(b[:])
	_, _ = h.Write([]byte(n.Name))

	if n.Seed {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}

	for _, addr := range []Address{n.OperationalAddress, n.ApplicationAddress} {
		_, _ = h.Write([]byte(addr.String()))
	}

	return h.Sum64()
}

func (n Node) String() string {
	return fmt.Sprintf("Node[%s,%s,%t,%s,%s]", n.ID, n.Name, n.Seed, n.OperationalAddress, n.ApplicationAddress)
}

// Sort orders the nodes in place using Node.Compare.
func Sort(nodes []Node) {
	slices.SortFunc(nodes, func(a, b Node) bool {
		return a.Compare(b) < 0
	})
}

// Leader returns the valid node with the highest id.
func Leader(nodes []Node) (Node, bool) {
	var (
		leader Node
		found  bool
	)

	for _, n := range nodes {
		if !n.IsValid() {
			continue
		}

		if !found || n.IsLeaderOver(leader.ID) {
			leader = n
			found = true
		}
	}

	return leader, found
}

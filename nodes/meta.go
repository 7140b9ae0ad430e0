package nodes

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hashicorp/memberlist"
)

const (
	// [id:2][flags:1][op port:2][app port:2]
	metaHeaderSize = 7

	metaSeed   = 1 << 0
	metaHasOp  = 1 << 1
	metaHasApp = 1 << 2

	maxMetaHost = 255
)

var ErrInvalidMeta = errors.New("invalid node meta")

// EncodeMeta packs the node parts that memberlist does not carry on its own into the
// node meta blob: [id:2][flags:1][op port:2][app port:2], followed by the host of each
// present plane as [len:1][host]. Missing planes are flagged and carry no host.
func EncodeMeta(n Node) []byte {
	b := make([]byte, metaHeaderSize, metaHeaderSize+2+len(n.OperationalAddress.Host)+len(n.ApplicationAddress.Host))

	binary.BigEndian.PutUint16(b[0:2], uint16(n.ID))

	var flags byte
	if n.Seed {
		flags |= metaSeed
	}

	if !n.OperationalAddress.HasNoAddress() {
		flags |= metaHasOp
		binary.BigEndian.PutUint16(b[3:5], uint16(n.OperationalAddress.Port))
		b = appendHost(b, n.OperationalAddress.Host)
	}

	if !n.ApplicationAddress.HasNoAddress() {
		flags |= metaHasApp
		binary.BigEndian.PutUint16(b[5:7], uint16(n.ApplicationAddress.Port))
		b = appendHost(b, n.ApplicationAddress.Host)
	}

	b[2] = flags

	return b
}

func appendHost(b []byte, host Host) []byte {
	if len(host) > maxMetaHost {
		host = host[:maxMetaHost]
	}

	b = append(b, byte(len(host)))

	return append(b, host...)
}

// FromMemberlist restores a node from a memberlist member whose meta was
// produced by EncodeMeta. A plane encoded without a host gets the member address.
func FromMemberlist(m *memberlist.Node) (Node, error) {
	if len(m.Meta) < metaHeaderSize {
		return NoNode, fmt.Errorf("%w: expected at least %d bytes, got %d", ErrInvalidMeta, metaHeaderSize, len(m.Meta))
	}

	var fallback Host
	if m.Addr != nil {
		fallback = Host(m.Addr.String())
	}

	name := Name(m.Name)
	if name == "" {
		name = NoName
	}

	flags := m.Meta[2]
	rest := m.Meta[metaHeaderSize:]

	n := Node{
		ID:                 ID(int16(binary.BigEndian.Uint16(m.Meta[0:2]))),
		Name:               name,
		Seed:               flags&metaSeed != 0,
		OperationalAddress: NoAddress,
		ApplicationAddress: NoAddress,
	}

	var err error

	if flags&metaHasOp != 0 {
		port := int(binary.BigEndian.Uint16(m.Meta[3:5]))
		if n.OperationalAddress, rest, err = decodePlane(rest, port, AddressTypeOp, fallback); err != nil {
			return NoNode, err
		}
	}

	if flags&metaHasApp != 0 {
		port := int(binary.BigEndian.Uint16(m.Meta[5:7]))
		if n.ApplicationAddress, rest, err = decodePlane(rest, port, AddressTypeApp, fallback); err != nil {
			return NoNode, err
		}
	}

	if len(rest) != 0 {
		return NoNode, fmt.Errorf("%w: %d trailing bytes", ErrInvalidMeta, len(rest))
	}

	return n, nil
}

func decodePlane(b []byte, port int, t AddressType, fallback Host) (Address, []byte, error) {
	if len(b) < 1 || len(b) < 1+int(b[0]) {
		return NoAddress, nil, fmt.Errorf("%w: truncated %s host", ErrInvalidMeta, t)
	}

	host := Host(b[1 : 1+int(b[0])])
	if host == "" {
		host = fallback
	}

	return NewAddress(host, port, t), b[1+int(b[0]):], nil
}

package message

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/maxpoletaev/wire/nodes"
)

const (
	// HeaderSize is the size of the fixed header preceding every payload on the wire:
	// [length:4][node:2][type:2], big-endian.
	HeaderSize = 8

	// DefaultMaxLength is the largest payload accepted by TryDecode.
	DefaultMaxLength = 64 * 1024
)

var (
	ErrIncomplete      = errors.New("incomplete message")
	ErrMalformedHeader = errors.New("malformed message header")
)

// Header describes the payload that follows it.
type Header struct {
	// Length is the exact number of payload bytes.
	Length uint32
	// Node is the id of the sending node.
	Node nodes.ID
	// Type is an opaque channel tag interpreted by higher-level protocols.
	Type uint16
}

func encodeHeader(h *Header, b []byte) {
	binary.BigEndian.PutUint32(b[0:4], h.Length)
	binary.BigEndian.PutUint16(b[4:6], uint16(h.Node))
	binary.BigEndian.PutUint16(b[6:8], h.Type)
}

func decodeHeader(h *Header, b []byte, maxLength int) error {
	if len(b) < HeaderSize {
		return ErrIncomplete
	}

	h.Length = binary.BigEndian.Uint32(b[0:4])
	h.Node = nodes.ID(int16(binary.BigEndian.Uint16(b[4:6])))
	h.Type = binary.BigEndian.Uint16(b[6:8])

	if maxLength >= 0 && uint64(h.Length) > uint64(maxLength) {
		return fmt.Errorf("%w: declared length %d exceeds %d", ErrMalformedHeader, h.Length, maxLength)
	}

	return nil
}

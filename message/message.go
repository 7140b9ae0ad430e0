package message

import (
	"fmt"

	"github.com/maxpoletaev/wire/nodes"
)

// TypeText tags messages carrying UTF-8 text.
const TypeText uint16 = 1

// RawMessage is a single frame: a header and an opaque payload.
type RawMessage struct {
	Header  Header
	payload []byte
}

// New creates a message around the payload. The payload is not copied.
func New(node nodes.ID, typ uint16, payload []byte) RawMessage {
	return RawMessage{
		Header: Header{
			Length: uint32(len(payload)),
			Node:   node,
			Type:   typ,
		},
		payload: payload,
	}
}

// FromText creates a text message.
func FromText(node nodes.ID, text string) RawMessage {
	return New(node, TypeText, []byte(text))
}

func (m RawMessage) Payload() []byte {
	return m.payload
}

// Len returns the number of bytes the message occupies on the wire.
func (m RawMessage) Len() int {
	return HeaderSize + len(m.payload)
}

// AsText renders the payload as UTF-8 text.
func (m RawMessage) AsText() string {
	return string(m.payload)
}

// AppendTo appends the wire representation of the message to dst.
func (m RawMessage) AppendTo(dst []byte) []byte {
	h := m.Header
	h.Length = uint32(len(m.payload))

	var hb [HeaderSize]byte
	encodeHeader(&h, hb[:])

	dst = append(dst, hb[:]...)

	return append(dst, m.payload...)
}

func (m RawMessage) String() string {
	return fmt.Sprintf("RawMessage[node=%s type=%d length=%d]", m.Header.Node, m.Header.Type, len(m.payload))
}

// Encode returns the wire representation of the message.
func Encode(m RawMessage) []byte {
	return m.AppendTo(make([]byte, 0, m.Len()))
}

// TryDecode decodes the first message in buf. It returns ErrIncomplete without
// consuming anything if buf does not yet hold the whole message.
func TryDecode(buf []byte) (RawMessage, int, error) {
	return TryDecodeLimit(buf, DefaultMaxLength)
}

// TryDecodeLimit is TryDecode with a custom payload size limit. A negative limit
// disables the check.
func TryDecodeLimit(buf []byte, maxLength int) (RawMessage, int, error) {
	var h Header

	if err := decodeHeader(&h, buf, maxLength); err != nil {
		return RawMessage{}, 0, err
	}

	total := HeaderSize + int(h.Length)
	if len(buf) < total {
		return RawMessage{}, 0, ErrIncomplete
	}

	payload := make([]byte, h.Length)
	copy(payload, buf[HeaderSize:total])

	return RawMessage{Header: h, payload: payload}, total, nil
}

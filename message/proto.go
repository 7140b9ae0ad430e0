package message

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/maxpoletaev/wire/nodes"
)

// FromProto creates a message with a protobuf-encoded payload.
func FromProto(node nodes.ID, typ uint16, pb proto.Message) (RawMessage, error) {
	payload, err := proto.Marshal(pb)
	if err != nil {
		return RawMessage{}, fmt.Errorf("failed to marshal message payload: %w", err)
	}

	return New(node, typ, payload), nil
}

// UnmarshalProto decodes the payload into pb.
func (m RawMessage) UnmarshalProto(pb proto.Message) error {
	if err := proto.Unmarshal(m.payload, pb); err != nil {
		return fmt.Errorf("failed to unmarshal message payload: %w", err)
	}

	return nil
}

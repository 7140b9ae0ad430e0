package channel

import (
	"sync"

	"github.com/maxpoletaev/wire/message"
)

// MockConsumer records consumed messages.
type MockConsumer struct {
	mut      sync.Mutex
	messages []message.RawMessage
}

func (c *MockConsumer) Consume(msg message.RawMessage) {
	c.mut.Lock()
	c.messages = append(c.messages, msg)
	c.mut.Unlock()
}

func (c *MockConsumer) Messages() []message.RawMessage {
	c.mut.Lock()
	defer c.mut.Unlock()

	return append([]message.RawMessage(nil), c.messages...)
}

func (c *MockConsumer) Texts() []string {
	messages := c.Messages()

	texts := make([]string, 0, len(messages))
	for _, msg := range messages {
		texts = append(texts, msg.AsText())
	}

	return texts
}

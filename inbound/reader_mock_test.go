package inbound

import (
	"fmt"
	"sync"
	"time"

	"github.com/maxpoletaev/wire/channel"
	"github.com/maxpoletaev/wire/message"
	"github.com/maxpoletaev/wire/nodes"
	"github.com/maxpoletaev/wire/scheduler"
)

const mockMessagePrefix = "Message-"

// mockReader dispatches one numbered text message per probe.
type mockReader struct {
	mut      sync.Mutex
	consumer channel.Consumer
	probes   int
	closed   int
}

func (r *mockReader) Name() string { return "mock" }

func (r *mockReader) Port() int { return 0 }

func (r *mockReader) OpenFor(consumer channel.Consumer) error {
	r.mut.Lock()
	defer r.mut.Unlock()

	if r.consumer != nil {
		return channel.ErrConsumerRegistered
	}

	r.consumer = consumer

	return nil
}

func (r *mockReader) ProbeChannel() {
	r.mut.Lock()
	r.probes++
	n := r.probes
	consumer := r.consumer
	r.mut.Unlock()

	consumer.Consume(message.FromText(1, fmt.Sprintf("%s%d", mockMessagePrefix, n)))
}

func (r *mockReader) Close() {
	r.mut.Lock()
	r.closed++
	r.mut.Unlock()
}

func (r *mockReader) Closed() int {
	r.mut.Lock()
	defer r.mut.Unlock()

	return r.closed
}

// manualScheduler runs scheduled tasks only when Tick is called.
type manualScheduler struct {
	mut   sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	fn        func()
	cancelled bool
}

func (t *manualTask) Cancel() {
	t.cancelled = true
}

func (s *manualScheduler) ScheduleRecurring(_ time.Duration, fn func()) scheduler.Cancellable {
	s.mut.Lock()
	defer s.mut.Unlock()

	task := &manualTask{fn: fn}
	s.tasks = append(s.tasks, task)

	return task
}

func (s *manualScheduler) Tick() {
	s.mut.Lock()
	tasks := append([]*manualTask(nil), s.tasks...)
	s.mut.Unlock()

	for _, task := range tasks {
		if !task.cancelled {
			task.fn()
		}
	}
}

type mockInterest struct {
	mut      sync.Mutex
	types    []nodes.AddressType
	messages []string
}

func (i *mockInterest) HandleInboundStreamMessage(addressType nodes.AddressType, msg message.RawMessage) {
	i.mut.Lock()
	i.types = append(i.types, addressType)
	i.messages = append(i.messages, msg.AsText())
	i.mut.Unlock()
}

func (i *mockInterest) Messages() []string {
	i.mut.Lock()
	defer i.mut.Unlock()

	return append([]string(nil), i.messages...)
}

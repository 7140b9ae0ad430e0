package inbound

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/wire/channel"
	"github.com/maxpoletaev/wire/message"
	"github.com/maxpoletaev/wire/nodes"
	"github.com/maxpoletaev/wire/scheduler"
)

var ErrInvalidProbeInterval = errors.New("probe interval must be positive")

// Interest is implemented by the cluster logic receiving inbound messages.
type Interest interface {
	HandleInboundStreamMessage(addressType nodes.AddressType, msg message.RawMessage)
}

// Stream probes a reader on every scheduler tick and forwards each decoded message
// to the interest, one call per message in the order the reader dispatches them.
type Stream struct {
	interest      Interest
	addressType   nodes.AddressType
	reader        channel.Reader
	scheduler     scheduler.Scheduler
	probeInterval time.Duration
	logger        log.Logger
	stopped       uint32

	mut  sync.Mutex
	task scheduler.Cancellable
}

func New(
	interest Interest,
	addressType nodes.AddressType,
	reader channel.Reader,
	sched scheduler.Scheduler,
	probeInterval time.Duration,
	logger log.Logger,
) *Stream {
	if interest == nil || reader == nil || sched == nil {
		panic("inbound: interest, reader and scheduler are required")
	}

	if probeInterval <= 0 {
		panic(fmt.Sprintf("inbound: non-positive probe interval %s", probeInterval))
	}

	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Stream{
		interest:      interest,
		addressType:   addressType,
		reader:        reader,
		scheduler:     sched,
		probeInterval: probeInterval,
		logger:        log.With(logger, "stream", reader.Name(), "address_type", addressType),
	}
}

// Open starts a socket reader with the given configuration and a stream on top of it.
func Open(
	interest Interest,
	addressType nodes.AddressType,
	conf channel.ReaderConfig,
	sched scheduler.Scheduler,
	probeInterval time.Duration,
) (*Stream, error) {
	if probeInterval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProbeInterval, probeInterval)
	}

	reader, err := channel.Listen(conf)
	if err != nil {
		return nil, err
	}

	s := New(interest, addressType, reader, sched, probeInterval, conf.Logger)

	if err := s.Start(); err != nil {
		reader.Close()
		return nil, err
	}

	return s, nil
}

// Start registers the stream as the reader consumer and schedules probing.
func (s *Stream) Start() error {
	if err := s.reader.OpenFor(s); err != nil {
		return fmt.Errorf("failed to open reader %s: %w", s.reader.Name(), err)
	}

	s.mut.Lock()
	defer s.mut.Unlock()

	if s.isStopped() {
		return nil
	}

	s.task = s.scheduler.ScheduleRecurring(s.probeInterval, s.probe)

	level.Info(s.logger).Log("msg", "inbound stream started", "port", s.reader.Port(), "probe_interval", s.probeInterval)

	return nil
}

// Consume forwards a message from the reader to the interest.
func (s *Stream) Consume(msg message.RawMessage) {
	if s.isStopped() {
		return
	}

	s.interest.HandleInboundStreamMessage(s.addressType, msg)
}

// Stop cancels probing and closes the reader. Safe to call more than once.
func (s *Stream) Stop() {
	if !atomic.CompareAndSwapUint32(&s.stopped, 0, 1) {
		return
	}

	s.mut.Lock()
	task := s.task
	s.task = nil
	s.mut.Unlock()

	if task != nil {
		task.Cancel()
	}

	s.reader.Close()

	level.Info(s.logger).Log("msg", "inbound stream stopped")
}

func (s *Stream) Reader() channel.Reader {
	return s.reader
}

func (s *Stream) isStopped() bool {
	return atomic.LoadUint32(&s.stopped) == 1
}

func (s *Stream) probe() {
	if s.isStopped() {
		return
	}

	s.reader.ProbeChannel()
}

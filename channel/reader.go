package channel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/maxpoletaev/wire/message"
)

var (
	ErrReaderClosed       = errors.New("reader is closed")
	ErrConsumerRegistered = errors.New("consumer is already registered")
)

// socket is the read state of a single accepted connection. The mutex is held for the
// whole read-decode-dispatch cycle so that two probes never interleave on one socket.
type socket struct {
	mut     sync.Mutex
	conn    net.Conn
	builder *message.Builder
	buf     []byte
	closed  bool
}

// SocketReader accepts TCP connections from remote nodes and cuts the incoming byte
// streams into messages. It has no goroutines of its own: all the work happens in
// ProbeChannel.
type SocketReader struct {
	name           string
	logger         log.Logger
	listener       *net.TCPListener
	probeTimeout   time.Duration
	maxMessageSize int
	readBufferSize int
	closed         uint32

	mut      sync.Mutex
	consumer Consumer
	sockets  map[*socket]struct{}
}

// Listen creates a reader accepting connections on conf.BindAddr.
func Listen(conf ReaderConfig) (*SocketReader, error) {
	addr, err := net.ResolveTCPAddr("tcp", conf.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bind address %s: %w", conf.BindAddr, err)
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen tcp port on %s: %w", conf.BindAddr, err)
	}

	logger := conf.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	defaults := DefaultReaderConfig()

	if conf.ProbeTimeout <= 0 {
		conf.ProbeTimeout = defaults.ProbeTimeout
	}

	if conf.ReadBufferSize <= 0 {
		conf.ReadBufferSize = defaults.ReadBufferSize
	}

	if conf.MaxMessageSize == 0 {
		conf.MaxMessageSize = defaults.MaxMessageSize
	}

	r := &SocketReader{
		name:           conf.Name,
		listener:       listener,
		probeTimeout:   conf.ProbeTimeout,
		maxMessageSize: conf.MaxMessageSize,
		readBufferSize: conf.ReadBufferSize,
		sockets:        make(map[*socket]struct{}),
	}

	r.logger = log.With(logger, "reader", conf.Name, "port", r.Port())

	return r, nil
}

func (r *SocketReader) Name() string {
	return r.name
}

// Port returns the port the reader is actually bound to.
func (r *SocketReader) Port() int {
	return r.listener.Addr().(*net.TCPAddr).Port
}

// OpenFor registers the consumer of the messages. Only one consumer is allowed.
func (r *SocketReader) OpenFor(consumer Consumer) error {
	if consumer == nil {
		panic("channel: nil consumer")
	}

	if r.isClosed() {
		return ErrReaderClosed
	}

	r.mut.Lock()
	defer r.mut.Unlock()

	if r.consumer != nil {
		return ErrConsumerRegistered
	}

	r.consumer = consumer

	return nil
}

// ProbeChannel accepts pending connections and drains whatever data is currently
// available on every socket, dispatching each complete message to the consumer.
// Nothing is read before a consumer is registered.
func (r *SocketReader) ProbeChannel() {
	if r.isClosed() {
		return
	}

	r.mut.Lock()
	consumer := r.consumer
	sockets := make([]*socket, 0, len(r.sockets))

	for s := range r.sockets {
		sockets = append(sockets, s)
	}
	r.mut.Unlock()

	if consumer == nil {
		return
	}

	errg := errgroup.Group{}

	errg.Go(func() error {
		r.acceptPending(func(s *socket) {
			errg.Go(func() error {
				r.drain(s, consumer)
				return nil
			})
		})

		return nil
	})

	for _, s := range sockets {
		s := s

		errg.Go(func() error {
			r.drain(s, consumer)
			return nil
		})
	}

	_ = errg.Wait()
}

// Close stops accepting connections and closes every socket. It is safe to call
// more than once and from any goroutine.
func (r *SocketReader) Close() {
	if !atomic.CompareAndSwapUint32(&r.closed, 0, 1) {
		return
	}

	if err := r.listener.Close(); err != nil {
		level.Warn(r.logger).Log("msg", "failed to close listener", "err", err)
	}

	r.mut.Lock()
	sockets := r.sockets
	r.sockets = make(map[*socket]struct{})
	r.mut.Unlock()

	for s := range sockets {
		// Closing the connection interrupts a read in progress, so the socket lock is not needed.
		_ = s.conn.Close()
	}

	level.Info(r.logger).Log("msg", "reader closed")
}

func (r *SocketReader) isClosed() bool {
	return atomic.LoadUint32(&r.closed) == 1
}

func (r *SocketReader) acceptPending(opened func(s *socket)) {
	for {
		if err := r.listener.SetDeadline(time.Now().Add(r.probeTimeout)); err != nil {
			return
		}

		conn, err := r.listener.AcceptTCP()
		if err != nil {
			if !errors.Is(err, os.ErrDeadlineExceeded) && !r.isClosed() {
				level.Warn(r.logger).Log("msg", "failed to accept connection", "err", err)
			}

			return
		}

		s := &socket{
			conn:    conn,
			builder: message.NewBuilder(r.maxMessageSize),
			buf:     make([]byte, r.readBufferSize),
		}

		r.mut.Lock()
		if r.isClosed() {
			r.mut.Unlock()
			_ = conn.Close()

			return
		}

		r.sockets[s] = struct{}{}
		r.mut.Unlock()

		level.Debug(r.logger).Log("msg", "accepted connection", "remote_addr", conn.RemoteAddr())

		opened(s)
	}
}

func (r *SocketReader) drain(s *socket, consumer Consumer) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.closed {
		return
	}

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(r.probeTimeout)); err != nil {
			r.closeSocket(s, err)
			return
		}

		n, err := s.conn.Read(s.buf)

		if n > 0 {
			_, _ = s.builder.Write(s.buf[:n])

			if decodeErr := r.dispatch(s, consumer); decodeErr != nil {
				level.Error(r.logger).Log("msg", "malformed message, dropping connection",
					"remote_addr", s.conn.RemoteAddr(), "err", decodeErr)
				r.closeSocket(s, nil)

				return
			}
		}

		switch {
		case err == nil:
			// A short read means the socket had nothing more at the moment.
			if n < len(s.buf) {
				return
			}
		case errors.Is(err, os.ErrDeadlineExceeded):
			return
		case errors.Is(err, io.EOF):
			r.closeSocket(s, nil)
			return
		default:
			r.closeSocket(s, err)
			return
		}
	}
}

func (r *SocketReader) dispatch(s *socket, consumer Consumer) error {
	for {
		msg, ok, err := s.builder.Next()
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		level.Debug(r.logger).Log("msg", "dispatching message", "length", msg.Header.Length)

		consumer.Consume(msg)
	}
}

// closeSocket must be called with the socket lock held.
func (r *SocketReader) closeSocket(s *socket, cause error) {
	s.closed = true
	s.builder.Reset()

	if cause != nil && !r.isClosed() {
		level.Warn(r.logger).Log("msg", "socket read failed", "remote_addr", s.conn.RemoteAddr(), "err", cause)
	}

	_ = s.conn.Close()

	r.mut.Lock()
	delete(r.sockets, s)
	r.mut.Unlock()

	level.Debug(r.logger).Log("msg", "connection closed", "remote_addr", s.conn.RemoteAddr())
}

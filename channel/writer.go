package channel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/semaphore"

	"github.com/maxpoletaev/wire/message"
	"github.com/maxpoletaev/wire/nodes"
)

// SocketWriter owns a single outbound connection to a remote address. The connection
// is established lazily on the first write and re-established after a failure, until
// the number of consecutive failed connects reaches the retry limit. At that point the
// writer is broken and should be replaced.
//
// Delivery is best-effort: a write that fails half-way drops the rest of the message.
type SocketWriter struct {
	address        nodes.Address
	logger         log.Logger
	dialer         Dialer
	connectTimeout time.Duration
	maxRetries     int32
	retries        int32
	maxMessageSize int

	// connectGate allows only one connect attempt at a time.
	connectGate *semaphore.Weighted

	mut  sync.Mutex
	conn net.Conn
}

func NewSocketWriter(address nodes.Address, logger log.Logger, opts ...WriterOption) *SocketWriter {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	w := &SocketWriter{
		address:        address,
		logger:         log.With(logger, "writer", address.HostPort()),
		dialer:         &net.Dialer{},
		connectTimeout: defaultConnectTimeout,
		maxRetries:     DefaultRetries,
		maxMessageSize: message.DefaultMaxLength,
		connectGate:    semaphore.NewWeighted(1),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *SocketWriter) Address() nodes.Address {
	return w.address
}

// Write sends the message, connecting first if needed. It returns the number of
// bytes written or zero if the message could not be sent. A payload larger than the
// writer limit is never sent, since the remote reader would drop the connection.
func (w *SocketWriter) Write(msg message.RawMessage) int {
	if w.maxMessageSize >= 0 && len(msg.Payload()) > w.maxMessageSize {
		level.Warn(w.logger).Log("msg", "message too large, not sent", "length", len(msg.Payload()), "max", w.maxMessageSize)
		return 0
	}

	return w.WriteBytes(message.Encode(msg))
}

// WriteBytes sends an already encoded message. The size limit is not checked.
func (w *SocketWriter) WriteBytes(b []byte) int {
	conn := w.prepareConn()
	if conn == nil {
		return 0
	}

	var written int

	for written < len(b) {
		n, err := conn.Write(b[written:])
		written += n

		if err != nil {
			level.Warn(w.logger).Log("msg", "write to socket failed", "written", written, "err", err)
			w.closeConn(conn)

			return 0
		}
	}

	level.Debug(w.logger).Log("msg", "message sent", "bytes", written)

	return written
}

// Close releases the connection. The next write will attempt to reconnect.
func (w *SocketWriter) Close() {
	w.mut.Lock()
	conn := w.conn
	w.conn = nil
	w.mut.Unlock()

	if conn == nil {
		return
	}

	level.Info(w.logger).Log("msg", "closing socket")

	if err := conn.Close(); err != nil {
		level.Warn(w.logger).Log("msg", "socket close failed", "err", err)
	}
}

// IsClosed returns true if there is no live connection.
func (w *SocketWriter) IsClosed() bool {
	return w.liveConn() == nil
}

// IsBroken returns true once the retry limit is exhausted without a live connection.
func (w *SocketWriter) IsBroken() bool {
	return w.liveConn() == nil && w.Retries() >= int(w.maxRetries)
}

// Retries returns the number of consecutive failed connect attempts.
func (w *SocketWriter) Retries() int {
	return int(atomic.LoadInt32(&w.retries))
}

func (w *SocketWriter) String() string {
	return fmt.Sprintf("SocketWriter[address=%s, closed=%t, retries=%d, broken=%t]",
		w.address, w.IsClosed(), w.Retries(), w.IsBroken())
}

func (w *SocketWriter) liveConn() net.Conn {
	w.mut.Lock()
	defer w.mut.Unlock()

	return w.conn
}

// prepareConn returns the live connection, connecting as many times as the retry
// budget allows. Nil means the writer is broken.
func (w *SocketWriter) prepareConn() net.Conn {
	for {
		if conn := w.liveConn(); conn != nil {
			return conn
		}

		if atomic.LoadInt32(&w.retries) >= w.maxRetries {
			return nil
		}

		w.connect()
	}
}

func (w *SocketWriter) connect() {
	ctx, cancel := context.WithTimeout(context.Background(), w.connectTimeout)
	defer cancel()

	if err := w.connectGate.Acquire(ctx, 1); err != nil {
		// Another attempt is still in flight. Its outcome will be visible on the next iteration.
		return
	}

	defer w.connectGate.Release(1)

	// The attempt we were waiting for may have succeeded.
	if w.liveConn() != nil {
		return
	}

	conn, err := w.dialer.DialContext(ctx, "tcp", w.address.HostPort())
	if err != nil {
		retries := atomic.AddInt32(&w.retries, 1)
		level.Warn(w.logger).Log("msg", "failed to connect", "retries", retries, "err", err)

		return
	}

	w.mut.Lock()
	w.conn = conn
	w.mut.Unlock()

	atomic.StoreInt32(&w.retries, 0)

	level.Info(w.logger).Log("msg", "connected", "remote_addr", conn.RemoteAddr())
}

// closeConn closes the connection that failed unless it has been replaced already.
func (w *SocketWriter) closeConn(failed net.Conn) {
	w.mut.Lock()
	if w.conn == failed {
		w.conn = nil
	}
	w.mut.Unlock()

	_ = failed.Close()
}

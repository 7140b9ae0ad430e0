package channel

import (
	"time"

	"github.com/go-kit/log"

	"github.com/maxpoletaev/wire/message"
)

type ReaderConfig struct {
	// Name identifies the reader in logs.
	Name string

	// BindAddr is the TCP address the reader accepts connections on. Port 0
	// picks a random port, which can be queried later with Port.
	BindAddr string

	// MaxMessageSize is the largest payload a remote node is allowed to send.
	// A message header declaring more than that closes the socket. Zero means
	// message.DefaultMaxLength, a negative value disables the check.
	MaxMessageSize int

	// ReadBufferSize is the size of a single socket read.
	ReadBufferSize int

	// ProbeTimeout bounds how long a probe waits for a socket to become readable.
	// Non-positive values are replaced by the default, as is a non-positive ReadBufferSize.
	ProbeTimeout time.Duration

	// Logger is go-kit logger used to record socket failures. Silent by default.
	Logger log.Logger
}

func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Name:           "reader",
		BindAddr:       "0.0.0.0:0",
		MaxMessageSize: message.DefaultMaxLength,
		ReadBufferSize: 4096,
		ProbeTimeout:   10 * time.Millisecond,
		Logger:         log.NewNopLogger(),
	}
}

const (
	// DefaultRetries is the number of consecutive failed connects after which a writer is broken.
	DefaultRetries        = 10
	defaultConnectTimeout = 2 * time.Second
)

type WriterOption func(w *SocketWriter)

// WithRetries overrides the number of consecutive connect failures tolerated before the writer breaks.
func WithRetries(n int) WriterOption {
	return func(w *SocketWriter) {
		w.maxRetries = int32(n)
	}
}

func WithConnectTimeout(d time.Duration) WriterOption {
	return func(w *SocketWriter) {
		w.connectTimeout = d
	}
}

func WithDialer(d Dialer) WriterOption {
	return func(w *SocketWriter) {
		w.dialer = d
	}
}

// WithMaxMessageSize sets the largest payload the writer sends. It should match the
// MaxMessageSize of the remote reader. A negative value disables the check.
func WithMaxMessageSize(n int) WriterOption {
	return func(w *SocketWriter) {
		w.maxMessageSize = n
	}
}

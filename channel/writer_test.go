package channel

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/wire/message"
	"github.com/maxpoletaev/wire/nodes"
)

type countingDialer struct {
	calls int32
	fail  int32 // number of calls to fail, negative fails every call
	conn  net.Conn
}

func (d *countingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	n := atomic.AddInt32(&d.calls, 1)

	if d.fail < 0 || n <= d.fail {
		return nil, errors.New("connection refused")
	}

	if d.conn != nil {
		return d.conn, nil
	}

	return (&net.Dialer{}).DialContext(ctx, network, address)
}

func (d *countingDialer) Calls() int {
	return int(atomic.LoadInt32(&d.calls))
}

type failingConn struct {
	net.Conn
	closed int32
}

func (c *failingConn) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func (c *failingConn) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return nil
}

func (c *failingConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
}

func readerAddress(reader *SocketReader) nodes.Address {
	return nodes.NewAddress("127.0.0.1", reader.Port(), nodes.AddressTypeOp)
}

func TestSocketWriter_Loopback(t *testing.T) {
	reader, consumer := startReader(t, 0)

	writer := NewSocketWriter(readerAddress(reader), nil)
	defer writer.Close()

	msg := message.FromText(1, "hello")
	require.Equal(t, msg.Len(), writer.Write(msg))
	require.False(t, writer.IsClosed())

	reader.ProbeChannel()

	require.Equal(t, []string{"hello"}, consumer.Texts())
}

func TestSocketWriter_BackToBackMessagesSingleProbe(t *testing.T) {
	reader, consumer := startReader(t, 0)

	writer := NewSocketWriter(readerAddress(reader), nil)
	defer writer.Close()

	for _, text := range []string{"one", "two", "three"} {
		require.NotZero(t, writer.Write(message.FromText(1, text)))
	}

	reader.ProbeChannel()

	require.Equal(t, []string{"one", "two", "three"}, consumer.Texts())
}

func TestSocketWriter_BrokenAfterRetries(t *testing.T) {
	dialer := &countingDialer{fail: -1}
	writer := NewSocketWriter(nodes.NewAddress("127.0.0.1", 1, nodes.AddressTypeOp), nil, WithDialer(dialer))

	require.False(t, writer.IsBroken())
	require.Equal(t, 0, writer.Write(message.FromText(1, "hello")))
	require.Equal(t, DefaultRetries, dialer.Calls())
	require.Equal(t, DefaultRetries, writer.Retries())
	require.True(t, writer.IsBroken())
	require.True(t, writer.IsClosed())

	// A broken writer does not try again.
	require.Equal(t, 0, writer.Write(message.FromText(1, "hello")))
	require.Equal(t, DefaultRetries, dialer.Calls())
	require.Equal(t, DefaultRetries, writer.Retries())
}

func TestSocketWriter_RetriesResetOnConnect(t *testing.T) {
	reader, consumer := startReader(t, 0)

	dialer := &countingDialer{fail: 3}
	writer := NewSocketWriter(readerAddress(reader), nil, WithDialer(dialer), WithRetries(5))
	defer writer.Close()

	require.NotZero(t, writer.Write(message.FromText(1, "hello")))
	require.Equal(t, 4, dialer.Calls())
	require.Equal(t, 0, writer.Retries())
	require.False(t, writer.IsBroken())

	reader.ProbeChannel()
	require.Equal(t, []string{"hello"}, consumer.Texts())
}

func TestSocketWriter_CustomRetries(t *testing.T) {
	dialer := &countingDialer{fail: -1}
	writer := NewSocketWriter(nodes.NewAddress("127.0.0.1", 1, nodes.AddressTypeOp), nil,
		WithDialer(dialer), WithRetries(3))

	require.Equal(t, 0, writer.Write(message.FromText(1, "hello")))
	require.Equal(t, 3, dialer.Calls())
	require.True(t, writer.IsBroken())
}

func TestSocketWriter_WriteErrorCloses(t *testing.T) {
	conn := &failingConn{}
	dialer := &countingDialer{conn: conn}
	writer := NewSocketWriter(nodes.NewAddress("127.0.0.1", 1, nodes.AddressTypeOp), nil, WithDialer(dialer))

	require.Equal(t, 0, writer.Write(message.FromText(1, "hello")))
	require.True(t, writer.IsClosed())
	require.False(t, writer.IsBroken())
	require.Equal(t, int32(1), atomic.LoadInt32(&conn.closed))
}

func TestSocketWriter_ReconnectAfterClose(t *testing.T) {
	reader, consumer := startReader(t, 0)

	dialer := &countingDialer{}
	writer := NewSocketWriter(readerAddress(reader), nil, WithDialer(dialer))
	defer writer.Close()

	require.NotZero(t, writer.Write(message.FromText(1, "first")))
	reader.ProbeChannel()

	writer.Close()
	require.True(t, writer.IsClosed())

	require.NotZero(t, writer.Write(message.FromText(1, "second")))
	require.Equal(t, 2, dialer.Calls())

	reader.ProbeChannel()
	require.Equal(t, []string{"first", "second"}, consumer.Texts())
}

func TestSocketWriter_CloseTwice(t *testing.T) {
	reader, _ := startReader(t, 0)

	writer := NewSocketWriter(readerAddress(reader), nil)
	require.NotZero(t, writer.Write(message.FromText(1, "hello")))

	writer.Close()
	require.True(t, writer.IsClosed())

	writer.Close()
	require.True(t, writer.IsClosed())
}

func TestSocketWriter_ConcurrentWritesConnectOnce(t *testing.T) {
	reader, consumer := startReader(t, 0)

	dialer := &countingDialer{}
	writer := NewSocketWriter(readerAddress(reader), nil, WithDialer(dialer))
	defer writer.Close()

	concurrency := 10
	begin := make(chan struct{})
	wg := sync.WaitGroup{}
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			<-begin
			writer.Write(message.FromText(1, "hello"))
		}()
	}

	close(begin)
	wg.Wait()

	require.Equal(t, 1, dialer.Calls())

	reader.ProbeChannel()
	require.Len(t, consumer.Messages(), concurrency)
}

func TestSocketWriter_String(t *testing.T) {
	writer := NewSocketWriter(nodes.NewAddress("127.0.0.1", 1, nodes.AddressTypeOp), nil)
	require.Equal(t, "SocketWriter[address=127.0.0.1:1/op, closed=true, retries=0, broken=false]", writer.String())
}

func TestSocketWriter_RejectsOversizeMessage(t *testing.T) {
	reader, consumer := startReader(t, 0)

	writer := NewSocketWriter(readerAddress(reader), nil)
	defer writer.Close()

	tooLarge := message.New(1, message.TypeText, make([]byte, message.DefaultMaxLength+1))
	require.Equal(t, 0, writer.Write(tooLarge))

	// The connection stays usable for the following messages.
	require.NotZero(t, writer.Write(message.FromText(1, "after")))

	reader.ProbeChannel()
	require.Equal(t, []string{"after"}, consumer.Texts())
}

func TestSocketWriter_CustomMaxMessageSize(t *testing.T) {
	reader, consumer := startReader(t, 0)

	writer := NewSocketWriter(readerAddress(reader), nil, WithMaxMessageSize(4))
	defer writer.Close()

	require.Equal(t, 0, writer.Write(message.FromText(1, "hello")))
	require.NotZero(t, writer.Write(message.FromText(1, "hi")))

	reader.ProbeChannel()
	require.Equal(t, []string{"hi"}, consumer.Texts())
}

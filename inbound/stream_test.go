package inbound

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/wire/channel"
	"github.com/maxpoletaev/wire/message"
	"github.com/maxpoletaev/wire/nodes"
	"github.com/maxpoletaev/wire/scheduler"
)

func TestStream_ForwardsEveryMessage(t *testing.T) {
	for _, happenings := range []int{1, 5} {
		t.Run(fmt.Sprintf("%d_messages", happenings), func(t *testing.T) {
			reader := &mockReader{}
			interest := &mockInterest{}
			sched := &manualScheduler{}

			stream := New(interest, nodes.AddressTypeOp, reader, sched, 10*time.Millisecond, nil)
			require.NoError(t, stream.Start())

			for i := 0; i < happenings; i++ {
				sched.Tick()
			}

			stream.Stop()

			expected := make([]string, 0, happenings)
			for i := 1; i <= happenings; i++ {
				expected = append(expected, fmt.Sprintf("%s%d", mockMessagePrefix, i))
			}

			require.Equal(t, expected, interest.Messages())

			for _, typ := range interest.types {
				require.Equal(t, nodes.AddressTypeOp, typ)
			}
		})
	}
}

func TestStream_StopIsIdempotent(t *testing.T) {
	reader := &mockReader{}
	interest := &mockInterest{}
	sched := &manualScheduler{}

	stream := New(interest, nodes.AddressTypeApp, reader, sched, time.Millisecond, nil)
	require.NoError(t, stream.Start())

	sched.Tick()
	stream.Stop()
	stream.Stop()

	require.Equal(t, 1, reader.Closed())

	// Ticks after stop do nothing.
	sched.Tick()
	stream.probe()
	stream.Consume(message.FromText(1, "late"))

	require.Equal(t, []string{"Message-1"}, interest.Messages())
}

func TestStream_StartTwiceFails(t *testing.T) {
	reader := &mockReader{}
	stream := New(&mockInterest{}, nodes.AddressTypeOp, reader, &manualScheduler{}, time.Millisecond, nil)

	require.NoError(t, stream.Start())
	require.ErrorIs(t, stream.Start(), channel.ErrConsumerRegistered)
}

func TestStream_RequiresCollaborators(t *testing.T) {
	require.Panics(t, func() {
		New(nil, nodes.AddressTypeOp, &mockReader{}, &manualScheduler{}, time.Millisecond, nil)
	})

	require.Panics(t, func() {
		New(&mockInterest{}, nodes.AddressTypeOp, &mockReader{}, &manualScheduler{}, 0, nil)
	})
}

func TestOpen_InvalidProbeInterval(t *testing.T) {
	conf := channel.DefaultReaderConfig()
	conf.BindAddr = "127.0.0.1:0"

	_, err := Open(&mockInterest{}, nodes.AddressTypeOp, conf, scheduler.NewTicker(), -time.Millisecond)
	require.ErrorIs(t, err, ErrInvalidProbeInterval)
}

func TestOpen_SocketLoopback(t *testing.T) {
	conf := channel.DefaultReaderConfig()
	conf.Name = "op-inbound"
	conf.BindAddr = "127.0.0.1:0"

	interest := &mockInterest{}

	stream, err := Open(interest, nodes.AddressTypeOp, conf, scheduler.NewTicker(), 5*time.Millisecond)
	require.NoError(t, err)
	defer stream.Stop()

	writer := channel.NewSocketWriter(
		nodes.NewAddress("127.0.0.1", stream.Reader().Port(), nodes.AddressTypeOp), nil)
	defer writer.Close()

	for _, text := range []string{"one", "two", "three"} {
		require.NotZero(t, writer.Write(message.FromText(1, text)))
	}

	require.Eventually(t, func() bool {
		return len(interest.Messages()) == 3
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, []string{"one", "two", "three"}, interest.Messages())
}

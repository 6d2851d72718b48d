package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// loopbackPair opens a listening socket acting as the server and a Conn
// targeting it, both on 127.0.0.1 with kernel-picked ports.
func loopbackPair(t *testing.T) (net.PacketConn, *Conn) {
	t.Helper()
	srv, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	c, err := NewConn(ConnConfig{
		Target: srv.LocalAddr().(*net.UDPAddr),
		Bind:   &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return srv, c
}

func TestConnSendRecvLoopback(t *testing.T) {
	srv, c := loopbackPair(t)

	require.NoError(t, c.Send([]byte("ping")))

	buf := make([]byte, 64)
	require.NoError(t, srv.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, from, err := srv.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	_, err = srv.WriteTo([]byte("pong"), from)
	require.NoError(t, err)

	b, src, err := c.Recv(context.Background(), time.Now().Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, "pong", string(b))
	require.Equal(t, srv.LocalAddr().(*net.UDPAddr).Port, src.Port)
}

func TestConnRecvTimeout(t *testing.T) {
	_, c := loopbackPair(t)

	_, _, err := c.Recv(context.Background(), time.Now().Add(50*time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestConnRecvCancellationIsPrompt(t *testing.T) {
	_, c := loopbackPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, _, err := c.Recv(ctx, time.Now().Add(time.Minute))
	require.ErrorIs(t, err, ErrCanceled)
	// the poll slice bounds the wait, not the full deadline
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestConnBindRefusedWithHint(t *testing.T) {
	// two sockets on the same explicit port must collide
	first, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer first.Close()

	_, err = NewConn(ConnConfig{
		Target: &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 67},
		Bind:   first.LocalAddr().(*net.UDPAddr),
	})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Contains(t, terr.Op, "bind")
}

func TestConnV6MulticastNeedsInterface(t *testing.T) {
	_, err := NewConn(ConnConfig{
		Target: &net.UDPAddr{IP: net.ParseIP("ff02::1:2"), Port: 547},
		Bind:   &net.UDPAddr{IP: net.IPv6unspecified, Port: 0},
	})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.ErrorIs(t, err, errNoInterface)
	require.NotEmpty(t, terr.Hint)
}

package pcap

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCaptureFramesV4(t *testing.T) {
	var buf bytes.Buffer
	c := NewCapture(&Writer{Writer: &buf})

	src := &net.UDPAddr{IP: net.ParseIP("192.0.2.10"), Port: 68}
	dst := &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 67}
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	c.Outbound(payload, src, dst)
	require.NoError(t, c.Err())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	require.Equal(t, LinkRaw, r.LinkType)

	pkt, err := r.Next()
	require.NoError(t, err)
	b := pkt.Bytes
	require.Len(t, b, 20+8+len(payload))

	require.EqualValues(t, 0x45, b[0])
	require.EqualValues(t, udpProtocolNumber, b[9])
	require.Equal(t, net.IP(b[12:16]).String(), "192.0.2.10")
	require.Equal(t, net.IP(b[16:20]).String(), "192.0.2.1")
	// recompute the header checksum over a zeroed checksum field
	stored := binary.BigEndian.Uint16(b[10:])
	hdr := append([]byte(nil), b[:20]...)
	hdr[10], hdr[11] = 0, 0
	require.Equal(t, headerChecksum(hdr), stored)

	require.EqualValues(t, 68, binary.BigEndian.Uint16(b[20:]))
	require.EqualValues(t, 67, binary.BigEndian.Uint16(b[22:]))
	require.EqualValues(t, 8+len(payload), binary.BigEndian.Uint16(b[24:]))
	require.Equal(t, payload, b[28:])

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestCaptureFramesV6(t *testing.T) {
	var buf bytes.Buffer
	c := NewCapture(&Writer{Writer: &buf})

	src := &net.UDPAddr{IP: net.ParseIP("fe80::1"), Port: 547}
	dst := &net.UDPAddr{IP: net.ParseIP("ff02::1:2"), Port: 546}
	payload := []byte{0xaa, 0xbb}
	c.Inbound(payload, src, dst)
	require.NoError(t, c.Err())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	pkt, err := r.Next()
	require.NoError(t, err)
	b := pkt.Bytes
	require.Len(t, b, 40+8+len(payload))

	require.EqualValues(t, 0x60, b[0]&0xf0)
	require.EqualValues(t, 8+len(payload), binary.BigEndian.Uint16(b[4:]))
	require.EqualValues(t, udpProtocolNumber, b[6])
	require.Equal(t, net.IP(b[8:24]).String(), "fe80::1")
	require.Equal(t, net.IP(b[24:40]).String(), "ff02::1:2")

	// recompute the mandatory UDP checksum over a zeroed checksum field
	stored := binary.BigEndian.Uint16(b[46:])
	udp := append([]byte(nil), b[40:]...)
	udp[6], udp[7] = 0, 0
	sum := pseudoSum6(b[8:24], b[24:40], uint32(8+len(payload)))
	require.Equal(t, finishChecksum(addChecksum(sum, udp)), stored)
}

func TestCaptureOrderedPackets(t *testing.T) {
	var buf bytes.Buffer
	c := NewCapture(&Writer{Writer: &buf})

	src := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 68}
	dst := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 67}
	c.Outbound([]byte{1}, src, dst)
	c.Inbound([]byte{2}, dst, src)
	require.NoError(t, c.Err())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	first, err := r.Next()
	require.NoError(t, err)
	second, err := r.Next()
	require.NoError(t, err)
	require.EqualValues(t, 1, first.Bytes[28])
	require.EqualValues(t, 2, second.Bytes[28])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestCaptureSticksOnWriteError(t *testing.T) {
	c := NewCapture(&Writer{Writer: failingWriter{}})

	src := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 68}
	dst := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 67}
	c.Outbound([]byte{1}, src, dst)
	require.ErrorIs(t, c.Err(), io.ErrClosedPipe)
	c.Outbound([]byte{2}, src, dst)
	require.ErrorIs(t, c.Err(), io.ErrClosedPipe)
}

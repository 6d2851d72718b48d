package pcap

import (
	"encoding/binary"
	"net"
	"sync"
	"time"
)

const udpProtocolNumber = 17

// Capture records the UDP datagrams of a DHCP session as raw IP
// packets. The socket only hands us payloads, so the IPv4/IPv6 and UDP
// headers are synthesized from the endpoint addresses.
type Capture struct {
	mu  sync.Mutex
	w   *Writer
	err error
}

// NewCapture writes LinkRaw packets to w.
func NewCapture(w *Writer) *Capture {
	w.LinkType = LinkRaw
	if w.SnapLen == 0 {
		w.SnapLen = 65535
	}
	return &Capture{w: w}
}

// Outbound records a datagram sent from src to dst.
func (c *Capture) Outbound(payload []byte, src, dst *net.UDPAddr) {
	c.put(payload, src, dst)
}

// Inbound records a datagram received from src at dst.
func (c *Capture) Inbound(payload []byte, src, dst *net.UDPAddr) {
	c.put(payload, src, dst)
}

// Err returns the first write error; packets after a failed write are
// dropped.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Capture) put(payload []byte, src, dst *net.UDPAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	b := frame(payload, src, dst)
	c.err = c.w.Put(&Packet{
		Timestamp: time.Now(),
		Length:    len(b),
		Bytes:     b,
	})
}

func frame(payload []byte, src, dst *net.UDPAddr) []byte {
	if src.IP.To4() != nil && dst.IP.To4() != nil {
		return frame4(payload, src, dst)
	}
	return frame6(payload, src, dst)
}

func frame4(payload []byte, src, dst *net.UDPAddr) []byte {
	b := make([]byte, 20+8+len(payload))
	b[0] = 0x45 // version 4, 20 byte header
	binary.BigEndian.PutUint16(b[2:], uint16(len(b)))
	b[8] = 64 // TTL
	b[9] = udpProtocolNumber
	copy(b[12:16], src.IP.To4())
	copy(b[16:20], dst.IP.To4())
	binary.BigEndian.PutUint16(b[10:], headerChecksum(b[:20]))

	putUDP(b[20:], payload, src, dst)
	// a zero UDP checksum means "not computed" in IPv4, which is fine
	// for a capture
	return b
}

func frame6(payload []byte, src, dst *net.UDPAddr) []byte {
	b := make([]byte, 40+8+len(payload))
	b[0] = 0x60 // version 6
	binary.BigEndian.PutUint16(b[4:], uint16(8+len(payload)))
	b[6] = udpProtocolNumber
	b[7] = 64 // hop limit
	copy(b[8:24], src.IP.To16())
	copy(b[24:40], dst.IP.To16())

	putUDP(b[40:], payload, src, dst)

	// UDP checksums are mandatory with IPv6
	sum := pseudoSum6(b[8:24], b[24:40], uint32(8+len(payload)))
	sum = addChecksum(sum, b[40:])
	binary.BigEndian.PutUint16(b[46:], finishChecksum(sum))
	return b
}

func putUDP(b, payload []byte, src, dst *net.UDPAddr) {
	binary.BigEndian.PutUint16(b[0:], uint16(src.Port))
	binary.BigEndian.PutUint16(b[2:], uint16(dst.Port))
	binary.BigEndian.PutUint16(b[4:], uint16(8+len(payload)))
	copy(b[8:], payload)
}

func headerChecksum(hdr []byte) uint16 {
	return finishChecksum(addChecksum(0, hdr))
}

func pseudoSum6(src, dst []byte, udpLen uint32) uint32 {
	sum := addChecksum(0, src)
	sum = addChecksum(sum, dst)
	sum += udpLen
	sum += udpProtocolNumber
	return sum
}

func addChecksum(sum uint32, b []byte) uint32 {
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i:]))
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	return sum
}

func finishChecksum(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	c := ^uint16(sum)
	if c == 0 {
		c = 0xffff
	}
	return c
}

// Package pcap writes (and reads back) captures of the DHCP exchanges
// this tool performs, so a session can be inspected with wireshark or
// tcpdump afterwards. Only the classic pcap format is supported, with
// raw IP framing.
package pcap

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// LinkType describes the contents of each packet in a pcap.
type LinkType uint32

const (
	LinkEthernet LinkType = 1
	// LinkRaw frames packets as bare IPv4/IPv6 headers; what Capture
	// produces.
	LinkRaw LinkType = 101
)

// Packet is one raw packet and its metadata.
type Packet struct {
	Timestamp time.Time
	Length    int
	Bytes     []byte
}

// Reader extracts packets from a pcap stream.
type Reader struct {
	LinkType LinkType

	r     io.Reader
	order binary.ByteOrder
	tmult int64
}

// NewReader parses the pcap file header from r.
func NewReader(r io.Reader) (*Reader, error) {
	ret := &Reader{r: bufio.NewReader(r)}

	var hdr [fileHeaderLen]byte
	if _, err := io.ReadFull(ret.r, hdr[:]); err != nil {
		return nil, fmt.Errorf("reading pcap header: %w", err)
	}

	// The field encoding follows the writer's endianness. The magic is
	// symmetric under byte swapping in an unhelpful way, so the version
	// numbers decide: 2.4 read as little-endian means a little-endian
	// file.
	ret.order = binary.LittleEndian
	if ret.order.Uint16(hdr[4:]) != versionMajor {
		ret.order = binary.BigEndian
	}
	if major, minor := ret.order.Uint16(hdr[4:]), ret.order.Uint16(hdr[6:]); major != versionMajor || minor != versionMinor {
		return nil, fmt.Errorf("unknown pcap version %d.%d", major, minor)
	}

	switch ret.order.Uint32(hdr[0:]) {
	case 0xa1b2c3d4:
		// (sec, usec) timestamps
		ret.tmult = 1000
	case magicNanos:
		// (sec, nsec) timestamps
		ret.tmult = 1
	default:
		return nil, fmt.Errorf("bad magic %#x", ret.order.Uint32(hdr[0:]))
	}

	ret.LinkType = LinkType(ret.order.Uint32(hdr[20:]))
	return ret, nil
}

// Next returns the next packet, io.EOF at the end of the stream.
func (r *Reader) Next() (*Packet, error) {
	var hdr [pktHeaderLen]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		return nil, err
	}
	sec := r.order.Uint32(hdr[0:])
	subsec := r.order.Uint32(hdr[4:])
	captured := r.order.Uint32(hdr[8:])
	orig := r.order.Uint32(hdr[12:])

	bs := make([]byte, captured)
	if _, err := io.ReadFull(r.r, bs); err != nil {
		return nil, err
	}
	return &Packet{
		Timestamp: time.Unix(int64(sec), r.tmult*int64(subsec)),
		Length:    int(orig),
		Bytes:     bs,
	}, nil
}

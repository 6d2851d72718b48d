package pcap

import (
	"encoding/binary"
	"io"
)

const (
	magicNanos    = 0xa1b23c4d
	versionMajor  = 2
	versionMinor  = 4
	fileHeaderLen = 24
	pktHeaderLen  = 16
)

// Writer serializes packets to a pcap stream with nanosecond
// timestamps. The file header is written lazily on the first Put, so an
// aborted session leaves no bytes behind.
type Writer struct {
	Writer   io.Writer
	LinkType LinkType
	SnapLen  uint32

	headerWritten bool
}

func (w *Writer) writeHeader() error {
	var hdr [fileHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[0:], magicNanos)
	binary.LittleEndian.PutUint16(hdr[4:], versionMajor)
	binary.LittleEndian.PutUint16(hdr[6:], versionMinor)
	// bytes 8..16: timezone correction and accuracy, zero in practice
	binary.LittleEndian.PutUint32(hdr[16:], w.SnapLen)
	binary.LittleEndian.PutUint32(hdr[20:], uint32(w.LinkType))
	if _, err := w.Writer.Write(hdr[:]); err != nil {
		return err
	}
	w.headerWritten = true
	return nil
}

// Put appends one packet to the stream.
func (w *Writer) Put(pkt *Packet) error {
	if !w.headerWritten {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}
	var hdr [pktHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(pkt.Timestamp.Unix()))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(pkt.Timestamp.Nanosecond()))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(pkt.Bytes)))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(pkt.Length))
	if _, err := w.Writer.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Writer.Write(pkt.Bytes)
	return err
}

package message

import (
	"crypto/rand"
	"encoding/binary"
	"net"
	"strings"
)

// ParseChaddr resolves the user supplied chaddr flag. The literal
// "random" yields a fresh locally-administered unicast address, the
// empty string falls back to the first usable interface MAC, anything
// else must parse as a MAC address (with or without separators).
func ParseChaddr(s string) (net.HardwareAddr, error) {
	switch s {
	case "":
		return DefaultChaddr()
	case "random":
		return RandomChaddr()
	}
	hw, err := net.ParseMAC(s)
	if err == nil {
		return hw, nil
	}
	// also accept bare hex like "aabbccddeeff"
	if len(s) == 12 && !strings.ContainsAny(s, ":-.") {
		var sb strings.Builder
		for i := 0; i < 12; i += 2 {
			if i > 0 {
				sb.WriteByte(':')
			}
			sb.WriteString(s[i : i+2])
		}
		if hw, err2 := net.ParseMAC(sb.String()); err2 == nil {
			return hw, nil
		}
	}
	return nil, configErrorf("invalid chaddr %q: %v", s, err)
}

// RandomChaddr generates a random MAC with the locally-administered bit
// set and the multicast bit cleared.
func RandomChaddr() (net.HardwareAddr, error) {
	hw := make(net.HardwareAddr, 6)
	if _, err := rand.Read(hw); err != nil {
		return nil, err
	}
	hw[0] = hw[0]&0xfe | 0x02
	return hw, nil
}

// DefaultChaddr returns the hardware address of the first non-loopback
// interface that has one.
func DefaultChaddr() (net.HardwareAddr, error) {
	ifis, err := net.Interfaces()
	if err != nil {
		return nil, configErrorf("listing interfaces: %v", err)
	}
	for _, ifi := range ifis {
		if ifi.Flags&net.FlagLoopback != 0 || len(ifi.HardwareAddr) != 6 {
			continue
		}
		return ifi.HardwareAddr, nil
	}
	return nil, configErrorf("no interface with a hardware address found, pass --chaddr")
}

// RandomXid returns a random 32 bit transaction id.
func RandomXid() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

package message

import (
	"encoding/hex"
	"errors"
	"net"
	"strconv"
	"strings"
)

// Option is one custom option to place in the message, already in raw
// wire bytes.
type Option struct {
	Code uint16
	Data []byte
}

// ParseOption parses the -o flag syntax "code,type,value" where type is
// one of hex, ip or str. These are equivalent:
//
//	118,hex,C0A80001
//	118,ip,192.168.0.1
func ParseOption(s string, f Family) (Option, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return Option{}, configErrorf("option %q: want code,type,value", s)
	}
	code, err := parseCode(parts[0], f)
	if err != nil {
		return Option{}, err
	}
	var data []byte
	switch parts[1] {
	case "hex":
		data, err = hex.DecodeString(parts[2])
		if err != nil {
			return Option{}, configErrorf("option %d: invalid hex %q: %v", code, parts[2], err)
		}
	case "ip":
		ip := net.ParseIP(parts[2])
		if ip == nil {
			return Option{}, configErrorf("option %d: invalid ip %q", code, parts[2])
		}
		if v4 := ip.To4(); v4 != nil {
			data = v4
		} else {
			data = ip
		}
	case "str":
		data = []byte(parts[2])
	default:
		return Option{}, configErrorf("option %d: unknown value type %q, want hex, ip or str", code, parts[1])
	}
	return Option{Code: code, Data: data}, nil
}

// ParseParams parses a comma separated list of option codes, e.g.
// "1,3,6,15".
func ParseParams(s string, f Family) ([]uint16, error) {
	var codes []uint16
	for _, part := range strings.Split(s, ",") {
		code, err := parseCode(strings.TrimSpace(part), f)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func parseCode(s string, f Family) (uint16, error) {
	max := 16
	if f == FamilyV4 {
		max = 8
	}
	code, err := strconv.ParseUint(s, 10, max)
	if errors.Is(err, strconv.ErrRange) {
		return 0, configErrorf("option code %q out of range for %s", s, f)
	}
	if err != nil {
		return 0, configErrorf("option code %q is not a number", s)
	}
	return uint16(code), nil
}

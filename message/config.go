// Package message builds and validates DHCP client message
// configurations and adapts them to the wire codec.
//
// A Config is a plain description of one message: its kind, transaction
// id, addresses and options. It carries no behavior beyond validation
// and encoding; sending is the probe package's job.
package message

import (
	"fmt"
	"net"
)

// Family selects the protocol family a Config encodes to.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) String() string {
	if f == FamilyV6 {
		return "dhcpv6"
	}
	return "dhcpv4"
}

// FamilyOf returns the family matching the address family of ip.
func FamilyOf(ip net.IP) Family {
	if ip.To4() == nil {
		return FamilyV6
	}
	return FamilyV4
}

// Kind enumerates the client message kinds this tool can emit.
type Kind int

const (
	Discover Kind = iota
	Request
	Release
	Inform
	Decline
	// BootRequest is a bare BOOTP request: no message-type option, no
	// client identifier, no parameter request list unless asked for.
	BootRequest
	Solicit
	InformationRequest
)

var kindNames = map[Kind]string{
	Discover:           "DISCOVER",
	Request:            "REQUEST",
	Release:            "RELEASE",
	Inform:             "INFORM",
	Decline:            "DECLINE",
	BootRequest:        "BOOTREQUEST",
	Solicit:            "SOLICIT",
	InformationRequest: "INFORMATION-REQUEST",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("KIND(%d)", int(k))
}

// Family returns the protocol family the kind belongs to.
func (k Kind) Family() Family {
	switch k {
	case Solicit, InformationRequest:
		return FamilyV6
	default:
		return FamilyV4
	}
}

// ConfigError marks malformed input detected before any network I/O.
// It is never worth retrying.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Config describes one DHCP client message. The zero value is not
// usable; construct through NewConfig and treat it as immutable once
// handed to a runner.
type Config struct {
	Kind   Kind
	Family Family

	// Xid correlates the request with its reply. Only the low 24 bits
	// are carried on the wire for DHCPv6.
	Xid uint32

	Chaddr net.HardwareAddr

	CIAddr net.IP
	YIAddr net.IP
	GIAddr net.IP

	// Optional v4 fields, nil when absent.
	ServerID     net.IP // option 54
	ReqAddr      net.IP // option 50
	SubnetSelect net.IP // option 118
	RelayLink    net.IP // option 82, sub-option 5

	// FName and SName fill the fixed boot file name and server host
	// name header fields, used by BOOTREQUEST.
	FName string
	SName string

	// Params is the parameter request list (v4) or the option request
	// option (v6).
	Params []uint16

	// Options are custom code,value pairs appended last, so a custom
	// option overrides anything the builder inserted for the same code.
	Options []Option

	Broadcast bool
}

// NewConfig returns a Config for kind with a fresh random xid and the
// kind's default parameter request list. A bare BOOTREQUEST starts
// without a parameter request list.
func NewConfig(kind Kind) (*Config, error) {
	xid, err := RandomXid()
	if err != nil {
		return nil, err
	}
	c := &Config{
		Kind:   kind,
		Family: kind.Family(),
		Xid:    xid,
		CIAddr: net.IPv4zero,
		YIAddr: net.IPv4zero,
		GIAddr: net.IPv4zero,
	}
	if kind != BootRequest {
		c.Params = DefaultParams(kind.Family())
	}
	return c, nil
}

// DefaultParams returns the default requested option codes per family:
// subnet mask, router, DNS and domain name for v4, DNS, domain search
// list, SIP servers and bootfile URL for v6.
func DefaultParams(f Family) []uint16 {
	if f == FamilyV6 {
		return []uint16{23, 24, 39, 59}
	}
	return []uint16{1, 3, 6, 15}
}

// Validate checks the invariants encoding relies on. It is called by
// Encode but exposed so callers can fail before opening a socket.
func (c *Config) Validate() error {
	if c.Kind.Family() != c.Family {
		return configErrorf("%s is not a %s message", c.Kind, c.Family)
	}
	if c.Family == FamilyV4 && len(c.Chaddr) == 0 {
		return configErrorf("%s needs a client hardware address and none could be resolved", c.Kind)
	}
	for _, p := range c.Params {
		if c.Family == FamilyV4 && p > 0xff {
			return configErrorf("param %d out of range for dhcpv4 (max 255)", p)
		}
	}
	for _, o := range c.Options {
		if c.Family == FamilyV4 && o.Code > 0xff {
			return configErrorf("option code %d out of range for dhcpv4 (max 255)", o.Code)
		}
	}
	return nil
}

// SetOption records a custom option, replacing any earlier value for
// the same code.
func (c *Config) SetOption(opt Option) {
	for i := range c.Options {
		if c.Options[i].Code == opt.Code {
			c.Options[i] = opt
			return
		}
	}
	c.Options = append(c.Options, opt)
}

// Clone returns a deep copy, used when a new message is derived from an
// already-sent one.
func (c *Config) Clone() *Config {
	nc := *c
	nc.Chaddr = append(net.HardwareAddr(nil), c.Chaddr...)
	nc.Params = append([]uint16(nil), c.Params...)
	nc.Options = make([]Option, len(c.Options))
	for i, o := range c.Options {
		nc.Options[i] = Option{Code: o.Code, Data: append([]byte(nil), o.Data...)}
	}
	return &nc
}

package message

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv6"
	"github.com/insomniacslk/dhcp/iana"
)

var v4Kinds = map[Kind]dhcpv4.MessageType{
	Discover: dhcpv4.MessageTypeDiscover,
	Request:  dhcpv4.MessageTypeRequest,
	Release:  dhcpv4.MessageTypeRelease,
	Inform:   dhcpv4.MessageTypeInform,
	Decline:  dhcpv4.MessageTypeDecline,
}

// Encode validates c and turns it into wire bytes via the codec.
func Encode(c *Config) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Family == FamilyV6 {
		return encodeV6(c)
	}
	return encodeV4(c)
}

func encodeV4(c *Config) ([]byte, error) {
	mods := []dhcpv4.Modifier{dhcpv4.WithHwAddr(c.Chaddr)}
	if c.Kind != BootRequest {
		mt, ok := v4Kinds[c.Kind]
		if !ok {
			return nil, configErrorf("%s cannot be encoded as dhcpv4", c.Kind)
		}
		mods = append(mods, dhcpv4.WithMessageType(mt))
	}
	var xid dhcpv4.TransactionID
	binary.BigEndian.PutUint32(xid[:], c.Xid)
	mods = append(mods, dhcpv4.WithTransactionID(xid))

	msg, err := dhcpv4.New(mods...)
	if err != nil {
		return nil, err
	}
	if c.CIAddr != nil {
		msg.ClientIPAddr = c.CIAddr
	}
	if c.YIAddr != nil {
		msg.YourIPAddr = c.YIAddr
	}
	if c.GIAddr != nil {
		msg.GatewayIPAddr = c.GIAddr
	}
	msg.BootFileName = c.FName
	msg.ServerHostName = c.SName
	if c.Broadcast {
		msg.SetBroadcast()
	}

	if c.Kind != BootRequest {
		// RFC 2132 client identifier: hardware type byte followed by
		// the MAC. A bare BOOTREQUEST carries only what the caller put
		// in explicitly.
		msg.UpdateOption(dhcpv4.OptGeneric(
			dhcpv4.OptionClientIdentifier,
			append([]byte{byte(iana.HWTypeEthernet)}, c.Chaddr...),
		))
	}
	if len(c.Params) > 0 {
		codes := make([]dhcpv4.OptionCode, len(c.Params))
		for i, p := range c.Params {
			codes[i] = dhcpv4.GenericOptionCode(p)
		}
		msg.UpdateOption(dhcpv4.OptParameterRequestList(codes...))
	}
	if c.ReqAddr != nil {
		msg.UpdateOption(dhcpv4.OptRequestedIPAddress(c.ReqAddr))
	}
	if c.ServerID != nil {
		msg.UpdateOption(dhcpv4.OptServerIdentifier(c.ServerID))
	}
	if c.SubnetSelect != nil {
		msg.UpdateOption(dhcpv4.OptGeneric(dhcpv4.GenericOptionCode(118), c.SubnetSelect.To4()))
	}
	if c.RelayLink != nil {
		msg.UpdateOption(dhcpv4.OptRelayAgentInfo(
			dhcpv4.OptGeneric(dhcpv4.GenericOptionCode(5), c.RelayLink.To4()),
		))
	}
	// custom options last, so they win over the builder's defaults
	for _, o := range c.Options {
		msg.UpdateOption(dhcpv4.OptGeneric(dhcpv4.GenericOptionCode(o.Code), o.Data))
	}
	return msg.ToBytes(), nil
}

func encodeV6(c *Config) ([]byte, error) {
	var msg *dhcpv6.Message
	var err error
	switch c.Kind {
	case Solicit:
		msg, err = dhcpv6.NewSolicit(c.Chaddr)
	case InformationRequest:
		msg, err = dhcpv6.NewMessage()
		if err == nil {
			msg.MessageType = dhcpv6.MessageTypeInformationRequest
			if len(c.Chaddr) > 0 {
				duid := &dhcpv6.DUIDLL{
					HWType:        iana.HWTypeEthernet,
					LinkLayerAddr: c.Chaddr,
				}
				msg.UpdateOption(dhcpv6.OptClientID(duid))
			}
		}
	default:
		return nil, configErrorf("%s cannot be encoded as dhcpv6", c.Kind)
	}
	if err != nil {
		return nil, err
	}
	msg.TransactionID = dhcpv6.TransactionID{
		byte(c.Xid >> 16), byte(c.Xid >> 8), byte(c.Xid),
	}
	if len(c.Params) > 0 {
		codes := make([]dhcpv6.OptionCode, len(c.Params))
		for i, p := range c.Params {
			codes[i] = dhcpv6.OptionCode(p)
		}
		msg.UpdateOption(dhcpv6.OptRequestedOption(codes...))
	}
	for _, o := range c.Options {
		msg.UpdateOption(&dhcpv6.OptionGeneric{
			OptionCode: dhcpv6.OptionCode(o.Code),
			OptionData: o.Data,
		})
	}
	return msg.ToBytes(), nil
}

// Msg is a decoded reply from either family, exposing only what reply
// correlation and result reporting need.
type Msg struct {
	v4 *dhcpv4.DHCPv4
	v6 *dhcpv6.Message
}

// Decode parses b according to the given family. Errors here mean the
// datagram was not a usable message of that family; callers typically
// discard and keep waiting.
func Decode(b []byte, f Family) (*Msg, error) {
	if f == FamilyV6 {
		d, err := dhcpv6.FromBytes(b)
		if err != nil {
			return nil, err
		}
		m, ok := d.(*dhcpv6.Message)
		if !ok {
			return nil, fmt.Errorf("dhcpv6 relay message, not a client reply")
		}
		return &Msg{v6: m}, nil
	}
	m, err := dhcpv4.FromBytes(b)
	if err != nil {
		return nil, err
	}
	return &Msg{v4: m}, nil
}

func (m *Msg) Family() Family {
	if m.v6 != nil {
		return FamilyV6
	}
	return FamilyV4
}

// Xid returns the message transaction id, zero-extended to 32 bits for
// DHCPv6.
func (m *Msg) Xid() uint32 {
	if m.v6 != nil {
		t := m.v6.TransactionID
		return uint32(t[0])<<16 | uint32(t[1])<<8 | uint32(t[2])
	}
	return binary.BigEndian.Uint32(m.v4.TransactionID[:])
}

// Matches reports whether the reply correlates with cfg. Matching is by
// transaction id only: on shared segments nothing else is guaranteed to
// be specific to our request.
func (m *Msg) Matches(cfg *Config) bool {
	if m.Family() != cfg.Family {
		return false
	}
	xid := cfg.Xid
	if cfg.Family == FamilyV6 {
		xid &= 0xffffff
	}
	return m.Xid() == xid
}

func (m *Msg) Kind() string {
	if m.v6 != nil {
		return m.v6.MessageType.String()
	}
	return m.v4.MessageType().String()
}

// IsNak reports whether the reply is a v4 NAK.
func (m *Msg) IsNak() bool {
	return m.v4 != nil && m.v4.MessageType() == dhcpv4.MessageTypeNak
}

// YourIP returns the offered address (v4 yiaddr), nil for v6.
func (m *Msg) YourIP() net.IP {
	if m.v4 == nil {
		return nil
	}
	return m.v4.YourIPAddr
}

// ServerID returns the v4 server identifier option, nil when absent.
func (m *Msg) ServerID() net.IP {
	if m.v4 == nil {
		return nil
	}
	return m.v4.ServerIdentifier()
}

// Option returns the raw bytes of the option with the given code, nil
// when the message does not carry it.
func (m *Msg) Option(code uint16) []byte {
	if m.v6 != nil {
		opt := m.v6.GetOneOption(dhcpv6.OptionCode(code))
		if opt == nil {
			return nil
		}
		return opt.ToBytes()
	}
	return m.v4.GetOneOption(dhcpv4.GenericOptionCode(code))
}

// Summary renders the message for logging.
func (m *Msg) Summary() string {
	if m.v6 != nil {
		return m.v6.Summary()
	}
	return m.v4.Summary()
}

// V4 exposes the underlying decoded message for v4 replies, nil
// otherwise.
func (m *Msg) V4() *dhcpv4.DHCPv4 { return m.v4 }

// V6 exposes the underlying decoded message for v6 replies, nil
// otherwise.
func (m *Msg) V6() *dhcpv6.Message { return m.v6 }

package probe

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/net/ipv6"

	"github.com/metal-stack/dhcprobe/pcap"
)

var errNoInterface = errors.New("no interface specified")

// pollInterval bounds how long a blocked receive can outlive a
// cancellation signal.
const pollInterval = 250 * time.Millisecond

// ConnConfig describes the socket a transaction runs over.
type ConnConfig struct {
	// Target is the fixed destination endpoint for every send.
	Target *net.UDPAddr
	// Bind is the local endpoint to listen on.
	Bind *net.UDPAddr
	// Interface scopes the socket to a device. Required when Target is
	// a v6 multicast group, optional otherwise.
	Interface string
}

// Conn owns exactly one bound datagram socket for the duration of a
// transaction or a DORA sequence. It is not safe for concurrent use;
// the runner that opened it is its only user.
type Conn struct {
	pc      net.PacketConn
	target  *net.UDPAddr
	capture *pcap.Capture
}

// NewConn binds the socket and prepares it for the target: enables
// SO_BROADCAST for a broadcast target, joins the multicast group on the
// given interface for a v6 multicast target.
func NewConn(cfg ConnConfig) (*Conn, error) {
	network := "udp4"
	if cfg.Target.IP.To4() == nil {
		network = "udp6"
	}

	pc, err := net.ListenPacket(network, cfg.Bind.String())
	if err != nil {
		hint := ""
		if cfg.Bind.Port != 0 && cfg.Bind.Port < 1024 {
			hint = "binding a privileged port needs CAP_NET_BIND_SERVICE or root"
		}
		return nil, &TransportError{Op: "bind " + cfg.Bind.String(), Err: err, Hint: hint}
	}
	c := &Conn{pc: pc, target: cfg.Target}

	if network == "udp6" && cfg.Target.IP.IsMulticast() {
		if cfg.Interface == "" {
			pc.Close()
			return nil, &TransportError{
				Op:   "join " + cfg.Target.IP.String(),
				Err:  errNoInterface,
				Hint: "a v6 multicast target needs --interface to pick the joining device",
			}
		}
		ifi, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			pc.Close()
			return nil, &TransportError{Op: "resolve interface " + cfg.Interface, Err: err}
		}
		p := ipv6.NewPacketConn(pc)
		if err := p.JoinGroup(ifi, &net.UDPAddr{IP: cfg.Target.IP}); err != nil {
			pc.Close()
			return nil, &TransportError{
				Op:   "join " + cfg.Target.IP.String() + " on " + cfg.Interface,
				Err:  err,
				Hint: "joining the DHCPv6 relay/server group may need CAP_NET_RAW or root",
			}
		}
	} else if cfg.Interface != "" {
		if err := bindToDevice(pc, cfg.Interface); err != nil {
			pc.Close()
			return nil, &TransportError{Op: "scope to " + cfg.Interface, Err: err}
		}
	}

	if network == "udp4" && cfg.Target.IP.Equal(net.IPv4bcast) {
		if err := setBroadcast(pc); err != nil {
			pc.Close()
			return nil, &TransportError{
				Op:  "enable broadcast",
				Err: err,
			}
		}
	}
	return c, nil
}

// SetCapture records every datagram this conn sends or receives.
func (c *Conn) SetCapture(cap *pcap.Capture) {
	c.capture = cap
}

// LocalAddr returns the bound endpoint.
func (c *Conn) LocalAddr() *net.UDPAddr {
	return c.pc.LocalAddr().(*net.UDPAddr)
}

// Send transmits one datagram to the target endpoint.
func (c *Conn) Send(b []byte) error {
	if _, err := c.pc.WriteTo(b, c.target); err != nil {
		return &TransportError{Op: "send to " + c.target.String(), Err: err}
	}
	if c.capture != nil {
		c.capture.Outbound(b, c.LocalAddr(), c.target)
	}
	return nil
}

// Recv blocks until a datagram arrives, the deadline elapses
// (ErrTimeout) or ctx is canceled (ErrCanceled). The read deadline is
// sliced into short polls so cancellation never waits for the full
// remaining deadline.
func (c *Conn) Recv(ctx context.Context, deadline time.Time) ([]byte, *net.UDPAddr, error) {
	buf := make([]byte, 1500)
	for {
		if ctx.Err() != nil {
			return nil, nil, ErrCanceled
		}
		slice := time.Now().Add(pollInterval)
		if slice.After(deadline) {
			slice = deadline
		}
		if err := c.pc.SetReadDeadline(slice); err != nil {
			return nil, nil, &TransportError{Op: "set read deadline", Err: err}
		}
		n, addr, err := c.pc.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if ctx.Err() != nil {
					return nil, nil, ErrCanceled
				}
				if !time.Now().Before(deadline) {
					return nil, nil, ErrTimeout
				}
				continue
			}
			return nil, nil, &TransportError{Op: "recv", Err: err}
		}
		b := make([]byte, n)
		copy(b, buf[:n])
		src := addr.(*net.UDPAddr)
		if c.capture != nil {
			c.capture.Inbound(b, src, c.LocalAddr())
		}
		return b, src, nil
	}
}

// Close releases the socket. Safe to call on every exit path.
func (c *Conn) Close() error {
	return c.pc.Close()
}

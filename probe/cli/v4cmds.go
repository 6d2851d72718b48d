package cli

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/metal-stack/dhcprobe/message"
)

func newV4Cmd(use string, kind message.Kind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " target",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(args[0], message.FamilyV4)
			if err != nil {
				return err
			}
			defer s.close()
			cfg, err := v4Config(cmd, kind, s)
			if err != nil {
				return err
			}
			return s.runOne(rootCtx, cfg)
		},
	}
	addV4Flags(cmd)
	return cmd
}

func init() {
	rootCmd.AddCommand(
		newV4Cmd("discover", message.Discover, "Send a DISCOVER message"),
		newV4Cmd("request", message.Request, "Send a REQUEST message"),
		newV4Cmd("release", message.Release, "Send a RELEASE message"),
		newV4Cmd("inform", message.Inform, "Send an INFORM message"),
		newV4Cmd("decline", message.Decline, "Send a DECLINE message"),
	)
}

func addV4Flags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("chaddr", "c", "", `client hardware address, "random", or empty for the first interface MAC`)
	f.String("ciaddr", "", "client address field")
	f.StringP("yiaddr", "y", "", "your-address field")
	f.StringP("giaddr", "g", "", "gateway address field")
	f.StringP("sident", "s", "", "server identifier, option 54")
	f.StringP("req-addr", "r", "", "requested address, option 50")
	f.String("subnet-select", "", "subnet selection, option 118")
	f.String("relay-link", "", "relay agent link selection, option 82 sub-option 5")
	f.StringArrayP("opt", "o", nil, `custom option "code,type,value", e.g. 118,ip,192.168.0.1 or 118,hex,C0A80001`)
	f.String("params", "", "parameter request list codes (default 1,3,6,15)")
	f.Uint32("xid", 0, "fixed transaction id (default random)")
}

func ipFlag(cmd *cobra.Command, name string) (net.IP, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("--%s: invalid address %q", name, s)
	}
	return ip, nil
}

// v4Config turns the command's flags into a validated message config.
func v4Config(cmd *cobra.Command, kind message.Kind, s *session) (*message.Config, error) {
	cfg, err := message.NewConfig(kind)
	if err != nil {
		return nil, err
	}

	chaddr, err := cmd.Flags().GetString("chaddr")
	if err != nil {
		return nil, err
	}
	if cfg.Chaddr, err = message.ParseChaddr(chaddr); err != nil {
		return nil, err
	}

	if xid, err := cmd.Flags().GetUint32("xid"); err != nil {
		return nil, err
	} else if xid != 0 {
		cfg.Xid = xid
	}

	for name, dst := range map[string]*net.IP{
		"ciaddr":        &cfg.CIAddr,
		"yiaddr":        &cfg.YIAddr,
		"giaddr":        &cfg.GIAddr,
		"sident":        &cfg.ServerID,
		"req-addr":      &cfg.ReqAddr,
		"subnet-select": &cfg.SubnetSelect,
		"relay-link":    &cfg.RelayLink,
	} {
		ip, err := ipFlag(cmd, name)
		if err != nil {
			return nil, err
		}
		if ip != nil {
			*dst = ip
		}
	}

	if params, err := cmd.Flags().GetString("params"); err != nil {
		return nil, err
	} else if params != "" {
		if cfg.Params, err = message.ParseParams(params, message.FamilyV4); err != nil {
			return nil, err
		}
	}

	opts, err := cmd.Flags().GetStringArray("opt")
	if err != nil {
		return nil, err
	}
	for _, o := range opts {
		opt, err := message.ParseOption(o, message.FamilyV4)
		if err != nil {
			return nil, err
		}
		cfg.SetOption(opt)
	}

	// servers need the broadcast flag set to answer a client that has
	// no address yet and asked via broadcast
	cfg.Broadcast = s.target.IP.Equal(net.IPv4bcast)

	return cfg, cfg.Validate()
}

package cli

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/metal-stack/dhcprobe/message"
)

var bootreqCmd = &cobra.Command{
	Use:   "bootreq target",
	Short: "Send a bare BOOTREQUEST message",
	Long: `bootreq sends a BOOTP-style request without a DHCP message-type
option: only the fixed header fields (chaddr, ciaddr, giaddr, fname,
sname) and explicitly supplied options go on the wire.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(args[0], message.FamilyV4)
		if err != nil {
			return err
		}
		defer s.close()
		cfg, err := bootreqConfig(cmd, s)
		if err != nil {
			return err
		}
		return s.runOne(rootCtx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(bootreqCmd)
	addBootreqFlags(bootreqCmd)
}

func addBootreqFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("chaddr", "c", "", `client hardware address, "random", or empty for the first interface MAC`)
	f.String("ciaddr", "", "client address field")
	f.StringP("giaddr", "g", "", "gateway address field")
	f.String("fname", "", "boot file name header field")
	f.String("sname", "", "server host name header field")
	f.StringArrayP("opt", "o", nil, `custom option "code,type,value"`)
	f.Uint32("xid", 0, "fixed transaction id (default random)")
}

func bootreqConfig(cmd *cobra.Command, s *session) (*message.Config, error) {
	cfg, err := message.NewConfig(message.BootRequest)
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
		"ciaddr": &cfg.CIAddr,
		"giaddr": &cfg.GIAddr,
	} {
		ip, err := ipFlag(cmd, name)
		if err != nil {
			return nil, err
		}
		if ip != nil {
			*dst = ip
		}
	}

	if cfg.FName, err = cmd.Flags().GetString("fname"); err != nil {
		return nil, err
	}
	if cfg.SName, err = cmd.Flags().GetString("sname"); err != nil {
		return nil, err
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

	cfg.Broadcast = s.target.IP.Equal(net.IPv4bcast)
	return cfg, cfg.Validate()
}

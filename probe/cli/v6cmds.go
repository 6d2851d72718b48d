package cli

import (
	"github.com/spf13/cobra"

	"github.com/metal-stack/dhcprobe/message"
)

func newV6Cmd(use string, kind message.Kind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " target",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(args[0], message.FamilyV6)
			if err != nil {
				return err
			}
			defer s.close()
			cfg, err := v6Config(cmd, kind)
			if err != nil {
				return err
			}
			return s.runOne(rootCtx, cfg)
		},
	}
	f := cmd.Flags()
	f.StringP("chaddr", "c", "", `hardware address for the client DUID, or "random"`)
	f.String("params", "", "option request codes (default 23,24,39,59)")
	f.StringArrayP("opt", "o", nil, `custom option "code,type,value"`)
	f.Uint32("xid", 0, "fixed transaction id, low 24 bits used (default random)")
	return cmd
}

func init() {
	rootCmd.AddCommand(
		newV6Cmd("solicit", message.Solicit, "Send a SOLICIT message (dhcpv6)"),
		newV6Cmd("inforeq", message.InformationRequest, "Send an INFORMATION-REQUEST message (dhcpv6)"),
	)
}

func v6Config(cmd *cobra.Command, kind message.Kind) (*message.Config, error) {
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

	if params, err := cmd.Flags().GetString("params"); err != nil {
		return nil, err
	} else if params != "" {
		if cfg.Params, err = message.ParseParams(params, message.FamilyV6); err != nil {
			return nil, err
		}
	}

	opts, err := cmd.Flags().GetStringArray("opt")
	if err != nil {
		return nil, err
	}
	for _, o := range opts {
		opt, err := message.ParseOption(o, message.FamilyV6)
		if err != nil {
			return nil, err
		}
		cfg.SetOption(opt)
	}
	return cfg, cfg.Validate()
}

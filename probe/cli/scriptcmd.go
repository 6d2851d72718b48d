package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/metal-stack/dhcprobe/message"
	"github.com/metal-stack/dhcprobe/probe"
	"github.com/metal-stack/dhcprobe/script"
)

var scriptCmd = &cobra.Command{
	Use:   "script target file.lua",
	Short: "Drive message construction and sending from a Lua script",
	Long: `script runs a Lua file with the message builders in scope:

    local d = discover()
    d.chaddr = "02:00:5e:00:53:01"
    local reply = d:send()
    print(reply.kind, reply.yiaddr)

send() performs exactly one transaction with retry disabled; scripts do
their own retry and branching. Errors raised by send() name the failure
class (config, transport, timeout, canceled).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(args[0], message.FamilyV4)
		if err != nil {
			return err
		}
		defer s.close()

		// each send opens a fresh socket so script transactions stay
		// independent; retries are off by contract
		policy := s.policy
		policy.NoRetry = true
		sender := func(ctx context.Context, cfg *message.Config) (*probe.Reply, error) {
			conn, err := s.openConn()
			if err != nil {
				return nil, err
			}
			return probe.NewRunner(s.log, conn, policy).Run(ctx, cfg)
		}

		engine := script.New(s.log, sender)
		if chaddr, err := cmd.Flags().GetString("chaddr"); err != nil {
			return err
		} else if chaddr != "" {
			engine.SetDefaultChaddr(chaddr)
		}
		return engine.RunFile(rootCtx, args[1])
	},
}

func init() {
	rootCmd.AddCommand(scriptCmd)
	scriptCmd.Flags().StringP("chaddr", "c", "", "default chaddr for builders created by the script")
}

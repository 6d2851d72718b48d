package cli

import (
	"github.com/spf13/cobra"

	"github.com/metal-stack/dhcprobe/message"
	"github.com/metal-stack/dhcprobe/probe"
)

var doraCmd = &cobra.Command{
	Use:   "dora target",
	Short: "Run the full Discover-Offer-Request-Ack exchange",
	Long: `dora sends a DISCOVER, derives a REQUEST from the received OFFER
(requested address and server identifier) and waits for the ACK. If the
OFFER never arrives no REQUEST is sent; if the REQUEST leg fails the
sequence is not restarted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(args[0], message.FamilyV4)
		if err != nil {
			return err
		}
		defer s.close()

		discover, err := v4Config(cmd, message.Discover, s)
		if err != nil {
			return err
		}

		conn, err := s.openConn()
		if err != nil {
			return err
		}
		runner := probe.NewRunner(s.log, conn, s.policy)
		res, err := probe.NewDora(s.log, runner).Run(rootCtx, discover)
		if res != nil && res.Offer != nil {
			s.log.Infow("offer", "from", res.Offer.Source.String())
			s.log.Info(res.Offer.Msg.Summary())
		}
		if err != nil {
			s.log.Errorw("dora failed", "state", res.State.String())
			return err
		}
		s.log.Infow("ack", "from", res.Ack.Source.String())
		s.log.Info(res.Ack.Msg.Summary())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doraCmd)
	addV4Flags(doraCmd)
}

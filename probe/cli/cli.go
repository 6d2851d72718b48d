// Package cli implements the commandline interface for dhcprobe.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/metal-stack/dhcprobe/probe"
)

// rootCtx is canceled on SIGINT so in-flight waits unwind as canceled
// rather than running out their deadline.
var rootCtx = context.Background()

// CLI runs the dhcprobe commandline. The exit code tells a silent
// server (2) from a socket problem (3) from an interrupt (130) from
// bad input (1).
func CLI() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	rootCtx = ctx

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var terr *probe.TransportError
	switch {
	case errors.Is(err, probe.ErrTimeout):
		return 2
	case errors.As(err, &terr):
		return 3
	case errors.Is(err, probe.ErrCanceled):
		return 130
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:   "dhcprobe",
	Short: "Exercise DHCP servers with handcrafted client messages",
	Long: `dhcprobe builds DHCPv4/DHCPv6 client messages, sends them to an
arbitrary target and correlates the replies, without ever touching the
host's own network configuration.

ex dhcpv4:
    dhcprobe discover 255.255.255.255          broadcast to the default port
    dhcprobe discover 0.0.0.0 -p 9901          unicast to a test server
    dhcprobe dora 192.168.0.1                  full discover/offer/request/ack
    dhcprobe dora 192.168.0.1 -o 118,ip,192.168.0.1
dhcpv6:
    dhcprobe inforeq ff02::1:2 -i eth0         multicast information-request
    dhcprobe solicit ::1 -p 9901`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var cfgFile string

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file")
	pf.StringP("bind", "b", "", "address to bind to (default 0.0.0.0:68 / [::]:547)")
	pf.IntP("port", "p", 0, "target port (default 67 for v4, 546 for v6)")
	pf.IntP("timeout", "t", 3, "seconds to wait per attempt")
	pf.Int("attempts", 3, "total sends before giving up")
	pf.Bool("no-retry", false, "send exactly once, never resend")
	pf.StringP("interface", "i", "", "scope the socket to this device (required for v6 multicast)")
	pf.String("output", "pretty", "log format: pretty, debug or json")
	pf.String("pcap", "", "also record the exchange to this pcap file")
	pf.String("metrics-addr", "", "expose prometheus metrics on this address while running")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "error reading configuration file %q: %s\n", viper.ConfigFileUsed(), err)
			os.Exit(1)
		}
	}

	viper.SetEnvPrefix("dhcprobe")
	viper.AutomaticEnv()
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "error binding flags: %s\n", err)
		os.Exit(1)
	}
}

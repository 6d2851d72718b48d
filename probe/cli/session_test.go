package cli

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/metal-stack/dhcprobe/message"
	"github.com/metal-stack/dhcprobe/probe"
)

func TestResolveBindDefaults(t *testing.T) {
	tests := []struct {
		name        string
		flag        string
		family      message.Family
		defaultPort bool
		want        string
	}{
		{
			name:        "v4 default target port binds the client port",
			family:      message.FamilyV4,
			defaultPort: true,
			want:        "0.0.0.0:68",
		},
		{
			name:   "v4 custom target port binds ephemeral",
			family: message.FamilyV4,
			want:   "0.0.0.0:0",
		},
		{
			name:        "v6 default target port binds the client port",
			family:      message.FamilyV6,
			defaultPort: true,
			want:        "[::]:547",
		},
		{
			name:   "v6 custom target port binds ephemeral",
			family: message.FamilyV6,
			want:   "[::]:0",
		},
		{
			name:        "explicit bind wins over defaults",
			flag:        "127.0.0.1:1067",
			family:      message.FamilyV4,
			defaultPort: true,
			want:        "127.0.0.1:1067",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveBind(tt.flag, tt.family, tt.defaultPort)
			require.NoError(t, err)
			require.Equal(t, tt.want, got.String())
		})
	}

	_, err := resolveBind("not-an-endpoint", message.FamilyV4, true)
	require.Error(t, err)
}

func TestV4ConfigFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addV4Flags(cmd)
	for flag, value := range map[string]string{
		"chaddr":   "02:00:5e:00:53:01",
		"sident":   "10.0.0.1",
		"req-addr": "10.0.0.5",
		"xid":      "42",
		"params":   "1,3",
	} {
		require.NoError(t, cmd.Flags().Set(flag, value))
	}
	require.NoError(t, cmd.Flags().Set("opt", "118,ip,192.168.0.1"))

	s := &session{target: &net.UDPAddr{IP: net.IPv4bcast, Port: 67}}
	cfg, err := v4Config(cmd, message.Request, s)
	require.NoError(t, err)

	require.Equal(t, "02:00:5e:00:53:01", cfg.Chaddr.String())
	require.True(t, cfg.ServerID.Equal(net.ParseIP("10.0.0.1")))
	require.True(t, cfg.ReqAddr.Equal(net.ParseIP("10.0.0.5")))
	require.Equal(t, uint32(42), cfg.Xid)
	require.Equal(t, []uint16{1, 3}, cfg.Params)
	require.Equal(t, []message.Option{{Code: 118, Data: []byte{192, 168, 0, 1}}}, cfg.Options)
	// a broadcast target sets the broadcast flag
	require.True(t, cfg.Broadcast)
}

func TestBootreqConfigFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addBootreqFlags(cmd)
	for flag, value := range map[string]string{
		"chaddr": "02:00:5e:00:53:01",
		"giaddr": "10.0.1.1",
		"fname":  "pxelinux.0",
		"sname":  "boot.example.org",
	} {
		require.NoError(t, cmd.Flags().Set(flag, value))
	}

	s := &session{target: &net.UDPAddr{IP: net.IPv4bcast, Port: 67}}
	cfg, err := bootreqConfig(cmd, s)
	require.NoError(t, err)
	require.Equal(t, message.BootRequest, cfg.Kind)
	require.Equal(t, "pxelinux.0", cfg.FName)
	require.Equal(t, "boot.example.org", cfg.SName)
	require.True(t, cfg.GIAddr.Equal(net.ParseIP("10.0.1.1")))
	require.Empty(t, cfg.Params)
	require.True(t, cfg.Broadcast)
}

func TestExitCodes(t *testing.T) {
	require.Equal(t, 2, exitCode(fmt.Errorf("discover: %w", probe.ErrTimeout)))
	require.Equal(t, 3, exitCode(&probe.TransportError{Op: "bind", Err: errors.New("denied")}))
	require.Equal(t, 130, exitCode(probe.ErrCanceled))
	require.Equal(t, 1, exitCode(errors.New("invalid target")))
}

func TestV4ConfigRejectsBadAddress(t *testing.T) {
	cmd := &cobra.Command{}
	addV4Flags(cmd)
	require.NoError(t, cmd.Flags().Set("sident", "not-an-ip"))

	s := &session{target: &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 67}}
	_, err := v4Config(cmd, message.Request, s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sident")
}

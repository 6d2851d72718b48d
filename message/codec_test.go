package message

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, kind Kind) *Config {
	t.Helper()
	cfg, err := NewConfig(kind)
	require.NoError(t, err)
	cfg.Chaddr, err = ParseChaddr("02:00:5e:00:53:01")
	require.NoError(t, err)
	return cfg
}

func TestEncodeDecodeV4(t *testing.T) {
	cfg := testConfig(t, Discover)
	cfg.Xid = 0xdeadbeef

	b, err := Encode(cfg)
	require.NoError(t, err)

	msg, err := Decode(b, FamilyV4)
	require.NoError(t, err)
	require.Equal(t, "DISCOVER", msg.Kind())
	require.Equal(t, uint32(0xdeadbeef), msg.Xid())
	require.True(t, msg.Matches(cfg))
	// always present: client identifier and parameter request list
	require.Equal(t, append([]byte{1}, cfg.Chaddr...), msg.Option(61))
	require.Equal(t, []byte{1, 3, 6, 15}, msg.Option(55))
}

func TestCustomOptionRoundTrip(t *testing.T) {
	cfg := testConfig(t, Discover)
	opt, err := ParseOption("118,hex,C0A80001", FamilyV4)
	require.NoError(t, err)
	cfg.SetOption(opt)

	b, err := Encode(cfg)
	require.NoError(t, err)
	msg, err := Decode(b, FamilyV4)
	require.NoError(t, err)

	require.Equal(t, []byte{0xc0, 0xa8, 0x00, 0x01}, msg.Option(118))
}

func TestCustomOptionOverridesBuilder(t *testing.T) {
	cfg := testConfig(t, Request)
	cfg.ServerID = net.ParseIP("10.0.0.1")
	// custom option 54 must win over the --sident value
	cfg.SetOption(Option{Code: 54, Data: []byte{10, 0, 0, 2}})

	b, err := Encode(cfg)
	require.NoError(t, err)
	msg, err := Decode(b, FamilyV4)
	require.NoError(t, err)
	require.Equal(t, []byte{10, 0, 0, 2}, msg.Option(54))
}

func TestEncodeRequestFields(t *testing.T) {
	cfg := testConfig(t, Request)
	cfg.ReqAddr = net.ParseIP("10.0.0.5")
	cfg.ServerID = net.ParseIP("10.0.0.1")
	cfg.YIAddr = net.ParseIP("10.0.0.5")

	b, err := Encode(cfg)
	require.NoError(t, err)
	msg, err := Decode(b, FamilyV4)
	require.NoError(t, err)

	require.Equal(t, "REQUEST", msg.Kind())
	require.Equal(t, []byte{10, 0, 0, 5}, msg.Option(50))
	require.Equal(t, []byte{10, 0, 0, 1}, msg.Option(54))
	require.True(t, msg.YourIP().Equal(net.ParseIP("10.0.0.5")))
	require.True(t, msg.ServerID().Equal(net.ParseIP("10.0.0.1")))
}

func TestEncodeBootRequest(t *testing.T) {
	cfg := testConfig(t, BootRequest)
	cfg.FName = "pxelinux.0"
	cfg.SName = "boot.example.org"

	b, err := Encode(cfg)
	require.NoError(t, err)
	msg, err := Decode(b, FamilyV4)
	require.NoError(t, err)

	// bare BOOTP: no message type, client identifier or parameter
	// request list
	require.Nil(t, msg.Option(53))
	require.Nil(t, msg.Option(61))
	require.Nil(t, msg.Option(55))
	require.Equal(t, "pxelinux.0", msg.V4().BootFileName)
	require.Equal(t, "boot.example.org", msg.V4().ServerHostName)
	require.True(t, msg.Matches(cfg))
}

func TestBootRequestCarriesExplicitOptions(t *testing.T) {
	cfg := testConfig(t, BootRequest)
	opt, err := ParseOption("60,str,PXEClient", FamilyV4)
	require.NoError(t, err)
	cfg.SetOption(opt)

	b, err := Encode(cfg)
	require.NoError(t, err)
	msg, err := Decode(b, FamilyV4)
	require.NoError(t, err)
	require.Equal(t, []byte("PXEClient"), msg.Option(60))
	require.Nil(t, msg.Option(53))
}

func TestEncodeV6InformationRequest(t *testing.T) {
	cfg := testConfig(t, InformationRequest)
	cfg.Xid = 0x00123456

	b, err := Encode(cfg)
	require.NoError(t, err)
	msg, err := Decode(b, FamilyV6)
	require.NoError(t, err)

	require.Equal(t, FamilyV6, msg.Family())
	require.Equal(t, uint32(0x123456), msg.Xid())
	require.True(t, msg.Matches(cfg))
	// the option request option carries the default params
	require.NotNil(t, msg.Option(6))
}

func TestEncodeV6Solicit(t *testing.T) {
	cfg := testConfig(t, Solicit)

	b, err := Encode(cfg)
	require.NoError(t, err)
	msg, err := Decode(b, FamilyV6)
	require.NoError(t, err)
	require.Equal(t, "SOLICIT", msg.Kind())
	// client identifier from the chaddr
	require.NotNil(t, msg.Option(1))
}

func TestKindFamilyMismatch(t *testing.T) {
	cfg := testConfig(t, Discover)
	cfg.Family = FamilyV6

	_, err := Encode(cfg)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestValidateNeedsChaddr(t *testing.T) {
	cfg, err := NewConfig(Discover)
	require.NoError(t, err)
	cfg.Chaddr = nil

	_, err = Encode(cfg)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestXidMismatchDoesNotMatch(t *testing.T) {
	cfg := testConfig(t, Discover)
	cfg.Xid = 1

	other := testConfig(t, Discover)
	other.Xid = 2
	b, err := Encode(other)
	require.NoError(t, err)
	msg, err := Decode(b, FamilyV4)
	require.NoError(t, err)
	require.False(t, msg.Matches(cfg))
}

func TestCloneIsDeep(t *testing.T) {
	cfg := testConfig(t, Discover)
	cfg.SetOption(Option{Code: 118, Data: []byte{1, 2}})

	cl := cfg.Clone()
	cl.Options[0].Data[0] = 9
	cl.Chaddr[0] = 9
	cl.Params[0] = 9

	require.Equal(t, byte(1), cfg.Options[0].Data[0])
	require.Equal(t, byte(2), cfg.Chaddr[0])
	require.Equal(t, uint16(1), cfg.Params[0])
}

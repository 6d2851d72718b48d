package script

import (
	"errors"
	"fmt"
	"net"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/metal-stack/dhcprobe/message"
	"github.com/metal-stack/dhcprobe/probe"
)

const builderTypeName = "message_builder"

func checkConfig(L *lua.LState) *message.Config {
	ud := L.CheckUserData(1)
	if cfg, ok := ud.Value.(*message.Config); ok {
		return cfg
	}
	L.ArgError(1, "message builder expected")
	return nil
}

// builderIndex resolves both methods (send, rand_chaddr) and field
// reads on a builder.
func (e *Engine) builderIndex(L *lua.LState) int {
	cfg := checkConfig(L)
	key := L.CheckString(2)

	switch key {
	case "send":
		L.Push(L.NewFunction(e.builderSend))
		return 1
	case "rand_chaddr":
		L.Push(L.NewFunction(builderRandChaddr))
		return 1
	}

	push := func(v lua.LValue) int {
		L.Push(v)
		return 1
	}
	ipField := func(ip net.IP) int {
		if ip == nil {
			return push(lua.LNil)
		}
		return push(lua.LString(ip.String()))
	}
	switch key {
	case "kind":
		return push(lua.LString(cfg.Kind.String()))
	case "xid":
		return push(lua.LNumber(cfg.Xid))
	case "chaddr":
		return push(lua.LString(cfg.Chaddr.String()))
	case "ciaddr":
		return ipField(cfg.CIAddr)
	case "yiaddr":
		return ipField(cfg.YIAddr)
	case "giaddr":
		return ipField(cfg.GIAddr)
	case "sident":
		return ipField(cfg.ServerID)
	case "req_addr":
		return ipField(cfg.ReqAddr)
	case "subnet_select":
		return ipField(cfg.SubnetSelect)
	case "relay_link":
		return ipField(cfg.RelayLink)
	case "fname":
		return push(lua.LString(cfg.FName))
	case "sname":
		return push(lua.LString(cfg.SName))
	case "broadcast":
		return push(lua.LBool(cfg.Broadcast))
	case "params":
		parts := make([]string, len(cfg.Params))
		for i, p := range cfg.Params {
			parts[i] = fmt.Sprintf("%d", p)
		}
		return push(lua.LString(strings.Join(parts, ",")))
	}
	return push(lua.LNil)
}

// builderNewIndex handles field writes; parse failures surface as Lua
// errors rather than being swallowed.
func (e *Engine) builderNewIndex(L *lua.LState) int {
	cfg := checkConfig(L)
	key := L.CheckString(2)

	ipField := func(dst *net.IP) {
		s := L.CheckString(3)
		ip := net.ParseIP(s)
		if ip == nil {
			L.RaiseError("%s: invalid ip %q", key, s)
			return
		}
		*dst = ip
	}
	switch key {
	case "xid":
		cfg.Xid = uint32(L.CheckInt64(3))
	case "chaddr":
		hw, err := message.ParseChaddr(L.CheckString(3))
		if err != nil {
			L.RaiseError("chaddr: %v", err)
			return 0
		}
		cfg.Chaddr = hw
	case "ciaddr":
		ipField(&cfg.CIAddr)
	case "yiaddr":
		ipField(&cfg.YIAddr)
	case "giaddr":
		ipField(&cfg.GIAddr)
	case "sident":
		ipField(&cfg.ServerID)
	case "req_addr":
		ipField(&cfg.ReqAddr)
	case "subnet_select":
		ipField(&cfg.SubnetSelect)
	case "relay_link":
		ipField(&cfg.RelayLink)
	case "fname":
		cfg.FName = L.CheckString(3)
	case "sname":
		cfg.SName = L.CheckString(3)
	case "broadcast":
		cfg.Broadcast = L.CheckBool(3)
	case "params":
		params, err := message.ParseParams(L.CheckString(3), cfg.Family)
		if err != nil {
			L.RaiseError("params: %v", err)
			return 0
		}
		cfg.Params = params
	case "opt":
		opt, err := message.ParseOption(L.CheckString(3), cfg.Family)
		if err != nil {
			L.RaiseError("opt: %v", err)
			return 0
		}
		cfg.SetOption(opt)
	default:
		L.RaiseError("unknown field %q", key)
	}
	return 0
}

func builderToString(L *lua.LState) int {
	cfg := checkConfig(L)
	L.Push(lua.LString(fmt.Sprintf("%s xid=%d chaddr=%s", cfg.Kind, cfg.Xid, cfg.Chaddr)))
	return 1
}

func builderRandChaddr(L *lua.LState) int {
	cfg := checkConfig(L)
	hw, err := message.RandomChaddr()
	if err != nil {
		L.RaiseError("rand_chaddr: %v", err)
		return 0
	}
	cfg.Chaddr = hw
	return 0
}

// builderSend runs one transaction and returns the reply table. There
// is exactly one send per call and no retry; the error message names
// the failure class so scripts can branch on it.
func (e *Engine) builderSend(L *lua.LState) int {
	cfg := checkConfig(L)
	reply, err := e.send(L.Context(), cfg)
	if err != nil {
		var cerr *message.ConfigError
		var terr *probe.TransportError
		switch {
		case errors.As(err, &cerr):
			L.RaiseError("send: %v", err)
		case errors.As(err, &terr):
			L.RaiseError("send: transport: %v", err)
		case errors.Is(err, probe.ErrTimeout):
			L.RaiseError("send: timeout: %v", err)
		case errors.Is(err, probe.ErrCanceled):
			L.RaiseError("send: canceled")
		default:
			L.RaiseError("send: %v", err)
		}
		return 0
	}
	return e.pushReply(L, reply)
}

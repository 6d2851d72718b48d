// Package script embeds a Lua interpreter exposing the message
// builders and a send operation, so exchanges can be scripted without
// recompiling. Scripts get no automatic retries; looping and branching
// on failures is their job.
package script

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/metal-stack/dhcprobe/message"
	"github.com/metal-stack/dhcprobe/probe"
)

// Sender runs one transaction for the script. The CLI wires this to a
// runner with retry disabled.
type Sender func(ctx context.Context, cfg *message.Config) (*probe.Reply, error)

// Engine hosts one Lua interpreter. Not safe for concurrent use.
type Engine struct {
	log    *zap.SugaredLogger
	send   Sender
	chaddr string // default for builders, may be empty
}

// New returns an engine dispatching send() calls to sender.
func New(log *zap.SugaredLogger, sender Sender) *Engine {
	return &Engine{log: log, send: sender}
}

// SetDefaultChaddr presets the chaddr every builder starts with.
func (e *Engine) SetDefaultChaddr(chaddr string) {
	e.chaddr = chaddr
}

// RunFile executes the script at path. Lua runtime errors, including
// errors raised by send(), are returned verbatim.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	L := e.newState(ctx)
	defer L.Close()
	return L.DoFile(path)
}

// RunString executes src, mainly for tests.
func (e *Engine) RunString(ctx context.Context, src string) error {
	L := e.newState(ctx)
	defer L.Close()
	return L.DoString(src)
}

var constructors = map[string]message.Kind{
	"discover": message.Discover,
	"request":  message.Request,
	"release":  message.Release,
	"inform":   message.Inform,
	"decline":  message.Decline,
	"bootreq":  message.BootRequest,
}

func (e *Engine) newState(ctx context.Context) *lua.LState {
	L := lua.NewState()
	L.SetContext(ctx)

	mt := L.NewTypeMetatable(builderTypeName)
	L.SetField(mt, "__index", L.NewFunction(e.builderIndex))
	L.SetField(mt, "__newindex", L.NewFunction(e.builderNewIndex))
	L.SetField(mt, "__tostring", L.NewFunction(builderToString))

	for name, kind := range constructors {
		kind := kind
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			cfg, err := message.NewConfig(kind)
			if err != nil {
				L.RaiseError("%s: %v", name, err)
				return 0
			}
			if e.chaddr != "" {
				hw, err := message.ParseChaddr(e.chaddr)
				if err != nil {
					L.RaiseError("%s: %v", name, err)
					return 0
				}
				cfg.Chaddr = hw
			}
			ud := L.NewUserData()
			ud.Value = cfg
			L.SetMetatable(ud, L.GetTypeMetatable(builderTypeName))
			L.Push(ud)
			return 1
		}))
	}

	// route print through the logger so script output lands in the
	// selected format
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		e.log.Infow(strings.Join(parts, "\t"), "source", "script")
		return 0
	}))
	return L
}

// pushReply converts a correlated reply into the table scripts see.
func (e *Engine) pushReply(L *lua.LState, reply *probe.Reply) int {
	t := L.NewTable()
	L.SetField(t, "kind", lua.LString(reply.Msg.Kind()))
	L.SetField(t, "xid", lua.LNumber(reply.Msg.Xid()))
	if ip := reply.Msg.YourIP(); ip != nil {
		L.SetField(t, "yiaddr", lua.LString(ip.String()))
	}
	if ip := reply.Msg.ServerID(); ip != nil {
		L.SetField(t, "sident", lua.LString(ip.String()))
	}
	L.SetField(t, "source", lua.LString(reply.Source.String()))
	L.SetField(t, "summary", lua.LString(reply.Msg.Summary()))
	msg := reply.Msg
	L.SetField(t, "opt", L.NewFunction(func(L *lua.LState) int {
		code := L.CheckInt(1)
		if v := msg.Option(uint16(code)); v != nil {
			L.Push(lua.LString(fmt.Sprintf("%x", v)))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))
	L.Push(t)
	return 1
}

//go:build !linux

package probe

import (
	"fmt"
	"net"
)

func bindToDevice(pc net.PacketConn, name string) error {
	return fmt.Errorf("scoping to an interface is only supported on linux")
}

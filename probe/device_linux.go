//go:build linux

package probe

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func bindToDevice(pc net.PacketConn, name string) error {
	uc, ok := pc.(*net.UDPConn)
	if !ok {
		return fmt.Errorf("not a UDP socket")
	}
	rc, err := uc.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	err = rc.Control(func(fd uintptr) {
		serr = unix.BindToDevice(int(fd), name)
	})
	if err != nil {
		return err
	}
	return serr
}

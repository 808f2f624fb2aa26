//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package registry

import (
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var sharedPortSupported = true

func reusePort(_, _ string, c syscall.RawConn) error {
	var opErr error
	if err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if opErr == nil {
			opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		}
	}); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(opErr)
}

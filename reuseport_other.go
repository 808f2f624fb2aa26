//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package registry

import "syscall"

var sharedPortSupported = false

// reusePort is a no-op where SO_REUSEPORT is not available. Peer then has to serve files on a port
// different from the one registry advertises.
func reusePort(_, _ string, _ syscall.RawConn) error {
	return nil
}

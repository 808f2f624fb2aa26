package registry

import (
	"net"
	"net/netip"
	"strconv"

	"github.com/pkg/errors"

	"github.com/outofforest/registry/wire"
)

// wireAddress converts the transport address to the form advertised in SEARCH_REPLY.
// Addresses which are not IPv4 are reported as 0.0.0.0.
func wireAddress(addr net.Addr) (wire.IPv4, uint16) {
	addrPort, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return wire.IPv4{}, 0
	}
	ip := addrPort.Addr().Unmap()
	if !ip.Is4() {
		return wire.IPv4{}, addrPort.Port()
	}
	return ip.As4(), addrPort.Port()
}

func joinHostPort(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
}

// ParsePort parses TCP port number given in decimal form.
func ParsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil || port == 0 {
		return 0, errors.Errorf("invalid port %q", s)
	}
	return uint16(port), nil
}

// ParsePeerID parses peer ID given in decimal form. Zero is reserved for the not-found reply.
func ParsePeerID(s string) (wire.PeerID, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.Errorf("peer ID must be a positive integer < 2^32, got %q", s)
	}
	return wire.PeerID(id), nil
}

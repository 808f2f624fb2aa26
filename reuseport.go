package registry

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/outofforest/logger"
)

// ListenShared opens TCP listener which may share its address with the registry connection of the peer.
// IPv4 is used because this is the only family SEARCH_REPLY can advertise.
// Where the platform can't share ports the listener is still opened, but the address advertised by the registry
// doesn't lead to it, so a warning is logged.
func ListenShared(ctx context.Context, address string) (net.Listener, error) {
	if !sharedPortSupported {
		logger.Get(ctx).Warn("Sharing ports is not supported on this platform, other peers won't be able to fetch files from the address advertised by the registry")
	}

	lc := net.ListenConfig{Control: reusePort}
	ls, err := lc.Listen(ctx, "tcp4", address)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ls, nil
}

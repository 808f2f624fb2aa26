package registry

import "github.com/pkg/errors"

var (
	// ErrConnection is returned when remote side can't be reached.
	ErrConnection = errors.New("connection failed")

	// ErrPeerDisconnected is returned when remote side closed the connection.
	ErrPeerDisconnected = errors.New("peer disconnected")

	// ErrNotAvailable is returned when peer does not serve the requested file.
	ErrNotAvailable = errors.New("file not available")

	// ErrInvalidFilename is returned when filename can't be used to address local file.
	ErrInvalidFilename = errors.New("invalid filename")
)

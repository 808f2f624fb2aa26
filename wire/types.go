package wire

import "net/netip"

// Tag selects the variant of the frame.
type Tag uint8

// Frame tags.
const (
	TagJoin    Tag = 0
	TagPublish Tag = 1
	TagSearch  Tag = 2
	TagFetch   Tag = 3
)

// Protocol limits.
const (
	// MaxFilenameSize is the maximum length of the filename, NUL terminator excluded.
	MaxFilenameSize = 99

	// MaxPublishSize is the maximum size of the PUBLISH frame, tag included.
	MaxPublishSize = 1200

	// SearchReplySize is the size of SEARCH_REPLY.
	SearchReplySize = 10

	joinSize   = 5
	headerSize = 1
	countSize  = 4
)

type (
	// PeerID is the identity declared by the peer.
	PeerID uint32

	// IPv4 is the raw IPv4 address in network byte order.
	IPv4 [4]byte
)

// Join announces the identity of the peer.
type Join struct {
	PeerID PeerID
}

// Publish carries the full current set of files shared by the peer.
type Publish struct {
	Files []string

	// Dropped lists received names which are empty or longer than MaxFilenameSize.
	// They are skipped when decoding instead of failing the frame.
	Dropped []string
}

// Search asks the registry for the owner of the file.
type Search struct {
	File string
}

// Fetch asks another peer for the content of the file.
type Fetch struct {
	File string
}

// SearchReply is the answer of the registry to Search.
type SearchReply struct {
	PeerID PeerID
	IP     IPv4
	Port   uint16
}

// Found reports whether reply points to an owner.
// The all-zero reply is the not-found sentinel.
func (r SearchReply) Found() bool {
	return r != SearchReply{}
}

// String returns the dotted representation of the address.
func (ip IPv4) String() string {
	return netip.AddrFrom4(ip).String()
}

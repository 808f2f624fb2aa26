package wire

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedFrame is returned when frame can't be decoded.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrLimitExceeded is returned when value does not fit into protocol limits.
	ErrLimitExceeded = errors.New("protocol limit exceeded")
)

// ValidateFilename checks that name may be transmitted.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return errors.Wrap(ErrLimitExceeded, "empty filename")
	case len(name) > MaxFilenameSize:
		return errors.Wrapf(ErrLimitExceeded, "filename %q is longer than %d bytes", name, MaxFilenameSize)
	case strings.IndexByte(name, 0) >= 0:
		return errors.Wrapf(ErrLimitExceeded, "filename %q contains NUL byte", name)
	}
	return nil
}

// EncodeJoin encodes JOIN frame.
func EncodeJoin(msg Join) []byte {
	buf := make([]byte, joinSize)
	buf[0] = byte(TagJoin)
	binary.BigEndian.PutUint32(buf[headerSize:], uint32(msg.PeerID))
	return buf
}

// EncodePublish encodes PUBLISH frame. Files which are invalid or don't fit into
// MaxPublishSize are skipped and returned as dropped.
func EncodePublish(msg Publish) (frame []byte, dropped []string) {
	buf := make([]byte, headerSize+countSize, MaxPublishSize)
	buf[0] = byte(TagPublish)

	var count uint32
	for _, f := range msg.Files {
		if ValidateFilename(f) != nil || len(buf)+len(f)+1 > MaxPublishSize {
			dropped = append(dropped, f)
			continue
		}
		buf = append(buf, f...)
		buf = append(buf, 0)
		count++
	}
	binary.BigEndian.PutUint32(buf[headerSize:], count)

	return buf, dropped
}

// EncodeSearch encodes SEARCH frame.
func EncodeSearch(msg Search) ([]byte, error) {
	return encodeFilename(TagSearch, msg.File)
}

// EncodeFetch encodes FETCH frame.
func EncodeFetch(msg Fetch) ([]byte, error) {
	return encodeFilename(TagFetch, msg.File)
}

// EncodeSearchReply encodes SEARCH_REPLY.
func EncodeSearchReply(msg SearchReply) []byte {
	buf := make([]byte, SearchReplySize)
	binary.BigEndian.PutUint32(buf, uint32(msg.PeerID))
	copy(buf[4:8], msg.IP[:])
	binary.BigEndian.PutUint16(buf[8:], msg.Port)
	return buf
}

// Decode decodes frame selecting the message type by its tag.
func Decode(frame []byte) (any, error) {
	if len(frame) < headerSize {
		return nil, errors.Wrap(ErrMalformedFrame, "empty frame")
	}

	switch Tag(frame[0]) {
	case TagJoin:
		return DecodeJoin(frame)
	case TagPublish:
		return DecodePublish(frame)
	case TagSearch:
		return DecodeSearch(frame)
	case TagFetch:
		return DecodeFetch(frame)
	default:
		return nil, errors.Wrapf(ErrMalformedFrame, "unknown tag %d", frame[0])
	}
}

// DecodeJoin decodes JOIN frame.
func DecodeJoin(frame []byte) (*Join, error) {
	if err := checkTag(frame, TagJoin); err != nil {
		return nil, err
	}
	if len(frame) != joinSize {
		return nil, errors.Wrapf(ErrMalformedFrame, "JOIN frame has %d bytes, %d expected", len(frame), joinSize)
	}
	return &Join{PeerID: PeerID(binary.BigEndian.Uint32(frame[headerSize:]))}, nil
}

// DecodePublish decodes PUBLISH frame. Empty and too long names are reported in Dropped.
func DecodePublish(frame []byte) (*Publish, error) {
	if err := checkTag(frame, TagPublish); err != nil {
		return nil, err
	}
	if len(frame) < headerSize+countSize {
		return nil, errors.Wrap(ErrMalformedFrame, "PUBLISH frame is truncated")
	}
	if len(frame) > MaxPublishSize {
		return nil, errors.Wrapf(ErrMalformedFrame, "PUBLISH frame exceeds %d bytes", MaxPublishSize)
	}

	count := binary.BigEndian.Uint32(frame[headerSize:])
	rest := frame[headerSize+countSize:]
	msg := &Publish{}
	for i := uint32(0); i < count; i++ {
		end := bytes.IndexByte(rest, 0)
		if end < 0 {
			return nil, errors.Wrapf(ErrMalformedFrame, "filename %d of %d is not terminated", i+1, count)
		}
		name := string(rest[:end])
		rest = rest[end+1:]

		if end == 0 || end > MaxFilenameSize {
			msg.Dropped = append(msg.Dropped, name)
			continue
		}
		msg.Files = append(msg.Files, name)
	}
	if len(rest) != 0 {
		return nil, errors.Wrapf(ErrMalformedFrame, "%d trailing bytes in PUBLISH frame", len(rest))
	}

	return msg, nil
}

// DecodeSearch decodes SEARCH frame.
func DecodeSearch(frame []byte) (*Search, error) {
	name, err := decodeFilenameFrame(frame, TagSearch)
	if err != nil {
		return nil, err
	}
	return &Search{File: name}, nil
}

// DecodeFetch decodes FETCH frame.
func DecodeFetch(frame []byte) (*Fetch, error) {
	name, err := decodeFilenameFrame(frame, TagFetch)
	if err != nil {
		return nil, err
	}
	return &Fetch{File: name}, nil
}

// DecodeSearchReply decodes SEARCH_REPLY.
func DecodeSearchReply(buf []byte) (SearchReply, error) {
	if len(buf) != SearchReplySize {
		return SearchReply{}, errors.Wrapf(ErrMalformedFrame, "SEARCH_REPLY has %d bytes, %d expected",
			len(buf), SearchReplySize)
	}

	reply := SearchReply{
		PeerID: PeerID(binary.BigEndian.Uint32(buf)),
		Port:   binary.BigEndian.Uint16(buf[8:]),
	}
	copy(reply.IP[:], buf[4:8])
	return reply, nil
}

func encodeFilename(tag Tag, name string) ([]byte, error) {
	if err := ValidateFilename(name); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, headerSize+len(name)+1)
	buf = append(buf, byte(tag))
	buf = append(buf, name...)
	return append(buf, 0), nil
}

func decodeFilenameFrame(frame []byte, tag Tag) (string, error) {
	if err := checkTag(frame, tag); err != nil {
		return "", err
	}

	name, n, err := decodeFilename(frame[headerSize:])
	if err != nil {
		return "", err
	}
	if n != len(frame)-headerSize {
		return "", errors.Wrapf(ErrMalformedFrame, "%d trailing bytes in frame", len(frame)-headerSize-n)
	}
	return name, nil
}

// decodeFilename returns the NUL-terminated name at the beginning of buf and the number of bytes it occupies.
func decodeFilename(buf []byte) (string, int, error) {
	limit := min(len(buf), MaxFilenameSize+1)
	end := bytes.IndexByte(buf[:limit], 0)
	switch {
	case end < 0 && limit < len(buf):
		return "", 0, errors.Wrapf(ErrMalformedFrame, "filename is longer than %d bytes", MaxFilenameSize)
	case end < 0:
		return "", 0, errors.Wrap(ErrMalformedFrame, "filename is not terminated")
	case end == 0:
		return "", 0, errors.Wrap(ErrMalformedFrame, "empty filename")
	}
	return string(buf[:end]), end + 1, nil
}

func checkTag(frame []byte, tag Tag) error {
	if len(frame) < headerSize {
		return errors.Wrap(ErrMalformedFrame, "empty frame")
	}
	if Tag(frame[0]) != tag {
		return errors.Wrapf(ErrMalformedFrame, "tag %d expected, got %d", tag, frame[0])
	}
	return nil
}

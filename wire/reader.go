package wire

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Reader extracts frames from the byte stream.
type Reader struct {
	r   *bufio.Reader
	buf []byte
}

// NewReader creates frame reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:   bufio.NewReader(r),
		buf: make([]byte, 0, MaxPublishSize),
	}
}

// ReadFrame reads exactly one frame from the stream and decodes it.
// io.EOF is returned if stream ends cleanly between frames, ErrMalformedFrame if it ends inside one.
func (r *Reader) ReadFrame() (any, error) {
	tag, err := r.r.ReadByte()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	r.buf = append(r.buf[:0], tag)

	switch Tag(tag) {
	case TagJoin:
		err = r.readN(joinSize - headerSize)
	case TagPublish:
		if err = r.readN(countSize); err != nil {
			break
		}
		count := binary.BigEndian.Uint32(r.buf[headerSize:])
		for i := uint32(0); i < count && err == nil; i++ {
			err = r.readFilename(MaxPublishSize)
		}
	case TagSearch, TagFetch:
		err = r.readFilename(headerSize + MaxFilenameSize + 1)
	default:
		return nil, errors.Wrapf(ErrMalformedFrame, "unknown tag %d", tag)
	}
	if err != nil {
		return nil, err
	}

	return Decode(r.buf)
}

// ReadSearchReply reads SEARCH_REPLY from the stream.
func (r *Reader) ReadSearchReply() (SearchReply, error) {
	r.buf = r.buf[:SearchReplySize]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		if errors.Is(err, io.EOF) {
			return SearchReply{}, errors.WithStack(err)
		}
		return SearchReply{}, truncated(err)
	}
	return DecodeSearchReply(r.buf)
}

func (r *Reader) readN(n int) error {
	start := len(r.buf)
	r.buf = r.buf[:start+n]
	_, err := io.ReadFull(r.r, r.buf[start:])
	return truncated(err)
}

// readFilename appends NUL-terminated filename to the frame. limit bounds the size of the entire frame,
// the length of the name itself is checked by the decoder.
func (r *Reader) readFilename(limit int) error {
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return truncated(err)
		}
		if len(r.buf) == limit {
			return errors.Wrapf(ErrMalformedFrame, "frame exceeds %d bytes", limit)
		}
		r.buf = append(r.buf, b)

		if b == 0 {
			return nil
		}
	}
}

func truncated(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return errors.Wrap(ErrMalformedFrame, "frame is truncated")
	default:
		return errors.WithStack(err)
	}
}

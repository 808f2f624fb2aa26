package registry

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/registry/wire"
)

// PeerInfo describes the owner of the file as reported by the registry.
type PeerInfo struct {
	ID    wire.PeerID
	IP    string
	Port  uint16
	Found bool
}

// Address returns host:port the owner serves files on.
func (p PeerInfo) Address() string {
	return joinHostPort(p.IP, p.Port)
}

// Client keeps the connection to the registry and executes requests of the peer.
// Requests are sent one at a time, registry never sends anything unsolicited, so the reply read after
// SEARCH always belongs to it.
type Client struct {
	config ClientConfig

	mu     sync.Mutex
	conn   net.Conn
	reader *wire.Reader
}

// Dial connects to the registry.
func Dial(ctx context.Context, config ClientConfig) (*Client, error) {
	if config.Registry == "" {
		return nil, errors.New("no registry specified")
	}

	network := "tcp"
	dialer := net.Dialer{}
	if config.LocalAddr != "" {
		network = "tcp4"
		localAddr, err := net.ResolveTCPAddr(network, config.LocalAddr)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		dialer.LocalAddr = localAddr
		dialer.Control = reusePort
	}

	conn, err := dialer.DialContext(ctx, network, config.Registry)
	if err != nil {
		return nil, errors.Wrapf(ErrConnection, "connecting to registry %s: %s", config.Registry, err)
	}

	logger.Get(ctx).Info("Connected to registry", zap.String("registry", config.Registry),
		zap.Stringer("local", conn.LocalAddr()))

	return &Client{
		config: config,
		conn:   conn,
		reader: wire.NewReader(conn),
	}, nil
}

// LocalAddr returns the local address of the registry connection. This is the address registry advertises.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Join announces identity of the peer.
func (c *Client) Join() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.send(wire.EncodeJoin(wire.Join{PeerID: c.config.PeerID}))
}

// Publish replaces the set of files registry attributes to this peer.
// Files which can't be transmitted are skipped and returned.
func (c *Client) Publish(files []string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame, dropped := wire.EncodePublish(wire.Publish{Files: files})
	return dropped, c.send(frame)
}

// Search asks registry for the owner of the file.
func (c *Client) Search(file string) (PeerInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame, err := wire.EncodeSearch(wire.Search{File: file})
	if err != nil {
		return PeerInfo{}, err
	}
	if err := c.send(frame); err != nil {
		return PeerInfo{}, err
	}

	reply, err := c.reader.ReadSearchReply()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return PeerInfo{}, errors.WithStack(ErrPeerDisconnected)
		}
		return PeerInfo{}, err
	}

	return PeerInfo{
		ID:    reply.PeerID,
		IP:    reply.IP.String(),
		Port:  reply.Port,
		Found: reply.Found(),
	}, nil
}

// Fetch locates the owner of the file and downloads the file from it into the download directory.
// If file is not indexed, returned info has Found set to false and nothing is downloaded.
func (c *Client) Fetch(ctx context.Context, file string) (PeerInfo, error) {
	info, err := c.Search(file)
	if err != nil || !info.Found {
		return info, err
	}

	size, err := FetchFile(ctx, info.Address(), file, c.config.DownloadDir)
	if err != nil {
		return info, err
	}

	logger.Get(ctx).Info("File fetched", zap.String("file", file), zap.Uint32("peerID", uint32(info.ID)),
		zap.String("address", info.Address()), zap.Int64("size", size))
	return info, nil
}

// Close closes the registry connection.
func (c *Client) Close() error {
	return errors.WithStack(c.conn.Close())
}

// send writes the frame in a single call.
func (c *Client) send(frame []byte) error {
	if _, err := c.conn.Write(frame); err != nil {
		return errors.Wrapf(ErrPeerDisconnected, "sending frame: %s", err)
	}
	return nil
}

// FetchFile downloads file from the peer listening on addr and stores it in dir under its original name.
// It returns the number of bytes stored.
func FetchFile(ctx context.Context, addr, file, dir string) (int64, error) {
	if err := validateLocalFilename(file); err != nil {
		return 0, err
	}
	frame, err := wire.EncodeFetch(wire.Fetch{File: file})
	if err != nil {
		return 0, err
	}

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, errors.Wrapf(ErrConnection, "connecting to peer %s: %s", addr, err)
	}
	defer conn.Close()
	defer context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})()

	if _, err := conn.Write(frame); err != nil {
		return 0, errors.WithStack(err)
	}

	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+file+".*")
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := receiveContent(conn, tmp)
	if err != nil {
		if ctx.Err() != nil {
			return 0, errors.WithStack(ctx.Err())
		}
		return 0, err
	}

	if err := tmp.Close(); err != nil {
		return 0, errors.WithStack(err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, file)); err != nil {
		return 0, errors.WithStack(err)
	}
	return size, nil
}

// receiveContent copies the FETCH response to w. A leading NUL byte of the first received chunk is dropped.
// Response without any byte means the file is not available.
func receiveContent(r io.Reader, w io.Writer) (int64, error) {
	buf := make([]byte, 8192)

	var n int
	var err error
	for n == 0 && err == nil {
		n, err = r.Read(buf)
	}
	if n == 0 {
		if errors.Is(err, io.EOF) {
			return 0, errors.WithStack(ErrNotAvailable)
		}
		return 0, errors.WithStack(err)
	}

	chunk := buf[:n]
	if chunk[0] == 0 {
		chunk = chunk[1:]
	}
	if _, err := w.Write(chunk); err != nil {
		return 0, errors.WithStack(err)
	}

	size, err := io.CopyBuffer(w, r, buf)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int64(len(chunk)) + size, nil
}

func validateLocalFilename(file string) error {
	if file == "." || file == ".." || filepath.Base(file) != file {
		return errors.Wrapf(ErrInvalidFilename, "%q", file)
	}
	return nil
}

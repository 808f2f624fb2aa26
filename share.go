package registry

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/registry/wire"
)

// ListShared returns names of the regular files stored in dir.
func ListShared(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// RunFileServer serves FETCH requests of other peers with the files stored in dir.
func RunFileServer(ctx context.Context, ls net.Listener, dir string) error {
	logger.Get(ctx).Info("File server started", zap.Stringer("address", ls.Addr()), zap.String("dir", dir))

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("closer", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			_ = ls.Close()
			return errors.WithStack(ctx.Err())
		})
		spawn("listener", parallel.Fail, func(ctx context.Context) error {
			for {
				conn, err := ls.Accept()
				if err != nil {
					if ctx.Err() != nil {
						return errors.WithStack(ctx.Err())
					}
					return errors.WithStack(err)
				}

				spawn("fetch", parallel.Continue, func(ctx context.Context) error {
					log := logger.Get(ctx).With(zap.Stringer("remote", conn.RemoteAddr()))
					if err := serveFetch(ctx, conn, dir); err != nil {
						log.Warn("FETCH failed", zap.Error(err))
					}
					return nil
				})
			}
		})

		return nil
	})
}

// serveFetch answers single FETCH request. The content is preceded by a single NUL byte, a missing file is
// reported by closing the connection without sending anything.
func serveFetch(ctx context.Context, conn net.Conn, dir string) error {
	defer conn.Close()
	defer context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})()

	msg, err := wire.NewReader(conn).ReadFrame()
	if err != nil {
		return err
	}
	fetch, ok := msg.(*wire.Fetch)
	if !ok {
		return errors.Wrapf(wire.ErrMalformedFrame, "FETCH expected, got %T", msg)
	}
	if err := validateLocalFilename(fetch.File); err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(dir, fetch.File))
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.WithStack(err)
	}
	if !info.Mode().IsRegular() {
		return errors.Wrapf(ErrNotAvailable, "%q is not a regular file", fetch.File)
	}

	if _, err := conn.Write([]byte{0x00}); err != nil {
		return errors.WithStack(err)
	}
	size, err := io.Copy(conn, f)
	if err != nil {
		return errors.WithStack(err)
	}

	logger.Get(ctx).Info("File served", zap.String("file", fetch.File), zap.Stringer("remote", conn.RemoteAddr()),
		zap.Int64("size", size))
	return nil
}

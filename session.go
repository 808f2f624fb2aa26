package registry

import (
	"context"
	"net"
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/registry/wire"
)

// session is the state of a single peer connection. Only the dispatcher modifies it.
type session struct {
	id   sessionID
	conn net.Conn

	// Captured at accept time, independent of anything the peer declares.
	ip   wire.IPv4
	port uint16

	joined bool
	peerID wire.PeerID
	files  []string
}

func newSession(id sessionID, conn net.Conn) *session {
	ip, port := wireAddress(conn.RemoteAddr())
	return &session{
		id:   id,
		conn: conn,
		ip:   ip,
		port: port,
	}
}

func (s *session) log(ctx context.Context) *zap.Logger {
	log := logger.Get(ctx).With(zap.Uint64("session", uint64(s.id)), zap.Stringer("remote", s.conn.RemoteAddr()))
	if s.joined {
		log = log.With(zap.Uint32("peerID", uint32(s.peerID)))
	}
	return log
}

// handle applies frame received from the session. Returned error closes the session.
func (r *registry) handle(ctx context.Context, s *session, msg any) error {
	switch msg := msg.(type) {
	case *wire.Join:
		r.handleJoin(ctx, s, msg)
		return nil
	case *wire.Publish:
		r.handlePublish(ctx, s, msg)
		return nil
	case *wire.Search:
		return r.handleSearch(ctx, s, msg)
	default:
		return errors.Wrapf(wire.ErrMalformedFrame, "unexpected message %T", msg)
	}
}

func (r *registry) handleJoin(ctx context.Context, s *session, msg *wire.Join) {
	if s.joined && s.peerID != msg.PeerID {
		s.log(ctx).Info("Peer identity changed, revoking published files",
			zap.Uint32("newPeerID", uint32(msg.PeerID)), zap.Strings("files", s.files))
		r.index.removeAll(s.id)
		s.files = nil
	}

	s.joined = true
	s.peerID = msg.PeerID

	s.log(ctx).Info("Peer joined")
}

func (r *registry) handlePublish(ctx context.Context, s *session, msg *wire.Publish) {
	log := s.log(ctx)
	if !s.joined {
		log.Warn("PUBLISH from peer which has not joined, ignoring", zap.Strings("files", msg.Files))
		return
	}

	if len(msg.Dropped) > 0 {
		log.Warn("Invalid filenames published, skipping them", zap.Strings("dropped", msg.Dropped))
	}

	files := lo.Uniq(msg.Files)
	if duplicates := lo.FindDuplicates(msg.Files); len(duplicates) > 0 {
		log.Warn("Files published more than once, keeping one entry", zap.Strings("files", duplicates))
	}
	if len(files) > r.config.MaxFiles {
		log.Warn("Too many files published, dropping the rest",
			zap.Int("limit", r.config.MaxFiles), zap.Strings("dropped", files[r.config.MaxFiles:]))
		files = files[:r.config.MaxFiles]
	}

	r.index.removeAll(s.id)
	s.files = slices.Sorted(slices.Values(files))
	for _, f := range s.files {
		r.index.put(f, s.id)
	}

	log.Info("Files published", zap.Strings("files", s.files))
}

func (r *registry) handleSearch(ctx context.Context, s *session, msg *wire.Search) error {
	log := s.log(ctx).With(zap.String("file", msg.File))

	var reply wire.SearchReply
	switch owner, found := r.index.lookup(msg.File); {
	case !s.joined:
		log.Warn("SEARCH from peer which has not joined, replying with not found")
	case found:
		o := r.sessions[owner]
		reply = wire.SearchReply{
			PeerID: o.peerID,
			IP:     o.ip,
			Port:   o.port,
		}
		log.Info("File found", zap.Uint32("owner", uint32(o.peerID)),
			zap.String("address", joinHostPort(o.ip.String(), o.port)))
	default:
		log.Info("File not found")
	}

	_, err := s.conn.Write(wire.EncodeSearchReply(reply))
	return errors.WithStack(err)
}

// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dj-Codeman/dusa/lib/ownership"
	"github.com/Dj-Codeman/dusa/lib/protocol"
	"github.com/Dj-Codeman/dusa/lib/wire"
)

// Store is the encrypted store the dispatcher drives.
type Store interface {
	Store(ctx context.Context, path, owner, name string, uid uint32) error
	Retrieve(ctx context.Context, owner, name string, uid uint32) (tempPath, originalPath string, err error)
	Remove(ctx context.Context, owner, name string) error
	EncryptRaw(ctx context.Context, data []byte) (key, ciphertext string, chunks int, err error)
	DecryptRaw(ctx context.Context, ciphertext, key string, chunks int) ([]byte, error)
}

// Scheduler removes decrypted temp files once their TTL expires.
type Scheduler interface {
	Schedule(path string, ttl time.Duration)
	Pending() []string
}

// Config configures a Server.
type Config struct {
	// SocketPath is where the server listens. Required.
	SocketPath string

	// SocketGroup, when set, receives group ownership of the socket.
	// The socket mode is always 0660.
	SocketGroup *ownership.Identity

	Store  Store
	Reaper Scheduler

	// ReadTimeout bounds each read from a client. Default 10s.
	ReadTimeout time.Duration

	// WriteTimeout bounds each write to a client. Default 10s.
	WriteTimeout time.Duration

	// AckTimeout bounds the wait for the client's closing Acknowledge.
	// Default 2s.
	AckTimeout time.Duration

	// StrictVersion ends the exchange after an InvalidVersion reply.
	StrictVersion bool

	// AuthenticatePeer checks request uids against SO_PEERCRED.
	AuthenticatePeer bool

	Logger *slog.Logger
}

// Stats is a snapshot of server counters.
type Stats struct {
	Accepted          uint64
	Abandoned         uint64
	Requests          uint64
	ErrorResponses    uint64
	VersionMismatches uint64
	PendingReaps      int
}

// Server accepts connections and dispatches their requests.
type Server struct {
	socketPath       string
	socketGroup      *ownership.Identity
	store            Store
	reaper           Scheduler
	readTimeout      time.Duration
	writeTimeout     time.Duration
	ackTimeout       time.Duration
	strictVersion    bool
	authenticatePeer bool
	logger           *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	accepted          atomic.Uint64
	abandoned         atomic.Uint64
	requests          atomic.Uint64
	errorResponses    atomic.Uint64
	versionMismatches atomic.Uint64

	// activeConnections tracks in-flight exchanges so Serve can drain
	// them before returning.
	activeConnections sync.WaitGroup
}

// New validates cfg and returns a Server ready to Serve.
func New(cfg Config) (*Server, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("daemon: SocketPath is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("daemon: Store is required")
	}
	if cfg.Reaper == nil {
		return nil, fmt.Errorf("daemon: Reaper is required")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		socketPath:       cfg.SocketPath,
		socketGroup:      cfg.SocketGroup,
		store:            cfg.Store,
		reaper:           cfg.Reaper,
		readTimeout:      cfg.ReadTimeout,
		writeTimeout:     cfg.WriteTimeout,
		ackTimeout:       cfg.AckTimeout,
		strictVersion:    cfg.StrictVersion,
		authenticatePeer: cfg.AuthenticatePeer,
		logger:           cfg.Logger,
		ready:            make(chan struct{}),
	}, nil
}

// Ready is closed once the socket is listening with its final
// permissions.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stats returns current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Accepted:          s.accepted.Load(),
		Abandoned:         s.abandoned.Load(),
		Requests:          s.requests.Load(),
		ErrorResponses:    s.errorResponses.Load(),
		VersionMismatches: s.versionMismatches.Load(),
		PendingReaps:      len(s.reaper.Pending()),
	}
}

// Serve listens on the socket and handles connections until ctx is
// cancelled, then stops accepting, waits for in-flight exchanges, and
// removes the socket file.
//
// Any existing file at the socket path is removed before listening.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	gid := -1
	if s.socketGroup != nil {
		gid = s.socketGroup.GID
	}
	if err := ownership.RestrictSocket(s.socketPath, gid); err != nil {
		return err
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("daemon listening",
		"path", s.socketPath,
		"protocol_version", protocol.Version,
		"strict_version", s.strictVersion,
		"authenticate_peer", s.authenticatePeer,
	)
	s.readyOnce.Do(func() { close(s.ready) })

	// In-flight exchanges finish even after shutdown begins.
	requestContext := context.WithoutCancel(ctx)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.accepted.Add(1)
		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(requestContext, conn)
		}()
	}

	s.activeConnections.Wait()
	s.logger.Info("daemon stopped", "accepted", s.accepted.Load())
	return nil
}

// handleConnection runs one exchange.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger := s.logger

	var peer *ownership.Peer
	if s.authenticatePeer {
		unixConn, ok := conn.(*net.UnixConn)
		if !ok {
			s.abandon(logger, "connection is not a unix socket", fmt.Errorf("%T", conn))
			return
		}
		credentials, err := ownership.PeerCredentials(unixConn)
		if err != nil {
			s.abandon(logger, "reading peer credentials failed", err)
			return
		}
		peer = &credentials
		logger = logger.With("peer_pid", credentials.PID, "peer_uid", credentials.UID)
	}

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	message, err := wire.Receive(conn)
	if err != nil {
		if errors.Is(err, io.EOF) {
			logger.Debug("client closed without sending a request")
			s.abandoned.Add(1)
			return
		}
		s.abandon(logger, "receiving request failed", err)
		return
	}
	logger = logger.With("msg_type", string(message.Type), "client_version", message.Version)

	if !protocol.CheckVersion(message.Version) {
		s.versionMismatches.Add(1)
		logger.Warn("protocol version mismatch", "server_version", protocol.Version)
		mismatch := protocol.NewErrorResponse(protocol.ErrorInvalidVersion, fmt.Sprintf(
			"client and server out of date: server version %s, client version %s",
			protocol.Version, message.Version))
		if !s.send(conn, logger, mismatch) {
			return
		}
		if s.strictVersion {
			s.finish(conn, logger)
			return
		}
	}

	switch message.Type {
	case protocol.MessageRequest:
		s.requests.Add(1)
		if !s.send(conn, logger, s.dispatch(ctx, message, peer, logger)) {
			return
		}
	case protocol.MessageSimple:
		logger.Debug("simple probe")
	default:
		if !s.send(conn, logger, protocol.NewErrorResponse(protocol.ErrorUnknownMessageType, "")) {
			return
		}
	}
	s.finish(conn, logger)
}

// send writes one envelope, reporting whether the connection is still
// usable.
func (s *Server) send(conn net.Conn, logger *slog.Logger, message *protocol.Message) bool {
	if message.Type == protocol.MessageErrorResponse {
		s.errorResponses.Add(1)
	}
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := wire.Send(conn, message); err != nil {
		if message.Type == protocol.MessageResponse && wire.IsFrameError(err, wire.FrameTooLarge) {
			// Nothing was written, so the client can still be told.
			logger.Error("reply exceeds frame limit", "error", err)
			return s.send(conn, logger, protocol.NewErrorResponse(protocol.ErrorInternal, replyTooLarge))
		}
		logger.Warn("sending reply failed", "reply_type", string(message.Type), "error", err)
		return false
	}
	return true
}

// finish sends the daemon's Acknowledge and waits for the client's.
func (s *Server) finish(conn net.Conn, logger *slog.Logger) {
	if !s.send(conn, logger, protocol.NewAcknowledge()) {
		return
	}
	conn.SetReadDeadline(time.Now().Add(s.ackTimeout))
	reply, err := wire.Receive(conn)
	switch {
	case err != nil:
		logger.Debug("no closing acknowledge from client", "error", err)
	case reply.Type != protocol.MessageAcknowledge:
		logger.Warn("expected acknowledge from client", "received", string(reply.Type))
	}
}

func (s *Server) abandon(logger *slog.Logger, reason string, err error) {
	s.abandoned.Add(1)
	logger.Warn("connection abandoned", "reason", reason, "error", err)
}

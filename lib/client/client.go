// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/Dj-Codeman/dusa/lib/ownership"
	"github.com/Dj-Codeman/dusa/lib/protocol"
	"github.com/Dj-Codeman/dusa/lib/wire"
)

// DefaultTimeout bounds one exchange when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// RemoteError is an ErrorResponse from the daemon.
type RemoteError struct {
	Code    protocol.ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("dusad: %s: %s", e.Code, e.Message)
}

// IsCode reports whether err is a RemoteError with the given code.
func IsCode(err error, code protocol.ErrorCode) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Code == code
}

// Config configures a Client.
type Config struct {
	// SocketPath is the daemon socket. Required.
	SocketPath string

	// Timeout bounds one exchange. Default DefaultTimeout.
	Timeout time.Duration

	// ServiceIdentity receives ownership of files before they are
	// stored. Required for StoreFile.
	ServiceIdentity *ownership.Identity

	// UID is the identity requests are made on behalf of. Default is
	// the effective uid.
	UID *uint32

	Logger *slog.Logger
}

// Client talks to one dusad socket. It holds no connection between
// calls and is safe for concurrent use.
type Client struct {
	socketPath string
	timeout    time.Duration
	service    *ownership.Identity
	uid        uint32
	logger     *slog.Logger
}

// New returns a Client for cfg.
func New(cfg Config) (*Client, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("client: SocketPath is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	uid := uint32(os.Geteuid())
	if cfg.UID != nil {
		uid = *cfg.UID
	}
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
		service:    cfg.ServiceIdentity,
		uid:        uid,
		logger:     cfg.Logger,
	}, nil
}

// UID returns the uid the client makes requests on behalf of.
func (c *Client) UID() uint32 { return c.uid }

// exchange runs one full handshake and returns the daemon's first
// reply. The reply is an Acknowledge for a Simple envelope and a
// Response otherwise; an ErrorResponse becomes a *RemoteError.
func (c *Client) exchange(ctx context.Context, message *protocol.Message) (*protocol.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	conn.SetDeadline(deadline)

	// Unblock reads and writes if ctx is cancelled early.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if err := wire.Send(conn, message); err != nil {
		return nil, fmt.Errorf("sending %s: %w", message.Type, err)
	}
	reply, err := wire.Receive(conn)
	if err != nil {
		return nil, fmt.Errorf("receiving reply: %w", err)
	}

	var remoteErr error
	if reply.Type == protocol.MessageErrorResponse {
		remoteErr = &RemoteError{Code: reply.Error.Code, Message: reply.Error.Message}
		// The daemon follows its ErrorResponse with an Acknowledge.
		if err := c.expectAcknowledge(conn); err != nil {
			c.logger.Debug("no acknowledge after error response", "error", err)
		}
	} else if reply.Type == protocol.MessageResponse {
		if err := c.expectAcknowledge(conn); err != nil {
			c.logger.Debug("no acknowledge after response", "error", err)
		}
	} else if reply.Type != protocol.MessageAcknowledge {
		c.logger.Warn("daemon replied with an unexpected message type", "received", string(reply.Type))
	}

	if err := wire.Send(conn, protocol.NewAcknowledge()); err != nil {
		c.logger.Debug("sending acknowledge failed", "error", err)
	}
	if remoteErr != nil {
		return nil, remoteErr
	}
	return reply, nil
}

// expectAcknowledge reads the daemon's closing Acknowledge. Any other
// type is logged and tolerated.
func (c *Client) expectAcknowledge(conn net.Conn) error {
	message, err := wire.Receive(conn)
	if err != nil {
		return err
	}
	if message.Type != protocol.MessageAcknowledge {
		c.logger.Warn("expected acknowledge from daemon", "received", string(message.Type))
	}
	return nil
}

// request sends req and decodes the Response payload into result.
func (c *Client) request(ctx context.Context, req protocol.Request, result any) error {
	message, err := protocol.NewRequest(req)
	if err != nil {
		return err
	}
	reply, err := c.exchange(ctx, message)
	if err != nil {
		return err
	}
	if reply.Type != protocol.MessageResponse {
		return fmt.Errorf("expected Response, got %s", reply.Type)
	}
	return reply.DecodePayload(result)
}

// Ping sends a Simple envelope and waits for the daemon's Acknowledge.
func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.exchange(ctx, protocol.NewSimple())
	if err != nil {
		return err
	}
	if reply.Type != protocol.MessageAcknowledge {
		return fmt.Errorf("expected Acknowledge, got %s", reply.Type)
	}
	return nil
}

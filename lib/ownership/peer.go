// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Peer is the kernel-reported identity of the process on the other end
// of a Unix socket, captured at connect time.
type Peer struct {
	PID int32
	UID uint32
	GID uint32
}

// PeerCredentials reads SO_PEERCRED from a Unix socket connection.
func PeerCredentials(conn *net.UnixConn) (Peer, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Peer{}, fmt.Errorf("accessing socket: %w", err)
	}

	var credentials *unix.Ucred
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Peer{}, fmt.Errorf("accessing socket: %w", err)
	}
	if sockErr != nil {
		return Peer{}, fmt.Errorf("reading SO_PEERCRED: %w", sockErr)
	}
	return Peer{PID: credentials.Pid, UID: credentials.Uid, GID: credentials.Gid}, nil
}

// MayActAs reports whether the peer may make a request on behalf of
// uid: its own uid always, any uid when the peer is root.
func (p Peer) MayActAs(uid uint32) bool {
	return p.UID == 0 || p.UID == uid
}

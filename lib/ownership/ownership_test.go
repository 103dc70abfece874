// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/Dj-Codeman/dusa/lib/testutil"
)

func TestCurrent(t *testing.T) {
	current := Current()
	if current.UID != os.Getuid() || current.GID != os.Getgid() {
		t.Errorf("Current() = %+v, want uid %d gid %d", current, os.Getuid(), os.Getgid())
	}
	if current.Name == "" {
		t.Error("Current().Name is empty")
	}
}

func TestLookupIdentityCurrentUser(t *testing.T) {
	current := Current()
	identity, err := LookupIdentity(current.Name)
	if err != nil {
		t.Skipf("current user %q has no passwd entry: %v", current.Name, err)
	}
	if identity.UID != current.UID {
		t.Errorf("UID = %d, want %d", identity.UID, current.UID)
	}
}

func TestLookupIdentityUnknown(t *testing.T) {
	if _, err := LookupIdentity("dusa-no-such-user-" + testutil.UniqueID("x")); err == nil {
		t.Error("LookupIdentity(unknown) = nil error")
	}
}

func TestTransferToSelf(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "plain.txt", []byte("secret"))
	if err := Transfer(path, Current()); err != nil {
		t.Fatalf("Transfer to own identity: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	stat := info.Sys().(*syscall.Stat_t)
	if int(stat.Uid) != os.Getuid() {
		t.Errorf("owner = %d, want %d", stat.Uid, os.Getuid())
	}
}

func TestTransferMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing")
	err := Transfer(path, Current())

	var permissionErr *PermissionError
	if !errors.As(err, &permissionErr) {
		t.Fatalf("Transfer = %v, want *PermissionError", err)
	}
	if permissionErr.Path != path {
		t.Errorf("Path = %q, want %q", permissionErr.Path, path)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error should wrap fs.ErrNotExist: %v", err)
	}
}

func TestTransferDeniedWithoutPrivilege(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root may chown to anyone")
	}
	path := testutil.WriteFile(t, t.TempDir(), "plain.txt", []byte("secret"))
	err := Transfer(path, Identity{Name: "root", UID: 0, GID: 0})

	var permissionErr *PermissionError
	if !errors.As(err, &permissionErr) {
		t.Fatalf("Transfer = %v, want *PermissionError", err)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("error should wrap fs.ErrPermission: %v", err)
	}
}

func TestTransferDoesNotFollowSymlinks(t *testing.T) {
	directory := t.TempDir()
	target := testutil.WriteFile(t, directory, "target", []byte("x"))
	link := filepath.Join(directory, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	if err := Transfer(link, Current()); err != nil {
		t.Fatalf("Transfer(symlink): %v", err)
	}
}

func TestRestrictSocket(t *testing.T) {
	directory := testutil.SocketDir(t)
	path := filepath.Join(directory, "test.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	if err := RestrictSocket(path, os.Getgid()); err != nil {
		t.Fatalf("RestrictSocket: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o660 {
		t.Errorf("mode = %o, want 660", perm)
	}

	if err := RestrictSocket(path, -1); err != nil {
		t.Errorf("RestrictSocket without group: %v", err)
	}
}

func TestPeerCredentials(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "peer.sock")
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	accepted := make(chan *net.UnixConn, 1)
	go func() {
		conn, err := listener.AcceptUnix()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	server, ok := <-accepted
	if !ok {
		t.Fatal("accept failed")
	}
	defer server.Close()

	peer, err := PeerCredentials(server)
	if err != nil {
		t.Fatalf("PeerCredentials: %v", err)
	}
	if int(peer.UID) != os.Getuid() {
		t.Errorf("peer UID = %d, want %d", peer.UID, os.Getuid())
	}
	if int(peer.PID) != os.Getpid() {
		t.Errorf("peer PID = %d, want %d", peer.PID, os.Getpid())
	}
}

func TestPeerMayActAs(t *testing.T) {
	tests := []struct {
		peer Peer
		uid  uint32
		want bool
	}{
		{Peer{UID: 1000}, 1000, true},
		{Peer{UID: 1000}, 1001, false},
		{Peer{UID: 0}, 1001, true},
	}
	for _, test := range tests {
		if got := test.peer.MayActAs(test.uid); got != test.want {
			t.Errorf("Peer{UID: %d}.MayActAs(%d) = %v, want %v", test.peer.UID, test.uid, got, test.want)
		}
	}
}

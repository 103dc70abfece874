// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"fmt"
	"os"
)

// PermissionError reports a failed ownership change.
type PermissionError struct {
	Path     string
	Identity Identity
	Err      error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("transferring %s to %s: %v", e.Path, e.Identity, e.Err)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// Transfer changes the owning user and group of path to identity. The
// path itself is changed, not a symlink target: a symlink planted at a
// temp path must not redirect the chown onto another file.
func Transfer(path string, identity Identity) error {
	if err := os.Lchown(path, identity.UID, identity.GID); err != nil {
		return &PermissionError{Path: path, Identity: identity, Err: err}
	}
	return nil
}

// RestrictSocket forces a freshly bound socket to mode 0660 and, when
// gid is not negative, hands its group to gid so that members of the
// service group can connect and nobody else can.
func RestrictSocket(path string, gid int) error {
	if err := os.Chmod(path, 0o660); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if gid < 0 {
		return nil
	}
	if err := os.Chown(path, -1, gid); err != nil {
		return fmt.Errorf("chown %s to group %d: %w", path, gid, err)
	}
	return nil
}

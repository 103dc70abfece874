// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DropPrivileges switches the whole process to identity. Supplementary
// groups go first, then the gid, then the uid: once the uid changes the
// process no longer has the right to change the others.
//
// Since Go 1.16 these calls apply to every thread of the process. A
// process already running as identity is left alone.
func DropPrivileges(identity Identity) error {
	if unix.Getuid() == identity.UID && unix.Getgid() == identity.GID {
		return nil
	}
	if err := unix.Setgroups([]int{identity.GID}); err != nil {
		return fmt.Errorf("setgroups(%d): %w", identity.GID, err)
	}
	if err := unix.Setgid(identity.GID); err != nil {
		return fmt.Errorf("setgid(%d): %w", identity.GID, err)
	}
	if err := unix.Setuid(identity.UID); err != nil {
		return fmt.Errorf("setuid(%d): %w", identity.UID, err)
	}
	if unix.Getuid() != identity.UID || unix.Geteuid() != identity.UID {
		return fmt.Errorf("uid is still %d after dropping to %s", unix.Geteuid(), identity)
	}
	return nil
}

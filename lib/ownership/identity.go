// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// ServiceAccount is the default name of the user and group the daemon
// runs as.
const ServiceAccount = "dusa"

// Identity is a resolved Unix account.
type Identity struct {
	Name string
	UID  int
	GID  int
}

func (i Identity) String() string {
	return fmt.Sprintf("%s(%d:%d)", i.Name, i.UID, i.GID)
}

// LookupIdentity resolves an account name to its uid and primary gid.
// When a group with the same name exists its gid is used instead, so a
// "dusa" user whose primary group is "users" still shares files with
// the "dusa" group.
func LookupIdentity(name string) (Identity, error) {
	account, err := user.Lookup(name)
	if err != nil {
		return Identity{}, fmt.Errorf("looking up user %q: %w", name, err)
	}
	uid, err := strconv.Atoi(account.Uid)
	if err != nil {
		return Identity{}, fmt.Errorf("user %q has non-numeric uid %q", name, account.Uid)
	}
	gid, err := strconv.Atoi(account.Gid)
	if err != nil {
		return Identity{}, fmt.Errorf("user %q has non-numeric gid %q", name, account.Gid)
	}

	if group, err := user.LookupGroup(name); err == nil {
		if groupID, err := strconv.Atoi(group.Gid); err == nil {
			gid = groupID
		}
	}

	return Identity{Name: name, UID: uid, GID: gid}, nil
}

// Current returns the identity of the running process. The name is
// best-effort: a uid with no passwd entry is reported by number.
func Current() Identity {
	uid, gid := os.Getuid(), os.Getgid()
	name := strconv.Itoa(uid)
	if account, err := user.LookupId(name); err == nil {
		name = account.Username
	}
	return Identity{Name: name, UID: uid, GID: gid}
}

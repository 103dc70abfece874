// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// resolvePaths returns the symlink-free absolute form of each path.
// A path that cannot be resolved is kept in its absolute form.
func resolvePaths(paths ...string) ([]string, error) {
	resolved := make([]string, 0, len(paths))
	for _, path := range paths {
		absolute, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		if target, err := filepath.EvalSymlinks(absolute); err == nil {
			absolute = target
		}
		resolved = append(resolved, absolute)
	}
	return resolved, nil
}

// within reports whether path is parent or lies beneath it.
func within(parent, path string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveSource resolves the directory holding a Store source and
// refuses any source inside the vault's own files. The final component
// is left for O_NOFOLLOW to reject if it is a link.
func (v *Vault) resolveSource(path string) (string, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving source: %w", err)
	}
	directory, err := filepath.EvalSymlinks(filepath.Dir(absolute))
	if err != nil {
		return "", fmt.Errorf("resolving source: %w", err)
	}
	candidate := filepath.Join(directory, filepath.Base(absolute))
	for _, protected := range v.protected {
		if within(protected, candidate) {
			return "", fmt.Errorf("%w: %s is inside the vault", ErrPermissionDenied, path)
		}
	}
	return candidate, nil
}

// checkSourceOwner requires the open source to belong to the uid the
// vault runs as.
func (v *Vault) checkSourceOwner(source *os.File, path string) error {
	var stat unix.Stat_t
	if err := unix.Fstat(int(source.Fd()), &stat); err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if int(stat.Uid) != v.serviceUID {
		return fmt.Errorf("%w: %s is owned by uid %d, not %d", ErrPermissionDenied, path, stat.Uid, v.serviceUID)
	}
	return nil
}

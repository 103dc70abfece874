// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the protocol version spoken by this build. Peers are
// compatible when major and minor match; the patch level is ignored.
const Version = "1.2.0"

// ParseVersion splits a "major.minor.patch" string. All three parts
// must be non-negative integers.
func ParseVersion(version string) (major, minor, patch uint32, err error) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("version %q: want major.minor.patch", version)
	}
	var numbers [3]uint32
	for i, part := range parts {
		n, parseErr := strconv.ParseUint(part, 10, 32)
		if parseErr != nil {
			return 0, 0, 0, fmt.Errorf("version %q: %w", version, parseErr)
		}
		numbers[i] = uint32(n)
	}
	return numbers[0], numbers[1], numbers[2], nil
}

// Compatible reports whether a and b share major and minor versions.
// An unparseable version is never compatible.
func Compatible(a, b string) bool {
	aMajor, aMinor, _, err := ParseVersion(a)
	if err != nil {
		return false
	}
	bMajor, bMinor, _, err := ParseVersion(b)
	if err != nil {
		return false
	}
	return aMajor == bMajor && aMinor == bMinor
}

// CheckVersion reports whether a peer's version is compatible with
// this build's.
func CheckVersion(peer string) bool {
	return Compatible(peer, Version)
}

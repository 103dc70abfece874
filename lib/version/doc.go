// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for dusa binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// For example:
//
//	go build -ldflags "-X github.com/Dj-Codeman/dusa/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// These default to "unknown" / "0.1.0-dev" during development builds
// and test runs. [SelfHash] digests the running binary.
package version

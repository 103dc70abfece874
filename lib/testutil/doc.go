// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by dusa's package tests.
//
// [SocketDir] makes a short directory under /tmp for Unix sockets.
// sun_path is limited to 108 bytes and t.TempDir() can exceed it when
// TMPDIR is deeply nested.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so a hung goroutine fails the test instead of stalling the
// run. They are the only wall-clock waits in the suite; TTL logic is
// tested against a fake clock.
//
// [UniqueID] produces distinct owner and entry names for tests that
// share a vault.
//
// Helpers call t.Fatalf on failure; setup failures are not recoverable.
package testutil

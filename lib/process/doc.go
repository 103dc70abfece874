// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the dusa binaries.
// It owns the one legitimate raw write to stderr: reporting a fatal
// error from main() before or after the structured logger exists.
package process

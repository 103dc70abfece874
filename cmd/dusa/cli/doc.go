// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree the dusa client is built on:
// pflag-based subcommand dispatch with help output and typo
// suggestions, the client logger, and hidden secret input.
package cli

// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the dusa client command tree. Every command
// that talks to the daemon shares the connection flags defined here
// and opens one socket connection per request.
package commands

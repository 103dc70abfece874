// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Dusad is the dusa encryption daemon. It owns the vault, listens on a
// unix socket, and serves file and text encryption requests from the
// dusa client.
//
// On startup:
//  1. Resolves configuration from --config, DUSA_CONFIG, or defaults.
//  2. Drops to the service account when started as root.
//  3. Opens the vault, creating its identity and master key on first
//     run.
//  4. Serves until SIGINT or SIGTERM, then drains in-flight requests
//     and removes any decrypted temp files still pending.
package main

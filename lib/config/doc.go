// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads configuration for dusad and the dusa client.
//
// Configuration comes from a single file named by the --config flag or
// the DUSA_CONFIG environment variable ([Resolve], [Load], [LoadFile]).
// There is no file discovery. YAML is the primary format; files ending
// in .json or .jsonc are read as JSON with comments. Values missing
// from the file keep their [Default].
//
// The file may carry development and production sections that
// override a few base values when [Config].Environment matches.
//
// Path fields support ${HOME}, ${DUSA_ROOT} (the vault root), and
// ${VAR:-default} expansion. No other environment variable overrides
// a config value.
//
// This package depends on no other dusa packages.
package config

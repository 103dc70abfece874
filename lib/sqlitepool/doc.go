// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite connection pool behind the vault
// index.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool with the pragmas a
// secret store wants and a small migration runner. Callers [Pool.Take]
// a connection, use it, and [Pool.Put] it back; [Pool.With] does both
// around a function. Connections are not safe for concurrent use.
//
// # Pragmas
//
//   - journal_mode=WAL: readers never block the single writer.
//   - synchronous=FULL: a stored entry survives power loss once Store
//     returns. The index is the only record of where ciphertext lives.
//   - busy_timeout=5000: wait for the write lock instead of failing.
//   - foreign_keys=ON
//   - secure_delete=ON: deleted rows are overwritten, so removed
//     entries leave no metadata in free pages.
//   - temp_store=MEMORY
//
// # Migrations
//
// [Config.Migrations] is an ordered list of SQL scripts. Open applies
// those past the database's user_version in one immediate transaction
// and records the new version, so a fresh file and an old one converge
// on the same schema.
package sqlitepool

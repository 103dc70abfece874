// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault is dusa's encrypted store: the component that actually
// turns plaintext into ciphertext on disk and back.
//
// # Layout
//
// Everything lives under one root directory:
//
//	root/
//	  identity.txt   age X25519 identity (0600, created on first open)
//	  master.age     32-byte master key sealed to that identity
//	  index.db       SQLite index of stored entries
//	  chunks/        encrypted chunk files, named by obscured reference
//	  tmp/           decrypted temp files awaiting the reaper
//
// # Entries
//
// A stored file is addressed by (owner, name). Its entry id is the
// BLAKE3 hash of owner, a NUL byte, and name. The entry key is
// HKDF-SHA256 of the master key with info "dusa.vault.entry.v1" and the
// id. Each store also draws a random 16-byte generation so that a
// concurrent store of the same key never touches the winner's chunks.
//
// The file is cut into chunks. Each chunk's plaintext is
//
//	[compression tag: 1 byte] [uncompressed size: uvarint] [data]
//
// sealed with XChaCha20-Poly1305 into
//
//	[version: 1 byte] [nonce: 24 bytes] [ciphertext+tag]
//
// with the version, id, generation, and chunk sequence number as
// additional data, so chunks cannot be swapped between entries or
// reordered. The chunk file name is a BLAKE3 keyed hash (keyed by the
// master key) over the same values: opaque without the key.
//
// # Raw text
//
// [Vault.EncryptRaw] does not touch the index. It encrypts under a
// fresh random key that it returns to the caller, along with a
// hex-encoded ciphertext and the chunk count. The count and each
// chunk's position are authenticated, so a mismatched count fails.
package vault

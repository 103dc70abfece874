// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR encoding configuration shared by every
// dusa component that serializes data: the socket protocol envelope,
// request and response payloads, and the vault's on-disk records.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same logical value always produces the same bytes, which keeps wire
// captures and test fixtures stable.
//
// Buffer-oriented use:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Payloads whose concrete type depends on a sibling field (the envelope
// payload, keyed by message type) are carried as [RawMessage] and
// decoded in a second step once the type is known.
package codec

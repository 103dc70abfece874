// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the messages exchanged between the dusa
// client and daemon over the local Unix socket.
//
// Every frame on the socket carries one [Message] envelope: a protocol
// version string, a [MessageType] tag, an opaque CBOR payload, and an
// optional structured [Error]. The error field is present exactly when
// the type is [MessageErrorResponse].
//
// A connection carries one exchange and is then closed:
//
//	client                      daemon
//	  Request  ─────────────────▶
//	           ◀───────────────── Response | ErrorResponse
//	  Acknowledge ──────────────▶
//	           ◀───────────────── Acknowledge
//
// Request payloads are a closed sum type: [WriteRequest],
// [PlainTextRequest], or [SimpleRequest]. On the wire a request payload
// is a map with exactly one key naming the variant. Anything else is
// rejected by [DecodeRequest] with an [ErrorInvalidPayload] error.
package protocol

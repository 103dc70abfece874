// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon implements dusad's request dispatcher: a Unix socket
// server that runs one request/response/acknowledge exchange per
// connection against an encrypted [Store].
//
// Each accepted connection moves through fixed states:
//
//  1. Await the request envelope. A framing or decode failure abandons
//     the connection without a reply.
//  2. Check the envelope version. A major.minor mismatch is answered
//     with an InvalidVersion ErrorResponse. In strict mode the exchange
//     then ends; otherwise the request is processed anyway.
//  3. Route by message type. A Request is decoded and dispatched to the
//     store; a Simple envelope is only acknowledged; anything else gets
//     an UnknownMessageType ErrorResponse.
//  4. Send an Acknowledge, wait briefly for the client's Acknowledge,
//     and close.
//
// Store failures are logged in full and reported to the client with a
// generic InternalError. A successful DecryptFile schedules the temp
// file with the [Scheduler] for removal after [protocol.TTL].
//
// When peer authentication is on, the uid a request claims must match
// the connecting process's SO_PEERCRED uid unless that process is
// root.
package daemon

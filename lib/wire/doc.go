// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire moves [protocol.Message] envelopes across a byte stream.
//
// A frame is a 4-byte big-endian length followed by that many bytes of
// CBOR. There is no other framing on the socket: no delimiters, no
// keep-alives, no batching. Each Send writes exactly one frame and each
// Receive reads exactly one. Neither buffers across calls.
//
// Errors other than a clean end of stream are *FrameError values whose
// Kind says what went wrong. Receive returns io.EOF unwrapped when the
// stream ends at a frame boundary.
package wire

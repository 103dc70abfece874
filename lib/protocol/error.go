// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// ErrorCode classifies a failure reported to the peer.
type ErrorCode string

const (
	ErrorUnknownMessageType ErrorCode = "UnknownMessageType"
	ErrorInvalidPayload     ErrorCode = "InvalidPayload"
	ErrorInvalidVersion     ErrorCode = "InvalidVersion"
	ErrorInternal           ErrorCode = "InternalError"
	ErrorInvalidPermissions ErrorCode = "InvalidPermissions"
)

// Description returns the human-readable text for the code.
func (c ErrorCode) Description() string {
	switch c {
	case ErrorUnknownMessageType:
		return "Unknown message type"
	case ErrorInvalidPayload:
		return "Invalid payload"
	case ErrorInvalidVersion:
		return "We aren't speaking the same language"
	case ErrorInternal:
		return "Internal error"
	case ErrorInvalidPermissions:
		return "You have no authority here"
	default:
		return "Unrecognized error"
	}
}

// Error is the structured failure carried by an ErrorResponse. It
// implements the error interface so callers can return it directly and
// inspect it with errors.As.
type Error struct {
	Code    ErrorCode `cbor:"code"`
	Message string    `cbor:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" || e.Message == e.Code.Description() {
		return fmt.Sprintf("%s: %s", e.Code, e.Code.Description())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

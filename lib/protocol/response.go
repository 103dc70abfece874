// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "time"

// TTL is how long a decrypted temp file exists before the daemon
// reclaims and deletes it. It is a hard deadline: client activity does
// not extend it.
const TTL = 5 * time.Second

// DecryptResponse is the Response payload for a DecryptFile request.
// TempPath holds the plaintext until TTL expires; OriginalPath is where
// the file lived when it was stored.
type DecryptResponse struct {
	TempPath     string        `cbor:"temp_p"`
	OriginalPath string        `cbor:"orig_p"`
	TTL          time.Duration `cbor:"ttl"`
}

// ValueResponse is the Response payload for text operations, RemoveFile
// and PingFile.
type ValueResponse struct {
	Value string `cbor:"value"`
}

// WriteResponse is the Response payload for a Write request.
type WriteResponse struct {
	Ok string `cbor:"Ok"`
}

// Fixed response values.
const (
	ValueOK             = "Ok"
	ValueNotImplemented = "Not implemented"
)

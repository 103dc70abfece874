// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"

	"github.com/Dj-Codeman/dusa/lib/codec"
)

// Command selects the operation a PlainText or Simple request performs.
type Command string

const (
	CommandEncryptRawText Command = "EncryptRawText"
	CommandDecryptRawText Command = "DecryptRawText"
	CommandDecryptFile    Command = "DecryptFile"
	CommandRemoveFile     Command = "RemoveFile"
	CommandPingFile       Command = "PingFile"
)

// ShortName returns the abbreviation used in log lines.
func (c Command) ShortName() string {
	switch c {
	case CommandEncryptRawText:
		return "et"
	case CommandDecryptRawText:
		return "dt"
	case CommandDecryptFile:
		return "df"
	case CommandRemoveFile:
		return "rf"
	case CommandPingFile:
		return "pf"
	default:
		return string(c)
	}
}

// Request is implemented by exactly the three request variants. The
// unexported marker method keeps the set closed.
type Request interface {
	// RequesterUID is the numeric identity the client claims to act
	// as.
	RequesterUID() uint32

	isRequest()
}

// WriteRequest asks the daemon to encrypt and store the file at Path
// under the (Owner, Name) key. The client transfers ownership of Path
// to the service identity before sending it.
type WriteRequest struct {
	Path  string `cbor:"path"`
	Owner string `cbor:"owner"`
	Name  string `cbor:"name"`
	UID   uint32 `cbor:"uid"`
}

// PlainTextRequest encrypts or decrypts an in-memory blob. For
// DecryptRawText, Data is the "<ciphertext>-<key>-<chunks>" string
// returned by a previous EncryptRawText.
type PlainTextRequest struct {
	Command Command `cbor:"command"`
	Data    string  `cbor:"data"`
	UID     uint32  `cbor:"uid"`
}

// SimpleRequest operates on a previously stored (Owner, Name) entry.
type SimpleRequest struct {
	Command Command `cbor:"command"`
	Owner   string  `cbor:"owner"`
	Name    string  `cbor:"name"`
	UID     uint32  `cbor:"uid"`
}

func (r *WriteRequest) RequesterUID() uint32     { return r.UID }
func (r *PlainTextRequest) RequesterUID() uint32 { return r.UID }
func (r *SimpleRequest) RequesterUID() uint32    { return r.UID }

func (*WriteRequest) isRequest()     {}
func (*PlainTextRequest) isRequest() {}
func (*SimpleRequest) isRequest()    {}

// Variant keys of the externally tagged request map.
const (
	variantWrite     = "Write"
	variantPlainText = "PlainText"
	variantSimple    = "Simple"
)

// EncodeRequest encodes req as a single-key map naming its variant.
func EncodeRequest(req Request) (codec.RawMessage, error) {
	var key string
	switch req.(type) {
	case *WriteRequest:
		key = variantWrite
	case *PlainTextRequest:
		key = variantPlainText
	case *SimpleRequest:
		key = variantSimple
	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}
	data, err := codec.Marshal(map[string]Request{key: req})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", key, err)
	}
	return data, nil
}

// DecodeRequest decodes a request payload. Every failure is returned as
// an *Error with code InvalidPayload: undecodable bytes, a map with zero
// or several keys, an unknown variant, or a variant body that does not
// match its schema.
func DecodeRequest(payload []byte) (Request, error) {
	var variants map[string]codec.RawMessage
	if err := codec.Unmarshal(payload, &variants); err != nil {
		return nil, invalidPayload("request payload is not a map: %v", err)
	}
	if len(variants) != 1 {
		return nil, invalidPayload("request payload has %d variants, want exactly 1", len(variants))
	}

	for key, body := range variants {
		var req Request
		switch key {
		case variantWrite:
			req = &WriteRequest{}
		case variantPlainText:
			req = &PlainTextRequest{}
		case variantSimple:
			req = &SimpleRequest{}
		default:
			return nil, invalidPayload("unknown request variant %q", key)
		}
		if err := codec.Unmarshal(body, req); err != nil {
			return nil, invalidPayload("decoding %s request: %v", key, err)
		}
		return req, nil
	}
	panic("unreachable")
}

func invalidPayload(format string, args ...any) *Error {
	return &Error{Code: ErrorInvalidPayload, Message: fmt.Sprintf(format, args...)}
}

// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"

	"github.com/Dj-Codeman/dusa/lib/codec"
)

// MessageType tags the envelope so the receiver knows how to interpret
// the payload.
type MessageType string

const (
	// MessageRequest carries a request payload (see [Request]).
	MessageRequest MessageType = "Request"

	// MessageResponse carries a successful result.
	MessageResponse MessageType = "Response"

	// MessageErrorResponse carries an [Error] in the envelope's error
	// field and an empty payload.
	MessageErrorResponse MessageType = "ErrorResponse"

	// MessageSimple is a payload-less probe. The daemon answers it
	// with an acknowledgement and nothing else.
	MessageSimple MessageType = "Simple"

	// MessageAcknowledge closes the handshake in both directions.
	MessageAcknowledge MessageType = "Acknowledge"

	// MessageTest is reserved. The daemon treats it as an unknown type.
	MessageTest MessageType = "Test"
)

// IsKnown reports whether t is one of the defined message types.
func (t MessageType) IsKnown() bool {
	switch t {
	case MessageRequest, MessageResponse, MessageErrorResponse,
		MessageSimple, MessageAcknowledge, MessageTest:
		return true
	}
	return false
}

// emptyPayload is the CBOR encoding of an empty map. Envelopes without
// meaningful content still carry a well-formed payload so that decoders
// never see a missing field.
var emptyPayload = codec.RawMessage{0xa0}

// Message is the envelope carried by every frame.
type Message struct {
	Version string           `cbor:"version"`
	Type    MessageType      `cbor:"msg_type"`
	Payload codec.RawMessage `cbor:"payload"`
	Error   *Error           `cbor:"error,omitempty"`
}

// Validate checks the envelope invariants: a known type, a non-empty
// version, and an error field present if and only if the type is
// ErrorResponse.
func (m *Message) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("message has no version")
	}
	if !m.Type.IsKnown() {
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	if m.Type == MessageErrorResponse && m.Error == nil {
		return fmt.Errorf("ErrorResponse without error field")
	}
	if m.Type != MessageErrorResponse && m.Error != nil {
		return fmt.Errorf("%s message carries an error field", m.Type)
	}
	return nil
}

// DecodePayload decodes the envelope payload into v.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := codec.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", m.Type, err)
	}
	return nil
}

// NewRequest wraps req in a Request envelope at the current protocol
// version.
func NewRequest(req Request) (*Message, error) {
	payload, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	return &Message{Version: Version, Type: MessageRequest, Payload: payload}, nil
}

// NewResponse encodes value as the payload of a Response envelope.
func NewResponse(value any) (*Message, error) {
	payload, err := codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding response payload: %w", err)
	}
	return &Message{Version: Version, Type: MessageResponse, Payload: payload}, nil
}

// NewErrorResponse builds an ErrorResponse envelope. An empty message
// is replaced by the code's description.
func NewErrorResponse(code ErrorCode, message string) *Message {
	if message == "" {
		message = code.Description()
	}
	return &Message{
		Version: Version,
		Type:    MessageErrorResponse,
		Payload: emptyPayload,
		Error:   &Error{Code: code, Message: message},
	}
}

// NewSimple builds a payload-less Simple envelope.
func NewSimple() *Message {
	return &Message{Version: Version, Type: MessageSimple, Payload: emptyPayload}
}

// NewAcknowledge builds an Acknowledge envelope.
func NewAcknowledge() *Message {
	return &Message{Version: Version, Type: MessageAcknowledge, Payload: emptyPayload}
}

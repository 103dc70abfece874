// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Dj-Codeman/dusa/lib/codec"
	"github.com/Dj-Codeman/dusa/lib/protocol"
)

const (
	// LengthPrefixSize is the size of the frame length prefix in bytes.
	LengthPrefixSize = 4

	// MaxFrameSize bounds a whole frame, prefix included (16 MiB).
	MaxFrameSize = 16 * 1024 * 1024

	// MaxPayloadSize is the largest envelope a frame can carry.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
)

// FrameErrorKind classifies a framing failure.
type FrameErrorKind int

const (
	// FramePartial is a short read or write: the stream ended or
	// failed inside a frame.
	FramePartial FrameErrorKind = iota

	// FrameTooLarge is a length prefix above MaxPayloadSize.
	FrameTooLarge

	// FrameDecode is a complete frame whose bytes are not a valid
	// envelope.
	FrameDecode

	// FrameEncode is an envelope that could not be serialized.
	FrameEncode
)

func (k FrameErrorKind) String() string {
	switch k {
	case FramePartial:
		return "partial"
	case FrameTooLarge:
		return "too large"
	case FrameDecode:
		return "decode"
	case FrameEncode:
		return "encode"
	default:
		return fmt.Sprintf("FrameErrorKind(%d)", int(k))
	}
}

// FrameError describes a framing failure.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError reports whether err is a *FrameError of the given kind.
func IsFrameError(err error, kind FrameErrorKind) bool {
	var frameErr *FrameError
	return errors.As(err, &frameErr) && frameErr.Kind == kind
}

// WriteFrame writes payload as one length-prefixed frame. The prefix
// and body go out in a single Write so a concurrent reader never sees
// a prefix without its body on a well-behaved stream.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	frame := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[LengthPrefixSize:], payload)

	if _, err := w.Write(frame); err != nil {
		return &FrameError{Kind: FramePartial, Msg: "failed to write frame", Err: err}
	}
	return nil
}

// ReadFrame reads one frame and returns its body.
//
// Errors:
//   - io.EOF: the stream ended cleanly before a new frame
//   - *FrameError with Kind=FramePartial: incomplete prefix or body
//   - *FrameError with Kind=FrameTooLarge: prefix above MaxPayloadSize
func ReadFrame(r io.Reader) ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FramePartial, Msg: "failed to read length prefix", Err: err}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &FrameError{Kind: FramePartial, Msg: "failed to read payload", Err: err}
	}
	return payload, nil
}

// Send encodes message and writes it as one frame.
func Send(w io.Writer, message *protocol.Message) error {
	payload, err := codec.Marshal(message)
	if err != nil {
		return &FrameError{Kind: FrameEncode, Msg: "failed to encode envelope", Err: err}
	}
	return WriteFrame(w, payload)
}

// Receive reads one frame and decodes it as an envelope. The envelope's
// structural invariants are checked; a frame that decodes but violates
// them is a FrameDecode error.
func Receive(r io.Reader) (*protocol.Message, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}

	var message protocol.Message
	if err := codec.Unmarshal(payload, &message); err != nil {
		return nil, &FrameError{Kind: FrameDecode, Msg: "failed to decode envelope", Err: err}
	}
	if err := message.Validate(); err != nil {
		return nil, &FrameError{Kind: FrameDecode, Msg: "invalid envelope", Err: err}
	}
	return &message, nil
}

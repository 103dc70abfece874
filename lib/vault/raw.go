// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Dj-Codeman/dusa/lib/secret"
	"github.com/Dj-Codeman/dusa/lib/wire"
)

// ErrMalformedCiphertext is returned by DecryptRaw when the key or
// ciphertext cannot be parsed, or the chunk count does not match.
var ErrMalformedCiphertext = errors.New("vault: malformed raw ciphertext")

// rawReplyReserve covers the envelope, key, and chunk count that
// surround the hex ciphertext in an EncryptRawText reply.
const rawReplyReserve = 4096

// MaxRawSize bounds the plaintext EncryptRaw accepts. It is the largest
// whole number of raw chunks whose hex-encoded frames still fit in one
// wire frame alongside rawReplyReserve.
const MaxRawSize = (wire.MaxPayloadSize - rawReplyReserve) / (2 * (4 + RawChunkSize + blobOverhead)) * RawChunkSize

// EncryptRaw encrypts data under a fresh key. It returns the key and
// ciphertext hex-encoded along with the chunk count, all three of
// which DecryptRaw needs. Nothing is persisted.
func (v *Vault) EncryptRaw(ctx context.Context, data []byte) (string, string, int, error) {
	if len(data) > MaxRawSize {
		return "", "", 0, fmt.Errorf("vault: raw text is %d bytes, maximum is %d", len(data), MaxRawSize)
	}
	raw, err := randomBytes(KeySize)
	if err != nil {
		return "", "", 0, err
	}
	key, err := secret.NewFromBytes(raw)
	if err != nil {
		return "", "", 0, err
	}
	defer key.Close()

	total := max(1, (len(data)+RawChunkSize-1)/RawChunkSize)
	output := make([]byte, 0, len(data)+total*(4+blobOverhead))
	for sequence := range total {
		if err := ctx.Err(); err != nil {
			return "", "", 0, err
		}
		start := sequence * RawChunkSize
		end := min(start+RawChunkSize, len(data))
		blob, err := sealBlob(data[start:end], key, rawAAD(uint32(sequence), uint32(total)))
		if err != nil {
			return "", "", 0, err
		}
		output = binary.BigEndian.AppendUint32(output, uint32(len(blob)))
		output = append(output, blob...)
	}

	v.logger.Debug("raw text encrypted", "size", len(data), "chunks", total)
	return hex.EncodeToString(key.Bytes()), hex.EncodeToString(output), total, nil
}

// DecryptRaw reverses EncryptRaw. A wrong key, a tampered ciphertext,
// or a chunk count other than the one EncryptRaw returned all fail.
func (v *Vault) DecryptRaw(ctx context.Context, ciphertext, keyHex string, chunks int) ([]byte, error) {
	if chunks <= 0 {
		return nil, fmt.Errorf("%w: chunk count %d", ErrMalformedCiphertext, chunks)
	}
	rawKey, err := hex.DecodeString(keyHex)
	if err != nil || len(rawKey) != KeySize {
		secret.Zero(rawKey)
		return nil, fmt.Errorf("%w: key must be %d hex-encoded bytes", ErrMalformedCiphertext, KeySize)
	}
	key, err := secret.NewFromBytes(rawKey)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	input, err := hex.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	var plaintext []byte
	for sequence := 0; len(input) > 0; sequence++ {
		if err := ctx.Err(); err != nil {
			secret.Zero(plaintext)
			return nil, err
		}
		if sequence >= chunks {
			secret.Zero(plaintext)
			return nil, fmt.Errorf("%w: more than %d chunks", ErrMalformedCiphertext, chunks)
		}
		if len(input) < 4 {
			secret.Zero(plaintext)
			return nil, fmt.Errorf("%w: truncated chunk header", ErrMalformedCiphertext)
		}
		length := binary.BigEndian.Uint32(input)
		input = input[4:]
		if uint64(length) > uint64(len(input)) {
			secret.Zero(plaintext)
			return nil, fmt.Errorf("%w: chunk %d is truncated", ErrMalformedCiphertext, sequence)
		}
		opened, err := openBlob(input[:length], key, rawAAD(uint32(sequence), uint32(chunks)))
		if err != nil {
			secret.Zero(plaintext)
			return nil, fmt.Errorf("raw chunk %d: %w", sequence, err)
		}
		plaintext = append(plaintext, opened...)
		secret.Zero(opened)
		input = input[length:]
		if len(input) == 0 && sequence+1 != chunks {
			secret.Zero(plaintext)
			return nil, fmt.Errorf("%w: found %d chunks, expected %d", ErrMalformedCiphertext, sequence+1, chunks)
		}
	}
	if plaintext == nil {
		if len(ciphertext) == 0 {
			return nil, fmt.Errorf("%w: empty ciphertext", ErrMalformedCiphertext)
		}
		plaintext = []byte{}
	}
	return plaintext, nil
}

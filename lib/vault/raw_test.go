// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Dj-Codeman/dusa/lib/wire"
)

func TestRawRoundtrip(t *testing.T) {
	ctx := context.Background()
	vault := openTestVault(t, t.TempDir(), nil)

	tests := []struct {
		name   string
		data   []byte
		chunks int
	}{
		{"hello world", []byte("hello world"), 1},
		{"empty", []byte{}, 1},
		{"exact chunk", bytes.Repeat([]byte{'x'}, RawChunkSize), 1},
		{"multiple chunks", bytes.Repeat([]byte("0123456789"), RawChunkSize), 10},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			key, ciphertext, chunks, err := vault.EncryptRaw(ctx, test.data)
			if err != nil {
				t.Fatalf("EncryptRaw: %v", err)
			}
			if chunks != test.chunks {
				t.Errorf("chunks = %d, want %d", chunks, test.chunks)
			}
			if len(key) != 2*KeySize {
				t.Errorf("key is %d hex characters", len(key))
			}
			if len(test.data) > 0 && strings.Contains(ciphertext, string(test.data)) {
				t.Error("ciphertext contains the plaintext")
			}

			plaintext, err := vault.DecryptRaw(ctx, ciphertext, key, chunks)
			if err != nil {
				t.Fatalf("DecryptRaw: %v", err)
			}
			if !bytes.Equal(plaintext, test.data) {
				t.Errorf("DecryptRaw = %d bytes, want %d", len(plaintext), len(test.data))
			}
		})
	}
}

func TestRawFreshKeys(t *testing.T) {
	ctx := context.Background()
	vault := openTestVault(t, t.TempDir(), nil)

	firstKey, firstCiphertext, _, err := vault.EncryptRaw(ctx, []byte("same"))
	if err != nil {
		t.Fatalf("EncryptRaw: %v", err)
	}
	secondKey, secondCiphertext, _, err := vault.EncryptRaw(ctx, []byte("same"))
	if err != nil {
		t.Fatalf("EncryptRaw: %v", err)
	}
	if firstKey == secondKey {
		t.Error("two encryptions used the same key")
	}
	if firstCiphertext == secondCiphertext {
		t.Error("two encryptions produced the same ciphertext")
	}
}

func TestDecryptRawRejects(t *testing.T) {
	ctx := context.Background()
	vault := openTestVault(t, t.TempDir(), nil)

	key, ciphertext, chunks, err := vault.EncryptRaw(ctx, bytes.Repeat([]byte{'a'}, 2*RawChunkSize+1))
	if err != nil {
		t.Fatalf("EncryptRaw: %v", err)
	}
	otherKey, _, _, err := vault.EncryptRaw(ctx, []byte("other"))
	if err != nil {
		t.Fatalf("EncryptRaw: %v", err)
	}

	tampered := []byte(ciphertext)
	if tampered[len(tampered)-1] == '0' {
		tampered[len(tampered)-1] = '1'
	} else {
		tampered[len(tampered)-1] = '0'
	}

	tests := []struct {
		name       string
		ciphertext string
		key        string
		chunks     int
		malformed  bool
	}{
		{"wrong key", ciphertext, otherKey, chunks, false},
		{"fewer chunks", ciphertext, key, chunks - 1, false},
		{"more chunks", ciphertext, key, chunks + 1, false},
		{"zero chunks", ciphertext, key, 0, true},
		{"tampered", string(tampered), key, chunks, false},
		{"truncated", ciphertext[:len(ciphertext)-2], key, chunks, true},
		{"not hex", "zz" + ciphertext, key, chunks, true},
		{"short key", ciphertext, key[:10], chunks, true},
		{"empty ciphertext", "", key, 1, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := vault.DecryptRaw(ctx, test.ciphertext, test.key, test.chunks)
			if err == nil {
				t.Fatal("DecryptRaw succeeded")
			}
			if test.malformed && !errors.Is(err, ErrMalformedCiphertext) {
				t.Errorf("DecryptRaw = %v, want ErrMalformedCiphertext", err)
			}
		})
	}
}

func TestEncryptRawTooLarge(t *testing.T) {
	vault := openTestVault(t, t.TempDir(), nil)
	if _, _, _, err := vault.EncryptRaw(context.Background(), make([]byte, MaxRawSize+1)); err == nil {
		t.Error("EncryptRaw accepted oversized input")
	}
}

func TestEncryptRawLargestFitsOneFrame(t *testing.T) {
	vault := openTestVault(t, t.TempDir(), nil)
	data := bytes.Repeat([]byte{0xa5}, MaxRawSize)
	key, ciphertext, chunks, err := vault.EncryptRaw(context.Background(), data)
	if err != nil {
		t.Fatalf("EncryptRaw: %v", err)
	}
	if chunks != MaxRawSize/RawChunkSize {
		t.Errorf("chunks = %d, want %d", chunks, MaxRawSize/RawChunkSize)
	}
	if size := len(ciphertext) + len(key) + rawReplyReserve; size > wire.MaxPayloadSize {
		t.Errorf("largest reply needs %d bytes, frame payload limit is %d", size, wire.MaxPayloadSize)
	}
}

// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestChunkRoundtrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("dusa vault chunk "), 512)
	random := make([]byte, 4096)
	rand.Read(random)

	for _, algorithm := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		for _, input := range []struct {
			name string
			data []byte
		}{
			{"empty", nil},
			{"compressible", compressible},
			{"random", random},
		} {
			t.Run(algorithm.String()+"/"+input.name, func(t *testing.T) {
				frame, err := encodeChunk(input.data, algorithm)
				if err != nil {
					t.Fatalf("encodeChunk: %v", err)
				}
				decoded, err := decodeChunk(frame)
				if err != nil {
					t.Fatalf("decodeChunk: %v", err)
				}
				if !bytes.Equal(decoded, input.data) {
					t.Errorf("roundtrip mismatch: %d bytes in, %d out", len(input.data), len(decoded))
				}
			})
		}
	}
}

func TestEncodeChunkFallsBack(t *testing.T) {
	random := make([]byte, 1024)
	rand.Read(random)

	frame, err := encodeChunk(random, CompressionZstd)
	if err != nil {
		t.Fatalf("encodeChunk: %v", err)
	}
	if Compression(frame[0]) != CompressionNone {
		t.Errorf("random data tagged %s, want none", Compression(frame[0]))
	}

	frame, err = encodeChunk(bytes.Repeat([]byte{'a'}, 1024), CompressionZstd)
	if err != nil {
		t.Fatalf("encodeChunk: %v", err)
	}
	if Compression(frame[0]) != CompressionZstd {
		t.Errorf("repetitive data tagged %s, want zstd", Compression(frame[0]))
	}
	if len(frame) >= 1024 {
		t.Errorf("compressed frame is %d bytes", len(frame))
	}
}

func TestDecodeChunkRejects(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"short", []byte{0}},
		{"unknown tag", []byte{9, 1, 'x'}},
		{"size mismatch", []byte{byte(CompressionNone), 5, 'x'}},
		{"oversized", []byte{byte(CompressionNone), 0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := decodeChunk(test.frame); err == nil {
				t.Error("decodeChunk succeeded")
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	for _, algorithm := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompression(algorithm.String())
		if err != nil || parsed != algorithm {
			t.Errorf("ParseCompression(%q) = %v, %v", algorithm.String(), parsed, err)
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("ParseCompression(brotli) succeeded")
	}
}

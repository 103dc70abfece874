// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestNewZeroFilled(t *testing.T) {
	buffer, err := New(32)
	if err != nil {
		t.Fatalf("New(32): %v", err)
	}
	defer buffer.Close()

	if buffer.Len() != 32 {
		t.Errorf("Len() = %d, want 32", buffer.Len())
	}
	for index, value := range buffer.Bytes() {
		if value != 0 {
			t.Fatalf("byte %d = %d, want 0", index, value)
		}
	}
}

func TestNewRejectsNonPositive(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded", size)
		}
	}
}

func TestNewFromBytesZeroesSource(t *testing.T) {
	source := []byte("master-key-material")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if buffer.String() != "master-key-material" {
		t.Errorf("String() = %q", buffer.String())
	}
	if !bytes.Equal(source, make([]byte, len(source))) {
		t.Errorf("source not zeroed: %q", source)
	}
	if !buffer.Equal([]byte("master-key-material")) {
		t.Error("Equal(same) = false")
	}
	if buffer.Equal([]byte("other")) {
		t.Error("Equal(other) = true")
	}
}

func TestNewFromBytesEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Error("NewFromBytes(nil) succeeded")
	}
}

func TestCloseIdempotentAndPanicsAfter(t *testing.T) {
	buffer, err := NewFromBytes([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("Len() after Close = %d", buffer.Len())
	}

	defer func() {
		if recover() == nil {
			t.Error("Bytes() after Close did not panic")
		}
	}()
	buffer.Bytes()
}

func TestReadAll(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello world", "hello world"},
		{"trailing newline", "hello world\n", "hello world"},
		{"crlf", "hello\r\n", "hello"},
		{"keeps inner newlines", "a\nb\n", "a\nb"},
		{"large", strings.Repeat("x", 5000), strings.Repeat("x", 5000)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buffer, err := ReadAll(iotest.OneByteReader(strings.NewReader(test.input)), 1<<20)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			defer buffer.Close()
			if buffer.String() != test.want {
				t.Errorf("got %q, want %q", buffer.String(), test.want)
			}
		})
	}
}

func TestReadAllErrors(t *testing.T) {
	if _, err := ReadAll(strings.NewReader("\n"), 100); err == nil {
		t.Error("ReadAll(empty line) succeeded")
	}
	if _, err := ReadAll(strings.NewReader(strings.Repeat("x", 101)), 100); err == nil {
		t.Error("ReadAll over limit succeeded")
	}
	failure := errors.New("boom")
	if _, err := ReadAll(iotest.ErrReader(failure), 100); !errors.Is(err, failure) {
		t.Errorf("ReadAll(failing reader) = %v, want wrapped boom", err)
	}
}

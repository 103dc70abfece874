// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/Dj-Codeman/dusa/lib/codec"
)

func TestRequestRoundtrip(t *testing.T) {
	requests := []Request{
		&WriteRequest{Path: "/home/alice/notes.txt", Owner: "alice", Name: "notes", UID: 1000},
		&PlainTextRequest{Command: CommandEncryptRawText, Data: "hello world", UID: 1000},
		&PlainTextRequest{Command: CommandDecryptRawText, Data: "aa-bb-1", UID: 0},
		&SimpleRequest{Command: CommandDecryptFile, Owner: "alice", Name: "notes", UID: 1000},
		&SimpleRequest{Command: CommandRemoveFile, Owner: "bob", Name: "x", UID: 1001},
		&SimpleRequest{Command: CommandPingFile, Owner: "system", Name: "test", UID: 1000},
	}

	for _, original := range requests {
		payload, err := EncodeRequest(original)
		if err != nil {
			t.Fatalf("EncodeRequest(%+v): %v", original, err)
		}
		decoded, err := DecodeRequest(payload)
		if err != nil {
			t.Fatalf("DecodeRequest(%+v): %v", original, err)
		}
		switch want := original.(type) {
		case *WriteRequest:
			got, ok := decoded.(*WriteRequest)
			if !ok || *got != *want {
				t.Errorf("Write roundtrip: got %#v, want %#v", decoded, want)
			}
		case *PlainTextRequest:
			got, ok := decoded.(*PlainTextRequest)
			if !ok || *got != *want {
				t.Errorf("PlainText roundtrip: got %#v, want %#v", decoded, want)
			}
		case *SimpleRequest:
			got, ok := decoded.(*SimpleRequest)
			if !ok || *got != *want {
				t.Errorf("Simple roundtrip: got %#v, want %#v", decoded, want)
			}
		}
		if decoded.RequesterUID() != original.RequesterUID() {
			t.Errorf("RequesterUID = %d, want %d", decoded.RequesterUID(), original.RequesterUID())
		}
	}
}

func TestEncodeRequestUsesVariantKey(t *testing.T) {
	payload, err := EncodeRequest(&SimpleRequest{Command: CommandPingFile})
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := codec.Unmarshal(payload, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 1 {
		t.Fatalf("payload has %d keys, want 1: %v", len(raw), raw)
	}
	body, ok := raw["Simple"].(map[string]any)
	if !ok {
		t.Fatalf("payload[Simple] = %T, want map", raw["Simple"])
	}
	if body["command"] != "PingFile" {
		t.Errorf("command = %v, want PingFile", body["command"])
	}
}

func TestDecodeRequestRejectsMalformed(t *testing.T) {
	mustMarshal := func(v any) []byte {
		t.Helper()
		data, err := codec.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	tests := []struct {
		name    string
		payload []byte
	}{
		{"garbage", []byte{0xff, 0x00, 0x13}},
		{"not a map", mustMarshal("Write")},
		{"empty map", mustMarshal(map[string]any{})},
		{"two variants", mustMarshal(map[string]any{
			"Write":  map[string]any{"path": "/a"},
			"Simple": map[string]any{"command": "PingFile"},
		})},
		{"unknown variant", mustMarshal(map[string]any{"Delete": map[string]any{}})},
		{"wrong body type", mustMarshal(map[string]any{"Write": "not a struct"})},
		{"wrong field type", mustMarshal(map[string]any{"Simple": map[string]any{"uid": "root"}})},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := DecodeRequest(test.payload)
			if err == nil {
				t.Fatal("DecodeRequest succeeded, want InvalidPayload")
			}
			var protocolErr *Error
			if !errors.As(err, &protocolErr) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if protocolErr.Code != ErrorInvalidPayload {
				t.Errorf("code = %s, want %s", protocolErr.Code, ErrorInvalidPayload)
			}
		})
	}
}

func TestEnvelopeRoundtrip(t *testing.T) {
	request, err := NewRequest(&SimpleRequest{Command: CommandDecryptFile, Owner: "o", Name: "n", UID: 5})
	if err != nil {
		t.Fatal(err)
	}
	response, err := NewResponse(DecryptResponse{TempPath: "/tmp/x", OriginalPath: "/home/x", TTL: TTL})
	if err != nil {
		t.Fatal(err)
	}

	envelopes := []*Message{
		request,
		response,
		NewErrorResponse(ErrorInvalidVersion, ""),
		NewSimple(),
		NewAcknowledge(),
	}
	for _, original := range envelopes {
		if err := original.Validate(); err != nil {
			t.Fatalf("%s: Validate: %v", original.Type, err)
		}
		data, err := codec.Marshal(original)
		if err != nil {
			t.Fatalf("%s: Marshal: %v", original.Type, err)
		}
		var decoded Message
		if err := codec.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("%s: Unmarshal: %v", original.Type, err)
		}
		if decoded.Version != original.Version || decoded.Type != original.Type {
			t.Errorf("header mismatch: got %s/%s, want %s/%s",
				decoded.Version, decoded.Type, original.Version, original.Type)
		}
		if string(decoded.Payload) != string(original.Payload) {
			t.Errorf("%s: payload changed: %x != %x", original.Type, decoded.Payload, original.Payload)
		}
		if (decoded.Error == nil) != (original.Error == nil) {
			t.Errorf("%s: error presence changed", original.Type)
		}
		if decoded.Error != nil && *decoded.Error != *original.Error {
			t.Errorf("%s: error = %+v, want %+v", original.Type, decoded.Error, original.Error)
		}
	}
}

func TestDecryptResponsePayload(t *testing.T) {
	message, err := NewResponse(DecryptResponse{TempPath: "/tmp/a", OriginalPath: "/srv/a", TTL: TTL})
	if err != nil {
		t.Fatal(err)
	}
	var decoded DecryptResponse
	if err := message.DecodePayload(&decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.TTL != 5*time.Second {
		t.Errorf("TTL = %v, want 5s", decoded.TTL)
	}
	if decoded.TempPath != "/tmp/a" || decoded.OriginalPath != "/srv/a" {
		t.Errorf("paths = %+v", decoded)
	}

	var raw map[string]any
	if err := message.DecodePayload(&raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"temp_p", "orig_p", "ttl"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("payload missing key %q: %v", key, raw)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		message Message
		wantErr bool
	}{
		{"ack", Message{Version: Version, Type: MessageAcknowledge}, false},
		{"error response", Message{Version: Version, Type: MessageErrorResponse, Error: &Error{Code: ErrorInternal}}, false},
		{"no version", Message{Type: MessageAcknowledge}, true},
		{"unknown type", Message{Version: Version, Type: "Bogus"}, true},
		{"error response without error", Message{Version: Version, Type: MessageErrorResponse}, true},
		{"response with error", Message{Version: Version, Type: MessageResponse, Error: &Error{Code: ErrorInternal}}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.message.Validate()
			if (err != nil) != test.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, test.wantErr)
			}
		})
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.2.0", "1.2.0", true},
		{"1.2.0", "1.2.7", true},
		{"1.2.0", "1.3.0", false},
		{"1.2.0", "2.2.0", false},
		{"1.2", "1.2.0", false},
		{"1.2.x", "1.2.0", false},
		{"", "1.2.0", false},
		{"1.2.0.1", "1.2.0", false},
	}
	for _, test := range tests {
		if got := Compatible(test.a, test.b); got != test.want {
			t.Errorf("Compatible(%q, %q) = %v, want %v", test.a, test.b, got, test.want)
		}
	}
	if !CheckVersion(Version) {
		t.Error("CheckVersion(Version) = false")
	}
}

func TestErrorDescriptions(t *testing.T) {
	err := NewErrorResponse(ErrorInvalidVersion, "").Error
	if err.Message != "We aren't speaking the same language" {
		t.Errorf("message = %q", err.Message)
	}
	if err.Error() != "InvalidVersion: We aren't speaking the same language" {
		t.Errorf("Error() = %q", err.Error())
	}

	custom := &Error{Code: ErrorInternal, Message: "Invalid command parsing"}
	if custom.Error() != "InternalError: Invalid command parsing" {
		t.Errorf("Error() = %q", custom.Error())
	}
}

func TestCommandShortName(t *testing.T) {
	want := map[Command]string{
		CommandEncryptRawText: "et",
		CommandDecryptRawText: "dt",
		CommandDecryptFile:    "df",
		CommandRemoveFile:     "rf",
		CommandPingFile:       "pf",
		Command("Other"):      "Other",
	}
	for command, short := range want {
		if got := command.ShortName(); got != short {
			t.Errorf("%s.ShortName() = %q, want %q", command, got, short)
		}
	}
}

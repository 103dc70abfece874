// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sampleRecord struct {
	Owner string `cbor:"owner"`
	Name  string `cbor:"name,omitempty"`
	UID   uint32 `cbor:"uid"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{Owner: "system", Name: "db-password", UID: 1000}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"zeta": 1, "alpha": "two", "mid": []byte{3}}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestAnyMapDecodesWithStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"value": "Ok"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	asMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if asMap["value"] != "Ok" {
		t.Errorf("value = %v, want Ok", asMap["value"])
	}
}

func TestRawMessageDefersDecoding(t *testing.T) {
	type envelope struct {
		Kind    string     `cbor:"kind"`
		Payload RawMessage `cbor:"payload"`
	}

	inner, err := Marshal(sampleRecord{Owner: "a", UID: 7})
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(envelope{Kind: "record", Payload: inner})
	if err != nil {
		t.Fatal(err)
	}

	var outer envelope
	if err := Unmarshal(data, &outer); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	if !bytes.Equal(outer.Payload, inner) {
		t.Fatalf("payload bytes changed: %x != %x", outer.Payload, inner)
	}

	var record sampleRecord
	if err := Unmarshal(outer.Payload, &record); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if record.Owner != "a" || record.UID != 7 {
		t.Errorf("payload = %+v", record)
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var record sampleRecord
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &record); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

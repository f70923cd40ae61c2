package rrdata

import (
	"bytes"
	"testing"
)

func TestEncodeHINFOData_Quoted(t *testing.T) {
	result, err := encodeHINFOData(`"RFC8482" ""`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []byte{7, 'R', 'F', 'C', '8', '4', '8', '2', 0}
	if !bytes.Equal(result, expected) {
		t.Errorf("expected %v, got %v", expected, result)
	}
}

func TestEncodeHINFOData_Unquoted(t *testing.T) {
	result, err := encodeHINFOData("amd64 linux")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []byte{5, 'a', 'm', 'd', '6', '4', 5, 'l', 'i', 'n', 'u', 'x'}
	if !bytes.Equal(result, expected) {
		t.Errorf("expected %v, got %v", expected, result)
	}
}

func TestEncodeHINFOData_WrongFieldCount(t *testing.T) {
	for _, in := range []string{"", "amd64", "a b c"} {
		if _, err := encodeHINFOData(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestDecodeHINFOData_EmptyOS(t *testing.T) {
	result, err := decodeHINFOData([]byte{7, 'R', 'F', 'C', '8', '4', '8', '2', 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `"RFC8482" ""` {
		t.Errorf("expected %q, got %q", `"RFC8482" ""`, result)
	}
}

func TestDecodeHINFOData_MissingOS(t *testing.T) {
	if _, err := decodeHINFOData([]byte{3, 'c', 'p', 'u'}); err == nil {
		t.Error("expected error for missing os character-string")
	}
}

func TestHINFOData_RoundTrip(t *testing.T) {
	in := `"amd64" "linux"`
	encoded, err := encodeHINFOData(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decodeHINFOData(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != in {
		t.Errorf("round trip changed value: %q -> %q", in, decoded)
	}
}

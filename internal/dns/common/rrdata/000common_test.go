package rrdata

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDomainName_Valid(t *testing.T) {
	result, err := encodeDomainName("www.example.goat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []byte{3, 'w', 'w', 'w', 7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 4, 'g', 'o', 'a', 't', 0}
	if !bytes.Equal(result, expected) {
		t.Errorf("expected %v, got %v", expected, result)
	}
}

func TestEncodeDomainName_Root(t *testing.T) {
	result, err := encodeDomainName("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(result, []byte{0}) {
		t.Errorf("expected root name encoding, got %v", result)
	}
}

func TestEncodeDomainName_LabelTooLong(t *testing.T) {
	if _, err := encodeDomainName(strings.Repeat("a", 64) + ".example.goat"); err == nil {
		t.Error("expected error for 64-octet label")
	}
}

func TestEncodeDomainName_NameTooLong(t *testing.T) {
	label := strings.Repeat("a", 63)
	name := strings.Join([]string{label, label, label, label, label}, ".")
	if _, err := encodeDomainName(name); err == nil {
		t.Error("expected error for name over 255 octets")
	}
}

func TestDecodeDomainName_ReportsConsumed(t *testing.T) {
	input := []byte{3, 'w', 'w', 'w', 4, 'g', 'o', 'a', 't', 0, 0xde, 0xad}
	name, n, err := decodeDomainName(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "www.goat" {
		t.Errorf("name = %q, want %q", name, "www.goat")
	}
	if n != 10 {
		t.Errorf("consumed = %d, want 10", n)
	}
}

func TestDecodeDomainName_MissingTerminator(t *testing.T) {
	if _, _, err := decodeDomainName([]byte{3, 'w', 'w', 'w'}); err == nil {
		t.Error("expected error for missing terminator")
	}
}

func TestDecodeDomainName_TruncatedLabel(t *testing.T) {
	if _, _, err := decodeDomainName([]byte{5, 'a', 'b'}); err == nil {
		t.Error("expected error for truncated label")
	}
}

func TestCharString_RoundTrip(t *testing.T) {
	encoded, err := encodeCharString("hello")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s, n, err := decodeCharString(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s != "hello" || n != 6 {
		t.Errorf("got (%q, %d), want (%q, 6)", s, n, "hello")
	}
}

func TestEncodeCharString_TooLong(t *testing.T) {
	if _, err := encodeCharString(strings.Repeat("a", 256)); err == nil {
		t.Error("expected error for 256-octet character-string")
	}
}

func TestSplitQuoted(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`0 issue "letsencrypt.org"`, []string{"0", "issue", "letsencrypt.org"}},
		{`"RFC8482" ""`, []string{"RFC8482", ""}},
		{`10 1 "https://e.goat/path with spaces"`, []string{"10", "1", "https://e.goat/path with spaces"}},
		{`plain fields`, []string{"plain", "fields"}},
		{``, nil},
	}
	for _, tt := range tests {
		if got := splitQuoted(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitQuoted(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

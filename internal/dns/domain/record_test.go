package domain

import "testing"

func TestNewResourceRecord(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		rrtype  RRType
		class   RRClass
		data    []byte
		text    string
		wantErr bool
	}{
		{"valid A record", "www.example.goat", RRTypeA, RRClassIN, []byte{192, 0, 2, 1}, "192.0.2.1", false},
		{"text only is enough", "www.example.goat", RRTypeTXT, RRClassIN, nil, "hello", false},
		{"data only is enough", "www.example.goat", RRTypeA, RRClassIN, []byte{192, 0, 2, 1}, "", false},
		{"empty owner rejected", "", RRTypeA, RRClassIN, []byte{192, 0, 2, 1}, "192.0.2.1", true},
		{"invalid type rejected", "www.example.goat", RRType(999), RRClassIN, nil, "x", true},
		{"invalid class rejected", "www.example.goat", RRTypeA, RRClass(999), nil, "x", true},
		{"no payload rejected", "www.example.goat", RRTypeA, RRClassIN, nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResourceRecord(tt.owner, tt.rrtype, tt.class, 300, tt.data, tt.text)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestResourceRecord_WithTTLFloor(t *testing.T) {
	rr, err := NewResourceRecord("www.example.goat", RRTypeA, RRClassIN, 60, []byte{192, 0, 2, 1}, "192.0.2.1")
	if err != nil {
		t.Fatal(err)
	}

	raised := rr.WithTTLFloor(300)
	if raised.TTL() != 300 {
		t.Errorf("TTL below the floor should be raised, got %d", raised.TTL())
	}
	kept := rr.WithTTLFloor(30)
	if kept.TTL() != 60 {
		t.Errorf("TTL above the floor should be kept, got %d", kept.TTL())
	}
	if rr.TTL() != 60 {
		t.Errorf("WithTTLFloor must not mutate the receiver, TTL = %d", rr.TTL())
	}
}

func TestResourceRecord_WithName(t *testing.T) {
	rr, err := NewResourceRecord("*.example.goat", RRTypeA, RRClassIN, 300, []byte{192, 0, 2, 1}, "192.0.2.1")
	if err != nil {
		t.Fatal(err)
	}
	got := rr.WithName("Host.Example.GOAT.")
	if got.Name != "host.example.goat" {
		t.Errorf("Name = %q, want canonicalized synthesized owner", got.Name)
	}
	if rr.Name != "*.example.goat" {
		t.Errorf("WithName must not mutate the receiver, Name = %q", rr.Name)
	}
}

func TestResourceRecord_CacheKey(t *testing.T) {
	rr, err := NewResourceRecord("www.example.goat", RRTypeAAAA, RRClassIN, 300, nil, "2001:db8::1")
	if err != nil {
		t.Fatal(err)
	}
	if got := rr.CacheKey(); got != "www.example.goat|AAAA|IN" {
		t.Errorf("CacheKey() = %q", got)
	}
}

package reload

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caprine/goatd/internal/dns/common/log"
	"github.com/caprine/goatd/internal/dns/domain"
	"github.com/caprine/goatd/internal/dns/repos/zonefile"
	"github.com/caprine/goatd/internal/dns/repos/zonestore"
)

func testDoc() zonefile.Document {
	return zonefile.Document{
		Zone: domain.Zone{
			ID:     1,
			Origin: "example.goat",
			SOA: domain.SOA{
				MName:   "ns1.example.goat",
				RName:   "admin.example.goat",
				Serial:  2026010100,
				Refresh: 7200,
				Retry:   900,
				Expire:  1209600,
				Minimum: 300,
			},
		},
		Records: []domain.FileZoneRecord{
			{Name: "www.example.goat", Type: "A", RData: "192.0.2.10", TTL: 600},
			{Name: "www.example.goat", Type: "AAAA", RData: "2001:db8::10"},
		},
	}
}

func question(t *testing.T, name string, rrtype domain.RRType) domain.Question {
	t.Helper()
	q, err := domain.NewQuestion(1, name, rrtype, domain.RRClassIN)
	if err != nil {
		t.Fatalf("NewQuestion: %v", err)
	}
	q.RecursionDesired = false
	return q
}

func TestBuildSnapshot(t *testing.T) {
	snap, err := BuildSnapshot([]zonefile.Document{testDoc()}, 1)
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}
	if got := len(snap.Zones()); got != 1 {
		t.Fatalf("expected 1 zone, got %d", got)
	}

	result := snap.Lookup(question(t, "www.example.goat", domain.RRTypeA))
	if result.Outcome != domain.LookupAnswer {
		t.Fatalf("expected answer, got %v", result.Outcome)
	}
	if len(result.Records) != 1 || result.Records[0].Text != "192.0.2.10" {
		t.Fatalf("unexpected records: %+v", result.Records)
	}
}

func TestBuildSnapshot_TTLInheritsSOAMinimum(t *testing.T) {
	snap, err := BuildSnapshot([]zonefile.Document{testDoc()}, 1)
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}
	result := snap.Lookup(question(t, "www.example.goat", domain.RRTypeAAAA))
	if result.Outcome != domain.LookupAnswer {
		t.Fatalf("expected answer, got %v", result.Outcome)
	}
	if got := result.Records[0].TTL(); got != 300 {
		t.Errorf("expected TTL floor 300 for unset TTL, got %d", got)
	}
}

func TestBuildSnapshot_BadRecordFails(t *testing.T) {
	doc := testDoc()
	doc.Records = append(doc.Records, domain.FileZoneRecord{
		Name: "bad.example.goat", Type: "A", RData: "not-an-ip",
	})
	if _, err := BuildSnapshot([]zonefile.Document{doc}, 1); err == nil {
		t.Error("expected error for unparseable rdata")
	}
}

func TestMaterialize(t *testing.T) {
	rr, err := Materialize(domain.FileZoneRecord{
		Name: "www.example.goat", Type: "A", RData: "192.0.2.10", TTL: 60,
	})
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if rr.Type != domain.RRTypeA {
		t.Errorf("expected A, got %v", rr.Type)
	}
	if !net.IP(rr.Data).Equal(net.ParseIP("192.0.2.10")) {
		t.Errorf("unexpected rdata: %v", rr.Data)
	}
	if rr.Class != domain.RRClassIN {
		t.Errorf("expected IN class default, got %v", rr.Class)
	}
}

func TestMaterialize_UnknownType(t *testing.T) {
	_, err := Materialize(domain.FileZoneRecord{
		Name: "www.example.goat", Type: "SPF", RData: "whatever",
	})
	if err == nil {
		t.Error("expected error for unsupported type")
	}
}

const watchedZone = `origin: example.goat
soa:
  mname: ns1.example.goat
  rname: admin.example.goat
  serial: %d
  refresh: 7200
  retry: 900
  expire: 1209600
  minimum: 300
records:
  www:
    A: %s
`

func writeZoneFile(t *testing.T, dir string, serial int, addr string) {
	t.Helper()
	content := []byte(fmt.Sprintf(watchedZone, serial, addr))
	if err := os.WriteFile(filepath.Join(dir, "example.yaml"), content, 0o644); err != nil {
		t.Fatalf("writing zone file: %v", err)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeZoneFile(t, dir, 1, "192.0.2.1")

	store := zonestore.New()
	w := NewWatcher(WatcherOptions{
		ZoneDir:  dir,
		Store:    store,
		Logger:   log.NewNoopLogger(),
		Debounce: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	w.Reload()
	first := store.Current()
	if first == nil {
		t.Fatal("expected initial snapshot")
	}

	writeZoneFile(t, dir, 2, "192.0.2.2")
	waitFor(t, func() bool {
		snap := store.Current()
		return snap != nil && snap.Generation() > first.Generation()
	})

	result := store.Lookup(question(t, "www.example.goat", domain.RRTypeA))
	if result.Outcome != domain.LookupAnswer || result.Records[0].Text != "192.0.2.2" {
		t.Fatalf("expected updated record, got %+v", result)
	}
}

func TestWatcher_BadEditKeepsServing(t *testing.T) {
	dir := t.TempDir()
	writeZoneFile(t, dir, 1, "192.0.2.1")

	store := zonestore.New()
	w := NewWatcher(WatcherOptions{
		ZoneDir:  dir,
		Store:    store,
		Logger:   log.NewNoopLogger(),
		Debounce: 20 * time.Millisecond,
	})
	w.Reload()
	before := store.Current()
	if before == nil {
		t.Fatal("expected initial snapshot")
	}

	if err := os.WriteFile(filepath.Join(dir, "example.yaml"), []byte("origin: ["), 0o644); err != nil {
		t.Fatalf("writing broken file: %v", err)
	}
	w.Reload()

	after := store.Current()
	if after.Generation() != before.Generation() {
		t.Fatal("expected broken reload to keep the old snapshot")
	}
	result := store.Lookup(question(t, "www.example.goat", domain.RRTypeA))
	if result.Outcome != domain.LookupAnswer {
		t.Fatalf("expected old data to keep serving, got %+v", result)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

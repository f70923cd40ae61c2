// Package zonestore holds the in-memory authoritative data the server
// answers from. All zone data lives in immutable snapshots; queries read
// one snapshot for their whole lifetime and reloads swap in a fresh one,
// so an answer never mixes two generations of zone data.
package zonestore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/caprine/goatd/internal/dns/common/rrdata"
	"github.com/caprine/goatd/internal/dns/common/utils"
	"github.com/caprine/goatd/internal/dns/domain"
)

// bloomFalsePositiveRate sizes the owner-name prefilter. A false positive
// only costs one extra map probe, so 1% keeps the filter small.
const bloomFalsePositiveRate = 0.01

// Snapshot is one immutable generation of zone data. It is safe for
// concurrent readers; nothing mutates it after Build returns it.
type Snapshot struct {
	generation uint64

	// zones sorted by label count descending so the first bailiwick
	// match is the longest (most specific) one.
	zones []*domain.Zone

	// records keyed by owner name, type and class.
	records map[string][]domain.ResourceRecord

	// owners holds every owner name plus the empty non-terminals above
	// them, mapped to the origin of the zone they belong to. Presence
	// here separates NODATA from NXDOMAIN.
	owners map[string]struct{}

	// prefilter rejects definitely-absent owner names before the map is
	// probed, which keeps wildcard ancestor walks cheap on miss-heavy
	// workloads.
	prefilter *bloom.BloomFilter
}

// Generation identifies which build of zone data this snapshot carries.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Zones returns the origins of all loaded zones, most specific first.
func (s *Snapshot) Zones() []string {
	origins := make([]string, len(s.zones))
	for i, z := range s.zones {
		origins[i] = z.Origin
	}
	return origins
}

// RecordCount returns the number of distinct (name, type, class) keys.
func (s *Snapshot) RecordCount() int {
	return len(s.records)
}

// Lookup answers a question from this snapshot.
//
// The order is: zone match, exact match, CNAME at the query name with a
// one-hop chase, wildcard synthesis, then NODATA or NXDOMAIN. The ANY
// pseudo-type never reaches here; the resolver answers it synthetically.
func (s *Snapshot) Lookup(q domain.Question) domain.LookupResult {
	zone := s.matchZone(q.Name)
	if zone == nil {
		return domain.LookupResult{Outcome: domain.LookupNotAuthoritative}
	}

	if rrs := s.recordsFor(q.Name, q.Type, q.Class); len(rrs) > 0 {
		return domain.LookupResult{Outcome: domain.LookupAnswer, Records: rrs, Zone: zone}
	}

	if q.Type != domain.RRTypeCNAME {
		if answers := s.chaseCNAME(q.Name, q); answers != nil {
			return domain.LookupResult{Outcome: domain.LookupAnswer, Records: answers, Zone: zone}
		}
	}

	if s.nameExists(q.Name) {
		return domain.LookupResult{Outcome: domain.LookupNoData, Zone: zone}
	}

	// Wildcard search: walk the query name's ancestors inside the zone,
	// closest first, and look for "*.<ancestor>".
	for anc := parentName(q.Name); len(anc) >= len(zone.Origin); anc = parentName(anc) {
		if !utils.InBailiwick(anc, zone.Origin) {
			break
		}
		wildcard := "*." + anc
		if !s.nameExists(wildcard) {
			continue
		}
		if rrs := s.recordsFor(wildcard, q.Type, q.Class); len(rrs) > 0 {
			return domain.LookupResult{Outcome: domain.LookupAnswer, Records: synthesize(rrs, q.Name), Zone: zone}
		}
		if q.Type != domain.RRTypeCNAME {
			if cnames := s.recordsFor(wildcard, domain.RRTypeCNAME, q.Class); len(cnames) > 0 {
				answers := synthesize(cnames, q.Name)
				answers = append(answers, s.targetRecords(cnames[0], q)...)
				return domain.LookupResult{Outcome: domain.LookupAnswer, Records: answers, Zone: zone}
			}
		}
		// The wildcard owner exists but has no records of this type, so
		// the synthesized name exists too.
		return domain.LookupResult{Outcome: domain.LookupNoData, Zone: zone}
	}

	return domain.LookupResult{Outcome: domain.LookupNXDomain, Zone: zone}
}

// SOARecord returns the zone's SOA as a servable record.
func (s *Snapshot) SOARecord(zone *domain.Zone) (domain.ResourceRecord, bool) {
	rrs := s.recordsFor(zone.Origin, domain.RRTypeSOA, domain.RRClassIN)
	if len(rrs) == 0 {
		return domain.ResourceRecord{}, false
	}
	return rrs[0], true
}

// chaseCNAME returns the CNAME at name plus, when the target is inside a
// loaded zone, the target's records of the queried type. The chase is a
// single hop; a CNAME pointing at another CNAME is returned as-is and the
// client follows it.
func (s *Snapshot) chaseCNAME(name string, q domain.Question) []domain.ResourceRecord {
	cnames := s.recordsFor(name, domain.RRTypeCNAME, q.Class)
	if len(cnames) == 0 {
		return nil
	}
	answers := make([]domain.ResourceRecord, 0, len(cnames)+1)
	answers = append(answers, cnames...)
	answers = append(answers, s.targetRecords(cnames[0], q)...)
	return answers
}

// targetRecords resolves one CNAME hop: records of the queried type at
// the CNAME target, when that target falls inside a loaded zone.
func (s *Snapshot) targetRecords(cname domain.ResourceRecord, q domain.Question) []domain.ResourceRecord {
	target := utils.CanonicalDNSName(cname.Text)
	if target == "" || s.matchZone(target) == nil {
		return nil
	}
	return s.recordsFor(target, q.Type, q.Class)
}

// matchZone returns the most specific loaded zone containing name, or nil.
func (s *Snapshot) matchZone(name string) *domain.Zone {
	for _, z := range s.zones {
		if utils.InBailiwick(name, z.Origin) {
			return z
		}
	}
	return nil
}

// recordsFor fetches the records stored under one exact key.
func (s *Snapshot) recordsFor(name string, t domain.RRType, c domain.RRClass) []domain.ResourceRecord {
	return s.records[domain.GenerateCacheKey(name, t, c)]
}

// nameExists reports whether an owner name (or empty non-terminal) is
// present, consulting the bloom prefilter before the map.
func (s *Snapshot) nameExists(name string) bool {
	if !s.prefilter.TestString(name) {
		return false
	}
	_, ok := s.owners[name]
	return ok
}

// synthesize re-owns wildcard records under the query name.
func synthesize(rrs []domain.ResourceRecord, name string) []domain.ResourceRecord {
	out := make([]domain.ResourceRecord, len(rrs))
	for i, rr := range rrs {
		out[i] = rr.WithName(name)
	}
	return out
}

// parentName strips the leftmost label. The parent of a single label is
// the empty string.
func parentName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// Builder accumulates zones and records, then produces an immutable
// Snapshot. It is not safe for concurrent use; reload code builds in one
// goroutine and swaps the result.
type Builder struct {
	zones   map[string]*domain.Zone
	records map[string][]domain.ResourceRecord
	owners  map[string]struct{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		zones:   make(map[string]*domain.Zone),
		records: make(map[string][]domain.ResourceRecord),
		owners:  make(map[string]struct{}),
	}
}

// AddZone registers a zone and materializes its SOA record at the apex.
func (b *Builder) AddZone(z domain.Zone) error {
	if err := z.Validate(); err != nil {
		return fmt.Errorf("invalid zone: %w", err)
	}
	if _, dup := b.zones[z.Origin]; dup {
		return fmt.Errorf("duplicate zone %s", z.Origin)
	}
	zone := z
	b.zones[z.Origin] = &zone

	soaData, err := rrdata.Encode(domain.RRTypeSOA, z.SOA.String())
	if err != nil {
		return fmt.Errorf("encoding SOA for %s: %w", z.Origin, err)
	}
	soa, err := domain.NewResourceRecord(z.Origin, domain.RRTypeSOA, domain.RRClassIN, z.SOA.Minimum, soaData, z.SOA.String())
	if err != nil {
		return fmt.Errorf("building SOA record for %s: %w", z.Origin, err)
	}
	b.addOwned(z.Origin, soa)
	return nil
}

// AddRecord stores a record under the named zone, applying the SOA
// minimum TTL floor. The record's owner must be inside the zone.
func (b *Builder) AddRecord(origin string, rr domain.ResourceRecord) error {
	origin = utils.CanonicalDNSName(origin)
	zone, ok := b.zones[origin]
	if !ok {
		return fmt.Errorf("unknown zone %s", origin)
	}
	if err := rr.Validate(); err != nil {
		return fmt.Errorf("invalid record in zone %s: %w", origin, err)
	}
	owner := strings.TrimPrefix(rr.Name, "*.")
	if !zone.Contains(owner) {
		return fmt.Errorf("record %s is outside zone %s", rr.Name, origin)
	}
	b.addOwned(zone.Origin, rr.WithTTLFloor(zone.SOA.Minimum))
	return nil
}

// addOwned indexes the record and registers its owner name plus every
// empty non-terminal between the owner and the zone origin.
func (b *Builder) addOwned(origin string, rr domain.ResourceRecord) {
	b.records[rr.CacheKey()] = append(b.records[rr.CacheKey()], rr)
	for name := rr.Name; len(name) >= len(origin) && name != ""; name = parentName(name) {
		b.owners[name] = struct{}{}
		if name == origin {
			break
		}
	}
}

// Build freezes the accumulated data into a Snapshot.
func (b *Builder) Build(generation uint64) (*Snapshot, error) {
	if len(b.zones) == 0 {
		return nil, fmt.Errorf("no zones loaded")
	}
	zones := make([]*domain.Zone, 0, len(b.zones))
	for _, z := range b.zones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool {
		li := strings.Count(zones[i].Origin, ".")
		lj := strings.Count(zones[j].Origin, ".")
		if li != lj {
			return li > lj
		}
		return zones[i].Origin < zones[j].Origin
	})

	filter := bloom.NewWithEstimates(uint(len(b.owners))+1, bloomFalsePositiveRate)
	for name := range b.owners {
		filter.AddString(name)
	}

	return &Snapshot{
		generation: generation,
		zones:      zones,
		records:    b.records,
		owners:     b.owners,
		prefilter:  filter,
	}, nil
}

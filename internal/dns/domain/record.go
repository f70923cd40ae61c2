package domain

import (
	"fmt"

	"github.com/caprine/goatd/internal/dns/common/utils"
)

// ResourceRecord represents a single DNS resource record ready to serve.
// Data holds the wire-encoded RDATA; Text keeps the presentation form the
// record was loaded from, which is handy for logging and CNAME target
// extraction without re-decoding.
type ResourceRecord struct {
	Name  string
	Type  RRType
	Class RRClass
	ttl   uint32
	Data  []byte // wire-encoded RDATA
	Text  string // human-readable representation of the RDATA
}

// NewResourceRecord constructs a ResourceRecord and validates its fields.
// The ttl passed here is the TTL that will be transmitted; callers that
// materialize records from a zone are responsible for applying the SOA
// minimum floor first.
func NewResourceRecord(name string, rrtype RRType, class RRClass, ttl uint32, data []byte, text string) (ResourceRecord, error) {
	rr := ResourceRecord{
		Name:  utils.CanonicalDNSName(name),
		Type:  rrtype,
		Class: class,
		ttl:   ttl,
		Data:  data,
		Text:  text,
	}
	if err := rr.Validate(); err != nil {
		return ResourceRecord{}, err
	}
	return rr, nil
}

// Validate checks whether the ResourceRecord fields are valid.
func (rr ResourceRecord) Validate() error {
	if rr.Name == "" {
		return fmt.Errorf("record name must not be empty")
	}
	if err := utils.ValidateDNSName(rr.Name); err != nil {
		return fmt.Errorf("invalid record name: %w", err)
	}
	if !rr.Type.IsValid() {
		return fmt.Errorf("invalid RRType: %d", rr.Type)
	}
	if !rr.Class.IsValid() {
		return fmt.Errorf("invalid RRClass: %d", rr.Class)
	}
	if rr.Text == "" && len(rr.Data) == 0 {
		return fmt.Errorf("either Text or Data must be set")
	}
	return nil
}

// TTL returns the TTL value for wire encoding.
func (rr ResourceRecord) TTL() uint32 {
	return rr.ttl
}

// WithName returns a copy of the record owned by a different name. Used
// when a wildcard record is synthesized for the query name.
func (rr ResourceRecord) WithName(name string) ResourceRecord {
	rr.Name = utils.CanonicalDNSName(name)
	return rr
}

// WithTTLFloor returns a copy of the record whose TTL is at least min.
// Zone data stored with a TTL below the zone's SOA minimum is served with
// the minimum instead.
func (rr ResourceRecord) WithTTLFloor(min uint32) ResourceRecord {
	if rr.ttl < min {
		rr.ttl = min
	}
	return rr
}

// CacheKey returns a cache key string derived from the record's name, type, and class.
func (rr ResourceRecord) CacheKey() string {
	return GenerateCacheKey(rr.Name, rr.Type, rr.Class)
}

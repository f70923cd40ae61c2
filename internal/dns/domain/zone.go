package domain

import (
	"fmt"

	"github.com/caprine/goatd/internal/dns/common/utils"
)

// ApexMarker is the reserved owner name meaning "equal to the zone origin".
// It is resolved to the literal origin when a zone is loaded, never later.
const ApexMarker = "@"

// SOA holds the start-of-authority fields for a zone. Minimum doubles as
// the floor TTL for every record served from the zone (RFC 1035 §3.3.13).
type SOA struct {
	MName   string `json:"mname"`
	RName   string `json:"rname"`
	Serial  uint32 `json:"serial"`
	Refresh uint32 `json:"refresh"`
	Retry   uint32 `json:"retry"`
	Expire  uint32 `json:"expire"`
	Minimum uint32 `json:"minimum"`
}

// String renders the SOA in the presentation form the rrdata codecs expect.
func (s SOA) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d",
		s.MName, s.RName, s.Serial, s.Refresh, s.Retry, s.Expire, s.Minimum)
}

// Zone is one authoritative zone: an origin name and its SOA. Records are
// not held here; they live in the store keyed back to the zone by ID, so a
// Zone value stays cheap to copy into lookup results.
type Zone struct {
	ID     uint64 `json:"id"`
	Origin string `json:"origin"`
	SOA    SOA    `json:"soa"`
}

// Validate checks the zone fields.
func (z Zone) Validate() error {
	if err := utils.ValidateDNSName(z.Origin); err != nil {
		return fmt.Errorf("invalid zone origin: %w", err)
	}
	if err := utils.ValidateDNSName(z.SOA.MName); err != nil {
		return fmt.Errorf("invalid SOA mname: %w", err)
	}
	if err := utils.ValidateDNSName(z.SOA.RName); err != nil {
		return fmt.Errorf("invalid SOA rname: %w", err)
	}
	return nil
}

// Contains reports whether name is at or below the zone origin.
func (z Zone) Contains(name string) bool {
	return utils.InBailiwick(utils.CanonicalDNSName(name), utils.CanonicalDNSName(z.Origin))
}

// ExpandName resolves the apex marker and relative names against the zone
// origin, returning a canonical FQDN.
func (z Zone) ExpandName(name string) string {
	if name == ApexMarker || name == "" {
		return utils.CanonicalDNSName(z.Origin)
	}
	name = utils.CanonicalDNSName(name)
	if utils.InBailiwick(name, utils.CanonicalDNSName(z.Origin)) {
		return name
	}
	return name + "." + utils.CanonicalDNSName(z.Origin)
}

// FileZoneRecord is the persisted shape of one record. TTL zero means
// "inherit the zone SOA minimum". RData is the presentation form; it is
// wire-encoded when a snapshot is built.
type FileZoneRecord struct {
	ID     uint64 `json:"id"`
	ZoneID uint64 `json:"zone_id"`
	Name   string `json:"name"`
	TTL    uint32 `json:"ttl,omitempty"`
	Class  string `json:"class,omitempty"`
	Type   string `json:"type"`
	RData  string `json:"rdata"`
}

// Validate checks the record fields that can be checked without a zone.
func (r FileZoneRecord) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("record name must not be empty")
	}
	if RRTypeFromString(r.Type) == 0 {
		return fmt.Errorf("unsupported record type %q", r.Type)
	}
	if r.RData == "" {
		return fmt.Errorf("record rdata must not be empty")
	}
	return nil
}

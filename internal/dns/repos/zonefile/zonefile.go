// Package zonefile loads zone documents from YAML, JSON, and TOML files
// and converts them into zones and records ready for persistence or
// snapshot building.
//
// A document carries the zone origin, its SOA, and a records map keyed by
// owner name. "@" (or an empty name) means the zone apex, relative names
// are expanded against the origin, and a per-name "ttl" key overrides the
// TTL for that name's records:
//
//	origin: example.goat
//	soa:
//	  mname: ns1.example.goat
//	  rname: hostmaster.example.goat
//	  serial: 2024010101
//	  refresh: 3600
//	  retry: 900
//	  expire: 604800
//	  minimum: 300
//	records:
//	  "@":
//	    A: 192.0.2.1
//	  www:
//	    ttl: 60
//	    A: [192.0.2.2, 192.0.2.3]
package zonefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/caprine/goatd/internal/dns/domain"
)

// Document is one parsed zone file.
type Document struct {
	Zone    domain.Zone
	Records []domain.FileZoneRecord
}

// LoadDirectory walks dir and parses every supported zone file, ordered
// by path. Files with unsupported extensions are skipped; any parse
// failure aborts the whole load.
func LoadDirectory(dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if parserFor(path) == nil {
			return nil
		}
		doc, err := LoadFile(path)
		if err != nil {
			return fmt.Errorf("zone file %s: %w", path, err)
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// LoadFile parses a single zone file.
func LoadFile(path string) (Document, error) {
	parser := parserFor(path)
	if parser == nil {
		return Document{}, fmt.Errorf("unsupported zone file extension %q", filepath.Ext(path))
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return Document{}, fmt.Errorf("parse failed: %w", err)
	}

	zone, err := parseZone(k)
	if err != nil {
		return Document{}, err
	}

	records, err := parseRecords(k, zone)
	if err != nil {
		return Document{}, err
	}
	return Document{Zone: zone, Records: records}, nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return json.Parser()
	case ".toml":
		return toml.Parser()
	default:
		return nil
	}
}

func parseZone(k *koanf.Koanf) (domain.Zone, error) {
	origin := k.String("origin")
	if origin == "" {
		return domain.Zone{}, fmt.Errorf("missing 'origin'")
	}
	if !k.Exists("soa") {
		return domain.Zone{}, fmt.Errorf("missing 'soa'")
	}
	zone := domain.Zone{
		Origin: origin,
		SOA: domain.SOA{
			MName:   k.String("soa.mname"),
			RName:   k.String("soa.rname"),
			Serial:  uint32(k.Int64("soa.serial")),
			Refresh: uint32(k.Int64("soa.refresh")),
			Retry:   uint32(k.Int64("soa.retry")),
			Expire:  uint32(k.Int64("soa.expire")),
			Minimum: uint32(k.Int64("soa.minimum")),
		},
	}
	zone.Origin = zone.ExpandName(domain.ApexMarker)
	zone.SOA.MName = zone.ExpandName(zone.SOA.MName)
	zone.SOA.RName = zone.ExpandName(zone.SOA.RName)
	if err := zone.Validate(); err != nil {
		return domain.Zone{}, err
	}
	return zone, nil
}

func parseRecords(k *koanf.Koanf, zone domain.Zone) ([]domain.FileZoneRecord, error) {
	raw, ok := k.Raw()["records"].(map[string]any)
	if !ok {
		return nil, nil
	}
	var records []domain.FileZoneRecord
	for name, entry := range raw {
		entryMap, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("records entry %q is not a map", name)
		}
		fqdn := zone.ExpandName(name)
		ttl := entryTTL(entryMap)
		for rrType, val := range entryMap {
			if strings.EqualFold(rrType, "ttl") {
				continue
			}
			if domain.RRTypeFromString(rrType) == 0 {
				return nil, fmt.Errorf("record %q: unsupported type %q", name, rrType)
			}
			for _, s := range toStringValues(val) {
				rec := domain.FileZoneRecord{
					Name:  fqdn,
					TTL:   ttl,
					Type:  strings.ToUpper(rrType),
					RData: s,
				}
				if err := rec.Validate(); err != nil {
					return nil, fmt.Errorf("record %q: %w", name, err)
				}
				records = append(records, rec)
			}
		}
	}
	return records, nil
}

// entryTTL pulls the optional per-name "ttl" key. Zero means inherit.
func entryTTL(entry map[string]any) uint32 {
	for key, val := range entry {
		if !strings.EqualFold(key, "ttl") {
			continue
		}
		switch v := val.(type) {
		case int:
			return uint32(v)
		case int64:
			return uint32(v)
		case float64:
			return uint32(v)
		}
	}
	return 0
}

// toStringValues converts a raw parsed value (string or list of strings)
// into a slice of non-empty strings, skipping empty or non-string
// elements so one bad element does not sink the loader.
func toStringValues(val any) []string {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}

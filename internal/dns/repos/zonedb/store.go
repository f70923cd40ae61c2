// Package zonedb persists zones and their records in a bbolt database.
// It is the durable side of the zone data: zone files import into it, the
// snapshot builder reads from it, and mutations from the management layer
// are applied to it transactionally.
package zonedb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/caprine/goatd/internal/dns/common/clock"
	"github.com/caprine/goatd/internal/dns/common/utils"
	"github.com/caprine/goatd/internal/dns/domain"
)

var (
	bucketZones   = []byte("zones")
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")
)

// Store wraps a bbolt database holding zone data.
type Store struct {
	db    *bbolt.DB
	clock clock.Clock
}

// Open opens (or creates) a Bolt database at path and ensures buckets exist.
func Open(path string) (*Store, error) {
	return OpenWithClock(path, clock.RealClock{})
}

// OpenWithClock is Open with an injected clock, for deterministic
// update timestamps in tests.
func OpenWithClock(path string, clk clock.Clock) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketZones, bucketRecords, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, clock: clk}, nil
}

// Close releases the database file.
func (s *Store) Close() error { return s.db.Close() }

// SaveZone replaces a zone and all of its records in one transaction.
func (s *Store) SaveZone(zone domain.Zone, records []domain.FileZoneRecord) error {
	if err := zone.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid zone: %w", err)
	}
	origin := utils.CanonicalDNSName(zone.Origin)
	return s.db.Update(func(tx *bbolt.Tx) error {
		if zone.ID == 0 {
			// Re-imports keep the identity of the stored zone.
			if stored := tx.Bucket(bucketZones).Get([]byte(origin)); stored != nil {
				var prev domain.Zone
				if err := json.Unmarshal(stored, &prev); err == nil {
					zone.ID = prev.ID
				}
			}
		}
		if zone.ID == 0 {
			id, err := tx.Bucket(bucketZones).NextSequence()
			if err != nil {
				return err
			}
			zone.ID = id
		}
		payload, err := json.Marshal(zone)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketZones).Put([]byte(origin), payload); err != nil {
			return err
		}
		rb, err := recreateZoneRecords(tx, origin)
		if err != nil {
			return err
		}
		for i, rec := range records {
			rec.ZoneID = zone.ID
			if rec.ID == 0 {
				id, err := rb.NextSequence()
				if err != nil {
					return err
				}
				rec.ID = id
			}
			if err := rec.Validate(); err != nil {
				return fmt.Errorf("record %d in zone %s: %w", i, origin, err)
			}
			if err := putRecord(rb, rec); err != nil {
				return err
			}
		}
		return s.touchMeta(tx)
	})
}

// DeleteZone removes a zone and its records.
func (s *Store) DeleteZone(origin string) error {
	origin = utils.CanonicalDNSName(origin)
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketZones).Delete([]byte(origin)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketRecords).DeleteBucket([]byte(origin)); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		return s.touchMeta(tx)
	})
}

// LoadZones reads every persisted zone and its records.
func (s *Store) LoadZones() ([]domain.Zone, map[string][]domain.FileZoneRecord, error) {
	var zones []domain.Zone
	records := make(map[string][]domain.FileZoneRecord)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketZones).ForEach(func(k, v []byte) error {
			var zone domain.Zone
			if err := json.Unmarshal(v, &zone); err != nil {
				return fmt.Errorf("corrupt zone %s: %w", k, err)
			}
			if err := zone.Validate(); err != nil {
				return fmt.Errorf("invalid persisted zone %s: %w", k, err)
			}
			zones = append(zones, zone)

			rb := tx.Bucket(bucketRecords).Bucket(k)
			if rb == nil {
				return nil
			}
			origin := string(k)
			return rb.ForEach(func(rk, rv []byte) error {
				var rec domain.FileZoneRecord
				if err := json.Unmarshal(rv, &rec); err != nil {
					return fmt.Errorf("corrupt record %s/%s: %w", k, rk, err)
				}
				records[origin] = append(records[origin], rec)
				return nil
			})
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return zones, records, nil
}

// ZoneMutation is one transactional change to a zone: record upserts and
// deletions, optionally a new SOA (bump the serial there), or dropping the
// whole zone.
type ZoneMutation struct {
	Origin   string
	Zone     *domain.Zone // nil keeps the stored zone untouched
	Upserts  []domain.FileZoneRecord
	Deletes  []uint64 // record IDs
	DropZone bool
}

// ApplyUpdate applies one mutation atomically. The caller rebuilds and
// swaps a snapshot afterwards; a failed update changes nothing.
func (s *Store) ApplyUpdate(m ZoneMutation) error {
	origin := utils.CanonicalDNSName(m.Origin)
	if m.DropZone {
		return s.DeleteZone(origin)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		stored := tx.Bucket(bucketZones).Get([]byte(origin))
		if stored == nil && m.Zone == nil {
			return fmt.Errorf("zone %s does not exist", origin)
		}
		var zone domain.Zone
		if m.Zone != nil {
			zone = *m.Zone
		} else if err := json.Unmarshal(stored, &zone); err != nil {
			return fmt.Errorf("corrupt zone %s: %w", origin, err)
		}
		if err := zone.Validate(); err != nil {
			return err
		}
		if m.Zone != nil {
			if zone.ID == 0 {
				id, err := tx.Bucket(bucketZones).NextSequence()
				if err != nil {
					return err
				}
				zone.ID = id
			}
			payload, err := json.Marshal(zone)
			if err != nil {
				return err
			}
			if err := tx.Bucket(bucketZones).Put([]byte(origin), payload); err != nil {
				return err
			}
		}

		rb, err := tx.Bucket(bucketRecords).CreateBucketIfNotExists([]byte(origin))
		if err != nil {
			return err
		}
		for _, id := range m.Deletes {
			if err := rb.Delete(recordKey(id)); err != nil {
				return err
			}
		}
		for i, rec := range m.Upserts {
			rec.ZoneID = zone.ID
			if rec.ID == 0 {
				id, err := rb.NextSequence()
				if err != nil {
					return err
				}
				rec.ID = id
			}
			if err := rec.Validate(); err != nil {
				return fmt.Errorf("upsert %d in zone %s: %w", i, origin, err)
			}
			if err := putRecord(rb, rec); err != nil {
				return err
			}
		}
		return s.touchMeta(tx)
	})
}

// UpdatedAt returns when the database last changed, zero before any write.
func (s *Store) UpdatedAt() time.Time {
	var t time.Time
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get([]byte("updated")); len(v) == 8 {
			t = time.Unix(int64(binary.BigEndian.Uint64(v)), 0)
		}
		return nil
	})
	return t
}

func recreateZoneRecords(tx *bbolt.Tx, origin string) (*bbolt.Bucket, error) {
	parent := tx.Bucket(bucketRecords)
	if err := parent.DeleteBucket([]byte(origin)); err != nil && err != bbolt.ErrBucketNotFound {
		return nil, err
	}
	return parent.CreateBucket([]byte(origin))
}

func putRecord(rb *bbolt.Bucket, rec domain.FileZoneRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return rb.Put(recordKey(rec.ID), payload)
}

func recordKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

func (s *Store) touchMeta(tx *bbolt.Tx) error {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, uint64(s.clock.Now().Unix()))
	return tx.Bucket(bucketMeta).Put([]byte("updated"), v)
}

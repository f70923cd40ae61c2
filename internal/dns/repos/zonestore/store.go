package zonestore

import (
	"sync/atomic"

	"github.com/caprine/goatd/internal/dns/domain"
)

// Store publishes the current Snapshot to any number of readers. Readers
// grab the pointer once and use that snapshot for the whole query; Replace
// swaps atomically so in-flight queries keep answering from the data they
// started with.
type Store struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

// New returns a Store with no snapshot loaded.
func New() *Store {
	return &Store{}
}

// NextGeneration reserves the generation number for the snapshot being
// built.
func (s *Store) NextGeneration() uint64 {
	return s.generation.Add(1)
}

// Replace publishes snap as the current snapshot.
func (s *Store) Replace(snap *Snapshot) {
	s.current.Store(snap)
}

// Current returns the live snapshot, or nil before the first Replace.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Lookup answers from the live snapshot. With no snapshot loaded every
// name is outside our authority.
func (s *Store) Lookup(q domain.Question) domain.LookupResult {
	snap := s.Current()
	if snap == nil {
		return domain.LookupResult{Outcome: domain.LookupNotAuthoritative}
	}
	return snap.Lookup(q)
}

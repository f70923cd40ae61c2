package domain

import (
	"fmt"

	"github.com/caprine/goatd/internal/dns/common/utils"
)

// Question represents a DNS query section containing a question for resolution.
type Question struct {
	ID    uint16
	Name  string
	Type  RRType
	Class RRClass

	// RecursionDesired carries the RD flag from the query header so the
	// response can echo it. An authoritative server never acts on it.
	RecursionDesired bool
}

// NewQuestion constructs a Question with a canonicalized name and validates
// its fields. Lookup is case-insensitive, so the name is lowercased here,
// at the edge, once.
func NewQuestion(id uint16, name string, rrtype RRType, class RRClass) (Question, error) {
	q := Question{
		ID:    id,
		Name:  utils.CanonicalDNSName(name),
		Type:  rrtype,
		Class: class,
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Validate checks whether the Question fields are structurally and semantically valid.
func (q Question) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("query name must not be empty")
	}
	if err := utils.ValidateDNSName(q.Name); err != nil {
		return fmt.Errorf("invalid query name: %w", err)
	}
	if !q.Class.IsValid() {
		return fmt.Errorf("unsupported RRClass: %d", q.Class)
	}
	return nil
}

// CacheKey returns a cache key string derived from the query's name, type, and class.
func (q Question) CacheKey() string {
	return GenerateCacheKey(q.Name, q.Type, q.Class)
}

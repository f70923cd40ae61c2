package domain

import (
	"github.com/caprine/goatd/internal/dns/common/utils"
)

// GenerateCacheKey returns a consistent lookup key derived from a DNS name,
// type, and class. Format: "name|type|class" (e.g. "www.example.goat|A|IN").
// Uses pipe (|) separator to avoid conflicts with colons in IPv6 addresses
// and URIs.
func GenerateCacheKey(name string, t RRType, c RRClass) string {
	name = utils.CanonicalDNSName(name)
	return name + "|" + t.String() + "|" + c.String()
}

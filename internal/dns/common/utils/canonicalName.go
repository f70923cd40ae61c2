package utils

import (
	"fmt"
	"strings"
)

// CanonicalDNSName returns a DNS name in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dot because it doesn't add any runtime benefit, only legacy baggage.
func CanonicalDNSName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	// remove all trailing dots
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// PresentationDNSName strips any trailing dot so a name can be split into
// labels without producing an empty final label.
func PresentationDNSName(name string) string {
	return strings.TrimSuffix(name, ".")
}

// ValidateDNSName checks RFC 1035 length limits: each label at most 63
// octets, the whole name at most 255 octets in wire form.
func ValidateDNSName(name string) error {
	name = PresentationDNSName(name)
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	// wire length = sum(1 + len(label)) + 1 root octet
	wireLen := 1
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return fmt.Errorf("empty label in name %q", name)
		}
		if len(label) > 63 {
			return fmt.Errorf("label %q exceeds 63 octets", label)
		}
		wireLen += 1 + len(label)
	}
	if wireLen > 255 {
		return fmt.Errorf("name %q exceeds 255 octets in wire form", name)
	}
	return nil
}

// InBailiwick reports whether name sits at or below origin. Both arguments
// are expected in canonical form. The comparison is on label boundaries, so
// "notexample.goat" is not inside "example.goat".
func InBailiwick(name, origin string) bool {
	if origin == "" {
		return false
	}
	if name == origin {
		return true
	}
	return strings.HasSuffix(name, "."+origin)
}

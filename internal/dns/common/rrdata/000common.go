package rrdata

import (
	"fmt"
	"net"
	"strings"

	"github.com/caprine/goatd/internal/dns/common/utils"
)

// encodeDomainName encodes a domain name into wire format (length-prefixed labels ending in 0).
// used in multiple record types
func encodeDomainName(name string) ([]byte, error) {
	name = utils.PresentationDNSName(name)
	labels := strings.Split(name, ".")
	var encoded []byte
	for _, label := range labels {
		if len(label) == 0 {
			continue
		}
		if len(label) > 63 {
			return nil, fmt.Errorf("label too long: %s", label)
		}
		encoded = append(encoded, byte(len(label)))
		encoded = append(encoded, label...)
	}
	encoded = append(encoded, 0) // null terminator
	if len(encoded) > 255 {
		return nil, fmt.Errorf("name too long: %s", name)
	}
	return encoded, nil
}

// decodeDomainName decodes an uncompressed wire-format name, returning the
// presentation form and the number of bytes consumed.
func decodeDomainName(b []byte) (string, int, error) {
	var labels []string
	i := 0
	for i < len(b) {
		labelLen := int(b[i])
		if labelLen == 0 {
			i++
			return strings.Join(labels, "."), i, nil
		}
		if labelLen > 63 {
			return "", 0, fmt.Errorf("label length %d exceeds 63", labelLen)
		}
		i++
		if i+labelLen > len(b) {
			return "", 0, fmt.Errorf("invalid domain name encoding")
		}
		labels = append(labels, string(b[i:i+labelLen]))
		i += labelLen
	}
	return "", 0, fmt.Errorf("domain name missing terminator")
}

// encodeCharString emits one DNS <character-string>: a length octet
// followed by up to 255 octets of data.
func encodeCharString(s string) ([]byte, error) {
	if len(s) > 255 {
		return nil, fmt.Errorf("character-string too long: %d bytes", len(s))
	}
	out := make([]byte, 0, len(s)+1)
	out = append(out, byte(len(s)))
	out = append(out, s...)
	return out, nil
}

// decodeCharString reads one <character-string>, returning its contents and
// the number of bytes consumed.
func decodeCharString(b []byte) (string, int, error) {
	if len(b) == 0 {
		return "", 0, fmt.Errorf("missing character-string length octet")
	}
	n := int(b[0])
	if 1+n > len(b) {
		return "", 0, fmt.Errorf("character-string length %d exceeds data", n)
	}
	return string(b[1 : 1+n]), 1 + n, nil
}

// splitQuoted splits a presentation string into fields, treating
// double-quoted runs as single fields. `0 issue "letsencrypt.org"` yields
// three fields with the quotes stripped.
func splitQuoted(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		fields = append(fields, cur.String())
		cur.Reset()
	}
	started := false
	for _, r := range s {
		switch {
		case r == '"':
			if inQuote {
				inQuote = false
				flush()
				started = false
			} else {
				inQuote = true
				started = true
			}
		case r == ' ' && !inQuote:
			if started {
				flush()
				started = false
			}
		default:
			started = true
			cur.WriteRune(r)
		}
	}
	if started || inQuote {
		flush()
	}
	return fields
}

// isIPv4 checks whether the provided net.IP address is an IPv4 address.
func isIPv4(ip net.IP) bool {
	return ip != nil && ip.To4() != nil
}

// isIPv6 checks whether the provided net.IP is a valid IPv6 address.
// It returns true if the IP is not nil, has a valid 16-byte representation,
// and does not have a valid 4-byte IPv4 representation.
func isIPv6(ip net.IP) bool {
	return ip != nil && ip.To16() != nil && ip.To4() == nil
}

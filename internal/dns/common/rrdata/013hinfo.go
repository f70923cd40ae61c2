package rrdata

import (
	"fmt"
)

// encodeHINFOData encodes an HINFO record string into its binary
// representation: two <character-string>s, CPU then OS (RFC 1035 §3.3.2).
func encodeHINFOData(data string) ([]byte, error) {
	// data = `"RFC8482" ""` or `amd64 linux`
	parts := splitQuoted(data)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid HINFO record format (expected: cpu os): %s", data)
	}
	cpu, err := encodeCharString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid HINFO cpu: %v", err)
	}
	os, err := encodeCharString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid HINFO os: %v", err)
	}
	return append(cpu, os...), nil
}

// decodeHINFOData decodes the binary representation of an HINFO record.
func decodeHINFOData(b []byte) (string, error) {
	cpu, n, err := decodeCharString(b)
	if err != nil {
		return "", fmt.Errorf("invalid HINFO cpu: %v", err)
	}
	os, _, err := decodeCharString(b[n:])
	if err != nil {
		return "", fmt.Errorf("invalid HINFO os: %v", err)
	}
	return fmt.Sprintf("%q %q", cpu, os), nil
}

package rrdata

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// encodeURIData encodes a URI record string into its binary representation
// per RFC 7553: 16-bit priority, 16-bit weight, then the target octets.
// The target is raw data to the end of the RDATA, with no length prefix and
// no terminating zero.
func encodeURIData(data string) ([]byte, error) {
	// data = `10 1 "https://www.example.goat/"`
	parts := splitQuoted(data)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid URI record format (expected: priority weight \"target\"): %s", data)
	}
	priority, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid URI priority: %v", err)
	}
	weight, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid URI weight: %v", err)
	}
	if parts[2] == "" {
		return nil, fmt.Errorf("URI target must not be empty")
	}
	encoded := make([]byte, 4, 4+len(parts[2]))
	binary.BigEndian.PutUint16(encoded[0:2], uint16(priority))
	binary.BigEndian.PutUint16(encoded[2:4], uint16(weight))
	encoded = append(encoded, parts[2]...)
	return encoded, nil
}

// decodeURIData decodes the binary representation of a URI record.
func decodeURIData(b []byte) (string, error) {
	if len(b) < 5 {
		return "", fmt.Errorf("invalid URI data length: %d", len(b))
	}
	priority := binary.BigEndian.Uint16(b[0:2])
	weight := binary.BigEndian.Uint16(b[2:4])
	return fmt.Sprintf("%d %d %q", priority, weight, string(b[4:])), nil
}

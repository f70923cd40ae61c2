package rrdata

import (
	"fmt"
	"strings"
)

// encodeTXTData encodes a TXT record string into its binary representation.
// A TXT record holds one or more <character-string>s; values longer than
// 255 octets are split at the 255 boundary per RFC 1035 §3.3.14.
func encodeTXTData(data string) ([]byte, error) {
	var encoded []byte
	for len(data) > 0 {
		segment := data
		if len(segment) > 255 {
			segment = segment[:255]
		}
		data = data[len(segment):]
		cs, err := encodeCharString(segment)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, cs...)
	}
	if len(encoded) == 0 {
		// a zero-length TXT is legal: one empty character-string
		encoded = []byte{0}
	}
	return encoded, nil
}

// decodeTXTData decodes the binary representation of a TXT record,
// concatenating its character-strings.
func decodeTXTData(b []byte) (string, error) {
	var segments []string
	for i := 0; i < len(b); {
		s, n, err := decodeCharString(b[i:])
		if err != nil {
			return "", fmt.Errorf("invalid TXT segment: %v", err)
		}
		segments = append(segments, s)
		i += n
	}
	return strings.Join(segments, ""), nil
}

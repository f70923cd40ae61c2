package rrdata

// encodePTRData encodes a PTR record string into its binary representation.
func encodePTRData(data string) ([]byte, error) {
	// data = "host.example.goat"
	return encodeDomainName(data)
}

// decodePTRData decodes a byte slice representing a PTR record's RDATA
func decodePTRData(b []byte) (string, error) {
	name, _, err := decodeDomainName(b)
	return name, err
}

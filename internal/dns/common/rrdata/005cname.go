package rrdata

// encodeCNAMEData encodes a CNAME record string into its binary representation.
func encodeCNAMEData(data string) ([]byte, error) {
	// data = "alias-target.example.goat"
	return encodeDomainName(data)
}

// decodeCNAMEData decodes a byte slice representing a CNAME record's RDATA
func decodeCNAMEData(b []byte) (string, error) {
	name, _, err := decodeDomainName(b)
	return name, err
}

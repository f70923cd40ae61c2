package rrdata

import (
	"fmt"

	"github.com/caprine/goatd/internal/dns/domain"
)

// Encode encodes a record value based on its type, to its binary representation.
func Encode(rrType domain.RRType, data string) ([]byte, error) {
	switch rrType {
	case domain.RRTypeA: // 1
		return encodeAData(data)
	case domain.RRTypeNS: // 2
		return encodeNSData(data)
	case domain.RRTypeCNAME: // 5
		return encodeCNAMEData(data)
	case domain.RRTypeSOA: // 6
		return encodeSOAData(data)
	case domain.RRTypePTR: // 12
		return encodePTRData(data)
	case domain.RRTypeHINFO: // 13
		return encodeHINFOData(data)
	case domain.RRTypeMX: // 15
		return encodeMXData(data)
	case domain.RRTypeTXT: // 16
		return encodeTXTData(data)
	case domain.RRTypeAAAA: // 28
		return encodeAAAAData(data)
	case domain.RRTypeLOC: // 29
		return encodeLOCData(data)
	case domain.RRTypeURI: // 256
		return encodeURIData(data)
	case domain.RRTypeCAA: // 257
		return encodeCAAData(data)
	default:
		return nil, fmt.Errorf("%s record encoding not supported", rrType)
	}
}

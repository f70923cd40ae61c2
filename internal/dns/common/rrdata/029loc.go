package rrdata

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LOC record wire format per RFC 1876: a fixed 16-octet layout of
// version, size, horizontal precision, vertical precision, then latitude,
// longitude and altitude as 32-bit fixed-point values.
const locWireLength = 16

// Defaults from RFC 1876 §3: size 1m, horizontal precision 10000m,
// vertical precision 10m.
const (
	defaultLOCSize     float64 = 1
	defaultLOCHorizPre float64 = 10000
	defaultLOCVertPre  float64 = 10
)

// equatorOffset is the zero point of the latitude/longitude encoding:
// 2^31 thousandths of an arcsecond. North and East are above it.
const equatorOffset uint32 = 1 << 31

// altitudeBase is the wire altitude of the -100000m reference spheroid, in
// centimeters.
const altitudeBase uint32 = 10000000

// dmsToAngle converts degrees/minutes/seconds to the RFC 1876 fixed-point
// angle: thousandths of an arcsecond offset from 2^31, positive for
// north/east.
func dmsToAngle(deg, min uint32, sec float64, positive bool) uint32 {
	milliarcsec := uint32(float64(deg)*3600000 + float64(min)*60000 + math.Round(sec*1000))
	if positive {
		return equatorOffset + milliarcsec
	}
	return equatorOffset - milliarcsec
}

// angleToDMS is the inverse of dmsToAngle.
func angleToDMS(v uint32) (deg, min uint32, sec float64, positive bool) {
	var t uint32
	if v >= equatorOffset {
		positive = true
		t = v - equatorOffset
	} else {
		t = equatorOffset - v
	}
	deg = t / 3600000
	t %= 3600000
	min = t / 60000
	t %= 60000
	sec = float64(t) / 1000
	return deg, min, sec, positive
}

// locSizeToByte converts a size or precision in meters to the RFC 1876
// nibble-pair exponential form: high nibble is a base digit 0-9, low nibble
// a power of ten, the value being base*10^exp centimeters. Values that are
// not a single significant digit are truncated to one, matching common
// implementations.
func locSizeToByte(meters float64) (byte, error) {
	if meters < 0 || meters > 90000000 {
		return 0, fmt.Errorf("LOC size %vm out of range", meters)
	}
	cm := uint64(math.Round(meters * 100))
	if cm == 0 {
		return 0, nil
	}
	exp := 0
	for cm >= 10 {
		cm /= 10
		exp++
	}
	if exp > 9 {
		return 0, fmt.Errorf("LOC size %vm out of range", meters)
	}
	return byte(cm)<<4 | byte(exp), nil
}

// locByteToSize is the inverse of locSizeToByte, returning meters.
func locByteToSize(b byte) float64 {
	base := float64(b >> 4)
	exp := int(b & 0x0f)
	return base * math.Pow10(exp) / 100
}

// encodeLOCData encodes a LOC record presentation string into its binary
// representation. The master-file form is:
//
//	d1 [m1 [s1]] {N|S} d2 [m2 [s2]] {E|W} alt[m] [size[m] [hp[m] [vp[m]]]]
func encodeLOCData(data string) ([]byte, error) {
	lat, lon, alt, size, hp, vp, err := parseLOCPresentation(data)
	if err != nil {
		return nil, err
	}

	sizeB, err := locSizeToByte(size)
	if err != nil {
		return nil, err
	}
	hpB, err := locSizeToByte(hp)
	if err != nil {
		return nil, err
	}
	vpB, err := locSizeToByte(vp)
	if err != nil {
		return nil, err
	}

	out := make([]byte, locWireLength)
	out[0] = 0 // version, always zero
	out[1] = sizeB
	out[2] = hpB
	out[3] = vpB
	binary.BigEndian.PutUint32(out[4:8], lat)
	binary.BigEndian.PutUint32(out[8:12], lon)
	binary.BigEndian.PutUint32(out[12:16], uint32(int64(altitudeBase)+int64(math.Round(alt*100))))
	return out, nil
}

// decodeLOCData decodes the binary representation of a LOC record into its
// presentation string.
func decodeLOCData(b []byte) (string, error) {
	if len(b) != locWireLength {
		return "", fmt.Errorf("invalid LOC data length: %d", len(b))
	}
	if b[0] != 0 {
		return "", fmt.Errorf("unsupported LOC version: %d", b[0])
	}

	latD, latM, latS, north := angleToDMS(binary.BigEndian.Uint32(b[4:8]))
	lonD, lonM, lonS, east := angleToDMS(binary.BigEndian.Uint32(b[8:12]))
	alt := (int64(binary.BigEndian.Uint32(b[12:16])) - int64(altitudeBase))

	latDir, lonDir := "S", "W"
	if north {
		latDir = "N"
	}
	if east {
		lonDir = "E"
	}

	return fmt.Sprintf("%d %d %s %s %d %d %s %s %sm %sm %sm %sm",
		latD, latM, formatLOCFloat(latS), latDir,
		lonD, lonM, formatLOCFloat(lonS), lonDir,
		formatLOCFloat(float64(alt)/100),
		formatLOCFloat(locByteToSize(b[1])),
		formatLOCFloat(locByteToSize(b[2])),
		formatLOCFloat(locByteToSize(b[3])),
	), nil
}

// parseLOCPresentation walks the master-file fields, tolerating omitted
// minutes, seconds and trailing size/precision values.
func parseLOCPresentation(data string) (lat, lon uint32, alt, size, hp, vp float64, err error) {
	fields := strings.Fields(data)
	i := 0

	next := func() (string, bool) {
		if i >= len(fields) {
			return "", false
		}
		f := fields[i]
		i++
		return f, true
	}

	parseAngle := func(posDir, negDir string) (uint32, error) {
		var deg, min uint64
		var sec float64
		f, ok := next()
		if !ok {
			return 0, fmt.Errorf("LOC record missing degrees")
		}
		deg, perr := strconv.ParseUint(f, 10, 8)
		if perr != nil {
			return 0, fmt.Errorf("invalid LOC degrees %q", f)
		}
		f, ok = next()
		if !ok {
			return 0, fmt.Errorf("LOC record missing direction")
		}
		if f != posDir && f != negDir {
			// optional minutes
			min, perr = strconv.ParseUint(f, 10, 8)
			if perr != nil {
				return 0, fmt.Errorf("invalid LOC minutes %q", f)
			}
			f, ok = next()
			if !ok {
				return 0, fmt.Errorf("LOC record missing direction")
			}
			if f != posDir && f != negDir {
				// optional seconds
				sec, perr = strconv.ParseFloat(f, 64)
				if perr != nil {
					return 0, fmt.Errorf("invalid LOC seconds %q", f)
				}
				f, ok = next()
				if !ok {
					return 0, fmt.Errorf("LOC record missing direction")
				}
			}
		}
		if f != posDir && f != negDir {
			return 0, fmt.Errorf("invalid LOC direction %q", f)
		}
		return dmsToAngle(uint32(deg), uint32(min), sec, f == posDir), nil
	}

	lat, err = parseAngle("N", "S")
	if err != nil {
		return 0, 0, 0, 0, 0, 0, err
	}
	lon, err = parseAngle("E", "W")
	if err != nil {
		return 0, 0, 0, 0, 0, 0, err
	}

	parseMeters := func(def float64, required bool) (float64, error) {
		f, ok := next()
		if !ok {
			if required {
				return 0, fmt.Errorf("LOC record missing altitude")
			}
			return def, nil
		}
		v, perr := strconv.ParseFloat(strings.TrimSuffix(f, "m"), 64)
		if perr != nil {
			return 0, fmt.Errorf("invalid LOC length %q", f)
		}
		return v, nil
	}

	if alt, err = parseMeters(0, true); err != nil {
		return 0, 0, 0, 0, 0, 0, err
	}
	if size, err = parseMeters(defaultLOCSize, false); err != nil {
		return 0, 0, 0, 0, 0, 0, err
	}
	if hp, err = parseMeters(defaultLOCHorizPre, false); err != nil {
		return 0, 0, 0, 0, 0, 0, err
	}
	if vp, err = parseMeters(defaultLOCVertPre, false); err != nil {
		return 0, 0, 0, 0, 0, 0, err
	}
	return lat, lon, alt, size, hp, vp, nil
}

// formatLOCFloat trims trailing zeros so "54.000" prints as "54".
func formatLOCFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

package geo

import (
	"errors"
	"math"
	"strings"
)

// ErrMalformedPolyline is returned when an encoded polyline ends mid-value
var ErrMalformedPolyline = errors.New("malformed polyline")

const polylinePrecision = 1e5

// DecodePolyline decodes a Google encoded polyline into coordinates.
// Each value is a run of 5-bit chunks (char - 63), continued while 0x20 is set,
// zig-zag signed and delta-coded in 1e-5 degree units.
func DecodePolyline(encoded string) ([]LatLng, error) {
	points := make([]LatLng, 0, len(encoded)/4)

	index := 0
	lat, lng := 0, 0
	for index < len(encoded) {
		dLat, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		dLng, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += dLat
		lng += dLng
		points = append(points, LatLng{
			Latitude:  float64(lat) / polylinePrecision,
			Longitude: float64(lng) / polylinePrecision,
		})
	}

	return points, nil
}

func decodeValue(encoded string, index int) (int, int, error) {
	result, shift := 0, uint(0)
	for {
		if index >= len(encoded) {
			return 0, index, ErrMalformedPolyline
		}
		b := int(encoded[index]) - 63
		index++
		if b < 0 {
			return 0, index, ErrMalformedPolyline
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// EncodePolyline is the inverse of DecodePolyline
func EncodePolyline(points []LatLng) string {
	var sb strings.Builder
	prevLat, prevLng := 0, 0
	for _, p := range points {
		lat := int(math.Round(p.Latitude * polylinePrecision))
		lng := int(math.Round(p.Longitude * polylinePrecision))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

func encodeValue(sb *strings.Builder, v int) {
	v <<= 1
	if v < 0 {
		v = ^v
	}
	for v >= 0x20 {
		sb.WriteByte(byte((0x20 | (v & 0x1f)) + 63))
		v >>= 5
	}
	sb.WriteByte(byte(v + 63))
}

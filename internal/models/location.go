package models

// Position is a single GPS fix reported by the driver's device
type Position struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // GPS accuracy in meters
	Heading   *float64 `json:"heading,omitempty"`  // Direction of travel (0-360 degrees, clockwise from north)
	Timestamp int64    `json:"timestamp"`          // Device timestamp (epoch ms)
}

// OrientationSample is one magnetometer reading. Axes stay nil until the
// sensor has produced its first real sample.
type OrientationSample struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *float64 `json:"z,omitempty"`
}

// HasAxes reports whether the horizontal axes needed for a bearing are present
func (s OrientationSample) HasAxes() bool {
	return s.X != nil && s.Y != nil
}

// LocationRecord is the value stored at a trip's remote location path
type LocationRecord struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
	Heading   float64  `json:"heading"`
	Timestamp int64    `json:"timestamp"`
}

// SameLocation compares two records ignoring the timestamp
func (r LocationRecord) SameLocation(other LocationRecord) bool {
	if r.Latitude != other.Latitude || r.Longitude != other.Longitude || r.Heading != other.Heading {
		return false
	}
	if r.Accuracy == nil || other.Accuracy == nil {
		return r.Accuracy == nil && other.Accuracy == nil
	}
	return *r.Accuracy == *other.Accuracy
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}

// Package geo provides coordinate and bounding-box utilities for the map engine.
package geo

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ErrInvalidCoordinate indicates a coordinate string that could not be parsed.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// latLngPattern matches a "lat, lng" pair with optional surrounding whitespace.
var latLngPattern = regexp.MustCompile(`^\s*(-?[0-9.]+)\s*,\s*(-?[0-9.]+)\s*$`)

// ParseLatLng parses a "lat, lng" string as exported by the data pipeline.
// Returns ErrInvalidCoordinate for empty or malformed input.
func ParseLatLng(s string) (LatLng, error) {
	m := latLngPattern.FindStringSubmatch(s)
	if m == nil {
		return LatLng{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, strings.TrimSpace(s))
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	return LatLng{Lat: lat, Lng: lng}, nil
}

// Valid reports whether the coordinate lies within the WGS84 domain.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

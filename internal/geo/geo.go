// Package geo selects sirens that fall inside operator- or alert-supplied polygons.
//
// Coordinates are compared in the order they are written ("lat,lng"); the
// engine does not care which axis is which as long as rings and points agree.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedGeometry is returned for any polygon that cannot be parsed. A
// request carrying one bad ring fails as a whole.
var ErrMalformedGeometry = errors.New("malformed geometry")

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Ring is an implicitly closed polygon boundary.
type Ring []Point

// ParseRing decodes a whitespace separated list of "lat,lng" pairs. A trailing
// point equal to the first one is accepted and dropped.
func ParseRing(s string) (Ring, error) {
	tokens := strings.Fields(s)
	ring := make(Ring, 0, len(tokens))
	for i, tok := range tokens {
		parts := strings.Split(tok, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: point %d %q: want lat,lng", ErrMalformedGeometry, i, tok)
		}
		lat, err := parseCoord(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%w: point %d %q: %v", ErrMalformedGeometry, i, tok, err)
		}
		lng, err := parseCoord(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: point %d %q: %v", ErrMalformedGeometry, i, tok, err)
		}
		ring = append(ring, Point{Lat: lat, Lng: lng})
	}

	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
	}
	if len(ring) < 3 {
		return nil, fmt.Errorf("%w: ring needs at least 3 distinct points, got %d", ErrMalformedGeometry, len(ring))
	}
	return ring, nil
}

// ParseRings parses every ring or none.
func ParseRings(encoded []string) ([]Ring, error) {
	if len(encoded) == 0 {
		return nil, fmt.Errorf("%w: no polygon supplied", ErrMalformedGeometry)
	}
	rings := make([]Ring, 0, len(encoded))
	for i, s := range encoded {
		ring, err := ParseRing(s)
		if err != nil {
			return nil, fmt.Errorf("polygon %d: %w", i, err)
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

func parseCoord(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("coordinate %q is not finite", s)
	}
	return v, nil
}

// Contains reports whether p lies inside the ring using ray casting. Points
// exactly on an edge or vertex may land on either side.
func (r Ring) Contains(p Point) bool {
	inside := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Lng > p.Lng) != (b.Lng > p.Lng) &&
			p.Lat < (b.Lat-a.Lat)*(p.Lng-a.Lng)/(b.Lng-a.Lng)+a.Lat {
			inside = !inside
		}
	}
	return inside
}

// Select returns the items inside any of the rings, de-duplicated by key and
// ordered by first match (ring order, then item order).
func Select[T any](rings []Ring, items []T, locate func(T) (string, Point)) []T {
	seen := make(map[string]struct{})
	var out []T
	for _, ring := range rings {
		for _, item := range items {
			key, p := locate(item)
			if _, dup := seen[key]; dup {
				continue
			}
			if ring.Contains(p) {
				seen[key] = struct{}{}
				out = append(out, item)
			}
		}
	}
	return out
}

package geo

import (
	"errors"
	"reflect"
	"testing"
)

type siren struct {
	id  string
	loc Point
}

func locate(s siren) (string, Point) { return s.id, s.loc }

func ids(in []siren) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, s.id)
	}
	return out
}

func mustRing(t *testing.T, s string) Ring {
	t.Helper()
	r, err := ParseRing(s)
	if err != nil {
		t.Fatalf("ParseRing(%q): %v", s, err)
	}
	return r
}

func TestParseRing(t *testing.T) {
	r := mustRing(t, "10,10 10,20 20,20 20,10")
	want := Ring{{10, 10}, {10, 20}, {20, 20}, {20, 10}}
	if !reflect.DeepEqual(r, want) {
		t.Errorf("got %v, want %v", r, want)
	}

	closed := mustRing(t, "  10,10\t10,20 20,20 20,10 10,10 ")
	if !reflect.DeepEqual(closed, want) {
		t.Errorf("explicitly closed ring: got %v, want %v", closed, want)
	}
}

func TestParseRing_Malformed(t *testing.T) {
	cases := map[string]string{
		"non-numeric":   "10,10 10,abc 20,20",
		"wrong arity":   "10,10 10,20,30 20,20",
		"missing half":  "10,10 10, 20,20",
		"single value":  "10 10,20 20,20",
		"too few":       "10,10 20,20",
		"closed triple": "10,10 20,20 10,10",
		"empty":         "",
		"nan":           "NaN,1 2,2 3,3",
		"inf":           "1,1 +Inf,2 3,3",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRing(in)
			if !errors.Is(err, ErrMalformedGeometry) {
				t.Errorf("ParseRing(%q) err = %v, want ErrMalformedGeometry", in, err)
			}
		})
	}
}

func TestParseRings_OneBadRingFailsAll(t *testing.T) {
	_, err := ParseRings([]string{"10,10 10,20 20,20 20,10", "1,1 2,x 3,3"})
	if !errors.Is(err, ErrMalformedGeometry) {
		t.Fatalf("err = %v, want ErrMalformedGeometry", err)
	}

	if _, err := ParseRings(nil); !errors.Is(err, ErrMalformedGeometry) {
		t.Errorf("empty ring list: err = %v", err)
	}
}

func TestContains_Convex(t *testing.T) {
	square := mustRing(t, "10,10 10,20 20,20 20,10")
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{15, 15}, true},
		{Point{10.0001, 19.9999}, true},
		{Point{30, 30}, false},
		{Point{5, 15}, false},
		{Point{15, 25}, false},
	}
	for _, tt := range tests {
		if got := square.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestContains_NonConvex(t *testing.T) {
	// U shape: the notch between x=4..6 above y=4 is outside.
	u := mustRing(t, "0,0 10,0 10,10 6,10 6,4 4,4 4,10 0,10")
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{2, 8}, true},
		{Point{8, 8}, true},
		{Point{5, 2}, true},
		{Point{5, 8}, false},
		{Point{11, 5}, false},
	}
	for _, tt := range tests {
		if got := u.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

// Boundary points are deliberately not asserted: ray casting may place a point
// on an edge or vertex either inside or outside. This only checks it does not panic.
func TestContains_BoundaryIsUnspecified(t *testing.T) {
	square := mustRing(t, "10,10 10,20 20,20 20,10")
	for _, p := range []Point{{10, 15}, {20, 20}, {15, 10}} {
		_ = square.Contains(p)
	}
}

func TestSelect(t *testing.T) {
	sirens := []siren{
		{"in-a", Point{15, 15}},
		{"out", Point{30, 30}},
		{"in-both", Point{19, 19}},
		{"in-b", Point{25, 25}},
	}
	a := mustRing(t, "10,10 10,20 20,20 20,10")
	b := mustRing(t, "18,18 18,28 28,28 28,18")

	got := ids(Select([]Ring{a, b}, sirens, locate))
	want := []string{"in-a", "in-both", "in-b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Select = %v, want %v", got, want)
	}

	if got := Select([]Ring{a}, []siren{}, locate); len(got) != 0 {
		t.Errorf("no sirens: got %v", got)
	}
}

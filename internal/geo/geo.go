// Package geo holds the small amount of planar/spherical geometry the
// matcher and the in-memory store need. Postgres delegates the same
// predicates to PostGIS.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const earthRadiusMeters = 6371008.8

// Point is a WGS84 coordinate
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within WGS84 bounds
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// WKT returns the point in well-known text, longitude first
func (p Point) WKT() string {
	return fmt.Sprintf("POINT(%s %s)", formatCoord(p.Lng), formatCoord(p.Lat))
}

func (p Point) String() string {
	return fmt.Sprintf("%s,%s", formatCoord(p.Lat), formatCoord(p.Lng))
}

// Distance is a length in meters
type Distance float64

// Meters returns a Distance of m meters
func Meters(m float64) Distance { return Distance(m) }

// Feet returns a Distance of ft feet
func Feet(ft float64) Distance { return Distance(ft * 0.3048) }

// Miles returns a Distance of mi miles
func Miles(mi float64) Distance { return Distance(mi * 1609.344) }

// Meters returns the distance in meters
func (d Distance) Meters() float64 { return float64(d) }

// Feet returns the distance in feet
func (d Distance) Feet() float64 { return float64(d) / 0.3048 }

// Between returns the great-circle distance between a and b
func Between(a, b Point) Distance {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return Distance(2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h))))
}

// Circle is a center point plus radius
type Circle struct {
	Center Point    `json:"center"`
	Radius Distance `json:"radius"`
}

// Contains reports whether p is within the circle
func (c Circle) Contains(p Point) bool {
	return Between(c.Center, p) <= c.Radius
}

// Polygon is a single closed or open ring of points
type Polygon []Point

// Valid reports whether the ring has enough valid vertices
func (pg Polygon) Valid() bool {
	if len(pg) < 3 {
		return false
	}
	for _, p := range pg {
		if !p.Valid() {
			return false
		}
	}
	return true
}

// Contains reports whether p lies inside the ring (even-odd rule)
func (pg Polygon) Contains(p Point) bool {
	inside := false
	n := len(pg)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := pg[i], pg[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			x := (b.Lng-a.Lng)*(p.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lng
			if p.Lng < x {
				inside = !inside
			}
		}
	}
	return inside
}

// WKT returns the ring as a POLYGON, closing it if necessary
func (pg Polygon) WKT() string {
	pts := make([]string, 0, len(pg)+1)
	for _, p := range pg {
		pts = append(pts, formatCoord(p.Lng)+" "+formatCoord(p.Lat))
	}
	if len(pg) > 0 && pg[0] != pg[len(pg)-1] {
		pts = append(pts, pts[0])
	}
	return "POLYGON((" + strings.Join(pts, ", ") + "))"
}

// ParsePolygonWKT parses the outer ring of a POLYGON WKT string
func ParsePolygonWKT(wkt string) (Polygon, error) {
	s := strings.TrimSpace(wkt)
	if !strings.HasPrefix(strings.ToUpper(s), "POLYGON") {
		return nil, fmt.Errorf("not a polygon: %q", wkt)
	}
	start := strings.Index(s, "((")
	end := strings.Index(s, ")")
	if start < 0 || end < start {
		return nil, fmt.Errorf("malformed polygon: %q", wkt)
	}

	var ring Polygon
	for _, pair := range strings.Split(s[start+2:end], ",") {
		fields := strings.Fields(pair)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed coordinate %q", pair)
		}
		lng, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed longitude %q: %w", fields[0], err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed latitude %q: %w", fields[1], err)
		}
		ring = append(ring, Point{Lat: lat, Lng: lng})
	}

	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	return ring, nil
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

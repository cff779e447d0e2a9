package geo

import (
	"math"
	"testing"

	"github.com/go-playground/assert/v2"
)

var davisSquare = Point{Lat: 42.3967, Lng: -71.1223}

func TestDistanceUnits(t *testing.T) {
	assert.Equal(t, math.Round(Feet(300).Meters()*100)/100, 91.44)
	assert.Equal(t, math.Round(Miles(1).Feet()), 5280.0)
}

func TestBetween(t *testing.T) {
	assert.Equal(t, Between(davisSquare, davisSquare), Distance(0))

	// roughly 0.001 degrees of latitude, ~111 m
	north := Point{Lat: davisSquare.Lat + 0.001, Lng: davisSquare.Lng}
	d := Between(davisSquare, north).Meters()
	assert.Equal(t, d > 110 && d < 112, true)

	c := Circle{Center: davisSquare, Radius: Feet(300)}
	assert.Equal(t, c.Contains(north), false)
	c.Radius = Feet(400)
	assert.Equal(t, c.Contains(north), true)
}

func TestPolygonContains(t *testing.T) {
	square := Polygon{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 0},
	}
	assert.Equal(t, square.Valid(), true)
	assert.Equal(t, square.Contains(Point{Lat: 0.5, Lng: 0.5}), true)
	assert.Equal(t, square.Contains(Point{Lat: 1.5, Lng: 0.5}), false)
	assert.Equal(t, Polygon{{Lat: 0, Lng: 0}}.Valid(), false)
}

func TestPolygonWKTRoundTrip(t *testing.T) {
	square := Polygon{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1.5},
		{Lat: 1, Lng: 1.5},
	}
	wkt := square.WKT()
	assert.Equal(t, wkt, "POLYGON((0 0, 1.5 0, 1.5 1, 0 0))")

	parsed, err := ParsePolygonWKT(wkt)
	assert.Equal(t, err, nil)
	assert.Equal(t, parsed, square)

	_, err = ParsePolygonWKT("POINT(1 2)")
	assert.NotEqual(t, err, nil)
}

func TestPointValid(t *testing.T) {
	assert.Equal(t, davisSquare.Valid(), true)
	assert.Equal(t, Point{Lat: 91}.Valid(), false)
	assert.Equal(t, davisSquare.WKT(), "POINT(-71.1223 42.3967)")
}

package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Coordinate is a single geographic point.
type Coordinate struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Paris is the default location used when a caller supplies no coordinates.
var Paris = Coordinate{Lat: 48.8566, Lon: 2.3522}

// Validate reports whether the coordinate lies within valid latitude/longitude ranges.
func (c Coordinate) Validate() error {
	return validate.Struct(c)
}

// Key returns the cache key for this coordinate. Both components are rounded
// to two decimals, so nearby points (roughly 1km apart) share one cache entry.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.2f_%.2f", c.Lat, c.Lon)
}

// String formats the coordinate the way city placeholders are shown.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.2f, %.2f", c.Lat, c.Lon)
}

// Polygon is a closed ring of [lon, lat] pairs.
type Polygon [][2]float64

// DefaultField is the demo parcel used when no polygon is supplied.
var DefaultField = Polygon{
	{2.2769, 48.8589},
	{2.2769, 48.8719},
	{2.2969, 48.8719},
	{2.2969, 48.8589},
	{2.2769, 48.8589},
}

var (
	ErrPolygonTooShort  = errors.New("polygon needs at least 4 points")
	ErrPolygonNotClosed = errors.New("polygon ring is not closed")
)

// Validate checks that the polygon is a closed ring of valid points.
func (p Polygon) Validate() error {
	if len(p) < 4 {
		return ErrPolygonTooShort
	}
	if p[0] != p[len(p)-1] {
		return ErrPolygonNotClosed
	}
	for i, pt := range p {
		c := Coordinate{Lat: pt[1], Lon: pt[0]}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}

// Key serializes the full ring at full precision.
func (p Polygon) Key() string {
	var b strings.Builder
	for i, pt := range p {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(pt[0], 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(pt[1], 'f', -1, 64))
	}
	return b.String()
}

// Centroid averages every listed point, the closing point included.
func (p Polygon) Centroid() Coordinate {
	if len(p) == 0 {
		return Coordinate{}
	}
	var sumLat, sumLon float64
	for _, pt := range p {
		sumLon += pt[0]
		sumLat += pt[1]
	}
	n := float64(len(p))
	return Coordinate{Lat: sumLat / n, Lon: sumLon / n}
}

// ParseCoordinates parses "lat,lon;lat,lon" lists.
func ParseCoordinates(s string) ([]Coordinate, error) {
	var out []Coordinate
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid coordinate %q: want lat,lon", part)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q: %w", part, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q: %w", part, err)
		}
		c := Coordinate{Lat: lat, Lon: lon}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid coordinate %q: %w", part, err)
		}
		out = append(out, c)
	}
	return out, nil
}

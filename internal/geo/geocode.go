package geo

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
)

// Place is a named location tracked by city and country.
type Place struct {
	City    string `validate:"required"`
	Country string `validate:"required"`
}

// ParsePlaces parses "City,CC;City,CC" lists.
func ParsePlaces(s string) ([]Place, error) {
	var out []Place
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid place %q: want City,Country", part)
		}
		p := Place{City: strings.TrimSpace(fields[0]), Country: strings.TrimSpace(fields[1])}
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("invalid place %q: %w", part, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Resolver turns place names into coordinates.
type Resolver interface {
	Resolve(p Place) (Coordinate, error)
}

// GoogleResolver resolves places through the Google geocoding API.
// The geocoder package keeps its key in a package variable, so calls are serialized.
type GoogleResolver struct {
	mu     sync.Mutex
	apiKey string
}

func NewGoogleResolver(apiKey string) *GoogleResolver {
	return &GoogleResolver{apiKey: apiKey}
}

func (r *GoogleResolver) Resolve(p Place) (Coordinate, error) {
	if r.apiKey == "" {
		return Coordinate{}, fmt.Errorf("geocoder api key is not configured")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	geocoder.ApiKey = r.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{
		City:    p.City,
		Country: p.Country,
	})
	if err != nil {
		return Coordinate{}, fmt.Errorf("geocode %s,%s: %w", p.City, p.Country, err)
	}

	c := Coordinate{Lat: loc.Latitude, Lon: loc.Longitude}
	if err := c.Validate(); err != nil {
		return Coordinate{}, fmt.Errorf("geocode %s,%s returned invalid coordinate: %w", p.City, p.Country, err)
	}
	return c, nil
}

// ResolveAll resolves every place, skipping the ones that fail.
func ResolveAll(r Resolver, places []Place) ([]Coordinate, []error) {
	var (
		coords []Coordinate
		errs   []error
	)
	for _, p := range places {
		c, err := r.Resolve(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		coords = append(coords, c)
	}
	return coords, errs
}

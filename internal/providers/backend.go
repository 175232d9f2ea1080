package providers

import (
	"context"
	"net/url"
	"time"

	"github.com/i474232898/agritech-envdata/internal/airquality"
	"github.com/i474232898/agritech-envdata/internal/climate"
	"github.com/i474232898/agritech-envdata/internal/geo"
	"github.com/i474232898/agritech-envdata/internal/weather"
)

// Default values for fields the backend's reduced weather payload may omit.
const (
	defaultPressure   = 1013
	defaultVisibility = 10000
	unknown           = "Unknown"
)

// Backend is the in-process /api service used as the last network tier.
// It needs no API key.
type Backend struct {
	http *client
	now  func() time.Time
}

func NewBackend(opts Options) *Backend {
	return &Backend{
		http: newClient("backend", opts),
		now:  time.Now,
	}
}

func (p *Backend) Name() string {
	return p.http.name
}

func pointQuery(c geo.Coordinate) url.Values {
	values := url.Values{}
	values.Set("lat", formatCoord(c.Lat))
	values.Set("lon", formatCoord(c.Lon))
	return values
}

func (p *Backend) envelopeError(msg string) error {
	return &PayloadError{Provider: p.Name(), Reason: msg}
}

// Weather fetches the reduced current weather and backfills omitted fields.
func (p *Backend) Weather(ctx context.Context, c geo.Coordinate) (weather.Current, error) {
	var payload struct {
		Error         string   `json:"error"`
		Temperature   *float64 `json:"temperature"`
		FeelsLike     *float64 `json:"feels_like"`
		Humidity      float64  `json:"humidity"`
		Pressure      *float64 `json:"pressure"`
		Description   string   `json:"description"`
		Icon          string   `json:"icon"`
		WindSpeed     float64  `json:"windSpeed"`
		WindDirection float64  `json:"windDirection"`
		City          string   `json:"city"`
		Visibility    *float64 `json:"visibility"`
		Clouds        float64  `json:"clouds"`
	}

	if err := p.http.getJSON(ctx, "/api/weather", pointQuery(c), &payload); err != nil {
		return weather.Current{}, err
	}
	if payload.Error != "" {
		return weather.Current{}, p.envelopeError(payload.Error)
	}
	if payload.Temperature == nil {
		return weather.Current{}, &PayloadError{Provider: p.Name(), Reason: "missing temperature"}
	}

	now := p.now()
	out := weather.Current{
		Temperature:   *payload.Temperature,
		FeelsLike:     *payload.Temperature - 1,
		Humidity:      payload.Humidity,
		Pressure:      defaultPressure,
		WindSpeed:     payload.WindSpeed,
		WindDirection: payload.WindDirection,
		Description:   payload.Description,
		Icon:          payload.Icon,
		Visibility:    defaultVisibility,
		Clouds:        payload.Clouds,
		Sunrise:       now.Add(-time.Hour).Unix(),
		Sunset:        now.Add(12 * time.Hour).Unix(),
		Country:       unknown,
		CityName:      payload.City,
	}
	if payload.FeelsLike != nil {
		out.FeelsLike = *payload.FeelsLike
	}
	if payload.Pressure != nil {
		out.Pressure = *payload.Pressure
	}
	if payload.Visibility != nil {
		out.Visibility = *payload.Visibility
	}
	if out.Icon == "" {
		out.Icon = "unknown"
		out.Condition = weather.ConditionFromDescription(out.Description)
	} else {
		out.Condition = weather.ConditionFromIcon(out.Icon)
	}
	if out.CityName == "" {
		out.CityName = unknown
	}
	return out, nil
}

// AirQuality fetches the ordinal reading and normalizes it to the US scale.
func (p *Backend) AirQuality(ctx context.Context, c geo.Coordinate) (airquality.Report, error) {
	var payload struct {
		Error string `json:"error"`
		airquality.Sample
	}

	if err := p.http.getJSON(ctx, "/api/airquality", pointQuery(c), &payload); err != nil {
		return airquality.Report{}, err
	}
	if payload.Error != "" {
		return airquality.Report{}, p.envelopeError(payload.Error)
	}
	if payload.Index == 0 {
		return airquality.Report{}, &PayloadError{Provider: p.Name(), Reason: "missing aqi"}
	}
	return airquality.FromOrdinal(payload.Sample), nil
}

// Climate posts the polygon to the backend's soil endpoint.
func (p *Backend) Climate(ctx context.Context, polygon geo.Polygon) (climate.Reading, error) {
	body := struct {
		Polygon geo.Polygon `json:"polygon"`
	}{Polygon: polygon}

	var payload struct {
		Error string `json:"error"`
		climate.Reading
	}

	if err := p.http.postJSON(ctx, "/api/climate", nil, body, &payload); err != nil {
		return climate.Reading{}, err
	}
	if payload.Error != "" {
		return climate.Reading{}, p.envelopeError(payload.Error)
	}
	return payload.Reading, nil
}

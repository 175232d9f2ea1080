package providers

import (
	"context"
	"net/url"

	"github.com/i474232898/agritech-envdata/internal/airquality"
	"github.com/i474232898/agritech-envdata/internal/geo"
)

// AirVisual is the IQAir AirVisual v2 API. It only exposes aggregate
// indices, so its reports carry fewer pollutant fields than OpenWeather's.
type AirVisual struct {
	apiKey string
	http   *client
}

func NewAirVisual(opts Options) *AirVisual {
	return &AirVisual{
		apiKey: opts.APIKey,
		http:   newClient("airvisual", opts),
	}
}

func (p *AirVisual) Name() string {
	return p.http.name
}

// NearestCity fetches the air quality of the monitoring city closest to c.
func (p *AirVisual) NearestCity(ctx context.Context, c geo.Coordinate) (airquality.Report, error) {
	if err := checkAPIKey(p.Name(), p.apiKey); err != nil {
		return airquality.Report{}, err
	}

	values := url.Values{}
	values.Set("lat", formatCoord(c.Lat))
	values.Set("lon", formatCoord(c.Lon))
	values.Set("key", p.apiKey)

	var payload struct {
		Status string `json:"status"`
		Data   struct {
			Message string `json:"message"`
			Current struct {
				Pollution *struct {
					AQIUS  int    `json:"aqius"`
					MainUS string `json:"mainus"`
					AQICN  int    `json:"aqicn"`
				} `json:"pollution"`
			} `json:"current"`
		} `json:"data"`
	}

	if err := p.http.getJSON(ctx, "/nearest_city", values, &payload); err != nil {
		return airquality.Report{}, err
	}
	if payload.Status != "success" {
		reason := payload.Data.Message
		if reason == "" {
			reason = "status " + payload.Status
		}
		return airquality.Report{}, &PayloadError{Provider: p.Name(), Reason: reason}
	}

	pollution := payload.Data.Current.Pollution
	if pollution == nil {
		return airquality.Report{}, &PayloadError{Provider: p.Name(), Reason: "missing data.current.pollution"}
	}
	return airquality.FromUSIndex(pollution.AQIUS, pollution.MainUS, pollution.AQICN), nil
}

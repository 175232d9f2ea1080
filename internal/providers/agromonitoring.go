package providers

import (
	"context"
	"net/url"

	"github.com/i474232898/agritech-envdata/internal/climate"
	"github.com/i474232898/agritech-envdata/internal/geo"
)

// Agromonitoring is the soil/vegetation provider.
type Agromonitoring struct {
	apiKey string
	http   *client
}

func NewAgromonitoring(opts Options) *Agromonitoring {
	return &Agromonitoring{
		apiKey: opts.APIKey,
		http:   newClient("agromonitoring", opts),
	}
}

func (p *Agromonitoring) Name() string {
	return p.http.name
}

// Soil posts the parcel polygon and maps the reading. Fields the provider
// omits are reported as 0.
func (p *Agromonitoring) Soil(ctx context.Context, polygon geo.Polygon) (climate.Reading, error) {
	if err := checkAPIKey(p.Name(), p.apiKey); err != nil {
		return climate.Reading{}, err
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)

	body := struct {
		Polygon geo.Polygon `json:"polygon"`
	}{Polygon: polygon}

	var payload struct {
		Moisture      float64 `json:"moisture"`
		NDVI          float64 `json:"ndvi"`
		Precipitation float64 `json:"precipitation"`
	}

	if err := p.http.postJSON(ctx, "/soil", values, body, &payload); err != nil {
		return climate.Reading{}, err
	}

	return climate.Reading{
		SoilMoisture:  payload.Moisture,
		NDVI:          payload.NDVI,
		Precipitation: payload.Precipitation,
	}, nil
}

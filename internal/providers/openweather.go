package providers

import (
	"context"
	"net/url"

	"github.com/i474232898/agritech-envdata/internal/airquality"
	"github.com/i474232898/agritech-envdata/internal/geo"
	"github.com/i474232898/agritech-envdata/internal/weather"
)

// OpenWeather talks to the OpenWeatherMap 2.5 API: current weather, the
// 5-day/3-hour forecast and air pollution.
type OpenWeather struct {
	apiKey string
	http   *client
}

func NewOpenWeather(opts Options) *OpenWeather {
	return &OpenWeather{
		apiKey: opts.APIKey,
		http:   newClient("openweather", opts),
	}
}

func (p *OpenWeather) Name() string {
	return p.http.name
}

func (p *OpenWeather) query(c geo.Coordinate, metric bool) url.Values {
	values := url.Values{}
	values.Set("lat", formatCoord(c.Lat))
	values.Set("lon", formatCoord(c.Lon))
	if metric {
		values.Set("units", "metric")
	}
	values.Set("appid", p.apiKey)
	return values
}

type owmCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmMain struct {
	Temp      *float64 `json:"temp"`
	FeelsLike float64  `json:"feels_like"`
	Humidity  float64  `json:"humidity"`
	Pressure  float64  `json:"pressure"`
}

type owmWind struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg"`
}

// Current fetches the current conditions at c.
func (p *OpenWeather) Current(ctx context.Context, c geo.Coordinate) (weather.Current, error) {
	if err := checkAPIKey(p.Name(), p.apiKey); err != nil {
		return weather.Current{}, err
	}

	var payload struct {
		Main    owmMain        `json:"main"`
		Wind    owmWind        `json:"wind"`
		Weather []owmCondition `json:"weather"`
		Sys     struct {
			Sunrise int64  `json:"sunrise"`
			Sunset  int64  `json:"sunset"`
			Country string `json:"country"`
		} `json:"sys"`
		Name       string  `json:"name"`
		Visibility float64 `json:"visibility"`
		Clouds     struct {
			All float64 `json:"all"`
		} `json:"clouds"`
		Rain *struct {
			OneH *float64 `json:"1h"`
		} `json:"rain"`
		Snow *struct {
			OneH *float64 `json:"1h"`
		} `json:"snow"`
	}

	if err := p.http.getJSON(ctx, "/weather", p.query(c, true), &payload); err != nil {
		return weather.Current{}, err
	}
	if payload.Main.Temp == nil {
		return weather.Current{}, &PayloadError{Provider: p.Name(), Reason: "missing main.temp"}
	}
	if len(payload.Weather) == 0 {
		return weather.Current{}, &PayloadError{Provider: p.Name(), Reason: "missing weather conditions"}
	}

	cond := payload.Weather[0]
	out := weather.Current{
		Temperature:   *payload.Main.Temp,
		FeelsLike:     payload.Main.FeelsLike,
		Humidity:      payload.Main.Humidity,
		Pressure:      payload.Main.Pressure,
		WindSpeed:     payload.Wind.Speed,
		WindDirection: payload.Wind.Deg,
		Description:   cond.Description,
		Icon:          cond.Icon,
		Condition:     weather.ConditionFromGroup(cond.Main),
		Visibility:    payload.Visibility,
		Clouds:        payload.Clouds.All,
		Sunrise:       payload.Sys.Sunrise,
		Sunset:        payload.Sys.Sunset,
		Country:       payload.Sys.Country,
		CityName:      payload.Name,
	}
	if payload.Rain != nil {
		out.Rain1h = payload.Rain.OneH
	}
	if payload.Snow != nil {
		out.Snow1h = payload.Snow.OneH
	}
	return out, nil
}

// Forecast fetches the multi-point forecast at c.
func (p *OpenWeather) Forecast(ctx context.Context, c geo.Coordinate) (weather.Forecast, error) {
	if err := checkAPIKey(p.Name(), p.apiKey); err != nil {
		return weather.Forecast{}, err
	}

	var payload struct {
		List []struct {
			Dt      int64          `json:"dt"`
			Main    owmMain        `json:"main"`
			Weather []owmCondition `json:"weather"`
			Wind    owmWind        `json:"wind"`
			Clouds  struct {
				All float64 `json:"all"`
			} `json:"clouds"`
			Rain struct {
				ThreeH float64 `json:"3h"`
			} `json:"rain"`
		} `json:"list"`
		City struct {
			Name    string `json:"name"`
			Country string `json:"country"`
			Sunrise int64  `json:"sunrise"`
			Sunset  int64  `json:"sunset"`
		} `json:"city"`
	}

	if err := p.http.getJSON(ctx, "/forecast", p.query(c, true), &payload); err != nil {
		return weather.Forecast{}, err
	}
	if len(payload.List) == 0 {
		return weather.Forecast{}, &PayloadError{Provider: p.Name(), Reason: "missing forecast list"}
	}

	out := weather.Forecast{
		City: weather.ForecastCity{
			Name:    payload.City.Name,
			Country: payload.City.Country,
			Sunrise: payload.City.Sunrise,
			Sunset:  payload.City.Sunset,
		},
		Entries: make([]weather.ForecastEntry, 0, len(payload.List)),
	}
	for _, item := range payload.List {
		e := weather.ForecastEntry{
			Time:          item.Dt,
			FeelsLike:     item.Main.FeelsLike,
			Humidity:      item.Main.Humidity,
			Pressure:      item.Main.Pressure,
			WindSpeed:     item.Wind.Speed,
			WindDirection: item.Wind.Deg,
			Clouds:        item.Clouds.All,
			Rain3h:        item.Rain.ThreeH,
			Condition:     weather.ConditionUnknown,
		}
		if item.Main.Temp != nil {
			e.Temperature = *item.Main.Temp
		}
		if len(item.Weather) > 0 {
			e.Description = item.Weather[0].Description
			e.Icon = item.Weather[0].Icon
			e.Condition = weather.ConditionFromGroup(item.Weather[0].Main)
		}
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}

// AirPollution fetches the raw 1-5 ordinal air-quality sample at c.
func (p *OpenWeather) AirPollution(ctx context.Context, c geo.Coordinate) (airquality.Sample, error) {
	if err := checkAPIKey(p.Name(), p.apiKey); err != nil {
		return airquality.Sample{}, err
	}

	var payload struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				AQI int `json:"aqi"`
			} `json:"main"`
			Components airquality.Components `json:"components"`
		} `json:"list"`
	}

	if err := p.http.getJSON(ctx, "/air_pollution", p.query(c, false), &payload); err != nil {
		return airquality.Sample{}, err
	}
	if len(payload.List) == 0 {
		return airquality.Sample{}, &PayloadError{Provider: p.Name(), Reason: "missing air pollution list"}
	}

	first := payload.List[0]
	return airquality.Sample{
		Index:      first.Main.AQI,
		Components: first.Components,
		Timestamp:  first.Dt,
	}, nil
}

package weather

import (
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Current is the normalized current-weather reading. Every tier, including
// the simulated one, produces exactly this shape.
type Current struct {
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feelsLike"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDirection float64   `json:"windDirection"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	Condition     Condition `json:"condition"`
	Visibility    float64   `json:"visibility"`
	Clouds        float64   `json:"clouds"`
	Sunrise       int64     `json:"sunrise"` // unix seconds
	Sunset        int64     `json:"sunset"`  // unix seconds
	Rain1h        *float64  `json:"rain1h,omitempty"`
	Snow1h        *float64  `json:"snow1h,omitempty"`
	Country       string    `json:"country"`
	CityName      string    `json:"cityName"`
}

// ForecastCity describes the place a forecast was issued for.
type ForecastCity struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
}

// ForecastEntry is one step (usually 3 hours) of a multi-point forecast.
type ForecastEntry struct {
	Time          int64     `json:"dt"`
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feelsLike"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	Condition     Condition `json:"condition"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDirection float64   `json:"windDirection"`
	Clouds        float64   `json:"clouds"`
	Rain3h        float64   `json:"rain3h"`
}

// Forecast entries are ordered by Time ascending.
type Forecast struct {
	City    ForecastCity    `json:"city"`
	Entries []ForecastEntry `json:"entries"`
}

// Report is what the weather binding exposes: the current reading plus an
// optional forecast. A failed forecast leaves Forecast nil without failing
// the report.
type Report struct {
	Current  Current   `json:"current"`
	Forecast *Forecast `json:"forecast"`
}

// IsDaytime reports whether t falls between sunrise and sunset.
func (c Current) IsDaytime(t time.Time) bool {
	now := t.Unix()
	return now > c.Sunrise && now < c.Sunset
}

var compass = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// WindCompass maps the wind direction in degrees to one of eight compass points.
func (c Current) WindCompass() string {
	deg := int(c.WindDirection+0.5) % 360
	if deg < 0 {
		deg += 360
	}
	idx := ((deg + 22) / 45) % 8
	return compass[idx]
}

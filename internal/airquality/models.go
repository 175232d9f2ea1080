package airquality

// Pollutants holds concentrations of the six tracked pollutants.
// PM/O3/NO2/SO2 are in µg/m³, CO in mg/m³.
type Pollutants struct {
	PM25 float64 `json:"pm25"`
	PM10 float64 `json:"pm10"`
	O3   float64 `json:"o3"`
	NO2  float64 `json:"no2"`
	SO2  float64 `json:"so2"`
	CO   float64 `json:"co"`
}

// Report is the normalized air-quality result on the US 0-500 AQI scale.
type Report struct {
	AQI                int        `json:"aqi"`
	MainPollutant      string     `json:"mainPollutant"`
	Category           string     `json:"category"`
	Pollutants         Pollutants `json:"pollutants"`
	HealthImplications string     `json:"healthImplications"`
	Recommendations    string     `json:"recommendations"`
}

// Components are raw concentrations as reported by OpenWeather, all in µg/m³.
type Components struct {
	CO   float64 `json:"co"`
	NO   float64 `json:"no"`
	NO2  float64 `json:"no2"`
	O3   float64 `json:"o3"`
	SO2  float64 `json:"so2"`
	PM25 float64 `json:"pm2_5"`
	PM10 float64 `json:"pm10"`
	NH3  float64 `json:"nh3"`
}

// Sample is a provider reading on the 1-5 ordinal scale, before normalization.
type Sample struct {
	Index      int        `json:"aqi"`
	Components Components `json:"components"`
	Timestamp  int64      `json:"timestamp"`
}

package airquality

// Category labels of the US AQI bands.
const (
	CategoryGood          = "Good"
	CategoryModerate      = "Moderate"
	CategorySensitive     = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy     = "Unhealthy"
	CategoryVeryUnhealthy = "Very Unhealthy"
	CategoryHazardous     = "Hazardous"
)

const (
	defaultUSAQI              = 150
	defaultMainPollutant      = "pm2.5"
	airVisualDefaultPollutant = "pm25"
)

// ordinalToUS maps the 1-5 ordinal index onto a representative US AQI value.
var ordinalToUS = map[int]int{1: 25, 2: 75, 3: 125, 4: 200, 5: 300}

// USFromOrdinal converts a 1-5 ordinal index. Unknown indices map to 150.
func USFromOrdinal(index int) int {
	if v, ok := ordinalToUS[index]; ok {
		return v
	}
	return defaultUSAQI
}

// whoThresholds is ordered; the order breaks ties in MainPollutant.
var whoThresholds = []struct {
	name      string
	threshold float64
	value     func(Components) float64
}{
	{"pm2.5", 10, func(c Components) float64 { return c.PM25 }},
	{"pm10", 20, func(c Components) float64 { return c.PM10 }},
	{"o3", 100, func(c Components) float64 { return c.O3 }},
	{"no2", 40, func(c Components) float64 { return c.NO2 }},
	{"so2", 40, func(c Components) float64 { return c.SO2 }},
	{"co", 4000, func(c Components) float64 { return c.CO }},
}

// MainPollutant returns the pollutant whose concentration is highest relative
// to its WHO guideline. The first maximum wins; "pm2.5" when nothing exceeds zero.
func MainPollutant(c Components) string {
	main := defaultMainPollutant
	maxRatio := 0.0
	for _, t := range whoThresholds {
		ratio := t.value(c) / t.threshold
		if ratio > maxRatio {
			maxRatio = ratio
			main = t.name
		}
	}
	return main
}

// Category returns the US AQI band label for aqi.
func Category(aqi int) string {
	switch {
	case aqi <= 50:
		return CategoryGood
	case aqi <= 100:
		return CategoryModerate
	case aqi <= 150:
		return CategorySensitive
	case aqi <= 200:
		return CategoryUnhealthy
	case aqi <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

// HealthImplications describes the expected health effects for aqi.
func HealthImplications(aqi int) string {
	switch {
	case aqi <= 50:
		return "Air quality is satisfactory and air pollution poses little or no risk."
	case aqi <= 100:
		return "Air quality is acceptable. Some pollutants may be a concern for a very small number of people who are unusually sensitive to air pollution."
	case aqi <= 150:
		return "Members of sensitive groups may experience health effects. The general public is less likely to be affected."
	case aqi <= 200:
		return "Some members of the general public may experience health effects; members of sensitive groups may experience more serious effects."
	case aqi <= 300:
		return "Health alert: the risk of health effects is increased for everyone."
	default:
		return "Health warning of emergency conditions: everyone is more likely to be affected."
	}
}

// Recommendations returns outdoor-activity advice for aqi.
func Recommendations(aqi int) string {
	switch {
	case aqi <= 50:
		return "Ideal conditions for outdoor activities."
	case aqi <= 100:
		return "Unusually sensitive people should consider limiting prolonged outdoor exertion."
	case aqi <= 150:
		return "Children, older adults and people with heart or lung disease should limit prolonged outdoor exertion."
	case aqi <= 200:
		return "Children, older adults and people with heart or lung disease should avoid outdoor activity; everyone else should limit prolonged exertion."
	case aqi <= 300:
		return "Sensitive groups should avoid all outdoor activity; everyone else should avoid outdoor exertion."
	default:
		return "Everyone should avoid all outdoor activity."
	}
}

func newReport(aqi int, main string, p Pollutants) Report {
	return Report{
		AQI:                aqi,
		MainPollutant:      main,
		Category:           Category(aqi),
		Pollutants:         p,
		HealthImplications: HealthImplications(aqi),
		Recommendations:    Recommendations(aqi),
	}
}

// FromOrdinal normalizes an ordinal-scale sample. CO is converted from µg/m³ to mg/m³.
func FromOrdinal(s Sample) Report {
	c := s.Components
	return newReport(USFromOrdinal(s.Index), MainPollutant(c), Pollutants{
		PM25: c.PM25,
		PM10: c.PM10,
		O3:   c.O3,
		NO2:  c.NO2,
		SO2:  c.SO2,
		CO:   c.CO / 1000,
	})
}

// FromUSIndex builds a report from a provider that only exposes the US AQI
// and the Chinese AQI. Pollutant concentrations it cannot supply are left at 0.
func FromUSIndex(aqiUS int, mainUS string, aqiCN int) Report {
	if mainUS == "" {
		mainUS = airVisualDefaultPollutant
	}
	return newReport(aqiUS, mainUS, Pollutants{
		PM25: float64(aqiUS),
		PM10: float64(aqiCN),
	})
}

// EuropeanLabel names the 1-5 ordinal band the way the backend reports it.
func EuropeanLabel(index int) string {
	switch index {
	case 1:
		return "Good"
	case 2:
		return "Fair"
	case 3:
		return "Moderate"
	case 4:
		return "Poor"
	case 5:
		return "Very Poor"
	default:
		return "Unknown"
	}
}

// OrdinalAdvice returns the short description and recommendation the backend
// attaches to an ordinal reading.
func OrdinalAdvice(index int) (description, recommendation string) {
	switch index {
	case 1:
		return "Good air quality", "Excellent conditions for outdoor activities."
	case 2:
		return "Fair air quality", "Favourable conditions for most outdoor activities."
	case 3:
		return "Moderate air quality", "Sensitive people should limit prolonged exertion."
	case 4:
		return "Poor air quality", "Avoid prolonged outdoor activities."
	case 5:
		return "Very poor air quality", "Avoid outdoor activities; harmful to health."
	default:
		return "", ""
	}
}

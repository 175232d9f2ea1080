package weather

import "strings"

// ConditionFromGroup maps an OpenWeather condition group ("Clear", "Rain", ...)
// onto a normalized Condition.
func ConditionFromGroup(group string) Condition {
	switch group {
	case "Clear":
		return ConditionClear
	case "Clouds":
		return ConditionCloudy
	case "Rain", "Drizzle":
		return ConditionRain
	case "Snow":
		return ConditionSnow
	case "Thunderstorm":
		return ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke", "Dust":
		return ConditionMist
	default:
		return ConditionUnknown
	}
}

// ConditionFromIcon derives a Condition from an OpenWeather icon code such as "10d".
func ConditionFromIcon(icon string) Condition {
	if len(icon) < 2 {
		return ConditionUnknown
	}
	switch icon[:2] {
	case "01":
		return ConditionClear
	case "02", "03", "04":
		return ConditionCloudy
	case "09", "10":
		return ConditionRain
	case "11":
		return ConditionStorm
	case "13":
		return ConditionSnow
	case "50":
		return ConditionMist
	default:
		return ConditionUnknown
	}
}

// ConditionFromDescription guesses a Condition from free text such as
// "light rain" when no icon or group is available.
func ConditionFromDescription(desc string) Condition {
	d := strings.ToLower(desc)
	switch {
	case hasAny(d, "thunder", "storm"):
		return ConditionStorm
	case hasAny(d, "snow", "sleet"):
		return ConditionSnow
	case hasAny(d, "rain", "drizzle", "shower"):
		return ConditionRain
	case hasAny(d, "mist", "fog", "haze", "smoke", "dust"):
		return ConditionMist
	case hasAny(d, "cloud", "overcast"):
		return ConditionCloudy
	case hasAny(d, "clear", "sunny"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}

// hasAny returns true if s contains any of the substrings.
func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

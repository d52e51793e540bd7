package weather

import (
	"fmt"
	"math"
)

// Icon names the artwork shown for a condition code.
type Icon string

const (
	// IconUnknown is reported for the unknown-condition sentinel.
	IconUnknown Icon = "unknown"
	// IconNone is reported for codes with no artwork mapping.
	IconNone Icon = "none"

	IconStorm       Icon = "storm"
	IconLightRain   Icon = "light_rain"
	IconRain        Icon = "rain"
	IconSnow        Icon = "snow"
	IconFog         Icon = "fog"
	IconClear       Icon = "clear"
	IconLightClouds Icon = "light_clouds"
	IconCloudy      Icon = "cloudy"
)

// Drawable reports whether the icon has artwork to draw.
func (i Icon) Drawable() bool {
	return i != IconUnknown && i != IconNone && i != ""
}

// IconFor maps an OpenWeatherMap condition code to an icon.
// See https://openweathermap.org/weather-conditions.
func IconFor(code int) Icon {
	switch {
	case code == UnknownCondition:
		return IconUnknown
	case code >= 200 && code <= 232:
		return IconStorm
	case code >= 300 && code <= 321:
		return IconLightRain
	case code >= 500 && code <= 504:
		return IconRain
	case code == 511:
		return IconSnow
	case code >= 520 && code <= 531:
		return IconRain
	case code >= 600 && code <= 622:
		return IconSnow
	case code >= 701 && code <= 761:
		return IconFog
	case code == 781:
		return IconStorm
	case code == 800:
		return IconClear
	case code == 801:
		return IconLightClouds
	case code >= 802 && code <= 804:
		return IconCloudy
	default:
		return IconNone
	}
}

// FormatTemperature renders a temperature the way the face shows it: the value
// truncated toward zero followed by a degree sign.
func FormatTemperature(t float64) string {
	return fmt.Sprintf("%d°", int64(math.Trunc(t)))
}

// TemperatureText returns the max and min labels for a snapshot. Both are
// empty unless both temperatures are known.
func TemperatureText(s Snapshot) (high, low string) {
	if !s.HasTemperatures() {
		return "", ""
	}
	return FormatTemperature(s.MaxTemp), FormatTemperature(s.MinTemp)
}

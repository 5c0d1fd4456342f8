package weather

import (
	"fmt"
	"math"
)

const (
	kelvinOffset = 273.15
	msToKmh      = 3.6

	iconURLFormat = "https://openweathermap.org/img/wn/%s@2x.png"
)

// Display is the presentation form of a WeatherSnapshot.
type Display struct {
	City        string    `json:"city"`
	Temperature string    `json:"temperature"`
	Wind        string    `json:"wind"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	IconURL     string    `json:"iconUrl"`
	Category    Condition `json:"category"`
}

// Celsius converts a Kelvin temperature.
func Celsius(kelvin float64) float64 {
	return kelvin - kelvinOffset
}

// KilometersPerHour converts a speed given in meters per second.
func KilometersPerHour(ms float64) float64 {
	return ms * msToKmh
}

// RoundTenths rounds x to one decimal place. Halves round away from zero,
// judged on the exact value of x rather than on the rounded product x*10.
func RoundTenths(x float64) float64 {
	scaled := x * 10
	if math.Abs(scaled-math.Trunc(scaled)) == 0.5 {
		// The product landed on a tie; rem says which side x really was on.
		if rem := math.FMA(x, 10, -scaled); rem != 0 && (rem > 0) != (scaled > 0) {
			return math.Trunc(scaled) / 10
		}
	}
	return math.Round(scaled) / 10
}

// FormatTemperature renders a Kelvin value as Celsius with one decimal, e.g. "26.9°C".
func FormatTemperature(kelvin float64) string {
	return fmt.Sprintf("%.1f°C", RoundTenths(Celsius(kelvin)))
}

// FormatWind renders a m/s value as km/h with one decimal, e.g. "18.0 km/h".
func FormatWind(ms float64) string {
	return fmt.Sprintf("%.1f km/h", RoundTenths(KilometersPerHour(ms)))
}

// IconURL builds the image URL for an icon id. The image itself is never fetched.
func IconURL(iconID string) string {
	if iconID == "" {
		return ""
	}
	return fmt.Sprintf(iconURLFormat, iconID)
}

// Present converts a snapshot into its display form.
func Present(s WeatherSnapshot) Display {
	return Display{
		City:        s.CityName,
		Temperature: FormatTemperature(s.TemperatureKelvin),
		Wind:        FormatWind(s.WindSpeedMS),
		Condition:   s.ConditionMain,
		Description: s.ConditionDescription,
		IconURL:     IconURL(s.IconID),
		Category:    s.Category(),
	}
}

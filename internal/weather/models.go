package weather

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

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

// Coordinate is a point on Earth. It is always replaced as a whole.
type Coordinate struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// Validate reports whether the coordinate lies inside the valid lat/lng ranges.
func (c Coordinate) Validate() error {
	return validate.Struct(c)
}

// WeatherSnapshot is the bundle of fields shown for the current coordinate.
// A snapshot is built from a single forecast response and applied atomically.
type WeatherSnapshot struct {
	Coordinate           Coordinate `json:"coordinate"`
	ObservedAt           time.Time  `json:"observedAt"` // always UTC
	CityName             string     `json:"cityName"`
	TemperatureKelvin    float64    `json:"temperatureKelvin"`
	ConditionMain        string     `json:"conditionMain"`
	ConditionDescription string     `json:"conditionDescription"`
	IconID               string     `json:"iconId"`
	WindSpeedMS          float64    `json:"windSpeedMs"`
}

// Category maps the provider's condition label onto a normalized Condition.
func (s WeatherSnapshot) Category() Condition {
	switch s.ConditionMain {
	case "":
		return ConditionUnknown
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
	case "Mist", "Fog", "Haze", "Smoke", "Dust", "Sand", "Ash":
		return ConditionMist
	default:
		return ConditionUnknown
	}
}

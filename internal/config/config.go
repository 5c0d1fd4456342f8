package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/weather-map/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	OpenWeatherAPIKey  string `validate:"required"`
	OpenWeatherBaseURL string `validate:"required,url"`

	// HTTPTimeout bounds every outbound provider call.
	HTTPTimeout time.Duration
	// ProviderMaxRetries is the number of retries for network and 5xx failures.
	ProviderMaxRetries int `validate:"gte=0"`

	// DefaultLocation is where the marker starts.
	DefaultLocation weather.Coordinate

	// Session retention.
	MaxSessions          int           // 0 = unlimited
	SessionMaxIdle       time.Duration // 0 = unlimited
	SessionPruneInterval time.Duration

	// Map tile layer handed to the page.
	TileURL         string `validate:"required"`
	TileAttribution string
	MapZoom         int `validate:"gte=1,lte=19"`

	Port string
}

// Load reads configuration from environment with sensible defaults.
// The OpenWeather key and base URL are required.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = os.Getenv("OPENWEATHER_API_BASE")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	cfg.ProviderMaxRetries = getenvInt("PROVIDER_MAX_RETRIES", 2)

	lat, err := getenvFloat("WEATHER_DEFAULT_LAT", -26.1887)
	if err != nil {
		return nil, err
	}
	lng, err := getenvFloat("WEATHER_DEFAULT_LNG", 28.0412)
	if err != nil {
		return nil, err
	}
	cfg.DefaultLocation = weather.Coordinate{Lat: lat, Lng: lng}
	if err := cfg.DefaultLocation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default location: %w", err)
	}

	cfg.MaxSessions = getenvInt("SESSION_MAX", 1000)
	if cfg.SessionMaxIdle, err = getenvDuration("SESSION_MAX_IDLE", "30m"); err != nil {
		return nil, err
	}
	if cfg.SessionPruneInterval, err = getenvDuration("SESSION_PRUNE_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	cfg.TileURL = getenvDefault("MAP_TILE_URL", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")
	cfg.TileAttribution = getenvDefault("MAP_TILE_ATTRIBUTION",
		`&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`)
	cfg.MapZoom = getenvInt("MAP_ZOOM", 13)

	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

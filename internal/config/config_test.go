package config

import (
	"testing"
	"time"

	"github.com/i474232898/weather-map/internal/weather"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENWEATHER_API_KEY", "key")
	t.Setenv("OPENWEATHER_API_BASE", "https://api.openweathermap.org")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DefaultLocation != (weather.Coordinate{Lat: -26.1887, Lng: 28.0412}) {
		t.Fatalf("unexpected default location %+v", cfg.DefaultLocation)
	}
	if cfg.HTTPTimeout != 10*time.Second || cfg.SessionMaxIdle != 30*time.Minute {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.MapZoom != 13 || cfg.Port != "8080" || cfg.ProviderMaxRetries != 2 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadRequiresAPISettings(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")
	t.Setenv("OPENWEATHER_API_BASE", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing API settings to fail")
	}

	t.Setenv("OPENWEATHER_API_KEY", "key")
	t.Setenv("OPENWEATHER_API_BASE", "not a url")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid base URL to fail")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("WEATHER_DEFAULT_LAT", "40.7")
	t.Setenv("WEATHER_DEFAULT_LNG", "-74.0")
	t.Setenv("SESSION_PRUNE_INTERVAL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultLocation != (weather.Coordinate{Lat: 40.7, Lng: -74.0}) {
		t.Fatalf("unexpected location %+v", cfg.DefaultLocation)
	}
	if cfg.SessionPruneInterval != time.Minute {
		t.Fatalf("unexpected prune interval %v", cfg.SessionPruneInterval)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"WEATHER_DEFAULT_LAT": "95",
		"HTTP_TIMEOUT":        "soon",
		"WEATHER_DEFAULT_LNG": "east",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}

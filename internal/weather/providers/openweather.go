package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-map/internal/weather"
	"github.com/sony/gobreaker"
)

// OpenWeatherProvider resolves place names through the OpenWeather geocoding API
// and reads current conditions from the 5-day forecast API.
// It implements both weather.Resolver and weather.Fetcher.
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// Option customizes an OpenWeatherProvider.
type Option func(*OpenWeatherProvider)

// WithBackoff overrides the default retry policy.
func WithBackoff(b BackoffConfig) Option {
	return func(p *OpenWeatherProvider) {
		p.httpCfg.Backoff = b
	}
}

func NewOpenWeatherProvider(client *http.Client, baseURL, apiKey string, opts ...Option) *OpenWeatherProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// Client errors say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			var perm permanentError
			return err == nil || errors.As(err, &perm)
		},
	})

	p := &OpenWeatherProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      2,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type geocodeMatch struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Resolve looks up query verbatim and returns the coordinate of the first match.
func (p *OpenWeatherProvider) Resolve(ctx context.Context, query string) (weather.Coordinate, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", query)
		values.Set("limit", "1")
		values.Set("appid", p.apiKey)

		u := fmt.Sprintf("%s/geo/1.0/direct?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var matches []geocodeMatch
	if err := p.getJSON(ctx, buildRequest, &matches); err != nil {
		return weather.Coordinate{}, &weather.TransportError{Op: "geocode", Err: err}
	}

	if len(matches) == 0 {
		return weather.Coordinate{}, weather.ErrCityNotFound
	}

	coord := weather.Coordinate{Lat: matches[0].Lat, Lng: matches[0].Lon}
	if err := coord.Validate(); err != nil {
		return weather.Coordinate{}, &weather.TransportError{
			Op:  "geocode",
			Err: fmt.Errorf("match out of range: %w", err),
		}
	}
	return coord, nil
}

type forecastPayload struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	} `json:"list"`
}

var (
	errNoSlices    = errors.New("forecast contains no time slices")
	errNoCondition = errors.New("forecast slice has no weather condition")
)

// Fetch reads the forecast for coord and takes its first (soonest) slice as the
// current conditions. Temperature stays in Kelvin and wind in m/s.
func (p *OpenWeatherProvider) Fetch(ctx context.Context, coord weather.Coordinate) (weather.WeatherSnapshot, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(coord.Lng, 'f', -1, 64))
		values.Set("appid", p.apiKey)

		u := fmt.Sprintf("%s/data/2.5/forecast?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload forecastPayload
	if err := p.getJSON(ctx, buildRequest, &payload); err != nil {
		return weather.WeatherSnapshot{}, &weather.TransportError{Op: "forecast", Err: err}
	}

	if len(payload.List) == 0 {
		return weather.WeatherSnapshot{}, &weather.TransportError{Op: "forecast", Err: errNoSlices}
	}
	slice := payload.List[0]
	if len(slice.Weather) == 0 {
		return weather.WeatherSnapshot{}, &weather.TransportError{Op: "forecast", Err: errNoCondition}
	}

	var observed time.Time
	if slice.Dt > 0 {
		observed = time.Unix(slice.Dt, 0).UTC()
	}

	return weather.WeatherSnapshot{
		Coordinate:           coord,
		ObservedAt:           observed,
		CityName:             payload.City.Name,
		TemperatureKelvin:    slice.Main.Temp,
		ConditionMain:        slice.Weather[0].Main,
		ConditionDescription: slice.Weather[0].Description,
		IconID:               slice.Weather[0].Icon,
		WindSpeedMS:          slice.Wind.Speed,
	}, nil
}

func (p *OpenWeatherProvider) getJSON(ctx context.Context, buildRequest func() (*http.Request, error), out any) error {
	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

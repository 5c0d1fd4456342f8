package weather

import (
	"context"
)

// Resolver converts a free-text place name into a Coordinate.
//
// Implementations return ErrCityNotFound when the lookup yields no match and a
// *TransportError when the call itself fails.
type Resolver interface {
	Resolve(ctx context.Context, query string) (Coordinate, error)
}

// Fetcher retrieves the current conditions for a Coordinate.
// Any network or payload failure is reported as a *TransportError.
type Fetcher interface {
	Fetch(ctx context.Context, coord Coordinate) (WeatherSnapshot, error)
}

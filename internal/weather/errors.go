package weather

import (
	"errors"
	"fmt"
)

// NotFoundMessage is the text shown to the user when a search has no match.
const NotFoundMessage = "City not found"

var (
	// ErrCityNotFound is returned when geocoding yields zero matches.
	ErrCityNotFound = errors.New("city not found")
)

// TransportError wraps any failure talking to an upstream service: network
// errors, unexpected status codes and undecodable or malformed payloads.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

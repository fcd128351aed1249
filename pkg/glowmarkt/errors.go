package glowmarkt

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthentication is returned when the API rejects the credentials or
	// token, or when a call is made before authenticating.
	ErrAuthentication = errors.New("glowmarkt authentication failed")

	// ErrDataFetch is returned when a data call fails.
	ErrDataFetch = errors.New("glowmarkt data fetch failed")

	// ErrNoData is returned alongside ErrDataFetch when the API answered
	// successfully but had nothing to return, e.g. an empty tariff list.
	ErrNoData = errors.New("glowmarkt returned no data")
)

// APIError is returned when an API call responds with a non-2xx status.
type APIError struct {
	Call       string
	StatusCode int

	auth bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("glowmarkt %s returned status %d", e.Call, e.StatusCode)
}

// Is matches ErrAuthentication for a failed authenticate call or any 401, and
// ErrDataFetch for every other call.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.auth || e.StatusCode == http.StatusUnauthorized
	case ErrDataFetch:
		return !e.auth
	}
	return false
}

func noDataError(call string) error {
	return fmt.Errorf("%s: %w", call, errors.Join(ErrDataFetch, ErrNoData))
}

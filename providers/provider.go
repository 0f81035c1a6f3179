// Package providers holds the HTTP clients for the external flight and
// hotel search services the monitoring core consumes.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"travel_backend_project/models"
)

// ProviderError is a typed, status-classifiable error from a search
// provider. The retry executor inspects the HTTP status to decide
// whether the call is worth repeating.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (HTTP %d, %s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
}

// HTTPStatus exposes the status for retry classification
func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

// Retryable reports whether the error is transient: 5xx, 429 or 408
func (e *ProviderError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// FlightProvider searches flight offers for normalized parameters
type FlightProvider interface {
	Search(ctx context.Context, params models.SearchParams) ([]models.Offer, error)
}

// HotelProvider searches hotel offers for normalized parameters
type HotelProvider interface {
	Search(ctx context.Context, params models.SearchParams) ([]models.Offer, error)
}

// Registry routes a search to the provider for its kind
type Registry struct {
	Flights FlightProvider
	Hotels  HotelProvider
}

// Search dispatches by search kind
func (r *Registry) Search(ctx context.Context, kind models.SearchKind, params models.SearchParams) ([]models.Offer, error) {
	switch kind {
	case models.KindFlight:
		if r.Flights == nil {
			return nil, fmt.Errorf("no flight provider configured")
		}
		return r.Flights.Search(ctx, params)
	case models.KindHotel:
		if r.Hotels == nil {
			return nil, fmt.Errorf("no hotel provider configured")
		}
		return r.Hotels.Search(ctx, params)
	}
	return nil, fmt.Errorf("unknown search kind: %q", kind)
}

// newHTTPClient builds the shared client configuration for providers
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

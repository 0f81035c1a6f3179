package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel_backend_project/models"
)

func TestFlightSearchParsesOffers(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/shopping/flight-offers", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{
					"id": "offer-1",
					"price": {"total": "310.00", "grandTotal": "325.40", "currency": "USD"},
					"itineraries": [
						{"duration": "PT5H30M", "segments": [{"carrierCode": "AA"}, {"carrierCode": "AA"}]}
					],
					"validatingAirlineCodes": ["AA"]
				},
				{
					"id": "offer-2",
					"price": {"total": "289.99", "currency": "USD"},
					"itineraries": [
						{"duration": "PT6H", "segments": [{"carrierCode": "DL"}]}
					],
					"validatingAirlineCodes": ["DL"]
				},
				{
					"id": "offer-3",
					"price": {"total": "not-a-number", "currency": "USD"},
					"itineraries": []
				}
			],
			"meta": {"count": 3}
		}`))
	}))
	defer server.Close()

	provider := NewFlightProvider(server.URL, "test-key")
	offers, err := provider.Search(context.Background(), models.SearchParams{
		"origin":         "NYC",
		"destination":    "LAX",
		"departure_date": "2026-06-01",
		"adults":         2,
		"travel_class":   "economy",
	})
	require.NoError(t, err)

	assert.Equal(t, "NYC", gotQuery["originLocationCode"])
	assert.Equal(t, "LAX", gotQuery["destinationLocationCode"])
	assert.Equal(t, "2026-06-01", gotQuery["departureDate"])
	assert.Equal(t, "2", gotQuery["adults"])
	assert.Equal(t, "ECONOMY", gotQuery["travelClass"])
	assert.Equal(t, "20", gotQuery["max"], "max results defaults when unset")

	// the offer with the bad price is skipped, not fatal
	require.Len(t, offers, 2)

	assert.Equal(t, "offer-1", offers[0].ID)
	assert.True(t, offers[0].Price.Total.Equal(decimal.RequireFromString("325.40")), "grandTotal wins over total")
	assert.Equal(t, 1, offers[0].Stops)
	assert.Equal(t, 330, offers[0].DurationMinutes)
	assert.Equal(t, "AA", offers[0].Carrier)

	assert.Equal(t, 0, offers[1].Stops)
	assert.Equal(t, 360, offers[1].DurationMinutes)
}

func TestFlightSearchErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors": [{"status": 400, "code": "INVALID_DATE", "title": "Invalid date", "detail": "departureDate is in the past"}]}`))
	}))
	defer server.Close()

	provider := NewFlightProvider(server.URL, "")
	_, err := provider.Search(context.Background(), models.SearchParams{
		"origin": "NYC", "destination": "LAX", "departure_date": "2020-01-01",
	})
	require.Error(t, err)

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusBadRequest, providerErr.StatusCode)
	assert.Equal(t, "INVALID_DATE", providerErr.Code)
	assert.Contains(t, providerErr.Message, "departureDate is in the past")
	assert.False(t, providerErr.Retryable())
}

func TestFlightSearchServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	provider := NewFlightProvider(server.URL, "")
	_, err := provider.Search(context.Background(), models.SearchParams{"origin": "NYC", "destination": "LAX"})
	require.Error(t, err)

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusBadGateway, providerErr.HTTPStatus())
	assert.True(t, providerErr.Retryable())
}

func TestHotelSearchParsesOffers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/shopping/hotel-offers", r.URL.Path)
		assert.Equal(t, "PAR", r.URL.Query().Get("cityCode"))
		assert.Equal(t, "2", r.URL.Query().Get("roomQuantity"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{
					"hotel": {"hotelId": "H1", "name": "Grand Hotel"},
					"offers": [
						{"id": "h-offer-1", "price": {"total": "180.00", "currency": "EUR"}},
						{"id": "h-offer-2", "price": {"total": "210.50", "currency": "EUR"}}
					]
				}
			]
		}`))
	}))
	defer server.Close()

	provider := NewHotelProvider(server.URL, "")
	offers, err := provider.Search(context.Background(), models.SearchParams{
		"city_code":      "PAR",
		"check_in_date":  "2026-09-10",
		"check_out_date": "2026-09-12",
		"rooms":          2,
	})
	require.NoError(t, err)

	require.Len(t, offers, 2)
	assert.Equal(t, "Grand Hotel", offers[0].PropertyName)
	assert.True(t, offers[0].Price.Total.Equal(decimal.RequireFromString("180.00")))
	assert.Equal(t, "hotel", offers[0].Source)
}

func TestRegistryDispatch(t *testing.T) {
	registry := &Registry{}

	_, err := registry.Search(context.Background(), models.KindFlight, models.SearchParams{})
	assert.Error(t, err, "missing flight provider must error, not panic")

	_, err = registry.Search(context.Background(), models.KindHotel, models.SearchParams{})
	assert.Error(t, err)

	_, err = registry.Search(context.Background(), "CRUISE", models.SearchParams{})
	assert.Error(t, err)
}

func TestParseISODuration(t *testing.T) {
	assert.Equal(t, 330, parseISODuration("PT5H30M"))
	assert.Equal(t, 360, parseISODuration("PT6H"))
	assert.Equal(t, 45, parseISODuration("PT45M"))
	assert.Equal(t, 0, parseISODuration(""))
	assert.Equal(t, 0, parseISODuration("garbage"))
}

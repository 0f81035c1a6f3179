package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"travel_backend_project/models"
)

// FlightOffersResponse represents the flight search API response
type FlightOffersResponse struct {
	Data []FlightOfferData `json:"data"`
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
}

// FlightOfferData represents one priced flight offer
type FlightOfferData struct {
	ID    string `json:"id"`
	Price struct {
		Total      string `json:"total"`
		GrandTotal string `json:"grandTotal"`
		Currency   string `json:"currency"`
	} `json:"price"`
	Itineraries []struct {
		Duration string `json:"duration"`
		Segments []struct {
			CarrierCode string `json:"carrierCode"`
			Number      string `json:"number"`
		} `json:"segments"`
	} `json:"itineraries"`
	ValidatingAirlineCodes []string `json:"validatingAirlineCodes"`
}

// providerErrorResponse is the error envelope both search APIs return
type providerErrorResponse struct {
	Errors []struct {
		Status int    `json:"status"`
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// HTTPFlightProvider fetches flight offers from the flight search API
type HTTPFlightProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFlightProvider creates a flight provider client
func NewFlightProvider(baseURL, apiKey string) *HTTPFlightProvider {
	return &HTTPFlightProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: newHTTPClient(30 * time.Second),
	}
}

// Search fetches flight offers for the given search parameters
func (f *HTTPFlightProvider) Search(ctx context.Context, params models.SearchParams) ([]models.Offer, error) {
	query := url.Values{}
	query.Set("originLocationCode", params.GetString("origin"))
	query.Set("destinationLocationCode", params.GetString("destination"))
	query.Set("departureDate", params.GetString("departure_date"))
	if returnDate := params.GetString("return_date"); returnDate != "" {
		query.Set("returnDate", returnDate)
	}
	adults := params.GetInt("adults")
	if adults <= 0 {
		adults = 1
	}
	query.Set("adults", strconv.Itoa(adults))
	if children := params.GetInt("children"); children > 0 {
		query.Set("children", strconv.Itoa(children))
	}
	if infants := params.GetInt("infants"); infants > 0 {
		query.Set("infants", strconv.Itoa(infants))
	}
	if travelClass := params.GetString("travel_class"); travelClass != "" {
		query.Set("travelClass", strings.ToUpper(travelClass))
	}
	maxResults := params.GetInt("max_results")
	if maxResults <= 0 {
		maxResults = 20
	}
	query.Set("max", strconv.Itoa(maxResults))

	endpoint := f.baseURL + "/v2/shopping/flight-offers?" + query.Encode()
	body, err := doProviderRequest(ctx, f.httpClient, "flight", endpoint, f.apiKey)
	if err != nil {
		return nil, err
	}

	var response FlightOffersResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse flight offers response: %w", err)
	}

	offers := make([]models.Offer, 0, len(response.Data))
	for _, data := range response.Data {
		total := data.Price.GrandTotal
		if total == "" {
			total = data.Price.Total
		}
		price, err := decimal.NewFromString(total)
		if err != nil {
			log.Printf("Skipping flight offer %s with bad price %q: %v", data.ID, total, err)
			continue
		}
		offer := models.Offer{
			ID:     data.ID,
			Price:  models.Price{Total: price, Currency: data.Price.Currency},
			Source: "flight",
		}
		for _, itinerary := range data.Itineraries {
			if n := len(itinerary.Segments); n > 1 {
				offer.Stops += n - 1
			}
			offer.DurationMinutes += parseISODuration(itinerary.Duration)
		}
		if len(data.ValidatingAirlineCodes) > 0 {
			offer.Carrier = data.ValidatingAirlineCodes[0]
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// doProviderRequest performs a GET against a search API, mapping
// non-2xx responses to a typed ProviderError
func doProviderRequest(ctx context.Context, client *http.Client, provider, endpoint, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", provider, err)
	}
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s search request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		providerErr := &ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Code:       http.StatusText(resp.StatusCode),
			Message:    truncate(string(body), 300),
		}
		var envelope providerErrorResponse
		if json.Unmarshal(body, &envelope) == nil && len(envelope.Errors) > 0 {
			providerErr.Code = envelope.Errors[0].Code
			providerErr.Message = envelope.Errors[0].Title
			if envelope.Errors[0].Detail != "" {
				providerErr.Message += ": " + envelope.Errors[0].Detail
			}
		}
		return nil, providerErr
	}
	return body, nil
}

// parseISODuration converts an ISO-8601 duration like PT5H30M to
// minutes; unparseable values count as zero
func parseISODuration(s string) int {
	s = strings.TrimPrefix(strings.ToUpper(s), "PT")
	minutes := 0
	if idx := strings.Index(s, "H"); idx >= 0 {
		if hours, err := strconv.Atoi(s[:idx]); err == nil {
			minutes += hours * 60
		}
		s = s[idx+1:]
	}
	if idx := strings.Index(s, "M"); idx >= 0 {
		if mins, err := strconv.Atoi(s[:idx]); err == nil {
			minutes += mins
		}
	}
	return minutes
}

// truncate shortens provider error bodies for logging
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"travel_backend_project/models"
)

// HotelOffersResponse represents the hotel search API response
type HotelOffersResponse struct {
	Data []HotelOfferData `json:"data"`
}

// HotelOfferData represents the offers for one property
type HotelOfferData struct {
	Hotel struct {
		HotelID string `json:"hotelId"`
		Name    string `json:"name"`
	} `json:"hotel"`
	Offers []struct {
		ID    string `json:"id"`
		Price struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"price"`
	} `json:"offers"`
}

// HTTPHotelProvider fetches hotel offers from the hotel search API
type HTTPHotelProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHotelProvider creates a hotel provider client
func NewHotelProvider(baseURL, apiKey string) *HTTPHotelProvider {
	return &HTTPHotelProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: newHTTPClient(30 * time.Second),
	}
}

// Search fetches hotel offers for the given search parameters
func (h *HTTPHotelProvider) Search(ctx context.Context, params models.SearchParams) ([]models.Offer, error) {
	query := url.Values{}
	query.Set("cityCode", params.GetString("city_code"))
	query.Set("checkInDate", params.GetString("check_in_date"))
	query.Set("checkOutDate", params.GetString("check_out_date"))
	adults := params.GetInt("adults")
	if adults <= 0 {
		adults = 1
	}
	query.Set("adults", strconv.Itoa(adults))
	if rooms := params.GetInt("rooms"); rooms > 0 {
		query.Set("roomQuantity", strconv.Itoa(rooms))
	}

	endpoint := h.baseURL + "/v3/shopping/hotel-offers?" + query.Encode()
	body, err := doProviderRequest(ctx, h.httpClient, "hotel", endpoint, h.apiKey)
	if err != nil {
		return nil, err
	}

	var response HotelOffersResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse hotel offers response: %w", err)
	}

	var offers []models.Offer
	for _, property := range response.Data {
		for _, data := range property.Offers {
			price, err := decimal.NewFromString(data.Price.Total)
			if err != nil {
				log.Printf("Skipping hotel offer %s with bad price %q: %v", data.ID, data.Price.Total, err)
				continue
			}
			offers = append(offers, models.Offer{
				ID:           data.ID,
				Price:        models.Price{Total: price, Currency: data.Price.Currency},
				PropertyName: property.Hotel.Name,
				Source:       "hotel",
			})
		}
	}
	return offers, nil
}

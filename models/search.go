package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// SearchKind identifies the type of tracked search
type SearchKind string

const (
	KindFlight SearchKind = "FLIGHT"
	KindHotel  SearchKind = "HOTEL"
)

// ParseSearchKind validates a kind string from the API
func ParseSearchKind(s string) (SearchKind, error) {
	switch SearchKind(s) {
	case KindFlight, KindHotel:
		return SearchKind(s), nil
	}
	return "", fmt.Errorf("unknown search kind: %q", s)
}

// SearchParams holds normalized search parameters for flights or hotels.
// Flight searches carry origin, destination, departure_date, return_date,
// adults, children, infants, travel_class and max_results; hotel searches
// carry city_code, check_in_date, check_out_date, adults and rooms.
type SearchParams map[string]interface{}

// Value implements driver.Valuer so params persist as JSON text
func (p SearchParams) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for reading params back from the database
func (p *SearchParams) Scan(value interface{}) error {
	if value == nil {
		*p = SearchParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SearchParams", value)
	}
	return json.Unmarshal(data, p)
}

// GetString returns a string parameter, empty if absent
func (p SearchParams) GetString(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

// GetInt returns an integer parameter, 0 if absent or non-numeric
func (p SearchParams) GetInt(key string) int {
	v, ok := p[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

// Normalized returns the parameters as a flat string map with empty and
// nil values dropped. Numeric values are formatted canonically so that
// 2 and 2.0 normalize identically. Logically equal searches produce the
// same normalized form regardless of key order or value types.
func (p SearchParams) Normalized() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		if v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case bool:
			s = strconv.FormatBool(val)
		case float64:
			// JSON numbers decode as float64; drop trailing zeros
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			s = strconv.Itoa(val)
		case int64:
			s = strconv.FormatInt(val, 10)
		case json.Number:
			s = val.String()
		default:
			s = fmt.Sprintf("%v", val)
		}
		if s == "" {
			continue
		}
		out[k] = s
	}
	return out
}

// SortedKeys returns the normalized parameter keys in ascending order
func (p SearchParams) SortedKeys() []string {
	norm := p.Normalized()
	keys := make([]string, 0, len(norm))
	for k := range norm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Price is a monetary amount in a specific currency
type Price struct {
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// Offer represents a single priced result from a search provider
type Offer struct {
	ID              string `json:"id"`
	Price           Price  `json:"price"`
	Stops           int    `json:"stops,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Carrier         string `json:"carrier,omitempty"`
	PropertyName    string `json:"property_name,omitempty"`
	Source          string `json:"source"`
}

// LowestOffer returns the cheapest offer. Ties on price are broken by
// fewer stops, then shorter duration, then smaller offer ID so the
// monitoring signal is deterministic across refreshes.
func LowestOffer(offers []Offer) *Offer {
	if len(offers) == 0 {
		return nil
	}
	best := &offers[0]
	for i := 1; i < len(offers); i++ {
		o := &offers[i]
		switch o.Price.Total.Cmp(best.Price.Total) {
		case -1:
			best = o
		case 0:
			if o.Stops < best.Stops ||
				(o.Stops == best.Stops && o.DurationMinutes < best.DurationMinutes) ||
				(o.Stops == best.Stops && o.DurationMinutes == best.DurationMinutes && o.ID < best.ID) {
				best = o
			}
		}
	}
	return best
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"travel_backend_project/models"
)

// Key prefixes for each entity stored in the cache backend. All key
// construction goes through the builders below so the namespace stays
// consistent across components.
const (
	pricePrefix       = "price:"
	historyPrefix     = "history:"
	alertPrefix       = "alert:"
	userAlertsPrefix  = "user_alerts:"
	activeAlertsKey   = "active_alerts"
)

// SearchKey derives the deterministic cache discriminator for a search:
// a truncated SHA-256 over the normalized parameters with keys sorted,
// so logically identical searches collide to the same key regardless of
// parameter order.
func SearchKey(params models.SearchParams) string {
	norm := params.Normalized()
	keys := params.SortedKeys()

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(norm[k]))
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// PriceKey builds the key for the latest quote set of one search
func PriceKey(kind models.SearchKind, searchKey string) string {
	return fmt.Sprintf("%s%s:%s", pricePrefix, strings.ToLower(string(kind)), searchKey)
}

// HistoryKey builds the key for the price history series of one search
func HistoryKey(kind models.SearchKind, searchKey string) string {
	return fmt.Sprintf("%s%s:%s", historyPrefix, strings.ToLower(string(kind)), searchKey)
}

// AlertKey builds the key for one alert record
func AlertKey(alertID string) string {
	return alertPrefix + alertID
}

// UserAlertsKey builds the key for a user's alert index set
func UserAlertsKey(userID string) string {
	return userAlertsPrefix + userID
}

// ActiveAlertsKey is the key of the global active-alert index set
func ActiveAlertsKey() string {
	return activeAlertsKey
}

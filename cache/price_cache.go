package cache

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"travel_backend_project/models"
)

// Cache lifetimes and windows
const (
	DefaultQuoteTTL   = 30 * time.Minute
	HistoryWindowDays = 30
)

// PriceCache provides the travel-domain operations over the cache:
// latest quote sets, the rolling price history series and alert records
// with their user and active-status indexes.
type PriceCache struct {
	kv *Cache
}

// NewPriceCache wraps a Cache with the price-domain operations
func NewPriceCache(kv *Cache) *PriceCache {
	return &PriceCache{kv: kv}
}

// KV exposes the underlying cache for health checks and stats
func (p *PriceCache) KV() *Cache { return p.kv }

// CachePrice stores the latest quote set for a search and appends one
// history point using the lowest offer price. Returns the stored quote
// set; a broken backend degrades to a no-op rather than an error.
func (p *PriceCache) CachePrice(ctx context.Context, kind models.SearchKind, params models.SearchParams, offers []models.Offer, ttl time.Duration) *models.PriceQuoteSet {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	now := p.kv.now()
	searchKey := SearchKey(params)

	quoteSet := &models.PriceQuoteSet{
		SearchKey:    searchKey,
		Kind:         kind,
		Offers:       offers,
		SearchParams: params,
		CachedAt:     now,
		ExpiresAt:    now.Add(ttl),
	}

	data, err := json.Marshal(quoteSet)
	if err != nil {
		log.Printf("Failed to marshal quote set for %s: %v", searchKey, err)
		return quoteSet
	}
	p.kv.Set(ctx, PriceKey(kind, searchKey), data, ttl)

	if lowest := models.LowestOffer(offers); lowest != nil {
		p.appendHistory(ctx, kind, searchKey, models.PriceHistoryPoint{
			SearchKey: searchKey,
			Price:     lowest.Price.Total,
			Currency:  lowest.Price.Currency,
			Timestamp: now,
			Source:    lowest.Source,
		})
	}
	return quoteSet
}

// GetCachedPrice returns the cached quote set for a search, or absent
// when missing or expired
func (p *PriceCache) GetCachedPrice(ctx context.Context, kind models.SearchKind, params models.SearchParams) (*models.PriceQuoteSet, bool) {
	data, ok := p.kv.Get(ctx, PriceKey(kind, SearchKey(params)))
	if !ok {
		return nil, false
	}
	var quoteSet models.PriceQuoteSet
	if err := json.Unmarshal(data, &quoteSet); err != nil {
		log.Printf("Failed to unmarshal cached quote set: %v", err)
		return nil, false
	}
	return &quoteSet, true
}

// CachedLowestPrice returns the lowest price in the cached quote set
// for a search, used to diff prices across refreshes
func (p *PriceCache) CachedLowestPrice(ctx context.Context, kind models.SearchKind, params models.SearchParams) (decimal.Decimal, bool) {
	quoteSet, ok := p.GetCachedPrice(ctx, kind, params)
	if !ok {
		return decimal.Zero, false
	}
	lowest := models.LowestOffer(quoteSet.Offers)
	if lowest == nil {
		return decimal.Zero, false
	}
	return lowest.Price.Total, true
}

// appendHistory appends a point to the search's time series and prunes
// points older than the rolling window. Writes are read-modify-write;
// the scheduler's concurrency cap keeps a key from being refreshed by
// two jobs at once.
func (p *PriceCache) appendHistory(ctx context.Context, kind models.SearchKind, searchKey string, point models.PriceHistoryPoint) {
	key := HistoryKey(kind, searchKey)
	points := p.loadHistory(ctx, key)
	points = append(points, point)
	points = pruneWindow(points, p.kv.now().AddDate(0, 0, -HistoryWindowDays))

	data, err := json.Marshal(points)
	if err != nil {
		log.Printf("Failed to marshal price history for %s: %v", searchKey, err)
		return
	}
	p.kv.Set(ctx, key, data, 0)
}

func (p *PriceCache) loadHistory(ctx context.Context, key string) []models.PriceHistoryPoint {
	data, ok := p.kv.Get(ctx, key)
	if !ok {
		return nil
	}
	var points []models.PriceHistoryPoint
	if err := json.Unmarshal(data, &points); err != nil {
		log.Printf("Failed to unmarshal price history %s: %v", key, err)
		return nil
	}
	return points
}

// pruneWindow drops points older than cutoff, preserving order
func pruneWindow(points []models.PriceHistoryPoint, cutoff time.Time) []models.PriceHistoryPoint {
	kept := points[:0]
	for _, point := range points {
		if !point.Timestamp.Before(cutoff) {
			kept = append(kept, point)
		}
	}
	return kept
}

// GetPriceHistory returns the history points for a search within the
// requested window, oldest first
func (p *PriceCache) GetPriceHistory(ctx context.Context, kind models.SearchKind, params models.SearchParams, windowDays int) []models.PriceHistoryPoint {
	if windowDays <= 0 || windowDays > HistoryWindowDays {
		windowDays = HistoryWindowDays
	}
	key := HistoryKey(kind, SearchKey(params))
	points := p.loadHistory(ctx, key)
	points = pruneWindow(points, p.kv.now().AddDate(0, 0, -windowDays))
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// PruneHistory rewrites every history series keeping only the rolling
// window; run by the scheduler's daily cleanup
func (p *PriceCache) PruneHistory(ctx context.Context) int {
	cutoff := p.kv.now().AddDate(0, 0, -HistoryWindowDays)
	pruned := 0
	for _, key := range p.kv.Keys(ctx, historyPrefix+"*") {
		points := p.loadHistory(ctx, key)
		kept := pruneWindow(points, cutoff)
		if len(kept) == len(points) {
			continue
		}
		pruned += len(points) - len(kept)
		if len(kept) == 0 {
			p.kv.Del(ctx, key)
			continue
		}
		data, err := json.Marshal(kept)
		if err != nil {
			continue
		}
		p.kv.Set(ctx, key, data, 0)
	}
	return pruned
}

// ==================== Alert Operations ====================

// CreateAlert creates a price alert and registers it in the user and
// active indexes. Returns nil when the record cannot be stored.
func (p *PriceCache) CreateAlert(ctx context.Context, userID string, kind models.SearchKind, params models.SearchParams, targetPrice decimal.Decimal) *models.PriceAlert {
	alert := &models.PriceAlert{
		ID:           uuid.NewString(),
		UserID:       userID,
		Kind:         kind,
		SearchParams: params,
		TargetPrice:  targetPrice,
		IsActive:     true,
		CreatedAt:    p.kv.now(),
	}
	if !p.writeAlert(ctx, alert) {
		return nil
	}
	p.kv.SetAdd(ctx, UserAlertsKey(userID), alert.ID)
	p.kv.SetAdd(ctx, ActiveAlertsKey(), alert.ID)
	return alert
}

// writeAlert stores the alert record, reporting success
func (p *PriceCache) writeAlert(ctx context.Context, alert *models.PriceAlert) bool {
	data, err := json.Marshal(alert)
	if err != nil {
		log.Printf("Failed to marshal alert %s: %v", alert.ID, err)
		return false
	}
	p.kv.Set(ctx, AlertKey(alert.ID), data, 0)
	return p.kv.Exists(ctx, AlertKey(alert.ID))
}

// GetAlert loads one alert record
func (p *PriceCache) GetAlert(ctx context.Context, alertID string) (*models.PriceAlert, bool) {
	data, ok := p.kv.Get(ctx, AlertKey(alertID))
	if !ok {
		return nil, false
	}
	var alert models.PriceAlert
	if err := json.Unmarshal(data, &alert); err != nil {
		log.Printf("Failed to unmarshal alert %s: %v", alertID, err)
		return nil, false
	}
	return &alert, true
}

// UpdateAlert rewrites an alert record, keeping the active index in
// step with its IsActive flag
func (p *PriceCache) UpdateAlert(ctx context.Context, alert *models.PriceAlert) bool {
	if !p.writeAlert(ctx, alert) {
		return false
	}
	if alert.IsActive {
		p.kv.SetAdd(ctx, ActiveAlertsKey(), alert.ID)
	} else {
		p.kv.SetRemove(ctx, ActiveAlertsKey(), alert.ID)
	}
	return true
}

// GetUserAlerts returns all alerts belonging to a user. Index members
// whose record has vanished are removed as they are found.
func (p *PriceCache) GetUserAlerts(ctx context.Context, userID string) []models.PriceAlert {
	var alerts []models.PriceAlert
	for _, alertID := range p.kv.SetMembers(ctx, UserAlertsKey(userID)) {
		alert, ok := p.GetAlert(ctx, alertID)
		if !ok {
			p.kv.SetRemove(ctx, UserAlertsKey(userID), alertID)
			p.kv.SetRemove(ctx, ActiveAlertsKey(), alertID)
			continue
		}
		alerts = append(alerts, *alert)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
	})
	return alerts
}

// GetActiveAlerts returns every active alert for the daily sweep,
// self-healing orphaned index members on the way
func (p *PriceCache) GetActiveAlerts(ctx context.Context) []models.PriceAlert {
	var alerts []models.PriceAlert
	for _, alertID := range p.kv.SetMembers(ctx, ActiveAlertsKey()) {
		alert, ok := p.GetAlert(ctx, alertID)
		if !ok {
			p.kv.SetRemove(ctx, ActiveAlertsKey(), alertID)
			continue
		}
		if !alert.IsActive {
			p.kv.SetRemove(ctx, ActiveAlertsKey(), alert.ID)
			continue
		}
		alerts = append(alerts, *alert)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts
}

// DeleteAlert removes an alert and both of its index entries. The
// owning user must match; reports whether a record was deleted.
func (p *PriceCache) DeleteAlert(ctx context.Context, alertID, userID string) bool {
	alert, ok := p.GetAlert(ctx, alertID)
	if !ok {
		return false
	}
	if alert.UserID != userID {
		return false
	}
	p.kv.Del(ctx, AlertKey(alertID))
	p.kv.SetRemove(ctx, UserAlertsKey(userID), alertID)
	p.kv.SetRemove(ctx, ActiveAlertsKey(), alertID)
	return true
}

// CleanupOrphans removes index members whose alert record is missing.
// Record and index writes are not transactional across backends, so the
// daily cleanup reconciles the pair.
func (p *PriceCache) CleanupOrphans(ctx context.Context) int {
	removed := 0
	for _, alertID := range p.kv.SetMembers(ctx, ActiveAlertsKey()) {
		if !p.kv.Exists(ctx, AlertKey(alertID)) {
			p.kv.SetRemove(ctx, ActiveAlertsKey(), alertID)
			removed++
		}
	}
	for _, key := range p.kv.Keys(ctx, userAlertsPrefix+"*") {
		for _, alertID := range p.kv.SetMembers(ctx, key) {
			if !p.kv.Exists(ctx, AlertKey(alertID)) {
				p.kv.SetRemove(ctx, key, alertID)
				removed++
			}
		}
	}
	return removed
}

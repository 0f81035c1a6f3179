package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"travel_backend_project/models"
	"travel_backend_project/notify"
	"travel_backend_project/retry"
)

// runAlertSweep evaluates every active alert. Each alert is isolated:
// one failing evaluation is logged and the sweep continues, because a
// missed price drop is worse than an extra retry tomorrow.
func (s *PriceScheduler) runAlertSweep() {
	if !s.IsRunning() {
		return
	}
	log.Println("Evaluating price alerts...")

	ctx, cancel := context.WithTimeout(s.rootCtx, 10*time.Minute)
	defer cancel()

	alerts := s.prices.GetActiveAlerts(ctx)
	checked, triggered := 0, 0
	for i := range alerts {
		alert := alerts[i]
		if alert.LastCheckedAt != nil && s.now().Sub(*alert.LastCheckedAt) < s.cfg.AlertCheckMinGap {
			continue
		}
		checked++
		fired, err := s.evaluateAlert(ctx, &alert)
		if err != nil {
			log.Printf("Error evaluating alert %s: %v", alert.ID, err)
			continue
		}
		if fired {
			triggered++
		}
	}
	log.Printf("Alert sweep completed: %d active, %d checked, %d triggered", len(alerts), checked, triggered)
}

// evaluateAlert refreshes the current lowest price for the alert's
// search and fires a notification when the target is met
func (s *PriceScheduler) evaluateAlert(ctx context.Context, alert *models.PriceAlert) (bool, error) {
	lowest, currency, err := s.currentLowestPrice(ctx, alert.Kind, alert.SearchParams)
	if err != nil {
		return false, err
	}

	now := s.now()
	alert.CurrentPrice = lowest
	alert.Currency = currency
	alert.LastCheckedAt = &now

	fired := false
	if lowest.IsPositive() && lowest.LessThanOrEqual(alert.TargetPrice) {
		s.notifyAlert(alert)
		alert.AlertsSent++
		fired = true
	}
	if !s.prices.UpdateAlert(ctx, alert) {
		return fired, fmt.Errorf("failed to persist alert %s", alert.ID)
	}
	return fired, nil
}

// currentLowestPrice serves the alert check from the cached quote set
// when it is still fresh, falling back to a provider fetch that also
// repopulates the cache
func (s *PriceScheduler) currentLowestPrice(ctx context.Context, kind models.SearchKind, params models.SearchParams) (decimal.Decimal, string, error) {
	if quoteSet, ok := s.prices.GetCachedPrice(ctx, kind, params); ok {
		if lowest := models.LowestOffer(quoteSet.Offers); lowest != nil {
			return lowest.Price.Total, lowest.Price.Currency, nil
		}
	}

	offers, err := retry.Do(ctx, s.policy, func(ctx context.Context) ([]models.Offer, error) {
		return s.providers.Search(ctx, kind, params)
	})
	if err != nil {
		return decimal.Zero, "", err
	}
	s.prices.CachePrice(ctx, kind, params, offers, s.cfg.QuoteTTL)

	lowest := models.LowestOffer(offers)
	if lowest == nil {
		return decimal.Zero, "", nil
	}
	return lowest.Price.Total, lowest.Price.Currency, nil
}

// notifyAlert emits the price-drop notification. Delivery is
// fire-and-forget; a sink error is logged, never retried.
func (s *PriceScheduler) notifyAlert(alert *models.PriceAlert) {
	title := "Price drop on your tracked flight"
	if alert.Kind == models.KindHotel {
		title = "Price drop on your tracked hotel"
	}
	n := notify.Notification{
		Type:  "price_alert",
		Title: title,
		Message: fmt.Sprintf("Current price %s %s is at or below your target %s",
			alert.CurrentPrice, alert.Currency, alert.TargetPrice),
		Data: map[string]interface{}{
			"alert_id":      alert.ID,
			"kind":          alert.Kind,
			"current_price": alert.CurrentPrice,
			"target_price":  alert.TargetPrice,
			"search_params": alert.SearchParams,
		},
		Time: s.now(),
	}
	if err := s.sink.Create(alert.UserID, n); err != nil {
		log.Printf("Failed to deliver notification for alert %s: %v", alert.ID, err)
	}
}

// runCleanup purges inactive jobs, prunes history series to the rolling
// window and reconciles orphaned alert index entries
func (s *PriceScheduler) runCleanup() {
	if !s.IsRunning() {
		return
	}
	log.Println("Running scheduler cleanup...")

	ctx, cancel := context.WithTimeout(s.rootCtx, 10*time.Minute)
	defer cancel()

	result := s.db.Where("is_active = ?", false).Delete(&models.MonitoringJob{})
	if result.Error != nil {
		log.Printf("Error purging inactive jobs: %v", result.Error)
	} else if result.RowsAffected > 0 {
		log.Printf("Purged %d inactive jobs", result.RowsAffected)
	}

	if pruned := s.prices.PruneHistory(ctx); pruned > 0 {
		log.Printf("Pruned %d stale history points", pruned)
	}
	if removed := s.prices.CleanupOrphans(ctx); removed > 0 {
		log.Printf("Removed %d orphaned alert index entries", removed)
	}

	log.Println("Cleanup completed")
}

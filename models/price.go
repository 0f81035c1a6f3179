package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuoteSet is the latest fetched batch of offers for one search
type PriceQuoteSet struct {
	SearchKey    string       `json:"search_key"`
	Kind         SearchKind   `json:"kind"`
	Offers       []Offer      `json:"offers"`
	SearchParams SearchParams `json:"search_params"`
	CachedAt     time.Time    `json:"cached_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// PriceHistoryPoint is one sample in the rolling price time series for a
// search key. Points are appended on each refresh using the lowest offer
// price and pruned to a 30-day window.
type PriceHistoryPoint struct {
	SearchKey string          `json:"search_key"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
}

// PriceChange describes the movement of the lowest price between two
// consecutive refreshes of the same search
type PriceChange struct {
	Old     decimal.Decimal `json:"old"`
	New     decimal.Decimal `json:"new"`
	Percent float64         `json:"percent"`
}

// NewPriceChange computes the change between two lowest prices
func NewPriceChange(old, new decimal.Decimal) PriceChange {
	pc := PriceChange{Old: old, New: new}
	if !old.IsZero() {
		diff := new.Sub(old).Div(old).Mul(decimal.NewFromInt(100))
		pc.Percent, _ = diff.Round(2).Float64()
	}
	return pc
}

// PriceAlert is a user-defined price threshold on one search. Alerts are
// stored in the price cache backend and indexed by user and active status.
type PriceAlert struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Kind          SearchKind      `json:"kind"`
	SearchParams  SearchParams    `json:"search_params"`
	TargetPrice   decimal.Decimal `json:"target_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Currency      string          `json:"currency,omitempty"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	LastCheckedAt *time.Time      `json:"last_checked_at,omitempty"`
	AlertsSent    int             `json:"alerts_sent"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// PriorityTier determines how often a monitoring job refreshes
type PriorityTier string

const (
	TierHigh   PriorityTier = "HIGH"
	TierMedium PriorityTier = "MEDIUM"
	TierLow    PriorityTier = "LOW"
)

// ParsePriorityTier validates a tier string from the API
func ParsePriorityTier(s string) (PriorityTier, bool) {
	switch PriorityTier(s) {
	case TierHigh, TierMedium, TierLow:
		return PriorityTier(s), true
	}
	return "", false
}

// Rank orders tiers for selection: HIGH before MEDIUM before LOW
func (t PriorityTier) Rank() int {
	switch t {
	case TierHigh:
		return 0
	case TierMedium:
		return 1
	case TierLow:
		return 2
	}
	return 3
}

// MonitoringJob is a recurring instruction to refresh cached pricing for
// one search. Jobs are created through the scheduler API and mutated only
// by the scheduler itself; they persist across restarts.
type MonitoringJob struct {
	ID                  string       `gorm:"primaryKey" json:"id"`
	Kind                SearchKind   `gorm:"index" json:"kind"`
	SearchParams        SearchParams `gorm:"type:text" json:"search_params"`
	PriorityTier        PriorityTier `gorm:"index:idx_tier_due" json:"priority_tier"`
	OwnerUserID         string       `gorm:"index" json:"owner_user_id,omitempty"`
	LastRunAt           *time.Time   `json:"last_run_at,omitempty"`
	NextDueAt           time.Time    `gorm:"index:idx_tier_due" json:"next_due_at"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	IsActive            bool         `gorm:"index" json:"is_active"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// MigrateMonitorModels runs database migrations for monitoring models
func MigrateMonitorModels(db *gorm.DB) error {
	return db.AutoMigrate(&MonitoringJob{})
}

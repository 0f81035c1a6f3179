package scheduler

// Package scheduler owns the price monitoring loop for the travel backend.
// It handles:
// - Tiered refresh of tracked flight/hotel searches (HIGH/MEDIUM/LOW cadences)
// - Bounded-concurrency job execution with retry and failure escalation
// - Daily evaluation of user price alerts
// - Daily cleanup of inactive jobs, stale history and orphaned indexes
//
// The main scheduler is implemented in jobs.go; alert evaluation and
// cleanup live in alerts.go

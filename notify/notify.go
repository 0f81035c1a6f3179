// Package notify delivers price-alert notifications. The scheduler
// treats delivery as fire-and-forget: a failed send is logged, never
// retried, and never fails the alert sweep.
package notify

import (
	"log"
	"time"
)

// Notification is the payload handed to the notification sink
type Notification struct {
	Type    string                 `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Time    time.Time              `json:"time"`
}

// Sink receives notifications for a user
type Sink interface {
	Create(userID string, n Notification) error
}

// LogSink writes notifications to the process log. It is the default
// sink and the fallthrough when no richer sink is wired.
type LogSink struct{}

// Create logs the notification
func (LogSink) Create(userID string, n Notification) error {
	log.Printf("Notification for user %s [%s]: %s - %s", userID, n.Type, n.Title, n.Message)
	return nil
}

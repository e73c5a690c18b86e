package models

import "time"

// AnalyticsEvent is one buffered analytics event awaiting batch delivery.
type AnalyticsEvent struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

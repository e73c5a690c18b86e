// Package api provides the thin REST client for the Serene backend API.
//
// The remote side is a black-box collaborator; this package only knows the
// four contracts the local coordinators need: content version checks, full
// content fetches, batched operation sync, and activity/event delivery.
package api

import (
	"context"

	"github.com/serenemind/serene/backend/internal/models"
)

// VersionCheck is the response of the content version-check endpoint.
type VersionCheck struct {
	HasUpdates    bool `json:"hasUpdates"`
	LatestVersion int  `json:"latestVersion"`
}

// Client is the remote API surface consumed by the coordinators. Tests swap
// in fakes; production code uses HTTPClient.
type Client interface {
	// CheckContentVersion asks whether content newer than currentVersion
	// exists.
	CheckContentVersion(ctx context.Context, currentVersion int) (*VersionCheck, error)

	// FetchContent downloads the full content catalog.
	FetchContent(ctx context.Context) ([]models.ContentItem, error)

	// SyncOperations replays a batch of queued mutations and reports
	// per-operation outcomes.
	SyncOperations(ctx context.Context, ops []models.QueuedOperation) ([]models.OperationResult, error)

	// LogActivities delivers one or more activity log entries.
	LogActivities(ctx context.Context, entries []models.ActivityLogEntry) error

	// TrackEvents delivers a batch of analytics events.
	TrackEvents(ctx context.Context, events []models.AnalyticsEvent) error

	// Ping checks API reachability.
	Ping(ctx context.Context) error
}
